package drafts

import "errors"

// ErrNotFound is returned when a draft does not exist.
var ErrNotFound = errors.New("draft not found")
