package feed

import (
	"regexp"
	"unicode/utf8"
)

// MaxPostLength is the maximum effective length of a post or comment body.
const MaxPostLength = 280

// Hashtag and mention tokens do not count toward the effective length.
var excludedToken = regexp.MustCompile(`#\S+|@\S+`)

// CountedLength returns the effective character count of content, with
// #hashtag and @mention tokens excluded.
func CountedLength(content string) int {
	return utf8.RuneCountInString(excludedToken.ReplaceAllString(content, ""))
}

// TruncateCounted cuts content so that its effective length does not exceed
// max. Excluded tokens are kept whole and never counted.
func TruncateCounted(content string, max int) string {
	if CountedLength(content) <= max {
		return content
	}
	counted := 0
	i := 0
	for i < len(content) {
		if loc := excludedToken.FindStringIndex(content[i:]); loc != nil && loc[0] == 0 {
			i += loc[1]
			continue
		}
		_, size := utf8.DecodeRuneInString(content[i:])
		counted++
		if counted > max {
			return content[:i]
		}
		i += size
	}
	return content
}
