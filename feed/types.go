// Package feed defines the snapshot types held in the local feed cache and
// the composition of heterogeneous post streams into a single timeline.
package feed

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author identifies the account that wrote a post or comment.
type Author struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Avatar string `json:"avatar,omitempty"`
}

// Comment is the canonical snapshot of a single reply to a post.
type Comment struct {
	ID          string    `json:"id"`
	PostID      string    `json:"postId"`
	Author      Author    `json:"author"`
	Content     string    `json:"content"`
	ImageURLs   []string  `json:"imageUrls,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LikeCount   int       `json:"likeCount"`
	IsLikedByMe bool      `json:"isLikedByMe"`
}

// RepostContext records who surfaced a post into a feed and when. It is set
// only when the post appears via a repost rather than as an original.
type RepostContext struct {
	By Author    `json:"by"`
	At time.Time `json:"at"`
}

// Post is the canonical snapshot of a post as last known from the server.
// Snapshots are treated as immutable: code that changes a field clones the
// post first, so concurrent readers never observe a partial update.
type Post struct {
	ID              string         `json:"id"`
	Author          Author         `json:"author"`
	Content         string         `json:"content"`
	ImageURLs       []string       `json:"imageUrls,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	LikeCount       int            `json:"likeCount"`
	IsLikedByMe     bool           `json:"isLikedByMe"`
	ReplyCount      int            `json:"replyCount"`
	RetweetCount    int            `json:"retweetCount"`
	IsRetweetedByMe bool           `json:"isRetweetedByMe"`
	Comments        []Comment      `json:"comments"`
	RepostContext   *RepostContext `json:"repostContext,omitempty"`
}

// Clone returns a deep copy of the post. Mutating the clone never affects
// the original snapshot.
func (p Post) Clone() Post {
	out := p
	if p.ImageURLs != nil {
		out.ImageURLs = make([]string, len(p.ImageURLs))
		copy(out.ImageURLs, p.ImageURLs)
	}
	if p.Comments != nil {
		out.Comments = make([]Comment, len(p.Comments))
		copy(out.Comments, p.Comments)
	}
	if p.RepostContext != nil {
		ctx := *p.RepostContext
		out.RepostContext = &ctx
	}
	return out
}

// Repost is a repost record made by a followed account, referencing an
// arbitrary underlying post.
type Repost struct {
	Post Post      `json:"post"`
	By   Author    `json:"by"`
	At   time.Time `json:"at"`
}

// Item is a composed feed entry: a post plus the timestamp that justifies
// its position (own creation time, or the repost time when surfaced via a
// repost). RepostTotal is the number of repost records across all followed
// accounts that reference the same underlying post.
type Item struct {
	Post        Post      `json:"post"`
	SortTime    time.Time `json:"sortTime"`
	RepostTotal int       `json:"repostTotal"`
}

// Temporary identifier prefixes for speculative snapshots. Temporary ids
// exist only between optimistic apply and server reconciliation; they are
// never published to the bus.
const (
	tempPostPrefix    = "temp-post-"
	tempCommentPrefix = "temp-comment-"
)

// NewTempPostID returns a fresh temporary post identifier.
func NewTempPostID() string {
	return tempPostPrefix + uuid.New().String()
}

// NewTempCommentID returns a fresh temporary comment identifier.
func NewTempCommentID() string {
	return tempCommentPrefix + uuid.New().String()
}

// IsTempID reports whether id is a locally assigned temporary identifier.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPostPrefix) || strings.HasPrefix(id, tempCommentPrefix)
}
