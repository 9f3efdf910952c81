// Package realtime keeps the local feed cache synchronized with push-based
// change notifications: it manages a bounded set of bus subscriptions
// scoped to the visible posts and applies incoming events idempotently.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/plexfeed/feedsync/feed"
)

// Broadcast subjects for feed-wide events.
const (
	// FeedWildcard covers all broadcast events.
	FeedWildcard = "feed.>"

	// SubjectNewPost carries a full post snapshot.
	SubjectNewPost = "feed.new-post"

	// SubjectPostDeleted carries {postId}.
	SubjectPostDeleted = "feed.post-deleted"
)

// PostWildcard returns the subject filter covering all events for one post.
// Channel names derive deterministically from the entity identifier.
func PostWildcard(postID string) string {
	return "post." + postID + ".>"
}

// PostLikeSubject returns the subject for like-count changes on a post.
func PostLikeSubject(postID string) string {
	return "post." + postID + ".like-updated"
}

// NewCommentSubject returns the subject for new comments on a post.
func NewCommentSubject(postID string) string {
	return "post." + postID + ".new-comment"
}

// CommentLikeSubject returns the subject for like-count changes on a
// comment of the post.
func CommentLikeSubject(postID string) string {
	return "post." + postID + ".comment-like-updated"
}

// Event is a bus notification, decoded into one of the sealed variants
// below. Adding a variant requires extending the reconciler's switch.
type Event interface {
	// Kind returns the event's wire name, used for logs and metrics.
	Kind() string
}

// NewPost announces a new top-level post.
type NewPost struct {
	Post feed.Post
}

// Kind implements Event.
func (NewPost) Kind() string { return "new-post" }

// PostDeleted announces a post removal.
type PostDeleted struct {
	PostID string
}

// Kind implements Event.
func (PostDeleted) Kind() string { return "post-deleted" }

// PostLikeUpdated carries the new absolute like count of a post.
type PostLikeUpdated struct {
	PostID    string
	LikeCount int
}

// Kind implements Event.
func (PostLikeUpdated) Kind() string { return "post-like-updated" }

// NewComment announces a comment added to a post.
type NewComment struct {
	PostID  string
	Comment feed.Comment
}

// Kind implements Event.
func (NewComment) Kind() string { return "new-comment" }

// CommentLikeUpdated carries the new absolute like count of a comment.
type CommentLikeUpdated struct {
	PostID    string
	CommentID string
	LikeCount int
}

// Kind implements Event.
func (CommentLikeUpdated) Kind() string { return "comment-like-updated" }

// ParseEvent decodes a bus message into an Event. A nil error guarantees
// the event identifies its entity; everything else is a malformed event for
// the caller to drop.
func ParseEvent(subject string, data []byte) (Event, error) {
	switch subject {
	case SubjectNewPost:
		var post feed.Post
		if err := json.Unmarshal(data, &post); err != nil {
			return nil, fmt.Errorf("decode new-post: %w", err)
		}
		if post.ID == "" {
			return nil, fmt.Errorf("new-post without post id")
		}
		return NewPost{Post: post}, nil

	case SubjectPostDeleted:
		var payload struct {
			PostID string `json:"postId"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode post-deleted: %w", err)
		}
		if payload.PostID == "" {
			return nil, fmt.Errorf("post-deleted without post id")
		}
		return PostDeleted{PostID: payload.PostID}, nil
	}

	tokens := strings.Split(subject, ".")
	if len(tokens) != 3 || tokens[0] != "post" || tokens[1] == "" {
		return nil, fmt.Errorf("unrecognized subject %q", subject)
	}
	postID := tokens[1]

	switch tokens[2] {
	case "like-updated":
		var payload struct {
			LikeCount int `json:"likeCount"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode like-updated: %w", err)
		}
		return PostLikeUpdated{PostID: postID, LikeCount: payload.LikeCount}, nil

	case "new-comment":
		var payload struct {
			Comment feed.Comment `json:"comment"`
			PostID  string       `json:"postId"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode new-comment: %w", err)
		}
		if payload.PostID != "" {
			postID = payload.PostID
		}
		if payload.Comment.ID == "" {
			return nil, fmt.Errorf("new-comment without comment id")
		}
		return NewComment{PostID: postID, Comment: payload.Comment}, nil

	case "comment-like-updated":
		var payload struct {
			CommentID string `json:"commentId"`
			LikeCount int    `json:"likeCount"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode comment-like-updated: %w", err)
		}
		if payload.CommentID == "" {
			return nil, fmt.Errorf("comment-like-updated without comment id")
		}
		return CommentLikeUpdated{PostID: postID, CommentID: payload.CommentID, LikeCount: payload.LikeCount}, nil
	}

	return nil, fmt.Errorf("unrecognized subject %q", subject)
}
