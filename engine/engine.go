// Package engine implements the optimistic mutation coordinator: every user
// action is applied to the local feed cache immediately, then reconciled
// against the store's authoritative response or rolled back on rejection.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/plexfeed/feedsync/api"
	"github.com/plexfeed/feedsync/feed"
)

// Store is the slice of the persistent store's API the engine depends on.
// *api.Client satisfies it.
type Store interface {
	FetchFeed(ctx context.Context, q api.FeedQuery) ([]feed.Post, error)
	FetchReposts(ctx context.Context, q api.FeedQuery) ([]feed.Repost, error)
	CreatePost(ctx context.Context, req api.CreatePostRequest) (feed.Post, error)
	CreateComment(ctx context.Context, postID string, req api.CreateCommentRequest) (feed.Post, error)
	ToggleLike(ctx context.Context, postID string, user feed.Author) (bool, error)
	ToggleRepost(ctx context.Context, postID string, user feed.Author) (bool, error)
	ToggleCommentLike(ctx context.Context, postID, commentID string, user feed.Author) (bool, error)
	DeletePost(ctx context.Context, postID string, user feed.Author) error
}

// Engine owns the local feed cache and exposes the mutation operations.
// Operations are safe for concurrent use; interleaved toggles on the same
// entity converge to the server's truth.
type Engine struct {
	store  Store
	cache  *feed.Cache
	viewer feed.Author
	query  api.FeedQuery
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFeedQuery scopes Refresh and Timeline fetches.
func WithFeedQuery(q api.FeedQuery) Option {
	return func(e *Engine) {
		e.query = q
	}
}

// New creates an engine for the given viewer. The engine owns its cache.
func New(store Store, viewer feed.Author, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		cache:  feed.NewCache(),
		viewer: viewer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the local feed cache. Consumers read, never write directly.
func (e *Engine) Cache() *feed.Cache {
	return e.cache
}

// Posts returns the current cache contents in display order.
func (e *Engine) Posts() []feed.Post {
	return e.cache.Posts()
}

// Refresh replaces the cache with a fresh authoritative fetch. It is the
// universal recovery path whenever incremental state cannot be trusted.
func (e *Engine) Refresh(ctx context.Context) error {
	posts, err := e.store.FetchFeed(ctx, e.query)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	e.cache.Replace(posts)
	return nil
}

// Timeline fetches the authored-post and repost streams and composes them
// into one chronologically descending sequence.
func (e *Engine) Timeline(ctx context.Context) ([]feed.Item, error) {
	posts, err := e.store.FetchFeed(ctx, e.query)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	reposts, err := e.store.FetchReposts(ctx, e.query)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	return feed.Compose(posts, reposts), nil
}

func validateContent(field, content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if n := feed.CountedLength(content); n > feed.MaxPostLength {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("effective length %d exceeds %d", n, feed.MaxPostLength),
		}
	}
	return nil
}

// CreatePost inserts a speculative post at the head of the cache, issues
// the create request, and swaps the temporary entry for the canonical
// snapshot. On rejection the speculative entry is removed.
func (e *Engine) CreatePost(ctx context.Context, content string, imageURLs []string) (feed.Post, error) {
	if err := validateContent("post content", content); err != nil {
		return feed.Post{}, err
	}

	speculative := feed.Post{
		ID:        feed.NewTempPostID(),
		Author:    e.viewer,
		Content:   content,
		ImageURLs: imageURLs,
		CreatedAt: time.Now(),
		Comments:  []feed.Comment{},
	}
	e.cache.Prepend(speculative)

	canonical, err := e.store.CreatePost(ctx, api.CreatePostRequest{
		Author:    e.viewer,
		Content:   content,
		ImageURLs: imageURLs,
	})
	if err != nil {
		e.cache.Remove(speculative.ID)
		return feed.Post{}, fmt.Errorf("create post: %w", err)
	}

	if !e.cache.Swap(speculative.ID, canonical) {
		// The speculative entry was removed while the request was in
		// flight (concurrent delete, realtime confirmation). Discard.
		e.logger.Debug("speculative post gone before reconciliation",
			"temp_id", speculative.ID,
			"post_id", canonical.ID)
	}
	return canonical, nil
}

// AddComment appends a speculative comment to the parent post, issues the
// create request, and replaces the parent with the canonical snapshot the
// server returns. On rejection the speculative comment is removed and the
// reply count restored.
func (e *Engine) AddComment(ctx context.Context, postID, content string, imageURLs []string) (feed.Post, error) {
	if err := validateContent("comment content", content); err != nil {
		return feed.Post{}, err
	}

	tempID := feed.NewTempCommentID()
	e.cache.Mutate(postID, func(p feed.Post) feed.Post {
		p.Comments = append(p.Comments, feed.Comment{
			ID:        tempID,
			PostID:    postID,
			Author:    e.viewer,
			Content:   content,
			ImageURLs: imageURLs,
			CreatedAt: time.Now(),
		})
		p.ReplyCount++
		return p
	})

	canonical, err := e.store.CreateComment(ctx, postID, api.CreateCommentRequest{
		Author:    e.viewer,
		Content:   content,
		ImageURLs: imageURLs,
	})
	if err != nil {
		e.cache.Mutate(postID, func(p feed.Post) feed.Post {
			kept := p.Comments[:0]
			for _, c := range p.Comments {
				if c.ID != tempID {
					kept = append(kept, c)
				}
			}
			p.Comments = kept
			if p.ReplyCount > 0 {
				p.ReplyCount--
			}
			return p
		})
		return feed.Post{}, fmt.Errorf("add comment: %w", err)
	}

	if !e.cache.Swap(postID, canonical) {
		e.logger.Debug("parent post gone before comment reconciliation", "post_id", postID)
	}
	return canonical, nil
}

// ToggleLike optimistically flips the viewer's like on a post, then trusts
// the server's returned absolute state: if the optimistic guess disagrees,
// the count is corrected by the signed delta between old and new state, so
// repeated toggles mid-flight never double-count. On rejection the flag and
// count return to their pre-call values.
func (e *Engine) ToggleLike(ctx context.Context, postID string) error {
	prev, cached := e.cache.Get(postID)
	if cached {
		e.cache.Mutate(postID, func(p feed.Post) feed.Post {
			if p.IsLikedByMe {
				p.IsLikedByMe = false
				p.LikeCount = max(0, p.LikeCount-1)
			} else {
				p.IsLikedByMe = true
				p.LikeCount++
			}
			return p
		})
	}

	liked, err := e.store.ToggleLike(ctx, postID, e.viewer)
	if err != nil {
		if cached {
			e.cache.Mutate(postID, func(p feed.Post) feed.Post {
				p.IsLikedByMe = prev.IsLikedByMe
				p.LikeCount = prev.LikeCount
				return p
			})
		}
		return fmt.Errorf("toggle like: %w", err)
	}

	e.cache.Mutate(postID, func(p feed.Post) feed.Post {
		if liked != p.IsLikedByMe {
			if liked {
				p.LikeCount++
			} else {
				p.LikeCount = max(0, p.LikeCount-1)
			}
		}
		p.IsLikedByMe = liked
		return p
	})
	return nil
}

// ToggleRepost is ToggleLike for the repost flag and count.
func (e *Engine) ToggleRepost(ctx context.Context, postID string) error {
	prev, cached := e.cache.Get(postID)
	if cached {
		e.cache.Mutate(postID, func(p feed.Post) feed.Post {
			if p.IsRetweetedByMe {
				p.IsRetweetedByMe = false
				p.RetweetCount = max(0, p.RetweetCount-1)
			} else {
				p.IsRetweetedByMe = true
				p.RetweetCount++
			}
			return p
		})
	}

	retweeted, err := e.store.ToggleRepost(ctx, postID, e.viewer)
	if err != nil {
		if cached {
			e.cache.Mutate(postID, func(p feed.Post) feed.Post {
				p.IsRetweetedByMe = prev.IsRetweetedByMe
				p.RetweetCount = prev.RetweetCount
				return p
			})
		}
		return fmt.Errorf("toggle repost: %w", err)
	}

	e.cache.Mutate(postID, func(p feed.Post) feed.Post {
		if retweeted != p.IsRetweetedByMe {
			if retweeted {
				p.RetweetCount++
			} else {
				p.RetweetCount = max(0, p.RetweetCount-1)
			}
		}
		p.IsRetweetedByMe = retweeted
		return p
	})
	return nil
}

// ToggleCommentLike applies the like-toggle protocol to a comment.
func (e *Engine) ToggleCommentLike(ctx context.Context, postID, commentID string) error {
	var prev feed.Comment
	var cached bool
	if p, ok := e.cache.Get(postID); ok {
		for _, c := range p.Comments {
			if c.ID == commentID {
				prev = c
				cached = true
				break
			}
		}
	}
	if cached {
		e.mutateComment(postID, commentID, func(c feed.Comment) feed.Comment {
			if c.IsLikedByMe {
				c.IsLikedByMe = false
				c.LikeCount = max(0, c.LikeCount-1)
			} else {
				c.IsLikedByMe = true
				c.LikeCount++
			}
			return c
		})
	}

	liked, err := e.store.ToggleCommentLike(ctx, postID, commentID, e.viewer)
	if err != nil {
		if cached {
			e.mutateComment(postID, commentID, func(c feed.Comment) feed.Comment {
				c.IsLikedByMe = prev.IsLikedByMe
				c.LikeCount = prev.LikeCount
				return c
			})
		}
		return fmt.Errorf("toggle comment like: %w", err)
	}

	e.mutateComment(postID, commentID, func(c feed.Comment) feed.Comment {
		if liked != c.IsLikedByMe {
			if liked {
				c.LikeCount++
			} else {
				c.LikeCount = max(0, c.LikeCount-1)
			}
		}
		c.IsLikedByMe = liked
		return c
	})
	return nil
}

func (e *Engine) mutateComment(postID, commentID string, fn func(feed.Comment) feed.Comment) {
	e.cache.Mutate(postID, func(p feed.Post) feed.Post {
		for i, c := range p.Comments {
			if c.ID == commentID {
				p.Comments[i] = fn(c)
				break
			}
		}
		return p
	})
}

// DeletePost removes the entry immediately and issues the delete request.
// A rejected delete triggers a full resynchronization fetch instead of
// resurrecting the prior snapshot.
func (e *Engine) DeletePost(ctx context.Context, postID string) error {
	e.cache.Remove(postID)

	if err := e.store.DeletePost(ctx, postID, e.viewer); err != nil {
		if rerr := e.Refresh(ctx); rerr != nil {
			e.logger.Warn("resync after failed delete failed", "post_id", postID, "error", rerr)
		}
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}
