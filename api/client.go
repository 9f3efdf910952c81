// Package api provides the JSON request/response client for the persistent
// store. The store is treated as an opaque collaborator that returns
// canonical entity snapshots; all consistency logic lives above it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/plexfeed/feedsync/feed"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// Client talks to the store's HTTP API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration for fetches.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a store client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FeedQuery scopes a feed fetch.
type FeedQuery struct {
	// FollowingOnly restricts the feed to accounts the viewer follows.
	FollowingOnly bool

	// Author restricts the feed to a single author handle.
	Author string
}

// FetchFeed returns the ordered post snapshots for the query. Transient
// failures are retried with backoff; this is the only operation that
// retries, since a fetch has no optimistic state to roll back.
func (c *Client) FetchFeed(ctx context.Context, q FeedQuery) ([]feed.Post, error) {
	params := url.Values{}
	if q.FollowingOnly {
		params.Set("scope", "following")
	}
	if q.Author != "" {
		params.Set("author", q.Author)
	}
	path := "/api/posts"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var posts []feed.Post
	if err := c.getWithRetry(ctx, path, &posts); err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	return posts, nil
}

// FetchReposts returns the repost records made by followed accounts, the
// second input stream of the feed composer.
func (c *Client) FetchReposts(ctx context.Context, q FeedQuery) ([]feed.Repost, error) {
	params := url.Values{}
	if q.FollowingOnly {
		params.Set("scope", "following")
	}
	if q.Author != "" {
		params.Set("author", q.Author)
	}
	path := "/api/reposts"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var reposts []feed.Repost
	if err := c.getWithRetry(ctx, path, &reposts); err != nil {
		return nil, fmt.Errorf("fetch reposts: %w", err)
	}
	return reposts, nil
}

// CreatePostRequest is the payload for a post creation.
type CreatePostRequest struct {
	Author    feed.Author `json:"author"`
	Content   string      `json:"content"`
	ImageURLs []string    `json:"imageUrls,omitempty"`
}

// CreatePost creates a post and returns the canonical snapshot.
func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (feed.Post, error) {
	var post feed.Post
	if err := c.do(ctx, http.MethodPost, "/api/posts", req, &post); err != nil {
		return feed.Post{}, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// CreateCommentRequest is the payload for a comment creation.
type CreateCommentRequest struct {
	Author    feed.Author `json:"author"`
	Content   string      `json:"content"`
	ImageURLs []string    `json:"imageUrls,omitempty"`
}

// CreateComment creates a comment and returns the canonical snapshot of the
// parent post, with the new comment and counts applied.
func (c *Client) CreateComment(ctx context.Context, postID string, req CreateCommentRequest) (feed.Post, error) {
	var post feed.Post
	path := "/api/posts/" + url.PathEscape(postID) + "/comments"
	if err := c.do(ctx, http.MethodPost, path, req, &post); err != nil {
		return feed.Post{}, fmt.Errorf("create comment: %w", err)
	}
	return post, nil
}

type userPayload struct {
	User feed.Author `json:"user"`
}

// ToggleLike flips the viewer's like on a post and returns the new absolute
// state as decided by the server.
func (c *Client) ToggleLike(ctx context.Context, postID string, user feed.Author) (bool, error) {
	var resp struct {
		Liked bool `json:"liked"`
	}
	path := "/api/posts/" + url.PathEscape(postID) + "/like"
	if err := c.do(ctx, http.MethodPut, path, userPayload{User: user}, &resp); err != nil {
		return false, fmt.Errorf("toggle like: %w", err)
	}
	return resp.Liked, nil
}

// ToggleRepost flips the viewer's repost of a post and returns the new
// absolute state as decided by the server.
func (c *Client) ToggleRepost(ctx context.Context, postID string, user feed.Author) (bool, error) {
	var resp struct {
		Retweeted bool `json:"retweeted"`
	}
	path := "/api/posts/" + url.PathEscape(postID) + "/retweet"
	if err := c.do(ctx, http.MethodPut, path, userPayload{User: user}, &resp); err != nil {
		return false, fmt.Errorf("toggle repost: %w", err)
	}
	return resp.Retweeted, nil
}

// ToggleCommentLike flips the viewer's like on a comment and returns the
// new absolute state.
func (c *Client) ToggleCommentLike(ctx context.Context, postID, commentID string, user feed.Author) (bool, error) {
	var resp struct {
		Liked bool `json:"liked"`
	}
	path := "/api/posts/" + url.PathEscape(postID) + "/comments/" + url.PathEscape(commentID) + "/like"
	if err := c.do(ctx, http.MethodPut, path, userPayload{User: user}, &resp); err != nil {
		return false, fmt.Errorf("toggle comment like: %w", err)
	}
	return resp.Liked, nil
}

// DeletePost removes a post. The response carries no snapshot.
func (c *Client) DeletePost(ctx context.Context, postID string, user feed.Author) error {
	path := "/api/posts/" + url.PathEscape(postID)
	if err := c.do(ctx, http.MethodDelete, path, userPayload{User: user}, nil); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// getWithRetry fetches path into out, retrying transient failures.
func (c *Client) getWithRetry(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retryConfig.backoff(attempt - 1)
			c.logger.Debug("retrying fetch",
				"path", path,
				"attempt", attempt,
				"delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if reqErr, ok := IsRequestError(err); ok && !reqErr.Temporary() {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return lastErr
}

// do executes one request with a JSON body and decodes a JSON response into
// out (skipped when out is nil). Non-2xx responses become a RequestError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
