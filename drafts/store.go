// Package drafts persists unpublished post drafts in NATS KV so a
// half-written post survives restarts.
package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// Bucket is the KV bucket holding drafts.
const Bucket = "FEEDSYNC_DRAFTS"

// Draft is an unpublished post.
type Draft struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	ImageURLs []string  `json:"imageUrls,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store provides draft storage operations backed by NATS KV.
type Store struct {
	kv jetstream.KeyValue
}

// NewStore creates a Store, creating the bucket if it doesn't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	kv, err := getOrCreateBucket(ctx, js, Bucket)
	if err != nil {
		return nil, fmt.Errorf("create drafts bucket: %w", err)
	}
	return &Store{kv: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Feedsync post drafts",
		History:     5, // Keep last 5 revisions
	})
}

// Create stores a new draft and returns it with its generated ID.
func (s *Store) Create(ctx context.Context, content string, imageURLs []string) (*Draft, error) {
	now := time.Now()
	d := &Draft{
		ID:        uuid.New().String(),
		Content:   content,
		ImageURLs: imageURLs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal draft: %w", err)
	}

	if _, err := s.kv.Create(ctx, d.ID, data); err != nil {
		return nil, fmt.Errorf("store draft: %w", err)
	}

	return d, nil
}

// Get retrieves a draft by ID.
func (s *Store) Get(ctx context.Context, id string) (*Draft, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(entry.Value(), &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}

	return &d, nil
}

// Update overwrites an existing draft's content and bumps UpdatedAt.
func (s *Store) Update(ctx context.Context, d *Draft) error {
	if _, err := s.Get(ctx, d.ID); err != nil {
		return err
	}

	d.UpdatedAt = time.Now()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	if _, err := s.kv.Put(ctx, d.ID, data); err != nil {
		return fmt.Errorf("update draft: %w", err)
	}

	return nil
}

// Delete removes a draft.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// List returns all drafts, newest first.
func (s *Store) List(ctx context.Context) ([]*Draft, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list draft keys: %w", err)
	}

	drafts := make([]*Draft, 0, len(keys))
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var d Draft
		if err := json.Unmarshal(entry.Value(), &d); err != nil {
			continue
		}
		drafts = append(drafts, &d)
	}

	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].UpdatedAt.After(drafts[j].UpdatedAt)
	})

	return drafts, nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}
