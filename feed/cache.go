package feed

import "sync"

// Cache is the in-memory ordered collection of post snapshots and the
// single source of truth for rendering. It is owned by the synchronization
// engine: the mutation coordinator and the event reconciler write through
// it, everything else only reads.
//
// Every write is a pure transform from the previous collection to a new
// one. Entries are cloned before modification, so a snapshot handed out by
// Posts or Get is never mutated afterwards.
type Cache struct {
	mu    sync.RWMutex
	posts []Post

	changes chan struct{}
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{changes: make(chan struct{}, 1)}
}

// Changes returns a channel that receives a coalesced tick after each
// mutation. Consumers that fall behind see at most one pending tick.
func (c *Cache) Changes() <-chan struct{} {
	return c.changes
}

func (c *Cache) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Posts returns the current snapshot list in display order.
func (c *Cache) Posts() []Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Post, len(c.posts))
	copy(out, c.posts)
	return out
}

// Get returns the snapshot with the given identifier.
func (c *Cache) Get(id string) (Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.posts {
		if p.ID == id {
			return p, true
		}
	}
	return Post{}, false
}

// Len returns the number of cached posts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.posts)
}

// PostIDs returns the distinct post identifiers in display order. Temporary
// identifiers are skipped: speculative entries have no bus channel.
func (c *Cache) PostIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{}, len(c.posts))
	ids := make([]string, 0, len(c.posts))
	for _, p := range c.posts {
		if IsTempID(p.ID) {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	return ids
}

// Replace swaps the entire collection, e.g. after a full refetch.
func (c *Cache) Replace(posts []Post) {
	next := make([]Post, len(posts))
	for i, p := range posts {
		next[i] = p.Clone()
	}
	c.mu.Lock()
	c.posts = next
	c.mu.Unlock()
	c.notify()
}

// Prepend inserts a post at the head of the collection.
func (c *Cache) Prepend(p Post) {
	c.mu.Lock()
	next := make([]Post, 0, len(c.posts)+1)
	next = append(next, p.Clone())
	next = append(next, c.posts...)
	c.posts = next
	c.mu.Unlock()
	c.notify()
}

// Swap replaces the entry whose identifier equals id with the given post,
// keeping its position. It reports whether such an entry existed.
func (c *Cache) Swap(id string, p Post) bool {
	c.mu.Lock()
	idx := c.index(id)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	next := make([]Post, len(c.posts))
	copy(next, c.posts)
	next[idx] = p.Clone()
	c.posts = next
	c.mu.Unlock()
	c.notify()
	return true
}

// Upsert replaces the entry with the same identifier if present, otherwise
// inserts the post at the head. Replacement keeps the entry's position, so
// duplicate deliveries of the same snapshot are idempotent.
func (c *Cache) Upsert(p Post) {
	c.mu.Lock()
	if idx := c.index(p.ID); idx >= 0 {
		next := make([]Post, len(c.posts))
		copy(next, c.posts)
		next[idx] = p.Clone()
		c.posts = next
		c.mu.Unlock()
		c.notify()
		return
	}
	next := make([]Post, 0, len(c.posts)+1)
	next = append(next, p.Clone())
	next = append(next, c.posts...)
	c.posts = next
	c.mu.Unlock()
	c.notify()
}

// Remove deletes the entry with the given identifier. Removing an absent
// entry is a harmless no-op and reports false.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	idx := c.index(id)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	next := make([]Post, 0, len(c.posts)-1)
	next = append(next, c.posts[:idx]...)
	next = append(next, c.posts[idx+1:]...)
	c.posts = next
	c.mu.Unlock()
	c.notify()
	return true
}

// Mutate applies fn to a clone of the entry with the given identifier and
// stores the result in its place. fn receives a private copy and may modify
// it freely. Mutate reports whether the entry existed.
func (c *Cache) Mutate(id string, fn func(Post) Post) bool {
	c.mu.Lock()
	idx := c.index(id)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	next := make([]Post, len(c.posts))
	copy(next, c.posts)
	next[idx] = fn(next[idx].Clone())
	c.posts = next
	c.mu.Unlock()
	c.notify()
	return true
}

// index returns the position of id, or -1. Caller holds c.mu.
func (c *Cache) index(id string) int {
	for i, p := range c.posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
