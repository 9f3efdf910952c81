package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PrependSwapRemove(t *testing.T) {
	c := NewCache()
	c.Prepend(post("p1", "alice", at(1)))
	c.Prepend(post("p2", "bob", at(2)))

	posts := c.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].ID)
	assert.Equal(t, "p1", posts[1].ID)

	canonical := post("42", "bob", at(2))
	require.True(t, c.Swap("p2", canonical))
	posts = c.Posts()
	assert.Equal(t, "42", posts[0].ID, "swap keeps the entry position")

	assert.False(t, c.Swap("gone", canonical), "swapping an absent entry is a no-op")

	require.True(t, c.Remove("p1"))
	assert.False(t, c.Remove("p1"), "second removal is a harmless no-op")
	assert.Equal(t, 1, c.Len())
}

func TestCache_UpsertIdempotent(t *testing.T) {
	c := NewCache()
	p := post("p1", "alice", at(1))
	c.Upsert(p)
	c.Upsert(p)

	require.Equal(t, 1, c.Len())

	p.LikeCount = 7
	c.Upsert(p)
	got, ok := c.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 7, got.LikeCount)
	assert.Equal(t, 1, c.Len())
}

func TestCache_MutateDoesNotAliasReaders(t *testing.T) {
	c := NewCache()
	p := post("p1", "alice", at(1))
	p.Comments = []Comment{{ID: "c1", PostID: "p1", Content: "hi"}}
	c.Replace([]Post{p})

	before := c.Posts()

	c.Mutate("p1", func(p Post) Post {
		p.Comments = append(p.Comments, Comment{ID: "c2", PostID: "p1"})
		p.ReplyCount++
		return p
	})

	require.Len(t, before[0].Comments, 1, "earlier read must not see the mutation")

	after, ok := c.Get("p1")
	require.True(t, ok)
	assert.Len(t, after.Comments, 2)
	assert.Equal(t, 1, after.ReplyCount)
}

func TestCache_PostIDsSkipsTempAndDuplicates(t *testing.T) {
	c := NewCache()
	c.Replace([]Post{
		post("p1", "alice", at(1)),
		post(NewTempPostID(), "me", at(2)),
		post("p1", "alice", at(1)),
		post("p2", "bob", at(3)),
	})

	assert.Equal(t, []string{"p1", "p2"}, c.PostIDs())
}

func TestCache_ChangesCoalesce(t *testing.T) {
	c := NewCache()
	c.Prepend(post("p1", "alice", at(1)))
	c.Prepend(post("p2", "bob", at(2)))
	c.Remove("p1")

	select {
	case <-c.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected a pending change tick")
	}
	select {
	case <-c.Changes():
		t.Fatal("ticks should coalesce to at most one")
	default:
	}
}
