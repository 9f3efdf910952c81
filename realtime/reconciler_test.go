package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexfeed/feedsync/feed"
)

func seededCache(posts ...feed.Post) *feed.Cache {
	c := feed.NewCache()
	c.Replace(posts)
	return c
}

func somePost(id string) feed.Post {
	return feed.Post{
		ID:        id,
		Author:    feed.Author{Name: "Alice", Handle: "alice"},
		Content:   "post " + id,
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestReconciler_NewPost_InsertsAtHead(t *testing.T) {
	cache := seededCache(somePost("old"))
	r := NewReconciler(cache)

	require.NoError(t, r.Apply(NewPost{Post: somePost("fresh")}))

	posts := cache.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "fresh", posts[0].ID)
}

func TestReconciler_NewPost_DuplicateDeliveryReplacesInPlace(t *testing.T) {
	cache := seededCache(somePost("a"), somePost("b"))
	r := NewReconciler(cache)

	dup := somePost("b")
	dup.LikeCount = 9
	require.NoError(t, r.Apply(NewPost{Post: dup}))
	require.NoError(t, r.Apply(NewPost{Post: dup}))

	posts := cache.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "b", posts[1].ID, "replacement keeps position")
	assert.Equal(t, 9, posts[1].LikeCount)
}

func TestReconciler_PostDeleted_SecondDeliveryIsNoop(t *testing.T) {
	cache := seededCache(somePost("a"))
	r := NewReconciler(cache)

	require.NoError(t, r.Apply(PostDeleted{PostID: "a"}))
	require.NoError(t, r.Apply(PostDeleted{PostID: "a"}))
	assert.Equal(t, 0, cache.Len())
}

func TestReconciler_PostLikeUpdated_AbsoluteOverwrite(t *testing.T) {
	p := somePost("a")
	p.LikeCount = 3
	p.IsLikedByMe = true
	cache := seededCache(p)
	r := NewReconciler(cache)

	require.NoError(t, r.Apply(PostLikeUpdated{PostID: "a", LikeCount: 10}))
	require.NoError(t, r.Apply(PostLikeUpdated{PostID: "a", LikeCount: 10}))

	got, _ := cache.Get("a")
	assert.Equal(t, 10, got.LikeCount)
	assert.True(t, got.IsLikedByMe, "only the count field is overwritten")
}

func TestReconciler_PostLikeUpdated_UncachedEntityIgnored(t *testing.T) {
	cache := seededCache()
	r := NewReconciler(cache)

	require.NoError(t, r.Apply(PostLikeUpdated{PostID: "ghost", LikeCount: 5}))
	assert.Equal(t, 0, cache.Len())
}

func TestReconciler_NewComment_DuplicateDeliveryAppliedOnce(t *testing.T) {
	cache := seededCache(somePost("a"))
	r := NewReconciler(cache)

	ev := NewComment{
		PostID:  "a",
		Comment: feed.Comment{ID: "c1", PostID: "a", Content: "hi"},
	}
	require.NoError(t, r.Apply(ev))
	require.NoError(t, r.Apply(ev))

	got, _ := cache.Get("a")
	require.Len(t, got.Comments, 1, "exactly one comment appended")
	assert.Equal(t, 1, got.ReplyCount, "reply count incremented exactly once")
}

func TestReconciler_CommentLikeUpdated(t *testing.T) {
	p := somePost("a")
	p.Comments = []feed.Comment{
		{ID: "c1", PostID: "a", LikeCount: 1},
		{ID: "c2", PostID: "a", LikeCount: 2},
	}
	cache := seededCache(p)
	r := NewReconciler(cache)

	require.NoError(t, r.Apply(CommentLikeUpdated{PostID: "a", CommentID: "c2", LikeCount: 7}))

	got, _ := cache.Get("a")
	assert.Equal(t, 1, got.Comments[0].LikeCount)
	assert.Equal(t, 7, got.Comments[1].LikeCount)
}
