package realtime

import (
	"fmt"

	"github.com/plexfeed/feedsync/feed"
)

// Reconciler applies bus events to the local feed cache. Delivery is
// at-least-once and unordered, so every handler is idempotent: snapshots
// are replaced by identifier, counts are absolute overwrites, and comments
// are appended only once. Events for entities no longer cached are no-ops.
type Reconciler struct {
	cache *feed.Cache
}

// NewReconciler creates a reconciler writing through the given cache.
func NewReconciler(cache *feed.Cache) *Reconciler {
	return &Reconciler{cache: cache}
}

// Apply reconciles one event. A non-nil error means the event could not be
// applied and should be dropped; the cache is untouched in that case.
func (r *Reconciler) Apply(ev Event) error {
	switch ev := ev.(type) {
	case NewPost:
		// Replacing an existing entry with the same identifier covers
		// both duplicate delivery and confirmation of our own
		// optimistic entry already swapped to its canonical id.
		r.cache.Upsert(ev.Post)
		return nil

	case PostDeleted:
		r.cache.Remove(ev.PostID)
		return nil

	case PostLikeUpdated:
		// Absolute overwrite of the count only: re-applying the same
		// value is a no-op, and the viewer's own flag is left alone.
		// A stale duplicate arriving late can roll the count backward;
		// the next full refetch heals it.
		r.cache.Mutate(ev.PostID, func(p feed.Post) feed.Post {
			p.LikeCount = ev.LikeCount
			return p
		})
		return nil

	case NewComment:
		r.cache.Mutate(ev.PostID, func(p feed.Post) feed.Post {
			for _, c := range p.Comments {
				if c.ID == ev.Comment.ID {
					return p
				}
			}
			p.Comments = append(p.Comments, ev.Comment)
			p.ReplyCount++
			return p
		})
		return nil

	case CommentLikeUpdated:
		r.cache.Mutate(ev.PostID, func(p feed.Post) feed.Post {
			for i, c := range p.Comments {
				if c.ID == ev.CommentID {
					p.Comments[i].LikeCount = ev.LikeCount
					break
				}
			}
			return p
		})
		return nil
	}

	return fmt.Errorf("unhandled event type %T", ev)
}
