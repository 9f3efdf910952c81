// Package notify tracks unread direct-message and notification state for
// the viewer, driven by per-user bus subjects. It follows the same
// degradation rule as the feed subscriptions: no transport, no live dots,
// no errors.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/plexfeed/feedsync/feed"
)

// DirectMessage is a direct message as delivered on the bus.
type DirectMessage struct {
	ID        string      `json:"id"`
	Sender    feed.Author `json:"sender"`
	Recipient feed.Author `json:"recipient"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Notification is an engagement notification (like, repost, comment,
// follow) as delivered on the bus.
type Notification struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Actor     feed.Author `json:"actor"`
	PostID    string      `json:"postId,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// MessagesSubject returns the per-user subject for new direct messages.
func MessagesSubject(handle string) string {
	return "user." + handle + ".new-dm"
}

// NotificationsSubject returns the per-user subject for new notifications.
func NotificationsSubject(handle string) string {
	return "user." + handle + ".new-notification"
}

// UnreadTracker flips unread flags when events for the viewer arrive. The
// viewer's own sends never light the dot.
type UnreadTracker struct {
	nc     *nats.Conn
	viewer feed.Author
	logger *slog.Logger

	mu                  sync.Mutex
	unreadMessages      bool
	unreadNotifications bool
	subs                []*nats.Subscription
}

// TrackerOption configures an UnreadTracker.
type TrackerOption func(*UnreadTracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *UnreadTracker) {
		t.logger = logger
	}
}

// NewUnreadTracker creates a tracker for the viewer. nc may be nil when the
// transport is unconfigured.
func NewUnreadTracker(nc *nats.Conn, viewer feed.Author, opts ...TrackerOption) *UnreadTracker {
	t := &UnreadTracker{
		nc:     nc,
		viewer: viewer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start subscribes the viewer's per-user subjects.
func (t *UnreadTracker) Start() error {
	if t.nc == nil || t.viewer.Handle == "" {
		return nil
	}

	dmSub, err := t.nc.Subscribe(MessagesSubject(t.viewer.Handle), t.handleMessage)
	if err != nil {
		return err
	}

	notifSub, err := t.nc.Subscribe(NotificationsSubject(t.viewer.Handle), t.handleNotification)
	if err != nil {
		_ = dmSub.Unsubscribe()
		return err
	}

	t.mu.Lock()
	t.subs = append(t.subs, dmSub, notifSub)
	t.mu.Unlock()
	return nil
}

// Close unsubscribes everything.
func (t *UnreadTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		if err := sub.Unsubscribe(); err != nil {
			t.logger.Warn("unsubscribe failed", "error", err)
		}
	}
	t.subs = nil
}

// HasUnreadMessages reports whether a foreign DM arrived since the last
// MarkMessagesRead.
func (t *UnreadTracker) HasUnreadMessages() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unreadMessages
}

// HasUnreadNotifications reports whether a notification arrived since the
// last MarkNotificationsRead.
func (t *UnreadTracker) HasUnreadNotifications() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unreadNotifications
}

// MarkMessagesRead clears the messages dot.
func (t *UnreadTracker) MarkMessagesRead() {
	t.mu.Lock()
	t.unreadMessages = false
	t.mu.Unlock()
}

// MarkNotificationsRead clears the notifications dot.
func (t *UnreadTracker) MarkNotificationsRead() {
	t.mu.Lock()
	t.unreadNotifications = false
	t.mu.Unlock()
}

func (t *UnreadTracker) handleMessage(m *nats.Msg) {
	var dm DirectMessage
	if err := json.Unmarshal(m.Data, &dm); err != nil {
		t.logger.Warn("dropping malformed dm event", "error", err)
		return
	}
	// Only someone else's message lights the dot.
	if dm.Sender.Handle == t.viewer.Handle {
		return
	}
	t.mu.Lock()
	t.unreadMessages = true
	t.mu.Unlock()
}

func (t *UnreadTracker) handleNotification(m *nats.Msg) {
	var n Notification
	if err := json.Unmarshal(m.Data, &n); err != nil {
		t.logger.Warn("dropping malformed notification event", "error", err)
		return
	}
	if n.Actor.Handle == t.viewer.Handle {
		return
	}
	t.mu.Lock()
	t.unreadNotifications = true
	t.mu.Unlock()
}
