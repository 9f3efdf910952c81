package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/plexfeed/feedsync/feed"
)

// DefaultMaxPostChannels caps the number of per-post subscriptions. Posts
// beyond the cap simply do not receive live updates until they re-enter
// the visible window.
const DefaultMaxPostChannels = 50

// Subscriber keeps the set of bus subscriptions aligned with the posts
// currently in the cache: one channel per visible post up to the cap, plus
// one fixed broadcast channel for feed-wide events.
//
// A nil connection disables the subscriber entirely: every method becomes a
// no-op and the feed degrades to "consistent as of last fetch".
type Subscriber struct {
	nc      *nats.Conn
	cache   *feed.Cache
	rec     *Reconciler
	logger  *slog.Logger
	metrics *Metrics

	mu          sync.Mutex
	maxChannels int
	feedSub     *nats.Subscription
	postSubs    map[string]*nats.Subscription
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SubscriberOption {
	return func(s *Subscriber) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) SubscriberOption {
	return func(s *Subscriber) {
		s.metrics = m
	}
}

// WithMaxPostChannels overrides the per-post subscription cap.
func WithMaxPostChannels(n int) SubscriberOption {
	return func(s *Subscriber) {
		if n > 0 {
			s.maxChannels = n
		}
	}
}

// NewSubscriber creates a subscriber feeding the given cache. nc may be nil
// when the transport is unconfigured.
func NewSubscriber(nc *nats.Conn, cache *feed.Cache, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		nc:          nc,
		cache:       cache,
		rec:         NewReconciler(cache),
		logger:      slog.Default(),
		maxChannels: DefaultMaxPostChannels,
		postSubs:    make(map[string]*nats.Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Enabled reports whether a bus transport is configured.
func (s *Subscriber) Enabled() bool {
	return s.nc != nil
}

// Start subscribes the broadcast channel and aligns the per-post set with
// the current cache contents.
func (s *Subscriber) Start() error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	if s.feedSub == nil {
		sub, err := s.nc.Subscribe(FeedWildcard, s.handleMessage)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.feedSub = sub
	}
	s.mu.Unlock()

	s.Sync()
	return nil
}

// Sync recomputes the required subscription set from the visible posts:
// new channels are subscribed, stale ones unsubscribed, and the cap is
// never exceeded.
func (s *Subscriber) Sync() {
	if !s.Enabled() {
		return
	}

	ids := s.cache.PostIDs()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) > s.maxChannels {
		ids = ids[:s.maxChannels]
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	for id, sub := range s.postSubs {
		if _, ok := want[id]; ok {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", "post_id", id, "error", err)
		}
		delete(s.postSubs, id)
	}

	for _, id := range ids {
		if _, ok := s.postSubs[id]; ok {
			continue
		}
		sub, err := s.nc.Subscribe(PostWildcard(id), s.handleMessage)
		if err != nil {
			s.logger.Warn("subscribe failed", "post_id", id, "error", err)
			continue
		}
		s.postSubs[id] = sub
	}

	s.metrics.ActiveChannels.Set(float64(len(s.postSubs)))
}

// SetMaxPostChannels adjusts the cap at runtime and re-syncs.
func (s *Subscriber) SetMaxPostChannels(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.maxChannels = n
	s.mu.Unlock()
	s.Sync()
}

// ActiveChannels returns the number of live per-post subscriptions.
func (s *Subscriber) ActiveChannels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.postSubs)
}

// Run starts the subscriber and re-syncs on every cache change until ctx is
// cancelled, then tears down all subscriptions. With no transport it just
// waits for cancellation.
func (s *Subscriber) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.cache.Changes():
			s.Sync()
		}
	}
}

// Close unsubscribes everything, unbinding handlers so no callback leaks.
func (s *Subscriber) Close() {
	if !s.Enabled() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.postSubs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", "post_id", id, "error", err)
		}
		delete(s.postSubs, id)
	}
	if s.feedSub != nil {
		if err := s.feedSub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe feed channel failed", "error", err)
		}
		s.feedSub = nil
	}
	s.metrics.ActiveChannels.Set(0)
}

// handleMessage runs on the transport's dispatch goroutine. One bad event
// must not desubscribe the channel or crash the process, so parse or apply
// failures are logged and dropped, and panics are contained.
func (s *Subscriber) handleMessage(m *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.EventsDropped.Inc()
			s.logger.Error("panic in event handler", "subject", m.Subject, "panic", r)
		}
	}()

	ev, err := ParseEvent(m.Subject, m.Data)
	if err != nil {
		s.metrics.EventsDropped.Inc()
		s.logger.Warn("dropping malformed event", "subject", m.Subject, "error", err)
		return
	}

	if err := s.rec.Apply(ev); err != nil {
		s.metrics.EventsDropped.Inc()
		s.logger.Warn("dropping unappliable event", "subject", m.Subject, "kind", ev.Kind(), "error", err)
		return
	}
	s.metrics.EventsApplied.WithLabelValues(ev.Kind()).Inc()
}
