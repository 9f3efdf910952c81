package notify

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexfeed/feedsync/feed"
)

func startBus(t *testing.T) *nats.Conn {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "embedded NATS server failed to start")
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	return nc
}

var viewer = feed.Author{Name: "Alice", Handle: "alice"}

func TestUnreadTracker_ForeignMessageLightsDot(t *testing.T) {
	nc := startBus(t)

	tr := NewUnreadTracker(nc, viewer)
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	require.NoError(t, nc.Publish(MessagesSubject("alice"),
		[]byte(`{"id":"m1","sender":{"handle":"bob"},"content":"hey"}`)))
	require.NoError(t, nc.Flush())

	require.Eventually(t, tr.HasUnreadMessages, 3*time.Second, 10*time.Millisecond)
	assert.False(t, tr.HasUnreadNotifications())

	tr.MarkMessagesRead()
	assert.False(t, tr.HasUnreadMessages())
}

func TestUnreadTracker_OwnMessageIgnored(t *testing.T) {
	nc := startBus(t)

	tr := NewUnreadTracker(nc, viewer)
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	require.NoError(t, nc.Publish(MessagesSubject("alice"),
		[]byte(`{"id":"m1","sender":{"handle":"alice"},"content":"note to self"}`)))
	require.NoError(t, nc.Flush())

	// Give the handler a chance to run before asserting nothing changed.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, tr.HasUnreadMessages())
}

func TestUnreadTracker_NotificationLightsDot(t *testing.T) {
	nc := startBus(t)

	tr := NewUnreadTracker(nc, viewer)
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	require.NoError(t, nc.Publish(NotificationsSubject("alice"),
		[]byte(`{"id":"n1","type":"like","actor":{"handle":"bob"},"postId":"7"}`)))
	require.NoError(t, nc.Flush())

	require.Eventually(t, tr.HasUnreadNotifications, 3*time.Second, 10*time.Millisecond)
	assert.False(t, tr.HasUnreadMessages())

	tr.MarkNotificationsRead()
	assert.False(t, tr.HasUnreadNotifications())
}

func TestUnreadTracker_OwnActionNotificationIgnored(t *testing.T) {
	nc := startBus(t)

	tr := NewUnreadTracker(nc, viewer)
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	require.NoError(t, nc.Publish(NotificationsSubject("alice"),
		[]byte(`{"id":"n1","type":"like","actor":{"handle":"alice"}}`)))
	require.NoError(t, nc.Flush())

	time.Sleep(100 * time.Millisecond)
	assert.False(t, tr.HasUnreadNotifications())
}

func TestUnreadTracker_MalformedEventIgnored(t *testing.T) {
	nc := startBus(t)

	tr := NewUnreadTracker(nc, viewer)
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	require.NoError(t, nc.Publish(MessagesSubject("alice"), []byte(`not json`)))
	require.NoError(t, nc.Publish(MessagesSubject("alice"),
		[]byte(`{"id":"m2","sender":{"handle":"bob"}}`)))
	require.NoError(t, nc.Flush())

	require.Eventually(t, tr.HasUnreadMessages, 3*time.Second, 10*time.Millisecond)
}

func TestUnreadTracker_DisabledTransportIsNoop(t *testing.T) {
	tr := NewUnreadTracker(nil, viewer)
	require.NoError(t, tr.Start())
	assert.False(t, tr.HasUnreadMessages())
	assert.False(t, tr.HasUnreadNotifications())
	tr.Close()
}
