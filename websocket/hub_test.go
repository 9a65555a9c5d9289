package websocket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	events   []Event
	writeErr error
	closed   bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.events = append(c.events, v.(Event))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub, cancel
}

func TestHubDeliversToUser(t *testing.T) {
	hub, _ := startHub(t)
	alice, bob := &fakeConn{}, &fakeConn{}
	aliceID, bobID := uuid.New(), uuid.New()
	require.True(t, hub.Join(&Client{UserID: aliceID, Conn: alice}))
	require.True(t, hub.Join(&Client{UserID: bobID, Conn: bob}))

	hub.Publish(aliceID, EventWalletUpdated, map[string]string{"balance": "50.00"})

	assert.Eventually(t, func() bool { return len(alice.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, EventWalletUpdated, alice.received()[0].Type)
	assert.Empty(t, bob.received())
}

func TestHubDropsBrokenConnection(t *testing.T) {
	hub, _ := startHub(t)
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	id := uuid.New()
	require.True(t, hub.Join(&Client{UserID: id, Conn: conn}))

	hub.Publish(id, EventLessonUpdated, nil)
	assert.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
}

func TestHubReplacesOldConnection(t *testing.T) {
	hub, _ := startHub(t)
	id := uuid.New()
	first, second := &fakeConn{}, &fakeConn{}
	require.True(t, hub.Join(&Client{UserID: id, Conn: first}))
	require.True(t, hub.Join(&Client{UserID: id, Conn: second}))
	assert.Eventually(t, first.isClosed, time.Second, 5*time.Millisecond)

	// A late unregister of the old connection keeps the new one.
	hub.Leave(&Client{UserID: id, Conn: first})
	hub.Publish(id, EventPayoutUpdated, nil)
	assert.Eventually(t, func() bool { return len(second.received()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubStop(t *testing.T) {
	hub, cancel := startHub(t)
	conn := &fakeConn{}
	require.True(t, hub.Join(&Client{UserID: uuid.New(), Conn: conn}))

	cancel()
	<-hub.Done()
	assert.True(t, conn.isClosed())
	assert.False(t, hub.Join(&Client{UserID: uuid.New(), Conn: &fakeConn{}}))
	hub.Publish(uuid.New(), EventWalletUpdated, nil)
}
