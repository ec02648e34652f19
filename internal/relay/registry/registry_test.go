package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loggingpkg "github.com/visiona/vlmrelay/internal/relay/logging"
)

// fakeConn records writes and can be scripted to fail.
type fakeConn struct {
	mu       sync.Mutex
	payloads []string
	failWith error
	closed   bool
}

func (c *fakeConn) WriteText(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.payloads...)
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(loggingpkg.NewNopLogger())
	require.NoError(t, err)
	return reg
}

func TestNewRegistryRequiresLogger(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)
}

func TestAddRemoveCount(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Equal(t, 0, reg.Count())

	sub := NewSubscriber("client-1", &fakeConn{})
	reg.Add(sub)
	assert.Equal(t, 1, reg.Count())
	assert.False(t, sub.ConnectedAt.IsZero())

	reg.Remove("client-1")
	assert.Equal(t, 0, reg.Count())
}

func TestRemoveIsIdempotent(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Add(NewSubscriber("client-1", &fakeConn{}))

	reg.Remove("client-1")
	reg.Remove("client-1")
	reg.Remove("never-added")

	assert.Equal(t, 0, reg.Count())
}

func TestSnapshotIsACopy(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Add(NewSubscriber("client-1", &fakeConn{}))

	snap := reg.Snapshot()
	require.Len(t, snap, 1)

	reg.Remove("client-1")
	assert.Len(t, snap, 1, "snapshot must not observe later removals")
	assert.Equal(t, 0, reg.Count())
}

func TestBroadcastDeliversToAll(t *testing.T) {
	reg := newTestRegistry(t)
	conns := make([]*fakeConn, 3)
	for i := range conns {
		conns[i] = &fakeConn{}
		reg.Add(NewSubscriber(fmt.Sprintf("client-%d", i), conns[i]))
	}

	delivered, dropped := reg.Broadcast(`{"type":"vlm_result"}`)

	assert.Equal(t, 3, delivered)
	assert.Equal(t, 0, dropped)
	for _, conn := range conns {
		assert.Equal(t, []string{`{"type":"vlm_result"}`}, conn.received())
	}
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	reg := newTestRegistry(t)
	good1 := &fakeConn{}
	bad := &fakeConn{failWith: errors.New("write timeout")}
	good2 := &fakeConn{}

	goodSub1 := NewSubscriber("good-1", good1)
	reg.Add(goodSub1)
	reg.Add(NewSubscriber("bad", bad))
	reg.Add(NewSubscriber("good-2", good2))

	delivered, dropped := reg.Broadcast("payload")

	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 2, reg.Count(), "only the failing subscriber is removed")
	assert.Equal(t, []string{"payload"}, good1.received())
	assert.Equal(t, []string{"payload"}, good2.received())
	assert.Equal(t, int64(1), goodSub1.MessagesSent())
}

func TestBroadcastEmptyRegistryIsNoOp(t *testing.T) {
	reg := newTestRegistry(t)

	delivered, dropped := reg.Broadcast("payload")

	assert.Equal(t, 0, delivered)
	assert.Equal(t, 0, dropped)
}

func TestBroadcastIncrementsMessagesSent(t *testing.T) {
	reg := newTestRegistry(t)
	sub := NewSubscriber("client-1", &fakeConn{})
	reg.Add(sub)

	reg.Broadcast("one")
	reg.Broadcast("two")

	assert.Equal(t, int64(2), sub.MessagesSent())
}

func TestConcurrentAddRemoveDuringBroadcast(t *testing.T) {
	reg := newTestRegistry(t)
	for i := 0; i < 10; i++ {
		reg.Add(NewSubscriber(fmt.Sprintf("seed-%d", i), &fakeConn{}))
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			reg.Broadcast("payload")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			id := fmt.Sprintf("churn-%d", i)
			reg.Add(NewSubscriber(id, &fakeConn{}))
			reg.Remove(id)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			reg.Count()
			reg.Snapshot()
		}
	}()
	wg.Wait()

	assert.Equal(t, 10, reg.Count())
}
