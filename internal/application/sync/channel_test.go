package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// fakeTransport scripts connect failures and lets tests feed deliveries
// and force drops.
type fakeTransport struct {
	mu           sync.Mutex
	failConnects int
	connects     int
	connectTimes []time.Time
	joins        []Room
	msgs         chan PushMessage
	closed       int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.connectTimes = append(f.connectTimes, time.Now())
	if f.failConnects > 0 {
		f.failConnects--
		return errors.New("connection refused")
	}
	f.msgs = make(chan PushMessage, 16)
	return nil
}

func (f *fakeTransport) Join(_ context.Context, room Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, room)
	return nil
}

func (f *fakeTransport) Messages() <-chan PushMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgs
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) deliver(msg PushMessage) {
	f.mu.Lock()
	ch := f.msgs
	f.mu.Unlock()
	ch <- msg
}

// drop simulates the server closing the connection.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	ch := f.msgs
	f.mu.Unlock()
	close(ch)
}

func (f *fakeTransport) joinCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.joins)
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) connectTime(i int) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectTimes[i]
}

func channelConfig() ChannelConfig {
	return ChannelConfig{ReconnectBase: 5 * time.Millisecond, ReconnectMax: 20 * time.Millisecond}
}

func testRoom() Room {
	return Room{Role: order.RoleRestaurant, OwnerID: "rest-1"}
}

func TestChannel_ForwardsPushFacts(t *testing.T) {
	s := NewStore(zap.NewNop())
	tr := newFakeTransport()
	c := NewChannel(channelConfig(), tr, testRoom(), s, zap.NewNop())

	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool { return c.State() == ChannelJoined }, time.Second, time.Millisecond)

	tr.deliver(PushMessage{Kind: PushNewOrder, Order: makeOrder("o-1", order.StatusPlaced, baseTime)})
	tr.deliver(PushMessage{Kind: PushOrderUpdated, Order: makeOrder("o-1", order.StatusConfirmed, baseTime.Add(time.Second))})

	require.Eventually(t, func() bool {
		got, ok := s.GetByID("o-1")
		return ok && got.Status == order.StatusConfirmed
	}, time.Second, time.Millisecond)
}

// Room membership is not preserved server-side across a disconnect, so the
// join must be re-issued after every reconnect.
func TestChannel_RejoinsAfterDrop(t *testing.T) {
	s := NewStore(zap.NewNop())
	tr := newFakeTransport()
	c := NewChannel(channelConfig(), tr, testRoom(), s, zap.NewNop())

	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool { return tr.joinCount() == 1 }, time.Second, time.Millisecond)

	tr.drop()
	require.Eventually(t, func() bool { return tr.joinCount() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, testRoom(), tr.joins[1])

	// Still functional after the rejoin.
	require.Eventually(t, func() bool { return c.State() == ChannelJoined }, time.Second, time.Millisecond)
	tr.deliver(PushMessage{Kind: PushNewOrder, Order: makeOrder("o-2", order.StatusPlaced, baseTime)})
	require.Eventually(t, func() bool {
		_, ok := s.GetByID("o-2")
		return ok
	}, time.Second, time.Millisecond)
}

func TestChannel_RetriesFailedConnects(t *testing.T) {
	s := NewStore(zap.NewNop())
	tr := newFakeTransport()
	tr.failConnects = 3
	c := NewChannel(channelConfig(), tr, testRoom(), s, zap.NewNop())

	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool { return c.State() == ChannelJoined }, time.Second, time.Millisecond)
	tr.mu.Lock()
	connects := tr.connects
	tr.mu.Unlock()
	assert.Equal(t, 4, connects)
}

func TestChannel_StopTearsDownWithoutRetry(t *testing.T) {
	s := NewStore(zap.NewNop())
	tr := newFakeTransport()
	c := NewChannel(channelConfig(), tr, testRoom(), s, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	require.Eventually(t, func() bool { return c.State() == ChannelJoined }, time.Second, time.Millisecond)

	// Logout: context cancellation tears down immediately.
	cancel()
	require.Eventually(t, func() bool { return c.State() == ChannelDisconnected }, time.Second, time.Millisecond)

	tr.mu.Lock()
	connects := tr.connects
	tr.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	tr.mu.Lock()
	assert.Equal(t, connects, tr.connects)
	tr.mu.Unlock()

	c.Stop()
}

func TestChannel_BackoffDoublesAndCaps(t *testing.T) {
	c := NewChannel(ChannelConfig{ReconnectBase: time.Second, ReconnectMax: 30 * time.Second}, newFakeTransport(), testRoom(), nil, zap.NewNop())

	assert.Equal(t, 1*time.Second, c.backoffDelay(0))
	assert.Equal(t, 2*time.Second, c.backoffDelay(1))
	assert.Equal(t, 4*time.Second, c.backoffDelay(2))
	assert.Equal(t, 16*time.Second, c.backoffDelay(4))
	assert.Equal(t, 30*time.Second, c.backoffDelay(5))
	assert.Equal(t, 30*time.Second, c.backoffDelay(20))
	assert.Equal(t, 30*time.Second, c.backoffDelay(100))
}

// A connection that is accepted and then immediately dropped must not be
// re-dialed in a tight loop: the base reconnect delay applies before the
// first re-dial after any drop.
func TestChannel_DelaysRedialAfterDrop(t *testing.T) {
	s := NewStore(zap.NewNop())
	tr := newFakeTransport()
	cfg := ChannelConfig{ReconnectBase: 60 * time.Millisecond, ReconnectMax: 240 * time.Millisecond}
	c := NewChannel(cfg, tr, testRoom(), s, zap.NewNop())

	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool { return c.State() == ChannelJoined }, time.Second, time.Millisecond)

	dropped := time.Now()
	tr.drop()

	require.Eventually(t, func() bool { return tr.connectCount() == 2 }, time.Second, time.Millisecond)
	elapsed := tr.connectTime(1).Sub(dropped)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond,
		"re-dial after drop fired after %v, want at least the base delay", elapsed)
}
