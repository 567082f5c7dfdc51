package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-relaypool/internal/core/relayconn"
	"github.com/dep2p/go-relaypool/internal/protocol/wire"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/types"
	"github.com/dep2p/go-relaypool/tests/mocks"
)

// collect 读取直到 EOSE，返回消息与 EOSE
func collect(t *testing.T, sub *Subscription) ([]types.StreamItem, types.StreamItem) {
	t.Helper()
	var events []types.StreamItem
	timeout := time.After(waitFor)
	for {
		select {
		case item, ok := <-sub.Items():
			require.True(t, ok, "stream closed before EOSE")
			if item.IsEOSE() {
				return events, item
			}
			events = append(events, item)
		case <-timeout:
			t.Fatalf("no EOSE after %d events", len(events))
		}
	}
}

func assertQuiet(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case item, ok := <-sub.Items():
		if ok {
			t.Fatalf("unexpected item %+v", item)
		}
	case <-time.After(30 * time.Millisecond):
	}
}

func eventIDs(items []types.StreamItem) []types.NoteID {
	out := make([]types.NoteID, 0, len(items))
	for _, it := range items {
		out = append(out, it.Event.ID)
	}
	return out
}

func TestSubscribe_RequiresFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.pool.Subscribe(context.Background(), nil, nil, SubscribeOptions{})
	assert.ErrorIs(t, err, ErrNoFilters)
}

func TestSubscribe_DedupAcrossRelaysAndSingleEOSE(t *testing.T) {
	ev1, ev2 := testEvent(1, 1), testEvent(2, 1)
	env := newTestEnv(t, mocks.Responder(ev1, ev2))
	p := env.pool
	env.add(t, types.NewRelayDescriptor(relayA), types.NewRelayDescriptor(relayB))
	p.Connect(nil)
	env.waitConnected(t, relayA, relayB)

	sub, err := p.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, nil, SubscribeOptions{Mode: types.DeliveryNetworkOnly})
	require.NoError(t, err)
	defer sub.Cancel()

	events, eose := collect(t, sub)
	assert.ElementsMatch(t, []types.NoteID{ev1.ID, ev2.ID}, eventIDs(events))
	assert.False(t, eose.TimedOut)
	assert.ElementsMatch(t, []types.RelayURL{relayA, relayB}, eose.Completed)

	// 另一个中继的重复消息与 EOSE 都不再出现
	assertQuiet(t, sub)
	assert.Len(t, sub.ID(), 36)
}

func TestSubscribe_EOSETimeout(t *testing.T) {
	ev := testEvent(1, 1)
	env := newTestEnv(t, nil)
	p := env.pool
	env.dialer.OnDial = func(u types.RelayURL, tr *mocks.MockTransport) {
		if u == relayA {
			tr.OnSend = mocks.Responder(ev)
		} else {
			tr.OnSend = mocks.SilentResponder()
		}
	}
	env.add(t, types.NewRelayDescriptor(relayA), types.NewRelayDescriptor(relayB))
	p.Connect(nil)
	env.waitConnected(t, relayA, relayB)

	sub, err := p.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, nil, SubscribeOptions{
		Mode:        types.DeliveryNetworkOnly,
		EOSETimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	defer sub.Cancel()

	select {
	case item := <-sub.Items():
		require.False(t, item.IsEOSE())
		assert.Equal(t, ev.ID, item.Event.ID)
		assert.Equal(t, relayA, item.Relay)
	case <-time.After(waitFor):
		t.Fatal("no event")
	}
	// relayB 仍未报告 EOSE
	assertQuiet(t, sub)

	env.clock.Add(3 * time.Second)
	_, eose := collect(t, sub)
	assert.True(t, eose.TimedOut)
	assert.Equal(t, []types.RelayURL{relayA}, eose.Completed)
	assertQuiet(t, sub)
}

func TestSubscribe_NoTargetsCompletesImmediately(t *testing.T) {
	env := newTestEnv(t, nil)
	sub, err := env.pool.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, nil, SubscribeOptions{})
	require.NoError(t, err)
	defer sub.Cancel()

	events, eose := collect(t, sub)
	assert.Empty(t, events)
	assert.False(t, eose.TimedOut)
	assert.Empty(t, eose.Completed)
}

func TestSubscribe_StoreOnly(t *testing.T) {
	ev := testEvent(1, 1)
	store := mocks.NewMockEventStore(ev)
	env := newTestEnv(t, mocks.Responder(), func(o *Options) { o.Store = store })
	p := env.pool
	env.add(t, types.NewRelayDescriptor(relayA))

	filter := types.Filter{IDs: []types.NoteID{ev.ID, {0xff}}}
	sub, err := p.Subscribe(context.Background(), []types.Filter{filter}, nil, SubscribeOptions{Mode: types.DeliveryStoreOnly})
	require.NoError(t, err)

	events, eose := collect(t, sub)
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].Event.ID)
	assert.True(t, events[0].Relay.IsZero())
	assert.False(t, eose.TimedOut)

	// 回放结束后流关闭，不触达网络
	select {
	case _, ok := <-sub.Items():
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("stream not closed")
	}
	assert.Zero(t, env.dialer.Dials(relayA))
}

func TestSubscribe_ParallelMergesStoreAndNetwork(t *testing.T) {
	local, remote := testEvent(1, 1), testEvent(2, 1)
	store := mocks.NewMockEventStore(local)
	env := newTestEnv(t, mocks.Responder(local, remote), func(o *Options) { o.Store = store })
	p := env.pool
	env.add(t, types.NewRelayDescriptor(relayA))

	filter := types.Filter{IDs: []types.NoteID{local.ID, remote.ID}}
	sub, err := p.Subscribe(context.Background(), []types.Filter{filter}, nil, SubscribeOptions{})
	require.NoError(t, err)
	defer sub.Cancel()

	events, eose := collect(t, sub)
	assert.ElementsMatch(t, []types.NoteID{local.ID, remote.ID}, eventIDs(events))
	assert.False(t, eose.TimedOut)
	assert.Equal(t, []types.RelayURL{relayA}, eose.Completed)
}

func TestSubscribe_CancelSendsCloseAndKeepsConnection(t *testing.T) {
	env := newTestEnv(t, mocks.Responder())
	p := env.pool
	env.add(t, types.NewRelayDescriptor(relayA))
	p.Connect(nil)
	env.waitConnected(t, relayA)

	sub, err := p.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, nil, SubscribeOptions{ID: "mine"})
	require.NoError(t, err)
	collect(t, sub)
	assert.Equal(t, 1, p.HandlerCount())

	sub.Cancel()
	sub.Cancel()
	_, ok := <-sub.Items()
	assert.False(t, ok)
	assert.Zero(t, p.HandlerCount())

	closes := sentOfType(env.dialer.Last(relayA), wire.TypeClose)
	require.Len(t, closes, 1)
	assert.Equal(t, "mine", mocks.FrameSubID(closes[0]))
	assert.True(t, p.IsConnected(relayA))
}

func TestSubscribe_ContextCancel(t *testing.T) {
	env := newTestEnv(t, mocks.SilentResponder())
	p := env.pool
	env.add(t, types.NewRelayDescriptor(relayA))

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := p.Subscribe(ctx, []types.Filter{{Kinds: []int{1}}}, nil, SubscribeOptions{})
	require.NoError(t, err)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(waitFor):
		t.Fatal("subscription not cancelled")
	}
	require.Eventually(t, func() bool { return p.HandlerCount() == 0 }, waitFor, tick)
}

func TestSubscribe_ExplicitTargetsAreLeased(t *testing.T) {
	env := newTestEnv(t, mocks.Responder())
	p := env.pool
	env.add(t, types.NewRelayDescriptor(relayA))

	sub, err := p.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, []types.RelayURL{relayC}, SubscribeOptions{})
	require.NoError(t, err)
	_, eose := collect(t, sub)
	assert.Equal(t, []types.RelayURL{relayC}, eose.Completed)

	desc, ok := p.Descriptor(relayC)
	require.True(t, ok)
	assert.True(t, desc.Ephemeral())
	assert.Equal(t, 1, p.Leases(relayC))
	assert.Zero(t, env.dialer.Dials(relayA))

	sub.Cancel()
	assert.Zero(t, p.Leases(relayC))
	env.clock.Add(time.Second)
	require.Eventually(t, func() bool {
		_, ok := p.Descriptor(relayC)
		return !ok
	}, waitFor, tick)
}

func TestSubscribe_ConcurrencyLimit(t *testing.T) {
	env := newTestEnv(t, mocks.SilentResponder(), func(o *Options) { o.Config.MaxConcurrentSubscriptions = 1 })
	p := env.pool
	filters := []types.Filter{{Kinds: []int{1}}}

	first, err := p.Subscribe(context.Background(), filters, nil, SubscribeOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Subscribe(ctx, filters, nil, SubscribeOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// StoreOnly 不占用网络订阅名额
	local, err := p.Subscribe(context.Background(), []types.Filter{{IDs: []types.NoteID{{1}}}}, nil, SubscribeOptions{Mode: types.DeliveryStoreOnly})
	require.NoError(t, err)
	collect(t, local)

	first.Cancel()
	second, err := p.Subscribe(context.Background(), filters, nil, SubscribeOptions{})
	require.NoError(t, err)
	second.Cancel()
}

// ============================================================================
//                              EOSE 了结
// ============================================================================

// 连接中的目标未报告前不发出 EOSE，EOSE 排在它的消息之后
func TestSubscribe_EOSEWaitsForConnectingTarget(t *testing.T) {
	ev1, ev2 := testEvent(1, 1), testEvent(2, 1)
	env := newTestEnv(t, nil)
	p := env.pool

	release := make(chan struct{})
	env.dialer.DialFunc = func(ctx context.Context, u types.RelayURL) (pkgif.Transport, error) {
		tr := mocks.NewMockTransport(u)
		if u != relayC {
			tr.OnSend = mocks.Responder(ev1)
			return tr, nil
		}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		tr.OnSend = mocks.Responder(ev2)
		return tr, nil
	}
	env.add(t, types.NewRelayDescriptor(relayA), types.NewRelayDescriptor(relayC))
	p.Connect([]types.RelayURL{relayA})
	env.waitConnected(t, relayA)

	eoseFromA := make(chan struct{}, 4)
	remove := p.AddListener(func(relay types.RelayURL, ev relayconn.Event) {
		if relay == relayA && ev.Response != nil && ev.Response.Type == wire.TypeEOSE {
			eoseFromA <- struct{}{}
		}
	})
	defer remove()

	sub, err := p.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, []types.RelayURL{relayA, relayC}, SubscribeOptions{
		Mode: types.DeliveryNetworkOnly,
	})
	require.NoError(t, err)
	defer sub.Cancel()

	select {
	case item := <-sub.Items():
		require.False(t, item.IsEOSE(), "EOSE before the connecting relay answered")
		assert.Equal(t, ev1.ID, item.Event.ID)
	case <-time.After(waitFor):
		t.Fatal("no event from relayA")
	}
	select {
	case <-eoseFromA:
	case <-time.After(waitFor):
		t.Fatal("relayA never sent EOSE")
	}
	st, ok := p.Status(relayC)
	require.True(t, ok)
	assert.Equal(t, types.StateConnecting, st.State)
	assertQuiet(t, sub)

	close(release)
	events, eose := collect(t, sub)
	assert.Equal(t, []types.NoteID{ev2.ID}, eventIDs(events))
	assert.False(t, eose.TimedOut)
	assert.ElementsMatch(t, []types.RelayURL{relayA, relayC}, eose.Completed)
	assertQuiet(t, sub)
}

func TestSubscribe_FailedTargetSettlesWithoutTimeout(t *testing.T) {
	ev := testEvent(1, 1)
	env := newTestEnv(t, mocks.Responder(ev))
	p := env.pool
	env.dialer.SetFailure(relayC, errors.New("connection refused"))
	env.add(t, types.NewRelayDescriptor(relayA), types.NewRelayDescriptor(relayC))
	p.Connect([]types.RelayURL{relayA})
	env.waitConnected(t, relayA)

	sub, err := p.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, []types.RelayURL{relayA, relayC}, SubscribeOptions{
		Mode: types.DeliveryNetworkOnly,
	})
	require.NoError(t, err)
	defer sub.Cancel()

	events, eose := collect(t, sub)
	assert.Equal(t, []types.NoteID{ev.ID}, eventIDs(events))
	assert.False(t, eose.TimedOut)
	assert.Equal(t, []types.RelayURL{relayA}, eose.Completed)
}

func TestSubscribe_RemovedTargetSettles(t *testing.T) {
	ev := testEvent(1, 1)
	env := newTestEnv(t, nil)
	p := env.pool
	env.dialer.OnDial = func(u types.RelayURL, tr *mocks.MockTransport) {
		if u == relayA {
			tr.OnSend = mocks.Responder(ev)
		} else {
			tr.OnSend = mocks.SilentResponder()
		}
	}
	env.add(t, types.NewRelayDescriptor(relayA), types.NewRelayDescriptor(relayB))
	p.Connect(nil)
	env.waitConnected(t, relayA, relayB)

	sub, err := p.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, nil, SubscribeOptions{
		Mode: types.DeliveryNetworkOnly,
	})
	require.NoError(t, err)
	defer sub.Cancel()

	select {
	case item := <-sub.Items():
		require.False(t, item.IsEOSE())
	case <-time.After(waitFor):
		t.Fatal("no event")
	}
	assertQuiet(t, sub)

	require.NoError(t, p.RemoveRelay(relayB))
	_, eose := collect(t, sub)
	assert.False(t, eose.TimedOut)
	assert.Equal(t, []types.RelayURL{relayA}, eose.Completed)
}

// 最后一个中继的 EOSE 与超时同时到达，只发出一个 EOSE
func TestSubscribe_SingleEOSEWhenLastReportRacesTimeout(t *testing.T) {
	env := newTestEnv(t, mocks.SilentResponder())
	p := env.pool
	env.add(t, types.NewRelayDescriptor(relayA))
	p.Connect(nil)
	env.waitConnected(t, relayA)
	tr := env.dialer.Last(relayA)

	for round := 0; round < 10; round++ {
		id := fmt.Sprintf("race-%d", round)
		sub, err := p.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, nil, SubscribeOptions{
			Mode:        types.DeliveryNetworkOnly,
			EOSETimeout: time.Second,
			ID:          id,
		})
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			for _, f := range sentOfType(tr, wire.TypeReq) {
				if mocks.FrameSubID(f) == id {
					return true
				}
			}
			return false
		}, waitFor, tick)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Push(mocks.EOSEFrame(id))
		}()
		go func() {
			defer wg.Done()
			env.clock.Add(time.Second)
		}()
		wg.Wait()

		events, _ := collect(t, sub)
		assert.Empty(t, events)
		assertQuiet(t, sub)
		sub.Cancel()
	}
}

// ============================================================================
//                              投递
// ============================================================================

// 不读取的订阅不会阻塞中继的读 goroutine，其他消息照常分发
func TestSubscribe_UnreadStreamDoesNotStallRelay(t *testing.T) {
	const n = 300
	env := newTestEnv(t, mocks.SilentResponder())
	p := env.pool
	env.add(t, types.NewRelayDescriptor(relayA))
	p.Connect(nil)
	env.waitConnected(t, relayA)
	tr := env.dialer.Last(relayA)

	sub, err := p.Subscribe(context.Background(), []types.Filter{{Kinds: []int{1}}}, nil, SubscribeOptions{
		Mode: types.DeliveryNetworkOnly,
		ID:   "unread",
	})
	require.NoError(t, err)
	defer sub.Cancel()
	require.Eventually(t, func() bool { return len(sentOfType(tr, wire.TypeReq)) == 1 }, waitFor, tick)

	var oks atomic.Int32
	remove := p.AddListener(func(_ types.RelayURL, ev relayconn.Event) {
		if ev.Response != nil && ev.Response.Type == wire.TypeOK {
			oks.Add(1)
		}
	})
	defer remove()

	go func() {
		for i := 0; i < n; i++ {
			ev := &types.Event{ID: types.NoteID{byte(i), byte(i >> 8), 0xee}, PubKey: "pk", Kind: 1, CreatedAt: int64(i)}
			tr.Push(mocks.EventFrame("unread", ev))
		}
		tr.Push(mocks.OKFrame(testEvent(0xff, 1).ID.String(), true, ""))
	}()
	require.Eventually(t, func() bool { return oks.Load() == 1 }, time.Second, tick, "OK frame stuck behind an unread subscription")

	// 积压的消息按到达顺序全部送达
	for i := 0; i < n; i++ {
		select {
		case item := <-sub.Items():
			require.False(t, item.IsEOSE())
			require.Equal(t, types.NoteID{byte(i), byte(i >> 8), 0xee}, item.Event.ID)
		case <-time.After(waitFor):
			t.Fatalf("only %d of %d events delivered", i, n)
		}
	}
}
