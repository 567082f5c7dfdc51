package netmon

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/pkg/types"
	"github.com/dep2p/go-relaypool/tests/mocks"
)

// fakeSource 可修改的网卡列表
type fakeSource struct {
	mu     sync.Mutex
	ifaces []Interface
	err    error
	reads  int
}

func (f *fakeSource) read() ([]Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return append([]Interface(nil), f.ifaces...), f.err
}

func (f *fakeSource) set(ifaces ...Interface) {
	f.mu.Lock()
	f.ifaces = ifaces
	f.mu.Unlock()
}

var (
	loopback = Interface{Name: "lo", Flags: net.FlagUp | net.FlagLoopback, Addrs: []string{"127.0.0.1/8"}}
	wifiUp   = Interface{Name: "wlan0", Flags: net.FlagUp, Addrs: []string{"192.168.1.20/24", "fe80::1/64"}}
	wifiDown = Interface{Name: "wlan0", Flags: 0, Addrs: []string{"192.168.1.20/24"}}
	linkOnly = Interface{Name: "eth0", Flags: net.FlagUp, Addrs: []string{"fe80::2/64"}}
)

func newTestMonitor(t *testing.T, src *fakeSource) (*PollingMonitor, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	m := NewPollingMonitor(Options{
		Config: config.NetworkConfig{Enabled: true, PollInterval: config.Duration(5 * time.Second), Debounce: config.Duration(500 * time.Millisecond)},
		Source: src.read,
		Clock:  clk,
	})
	t.Cleanup(func() { m.Stop() })
	return m, clk
}

func next(t *testing.T, ch <-chan types.NetworkStatus) types.NetworkStatus {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no status update")
		return 0
	}
}

func TestEvaluate(t *testing.T) {
	assert.Equal(t, types.NetworkSatisfied, evaluate([]Interface{loopback, wifiUp}))
	assert.Equal(t, types.NetworkUnsatisfied, evaluate([]Interface{loopback}))
	assert.Equal(t, types.NetworkUnsatisfied, evaluate([]Interface{wifiDown}))
	assert.Equal(t, types.NetworkUnsatisfied, evaluate([]Interface{linkOnly}))
	assert.Equal(t, types.NetworkSatisfied, evaluate([]Interface{{Name: "x", Flags: net.FlagUp, Addrs: []string{"2001:db8::1"}}}))
}

func TestFingerprint_IgnoresOrderAndLoopback(t *testing.T) {
	a := Interface{Name: "a", Flags: net.FlagUp, Addrs: []string{"10.0.0.1/8", "10.0.0.2/8"}}
	b := Interface{Name: "b", Flags: net.FlagUp, Addrs: []string{"10.1.0.1/8"}}
	reordered := Interface{Name: "a", Flags: net.FlagUp, Addrs: []string{"10.0.0.2/8", "10.0.0.1/8"}}

	assert.Equal(t, fingerprint([]Interface{a, b}), fingerprint([]Interface{b, reordered, loopback}))
	assert.NotEqual(t, fingerprint([]Interface{a}), fingerprint([]Interface{a, b}))
}

func TestPollingMonitor_InitialStatus(t *testing.T) {
	src := &fakeSource{ifaces: []Interface{loopback, wifiUp}}
	m, _ := newTestMonitor(t, src)

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, types.NetworkSatisfied, next(t, m.Updates()))
	assert.Equal(t, types.NetworkSatisfied, m.CurrentStatus())
}

func TestPollingMonitor_DetectsChangeAfterDebounce(t *testing.T) {
	src := &fakeSource{ifaces: []Interface{loopback, wifiUp}}
	m, clk := newTestMonitor(t, src)
	require.NoError(t, m.Start(context.Background()))
	next(t, m.Updates())

	src.set(loopback, wifiDown)
	m.poll()
	require.True(t, m.debouncer.Pending())

	// 防抖期间状态不变
	assert.Equal(t, types.NetworkSatisfied, m.CurrentStatus())

	clk.Add(500 * time.Millisecond)
	assert.Equal(t, types.NetworkUnsatisfied, next(t, m.Updates()))
	assert.Equal(t, types.NetworkUnsatisfied, m.CurrentStatus())
}

func TestPollingMonitor_PollLoop(t *testing.T) {
	src := &fakeSource{ifaces: []Interface{wifiUp}}
	m, clk := newTestMonitor(t, src)
	require.NoError(t, m.Start(context.Background()))
	next(t, m.Updates())

	src.set(wifiDown)
	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		return m.CurrentStatus() == types.NetworkUnsatisfied
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, types.NetworkUnsatisfied, next(t, m.Updates()))
}

func TestPollingMonitor_UnchangedPollDoesNothing(t *testing.T) {
	src := &fakeSource{ifaces: []Interface{wifiUp}}
	m, _ := newTestMonitor(t, src)
	require.NoError(t, m.Start(context.Background()))

	m.poll()
	assert.False(t, m.debouncer.Pending())
}

func TestPollingMonitor_FingerprintChangeWithoutStatusChange(t *testing.T) {
	src := &fakeSource{ifaces: []Interface{wifiUp}}
	m, clk := newTestMonitor(t, src)
	require.NoError(t, m.Start(context.Background()))
	next(t, m.Updates())

	src.set(wifiUp, Interface{Name: "eth1", Flags: net.FlagUp, Addrs: []string{"10.0.0.5/8"}})
	m.NotifyChange()
	clk.Add(500 * time.Millisecond)

	select {
	case s := <-m.Updates():
		t.Fatalf("unexpected update %s", s)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPollingMonitor_NotifyChangeCoalesces(t *testing.T) {
	src := &fakeSource{ifaces: []Interface{wifiUp}}
	m, clk := newTestMonitor(t, src)
	require.NoError(t, m.Start(context.Background()))
	next(t, m.Updates())

	src.set(linkOnly)
	before := func() int { src.mu.Lock(); defer src.mu.Unlock(); return src.reads }()
	for i := 0; i < 10; i++ {
		m.NotifyChange()
	}
	clk.Add(500 * time.Millisecond)

	assert.Equal(t, types.NetworkUnsatisfied, next(t, m.Updates()))
	src.mu.Lock()
	assert.Equal(t, before+1, src.reads)
	src.mu.Unlock()
}

func TestPollingMonitor_UpdatesKeepLatest(t *testing.T) {
	src := &fakeSource{ifaces: []Interface{wifiUp}}
	m, clk := newTestMonitor(t, src)
	require.NoError(t, m.Start(context.Background()))

	// 不读取初始状态，后续变化覆盖旧值
	src.set(linkOnly)
	m.NotifyChange()
	clk.Add(500 * time.Millisecond)

	assert.Equal(t, types.NetworkUnsatisfied, next(t, m.Updates()))
	select {
	case s := <-m.Updates():
		t.Fatalf("stale update %s", s)
	default:
	}
}

func TestPollingMonitor_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	m, _ := newTestMonitor(t, src)
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, types.NetworkUnsatisfied, next(t, m.Updates()))
}

func TestPollingMonitor_StopClosesUpdates(t *testing.T) {
	src := &fakeSource{ifaces: []Interface{wifiUp}}
	m, _ := newTestMonitor(t, src)
	require.NoError(t, m.Start(context.Background()))
	next(t, m.Updates())

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	_, ok := <-m.Updates()
	assert.False(t, ok)

	// 停止后 NotifyChange 不再投递
	m.NotifyChange()
}

// ============================================================================

type recordingHandler struct {
	mu  sync.Mutex
	got []types.NetworkStatus
}

func (h *recordingHandler) HandleConnectivityChange(s types.NetworkStatus) {
	h.mu.Lock()
	h.got = append(h.got, s)
	h.mu.Unlock()
}

func (h *recordingHandler) snapshot() []types.NetworkStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.NetworkStatus(nil), h.got...)
}

func TestBridge_ForwardsUpdates(t *testing.T) {
	mon := mocks.NewMockReachability()
	h := &recordingHandler{}
	b := NewBridge(mon, h)
	b.Start(context.Background())
	b.Start(context.Background())

	mon.Set(types.NetworkUnsatisfied)
	mon.Set(types.NetworkSatisfied)

	require.Eventually(t, func() bool { return len(h.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []types.NetworkStatus{types.NetworkUnsatisfied, types.NetworkSatisfied}, h.snapshot())

	b.Stop()
	b.Stop()
}

func TestBridge_ExitsWhenMonitorStops(t *testing.T) {
	mon := mocks.NewMockReachability()
	b := NewBridge(mon, &recordingHandler{})
	b.Start(context.Background())

	require.NoError(t, mon.Stop())
	select {
	case <-b.done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge still running")
	}
}
