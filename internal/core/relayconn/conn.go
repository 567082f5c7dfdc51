package relayconn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/eventbus"
	"github.com/dep2p/go-relaypool/internal/core/metrics"
	"github.com/dep2p/go-relaypool/internal/protocol/wire"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
	"github.com/dep2p/go-relaypool/pkg/types"
)

var logger = log.Logger("core/relayconn")

// reconnectJitter 重连间隔随机抖动比例
const reconnectJitter = 0.2

// Options 连接选项
type Options struct {
	// Config 连接参数
	// 默认值：config.DefaultConnectionConfig()
	Config config.ConnectionConfig

	// Clock 时钟，测试中注入 clock.NewMock()
	Clock clock.Clock

	// Bus 可选，发布 EvtConnectionStateChanged
	Bus pkgif.EventBus

	// Metrics 可选
	Metrics *metrics.Metrics
}

// ============================================================================
//                              Conn
// ============================================================================

// Conn 到单个中继的连接
type Conn struct {
	url     types.RelayURL
	dialer  pkgif.Dialer
	handler Handler
	cfg     config.ConnectionConfig
	clock   clock.Clock
	metrics *metrics.Metrics
	emitter pkgif.Emitter

	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32

	cmds      chan func()
	quit      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	// mu 保护快照字段，写入只发生在 actor 中
	mu          sync.RWMutex
	transport   pkgif.Transport
	gen         uint64
	retryCount  int
	lastErr     error
	lastAttempt time.Time
	lastPong    time.Time
	disabled    bool

	// 以下字段只在 actor 中访问
	backoff    *backoff.ExponentialBackOff
	retryTimer *clock.Timer
	retryGen   uint64
	dialCancel context.CancelFunc
	pingStop   chan struct{}
}

// New 创建连接，初始状态为 Disconnected，不会自动拨号
func New(url types.RelayURL, dialer pkgif.Dialer, handler Handler, opts Options) *Conn {
	cfg := opts.Config
	if cfg.ConnectTimeout <= 0 || cfg.ReconnectInitial <= 0 {
		cfg = config.DefaultConnectionConfig()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	if handler == nil {
		handler = func(Event) {}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.ReconnectInitial.Duration()
	bo.MaxInterval = cfg.ReconnectMax.Duration()
	bo.Multiplier = cfg.ReconnectMultiplier
	bo.RandomizationFactor = reconnectJitter
	bo.MaxElapsedTime = 0
	bo.Clock = clk
	bo.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		url:     url,
		dialer:  dialer,
		handler: handler,
		cfg:     cfg,
		clock:   clk,
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		cmds:    make(chan func()),
		quit:    make(chan struct{}),
		exited:  make(chan struct{}),
		backoff: bo,
	}
	c.state.Store(int32(types.StateDisconnected))

	if opts.Bus != nil {
		em, err := opts.Bus.Emitter(new(eventbus.EvtConnectionStateChanged))
		if err != nil {
			logger.Warn("创建状态事件发射器失败", "relay", url.String(), "error", err)
		} else {
			c.emitter = em
		}
	}

	go c.run()
	return c
}

// URL 中继地址
func (c *Conn) URL() types.RelayURL {
	return c.url
}

// State 当前连接状态
func (c *Conn) State() types.ConnectionState {
	return types.ConnectionState(c.state.Load())
}

// IsConnected 是否已连接
func (c *Conn) IsConnected() bool {
	return c.State() == types.StateConnected
}

// RetryCount 自上次连接成功以来的失败次数
func (c *Conn) RetryCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retryCount
}

// LastError 最近一次断开或拨号失败的原因
func (c *Conn) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastConnectionAttempt 最近一次拨号时间
func (c *Conn) LastConnectionAttempt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastAttempt
}

// Info 返回状态快照
func (c *Conn) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Info{
		URL:         c.url,
		State:       c.State(),
		RetryCount:  c.retryCount,
		LastError:   c.lastErr,
		LastAttempt: c.lastAttempt,
		LastPong:    c.lastPong,
		Disabled:    c.disabled,
	}
}

// IsStaleConnecting 是否处于 Connecting 且已超过 threshold
func (c *Conn) IsStaleConnecting(now time.Time, threshold time.Duration) bool {
	if c.State() != types.StateConnecting {
		return false
	}
	return now.Sub(c.LastConnectionAttempt()) > threshold
}

// ============================================================================
//                              控制操作
// ============================================================================

// Connect 发起连接
//
// force 为 false 时，已连接或正在连接则忽略；
// force 为 true 时丢弃当前传输重新拨号。
func (c *Conn) Connect(force bool) {
	c.call(func() {
		state := c.State()
		if !force && (state == types.StateConnected || state == types.StateConnecting) {
			return
		}
		c.dropTransport()
		c.startDial()
	})
}

// Disconnect 主动断开，不会自动重连
func (c *Conn) Disconnect() {
	c.call(func() {
		c.stopRetry()
		c.dropTransport()
		c.setState(types.StateDisconnected, nil)
	})
}

// Reconnect 在未连接、未在连接中且未被禁用时立即重新拨号
func (c *Conn) Reconnect() {
	c.call(func() {
		state := c.State()
		if c.isDisabled() || state == types.StateConnecting || state == types.StateConnected {
			logger.Debug("跳过重连", "relay", c.url.String(), "state", state.String())
			return
		}
		c.dropTransport()
		c.startDial()
	})
}

// DisablePermanently 禁止之后的自动重连和 Reconnect
func (c *Conn) DisablePermanently() {
	c.call(func() {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.stopRetry()
	})
}

// Close 关闭连接并停止 actor，可重复调用
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.call(func() {
			c.stopRetry()
			c.dropTransport()
			c.setState(types.StateDisconnected, nil)
		})
		close(c.quit)
		<-c.exited
		c.cancel()
		if c.emitter != nil {
			c.emitter.Close()
		}
	})
	return nil
}

// ============================================================================
//                              数据操作
// ============================================================================

// Send 发送一个原始帧
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if c.State() != types.StateConnected {
		return ErrNotConnected
	}
	tr, _ := c.current()
	if tr == nil {
		return ErrNotConnected
	}
	if err := tr.Send(ctx, data); err != nil {
		return fmt.Errorf("relayconn: send to %s: %w", c.url, err)
	}
	c.metrics.BytesSent(c.url, len(data))
	return nil
}

// SendRequest 编码并发送请求
func (c *Conn) SendRequest(ctx context.Context, req wire.Request) error {
	data, err := wire.Encode(req)
	if err != nil {
		return err
	}
	return c.Send(ctx, data)
}

// Ping 发送保活探测
//
// 探测失败时断开当前传输并按退避重连。
func (c *Conn) Ping(ctx context.Context) error {
	tr, gen := c.current()
	if tr == nil {
		return ErrNotConnected
	}

	pctx, cancel := context.WithTimeout(ctx, c.cfg.PingTimeout.Duration())
	defer cancel()

	if err := tr.Ping(pctx); err != nil {
		logger.Info("ping 失败，准备重连", "relay", c.url.String(), "error", err)
		c.submit(func() { c.onTransportLost(gen, err) })
		return err
	}

	c.mu.Lock()
	c.lastPong = c.clock.Now()
	c.mu.Unlock()
	logger.Debug("收到 pong", "relay", c.url.String())
	return nil
}

// ============================================================================
//                              actor
// ============================================================================

func (c *Conn) run() {
	defer close(c.exited)
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.quit:
			return
		}
	}
}

// submit 把 fn 交给 actor 执行，不等待完成
func (c *Conn) submit(fn func()) bool {
	select {
	case c.cmds <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// call 把 fn 交给 actor 执行并等待完成
func (c *Conn) call(fn func()) bool {
	done := make(chan struct{})
	if !c.submit(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-c.quit:
		return false
	}
}

func (c *Conn) current() (pkgif.Transport, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport, c.gen
}

func (c *Conn) isDisabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disabled
}

// setState 仅在 actor 中调用
func (c *Conn) setState(next types.ConnectionState, cause error) {
	prev := types.ConnectionState(c.state.Swap(int32(next)))
	if prev == next {
		return
	}
	logger.Debug("连接状态变化", "relay", c.url.String(), "from", prev.String(), "to", next.String())
	c.metrics.ConnectionState(c.url, next)
	if c.emitter != nil {
		c.emitter.Emit(eventbus.EvtConnectionStateChanged{
			Relay: c.url,
			Old:   prev,
			New:   next,
			Err:   cause,
			At:    c.clock.Now(),
		})
	}
}

// startDial 开始一次新的拨号，旧拨号结果随 gen 递增作废
func (c *Conn) startDial() {
	c.stopRetry()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.lastAttempt = c.clock.Now()
	c.mu.Unlock()

	c.setState(types.StateConnecting, nil)

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ConnectTimeout.Duration())
	c.dialCancel = cancel

	go func() {
		defer cancel()
		tr, err := c.dialer.Dial(ctx, c.url)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: dial %s: %w", ErrTimeout, c.url, err)
		}
		if err != nil && !errors.Is(ctx.Err(), context.Canceled) {
			c.handler(Event{Kind: EventError, Relay: c.url, Err: err})
		}
		if !c.submit(func() { c.onDialResult(gen, tr, err) }) && tr != nil {
			tr.Close()
		}
	}()
}

func (c *Conn) onDialResult(gen uint64, tr pkgif.Transport, err error) {
	c.mu.RLock()
	stale := gen != c.gen
	c.mu.RUnlock()
	if stale {
		if tr != nil {
			tr.Close()
		}
		return
	}
	c.dialCancel = nil

	if err != nil {
		logger.Warn("连接中继失败", "relay", c.url.String(), "error", err)
		c.mu.Lock()
		c.retryCount++
		c.lastErr = err
		c.mu.Unlock()
		c.setState(types.StateFailed, err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	c.transport = tr
	c.retryCount = 0
	c.lastErr = nil
	c.mu.Unlock()
	c.backoff.Reset()

	c.setState(types.StateConnected, nil)
	logger.Info("已连接中继", "relay", c.url.String())

	go c.readLoop(gen, tr)
	c.startPing()
}

// onTransportLost 处理读失败或 ping 失败，gen 不匹配时忽略
func (c *Conn) onTransportLost(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.transport == nil {
		c.mu.Unlock()
		return
	}
	tr := c.transport
	c.transport = nil
	c.lastErr = cause
	c.mu.Unlock()

	c.stopPing()
	tr.Close()
	logger.Info("中继连接断开", "relay", c.url.String(), "error", cause)
	c.setState(types.StateDisconnected, cause)
	c.scheduleReconnect()
}

// dropTransport 作废当前拨号与传输
func (c *Conn) dropTransport() {
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	c.stopPing()

	c.mu.Lock()
	tr := c.transport
	c.transport = nil
	c.gen++
	c.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
}

func (c *Conn) scheduleReconnect() {
	if c.isDisabled() || c.ctx.Err() != nil {
		return
	}
	delay := c.backoff.NextBackOff()
	if delay == backoff.Stop {
		return
	}
	c.stopRetry()
	c.retryGen++
	rg := c.retryGen
	logger.Debug("计划重连", "relay", c.url.String(), "delay", delay)
	c.retryTimer = c.clock.AfterFunc(delay, func() {
		c.submit(func() {
			if rg != c.retryGen {
				return
			}
			c.retryTimer = nil
			state := c.State()
			if c.isDisabled() || state == types.StateConnected || state == types.StateConnecting {
				return
			}
			c.startDial()
		})
	})
}

func (c *Conn) stopRetry() {
	c.retryGen++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Conn) startPing() {
	interval := c.cfg.PingInterval.Duration()
	if interval <= 0 {
		return
	}
	stop := make(chan struct{})
	c.pingStop = stop
	ticker := c.clock.Ticker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Ping(c.ctx)
			case <-stop:
				return
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

func (c *Conn) stopPing() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}

// readLoop 读取一条传输上的所有帧，直到传输关闭
func (c *Conn) readLoop(gen uint64, tr pkgif.Transport) {
	c.handler(Event{Kind: EventConnected, Relay: c.url})

	for {
		frame, err := tr.Receive(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				err = ErrClosed
			}
			c.call(func() { c.onTransportLost(gen, err) })
			c.handler(Event{Kind: EventDisconnected, Relay: c.url, Err: err})
			return
		}
		c.metrics.BytesReceived(c.url, len(frame))

		resp, err := wire.DecodeResponse(frame)
		if err != nil {
			if errors.Is(err, wire.ErrMalformedMessage) {
				c.metrics.MalformedFrame(c.url)
			}
			logger.Debug("丢弃无法解析的帧", "relay", c.url.String(), "error", err)
			continue
		}
		c.handler(Event{Kind: EventMessage, Relay: c.url, Response: resp})
	}
}
