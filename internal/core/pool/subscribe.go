package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-relaypool/internal/core/eventcache"
	"github.com/dep2p/go-relaypool/internal/core/relayconn"
	"github.com/dep2p/go-relaypool/internal/protocol/wire"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// ErrNoFilters 订阅没有过滤器
var ErrNoFilters = errors.New("pool: subscription requires at least one filter")

// closeTimeout 取消订阅时发送 CLOSE 的超时
const closeTimeout = 5 * time.Second

// SubscribeOptions 订阅选项
type SubscribeOptions struct {
	// Mode 投递模式
	// 默认值：DeliveryParallel
	Mode types.DeliveryMode

	// EOSETimeout 等待所有中继 EOSE 的上限，0 使用配置值
	EOSETimeout time.Duration

	// ID 订阅 ID，空时生成 UUID
	ID string
}

// Subscription 流式订阅
//
// Items 返回的通道按到达顺序投递去重后的消息，以及恰好一个 EOSE；
// 订阅结束（Cancel、ctx 结束，或 StoreOnly 回放完成）后通道关闭。
//
// 网络订阅的消息先进入不限长的积压队列，由独立 goroutine 搬运到 Items，
// 读取慢的调用方不会阻塞中继的读 goroutine。
type Subscription struct {
	id      string
	pool    *Pool
	mode    types.DeliveryMode
	filters []types.Filter
	targets []types.RelayURL
	leased  []types.RelayURL
	seen    *eventcache.Cache

	out  chan types.StreamItem
	done chan struct{}

	// wake 积压队列非空的信号；pumped 在搬运 goroutine 退出时关闭
	wake   chan struct{}
	pumped chan struct{}

	mu       sync.Mutex
	backlog  []types.StreamItem
	eosed    map[types.RelayURL]struct{}
	failed   map[types.RelayURL]struct{}
	ready    bool
	eoseSent bool
	closing  bool
	timer    *clock.Timer
	inflight sync.WaitGroup

	cancelOnce sync.Once
}

// Subscribe 向目标中继订阅，targets 为 nil 表示全部非临时可读中继
//
// 显式指定但不在池中的中继以临时中继加入，订阅期间持有其租约。
// 同时进行的网络订阅数受 MaxConcurrentSubscriptions 限制，超出时等待，
// ctx 结束则放弃并返回 ctx 的错误。
func (p *Pool) Subscribe(ctx context.Context, filters []types.Filter, targets []types.RelayURL, opts SubscribeOptions) (*Subscription, error) {
	if len(filters) == 0 {
		return nil, ErrNoFilters
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	timeout := opts.EOSETimeout
	if timeout <= 0 {
		timeout = p.cfg.EOSETimeout.Duration()
	}

	seen, err := eventcache.New(0)
	if err != nil {
		return nil, err
	}
	s := &Subscription{
		id:      id,
		pool:    p,
		mode:    opts.Mode,
		filters: filters,
		seen:    seen,
		out:     make(chan types.StreamItem, p.cfg.SubscriptionBuffer),
		done:    make(chan struct{}),
		eosed:   make(map[types.RelayURL]struct{}),
		failed:  make(map[types.RelayURL]struct{}),
	}

	if opts.Mode == types.DeliveryStoreOnly {
		go s.run(ctx)
		return s, nil
	}
	s.wake = make(chan struct{}, 1)
	s.pumped = make(chan struct{})

	if err := p.subSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	readable, ephemeral, regular := p.planTargets(targets)
	s.targets = readable

	// 处理器先于拨号注册，目标的连接事件不会遗漏
	if err := p.registerHandler(&handler{subID: id, filters: filters, targets: s.targets, fn: s.onRelayEvent}); err != nil {
		p.subSem.Release(1)
		return nil, err
	}
	for _, u := range ephemeral {
		if err := p.AcquireEphemeralRelay(u); err == nil {
			s.leased = append(s.leased, u)
		}
	}
	p.Connect(regular)
	p.metrics.SubscriptionStarted()
	logger.Debug("开始订阅", "sub", id, "mode", opts.Mode.String(), "relays", len(s.targets))

	s.mu.Lock()
	s.ready = true
	s.timer = p.clock.AfterFunc(timeout, func() { s.fireEOSE(true) })
	s.mu.Unlock()

	go s.pump()
	go s.run(ctx)
	return s, nil
}

// planTargets 返回可读目标，并按是否需要租约拆分
func (p *Pool) planTargets(targets []types.RelayURL) (readable, ephemeral, regular []types.RelayURL) {
	if targets == nil {
		for _, d := range p.OurDescriptors() {
			if d.Info.CanRead() {
				readable = append(readable, d.URL)
			}
		}
		return readable, nil, readable
	}

	for _, u := range targets {
		desc, ok := p.Descriptor(u)
		if ok && !desc.Info.CanRead() {
			continue
		}
		if !ok || desc.Ephemeral() {
			ephemeral = append(ephemeral, u)
		} else {
			regular = append(regular, u)
		}
		readable = append(readable, u)
	}
	return readable, ephemeral, regular
}

// ID 订阅 ID
func (s *Subscription) ID() string {
	return s.id
}

// Targets 订阅的中继
func (s *Subscription) Targets() []types.RelayURL {
	return append([]types.RelayURL(nil), s.targets...)
}

// Items 订阅流
func (s *Subscription) Items() <-chan types.StreamItem {
	return s.out
}

// Done 订阅结束时关闭
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel 结束订阅：向目标中继发送 CLOSE 并移除处理器，共享连接保持不变
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		p := s.pool

		s.mu.Lock()
		s.closing = true
		if s.timer != nil {
			s.timer.Stop()
		}
		s.mu.Unlock()
		close(s.done)

		if s.mode != types.DeliveryStoreOnly {
			p.RemoveHandler(s.id)
			if len(s.targets) > 0 {
				ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
				if err := p.Send(ctx, wire.Close(s.id), s.targets, false); err != nil {
					logger.Debug("发送 CLOSE 失败", "sub", s.id, "error", err)
				}
				cancel()
			}
			p.ReleaseEphemeralRelays(s.leased)
			p.subSem.Release(1)
			p.metrics.SubscriptionEnded()
		}

		s.inflight.Wait()
		if s.pumped != nil {
			<-s.pumped
		}
		close(s.out)
		logger.Debug("订阅结束", "sub", s.id)
	})
}

func (s *Subscription) run(ctx context.Context) {
	p := s.pool

	if s.mode != types.DeliveryNetworkOnly {
		s.replay(ctx)
	}

	if s.mode == types.DeliveryStoreOnly {
		s.fireEOSE(false)
		s.Cancel()
		return
	}

	if len(s.targets) == 0 {
		s.fireEOSE(false)
	} else {
		if err := p.Send(ctx, wire.Req(s.id, s.filters), s.targets, false); err != nil {
			logger.Debug("发送 REQ 部分失败", "sub", s.id, "error", err)
		}
		// 建立期间已了结的目标
		s.checkComplete()
	}

	select {
	case <-ctx.Done():
		s.Cancel()
	case <-s.done:
	}
}

// replay 按过滤器中的 ID 从本地存储回放
func (s *Subscription) replay(ctx context.Context) {
	store := s.pool.store
	for i := range s.filters {
		f := &s.filters[i]
		for _, id := range f.IDs {
			ev, err := store.LookupByID(ctx, id)
			if err != nil {
				continue
			}
			if !f.Matches(ev) {
				continue
			}
			if !s.emitEvent(ev, types.RelayURL{}) && s.isClosing() {
				return
			}
		}
	}
}

// onRelayEvent 订阅处理器，在各中继的读 goroutine 中运行，不阻塞
func (s *Subscription) onRelayEvent(relay types.RelayURL, ev relayconn.Event) {
	switch ev.Kind {
	case relayconn.EventConnected:
		s.mu.Lock()
		delete(s.failed, relay)
		s.mu.Unlock()
		return
	case relayconn.EventError, relayconn.EventDisconnected:
		s.mu.Lock()
		if _, ok := s.eosed[relay]; !ok {
			s.failed[relay] = struct{}{}
		}
		s.mu.Unlock()
		s.checkComplete()
		return
	}
	resp := ev.Response
	switch resp.Type {
	case wire.TypeEvent:
		if resp.Event != nil {
			s.emitEvent(resp.Event, relay)
		}
	case wire.TypeEOSE:
		s.markEOSE(relay)
	case wire.TypeClosed:
		logger.Debug("中继关闭了订阅", "sub", s.id, "relay", relay.String(), "reason", resp.Closed.Message)
		s.markEOSE(relay)
	}
}

// emitEvent 去重后投递，返回是否投递
func (s *Subscription) emitEvent(ev *types.Event, relay types.RelayURL) bool {
	if _, inserted := s.seen.Insert(ev.ID, ev); !inserted {
		return false
	}
	return s.send(types.StreamItem{Kind: types.ItemEvent, Event: ev, Relay: relay})
}

// markEOSE 记录中继 EOSE（或 CLOSED）
func (s *Subscription) markEOSE(relay types.RelayURL) {
	s.mu.Lock()
	if s.eoseSent || s.closing {
		s.mu.Unlock()
		return
	}
	s.eosed[relay] = struct{}{}
	delete(s.failed, relay)
	reported := len(s.eosed)
	s.mu.Unlock()

	logger.Debug("收到 EOSE", "sub", s.id, "relay", relay.String(), "reported", reported, "targets", len(s.targets))
	s.checkComplete()
}

// checkComplete 每个目标都已了结时发出 EOSE
//
// 了结指：报告了 EOSE 或 CLOSED、连接失败或断开、已从池中移除。
// 连接中的目标一直等待，直到超时。
func (s *Subscription) checkComplete() {
	s.mu.Lock()
	if !s.ready || s.eoseSent || s.closing || len(s.targets) == 0 {
		s.mu.Unlock()
		return
	}
	var waiting []types.RelayURL
	for _, t := range s.targets {
		_, reported := s.eosed[t]
		_, failed := s.failed[t]
		if !reported && !failed {
			waiting = append(waiting, t)
		}
	}
	s.mu.Unlock()

	for _, t := range waiting {
		if !s.settled(t) {
			return
		}
	}
	s.fireEOSE(false)
}

// settled 按连接状态判断目标不会再回应
func (s *Subscription) settled(url types.RelayURL) bool {
	st, ok := s.pool.Status(url)
	if !ok {
		return true
	}
	switch st.State {
	case types.StateFailed:
		return true
	case types.StateDisconnected:
		return st.LastError != nil
	default:
		return false
	}
}

// fireEOSE 恰好发出一次 EOSE，中继报告与超时的竞争由 s.mu 裁决
func (s *Subscription) fireEOSE(timedOut bool) {
	s.mu.Lock()
	if s.eoseSent || s.closing {
		s.mu.Unlock()
		return
	}
	s.eoseSent = true
	if s.timer != nil {
		s.timer.Stop()
	}
	completed := make([]types.RelayURL, 0, len(s.eosed))
	for _, t := range s.targets {
		if _, ok := s.eosed[t]; ok {
			completed = append(completed, t)
		}
	}
	s.mu.Unlock()

	if s.mode != types.DeliveryStoreOnly {
		s.pool.metrics.EOSE(timedOut)
	}
	if timedOut {
		logger.Debug("EOSE 超时", "sub", s.id, "completed", len(completed), "targets", len(s.targets))
	}
	s.send(types.StreamItem{Kind: types.ItemEOSE, TimedOut: timedOut, Completed: completed})
}

// send 投递一项；网络订阅只入队，StoreOnly 在 run goroutine 中直接写入 Items
func (s *Subscription) send(item types.StreamItem) bool {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return false
	}
	if s.wake != nil {
		s.backlog = append(s.backlog, item)
		s.mu.Unlock()
		select {
		case s.wake <- struct{}{}:
		default:
		}
		return true
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	select {
	case s.out <- item:
		return true
	case <-s.done:
		return false
	}
}

// pump 按入队顺序把积压项搬到 Items，订阅结束时退出
func (s *Subscription) pump() {
	defer close(s.pumped)
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}

		s.mu.Lock()
		batch := s.backlog
		s.backlog = nil
		s.mu.Unlock()

		for _, item := range batch {
			select {
			case s.out <- item:
			case <-s.done:
				return
			}
		}
	}
}

func (s *Subscription) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}
