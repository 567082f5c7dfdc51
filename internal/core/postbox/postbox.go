package postbox

import (
	"context"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/eventbus"
	"github.com/dep2p/go-relaypool/internal/core/metrics"
	"github.com/dep2p/go-relaypool/internal/core/pool"
	"github.com/dep2p/go-relaypool/internal/core/relayconn"
	"github.com/dep2p/go-relaypool/internal/protocol/wire"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
	"github.com/dep2p/go-relaypool/pkg/types"
)

var logger = log.Logger("core/postbox")

// handlerID 在中继池上注册的确认处理器
const handlerID = "postbox"

// Pool 发件箱使用的中继池能力
type Pool interface {
	Send(ctx context.Context, req wire.Request, targets []types.RelayURL, skipEphemeral bool) error
	SubscribeRaw(ctx context.Context, subID string, filters []types.Filter, targets []types.RelayURL, fn pool.HandlerFunc) error
	RemoveHandler(subID string)
	OurDescriptors() []types.RelayDescriptor
}

// Options 发件箱依赖与参数
type Options struct {
	// Config 默认值：config.DefaultPostBoxConfig()
	Config config.PostBoxConfig

	// Bus 可选
	Bus pkgif.EventBus

	// Metrics 可选
	Metrics *metrics.Metrics

	// Clock 测试中注入 clock.NewMock()
	Clock clock.Clock
}

// PostBox 发件箱
type PostBox struct {
	pool    Pool
	cfg     config.PostBoxConfig
	clock   clock.Clock
	metrics *metrics.Metrics

	ackedEmitter     pkgif.Emitter
	failedEmitter    pkgif.Emitter
	completedEmitter pkgif.Emitter

	mu    sync.Mutex
	posts map[types.NoteID]*post
}

// flushItem 锁内生成的发送快照
type flushItem struct {
	event         *types.Event
	relay         types.RelayURL
	skipEphemeral bool
}

// New 创建发件箱并在中继池上注册确认处理器
func New(p Pool, opts Options) (*PostBox, error) {
	cfg := opts.Config
	if cfg.RetryBase <= 0 {
		cfg = config.DefaultPostBoxConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &PostBox{
		pool:    p,
		cfg:     cfg,
		clock:   opts.Clock,
		metrics: opts.Metrics,
		posts:   make(map[types.NoteID]*post),
	}
	if b.clock == nil {
		b.clock = clock.New()
	}

	if opts.Bus != nil {
		var err error
		if b.ackedEmitter, err = opts.Bus.Emitter(new(eventbus.EvtPostAcked)); err != nil {
			return nil, err
		}
		if b.failedEmitter, err = opts.Bus.Emitter(new(eventbus.EvtPostFailed)); err != nil {
			return nil, err
		}
		if b.completedEmitter, err = opts.Bus.Emitter(new(eventbus.EvtPostCompleted)); err != nil {
			return nil, err
		}
	}

	if err := p.SubscribeRaw(context.Background(), handlerID, nil, nil, b.handleEvent); err != nil {
		return nil, err
	}
	return b, nil
}

// ============================================================================
//                              发送
// ============================================================================

// Send 发送消息，targets 为 nil 表示池中全部可写的非临时中继
//
// 同一 ID 已在发件箱中时忽略本次调用。跟踪的消息保留到满足确认策略或被丢弃；
// 发送失败不移除条目，由后续 Flush 重试。
func (b *PostBox) Send(ctx context.Context, ev *types.Event, targets []types.RelayURL, opts SendOptions) error {
	if targets == nil {
		for _, d := range b.pool.OurDescriptors() {
			if d.Info.CanWrite() {
				targets = append(targets, d.URL)
			}
		}
	}
	if len(targets) == 0 {
		return ErrNoTargets
	}

	if !opts.TrackPending && opts.Delay <= 0 {
		return b.pool.Send(ctx, wire.Publish(ev), targets, opts.SkipEphemeral)
	}

	policy := opts.AckPolicy
	if policy == "" {
		policy = b.cfg.AckPolicy
	}
	now := b.clock.Now()
	p := &post{
		event:         ev,
		skipEphemeral: opts.SkipEphemeral,
		policy:        policy,
		createdAt:     now,
		onFlush:       opts.OnFlush,
		flushMode:     opts.FlushMode,
	}
	for _, t := range targets {
		if p.relayer(t) == nil {
			p.relayers = append(p.relayers, newRelayer(t, b.cfg, b.clock))
		}
	}
	if opts.Delay > 0 {
		p.flushAfter = now.Add(opts.Delay)
	}

	b.mu.Lock()
	if _, exists := b.posts[ev.ID]; exists {
		b.mu.Unlock()
		logger.Debug("消息已在发件箱中，忽略", "id", ev.ID.ShortString())
		return nil
	}
	b.posts[ev.ID] = p
	pending := len(b.posts)

	var items []flushItem
	if opts.Delay <= 0 {
		for _, r := range p.relayers {
			r.attempt(now)
			items = append(items, flushItem{event: ev, relay: r.relay, skipEphemeral: p.skipEphemeral})
		}
	}
	b.mu.Unlock()

	b.metrics.PendingPosts(pending)
	if opts.Delay > 0 {
		logger.Debug("延迟发送", "id", ev.ID.ShortString(), "delay", opts.Delay)
		return nil
	}
	return b.send(ctx, items)
}

// Flush 重发到期的条目
//
// 延迟未到期的条目和尚未到重试时间的中继跳过；每次发送后该中继的
// 重试间隔按 RetryMultiplier 放大。
func (b *PostBox) Flush(ctx context.Context) error {
	now := b.clock.Now()

	b.mu.Lock()
	posts := make([]*post, 0, len(b.posts))
	for _, p := range b.posts {
		posts = append(posts, p)
	}
	slices.SortFunc(posts, func(x, y *post) int { return x.createdAt.Compare(y.createdAt) })

	var items []flushItem
	retries := 0
	for _, p := range posts {
		if p.delayed(now) {
			continue
		}
		for _, r := range p.relayers {
			if !r.ready(now) {
				continue
			}
			if r.attempt(now) {
				p.retries++
				retries++
			}
			logger.Debug("发送待确认消息", "id", p.event.ID.ShortString(), "relay", r.relay.String(), "attempt", r.attempts)
			items = append(items, flushItem{event: p.event, relay: r.relay, skipEphemeral: p.skipEphemeral})
		}
	}
	b.mu.Unlock()

	for i := 0; i < retries; i++ {
		b.metrics.PostRetry()
	}
	return b.send(ctx, items)
}

func (b *PostBox) send(ctx context.Context, items []flushItem) error {
	var errs error
	for _, it := range items {
		if err := b.pool.Send(ctx, wire.Publish(it.event), []types.RelayURL{it.relay}, it.skipEphemeral); err != nil {
			logger.Debug("发送失败，等待重试", "id", it.event.ID.ShortString(), "relay", it.relay.String(), "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Run 按 FlushInterval 定期 Flush，直到 ctx 结束
func (b *PostBox) Run(ctx context.Context) error {
	ticker := b.clock.Ticker(b.cfg.FlushInterval.Duration())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil {
				logger.Debug("后台刷新部分失败", "error", err)
			}
		}
	}
}

// ============================================================================
//                              取消与查询
// ============================================================================

// DropPending 无论确认状态如何移除条目
func (b *PostBox) DropPending(id types.NoteID) bool {
	b.mu.Lock()
	_, ok := b.posts[id]
	delete(b.posts, id)
	pending := len(b.posts)
	b.mu.Unlock()

	if ok {
		logger.Debug("丢弃待确认消息", "id", id.ShortString())
		b.metrics.PendingPosts(pending)
	}
	return ok
}

// CancelSend 取消尚未到期的延迟发送
func (b *PostBox) CancelSend(id types.NoteID) error {
	b.mu.Lock()
	p, ok := b.posts[id]
	if !ok {
		b.mu.Unlock()
		return ErrNothingToCancel
	}
	if p.flushAfter.IsZero() {
		b.mu.Unlock()
		return ErrNotDelayed
	}
	if !p.delayed(b.clock.Now()) {
		b.mu.Unlock()
		return ErrTooLate
	}
	delete(b.posts, id)
	pending := len(b.posts)
	b.mu.Unlock()

	b.metrics.PendingPosts(pending)
	return nil
}

// Pending 按创建时间返回所有条目快照
func (b *PostBox) Pending() []PendingPost {
	b.mu.Lock()
	out := make([]PendingPost, 0, len(b.posts))
	for _, p := range b.posts {
		out = append(out, p.snapshot())
	}
	b.mu.Unlock()

	slices.SortFunc(out, func(x, y PendingPost) int { return x.CreatedAt.Compare(y.CreatedAt) })
	return out
}

// Get 返回单个条目快照
func (b *PostBox) Get(id types.NoteID) (PendingPost, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.posts[id]
	if !ok {
		return PendingPost{}, false
	}
	return p.snapshot(), true
}

// Len 条目数
func (b *PostBox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.posts)
}

// Close 注销确认处理器
func (b *PostBox) Close() error {
	b.pool.RemoveHandler(handlerID)
	var err error
	for _, em := range []pkgif.Emitter{b.ackedEmitter, b.failedEmitter, b.completedEmitter} {
		if em != nil {
			err = multierr.Append(err, em.Close())
		}
	}
	return err
}

// ============================================================================
//                              确认
// ============================================================================

func (b *PostBox) handleEvent(relay types.RelayURL, ev relayconn.Event) {
	if ev.Kind != relayconn.EventMessage || ev.Response.Type != wire.TypeOK {
		return
	}
	res := ev.Response.Result
	if res.OK {
		b.ack(relay, res.EventID)
	} else {
		b.reject(relay, res.EventID, res.Message)
	}
}

// ack 记录中继确认，满足策略后移除条目
func (b *PostBox) ack(relay types.RelayURL, id types.NoteID) {
	b.mu.Lock()
	p, ok := b.posts[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	r := p.relayer(relay)
	if r == nil || r.acked {
		b.mu.Unlock()
		return
	}
	r.acked = true
	p.acked = append(p.acked, relay)

	var callback func(PendingPost)
	if p.onFlush != nil {
		switch p.flushMode {
		case FlushAll:
			callback = p.onFlush
		default:
			if !p.flushedOnce {
				p.flushedOnce = true
				callback = p.onFlush
			}
		}
	}
	done := p.satisfied()
	if done {
		delete(b.posts, id)
	}
	snap := p.snapshot()
	pending := len(b.posts)
	b.mu.Unlock()

	logger.Debug("中继确认", "id", id.ShortString(), "relay", relay.String(), "acked", len(snap.AckedBy), "targets", len(snap.Targets))
	if b.ackedEmitter != nil {
		b.ackedEmitter.Emit(eventbus.EvtPostAcked{ID: id, Relay: relay})
	}
	if callback != nil {
		callback(snap)
	}
	if done {
		logger.Info("消息已确认，移出发件箱", "id", id.ShortString(), "retries", snap.Retries)
		b.metrics.PendingPosts(pending)
		if b.completedEmitter != nil {
			b.completedEmitter.Emit(eventbus.EvtPostCompleted{ID: id, Acked: snap.AckedBy})
		}
	}
}

// reject 记录中继拒绝，该中继保持待确认
func (b *PostBox) reject(relay types.RelayURL, id types.NoteID, reason string) {
	b.mu.Lock()
	p, ok := b.posts[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	r := p.relayer(relay)
	if r == nil || r.acked {
		b.mu.Unlock()
		return
	}
	r.failures++
	r.lastReason = reason
	b.mu.Unlock()

	logger.Warn("中继拒绝消息", "id", id.ShortString(), "relay", relay.String(), "reason", reason)
	b.metrics.AckFailure(relay)
	if b.failedEmitter != nil {
		b.failedEmitter.Emit(eventbus.EvtPostFailed{ID: id, Relay: relay, Reason: reason})
	}
}
