package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/eventbus"
	"github.com/dep2p/go-relaypool/internal/core/eventcache"
	"github.com/dep2p/go-relaypool/internal/core/metrics"
	"github.com/dep2p/go-relaypool/internal/core/relayconn"
	"github.com/dep2p/go-relaypool/internal/core/replymap"
	"github.com/dep2p/go-relaypool/internal/core/storage/memory"
	"github.com/dep2p/go-relaypool/internal/util/notifyqueue"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
	"github.com/dep2p/go-relaypool/pkg/types"
)

var logger = log.Logger("core/pool")

// Options 中继池依赖与参数
type Options struct {
	// Config 池参数
	// 默认值：config.DefaultPoolConfig()
	Config config.PoolConfig

	// Connection 每条中继连接的参数
	// 默认值：config.DefaultConnectionConfig()
	Connection config.ConnectionConfig

	// Dialer 必需
	Dialer pkgif.Dialer

	// Store 本地消息存储，nil 时使用进程内存储
	Store pkgif.EventStore

	// Cache 全局消息缓存，nil 时按 config.DefaultCacheConfig() 创建
	Cache *eventcache.Cache

	// Replies 回复索引，nil 时新建
	Replies *replymap.Map

	// Authenticator 可选，处理 NIP-42 认证挑战
	Authenticator pkgif.Authenticator

	// Bus 可选
	Bus pkgif.EventBus

	// Metrics 可选
	Metrics *metrics.Metrics

	// Clock 测试中注入 clock.NewMock()
	Clock clock.Clock
}

// ============================================================================
//                              Pool
// ============================================================================

// Pool 中继池
type Pool struct {
	cfg     config.PoolConfig
	connCfg config.ConnectionConfig
	dialer  pkgif.Dialer
	store   pkgif.EventStore
	cache   *eventcache.Cache
	replies *replymap.Map
	auth    pkgif.Authenticator
	bus     pkgif.EventBus
	metrics *metrics.Metrics
	clock   clock.Clock

	subSem  *semaphore.Weighted
	notices *notifyqueue.Queue[Notice]

	statsEmitter pkgif.Emitter
	netEmitter   pkgif.Emitter

	mu           sync.Mutex
	relays       map[types.RelayURL]*relay
	order        []types.RelayURL
	handlers     []*handler
	listeners    map[uint64]Listener
	nextListener uint64
	queue        []queuedRequest
	seen         map[types.NoteID]map[types.RelayURL]struct{}
	counts       map[types.RelayURL]uint64
	closed       bool

	// 网络变化处理，见 connectivity.go
	netMu      sync.Mutex
	netBusy    bool
	netPending *types.NetworkStatus
	lastStatus atomic.Int32
}

// New 创建中继池
func New(opts Options) (*Pool, error) {
	if opts.Dialer == nil {
		return nil, ErrNoDialer
	}

	cfg := opts.Config
	if cfg.EOSETimeout <= 0 {
		cfg = config.DefaultPoolConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	connCfg := opts.Connection
	if connCfg.ConnectTimeout <= 0 {
		connCfg = config.DefaultConnectionConfig()
	}

	p := &Pool{
		cfg:       cfg,
		connCfg:   connCfg,
		dialer:    opts.Dialer,
		store:     opts.Store,
		cache:     opts.Cache,
		replies:   opts.Replies,
		auth:      opts.Authenticator,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		subSem:    semaphore.NewWeighted(int64(cfg.MaxConcurrentSubscriptions)),
		notices:   notifyqueue.New[Notice](notifyqueue.DefaultCapacity),
		relays:    make(map[types.RelayURL]*relay),
		listeners: make(map[uint64]Listener),
		seen:      make(map[types.NoteID]map[types.RelayURL]struct{}),
		counts:    make(map[types.RelayURL]uint64),
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	if p.store == nil {
		p.store = memory.New()
	}
	if p.cache == nil {
		c, err := eventcache.New(config.DefaultCacheConfig().Capacity)
		if err != nil {
			return nil, err
		}
		p.cache = c
	}
	if p.replies == nil {
		p.replies = replymap.New()
	}
	p.lastStatus.Store(int32(types.NetworkUnsatisfied))

	if p.bus != nil {
		var err error
		if p.statsEmitter, err = p.bus.Emitter(new(eventbus.EvtStatsUpdated)); err != nil {
			return nil, err
		}
		if p.netEmitter, err = p.bus.Emitter(new(eventbus.EvtNetworkStatusChanged), pkgif.Stateful()); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Cache 全局消息缓存
func (p *Pool) Cache() *eventcache.Cache {
	return p.cache
}

// Replies 回复索引
func (p *Pool) Replies() *replymap.Map {
	return p.replies
}

// Store 本地消息存储
func (p *Pool) Store() pkgif.EventStore {
	return p.store
}

// ============================================================================
//                              中继管理
// ============================================================================

// AddRelay 添加中继，不会自动连接
func (p *Pool) AddRelay(desc types.RelayDescriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if _, ok := p.relays[desc.URL]; ok {
		return ErrRelayAlreadyExists
	}
	p.addRelayLocked(desc)
	return nil
}

func (p *Pool) addRelayLocked(desc types.RelayDescriptor) *relay {
	conn := relayconn.New(desc.URL, p.dialer, p.handleEvent, relayconn.Options{
		Config:  p.connCfg,
		Clock:   p.clock,
		Bus:     p.bus,
		Metrics: p.metrics,
	})
	r := &relay{desc: desc, conn: conn}
	p.relays[desc.URL] = r
	p.order = append(p.order, desc.URL)
	logger.Debug("添加中继", "relay", desc.URL.String(), "variant", desc.Variant.String())
	return r
}

// RemoveRelay 断开并移除中继
func (p *Pool) RemoveRelay(url types.RelayURL) error {
	p.mu.Lock()
	r, ok := p.relays[url]
	if !ok {
		p.mu.Unlock()
		return ErrRelayNotFound
	}
	p.removeRelayLocked(url)
	p.mu.Unlock()

	p.closeConn(r)
	// 以断开事件通知仍以其为目标的订阅
	p.dispatch(url, relayconn.Event{Kind: relayconn.EventDisconnected, Relay: url, Err: ErrRelayNotFound})
	return nil
}

func (p *Pool) removeRelayLocked(url types.RelayURL) {
	delete(p.relays, url)
	for i, u := range p.order {
		if u == url {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	kept := p.queue[:0]
	for _, q := range p.queue {
		if q.relay != url {
			kept = append(kept, q)
		}
	}
	p.queue = kept
	logger.Debug("移除中继", "relay", url.String())
}

func (p *Pool) closeConn(r *relay) error {
	r.conn.Disconnect()
	r.conn.DisablePermanently()
	err := r.conn.Close()
	p.metrics.RemoveRelay(r.desc.URL)
	return err
}

// Relays 按添加顺序返回所有中继地址
func (p *Pool) Relays() []types.RelayURL {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.RelayURL(nil), p.order...)
}

// Descriptors 返回所有中继描述
func (p *Pool) Descriptors() []types.RelayDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.RelayDescriptor, 0, len(p.order))
	for _, u := range p.order {
		out = append(out, p.relays[u].desc)
	}
	return out
}

// OurDescriptors 返回非临时中继描述
func (p *Pool) OurDescriptors() []types.RelayDescriptor {
	all := p.Descriptors()
	out := all[:0]
	for _, d := range all {
		if !d.Ephemeral() {
			out = append(out, d)
		}
	}
	return out
}

// Descriptor 返回单个中继描述
func (p *Pool) Descriptor(url types.RelayURL) (types.RelayDescriptor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.relays[url]
	if !ok {
		return types.RelayDescriptor{}, false
	}
	return r.desc, true
}

// NumConnected 已连接中继数
func (p *Pool) NumConnected() int {
	n := 0
	for _, r := range p.snapshot(nil) {
		if r.conn.IsConnected() {
			n++
		}
	}
	return n
}

// Status 返回单个中继状态快照
func (p *Pool) Status(url types.RelayURL) (RelayStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.relays[url]
	if !ok {
		return RelayStatus{}, false
	}
	return r.status(), true
}

// Statuses 返回所有中继状态快照
func (p *Pool) Statuses() []RelayStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RelayStatus, 0, len(p.order))
	for _, u := range p.order {
		out = append(out, p.relays[u].status())
	}
	return out
}

// IsConnected 指定中继是否已连接
func (p *Pool) IsConnected(url types.RelayURL) bool {
	p.mu.Lock()
	r, ok := p.relays[url]
	p.mu.Unlock()
	return ok && r.conn.IsConnected()
}

// snapshot 返回目标中继快照，targets 为 nil 表示全部
func (p *Pool) snapshot(targets []types.RelayURL) []*relay {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(targets)
}

func (p *Pool) snapshotLocked(targets []types.RelayURL) []*relay {
	if targets == nil {
		out := make([]*relay, 0, len(p.order))
		for _, u := range p.order {
			out = append(out, p.relays[u])
		}
		return out
	}
	out := make([]*relay, 0, len(targets))
	for _, u := range targets {
		if r, ok := p.relays[u]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ============================================================================
//                              连接控制
// ============================================================================

// Connect 连接目标中继，targets 为 nil 表示全部
func (p *Pool) Connect(targets []types.RelayURL) {
	for _, r := range p.snapshot(targets) {
		r.conn.Connect(false)
	}
}

// Disconnect 断开目标中继
func (p *Pool) Disconnect(targets []types.RelayURL) {
	for _, r := range p.snapshot(targets) {
		r.conn.Disconnect()
	}
}

// Reconnect 重连目标中继
func (p *Pool) Reconnect(targets []types.RelayURL) {
	for _, r := range p.snapshot(targets) {
		r.conn.Reconnect()
	}
}

// ConnectToDisconnected 重试断开的连接
//
// 连接中超过 StaleConnectTimeout 的中继强制重拨；
// 已禁用、连接中、已连接的中继跳过。
func (p *Pool) ConnectToDisconnected() {
	now := p.clock.Now()
	stale := p.cfg.StaleConnectTimeout.Duration()
	for _, r := range p.snapshot(nil) {
		c := r.conn
		switch {
		case c.IsStaleConnecting(now, stale):
			logger.Info("检测到停滞的连接，重试", "relay", r.desc.URL.String())
			c.Connect(true)
		case c.Info().Disabled, c.State() == types.StateConnecting, c.IsConnected():
			continue
		default:
			c.Reconnect()
		}
	}
}

// Ping 并发探测所有已连接中继
func (p *Pool) Ping(ctx context.Context) {
	relays := p.snapshot(nil)
	logger.Info("探测中继", "count", len(relays))

	var g errgroup.Group
	for _, r := range relays {
		if !r.conn.IsConnected() {
			continue
		}
		conn := r.conn
		g.Go(func() error {
			conn.Ping(ctx)
			return nil
		})
	}
	g.Wait()
}

// AuthState 返回中继认证状态
func (p *Pool) AuthState(url types.RelayURL) types.AuthState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.relays[url]; ok {
		return r.auth
	}
	return types.AuthNone
}

// Notices 附加 NOTICE / CLOSED 消费者
//
// 没有消费者时消息在队列中缓冲（满时丢弃最旧的）；
// 同一时间只允许一个消费者，ctx 结束后解除附加。
func (p *Pool) Notices(ctx context.Context) (<-chan Notice, error) {
	return p.notices.Stream(ctx)
}

// Close 断开并移除所有中继
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	relays := p.snapshotLocked(nil)
	p.relays = make(map[types.RelayURL]*relay)
	p.order = nil
	p.handlers = nil
	p.listeners = make(map[uint64]Listener)
	p.queue = nil
	p.seen = make(map[types.NoteID]map[types.RelayURL]struct{})
	p.counts = make(map[types.RelayURL]uint64)
	p.mu.Unlock()

	var err error
	for _, r := range relays {
		err = multierr.Append(err, p.closeConn(r))
	}
	p.notices.Close()
	if p.statsEmitter != nil {
		err = multierr.Append(err, p.statsEmitter.Close())
	}
	if p.netEmitter != nil {
		err = multierr.Append(err, p.netEmitter.Close())
	}
	logger.Info("中继池已关闭", "relays", len(relays))
	return err
}
