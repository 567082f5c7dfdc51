package pool

import (
	"context"
	"slices"
	"strings"

	"github.com/dep2p/go-relaypool/internal/core/eventbus"
	"github.com/dep2p/go-relaypool/internal/core/relayconn"
	"github.com/dep2p/go-relaypool/internal/protocol/wire"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// HandlerFunc 订阅处理器回调
type HandlerFunc func(relay types.RelayURL, ev relayconn.Event)

// Listener 原始消息观察者，收到每个中继的每个事件
type Listener func(relay types.RelayURL, ev relayconn.Event)

// handler 已注册的订阅处理器
type handler struct {
	subID string

	// filters 为 nil 表示接收所有中继的所有事件
	filters []types.Filter

	// targets 为 nil 表示池中全部非临时中继
	targets []types.RelayURL

	fn HandlerFunc
}

func (h *handler) covers(url types.RelayURL) bool {
	return h.targets == nil || slices.Contains(h.targets, url)
}

// ============================================================================
//                              注册
// ============================================================================

// SubscribeRaw 注册长期处理器并向目标中继发送 REQ
//
// 相同 subID 的旧处理器被替换。filters 为 nil 时只注册处理器，
// 接收所有中继的所有事件（含连接事件与 OK），不发送 REQ。
// targets 为 nil 时跳过临时中继。
func (p *Pool) SubscribeRaw(ctx context.Context, subID string, filters []types.Filter, targets []types.RelayURL, fn HandlerFunc) error {
	if err := p.registerHandler(&handler{subID: subID, filters: filters, targets: targets, fn: fn}); err != nil {
		return err
	}
	if filters == nil {
		return nil
	}
	return p.Send(ctx, wire.Req(subID, filters), targets, targets == nil)
}

// Unsubscribe 向目标中继发送 CLOSE；targets 为 nil 时同时移除处理器
func (p *Pool) Unsubscribe(ctx context.Context, subID string, targets []types.RelayURL) error {
	if targets == nil {
		p.RemoveHandler(subID)
	}
	return p.Send(ctx, wire.Close(subID), targets, false)
}

// RemoveHandler 移除处理器，不发送 CLOSE
func (p *Pool) RemoveHandler(subID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = slices.DeleteFunc(p.handlers, func(h *handler) bool { return h.subID == subID })
	logger.Debug("移除处理器", "sub", subID, "remaining", len(p.handlers))
}

func (p *Pool) registerHandler(h *handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	before := len(p.handlers)
	p.handlers = slices.DeleteFunc(p.handlers, func(old *handler) bool { return old.subID == h.subID })
	if len(p.handlers) != before {
		logger.Warn("重复的订阅 ID，覆盖旧处理器", "sub", h.subID)
	}
	p.handlers = append(p.handlers, h)
	logger.Debug("注册处理器", "sub", h.subID, "count", len(p.handlers))
	return nil
}

// HandlerCount 已注册处理器数
func (p *Pool) HandlerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}

// AddListener 添加原始消息观察者，返回移除函数
func (p *Pool) AddListener(fn Listener) (remove func()) {
	p.mu.Lock()
	p.nextListener++
	id := p.nextListener
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// ============================================================================
//                              入站分发
// ============================================================================

// handleEvent 是所有连接的 Handler，在各连接的读 goroutine 中运行
func (p *Pool) handleEvent(ev relayconn.Event) {
	relay := ev.Relay

	switch ev.Kind {
	case relayconn.EventConnected:
		// 先发送离线期间排队的请求，再恢复订阅
		p.runQueue(relay)
		p.resubscribeAll(relay)

	case relayconn.EventMessage:
		resp := ev.Response
		switch resp.Type {
		case wire.TypeEvent:
			if resp.Event == nil {
				return
			}
			stored := p.accept(relay, resp.Event)
			if stored != resp.Event {
				r := *resp
				r.Event = stored
				ev.Response = &r
			}
			p.recordSeen(relay, stored.ID)
		case wire.TypeAuth:
			p.handleAuth(relay, resp.Challenge)
		case wire.TypeNotice:
			p.notices.Add(context.Background(), Notice{Relay: relay, Message: resp.Notice})
		case wire.TypeClosed:
			logger.Debug("订阅被中继关闭", "relay", relay.String(), "sub", resp.Closed.SubID, "reason", resp.Closed.Message)
			p.notices.Add(context.Background(), Notice{
				Relay:   relay,
				SubID:   resp.Closed.SubID,
				Message: resp.Closed.Message,
				Closed:  true,
			})
		}
	}

	p.dispatch(relay, ev)
}

// dispatch 把事件交给观察者与处理器
//
// 消息按订阅 ID 路由；连接事件交给覆盖该中继的处理器。
// filters 为 nil 的处理器接收全部事件。
func (p *Pool) dispatch(relay types.RelayURL, ev relayconn.Event) {
	p.mu.Lock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	handlers := slices.Clone(p.handlers)
	p.mu.Unlock()

	for _, l := range listeners {
		l(relay, ev)
	}

	subID := ""
	if ev.Kind == relayconn.EventMessage {
		subID = ev.Response.SubID()
	}
	for _, h := range handlers {
		switch {
		case h.filters == nil:
		case subID != "":
			if h.subID != subID {
				continue
			}
		case ev.Kind == relayconn.EventMessage:
			continue
		case !h.covers(relay):
			continue
		}
		h.fn(relay, ev)
	}
}

// accept 把网络消息放入全局缓存，首次出现时写入存储并更新回复索引
func (p *Pool) accept(relay types.RelayURL, ev *types.Event) *types.Event {
	stored, inserted := p.cache.Insert(ev.ID, ev)
	if !inserted {
		p.metrics.EventDuplicate(relay)
		return stored
	}
	p.metrics.EventReceived(relay)
	p.replies.Observe(stored)
	if err := p.store.Store(context.Background(), stored); err != nil {
		logger.Warn("写入本地存储失败", "id", stored.ID.ShortString(), "error", err)
	}
	return stored
}

// recordSeen 记录 (消息, 中继) 首次出现
func (p *Pool) recordSeen(relay types.RelayURL, id types.NoteID) {
	p.mu.Lock()
	set, ok := p.seen[id]
	if !ok {
		set = make(map[types.RelayURL]struct{})
		p.seen[id] = set
	}
	if _, dup := set[relay]; dup {
		p.mu.Unlock()
		return
	}
	set[relay] = struct{}{}
	p.counts[relay]++
	count := p.counts[relay]
	p.mu.Unlock()

	if p.statsEmitter != nil {
		p.statsEmitter.Emit(eventbus.EvtStatsUpdated{Relay: relay, Count: int(count)})
	}
}

// SeenOn 返回送达过该消息的中继
func (p *Pool) SeenOn(id types.NoteID) []types.RelayURL {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.RelayURL, 0, len(p.seen[id]))
	for u := range p.seen[id] {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b types.RelayURL) int { return strings.Compare(a.String(), b.String()) })
	return out
}

// Count 返回中继首次送达的消息数
func (p *Pool) Count(relay types.RelayURL) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[relay]
}

// resubscribeAll 向刚连上的中继重发所有相关订阅
func (p *Pool) resubscribeAll(url types.RelayURL) {
	p.mu.Lock()
	handlers := slices.Clone(p.handlers)
	p.mu.Unlock()

	for _, h := range handlers {
		if h.filters == nil || !h.covers(url) {
			continue
		}
		logger.Debug("重新订阅", "sub", h.subID, "relay", url.String())
		if err := p.Send(context.Background(), wire.Req(h.subID, h.filters), []types.RelayURL{url}, h.targets == nil); err != nil {
			logger.Debug("重新订阅失败", "sub", h.subID, "relay", url.String(), "error", err)
		}
	}
}

// ============================================================================
//                              认证
// ============================================================================

func (p *Pool) setAuth(url types.RelayURL, state types.AuthState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.relays[url]; ok {
		r.auth = state
	}
}

// handleAuth 响应 NIP-42 认证挑战，签名在独立 goroutine 中进行
func (p *Pool) handleAuth(url types.RelayURL, challenge string) {
	logger.Info("收到认证挑战", "relay", url.String())
	p.setAuth(url, types.AuthPending)

	if p.auth == nil {
		logger.Warn("没有可用的认证器，无法响应认证挑战", "relay", url.String())
		p.setAuth(url, types.AuthError)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.connCfg.ConnectTimeout.Duration())
		defer cancel()

		ev, err := p.auth.SignAuth(ctx, url, challenge)
		if err != nil || ev == nil {
			logger.Warn("生成认证消息失败", "relay", url.String(), "error", err)
			p.setAuth(url, types.AuthError)
			return
		}
		if err := p.Send(ctx, wire.Auth(ev), []types.RelayURL{url}, false); err != nil {
			logger.Warn("发送认证消息失败", "relay", url.String(), "error", err)
			p.setAuth(url, types.AuthError)
			return
		}
		p.setAuth(url, types.AuthVerified)
	}()
}
