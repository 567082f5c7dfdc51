package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// ============================================================================
//                              主题
// ============================================================================

// topic 单个事件类型的订阅者与发射器
//
// emitters 由 Bus.mu 保护；subs 写时复制，发射时直接读取快照。
type topic struct {
	key      reflect.Type
	emitters int

	subsMu sync.Mutex
	subs   atomic.Pointer[[]*Subscription]

	// sticky 为 true 时新订阅者先收到 last
	sticky atomic.Bool
	last   atomic.Value
}

func (t *topic) snapshot() []*Subscription {
	if p := t.subs.Load(); p != nil {
		return *p
	}
	return nil
}

func (t *topic) attach(sub *Subscription) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	cur := t.snapshot()
	next := make([]*Subscription, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, sub)
	t.subs.Store(&next)

	if t.sticky.Load() {
		if last := t.last.Load(); last != nil {
			sub.deliver(last.(stickyEvent).v)
		}
	}
}

func (t *topic) detach(sub *Subscription) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	cur := t.snapshot()
	next := make([]*Subscription, 0, len(cur))
	for _, s := range cur {
		if s != sub {
			next = append(next, s)
		}
	}
	t.subs.Store(&next)
}

func (t *topic) detachAll() []*Subscription {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	cur := t.snapshot()
	t.subs.Store(&[]*Subscription{})
	return cur
}

// stickyEvent 包装最后一次事件，atomic.Value 要求类型一致
type stickyEvent struct{ v interface{} }

func (t *topic) publish(event interface{}) {
	if t.sticky.Load() {
		t.last.Store(stickyEvent{v: event})
	}
	for _, sub := range t.snapshot() {
		sub.deliver(event)
	}
}

// ============================================================================
//                              订阅
// ============================================================================

// Subscription 订阅
type Subscription struct {
	bus   *Bus
	topic *topic

	mu     sync.Mutex
	out    chan interface{}
	closed bool

	dropped atomic.Int64
}

func newSubscription(b *Bus, t *topic, buffer int) *Subscription {
	return &Subscription{bus: b, topic: t, out: make(chan interface{}, buffer)}
}

// Out 返回事件通道，订阅关闭后通道被关闭
func (s *Subscription) Out() <-chan interface{} {
	return s.out
}

// Dropped 因缓冲区满被丢弃的事件数
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close 取消订阅，可重复调用
func (s *Subscription) Close() error {
	s.bus.unsubscribe(s)
	s.shut()
	return nil
}

// deliver 非阻塞投递；关闭后的投递直接忽略
func (s *Subscription) deliver(event interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- event:
	default:
		if n := s.dropped.Add(1); n%100 == 1 {
			logger.Warn("订阅者处理过慢，丢弃事件", "type", s.topic.key.String(), "dropped", n)
		}
	}
}

func (s *Subscription) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// ============================================================================
//                              发射器
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus    *Bus
	topic  *topic
	closed atomic.Bool
}

// Emit 发射事件，永不阻塞
func (e *Emitter) Emit(event interface{}) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	e.topic.publish(event)
	return nil
}

// Close 关闭发射器，可重复调用
func (e *Emitter) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.bus.releaseEmitter(e.topic)
	}
	return nil
}
