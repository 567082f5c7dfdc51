package eventbus

import (
	"errors"
	"reflect"
	"sync"

	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrClosed 事件总线已关闭
	ErrClosed = errors.New("eventbus: closed")

	// ErrInvalidEventType 事件类型为空
	ErrInvalidEventType = errors.New("eventbus: invalid event type")

	// ErrNonPointerType 事件类型必须以指针传入，例如 new(EvtPostAcked)
	ErrNonPointerType = errors.New("eventbus: event type must be a pointer")

	// ErrEmitterClosed 发射器已关闭
	ErrEmitterClosed = errors.New("eventbus: emitter closed")
)

// defaultBuffer 订阅默认缓冲区大小
const defaultBuffer = 16

// Bus 按事件类型分主题的进程内事件总线
//
// Emit 从不阻塞：订阅者缓冲区满时丢弃该事件并计数。
// 每个主题的订阅者列表写时复制，发射时不持有总线锁。
type Bus struct {
	mu     sync.Mutex
	topics map[reflect.Type]*topic
	closed bool
}

var _ pkgif.EventBus = (*Bus)(nil)

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type]*topic)}
}

// topicKey 校验 new(EvtX) 形式的参数并返回 EvtX 类型
func topicKey(eventType interface{}) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	t := reflect.TypeOf(eventType)
	if t.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return t.Elem(), nil
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType interface{}, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	key, err := topicKey(eventType)
	if err != nil {
		return nil, err
	}
	settings := pkgif.SubscriptionSettings{Buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&settings)
	}
	settings.Buffer = max(settings.Buffer, 0)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	t := b.topicLocked(key)
	sub := newSubscription(b, t, settings.Buffer)
	t.attach(sub)
	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType interface{}, opts ...pkgif.EmitterOpt) (pkgif.Emitter, error) {
	key, err := topicKey(eventType)
	if err != nil {
		return nil, err
	}
	var settings pkgif.EmitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	t := b.topicLocked(key)
	t.emitters++
	if settings.Stateful {
		t.sticky.Store(true)
	}
	return &Emitter{bus: b, topic: t}, nil
}

// GetAllEventTypes 返回当前有订阅者或发射器的事件类型（零值实例）
func (b *Bus) GetAllEventTypes() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]interface{}, 0, len(b.topics))
	for key := range b.topics {
		out = append(out, reflect.Zero(key).Interface())
	}
	return out
}

// Close 关闭总线并关闭所有订阅通道，可重复调用
//
// 之后 Subscribe / Emitter 返回 ErrClosed，已有发射器的 Emit 不再投递。
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[reflect.Type]*topic)
	b.mu.Unlock()

	for _, t := range topics {
		for _, sub := range t.detachAll() {
			sub.shut()
		}
	}
	return nil
}

func (b *Bus) topicLocked(key reflect.Type) *topic {
	t, ok := b.topics[key]
	if !ok {
		t = &topic{key: key}
		b.topics[key] = t
	}
	return t
}

// unsubscribe 从主题移除订阅，主题空闲时一并删除
func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub.topic.detach(sub)
	b.pruneLocked(sub.topic)
}

// releaseEmitter 发射器关闭时调用
func (b *Bus) releaseEmitter(t *topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t.emitters--
	b.pruneLocked(t)
}

func (b *Bus) pruneLocked(t *topic) {
	if t.emitters > 0 || len(t.snapshot()) > 0 {
		return
	}
	if cur, ok := b.topics[t.key]; ok && cur == t {
		delete(b.topics, t.key)
	}
}
