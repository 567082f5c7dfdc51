// Package notifyqueue 提供单消费者、可缓冲的通知队列
//
// 没有消费者时，通知被缓存；消费者接入后先收到全部缓存，再收到后续通知。
// 所有状态只由一个 actor goroutine 持有，接入与投递之间不存在竞态，
// 不会出现重复投递或丢失（容量溢出时按 drop-oldest 丢弃并计数）。
package notifyqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrConsumerAttached 已有消费者接入
	ErrConsumerAttached = errors.New("notifyqueue: consumer already attached")
	// ErrClosed 队列已关闭
	ErrClosed = errors.New("notifyqueue: closed")
)

// DefaultCapacity 默认缓存容量
const DefaultCapacity = 1024

// Queue 单消费者通知队列
type Queue[T any] struct {
	capacity int

	adds    chan T
	attachC chan attachReq[T]
	lenC    chan chan int

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	dropped atomic.Uint64
}

type attachReq[T any] struct {
	ctx   context.Context
	reply chan attachResp[T]
}

type attachResp[T any] struct {
	out <-chan T
	err error
}

type consumer[T any] struct {
	ctx context.Context
	out chan T
}

// New 创建队列并启动 actor，capacity <= 0 时使用 DefaultCapacity
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue[T]{
		capacity: capacity,
		adds:     make(chan T),
		attachC:  make(chan attachReq[T]),
		lenC:     make(chan chan int),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

// Add 提交一个通知
func (q *Queue[T]) Add(ctx context.Context, item T) error {
	select {
	case q.adds <- item:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stream 接入唯一消费者
//
// 返回的通道先输出缓存的通知，再输出后续通知。
// ctx 结束时消费者断开、通道关闭，之后的通知重新进入缓存。
func (q *Queue[T]) Stream(ctx context.Context) (<-chan T, error) {
	req := attachReq[T]{ctx: ctx, reply: make(chan attachResp[T], 1)}
	select {
	case q.attachC <- req:
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	resp := <-req.reply
	return resp.out, resp.err
}

// Len 当前缓存中尚未投递的通知数
func (q *Queue[T]) Len() int {
	reply := make(chan int, 1)
	select {
	case q.lenC <- reply:
		return <-reply
	case <-q.done:
		return 0
	}
}

// Dropped 因容量溢出被丢弃的通知数
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Close 停止 actor 并关闭消费者通道，可重复调用
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.quit)
	})
	<-q.done
}

// run actor 主循环，独占 buf 与 cur
func (q *Queue[T]) run() {
	defer close(q.done)

	var (
		buf []T
		cur *consumer[T]
	)

	detach := func() {
		if cur != nil {
			close(cur.out)
			cur = nil
		}
	}
	defer detach()

	for {
		var (
			sendC   chan T
			head    T
			detachC <-chan struct{}
		)
		if cur != nil {
			detachC = cur.ctx.Done()
			if len(buf) > 0 {
				sendC = cur.out
				head = buf[0]
			}
		}

		select {
		case item := <-q.adds:
			if len(buf) >= q.capacity {
				var zero T
				buf[0] = zero
				buf = buf[1:]
				q.dropped.Add(1)
			}
			buf = append(buf, item)

		case req := <-q.attachC:
			if cur != nil {
				req.reply <- attachResp[T]{err: ErrConsumerAttached}
				continue
			}
			cur = &consumer[T]{ctx: req.ctx, out: make(chan T)}
			req.reply <- attachResp[T]{out: cur.out}

		case sendC <- head:
			var zero T
			buf[0] = zero
			buf = buf[1:]

		case <-detachC:
			detach()

		case reply := <-q.lenC:
			reply <- len(buf)

		case <-q.quit:
			return
		}
	}
}
