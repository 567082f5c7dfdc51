// Package debounce 提供防抖执行器
//
// 窗口期内的多次调用只执行最后一次提交的动作。
package debounce

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer 防抖执行器
//
// 取消旧定时器与登记新动作在同一把锁内完成，
// 已经触发但被替换的定时器通过代数比对变为空操作。
type Debouncer struct {
	delay time.Duration
	clock clock.Clock

	mu    sync.Mutex
	timer *clock.Timer
	gen   uint64
}

// New 创建防抖执行器，clk 为 nil 时使用真实时钟
func New(delay time.Duration, clk clock.Clock) *Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer{delay: delay, clock: clk}
}

// Debounce 取消待执行动作，并在 delay 之后执行 action
func (d *Debouncer) Debounce(action func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		action()
	})
}

// Stop 取消待执行动作
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Pending 是否有待执行动作
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
