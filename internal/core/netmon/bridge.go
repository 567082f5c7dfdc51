package netmon

import (
	"context"
	"sync"

	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// ============================================================================
//                              监控与中继池桥接
// ============================================================================

// StatusHandler 网络状态消费者，*pool.Pool 实现该接口
type StatusHandler interface {
	HandleConnectivityChange(status types.NetworkStatus)
}

// Bridge 把 ReachabilityMonitor 的状态变化转交给 StatusHandler
type Bridge struct {
	monitor pkgif.ReachabilityMonitor
	handler StatusHandler

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBridge 创建桥接器
func NewBridge(monitor pkgif.ReachabilityMonitor, handler StatusHandler) *Bridge {
	return &Bridge{monitor: monitor, handler: handler}
}

// Start 开始转发，重复调用无效
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	updates := b.monitor.Updates()
	go func(done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case status, ok := <-updates:
				if !ok {
					return
				}
				logger.Debug("转发网络状态", "status", status.String())
				b.handler.HandleConnectivityChange(status)
			}
		}
	}(b.done)
}

// Stop 停止转发并等待转发协程退出
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
