package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// MockReachability 模拟 ReachabilityMonitor 接口实现
//
// 测试通过 Set 推送状态。
type MockReachability struct {
	// 可覆盖的方法
	StartFunc func(ctx context.Context) error
	StopFunc  func() error

	mu       sync.Mutex
	status   types.NetworkStatus
	updates  chan types.NetworkStatus
	stopped  bool
	Notifies int
}

var _ interfaces.ReachabilityMonitor = (*MockReachability)(nil)

// NewMockReachability 创建初始状态为 Satisfied 的 MockReachability
func NewMockReachability() *MockReachability {
	return &MockReachability{
		status:  types.NetworkSatisfied,
		updates: make(chan types.NetworkStatus, 16),
	}
}

// Start 启动
func (m *MockReachability) Start(ctx context.Context) error {
	if m.StartFunc != nil {
		return m.StartFunc(ctx)
	}
	return nil
}

// Stop 停止并关闭 Updates 通道
func (m *MockReachability) Stop() error {
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.stopped = true
		close(m.updates)
	}
	return nil
}

// Updates 状态通道
func (m *MockReachability) Updates() <-chan types.NetworkStatus {
	return m.updates
}

// NotifyChange 记录外部通知
func (m *MockReachability) NotifyChange() {
	m.mu.Lock()
	m.Notifies++
	m.mu.Unlock()
}

// CurrentStatus 当前状态
func (m *MockReachability) CurrentStatus() types.NetworkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Set 推送新状态
func (m *MockReachability) Set(status types.NetworkStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.status = status
	m.updates <- status
}
