package mocks

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// ErrMockClosed 模拟传输已关闭
var ErrMockClosed = errors.New("mock transport closed")

// MockTransport 模拟 Transport 接口实现
//
// 默认行为是一条内存连接：Push 推入的帧由 Receive 依次读出，
// Send 记录帧并调用 OnSend。
type MockTransport struct {
	URL types.RelayURL

	// 可覆盖的方法
	SendFunc    func(ctx context.Context, data []byte) error
	ReceiveFunc func(ctx context.Context) ([]byte, error)
	PingFunc    func(ctx context.Context) error
	CloseFunc   func() error

	// OnSend 在帧被记录后调用，可通过 tr.Push 回推响应
	OnSend func(tr *MockTransport, frame []byte)

	mu        sync.Mutex
	sent      [][]byte
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	// 调用记录
	PingCalls int
}

var _ interfaces.Transport = (*MockTransport)(nil)

// NewMockTransport 创建带有默认值的 MockTransport
func NewMockTransport(url types.RelayURL) *MockTransport {
	return &MockTransport{
		URL:     url,
		inbound: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

// Send 记录并发送帧
func (m *MockTransport) Send(ctx context.Context, data []byte) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, data)
	}
	if m.IsClosed() {
		return ErrMockClosed
	}
	frame := append([]byte(nil), data...)
	m.mu.Lock()
	m.sent = append(m.sent, frame)
	onSend := m.OnSend
	m.mu.Unlock()

	if onSend != nil {
		onSend(m, frame)
	}
	return nil
}

// Receive 读取下一条推入的帧
func (m *MockTransport) Receive(ctx context.Context) ([]byte, error) {
	if m.ReceiveFunc != nil {
		return m.ReceiveFunc(ctx)
	}
	select {
	case frame := <-m.inbound:
		return frame, nil
	case <-m.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ping 保活探测
func (m *MockTransport) Ping(ctx context.Context) error {
	m.mu.Lock()
	m.PingCalls++
	m.mu.Unlock()

	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	if m.IsClosed() {
		return ErrMockClosed
	}
	return nil
}

// Close 关闭连接，Receive 随后返回 io.EOF
func (m *MockTransport) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// Drop 模拟对端断开
func (m *MockTransport) Drop() {
	m.closeOnce.Do(func() { close(m.closed) })
}

// IsClosed 是否已关闭
func (m *MockTransport) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Push 推入一条入站帧
func (m *MockTransport) Push(frame []byte) {
	select {
	case m.inbound <- frame:
	case <-m.closed:
	}
}

// PushString 推入一条文本入站帧
func (m *MockTransport) PushString(frame string) {
	m.Push([]byte(frame))
}

// Sent 返回已发送帧的副本
func (m *MockTransport) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, f := range m.sent {
		out[i] = string(f)
	}
	return out
}

// SetOnSend 并发安全地替换 OnSend
func (m *MockTransport) SetOnSend(fn func(tr *MockTransport, frame []byte)) {
	m.mu.Lock()
	m.OnSend = fn
	m.mu.Unlock()
}

// ============================================================================
//                              MockDialer
// ============================================================================

// MockDialer 模拟 Dialer 接口实现
type MockDialer struct {
	// 可覆盖的方法
	DialFunc func(ctx context.Context, url types.RelayURL) (interfaces.Transport, error)

	// OnDial 新建 MockTransport 后调用，用于安装 OnSend 等行为
	OnDial func(url types.RelayURL, tr *MockTransport)

	mu       sync.Mutex
	conns    map[types.RelayURL][]*MockTransport
	failures map[types.RelayURL]error

	// 调用记录
	DialCalls []types.RelayURL
}

var _ interfaces.Dialer = (*MockDialer)(nil)

// NewMockDialer 创建带有默认值的 MockDialer
func NewMockDialer() *MockDialer {
	return &MockDialer{
		conns:    make(map[types.RelayURL][]*MockTransport),
		failures: make(map[types.RelayURL]error),
	}
}

// Dial 拨号
func (m *MockDialer) Dial(ctx context.Context, url types.RelayURL) (interfaces.Transport, error) {
	m.mu.Lock()
	m.DialCalls = append(m.DialCalls, url)
	dialFunc := m.DialFunc
	failure := m.failures[url]
	onDial := m.OnDial
	m.mu.Unlock()

	if dialFunc != nil {
		return dialFunc(ctx, url)
	}
	if failure != nil {
		return nil, failure
	}

	tr := NewMockTransport(url)
	if onDial != nil {
		onDial(url, tr)
	}
	m.mu.Lock()
	m.conns[url] = append(m.conns[url], tr)
	m.mu.Unlock()
	return tr, nil
}

// SetFailure 设置拨号失败，err 为 nil 时恢复正常
func (m *MockDialer) SetFailure(url types.RelayURL, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, url)
		return
	}
	m.failures[url] = err
}

// Last 返回到指定地址的最近一条连接
func (m *MockDialer) Last(url types.RelayURL) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.conns[url]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// Dials 返回到指定地址的拨号次数
func (m *MockDialer) Dials(url types.RelayURL) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.DialCalls {
		if u == url {
			n++
		}
	}
	return n
}
