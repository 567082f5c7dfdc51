package interfaces

import (
	"context"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// Transport 到单个中继的全双工文本帧通道
//
// 一个 Transport 对应一次成功的拨号，关闭后不可复用。
// Send 与 Receive 可以在不同 goroutine 中并发调用，
// 但 Send 之间、Receive 之间不要求并发安全。
type Transport interface {
	// Send 发送一个完整的文本帧
	Send(ctx context.Context, frame []byte) error

	// Receive 阻塞读取下一个文本帧
	//
	// 连接被对端或本端关闭后返回错误。
	Receive(ctx context.Context) ([]byte, error)

	// Ping 发送保活探测并等待响应
	Ping(ctx context.Context) error

	// Close 关闭连接，可重复调用
	Close() error
}

// Dialer 建立到中继的 Transport
type Dialer interface {
	Dial(ctx context.Context, url types.RelayURL) (Transport, error)
}

// DialerFunc 函数适配器
type DialerFunc func(ctx context.Context, url types.RelayURL) (Transport, error)

// Dial 实现 Dialer
func (f DialerFunc) Dial(ctx context.Context, url types.RelayURL) (Transport, error) {
	return f(ctx, url)
}
