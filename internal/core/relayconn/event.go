package relayconn

import (
	"time"

	"github.com/dep2p/go-relaypool/internal/protocol/wire"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// EventKind 连接事件类型
type EventKind int

const (
	// EventConnected 传输建立
	EventConnected EventKind = iota
	// EventDisconnected 传输关闭
	EventDisconnected
	// EventError 拨号失败
	EventError
	// EventMessage 收到一条已解码的中继消息
	EventMessage
)

// String 返回事件类型名
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event 交给 Handler 的连接事件
type Event struct {
	Kind  EventKind
	Relay types.RelayURL

	// Response 仅 EventMessage
	Response *wire.Response

	// Err 断开或拨号失败原因
	Err error
}

// Handler 连接事件回调
//
// 同一条传输上的事件按顺序在该传输的读 goroutine 中回调，
// 回调内可以调用 Conn 的任意方法。
type Handler func(Event)

// Info 连接状态快照
type Info struct {
	URL         types.RelayURL
	State       types.ConnectionState
	RetryCount  int
	LastError   error
	LastAttempt time.Time
	LastPong    time.Time
	Disabled    bool
}
