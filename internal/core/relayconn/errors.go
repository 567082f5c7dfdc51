package relayconn

import "errors"

var (
	// ErrNotConnected 连接未处于 Connected 状态
	ErrNotConnected = errors.New("relayconn: not connected")

	// ErrTimeout 拨号超过 ConnectTimeout
	ErrTimeout = errors.New("relayconn: connect timeout")

	// ErrClosed 连接已关闭
	ErrClosed = errors.New("relayconn: closed")
)
