package pool

import "errors"

var (
	// ErrRelayAlreadyExists 中继已在池中
	ErrRelayAlreadyExists = errors.New("pool: relay already exists")

	// ErrRelayNotFound 中继不在池中
	ErrRelayNotFound = errors.New("pool: relay not found")

	// ErrQueueFull 离线请求队列已满
	ErrQueueFull = errors.New("pool: request queue full")

	// ErrLeaseUnderflow 租约释放次数多于获取次数
	ErrLeaseUnderflow = errors.New("pool: ephemeral lease underflow")

	// ErrClosed 中继池已关闭
	ErrClosed = errors.New("pool: closed")

	// ErrNoDialer 未提供拨号器
	ErrNoDialer = errors.New("pool: dialer is required")
)
