package relaypool

import (
	"github.com/dep2p/go-relaypool/internal/core/pool"
	"github.com/dep2p/go-relaypool/internal/core/postbox"
	"github.com/dep2p/go-relaypool/internal/core/relayconn"
	"github.com/dep2p/go-relaypool/internal/protocol/wire"
)

// 公共错误定义，可用 errors.Is 匹配
var (
	// ────────────────────────────────────────────────────────────────────────
	// 连接
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotConnected 中继未连接
	ErrNotConnected = relayconn.ErrNotConnected

	// ErrTimeout 拨号超时；订阅与 EnsureConnected 的超时以部分结果返回
	ErrTimeout = relayconn.ErrTimeout

	// ErrMalformedMessage 无法解析的入站帧（记录日志后丢弃）
	ErrMalformedMessage = wire.ErrMalformedMessage

	// ────────────────────────────────────────────────────────────────────────
	// 中继池
	// ────────────────────────────────────────────────────────────────────────

	// ErrRelayNotFound 中继不在池中
	ErrRelayNotFound = pool.ErrRelayNotFound

	// ErrQueueFull 待发送请求队列已满
	ErrQueueFull = pool.ErrQueueFull

	// ErrLeaseUnderflow 临时中继租约计数将变为负数
	ErrLeaseUnderflow = pool.ErrLeaseUnderflow

	// ErrClosed 中继池已关闭
	ErrClosed = pool.ErrClosed

	// ────────────────────────────────────────────────────────────────────────
	// 发件箱
	// ────────────────────────────────────────────────────────────────────────

	// ErrAckFailure 中继拒绝了消息
	ErrAckFailure = postbox.ErrAckFailure

	// ErrNothingToCancel 发件箱中没有该消息
	ErrNothingToCancel = postbox.ErrNothingToCancel
)
