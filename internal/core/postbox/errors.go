package postbox

import "errors"

var (
	// ErrNothingToCancel 发件箱中没有该消息
	ErrNothingToCancel = errors.New("postbox: nothing to cancel")

	// ErrNotDelayed 消息不是延迟发送
	ErrNotDelayed = errors.New("postbox: send was not delayed")

	// ErrTooLate 延迟已过，消息可能已经发出
	ErrTooLate = errors.New("postbox: too late to cancel")

	// ErrAckFailure 中继拒绝了消息（OK false）
	ErrAckFailure = errors.New("postbox: relay rejected event")

	// ErrNoTargets 没有可写的目标中继
	ErrNoTargets = errors.New("postbox: no writable target relays")
)
