package storage

import (
	"errors"

	"github.com/dep2p/go-relaypool/internal/core/storage/engine"
)

// 重导出 engine 包的错误，方便使用方直接使用
var (
	// ErrNotFound 消息不存在
	ErrNotFound = engine.ErrNotFound

	// ErrClosed 存储已关闭
	ErrClosed = engine.ErrClosed

	// ErrNilEvent 试图保存空消息
	ErrNilEvent = engine.ErrNilEvent
)

// IsNotFound 检查是否为消息不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
