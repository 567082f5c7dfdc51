// Package engine 定义存储后端共享的错误
package engine

import "errors"

var (
	// ErrNotFound 消息不存在
	ErrNotFound = errors.New("storage: event not found")

	// ErrClosed 存储已关闭
	ErrClosed = errors.New("storage: closed")

	// ErrNilEvent 试图保存空消息
	ErrNilEvent = errors.New("storage: nil event")
)
