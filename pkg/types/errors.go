// Package types 定义 relaypool 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import "errors"

// ============================================================================
//                              标识相关错误
// ============================================================================

var (
	// ErrInvalidRelayURL 无效的中继地址
	ErrInvalidRelayURL = errors.New("invalid relay url")

	// ErrUnsupportedScheme 不支持的地址协议（仅支持 ws/wss）
	ErrUnsupportedScheme = errors.New("relay url scheme must be ws or wss")

	// ErrInvalidNoteID 无效的消息 ID
	ErrInvalidNoteID = errors.New("invalid note id: must be 64 hex characters")
)
