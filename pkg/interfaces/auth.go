package interfaces

import (
	"context"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// Authenticator 为 NIP-42 认证挑战生成已签名的认证消息
//
// 签名不在中继池职责内；未提供 Authenticator 时，
// 收到挑战的中继认证状态置为 AuthError。
type Authenticator interface {
	SignAuth(ctx context.Context, relay types.RelayURL, challenge string) (*types.Event, error)
}
