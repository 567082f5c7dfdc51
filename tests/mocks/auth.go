package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// MockAuthenticator 模拟 Authenticator 接口实现
type MockAuthenticator struct {
	// 可覆盖的方法
	SignAuthFunc func(ctx context.Context, relay types.RelayURL, challenge string) (*types.Event, error)

	mu sync.Mutex

	// 调用记录
	Challenges []string
}

var _ interfaces.Authenticator = (*MockAuthenticator)(nil)

// SignAuth 生成认证消息，默认返回 kind 22242 的空签名消息
func (m *MockAuthenticator) SignAuth(ctx context.Context, relay types.RelayURL, challenge string) (*types.Event, error) {
	m.mu.Lock()
	m.Challenges = append(m.Challenges, challenge)
	m.mu.Unlock()

	if m.SignAuthFunc != nil {
		return m.SignAuthFunc(ctx, relay, challenge)
	}
	return &types.Event{
		Kind: 22242,
		Tags: [][]string{{"relay", relay.String()}, {"challenge", challenge}},
	}, nil
}

// Calls 返回收到的挑战数
func (m *MockAuthenticator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Challenges)
}
