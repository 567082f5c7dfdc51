package config

import (
	"fmt"
	"time"
)

// PoolConfig 中继池配置
type PoolConfig struct {
	// DefaultRelays 启动时加入池的常规中继
	DefaultRelays []string `json:"default_relays,omitempty"`

	// EOSETimeout 订阅等待全部中继 EOSE 的最长时间，超时后合成 EOSE
	// 默认值: 5s
	EOSETimeout Duration `json:"eose_timeout"`

	// EphemeralTeardownDelay 临时中继租约归零后到断开的延迟
	// 默认值: 1s
	EphemeralTeardownDelay Duration `json:"ephemeral_teardown_delay"`

	// StaleConnectTimeout 连接中状态超过该时长视为卡住，允许重新拨号
	// 默认值: 5s
	StaleConnectTimeout Duration `json:"stale_connect_timeout"`

	// EnsureConnectedTimeout EnsureConnected 默认等待时长
	// 默认值: 2s
	EnsureConnectedTimeout Duration `json:"ensure_connected_timeout"`

	// MaxQueuedRequests 每个未连接中继最多排队的请求数
	// 默认值: 10
	MaxQueuedRequests int `json:"max_queued_requests"`

	// MaxConcurrentSubscriptions 同时活跃的一次性订阅上限
	// 默认值: 14
	MaxConcurrentSubscriptions int `json:"max_concurrent_subscriptions"`

	// SubscriptionBuffer 每个订阅流的缓冲大小
	// 默认值: 256
	SubscriptionBuffer int `json:"subscription_buffer"`
}

// DefaultPoolConfig 返回默认中继池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		EOSETimeout:                Duration(5 * time.Second),
		EphemeralTeardownDelay:     Duration(1 * time.Second),
		StaleConnectTimeout:        Duration(5 * time.Second),
		EnsureConnectedTimeout:     Duration(2 * time.Second),
		MaxQueuedRequests:          10,
		MaxConcurrentSubscriptions: 14,
		SubscriptionBuffer:         256,
	}
}

// Validate 验证中继池配置
func (c *PoolConfig) Validate() error {
	if c.EOSETimeout <= 0 {
		return fmt.Errorf("pool: eose_timeout must be > 0")
	}
	if c.EphemeralTeardownDelay < 0 {
		return fmt.Errorf("pool: ephemeral_teardown_delay must be >= 0")
	}
	if c.StaleConnectTimeout <= 0 {
		return fmt.Errorf("pool: stale_connect_timeout must be > 0")
	}
	if c.MaxQueuedRequests < 0 {
		return fmt.Errorf("pool: max_queued_requests must be >= 0")
	}
	if c.MaxConcurrentSubscriptions < 1 {
		return fmt.Errorf("pool: max_concurrent_subscriptions must be >= 1")
	}
	if c.SubscriptionBuffer < 1 {
		c.SubscriptionBuffer = 256
	}
	if c.EnsureConnectedTimeout <= 0 {
		c.EnsureConnectedTimeout = Duration(2 * time.Second)
	}
	return nil
}
