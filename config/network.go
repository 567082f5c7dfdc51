package config

import (
	"fmt"
	"time"
)

// NetworkConfig 网络可达性监控配置
type NetworkConfig struct {
	// Enabled 是否启用内置的网卡轮询监控
	// 默认值: false
	Enabled bool `json:"enabled"`

	// PollInterval 网卡轮询间隔
	// 默认值: 5s
	PollInterval Duration `json:"poll_interval"`

	// Debounce 状态变化防抖时间
	// 默认值: 500ms
	Debounce Duration `json:"debounce"`
}

// DefaultNetworkConfig 返回默认网络监控配置
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		PollInterval: Duration(5 * time.Second),
		Debounce:     Duration(500 * time.Millisecond),
	}
}

// Validate 验证网络监控配置
func (c *NetworkConfig) Validate() error {
	if c.Enabled && c.PollInterval <= 0 {
		return fmt.Errorf("network: poll_interval must be > 0")
	}
	if c.Debounce < 0 {
		c.Debounce = 0
	}
	return nil
}
