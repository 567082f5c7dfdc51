package config

import (
	"fmt"
	"time"
)

// ConnectionConfig 单中继连接配置
type ConnectionConfig struct {
	// ConnectTimeout 拨号超时
	// 默认值: 10s
	ConnectTimeout Duration `json:"connect_timeout"`

	// WriteTimeout 单帧写超时
	// 默认值: 10s
	WriteTimeout Duration `json:"write_timeout"`

	// PingTimeout 保活探测超时
	// 默认值: 10s
	PingTimeout Duration `json:"ping_timeout"`

	// PingInterval 已连接状态下的自动保活间隔，0 表示只在显式 Ping 时探测
	// 默认值: 0
	PingInterval Duration `json:"ping_interval"`

	// ReconnectInitial 重连退避初始间隔
	// 默认值: 1s
	ReconnectInitial Duration `json:"reconnect_initial"`

	// ReconnectMax 重连退避最大间隔
	// 默认值: 5m
	ReconnectMax Duration `json:"reconnect_max"`

	// ReconnectMultiplier 重连退避倍数
	// 默认值: 2.0
	ReconnectMultiplier float64 `json:"reconnect_multiplier"`

	// MaxMessageSize 单帧最大字节数
	// 默认值: 4MiB
	MaxMessageSize int64 `json:"max_message_size"`
}

// DefaultConnectionConfig 返回默认连接配置
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		ConnectTimeout:      Duration(10 * time.Second),
		WriteTimeout:        Duration(10 * time.Second),
		PingTimeout:         Duration(10 * time.Second),
		ReconnectInitial:    Duration(1 * time.Second),
		ReconnectMax:        Duration(5 * time.Minute),
		ReconnectMultiplier: 2.0,
		MaxMessageSize:      4 << 20,
	}
}

// Validate 验证连接配置
func (c *ConnectionConfig) Validate() error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connection: connect_timeout must be > 0")
	}
	if c.ReconnectInitial <= 0 {
		return fmt.Errorf("connection: reconnect_initial must be > 0")
	}
	if c.ReconnectMax < c.ReconnectInitial {
		return fmt.Errorf("connection: reconnect_max must be >= reconnect_initial")
	}
	if c.ReconnectMultiplier < 1 {
		return fmt.Errorf("connection: reconnect_multiplier must be >= 1")
	}
	if c.PingInterval < 0 {
		return fmt.Errorf("connection: ping_interval must be >= 0")
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = Duration(10 * time.Second)
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = Duration(10 * time.Second)
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4 << 20
	}
	return nil
}
