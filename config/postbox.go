package config

import (
	"fmt"
	"time"
)

// 确认策略
const (
	// AckAll 全部目标中继确认后完成
	AckAll = "all"
	// AckAny 任一目标中继确认后完成
	AckAny = "any"
)

// PostBoxConfig 发件箱配置
type PostBoxConfig struct {
	// RetryBase 首次重试前的等待时间
	// 默认值: 10s
	RetryBase Duration `json:"retry_base"`

	// RetryMultiplier 每次重试后等待时间的放大倍数
	// 默认值: 1.5
	RetryMultiplier float64 `json:"retry_multiplier"`

	// FlushInterval 后台刷新间隔
	// 默认值: 1s
	FlushInterval Duration `json:"flush_interval"`

	// AckPolicy 默认确认策略（all / any）
	// 默认值: all
	AckPolicy string `json:"ack_policy"`
}

// DefaultPostBoxConfig 返回默认发件箱配置
func DefaultPostBoxConfig() PostBoxConfig {
	return PostBoxConfig{
		RetryBase:       Duration(10 * time.Second),
		RetryMultiplier: 1.5,
		FlushInterval:   Duration(1 * time.Second),
		AckPolicy:       AckAll,
	}
}

// Validate 验证发件箱配置
func (c *PostBoxConfig) Validate() error {
	if c.RetryBase <= 0 {
		return fmt.Errorf("postbox: retry_base must be > 0")
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("postbox: retry_multiplier must be >= 1")
	}
	switch c.AckPolicy {
	case AckAll, AckAny:
	case "":
		c.AckPolicy = AckAll
	default:
		return fmt.Errorf("postbox: unknown ack_policy %q", c.AckPolicy)
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = Duration(1 * time.Second)
	}
	return nil
}
