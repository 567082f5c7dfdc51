package config

import "fmt"

// CacheConfig 消息去重缓存配置
type CacheConfig struct {
	// Capacity 最多缓存的消息数
	// 默认值: 100000
	Capacity int `json:"capacity"`
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Capacity: 100_000}
}

// Validate 验证缓存配置
func (c *CacheConfig) Validate() error {
	if c.Capacity < 0 {
		return fmt.Errorf("cache: capacity must be >= 0")
	}
	return nil
}
