package config

import (
	"fmt"
	"strings"
)

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别（debug / info / warn / error）
	// 默认值: info
	Level string `json:"level"`

	// Format 输出格式（console / json）
	// 默认值: console
	Format string `json:"format"`

	// File 日志文件路径，为空时输出到 stderr
	File string `json:"file,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "console"}
}

// Validate 验证日志配置
func (c *LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	case "":
		c.Level = "info"
	default:
		return fmt.Errorf("log: unknown level %q", c.Level)
	}
	switch c.Format {
	case "console", "json":
	case "":
		c.Format = "console"
	default:
		return fmt.Errorf("log: unknown format %q", c.Format)
	}
	return nil
}
