package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// 存储后端
const (
	// BackendMemory 进程内存储，进程退出即丢失
	BackendMemory = "memory"
	// BackendBadger BadgerDB 持久化存储
	BackendBadger = "badger"
)

// StorageConfig 本地消息存储配置
//
// 数据目录结构：
//
//	${DataDir}/
//	└── events.db/          # BadgerDB 消息库
type StorageConfig struct {
	// Backend 存储后端（memory / badger）
	// 默认值: memory
	Backend string `json:"backend"`

	// DataDir 数据目录路径
	// 默认值: "./data"
	DataDir string `json:"data_dir"`

	// InMemory badger 后端不落盘（用于测试）
	// 默认值: false
	InMemory bool `json:"in_memory"`

	// SyncWrites 每次写入同步到磁盘
	// 默认值: false
	SyncWrites bool `json:"sync_writes"`

	// GCInterval badger value log 垃圾回收间隔，0 表示禁用
	// 默认值: 10m
	GCInterval Duration `json:"gc_interval"`

	// GCDiscardRatio 垃圾回收丢弃比例
	// 默认值: 0.5
	GCDiscardRatio float64 `json:"gc_discard_ratio"`
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:        BackendMemory,
		DataDir:        "./data",
		GCInterval:     Duration(10 * time.Minute),
		GCDiscardRatio: 0.5,
	}
}

// Validate 验证存储配置
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.DataDir == "" && !c.InMemory {
			return fmt.Errorf("storage: data_dir cannot be empty")
		}
	case "":
		c.Backend = BackendMemory
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Backend)
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		c.GCDiscardRatio = 0.5
	}
	if c.GCInterval < 0 {
		c.GCInterval = 0
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "events.db")
}
