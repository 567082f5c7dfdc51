package storage

import (
	"context"
	"io"

	"go.uber.org/fx"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/storage/badger"
	"github.com/dep2p/go-relaypool/internal/core/storage/memory"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
)

var logger = log.Logger("core/storage")

// Params Storage 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config   `optional:"true"`
	Override   pkgif.EventStore `name:"user_store" optional:"true"`
}

// Result Storage 模块提供的结果
type Result struct {
	fx.Out

	Store pkgif.EventStore
}

// Module 返回 Storage Fx 模块
//
// 提供:
//   - interfaces.EventStore: 用户注入的存储，或按配置创建的 memory / badger 存储
//
// 生命周期:
//   - OnStop: 关闭由本模块创建的存储
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideStore),
	)
}

// ProvideStore 提供消息存储
func ProvideStore(lc fx.Lifecycle, p Params) (Result, error) {
	if p.Override != nil {
		return Result{Store: p.Override}, nil
	}

	cfg := config.DefaultStorageConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Storage
	}

	st, err := New(cfg)
	if err != nil {
		return Result{}, err
	}

	if c, ok := st.(io.Closer); ok {
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				logger.Info("closing event store", "backend", cfg.Backend)
				return c.Close()
			},
		})
	}
	return Result{Store: st}, nil
}

// New 根据配置创建消息存储
func New(cfg config.StorageConfig) (pkgif.EventStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendBadger:
		logger.Debug("opening badger event store", "path", cfg.DBPath(), "in_memory", cfg.InMemory)
		st, err := badger.Open(badger.Options{
			Path:           cfg.DBPath(),
			InMemory:       cfg.InMemory,
			SyncWrites:     cfg.SyncWrites,
			GCInterval:     cfg.GCInterval.Duration(),
			GCDiscardRatio: cfg.GCDiscardRatio,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return memory.New(), nil
	}
}
