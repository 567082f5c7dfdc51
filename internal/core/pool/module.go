package pool

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/eventcache"
	"github.com/dep2p/go-relaypool/internal/core/metrics"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// Params Pool 依赖参数
type Params struct {
	fx.In

	UnifiedCfg    *config.Config      `optional:"true"`
	Dialer        pkgif.Dialer
	Store         pkgif.EventStore    `optional:"true"`
	Bus           pkgif.EventBus      `optional:"true"`
	Metrics       *metrics.Metrics    `optional:"true"`
	Authenticator pkgif.Authenticator `optional:"true"`
}

// Module 返回中继池 Fx 模块
//
// 生命周期:
//   - OnStart: 加入配置中的默认中继并发起连接
//   - OnStop: 关闭中继池
func Module() fx.Option {
	return fx.Module("pool",
		fx.Provide(ProvidePool),
	)
}

// ProvidePool 创建中继池并注册生命周期
func ProvidePool(lc fx.Lifecycle, p Params) (*Pool, error) {
	cfg := config.NewConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg
	}

	relays, err := types.ParseRelayURLs(cfg.Pool.DefaultRelays)
	if err != nil {
		return nil, err
	}

	cache, err := eventcache.New(cfg.Cache.Capacity)
	if err != nil {
		return nil, err
	}

	pl, err := New(Options{
		Config:        cfg.Pool,
		Connection:    cfg.Connection,
		Dialer:        p.Dialer,
		Store:         p.Store,
		Cache:         cache,
		Authenticator: p.Authenticator,
		Bus:           p.Bus,
		Metrics:       p.Metrics,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			for _, u := range relays {
				if err := pl.AddRelay(types.NewRelayDescriptor(u)); err != nil {
					logger.Warn("添加默认中继失败", "relay", u.String(), "error", err)
				}
			}
			if len(relays) > 0 {
				logger.Info("连接默认中继", "count", len(relays))
				pl.Connect(nil)
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			return pl.Close()
		},
	})
	return pl, nil
}
