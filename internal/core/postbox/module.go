package postbox

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/metrics"
	"github.com/dep2p/go-relaypool/internal/core/pool"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
)

// Params PostBox 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config   `optional:"true"`
	Pool       *pool.Pool
	Bus        pkgif.EventBus   `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// Module 返回发件箱 Fx 模块
//
// 生命周期:
//   - OnStart: 启动后台刷新
//   - OnStop: 停止后台刷新并注销确认处理器
func Module() fx.Option {
	return fx.Module("postbox",
		fx.Provide(ProvidePostBox),
	)
}

// ProvidePostBox 创建发件箱并注册生命周期
func ProvidePostBox(lc fx.Lifecycle, p Params) (*PostBox, error) {
	cfg := config.DefaultPostBoxConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.PostBox
	}

	b, err := New(p.Pool, Options{Config: cfg, Bus: p.Bus, Metrics: p.Metrics})
	if err != nil {
		return nil, err
	}

	var cancel context.CancelFunc
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				b.Run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
				select {
				case <-done:
				case <-ctx.Done():
				}
			}
			return b.Close()
		},
	})
	return b, nil
}
