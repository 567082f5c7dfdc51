package netmon

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/pool"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
)

// Params 网络监控依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config            `optional:"true"`
	Override   pkgif.ReachabilityMonitor `name:"user_reachability" optional:"true"`
}

// Module 返回网络监控 Fx 模块
//
// 提供 interfaces.ReachabilityMonitor：用户注入的监控器，或在配置启用时
// 使用内置的网卡轮询监控；两者都没有时不做监控。
func Module() fx.Option {
	return fx.Module("netmon",
		fx.Provide(ProvideMonitor),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideMonitor 提供可达性监控器，未启用时返回 nil
func ProvideMonitor(p Params) pkgif.ReachabilityMonitor {
	if p.Override != nil {
		logger.Debug("使用注入的网络监控")
		return p.Override
	}
	cfg := config.DefaultNetworkConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Network
	}
	if !cfg.Enabled {
		return nil
	}
	return NewPollingMonitor(Options{Config: cfg})
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Monitor pkgif.ReachabilityMonitor `optional:"true"`
	Pool    *pool.Pool
}

// registerLifecycle 启动监控并把状态变化接入中继池
func registerLifecycle(in lifecycleInput) {
	if in.Monitor == nil {
		logger.Debug("网络监控未启用")
		return
	}
	bridge := NewBridge(in.Monitor, in.Pool)
	in.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			bridge.Start(context.Background())
			return in.Monitor.Start(context.Background())
		},
		OnStop: func(_ context.Context) error {
			bridge.Stop()
			return in.Monitor.Stop()
		},
	})
}
