package introspect

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/metrics"
	"github.com/dep2p/go-relaypool/internal/core/pool"
	"github.com/dep2p/go-relaypool/internal/core/postbox"
)

// Module 诊断服务 Fx 模块，Diagnostics.EnableIntrospect 为 false 时提供 nil
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// IntrospectParams 诊断服务依赖，全部可选
type IntrospectParams struct {
	fx.In

	UnifiedCfg *config.Config   `optional:"true"`
	Pool       *pool.Pool       `optional:"true"`
	PostBox    *postbox.PostBox `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// ConfigFromUnified 未启用诊断时返回 nil
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil || !cfg.Diagnostics.EnableIntrospect {
		return nil
	}
	return &Config{Addr: cfg.Diagnostics.IntrospectAddr}
}

// NewFromParams 按统一配置组装诊断服务
func NewFromParams(p IntrospectParams) *Server {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if cfg == nil {
		return nil
	}
	// 接口字段不能直接接收 nil 指针，否则判空失效
	if p.Pool != nil {
		cfg.Pool = p.Pool
	}
	if p.PostBox != nil {
		cfg.PostBox = p.PostBox
	}
	cfg.Gatherer = p.Metrics.Gatherer()
	return New(*cfg)
}

func registerLifecycle(lc fx.Lifecycle, server *Server) {
	if server == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: server.Start,
		OnStop:  func(context.Context) error { return server.Stop() },
	})
}
