package relaypool

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/eventbus"
	"github.com/dep2p/go-relaypool/internal/core/metrics"
	"github.com/dep2p/go-relaypool/internal/core/netmon"
	"github.com/dep2p/go-relaypool/internal/core/pool"
	"github.com/dep2p/go-relaypool/internal/core/postbox"
	"github.com/dep2p/go-relaypool/internal/core/storage"
	"github.com/dep2p/go-relaypool/internal/core/transport"
	"github.com/dep2p/go-relaypool/internal/debug/introspect"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
)

var fxLogger = log.Logger("relaypool/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置与用户注入的组件
//  2. EventBus → Storage → Metrics → Transport
//  3. Pool → PostBox → NetMon
//  4. Introspect（配置启用时）
func buildFxApp(cfg *config.Config, o *options, c *Client) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置与注入
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),
	}
	if o.dialer != nil {
		modules = append(modules, fx.Provide(fx.Annotated{
			Name:   "user_dialer",
			Target: func() pkgif.Dialer { return o.dialer },
		}))
	}
	if o.store != nil {
		modules = append(modules, fx.Provide(fx.Annotated{
			Name:   "user_store",
			Target: func() pkgif.EventStore { return o.store },
		}))
	}
	if o.reachability != nil {
		modules = append(modules, fx.Provide(fx.Annotated{
			Name:   "user_reachability",
			Target: func() pkgif.ReachabilityMonitor { return o.reachability },
		}))
	}
	if o.registerer != nil {
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return o.registerer }))
	}
	if o.authenticator != nil {
		modules = append(modules, fx.Provide(func() pkgif.Authenticator { return o.authenticator }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 基础组件
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		eventbus.Module(),
		storage.Module(),
		metrics.Module(),
		transport.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 3. 中继池、发件箱、网络监控、自省服务
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		pool.Module(),
		postbox.Module(),
		netmon.Module(),
		introspect.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户扩展
	// ════════════════════════════════════════════════════════════════════════
	if len(o.fxOptions) > 0 {
		modules = append(modules, o.fxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. Client 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectClientComponents(c)))

	// ════════════════════════════════════════════════════════════════════════
	// 6. Fx 日志：debug 级别时输出到组件 logger，否则静默
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.WithLogger(func() fxevent.Logger {
		if fxLogger.Enabled(log.LevelDebug) {
			return &fxevent.ZapLogger{Logger: fxLogger.Desugar()}
		}
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}))

	return fx.New(modules...), nil
}

// clientInjectParams Client 组件注入参数
type clientInjectParams struct {
	fx.In

	Pool    *pool.Pool
	PostBox *postbox.PostBox
	Store   pkgif.EventStore
	Bus     pkgif.EventBus
}

// injectClientComponents 创建 Client 组件注入函数
func injectClientComponents(c *Client) interface{} {
	return func(p clientInjectParams) {
		c.pool = p.Pool
		c.postbox = p.PostBox
		c.store = p.Store
		c.bus = p.Bus
	}
}
