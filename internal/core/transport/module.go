// Package transport 组装到中继的传输层
//
// 默认使用 WebSocket（gorilla/websocket）拨号，也可以通过 fx 注入自定义 Dialer，
// 测试中常用内存管道实现替换真实网络。
package transport

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/transport/websocket"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// Params 传输模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Override   pkgif.Dialer   `name:"user_dialer" optional:"true"`
}

// Module 返回传输层 Fx 模块
//
// 提供 interfaces.Dialer：用户注入的拨号器，或默认的 WebSocket 拨号器。
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideDialer),
	)
}

// ProvideDialer 提供拨号器
func ProvideDialer(p Params) pkgif.Dialer {
	if p.Override != nil {
		logger.Debug("using injected dialer")
		return p.Override
	}
	cfg := config.DefaultConnectionConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Connection
	}
	return websocket.NewDialer(websocket.Options{
		HandshakeTimeout: cfg.ConnectTimeout.Duration(),
		WriteTimeout:     cfg.WriteTimeout.Duration(),
		MaxMessageSize:   cfg.MaxMessageSize,
	})
}
