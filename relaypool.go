package relaypool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/fx"

	"github.com/dep2p/go-relaypool/internal/core/pool"
	"github.com/dep2p/go-relaypool/internal/core/postbox"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
)

var logger = log.Logger("relaypool")

// ============================================================================
//                              版本信息
// ============================================================================

// Version 当前版本
const Version = "v0.1.0"

// GitCommit 构建时通过 ldflags 注入
var GitCommit string

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "relaypool " + Version
	if GitCommit != "" {
		info += " (" + log.TruncateID(GitCommit, 8) + ")"
	}
	return info
}

// ============================================================================
//                              Client
// ============================================================================

// Client 组装好的中继客户端
type Client struct {
	app     *fx.App
	pool    *pool.Pool
	postbox *postbox.PostBox
	store   pkgif.EventStore
	bus     pkgif.EventBus

	closeOnce sync.Once
	closeErr  error
}

// New 按选项构建并启动客户端
//
// 启动时加入配置中的默认中继并发起连接；ctx 只约束启动过程。
func New(ctx context.Context, opts ...Option) (*Client, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	cfg, err := o.toConfig()
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, err
	}

	c := &Client{}
	app, err := buildFxApp(cfg, o, c)
	if err != nil {
		return nil, err
	}
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		return nil, fmt.Errorf("start client: %w", err)
	}
	c.app = app

	logger.Info("客户端已启动", "version", Version, "relays", len(c.pool.Relays()))
	return c, nil
}

// Pool 中继池
func (c *Client) Pool() *pool.Pool { return c.pool }

// PostBox 发件箱
func (c *Client) PostBox() *postbox.PostBox { return c.postbox }

// Store 本地消息存储
func (c *Client) Store() pkgif.EventStore { return c.store }

// EventBus 事件总线
func (c *Client) EventBus() pkgif.EventBus { return c.bus }

// Close 停止后台任务、关闭全部连接和存储，可重复调用
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.app.StopTimeout())
		defer cancel()
		c.closeErr = c.app.Stop(ctx)
		logger.Info("客户端已关闭")
	})
	return c.closeErr
}
