package relaypool

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-relaypool/config"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// Option 客户端配置选项
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 基础配置，为空时使用 config.NewConfig()
	config     *config.Config
	configFile string

	// 覆盖项
	relays   []string
	logLevel string

	// 注入的组件
	dialer        pkgif.Dialer
	store         pkgif.EventStore
	registerer    prometheus.Registerer
	reachability  pkgif.ReachabilityMonitor
	authenticator pkgif.Authenticator

	// 用户扩展
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{}
}

// toConfig 合并配置文件、显式配置与覆盖项
func (o *options) toConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	switch {
	case o.config != nil:
		cfg = o.config.Clone()
	case o.configFile != "":
		loaded, err := config.LoadFile(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if len(o.relays) > 0 {
		cfg.Pool.DefaultRelays = append([]string(nil), o.relays...)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.registerer != nil {
		cfg.Metrics.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ============================================================================
//                              配置
// ============================================================================

// WithConfig 使用完整配置
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return config.ErrNilConfig
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置，WithConfig 优先
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configFile = path
		return nil
	}
}

// WithRelays 设置默认中继，覆盖配置中的 pool.default_relays
func WithRelays(urls ...string) Option {
	return func(o *options) error {
		if _, err := types.ParseRelayURLs(urls); err != nil {
			return err
		}
		o.relays = append(o.relays, urls...)
		return nil
	}
}

// WithLogLevel 设置日志级别（debug / info / warn / error）
func WithLogLevel(level string) Option {
	return func(o *options) error {
		o.logLevel = level
		return nil
	}
}

// ============================================================================
//                              组件注入
// ============================================================================

// WithDialer 使用自定义拨号器替换默认的 WebSocket 拨号器
func WithDialer(d pkgif.Dialer) Option {
	return func(o *options) error {
		o.dialer = d
		return nil
	}
}

// WithStore 使用自定义消息存储替换配置创建的存储
//
// 注入的存储由调用方负责关闭。
func WithStore(s pkgif.EventStore) Option {
	return func(o *options) error {
		o.store = s
		return nil
	}
}

// WithRegisterer 在 reg 上注册指标并启用指标
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithReachability 使用平台提供的网络可达性监控
func WithReachability(m pkgif.ReachabilityMonitor) Option {
	return func(o *options) error {
		o.reachability = m
		return nil
	}
}

// WithAuthenticator 设置 NIP-42 认证签名器，未设置时忽略认证挑战
func WithAuthenticator(a pkgif.Authenticator) Option {
	return func(o *options) error {
		o.authenticator = a
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
