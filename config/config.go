// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Pool.EOSETimeout = config.Duration(3 * time.Second)
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
//
//	// 从文件加载
//	cfg, err := config.LoadFile("relaypool.json")
package config

// Config 是 relaypool 的完整配置结构
//
// 配置按照功能模块组织：
//   - Pool: 中继池（订阅、EOSE、临时中继、请求队列）
//   - Connection: 单中继连接（拨号、重连退避、保活）
//   - PostBox: 发件箱（重试、确认策略、后台刷新）
//   - Cache: 消息去重缓存
//   - Storage: 本地消息存储
//   - Network: 网络可达性监控
//   - Metrics: Prometheus 指标
//   - Log: 日志
//   - Diagnostics: 本地自省服务
type Config struct {
	// Pool 中继池配置
	Pool PoolConfig `json:"pool"`

	// Connection 中继连接配置
	Connection ConnectionConfig `json:"connection"`

	// PostBox 发件箱配置
	PostBox PostBoxConfig `json:"postbox"`

	// Cache 去重缓存配置
	Cache CacheConfig `json:"cache"`

	// Storage 本地存储配置
	Storage StorageConfig `json:"storage"`

	// Network 网络可达性监控配置
	Network NetworkConfig `json:"network"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Log 日志配置
	Log LogConfig `json:"log"`

	// Diagnostics 诊断配置
	Diagnostics DiagnosticsConfig `json:"diagnostics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Pool:        DefaultPoolConfig(),
		Connection:  DefaultConnectionConfig(),
		PostBox:     DefaultPostBoxConfig(),
		Cache:       DefaultCacheConfig(),
		Storage:     DefaultStorageConfig(),
		Network:     DefaultNetworkConfig(),
		Metrics:     DefaultMetricsConfig(),
		Log:         DefaultLogConfig(),
		Diagnostics: DefaultDiagnosticsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置，返回遇到的第一个错误。
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	validators := []interface{ Validate() error }{
		&c.Pool,
		&c.Connection,
		&c.PostBox,
		&c.Cache,
		&c.Storage,
		&c.Network,
		&c.Metrics,
		&c.Log,
		&c.Diagnostics,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone 返回配置的深拷贝
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cloned := *c
	cloned.Pool.DefaultRelays = append([]string(nil), c.Pool.DefaultRelays...)
	return &cloned
}
