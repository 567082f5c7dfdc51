package netmon

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/util/debounce"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
	"github.com/dep2p/go-relaypool/pkg/types"
)

var logger = log.Logger("core/netmon")

// ============================================================================
//                              PollingMonitor
// ============================================================================

// Options 监控器参数
type Options struct {
	// Config 默认值：config.DefaultNetworkConfig()
	Config config.NetworkConfig

	// Source 默认值：SystemInterfaces
	Source InterfaceSource

	// Clock 测试中注入 clock.NewMock()
	Clock clock.Clock
}

// PollingMonitor 基于网卡轮询的可达性监控
type PollingMonitor struct {
	cfg       config.NetworkConfig
	source    InterfaceSource
	clock     clock.Clock
	debouncer *debounce.Debouncer

	// updates 容量为 1，只保留最新状态
	updates chan types.NetworkStatus

	mu          sync.Mutex
	status      types.NetworkStatus
	fingerprint string
	running     bool
	stopped     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

var _ pkgif.ReachabilityMonitor = (*PollingMonitor)(nil)

// NewPollingMonitor 创建监控器
func NewPollingMonitor(opts Options) *PollingMonitor {
	cfg := opts.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultNetworkConfig().PollInterval
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	src := opts.Source
	if src == nil {
		src = SystemInterfaces
	}
	return &PollingMonitor{
		cfg:       cfg,
		source:    src,
		clock:     clk,
		debouncer: debounce.New(cfg.Debounce.Duration(), clk),
		updates:   make(chan types.NetworkStatus, 1),
	}
}

// Start 读取初始状态并启动轮询
func (m *PollingMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running || m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	ifaces, err := m.source()
	if err != nil {
		logger.Warn("读取网卡失败", "error", err)
	}

	m.mu.Lock()
	m.fingerprint = fingerprint(ifaces)
	m.status = evaluate(ifaces)
	m.publishLocked(m.status)
	status := m.status
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop(ctx)

	logger.Info("网络监控已启动", "status", status.String(), "poll_interval", m.cfg.PollInterval.Duration())
	return nil
}

// Stop 停止轮询并关闭 Updates 通道
func (m *PollingMonitor) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.debouncer.Stop()

	m.mu.Lock()
	close(m.updates)
	m.mu.Unlock()

	logger.Info("网络监控已停止")
	return nil
}

// Updates 状态变化通道
func (m *PollingMonitor) Updates() <-chan types.NetworkStatus {
	return m.updates
}

// NotifyChange 外部通知网络可能变化，防抖后重新评估
func (m *PollingMonitor) NotifyChange() {
	m.debouncer.Debounce(m.reevaluate)
}

// CurrentStatus 最近一次评估的状态
func (m *PollingMonitor) CurrentStatus() types.NetworkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ============================================================================
//                              轮询逻辑
// ============================================================================

func (m *PollingMonitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := m.clock.Ticker(m.cfg.PollInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// poll 指纹变化时登记一次防抖评估
func (m *PollingMonitor) poll() {
	ifaces, err := m.source()
	if err != nil {
		logger.Debug("读取网卡失败", "error", err)
		return
	}
	fp := fingerprint(ifaces)

	m.mu.Lock()
	changed := fp != m.fingerprint
	m.mu.Unlock()

	if changed {
		logger.Debug("检测到网卡变化", "fingerprint", fp[:8])
		m.debouncer.Debounce(m.reevaluate)
	}
}

func (m *PollingMonitor) reevaluate() {
	ifaces, err := m.source()
	if err != nil {
		logger.Debug("读取网卡失败", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.fingerprint = fingerprint(ifaces)
	status := evaluate(ifaces)
	if status == m.status {
		return
	}
	logger.Info("网络可达性变化", "from", m.status.String(), "to", status.String())
	m.status = status
	m.publishLocked(status)
}

// publishLocked 投递最新状态，通道已满时替换旧值
func (m *PollingMonitor) publishLocked(status types.NetworkStatus) {
	if m.stopped {
		return
	}
	for {
		select {
		case m.updates <- status:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}
