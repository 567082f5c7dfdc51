package pool

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// connectPollInterval EnsureConnected 检查连接状态的间隔
const connectPollInterval = 100 * time.Millisecond

// EnsureConnected 确保中继已连接，返回可用于订阅的已连接中继
//
// 池中没有的中继以临时中继加入。任意一个待连接中继连上或 timeout 到期后返回；
// timeout 为 0 时使用 EnsureConnectedTimeout。调用方负责用 RemoveEphemeralRelays 清理。
func (p *Pool) EnsureConnected(ctx context.Context, urls []types.RelayURL, timeout time.Duration) []types.RelayURL {
	if timeout <= 0 {
		timeout = p.cfg.EnsureConnectedTimeout.Duration()
	}

	var connected, pending []types.RelayURL
	for _, u := range urls {
		p.mu.Lock()
		r, ok := p.relays[u]
		if !ok && !p.closed {
			r = p.addRelayLocked(types.EphemeralDescriptor(u))
			logger.Debug("添加临时中继", "relay", u.String())
		}
		p.mu.Unlock()
		if r == nil {
			continue
		}
		if r.conn.IsConnected() {
			connected = append(connected, u)
		} else {
			pending = append(pending, u)
		}
	}
	if len(pending) == 0 {
		return connected
	}

	p.Connect(pending)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(waitCtx)
	for _, u := range pending {
		u := u
		g.Go(func() error {
			if p.waitConnected(gctx, u) {
				// 第一个连上的中继结束等待
				cancel()
			}
			return nil
		})
	}
	g.Wait()

	for _, u := range pending {
		if p.IsConnected(u) {
			connected = append(connected, u)
		} else {
			logger.Debug("中继未连上，排除", "relay", u.String())
		}
	}
	return connected
}

func (p *Pool) waitConnected(ctx context.Context, u types.RelayURL) bool {
	ticker := time.NewTicker(connectPollInterval)
	defer ticker.Stop()
	for {
		if p.IsConnected(u) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// ============================================================================
//                              临时中继租约
// ============================================================================

// AcquireEphemeralRelay 获取中继租约
//
// 中继不在池中时以临时中继加入；随后发起连接。
func (p *Pool) AcquireEphemeralRelay(url types.RelayURL) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	r, ok := p.relays[url]
	if !ok {
		r = p.addRelayLocked(types.EphemeralDescriptor(url))
	}
	r.leases++
	r.leaseGen++
	leases := r.leases
	p.mu.Unlock()

	logger.Debug("获取中继租约", "relay", url.String(), "leases", leases)
	r.conn.Connect(false)
	return nil
}

// AcquireEphemeralRelays 批量获取租约
func (p *Pool) AcquireEphemeralRelays(urls []types.RelayURL) error {
	for _, u := range urls {
		if err := p.AcquireEphemeralRelay(u); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseEphemeralRelay 释放中继租约
//
// 计数归零的临时中继在 EphemeralTeardownDelay 后拆除；
// 释放次数多于获取次数时计数保持为零并返回 ErrLeaseUnderflow。
func (p *Pool) ReleaseEphemeralRelay(url types.RelayURL) error {
	p.mu.Lock()
	r, ok := p.relays[url]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	if r.leases == 0 {
		p.mu.Unlock()
		logger.Error("租约计数下溢", "relay", url.String(), "error", ErrLeaseUnderflow)
		return ErrLeaseUnderflow
	}
	r.leases--
	if r.leases > 0 || !r.desc.Ephemeral() {
		p.mu.Unlock()
		return nil
	}
	gen := r.leaseGen
	p.mu.Unlock()

	delay := p.cfg.EphemeralTeardownDelay.Duration()
	logger.Debug("计划拆除临时中继", "relay", url.String(), "delay", delay)
	p.clock.AfterFunc(delay, func() { p.teardownEphemeral(r, gen) })
	return nil
}

// ReleaseEphemeralRelays 批量释放租约，返回最后一个错误
func (p *Pool) ReleaseEphemeralRelays(urls []types.RelayURL) error {
	var last error
	for _, u := range urls {
		if err := p.ReleaseEphemeralRelay(u); err != nil {
			last = err
		}
	}
	return last
}

// teardownEphemeral 在锁内重新确认后拆除临时中继
func (p *Pool) teardownEphemeral(r *relay, gen uint64) {
	url := r.desc.URL

	p.mu.Lock()
	current, ok := p.relays[url]
	if !ok || current != r || r.leases != 0 || r.leaseGen != gen {
		p.mu.Unlock()
		logger.Debug("临时中继已被重新获取，取消拆除", "relay", url.String())
		return
	}
	p.removeRelayLocked(url)
	p.mu.Unlock()

	logger.Debug("拆除临时中继", "relay", url.String())
	p.closeConn(r)
}

// Leases 返回中继当前租约数
func (p *Pool) Leases(url types.RelayURL) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.relays[url]; ok {
		return r.leases
	}
	return 0
}

// RemoveEphemeralRelays 移除其中的临时中继，普通中继不受影响
func (p *Pool) RemoveEphemeralRelays(urls []types.RelayURL) {
	for _, u := range urls {
		desc, ok := p.Descriptor(u)
		if !ok || !desc.Ephemeral() {
			continue
		}
		logger.Debug("移除临时中继", "relay", u.String())
		p.RemoveRelay(u)
	}
}
