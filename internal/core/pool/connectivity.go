package pool

import (
	"github.com/dep2p/go-relaypool/internal/core/eventbus"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// HandleConnectivityChange 处理网络可达性变化
//
// 不会并发执行：处理期间到达的状态记为待处理（后到覆盖先到），
// 当前处理完成后立即处理。从其他状态进入可用状态时重试断开的连接。
func (p *Pool) HandleConnectivityChange(status types.NetworkStatus) {
	p.netMu.Lock()
	if p.netBusy {
		p.netPending = &status
		p.netMu.Unlock()
		logger.Debug("网络变化处理中，记为待处理", "status", status.String())
		return
	}
	p.netBusy = true
	p.netMu.Unlock()

	for {
		p.applyNetworkStatus(status)

		p.netMu.Lock()
		if p.netPending == nil {
			p.netBusy = false
			p.netMu.Unlock()
			return
		}
		status = *p.netPending
		p.netPending = nil
		p.netMu.Unlock()
	}
}

func (p *Pool) applyNetworkStatus(status types.NetworkStatus) {
	prev := types.NetworkStatus(p.lastStatus.Load())
	if prev == status {
		return
	}

	logger.Info("网络状态变化", "from", prev.String(), "to", status.String())
	if status.IsUsable() {
		p.ConnectToDisconnected()
	}
	p.lastStatus.Store(int32(status))

	if p.netEmitter != nil {
		p.netEmitter.Emit(eventbus.EvtNetworkStatusChanged{Old: prev, New: status})
	}
}

// LastNetworkStatus 最近处理的网络状态
func (p *Pool) LastNetworkStatus() types.NetworkStatus {
	return types.NetworkStatus(p.lastStatus.Load())
}
