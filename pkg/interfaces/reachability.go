package interfaces

import (
	"context"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// ReachabilityMonitor 系统网络可达性监控
//
// 网络状态变化时在 Updates 通道上投递最新状态，
// 由中继池的 HandleConnectivityChange 消费。
type ReachabilityMonitor interface {
	// Start 启动监控
	Start(ctx context.Context) error

	// Stop 停止监控，之后 Updates 通道被关闭
	Stop() error

	// Updates 返回状态变化通道
	Updates() <-chan types.NetworkStatus

	// NotifyChange 外部通知网络可能发生变化（平台回调接入点）
	NotifyChange()

	// CurrentStatus 当前网络状态
	CurrentStatus() types.NetworkStatus
}
