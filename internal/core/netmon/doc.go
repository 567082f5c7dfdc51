// Package netmon 系统网络可达性监控
//
// PollingMonitor 周期性读取网卡列表，网卡指纹变化（或外部调用 NotifyChange）
// 后经过防抖重新评估可达性，状态变化时投递到 Updates 通道。
// Bridge 把状态变化转交给中继池的 HandleConnectivityChange。
//
// # 可达性判定
//
//   - 存在启用的非回环网卡，且该网卡持有全局单播地址: NetworkSatisfied
//   - 否则: NetworkUnsatisfied
//
// 平台提供的更精确的状态（如按需 VPN）可以通过自定义 ReachabilityMonitor 注入。
package netmon
