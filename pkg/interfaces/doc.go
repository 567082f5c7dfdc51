// Package interfaces 定义 relaypool 的公共接口
//
// 本包只包含纯接口定义，数据结构定义在 pkg/types 包中。
// 这些接口描述的是中继池依赖、但不由中继池实现的外部能力：
//
//   - transport.go     - 传输层（Dialer / Transport），默认实现为 WebSocket
//   - storage.go       - 本地持久化消息存储（EventStore）
//   - reachability.go  - 系统网络可达性监控（ReachabilityMonitor）
//   - auth.go          - NIP-42 认证签名（Authenticator）
//   - eventbus.go      - 事件总线
//
// # 依赖方向
//
//	root → internal/core/* → pkg/interfaces → pkg/types
//
// 禁止反向依赖。
package interfaces
