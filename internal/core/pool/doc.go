// Package pool 实现中继池
//
// Pool 持有 RelayURL → relayconn.Conn 映射、临时中继租约表、
// 订阅处理器列表、离线请求队列和首见统计。所有集合由 p.mu 保护，
// 每次完整的读-改-写都在同一次加锁内完成；网络 I/O 在锁外基于快照执行。
//
// # 订阅
//
// Subscribe 把多个中继的入站消息合并成一条按 ID 去重的流，
// 所有已连接目标中继报告 EOSE 或超时后恰好发出一次 EOSE。
// 取消订阅只向目标中继发送 CLOSE，不关闭共享连接。
//
// # 临时中继
//
// AcquireEphemeralRelay / ReleaseEphemeralRelay 维护引用计数。
// 计数归零后延迟拆除，拆除前在锁内重新确认计数仍为零且租约代数未变，
// 期间任何新的 Acquire 都会让这次拆除作废。
//
// # 网络变化
//
// HandleConnectivityChange 不会重入：处理期间到达的新状态记为待处理
// （只保留最新一个），当前处理结束后立即接着处理。
package pool
