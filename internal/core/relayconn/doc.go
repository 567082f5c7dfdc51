// Package relayconn 管理到单个中继的连接
//
// Conn 包装一条 interfaces.Transport，维护连接状态机：
//
//	Disconnected → Connecting → Connected | Failed
//
// 所有状态修改都在连接自己的 actor goroutine 中执行，外部通过
// State() 读取原子快照，状态变化经事件总线（EvtConnectionStateChanged）发布。
//
// 连接意外断开或拨号失败后，按指数退避（cenkalti/backoff）自动重连，
// 除非调用过 Disconnect、DisablePermanently 或 Close。
//
// 入站帧由每条传输各自的读 goroutine 解码后按顺序交给 Handler；
// 无法解析的帧记录日志后丢弃。
package relayconn
