// Package postbox 实现发件箱
//
// PostBox 跟踪尚未被中继确认的外发消息，按中继分别退避重发，
// 收到足够的 OK 后（AckAll：全部目标；AckAny：任一目标）移出发件箱。
//
// 所有条目由 b.mu 保护。Flush 在锁内生成待发送快照，锁外发送；
// 发送期间并发到达的确认可以移除条目，快照中的发送不会把条目放回。
//
// 确认通过在中继池上注册一个不带过滤器的处理器接收，
// 结果经事件总线发布（EvtPostAcked、EvtPostFailed、EvtPostCompleted）。
package postbox
