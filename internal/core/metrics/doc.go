// Package metrics 提供中继池的 Prometheus 指标
//
// 指标注册到调用方提供的 prometheus.Registerer 上，
// 为空时使用私有 Registry（便于测试与多实例共存）。
//
// # 指标一览
//
//	<ns>_relay_connection_state{relay}        当前连接状态（0 断开 1 连接中 2 已连接 3 失败）
//	<ns>_relay_bytes_total{relay,direction}  收发字节数
//	<ns>_events_received_total{relay}        收到的 EVENT 帧
//	<ns>_events_duplicate_total{relay}       去重丢弃的 EVENT
//	<ns>_frames_malformed_total{relay}       无法解析的帧
//	<ns>_eose_total{outcome}                 订阅 EOSE（all_relays / timeout）
//	<ns>_subscriptions_active                活跃订阅数
//	<ns>_postbox_pending                     发件箱待确认消息数
//	<ns>_postbox_retries_total               发件箱重发次数
//	<ns>_postbox_ack_failures_total{relay}   中继拒绝（OK false）次数
//
// # 空值安全
//
// *Metrics 的所有方法在接收者为 nil 时为空操作，
// 关闭指标时组件直接持有 nil 即可。
package metrics
