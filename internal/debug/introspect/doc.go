// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的中继池诊断信息，用于调试和监控。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// # 端点
//
//	GET /debug/introspect         - 完整诊断报告 (JSON)
//	GET /debug/introspect/relays  - 各中继连接状态
//	GET /debug/introspect/postbox - 发件箱待确认消息
//	GET /debug/introspect/runtime - 运行时信息
//	GET /metrics                  - Prometheus 指标（启用指标时）
//	GET /debug/pprof/*            - Go pprof 端点
//	GET /health                   - 健康检查
//
// # 安全
//
// 默认只监听本地地址，不暴露到网络。
// 通过 config.Diagnostics.EnableIntrospect 启用。
package introspect
