// Package mocks 提供统一的测试 Mock 实现
//
// # 传输 Mock
//
//   - MockTransport: 模拟 interfaces.Transport，内存收发，记录已发送帧
//   - MockDialer: 模拟 interfaces.Dialer，按地址记录拨号并可注入失败
//
// # 其他 Mock
//
//   - MockEventStore: 模拟 interfaces.EventStore
//   - MockAuthenticator: 模拟 interfaces.Authenticator
//   - MockReachability: 模拟 interfaces.ReachabilityMonitor，由测试推送网络状态
//
// # 设计原则
//
// 1. 函数式注入: 每个 Mock 都支持通过 XxxFunc 字段注入自定义行为
// 2. 调用记录: 关键 Mock 记录调用历史，便于验证测试行为
// 3. 中继模拟: MockTransport.OnSend 可以按收到的请求回推响应帧，
//    Responder 提供最常用的 "回放 + EOSE + OK" 行为
//
// # 使用示例
//
//	dialer := mocks.NewMockDialer()
//	dialer.OnDial = func(url types.RelayURL, tr *mocks.MockTransport) {
//	    tr.OnSend = mocks.Responder(ev1, ev2)
//	}
//	conn := relayconn.New(url, dialer, handler, relayconn.Options{})
package mocks
