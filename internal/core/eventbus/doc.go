// Package eventbus 实现进程内事件总线
//
// 中继池内部跨 goroutine 的状态通知都经过事件总线发布：
//   - EvtConnectionStateChanged  中继连接状态变化（由连接 actor 发布）
//   - EvtStatsUpdated            某中继的首见消息计数变化
//   - EvtNetworkStatusChanged    系统网络可达性变化
//   - EvtPostAcked               外发消息被某中继确认
//   - EvtPostFailed              外发消息被某中继拒绝
//   - EvtPostCompleted           外发消息满足确认策略并移出发件箱
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(eventbus.EvtPostAcked))
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        e := evt.(eventbus.EvtPostAcked)
//	        // ...
//	    }
//	}()
//
//	em, _ := bus.Emitter(new(eventbus.EvtPostAcked))
//	defer em.Close()
//	em.Emit(eventbus.EvtPostAcked{...})
//
// # 投递语义
//
// 发射永不阻塞：订阅者缓冲区满时事件被丢弃并计数，
// 因此发射方可以在持锁或 actor 循环中安全调用 Emit。
// Stateful 发射器会为新订阅者补发最后一个事件。
package eventbus
