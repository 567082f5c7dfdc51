// Package relaypool 多中继 Nostr 客户端核心
//
// relaypool 管理到一组 NIP-01 中继的 WebSocket 连接，提供跨中继的订阅合并、
// 按消息 ID 去重、单次 EOSE 聚合、临时中继租约，以及带确认跟踪的发件箱。
//
// # 快速开始
//
//	client, err := relaypool.New(ctx,
//	    relaypool.WithRelays("wss://relay.damus.io", "wss://nos.lol"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sub, err := client.Pool().Subscribe(ctx, []types.Filter{{Kinds: []int{1}}}, nil, pool.SubscribeOptions{})
//	if err != nil {
//	    return err
//	}
//	defer sub.Cancel()
//	for item := range sub.Items() {
//	    if item.IsEOSE() {
//	        break
//	    }
//	    fmt.Println(item.Event.Content)
//	}
//
// # 组件
//
//   - Pool: 中继池，连接、订阅、发送、临时中继、网络变化处理
//   - PostBox: 发件箱，跟踪 OK 确认并按退避重发
//   - Store: 本地消息存储（memory 或 badger）
//
// 组件通过 go.uber.org/fx 组装，见 New 与 Option。
package relaypool
