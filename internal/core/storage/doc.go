// Package storage 提供本地消息存储
//
// 中继池把被接受的网络消息与外发 EVENT 写入 interfaces.EventStore，
// 订阅在 StoreOnly / Parallel 模式下按 ID 回放。
//
// 实现：
//   - memory: 进程内 map，默认后端
//   - badger: BadgerDB 持久化（键 e/<id>，值为消息 JSON）
//
// 后端由 config.StorageConfig.Backend 选择，Module() 负责创建与关闭。
package storage
