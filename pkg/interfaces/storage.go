package interfaces

import (
	"context"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// EventStore 本地持久化消息存储
//
// 中继池把每一条被接受的网络消息和每一条外发 EVENT 写入存储，
// 订阅在 StoreOnly / Parallel 模式下从这里回放。
// 不要求事务语义。
//
// 线程安全：实现必须保证所有方法的线程安全性。
type EventStore interface {
	// Store 保存消息，重复保存同一 ID 不报错
	Store(ctx context.Context, ev *types.Event) error

	// LookupByID 按 ID 读取消息
	//
	// 不存在时返回的错误满足 errors.Is(err, storage.ErrNotFound)。
	LookupByID(ctx context.Context, id types.NoteID) (*types.Event, error)
}
