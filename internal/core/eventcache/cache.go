// Package eventcache 提供按消息 ID 去重的有界缓存
//
// 检查与写入在同一临界区内完成：同一 ID 的并发插入只有一个成功，
// 其余调用方拿到的是第一个写入者存入的值。
// 底层使用 LRU 限制内存；去重保证在 ID 仍驻留于缓存期间成立。
package eventcache

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// DefaultCapacity 默认容量
const DefaultCapacity = 100_000

// ErrInvalidCapacity 容量非法
var ErrInvalidCapacity = errors.New("eventcache: capacity must be positive")

// Cache 消息去重缓存
type Cache struct {
	mu    sync.Mutex
	items *lru.Cache[types.NoteID, *types.Event]

	inserts uint64
	dups    uint64
}

// New 创建缓存，capacity 为 0 时使用 DefaultCapacity
func New(capacity int) (*Cache, error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}
	items, err := lru.New[types.NoteID, *types.Event](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{items: items}, nil
}

// Insert 插入消息
//
// 已存在时返回已存储的消息与 false，否则存入 ev 并返回 ev 与 true。
func (c *Cache) Insert(id types.NoteID, ev *types.Event) (stored *types.Event, inserted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items.Get(id); ok {
		c.dups++
		return existing, false
	}
	c.items.Add(id, ev)
	c.inserts++
	return ev, true
}

// Lookup 按 ID 查找
func (c *Cache) Lookup(id types.NoteID) (*types.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Get(id)
}

// Seen 是否已缓存（不影响 LRU 顺序）
func (c *Cache) Seen(id types.NoteID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Contains(id)
}

// Len 当前缓存条目数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Stats 返回累计插入数与重复数
func (c *Cache) Stats() (inserts, duplicates uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inserts, c.dups
}
