// Package replymap 维护 父消息 → 回复集合 的并发安全索引
package replymap

import (
	"bytes"
	"sort"
	"sync"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// Map 回复索引
type Map struct {
	mu       sync.RWMutex
	children map[types.NoteID]map[types.NoteID]struct{}
}

// New 创建空索引
func New() *Map {
	return &Map{children: make(map[types.NoteID]map[types.NoteID]struct{})}
}

// Add 登记 child 回复了 parent，返回是否为新增
func (m *Map) Add(parent, child types.NoteID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.children[parent]
	if !ok {
		set = make(map[types.NoteID]struct{})
		m.children[parent] = set
	}
	if _, exists := set[child]; exists {
		return false
	}
	set[child] = struct{}{}
	return true
}

// Lookup 返回 parent 的回复列表副本（按 ID 字节序排序）
func (m *Map) Lookup(parent types.NoteID) []types.NoteID {
	m.mu.RLock()
	set := m.children[parent]
	out := make([]types.NoteID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// Count 回复数
func (m *Map) Count(parent types.NoteID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.children[parent])
}

// Remove 删除一条回复关系，集合为空时一并删除父节点
func (m *Map) Remove(parent, child types.NoteID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.children[parent]
	if !ok {
		return
	}
	delete(set, child)
	if len(set) == 0 {
		delete(m.children, parent)
	}
}

// Observe 若 ev 是回复则登记到其直接父消息（ReplyTo）
func (m *Map) Observe(ev *types.Event) {
	if ev == nil {
		return
	}
	if parent, ok := ev.ReplyTo(); ok && parent != ev.ID {
		m.Add(parent, ev.ID)
	}
}
