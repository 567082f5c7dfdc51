package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-relaypool/internal/core/storage"
	"github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// MockEventStore 模拟 EventStore 接口实现
type MockEventStore struct {
	// 可覆盖的方法
	StoreFunc      func(ctx context.Context, ev *types.Event) error
	LookupByIDFunc func(ctx context.Context, id types.NoteID) (*types.Event, error)

	mu     sync.Mutex
	events map[types.NoteID]*types.Event

	// 调用记录
	StoreCalls []types.NoteID
}

var _ interfaces.EventStore = (*MockEventStore)(nil)

// NewMockEventStore 创建预置消息的 MockEventStore
func NewMockEventStore(events ...*types.Event) *MockEventStore {
	m := &MockEventStore{events: make(map[types.NoteID]*types.Event)}
	for _, ev := range events {
		m.events[ev.ID] = ev
	}
	return m
}

// Store 保存消息
func (m *MockEventStore) Store(ctx context.Context, ev *types.Event) error {
	m.mu.Lock()
	m.StoreCalls = append(m.StoreCalls, ev.ID)
	m.mu.Unlock()

	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[ev.ID]; !ok {
		m.events[ev.ID] = ev
	}
	return nil
}

// LookupByID 按 ID 读取
func (m *MockEventStore) LookupByID(ctx context.Context, id types.NoteID) (*types.Event, error) {
	if m.LookupByIDFunc != nil {
		return m.LookupByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return ev, nil
}

// Has 是否保存过指定 ID
func (m *MockEventStore) Has(id types.NoteID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[id]
	return ok
}
