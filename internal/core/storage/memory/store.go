// Package memory 提供进程内消息存储
package memory

import (
	"context"
	"sync"

	"github.com/dep2p/go-relaypool/internal/core/storage/engine"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// Store 进程内消息存储
type Store struct {
	mu     sync.RWMutex
	events map[types.NoteID]types.Event
	closed bool
}

var _ pkgif.EventStore = (*Store)(nil)

// New 创建空存储
func New() *Store {
	return &Store{events: make(map[types.NoteID]types.Event)}
}

// Store 保存消息副本
func (s *Store) Store(_ context.Context, ev *types.Event) error {
	if ev == nil {
		return engine.ErrNilEvent
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return engine.ErrClosed
	}
	if _, ok := s.events[ev.ID]; ok {
		return nil
	}
	s.events[ev.ID] = copyEvent(ev)
	return nil
}

// LookupByID 按 ID 读取消息副本
func (s *Store) LookupByID(_ context.Context, id types.NoteID) (*types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, engine.ErrClosed
	}
	ev, ok := s.events[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := copyEvent(&ev)
	return &out, nil
}

// Len 消息数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close 关闭存储
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.events = nil
	return nil
}

func copyEvent(ev *types.Event) types.Event {
	out := *ev
	if ev.Tags != nil {
		out.Tags = make([][]string, len(ev.Tags))
		for i, tag := range ev.Tags {
			out.Tags[i] = append([]string(nil), tag...)
		}
	}
	return out
}
