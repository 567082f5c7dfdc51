// Package badger 提供基于 BadgerDB 的持久化消息存储
//
// 键格式为 "e/" + 32 字节消息 ID，值为消息 JSON。
// 同一 ID 重复写入时保留首次写入的内容。
//
// # 使用示例
//
//	st, err := badger.Open(badger.Options{Path: "/data/events.db"})
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	bdb "github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-relaypool/internal/core/storage/engine"
	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
	"github.com/dep2p/go-relaypool/pkg/types"
)

var logger = log.Logger("storage/badger")

// keyPrefix 消息键前缀
var keyPrefix = []byte("e/")

// Options 存储选项
type Options struct {
	// Path 数据库目录，InMemory 为 true 时忽略
	Path string

	// InMemory 不落盘
	InMemory bool

	// SyncWrites 每次写入同步到磁盘
	SyncWrites bool

	// GCInterval value log 垃圾回收间隔，0 表示禁用
	GCInterval time.Duration

	// GCDiscardRatio 垃圾回收丢弃比例
	GCDiscardRatio float64
}

// Store BadgerDB 消息存储
type Store struct {
	db     *bdb.DB
	opts   Options
	closed atomic.Bool

	stats struct {
		reads  atomic.Int64
		writes atomic.Int64
	}

	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
}

var _ pkgif.EventStore = (*Store)(nil)

// Open 打开存储
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, fmt.Errorf("badger: path required")
	}
	if opts.GCDiscardRatio <= 0 || opts.GCDiscardRatio >= 1 {
		opts.GCDiscardRatio = 0.5
	}

	bopts := bdb.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = bdb.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithLogger(badgerLogger{})

	db, err := bdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}

	s := &Store{db: db, opts: opts}
	if opts.GCInterval > 0 && !opts.InMemory {
		s.startGC()
	}
	logger.Debug("event store opened", "path", opts.Path, "in_memory", opts.InMemory)
	return s, nil
}

func eventKey(id types.NoteID) []byte {
	k := make([]byte, 0, len(keyPrefix)+len(id))
	k = append(k, keyPrefix...)
	return append(k, id[:]...)
}

// Store 保存消息，已存在时不覆盖
func (s *Store) Store(_ context.Context, ev *types.Event) error {
	if ev == nil {
		return engine.ErrNilEvent
	}
	if s.closed.Load() {
		return engine.ErrClosed
	}

	val, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("badger: encode event: %w", err)
	}
	key := eventKey(ev.ID)

	err = s.db.Update(func(txn *bdb.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, bdb.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("badger: store %s: %w", ev.ID.ShortString(), err)
	}
	s.stats.writes.Add(1)
	return nil
}

// LookupByID 按 ID 读取消息
func (s *Store) LookupByID(_ context.Context, id types.NoteID) (*types.Event, error) {
	if s.closed.Load() {
		return nil, engine.ErrClosed
	}
	s.stats.reads.Add(1)

	var ev types.Event
	err := s.db.View(func(txn *bdb.Txn) error {
		item, err := txn.Get(eventKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ev)
		})
	})
	if errors.Is(err, bdb.ErrKeyNotFound) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger: lookup %s: %w", id.ShortString(), err)
	}
	return &ev, nil
}

// Len 遍历统计消息数
func (s *Store) Len() (int, error) {
	if s.closed.Load() {
		return 0, engine.ErrClosed
	}
	n := 0
	err := s.db.View(func(txn *bdb.Txn) error {
		opts := bdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Stats 返回累计读写次数
func (s *Store) Stats() (reads, writes int64) {
	return s.stats.reads.Load(), s.stats.writes.Load()
}

// Close 停止后台回收并关闭数据库，可重复调用
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.gcCancel != nil {
		s.gcCancel()
		s.gcWg.Wait()
	}
	return s.db.Close()
}

// startGC 启动 value log 垃圾回收
func (s *Store) startGC() {
	ctx, cancel := context.WithCancel(context.Background())
	s.gcCancel = cancel

	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()

		ticker := time.NewTicker(s.opts.GCInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// 回收到没有可回收空间为止
				for s.db.RunValueLogGC(s.opts.GCDiscardRatio) == nil {
				}
			}
		}
	}()
}

// badgerLogger 把 badger 内部日志接入组件 logger
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}
