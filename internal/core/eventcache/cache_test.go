package eventcache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-relaypool/pkg/types"
)

func noteID(b byte) types.NoteID {
	var id types.NoteID
	id[0] = b
	return id
}

func TestCache_InsertAndLookup(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)

	id := noteID(1)
	first := &types.Event{ID: id, Content: "first"}
	stored, inserted := c.Insert(id, first)
	assert.True(t, inserted)
	assert.Same(t, first, stored)

	second := &types.Event{ID: id, Content: "second"}
	stored, inserted = c.Insert(id, second)
	assert.False(t, inserted)
	assert.Same(t, first, stored)

	got, ok := c.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "first", got.Content)
	assert.True(t, c.Seen(id))
	assert.False(t, c.Seen(noteID(2)))
	assert.Equal(t, 1, c.Len())

	ins, dups := c.Stats()
	assert.Equal(t, uint64(1), ins)
	assert.Equal(t, uint64(1), dups)
}

func TestCache_InvalidCapacity(t *testing.T) {
	_, err := New(-1)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestCache_Bounded(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	c.Insert(noteID(1), &types.Event{})
	c.Insert(noteID(2), &types.Event{})
	c.Insert(noteID(3), &types.Event{})

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Seen(noteID(1)))
}

// 同一 ID 并发插入：恰好一个成功，所有调用方拿到同一个值
func TestCache_ConcurrentInsertSameID(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)

	const workers = 100
	id := noteID(9)

	var (
		wg       sync.WaitGroup
		inserted atomic.Int32
		results  = make([]*types.Event, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, ok := c.Insert(id, &types.Event{ID: id})
			if ok {
				inserted.Add(1)
			}
			results[i] = stored
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}
