package replymap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-relaypool/pkg/types"
)

func id(b ...byte) types.NoteID {
	var n types.NoteID
	copy(n[:], b)
	return n
}

func TestMap_AddLookupRemove(t *testing.T) {
	m := New()
	parent := id(1)

	assert.True(t, m.Add(parent, id(3)))
	assert.True(t, m.Add(parent, id(2)))
	assert.False(t, m.Add(parent, id(2)))

	assert.Equal(t, []types.NoteID{id(2), id(3)}, m.Lookup(parent))
	assert.Equal(t, 2, m.Count(parent))

	m.Remove(parent, id(2))
	m.Remove(parent, id(3))
	m.Remove(id(99), id(1))
	assert.Empty(t, m.Lookup(parent))
	assert.Equal(t, 0, m.Count(parent))
}

func TestMap_LookupReturnsCopy(t *testing.T) {
	m := New()
	m.Add(id(1), id(2))

	got := m.Lookup(id(1))
	got[0] = id(7)
	assert.Equal(t, []types.NoteID{id(2)}, m.Lookup(id(1)))
}

func TestMap_Observe(t *testing.T) {
	m := New()
	parentHex := "1111111111111111111111111111111111111111111111111111111111111111"
	parent, err := types.ParseNoteID(parentHex)
	require.NoError(t, err)

	child := &types.Event{ID: id(5), Tags: [][]string{{"e", parentHex, "", "reply"}}}
	m.Observe(child)
	m.Observe(&types.Event{ID: id(6)})
	m.Observe(nil)

	assert.Equal(t, []types.NoteID{id(5)}, m.Lookup(parent))
}

// 并发向同一父节点添加 N 个不同回复，结果恰好 N 个
func TestMap_ConcurrentAddsNoLoss(t *testing.T) {
	m := New()
	parent := id(1)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Add(parent, id(2, byte(i), byte(i>>8)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, m.Count(parent))
	assert.Len(t, m.Lookup(parent), n)
}

// 嵌套回复只登记到直接父消息，根消息与提及不登记
func TestMap_ObserveIndexesDirectParentOnly(t *testing.T) {
	m := New()
	root, parent, mention := id(1), id(2), id(3)

	child := &types.Event{ID: id(9), Tags: [][]string{
		{"e", root.String(), "", "root"},
		{"e", parent.String(), "", "reply"},
		{"e", mention.String(), "", "mention"},
	}}
	m.Observe(child)

	assert.Equal(t, []types.NoteID{id(9)}, m.Lookup(parent))
	assert.Zero(t, m.Count(root))
	assert.Zero(t, m.Count(mention))

	// 没有 marker 时按旧约定取最后一个 e 标签
	legacy := &types.Event{ID: id(10), Tags: [][]string{{"e", root.String()}, {"e", parent.String()}}}
	m.Observe(legacy)
	assert.Equal(t, []types.NoteID{id(9), id(10)}, m.Lookup(parent))
	assert.Zero(t, m.Count(root))
}
