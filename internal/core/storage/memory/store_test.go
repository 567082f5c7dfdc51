package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-relaypool/internal/core/storage/engine"
	"github.com/dep2p/go-relaypool/pkg/types"
)

func TestStore_StoreAndLookup(t *testing.T) {
	ctx := context.Background()
	s := New()

	var id types.NoteID
	id[0] = 7
	ev := &types.Event{ID: id, Kind: 1, Content: "hello", Tags: [][]string{{"t", "go"}}}
	require.NoError(t, s.Store(ctx, ev))

	// 修改原对象不影响存储内容
	ev.Tags[0][1] = "rust"

	got, err := s.LookupByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "go", got.Tags[0][1])

	// 重复写入保留首次内容
	require.NoError(t, s.Store(ctx, &types.Event{ID: id, Content: "other"}))
	got, err = s.LookupByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.ErrorIs(t, s.Store(ctx, nil), engine.ErrNilEvent)

	_, err := s.LookupByID(ctx, types.EmptyNoteID)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Store(ctx, &types.Event{}), engine.ErrClosed)
	_, err = s.LookupByID(ctx, types.EmptyNoteID)
	assert.ErrorIs(t, err, engine.ErrClosed)
}
