package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-relaypool/internal/core/storage/engine"
	"github.com/dep2p/go-relaypool/pkg/types"
)

func testEvent(b byte, content string) *types.Event {
	var id types.NoteID
	id[0] = b
	return &types.Event{ID: id, PubKey: "ab", CreatedAt: 10, Kind: 1, Content: content}
}

func TestStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	ev := testEvent(1, "hello")
	require.NoError(t, s.Store(ctx, ev))
	require.NoError(t, s.Store(ctx, testEvent(1, "overwrite")))
	require.NoError(t, s.Store(ctx, testEvent(2, "second")))

	got, err := s.LookupByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, ev.ID, got.ID)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.LookupByID(ctx, testEvent(3, "").ID)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	reads, writes := s.Stats()
	assert.Equal(t, int64(2), reads)
	assert.Equal(t, int64(3), writes)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Options{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Store(ctx, testEvent(9, "durable")))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.LookupByID(ctx, testEvent(9, "").ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Content)
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Store(context.Background(), testEvent(1, "")), engine.ErrClosed)
	_, err = s.LookupByID(context.Background(), types.EmptyNoteID)
	assert.ErrorIs(t, err, engine.ErrClosed)
	assert.ErrorIs(t, s.Store(context.Background(), nil), engine.ErrNilEvent)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}
