package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/storage/badger"
	"github.com/dep2p/go-relaypool/internal/core/storage/memory"
	"github.com/dep2p/go-relaypool/pkg/types"
)

func TestNew_SelectsBackend(t *testing.T) {
	st, err := New(config.DefaultStorageConfig())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, st)

	cfg := config.DefaultStorageConfig()
	cfg.Backend = config.BackendBadger
	cfg.InMemory = true
	st, err = New(cfg)
	require.NoError(t, err)
	b, ok := st.(*badger.Store)
	require.True(t, ok)
	defer b.Close()

	_, err = st.LookupByID(context.Background(), types.EmptyNoteID)
	assert.True(t, IsNotFound(err))
}

func TestNew_InvalidBackend(t *testing.T) {
	cfg := config.DefaultStorageConfig()
	cfg.Backend = "sqlite"
	_, err := New(cfg)
	assert.Error(t, err)
}
