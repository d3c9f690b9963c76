package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewStore("   ")
	require.Error(t, err)
	assert.ErrorContains(t, err, "store path is empty")
}

func TestStoreRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "store.toml")
	store, err := NewStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "accessToken", "token-1"))
	require.NoError(t, store.Set(ctx, "0", `{"data":"abc"}`))

	got, err := store.Get(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, `{"data":"abc"}`, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(storeFileMode), info.Mode().Perm())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	keys, err := reopened.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "accessToken"}, keys)
}

func TestStoreGetMissingKey(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "store.toml"))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "loggedIn")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "store.toml"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "1", "x"))
	require.NoError(t, store.Remove(ctx, "1", "2"))
	require.NoError(t, store.Remove(ctx, "1"))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStoreRejectsNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.toml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"version = 9",
		"",
		"[entries]",
		"loggedIn = \"true\"",
	}, "\n")), 0o600))

	store, err := NewStore(path)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "loggedIn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store schema version 9")
}

func TestStoreWatchReportsExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.toml")
	store, err := NewStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, nil, func() { calls.Add(1) })
	}()

	writer, err := NewStore(path)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_ = writer.Set(context.Background(), "0", time.Now().String())
		return calls.Load() > 0
	}, 5*time.Second, 400*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
