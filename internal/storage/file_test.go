package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoochat/internal/utils"
)

func TestFileStore_PutGet(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "data"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Get(ctx, KeySessions)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	require.NoError(t, s.Put(ctx, KeySessions, []byte(`[{"id":"a"}]`)))
	require.NoError(t, s.Put(ctx, KeySessions, []byte(`[]`)))

	got, err := s.Get(ctx, KeySessions)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	entries, err := os.ReadDir(filepath.Join(dir, "data"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_RejectsUnsafeKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = s.Put(context.Background(), "../escape", []byte("x"))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestMemoryStore_CopiesData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", buf))
	buf[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 1, s.Puts())
}
