package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "rag/a.txt", strings.NewReader("hello"), 5, "text/plain"))
	ok, err := s.Exists(ctx, "rag/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Get(ctx, "rag/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Put(ctx, "rag/a.txt", strings.NewReader("replaced"), 8, ""))
	data, _ = s.Get(ctx, "rag/a.txt")
	assert.Equal(t, "replaced", string(data))

	require.NoError(t, s.Delete(ctx, "rag/a.txt"))
	_, err = s.Get(ctx, "rag/a.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	ok, _ = s.Exists(ctx, "rag/a.txt")
	assert.False(t, ok)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	err = s.Put(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}
