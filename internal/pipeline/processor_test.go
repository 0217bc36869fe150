package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"doc-rag-go/internal/model"
	"doc-rag-go/internal/store"
	"doc-rag-go/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func TestIndexSemanticStore(t *testing.T) {
	ctx := context.Background()
	target := store.NewMemory("rag", true)
	emb := &fakeEmbedder{}
	ix := NewIndexer(NewExtractor(nil), emb, 3)

	n, err := ix.Index(ctx, "a.txt", []byte("one two three four five six seven"), target, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, emb.calls)

	count, _ := target.Count(ctx)
	assert.Equal(t, 3, count)

	// 重新建索引替换原有分块
	n, err = ix.Index(ctx, "a.txt", []byte("one two"), target, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, _ = target.Count(ctx)
	assert.Equal(t, 1, count)
}

func TestIndexEmbeddingFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	target := store.NewMemory("rag", true)
	ix := NewIndexer(NewExtractor(nil), &fakeEmbedder{err: model.WrapError(model.ErrRemoteCall, "embed", errors.New("503"))}, 2)

	_, err := ix.Index(ctx, "a.txt", []byte(strings.Repeat("word ", 20)), target, true)
	assert.ErrorIs(t, err, model.ErrRemoteCall)

	count, _ := target.Count(ctx)
	assert.Zero(t, count)
}

func TestIndexKeywordStoreWithoutEmbeddings(t *testing.T) {
	ctx := context.Background()
	target := store.NewMemory("bm25", false)
	emb := &fakeEmbedder{}
	ix := NewIndexer(NewExtractor(nil), emb, 350)

	n, err := ix.Index(ctx, "b.md", []byte("keyword only content"), target, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, emb.calls)

	hits, err := target.KeywordSearch(ctx, "keyword", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b.md", hits[0].Source)

	_, err = ix.Index(ctx, "b.md", []byte("x"), target, true)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestIndexConversionFailure(t *testing.T) {
	ix := NewIndexer(NewExtractor(nil), &fakeEmbedder{}, 350)
	_, err := ix.Index(context.Background(), "x.bin", []byte("???"), store.NewMemory("bm25", false), false)
	assert.ErrorIs(t, err, model.ErrConversion)
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	objects, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, objects.Put(ctx, model.ObjectKey(model.CollectionRAG, "a.txt"), strings.NewReader("  hello \r\n world "), 0, ""))

	l := NewLoader(objects, NewExtractor(nil), model.CollectionRAG)
	text, err := l.Load(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", text)

	_, err = l.Load(ctx, "missing.txt")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
