package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"doc-rag-go/internal/config"
	"doc-rag-go/internal/model"
	"doc-rag-go/internal/pipeline"
	"doc-rag-go/internal/service"
	"doc-rag-go/internal/store"
	"doc-rag-go/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogue struct {
	mu      sync.Mutex
	docs    map[string]model.IndexedDocument
	upserts int
}

func (c *catalogue) Upsert(_ context.Context, doc *model.IndexedDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upserts++
	c.docs[doc.Collection+"/"+doc.FileName] = *doc
	return nil
}

func (c *catalogue) List(_ context.Context, collection model.Collection) ([]model.IndexedDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.IndexedDocument
	for _, d := range c.docs {
		if collection == "" || d.Collection == string(collection) {
			out = append(out, d)
		}
	}
	return out, nil
}

func newSeedFixture(t *testing.T, docs *catalogue) (service.DocumentService, *store.Memory) {
	t.Helper()
	objects, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	keyword := store.NewMemory("bm25_chunks", false)
	indexer := pipeline.NewIndexer(pipeline.NewExtractor(nil), nil, 350)
	svc := service.NewDocumentService(indexer, store.NewMemory("rag_chunks", true), keyword, objects, docs, nil,
		config.NewModelSettings("", "gpt-test"), nil)
	return svc, keyword
}

func writeSeedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha beta gamma"), 0o644))
	return dir
}

func TestSeedDocumentsReindexesAfterRestart(t *testing.T) {
	ctx := context.Background()
	docs := &catalogue{docs: map[string]model.IndexedDocument{
		"bm25/a.txt": {Collection: "bm25", FileName: "a.txt", ChunkCount: 1, Status: model.DocumentIndexed},
	}}
	svc, keyword := newSeedFixture(t, docs)

	seedDocuments(ctx, config.SeedConfig{Dir: writeSeedDir(t), Collection: "bm25"}, svc)

	n, err := keyword.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.DocumentIndexed, docs.docs["bm25/a.txt"].Status)
	assert.Equal(t, 1, docs.docs["bm25/a.txt"].ChunkCount)
}

func TestSeedDocumentsSkipsIndexedFiles(t *testing.T) {
	ctx := context.Background()
	docs := &catalogue{docs: map[string]model.IndexedDocument{}}
	svc, keyword := newSeedFixture(t, docs)
	dir := writeSeedDir(t)

	seedDocuments(ctx, config.SeedConfig{Dir: dir, Collection: "bm25"}, svc)
	require.Equal(t, model.DocumentIndexed, docs.docs["bm25/a.txt"].Status)
	writes := docs.upserts

	seedDocuments(ctx, config.SeedConfig{Dir: dir, Collection: "bm25"}, svc)
	n, err := keyword.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, writes, docs.upserts)
}

func TestSeedDocumentsMissingDirIsNoop(t *testing.T) {
	docs := &catalogue{docs: map[string]model.IndexedDocument{}}
	svc, _ := newSeedFixture(t, docs)
	seedDocuments(context.Background(), config.SeedConfig{Dir: filepath.Join(t.TempDir(), "none"), Collection: "bm25"}, svc)
	assert.Empty(t, docs.docs)
}
