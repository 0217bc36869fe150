package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"doc-rag-go/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `indexed_documents`") + ".*" + regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &model.IndexedDocument{
		Collection: string(model.CollectionRAG),
		FileName:   "a.pdf",
		ObjectKey:  "rag/a.pdf",
		ChunkCount: 4,
		Status:     model.DocumentIndexed,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentListByCollection(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `indexed_documents` WHERE collection = ? ORDER BY updated_at DESC, id DESC")).
		WithArgs("bm25").
		WillReturnRows(sqlmock.NewRows([]string{"id", "collection", "file_name", "chunk_count", "updated_at"}).
			AddRow(1, "bm25", "b.txt", 2, time.Now()))

	docs, err := repo.List(context.Background(), model.CollectionBM25)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b.txt", docs[0].FileName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
