package repository

import (
	"context"

	"doc-rag-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository 定义了对 indexed_documents 表的数据操作接口。
type DocumentRepository interface {
	// Upsert 按 (collection, file_name) 写入或覆盖记录。
	Upsert(ctx context.Context, doc *model.IndexedDocument) error
	List(ctx context.Context, collection model.Collection) ([]model.IndexedDocument, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Upsert(ctx context.Context, doc *model.IndexedDocument) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "file_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"object_key", "chunk_count", "total_size", "status", "updated_at"}),
	}).Create(doc).Error
}

func (r *documentRepository) List(ctx context.Context, collection model.Collection) ([]model.IndexedDocument, error) {
	var docs []model.IndexedDocument
	db := r.db.WithContext(ctx)
	if collection != "" {
		db = db.Where("collection = ?", string(collection))
	}
	err := db.Order("updated_at DESC, id DESC").Find(&docs).Error
	return docs, err
}
