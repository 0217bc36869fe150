// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Collection 标识两个互相独立的文档库。
type Collection string

const (
	// CollectionRAG 是带向量的语义库，用于混合检索。
	CollectionRAG Collection = "rag"
	// CollectionBM25 是纯关键词库。
	CollectionBM25 Collection = "bm25"
)

// Valid 判断集合名是否合法。
func (c Collection) Valid() bool {
	return c == CollectionRAG || c == CollectionBM25
}

// IndexedDocument 对应于数据库中的 indexed_documents 表，记录每个已建索引的文件。
// 同一集合内的同名文件重新上传时覆盖原记录。
type IndexedDocument struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Collection string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_collection_file" json:"collection"`
	FileName   string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_collection_file" json:"fileName"`
	ObjectKey  string    `gorm:"type:varchar(512);not null" json:"objectKey"`
	ChunkCount int       `gorm:"not null" json:"chunkCount"`
	TotalSize  int64     `gorm:"not null" json:"totalSize"`
	Status     int       `gorm:"type:tinyint;not null;default:0" json:"status"` // 0: pending, 1: indexed, 2: failed
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// 文档索引状态
const (
	DocumentPending = 0
	DocumentIndexed = 1
	DocumentFailed  = 2
	// DocumentMissing 表示记录为已索引，但文档库中已没有它的分块（例如内存库重启后）。
	DocumentMissing = 3
)

// TableName 指定了此模型在数据库中对应的表名。
func (IndexedDocument) TableName() string {
	return "indexed_documents"
}

// UploadResult 是批量上传中单个文件的处理结果。
type UploadResult struct {
	FileName string `json:"fileName"`
	Chunks   int    `json:"chunks"`
	Queued   bool   `json:"queued"`
	Error    string `json:"error,omitempty"`
}

// ObjectKey 是文件在对象存储中的路径。
func ObjectKey(c Collection, fileName string) string {
	return string(c) + "/" + fileName
}
