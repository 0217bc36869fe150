package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"doc-rag-go/internal/config"
	"doc-rag-go/internal/metrics"
	"doc-rag-go/internal/model"
	"doc-rag-go/internal/pipeline"
	"doc-rag-go/internal/repository"
	"doc-rag-go/internal/store"
	"doc-rag-go/pkg/log"
	"doc-rag-go/pkg/storage"
	"doc-rag-go/pkg/tasks"
)

// UploadFile 是一次上传请求中的单个文件。
type UploadFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// TaskPublisher 把建索引任务投递到异步队列。
type TaskPublisher interface {
	Publish(ctx context.Context, task tasks.IndexTask) error
}

// DocumentService 接口定义了文档上传与建索引操作。
type DocumentService interface {
	// Upload 保存并索引一批文件。单个文件失败只记录在它自己的结果里。
	Upload(ctx context.Context, collection model.Collection, files []UploadFile) ([]model.UploadResult, error)
	// Process 执行一个异步建索引任务。
	Process(ctx context.Context, task tasks.IndexTask) error
	// ListDocuments 列出文档记录。已索引但分块已不在文档库中的记录会被标记为 DocumentMissing。
	ListDocuments(ctx context.Context, collection model.Collection) ([]model.IndexedDocument, error)
}

type documentService struct {
	indexer   *pipeline.Indexer
	stores    map[model.Collection]store.Store
	objects   storage.ObjectStore
	docs      repository.DocumentRepository
	publisher TaskPublisher
	settings  *config.ModelSettings
	metrics   *metrics.Metrics
	// 同一文档库的写入串行执行
	locks map[model.Collection]*sync.Mutex
}

// NewDocumentService 创建一个新的 DocumentService 实例。publisher 为 nil 时上传后同步建索引。
func NewDocumentService(
	indexer *pipeline.Indexer,
	semantic, keyword store.Store,
	objects storage.ObjectStore,
	docs repository.DocumentRepository,
	publisher TaskPublisher,
	settings *config.ModelSettings,
	m *metrics.Metrics,
) DocumentService {
	return &documentService{
		indexer: indexer,
		stores: map[model.Collection]store.Store{
			model.CollectionRAG:  semantic,
			model.CollectionBM25: keyword,
		},
		objects:   objects,
		docs:      docs,
		publisher: publisher,
		settings:  settings,
		metrics:   m,
		locks: map[model.Collection]*sync.Mutex{
			model.CollectionRAG:  {},
			model.CollectionBM25: {},
		},
	}
}

func (s *documentService) Upload(ctx context.Context, collection model.Collection, files []UploadFile) ([]model.UploadResult, error) {
	if !collection.Valid() {
		return nil, model.WrapError(model.ErrInvalidInput, "upload", fmt.Errorf("unknown collection %q", collection))
	}
	if len(files) == 0 {
		return nil, model.WrapError(model.ErrInvalidInput, "upload", errors.New("no files"))
	}
	if collection == model.CollectionRAG && !s.settings.HasCredential() {
		return nil, model.WrapError(model.ErrConfiguration, "upload", errors.New("API key not set"))
	}

	log.Infof("[DocumentService] 开始处理上传, collection: %s, 文件数: %d", collection, len(files))
	results := make([]model.UploadResult, 0, len(files))
	for _, f := range files {
		result := s.uploadOne(ctx, collection, f)
		if result.Error != "" {
			log.Warnf("[DocumentService] 文件处理失败, 继续处理其余文件, FileName: %s, Error: %s", result.FileName, result.Error)
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *documentService) uploadOne(ctx context.Context, collection model.Collection, f UploadFile) model.UploadResult {
	name := filepath.Base(strings.ReplaceAll(f.FileName, "\\", "/"))
	result := model.UploadResult{FileName: name}
	if name == "" || name == "." || name == "/" {
		result.Error = "invalid file name"
		return result
	}

	key := model.ObjectKey(collection, name)
	if err := s.objects.Put(ctx, key, bytes.NewReader(f.Data), int64(len(f.Data)), f.ContentType); err != nil {
		result.Error = fmt.Sprintf("保存文件失败: %v", err)
		return result
	}

	if s.publisher != nil {
		doc := &model.IndexedDocument{
			Collection: string(collection),
			FileName:   name,
			ObjectKey:  key,
			TotalSize:  int64(len(f.Data)),
			Status:     model.DocumentPending,
		}
		if err := s.docs.Upsert(ctx, doc); err != nil {
			result.Error = fmt.Sprintf("保存文档记录失败: %v", err)
			return result
		}
		task := tasks.IndexTask{Collection: string(collection), ObjectKey: key, FileName: name, Size: int64(len(f.Data))}
		if err := s.publisher.Publish(ctx, task); err != nil {
			result.Error = fmt.Sprintf("投递建索引任务失败: %v", err)
			return result
		}
		log.Infof("[DocumentService] 建索引任务已投递, key: %s", task.Key())
		result.Queued = true
		return result
	}

	chunks, err := s.index(ctx, collection, name, key, f.Data)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Chunks = chunks
	return result
}

func (s *documentService) Process(ctx context.Context, task tasks.IndexTask) error {
	collection := model.Collection(task.Collection)
	if !collection.Valid() {
		return model.WrapError(model.ErrInvalidInput, "process", fmt.Errorf("unknown collection %q", task.Collection))
	}
	log.Infof("[DocumentService] 开始处理建索引任务, key: %s", task.Key())
	data, err := s.objects.Get(ctx, task.ObjectKey)
	if err != nil {
		return fmt.Errorf("读取文件 %s 失败: %w", task.ObjectKey, err)
	}
	_, err = s.index(ctx, collection, task.FileName, task.ObjectKey, data)
	return err
}

// index 把文件写入对应的文档库并更新文档记录。语义库需要向量，关键词库不需要。
func (s *documentService) index(ctx context.Context, collection model.Collection, name, key string, data []byte) (int, error) {
	mu := s.locks[collection]
	mu.Lock()
	chunks, err := s.indexer.Index(ctx, name, data, s.stores[collection], collection == model.CollectionRAG)
	mu.Unlock()
	s.metrics.ObserveIndexing(string(collection), err)

	doc := &model.IndexedDocument{
		Collection: string(collection),
		FileName:   name,
		ObjectKey:  key,
		ChunkCount: chunks,
		TotalSize:  int64(len(data)),
		Status:     model.DocumentIndexed,
	}
	if err != nil {
		doc.Status = model.DocumentFailed
	}
	if upsertErr := s.docs.Upsert(ctx, doc); upsertErr != nil {
		log.Errorf("[DocumentService] 更新文档记录失败, FileName: %s, Error: %v", name, upsertErr)
		if err == nil {
			err = upsertErr
		}
	}
	return chunks, err
}

func (s *documentService) ListDocuments(ctx context.Context, collection model.Collection) ([]model.IndexedDocument, error) {
	if collection != "" && !collection.Valid() {
		return nil, model.WrapError(model.ErrInvalidInput, "documents", fmt.Errorf("unknown collection %q", collection))
	}
	docs, err := s.docs.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		s.reconcile(ctx, &docs[i])
	}
	return docs, nil
}

// reconcile 核对已索引记录的分块是否仍在文档库中，不在时更新记录。
func (s *documentService) reconcile(ctx context.Context, doc *model.IndexedDocument) {
	target, ok := s.stores[model.Collection(doc.Collection)]
	if !ok || doc.Status != model.DocumentIndexed {
		return
	}
	present, err := target.HasSource(ctx, doc.FileName)
	if err != nil {
		log.Warnf("[DocumentService] 核对文档分块失败, FileName: %s, Error: %v", doc.FileName, err)
		return
	}
	if present {
		return
	}
	log.Warnf("[DocumentService] 文档库中已没有该文档的分块, Collection: %s, FileName: %s", doc.Collection, doc.FileName)
	doc.Status = model.DocumentMissing
	doc.ChunkCount = 0
	if err := s.docs.Upsert(ctx, doc); err != nil {
		log.Errorf("[DocumentService] 更新文档记录失败, FileName: %s, Error: %v", doc.FileName, err)
	}
}
