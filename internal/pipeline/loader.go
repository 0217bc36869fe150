package pipeline

import (
	"context"
	"errors"
	"fmt"

	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/storage"
)

// Loader 从对象存储读取已上传的文件并返回清洗后的文本。
type Loader struct {
	objects    storage.ObjectStore
	extractor  *Extractor
	collection model.Collection
}

func NewLoader(objects storage.ObjectStore, extractor *Extractor, collection model.Collection) *Loader {
	return &Loader{objects: objects, extractor: extractor, collection: collection}
}

// Load 读取并提取文件文本。文件不存在时返回 ErrNotFound，无法解析时返回 ErrConversion。
func (l *Loader) Load(ctx context.Context, fileName string) (string, error) {
	data, err := l.objects.Get(ctx, model.ObjectKey(l.collection, fileName))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return "", model.WrapError(model.ErrNotFound, "pipeline.Load", fmt.Errorf("document %q", fileName))
	}
	if err != nil {
		return "", fmt.Errorf("读取文件 %s 失败: %w", fileName, err)
	}
	text, err := l.extractor.Extract(ctx, fileName, data)
	if err != nil {
		return "", err
	}
	return Clean(text), nil
}
