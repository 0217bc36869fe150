package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"doc-rag-go/internal/model"
	"doc-rag-go/internal/store"
	"doc-rag-go/pkg/embedding"
	"doc-rag-go/pkg/log"

	"github.com/google/uuid"
)

// Indexer 封装了文件建索引的所有依赖和逻辑：提取、清洗、分块、（可选）向量化、写入。
type Indexer struct {
	extractor  *Extractor
	embedder   embedding.Client
	chunkWords int
}

// NewIndexer 创建一个新的 Indexer 实例。
func NewIndexer(extractor *Extractor, embedder embedding.Client, chunkWords int) *Indexer {
	if chunkWords <= 0 {
		chunkWords = RetrievalChunkWords
	}
	return &Indexer{extractor: extractor, embedder: embedder, chunkWords: chunkWords}
}

// Index 把文件写入 target，返回写入的分块数。
// embed 为 true 时先为全部分块计算向量，任何一批失败则整个文档都不写入。
func (ix *Indexer) Index(ctx context.Context, fileName string, data []byte, target store.Store, embed bool) (int, error) {
	log.Infof("[Indexer] 开始处理文件, FileName: %s, Store: %s, Embed: %t", fileName, target.Name(), embed)
	if embed != target.Semantic() {
		return 0, model.WrapError(model.ErrInvalidInput, "pipeline.Index",
			fmt.Errorf("store %q semantic=%t, embed=%t", target.Name(), target.Semantic(), embed))
	}

	// 1. 提取文本
	text, err := ix.extractor.Extract(ctx, fileName, data)
	if err != nil {
		log.Errorf("[Indexer] 提取文本失败, FileName: %s, Error: %v", fileName, err)
		return 0, err
	}
	log.Infof("[Indexer] 步骤1: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(text))

	// 2. 清洗并分块
	texts := Split(Clean(text), ix.chunkWords)
	if len(texts) == 0 {
		return 0, model.WrapError(model.ErrConversion, fileName, errors.New("未生成任何文本分块"))
	}
	log.Infof("[Indexer] 步骤2: 文本分块完成, chunkWords: %d, 共生成 %d 个分块", ix.chunkWords, len(texts))

	chunks := make([]model.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = model.Chunk{
			ID:     chunkID(target.Name(), fileName, i),
			Text:   t,
			Source: fileName,
		}
	}

	// 3. 向量化，全部成功后才进入写入阶段
	if embed {
		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			log.Errorf("[Indexer] 向量化失败, 文件不会被写入, FileName: %s, Error: %v", fileName, err)
			return 0, err
		}
		if len(vectors) != len(chunks) {
			return 0, model.WrapError(model.ErrRemoteCall, "pipeline.Index",
				fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
		log.Infof("[Indexer] 步骤3: 向量化完成, 维度: %d", len(vectors[0]))
	}

	// 4. 写入文档库
	if err := target.Write(ctx, fileName, chunks); err != nil {
		log.Errorf("[Indexer] 写入文档库失败, FileName: %s, Error: %v", fileName, err)
		return 0, err
	}
	log.Infof("[Indexer] 文件处理成功完成, FileName: %s, 分块数: %d", fileName, len(chunks))
	return len(chunks), nil
}

// chunkID 由库名、文件名和序号确定，重复建索引得到相同的 id。
func chunkID(storeName, fileName string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%s#%d", storeName, fileName, i))).String()
}
