package model

// Chunk 是文档的一段连续文本，是建索引和检索的基本单位。
// 写入后不再修改；Score 只在一次检索调用中临时填充。
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"-"`
	Score     float64   `json:"score"`
	// Seq 是写入文档库时分配的序号，用于检索结果的稳定排序。
	Seq uint64 `json:"-"`
}

// ScoredChunk 是融合后的检索结果项。
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// SearchResponseDTO 定义了返回给前端的搜索结果结构。
type SearchResponseDTO struct {
	ID       string  `json:"id"`
	FileName string  `json:"fileName"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

// EsChunk 定义了存储在 Elasticsearch 中的分块结构。
type EsChunk struct {
	ChunkID string    `json:"chunk_id"`
	Source  string    `json:"source"`
	Text    string    `json:"text"`
	Vector  []float32 `json:"vector,omitempty"`
	Seq     uint64    `json:"seq"`
}
