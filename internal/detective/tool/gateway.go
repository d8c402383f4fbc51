package tool

import "context"

// Embedder 查询文本向量化，llm.EmbeddingProvider 满足该接口。
type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher 带元数据过滤的向量检索。结果按相似度从高到低排列。
type VectorSearcher interface {
	Query(ctx context.Context, vector []float32, filter MetadataFilter, topK int) ([]RetrievedChunk, error)
}

// ChunkStore 分块全文存储。分块不存在时返回 ok=false 且 err 为 nil。
type ChunkStore interface {
	Get(ctx context.Context, chunkID string) (text string, ok bool, err error)
}

// RetrievedChunk 一条向量检索命中。全文不在命中结果中，需按 ChunkID 从 ChunkStore 读取。
type RetrievedChunk struct {
	ChunkID  string
	Score    float32
	Metadata ChunkMetadata
}

// ChunkMetadata 分块元数据。
type ChunkMetadata struct {
	ArticleID     string
	Title         string
	Country       string
	Pillars       [PillarCount]int
	ImpactScore   int
	PublishedDate string
}
