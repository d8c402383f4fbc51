// Package store 提供 EuroDetective 的存储实现：向量索引、分块全文和会话历史。
package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/eurodetective/internal/detective/tool"
	"github.com/kart-io/eurodetective/pkg/component/milvus"
	milvusopts "github.com/kart-io/eurodetective/pkg/options/milvus"
)

// 向量集合的字段名。
const (
	FieldID            = "id"
	FieldArticleID     = "article_id"
	FieldChunkIndex    = "chunk_id"
	FieldTitle         = "title"
	FieldCountry       = tool.FieldCountry
	FieldImpactScore   = tool.FieldImpactScore
	FieldPublishedDate = "published_date"
)

// milvusAPI 是 MilvusIndex 依赖的 Milvus 操作，*milvus.Client 满足该接口。
type milvusAPI interface {
	EnsureCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	Upsert(ctx context.Context, collection string, rows *milvus.Rows) (int64, error)
	Search(ctx context.Context, req *milvus.SearchRequest) ([]milvus.SearchResult, error)
}

// IndexRecord 一条待写入向量集合的分块。
type IndexRecord struct {
	ID         string
	Vector     []float32
	ChunkIndex int
	Metadata   tool.ChunkMetadata
}

// MilvusIndex 基于 Milvus 的新闻分块向量索引。
type MilvusIndex struct {
	api        milvusAPI
	collection string
	dimension  int
	metric     entity.MetricType
	nprobe     int
}

// NewMilvusIndex 创建向量索引。
func NewMilvusIndex(api milvusAPI, opts *milvusopts.Options) (*MilvusIndex, error) {
	if api == nil || opts == nil {
		return nil, fmt.Errorf("milvus index: client and options are required")
	}
	metric, err := milvus.ParseMetric(opts.Metric)
	if err != nil {
		return nil, err
	}
	return &MilvusIndex{
		api:        api,
		collection: opts.Collection,
		dimension:  opts.Dimension,
		metric:     metric,
		nprobe:     opts.NProbe,
	}, nil
}

// Schema 返回新闻分块集合的结构。
func (m *MilvusIndex) Schema() *milvus.CollectionSchema {
	fields := []milvus.MetaField{
		{Name: FieldArticleID, DataType: entity.FieldTypeVarChar, MaxLen: 256},
		{Name: FieldChunkIndex, DataType: entity.FieldTypeInt64},
		{Name: FieldTitle, DataType: entity.FieldTypeVarChar, MaxLen: 2048},
		{Name: FieldCountry, DataType: entity.FieldTypeVarChar, MaxLen: 64},
	}
	for i := 0; i < tool.PillarCount; i++ {
		fields = append(fields, milvus.MetaField{Name: tool.PillarField(i), DataType: entity.FieldTypeInt64})
	}
	fields = append(fields,
		milvus.MetaField{Name: FieldImpactScore, DataType: entity.FieldTypeInt64},
		milvus.MetaField{Name: FieldPublishedDate, DataType: entity.FieldTypeVarChar, MaxLen: 64},
	)

	return &milvus.CollectionSchema{
		Name:             m.collection,
		Description:      "EuroVoices news article chunks",
		PrimaryKey:       FieldID,
		PrimaryKeyMaxLen: 128,
		Dimension:        m.dimension,
		Metric:           m.metric,
		MetaFields:       fields,
	}
}

// EnsureCollection 集合不存在时按 Schema 创建。
func (m *MilvusIndex) EnsureCollection(ctx context.Context) error {
	return m.api.EnsureCollection(ctx, m.Schema())
}

// Upsert 写入一批分块，按主键覆盖。
func (m *MilvusIndex) Upsert(ctx context.Context, records []IndexRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	n := len(records)
	rows := &milvus.Rows{
		PrimaryKey: FieldID,
		IDs:        make([]string, n),
		Embeddings: make([][]float32, n),
		VarChars: map[string][]string{
			FieldArticleID:     make([]string, n),
			FieldTitle:         make([]string, n),
			FieldCountry:       make([]string, n),
			FieldPublishedDate: make([]string, n),
		},
		Int64s: map[string][]int64{
			FieldChunkIndex:  make([]int64, n),
			FieldImpactScore: make([]int64, n),
		},
	}
	for p := 0; p < tool.PillarCount; p++ {
		rows.Int64s[tool.PillarField(p)] = make([]int64, n)
	}

	for i, r := range records {
		if len(r.Vector) != m.dimension {
			return 0, fmt.Errorf("record %s: embedding has %d dimensions, want %d", r.ID, len(r.Vector), m.dimension)
		}
		rows.IDs[i] = r.ID
		rows.Embeddings[i] = r.Vector
		rows.VarChars[FieldArticleID][i] = r.Metadata.ArticleID
		rows.VarChars[FieldTitle][i] = r.Metadata.Title
		rows.VarChars[FieldCountry][i] = r.Metadata.Country
		rows.VarChars[FieldPublishedDate][i] = r.Metadata.PublishedDate
		rows.Int64s[FieldChunkIndex][i] = int64(r.ChunkIndex)
		rows.Int64s[FieldImpactScore][i] = int64(r.Metadata.ImpactScore)
		for p, v := range r.Metadata.Pillars {
			rows.Int64s[tool.PillarField(p)][i] = int64(v)
		}
	}

	return m.api.Upsert(ctx, m.collection, rows)
}

// Query 实现 tool.VectorSearcher。
func (m *MilvusIndex) Query(ctx context.Context, vector []float32, filter tool.MetadataFilter, topK int) ([]tool.RetrievedChunk, error) {
	expr, err := FilterExpr(filter)
	if err != nil {
		return nil, err
	}

	results, err := m.api.Search(ctx, &milvus.SearchRequest{
		Collection:   m.collection,
		Vector:       vector,
		TopK:         topK,
		Filter:       expr,
		OutputFields: outputFields(),
		NProbe:       m.nprobe,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]tool.RetrievedChunk, len(results))
	for i, r := range results {
		chunks[i] = tool.RetrievedChunk{
			ChunkID:  r.ID,
			Score:    r.Score,
			Metadata: metadataFromFields(r.Fields),
		}
	}
	return chunks, nil
}

func outputFields() []string {
	fields := []string{FieldArticleID, FieldTitle, FieldCountry, FieldImpactScore, FieldPublishedDate}
	for i := 0; i < tool.PillarCount; i++ {
		fields = append(fields, tool.PillarField(i))
	}
	return fields
}

func metadataFromFields(fields map[string]any) tool.ChunkMetadata {
	md := tool.ChunkMetadata{
		ArticleID:     stringField(fields, FieldArticleID),
		Title:         stringField(fields, FieldTitle),
		Country:       stringField(fields, FieldCountry),
		ImpactScore:   intField(fields, FieldImpactScore),
		PublishedDate: stringField(fields, FieldPublishedDate),
	}
	for i := range md.Pillars {
		md.Pillars[i] = intField(fields, tool.PillarField(i))
	}
	return md
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

func intField(fields map[string]any, name string) int {
	switch v := fields[name].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	}
	return 0
}

var opSymbols = map[tool.Op]string{
	tool.OpEq:  "==",
	tool.OpNe:  "!=",
	tool.OpGt:  ">",
	tool.OpGte: ">=",
	tool.OpLt:  "<",
	tool.OpLte: "<=",
}

// FilterExpr 将过滤条件转换为 Milvus 布尔表达式，字段按名称排序后以 and 连接。
// 空过滤条件返回空字符串。
func FilterExpr(filter tool.MetadataFilter) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		switch v := filter[field].(type) {
		case string:
			parts = append(parts, field+" == "+quote(v))
		case int:
			parts = append(parts, field+" == "+strconv.Itoa(v))
		case tool.Predicate:
			expr, err := predicateExpr(field, v)
			if err != nil {
				return "", err
			}
			parts = append(parts, expr)
		case []tool.Predicate:
			for _, p := range v {
				expr, err := predicateExpr(field, p)
				if err != nil {
					return "", err
				}
				parts = append(parts, expr)
			}
		default:
			return "", fmt.Errorf("unsupported filter value %T for field %s", v, field)
		}
	}
	return strings.Join(parts, " and "), nil
}

func predicateExpr(field string, p tool.Predicate) (string, error) {
	if p.Op == tool.OpIn {
		values, ok := p.Value.([]int)
		if !ok {
			return "", fmt.Errorf("field %s: in requires a list of integers", field)
		}
		items := make([]string, len(values))
		for i, v := range values {
			items[i] = strconv.Itoa(v)
		}
		return field + " in [" + strings.Join(items, ", ") + "]", nil
	}

	sym, ok := opSymbols[p.Op]
	if !ok {
		return "", fmt.Errorf("field %s: unsupported operator %q", field, p.Op)
	}
	v, ok := p.Value.(int)
	if !ok {
		return "", fmt.Errorf("field %s: operator %s requires an integer", field, p.Op)
	}
	return field + " " + sym + " " + strconv.Itoa(v), nil
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
