// Package milvus 封装 Milvus v2 SDK，提供集合创建、写入与带过滤的向量检索。
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/eurodetective/pkg/options/milvus"
)

const (
	// VectorField 向量字段名。
	VectorField = "embedding"
	// DefaultNList IVF_FLAT 索引的聚类数。
	DefaultNList = 128
)

// Client 封装 Milvus SDK 客户端。
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New 连接 Milvus。
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Close 关闭连接。
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// Options 返回客户端配置。
func (c *Client) Options() *milvusopts.Options {
	return c.opts
}

// CollectionSchema 描述向量集合。主键为 VarChar 类型，由调用方指定。
type CollectionSchema struct {
	Name        string
	Description string
	// PrimaryKey 主键字段名。
	PrimaryKey string
	// PrimaryKeyMaxLen 主键最大长度。
	PrimaryKeyMaxLen int
	Dimension        int
	Metric           entity.MetricType
	MetaFields       []MetaField
}

// MetaField 标量字段定义。
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // VarChar 专用
}

// ParseMetric 将配置中的度量名称转换为 SDK 类型。
func ParseMetric(name string) (entity.MetricType, error) {
	switch name {
	case "COSINE":
		return entity.COSINE, nil
	case "IP":
		return entity.IP, nil
	case "L2":
		return entity.L2, nil
	}
	return "", fmt.Errorf("unsupported milvus metric: %s", name)
}

// EnsureCollection 集合不存在时创建集合和 IVF_FLAT 索引，并加载到内存。
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		pkLen := schema.PrimaryKeyMaxLen
		if pkLen <= 0 {
			pkLen = 128
		}

		collSchema := entity.NewSchema().
			WithName(schema.Name).
			WithDescription(schema.Description).
			WithAutoID(false).
			WithField(entity.NewField().
				WithName(schema.PrimaryKey).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(pkLen)).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(VectorField).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(schema.Dimension)))

		for _, f := range schema.MetaFields {
			field := entity.NewField().WithName(f.Name).WithDataType(f.DataType)
			if f.DataType == entity.FieldTypeVarChar {
				maxLen := f.MaxLen
				if maxLen <= 0 {
					maxLen = 1024
				}
				field.WithMaxLength(int64(maxLen))
			}
			collSchema.WithField(field)
		}

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewIvfFlatIndex(schema.Metric, DefaultNList)
		task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, VectorField, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
	}

	return c.load(ctx, schema.Name)
}

func (c *Client) load(ctx context.Context, collection string) error {
	task, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Rows 列式写入数据，所有列长度必须一致。
type Rows struct {
	PrimaryKey string
	IDs        []string
	Embeddings [][]float32
	VarChars   map[string][]string
	Int64s     map[string][]int64
}

func (r *Rows) columns() ([]column.Column, error) {
	n := len(r.IDs)
	if n == 0 {
		return nil, fmt.Errorf("no rows to write")
	}
	if len(r.Embeddings) != n {
		return nil, fmt.Errorf("embedding count %d does not match id count %d", len(r.Embeddings), n)
	}

	cols := []column.Column{
		column.NewColumnVarChar(r.PrimaryKey, r.IDs),
		column.NewColumnFloatVector(VectorField, len(r.Embeddings[0]), r.Embeddings),
	}
	for name, values := range r.VarChars {
		if len(values) != n {
			return nil, fmt.Errorf("column %s has %d values, want %d", name, len(values), n)
		}
		cols = append(cols, column.NewColumnVarChar(name, values))
	}
	for name, values := range r.Int64s {
		if len(values) != n {
			return nil, fmt.Errorf("column %s has %d values, want %d", name, len(values), n)
		}
		cols = append(cols, column.NewColumnInt64(name, values))
	}
	return cols, nil
}

// Upsert 按主键写入或覆盖数据并 Flush，重复入库同一批数据是幂等的。
func (c *Client) Upsert(ctx context.Context, collection string, rows *Rows) (int64, error) {
	cols, err := rows.columns()
	if err != nil {
		return 0, err
	}

	result, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection, cols...))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert data: %w", err)
	}

	task, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return 0, fmt.Errorf("failed to wait for flush: %w", err)
	}
	return result.UpsertCount, nil
}

// SearchRequest 向量检索请求。
type SearchRequest struct {
	Collection   string
	Vector       []float32
	TopK         int
	Filter       string
	OutputFields []string
	NProbe       int
}

// SearchResult 单条检索结果。
type SearchResult struct {
	ID     string
	Score  float32
	Fields map[string]any
}

// Search 执行向量相似度检索，Filter 为 Milvus 布尔表达式，为空时不过滤。
// 结果按相似度从高到低排列。
func (c *Client) Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error) {
	nprobe := req.NProbe
	if nprobe <= 0 {
		nprobe = c.opts.NProbe
	}

	opt := milvusclient.NewSearchOption(req.Collection, req.TopK, []entity.Vector{entity.FloatVector(req.Vector)}).
		WithANNSField(VectorField).
		WithSearchParam("nprobe", strconv.Itoa(nprobe)).
		WithOutputFields(req.OutputFields...)
	if req.Filter != "" {
		opt = opt.WithFilter(req.Filter)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	out := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		r := SearchResult{
			Score:  rs.Scores[i],
			Fields: make(map[string]any, len(rs.Fields)),
		}

		switch ids := rs.IDs.(type) {
		case *column.ColumnVarChar:
			r.ID = ids.Data()[i]
		case *column.ColumnInt64:
			r.ID = strconv.FormatInt(ids.Data()[i], 10)
		}

		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				r.Fields[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				r.Fields[col.Name()] = col.Data()[i]
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// DropCollection 删除集合。
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Count 返回集合中的实体数。
func (c *Client) Count(ctx context.Context, collection string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
