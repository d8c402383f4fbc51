package store

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/eurodetective/internal/detective/tool"
	"github.com/kart-io/eurodetective/pkg/component/milvus"
	milvusopts "github.com/kart-io/eurodetective/pkg/options/milvus"
)

type fakeMilvus struct {
	schema  *milvus.CollectionSchema
	coll    string
	rows    *milvus.Rows
	req     *milvus.SearchRequest
	results []milvus.SearchResult
}

func (f *fakeMilvus) EnsureCollection(_ context.Context, schema *milvus.CollectionSchema) error {
	f.schema = schema
	return nil
}

func (f *fakeMilvus) Upsert(_ context.Context, collection string, rows *milvus.Rows) (int64, error) {
	f.coll, f.rows = collection, rows
	return int64(len(rows.IDs)), nil
}

func (f *fakeMilvus) Search(_ context.Context, req *milvus.SearchRequest) ([]milvus.SearchResult, error) {
	f.req = req
	return f.results, nil
}

func newIndex(t *testing.T, api milvusAPI) *MilvusIndex {
	t.Helper()
	opts := milvusopts.NewOptions()
	opts.Dimension = 2
	idx, err := NewMilvusIndex(api, opts)
	require.NoError(t, err)
	return idx
}

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name   string
		filter tool.MetadataFilter
		want   string
	}{
		{name: "empty", filter: tool.MetadataFilter{}, want: ""},
		{name: "country", filter: tool.MetadataFilter{"country": "France"}, want: `country == "France"`},
		{
			name:   "sorted fields",
			filter: tool.MetadataFilter{"pillar_2": 1, "country": "Poland", "impact_score": 4},
			want:   `country == "Poland" and impact_score == 4 and pillar_2 == 1`,
		},
		{
			name:   "operator",
			filter: tool.MetadataFilter{"impact_score": tool.Predicate{Op: tool.OpGte, Value: 4}},
			want:   "impact_score >= 4",
		},
		{
			name:   "range",
			filter: tool.MetadataFilter{"impact_score": []tool.Predicate{{Op: tool.OpGt, Value: 1}, {Op: tool.OpLte, Value: 3}}},
			want:   "impact_score > 1 and impact_score <= 3",
		},
		{
			name:   "in",
			filter: tool.MetadataFilter{"impact_score": tool.Predicate{Op: tool.OpIn, Value: []int{4, 5}}},
			want:   "impact_score in [4, 5]",
		},
		{
			name:   "not equal",
			filter: tool.MetadataFilter{"impact_score": tool.Predicate{Op: tool.OpNe, Value: 1}},
			want:   "impact_score != 1",
		},
		{
			name:   "escaped string",
			filter: tool.MetadataFilter{"country": `a"b\c`},
			want:   `country == "a\"b\\c"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterExpr(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterExprRejectsBadValues(t *testing.T) {
	for name, f := range map[string]tool.MetadataFilter{
		"float":       {"impact_score": 2.5},
		"in scalar":   {"impact_score": tool.Predicate{Op: tool.OpIn, Value: 3}},
		"gte list":    {"impact_score": tool.Predicate{Op: tool.OpGte, Value: []int{3}}},
		"unknown op":  {"impact_score": tool.Predicate{Op: "near", Value: 3}},
		"list member": {"impact_score": []tool.Predicate{{Op: "near", Value: 3}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FilterExpr(f)
			assert.Error(t, err)
		})
	}
}

func TestMilvusIndexSchema(t *testing.T) {
	api := &fakeMilvus{}
	idx := newIndex(t, api)
	require.NoError(t, idx.EnsureCollection(context.Background()))

	s := api.schema
	require.NotNil(t, s)
	assert.Equal(t, "eurovoices_news_articles", s.Name)
	assert.Equal(t, FieldID, s.PrimaryKey)
	assert.Equal(t, entity.COSINE, s.Metric)
	assert.Equal(t, 2, s.Dimension)

	names := map[string]entity.FieldType{}
	for _, f := range s.MetaFields {
		names[f.Name] = f.DataType
	}
	assert.Len(t, names, 14)
	assert.Equal(t, entity.FieldTypeVarChar, names[FieldCountry])
	assert.Equal(t, entity.FieldTypeInt64, names[FieldImpactScore])
	assert.Equal(t, entity.FieldTypeInt64, names["pillar_8"])
}

func TestMilvusIndexUpsert(t *testing.T) {
	api := &fakeMilvus{}
	idx := newIndex(t, api)

	md := tool.ChunkMetadata{ArticleID: "a1", Title: "T", Country: "Austria", ImpactScore: 3, PublishedDate: "2024-05-01"}
	md.Pillars[2] = 1
	n, err := idx.Upsert(context.Background(), []IndexRecord{
		{ID: "AUS_B1C0", Vector: []float32{0.1, 0.2}, ChunkIndex: 0, Metadata: md},
		{ID: "AUS_B1C1", Vector: []float32{0.3, 0.4}, ChunkIndex: 1, Metadata: md},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rows := api.rows
	assert.Equal(t, "eurovoices_news_articles", api.coll)
	assert.Equal(t, []string{"AUS_B1C0", "AUS_B1C1"}, rows.IDs)
	assert.Equal(t, []int64{0, 1}, rows.Int64s[FieldChunkIndex])
	assert.Equal(t, []int64{1, 1}, rows.Int64s["pillar_3"])
	assert.Equal(t, []int64{0, 0}, rows.Int64s["pillar_1"])
	assert.Equal(t, []string{"Austria", "Austria"}, rows.VarChars[FieldCountry])

	_, err = idx.Upsert(context.Background(), []IndexRecord{{ID: "x", Vector: []float32{1}}})
	assert.Error(t, err)
}

func TestMilvusIndexQuery(t *testing.T) {
	api := &fakeMilvus{results: []milvus.SearchResult{
		{ID: "FRA_B2C1", Score: 0.9, Fields: map[string]any{
			FieldTitle: "Probe", FieldCountry: "France", FieldImpactScore: int64(4), "pillar_2": int64(1), FieldArticleID: "42",
		}},
		{ID: "FRA_B2C0", Score: 0.5, Fields: map[string]any{FieldTitle: "Older"}},
	}}
	idx := newIndex(t, api)

	got, err := idx.Query(context.Background(), []float32{1, 0}, tool.MetadataFilter{"country": "France"}, 250)
	require.NoError(t, err)

	assert.Equal(t, `country == "France"`, api.req.Filter)
	assert.Equal(t, 250, api.req.TopK)
	assert.Contains(t, api.req.OutputFields, FieldTitle)

	require.Len(t, got, 2)
	assert.Equal(t, "FRA_B2C1", got[0].ChunkID)
	assert.Equal(t, "Probe", got[0].Metadata.Title)
	assert.Equal(t, 4, got[0].Metadata.ImpactScore)
	assert.Equal(t, 1, got[0].Metadata.Pillars[1])
	assert.Equal(t, "42", got[0].Metadata.ArticleID)
	assert.Equal(t, "Older", got[1].Metadata.Title)
	assert.Empty(t, got[1].Metadata.Country)
}

func TestNewMilvusIndexRejectsMetric(t *testing.T) {
	opts := milvusopts.NewOptions()
	opts.Metric = "HAMMING"
	_, err := NewMilvusIndex(&fakeMilvus{}, opts)
	assert.Error(t, err)
}
