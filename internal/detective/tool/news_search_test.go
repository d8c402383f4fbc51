package tool

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/eurodetective/internal/detective/metrics"
	apierrors "github.com/kart-io/eurodetective/pkg/utils/errors"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type fakeSearcher struct {
	matches []RetrievedChunk
	err     error

	calls  int
	vector []float32
	filter MetadataFilter
	topK   int
}

func (f *fakeSearcher) Query(_ context.Context, vector []float32, filter MetadataFilter, topK int) ([]RetrievedChunk, error) {
	f.calls++
	f.vector, f.filter, f.topK = vector, filter, topK
	return f.matches, f.err
}

type fakeChunks struct {
	texts map[string]string
	fail  map[string]bool
	// delay 使靠前的分块更晚返回，用于验证顺序。
	delay func(id string) time.Duration
}

func (f *fakeChunks) Get(_ context.Context, id string) (string, bool, error) {
	if f.delay != nil {
		time.Sleep(f.delay(id))
	}
	if f.fail[id] {
		return "", false, errors.New("store unavailable")
	}
	text, ok := f.texts[id]
	return text, ok, nil
}

func match(id, title, country string) RetrievedChunk {
	return RetrievedChunk{ChunkID: id, Metadata: ChunkMetadata{Title: title, Country: country}}
}

func newSearch(t *testing.T, e Embedder, s VectorSearcher, c ChunkStore, opts ...Option) *NewsSearch {
	t.Helper()
	ns, err := NewNewsSearch(e, s, c, Config{TopK: 250, FetchConcurrency: 4}, opts...)
	require.NoError(t, err)
	t.Cleanup(ns.Close)
	return ns
}

func TestNewNewsSearchRequiresGateways(t *testing.T) {
	_, err := NewNewsSearch(nil, &fakeSearcher{}, &fakeChunks{}, DefaultConfig())
	assert.Error(t, err)
}

func TestFormatBlock(t *testing.T) {
	got := FormatBlock("Court ruling", "Poland", "The tribunal decided.")
	want := "[START OF CONTEXT EVENT]\nTitle: Court ruling\nCountry: Poland\n\nRetrieved information:\nThe tribunal decided.\n[END OF CONTEXT EVENT]"
	assert.Equal(t, want, got)
}

func TestSearchFilteredRetrieval(t *testing.T) {
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{matches: []RetrievedChunk{match("FRA_B1C0", "Probe opened", "France")}}
	chunks := &fakeChunks{texts: map[string]string{"FRA_B1C0": "Prosecutors opened a probe."}}
	ns := newSearch(t, embedder, searcher, chunks)

	q, err := ParseQuery(`{"query": "corruption", "country": "France", "pillar_2": 1}`)
	require.NoError(t, err)

	out, err := ns.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []string{"corruption"}, embedder.texts)
	assert.Equal(t, MetadataFilter{"country": "France", "pillar_2": 1}, searcher.filter)
	assert.Equal(t, []float32{float32(len("corruption")), 1}, searcher.vector)
	assert.Equal(t, 250, searcher.topK)
	assert.Equal(t, FormatBlock("Probe opened", "France", "Prosecutors opened a probe."), out)
}

func TestSearchPreservesMatchOrder(t *testing.T) {
	const n = 40
	var matches []RetrievedChunk
	texts := map[string]string{}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("ITA_B1C%d", i)
		matches = append(matches, match(id, fmt.Sprintf("Title %d", i), "Italy"))
		texts[id] = fmt.Sprintf("Body %d", i)
	}
	chunks := &fakeChunks{texts: texts, delay: func(id string) time.Duration {
		var i int
		_, _ = fmt.Sscanf(id, "ITA_B1C%d", &i)
		return time.Duration(n-i) * 50 * time.Microsecond
	}}
	ns := newSearch(t, &fakeEmbedder{}, &fakeSearcher{matches: matches}, chunks)

	out, err := ns.Search(context.Background(), Query{Query: "media freedom"})
	require.NoError(t, err)

	require.Len(t, strings.Split(out, "\n\n[START OF CONTEXT EVENT]"), n)

	var want []string
	for i := 0; i < n; i++ {
		want = append(want, FormatBlock(fmt.Sprintf("Title %d", i), "Italy", fmt.Sprintf("Body %d", i)))
	}
	assert.Equal(t, strings.Join(want, "\n\n"), out)
}

func TestSearchChunkStoreMiss(t *testing.T) {
	m := metrics.New()
	searcher := &fakeSearcher{matches: []RetrievedChunk{
		match("HUN_B1C0", "Found", "Hungary"),
		match("HUN_B1C1", "Missing", "Hungary"),
		match("HUN_B1C2", "Broken", "Hungary"),
	}}
	chunks := &fakeChunks{
		texts: map[string]string{"HUN_B1C0": "Text zero."},
		fail:  map[string]bool{"HUN_B1C2": true},
	}
	ns := newSearch(t, &fakeEmbedder{}, searcher, chunks, WithMetrics(m))

	out, err := ns.Search(context.Background(), Query{Query: "media"})
	require.NoError(t, err)

	want := strings.Join([]string{
		FormatBlock("Found", "Hungary", "Text zero."),
		FormatBlock("Missing", "Hungary", ""),
		FormatBlock("Broken", "Hungary", ""),
	}, "\n\n")
	assert.Equal(t, want, out)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `eurodetective_chunk_store_misses_total 2`)
	assert.Contains(t, w.Body.String(), `eurodetective_pool_submitted_tasks_total{pool="chunk-fetch"} 3`)
}

func TestSearchEmptyMatches(t *testing.T) {
	ns := newSearch(t, &fakeEmbedder{}, &fakeSearcher{}, &fakeChunks{})
	out, err := ns.Search(context.Background(), Query{Query: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSearchErrors(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		searcher := &fakeSearcher{}
		ns := newSearch(t, &fakeEmbedder{}, searcher, &fakeChunks{})
		_, err := ns.Search(context.Background(), Query{Query: " "})
		assert.True(t, apierrors.Is(err, apierrors.ErrAgentValidation))
		assert.Zero(t, searcher.calls)
	})

	t.Run("embedding", func(t *testing.T) {
		searcher := &fakeSearcher{}
		ns := newSearch(t, &fakeEmbedder{err: errors.New("quota exceeded")}, searcher, &fakeChunks{})
		_, err := ns.Search(context.Background(), Query{Query: "x"})
		assert.True(t, apierrors.Is(err, apierrors.ErrAgentGateway))
		assert.Zero(t, searcher.calls)
	})

	t.Run("vector search", func(t *testing.T) {
		ns := newSearch(t, &fakeEmbedder{}, &fakeSearcher{err: errors.New("milvus down")}, &fakeChunks{})
		_, err := ns.Search(context.Background(), Query{Query: "x"})
		assert.True(t, apierrors.Is(err, apierrors.ErrAgentGateway))
	})
}

func TestRunNeverFails(t *testing.T) {
	ns := newSearch(t, &fakeEmbedder{err: errors.New("quota exceeded")}, &fakeSearcher{}, &fakeChunks{})

	tests := map[string]struct {
		args string
		want string
	}{
		"bad json":     {args: `{"query":`, want: ErrorPrefix},
		"empty query":  {args: `{"query": ""}`, want: ErrorPrefix + "query must not be empty"},
		"gateway":      {args: `{"query": "x"}`, want: ErrorPrefix + "embedding failed: quota exceeded"},
		"bad operator": {args: `{"query": "x", "impact_score": {"$near": 3}}`, want: ErrorPrefix},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := ns.Run(context.Background(), tt.args)
			assert.True(t, strings.HasPrefix(got, tt.want), got)
		})
	}
}

func TestRunSuccess(t *testing.T) {
	searcher := &fakeSearcher{matches: []RetrievedChunk{match("a", "T", "Malta")}}
	ns := newSearch(t, &fakeEmbedder{}, searcher, &fakeChunks{texts: map[string]string{"a": "body"}})

	got := ns.Run(context.Background(), `{"query": "press", "impact_score": {"lte": 2}}`)
	assert.Equal(t, FormatBlock("T", "Malta", "body"), got)
	assert.Equal(t, MetadataFilter{"impact_score": Predicate{Op: OpLte, Value: 2}}, searcher.filter)
}

func TestDefinition(t *testing.T) {
	def := Definition()
	assert.Equal(t, Name, def.Name)
	assert.Equal(t, RetrieverDescription, def.Description)
	assert.Equal(t, []string{"query"}, def.Parameters["required"])

	props := def.Parameters["properties"].(map[string]any)
	assert.Len(t, props, 11)
	for i := 0; i < PillarCount; i++ {
		assert.Contains(t, props, PillarField(i))
	}
}
