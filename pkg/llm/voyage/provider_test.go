package voyage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/eurodetective/pkg/llm"
)

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.Error(t, err, "api key is required")

	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"api_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "voyage-3.5", req.Model)
		assert.Equal(t, "document", req.InputType)
		assert.Equal(t, 1024, req.OutputDimension)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		_, _ = io.WriteString(w, `{"object":"list","data":[
			{"object":"embedding","embedding":[0.3],"index":1},
			{"object":"embedding","embedding":[0.1],"index":0}
		],"model":"voyage-3.5","usage":{"total_tokens":2}}`)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "k"
	cfg.Timeout = 5 * time.Second
	p := NewProviderWithConfig(cfg)

	got, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1}, {0.3}}, got)
}

func TestEmbedMissingVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"embedding":[0.1],"index":0}]}`)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "k"
	cfg.MaxRetries = 0

	_, err := NewProviderWithConfig(cfg).Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedSingleUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "bad"

	_, err := NewProviderWithConfig(cfg).EmbedSingle(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
