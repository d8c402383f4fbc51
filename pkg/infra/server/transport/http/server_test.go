package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/eurodetective/pkg/infra/middleware"
	httpopts "github.com/kart-io/eurodetective/pkg/options/server/http"
	"github.com/kart-io/eurodetective/pkg/utils/json"
	"github.com/kart-io/eurodetective/pkg/utils/response"
)

func testOptions() *httpopts.Options {
	opts := httpopts.NewOptions()
	opts.Addr = "127.0.0.1:0"
	opts.Mode = gin.TestMode
	return opts
}

func TestNoRouteReturnsEnvelope(t *testing.T) {
	s := NewServer(testOptions(), "test")

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsSuccess())
	assert.Equal(t, w.Header().Get(middleware.HeaderXRequestID), resp.RequestID)
}

func TestStartServeStop(t *testing.T) {
	s := NewServer(testOptions(), "test")
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderXRequestID))

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestStartListenError(t *testing.T) {
	opts := testOptions()
	opts.Addr = "256.0.0.1:bad"
	s := NewServer(opts, "test")
	require.Error(t, s.Start(context.Background()))
}
