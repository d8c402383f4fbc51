package agentopts

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentOptionsDefaults(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, 500000, o.MaxTokens)
	assert.Equal(t, RouteAnswer, o.Route)
	assert.Equal(t, "single_session_memory", o.ThreadID)
	assert.False(t, o.UsesRedis())
	assert.Zero(t, o.ChunkCacheTTL, "chunk cache is opt-in")
}

func TestAgentOptionsValidate(t *testing.T) {
	o := NewOptions()
	o.Route = "loop"
	o.ChunkStore = "s3"
	o.SessionStore = BackendMongoDB
	o.TopK = 0
	assert.Len(t, o.Validate(), 4)
}

func TestAgentOptionsFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--agent.session-store=redis", "--agent.route=rewrite", "--agent.max-tokens=1000", "--agent.chunk-cache-ttl=5m"}))
	assert.Equal(t, BackendRedis, o.SessionStore)
	assert.Equal(t, RouteRewrite, o.Route)
	assert.Equal(t, 1000, o.MaxTokens)
	assert.Equal(t, 5*time.Minute, o.ChunkCacheTTL)
	assert.True(t, o.UsesRedis())
}
