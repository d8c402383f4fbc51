package options

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentopts "github.com/kart-io/eurodetective/pkg/options/agent"
)

func flagNames(o *Options) map[string]bool {
	names := map[string]bool{}
	fss := o.Flags()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fss.AddTo(fs)
	fs.VisitAll(func(f *pflag.Flag) { names[f.Name] = true })
	return names
}

func TestFlagsPerCommand(t *testing.T) {
	server := flagNames(NewServerOptions())
	assert.True(t, server["http.addr"])
	assert.True(t, server["embedding.provider"])
	assert.True(t, server["chat.model"])
	assert.True(t, server["agent.max-tokens"])
	assert.False(t, server["ingest.country"])

	chat := flagNames(NewChatOptions())
	assert.False(t, chat["http.addr"])
	assert.True(t, chat["agent.thread-id"])

	ingest := flagNames(NewIngestOptions())
	assert.True(t, ingest["ingest.country"])
	assert.False(t, ingest["http.addr"])
}

func TestValidate(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Validate())

	ing := NewIngestOptions()
	err := ing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.country")

	ing.IngestOptions.Country = "Italy"
	ing.ChatOptions.Model = ""
	assert.NoError(t, ing.Validate(), "chat model is unused by ingest")

	o.EmbeddingOptions.Model = ""
	o.AgentOptions.SessionStore = agentopts.BackendRedis
	o.RedisOptions.Port = 0
	err = o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.model is required")
	assert.Contains(t, err.Error(), "redis port")
}

func TestConfig(t *testing.T) {
	o := NewServerOptions()
	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.HTTPOptions, cfg.HTTPOptions)
	assert.Same(t, o.AgentOptions, cfg.AgentOptions)
	assert.Equal(t, ":8082", cfg.HTTPOptions.Addr)
}
