package llmopts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToConfigMap(t *testing.T) {
	o := NewEmbeddingOptions()
	o.APIKey = "k"

	m := o.ToConfigMap()
	assert.Equal(t, "k", m["api_key"])
	assert.Equal(t, "voyage-3.5", m["embed_model"])
	assert.Equal(t, 1024, m["embed_dimensions"])
	assert.Equal(t, "document", m["input_type"])
	assert.Equal(t, 60*time.Second, m["timeout"])
	_, hasBase := m["base_url"]
	assert.False(t, hasBase)
}

func TestCompleteReadsProviderEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	o := NewChatOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "sk-env", o.APIKey)

	o = NewChatOptions()
	o.APIKey = "explicit"
	require.NoError(t, o.Complete())
	assert.Equal(t, "explicit", o.APIKey)
}

func TestValidate(t *testing.T) {
	assert.Empty(t, NewChatOptions().Validate())

	o := NewChatOptions()
	o.Model = ""
	o.Temperature = 3
	assert.Len(t, o.Validate(), 2)
}
