package options_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/eurodetective/pkg/options"
	milvusopts "github.com/kart-io/eurodetective/pkg/options/milvus"
	httpopts "github.com/kart-io/eurodetective/pkg/options/server/http"
)

func TestJoin(t *testing.T) {
	assert.Equal(t, "", options.Join())
	assert.Equal(t, "a.", options.Join("a"))
	assert.Equal(t, "a.b.", options.Join("a", "b"))
}

func TestMilvusOptions(t *testing.T) {
	o := milvusopts.NewOptions()
	assert.Empty(t, o.Validate())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--milvus.metric=HAMMING", "--milvus.dimension=0"}))

	errs := o.Validate()
	assert.Len(t, errs, 2)
}

func TestHTTPOptions(t *testing.T) {
	o := httpopts.NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, ":8082", o.Addr)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--http.mode=prod", "--http.write-timeout=10s"}))

	assert.Len(t, o.Validate(), 2)
}
