// Package options contains flags and options for the eurodetective commands.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	detectivesvc "github.com/kart-io/eurodetective/internal/detective"
	"github.com/kart-io/eurodetective/pkg/app/cliflag"
	"github.com/kart-io/eurodetective/pkg/infra/tracing"
	agentopts "github.com/kart-io/eurodetective/pkg/options/agent"
	ingestopts "github.com/kart-io/eurodetective/pkg/options/ingest"
	llmopts "github.com/kart-io/eurodetective/pkg/options/llm"
	logopts "github.com/kart-io/eurodetective/pkg/options/logger"
	milvusopts "github.com/kart-io/eurodetective/pkg/options/milvus"
	mongoopts "github.com/kart-io/eurodetective/pkg/options/mongodb"
	redisopts "github.com/kart-io/eurodetective/pkg/options/redis"
	httpopts "github.com/kart-io/eurodetective/pkg/options/server/http"
)

// Options contains the configuration shared by all eurodetective commands.
// HTTP flags are only registered for the server and ingest flags only for ingest.
type Options struct {
	HTTPOptions      *httpopts.Options        `json:"http" mapstructure:"http"`
	LogOptions       *logopts.Options         `json:"log" mapstructure:"log"`
	TracingOptions   *tracing.Options         `json:"tracing" mapstructure:"tracing"`
	MilvusOptions    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	MongoOptions     *mongoopts.Options       `json:"mongodb" mapstructure:"mongodb"`
	RedisOptions     *redisopts.Options       `json:"redis" mapstructure:"redis"`
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	ChatOptions      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	AgentOptions     *agentopts.Options       `json:"agent" mapstructure:"agent"`
	IngestOptions    *ingestopts.Options      `json:"ingest" mapstructure:"ingest"`

	serve  bool
	ingest bool
}

func newOptions() *Options {
	return &Options{
		LogOptions:       logopts.NewOptions(),
		TracingOptions:   tracing.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		MongoOptions:     mongoopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		AgentOptions:     agentopts.NewOptions(),
		HTTPOptions:      httpopts.NewOptions(),
		IngestOptions:    ingestopts.NewOptions(),
	}
}

// NewServerOptions creates options for the HTTP server.
func NewServerOptions() *Options {
	o := newOptions()
	o.serve = true
	return o
}

// NewChatOptions creates options for the terminal chat.
func NewChatOptions() *Options {
	return newOptions()
}

// NewIngestOptions creates options for the ingest command.
func NewIngestOptions() *Options {
	o := newOptions()
	o.ingest = true
	return o
}

// Flags returns flags grouped by section name.
func (o *Options) Flags() (fss cliflag.NamedFlagSets) {
	if o.serve {
		o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	}
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.MongoOptions.AddFlags(fss.FlagSet("mongodb"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.AgentOptions.AddFlags(fss.FlagSet("agent"))
	if o.ingest {
		o.IngestOptions.AddFlags(fss.FlagSet("ingest"))
	}
	return fss
}

// Complete fills secrets from the environment.
func (o *Options) Complete() error {
	for _, c := range []interface{ Complete() error }{
		o.MongoOptions, o.RedisOptions, o.EmbeddingOptions, o.ChatOptions,
	} {
		if err := c.Complete(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every option group and aggregates the errors.
func (o *Options) Validate() error {
	var errs []error
	if o.serve {
		errs = append(errs, o.HTTPOptions.Validate()...)
	}
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	if o.AgentOptions.ChunkStore == agentopts.BackendMongoDB {
		errs = append(errs, o.MongoOptions.Validate()...)
	}
	if o.AgentOptions.UsesRedis() {
		errs = append(errs, o.RedisOptions.Validate()...)
	}
	errs = append(errs, prefixed("embedding", o.EmbeddingOptions.Validate())...)
	if !o.ingest {
		errs = append(errs, prefixed("chat", o.ChatOptions.Validate())...)
	} else {
		errs = append(errs, o.IngestOptions.Validate()...)
	}
	errs = append(errs, o.AgentOptions.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func prefixed(group string, errs []error) []error {
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = fmt.Errorf("%s.%w", group, err)
	}
	return out
}

// Config builds a detectivesvc.Config based on Options.
func (o *Options) Config() (*detectivesvc.Config, error) {
	return &detectivesvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		TracingOptions:   o.TracingOptions,
		MilvusOptions:    o.MilvusOptions,
		MongoOptions:     o.MongoOptions,
		RedisOptions:     o.RedisOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		AgentOptions:     o.AgentOptions,
		IngestOptions:    o.IngestOptions,
	}, nil
}
