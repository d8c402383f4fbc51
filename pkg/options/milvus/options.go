// Package milvusopts 定义 Milvus 客户端与新闻向量集合的配置。
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/eurodetective/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options Milvus 配置。
type Options struct {
	// Address Milvus 服务地址 (host:port)。
	Address  string `json:"address" mapstructure:"address"`
	Database string `json:"database" mapstructure:"database"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`

	// Collection 新闻分块向量集合名称。
	Collection string `json:"collection" mapstructure:"collection"`

	// Dimension 向量维度，需与 Embedding 模型输出一致。
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// Metric 相似度度量：COSINE、IP 或 L2。
	Metric string `json:"metric" mapstructure:"metric"`

	// NProbe IVF 索引查询时探测的聚类数。
	NProbe int `json:"nprobe" mapstructure:"nprobe"`

	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Address:    "localhost:19530",
		Database:   "default",
		Collection: "eurovoices_news_articles",
		Dimension:  1024,
		Metric:     "COSINE",
		NProbe:     16,
		Timeout:    30 * time.Second,
	}
}

// AddFlags 注册命令行参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Collection holding the news chunk vectors.")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Vector dimension of the collection.")
	fs.StringVar(&o.Metric, p+"metric", o.Metric, "Similarity metric: COSINE, IP or L2.")
	fs.IntVar(&o.NProbe, p+"nprobe", o.NProbe, "Number of IVF clusters probed per query.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Connection timeout.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus address is required"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("milvus collection is required"))
	}
	if o.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("milvus dimension must be positive"))
	}
	switch o.Metric {
	case "COSINE", "IP", "L2":
	default:
		errs = append(errs, fmt.Errorf("milvus metric must be one of COSINE, IP, L2, got %q", o.Metric))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus timeout must be positive"))
	}
	return errs
}
