// Package mongoopts 定义 MongoDB 连接与分块集合的配置。
package mongoopts

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/eurodetective/pkg/options"
)

// PasswordEnv 优先读取的密码环境变量。
const PasswordEnv = "MONGODB_PASSWORD"

const redacted = "[REDACTED]"

var _ options.IOptions = (*Options)(nil)

// Options MongoDB 配置。URI 非空时忽略 Host/Port/Username/Password。
type Options struct {
	URI      string `json:"uri" mapstructure:"uri"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	// ChunkCollection 新闻分块文本所在的集合。
	ChunkCollection string `json:"chunk-collection" mapstructure:"chunk-collection"`

	MaxPoolSize            uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`

	AuthSource string `json:"auth-source" mapstructure:"auth-source"`
	ReplicaSet string `json:"replica-set" mapstructure:"replica-set"`
	Direct     bool   `json:"direct" mapstructure:"direct"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "eurodetective",
		ChunkCollection:        "eurovoices-chunked-news",
		MaxPoolSize:            50,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 15 * time.Second,
		AuthSource:             "admin",
	}
}

// Complete 未通过参数提供密码时从环境变量读取。
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv(PasswordEnv)
	}
	return nil
}

// BuildURI 返回连接串，URI 已配置时原样返回。
func (o *Options) BuildURI() string {
	if o.URI != "" {
		return o.URI
	}

	var b strings.Builder
	b.WriteString("mongodb://")
	if o.Username != "" {
		b.WriteString(url.QueryEscape(o.Username))
		if o.Password != "" {
			b.WriteString(":")
			b.WriteString(url.QueryEscape(o.Password))
		}
		b.WriteString("@")
	}
	b.WriteString(o.Host)
	if o.Port != 0 {
		b.WriteString(":" + strconv.Itoa(o.Port))
	}
	b.WriteString("/")

	params := url.Values{}
	if o.Username != "" && o.AuthSource != "" {
		params.Set("authSource", o.AuthSource)
	}
	if o.ReplicaSet != "" {
		params.Set("replicaSet", o.ReplicaSet)
	}
	if o.Direct {
		params.Set("directConnection", "true")
	}
	if len(params) > 0 {
		b.WriteString("?" + params.Encode())
	}
	return b.String()
}

// MarshalJSON 序列化时隐藏密码。
func (o *Options) MarshalJSON() ([]byte, error) {
	type plain Options
	out := struct {
		*plain
		Password string `json:"password"`
	}{plain: (*plain)(o)}
	if o.Password != "" {
		out.Password = redacted
	}
	return json.Marshal(out)
}

// String 返回隐藏密码后的描述。
func (o *Options) String() string {
	password := ""
	if o.Password != "" {
		password = redacted
	}
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, password=%s, database=%s, chunks=%s}",
		o.Host, o.Port, o.Username, password, o.Database, o.ChunkCollection)
}

// AddFlags 注册命令行参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mongodb."
	fs.StringVar(&o.URI, p+"uri", o.URI, "MongoDB connection string, overrides host/port/credentials.")
	fs.StringVar(&o.Host, p+"host", o.Host, "MongoDB host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "MongoDB port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "MongoDB username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "MongoDB password (prefer the "+PasswordEnv+" env var).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database holding the chunk collection.")
	fs.StringVar(&o.ChunkCollection, p+"chunk-collection", o.ChunkCollection, "Collection of chunk texts keyed by chunk_id.")
	fs.Uint64Var(&o.MaxPoolSize, p+"max-pool-size", o.MaxPoolSize, "Maximum connection pool size.")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Connect timeout.")
	fs.DurationVar(&o.ServerSelectionTimeout, p+"server-selection-timeout", o.ServerSelectionTimeout, "Server selection timeout.")
	fs.StringVar(&o.AuthSource, p+"auth-source", o.AuthSource, "Authentication database.")
	fs.StringVar(&o.ReplicaSet, p+"replica-set", o.ReplicaSet, "Replica set name.")
	fs.BoolVar(&o.Direct, p+"direct", o.Direct, "Connect directly to a single host.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.URI == "" && o.Host == "" {
		errs = append(errs, fmt.Errorf("mongodb uri or host is required"))
	}
	if o.URI != "" && !strings.HasPrefix(o.URI, "mongodb://") && !strings.HasPrefix(o.URI, "mongodb+srv://") {
		errs = append(errs, fmt.Errorf("mongodb uri must start with mongodb:// or mongodb+srv://"))
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("mongodb database is required"))
	}
	if o.ChunkCollection == "" {
		errs = append(errs, fmt.Errorf("mongodb chunk collection is required"))
	}
	return errs
}
