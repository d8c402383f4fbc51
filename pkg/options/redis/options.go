// Package redisopts 定义 Redis 连接以及会话/分块存储键空间的配置。
package redisopts

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/eurodetective/pkg/options"
)

// PasswordEnv 优先读取的密码环境变量。
const PasswordEnv = "REDIS_PASSWORD"

const redacted = "[REDACTED]"

var _ options.IOptions = (*Options)(nil)

// Options Redis 配置。
type Options struct {
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	Password     string        `json:"-" mapstructure:"password"`
	Database     int           `json:"database" mapstructure:"database"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	PoolSize     int           `json:"pool-size" mapstructure:"pool-size"`
	MinIdleConns int           `json:"min-idle-conns" mapstructure:"min-idle-conns"`
	DialTimeout  time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`

	// KeyPrefix 所有键的公共前缀，例如 "eurodetective:"。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
	// SessionTTL 会话历史的过期时间，0 表示永不过期。
	SessionTTL time.Duration `json:"session-ttl" mapstructure:"session-ttl"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Host:         "127.0.0.1",
		Port:         6379,
		MaxRetries:   3,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "eurodetective:",
	}
}

// Addr 返回 host:port 形式的地址。
func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Complete 未通过参数提供密码时从环境变量读取。
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv(PasswordEnv)
	}
	return nil
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

// String 返回隐藏密码后的描述，可安全写入日志。
func (o *Options) String() string {
	password := ""
	if o.Password != "" {
		password = redacted
	}
	return fmt.Sprintf("Redis{addr=%s, password=%s, database=%d, prefix=%s}", o.Addr(), password, o.Database, o.KeyPrefix)
}

// AddFlags 注册命令行参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "redis."
	fs.StringVar(&o.Host, p+"host", o.Host, "Redis host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Redis port.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Redis password (prefer the "+PasswordEnv+" env var).")
	fs.IntVar(&o.Database, p+"database", o.Database, "Redis database index.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum command retries.")
	fs.IntVar(&o.PoolSize, p+"pool-size", o.PoolSize, "Connection pool size.")
	fs.IntVar(&o.MinIdleConns, p+"min-idle-conns", o.MinIdleConns, "Minimum idle connections.")
	fs.DurationVar(&o.DialTimeout, p+"dial-timeout", o.DialTimeout, "Dial timeout.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Read timeout.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Write timeout.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Prefix applied to every session and chunk key.")
	fs.DurationVar(&o.SessionTTL, p+"session-ttl", o.SessionTTL, "Expiry of stored conversation histories, 0 keeps them forever.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("redis host is required"))
	}
	if o.Port <= 0 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis port %d out of range", o.Port))
	}
	if o.Database < 0 {
		errs = append(errs, fmt.Errorf("redis database must not be negative"))
	}
	if o.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("redis session ttl must not be negative"))
	}
	return errs
}
