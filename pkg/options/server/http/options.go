// Package httpopts 定义 HTTP 服务配置。
package httpopts

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/kart-io/eurodetective/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options HTTP 服务配置。
type Options struct {
	// Addr 监听地址。
	Addr string `json:"addr" mapstructure:"addr"`
	// Mode gin 运行模式：debug、release 或 test。
	Mode         string        `json:"mode" mapstructure:"mode"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	IdleTimeout  time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// RequestTimeout 单次对话请求（含流式）的最长处理时间。
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
	// ShutdownTimeout 优雅关闭的等待时间。
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	// SkipLogPaths 不记录访问日志的路径。
	SkipLogPaths []string `json:"skip-log-paths" mapstructure:"skip-log-paths"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Addr:            ":8082",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    150 * time.Second,
		IdleTimeout:     60 * time.Second,
		RequestTimeout:  120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		SkipLogPaths:    []string{"/healthz", "/metrics"},
	}
}

// AddFlags 注册命令行参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "HTTP bind address and port.")
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Gin mode (debug, release, test).")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Timeout for reading the entire request.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Timeout for writing the response, must cover streamed answers.")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "Keep-alive idle timeout.")
	fs.DurationVar(&o.RequestTimeout, p+"request-timeout", o.RequestTimeout, "Maximum processing time of one chat turn.")
	fs.DurationVar(&o.ShutdownTimeout, p+"shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")
	fs.StringSliceVar(&o.SkipLogPaths, p+"skip-log-paths", o.SkipLogPaths, "Paths excluded from access logs.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	switch o.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("http.mode must be debug, release or test, got %q", o.Mode))
	}
	if o.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.read-timeout must be positive"))
	}
	if o.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.request-timeout must be positive"))
	}
	if o.WriteTimeout > 0 && o.WriteTimeout < o.RequestTimeout {
		errs = append(errs, fmt.Errorf("http.write-timeout must not be shorter than http.request-timeout"))
	}
	return errs
}
