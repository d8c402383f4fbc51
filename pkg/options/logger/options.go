// Package logopts 包装 kart-io/logger 的配置。
package logopts

import (
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/kart-io/logger/option"
	"github.com/spf13/pflag"

	"github.com/kart-io/eurodetective/pkg/options"
)

// Options 日志配置。
type Options struct {
	*option.LogOption `mapstructure:",squash"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{LogOption: option.DefaultLogOption()}
}

// AddFlags 注册命令行参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "log."
	fs.StringVar(&o.Engine, p+"engine", o.Engine, "Logging engine (zap|slog).")
	fs.StringVar(&o.Level, p+"level", o.Level, "Log level (DEBUG|INFO|WARN|ERROR|FATAL).")
	fs.StringVar(&o.Format, p+"format", o.Format, "Log format (json|console).")
	fs.StringSliceVar(&o.OutputPaths, p+"output-paths", o.OutputPaths, "Output paths for logs.")
	fs.BoolVar(&o.Development, p+"development", o.Development, "Enable development mode.")
	fs.BoolVar(&o.DisableCaller, p+"disable-caller", o.DisableCaller, "Disable caller detection.")
	fs.BoolVar(&o.DisableStacktrace, p+"disable-stacktrace", o.DisableStacktrace, "Disable stacktrace capture.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if err := o.LogOption.Validate(); err != nil {
		return []error{err}
	}
	return nil
}

// Init 初始化全局日志，附带服务名与版本字段。
func (o *Options) Init(service, version string) (core.Logger, error) {
	o.WithInitialFields(map[string]interface{}{
		"service.name":    service,
		"service.version": version,
	})

	log, err := logger.New(o.LogOption)
	if err != nil {
		return nil, err
	}
	logger.SetGlobal(log)
	return log, nil
}
