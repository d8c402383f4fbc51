// Package app 基于 Cobra、Viper 与 Pflag 构建命令行应用。
//
// 配置的优先级从高到低依次为：命令行参数、环境变量、配置文件、默认值。
// 配置文件中的 ${VAR} 会在加载时展开为环境变量。
//
//	application := app.NewApp(
//	    app.WithName("eurodetective"),
//	    app.WithOptions(opts),
//	    app.WithRunFunc(run),
//	    app.WithSubApps(chatApp, ingestApp),
//	)
//	application.Run()
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kart-io/eurodetective/pkg/app/cliflag"
)

// CliOptions 命令行选项需要实现的接口。
type CliOptions interface {
	// Flags 返回按分组组织的参数。
	Flags() cliflag.NamedFlagSets
	// Complete 补全默认值。
	Complete() error
	// Validate 校验选项。
	Validate() error
}

// RunFunc 应用主函数。
type RunFunc func() error

// Option 配置 App。
type Option func(*App)

// App 命令行应用。
type App struct {
	name        string
	configName  string
	shortDesc   string
	description string
	options     CliOptions
	runFunc     RunFunc
	args        cobra.PositionalArgs
	subApps     []*App
	silence     bool
	noVersion   bool
	noConfig    bool
	cmd         *cobra.Command
}

// WithName 设置应用名，同时作为配置文件名与环境变量前缀。
func WithName(name string) Option {
	return func(a *App) { a.name = name }
}

// WithConfigName 覆盖配置文件名与环境变量前缀，子命令沿用父命令的配置时使用。
func WithConfigName(name string) Option {
	return func(a *App) { a.configName = name }
}

// WithShortDescription 设置简短描述。
func WithShortDescription(desc string) Option {
	return func(a *App) { a.shortDesc = desc }
}

// WithDescription 设置详细描述。
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions 设置命令行选项。
func WithOptions(opts CliOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc 设置主函数。
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithArgs 设置位置参数校验。
func WithArgs(args cobra.PositionalArgs) Option {
	return func(a *App) { a.args = args }
}

// WithSubApps 注册子命令。
func WithSubApps(apps ...*App) Option {
	return func(a *App) { a.subApps = append(a.subApps, apps...) }
}

// WithSilence 不打印错误信息。
func WithSilence() Option {
	return func(a *App) { a.silence = true }
}

// WithNoVersion 不注册 --version。
func WithNoVersion() Option {
	return func(a *App) { a.noVersion = true }
}

// WithNoConfig 不加载配置文件。
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// NewApp 创建应用。
func NewApp(opts ...Option) *App {
	a := &App{name: filepath.Base(os.Args[0])}
	for _, opt := range opts {
		opt(a)
	}
	if a.configName == "" {
		a.configName = a.name
	}

	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:          a.name,
		Short:        a.shortDesc,
		Long:         a.description,
		Args:         a.args,
		SilenceUsage: true,
	}
	if a.runFunc != nil {
		cmd.RunE = a.runCommand
	}
	if a.silence {
		cmd.SilenceErrors = true
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	if !a.noConfig {
		cmd.Flags().StringP("config", "c", "", "Path to config file.")
	}
	if !a.noVersion {
		version.AddFlags(cmd.Flags())
	}

	if a.options != nil {
		fss := a.options.Flags()
		fss.AddTo(cmd.Flags())
		cmd.SetUsageFunc(func(c *cobra.Command) error {
			fmt.Fprintf(c.OutOrStderr(), "Usage:\n  %s\n", c.UseLine())
			if c.HasAvailableSubCommands() {
				fmt.Fprintln(c.OutOrStderr(), "\nAvailable Commands:")
				for _, sub := range c.Commands() {
					if sub.IsAvailableCommand() {
						fmt.Fprintf(c.OutOrStderr(), "  %-12s %s\n", sub.Name(), sub.Short)
					}
				}
			}
			cliflag.PrintSections(c.OutOrStderr(), fss, 0)
			return nil
		})
	}

	for _, sub := range a.subApps {
		cmd.AddCommand(sub.Command())
	}

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	if !a.noVersion {
		version.PrintAndExitIfRequested()
	}

	if !a.noConfig {
		if err := a.loadConfig(cmd); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	return a.runFunc()
}

func (a *App) loadConfig(cmd *cobra.Command) error {
	v := viper.New()

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(a.configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+a.configName))
		v.AddConfigPath("/etc/" + a.configName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	expandEnvVars(v)

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(a.configName, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.options == nil {
		return nil
	}

	// 绑定所有参数，使 AutomaticEnv 能覆盖配置文件中不存在的键
	changed := make(map[string]string)
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = f.Value.String()
		}
		if err := v.BindEnv(f.Name); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind env: %w", bindErr)
	}

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 命令行参数优先级最高，重新写回
	for name, val := range changed {
		if err := cmd.Flags().Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars 展开配置值中的 ${VAR} 与 $VAR，未设置的变量保持原样。
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		str, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(str, func(match string) string {
			name := strings.TrimPrefix(match, "$")
			name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
			if val := os.Getenv(name); val != "" {
				return val
			}
			return match
		})
		if expanded != str {
			v.Set(key, expanded)
		}
	}
}

// Run 执行命令，失败时退出进程。
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command 返回 cobra 命令。
func (a *App) Command() *cobra.Command {
	return a.cmd
}
