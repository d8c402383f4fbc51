// Package options 定义通用的配置项接口与工具函数。
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join 以 "." 连接前缀，结果非空时追加尾部 "."。
// 用于构造 "milvus.address" 或 "prefix.milvus.address" 形式的参数名。
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions 配置项通用接口。
type IOptions interface {
	// Validate 校验配置，返回全部错误。
	Validate() []error

	// AddFlags 将配置项注册到 flagset。
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
