package app

import "github.com/kart-io/version"

// GetVersion 返回构建时注入的 Git 版本。
func GetVersion() string {
	return version.Get().GitVersion
}
