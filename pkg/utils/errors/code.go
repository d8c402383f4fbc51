package errors

// 服务代码 (AA)
const (
	// ServiceCommon 所有服务共享的通用错误。
	ServiceCommon = 0

	// ServiceInfraDB 数据库基础设施。
	ServiceInfraDB = 10

	// ServiceInfraCache 缓存基础设施。
	ServiceInfraCache = 11

	// ServiceAgent 检索对话代理。
	ServiceAgent = 30

	// ServiceThirdPartyLLM 第三方模型服务（Embedding、Chat）。
	ServiceThirdPartyLLM = 94
)

// 类别代码 (BB)
const (
	CategorySuccess    = 0
	CategoryRequest    = 1  // 400
	CategoryAuth       = 2  // 401
	CategoryPermission = 3  // 403
	CategoryResource   = 4  // 404
	CategoryConflict   = 5  // 409
	CategoryRateLimit  = 6  // 429
	CategoryInternal   = 7  // 500
	CategoryDatabase   = 8  // 500
	CategoryCache      = 9  // 500
	CategoryNetwork    = 10 // 502/503
	CategoryTimeout    = 11 // 504
	CategoryConfig     = 12 // 500
)

// MakeCode 由服务、类别和序号组成错误码。
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode 将错误码拆分为服务、类别和序号。
func ParseCode(code int) (service, category, sequence int) {
	return code / 100000, (code % 100000) / 1000, code % 1000
}

// GetCategory 返回错误码的类别。
func GetCategory(code int) int {
	return (code % 100000) / 1000
}

// IsClientError 报告错误码是否属于客户端错误类别。
func IsClientError(code int) bool {
	category := GetCategory(code)
	return category >= CategoryRequest && category <= CategoryRateLimit
}
