package errors

import stderrors "errors"

// Is 等同于标准库 errors.Is，Errno 之间按错误码比较。
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As 等同于标准库 errors.As。
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// FromError 将任意错误转换为 Errno。
// 错误链中已有 Errno 时直接返回，否则包装为 ErrInternal。
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode 报告错误链中是否包含指定错误码。
func IsCode(err error, code int) bool {
	var e *Errno
	return stderrors.As(err, &e) && e.Code == code
}

// GetCode 返回错误链中的错误码，非 Errno 时返回 -1。
func GetCode(err error) int {
	var e *Errno
	if stderrors.As(err, &e) {
		return e.Code
	}
	return -1
}
