package response

import "fmt"

// AppError 接口层错误，Message 返回给调用方，Err 仅用于日志
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 构造接口层错误，code 为 0 时按服务端错误处理
func WrapError(code int, message string, err error) *AppError {
	if code == CodeOK {
		code = CodeInternal
	}
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
