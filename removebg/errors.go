package removebg

import (
	"errors"
	"fmt"
)

const (
	CodeOK        = 0
	CodeNoSource  = 100 // path/url/base64 均为空
	CodeMultiSrc  = 101 // path/url/base64 同时给了多个
	CodeBadPath   = 110 // 本地路径不存在或不是文件
	CodeBadURL    = 120 // url 格式不合法
	CodeAcquire   = 200 // 获取或解码图片失败
	CodeProcessed = 300 // 裁剪、推理或编码失败
)

// Error 以 (code, msg) 的形式返回给 HTTP 与命令行调用方
type Error struct {
	Code int
	Msg  string
	Err  error
}

func newError(code int, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("code=%d, msg=%s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf 取出错误码，nil 返回 CodeOK，非 *Error 的错误视为处理失败
func CodeOf(err error) int {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeProcessed
}
