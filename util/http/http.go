package http

import (
	"context"
	"time"
)

// IClient 发起 HTTP 请求，测试中可替换
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 描述一次 HTTP 调用
//
//	Body: nil / io.Reader / []byte / 其他类型（按 JSON 序列化）
//	Response: nil 忽略响应体；*[]byte 保存原始字节；其他类型按 JSON 反序列化
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	Timeout      time.Duration
	MaxBodyBytes int64

	// 响应头中的 Content-Type，请求完成后回填
	ContentType string
}
