package server

import (
	"net/http"
	"time"

	"github.com/chaos-io/removebg/util"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-ID"
	ctxRequestID    = "requestID"
)

// RequestID 沿用客户端传入的请求 ID，没有则生成一个
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = ksuid.New().String()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// Logger Zap日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		cost := time.Since(start)

		util.Logger.Info("request",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("cost", cost),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORS 允许前端编辑器跨域调用
func CORS() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", HeaderRequestID}
	config.ExposeHeaders = []string{HeaderRequestID}
	return cors.New(config)
}

// BodyLimit 限制请求体大小，n <= 0 时不限制
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
