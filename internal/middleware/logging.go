package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"campus-tutor-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// loggableBody 返回可以落日志的请求/响应体。认证接口的报文
// 携带一次性验证码与签发的 token，不允许以明文进入日志。
func loggableBody(path, body string) string {
	if strings.HasPrefix(path, "/api/v1/auth/") {
		return "[REDACTED]"
	}
	return body
}

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogger 是一个 Gin 中间件，用于记录详细的请求和响应日志。
// WebSocket 升级请求不做响应体捕获，劫持后的连接不经过 ResponseWriter。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		if c.GetHeader("Upgrade") == "websocket" {
			c.Next()
			log.Infow("HTTP Request Log",
				"statusCode", c.Writer.Status(),
				"latency", time.Since(startTime).String(),
				"clientIP", c.ClientIP(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"websocket", true,
			)
			return
		}

		// 读取并重新缓存请求体，以便后续处理函数可以正常读取
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		// 使用自定义的 ResponseWriter 捕获响应
		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		latency := time.Since(startTime)
		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", loggableBody(c.Request.URL.Path, string(requestBody)),
			"responseBody", loggableBody(c.Request.URL.Path, blw.body.String()),
		)
	}
}
