package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"go_wabot/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	apiKeyHeader      = "X-API-Key"
	webhookHMACHeader = "X-Webhook-Hmac"
)

// requestLogger 每个请求一行访问日志
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.L().WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("HTTP request")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("HTTP request")
		default:
			entry.Debug("HTTP request")
		}
	}
}

// apiKeyAuth 校验 X-API-Key，未配置 key 时放行
func apiKeyAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}

		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if !hmac.Equal([]byte(key), []byte(expected)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiResponse{Success: false, Error: "API Key inválida"})
			return
		}
		c.Next()
	}
}

// verifyHMAC 校验 WAHA 的 X-Webhook-Hmac（HMAC-SHA512，十六进制），未配置 key 时放行
func verifyHMAC(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, apiResponse{Success: false, Error: "failed to read body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !validSignature(key, body, c.GetHeader(webhookHMACHeader)) {
			logger.L().Warnf("Webhook rejected: invalid signature from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiResponse{Success: false, Error: "invalid signature"})
			return
		}
		c.Next()
	}
}

func validSignature(key string, body []byte, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(header)), []byte(expected))
}
