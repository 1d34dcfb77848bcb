package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// LogApi writes one access line per request. Probe endpoints are skipped.
func LogApi() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/readyz"},
		Formatter: accessLine,
	})
}

// accessLine tags the line with the authenticated user, "-" when anonymous
func accessLine(param gin.LogFormatterParams) string {
	user := "-"
	if id, ok := param.Keys[ContextUserID].(string); ok && id != "" {
		user = id
	}
	return fmt.Sprintf("[%s] | %d | %v | %s | %s %s | user=%s | %s\n",
		param.TimeStamp.Format("2006-01-02 15:04:05"),
		param.StatusCode,
		param.Latency,
		param.ClientIP,
		param.Method,
		param.Path,
		user,
		param.ErrorMessage,
	)
}
