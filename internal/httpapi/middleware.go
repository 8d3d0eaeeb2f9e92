package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	corsHeaderContentType  = "Content-Type"
	corsHeaderAuthorize    = "Authorization"
	corsHeaderClientInfo   = "X-Client-Info"
	corsHeaderAPIKey       = "Apikey"
	corsPreflightCacheTime = 12 * time.Hour
)

var (
	corsAllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsAllowedHeaders = []string{corsHeaderContentType, corsHeaderAuthorize, corsHeaderClientInfo, corsHeaderAPIKey}
)

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

// CORS answers preflight requests for every route and allows any origin.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    []string{corsHeaderContentType},
		AllowCredentials: false,
		MaxAge:           corsPreflightCacheTime,
	})
}
