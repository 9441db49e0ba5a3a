package logger

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader is the HTTP header carrying the request id.
const RequestIDHeader = "X-Request-ID"

// ginKey is the key under which the request-scoped logger is stored in the gin context.
const ginKey = "logger"

type contextKey struct{}

// New builds a zap logger. In production the output is JSON with ISO8601 timestamps, otherwise it
// is the human-friendly development format with coloured levels.
func New(level string, production bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build(zap.Fields(zap.String("service", "contacts-service")))
}

// WithContext returns a copy of ctx that carries the logger.
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger stored in ctx, or the global zap logger.
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return log
	}
	return zap.L()
}

// FromGin returns the request-scoped logger set by RequestID.
func FromGin(c *gin.Context) *zap.Logger {
	if log, ok := c.Get(ginKey); ok {
		return log.(*zap.Logger)
	}
	return FromContext(c.Request.Context())
}

// RequestID makes sure every request has an id, echoes it in the response and derives a
// request-scoped logger from base.
func RequestID(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		log := base.With(zap.String("request_id", requestID))
		c.Set(ginKey, log)
		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), log))
		c.Next()
	}
}

// Requests logs one line per HTTP request after it has been handled. Errors attached to the gin
// context are logged at error level, even when all is false.
func Requests(all bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := FromGin(c)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			log.Error("HTTP request", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		if all {
			log.Info("HTTP request", fields...)
		}
	}
}
