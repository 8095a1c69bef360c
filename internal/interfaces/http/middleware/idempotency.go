package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aa-wallet.backend/pkg/logger"
	"aa-wallet.backend/pkg/redis"
)

const IdempotencyHeader = "Idempotency-Key"

// ResponseStore persists replayable responses.
type ResponseStore interface {
	Lookup(ctx context.Context, scope, key string) (*redis.StoredResponse, error)
	Claim(ctx context.Context, scope, key string) error
	Save(ctx context.Context, scope, key string, resp *redis.StoredResponse) error
	Release(ctx context.Context, scope, key string) error
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a request whose
// Idempotency-Key was already used on the same route. A nil store disables it.
func IdempotencyMiddleware(store ResponseStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if store == nil || key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		scope := c.Request.Method + " " + c.FullPath()
		if op, ok := GetOperator(c); ok {
			scope += " " + op
		}

		stored, err := store.Lookup(ctx, scope, key)
		switch {
		case errors.Is(err, redis.ErrPending):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":    "IDEMPOTENCY_CONFLICT",
				"message": "Request already in progress",
			})
			return
		case err != nil:
			logger.Warn(ctx, "Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		case stored != nil:
			c.Header("X-Idempotency-Hit", "true")
			c.Data(stored.Status, stored.ContentType, []byte(stored.Body))
			c.Abort()
			return
		}

		if err := store.Claim(ctx, scope, key); err != nil {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":    "IDEMPOTENCY_CONFLICT",
				"message": "Request in progress",
			})
			return
		}

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			_ = store.Save(ctx, scope, key, &redis.StoredResponse{
				Status:      status,
				ContentType: c.Writer.Header().Get("Content-Type"),
				Body:        w.body.String(),
			})
			return
		}
		_ = store.Release(ctx, scope, key)
	}
}
