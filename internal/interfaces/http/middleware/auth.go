package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/interfaces/http/response"
	"aa-wallet.backend/pkg/jwt"
	"aa-wallet.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// OperatorKey is the context key for the authenticated operator
	OperatorKey = "operator"
)

type tokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// OperatorAuthMiddleware admits requests bearing a valid operator JWT
func OperatorAuthMiddleware(jwtService tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			logger.Warn(c.Request.Context(), "Authorization header missing", zap.String("path", c.Request.URL.Path))
			response.AbortWithError(c, domainerrors.Unauthorized("Authorization header is required"))
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.AbortWithError(c, domainerrors.Unauthorized("Invalid authorization format. Use: Bearer <token>"))
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			logger.Warn(c.Request.Context(), "Operator token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			if errors.Is(err, jwt.ErrExpiredToken) {
				response.AbortWithError(c, domainerrors.Unauthorized("Token has expired"))
				return
			}
			response.AbortWithError(c, domainerrors.Unauthorized("Invalid token"))
			return
		}

		c.Set(OperatorKey, claims.Operator)
		c.Next()
	}
}

// GetOperator gets the authenticated operator from context
func GetOperator(c *gin.Context) (string, bool) {
	v, exists := c.Get(OperatorKey)
	if !exists {
		return "", false
	}
	op, ok := v.(string)
	return op, ok
}
