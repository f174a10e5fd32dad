package middleware

import (
	"net/http"
	"strings"

	"github.com/vantage-solutions/ms-go-accounts/app/dto"
	"github.com/vantage-solutions/ms-go-accounts/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type sessionVerifier interface {
	VerifySession(tokenString string) (*service.SessionClaims, error)
}

// AuthMiddleware is the access guard: RequireAuth resolves the caller's
// identity from the bearer token, RequireRole gates on it. No handler runs
// before both applicable checks pass.
type AuthMiddleware struct {
	tokens sessionVerifier
}

func NewAuthMiddleware(tokens sessionVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authorization header"})
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logrus.Debug("Invalid authorization header format")
			return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "invalid authorization header format"})
		}

		claims, err := m.tokens.VerifySession(parts[1])
		if err != nil {
			logrus.Debug("Invalid or expired session token")
			return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "invalid or expired token"})
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("user_role", claims.Role)

		return next(c)
	}
}

// RequireRole must be chained after RequireAuth; a request that reaches it
// without a resolved identity is rejected as unauthenticated, not forbidden.
func (m *AuthMiddleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("user_role").(string)
			if !ok {
				logrus.Warn("Role check without authenticated identity")
				return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "unauthorized"})
			}

			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}

			logrus.WithField("role", role).Debug("Insufficient permissions")
			return c.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "insufficient permissions"})
		}
	}
}
