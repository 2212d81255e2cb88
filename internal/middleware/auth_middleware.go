package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/session"
	"github.com/smarttravel/checkout-backend/pkg/jwt"
)

// SessionContextKey is the key used to store the session in Gin context
const SessionContextKey = "session"

// UserIDContextKey carries the user id for request logging
const UserIDContextKey = "user_id"

// AuthMiddleware validates the storefront access token and attaches a
// session.Context to the request
func AuthMiddleware(jwtService *jwt.Service, registry *session.Registry, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		})

		// Get Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("AUTH FAILED: Missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Authorization header is required",
				"code":    "MISSING_AUTH_HEADER",
			})
			return
		}

		// Check Bearer token format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Warn("AUTH FAILED: Invalid auth format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid authorization header format. Expected: Bearer <token>",
				"code":    "INVALID_AUTH_FORMAT",
			})
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			log.Warn("AUTH FAILED: Empty token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Token cannot be empty",
				"code":    "INVALID_AUTH_FORMAT",
			})
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			if jwtService.IsTokenExpired(tokenString) {
				log.WithError(err).Warn("AUTH FAILED: Token expired")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "token_expired",
					"message": "Access token has expired. Please sign in again.",
					"code":    "TOKEN_EXPIRED",
				})
			} else {
				log.WithError(err).Warn("AUTH FAILED: Invalid token")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "invalid_token",
					"message": "Invalid access token",
					"code":    "INVALID_TOKEN",
				})
			}
			return
		}

		sess, err := session.Init(tokenString, claims, registry)
		if err != nil {
			if errors.Is(err, session.ErrSessionInvalidated) {
				log.WithField("user_id", claims.UserID).Warn("AUTH FAILED: Session was invalidated")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "session_invalidated",
					"message": "Your session has ended. Please sign in again.",
					"code":    "SESSION_INVALIDATED",
				})
				return
			}
			log.WithError(err).Error("AUTH FAILED: Could not build session")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Invalid access token",
				"code":    "INVALID_TOKEN",
			})
			return
		}

		c.Set(SessionContextKey, sess)
		c.Set(UserIDContextKey, sess.User.ID.String())

		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, exists := GetSession(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Session not found. Auth middleware may not be applied.",
				"code":    "MISSING_USER_CONTEXT",
			})
			return
		}

		for _, required := range roles {
			for _, role := range sess.User.Roles {
				if role == required {
					c.Next()
					return
				}
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You don't have permission to access this resource",
			"code":    "INSUFFICIENT_PERMISSIONS",
		})
	}
}

// GetSession retrieves the session from Gin context
func GetSession(c *gin.Context) (*session.Context, bool) {
	value, exists := c.Get(SessionContextKey)
	if !exists {
		return nil, false
	}

	sess, ok := value.(*session.Context)
	if !ok || sess == nil {
		return nil, false
	}

	return sess, true
}

// MustGetSession retrieves the session or panics (use only after AuthMiddleware)
func MustGetSession(c *gin.Context) *session.Context {
	sess, exists := GetSession(c)
	if !exists {
		panic("session not found - ensure AuthMiddleware is applied")
	}
	return sess
}
