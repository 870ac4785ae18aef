// Package middleware provides HTTP middleware for the Control API,
// including bearer-token authentication and request logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nsavage/wardendns/internal/api/models"
)

// subjectContextKey is the gin context key RequireAuth stores the token's
// subject (username) under.
const subjectContextKey = "auth_subject"

// RequireAuth enforces a JWT bearer token signed with secret. Tokens are
// issued by the login handler using the same secret (HS256).
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			unauthorized(c)
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			unauthorized(c)
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			unauthorized(c)
			return
		}

		c.Set(subjectContextKey, sub)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
}

// Subject returns the authenticated username set by RequireAuth.
func Subject(c *gin.Context) string {
	v, _ := c.Get(subjectContextKey)
	sub, _ := v.(string)
	return sub
}
