package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nsavage/wardendns/internal/api/models"
	"golang.org/x/crypto/bcrypt"
)

// Login exchanges a form-encoded username/password pair for a signed
// bearer token. No auth is required to reach this endpoint.
func (h *Handler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := h.store.FindUser(c.Request.Context(), username)
	if err != nil {
		h.logWarn("login store lookup failed", "username", username, "err", err)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
		return
	}

	ttl := h.tokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	claims := jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.secretKey))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "token signing failed"})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{AccessToken: signed, TokenType: "bearer"})
}

func (h *Handler) logWarn(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Warn(msg, args...)
	}
}
