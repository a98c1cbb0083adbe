package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/socialfeed/feed-services/internal/users"
	"github.com/socialfeed/feed-services/pkg/logger"
	"github.com/socialfeed/feed-services/pkg/middleware"
)

// Revoker invalidates an access token before it expires.
type Revoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// AuthHandler serves the account endpoints for already authenticated callers.
// Token issuance belongs to the identity provider.
type AuthHandler struct {
	usersSvc   *users.Service
	revoker    Revoker
	defaultTTL time.Duration
}

// NewAuthHandler: defaultTTL is how long a revoked token is remembered when
// its expiry cannot be read.
func NewAuthHandler(u *users.Service, r Revoker, defaultTTL time.Duration) *AuthHandler {
	return &AuthHandler{usersSvc: u, revoker: r, defaultTTL: defaultTTL}
}

// Register routes under /api/v1 behind mw, authentication first.
func (h *AuthHandler) Register(r gin.IRouter, mw ...gin.HandlerFunc) {
	v1 := r.Group("/api/v1")
	for _, m := range mw {
		if m != nil {
			v1.Use(m)
		}
	}
	v1.GET("/me", h.Me)
	v1.POST("/logout", h.Logout)
}

// Me records the caller in the user directory and returns the stored profile.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, _ := c.Get(middleware.ClaimsKey)
	m, _ := claims.(map[string]interface{})
	u, err := h.usersSvc.UpsertFromClaims(c.Request.Context(), m)
	if err != nil {
		logger.Errorf("user upsert error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user upsert failed", "code": "STORE_ERROR"})
		return
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token has no subject", "code": "UNAUTHORIZED"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// Logout revokes the presented access token for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.BearerTokenKey)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing access token", "code": "UNAUTHORIZED"})
		return
	}
	ttl := h.defaultTTL
	if exp, err := expiryOf(token); err == nil {
		ttl = time.Until(exp)
	}
	if ttl > 0 && h.revoker != nil {
		if err := h.revoker.Revoke(c.Request.Context(), token, ttl); err != nil {
			logger.Errorf("failed to revoke access token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke access token", "code": "STORE_ERROR"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// expiryOf reads the exp claim without verifying the signature; the token was
// already verified by the auth middleware.
func expiryOf(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, jwt.ErrTokenRequiredClaimMissing
	}
	return exp.Time, nil
}
