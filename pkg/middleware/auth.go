package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/feed-services/internal/identity"
	"github.com/socialfeed/feed-services/pkg/logger"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// RevocationChecker reports tokens revoked before their expiry.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Context keys set by AuthMiddleware.
const (
	ClaimsKey      = "claims"
	PrincipalKey   = "principal"
	BearerTokenKey = "bearerToken"
)

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the
// provided verifier and attaches the resulting principal to the request
// context. revoked may be nil.
func AuthMiddleware(ver Verifier, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing or invalid Authorization header")
			return
		}
		if ver == nil {
			abortUnauthorized(c, "authentication is not configured")
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), token)
			if err != nil {
				logger.Errorf("revocation check failed: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "token revocation check failed", "code": "UNAVAILABLE"})
				return
			}
			if isRevoked {
				abortUnauthorized(c, "token revoked")
				return
			}
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debugf("token verification failed: %v", err)
			abortUnauthorized(c, "invalid token")
			return
		}

		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			abortUnauthorized(c, "failed to parse claims")
			return
		}
		p, ok := identity.FromClaims(claims)
		if !ok {
			abortUnauthorized(c, "token has no subject")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(PrincipalKey, p)
		c.Set(BearerTokenKey, token)
		c.Request = c.Request.WithContext(identity.NewContext(c.Request.Context(), p))
		c.Next()
	}
}

// PrincipalFrom returns the principal attached by AuthMiddleware; nil when the
// request is anonymous.
func PrincipalFrom(c *gin.Context) *identity.Principal {
	p, _ := identity.FromContext(c.Request.Context())
	return p
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "UNAUTHORIZED"})
}
