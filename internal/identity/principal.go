// Package identity holds the authenticated principal contract shared by the
// HTTP middleware and the services. A request either carries a principal or
// it does not; services receive it as an explicit argument.
package identity

import (
	"context"
	"strings"
)

// Principal is the authenticated caller.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// Present reports whether p identifies a caller.
func (p *Principal) Present() bool { return p != nil && p.ID != "" }

// FromClaims builds a principal from verified token claims. The subject is
// required; the display name falls back to preferred_username, then email.
func FromClaims(claims map[string]interface{}) (*Principal, bool) {
	sub := claimString(claims, "sub")
	if sub == "" {
		return nil, false
	}
	p := &Principal{ID: sub, Email: claimString(claims, "email")}
	for _, k := range []string{"name", "preferred_username", "email"} {
		if v := claimString(claims, k); v != "" {
			p.DisplayName = v
			break
		}
	}
	return p, true
}

func claimString(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return strings.TrimSpace(v)
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext yields the principal attached by the auth middleware, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	if !ok || !p.Present() {
		return nil, false
	}
	return p, true
}
