package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/socialfeed/feed-services/pkg/middleware"
)

// Verifier checks bearer tokens issued by the Keycloak realm that fronts the
// feed API. Signing keys come from the realm's discovery document.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier fetches the realm's discovery document. Tokens must carry
// clientID in their audience; an empty clientID accepts any audience, which
// is what Keycloak access tokens minted for the "account" client need.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover issuer %s: %w", issuer, err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID, SkipClientIDCheck: clientID == ""})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// KeycloakIssuer returns the realm issuer URL, or baseURL itself when no realm
// is given (older deployments expose the realm path in the URL).
func KeycloakIssuer(baseURL, realm string) string {
	if realm == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/realms/" + realm
}

// Verify checks signature, issuer, audience and expiry of a bearer token.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
