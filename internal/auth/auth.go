// Package auth is the identity adapter. It performs structural checks on
// the caller's bearer token and hands the raw credential through to the
// execution layer unmodified; the data platform behind it is the real
// authorization boundary. An optional verified mode additionally checks the
// signature against the issuer's JWKS.
//
// In either mode the raw token is never logged and never persisted.
package auth

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// StructuralAuthenticator checks that a credential is a well-formed JWT
// naming the expected audience and not yet expired. It does not verify the
// signature; the warehouse rejects forged tokens on its own.
type StructuralAuthenticator struct {
	audience string
	now      func() time.Time
}

// NewStructural creates a StructuralAuthenticator requiring audience.
func NewStructural(audience string) *StructuralAuthenticator {
	return &StructuralAuthenticator{audience: audience, now: time.Now}
}

// Authenticate implements domain.Authenticator.
func (a *StructuralAuthenticator) Authenticate(_ context.Context, rawCredential string) (*domain.CallerIdentity, error) {
	if rawCredential == "" {
		return nil, domain.ErrAuthentication("missing credential")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(rawCredential, claims); err != nil {
		return nil, domain.ErrAuthentication("credential is not a parseable token")
	}

	return identityFromClaims(claims, rawCredential, a.audience, a.now())
}

// identityFromClaims applies the audience and expiry checks shared by both
// modes and builds the identity. The credential lands in the identity
// byte-identical to what the caller presented.
func identityFromClaims(claims jwt.MapClaims, rawCredential, audience string, now time.Time) (*domain.CallerIdentity, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, domain.ErrAuthentication("credential has no expiry")
	}
	if !exp.Time.After(now) {
		return nil, domain.ErrAuthentication("credential is expired")
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return nil, domain.ErrAuthentication("credential audience is malformed")
	}
	if audience != "" && !containsAudience(aud, audience) {
		return nil, domain.ErrAuthentication("credential audience does not include %q", audience)
	}

	subject, _ := claims.GetSubject()

	return &domain.CallerIdentity{
		Subject:       subject,
		Audience:      []string(aud),
		Expiry:        exp.Time,
		RawCredential: rawCredential,
	}, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// OIDCAuthenticator is the verified mode: signatures are checked against
// the issuer's key set before the structural checks run.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
	audience string
	now      func() time.Time
}

// NewOIDC creates an authenticator backed by OIDC discovery at issuerURL.
func NewOIDC(ctx context.Context, issuerURL, audience string) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, err
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: audience})
	return &OIDCAuthenticator{verifier: verifier, audience: audience, now: time.Now}, nil
}

// NewOIDCFromJWKS creates a verified authenticator from an explicit JWKS
// URL, skipping discovery.
func NewOIDCFromJWKS(ctx context.Context, jwksURL, issuerURL, audience string) *OIDCAuthenticator {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	verifier := oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: audience})
	return &OIDCAuthenticator{verifier: verifier, audience: audience, now: time.Now}
}

// Authenticate implements domain.Authenticator.
func (a *OIDCAuthenticator) Authenticate(ctx context.Context, rawCredential string) (*domain.CallerIdentity, error) {
	if rawCredential == "" {
		return nil, domain.ErrAuthentication("missing credential")
	}

	idToken, err := a.verifier.Verify(ctx, rawCredential)
	if err != nil {
		return nil, domain.ErrAuthentication("token verification failed")
	}

	return &domain.CallerIdentity{
		Subject:       idToken.Subject,
		Audience:      idToken.Audience,
		Expiry:        idToken.Expiry,
		RawCredential: rawCredential,
	}, nil
}

var (
	_ domain.Authenticator = (*StructuralAuthenticator)(nil)
	_ domain.Authenticator = (*OIDCAuthenticator)(nil)
)
