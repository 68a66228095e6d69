package idp

import (
	"context"

	"golang.org/x/oauth2"
)

// UserInfo represents user information reported by an identity provider.
type UserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Provider abstracts identity provider operations for the authorization
// code flow with PKCE. The service is the PKCE client of record: the
// caller generates and retains the verifier, the provider derives the
// S256 challenge for the redirect and supplies the verifier on exchange.
type Provider interface {
	// Name returns the provider identifier used in routes (e.g. "google").
	Name() string

	// AuthURL builds the authorization URL for the given CSRF state and
	// PKCE verifier.
	AuthURL(state, verifier string) string

	// Exchange trades an authorization code plus the PKCE verifier for
	// provider tokens.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)

	// UserInfo fetches the provider's user-info for the token.
	UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}
