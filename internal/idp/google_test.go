package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGoogleAuthURL(t *testing.T) {
	p := NewGoogleProvider("test-client-id", "test-client-secret", "https://auth.test.example/auth/google/callback")

	verifier := oauth2.GenerateVerifier()
	authURL := p.AuthURL("test-state-parameter", verifier)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Contains(t, authURL, "https://accounts.google.com/o/oauth2/auth")
	assert.Equal(t, "test-client-id", q.Get("client_id"))
	assert.Equal(t, "https://auth.test.example/auth/google/callback", q.Get("redirect_uri"))
	assert.Equal(t, "test-state-parameter", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEqual(t, verifier, q.Get("code_challenge"), "challenge must not be the raw verifier")
}

func TestGoogleExchange(t *testing.T) {
	verifier := oauth2.GenerateVerifier()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "test-code", r.FormValue("code"))
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, verifier, r.FormValue("code_verifier"))

		response := map[string]any{
			"access_token": "mock-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	defer tokenServer.Close()

	t.Setenv("GOOGLE_OAUTH_TOKEN_URL", tokenServer.URL+"/token")

	p := NewGoogleProvider("test-client-id", "test-client-secret", "https://auth.test.example/auth/google/callback")

	token, err := p.Exchange(context.Background(), "test-code", verifier)
	require.NoError(t, err)
	require.NotNil(t, token)

	assert.Equal(t, "mock-access-token", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.WithinDuration(t, time.Now().Add(3600*time.Second), token.Expiry, 5*time.Second)
}

func TestGoogleUserInfo(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.Header.Get("Authorization"), "Bearer mock-token")

			response := googleUserInfoResponse{
				ID:            "1234567890",
				Email:         "alice@example.com",
				VerifiedEmail: true,
				Name:          "Alice Example",
				Picture:       "https://example.com/alice.jpg",
			}
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(response))
		}))
		defer userInfoServer.Close()

		t.Setenv("GOOGLE_USERINFO_URL", userInfoServer.URL)

		p := NewGoogleProvider("id", "secret", "https://auth.test.example/cb")
		token := &oauth2.Token{AccessToken: "mock-token"}

		userInfo, err := p.UserInfo(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "1234567890", userInfo.Subject)
		assert.Equal(t, "alice@example.com", userInfo.Email)
		assert.Equal(t, "Alice Example", userInfo.Name)
		assert.True(t, userInfo.EmailVerified)
	})

	t.Run("non-200 from provider", func(t *testing.T) {
		userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer userInfoServer.Close()

		t.Setenv("GOOGLE_USERINFO_URL", userInfoServer.URL)

		p := NewGoogleProvider("id", "secret", "https://auth.test.example/cb")
		token := &oauth2.Token{AccessToken: "bad-token"}

		_, err := p.UserInfo(context.Background(), token)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
	})

	t.Run("malformed body", func(t *testing.T) {
		userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("not json"))
		}))
		defer userInfoServer.Close()

		t.Setenv("GOOGLE_USERINFO_URL", userInfoServer.URL)

		p := NewGoogleProvider("id", "secret", "https://auth.test.example/cb")
		token := &oauth2.Token{AccessToken: "mock-token"}

		_, err := p.UserInfo(context.Background(), token)
		assert.Error(t, err)
	})
}

func TestGoogleName(t *testing.T) {
	p := NewGoogleProvider("id", "secret", "https://auth.test.example/cb")
	assert.Equal(t, "google", p.Name())
}
