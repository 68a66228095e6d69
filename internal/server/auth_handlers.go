package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/webfolio/authd/internal/config"
	"github.com/webfolio/authd/internal/cookie"
	"github.com/webfolio/authd/internal/crypto"
	"github.com/webfolio/authd/internal/emailutil"
	"github.com/webfolio/authd/internal/idp"
	jsonwriter "github.com/webfolio/authd/internal/json"
	"github.com/webfolio/authd/internal/log"
	"github.com/webfolio/authd/internal/storage"
	"golang.org/x/oauth2"
)

// Error codes surfaced to the login page via redirect query parameter.
// This is a closed set: every callback failure maps onto one of these.
const (
	ErrCodeAuthFailed    = "auth_failed"
	ErrCodeInvalidState  = "invalid_state"
	ErrCodeNotAuthorized = "not_authorized"
)

// AuthHandlers provides the OAuth HTTP handlers with dependency injection.
// Stores are injected per interface so tests run against the memory store.
type AuthHandlers struct {
	cfg       config.Config
	providers map[string]idp.Provider
	states    storage.StateStore
	sessions  storage.SessionStore
	whitelist storage.WhitelistStore
	tokens    *crypto.TokenSource
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(
	cfg config.Config,
	providers map[string]idp.Provider,
	states storage.StateStore,
	sessions storage.SessionStore,
	whitelist storage.WhitelistStore,
	tokens *crypto.TokenSource,
) *AuthHandlers {
	if tokens == nil {
		tokens = crypto.NewTokenSource(nil)
	}
	return &AuthHandlers{
		cfg:       cfg,
		providers: providers,
		states:    states,
		sessions:  sessions,
		whitelist: whitelist,
		tokens:    tokens,
	}
}

// InitiateHandler starts the OAuth flow: mints the CSRF state, persists it
// together with the PKCE verifier, and redirects to the provider's consent
// screen.
func (h *AuthHandlers) InitiateHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[r.PathValue("provider")]
	if !ok {
		jsonwriter.WriteNotFound(w, "Unknown provider")
		return
	}

	// A missing client ID is a deployment error. Fail loudly here rather
	// than bouncing the user off a broken consent screen.
	if h.cfg.GoogleClientID == "" {
		log.LogError("Google client ID is not configured")
		jsonwriter.WriteInternalServerError(w, "Provider credentials not configured")
		return
	}

	state, err := h.tokens.Token()
	if err != nil {
		log.LogError("Failed to generate state: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to start authentication")
		return
	}
	verifier := oauth2.GenerateVerifier()

	now := time.Now()
	record := storage.StateRecord{
		CodeVerifier: verifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(h.cfg.StateTTL),
	}
	if err := h.states.PutState(r.Context(), state, record); err != nil {
		log.LogError("Failed to store state record: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to start authentication")
		return
	}

	log.LogDebugWithFields("auth", "OAuth flow initiated", map[string]any{
		"provider": provider.Name(),
	})
	http.Redirect(w, r, provider.AuthURL(state, verifier), http.StatusFound)
}

// CallbackHandler finishes the OAuth flow. The machine is linear: provider
// error, state validation, token exchange, userinfo fetch, whitelist check,
// session creation, bridge page. Every failure lands the browser back on
// the login page with a machine-readable error code, never a bare 500.
func (h *AuthHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogErrorWithFields("auth", "Panic in OAuth callback", map[string]any{
				"error": rec,
			})
			h.redirectLoginError(w, r, ErrCodeAuthFailed)
		}
	}()

	provider, ok := h.providers[r.PathValue("provider")]
	if !ok {
		h.redirectLoginError(w, r, ErrCodeAuthFailed)
		return
	}

	q := r.URL.Query()
	if errMsg := q.Get("error"); errMsg != "" || q.Get("code") == "" {
		log.LogWarnWithFields("auth", "Provider returned an error", map[string]any{
			"provider": provider.Name(),
			"error":    errMsg,
		})
		h.redirectLoginError(w, r, ErrCodeAuthFailed)
		return
	}

	// Single-use: the record is gone after this call whether or not the
	// rest of the flow succeeds.
	stateRecord, err := h.states.ConsumeState(r.Context(), q.Get("state"))
	if err != nil {
		log.LogWarnWithFields("auth", "Invalid or replayed state", map[string]any{
			"provider": provider.Name(),
		})
		h.redirectLoginError(w, r, ErrCodeInvalidState)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.ProviderTimeout)
	defer cancel()

	token, err := provider.Exchange(ctx, q.Get("code"), stateRecord.CodeVerifier)
	if err != nil {
		log.LogError("Failed to exchange code: %v", err)
		h.redirectLoginError(w, r, ErrCodeAuthFailed)
		return
	}

	userInfo, err := provider.UserInfo(ctx, token)
	if err != nil {
		log.LogError("Failed to fetch user info: %v", err)
		h.redirectLoginError(w, r, ErrCodeAuthFailed)
		return
	}

	if !h.isAuthorized(ctx, userInfo.Email) {
		log.LogWarnWithFields("auth", "User not on whitelist", map[string]any{
			"email": userInfo.Email,
		})
		h.redirectLoginError(w, r, ErrCodeNotAuthorized)
		return
	}

	sessionID := ksuid.New().String()
	sessionToken, err := h.tokens.Token()
	if err != nil {
		log.LogError("Failed to generate session token: %v", err)
		h.redirectLoginError(w, r, ErrCodeAuthFailed)
		return
	}

	now := time.Now()
	user := storage.User{
		ID:      userInfo.Subject,
		Email:   userInfo.Email,
		Name:    userInfo.Name,
		Picture: userInfo.Picture,
	}
	record := storage.SessionRecord{
		User:      user,
		Token:     sessionToken,
		CreatedAt: now,
		ExpiresAt: now.Add(h.cfg.SessionTTL),
	}
	if err := h.sessions.PutSession(r.Context(), sessionID, record); err != nil {
		log.LogError("Failed to store session: %v", err)
		h.redirectLoginError(w, r, ErrCodeAuthFailed)
		return
	}

	log.LogInfoWithFields("auth", "Session created", map[string]any{
		"user":      user.Email,
		"expiresAt": record.ExpiresAt,
	})

	cookie.SetAuth(w, sessionID, sessionToken, h.cfg.SessionTTL)

	data := callbackPageData{
		Payload:      NewSuccessMessage(sessionID, sessionToken, user),
		TargetOrigin: originOf(h.cfg.FrontendURL),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callbackPageTemplate.Execute(w, data); err != nil {
		log.LogError("Failed to render callback page: %v", err)
	}
}

// isAuthorized reports whether the email is on the whitelist. An absent or
// unreadable whitelist authorizes nobody.
func (h *AuthHandlers) isAuthorized(ctx context.Context, email string) bool {
	emails, err := h.whitelist.GetWhitelist(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrWhitelistNotFound) {
			log.LogError("Failed to read whitelist: %v", err)
		}
		return false
	}
	return slices.Contains(emailutil.NormalizeAll(emails), emailutil.Normalize(email))
}

// verifyResponse is the JSON body of GET /auth/verify
type verifyResponse struct {
	Valid bool          `json:"valid"`
	User  *storage.User `json:"user,omitempty"`
	Error string        `json:"error,omitempty"`
}

// VerifyHandler checks a session identifier plus token pair and returns
// the sanitized user profile. Verification never extends the session.
func (h *AuthHandlers) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session")
	token := q.Get("token")

	if sessionID == "" || token == "" {
		_ = jsonwriter.WriteResponse(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: "Missing parameters"})
		return
	}

	record, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, storage.ErrSessionNotFound) {
			log.LogError("Failed to load session: %v", err)
		}
		_ = jsonwriter.WriteResponse(w, http.StatusNotFound, verifyResponse{Valid: false, Error: "Session not found"})
		return
	}

	if record.Expired(time.Now()) {
		if err := h.sessions.DeleteSession(r.Context(), sessionID); err != nil {
			log.LogWarn("Failed to delete expired session: %v", err)
		}
		_ = jsonwriter.WriteResponse(w, http.StatusUnauthorized, verifyResponse{Valid: false, Error: "Session expired"})
		return
	}

	if !crypto.ConstantTimeEquals(token, record.Token) {
		_ = jsonwriter.WriteResponse(w, http.StatusUnauthorized, verifyResponse{Valid: false, Error: "Invalid token"})
		return
	}

	_ = jsonwriter.WriteResponse(w, http.StatusOK, verifyResponse{Valid: true, User: &record.User})
}

// logoutResponse is the JSON body of POST /auth/logout
type logoutResponse struct {
	Success bool `json:"success"`
}

// LogoutHandler deletes a session. Always reports success: the cookies
// are cleared either way, and a dangling record expires on its own.
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		if err := h.sessions.DeleteSession(r.Context(), sessionID); err != nil {
			log.LogWarnWithFields("auth", "Failed to delete session on logout", map[string]any{
				"error": err.Error(),
			})
		}
	}

	cookie.ClearAuth(w)
	_ = jsonwriter.Write(w, logoutResponse{Success: true})
}

func (h *AuthHandlers) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	target := h.cfg.FrontendURL + "/#login?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusFound)
}

// originOf reduces a URL to its scheme://host origin for postMessage.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
