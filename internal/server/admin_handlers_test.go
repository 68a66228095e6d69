package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webfolio/authd/internal/config"
	"github.com/webfolio/authd/internal/crypto"
	"github.com/webfolio/authd/internal/storage"
)

const adminToken = "test-admin-token"

func newAdminHandlers(t *testing.T) (*AdminHandlers, *storage.MemoryStore) {
	t.Helper()

	hash, err := crypto.HashAdminToken(adminToken)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.AdminTokenHash = config.Secret(hash)

	store := storage.NewMemoryStore()
	return NewAdminHandlers(cfg, store), store
}

func adminRequest(method, target, token, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	handlers := NewAdminHandlers(testConfig(), storage.NewMemoryStore())

	rec := httptest.NewRecorder()
	handlers.GetWhitelistHandler(rec, adminRequest(http.MethodGet, "/auth/whitelist", adminToken, ""))

	// The endpoint hides behind a 404 when no admin token is configured
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRejectsMissingToken(t *testing.T) {
	handlers, _ := newAdminHandlers(t)

	rec := httptest.NewRecorder()
	handlers.GetWhitelistHandler(rec, adminRequest(http.MethodGet, "/auth/whitelist", "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRejectsWrongToken(t *testing.T) {
	handlers, _ := newAdminHandlers(t)

	rec := httptest.NewRecorder()
	handlers.GetWhitelistHandler(rec, adminRequest(http.MethodGet, "/auth/whitelist", "not-the-token", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminGetWhitelistEmpty(t *testing.T) {
	handlers, _ := newAdminHandlers(t)

	rec := httptest.NewRecorder()
	handlers.GetWhitelistHandler(rec, adminRequest(http.MethodGet, "/auth/whitelist", adminToken, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var body whitelistBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body.Emails)
	assert.Empty(t, body.Emails)
}

func TestAdminPutWhitelistNormalizes(t *testing.T) {
	handlers, store := newAdminHandlers(t)

	rec := httptest.NewRecorder()
	handlers.PutWhitelistHandler(rec, adminRequest(http.MethodPut, "/auth/whitelist", adminToken,
		`{"emails": [" Alice@Example.COM ", "bob@example.com"]}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var body whitelistBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, body.Emails)

	// The stored record matches what the handler echoed back
	stored, err := store.GetWhitelist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, stored)
}

func TestAdminPutWhitelistBadBody(t *testing.T) {
	handlers, _ := newAdminHandlers(t)

	rec := httptest.NewRecorder()
	handlers.PutWhitelistHandler(rec, adminRequest(http.MethodPut, "/auth/whitelist", adminToken, `{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoundTrip(t *testing.T) {
	handlers, _ := newAdminHandlers(t)

	rec := httptest.NewRecorder()
	handlers.PutWhitelistHandler(rec, adminRequest(http.MethodPut, "/auth/whitelist", adminToken,
		`{"emails": ["carol@example.com"]}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handlers.GetWhitelistHandler(rec, adminRequest(http.MethodGet, "/auth/whitelist", adminToken, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var body whitelistBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"carol@example.com"}, body.Emails)
}
