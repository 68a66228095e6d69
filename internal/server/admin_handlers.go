package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/webfolio/authd/internal/config"
	"github.com/webfolio/authd/internal/crypto"
	"github.com/webfolio/authd/internal/emailutil"
	jsonwriter "github.com/webfolio/authd/internal/json"
	"github.com/webfolio/authd/internal/log"
	"github.com/webfolio/authd/internal/storage"
)

// AdminHandlers manages the whitelist record out-of-band from the OAuth
// flow. Disabled entirely unless an admin token hash is configured.
type AdminHandlers struct {
	cfg       config.Config
	whitelist storage.WhitelistStore
}

// NewAdminHandlers creates the whitelist admin handlers.
func NewAdminHandlers(cfg config.Config, whitelist storage.WhitelistStore) *AdminHandlers {
	return &AdminHandlers{cfg: cfg, whitelist: whitelist}
}

// authorize checks the bearer token against the configured bcrypt hash.
func (h *AdminHandlers) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.cfg.AdminTokenHash == "" {
		jsonwriter.WriteNotFound(w, "Not found")
		return false
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		jsonwriter.WriteUnauthorized(w, "Missing bearer token")
		return false
	}

	if !crypto.VerifyAdminToken([]byte(h.cfg.AdminTokenHash), token) {
		jsonwriter.WriteUnauthorized(w, "Invalid admin token")
		return false
	}
	return true
}

type whitelistBody struct {
	Emails []string `json:"emails"`
}

// GetWhitelistHandler returns the current whitelist. An absent record
// reads as an empty list here; fail-closed semantics only matter on the
// authorization path.
func (h *AdminHandlers) GetWhitelistHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	emails, err := h.whitelist.GetWhitelist(r.Context())
	if err != nil && !errors.Is(err, storage.ErrWhitelistNotFound) {
		log.LogError("Failed to read whitelist: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to read whitelist")
		return
	}
	if emails == nil {
		emails = []string{}
	}

	_ = jsonwriter.Write(w, whitelistBody{Emails: emails})
}

// PutWhitelistHandler replaces the whitelist record.
func (h *AdminHandlers) PutWhitelistHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var body whitelistBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}

	normalized := emailutil.NormalizeAll(body.Emails)
	if err := h.whitelist.PutWhitelist(r.Context(), normalized); err != nil {
		log.LogError("Failed to write whitelist: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to write whitelist")
		return
	}

	log.LogInfoWithFields("admin", "Whitelist updated", map[string]any{
		"count": len(normalized),
	})
	_ = jsonwriter.Write(w, whitelistBody{Emails: normalized})
}
