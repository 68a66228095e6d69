package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the backing store
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageFirestore StorageKind = "firestore"
)

// Config holds the full service configuration. All cross-request state
// lives in the configured store; nothing here is mutated after Load.
type Config struct {
	// Addr is the listen address, e.g. ":8080"
	Addr string `validate:"required"`

	// FrontendURL is the origin of the portfolio front end. Failure
	// redirects target <FrontendURL>/#login and the callback bridge page
	// posts its message restricted to this origin.
	FrontendURL string `validate:"required,url"`

	// AllowedOrigins is the CORS allow-list. Credentialed CORS must never
	// fall back to a wildcard.
	AllowedOrigins []string `validate:"required,min=1,dive,url"`

	GoogleClientID     string `validate:"required"`
	GoogleClientSecret Secret `validate:"required"`
	GoogleRedirectURI  string `validate:"required,url"`

	// AdminTokenHash is an optional bcrypt hash enabling the whitelist
	// admin endpoints. Empty disables them.
	AdminTokenHash Secret

	Storage             StorageKind `validate:"oneof=memory firestore"`
	FirestoreProjectID  string      `validate:"required_if=Storage firestore"`
	FirestoreDatabase   string
	FirestoreCollection string

	// StateTTL bounds how long an abandoned OAuth flow stays resumable.
	StateTTL time.Duration `validate:"required"`

	// SessionTTL is fixed at creation; verification never extends it.
	SessionTTL time.Duration `validate:"required"`

	// ProviderTimeout caps each call to the provider's token and
	// userinfo endpoints.
	ProviderTimeout time.Duration `validate:"required"`
}

// Defaults matching the deployed service.
const (
	DefaultStateTTL        = 10 * time.Minute
	DefaultSessionTTL      = 7 * 24 * time.Hour
	DefaultProviderTimeout = 30 * time.Second
)

// Load reads configuration from the environment and validates it,
// failing fast on missing required fields rather than at first use.
func Load() (Config, error) {
	cfg := Config{
		Addr:                envOr("AUTHD_ADDR", ":8080"),
		FrontendURL:         os.Getenv("AUTHD_FRONTEND_URL"),
		AllowedOrigins:      splitList(os.Getenv("AUTHD_ALLOWED_ORIGINS")),
		GoogleClientID:      os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  Secret(os.Getenv("GOOGLE_CLIENT_SECRET")),
		GoogleRedirectURI:   os.Getenv("GOOGLE_REDIRECT_URI"),
		AdminTokenHash:      Secret(os.Getenv("AUTHD_ADMIN_TOKEN_HASH")),
		Storage:             StorageKind(envOr("AUTHD_STORAGE", string(StorageMemory))),
		FirestoreProjectID:  os.Getenv("AUTHD_FIRESTORE_PROJECT"),
		FirestoreDatabase:   os.Getenv("AUTHD_FIRESTORE_DATABASE"),
		FirestoreCollection: envOr("AUTHD_FIRESTORE_COLLECTION", "authd"),
		StateTTL:            DefaultStateTTL,
		SessionTTL:          DefaultSessionTTL,
		ProviderTimeout:     DefaultProviderTimeout,
	}

	if v := os.Getenv("AUTHD_STATE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing AUTHD_STATE_TTL: %w", err)
		}
		cfg.StateTTL = d
	}
	if v := os.Getenv("AUTHD_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing AUTHD_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	if v := os.Getenv("AUTHD_PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing AUTHD_PROVIDER_TIMEOUT: %w", err)
		}
		cfg.ProviderTimeout = d
	}

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and cross-field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
