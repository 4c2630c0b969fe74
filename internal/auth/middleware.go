package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// DeskAuth guards the desk API with a single bcrypt-hashed key.
type DeskAuth struct {
	keyHash []byte
}

// NewDeskAuth creates a desk authenticator. An empty hash disables authentication.
func NewDeskAuth(keyHash string) *DeskAuth {
	if keyHash == "" {
		log.Warn().Msg("DESK_API_KEY_HASH not set - desk API is unauthenticated")
		return &DeskAuth{}
	}
	return &DeskAuth{keyHash: []byte(keyHash)}
}

// Enabled reports whether requests must carry the desk key.
func (a *DeskAuth) Enabled() bool {
	return len(a.keyHash) > 0
}

// Middleware creates an authentication middleware
func (a *DeskAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, ok := bearerToken(r)
		if !ok {
			// Browsers cannot set headers on a WebSocket handshake.
			apiKey = r.URL.Query().Get("key")
		}
		if apiKey == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		if err := a.Validate(apiKey); err != nil {
			log.Debug().Str("path", r.URL.Path).Msg("Desk key rejected")
			writeJSONError(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Validate compares apiKey against the configured hash.
func (a *DeskAuth) Validate(apiKey string) error {
	if !a.Enabled() {
		return nil
	}
	return bcrypt.CompareHashAndPassword(a.keyHash, []byte(apiKey))
}

// HashKey returns the bcrypt hash to put in DESK_API_KEY_HASH.
func HashKey(apiKey string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
