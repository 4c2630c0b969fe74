package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/audio"
	"github.com/snappy-loop/skynet/internal/balancer"
	"github.com/snappy-loop/skynet/internal/chat"
	"github.com/snappy-loop/skynet/internal/models"
)

type balanceService interface {
	Balance(ctx context.Context, equationText string) (*models.BalanceResult, error)
	View() balancer.View
	Reset()
}

type chatService interface {
	Open(ctx context.Context) error
	Close()
	SendTurn(ctx context.Context, userText string) error
	Snapshot() chat.Update
	Watch(fn func(chat.Update)) (cancel func())
}

type narrationService interface {
	Speak(ctx context.Context, r *models.BalanceResult) (*audio.Playback, string, error)
	Speaking() bool
}

// HealthChecker reports the health of an optional backing service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	balancer       balanceService
	chat           chatService
	narrator       narrationService
	links          *NarrationLinks
	health         HealthChecker
	requestTimeout time.Duration
	mcp            http.Handler

	mu       sync.Mutex
	playback *audio.Playback
}

// NewHandler creates a new handler. links and health may be nil.
func NewHandler(b balanceService, c chatService, n narrationService, links *NarrationLinks, health HealthChecker, requestTimeout time.Duration) *Handler {
	if links == nil {
		links = &NarrationLinks{}
	}
	return &Handler{
		balancer:       b,
		chat:           c,
		narrator:       n,
		links:          links,
		health:         health,
		requestTimeout: requestTimeout,
	}
}

// MountMCP serves the MCP JSON-RPC endpoint at POST /v1/mcp.
func (h *Handler) MountMCP(mcp http.Handler) {
	h.mcp = mcp
}

// Router builds the desk routes. The /v1 API is wrapped by authMiddleware when set.
func (h *Handler) Router(authMiddleware mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	if authMiddleware != nil {
		api.Use(authMiddleware)
	}
	api.HandleFunc("/examples", h.Examples).Methods("GET")
	api.HandleFunc("/balance", h.Balance).Methods("POST")
	api.HandleFunc("/balance", h.BalanceView).Methods("GET")
	api.HandleFunc("/balance", h.ResetBalance).Methods("DELETE")
	api.HandleFunc("/narration", h.Narrate).Methods("POST")
	api.HandleFunc("/narration", h.NarrationStatus).Methods("GET")
	api.HandleFunc("/narration", h.StopNarration).Methods("DELETE")
	api.HandleFunc("/chat", h.ChatSnapshot).Methods("GET")
	api.HandleFunc("/chat/open", h.OpenChat).Methods("POST")
	api.HandleFunc("/chat/close", h.CloseChat).Methods("POST")
	api.HandleFunc("/chat/turns", h.SendChatTurn).Methods("POST")
	api.HandleFunc("/chat/ws", h.ChatWS).Methods("GET")
	if h.mcp != nil {
		api.Handle("/mcp", h.mcp).Methods("POST")
	}
	return r
}

// Index serves GET / with the desk page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexPageData{Examples: balancer.Examples}
	if err := executeTemplate(w, "index", data); err != nil {
		log.Error().Err(err).Msg("Failed to render index page")
	}
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Health(ctx); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.requestTimeout)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
