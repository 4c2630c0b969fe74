package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/chat"
	"github.com/snappy-loop/skynet/internal/markup"
	"github.com/snappy-loop/skynet/internal/models"
)

// chatMessage is a transcript entry; model replies also carry rendered HTML.
type chatMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
	HTML    string      `json:"html,omitempty"`
}

// chatState is the wire shape of a chat.Update.
type chatState struct {
	Kind       string        `json:"kind"`
	SessionID  *uuid.UUID    `json:"session_id,omitempty"`
	Open       bool          `json:"open"`
	Busy       bool          `json:"busy"`
	Transcript []chatMessage `json:"transcript"`
}

func newChatState(u chat.Update) chatState {
	s := chatState{Kind: u.Kind, Open: u.Open, Busy: u.Busy, Transcript: make([]chatMessage, 0, len(u.Transcript))}
	if u.SessionID != uuid.Nil {
		id := u.SessionID
		s.SessionID = &id
	}
	for _, m := range u.Transcript {
		msg := chatMessage{Role: m.Role, Content: m.Content}
		if m.Role == models.RoleModel {
			msg.HTML = markup.ReplyHTML(m.Content)
		}
		s.Transcript = append(s.Transcript, msg)
	}
	return s
}

// ChatSnapshot handles GET /v1/chat
func (h *Handler) ChatSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newChatState(h.chat.Snapshot()))
}

// OpenChat handles POST /v1/chat/open
func (h *Handler) OpenChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := h.chat.Open(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to open chat session")
		writeJSONError(w, http.StatusBadGateway, "failed to open chat session")
		return
	}
	writeJSON(w, http.StatusOK, newChatState(h.chat.Snapshot()))
}

// CloseChat handles POST /v1/chat/close
func (h *Handler) CloseChat(w http.ResponseWriter, r *http.Request) {
	h.chat.Close()
	writeJSON(w, http.StatusOK, newChatState(h.chat.Snapshot()))
}

// SendChatTurn handles POST /v1/chat/turns. The reply streams in the
// background and reaches clients through /v1/chat/ws; with ?wait=true the
// response is sent once the reply is complete.
func (h *Handler) SendChatTurn(w http.ResponseWriter, r *http.Request) {
	var req models.ChatTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSONError(w, http.StatusBadRequest, chat.ErrEmptyTurn.Error())
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if wait {
		err := h.chat.SendTurn(r.Context(), req.Text)
		if err != nil {
			writeChatError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newChatState(h.chat.Snapshot()))
		return
	}

	snap := h.chat.Snapshot()
	if !snap.Open {
		writeChatError(w, chat.ErrClosed)
		return
	}
	if snap.Busy {
		writeChatError(w, chat.ErrTurnInFlight)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.chat.SendTurn(ctx, req.Text); err != nil {
			log.Warn().Err(err).Msg("Chat turn failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, newChatState(snap))
}

func writeChatError(w http.ResponseWriter, err error) {
	var streamErr *chat.StreamError
	switch {
	case errors.Is(err, chat.ErrEmptyTurn):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrClosed), errors.Is(err, chat.ErrTurnInFlight):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.As(err, &streamErr):
		writeJSONError(w, http.StatusBadGateway, chat.Apology)
	default:
		log.Error().Err(err).Msg("Unexpected chat error")
		writeJSONError(w, http.StatusInternalServerError, chat.Apology)
	}
}
