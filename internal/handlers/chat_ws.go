package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/chat"
)

const (
	chatWSReadLimit   = 64 << 10
	chatWSIdleTimeout = 60 * time.Minute
	chatWSPingPeriod  = 30 * time.Second
	chatWSErrorQueue  = 16
)

var chatWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// chatWSInMessage is the JSON shape sent from the client.
type chatWSInMessage struct {
	Type string `json:"type"` // open, close, send
	Text string `json:"text,omitempty"`
}

// chatWSOutMessage is the JSON shape sent to the client.
type chatWSOutMessage struct {
	Type  string     `json:"type"` // update, error
	State *chatState `json:"state,omitempty"`
	Error string     `json:"error,omitempty"`
}

// chatWSMailbox buffers outgoing messages for one socket. Updates carry the
// full state, so only the newest pending one is kept; a slow client always
// ends on the latest transcript.
type chatWSMailbox struct {
	mu      sync.Mutex
	updates chan chatWSOutMessage // holds at most the latest update
	errors  chan chatWSOutMessage
}

func newChatWSMailbox() *chatWSMailbox {
	return &chatWSMailbox{
		updates: make(chan chatWSOutMessage, 1),
		errors:  make(chan chatWSOutMessage, chatWSErrorQueue),
	}
}

// update replaces any pending update with s.
func (m *chatWSMailbox) update(s chatState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.updates:
	default:
	}
	m.updates <- chatWSOutMessage{Type: "update", State: &s}
}

func (m *chatWSMailbox) reportError(msg string) {
	select {
	case m.errors <- chatWSOutMessage{Type: "error", Error: msg}:
	default:
		log.Debug().Str("error", msg).Msg("chat ws error queue full, dropping message")
	}
}

// ChatWS handles GET /v1/chat/ws. Every transcript mutation is pushed as an
// update carrying the full transcript; pending updates coalesce to the newest.
func (h *Handler) ChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := chatWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("chat ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(chatWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(chatWSIdleTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(chatWSIdleTimeout))
		return nil
	})

	box := newChatWSMailbox()
	box.update(newChatState(h.chat.Snapshot()))
	unwatch := h.chat.Watch(func(u chat.Update) {
		box.update(newChatState(u))
	})
	defer unwatch()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go h.chatWSWriter(ctx, conn, box)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Debug().Err(err).Msg("chat ws read")
			return
		}
		conn.SetReadDeadline(time.Now().Add(chatWSIdleTimeout))

		var in chatWSInMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			box.reportError("invalid JSON: " + err.Error())
			continue
		}
		switch in.Type {
		case "open":
			if err := h.chat.Open(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to open chat session")
				box.reportError("failed to open chat session")
			}
		case "close":
			h.chat.Close()
		case "send":
			// Replies outlive the socket; other clients still see them.
			go func(text string) {
				if err := h.chat.SendTurn(context.WithoutCancel(ctx), text); err != nil {
					box.reportError(err.Error())
				}
			}(in.Text)
		default:
			box.reportError("expected type: open, close or send")
		}
	}
}

func (h *Handler) chatWSWriter(ctx context.Context, conn *websocket.Conn, box *chatWSMailbox) {
	ticker := time.NewTicker(chatWSPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-box.updates:
			if err := writeWSJSON(conn, m); err != nil {
				log.Debug().Err(err).Msg("chat ws write")
				conn.Close()
				return
			}
		case m := <-box.errors:
			if err := writeWSJSON(conn, m); err != nil {
				log.Debug().Err(err).Msg("chat ws write")
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}
