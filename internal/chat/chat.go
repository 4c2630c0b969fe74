// Package chat runs the tutor conversation: one model session per open panel,
// an ordered transcript and streamed replies appended in place.
package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/models"
)

const (
	// Greeting seeds every fresh transcript.
	Greeting = "¡Saludos! Usuario, estoy a su servicio para serle de ayuda, ¿necesita algo?"
	// Apology replaces a reply whose stream failed.
	Apology = "Lo siento, ha ocurrido un error. Por favor, intenta de nuevo."
)

var (
	ErrEmptyTurn    = errors.New("chat: empty message")
	ErrTurnInFlight = errors.New("chat: a reply is still streaming")
	ErrClosed       = errors.New("chat: session is closed")
)

// StreamError reports a turn whose reply failed. The transcript already holds the apology.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return "chat stream failed: " + e.Err.Error() }

func (e *StreamError) Unwrap() error { return e.Err }

// Conversation is a stateful model session that keeps its own history.
type Conversation interface {
	SendStream(ctx context.Context, text string) iter.Seq2[string, error]
}

// Starter creates conversations.
type Starter interface {
	StartConversation(ctx context.Context) (Conversation, error)
}

// Update is delivered to watchers after every transcript mutation.
type Update struct {
	Kind       string // open, user, placeholder, fragment, commit, fail, close
	SessionID  uuid.UUID
	Open       bool
	Busy       bool
	Transcript []models.ChatMessage
}

// Orchestrator owns the single chat session of the process.
type Orchestrator struct {
	starter Starter

	mu         sync.Mutex
	open       bool
	opening    chan struct{} // closed when the in-progress Open finishes
	busy       bool
	sessionID  uuid.UUID
	session    Conversation
	transcript []models.ChatMessage
	watchers   map[int]func(Update)
	nextWatch  int
}

// New creates a closed orchestrator.
func New(starter Starter) *Orchestrator {
	return &Orchestrator{starter: starter, watchers: make(map[int]func(Update))}
}

// Open creates the session and seeds the transcript with the greeting.
// Calling Open on an open orchestrator keeps the existing session.
func (o *Orchestrator) Open(ctx context.Context) error {
	for {
		o.mu.Lock()
		if o.open {
			o.mu.Unlock()
			return nil
		}
		if o.opening == nil {
			break
		}
		// Another caller is starting the session; wait for its outcome.
		wait := o.opening
		o.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	o.opening = done
	o.mu.Unlock()

	session, err := o.starter.StartConversation(ctx)

	o.mu.Lock()
	o.opening = nil
	close(done)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.open = true
	o.session = session
	o.sessionID = uuid.New()
	o.transcript = []models.ChatMessage{{Role: models.RoleModel, Content: Greeting}}
	u := o.updateLocked("open")
	o.mu.Unlock()

	log.Info().Str("session_id", u.SessionID.String()).Msg("Chat session opened")
	o.notify(u)
	return nil
}

// Close discards the session and the transcript. A turn still streaming
// finishes against the discarded session and never touches a new transcript.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if !o.open {
		o.mu.Unlock()
		return
	}
	id := o.sessionID
	o.open = false
	o.busy = false
	o.session = nil
	o.sessionID = uuid.Nil
	o.transcript = nil
	u := o.updateLocked("close")
	o.mu.Unlock()

	log.Info().Str("session_id", id.String()).Msg("Chat session closed")
	o.notify(u)
}

// SendTurn appends the user message and streams the model reply into the transcript.
// Rejected turns (ErrEmptyTurn, ErrTurnInFlight, ErrClosed) leave the transcript untouched.
// A failed stream returns *StreamError after replacing the reply with Apology.
func (o *Orchestrator) SendTurn(ctx context.Context, userText string) error {
	if strings.TrimSpace(userText) == "" {
		return ErrEmptyTurn
	}

	o.mu.Lock()
	if !o.open {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.busy {
		o.mu.Unlock()
		return ErrTurnInFlight
	}
	o.busy = true
	session := o.session
	id := o.sessionID
	o.transcript = append(o.transcript, models.ChatMessage{Role: models.RoleUser, Content: userText})
	u := o.updateLocked("user")
	o.mu.Unlock()
	o.notify(u)

	reply := o.beginReply(id)

	for fragment, err := range session.SendStream(ctx, userText) {
		if err != nil {
			reply.fail()
			log.Warn().Err(err).Str("session_id", id.String()).Msg("Chat stream failed")
			return &StreamError{Err: err}
		}
		reply.append(fragment)
	}
	reply.commit()
	return nil
}

// Transcript returns a copy of the messages in display order.
func (o *Orchestrator) Transcript() []models.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ChatMessage(nil), o.transcript...)
}

// Busy reports whether a reply is streaming.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// IsOpen reports whether a session exists.
func (o *Orchestrator) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// SessionID returns the id of the open session, or uuid.Nil when closed.
func (o *Orchestrator) SessionID() uuid.UUID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Snapshot returns the current state as an Update.
func (o *Orchestrator) Snapshot() Update {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.updateLocked("snapshot")
}

// Watch registers fn to be called after every mutation. The returned func unregisters it.
func (o *Orchestrator) Watch(fn func(Update)) (cancel func()) {
	o.mu.Lock()
	id := o.nextWatch
	o.nextWatch++
	o.watchers[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.watchers, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) updateLocked(kind string) Update {
	return Update{
		Kind:       kind,
		SessionID:  o.sessionID,
		Open:       o.open,
		Busy:       o.busy,
		Transcript: append([]models.ChatMessage(nil), o.transcript...),
	}
}

func (o *Orchestrator) notify(u Update) {
	o.mu.Lock()
	fns := make([]func(Update), 0, len(o.watchers))
	for _, fn := range o.watchers {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}
