package chat

import (
	"github.com/google/uuid"
	"github.com/snappy-loop/skynet/internal/models"
)

// pendingReply is the in-progress model message of one turn. It is bound to
// the session it was created for; once that session is closed every
// transition is a no-op.
type pendingReply struct {
	o         *Orchestrator
	sessionID uuid.UUID
	index     int
	done      bool
}

// beginReply appends the empty placeholder the fragments are written into.
func (o *Orchestrator) beginReply(sessionID uuid.UUID) *pendingReply {
	o.mu.Lock()
	if !o.open || o.sessionID != sessionID {
		o.mu.Unlock()
		return &pendingReply{o: o, sessionID: sessionID, index: -1, done: true}
	}
	o.transcript = append(o.transcript, models.ChatMessage{Role: models.RoleModel, Content: ""})
	r := &pendingReply{o: o, sessionID: sessionID, index: len(o.transcript) - 1}
	u := o.updateLocked("placeholder")
	o.mu.Unlock()
	o.notify(u)
	return r
}

// current reports whether the reply still belongs to the open session. Callers hold o.mu.
func (r *pendingReply) current() bool {
	return !r.done && r.o.open && r.o.sessionID == r.sessionID && r.index < len(r.o.transcript)
}

func (r *pendingReply) append(fragment string) {
	r.o.mu.Lock()
	if !r.current() {
		r.o.mu.Unlock()
		return
	}
	r.o.transcript[r.index].Content += fragment
	u := r.o.updateLocked("fragment")
	r.o.mu.Unlock()
	r.o.notify(u)
}

func (r *pendingReply) fail() {
	r.finish("fail", func(m *models.ChatMessage) { m.Content = Apology })
}

func (r *pendingReply) commit() {
	r.finish("commit", nil)
}

func (r *pendingReply) finish(kind string, edit func(*models.ChatMessage)) {
	r.o.mu.Lock()
	if !r.current() {
		r.done = true
		r.o.mu.Unlock()
		return
	}
	if edit != nil {
		edit(&r.o.transcript[r.index])
	}
	r.done = true
	r.o.busy = false
	u := r.o.updateLocked(kind)
	r.o.mu.Unlock()
	r.o.notify(u)
}
