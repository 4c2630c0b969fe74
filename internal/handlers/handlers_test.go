package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/snappy-loop/skynet/internal/audio"
	"github.com/snappy-loop/skynet/internal/balancer"
	"github.com/snappy-loop/skynet/internal/chat"
	"github.com/snappy-loop/skynet/internal/models"
)

const okPayload = `{"unbalancedEquation":"Fe + O2 -> Fe2O3","balancedEquation":"4Fe + 3O2 -> 2Fe2O3","synthesis":"s","explanation":"e","steps":["Paso 1: contar"],"isSolvable":true,"neutralizationType":"NONE"}`

type fakeGenerator struct {
	raw  string
	err  error
	gate chan struct{}
}

func (f *fakeGenerator) GenerateBalance(ctx context.Context, equation string) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.raw, f.err
}

type fakeConversation struct {
	fragments []string
	err       error
}

func (f *fakeConversation) SendStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, frag := range f.fragments {
			if !yield(frag, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

type fakeStarter struct {
	conv *fakeConversation
	err  error
}

func (f *fakeStarter) StartConversation(ctx context.Context) (chat.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conv, nil
}

type fakeTTS struct {
	b64 string
	err error
}

func (f *fakeTTS) SynthesizeSpeech(ctx context.Context, text string) (string, error) {
	return f.b64, f.err
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(ctx context.Context) error { return f.err }

type testDesk struct {
	handler *Handler
	router  http.Handler
	gen     *fakeGenerator
	starter *fakeStarter
	tts     *fakeTTS
	device  *bytes.Buffer
}

func newTestDesk(t *testing.T) *testDesk {
	t.Helper()
	gen := &fakeGenerator{raw: okPayload}
	starter := &fakeStarter{conv: &fakeConversation{fragments: []string{"Hola", ", humano."}}}
	tts := &fakeTTS{b64: base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 0})}
	device := &bytes.Buffer{}
	narrator := audio.NewNarrator(tts, audio.NewPlayer(audio.NewContextWithDevice(&audio.WriterDevice{W: device})))
	h := NewHandler(balancer.New(gen), chat.New(starter), narrator, nil, nil, time.Minute)
	return &testDesk{handler: h, router: h.Router(nil), gen: gen, starter: starter, tts: tts, device: device}
}

func (d *testDesk) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	d.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestIndexAndHealth(t *testing.T) {
	d := newTestDesk(t)

	rec := d.do(t, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("index: %d", rec.Code)
	}
	if n := strings.Count(rec.Body.String(), "data-example="); n != len(balancer.Examples) {
		t.Errorf("index shows %d example chips, want %d", n, len(balancer.Examples))
	}

	if rec := d.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
	d.handler.health = fakeHealth{err: errors.New("db down")}
	if rec := d.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded healthz: %d", rec.Code)
	}
}

func TestBalance_Success(t *testing.T) {
	d := newTestDesk(t)

	rec := d.do(t, http.MethodPost, "/v1/balance", `{"equation":"Fe + O2 -> Fe2O3"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got models.BalanceResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.BalancedEquation != "4Fe + 3O2 -> 2Fe2O3" || got.NeutralizationType != models.NeutralizationNone {
		t.Errorf("unexpected result %+v", got)
	}

	rec = d.do(t, http.MethodGet, "/v1/balance", "")
	var view balancer.View
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Status != balancer.StatusSuccess || view.Result == nil {
		t.Errorf("view = %+v", view)
	}

	rec = d.do(t, http.MethodDelete, "/v1/balance", "")
	view = balancer.View{}
	json.NewDecoder(rec.Body).Decode(&view)
	if view.Status != balancer.StatusIdle || view.Result != nil || view.Equation != "Fe + O2 -> Fe2O3" {
		t.Errorf("after reset view = %+v", view)
	}
}

func TestBalance_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		genErr  error
		raw     string
		want    int
		wantMsg string
	}{
		{"invalid body", `{`, nil, okPayload, http.StatusBadRequest, "invalid request body"},
		{"empty equation", `{"equation":"   "}`, nil, okPayload, http.StatusBadRequest, balancer.EmptyEquationMessage},
		{"service failure", `{"equation":"H2 + O2"}`, errors.New("503"), "", http.StatusBadGateway, balancer.ServiceFailedMessage},
		{"invalid payload", `{"equation":"H2 + O2"}`, nil, `{"foo":1}`, http.StatusBadGateway, balancer.ServiceFailedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDesk(t)
			d.gen.raw, d.gen.err = tt.raw, tt.genErr
			rec := d.do(t, http.MethodPost, "/v1/balance", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if msg := decodeError(t, rec); msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestBalance_Busy(t *testing.T) {
	d := newTestDesk(t)
	d.gen.gate = make(chan struct{})

	done := make(chan int)
	go func() {
		done <- d.do(t, http.MethodPost, "/v1/balance", `{"equation":"Fe + O2"}`).Code
	}()
	deadline := time.Now().Add(2 * time.Second)
	for d.handler.balancer.View().Status != balancer.StatusLoading {
		if time.Now().After(deadline) {
			t.Fatal("first request never started loading")
		}
		time.Sleep(time.Millisecond)
	}

	if rec := d.do(t, http.MethodPost, "/v1/balance", `{"equation":"C + O2"}`); rec.Code != http.StatusConflict {
		t.Errorf("overlapping request: %d", rec.Code)
	}
	close(d.gen.gate)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first request: %d", code)
	}
}

func TestExamples(t *testing.T) {
	d := newTestDesk(t)
	rec := d.do(t, http.MethodGet, "/v1/examples", "")
	var body map[string][]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body["examples"]) != len(balancer.Examples) {
		t.Errorf("examples = %v", body["examples"])
	}
}

func TestNarrate(t *testing.T) {
	d := newTestDesk(t)

	if rec := d.do(t, http.MethodPost, "/v1/narration", ""); rec.Code != http.StatusConflict {
		t.Errorf("without result: %d", rec.Code)
	}

	d.do(t, http.MethodPost, "/v1/balance", `{"equation":"Fe + O2 -> Fe2O3"}`)
	d.handler.links.Set("http://cdn.local/n.wav")

	rec := d.do(t, http.MethodPost, "/v1/narration?wait=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.NarrationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Samples != 2 || resp.URL != "http://cdn.local/n.wav" || !strings.Contains(resp.Script, "4Fe + 3O2 -> 2Fe2O3") {
		t.Errorf("resp = %+v", resp)
	}
	if d.device.Len() != 48 {
		t.Errorf("device got %d WAV bytes, want 48", d.device.Len())
	}

	rec = d.do(t, http.MethodGet, "/v1/narration", "")
	var status map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&status)
	if status["speaking"] != false {
		t.Errorf("status = %v", status)
	}
}

func TestNarrate_Errors(t *testing.T) {
	tests := []struct {
		name string
		b64  string
		err  error
		want int
	}{
		{"synthesis failure", "", errors.New("quota"), http.StatusBadGateway},
		{"odd byte length", base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), nil, http.StatusUnprocessableEntity},
		{"bad base64", "@@@", nil, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDesk(t)
			d.do(t, http.MethodPost, "/v1/balance", `{"equation":"Fe + O2"}`)
			d.tts.b64, d.tts.err = tt.b64, tt.err
			rec := d.do(t, http.MethodPost, "/v1/narration", "")
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestChat_Turns(t *testing.T) {
	d := newTestDesk(t)

	if rec := d.do(t, http.MethodPost, "/v1/chat/turns", `{"text":"hola"}`); rec.Code != http.StatusConflict {
		t.Errorf("turn on closed chat: %d", rec.Code)
	}

	rec := d.do(t, http.MethodPost, "/v1/chat/open", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("open: %d", rec.Code)
	}
	var state chatState
	json.NewDecoder(rec.Body).Decode(&state)
	if !state.Open || len(state.Transcript) != 1 || state.Transcript[0].Content != chat.Greeting {
		t.Errorf("open state = %+v", state)
	}

	if rec := d.do(t, http.MethodPost, "/v1/chat/turns", `{"text":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty turn: %d", rec.Code)
	}

	rec = d.do(t, http.MethodPost, "/v1/chat/turns?wait=true", `{"text":"¿Qué es un mol?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("turn: %d %s", rec.Code, rec.Body.String())
	}
	state = chatState{}
	json.NewDecoder(rec.Body).Decode(&state)
	if len(state.Transcript) != 3 || state.Transcript[2].Content != "Hola, humano." || state.Transcript[2].Role != models.RoleModel {
		t.Errorf("transcript = %+v", state.Transcript)
	}

	d.starter.conv.err = errors.New("stream reset")
	rec = d.do(t, http.MethodPost, "/v1/chat/turns?wait=true", `{"text":"otra"}`)
	if rec.Code != http.StatusBadGateway || decodeError(t, rec) != chat.Apology {
		t.Errorf("failed turn: %d", rec.Code)
	}

	rec = d.do(t, http.MethodPost, "/v1/chat/close", "")
	state = chatState{}
	json.NewDecoder(rec.Body).Decode(&state)
	if state.Open || len(state.Transcript) != 0 || state.SessionID != nil {
		t.Errorf("closed state = %+v", state)
	}
}

func TestChat_OpenFailure(t *testing.T) {
	d := newTestDesk(t)
	d.starter.err = errors.New("no key")
	if rec := d.do(t, http.MethodPost, "/v1/chat/open", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("open failure: %d", rec.Code)
	}
}

func TestChatWS(t *testing.T) {
	d := newTestDesk(t)
	srv := httptest.NewServer(d.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/chat/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() chatWSOutMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var m chatWSOutMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		return m
	}

	if m := read(); m.Type != "update" || m.State.Open {
		t.Fatalf("initial = %+v", m)
	}

	conn.WriteJSON(chatWSInMessage{Type: "open"})
	if m := read(); m.State == nil || m.State.Kind != "open" {
		t.Fatalf("open = %+v", m)
	}

	conn.WriteJSON(chatWSInMessage{Type: "send", Text: "hola"})
	for {
		m := read()
		if m.State != nil && m.State.Kind == "commit" {
			last := m.State.Transcript[len(m.State.Transcript)-1]
			if last.Content != "Hola, humano." {
				t.Errorf("committed reply = %q", last.Content)
			}
			break
		}
	}

	conn.WriteJSON(chatWSInMessage{Type: "bogus"})
	if m := read(); m.Type != "error" {
		t.Errorf("bogus = %+v", m)
	}
}

func TestChatWS_SlowClientEndsOnFinalState(t *testing.T) {
	d := newTestDesk(t)
	d.starter.conv.fragments = make([]string, 500)
	for i := range d.starter.conv.fragments {
		d.starter.conv.fragments[i] = "x"
	}
	srv := httptest.NewServer(d.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/chat/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	read := func() chatWSOutMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var m chatWSOutMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		return m
	}
	read()
	conn.WriteJSON(chatWSInMessage{Type: "open"})
	read()

	// The client stops reading while the whole reply streams.
	conn.WriteJSON(chatWSInMessage{Type: "send", Text: "hola"})
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap := d.handler.chat.Snapshot()
		if len(snap.Transcript) == 3 && !snap.Busy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("turn did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for {
		m := read()
		if m.State == nil || m.State.Busy {
			continue
		}
		if m.State.Kind != "commit" {
			t.Fatalf("final state kind = %q", m.State.Kind)
		}
		if got := m.State.Transcript[2].Content; got != strings.Repeat("x", 500) {
			t.Errorf("reply length = %d", len(got))
		}
		return
	}
}

func TestChatWSMailbox(t *testing.T) {
	box := newChatWSMailbox()
	for i := 0; i < 200; i++ {
		box.update(chatState{Kind: "fragment", Busy: true})
	}
	box.update(chatState{Kind: "commit"})

	m := <-box.updates
	if m.State.Kind != "commit" || m.State.Busy {
		t.Errorf("pending update = %+v", m.State)
	}
	select {
	case m := <-box.updates:
		t.Errorf("unexpected extra update %+v", m.State)
	default:
	}

	for i := 0; i < chatWSErrorQueue+5; i++ {
		box.reportError("boom")
	}
	if len(box.errors) != chatWSErrorQueue {
		t.Errorf("queued errors = %d", len(box.errors))
	}
}

func TestBalance_FormulaHTML(t *testing.T) {
	d := newTestDesk(t)
	rec := d.do(t, http.MethodPost, "/v1/balance", `{"equation":"Fe + O2 -> Fe2O3"}`)
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if got := body["balancedEquationHtml"]; got != "4Fe + 3O<sub>2</sub> -&gt; 2Fe<sub>2</sub>O<sub>3</sub>" {
		t.Errorf("balancedEquationHtml = %v", got)
	}
	if body["balancedEquation"] != "4Fe + 3O2 -> 2Fe2O3" {
		t.Errorf("balancedEquation = %v", body["balancedEquation"])
	}
}

func TestChatState_ReplyHTML(t *testing.T) {
	s := newChatState(chat.Update{Kind: "commit", Open: true, Transcript: []models.ChatMessage{
		{Role: models.RoleUser, Content: "**hola**"},
		{Role: models.RoleModel, Content: "Un **mol** es"},
	}})
	if s.Transcript[0].HTML != "" {
		t.Errorf("user message rendered: %q", s.Transcript[0].HTML)
	}
	if s.Transcript[1].HTML != "Un <b>mol</b> es" {
		t.Errorf("model html = %q", s.Transcript[1].HTML)
	}
}

func TestMountMCP(t *testing.T) {
	h := NewHandler(balancer.New(&fakeGenerator{raw: okPayload}), nil, nil, nil, nil, time.Minute)
	rec := httptest.NewRecorder()
	h.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/mcp", strings.NewReader("{}")))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unmounted status = %d", rec.Code)
	}

	var hits int
	h.MountMCP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	rec = httptest.NewRecorder()
	h.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/mcp", strings.NewReader("{}")))
	if rec.Code != http.StatusOK || hits != 1 {
		t.Errorf("mounted status = %d, hits = %d", rec.Code, hits)
	}
}
