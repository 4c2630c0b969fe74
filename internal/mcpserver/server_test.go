package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snappy-loop/skynet/internal/balancer"
	"github.com/snappy-loop/skynet/internal/models"
)

type fakeBalancer struct {
	result *models.BalanceResult
	err    error
	got    string
}

func (f *fakeBalancer) Balance(ctx context.Context, equationText string) (*models.BalanceResult, error) {
	f.got = equationText
	return f.result, f.err
}

func okResult() *models.BalanceResult {
	return &models.BalanceResult{
		UnbalancedEquation: "H2 + O2 -> H2O",
		BalancedEquation:   "2H2 + O2 -> 2H2O",
		Synthesis:          "Se forma agua.",
		Explanation:        "Se ajustan hidrógenos y oxígenos.",
		Steps:              []string{"Contar átomos"},
		IsSolvable:         true,
		NeutralizationType: models.NeutralizationNone,
	}
}

func call(t *testing.T, s *Server, body string) (int, jsonRPCResponse, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	raw := rec.Body.Bytes()
	var resp jsonRPCResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &resp); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return rec.Code, resp, raw
}

func toolText(t *testing.T, raw []byte) (string, bool) {
	t.Helper()
	var resp struct {
		Result toolsCallResult `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Result.Content) != 1 {
		t.Fatalf("content = %+v", resp.Result.Content)
	}
	return resp.Result.Content[0].Text, resp.Result.IsError
}

func TestProtocolErrors(t *testing.T) {
	s := NewServer(&fakeBalancer{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", "{", -32700},
		{"bad version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, -32600},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, -32601},
		{"unknown tool", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope"}}`, -32602},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp, _ := call(t, s, tt.body)
			if status != http.StatusOK || resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("status = %d, resp = %+v", status, resp)
			}
		})
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/mcp", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", rec.Code)
	}
}

func TestInitializeAndList(t *testing.T) {
	s := NewServer(&fakeBalancer{})

	_, _, raw := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if !strings.Contains(string(raw), protocolVersion) || !strings.Contains(string(raw), `"skynet"`) {
		t.Errorf("initialize = %s", raw)
	}

	status, _, raw := call(t, s, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if status != http.StatusAccepted || len(raw) != 0 {
		t.Errorf("notification status = %d body = %q", status, raw)
	}

	_, _, raw = call(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	var list struct {
		Result toolsListResult `json:"result"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tool := range list.Result.Tools {
		names = append(names, tool.Name)
	}
	if strings.Join(names, ",") != "balance_equation,compose_narration,list_examples" {
		t.Errorf("tools = %v", names)
	}
}

func TestBalanceTool(t *testing.T) {
	b := &fakeBalancer{result: okResult()}
	s := NewServer(b)

	_, _, raw := call(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"balance_equation","arguments":{"equation":"H2 + O2 -> H2O"}}}`)
	text, isErr := toolText(t, raw)
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	if b.got != "H2 + O2 -> H2O" {
		t.Errorf("equation = %q", b.got)
	}
	var got models.BalanceResult
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatal(err)
	}
	if got.BalancedEquation != "2H2 + O2 -> 2H2O" {
		t.Errorf("result = %+v", got)
	}
}

func TestComposeNarrationTool(t *testing.T) {
	s := NewServer(&fakeBalancer{result: okResult()})
	_, _, raw := call(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"compose_narration","arguments":{"equation":"H2 + O2 -> H2O"}}}`)
	text, isErr := toolText(t, raw)
	if isErr || !strings.Contains(text, "2H2 + O2 -> 2H2O") {
		t.Errorf("script = %q", text)
	}
}

func TestToolErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &balancer.ValidationError{Message: "Por favor, introduce una ecuación química."}, "Por favor, introduce una ecuación química."},
		{"busy", balancer.ErrBusy, balancer.ErrBusy.Error()},
		{"service", &balancer.ServiceError{Err: errors.New("timeout")}, balancer.ServiceFailedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&fakeBalancer{err: tt.err})
			_, _, raw := call(t, s, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"balance_equation","arguments":{}}}`)
			text, isErr := toolText(t, raw)
			if !isErr || text != tt.want {
				t.Errorf("text = %q, isError = %v", text, isErr)
			}
		})
	}
}

func TestListExamplesTool(t *testing.T) {
	s := NewServer(&fakeBalancer{})
	_, _, raw := call(t, s, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"list_examples"}}`)
	text, _ := toolText(t, raw)
	if text != strings.Join(balancer.Examples, "\n") {
		t.Errorf("examples = %q", text)
	}
}
