// Package mcpserver exposes the balancer as MCP tools over JSON-RPC 2.0.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/balancer"
	"github.com/snappy-loop/skynet/internal/models"
	"github.com/snappy-loop/skynet/internal/narration"
)

const protocolVersion = "2025-06-18"

// JSON-RPC 2.0 request
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSON-RPC 2.0 response
type jsonRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP tools/list result
type toolsListResult struct {
	Tools      []mcpTool `json:"tools"`
	NextCursor *string   `json:"nextCursor,omitempty"`
}

type mcpTool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	Type       string                `json:"type"`
	Properties map[string]schemaProp `json:"properties"`
	Required   []string              `json:"required,omitempty"`
}

type schemaProp struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// MCP tools/call result
type toolsCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Balancer is the subset of the balancing orchestrator the tools need.
type Balancer interface {
	Balance(ctx context.Context, equationText string) (*models.BalanceResult, error)
}

// Server implements MCP JSON-RPC 2.0 over HTTP (initialize, ping, tools/list and tools/call).
type Server struct {
	balancer Balancer
}

// NewServer returns a new MCP server backed by b.
func NewServer(b Balancer) *Server {
	return &Server{balancer: b}
}

// Handler returns the HTTP handler for JSON-RPC requests.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveJSONRPC)
}

func (s *Server) serveJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, req.ID, -32700, "Parse error")
		return
	}
	if req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, -32600, "Invalid Request")
		return
	}

	// Notifications carry no id and get no body.
	if strings.HasPrefix(req.Method, "notifications/") {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	var result interface{}
	var rpcErr *rpcError
	switch req.Method {
	case "initialize":
		result = &initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: "skynet", Version: "1.0"},
		}
	case "ping":
		result = map[string]any{}
	case "tools/list":
		result, rpcErr = s.handleToolsList()
	case "tools/call":
		result, rpcErr = s.handleToolsCall(r.Context(), req.Params)
	default:
		writeRPCError(w, req.ID, -32601, "Method not found")
		return
	}

	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handleToolsList() (interface{}, *rpcError) {
	equation := map[string]schemaProp{
		"equation": {Type: "string", Description: "Chemical equation, e.g. H2 + O2 -> H2O"},
	}
	return &toolsListResult{
		Tools: []mcpTool{
			{
				Name:        "balance_equation",
				Description: "Balance a chemical equation and classify the neutralization it needs",
				InputSchema: inputSchema{Type: "object", Properties: equation, Required: []string{"equation"}},
			},
			{
				Name:        "compose_narration",
				Description: "Balance a chemical equation and return the spoken explanation script",
				InputSchema: inputSchema{Type: "object", Properties: equation, Required: []string{"equation"}},
			},
			{
				Name:        "list_examples",
				Description: "List the sample equations offered on the desk",
				InputSchema: inputSchema{Type: "object", Properties: map[string]schemaProp{}},
			},
		},
	}, nil
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, paramsRaw json.RawMessage) (interface{}, *rpcError) {
	var params toolsCallParams
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return nil, &rpcError{Code: -32602, Message: "Invalid params"}
	}
	switch params.Name {
	case "balance_equation":
		return s.callBalance(ctx, params.Arguments)
	case "compose_narration":
		return s.callComposeNarration(ctx, params.Arguments)
	case "list_examples":
		return textResult(strings.Join(balancer.Examples, "\n")), nil
	default:
		return nil, &rpcError{Code: -32602, Message: "Unknown tool: " + params.Name}
	}
}

func getStr(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (s *Server) callBalance(ctx context.Context, args map[string]interface{}) (interface{}, *rpcError) {
	result, err := s.balancer.Balance(ctx, getStr(args, "equation"))
	if err != nil {
		return toolError(err), nil
	}
	raw, _ := json.Marshal(result)
	return textResult(string(raw)), nil
}

func (s *Server) callComposeNarration(ctx context.Context, args map[string]interface{}) (interface{}, *rpcError) {
	result, err := s.balancer.Balance(ctx, getStr(args, "equation"))
	if err != nil {
		return toolError(err), nil
	}
	return textResult(narration.Compose(result)), nil
}

func textResult(text string) *toolsCallResult {
	return &toolsCallResult{Content: []contentItem{{Type: "text", Text: text}}}
}

// toolError reports user-facing balancer messages as tool errors.
func toolError(err error) *toolsCallResult {
	msg := balancer.ServiceFailedMessage
	var validationErr *balancer.ValidationError
	switch {
	case errors.As(err, &validationErr):
		msg = validationErr.Message
	case errors.Is(err, balancer.ErrBusy):
		msg = err.Error()
	default:
		log.Warn().Err(err).Msg("MCP balance tool failed")
	}
	return &toolsCallResult{Content: []contentItem{{Type: "text", Text: msg}}, IsError: true}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
