package models

import (
	"time"

	"github.com/google/uuid"
)

// NeutralizationType is the classification outcome returned by the model
type NeutralizationType string

const (
	NeutralizationNone       NeutralizationType = "NONE"
	NeutralizationCold       NeutralizationType = "COLD"
	NeutralizationHeat       NeutralizationType = "HEAT"
	NeutralizationImpossible NeutralizationType = "IMPOSSIBLE"
)

// NeutralizationTypes lists the closed enumeration in schema order
var NeutralizationTypes = []NeutralizationType{
	NeutralizationNone,
	NeutralizationCold,
	NeutralizationHeat,
	NeutralizationImpossible,
}

// Valid reports whether t is one of the four enumerated outcomes
func (t NeutralizationType) Valid() bool {
	switch t {
	case NeutralizationNone, NeutralizationCold, NeutralizationHeat, NeutralizationImpossible:
		return true
	}
	return false
}

// HasBanner reports whether a classification banner is shown for t
func (t NeutralizationType) HasBanner() bool {
	return t.Valid() && t != NeutralizationNone
}

// BalanceResult is the structured report produced for one equation.
// Field order and JSON names are the schema requested from the model.
type BalanceResult struct {
	UnbalancedEquation string             `json:"unbalancedEquation" jsonschema:"The original unbalanced equation provided by the user."`
	BalancedEquation   string             `json:"balancedEquation" jsonschema:"The correctly balanced chemical equation. If unsolvable, leave empty or state \"Impossible\"."`
	Synthesis          string             `json:"synthesis" jsonschema:"A concise summary or synthesis of the final balanced equation and the key changes made."`
	Explanation        string             `json:"explanation" jsonschema:"A general explanation of the balancing process."`
	Steps              []string           `json:"steps" jsonschema:"An array of strings, where each string is a detailed, numbered step in the balancing process."`
	IsSolvable         bool               `json:"isSolvable" jsonschema:"True if the equation can be chemically balanced."`
	NeutralizationType NeutralizationType `json:"neutralizationType" jsonschema:"The type of outcome. COLD if H >= 14. HEAT if O >= 16. IMPOSSIBLE if unsolvable and no thresholds met. NONE otherwise."`
	WarningMessage     string             `json:"warningMessage,omitempty" jsonschema:"Explanation of the neutralization or error (e.g., \"Neutralización por frío: Exceso de hidrógeno\")."`
}

// Role identifies the author of a chat message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one entry of a chat transcript
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// BalanceEvent is published after a balancing request completes
type BalanceEvent struct {
	RequestID          uuid.UUID          `json:"request_id"`
	Equation           string             `json:"equation"`
	BalancedEquation   string             `json:"balanced_equation"`
	IsSolvable         bool               `json:"is_solvable"`
	NeutralizationType NeutralizationType `json:"neutralization_type"`
	Cached             bool               `json:"cached"`
	CompletedAt        time.Time          `json:"completed_at"`
}

// BalanceRequest is the body of POST /v1/balance
type BalanceRequest struct {
	Equation string `json:"equation"`
}

// ChatTurnRequest is the body of POST /v1/chat/turns
type ChatTurnRequest struct {
	Text string `json:"text"`
}

// NarrationResponse describes a started narration playback
type NarrationResponse struct {
	Script   string  `json:"script"`
	Samples  int     `json:"samples"`
	Duration float64 `json:"duration_seconds"`
	URL      string  `json:"url,omitempty"`
}
