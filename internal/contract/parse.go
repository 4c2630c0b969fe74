package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/snappy-loop/skynet/internal/models"
)

// InvalidResponseError reports a service payload that does not conform to the result schema.
type InvalidResponseError struct {
	Reason string
	Err    error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid balance response: %s: %v", e.Reason, e.Err)
	}
	return "invalid balance response: " + e.Reason
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// Parse decodes and validates the raw JSON text returned by the service.
// Markdown code fences are tolerated and syntax errors are repaired before validation.
func Parse(raw string) (*models.BalanceResult, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, &InvalidResponseError{Reason: "empty payload"}
	}

	data, err := repairJSON([]byte(text))
	if err != nil {
		return nil, &InvalidResponseError{Reason: "malformed json", Err: err}
	}

	var instance map[string]any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, &InvalidResponseError{Reason: "payload is not an object", Err: err}
	}
	loadSchema()
	if schemaErr != nil {
		return nil, &InvalidResponseError{Reason: "schema unavailable", Err: schemaErr}
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, &InvalidResponseError{Reason: "schema mismatch", Err: err}
	}

	var result models.BalanceResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &InvalidResponseError{Reason: "decode", Err: err}
	}
	if err := normalize(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// normalize enforces the cross-field rules the schema cannot express.
func normalize(r *models.BalanceResult) error {
	if !r.NeutralizationType.Valid() {
		return &InvalidResponseError{Reason: fmt.Sprintf("unknown neutralizationType %q", r.NeutralizationType)}
	}
	if r.NeutralizationType == models.NeutralizationImpossible && r.IsSolvable {
		return &InvalidResponseError{Reason: "IMPOSSIBLE result marked solvable"}
	}
	if r.NeutralizationType == models.NeutralizationNone {
		r.WarningMessage = ""
	}
	if r.Steps == nil {
		r.Steps = []string{}
	}
	return nil
}

// repairJSON returns data unchanged when it parses, or the jsonrepair output on a syntax error.
func repairJSON(data []byte) ([]byte, error) {
	if json.Valid(data) {
		return data, nil
	}
	var probe any
	err := json.Unmarshal(data, &probe)
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return nil, err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	return []byte(fixed), nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
