package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/balancer"
	"github.com/snappy-loop/skynet/internal/markup"
	"github.com/snappy-loop/skynet/internal/models"
)

// balanceResponse is the result plus desk-ready HTML of both equations.
type balanceResponse struct {
	*models.BalanceResult
	UnbalancedHTML string `json:"unbalancedEquationHtml"`
	BalancedHTML   string `json:"balancedEquationHtml,omitempty"`
}

func newBalanceResponse(r *models.BalanceResult) balanceResponse {
	return balanceResponse{
		BalanceResult:  r,
		UnbalancedHTML: markup.FormulaHTML(r.UnbalancedEquation),
		BalancedHTML:   markup.FormulaHTML(r.BalancedEquation),
	}
}

// Balance handles POST /v1/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	var req models.BalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	result, err := h.balancer.Balance(ctx, req.Equation)
	if err != nil {
		var validationErr *balancer.ValidationError
		var serviceErr *balancer.ServiceError
		switch {
		case errors.As(err, &validationErr):
			writeJSONError(w, http.StatusBadRequest, validationErr.Message)
		case errors.Is(err, balancer.ErrBusy):
			writeJSONError(w, http.StatusConflict, "a balance request is already in progress")
		case errors.As(err, &serviceErr):
			writeJSONError(w, http.StatusBadGateway, serviceErr.Error())
		default:
			log.Error().Err(err).Msg("Unexpected balance error")
			writeJSONError(w, http.StatusInternalServerError, balancer.ServiceFailedMessage)
		}
		return
	}

	writeJSON(w, http.StatusOK, newBalanceResponse(result))
}

// BalanceView handles GET /v1/balance
func (h *Handler) BalanceView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.balancer.View())
}

// ResetBalance handles DELETE /v1/balance
func (h *Handler) ResetBalance(w http.ResponseWriter, r *http.Request) {
	h.balancer.Reset()
	writeJSON(w, http.StatusOK, h.balancer.View())
}

// Examples handles GET /v1/examples
func (h *Handler) Examples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"examples": balancer.Examples})
}
