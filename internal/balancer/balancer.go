// Package balancer drives one balancing request at a time: validation, the
// structured service call, result parsing and the view state shown to the user.
package balancer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/contract"
	"github.com/snappy-loop/skynet/internal/models"
)

// AfterCommitTimeout bounds the cache write and event publishing that follow a result.
const AfterCommitTimeout = 30 * time.Second

// User-facing messages.
const (
	EmptyEquationMessage = "Por favor, introduce una ecuación química."
	ServiceFailedMessage = "Failed to get a valid response from the AI. Please check the equation and try again."
)

// Examples are the sample equations offered to the user.
var Examples = []string{
	"Fe + H2SO4 -> Fe2(SO4)3 + H2",
	"C5H12 + O2 -> CO2 + H2O",
	"KMnO4 + HCl -> KCl + MnCl2 + Cl2 + H2O",
	"S + NaOH -> Na2S + Na2S2O3 + H2O",
}

// ErrBusy is returned when a request is submitted while another one is loading.
var ErrBusy = errors.New("balancer: a request is already in progress")

// ValidationError rejects input before any service call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ServiceError reports a failed or unusable service response.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string { return ServiceFailedMessage }

func (e *ServiceError) Unwrap() error { return e.Err }

// Generator returns the raw JSON text the model produced for an equation.
type Generator interface {
	GenerateBalance(ctx context.Context, equation string) (string, error)
}

// ResultCache stores parsed results by equation.
type ResultCache interface {
	Get(ctx context.Context, equation string) (*models.BalanceResult, error)
	Set(ctx context.Context, equation string, result *models.BalanceResult) error
}

// EventPublisher receives a record of every completed request.
type EventPublisher interface {
	PublishBalance(ctx context.Context, event *models.BalanceEvent) error
}

// Status is the phase of the view.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// View is an immutable snapshot of what the user sees.
type View struct {
	Status    Status                `json:"status"`
	Equation  string                `json:"equation,omitempty"`
	Result    *models.BalanceResult `json:"result,omitempty"`
	Err       string                `json:"error,omitempty"`
	RequestID uuid.UUID             `json:"request_id"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache enables result caching.
func WithCache(c ResultCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithPublisher adds a completion event sink. It may be given more than once.
func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.publishers = append(o.publishers, p) }
}

// Orchestrator owns the balancing view of the process.
type Orchestrator struct {
	gen        Generator
	cache      ResultCache
	publishers []EventPublisher

	mu       sync.Mutex
	view     View
	draining bool
	pending  sync.WaitGroup
}

// New creates an idle orchestrator.
func New(gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{gen: gen, view: View{Status: StatusIdle}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// View returns the current snapshot.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view
}

// Reset clears the result and error, keeping the equation.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.view.Status == StatusLoading {
		return
	}
	o.view = View{Status: StatusIdle, Equation: o.view.Equation}
}

// Balance validates equationText, requests the structured result and commits it to the view.
// The service is called once, without retry.
func (o *Orchestrator) Balance(ctx context.Context, equationText string) (*models.BalanceResult, error) {
	equation := strings.TrimSpace(equationText)

	o.mu.Lock()
	if o.view.Status == StatusLoading {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	if equation == "" {
		o.view = View{Status: StatusError, Equation: equationText, Err: EmptyEquationMessage}
		o.mu.Unlock()
		return nil, &ValidationError{Message: EmptyEquationMessage}
	}
	id := uuid.New()
	o.view = View{Status: StatusLoading, Equation: equation, RequestID: id}
	o.mu.Unlock()

	logger := log.With().Str("request_id", id.String()).Str("equation", equation).Logger()
	logger.Info().Msg("Balance request started")
	start := time.Now()

	result, cached, err := o.resolve(ctx, equation)
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Balance request failed")
		o.commit(id, View{Status: StatusError, Equation: equation, Err: ServiceFailedMessage, RequestID: id})
		return nil, &ServiceError{Err: err}
	}

	if !o.commit(id, View{Status: StatusSuccess, Equation: equation, Result: result, RequestID: id}) {
		logger.Warn().Msg("Balance result superseded")
	}
	logger.Info().
		Str("neutralization_type", string(result.NeutralizationType)).
		Bool("is_solvable", result.IsSolvable).
		Bool("cached", cached).
		Dur("elapsed", time.Since(start)).
		Msg("Balance request completed")

	if (!cached && o.cache != nil) || len(o.publishers) > 0 {
		event := &models.BalanceEvent{
			RequestID:          id,
			Equation:           equation,
			BalancedEquation:   result.BalancedEquation,
			IsSolvable:         result.IsSolvable,
			NeutralizationType: result.NeutralizationType,
			Cached:             cached,
			CompletedAt:        time.Now().UTC(),
		}
		bg := context.WithoutCancel(ctx)
		o.mu.Lock()
		if o.draining {
			o.mu.Unlock()
			o.afterCommit(bg, logger, event, result)
		} else {
			o.pending.Add(1)
			o.mu.Unlock()
			go func() {
				defer o.pending.Done()
				o.afterCommit(bg, logger, event, result)
			}()
		}
	}
	return result, nil
}

// afterCommit caches a fresh result and publishes its event. Failures are logged only.
func (o *Orchestrator) afterCommit(ctx context.Context, logger zerolog.Logger, event *models.BalanceEvent, result *models.BalanceResult) {
	ctx, cancel := context.WithTimeout(ctx, AfterCommitTimeout)
	defer cancel()

	if !event.Cached && o.cache != nil {
		if err := o.cache.Set(ctx, event.Equation, result); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache balance result")
		}
	}
	for _, p := range o.publishers {
		if err := p.PublishBalance(ctx, event); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish balance event")
		}
	}
}

// Wait blocks until the cache writes and events of finished requests are done.
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

// Drain waits like Wait; requests finishing afterwards run their cache write
// and events before Balance returns, so nothing is left running on shutdown.
func (o *Orchestrator) Drain() {
	o.mu.Lock()
	o.draining = true
	o.mu.Unlock()
	o.pending.Wait()
}

func (o *Orchestrator) resolve(ctx context.Context, equation string) (*models.BalanceResult, bool, error) {
	if o.cache != nil {
		hit, err := o.cache.Get(ctx, equation)
		if err != nil {
			log.Warn().Err(err).Msg("Balance cache lookup failed")
		} else if hit != nil {
			return hit, true, nil
		}
	}
	raw, err := o.gen.GenerateBalance(ctx, equation)
	if err != nil {
		return nil, false, err
	}
	result, err := contract.Parse(raw)
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}

// commit replaces the view only if id is still the most recent request.
func (o *Orchestrator) commit(id uuid.UUID, v View) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.view.RequestID != id {
		return false
	}
	o.view = v
	return true
}
