package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/models"
)

// Options configures delivery retries
type Options struct {
	URL            string
	Secret         string // HMAC-SHA256 key; empty sends unsigned payloads
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Publisher posts balance events to a webhook.
// It makes one immediate attempt and retries transient failures in the background.
type Publisher struct {
	url        string
	secret     string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	stop   chan struct{}
}

// NewPublisher creates a new webhook publisher
func NewPublisher(opts Options) *Publisher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 2 * time.Second
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = time.Minute
	}

	log.Info().Str("url", opts.URL).Bool("signed", opts.Secret != "").Msg("Webhook publisher initialized")

	return &Publisher{
		url:    opts.URL,
		secret: opts.Secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.RetryBaseDelay,
		maxDelay:   opts.RetryMaxDelay,
		stop:       make(chan struct{}),
	}
}

// DeliveryError wraps webhook delivery errors with HTTP status code
type DeliveryError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// IsRetryable determines if an error should be retried
func (e *DeliveryError) IsRetryable() bool {
	// Retry on 5xx server errors
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	// Retry on 429 Too Many Requests
	if e.StatusCode == 429 {
		return true
	}
	// Don't retry on 4xx client errors (except 429)
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return false
	}
	return true
}

// PublishBalance delivers event. Only a permanent failure of the first
// attempt is returned; transient failures are retried asynchronously.
func (p *Publisher) PublishBalance(ctx context.Context, event *models.BalanceEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = p.send(ctx, body)
	if err == nil {
		log.Info().
			Str("request_id", event.RequestID.String()).
			Str("url", p.url).
			Msg("Webhook delivered successfully on first attempt")
		return nil
	}

	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) && !deliveryErr.IsRetryable() {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("webhook publisher closed, dropping retry: %w", err)
	}
	log.Warn().
		Err(err).
		Str("request_id", event.RequestID.String()).
		Str("url", p.url).
		Msg("Webhook delivery failed on first attempt - scheduled for retry")
	p.wg.Add(1)
	go p.retry(context.WithoutCancel(ctx), event, body)
	return nil
}

// retry redelivers body with exponential backoff until it succeeds, fails
// permanently, runs out of attempts or the publisher is closed.
func (p *Publisher) retry(ctx context.Context, event *models.BalanceEvent, body []byte) {
	defer p.wg.Done()
	for attempt := 1; attempt < p.maxRetries; attempt++ {
		select {
		case <-p.stop:
			log.Warn().Str("request_id", event.RequestID.String()).Msg("Webhook retries abandoned on shutdown")
			return
		case <-time.After(p.backoff(attempt)):
		}

		err := p.send(ctx, body)
		if err == nil {
			log.Info().
				Str("request_id", event.RequestID.String()).
				Int("attempts", attempt+1).
				Msg("Webhook delivered successfully after retry")
			return
		}
		log.Warn().
			Err(err).
			Str("request_id", event.RequestID.String()).
			Int("attempt", attempt+1).
			Int("max_retries", p.maxRetries).
			Msg("Webhook retry failed")

		var deliveryErr *DeliveryError
		if errors.As(err, &deliveryErr) && !deliveryErr.IsRetryable() {
			log.Error().
				Err(err).
				Int("status_code", deliveryErr.StatusCode).
				Msg("Webhook delivery failed with permanent error - not retrying")
			return
		}
	}
	log.Error().Str("request_id", event.RequestID.String()).Msg("Webhook delivery failed permanently after max retries")
}

// backoff is baseDelay * 2^(attempt-1), capped at maxDelay.
func (p *Publisher) backoff(attempt int) time.Duration {
	d := p.baseDelay * time.Duration(1<<uint(attempt-1))
	if d > p.maxDelay || d <= 0 {
		d = p.maxDelay
	}
	return d
}

// Close stops pending retries and waits for in-flight deliveries.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.stop)
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

// send sends the webhook HTTP request
func (p *Publisher) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Skynet-Webhook/1.0")
	req.Header.Set("X-Skynet-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	req.Header.Set("X-Skynet-Event", "balance.completed")

	if p.secret != "" {
		req.Header.Set("X-Skynet-Signature", Sign(body, p.secret))
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Network error - retryable
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook returned status %d", resp.StatusCode),
			Body:       string(respBody),
		}
	}

	return nil
}

// Sign returns the hex HMAC-SHA256 of payload, as sent in X-Skynet-Signature.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
