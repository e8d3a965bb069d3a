package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for the resilient transport.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// TransportConfig holds configuration for the resilient transport.
type TransportConfig struct {
	// Name identifies the transport for circuit breaker naming.
	Name string

	// Base is the underlying RoundTripper (default http.DefaultTransport).
	Base http.RoundTripper

	// MaxRetries is the number of retry attempts after the first try.
	// Default 0: a single timeout is a single failure, surfaced
	// immediately to the caller.
	MaxRetries uint64

	// InitialInterval is the first retry backoff delay. Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff delay. Default: 2 seconds
	MaxInterval time.Duration

	// CircuitBreaker configures the breaker. If nil, uses
	// DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig
}

// Transport is an http.RoundTripper that guards a bridge backend with a
// circuit breaker and optional bounded retries. It plugs into any HTTP
// client that accepts a custom transport.
type Transport struct {
	base    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
	config  TransportConfig
}

// NewTransport creates a resilient transport with defaults filled in.
func NewTransport(cfg TransportConfig) *Transport {
	if cfg.Base == nil {
		cfg.Base = http.DefaultTransport
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	cbCfg := cfg.CircuitBreaker
	if cbCfg == nil {
		def := DefaultCircuitBreakerConfig(cfg.Name)
		cbCfg = &def
	}

	return &Transport{
		base:    cfg.Base,
		breaker: NewCircuitBreaker[*http.Response](*cbCfg),
		config:  cfg,
	}
}

// ServerError represents an HTTP 5xx response, used to trip the breaker.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// RoundTrip executes the request through the circuit breaker, retrying
// transient failures (network errors, 5xx) with exponential backoff when
// MaxRetries is set. Requests with a non-replayable body are never
// retried.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	maxRetries := t.config.MaxRetries
	// http.NoBody counts as no body: NewRequest leaves GetBody nil for
	// it, but the request is still safely replayable.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		maxRetries = 0
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.config.InitialInterval
	bo.MaxInterval = t.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), req.Context())

	var lastResp *http.Response

	operation := func() error {
		resp, err := t.breaker.Execute(func() (*http.Response, error) {
			attempt, err := t.cloneForAttempt(req)
			if err != nil {
				return nil, backoff.Permanent(err)
			}

			r, err := t.base.RoundTrip(attempt)
			if err != nil {
				return nil, err
			}

			// 5xx responses count against the breaker.
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				if lastResp != nil {
					lastResp.Body.Close()
				}
				lastResp = resp
			}
			return err
		}

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		// A 5xx that exhausted retries still hands the response back so
		// the caller can read the status and body.
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	return lastResp, nil
}

// cloneForAttempt produces a request safe to send for one attempt,
// rewinding the body when the request is replayable.
func (t *Transport) cloneForAttempt(req *http.Request) (*http.Request, error) {
	attempt := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		attempt.Body = body
	}
	return attempt, nil
}

// State returns the current circuit breaker state.
func (t *Transport) State() gobreaker.State {
	return t.breaker.State()
}

// Counts returns the current circuit breaker counts.
func (t *Transport) Counts() gobreaker.Counts {
	return t.breaker.Counts()
}
