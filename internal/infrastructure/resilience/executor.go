package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict tells the executor how to treat a call failure. Retryable
// failures are re-attempted with backoff; only failures that also
// count toward the breaker move it toward the open state. Client-side
// mistakes (a 400 from the ERP, a malformed prompt) should be neither.
type Verdict struct {
	Retryable   bool
	CountsFault bool
}

type Classifier func(err error) Verdict

// Executor wraps outbound calls with retry and a per-endpoint circuit
// breaker. One executor is shared between the ERP client and the AI
// providers; breakers are keyed by endpoint name so an ERP outage
// never trips the AI path.
type Executor struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:   policy.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Run(ctx context.Context, endpoint string, call func(context.Context) error, classify Classifier) error {
	if call == nil {
		return fmt.Errorf("resilience: call is nil")
	}
	name := strings.TrimSpace(endpoint)
	if name == "" {
		name = "unknown"
	}
	if classify == nil {
		classify = strictClassifier
	}

	if !e.policy.BreakerEnabled {
		return e.retry(ctx, name, call, classify)
	}

	breaker := e.breaker(name, classify)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.retry(ctx, name, call, classify)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, endpoint string, call func(context.Context) error, classify Classifier) error {
	backoff := e.policy.InitialBackoff

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := call(ctx)
		if err == nil {
			return nil
		}

		verdict := classify(err)
		if !verdict.Retryable || attempt == e.policy.MaxAttempts {
			return err
		}

		wait := backoff
		if wait > e.policy.MaxBackoff {
			wait = e.policy.MaxBackoff
		}
		slog.Warn("retrying_call",
			"endpoint", endpoint,
			"attempt", attempt,
			"max_attempts", e.policy.MaxAttempts,
			"backoff", wait.String(),
			"error", err,
		)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}

		backoff = time.Duration(float64(backoff) * e.policy.BackoffFactor)
		if backoff > e.policy.MaxBackoff {
			backoff = e.policy.MaxBackoff
		}
	}

	return nil
}

func (e *Executor) breaker(endpoint string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[endpoint]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: e.policy.BreakerProbeCalls,
		Timeout:     e.policy.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.policy.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= e.policy.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classify(err).CountsFault
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("breaker_state_change", "endpoint", name, "from", from.String(), "to", to.String())
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[endpoint] = breaker
	return breaker
}

// IsCircuitOpen reports whether the error came from an open breaker
// rather than from the call itself.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func strictClassifier(error) Verdict {
	return Verdict{Retryable: false, CountsFault: true}
}
