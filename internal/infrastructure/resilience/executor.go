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

// ErrorClassification tells the executor how to treat a failed model
// call: whether another attempt may succeed and whether the failure
// counts toward tripping the circuit.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor shields the model gateway from backend flakiness. Every call
// runs under bounded retry with exponential backoff, and repeated hard
// failures open a circuit scoped to the call kind, so an outage on the
// vision path does not block embedding or generation.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil call for %q", operation)
	}
	call := strings.TrimSpace(operation)
	if call == "" {
		call = "model_call"
	}
	if classifier == nil {
		classifier = neverRetry
	}

	if !e.cfg.BreakerEnabled {
		return e.retryLoop(ctx, call, fn, classifier)
	}
	_, err := e.breakerFor(call, classifier).Execute(func() (any, error) {
		return nil, e.retryLoop(ctx, call, fn, classifier)
	})
	return err
}

func (e *Executor) retryLoop(
	ctx context.Context,
	call string,
	fn func(context.Context) error,
	classify ErrorClassifier,
) error {
	delay := e.cfg.RetryInitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classify(err).Retryable || attempt == e.cfg.RetryMaxAttempts {
			return err
		}

		slog.Warn("model_call_retry",
			"call", call,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"next_in", delay.String(),
			"error", err,
		)
		if !sleepFor(ctx, delay) {
			return err
		}
		delay = e.nextDelay(delay)
	}
}

func (e *Executor) nextDelay(delay time.Duration) time.Duration {
	delay = time.Duration(float64(delay) * e.cfg.RetryMultiplier)
	if delay > e.cfg.RetryMaxBackoff {
		return e.cfg.RetryMaxBackoff
	}
	return delay
}

// sleepFor reports false when the context ended before the wait did.
func sleepFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// breakerFor returns the circuit for one call kind, creating it on first
// use. The classifier decides which failures count toward the trip
// ratio, so cancellations and quota exhaustion never open the circuit.
func (e *Executor) breakerFor(call string, classify ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[call]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        call,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("model_breaker_state", "call", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[call] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func neverRetry(error) ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: true}
}
