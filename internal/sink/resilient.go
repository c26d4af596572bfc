package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/screening-server/internal/domain"
)

// ResilientConfig bounds each append and trips the breaker after
// consecutive failures.
type ResilientConfig struct {
	Timeout     time.Duration
	OpenTimeout time.Duration
	MaxFailures uint32
}

// Resilient gives an appender a per-call deadline and a circuit breaker, so
// a failing target answers fast instead of holding up the respondent.
type Resilient struct {
	next    domain.RowAppender
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewResilient wraps next.
func NewResilient(next domain.RowAppender, cfg ResilientConfig, logger *logrus.Logger) *Resilient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from,
				"to_state":        to,
			}).Warn("Circuit breaker state changed")
		},
	}

	return &Resilient{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.Timeout,
	}
}

func (r *Resilient) Name() string { return r.next.Name() }

// AppendRow runs the wrapped append through the breaker.
func (r *Resilient) AppendRow(ctx context.Context, row domain.WideRow) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.next.AppendRow(ctx, row)
	})
	if err != nil {
		return fmt.Errorf("append to %s: %w", r.next.Name(), err)
	}
	return nil
}

// State reports the breaker state.
func (r *Resilient) State() gobreaker.State {
	return r.breaker.State()
}
