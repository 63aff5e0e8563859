// Package retry wraps capability calls with an explicit attempt/backoff/timeout
// policy. A failed operation surfaces as an error the caller records and skips,
// never as a panic or a session-ending condition.
package retry

import (
	"context"
	"time"

	"github.com/compass-dev/career-compass/internal/utils"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 2
	defaultBackoff     = 500 * time.Millisecond
	defaultTimeout     = 15 * time.Second
)

// Policy controls how a capability call is retried. The zero value is usable
// and falls back to the defaults.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
	Logger      *zap.Logger
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultBackoff
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// Do runs fn up to MaxAttempts times, doubling the backoff between attempts.
// Each attempt gets its own timeout. Cancellation of the parent context stops
// retrying immediately and returns ctx.Err().
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	delay := p.Backoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		p.Logger.Debug("retrying operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}

	return lastErr
}
