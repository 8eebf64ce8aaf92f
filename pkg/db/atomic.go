package db

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/timecredit-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

// TxRunner is the commit primitive the atomic runner replays. *Client satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RetryObserver receives retry and contention signals, typically metrics.
type RetryObserver interface {
	ObserveRetry(op string)
	ObserveContention(op string)
}

// AtomicRunner executes a unit of work in a transaction and replays the whole
// closure when it loses an optimistic race. fn must do all of its reads
// through tx so a replay sees fresh state.
type AtomicRunner struct {
	tx          TxRunner
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logg        *logger.Logger
	observer    RetryObserver
}

func NewAtomicRunner(tx TxRunner, cfg config.AtomicConfig, logg *logger.Logger, observer RetryObserver) *AtomicRunner {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	base := cfg.BaseBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff < base {
		maxBackoff = base
	}
	return &AtomicRunner{
		tx:          tx,
		maxAttempts: attempts,
		baseBackoff: base,
		maxBackoff:  maxBackoff,
		logg:        logg,
		observer:    observer,
	}
}

// Run commits fn atomically. Conflicts are retried up to the configured attempt
// budget, after which a CONTENTION error is returned. Any other error aborts
// immediately and is returned unchanged.
func (r *AtomicRunner) Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	backoff := retry.WithMaxRetries(
		uint64(r.maxAttempts-1),
		retry.WithJitter(r.baseBackoff/2, retry.WithCappedDuration(r.maxBackoff, retry.NewExponential(r.baseBackoff))),
	)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.tx.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if IsConflict(err) {
			if attempt < r.maxAttempts {
				if r.observer != nil {
					r.observer.ObserveRetry(op)
				}
				r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"op": op, "attempt": attempt}), "atomic unit conflicted, retrying")
			}
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil || !IsConflict(err) {
		return err
	}

	if r.observer != nil {
		r.observer.ObserveContention(op)
	}
	r.logg.Error(r.logg.WithFields(ctx, map[string]any{"op": op, "attempts": attempt}), "atomic unit exhausted retry budget", err)
	return pkgerrors.Wrap(pkgerrors.CodeContention, err, fmt.Sprintf("%s: retry budget exhausted", op)).
		WithDetails(map[string]any{"attempts": attempt})
}
