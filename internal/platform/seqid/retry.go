package seqid

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/db"
)

// Retrier reruns a unit of work that failed on a unique constraint. fn must
// regenerate its identifier on every call.
type Retrier struct {
	log     zerolog.Logger
	onRetry func(scope string)
}

// NewRetrier returns a Retrier. onRetry may be nil.
func NewRetrier(log zerolog.Logger, onRetry func(scope string)) *Retrier {
	return &Retrier{log: log, onRetry: onRetry}
}

// Do runs fn at most twice. A unique violation on the second attempt becomes
// an *apierror.ConflictError.
func (r *Retrier) Do(ctx context.Context, scope string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !db.IsUniqueViolation(err) {
		return err
	}

	r.log.Warn().
		Err(err).
		Str("scope", scope).
		Str("constraint", db.ConstraintName(err)).
		Msg("identifier collision, retrying")
	if r.onRetry != nil {
		r.onRetry(scope)
	}

	err = fn(ctx)
	if err == nil || !db.IsUniqueViolation(err) {
		return err
	}
	r.log.Error().
		Err(err).
		Str("scope", scope).
		Str("constraint", db.ConstraintName(err)).
		Msg("identifier collision after retry")
	return apierror.Conflict("could not allocate a unique %s identifier, please retry", scope)
}

// DoAdvancing is Do for units of work that draw their identifier from seq
// inside their own transaction. The failed attempt's increment rolls back with
// it, so before the second attempt the counter is advanced once outside any
// transaction to step past the colliding value.
func (r *Retrier) DoAdvancing(ctx context.Context, seq Sequencer, scope string, period int, fn func(ctx context.Context) error) error {
	label := scope
	if i := strings.IndexByte(scope, ':'); i >= 0 {
		label = scope[:i]
	}
	attempt := 0
	return r.Do(ctx, label, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			if _, err := seq.Next(ctx, scope, period); err != nil {
				return err
			}
		}
		return fn(ctx)
	})
}
