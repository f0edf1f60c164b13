// Package quota implements weekly credit accounting for video generations.
// Usage is tracked per user against Monday-anchored accounting weeks; the
// allowance for a week is a per-user override when one exists, otherwise a
// configured default.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/buntercodes/vid-gen/pkg/models"
)

var (
	// ErrStoreUnavailable marks transient store failures. It is propagated
	// to callers untranslated and never coerced to an allow or deny.
	ErrStoreUnavailable = errors.New("quota store unavailable")

	// ErrQuotaExceeded is the admission refusal, non-retryable until the
	// next week or an administrative override.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrInvalidUser is returned when an operation is invoked without a
	// resolvable user identifier.
	ErrInvalidUser = errors.New("invalid user id")
)

// Store is the durable key-value persistence consumed by Service. Absence of
// a record is reported as a nil/false result, never as an error; every
// failure wraps ErrStoreUnavailable.
type Store interface {
	// ReadUsage returns the stored usage record, or nil when absent.
	ReadUsage(ctx context.Context, userID string) (*models.UsageRecord, error)

	// WriteUsage replaces the stored usage record.
	WriteUsage(ctx context.Context, userID string, rec *models.UsageRecord) error

	// IncrementUsage atomically adds amount to the counter and stamps the
	// record with weekStart. A record belonging to an older week resets to
	// amount instead of adding to the stale count. Returns the new count.
	IncrementUsage(ctx context.Context, userID, weekStart string, amount int64) (int64, error)

	// ReserveUsage is the conditional variant of IncrementUsage: the
	// counter is incremented by one only when the resulting count stays
	// within limit. Returns the current count and whether the reservation
	// was granted.
	ReserveUsage(ctx context.Context, userID, weekStart string, limit int64) (int64, bool, error)

	// ReleaseUsage undoes one reserved slot for the given week, flooring
	// the counter at zero. A record from another week is left untouched.
	ReleaseUsage(ctx context.Context, userID, weekStart string) error

	// ReadAllowance returns the per-user allowance override and whether
	// one is present.
	ReadAllowance(ctx context.Context, userID string) (int64, bool, error)

	// WriteAllowance sets the per-user allowance override.
	WriteAllowance(ctx context.Context, userID string, credits int64) error
}

// wrapUnavailable marks a store failure as a StoreUnavailable condition
// while preserving the underlying cause.
func wrapUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
