package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/buntercodes/vid-gen/internal/logging"
	"github.com/buntercodes/vid-gen/pkg/models"
)

// Service owns the weekly reset policy and the allowance override policy.
// It holds no state of its own: every call re-reads the store, so admission
// decisions stay correct across process restarts and mid-week allowance
// edits.
type Service struct {
	store          Store
	defaultCredits int64
	now            func() time.Time
	logger         *logging.Logger
}

// NewService creates a quota service. defaultCredits is the weekly allowance
// applied to users without an administrative override.
func NewService(store Store, defaultCredits int64, logger *logging.Logger) *Service {
	return &Service{
		store:          store,
		defaultCredits: defaultCredits,
		now:            time.Now,
		logger:         logger,
	}
}

// GetQuota returns the user's usage and resolved allowance for the current
// week. A record from an expired week (or no record at all) rolls over to a
// fresh zero count before it is returned.
//
// Not a pure read: a missing allowance override is initialized to the
// default so administrators can discover and edit it, and rollovers persist
// the fresh record.
func (s *Service) GetQuota(ctx context.Context, userID string) (*models.QuotaSnapshot, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	currentWeek := WeekStart(s.now())

	total, err := s.readOrInitAllowance(ctx, userID)
	if err != nil {
		return nil, err
	}

	usage, err := s.store.ReadUsage(ctx, userID)
	if err != nil {
		return nil, err
	}

	if usage == nil || usage.WeekStart != currentWeek {
		usage = &models.UsageRecord{WeekStart: currentWeek, VideosUsed: 0}
		if err := s.store.WriteUsage(ctx, userID, usage); err != nil {
			return nil, err
		}
	}

	return &models.QuotaSnapshot{
		VideosUsed:  usage.VideosUsed,
		VideosTotal: total,
		WeekStart:   currentWeek,
	}, nil
}

// CheckQuota reports whether the user may start another generation. The
// answer is advisory, not a reservation: two concurrent callers can both
// pass before either records usage. Use ReserveUsage for hard enforcement.
func (s *Service) CheckQuota(ctx context.Context, userID string) (bool, error) {
	snapshot, err := s.GetQuota(ctx, userID)
	if err != nil {
		return false, err
	}

	allowed := snapshot.VideosUsed < snapshot.VideosTotal
	if s.logger != nil {
		s.logger.LogQuotaDecision(userID, snapshot.WeekStart, snapshot.VideosUsed, snapshot.VideosTotal, allowed)
	}
	return allowed, nil
}

// RecordUsage charges one generation against the week current at record
// time. The increment is atomic at the store and folds in the rollover
// check, so a charge after weeks of inactivity resets to 1 instead of adding
// to a stale count. Call only after the generation has succeeded.
func (s *Service) RecordUsage(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}

	currentWeek := WeekStart(s.now())
	count, err := s.store.IncrementUsage(ctx, userID, currentWeek, 1)
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.WithUserID(userID).Debugf("usage recorded: %d used in week %s", count, currentWeek)
	}
	return nil
}

// ReserveUsage is the strict admission variant: it conditionally increments
// the counter, granting the slot only when the resulting count stays within
// the allowance. A granted reservation that goes unused must be returned via
// ReleaseUsage.
func (s *Service) ReserveUsage(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrInvalidUser
	}

	currentWeek := WeekStart(s.now())
	total, err := s.readOrInitAllowance(ctx, userID)
	if err != nil {
		return false, err
	}

	count, granted, err := s.store.ReserveUsage(ctx, userID, currentWeek, total)
	if err != nil {
		return false, err
	}

	if s.logger != nil {
		s.logger.LogQuotaDecision(userID, currentWeek, count, total, granted)
	}
	return granted, nil
}

// ReleaseUsage returns one reserved slot for the current week.
func (s *Service) ReleaseUsage(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	return s.store.ReleaseUsage(ctx, userID, WeekStart(s.now()))
}

// SetAllowance sets the user's weekly allowance override. Zero is a valid
// value and blocks all generations for the user.
func (s *Service) SetAllowance(ctx context.Context, userID string, credits int64) error {
	if userID == "" {
		return ErrInvalidUser
	}
	if credits < 0 {
		return fmt.Errorf("allowance must be non-negative, got %d", credits)
	}
	return s.store.WriteAllowance(ctx, userID, credits)
}

// Allowance returns the user's resolved weekly allowance, initializing the
// override to the default when absent.
func (s *Service) Allowance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidUser
	}
	return s.readOrInitAllowance(ctx, userID)
}

// readOrInitAllowance resolves the user's allowance. The write-on-read for
// missing overrides is deliberate: it makes the value visible to the
// administrative surface without a separate provisioning step per user.
func (s *Service) readOrInitAllowance(ctx context.Context, userID string) (int64, error) {
	credits, present, err := s.store.ReadAllowance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if present {
		return credits, nil
	}

	if err := s.store.WriteAllowance(ctx, userID, s.defaultCredits); err != nil {
		return 0, err
	}
	return s.defaultCredits, nil
}
