package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/notification"
	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/alem-hub/gradebook/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Flow: Load Snapshot → Evaluate Unearned → Award (idempotent insert) →
//
//	Apply Points → Re-check on Level-Up → Commit → Dispatch Notifications
//
// The re-check after a level-up is a fixed-point loop: a new pass runs only
// when the previous pass leveled the user up, and every pass skips what was
// already owned or visited, so the loop ends once no award levels up.
// ══════════════════════════════════════════════════════════════════════════════

// AwardFlowStep represents a step in the award flow.
type AwardFlowStep string

const (
	StepLoadSnapshot AwardFlowStep = "load_snapshot"
	StepLoadCatalog  AwardFlowStep = "load_catalog"
	StepAward        AwardFlowStep = "award"
)

// AwardFlowResult contains the result of one award run.
type AwardFlowResult struct {
	UserID            string
	NewAchievements   []achievement.Achievement
	PointsAwarded     int
	LevelUps          int
	Passes            int
	NotificationsSent int
	ProcessedAt       time.Time
}

// HasNewAchievements returns true if any achievements were unlocked.
func (r *AwardFlowResult) HasNewAchievements() bool {
	return len(r.NewAchievements) > 0
}

// AwardFlowConfig contains configuration for the award flow.
type AwardFlowConfig struct {
	LockTTL time.Duration

	// LockWait controls how long a run waits for a lock held by another
	// instance. Its RetryIf is replaced; only a held lock is retried.
	LockWait retry.Policy

	EnableNotifications bool
}

// DefaultAwardFlowConfig returns default configuration.
func DefaultAwardFlowConfig() AwardFlowConfig {
	return AwardFlowConfig{
		LockTTL: 10 * time.Second,
		LockWait: retry.Policy{
			MaxAttempts:  8,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Jitter:       0.2,
		},
		EnableNotifications: true,
	}
}

// AwardFlowDeps groups the collaborators of the flow.
type AwardFlowDeps struct {
	UnitOfWork   UnitOfWork
	Lock         AwardLock // optional
	Achievements achievement.Repository
	Profiles     achievement.ProfileReader
	Courses      grading.CourseRepository
	Goals        goal.Repository
	Activity     progress.ActivityRepository
	Ledger       *Ledger
	Dispatcher   notification.Dispatcher
	Publisher    shared.EventPublisher // optional
	Clock        Clock
}

// AchievementFlowSaga evaluates unearned achievements and awards the
// satisfied ones, feeding their points back into the ledger.
type AchievementFlowSaga struct {
	deps   AwardFlowDeps
	config AwardFlowConfig
	now    Clock
	log    *logger.Logger
}

// NewAchievementFlowSaga creates the saga.
func NewAchievementFlowSaga(deps AwardFlowDeps, config AwardFlowConfig, log *logger.Logger) *AchievementFlowSaga {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultAwardFlowConfig().LockTTL
	}
	if config.LockWait.MaxAttempts <= 0 {
		config.LockWait = DefaultAwardFlowConfig().LockWait
	}
	config.LockWait.RetryIf = func(err error) bool {
		return errors.Is(err, shared.ErrLockNotAcquired)
	}
	return &AchievementFlowSaga{
		deps:   deps,
		config: config,
		now:    now,
		log:    log.With(logger.Component("award_flow")),
	}
}

// Execute runs a full award pass for the user: lock, transaction, commit,
// then post-commit dispatch.
func (s *AchievementFlowSaga) Execute(ctx context.Context, userID string) (*AwardFlowResult, error) {
	out := NewOutbox()
	var result *AwardFlowResult

	err := s.Locked(ctx, userID, func(ctx context.Context) error {
		return s.deps.UnitOfWork.Do(ctx, func(ctx context.Context) error {
			out.Reset()
			r, err := s.RunInTx(ctx, userID, out)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	result.NotificationsSent = s.Dispatch(ctx, out)
	return result, nil
}

// Locked runs fn while holding the per-user award lock. A lock held by
// another run is waited for with backoff; if it is still held after the last
// attempt fn does not run and shared.ErrLockNotAcquired is returned. When the
// lock store itself fails fn runs anyway: the row lock on user_progress and
// the unique (user, achievement) constraint keep awards single.
func (s *AchievementFlowSaga) Locked(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	if s.deps.Lock == nil {
		return fn(ctx)
	}

	key := "award:" + userID
	var release func(context.Context) error
	err := retry.Do(ctx, s.config.LockWait, func(ctx context.Context) error {
		r, err := s.deps.Lock.Acquire(ctx, key, s.config.LockTTL)
		if err != nil {
			return err
		}
		release = r
		return nil
	})
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, shared.ErrLockNotAcquired):
		return fmt.Errorf("award lock for user %s: %w", userID, err)
	case err != nil:
		s.log.Warn("award lock unavailable, relying on database row lock",
			logger.UserID(userID),
			logger.Err(err),
		)
		return fn(ctx)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("award lock release failed", logger.UserID(userID), logger.Err(err))
		}
	}()

	return fn(ctx)
}

// Dispatch flushes the outbox. Call it only after the transaction committed.
func (s *AchievementFlowSaga) Dispatch(ctx context.Context, out *Outbox) int {
	if !s.config.EnableNotifications {
		return out.Flush(ctx, nil, s.deps.Publisher, s.log)
	}
	return out.Flush(ctx, s.deps.Dispatcher, s.deps.Publisher, s.log)
}

// RunInTx evaluates and awards within the caller's transaction. Notifications
// are queued on out.
func (s *AchievementFlowSaga) RunInTx(ctx context.Context, userID string, out *Outbox) (*AwardFlowResult, error) {
	result := &AwardFlowResult{UserID: userID}

	snap, p, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, s.wrapError(StepLoadSnapshot, userID, err)
	}

	catalog, err := s.deps.Achievements.ListActive(ctx)
	if err != nil {
		return nil, s.wrapError(StepLoadCatalog, userID, err)
	}

	visited := make(map[string]struct{}, len(catalog))

	for {
		result.Passes++
		leveledUp := false

		for _, a := range catalog {
			if _, seen := visited[a.ID]; seen || snap.Owns(a.ID) {
				continue
			}

			ok, err := achievement.IsEligible(a, snap, s.now())
			if err != nil {
				visited[a.ID] = struct{}{}
				s.log.Warn("achievement criteria skipped",
					logger.UserID(userID),
					logger.AchievementCode(a.Code),
					logger.Err(err),
				)
				continue
			}
			if !ok {
				continue
			}
			visited[a.ID] = struct{}{}

			awarded, res, err := s.award(ctx, snap, p, a, out)
			if err != nil {
				return nil, s.wrapError(StepAward, userID, err)
			}
			if !awarded {
				continue
			}

			result.NewAchievements = append(result.NewAchievements, a)
			result.PointsAwarded += a.PointsValue + res.Bonus.Int()
			if res.LeveledUp {
				result.LevelUps++
				leveledUp = true
			}
		}

		if !leveledUp {
			break
		}
	}

	result.ProcessedAt = s.now().UTC()
	if result.HasNewAchievements() {
		s.log.Info("achievements awarded",
			logger.UserID(userID),
			logger.Int("count", len(result.NewAchievements)),
			logger.Int("passes", result.Passes),
		)
	}
	return result, nil
}

// award inserts the user achievement and applies its points. awarded is
// false when the row already existed, in which case no points are granted.
func (s *AchievementFlowSaga) award(ctx context.Context, snap *achievement.Snapshot, p *progress.UserProgress, a achievement.Achievement, out *Outbox) (bool, progress.AwardResult, error) {
	ua := achievement.NewUserAchievement(snap.UserID, a.ID, s.now())

	inserted, err := s.deps.Achievements.Award(ctx, ua)
	if err != nil {
		return false, progress.AwardResult{}, fmt.Errorf("insert user achievement %s: %w", a.Code, err)
	}
	owned := achievement.Owned{AchievementID: a.ID, Category: a.Category, EarnedAt: ua.EarnedAt}
	if !inserted {
		snap.RecordAward(a, owned, *p)
		return false, progress.AwardResult{}, nil
	}

	res, err := s.deps.Ledger.Apply(ctx, p, a.PointsValue, progress.ActivityAchievement, out)
	if err != nil {
		return false, progress.AwardResult{}, fmt.Errorf("apply points for %s: %w", a.Code, err)
	}

	snap.RecordAward(a, owned, *p)
	out.AddAchievement(snap.UserID, a)
	return true, res, nil
}

// LoadSnapshot builds the evaluation snapshot. The progress row is locked
// and returned so awards mutate the same aggregate.
func (s *AchievementFlowSaga) LoadSnapshot(ctx context.Context, userID string) (*achievement.Snapshot, *progress.UserProgress, error) {
	p, err := s.deps.Ledger.LoadForUpdate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	grades, err := s.deps.Courses.ListGradesByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list grades: %w", err)
	}
	courses, err := s.deps.Courses.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list courses: %w", err)
	}
	goals, err := s.deps.Goals.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list goals: %w", err)
	}
	activityCount, err := s.deps.Activity.CountByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("count activity: %w", err)
	}
	owned, err := s.deps.Achievements.ListOwned(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list owned achievements: %w", err)
	}

	var profile achievement.UserProfile
	if s.deps.Profiles != nil {
		pr, err := s.deps.Profiles.GetProfile(ctx, userID)
		switch {
		case err == nil:
			profile = *pr
		case errors.Is(err, shared.ErrNotFound):
			// profile_complete и years_active просто не сработают
		default:
			return nil, nil, fmt.Errorf("get profile: %w", err)
		}
	}

	snap := &achievement.Snapshot{
		UserID:        userID,
		Progress:      *p,
		Grades:        grades,
		Goals:         goals,
		ActivityCount: activityCount,
		Profile:       profile,
		Owned:         owned,
		CumulativeGPA: grading.CumulativeGPA(courses),
	}
	if term, ok := grading.CurrentTerm(courses); ok {
		snap.SemesterGPA = grading.SemesterGPA(courses, term.Semester, term.AcademicYear)
	}

	return snap, p, nil
}

// wrapError wraps an error with saga context.
func (s *AchievementFlowSaga) wrapError(step AwardFlowStep, userID string, err error) error {
	return &AwardFlowError{
		Step:   step,
		UserID: userID,
		Cause:  err,
	}
}

// AwardFlowError represents an error during the award flow.
type AwardFlowError struct {
	Step   AwardFlowStep
	UserID string
	Cause  error
}

// Error implements the error interface.
func (e *AwardFlowError) Error() string {
	return fmt.Sprintf("award flow failed at step '%s' for user %s: %v", e.Step, e.UserID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *AwardFlowError) Unwrap() error {
	return e.Cause
}
