package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
)

// Ledger applies point awards to UserProgress. Every call must run inside a
// UnitOfWork: the progress row is read with a row lock, saved whole, and an
// activity log entry is appended in the same transaction.
type Ledger struct {
	progress progress.Repository
	activity progress.ActivityRepository
	now      Clock
	log      *logger.Logger
}

// NewLedger creates a ledger.
func NewLedger(progressRepo progress.Repository, activityRepo progress.ActivityRepository, now Clock, log *logger.Logger) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		progress: progressRepo,
		activity: activityRepo,
		now:      now,
		log:      log.With(logger.Component("ledger")),
	}
}

// LoadForUpdate returns the locked progress row. The repository creates the
// level 1 row of a new user before locking it, so every read-modify-write of
// one user's progress is serialised by the same row lock.
func (l *Ledger) LoadForUpdate(ctx context.Context, userID string) (*progress.UserProgress, error) {
	p, err := l.progress.GetForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ledger: load progress: %w", err)
	}
	return p, nil
}

// Award loads the user's progress and applies the award.
func (l *Ledger) Award(ctx context.Context, userID string, points int, activityType progress.ActivityType, out *Outbox) (*progress.UserProgress, progress.AwardResult, error) {
	if points < 0 {
		return nil, progress.AwardResult{}, shared.ErrNegativePoints
	}
	p, err := l.LoadForUpdate(ctx, userID)
	if err != nil {
		return nil, progress.AwardResult{}, err
	}
	res, err := l.Apply(ctx, p, points, activityType, out)
	if err != nil {
		return nil, progress.AwardResult{}, err
	}
	return p, res, nil
}

// Apply awards points to an already locked progress, saves it, logs the
// activity and queues the level-up notification when a threshold was crossed.
func (l *Ledger) Apply(ctx context.Context, p *progress.UserProgress, points int, activityType progress.ActivityType, out *Outbox) (progress.AwardResult, error) {
	res, err := p.AwardPoints(points)
	if err != nil {
		return progress.AwardResult{}, err
	}

	if err := l.progress.Save(ctx, p); err != nil {
		return progress.AwardResult{}, fmt.Errorf("ledger: save progress: %w", err)
	}

	entry := progress.NewActivityLog(p.UserID, activityType, points, l.now())
	if err := l.activity.Append(ctx, entry); err != nil {
		return progress.AwardResult{}, fmt.Errorf("ledger: append activity: %w", err)
	}

	if out != nil {
		out.AddEvent(shared.NewPointsAwardedEvent(p.UserID, points, p.TotalPoints.Int(), string(activityType)))
		if res.LeveledUp {
			out.AddLevelUp(p.UserID, res.NewLevel)
		}
	}

	if res.LeveledUp {
		l.log.Info("level up",
			logger.UserID(p.UserID),
			logger.LevelField(res.NewLevel.Int()),
			logger.Int("total_points", p.TotalPoints.Int()),
		)
	}

	return res, nil
}
