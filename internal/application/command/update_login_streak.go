package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/application/saga"
	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/alem-hub/gradebook/pkg/timeutil"
	"go.opentelemetry.io/otel/attribute"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE LOGIN STREAK COMMAND
// Records a login by calendar day in the configured time zone. The first
// login of a day appends a "login" activity entry; repeated logins on the
// same day leave the streak and the activity log unchanged.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateLoginStreakCommand contains the login to record.
type UpdateLoginStreakCommand struct {
	UserID string `validate:"required,uuid"`

	// At is the login instant. Zero means now.
	At time.Time
}

// StreakInfo describes the streak after the login.
type StreakInfo struct {
	UserID           string
	CurrentStreak    int
	PreviousStreak   int
	Extended         bool
	Broken           bool
	FirstLoginToday  bool
	LastActivityDate timeutil.Date
}

// UpdateLoginStreakHandler handles UpdateLoginStreakCommand.
type UpdateLoginStreakHandler struct {
	rt *runtime
}

// Handle executes the command.
func (h *UpdateLoginStreakHandler) Handle(ctx context.Context, cmd UpdateLoginStreakCommand) (info *StreakInfo, err error) {
	ctx, span := startSpan(ctx, "update_login_streak", attribute.String("user_id", cmd.UserID))
	defer func() { endSpan(span, err) }()

	if err := validateCommand("UpdateLoginStreak", cmd); err != nil {
		return nil, err
	}

	at := cmd.At
	if at.IsZero() {
		at = h.rt.now()
	}
	today := timeutil.DateOf(at)

	_, err = h.rt.transact(ctx, cmd.UserID, func(ctx context.Context, out *saga.Outbox) error {
		p, err := h.rt.ledger.LoadForUpdate(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		firstToday := p.LastActivityDate == nil || timeutil.DaysBetween(*p.LastActivityDate, today) != 0
		res := p.RecordLogin(today)

		if err := h.rt.deps.Progress.Save(ctx, p); err != nil {
			return fmt.Errorf("update_login_streak: save progress: %w", err)
		}

		if firstToday {
			entry := progress.NewActivityLog(cmd.UserID, progress.ActivityLogin, 0, at)
			if err := h.rt.deps.Activity.Append(ctx, entry); err != nil {
				return fmt.Errorf("update_login_streak: append activity: %w", err)
			}
		}

		out.AddEvent(shared.NewStreakUpdatedEvent(cmd.UserID, res.Streak, res.PreviousStreak, res.Broken))

		info = &StreakInfo{
			UserID:           cmd.UserID,
			CurrentStreak:    res.Streak,
			PreviousStreak:   res.PreviousStreak,
			Extended:         res.Extended,
			Broken:           res.Broken,
			FirstLoginToday:  firstToday,
			LastActivityDate: res.LastActivity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if info.Broken {
		h.rt.log.Info("login streak broken",
			logger.UserID(cmd.UserID),
			logger.Int("previous_streak", info.PreviousStreak),
		)
	}
	return info, nil
}
