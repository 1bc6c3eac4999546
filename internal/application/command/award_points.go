package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/gradebook/internal/application/saga"
	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD POINTS COMMAND
// Adds points to a user's progress. A level-up re-runs the achievement check
// in the same transaction, since level-based achievements may now apply.
// ══════════════════════════════════════════════════════════════════════════════

// AwardPointsCommand contains the award to apply.
type AwardPointsCommand struct {
	UserID       string `validate:"required,uuid"`
	Points       int
	ActivityType progress.ActivityType `validate:"required"`
}

// AwardPointsResult contains the progress after the award.
type AwardPointsResult struct {
	Progress        progress.UserProgress
	LeveledUp       bool
	NewLevel        shared.Level
	NewAchievements []achievement.Achievement
}

// AwardPointsHandler handles AwardPointsCommand.
type AwardPointsHandler struct {
	rt *runtime
}

// Handle executes the command.
func (h *AwardPointsHandler) Handle(ctx context.Context, cmd AwardPointsCommand) (result *AwardPointsResult, err error) {
	ctx, span := startSpan(ctx, "award_points",
		attribute.String("user_id", cmd.UserID),
		attribute.Int("points", cmd.Points),
	)
	defer func() { endSpan(span, err) }()

	if err := validateCommand("AwardPoints", cmd); err != nil {
		return nil, err
	}
	if !cmd.ActivityType.IsValid() {
		return nil, shared.NewDomainError("command", "AwardPoints", shared.ErrInvalidInput,
			fmt.Sprintf("unknown activity type %q", cmd.ActivityType))
	}
	if cmd.Points < 0 {
		return nil, shared.ErrNegativePoints
	}

	_, err = h.rt.transact(ctx, cmd.UserID, func(ctx context.Context, out *saga.Outbox) error {
		p, res, err := h.rt.ledger.Award(ctx, cmd.UserID, cmd.Points, cmd.ActivityType, out)
		if err != nil {
			return err
		}

		result = &AwardPointsResult{
			LeveledUp: res.LeveledUp,
			NewLevel:  res.NewLevel,
		}

		if res.LeveledUp {
			flowRes, err := h.rt.flow.RunInTx(ctx, cmd.UserID, out)
			if err != nil {
				return err
			}
			result.NewAchievements = flowRes.NewAchievements
			current, err := h.rt.ledger.LoadForUpdate(ctx, cmd.UserID)
			if err != nil {
				return err
			}
			p = current
		}

		result.Progress = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
