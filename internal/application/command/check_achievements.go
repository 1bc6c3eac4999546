package command

import (
	"context"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"go.opentelemetry.io/otel/attribute"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK AND AWARD ACHIEVEMENTS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CheckAchievementsCommand identifies the user.
type CheckAchievementsCommand struct {
	UserID string `validate:"required,uuid"`
}

// CheckAchievementsResult contains what the award run granted.
type CheckAchievementsResult struct {
	UserID            string
	NewAchievements   []achievement.Achievement
	PointsAwarded     int
	LevelUps          int
	NotificationsSent int
}

// CheckAchievementsHandler handles CheckAchievementsCommand.
type CheckAchievementsHandler struct {
	rt *runtime
}

// Handle executes the command.
func (h *CheckAchievementsHandler) Handle(ctx context.Context, cmd CheckAchievementsCommand) (result *CheckAchievementsResult, err error) {
	ctx, span := startSpan(ctx, "check_achievements", attribute.String("user_id", cmd.UserID))
	defer func() { endSpan(span, err) }()

	if err := validateCommand("CheckAndAwardAchievements", cmd); err != nil {
		return nil, err
	}

	res, err := h.rt.flow.Execute(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("achievements.awarded", len(res.NewAchievements)))

	return &CheckAchievementsResult{
		UserID:            cmd.UserID,
		NewAchievements:   res.NewAchievements,
		PointsAwarded:     res.PointsAwarded,
		LevelUps:          res.LevelUps,
		NotificationsSent: res.NotificationsSent,
	}, nil
}
