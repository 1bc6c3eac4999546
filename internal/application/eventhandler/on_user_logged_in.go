package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON USER LOGGED IN HANDLER
// Вход обновляет серию и журнал активности, затем проверяются достижения
// (total_login_days, streak_days).
// ═══════════════════════════════════════════════════════════════════════════

// OnUserLoggedInHandler обрабатывает activity.user_logged_in.
type OnUserLoggedInHandler struct {
	engine Engine
	log    *logger.Logger
}

// NewOnUserLoggedInHandler создаёт обработчик.
func NewOnUserLoggedInHandler(engine Engine, log *logger.Logger) *OnUserLoggedInHandler {
	return &OnUserLoggedInHandler{
		engine: engine,
		log:    log.With(logger.Component("on_user_logged_in")),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnUserLoggedInHandler) Handle(ctx context.Context, event shared.Event) error {
	userID, err := shared.PayloadString(event, "user_id")
	if err != nil {
		return err
	}

	// Без времени входа считаем, что вход произошёл сейчас.
	var at time.Time
	if raw, err := shared.PayloadString(event, "logged_in_at"); err == nil {
		parsed, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			h.log.Warn("bad logged_in_at, using now", logger.UserID(userID), logger.String("value", raw))
		} else {
			at = parsed
		}
	}

	streak, err := h.engine.UpdateLoginStreak(ctx, userID, at)
	if err != nil {
		h.log.Error("login streak update failed", logger.UserID(userID), logger.Err(err))
		return fmt.Errorf("update login streak: %w", err)
	}

	h.log.Debug("login recorded",
		logger.UserID(userID),
		logger.Int("streak", streak.CurrentStreak),
		logger.Bool("broken", streak.Broken),
	)

	return checkAchievements(ctx, h.engine, h.log, userID)
}
