package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER PROGRESS QUERY
// Текущий уровень, очки, звание и серия входов пользователя.
// Пользователь без строки прогресса видит начальное состояние (уровень 1).
// ══════════════════════════════════════════════════════════════════════════════

// GetUserProgressQuery - параметры запроса.
type GetUserProgressQuery struct {
	UserID string
}

// UserProgressDTO - прогресс пользователя.
type UserProgressDTO struct {
	UserID            string `json:"user_id"`
	TotalPoints       int    `json:"total_points"`
	CurrentLevel      int    `json:"current_level"`
	RankTitle         string `json:"rank_title"`
	PointsToNextLevel int    `json:"points_to_next_level"`
	StreakDays        int    `json:"streak_days"`
	LastActivityDate  string `json:"last_activity_date,omitempty"`
}

// GetUserProgressHandler обрабатывает запрос.
type GetUserProgressHandler struct {
	progress progress.Repository
}

// NewGetUserProgressHandler создаёт обработчик.
func NewGetUserProgressHandler(repo progress.Repository) *GetUserProgressHandler {
	return &GetUserProgressHandler{progress: repo}
}

// Handle выполняет запрос.
func (h *GetUserProgressHandler) Handle(ctx context.Context, q GetUserProgressQuery) (*UserProgressDTO, error) {
	if q.UserID == "" {
		return nil, errors.New("get_user_progress: user_id is required")
	}

	p, err := h.progress.Get(ctx, q.UserID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		p = progress.NewUserProgress(q.UserID)
	case err != nil:
		return nil, fmt.Errorf("get_user_progress: %w", err)
	}

	dto := &UserProgressDTO{
		UserID:            p.UserID,
		TotalPoints:       p.TotalPoints.Int(),
		CurrentLevel:      p.CurrentLevel.Int(),
		RankTitle:         p.CurrentLevel.Title(),
		PointsToNextLevel: p.PointsToNextLevel,
		StreakDays:        p.StreakDays,
	}
	if p.LastActivityDate != nil {
		dto.LastActivityDate = p.LastActivityDate.String()
	}
	return dto, nil
}
