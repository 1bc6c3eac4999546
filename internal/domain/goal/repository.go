package goal

import "context"

// Repository - доступ к целям.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]AcademicGoal, error)

	// UpdateStatus сохраняет IsAchieved и AchievedDate.
	// Возвращает shared.ErrGoalNotFound, если цели нет.
	UpdateStatus(ctx context.Context, g AcademicGoal) error
}
