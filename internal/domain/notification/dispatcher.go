package notification

import (
	"context"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/shared"
)

// Dispatcher отправляет уведомления движка. Вызывается только после
// коммита транзакции; ошибки логируются вызывающим и не влияют на результат
// операции.
type Dispatcher interface {
	SendAchievementNotification(ctx context.Context, userID string, a achievement.Achievement) error
	SendLevelUpNotification(ctx context.Context, userID string, newLevel shared.Level, rankTitle string) error
	SendGoalAchievementNotification(ctx context.Context, userID string, g goal.AcademicGoal, course *grading.Course) error
}

// Sender доставляет готовое уведомление в один канал.
type Sender interface {
	Deliver(ctx context.Context, channel ChannelType, n Notification) error
}
