// Package eventhandler содержит обработчики входящих событий: записанная
// оценка, завершение или повторное открытие курса, вход пользователя.
// Каждое событие запускает соответствующие операции движка.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/application/command"
	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
)

// Engine - операции движка, которые вызывают обработчики.
// Реализуется *command.Engine.
type Engine interface {
	RecomputeCourse(ctx context.Context, courseID string) (*command.RecomputeCourseResult, error)
	RecomputeGPA(ctx context.Context, userID string) (*command.RecomputeGPAResult, error)
	CheckAndAwardAchievements(ctx context.Context, userID string) ([]achievement.Achievement, error)
	UpdateLoginStreak(ctx context.Context, userID string, at time.Time) (*command.StreakInfo, error)
	SetCourseCompletion(ctx context.Context, courseID string, completed bool) (*command.SetCourseCompletionResult, error)
}

var _ Engine = (*command.Engine)(nil)

// Register подписывает все обработчики на шину.
func Register(sub shared.EventSubscriber, engine Engine, log *logger.Logger) error {
	grades := NewOnGradeRecordedHandler(engine, log)
	courses := NewOnCourseCompletionHandler(engine, log)
	logins := NewOnUserLoggedInHandler(engine, log)

	subscriptions := []struct {
		eventType shared.EventType
		handler   shared.EventHandler
	}{
		{shared.EventGradeRecorded, grades.Handle},
		{shared.EventCourseCompleted, courses.Handle},
		{shared.EventCourseReopened, courses.Handle},
		{shared.EventUserLoggedIn, logins.Handle},
	}

	for _, s := range subscriptions {
		if err := sub.Subscribe(s.eventType, withEventLogger(log, s.handler)); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.eventType, err)
		}
	}
	return nil
}

// withEventLogger кладёт в контекст логгер с типом и агрегатом события,
// чтобы репозитории и саги писали логи с той же привязкой.
func withEventLogger(log *logger.Logger, h shared.EventHandler) shared.EventHandler {
	return func(ctx context.Context, event shared.Event) error {
		scoped := log.With(
			logger.Operation("handle_event"),
			logger.EventType(string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
		)
		return h(logger.WithContext(ctx, scoped), event)
	}
}

// checkAchievements запускает проверку достижений. Ошибка логируется и
// возвращается: основная операция уже зафиксирована.
func checkAchievements(ctx context.Context, engine Engine, log *logger.Logger, userID string) error {
	awarded, err := engine.CheckAndAwardAchievements(ctx, userID)
	if err != nil {
		log.Error("achievement check failed", logger.UserID(userID), logger.Err(err))
		return fmt.Errorf("check achievements: %w", err)
	}
	if len(awarded) > 0 {
		log.Info("achievements unlocked", logger.UserID(userID), logger.Int("count", len(awarded)))
	}
	return nil
}
