package eventhandler

import (
	"context"
	"fmt"

	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON COURSE COMPLETED / REOPENED HANDLER
// Завершение курса решает цели COURSE_GRADE, повторное открытие
// возвращает их в ожидание. Достижения проверяются внутри команды.
// ═══════════════════════════════════════════════════════════════════════════

// OnCourseCompletionHandler обрабатывает grading.course_completed и
// grading.course_reopened.
type OnCourseCompletionHandler struct {
	engine Engine
	log    *logger.Logger
}

// NewOnCourseCompletionHandler создаёт обработчик.
func NewOnCourseCompletionHandler(engine Engine, log *logger.Logger) *OnCourseCompletionHandler {
	return &OnCourseCompletionHandler{
		engine: engine,
		log:    log.With(logger.Component("on_course_completion")),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnCourseCompletionHandler) Handle(ctx context.Context, event shared.Event) error {
	var completed bool
	switch event.EventType() {
	case shared.EventCourseCompleted:
		completed = true
	case shared.EventCourseReopened:
		completed = false
	default:
		h.log.Warn("unexpected event type", logger.EventType(string(event.EventType())))
		return nil
	}

	courseID, err := shared.PayloadString(event, "course_id")
	if err != nil {
		return err
	}

	res, err := h.engine.SetCourseCompletion(ctx, courseID, completed)
	if err != nil {
		h.log.Error("course completion update failed",
			logger.CourseID(courseID),
			logger.Bool("completed", completed),
			logger.Err(err),
		)
		return fmt.Errorf("set course completion: %w", err)
	}

	h.log.Info("course completion processed",
		logger.CourseID(courseID),
		logger.Bool("completed", completed),
		logger.Int("goals_achieved", len(res.GoalsAchieved)),
	)
	return nil
}
