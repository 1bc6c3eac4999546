package eventhandler

import (
	"context"
	"fmt"

	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON GRADE RECORDED HANDLER
// Новая или изменённая оценка:
// 1. пересчёт оценки и GPA курса
// 2. пересчёт семестрового и накопительного GPA, цели по GPA
// 3. проверка достижений
// ═══════════════════════════════════════════════════════════════════════════

// OnGradeRecordedHandler обрабатывает grading.grade_recorded.
type OnGradeRecordedHandler struct {
	engine Engine
	log    *logger.Logger
}

// NewOnGradeRecordedHandler создаёт обработчик.
func NewOnGradeRecordedHandler(engine Engine, log *logger.Logger) *OnGradeRecordedHandler {
	return &OnGradeRecordedHandler{
		engine: engine,
		log:    log.With(logger.Component("on_grade_recorded")),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnGradeRecordedHandler) Handle(ctx context.Context, event shared.Event) error {
	courseID, err := shared.PayloadString(event, "course_id")
	if err != nil {
		return err
	}

	course, err := h.engine.RecomputeCourse(ctx, courseID)
	if err != nil {
		h.log.Error("course recompute failed", logger.CourseID(courseID), logger.Err(err))
		return fmt.Errorf("recompute course: %w", err)
	}

	if _, err := h.engine.RecomputeGPA(ctx, course.UserID); err != nil {
		h.log.Error("gpa recompute failed", logger.UserID(course.UserID), logger.Err(err))
		return fmt.Errorf("recompute gpa: %w", err)
	}

	return checkAchievements(ctx, h.engine, h.log, course.UserID)
}
