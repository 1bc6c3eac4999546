package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE COURSE COMMAND
// Refreshes calculated_course_grade and course_gpa from the raw grade rows.
// Running it twice on unchanged data stores the same values.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeCourseCommand identifies the course to recompute.
type RecomputeCourseCommand struct {
	CourseID string `validate:"required,uuid"`
}

// RecomputeCourseResult contains the stored values and the full breakdown.
type RecomputeCourseResult struct {
	CourseID    string
	UserID      string
	CourseGrade decimal.Decimal
	CourseGPA   *decimal.Decimal
	Breakdown   grading.Breakdown
}

// RecomputeCourseHandler handles RecomputeCourseCommand.
type RecomputeCourseHandler struct {
	rt *runtime
}

// Handle executes the command.
func (h *RecomputeCourseHandler) Handle(ctx context.Context, cmd RecomputeCourseCommand) (result *RecomputeCourseResult, err error) {
	ctx, span := startSpan(ctx, "recompute_course", attribute.String("course_id", cmd.CourseID))
	defer func() { endSpan(span, err) }()

	if err := validateCommand("RecomputeCourse", cmd); err != nil {
		return nil, err
	}

	err = h.rt.deps.UnitOfWork.Do(ctx, func(ctx context.Context) error {
		r, err := recomputeCourse(ctx, h.rt, cmd.CourseID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.rt.cacheBreakdown(ctx, result.CourseID, result.Breakdown)

	h.rt.log.Debug("course recomputed",
		logger.CourseID(result.CourseID),
		logger.String("course_grade", result.CourseGrade.StringFixed(2)),
	)
	return result, nil
}

// recomputeCourse loads the sheet and stores the recomputed columns within
// the caller's transaction.
func recomputeCourse(ctx context.Context, rt *runtime, courseID string) (*RecomputeCourseResult, error) {
	sheet, err := rt.deps.Courses.LoadSheet(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("recompute_course: load sheet: %w", err)
	}

	course, breakdown := grading.Recompute(*sheet)

	if err := rt.deps.Courses.SaveCalculated(ctx, course.ID, course.CalculatedCourseGrade, course.CourseGPA); err != nil {
		return nil, fmt.Errorf("recompute_course: save: %w", err)
	}

	return &RecomputeCourseResult{
		CourseID:    course.ID,
		UserID:      course.UserID,
		CourseGrade: course.CalculatedCourseGrade,
		CourseGPA:   course.CourseGPA,
		Breakdown:   breakdown,
	}, nil
}
