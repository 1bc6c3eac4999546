package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/gradebook/internal/application/saga"
	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET COURSE COMPLETION COMMAND
// Flow: mark course → recompute grade → decide course goals → GPA goals →
//       achievements, all in one transaction; notifications after commit.
//
// Completing a course decides its COURSE_GRADE goals (true or false).
// Reopening returns them to pending.
// ══════════════════════════════════════════════════════════════════════════════

// SetCourseCompletionCommand contains the new completion state.
type SetCourseCompletionCommand struct {
	CourseID  string `validate:"required,uuid"`
	Completed bool
}

// SetCourseCompletionResult describes what changed.
type SetCourseCompletionResult struct {
	Course          grading.Course
	Breakdown       grading.Breakdown
	GoalChanges     []goal.Change
	GoalsAchieved   []goal.AcademicGoal
	NewAchievements []achievement.Achievement
}

// SetCourseCompletionHandler handles SetCourseCompletionCommand.
type SetCourseCompletionHandler struct {
	rt *runtime
}

// Handle executes the command.
func (h *SetCourseCompletionHandler) Handle(ctx context.Context, cmd SetCourseCompletionCommand) (result *SetCourseCompletionResult, err error) {
	ctx, span := startSpan(ctx, "set_course_completion",
		attribute.String("course_id", cmd.CourseID),
		attribute.Bool("completed", cmd.Completed),
	)
	defer func() { endSpan(span, err) }()

	if err := validateCommand("SetCourseCompletion", cmd); err != nil {
		return nil, err
	}

	course, err := h.rt.deps.Courses.GetCourse(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("set_course_completion: get course: %w", err)
	}
	userID := course.UserID

	_, err = h.rt.transact(ctx, userID, func(ctx context.Context, out *saga.Outbox) error {
		r, err := h.apply(ctx, userID, cmd, out)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.rt.cacheBreakdown(ctx, cmd.CourseID, result.Breakdown)

	h.rt.log.Info("course completion updated",
		logger.UserID(userID),
		logger.CourseID(cmd.CourseID),
		logger.Bool("completed", cmd.Completed),
		logger.Int("goal_changes", len(result.GoalChanges)),
		logger.Int("new_achievements", len(result.NewAchievements)),
	)
	return result, nil
}

func (h *SetCourseCompletionHandler) apply(ctx context.Context, userID string, cmd SetCourseCompletionCommand, out *saga.Outbox) (*SetCourseCompletionResult, error) {
	if err := h.rt.deps.Courses.SetCompleted(ctx, cmd.CourseID, cmd.Completed); err != nil {
		return nil, fmt.Errorf("set_course_completion: mark course: %w", err)
	}

	recomputed, err := recomputeCourse(ctx, h.rt, cmd.CourseID)
	if err != nil {
		return nil, err
	}

	reloaded, err := h.rt.deps.Courses.GetCourse(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("set_course_completion: reload course: %w", err)
	}
	course := *reloaded
	course.IsCompleted = cmd.Completed
	course.CalculatedCourseGrade = recomputed.CourseGrade
	course.CourseGPA = recomputed.CourseGPA

	goals, err := h.rt.deps.Goals.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("set_course_completion: list goals: %w", err)
	}

	var changes []goal.Change
	if cmd.Completed {
		changes = goal.EvaluateCourseCompletion(goals, course, h.rt.now())
	} else {
		changes = goal.EvaluateCourseReopened(goals, cmd.CourseID)
	}

	achieved, err := applyGoalChanges(ctx, h.rt, userID, changes, &course, out)
	if err != nil {
		return nil, err
	}

	gpa, err := recomputeGPA(ctx, h.rt, userID, out)
	if err != nil {
		return nil, err
	}

	flowRes, err := h.rt.flow.RunInTx(ctx, userID, out)
	if err != nil {
		return nil, err
	}

	return &SetCourseCompletionResult{
		Course:          course,
		Breakdown:       recomputed.Breakdown,
		GoalChanges:     changes,
		GoalsAchieved:   append(achieved, gpa.GoalsAchieved...),
		NewAchievements: flowRes.NewAchievements,
	}, nil
}
