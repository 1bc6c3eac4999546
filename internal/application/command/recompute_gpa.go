package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/gradebook/internal/application/saga"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE GPA COMMAND
// Computes the semester and cumulative GPA of a user and marks pending GPA
// goals achieved once their target is reached.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeGPACommand identifies the user.
type RecomputeGPACommand struct {
	UserID string `validate:"required,uuid"`
}

// RecomputeGPAResult contains the GPAs and the goals achieved by this run.
type RecomputeGPAResult struct {
	UserID        string
	Term          *shared.Term // nil when the user has no active course
	SemesterGPA   decimal.Decimal
	CumulativeGPA decimal.Decimal
	GoalsAchieved []goal.AcademicGoal
}

// RecomputeGPAHandler handles RecomputeGPACommand.
type RecomputeGPAHandler struct {
	rt *runtime
}

// Handle executes the command.
func (h *RecomputeGPAHandler) Handle(ctx context.Context, cmd RecomputeGPACommand) (result *RecomputeGPAResult, err error) {
	ctx, span := startSpan(ctx, "recompute_gpa", attribute.String("user_id", cmd.UserID))
	defer func() { endSpan(span, err) }()

	if err := validateCommand("RecomputeGPA", cmd); err != nil {
		return nil, err
	}

	_, err = h.rt.transact(ctx, cmd.UserID, func(ctx context.Context, out *saga.Outbox) error {
		r, err := recomputeGPA(ctx, h.rt, cmd.UserID, out)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.rt.log.Debug("gpa recomputed",
		logger.UserID(cmd.UserID),
		logger.String("cumulative_gpa", result.CumulativeGPA.StringFixed(2)),
		logger.Int("goals_achieved", len(result.GoalsAchieved)),
	)
	return result, nil
}

// recomputeGPA runs inside the caller's transaction.
func recomputeGPA(ctx context.Context, rt *runtime, userID string, out *saga.Outbox) (*RecomputeGPAResult, error) {
	courses, err := rt.deps.Courses.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recompute_gpa: list courses: %w", err)
	}

	result := &RecomputeGPAResult{
		UserID:        userID,
		CumulativeGPA: grading.CumulativeGPA(courses),
	}
	if term, ok := grading.CurrentTerm(courses); ok {
		result.Term = &term
		result.SemesterGPA = grading.SemesterGPA(courses, term.Semester, term.AcademicYear)
	}

	goals, err := rt.deps.Goals.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recompute_gpa: list goals: %w", err)
	}

	achieved, err := applyGoalChanges(ctx, rt, userID, goal.EvaluateGPA(goals, courses, rt.now()), nil, out)
	if err != nil {
		return nil, err
	}
	result.GoalsAchieved = achieved
	return result, nil
}

// applyGoalChanges stores every changed goal and queues a notification for
// the newly achieved ones. It returns the newly achieved goals.
func applyGoalChanges(ctx context.Context, rt *runtime, userID string, changes []goal.Change, course *grading.Course, out *saga.Outbox) ([]goal.AcademicGoal, error) {
	var achieved []goal.AcademicGoal
	for _, c := range changes {
		if err := rt.deps.Goals.UpdateStatus(ctx, c.Goal); err != nil {
			return nil, fmt.Errorf("update goal %s: %w", c.Goal.ID, err)
		}
		if c.NewlyAchieved {
			achieved = append(achieved, c.Goal)
			out.AddGoal(userID, c.Goal, course)
		}
	}
	return achieved, nil
}
