package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/shared"
)

// GoalRepository implements goal.Repository for PostgreSQL.
type GoalRepository struct {
	conn *Connection
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection) *GoalRepository {
	return &GoalRepository{conn: conn}
}

// ListByUser returns all goals of a user.
func (r *GoalRepository) ListByUser(ctx context.Context, userID string) ([]goal.AcademicGoal, error) {
	query := `
		SELECT id, user_id, goal_type, target_value, course_id, semester, academic_year,
			   is_achieved, achieved_date, created_at
		FROM academic_goals
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []goal.AcademicGoal
	for rows.Next() {
		var g goal.AcademicGoal
		var goalType, semester, year string
		err := rows.Scan(
			&g.ID,
			&g.UserID,
			&goalType,
			&g.TargetValue,
			&g.CourseID,
			&semester,
			&year,
			&g.IsAchieved,
			&g.AchievedDate,
			&g.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		g.GoalType = goal.GoalType(goalType)
		g.Semester = shared.Semester(semester)
		g.AcademicYear = shared.AcademicYear(year)
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goals: %w", err)
	}

	return goals, nil
}

// UpdateStatus stores IsAchieved and AchievedDate.
func (r *GoalRepository) UpdateStatus(ctx context.Context, g goal.AcademicGoal) error {
	query := `UPDATE academic_goals SET is_achieved = $1, achieved_date = $2 WHERE id = $3`

	tag, err := r.conn.Exec(ctx, query, g.IsAchieved, g.AchievedDate, g.ID)
	if err != nil {
		return fmt.Errorf("failed to update goal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrGoalNotFound
	}

	return nil
}
