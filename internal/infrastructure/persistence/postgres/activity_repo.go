package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
)

// ActivityRepository implements progress.ActivityRepository using PostgreSQL.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{
		conn: conn,
	}
}

// Append writes one activity log entry.
func (r *ActivityRepository) Append(ctx context.Context, entry progress.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = shared.NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activity_log (id, user_id, activity_type, points, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.conn.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		string(entry.ActivityType),
		entry.Points,
		entry.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.WrapError("progress", "AppendActivity", shared.ErrNotFound, "user does not exist", err)
		}
		return fmt.Errorf("failed to append activity: %w", err)
	}

	return nil
}

// CountByUser returns the number of log entries of a user.
func (r *ActivityRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM activity_log WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count activity: %w", err)
	}
	return count, nil
}
