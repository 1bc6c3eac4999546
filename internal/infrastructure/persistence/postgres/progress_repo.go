package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/timeutil"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `
	user_id, total_points, current_level, points_to_next_level,
	streak_days, last_activity_date, updated_at
`

// Get returns the progress of a user.
func (r *ProgressRepository) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1`
	return r.scanProgress(r.conn.QueryRow(ctx, query, userID))
}

// GetForUpdate reads the progress and locks the row until the transaction
// ends. A missing row is inserted with the column defaults first, so two
// first-time transactions block on the same row instead of both starting
// from a fresh aggregate. Outside a transaction the lock is released
// immediately.
func (r *ProgressRepository) GetForUpdate(ctx context.Context, userID string) (*progress.UserProgress, error) {
	insert := `INSERT INTO user_progress (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.conn.Exec(ctx, insert, userID); err != nil {
		if IsForeignKeyViolation(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}

	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 FOR UPDATE`
	return r.scanProgress(r.conn.QueryRow(ctx, query, userID))
}

// Save creates or replaces the progress row.
func (r *ProgressRepository) Save(ctx context.Context, p *progress.UserProgress) error {
	query := `
		INSERT INTO user_progress (
			user_id, total_points, current_level, points_to_next_level,
			streak_days, last_activity_date, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			total_points = EXCLUDED.total_points,
			current_level = EXCLUDED.current_level,
			points_to_next_level = EXCLUDED.points_to_next_level,
			streak_days = EXCLUDED.streak_days,
			last_activity_date = EXCLUDED.last_activity_date,
			updated_at = EXCLUDED.updated_at
	`

	var lastActivity *time.Time
	if p.LastActivityDate != nil {
		d := time.Date(p.LastActivityDate.Year, p.LastActivityDate.Month, p.LastActivityDate.Day, 0, 0, 0, 0, time.UTC)
		lastActivity = &d
	}

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.conn.Exec(ctx, query,
		p.UserID,
		p.TotalPoints.Int(),
		p.CurrentLevel.Int(),
		p.PointsToNextLevel,
		p.StreakDays,
		lastActivity,
		updatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.WrapError("progress", "Save", shared.ErrNotFound, "user does not exist", err)
		}
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}

// scanProgress scans a single progress row.
func (r *ProgressRepository) scanProgress(row pgx.Row) (*progress.UserProgress, error) {
	var p progress.UserProgress
	var total, level int
	var lastActivity *time.Time

	err := row.Scan(
		&p.UserID,
		&total,
		&level,
		&p.PointsToNextLevel,
		&p.StreakDays,
		&lastActivity,
		&p.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}

	p.TotalPoints = shared.Points(total)
	p.CurrentLevel = shared.Level(level)
	if lastActivity != nil {
		d := timeutil.NewDate(lastActivity.Year(), lastActivity.Month(), lastActivity.Day())
		p.LastActivityDate = &d
	}

	return &p, nil
}
