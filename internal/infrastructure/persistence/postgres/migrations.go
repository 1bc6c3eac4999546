package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, opts, func(ctx context.Context, tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insert := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insert, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var last int
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_courses", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_goals", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_gamification", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS, COURSES, CATEGORIES, ASSESSMENTS, GRADES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL DEFAULT '',
    first_name VARCHAR(100) NOT NULL DEFAULT '',
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name VARCHAR(200) NOT NULL,
    credit_hours INTEGER NOT NULL DEFAULT 0,
    semester VARCHAR(10) NOT NULL,
    academic_year VARCHAR(9) NOT NULL,
    category_system VARCHAR(50) NOT NULL DEFAULT '',
    grading_scale VARCHAR(50) NOT NULL DEFAULT '',
    gpa_scale VARCHAR(3) NOT NULL DEFAULT '4.0',
    handle_missing VARCHAR(20) NOT NULL DEFAULT 'exclude',
    calculated_course_grade NUMERIC(5,2) NOT NULL DEFAULT 0,
    course_gpa NUMERIC(4,2),
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_semester CHECK (semester IN ('FIRST', 'SECOND', 'THIRD')),
    CONSTRAINT valid_gpa_scale CHECK (gpa_scale IN ('4.0', '5.0')),
    CONSTRAINT valid_handle_missing CHECK (handle_missing IN ('exclude', 'treat_as_zero'))
);

CREATE INDEX IF NOT EXISTS idx_courses_user ON courses(user_id);

CREATE TABLE IF NOT EXISTS assessment_categories (
    id UUID PRIMARY KEY,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    weight_percentage NUMERIC(5,2) NOT NULL,
    order_sequence INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_weight CHECK (weight_percentage >= 0 AND weight_percentage <= 100)
);

CREATE INDEX IF NOT EXISTS idx_categories_course ON assessment_categories(course_id);

CREATE TABLE IF NOT EXISTS assessments (
    id UUID PRIMARY KEY,
    category_id UUID NOT NULL REFERENCES assessment_categories(id) ON DELETE CASCADE,
    name VARCHAR(200) NOT NULL,
    due_date TIMESTAMP WITH TIME ZONE,
    max_points NUMERIC(8,2) NOT NULL DEFAULT 0,
    term VARCHAR(10) NOT NULL DEFAULT 'MIDTERM',

    CONSTRAINT valid_term CHECK (term IN ('MIDTERM', 'FINAL_TERM'))
);

CREATE INDEX IF NOT EXISTS idx_assessments_category ON assessments(category_id);

CREATE TABLE IF NOT EXISTS grades (
    id UUID PRIMARY KEY,
    assessment_id UUID NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    points_earned NUMERIC(8,2) NOT NULL DEFAULT 0,
    points_possible NUMERIC(8,2) NOT NULL DEFAULT 0,
    percentage_score NUMERIC(6,2) NOT NULL DEFAULT 0,
    score_type VARCHAR(10) NOT NULL DEFAULT 'POINTS',
    is_extra_credit BOOLEAN NOT NULL DEFAULT FALSE,
    extra_credit_points NUMERIC(8,2) NOT NULL DEFAULT 0,
    grade_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_score_type CHECK (score_type IN ('PERCENTAGE', 'POINTS')),
    CONSTRAINT non_negative_points CHECK (points_earned >= 0 AND points_possible >= 0)
);

CREATE INDEX IF NOT EXISTS idx_grades_assessment ON grades(assessment_id, grade_date);
CREATE INDEX IF NOT EXISTS idx_grades_user ON grades(user_id);
`

const migration001Down = `
DROP TABLE IF EXISTS grades;
DROP TABLE IF EXISTS assessments;
DROP TABLE IF EXISTS assessment_categories;
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACADEMIC GOALS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS academic_goals (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    goal_type VARCHAR(20) NOT NULL,
    target_value NUMERIC(5,2) NOT NULL,
    course_id UUID REFERENCES courses(id) ON DELETE CASCADE,
    semester VARCHAR(10) NOT NULL DEFAULT '',
    academic_year VARCHAR(9) NOT NULL DEFAULT '',
    is_achieved BOOLEAN,
    achieved_date TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_goal_type CHECK (goal_type IN ('COURSE_GRADE', 'SEMESTER_GPA', 'CUMULATIVE_GPA')),
    CONSTRAINT course_goal_has_course CHECK ((goal_type = 'COURSE_GRADE') = (course_id IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_goals_user ON academic_goals(user_id);
`

const migration002Down = `
DROP TABLE IF EXISTS academic_goals;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ACHIEVEMENTS, PROGRESS, ACTIVITY LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS achievements (
    id UUID PRIMARY KEY,
    code VARCHAR(64) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    unlock_criteria JSONB NOT NULL DEFAULT '{}'::jsonb,
    rarity VARCHAR(20) NOT NULL DEFAULT 'COMMON',
    points_value INTEGER NOT NULL DEFAULT 0,
    category VARCHAR(20) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,

    CONSTRAINT valid_rarity CHECK (rarity IN ('COMMON', 'UNCOMMON', 'RARE', 'EPIC', 'LEGENDARY')),
    CONSTRAINT valid_points CHECK (points_value >= 0)
);

CREATE TABLE IF NOT EXISTS user_achievements (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    achievement_id UUID NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT unique_user_achievement UNIQUE (user_id, achievement_id)
);

CREATE TABLE IF NOT EXISTS user_progress (
    user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    total_points INTEGER NOT NULL DEFAULT 0,
    current_level INTEGER NOT NULL DEFAULT 1,
    points_to_next_level INTEGER NOT NULL DEFAULT 100,
    streak_days INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_points CHECK (total_points >= 0),
    CONSTRAINT valid_level CHECK (current_level >= 1)
);

CREATE TABLE IF NOT EXISTS activity_log (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    activity_type VARCHAR(30) NOT NULL,
    points INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_activity_user ON activity_log(user_id, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS activity_log;
DROP TABLE IF EXISTS user_progress;
DROP TABLE IF EXISTS user_achievements;
DROP TABLE IF EXISTS achievements;
`
