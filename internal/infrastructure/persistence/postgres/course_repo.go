package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/shared"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements grading.CourseRepository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

const courseColumns = `
	id, user_id, name, credit_hours, semester, academic_year, category_system,
	grading_scale, gpa_scale, handle_missing, calculated_course_grade, course_gpa,
	is_completed, is_active, updated_at
`

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetCourse returns a course by ID.
func (r *CourseRepository) GetCourse(ctx context.Context, courseID string) (*grading.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	return r.scanCourse(r.conn.QueryRow(ctx, query, courseID))
}

// ListByUser returns all courses of a user.
func (r *CourseRepository) ListByUser(ctx context.Context, userID string) ([]grading.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE user_id = $1 ORDER BY academic_year, semester, name`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []grading.Course
	for rows.Next() {
		c, err := r.scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}

	return courses, nil
}

// LoadSheet returns the course together with its categories, assessments and
// the owner's grades.
func (r *CourseRepository) LoadSheet(ctx context.Context, courseID string) (*grading.Sheet, error) {
	course, err := r.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	sheet := &grading.Sheet{Course: *course}

	if sheet.Categories, err = r.listCategories(ctx, courseID); err != nil {
		return nil, err
	}
	if sheet.Assessments, err = r.listAssessments(ctx, courseID); err != nil {
		return nil, err
	}

	query := `
		SELECT g.id, g.assessment_id, g.user_id, g.points_earned, g.points_possible,
			   g.percentage_score, g.score_type, g.is_extra_credit, g.extra_credit_points, g.grade_date
		FROM grades g
		JOIN assessments a ON a.id = g.assessment_id
		JOIN assessment_categories c ON c.id = a.category_id
		WHERE c.course_id = $1 AND g.user_id = $2
		ORDER BY g.grade_date
	`
	if sheet.Grades, err = r.queryGrades(ctx, query, courseID, course.UserID); err != nil {
		return nil, err
	}

	return sheet, nil
}

// ListGradesByUser returns every grade of a user, retakes included.
func (r *CourseRepository) ListGradesByUser(ctx context.Context, userID string) ([]grading.Grade, error) {
	query := `
		SELECT id, assessment_id, user_id, points_earned, points_possible,
			   percentage_score, score_type, is_extra_credit, extra_credit_points, grade_date
		FROM grades
		WHERE user_id = $1
		ORDER BY grade_date
	`
	return r.queryGrades(ctx, query, userID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// SaveCalculated stores the cached grade and GPA columns.
func (r *CourseRepository) SaveCalculated(ctx context.Context, courseID string, grade decimal.Decimal, gpa *decimal.Decimal) error {
	query := `
		UPDATE courses SET
			calculated_course_grade = $1,
			course_gpa = $2,
			updated_at = $3
		WHERE id = $4
	`

	tag, err := r.conn.Exec(ctx, query, grade, nullDecimal(gpa), time.Now().UTC(), courseID)
	if err != nil {
		return fmt.Errorf("failed to save calculated grade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCourseNotFound
	}

	return nil
}

// SetCompleted marks the course as completed or reopened.
func (r *CourseRepository) SetCompleted(ctx context.Context, courseID string, completed bool) error {
	query := `UPDATE courses SET is_completed = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.conn.Exec(ctx, query, completed, time.Now().UTC(), courseID)
	if err != nil {
		return fmt.Errorf("failed to set course completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCourseNotFound
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

func (r *CourseRepository) listCategories(ctx context.Context, courseID string) ([]grading.Category, error) {
	query := `
		SELECT id, course_id, name, weight_percentage, order_sequence
		FROM assessment_categories
		WHERE course_id = $1
		ORDER BY order_sequence, name
	`

	rows, err := r.conn.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []grading.Category
	for rows.Next() {
		var c grading.Category
		if err := rows.Scan(&c.ID, &c.CourseID, &c.Name, &c.WeightPercentage, &c.OrderSequence); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

func (r *CourseRepository) listAssessments(ctx context.Context, courseID string) ([]grading.Assessment, error) {
	query := `
		SELECT a.id, a.category_id, a.name, a.due_date, a.max_points, a.term
		FROM assessments a
		JOIN assessment_categories c ON c.id = a.category_id
		WHERE c.course_id = $1
		ORDER BY a.due_date NULLS LAST, a.name
	`

	rows, err := r.conn.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var assessments []grading.Assessment
	for rows.Next() {
		var a grading.Assessment
		var dueDate *time.Time
		var term string
		if err := rows.Scan(&a.ID, &a.CategoryID, &a.Name, &dueDate, &a.MaxPoints, &term); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		if dueDate != nil {
			a.DueDate = dueDate.UTC()
		}
		a.Term = grading.AssessmentTerm(term)
		assessments = append(assessments, a)
	}

	return assessments, rows.Err()
}

func (r *CourseRepository) queryGrades(ctx context.Context, query string, args ...any) ([]grading.Grade, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grades: %w", err)
	}
	defer rows.Close()

	var grades []grading.Grade
	for rows.Next() {
		var g grading.Grade
		var scoreType string
		err := rows.Scan(
			&g.ID,
			&g.AssessmentID,
			&g.UserID,
			&g.PointsEarned,
			&g.PointsPossible,
			&g.PercentageScore,
			&scoreType,
			&g.IsExtraCredit,
			&g.ExtraCreditPoints,
			&g.GradeDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grade: %w", err)
		}
		g.ScoreType = grading.ScoreType(scoreType)
		grades = append(grades, g)
	}

	return grades, rows.Err()
}

// scanCourse scans a single course from a row.
func (r *CourseRepository) scanCourse(row pgx.Row) (*grading.Course, error) {
	var c grading.Course
	var semester, year, scale, missing string
	var gpa decimal.NullDecimal

	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.CreditHours,
		&semester,
		&year,
		&c.CategorySystem,
		&c.GradingScale,
		&scale,
		&missing,
		&c.CalculatedCourseGrade,
		&gpa,
		&c.IsCompleted,
		&c.IsActive,
		&c.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}

	c.Semester = shared.Semester(semester)
	c.AcademicYear = shared.AcademicYear(year)
	c.GPAScale = grading.GPAScale(scale)
	c.HandleMissing = grading.MissingPolicy(missing)
	if gpa.Valid {
		v := gpa.Decimal
		c.CourseGPA = &v
	}

	return &c, nil
}

// nullDecimal converts an optional decimal into a nullable column value.
func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
