package grading

import (
	"time"

	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// ScoreType определяет, в чём введена оценка.
type ScoreType string

const (
	ScoreTypePercentage ScoreType = "PERCENTAGE"
	ScoreTypePoints     ScoreType = "POINTS"
)

// AssessmentTerm - часть курса, к которой относится задание.
type AssessmentTerm string

const (
	TermMidterm   AssessmentTerm = "MIDTERM"
	TermFinalTerm AssessmentTerm = "FINAL_TERM"
)

// Period - фильтр агрегирования. PeriodOverall игнорирует термы заданий.
type Period string

const (
	PeriodOverall   Period = "OVERALL"
	PeriodMidterm   Period = "MIDTERM"
	PeriodFinalTerm Period = "FINAL_TERM"
)

// Includes reports whether an assessment of the given term passes the filter.
func (p Period) Includes(term AssessmentTerm) bool {
	switch p {
	case PeriodMidterm:
		return term == TermMidterm
	case PeriodFinalTerm:
		return term == TermFinalTerm
	default:
		return true
	}
}

// AssessmentStatus вычисляется, не хранится.
type AssessmentStatus string

const (
	StatusUpcoming  AssessmentStatus = "UPCOMING"
	StatusOverdue   AssessmentStatus = "OVERDUE"
	StatusCompleted AssessmentStatus = "COMPLETED"
)

// MissingPolicy - как учитывать задания без оценки.
type MissingPolicy string

const (
	MissingExclude     MissingPolicy = "exclude"
	MissingTreatAsZero MissingPolicy = "treat_as_zero"
)

// GPAScale - шкала GPA курса.
type GPAScale string

const (
	Scale4 GPAScale = "4.0"
	Scale5 GPAScale = "5.0"
)

// IsValid checks if the scale is supported.
func (s GPAScale) IsValid() bool {
	return s == Scale4 || s == Scale5
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE
// ══════════════════════════════════════════════════════════════════════════════

// Grade - одна оценка за задание. Повторные попытки хранятся отдельными
// строками; в агрегат идёт последняя по GradeDate.
type Grade struct {
	ID                string
	AssessmentID      string
	UserID            string
	PointsEarned      decimal.Decimal
	PointsPossible    decimal.Decimal // 0 означает "не оценено"
	PercentageScore   decimal.Decimal
	ScoreType         ScoreType
	IsExtraCredit     bool
	ExtraCreditPoints decimal.Decimal
	GradeDate         time.Time
}

// IsScored reports whether the grade carries a score that counts toward
// aggregation.
func (g Grade) IsScored() bool {
	return g.PointsPossible.IsPositive() || g.IsExtraCredit
}

// Earned returns the points credited to the category sum, extra credit
// included.
func (g Grade) Earned() decimal.Decimal {
	if g.IsExtraCredit {
		return g.PointsEarned.Add(g.ExtraCreditPoints)
	}
	return g.PointsEarned
}

// Normalize fills the derived column from the entered one: percentage from
// points for POINTS grades, points from percentage for PERCENTAGE grades.
func (g *Grade) Normalize() {
	switch g.ScoreType {
	case ScoreTypePercentage:
		g.PointsEarned = g.PercentageScore.Mul(g.PointsPossible).Div(hundred).Round(2)
	default:
		if g.PointsPossible.IsPositive() {
			g.PercentageScore = g.PointsEarned.Mul(hundred).DivRound(g.PointsPossible, 2)
		} else {
			g.PercentageScore = decimal.Zero
		}
	}
}

// Validate checks grade invariants.
func (g Grade) Validate() error {
	if g.AssessmentID == "" {
		return shared.NewDomainError("grading", "ValidateGrade", shared.ErrInvalidInput, "assessment id is required")
	}
	if g.PointsEarned.IsNegative() || g.PointsPossible.IsNegative() || g.ExtraCreditPoints.IsNegative() {
		return shared.NewDomainError("grading", "ValidateGrade", shared.ErrNegativeValue, "grade points cannot be negative")
	}
	if g.ScoreType != ScoreTypePercentage && g.ScoreType != ScoreTypePoints {
		return shared.NewDomainError("grading", "ValidateGrade", shared.ErrInvalidInput, "unknown score type")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT / CATEGORY / COURSE
// ══════════════════════════════════════════════════════════════════════════════

// Assessment - задание внутри категории.
type Assessment struct {
	ID         string
	CategoryID string
	Name       string
	DueDate    time.Time
	MaxPoints  decimal.Decimal
	Term       AssessmentTerm
}

// Status derives the assessment status from score presence and due date.
func (a Assessment) Status(hasScore bool, now time.Time) AssessmentStatus {
	switch {
	case hasScore:
		return StatusCompleted
	case !a.DueDate.IsZero() && now.After(a.DueDate):
		return StatusOverdue
	default:
		return StatusUpcoming
	}
}

// Category - категория оценивания курса (Quizzes, Exams, ...).
type Category struct {
	ID               string
	CourseID         string
	Name             string
	WeightPercentage decimal.Decimal
	OrderSequence    int
}

// Validate checks that the weight is within 0..100.
func (c Category) Validate() error {
	if c.WeightPercentage.IsNegative() || c.WeightPercentage.GreaterThan(hundred) {
		return shared.ErrInvalidWeight
	}
	return nil
}

// Course - курс пользователя с кэшированными вычисленными колонками.
type Course struct {
	ID                    string
	UserID                string
	Name                  string
	CreditHours           int
	Semester              shared.Semester
	AcademicYear          shared.AcademicYear
	CategorySystem        string
	GradingScale          string
	GPAScale              GPAScale
	HandleMissing         MissingPolicy
	CalculatedCourseGrade decimal.Decimal
	CourseGPA             *decimal.Decimal
	IsCompleted           bool
	IsActive              bool
	UpdatedAt             time.Time
}

// Term returns the semester and academic year of the course.
func (c Course) Term() shared.Term {
	return shared.Term{Semester: c.Semester, AcademicYear: c.AcademicYear}
}

// Sheet - курс со всеми исходными строками, нужными для пересчёта.
type Sheet struct {
	Course      Course
	Categories  []Category
	Assessments []Assessment
	Grades      []Grade
}
