// Package goal содержит академические цели пользователя и правила их оценки.
//
// Статус цели трёхзначный: nil - в ожидании, true - достигнута, false - не
// достигнута. Цель COURSE_GRADE оценивается только при завершении курса;
// повторное открытие курса возвращает её в ожидание (nil), а не в false.
package goal

import (
	"time"

	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// GoalType - тип цели.
type GoalType string

const (
	TypeCourseGrade   GoalType = "COURSE_GRADE"
	TypeSemesterGPA   GoalType = "SEMESTER_GPA"
	TypeCumulativeGPA GoalType = "CUMULATIVE_GPA"
)

// IsValid checks if the goal type is known.
func (t GoalType) IsValid() bool {
	switch t {
	case TypeCourseGrade, TypeSemesterGPA, TypeCumulativeGPA:
		return true
	}
	return false
}

// AcademicGoal - цель пользователя.
type AcademicGoal struct {
	ID          string
	UserID      string
	GoalType    GoalType
	TargetValue decimal.Decimal

	// CourseID задан только для COURSE_GRADE.
	CourseID *string

	// Semester/AcademicYear уточняют SEMESTER_GPA; пустые - текущий семестр.
	Semester     shared.Semester
	AcademicYear shared.AcademicYear

	IsAchieved   *bool
	AchievedDate *time.Time
	CreatedAt    time.Time
}

// Validate checks goal invariants.
func (g AcademicGoal) Validate() error {
	if !g.GoalType.IsValid() {
		return shared.ErrInvalidGoalType
	}
	if !g.TargetValue.IsPositive() {
		return shared.NewDomainError("goal", "Validate", shared.ErrValueOutOfRange, "target value must be positive")
	}
	if g.GoalType == TypeCourseGrade && (g.CourseID == nil || *g.CourseID == "") {
		return shared.NewDomainError("goal", "Validate", shared.ErrInvalidInput, "course grade goal requires a course")
	}
	if g.GoalType != TypeCourseGrade && g.CourseID != nil {
		return shared.NewDomainError("goal", "Validate", shared.ErrInvalidInput, "only course grade goals reference a course")
	}
	return nil
}

// IsPending reports whether the goal has not been decided yet.
func (g AcademicGoal) IsPending() bool {
	return g.IsAchieved == nil
}

// Achieved reports whether the goal is decided as achieved.
func (g AcademicGoal) Achieved() bool {
	return g.IsAchieved != nil && *g.IsAchieved
}

// IsCourseLess reports whether the goal is a semester or cumulative goal.
func (g AcademicGoal) IsCourseLess() bool {
	return g.CourseID == nil
}

// Term returns the explicit term of a SEMESTER_GPA goal.
func (g AcademicGoal) Term() (shared.Term, bool) {
	if g.Semester == "" || g.AcademicYear == "" {
		return shared.Term{}, false
	}
	return shared.Term{Semester: g.Semester, AcademicYear: g.AcademicYear}, true
}

func (g *AcademicGoal) decide(achieved bool, now time.Time) {
	v := achieved
	g.IsAchieved = &v
	if achieved {
		at := now.UTC()
		g.AchievedDate = &at
	} else {
		g.AchievedDate = nil
	}
}

// ResetToPending возвращает цель в состояние ожидания.
func (g *AcademicGoal) ResetToPending() {
	g.IsAchieved = nil
	g.AchievedDate = nil
}
