package goal

import (
	"time"

	"github.com/alem-hub/gradebook/internal/domain/grading"
)

// Change - цель, статус которой изменился при оценке.
type Change struct {
	Goal AcademicGoal

	// NewlyAchieved - цель только что перешла в true (повод для уведомления).
	NewlyAchieved bool
}

// EvaluateCourseCompletion решает цели COURSE_GRADE завершённого курса:
// true, если оценка курса >= цели, иначе false.
func EvaluateCourseCompletion(goals []AcademicGoal, course grading.Course, now time.Time) []Change {
	var changes []Change
	for _, g := range goals {
		if g.GoalType != TypeCourseGrade || g.CourseID == nil || *g.CourseID != course.ID {
			continue
		}

		wasAchieved := g.Achieved()
		reached := course.CalculatedCourseGrade.GreaterThanOrEqual(g.TargetValue)

		if !g.IsPending() && g.Achieved() == reached {
			continue
		}
		g.decide(reached, now)
		changes = append(changes, Change{Goal: g, NewlyAchieved: reached && !wasAchieved})
	}
	return changes
}

// EvaluateCourseReopened возвращает цели COURSE_GRADE курса в ожидание.
func EvaluateCourseReopened(goals []AcademicGoal, courseID string) []Change {
	var changes []Change
	for _, g := range goals {
		if g.GoalType != TypeCourseGrade || g.CourseID == nil || *g.CourseID != courseID {
			continue
		}
		if g.IsPending() {
			continue
		}
		g.ResetToPending()
		changes = append(changes, Change{Goal: g})
	}
	return changes
}

// EvaluateGPA переводит ожидающие цели SEMESTER_GPA / CUMULATIVE_GPA в true,
// когда соответствующий GPA достиг цели. Недостигнутые остаются в ожидании.
func EvaluateGPA(goals []AcademicGoal, courses []grading.Course, now time.Time) []Change {
	current, hasCurrent := grading.CurrentTerm(courses)
	cumulative := grading.CumulativeGPA(courses)

	var changes []Change
	for _, g := range goals {
		if !g.IsPending() {
			continue
		}

		var reached bool
		switch g.GoalType {
		case TypeCumulativeGPA:
			reached = cumulative.GreaterThanOrEqual(g.TargetValue)
		case TypeSemesterGPA:
			term, ok := g.Term()
			if !ok {
				if !hasCurrent {
					continue
				}
				term = current
			}
			reached = grading.SemesterGPA(courses, term.Semester, term.AcademicYear).GreaterThanOrEqual(g.TargetValue)
		default:
			continue
		}

		if reached {
			g.decide(true, now)
			changes = append(changes, Change{Goal: g, NewlyAchieved: true})
		}
	}
	return changes
}
