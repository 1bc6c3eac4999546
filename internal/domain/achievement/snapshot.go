package achievement

import (
	"sort"

	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/shopspring/decimal"
)

// Snapshot - состояние пользователя, против которого проверяются критерии.
// Собирается один раз на запуск и обновляется в памяти после каждой выдачи.
type Snapshot struct {
	UserID        string
	Progress      progress.UserProgress
	Grades        []grading.Grade
	Goals         []goal.AcademicGoal
	ActivityCount int
	Profile       UserProfile
	Owned         []Owned
	CumulativeGPA decimal.Decimal
	SemesterGPA   decimal.Decimal
}

// Owns reports whether the achievement is already earned.
func (s *Snapshot) Owns(achievementID string) bool {
	for _, o := range s.Owned {
		if o.AchievementID == achievementID {
			return true
		}
	}
	return false
}

// RecordAward applies an award to the snapshot: the achievement becomes owned
// and the progress is replaced with the post-award state.
func (s *Snapshot) RecordAward(a Achievement, earned Owned, p progress.UserProgress) {
	if earned.AchievementID == "" {
		earned.AchievementID = a.ID
	}
	if earned.Category == "" {
		earned.Category = a.Category
	}
	if !s.Owns(earned.AchievementID) {
		s.Owned = append(s.Owned, earned)
	}
	s.Progress = p
}

// DistinctOwnedCategories returns the number of different categories among
// owned achievements.
func (s *Snapshot) DistinctOwnedCategories() int {
	seen := make(map[Category]struct{}, len(s.Owned))
	for _, o := range s.Owned {
		seen[o.Category] = struct{}{}
	}
	return len(seen)
}

// GPAImprovement is the semester GPA minus the cumulative GPA.
func (s *Snapshot) GPAImprovement() decimal.Decimal {
	return s.SemesterGPA.Sub(s.CumulativeGPA)
}

// MaxGradeImprovement returns the largest newer-minus-older percentage over
// any two grades of the same assessment. ok is false without a re-take.
func (s *Snapshot) MaxGradeImprovement() (best decimal.Decimal, ok bool) {
	byAssessment := make(map[string][]grading.Grade)
	for _, g := range s.Grades {
		byAssessment[g.AssessmentID] = append(byAssessment[g.AssessmentID], g)
	}

	for _, attempts := range byAssessment {
		if len(attempts) < 2 {
			continue
		}
		sort.SliceStable(attempts, func(i, j int) bool {
			return attempts[i].GradeDate.Before(attempts[j].GradeDate)
		})

		// лучший прирост: текущая попытка минус минимум среди предыдущих
		low := attempts[0].PercentageScore
		for _, g := range attempts[1:] {
			delta := g.PercentageScore.Sub(low)
			if !ok || delta.GreaterThan(best) {
				best, ok = delta, true
			}
			if g.PercentageScore.LessThan(low) {
				low = g.PercentageScore
			}
		}
	}
	return best, ok
}
