package achievement

import (
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var perfectScore = decimal.NewFromInt(100)

// Evaluate проверяет критерий против снимка.
func (c Criterion) Evaluate(s *Snapshot, now time.Time) (bool, error) {
	t := c.Threshold

	switch c.Kind {
	case KindLevelReached:
		return atLeast(s.Progress.CurrentLevel.Int(), t), nil
	case KindTotalPoints:
		return atLeast(s.Progress.TotalPoints.Int(), t), nil
	case KindStreakDays:
		return atLeast(s.Progress.StreakDays, t), nil
	case KindGoalsCreated:
		return atLeast(len(s.Goals), t), nil
	case KindGoalsAchieved:
		n := 0
		for _, g := range s.Goals {
			if g.Achieved() {
				n++
			}
		}
		return atLeast(n, t), nil
	case KindSemesterGoalAchieved:
		for _, g := range s.Goals {
			if g.Achieved() && g.IsCourseLess() && g.TargetValue.GreaterThanOrEqual(t) {
				return true, nil
			}
		}
		return false, nil
	case KindGradeThreshold:
		return anyGradeAtLeast(s, t), nil
	case KindGPAThreshold:
		return s.CumulativeGPA.GreaterThanOrEqual(t), nil
	case KindSemesterGPAThreshold:
		return s.SemesterGPA.GreaterThanOrEqual(t), nil
	case KindGradeImprovement:
		best, ok := s.MaxGradeImprovement()
		return ok && best.GreaterThanOrEqual(t), nil
	case KindGPAImprovement, KindSemesterGPAImprovement:
		return s.GPAImprovement().GreaterThanOrEqual(t), nil
	case KindGradesEntered:
		return atLeast(len(s.Grades), t), nil
	case KindProfileComplete:
		return s.Profile.IsComplete(), nil
	case KindPerfectScore:
		return anyGradeAtLeast(s, perfectScore), nil
	case KindTotalLoginDays:
		return atLeast(s.ActivityCount, t), nil
	case KindYearsActive:
		if s.Profile.CreatedAt.IsZero() {
			return false, nil
		}
		years := int(t.IntPart())
		return !s.Profile.CreatedAt.AddDate(years, 0, 0).After(now), nil
	case KindAllCategories:
		return s.DistinctOwnedCategories() == len(AllCategories()), nil
	case KindAchievementsEarned:
		return atLeast(len(s.Owned), t), nil
	default:
		return false, shared.NewDomainError("achievement", "Evaluate", shared.ErrInvalidInput,
			fmt.Sprintf("unsupported criterion %q", c.Kind))
	}
}

// IsEligible parses the achievement's criteria and evaluates the first
// recognised kind against the snapshot.
func IsEligible(a Achievement, s *Snapshot, now time.Time) (bool, error) {
	c, err := ParseCriterion(a.UnlockCriteria)
	if err != nil {
		return false, err
	}
	return c.Evaluate(s, now)
}

func atLeast(n int, threshold decimal.Decimal) bool {
	return decimal.NewFromInt(int64(n)).GreaterThanOrEqual(threshold)
}

func anyGradeAtLeast(s *Snapshot, threshold decimal.Decimal) bool {
	for _, g := range s.Grades {
		if g.PercentageScore.GreaterThanOrEqual(threshold) {
			return true
		}
	}
	return false
}
