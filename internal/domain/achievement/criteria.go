package achievement

import (
	"encoding/json"
	"fmt"

	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CriterionKind - вид условия разблокировки.
type CriterionKind string

const (
	KindLevelReached           CriterionKind = "level_reached"
	KindTotalPoints            CriterionKind = "total_points"
	KindStreakDays             CriterionKind = "streak_days"
	KindGoalsCreated           CriterionKind = "goals_created"
	KindGoalsAchieved          CriterionKind = "goals_achieved"
	KindSemesterGoalAchieved   CriterionKind = "semester_goal_achieved"
	KindGradeThreshold         CriterionKind = "grade_threshold"
	KindGPAThreshold           CriterionKind = "gpa_threshold"
	KindSemesterGPAThreshold   CriterionKind = "semester_gpa_threshold"
	KindGradeImprovement       CriterionKind = "grade_improvement"
	KindGPAImprovement         CriterionKind = "gpa_improvement"
	KindSemesterGPAImprovement CriterionKind = "semester_gpa_improvement"
	KindGradesEntered          CriterionKind = "grades_entered"
	KindProfileComplete        CriterionKind = "profile_complete"
	KindPerfectScore           CriterionKind = "perfect_score"
	KindTotalLoginDays         CriterionKind = "total_login_days"
	KindYearsActive            CriterionKind = "years_active"
	KindAllCategories          CriterionKind = "all_categories"
	KindAchievementsEarned     CriterionKind = "achievements_earned"
)

// criterionPriority - порядок проверки ключей. Из map критериев берётся
// первый вид из этого списка, остальные ключи игнорируются.
var criterionPriority = []CriterionKind{
	KindLevelReached,
	KindTotalPoints,
	KindStreakDays,
	KindGoalsCreated,
	KindGoalsAchieved,
	KindSemesterGoalAchieved,
	KindGradeThreshold,
	KindGPAThreshold,
	KindSemesterGPAThreshold,
	KindGradeImprovement,
	KindGPAImprovement,
	KindSemesterGPAImprovement,
	KindGradesEntered,
	KindProfileComplete,
	KindPerfectScore,
	KindTotalLoginDays,
	KindYearsActive,
	KindAllCategories,
	KindAchievementsEarned,
}

// Kinds returns the criterion kinds in evaluation priority order.
func Kinds() []CriterionKind {
	out := make([]CriterionKind, len(criterionPriority))
	copy(out, criterionPriority)
	return out
}

// isFlag: the key alone enables the criterion, its value is ignored.
func (k CriterionKind) isFlag() bool {
	switch k {
	case KindProfileComplete, KindPerfectScore, KindAllCategories:
		return true
	}
	return false
}

// isCount: integer counters, fractional thresholds are rejected.
func (k CriterionKind) isCount() bool {
	switch k {
	case KindLevelReached, KindTotalPoints, KindStreakDays, KindGoalsCreated,
		KindGoalsAchieved, KindGradesEntered, KindTotalLoginDays, KindYearsActive,
		KindAchievementsEarned:
		return true
	}
	return false
}

// Criterion - разобранное условие: вид и порог.
type Criterion struct {
	Kind      CriterionKind
	Threshold decimal.Decimal
}

// ParseCriterion выбирает первый распознанный вид критерия и разбирает его
// параметр. Нет распознанных ключей - shared.ErrUnknownCriterion, неверный
// параметр - ошибка вида shared.ErrInvalidFormat.
func ParseCriterion(criteria map[string]any) (Criterion, error) {
	for _, kind := range criterionPriority {
		raw, ok := criteria[string(kind)]
		if !ok {
			continue
		}

		c := Criterion{Kind: kind}
		if kind.isFlag() {
			return c, nil
		}

		if kind == KindSemesterGoalAchieved {
			raw = nestedTarget(raw)
		}

		threshold, err := toDecimal(raw)
		if err != nil {
			return Criterion{}, shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidFormat,
				fmt.Sprintf("parameter of %s", kind), err)
		}
		if threshold.IsNegative() {
			return Criterion{}, shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidFormat,
				fmt.Sprintf("parameter of %s", kind), shared.ErrNegativeValue)
		}
		if kind.isCount() && !threshold.Equal(threshold.Truncate(0)) {
			return Criterion{}, shared.WrapError("achievement", "ParseCriteria", shared.ErrInvalidFormat,
				fmt.Sprintf("parameter of %s must be a whole number", kind), shared.ErrInvalidCriteria)
		}

		c.Threshold = threshold
		return c, nil
	}

	return Criterion{}, shared.ErrUnknownCriterion
}

// nestedTarget unwraps {"target_value": X}; a bare value is accepted too.
func nestedTarget(raw any) any {
	if m, ok := raw.(map[string]any); ok {
		return m["target_value"]
	}
	return raw
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("missing value")
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported value type %T", raw)
	}
}
