package grading

import (
	"sort"

	"github.com/shopspring/decimal"
)

// fractionPlaces is the precision of the intermediate earned/possible ratio.
const fractionPlaces = 4

// CategoryLine is one category row of a course breakdown.
type CategoryLine struct {
	CategoryID string
	Name       string
	Weight     decimal.Decimal
	Grade      decimal.Decimal
	Included   bool
}

// Breakdown is the full recompute result for a course.
type Breakdown struct {
	Overall   decimal.Decimal
	Midterm   decimal.Decimal
	FinalTerm decimal.Decimal
	Lines     []CategoryLine
}

// LatestGrades keeps the most recent grade per assessment. Ties on GradeDate
// keep the row that appears last.
func LatestGrades(grades []Grade) map[string]Grade {
	latest := make(map[string]Grade, len(grades))
	for _, g := range grades {
		cur, ok := latest[g.AssessmentID]
		if !ok || !g.GradeDate.Before(cur.GradeDate) {
			latest[g.AssessmentID] = g
		}
	}
	return latest
}

// categoryTotals returns S and P for one category plus whether it qualifies
// for the course average under the policy.
func categoryTotals(cat Category, assessments []Assessment, latest map[string]Grade, policy MissingPolicy, period Period) (earned, possible decimal.Decimal, qualifies bool) {
	earned, possible = decimal.Zero, decimal.Zero

	for _, a := range assessments {
		if a.CategoryID != cat.ID || !period.Includes(a.Term) {
			continue
		}

		g, ok := latest[a.ID]
		if ok && g.IsScored() {
			earned = earned.Add(g.Earned())
			possible = possible.Add(g.PointsPossible)
			qualifies = true
			continue
		}

		if policy == MissingTreatAsZero {
			possible = possible.Add(a.MaxPoints)
			qualifies = true
		}
	}
	return earned, possible, qualifies
}

func percentOf(earned, possible decimal.Decimal) decimal.Decimal {
	if !possible.IsPositive() {
		return decimal.Zero
	}
	pct := earned.DivRound(possible, fractionPlaces).Mul(hundred).Round(2)
	return clampPercent(pct)
}

func clampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred.Round(2)
	}
	return pct
}

// CategoryGrade returns the category percentage at 2 decimals: the sum of
// earned points (with extra credit) over the sum of possible points.
// Under treat_as_zero each unscored assessment adds its MaxPoints to the
// denominator. Returns 0 when the denominator is 0.
func CategoryGrade(cat Category, assessments []Assessment, grades []Grade, policy MissingPolicy, period Period) decimal.Decimal {
	earned, possible, _ := categoryTotals(cat, assessments, LatestGrades(grades), policy, period)
	return percentOf(earned, possible)
}

// CourseGrade returns the weighted average of the qualifying categories with
// the weights re-normalised to the included ones. A category qualifies when
// it has a scored grade, or under treat_as_zero any assessment at all.
func CourseGrade(sheet Sheet, period Period) decimal.Decimal {
	grade, _ := courseGrade(sheet, LatestGrades(sheet.Grades), period)
	return grade
}

func courseGrade(sheet Sheet, latest map[string]Grade, period Period) (decimal.Decimal, []CategoryLine) {
	policy := sheet.Course.HandleMissing
	lines := make([]CategoryLine, 0, len(sheet.Categories))

	weighted, weights := decimal.Zero, decimal.Zero
	for _, cat := range orderedCategories(sheet.Categories) {
		earned, possible, qualifies := categoryTotals(cat, sheet.Assessments, latest, policy, period)
		pct := percentOf(earned, possible)

		lines = append(lines, CategoryLine{
			CategoryID: cat.ID,
			Name:       cat.Name,
			Weight:     cat.WeightPercentage,
			Grade:      pct,
			Included:   qualifies,
		})

		if !qualifies {
			continue
		}
		weighted = weighted.Add(pct.Mul(cat.WeightPercentage))
		weights = weights.Add(cat.WeightPercentage)
	}

	if !weights.IsPositive() {
		return decimal.Zero, lines
	}
	return clampPercent(weighted.DivRound(weights, 2)), lines
}

// ComputeBreakdown computes the overall, midterm and final-term course grades and
// the per-category lines of the overall grade.
func ComputeBreakdown(sheet Sheet) Breakdown {
	latest := LatestGrades(sheet.Grades)

	overall, lines := courseGrade(sheet, latest, PeriodOverall)
	midterm, _ := courseGrade(sheet, latest, PeriodMidterm)
	final, _ := courseGrade(sheet, latest, PeriodFinalTerm)

	return Breakdown{
		Overall:   overall,
		Midterm:   midterm,
		FinalTerm: final,
		Lines:     lines,
	}
}

func orderedCategories(cats []Category) []Category {
	out := make([]Category, len(cats))
	copy(out, cats)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderSequence < out[j].OrderSequence
	})
	return out
}
