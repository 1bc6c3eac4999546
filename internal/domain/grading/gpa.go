package grading

import (
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// gpaBreakpoint maps a minimum percentage to a GPA value on the 4.0 scale.
type gpaBreakpoint struct {
	min decimal.Decimal
	gpa decimal.Decimal
}

// gpaTable is ordered from the highest breakpoint down.
var gpaTable = []gpaBreakpoint{
	{decimal.NewFromInt(97), decimal.RequireFromString("4.0")},
	{decimal.NewFromInt(93), decimal.RequireFromString("3.7")},
	{decimal.NewFromInt(90), decimal.RequireFromString("3.3")},
	{decimal.NewFromInt(87), decimal.RequireFromString("3.0")},
	{decimal.NewFromInt(83), decimal.RequireFromString("2.7")},
	{decimal.NewFromInt(80), decimal.RequireFromString("2.3")},
	{decimal.NewFromInt(77), decimal.RequireFromString("2.0")},
	{decimal.NewFromInt(73), decimal.RequireFromString("1.7")},
	{decimal.NewFromInt(70), decimal.RequireFromString("1.3")},
	{decimal.NewFromInt(67), decimal.RequireFromString("1.0")},
	{decimal.NewFromInt(65), decimal.RequireFromString("0.7")},
}

var scale5Factor = decimal.RequireFromString("1.25")

// PercentageToGPA converts a percentage grade to a GPA value rounded to 2
// decimals. The 5.0 scale rescales the 4.0 value by 1.25; an unknown scale is
// treated as 4.0.
func PercentageToGPA(pct decimal.Decimal, scale GPAScale) decimal.Decimal {
	gpa := decimal.Zero
	for _, bp := range gpaTable {
		if pct.GreaterThanOrEqual(bp.min) {
			gpa = bp.gpa
			break
		}
	}

	if scale == Scale5 {
		gpa = gpa.Mul(scale5Factor)
	}
	return gpa.Round(2)
}

// weightedGPA averages course GPAs weighted by credit hours over active
// courses with a GPA. Returns 0 when no credits qualify.
func weightedGPA(courses []Course, keep func(Course) bool) decimal.Decimal {
	sum, credits := decimal.Zero, decimal.Zero
	for _, c := range courses {
		if !c.IsActive || c.CourseGPA == nil || c.CreditHours <= 0 {
			continue
		}
		if keep != nil && !keep(c) {
			continue
		}
		ch := decimal.NewFromInt(int64(c.CreditHours))
		sum = sum.Add(c.CourseGPA.Mul(ch))
		credits = credits.Add(ch)
	}

	if !credits.IsPositive() {
		return decimal.Zero
	}
	return sum.DivRound(credits, 2)
}

// CumulativeGPA is the credit-weighted GPA over all active courses.
func CumulativeGPA(courses []Course) decimal.Decimal {
	return weightedGPA(courses, nil)
}

// SemesterGPA is the credit-weighted GPA over the active courses of one term.
func SemesterGPA(courses []Course, semester shared.Semester, year shared.AcademicYear) decimal.Decimal {
	return weightedGPA(courses, func(c Course) bool {
		return c.Semester == semester && c.AcademicYear == year
	})
}

// CurrentTerm returns the latest term among active courses.
// ok is false when the user has no active course.
func CurrentTerm(courses []Course) (term shared.Term, ok bool) {
	for _, c := range courses {
		if !c.IsActive {
			continue
		}
		t := c.Term()
		if !ok || t.After(term) {
			term, ok = t, true
		}
	}
	return term, ok
}

// Recompute refreshes the cached grade columns of the course from its sheet.
// CourseGPA is nil when no category qualifies.
func Recompute(sheet Sheet) (Course, Breakdown) {
	b := ComputeBreakdown(sheet)
	course := sheet.Course
	course.CalculatedCourseGrade = b.Overall

	if hasIncluded(b.Lines) {
		gpa := PercentageToGPA(b.Overall, course.GPAScale)
		course.CourseGPA = &gpa
	} else {
		course.CourseGPA = nil
	}
	return course, b
}

func hasIncluded(lines []CategoryLine) bool {
	for _, l := range lines {
		if l.Included {
			return true
		}
	}
	return false
}
