package shared

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// IDs
// ═══════════════════════════════════════════════════════════════════════════

// NewID generates a random UUID string for new entities.
func NewID() string {
	return uuid.NewString()
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Points represents gamification points accumulated by a user.
type Points int

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// NewPoints creates a Points value; negative amounts are rejected.
func NewPoints(amount int) (Points, error) {
	if amount < 0 {
		return 0, NewDomainError("shared", "NewPoints", ErrNegativeValue, "points cannot be negative")
	}
	return Points(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level. Levels start at 1.
type Level int

const (
	MinLevel Level = 1

	// PointsPerLevel is the multiplier of the level threshold: reaching
	// level L+1 requires L × PointsPerLevel total points.
	PointsPerLevel = 100

	// LevelUpBonus is granted once at the moment a level threshold is crossed.
	LevelUpBonus Points = 50
)

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredPoints returns the total points needed to leave this level.
func (l Level) RequiredPoints() Points {
	if l < MinLevel {
		l = MinLevel
	}
	return Points(int(l) * PointsPerLevel)
}

// Next returns the following level.
func (l Level) Next() Level {
	return l + 1
}

// Title returns the rank title shown in level-up notifications.
func (l Level) Title() string {
	switch {
	case l < 5:
		return "Novice"
	case l < 10:
		return "Apprentice"
	case l < 20:
		return "Scholar"
	case l < 30:
		return "Achiever"
	case l < 50:
		return "Honors Scholar"
	case l < 75:
		return "Dean's Lister"
	default:
		return "Valedictorian"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Semester & Academic Year
// ═══════════════════════════════════════════════════════════════════════════

// Semester is a term of an academic year.
type Semester string

const (
	SemesterFirst  Semester = "FIRST"
	SemesterSecond Semester = "SECOND"
	SemesterThird  Semester = "THIRD"
)

// IsValid checks if the semester is known.
func (s Semester) IsValid() bool {
	switch s {
	case SemesterFirst, SemesterSecond, SemesterThird:
		return true
	}
	return false
}

// Ordinal returns 1..3 for ordering semesters within a year, 0 if unknown.
func (s Semester) Ordinal() int {
	switch s {
	case SemesterFirst:
		return 1
	case SemesterSecond:
		return 2
	case SemesterThird:
		return 3
	}
	return 0
}

// String returns the string representation.
func (s Semester) String() string {
	return string(s)
}

// AcademicYear is a span like "2024-2025".
type AcademicYear string

var academicYearRegex = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// IsValid checks the "YYYY-YYYY" format with consecutive years.
func (y AcademicYear) IsValid() bool {
	m := academicYearRegex.FindStringSubmatch(string(y))
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

// StartYear returns the first calendar year, 0 if malformed.
func (y AcademicYear) StartYear() int {
	m := academicYearRegex.FindStringSubmatch(string(y))
	if m == nil {
		return 0
	}
	start, _ := strconv.Atoi(m[1])
	return start
}

// String returns the string representation.
func (y AcademicYear) String() string {
	return string(y)
}

// Term identifies one semester of one academic year.
type Term struct {
	Semester     Semester
	AcademicYear AcademicYear
}

// After reports whether t is later than other.
func (t Term) After(other Term) bool {
	if t.AcademicYear.StartYear() != other.AcademicYear.StartYear() {
		return t.AcademicYear.StartYear() > other.AcademicYear.StartYear()
	}
	return t.Semester.Ordinal() > other.Semester.Ordinal()
}

// IsZero reports whether the term is unset.
func (t Term) IsZero() bool {
	return t.Semester == "" && t.AcademicYear == ""
}

// String returns e.g. "FIRST 2024-2025".
func (t Term) String() string {
	return fmt.Sprintf("%s %s", t.Semester, t.AcademicYear)
}
