// Package progress содержит агрегат прогресса пользователя: очки, уровень,
// серию входов и журнал активности.
//
// UserProgress - единственный изменяемый агрегат геймификации. Все изменения
// идут через методы агрегата (AwardPoints, RecordLogin), а сохранение - через
// Repository целиком (read-modify-write под блокировкой строки).
package progress

import (
	"time"

	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/timeutil"
)

// UserProgress - одна строка на пользователя.
type UserProgress struct {
	UserID            string
	TotalPoints       shared.Points
	CurrentLevel      shared.Level
	PointsToNextLevel int
	StreakDays        int
	LastActivityDate  *timeutil.Date
	UpdatedAt         time.Time
}

// NewUserProgress создаёт начальный прогресс: уровень 1, 0 очков.
func NewUserProgress(userID string) *UserProgress {
	return &UserProgress{
		UserID:            userID,
		TotalPoints:       0,
		CurrentLevel:      shared.MinLevel,
		PointsToNextLevel: shared.MinLevel.RequiredPoints().Int(),
		UpdatedAt:         time.Now().UTC(),
	}
}

// AwardResult описывает итог начисления очков.
type AwardResult struct {
	Awarded       shared.Points
	Bonus         shared.Points
	PreviousLevel shared.Level
	NewLevel      shared.Level
	LeveledUp     bool
}

// AwardPoints начисляет очки и проверяет ровно один переход уровня.
//
// Если после начисления TotalPoints >= RequiredPoints(CurrentLevel), уровень
// растёт на 1 и начисляется бонус LevelUpBonus. Большое начисление, которое
// перекрывает два порога, повышает уровень только на один шаг; следующий
// переход произойдёт при следующем начислении. В этом случае
// PointsToNextLevel может стать отрицательным.
func (p *UserProgress) AwardPoints(points int) (AwardResult, error) {
	amount, err := shared.NewPoints(points)
	if err != nil {
		return AwardResult{}, shared.ErrNegativePoints
	}
	if !p.CurrentLevel.IsValid() {
		p.CurrentLevel = shared.MinLevel
	}

	result := AwardResult{
		Awarded:       amount,
		PreviousLevel: p.CurrentLevel,
		NewLevel:      p.CurrentLevel,
	}

	p.TotalPoints += amount

	if p.TotalPoints >= p.CurrentLevel.RequiredPoints() {
		p.CurrentLevel = p.CurrentLevel.Next()
		p.TotalPoints += shared.LevelUpBonus

		result.Bonus = shared.LevelUpBonus
		result.NewLevel = p.CurrentLevel
		result.LeveledUp = true
	}

	p.PointsToNextLevel = p.CurrentLevel.RequiredPoints().Int() - p.TotalPoints.Int()
	p.UpdatedAt = time.Now().UTC()

	return result, nil
}

// RecordLogin обновляет серию входов по календарной дате входа.
func (p *UserProgress) RecordLogin(today timeutil.Date) StreakResult {
	res := UpdateStreak(p.LastActivityDate, today, p.StreakDays)

	p.StreakDays = res.Streak
	last := res.LastActivity
	p.LastActivityDate = &last
	p.UpdatedAt = time.Now().UTC()

	return res
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY LOG
// ══════════════════════════════════════════════════════════════════════════════

// ActivityType - тип записи в журнале активности.
type ActivityType string

const (
	ActivityLogin           ActivityType = "login"
	ActivityAchievement     ActivityType = "achievement"
	ActivityGradeRecorded   ActivityType = "grade_recorded"
	ActivityCourseCompleted ActivityType = "course_completed"
	ActivityGoalAchieved    ActivityType = "goal_achieved"
	ActivityManual          ActivityType = "manual"
)

// IsValid checks if the activity type is known.
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityLogin, ActivityAchievement, ActivityGradeRecorded,
		ActivityCourseCompleted, ActivityGoalAchieved, ActivityManual:
		return true
	}
	return false
}

// ActivityLog - одна запись журнала: начисление очков или вход.
type ActivityLog struct {
	ID           string
	UserID       string
	ActivityType ActivityType
	Points       int
	CreatedAt    time.Time
}

// NewActivityLog создаёт запись журнала с новым ID.
func NewActivityLog(userID string, activityType ActivityType, points int, at time.Time) ActivityLog {
	return ActivityLog{
		ID:           shared.NewID(),
		UserID:       userID,
		ActivityType: activityType,
		Points:       points,
		CreatedAt:    at.UTC(),
	}
}
