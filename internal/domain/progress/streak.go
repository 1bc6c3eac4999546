package progress

import "github.com/alem-hub/gradebook/pkg/timeutil"

// StreakResult - результат обновления серии.
type StreakResult struct {
	Streak         int
	PreviousStreak int
	LastActivity   timeutil.Date
	Extended       bool
	Broken         bool
}

// UpdateStreak вычисляет новую серию по дате последней активности.
//
//   - нет даты            -> 1
//   - тот же день (0)     -> без изменений
//   - следующий день (1)  -> +1
//   - пропуск (>1) или дата в будущем (<0) -> сброс в 1
//
// LastActivity всегда переводится на today.
func UpdateStreak(last *timeutil.Date, today timeutil.Date, current int) StreakResult {
	res := StreakResult{
		PreviousStreak: current,
		LastActivity:   today,
	}

	if last == nil || last.IsZero() {
		res.Streak = 1
		return res
	}

	switch gap := timeutil.DaysBetween(*last, today); {
	case gap == 0:
		res.Streak = current
	case gap == 1:
		res.Streak = current + 1
		res.Extended = true
	default:
		res.Streak = 1
		res.Broken = current > 1
	}

	return res
}
