package grading

import (
	"context"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository - доступ к курсам и их исходным строкам.
type CourseRepository interface {
	// GetCourse возвращает курс по ID.
	// Возвращает shared.ErrCourseNotFound, если курс не найден.
	GetCourse(ctx context.Context, courseID string) (*Course, error)

	// LoadSheet возвращает курс вместе с категориями, заданиями и оценками.
	LoadSheet(ctx context.Context, courseID string) (*Sheet, error)

	// ListByUser возвращает все курсы пользователя.
	ListByUser(ctx context.Context, userID string) ([]Course, error)

	// SaveCalculated сохраняет кэшированные колонки оценки и GPA.
	SaveCalculated(ctx context.Context, courseID string, grade decimal.Decimal, gpa *decimal.Decimal) error

	// SetCompleted помечает курс завершённым или снова открытым.
	SetCompleted(ctx context.Context, courseID string, completed bool) error

	// ListGradesByUser возвращает все оценки пользователя, включая пересдачи.
	ListGradesByUser(ctx context.Context, userID string) ([]Grade, error)
}

// CourseGradeCache кэширует результат пересчёта курса.
type CourseGradeCache interface {
	GetBreakdown(ctx context.Context, courseID string) (*Breakdown, error)
	SetBreakdown(ctx context.Context, courseID string, b Breakdown) error
	Invalidate(ctx context.Context, courseID string) error
}
