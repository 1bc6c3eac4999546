package progress

import "context"

// Repository хранит агрегат UserProgress.
type Repository interface {
	// Get возвращает прогресс пользователя.
	// Возвращает shared.ErrProgressNotFound, если строки нет.
	Get(ctx context.Context, userID string) (*UserProgress, error)

	// GetForUpdate читает прогресс с блокировкой строки до конца транзакции.
	// Отсутствующая строка сначала создаётся в начальном состоянии, поэтому
	// конкурирующие транзакции ждут одну и ту же блокировку.
	// Возвращает shared.ErrUserNotFound, если пользователя нет.
	GetForUpdate(ctx context.Context, userID string) (*UserProgress, error)

	// Save создаёт или обновляет строку целиком.
	Save(ctx context.Context, p *UserProgress) error
}

// ActivityRepository - журнал активности.
type ActivityRepository interface {
	Append(ctx context.Context, entry ActivityLog) error

	// CountByUser - число записей пользователя (прокси для total_login_days).
	CountByUser(ctx context.Context, userID string) (int, error)
}
