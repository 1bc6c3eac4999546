package achievement

import "context"

// Repository - каталог достижений и выданные достижения.
type Repository interface {
	// ListActive возвращает все активные определения.
	ListActive(ctx context.Context) ([]Achievement, error)

	// ListOwned возвращает полученные пользователем достижения с категориями.
	ListOwned(ctx context.Context, userID string) ([]Owned, error)

	// Award вставляет UserAchievement, если пары ещё нет.
	// inserted=false означает, что достижение уже было выдано.
	Award(ctx context.Context, ua UserAchievement) (inserted bool, err error)

	// Upsert создаёт или обновляет определение по Code (сидинг каталога).
	Upsert(ctx context.Context, a Achievement) error
}

// ProfileReader читает профиль из внешней таблицы пользователей.
type ProfileReader interface {
	// GetProfile возвращает shared.ErrUserNotFound, если пользователя нет.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
}
