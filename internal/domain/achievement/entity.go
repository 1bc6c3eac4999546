// Package achievement содержит каталог достижений и движок правил их выдачи.
//
// Каждое достижение описывает условие разблокировки декларативно:
// UnlockCriteria - это map "вид критерия -> параметр". Вид критерия
// определяется по фиксированному приоритету (см. CriterionKind), и
// проверяется только первый распознанный ключ.
//
// Проверка идёт против Snapshot - снимка состояния пользователя: прогресс,
// оценки, цели, число записей активности, профиль и уже полученные
// достижения.
package achievement

import (
	"time"

	"github.com/alem-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Rarity - редкость достижения. Определяет каналы уведомления.
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// IsValid checks if the rarity is known.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Category - тематическая группа достижения.
type Category string

const (
	CategoryAcademic    Category = "ACADEMIC"
	CategoryGoals       Category = "GOALS"
	CategoryConsistency Category = "CONSISTENCY"
	CategoryMilestones  Category = "MILESTONES"
	CategorySpecial     Category = "SPECIAL"
)

// AllCategories returns every category kind. all_categories compares the
// owned distinct categories against its length.
func AllCategories() []Category {
	return []Category{
		CategoryAcademic,
		CategoryGoals,
		CategoryConsistency,
		CategoryMilestones,
		CategorySpecial,
	}
}

// IsValid checks if the category is known.
func (c Category) IsValid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - определение достижения из каталога.
type Achievement struct {
	ID             string
	Code           string
	Name           string
	Description    string
	UnlockCriteria map[string]any
	Rarity         Rarity
	PointsValue    int
	Category       Category
	IsActive       bool
}

// Validate checks the definition without parsing the criteria.
func (a Achievement) Validate() error {
	if a.Code == "" || a.Name == "" {
		return shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "code and name are required")
	}
	if !a.Rarity.IsValid() {
		return shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "unknown rarity "+string(a.Rarity))
	}
	if !a.Category.IsValid() {
		return shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "unknown category "+string(a.Category))
	}
	if a.PointsValue < 0 {
		return shared.NewDomainError("achievement", "Validate", shared.ErrNegativeValue, "points value cannot be negative")
	}
	return nil
}

// UserAchievement - выданное достижение. Пара (UserID, AchievementID)
// уникальна.
type UserAchievement struct {
	ID            string
	UserID        string
	AchievementID string
	EarnedAt      time.Time
}

// NewUserAchievement создаёт запись о выдаче.
func NewUserAchievement(userID, achievementID string, at time.Time) UserAchievement {
	return UserAchievement{
		ID:            shared.NewID(),
		UserID:        userID,
		AchievementID: achievementID,
		EarnedAt:      at.UTC(),
	}
}

// Owned - полученное достижение вместе с его категорией.
type Owned struct {
	AchievementID string
	Category      Category
	EarnedAt      time.Time
}

// UserProfile - данные профиля из внешней таблицы пользователей.
type UserProfile struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// IsComplete reports whether email and both names are filled in.
func (p UserProfile) IsComplete() bool {
	return p.Email != "" && p.FirstName != "" && p.LastName != ""
}
