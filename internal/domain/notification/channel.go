// Package notification содержит модель уведомлений движка и порт их
// отправки. Доставка (email, push) - внешний коллаборатор; движок лишь
// формирует уведомление и выбирает каналы по редкости достижения.
package notification

import (
	"github.com/alem-hub/gradebook/internal/domain/achievement"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL TYPE
// ══════════════════════════════════════════════════════════════════════════════

// ChannelType определяет канал доставки.
type ChannelType string

const (
	// ChannelInApp - лента уведомлений внутри приложения.
	ChannelInApp ChannelType = "in_app"

	// ChannelPush - push-уведомление на устройство.
	ChannelPush ChannelType = "push"

	// ChannelEmail - письмо.
	ChannelEmail ChannelType = "email"

	// ChannelDigest - выделение в еженедельной сводке.
	ChannelDigest ChannelType = "digest"
)

// IsValid проверяет корректность типа канала.
func (ct ChannelType) IsValid() bool {
	switch ct {
	case ChannelInApp, ChannelPush, ChannelEmail, ChannelDigest:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа канала.
func (ct ChannelType) String() string {
	return string(ct)
}

// ChannelsForRarity возвращает каналы по редкости: чем реже достижение,
// тем больше каналов.
func ChannelsForRarity(r achievement.Rarity) []ChannelType {
	switch r {
	case achievement.RarityRare:
		return []ChannelType{ChannelInApp, ChannelPush}
	case achievement.RarityEpic:
		return []ChannelType{ChannelInApp, ChannelPush, ChannelEmail}
	case achievement.RarityLegendary:
		return []ChannelType{ChannelInApp, ChannelPush, ChannelEmail, ChannelDigest}
	default:
		return []ChannelType{ChannelInApp}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PRIORITY
// ══════════════════════════════════════════════════════════════════════════════

// Priority - приоритет уведомления.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// PriorityForRarity maps rarity to delivery priority.
func PriorityForRarity(r achievement.Rarity) Priority {
	switch r {
	case achievement.RarityEpic, achievement.RarityLegendary:
		return PriorityHigh
	case achievement.RarityCommon:
		return PriorityLow
	default:
		return PriorityNormal
	}
}
