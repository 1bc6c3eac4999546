package notification

import (
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/shared"
)

// NotificationType - тип уведомления.
type NotificationType string

const (
	// TypeAchievement - получено достижение.
	TypeAchievement NotificationType = "achievement"

	// TypeLevelUp - повышение уровня.
	TypeLevelUp NotificationType = "level_up"

	// TypeGoalAchieved - достигнута академическая цель.
	TypeGoalAchieved NotificationType = "goal_achieved"
)

// Notification - сообщение для внешнего сервиса доставки.
type Notification struct {
	ID        string            `json:"id"`
	Type      NotificationType  `json:"type"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Channels  []ChannelType     `json:"channels"`
	Priority  Priority          `json:"priority"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func newNotification(t NotificationType, userID string) Notification {
	return Notification{
		ID:        shared.NewID(),
		Type:      t,
		UserID:    userID,
		Priority:  PriorityNormal,
		Channels:  []ChannelType{ChannelInApp},
		Data:      map[string]string{},
		CreatedAt: time.Now().UTC(),
	}
}

// NewAchievementNotification создаёт уведомление о достижении; каналы и
// приоритет зависят от редкости.
func NewAchievementNotification(userID string, a achievement.Achievement) Notification {
	n := newNotification(TypeAchievement, userID)
	n.Title = fmt.Sprintf("Achievement unlocked: %s", a.Name)
	n.Body = a.Description
	n.Channels = ChannelsForRarity(a.Rarity)
	n.Priority = PriorityForRarity(a.Rarity)
	n.Data["achievement_id"] = a.ID
	n.Data["code"] = a.Code
	n.Data["rarity"] = string(a.Rarity)
	n.Data["points"] = fmt.Sprintf("%d", a.PointsValue)
	return n
}

// NewLevelUpNotification создаёт уведомление о новом уровне.
func NewLevelUpNotification(userID string, level shared.Level, rankTitle string) Notification {
	n := newNotification(TypeLevelUp, userID)
	n.Title = fmt.Sprintf("Level %d reached", level.Int())
	n.Body = fmt.Sprintf("You are now a %s.", rankTitle)
	n.Channels = []ChannelType{ChannelInApp, ChannelPush}
	n.Data["level"] = fmt.Sprintf("%d", level.Int())
	n.Data["rank_title"] = rankTitle
	return n
}

// NewGoalAchievementNotification создаёт уведомление о цели. course может
// быть nil для целей по GPA.
func NewGoalAchievementNotification(userID string, g goal.AcademicGoal, course *grading.Course) Notification {
	n := newNotification(TypeGoalAchieved, userID)
	n.Channels = []ChannelType{ChannelInApp, ChannelPush}
	n.Data["goal_id"] = g.ID
	n.Data["goal_type"] = string(g.GoalType)
	n.Data["target"] = g.TargetValue.String()

	switch {
	case course != nil:
		n.Title = fmt.Sprintf("Goal reached in %s", course.Name)
		n.Body = fmt.Sprintf("Your course grade met the %s%% target.", g.TargetValue.String())
		n.Data["course_id"] = course.ID
	case g.GoalType == goal.TypeSemesterGPA:
		n.Title = "Semester GPA goal reached"
		n.Body = fmt.Sprintf("Your semester GPA met the %s target.", g.TargetValue.String())
	default:
		n.Title = "Cumulative GPA goal reached"
		n.Body = fmt.Sprintf("Your cumulative GPA met the %s target.", g.TargetValue.String())
	}
	return n
}
