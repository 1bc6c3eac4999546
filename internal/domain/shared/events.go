package shared

import (
	"context"
	"fmt"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Trigger events come from the grade-entry and login
// workflows outside the engine; outcome events are published by the engine
// after its transaction commits.
const (
	// Trigger events
	EventGradeRecorded   EventType = "grading.grade_recorded"
	EventCourseCompleted EventType = "grading.course_completed"
	EventCourseReopened  EventType = "grading.course_reopened"
	EventUserLoggedIn    EventType = "activity.user_logged_in"

	// Outcome events
	EventPointsAwarded       EventType = "progress.points_awarded"
	EventLevelUp             EventType = "progress.level_up"
	EventStreakUpdated       EventType = "progress.streak_updated"
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventGoalAchieved        EventType = "goal.achieved"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Trigger Events
// ═══════════════════════════════════════════════════════════════════════════

// GradeRecordedEvent is emitted by the grade-entry workflow after a grade row
// is created or updated.
type GradeRecordedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	CourseID     string `json:"course_id"`
	AssessmentID string `json:"assessment_id"`
}

// Payload implements Event interface.
func (e GradeRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"course_id":     e.CourseID,
		"assessment_id": e.AssessmentID,
	}
}

// NewGradeRecordedEvent creates a new GradeRecordedEvent.
func NewGradeRecordedEvent(userID, courseID, assessmentID string) GradeRecordedEvent {
	return GradeRecordedEvent{
		BaseEvent:    NewBaseEvent(EventGradeRecorded, courseID),
		UserID:       userID,
		CourseID:     courseID,
		AssessmentID: assessmentID,
	}
}

// CourseCompletionEvent is emitted when a course is marked completed or
// reopened (the type tells which).
type CourseCompletionEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
}

// Payload implements Event interface.
func (e CourseCompletionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
	}
}

// NewCourseCompletedEvent creates an event for a course marked completed.
func NewCourseCompletedEvent(userID, courseID string) CourseCompletionEvent {
	return CourseCompletionEvent{
		BaseEvent: NewBaseEvent(EventCourseCompleted, courseID),
		UserID:    userID,
		CourseID:  courseID,
	}
}

// NewCourseReopenedEvent creates an event for a course marked incomplete.
func NewCourseReopenedEvent(userID, courseID string) CourseCompletionEvent {
	return CourseCompletionEvent{
		BaseEvent: NewBaseEvent(EventCourseReopened, courseID),
		UserID:    userID,
		CourseID:  courseID,
	}
}

// UserLoggedInEvent is emitted by the authentication layer on each login.
type UserLoggedInEvent struct {
	BaseEvent
	UserID     string    `json:"user_id"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// Payload implements Event interface.
func (e UserLoggedInEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"logged_in_at": e.LoggedInAt.Format(time.RFC3339),
	}
}

// NewUserLoggedInEvent creates a new UserLoggedInEvent.
func NewUserLoggedInEvent(userID string, at time.Time) UserLoggedInEvent {
	return UserLoggedInEvent{
		BaseEvent:  NewBaseEvent(EventUserLoggedIn, userID),
		UserID:     userID,
		LoggedInAt: at,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Outcome Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsAwardedEvent is emitted after points were added to a user's progress.
type PointsAwardedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	Points       int    `json:"points"`
	TotalPoints  int    `json:"total_points"`
	ActivityType string `json:"activity_type"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"points":        e.Points,
		"total_points":  e.TotalPoints,
		"activity_type": e.ActivityType,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(userID string, points, total int, activityType string) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:    NewBaseEvent(EventPointsAwarded, userID),
		UserID:       userID,
		Points:       points,
		TotalPoints:  total,
		ActivityType: activityType,
	}
}

// LevelUpEvent is emitted when a user crosses a level threshold.
type LevelUpEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	NewLevel  int    `json:"new_level"`
	RankTitle string `json:"rank_title"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"new_level":  e.NewLevel,
		"rank_title": e.RankTitle,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, level Level) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		NewLevel:  level.Int(),
		RankTitle: level.Title(),
	}
}

// AchievementUnlockedEvent is emitted when an achievement is awarded.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	Code          string `json:"code"`
	Rarity        string `json:"rarity"`
	PointsValue   int    `json:"points_value"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"code":           e.Code,
		"rarity":         e.Rarity,
		"points_value":   e.PointsValue,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, code, rarity string, points int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:        userID,
		AchievementID: achievementID,
		Code:          code,
		Rarity:        rarity,
		PointsValue:   points,
	}
}

// GoalAchievedEvent is emitted when an academic goal flips to achieved.
type GoalAchievedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	GoalID   string `json:"goal_id"`
	GoalType string `json:"goal_type"`
	Target   string `json:"target"`
}

// Payload implements Event interface.
func (e GoalAchievedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"goal_id":   e.GoalID,
		"goal_type": e.GoalType,
		"target":    e.Target,
	}
}

// NewGoalAchievedEvent creates a new GoalAchievedEvent.
func NewGoalAchievedEvent(userID, goalID, goalType, target string) GoalAchievedEvent {
	return GoalAchievedEvent{
		BaseEvent: NewBaseEvent(EventGoalAchieved, userID),
		UserID:    userID,
		GoalID:    goalID,
		GoalType:  goalType,
		Target:    target,
	}
}

// StreakUpdatedEvent is emitted after a login updated the streak.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	StreakDays     int    `json:"streak_days"`
	PreviousStreak int    `json:"previous_streak"`
	Broken         bool   `json:"broken"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"streak_days":     e.StreakDays,
		"previous_streak": e.PreviousStreak,
		"broken":          e.Broken,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, streak, previous int, broken bool) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:      NewBaseEvent(EventStreakUpdated, userID),
		UserID:         userID,
		StreakDays:     streak,
		PreviousStreak: previous,
		Broken:         broken,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// PayloadString reads a string field from an event payload. Events that
// crossed Redis arrive as plain maps, so handlers read fields this way
// instead of type-asserting the concrete event.
func PayloadString(e Event, key string) (string, error) {
	raw, ok := e.Payload()[key]
	if !ok {
		return "", NewDomainError("event", "Payload", ErrInvalidInput, fmt.Sprintf("missing %q in %s", key, e.EventType()))
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", NewDomainError("event", "Payload", ErrInvalidFormat, fmt.Sprintf("field %q in %s is not a non-empty string", key, e.EventType()))
	}
	return s, nil
}
