package saga

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/notification"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentDispatch bounds the goroutines used by Flush.
const maxConcurrentDispatch = 8

// Outbox collects notifications and outcome events produced inside a
// transaction. Nothing is sent until Flush, which callers invoke after the
// transaction committed. A transaction retry must Reset the outbox first.
type Outbox struct {
	mu     sync.Mutex
	sends  []func(ctx context.Context, d notification.Dispatcher) error
	kinds  []string
	events []shared.Event
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Reset drops everything queued so far.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sends, o.kinds, o.events = nil, nil, nil
}

// Len returns the number of queued notifications.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sends)
}

func (o *Outbox) add(kind string, send func(ctx context.Context, d notification.Dispatcher) error, ev shared.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sends = append(o.sends, send)
	o.kinds = append(o.kinds, kind)
	if ev != nil {
		o.events = append(o.events, ev)
	}
}

// AddEvent queues an outcome event without a notification.
func (o *Outbox) AddEvent(ev shared.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

// AddAchievement queues an achievement notification and event.
func (o *Outbox) AddAchievement(userID string, a achievement.Achievement) {
	o.add(string(notification.TypeAchievement), func(ctx context.Context, d notification.Dispatcher) error {
		return d.SendAchievementNotification(ctx, userID, a)
	}, shared.NewAchievementUnlockedEvent(userID, a.ID, a.Code, string(a.Rarity), a.PointsValue))
}

// AddLevelUp queues a level-up notification and event.
func (o *Outbox) AddLevelUp(userID string, level shared.Level) {
	o.add(string(notification.TypeLevelUp), func(ctx context.Context, d notification.Dispatcher) error {
		return d.SendLevelUpNotification(ctx, userID, level, level.Title())
	}, shared.NewLevelUpEvent(userID, level))
}

// AddGoal queues a goal notification and event. course is nil for GPA goals.
func (o *Outbox) AddGoal(userID string, g goal.AcademicGoal, course *grading.Course) {
	o.add(string(notification.TypeGoalAchieved), func(ctx context.Context, d notification.Dispatcher) error {
		return d.SendGoalAchievementNotification(ctx, userID, g, course)
	}, shared.NewGoalAchievedEvent(userID, g.ID, string(g.GoalType), g.TargetValue.String()))
}

// Flush sends every queued notification and publishes every queued event.
// Failures are logged and swallowed. It returns the number of notifications
// that were sent successfully.
func (o *Outbox) Flush(ctx context.Context, d notification.Dispatcher, pub shared.EventPublisher, log *logger.Logger) int {
	o.mu.Lock()
	sends, kinds, events := o.sends, o.kinds, o.events
	o.sends, o.kinds, o.events = nil, nil, nil
	o.mu.Unlock()

	var sent atomic.Int32
	var g errgroup.Group
	g.SetLimit(maxConcurrentDispatch)

	if d != nil {
		for i, send := range sends {
			kind := kinds[i]
			g.Go(func() error {
				if err := send(ctx, d); err != nil {
					log.Warn("notification dispatch failed",
						logger.String("kind", kind),
						logger.Err(err),
					)
					return nil
				}
				sent.Add(1)
				return nil
			})
		}
	}

	if pub != nil {
		for _, ev := range events {
			g.Go(func() error {
				if err := pub.Publish(ctx, ev); err != nil {
					log.Warn("outcome event publish failed",
						logger.EventType(string(ev.EventType())),
						logger.Err(err),
					)
				}
				return nil
			})
		}
	}

	_ = g.Wait()
	return int(sent.Load())
}
