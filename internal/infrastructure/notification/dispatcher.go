// Package notification delivers engine notifications. The Dispatcher fans a
// notification out to every channel chosen for it and retries each channel
// independently behind a per-channel circuit breaker. The Senders put the message where the delivery services
// pick it up.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	domain "github.com/alem-hub/gradebook/internal/domain/notification"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/circuitbreaker"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/alem-hub/gradebook/pkg/retry"

	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher implements domain.Dispatcher over a channel Sender.
type Dispatcher struct {
	sender domain.Sender
	policy retry.Policy
	dlq    *DeadLetterQueue
	log    *logger.Logger

	breakerOpts []circuitbreaker.Option
	mu          sync.Mutex
	breakers    map[domain.ChannelType]*circuitbreaker.CircuitBreaker
}

// DispatcherConfig contains configuration for Dispatcher.
type DispatcherConfig struct {
	// Retry is applied per channel.
	Retry retry.Policy

	// DeadLetterSize bounds the in-memory queue of undelivered messages.
	DeadLetterSize int

	// BreakerThreshold consecutive failed attempts open a channel's
	// circuit for BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Retry:            retry.NotificationPolicy(),
		DeadLetterSize:   1000,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(sender domain.Sender, config DispatcherConfig, log *logger.Logger) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		policy: config.Retry,
		dlq:    NewDeadLetterQueue(config.DeadLetterSize),
		log:    log.With(logger.Component("notification_dispatcher")),

		breakers: make(map[domain.ChannelType]*circuitbreaker.CircuitBreaker),
	}
	d.breakerOpts = []circuitbreaker.Option{
		circuitbreaker.WithFailureThreshold(config.BreakerThreshold),
		circuitbreaker.WithCooldown(config.BreakerCooldown),
		// A rejected message says nothing about the channel.
		circuitbreaker.WithIsFailure(func(err error) bool { return !retry.IsPermanent(err) }),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			d.log.Warn("notification channel circuit changed",
				logger.String("channel", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	}
	if d.policy.OnRetry == nil {
		d.policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			d.log.Debug("notification delivery retry",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}
	}
	return d
}

// SendAchievementNotification sends an unlocked-achievement notification on
// the channels of its rarity.
func (d *Dispatcher) SendAchievementNotification(ctx context.Context, userID string, a achievement.Achievement) error {
	return d.send(ctx, domain.NewAchievementNotification(userID, a))
}

// SendLevelUpNotification sends a level-up notification.
func (d *Dispatcher) SendLevelUpNotification(ctx context.Context, userID string, newLevel shared.Level, rankTitle string) error {
	return d.send(ctx, domain.NewLevelUpNotification(userID, newLevel, rankTitle))
}

// SendGoalAchievementNotification sends a goal notification. course is nil
// for GPA goals.
func (d *Dispatcher) SendGoalAchievementNotification(ctx context.Context, userID string, g goal.AcademicGoal, course *grading.Course) error {
	return d.send(ctx, domain.NewGoalAchievementNotification(userID, g, course))
}

// DeadLetterQueue returns messages that exhausted their retries.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.dlq
}

// DeadLetterCount returns the number of undelivered messages.
func (d *Dispatcher) DeadLetterCount() int {
	return d.dlq.Size()
}

// ReplayDeadLetters makes one more delivery attempt for every dead letter.
// Entries whose channel still fails, or whose circuit is open, go back to the
// queue. It returns the number delivered.
func (d *Dispatcher) ReplayDeadLetters(ctx context.Context) (int, error) {
	entries := d.dlq.Drain()
	delivered := 0

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			for _, rest := range entries[i:] {
				d.dlq.Add(rest)
			}
			return delivered, err
		}

		err := d.breaker(e.Channel).Execute(ctx, func(ctx context.Context) error {
			return d.sender.Deliver(ctx, e.Channel, e.Notification)
		})
		if err != nil {
			e.Error = err
			e.FailedAt = time.Now().UTC()
			d.dlq.Add(e)
			continue
		}
		delivered++
	}

	if len(entries) > 0 {
		d.log.Info("dead letters replayed",
			logger.Int("delivered", delivered),
			logger.Int("remaining", len(entries)-delivered),
		)
	}
	return delivered, nil
}

// breaker returns the circuit breaker of ch.
func (d *Dispatcher) breaker(ch domain.ChannelType) *circuitbreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.breakers[ch]
	if !ok {
		cb = circuitbreaker.New(ch.String(), d.breakerOpts...)
		d.breakers[ch] = cb
	}
	return cb
}

// ChannelState returns the circuit state of ch.
func (d *Dispatcher) ChannelState(ch domain.ChannelType) circuitbreaker.State {
	return d.breaker(ch).State()
}

// send delivers n on all of its channels concurrently. A failing channel
// does not stop the others.
func (d *Dispatcher) send(ctx context.Context, n domain.Notification) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	for _, ch := range n.Channels {
		g.Go(func() error {
			cb := d.breaker(ch)
			err := retry.Do(ctx, d.policy, func(ctx context.Context) error {
				err := cb.Execute(ctx, func(ctx context.Context) error {
					return d.sender.Deliver(ctx, ch, n)
				})
				if circuitbreaker.IsRejected(err) {
					return retry.Permanent(err)
				}
				return err
			})
			if err == nil {
				return nil
			}

			d.dlq.Add(DeadLetterEntry{
				Notification: n,
				Channel:      ch,
				Error:        err,
				FailedAt:     time.Now().UTC(),
			})
			d.log.Warn("notification delivery failed",
				logger.UserID(n.UserID),
				logger.String("type", string(n.Type)),
				logger.String("channel", ch.String()),
				logger.Err(err),
			)

			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return shared.WrapError("notification", "Send", shared.ErrExternalService,
			fmt.Sprintf("%d of %d channels failed", len(errs), len(n.Channels)), errors.Join(errs...))
	}

	d.log.Debug("notification sent",
		logger.UserID(n.UserID),
		logger.String("type", string(n.Type)),
		logger.Int("channels", len(n.Channels)),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry represents an undelivered notification on one channel.
type DeadLetterEntry struct {
	Notification domain.Notification
	Channel      domain.ChannelType
	Error        error
	FailedAt     time.Time
}

// DeadLetterQueue stores notifications that failed delivery.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{
		entries: make([]DeadLetterEntry, 0),
		maxSize: maxSize,
	}
}

// Add adds an entry, dropping the oldest at capacity.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}

	q.entries = append(q.entries, entry)
}

// Entries returns all entries.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]DeadLetterEntry, len(q.entries))
	copy(result, q.entries)
	return result
}

// Drain removes and returns all entries.
func (q *DeadLetterQueue) Drain() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.entries
	q.entries = make([]DeadLetterEntry, 0, len(drained))
	return drained
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
