package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	domain "github.com/alem-hub/gradebook/internal/domain/notification"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/circuitbreaker"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/alem-hub/gradebook/pkg/retry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu        sync.Mutex
	delivered map[domain.ChannelType]int
	attempts  map[domain.ChannelType]int
	failFirst map[domain.ChannelType]int
	broken    map[domain.ChannelType]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		delivered: map[domain.ChannelType]int{},
		attempts:  map[domain.ChannelType]int{},
		failFirst: map[domain.ChannelType]int{},
		broken:    map[domain.ChannelType]bool{},
	}
}

func (s *fakeSender) Deliver(_ context.Context, ch domain.ChannelType, _ domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[ch]++
	if s.broken[ch] {
		return retry.Permanent(errors.New("provider rejected message"))
	}
	if s.attempts[ch] <= s.failFirst[ch] {
		return errors.New("temporary outage")
	}
	s.delivered[ch]++
	return nil
}

func testDispatcher(sender domain.Sender) *Dispatcher {
	return NewDispatcher(sender, DispatcherConfig{
		Retry: retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, logger.Nop())
}

func TestDispatcher_FansOutByRarity(t *testing.T) {
	sender := newFakeSender()
	d := testDispatcher(sender)

	err := d.SendAchievementNotification(context.Background(), "u1", achievement.Achievement{
		ID: "a1", Code: "DEANS_LIST", Name: "Dean's List", Rarity: achievement.RarityLegendary,
	})

	require.NoError(t, err)
	assert.Equal(t, map[domain.ChannelType]int{
		domain.ChannelInApp:  1,
		domain.ChannelPush:   1,
		domain.ChannelEmail:  1,
		domain.ChannelDigest: 1,
	}, sender.delivered)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	sender := newFakeSender()
	sender.failFirst[domain.ChannelPush] = 2
	d := testDispatcher(sender)

	err := d.SendLevelUpNotification(context.Background(), "u1", shared.Level(3), "Novice")

	require.NoError(t, err)
	assert.Equal(t, 3, sender.attempts[domain.ChannelPush])
	assert.Equal(t, 1, sender.delivered[domain.ChannelPush])
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_FailedChannelDoesNotBlockOthers(t *testing.T) {
	sender := newFakeSender()
	sender.broken[domain.ChannelPush] = true
	d := testDispatcher(sender)

	g := goal.AcademicGoal{ID: "g1", GoalType: goal.TypeCumulativeGPA, TargetValue: decimal.RequireFromString("3.50")}
	err := d.SendGoalAchievementNotification(context.Background(), "u1", g, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrExternalService)
	assert.Equal(t, 1, sender.attempts[domain.ChannelPush], "permanent errors are not retried")
	assert.Equal(t, 1, sender.delivered[domain.ChannelInApp])

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ChannelPush, entries[0].Channel)
	assert.Equal(t, domain.TypeGoalAchieved, entries[0].Notification.Type)
}

func TestDispatcher_OpenCircuitSkipsChannel(t *testing.T) {
	sender := newFakeSender()
	sender.failFirst[domain.ChannelPush] = 100
	d := NewDispatcher(sender, DispatcherConfig{
		Retry:            retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		BreakerThreshold: 2,
		BreakerCooldown:  time.Hour,
	}, logger.Nop())

	err := d.SendLevelUpNotification(context.Background(), "u1", shared.Level(2), "Novice")
	require.Error(t, err)
	assert.Equal(t, 2, sender.attempts[domain.ChannelPush], "open circuit stops retries")
	assert.Equal(t, circuitbreaker.StateOpen, d.ChannelState(domain.ChannelPush))
	assert.Equal(t, circuitbreaker.StateClosed, d.ChannelState(domain.ChannelInApp))

	err = d.SendLevelUpNotification(context.Background(), "u1", shared.Level(3), "Novice")
	require.Error(t, err)
	assert.Equal(t, 2, sender.attempts[domain.ChannelPush])
	assert.Equal(t, 2, sender.delivered[domain.ChannelInApp])

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 2)
	assert.ErrorIs(t, entries[1].Error, circuitbreaker.ErrCircuitOpen)
}

func TestDispatcher_ReplayDeadLetters(t *testing.T) {
	sender := newFakeSender()
	sender.failFirst[domain.ChannelPush] = 3
	d := testDispatcher(sender)

	require.Error(t, d.SendLevelUpNotification(context.Background(), "u1", shared.Level(4), "Novice"))
	require.Equal(t, 1, d.DeadLetterQueue().Size())

	delivered, err := d.ReplayDeadLetters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Zero(t, d.DeadLetterQueue().Size())
	assert.Equal(t, 1, sender.delivered[domain.ChannelPush])

	sender.broken[domain.ChannelInApp] = true
	require.Error(t, d.SendLevelUpNotification(context.Background(), "u1", shared.Level(5), "Novice"))
	delivered, err = d.ReplayDeadLetters(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Equal(t, 1, d.DeadLetterQueue().Size(), "still failing entries are kept")
}

func TestDeadLetterQueue_DropsOldestAtCapacity(t *testing.T) {
	q := NewDeadLetterQueue(2)
	for _, ch := range []domain.ChannelType{domain.ChannelInApp, domain.ChannelPush, domain.ChannelEmail} {
		q.Add(DeadLetterEntry{Channel: ch})
	}

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ChannelPush, entries[0].Channel)
	assert.Equal(t, domain.ChannelEmail, entries[1].Channel)
}

func TestEncode_WireFormat(t *testing.T) {
	n := domain.NewLevelUpNotification("u1", shared.Level(5), "Apprentice")

	data, err := encode(domain.ChannelPush, n)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "push", decoded["channel"])
	inner := decoded["notification"].(map[string]any)
	assert.Equal(t, "level_up", inner["type"])
	assert.Equal(t, "u1", inner["user_id"])
	assert.Equal(t, "gradebook:notifications:email", QueueKey(domain.ChannelEmail))
}
