package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{})
}

func TestInMemoryBus_DeliversOnlyToMatchingType(t *testing.T) {
	bus := syncBus()
	var grades, logins int

	require.NoError(t, bus.Subscribe(shared.EventGradeRecorded, func(ctx context.Context, e shared.Event) error {
		grades++
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventUserLoggedIn, func(ctx context.Context, e shared.Event) error {
		logins++
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), shared.NewGradeRecordedEvent("u1", "c1", "a1")))
	require.NoError(t, bus.Publish(context.Background(), shared.NewGradeRecordedEvent("u1", "c1", "a2")))
	require.NoError(t, bus.Publish(context.Background(), shared.NewCourseCompletedEvent("u1", "c1")))

	assert.Equal(t, 2, grades)
	assert.Zero(t, logins)
	assert.EqualValues(t, 2, bus.Metrics().Published(shared.EventGradeRecorded))
	assert.EqualValues(t, 3, bus.Metrics().Snapshot().TotalPublished)
}

func TestInMemoryBus_HandlerErrorsAndPanicsAreContained(t *testing.T) {
	bus := syncBus()
	var after int

	require.NoError(t, bus.Subscribe(shared.EventGradeRecorded, func(ctx context.Context, e shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventGradeRecorded, func(ctx context.Context, e shared.Event) error {
		panic("handler bug")
	}))
	require.NoError(t, bus.Subscribe(shared.EventGradeRecorded, func(ctx context.Context, e shared.Event) error {
		after++
		return nil
	}))

	err := bus.Publish(context.Background(), shared.NewGradeRecordedEvent("u1", "c1", "a1"))

	require.NoError(t, err)
	assert.Equal(t, 1, after)
	snap := bus.Metrics().Snapshot()
	assert.EqualValues(t, 3, snap.TotalHandlerExecs)
	assert.EqualValues(t, 2, snap.HandlerFailures)
	assert.InDelta(t, 1.0/3, snap.HandlerSuccessRate, 1e-9)
}

func TestInMemoryBus_AsyncCloseWaitsForHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})
	var done atomic.Int32

	require.NoError(t, bus.Subscribe(shared.EventUserLoggedIn, func(ctx context.Context, e shared.Event) error {
		time.Sleep(10 * time.Millisecond)
		done.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), shared.NewUserLoggedInEvent("u1", time.Now())))
	}
	require.NoError(t, bus.Close())

	assert.EqualValues(t, 5, done.Load())
	assert.ErrorIs(t, bus.Publish(context.Background(), shared.NewUserLoggedInEvent("u1", time.Now())), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventUserLoggedIn, func(context.Context, shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryBus_CloseDrainsHandlersQueuedForASlot(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 1})
	var recomputed atomic.Int32

	require.NoError(t, bus.Subscribe(shared.EventGradeRecorded, func(ctx context.Context, e shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		recomputed.Add(1)
		return nil
	}))

	for i := 0; i < 8; i++ {
		require.NoError(t, bus.Publish(context.Background(), shared.NewGradeRecordedEvent("u1", "c1", "a1")))
	}
	require.NoError(t, bus.Close())

	assert.EqualValues(t, 8, recomputed.Load())
	assert.EqualValues(t, 8, bus.Metrics().Snapshot().TotalHandlerExecs)
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis bus
// ─────────────────────────────────────────────────────────────────────────────

type fakeRedis struct {
	mu        sync.Mutex
	published []string
	messages  chan RedisMessage
	failPub   bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{messages: make(chan RedisMessage, 8)}
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPub {
		return errors.New("redis down")
	}
	f.published = append(f.published, message.(string))
	return nil
}

func (f *fakeRedis) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	return f.messages, nil
}

func newRedisBus(t *testing.T, client *fakeRedis) *RedisEventBus {
	t.Helper()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:     client,
		InstanceID: "self",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestRedisBus_PublishesEnvelopeAndDeliversLocally(t *testing.T) {
	client := newFakeRedis()
	bus := newRedisBus(t, client)
	var local int
	require.NoError(t, bus.Subscribe(shared.EventGradeRecorded, func(ctx context.Context, e shared.Event) error {
		local++
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), shared.NewGradeRecordedEvent("u1", "c1", "a1")))

	require.Len(t, client.published, 1)
	var env eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(client.published[0]), &env))
	assert.Equal(t, "self", env.InstanceID)
	assert.Equal(t, shared.EventGradeRecorded, env.EventType)
	assert.Equal(t, "c1", env.Payload["course_id"])
	assert.Equal(t, 1, local)
}

func TestRedisBus_RedisFailureStillDeliversLocally(t *testing.T) {
	client := newFakeRedis()
	client.failPub = true
	bus := newRedisBus(t, client)
	var local int
	require.NoError(t, bus.Subscribe(shared.EventCourseCompleted, func(ctx context.Context, e shared.Event) error {
		local++
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), shared.NewCourseCompletedEvent("u1", "c1")))
	assert.Equal(t, 1, local)
}

func TestRedisBus_RemoteEventsReachHandlersAndSelfEventsAreSkipped(t *testing.T) {
	client := newFakeRedis()
	bus := newRedisBus(t, client)

	received := make(chan shared.Event, 2)
	require.NoError(t, bus.Subscribe(shared.EventUserLoggedIn, func(ctx context.Context, e shared.Event) error {
		received <- e
		return nil
	}))

	self, _ := json.Marshal(eventEnvelope{InstanceID: "self", EventType: shared.EventUserLoggedIn, Payload: map[string]interface{}{"user_id": "me"}})
	remote, _ := json.Marshal(eventEnvelope{EventType: shared.EventUserLoggedIn, AggregateID: "u2", Payload: map[string]interface{}{"user_id": "u2"}})
	client.messages <- RedisMessage{Payload: "not json"}
	client.messages <- RedisMessage{Payload: string(self)}
	client.messages <- RedisMessage{Payload: string(remote)}

	select {
	case e := <-received:
		userID, err := shared.PayloadString(e, "user_id")
		require.NoError(t, err)
		assert.Equal(t, "u2", userID)
	case <-time.After(2 * time.Second):
		t.Fatal("remote event was not delivered")
	}

	assert.Empty(t, received)
}

func TestDecodeEnvelope_RequiresEventType(t *testing.T) {
	_, _, err := decodeEnvelope([]byte(`{"payload":{}}`))
	assert.Error(t, err)

	ev, instance, err := decodeEnvelope([]byte(`{"event_type":"grading.course_reopened","aggregate_id":"c1"}`))
	require.NoError(t, err)
	assert.Empty(t, instance)
	assert.Equal(t, shared.EventCourseReopened, ev.EventType())
	assert.NotNil(t, ev.Payload())
}
