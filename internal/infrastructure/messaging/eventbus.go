// Package messaging implements the event buses of the gradebook engine.
// The in-memory bus serves single-instance deployments and tests; the Redis
// bus shares events between worker instances over Pub/Sub.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
)

var (
	// ErrEventBusClosed is returned by Publish and Subscribe after Close.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")

	errNilHandler = errors.New("handler cannot be nil")
	errNilEvent   = errors.New("event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig configures InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a bounded pool instead of inside Publish.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent async handlers.
	WorkerPoolSize int

	Logger *logger.Logger
}

// DefaultInMemoryEventBusConfig is what the worker runs with.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 10}
}

// InMemoryEventBus implements shared.EventBus inside one process.
// Handler failures are logged and counted; they never reach the publisher.
type InMemoryEventBus struct {
	async bool
	slots chan struct{}
	log   *logger.Logger
	stats *EventBusMetrics

	mu       sync.RWMutex
	handlers map[shared.EventType][]shared.EventHandler
	closed   bool
	inflight sync.WaitGroup
}

// NewInMemoryEventBus creates an open bus.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 10
	}
	return &InMemoryEventBus{
		async:    cfg.AsyncMode,
		slots:    make(chan struct{}, cfg.WorkerPoolSize),
		log:      cfg.Logger.With(logger.Component("event_bus")),
		stats:    NewEventBusMetrics(),
		handlers: make(map[shared.EventType][]shared.EventHandler),
	}
}

// Subscribe adds handler for eventType. Handlers run in subscription order
// in synchronous mode.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.log.Debug("subscribed handler", logger.EventType(string(eventType)))
	return nil
}

// Publish hands event to every handler of its type.
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return errNilEvent
	}

	handlers, err := b.handlersFor(event.EventType())
	if err != nil {
		return err
	}
	b.stats.RecordPublish(event.EventType())

	for _, h := range handlers {
		if b.async {
			b.spawn(ctx, event, h)
		} else {
			b.run(ctx, event, h)
		}
	}
	return nil
}

// handlersFor copies the handler list so Publish runs without the lock.
// In async mode the handlers are counted as in flight under the same lock,
// so a concurrent Close either rejects the event or waits for all of them.
func (b *InMemoryEventBus) handlersFor(t shared.EventType) ([]shared.EventHandler, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrEventBusClosed
	}
	handlers := append([]shared.EventHandler(nil), b.handlers[t]...)
	if b.async {
		b.inflight.Add(len(handlers))
	}
	return handlers, nil
}

// spawn runs h on the pool. The handler keeps the publisher's values but
// not its cancellation. The caller has already counted it in inflight.
func (b *InMemoryEventBus) spawn(ctx context.Context, event shared.Event, h shared.EventHandler) {
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer b.inflight.Done()
		b.slots <- struct{}{}
		defer func() { <-b.slots }()
		b.run(ctx, event, h)
	}()
}

func (b *InMemoryEventBus) run(ctx context.Context, event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := invoke(ctx, event, h)
	elapsed := time.Since(start)
	b.stats.RecordHandlerExecution(event.EventType(), elapsed, err == nil)
	if err != nil {
		b.log.Error("event handler failed",
			logger.EventType(string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Latency(elapsed),
			logger.Err(err),
		)
	}
}

func invoke(ctx context.Context, event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	return h(ctx, event)
}

// Close rejects further events and waits until every accepted handler,
// including those still queued for a pool slot, has finished.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.inflight.Wait()
	b.log.Info("event bus closed")
	return nil
}

// Metrics returns the live counters.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.stats
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts published events and handler runs.
type EventBusMetrics struct {
	mu        sync.Mutex
	published map[shared.EventType]int64
	execs     int64
	failures  int64
	busy      time.Duration
}

// NewEventBusMetrics creates zeroed counters.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{published: make(map[shared.EventType]int64)}
}

// RecordPublish counts one published event.
func (m *EventBusMetrics) RecordPublish(t shared.EventType) {
	m.mu.Lock()
	m.published[t]++
	m.mu.Unlock()
}

// RecordHandlerExecution counts one handler run.
func (m *EventBusMetrics) RecordHandlerExecution(_ shared.EventType, d time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs++
	m.busy += d
	if !ok {
		m.failures++
	}
}

// Published returns the publish count for one event type.
func (m *EventBusMetrics) Published(t shared.EventType) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[t]
}

// EventBusMetricsSnapshot is a point-in-time copy of the counters.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerFailures        int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
}

// Snapshot copies the counters. With no runs yet the success rate is 1.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := EventBusMetricsSnapshot{
		TotalHandlerExecs:  m.execs,
		HandlerFailures:    m.failures,
		HandlerSuccessRate: 1,
	}
	for _, n := range m.published {
		s.TotalPublished += n
	}
	if m.execs > 0 {
		s.AverageHandlerDuration = m.busy / time.Duration(m.execs)
		s.HandlerSuccessRate = float64(m.execs-m.failures) / float64(m.execs)
	}
	return s
}
