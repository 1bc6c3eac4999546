package jobs

import (
	"context"

	"github.com/alem-hub/gradebook/internal/infrastructure/messaging"
	"github.com/alem-hub/gradebook/pkg/logger"
)

// BusMetrics exposes event bus counters.
type BusMetrics interface {
	Metrics() *messaging.EventBusMetrics
}

// DeadLetterCounter reports the number of undelivered notifications.
type DeadLetterCounter interface {
	DeadLetterCount() int
}

// WorkerStatsJob logs event bus and notification counters.
type WorkerStatsJob struct {
	bus         BusMetrics
	deadLetters DeadLetterCounter
	log         *logger.Logger
}

// NewWorkerStatsJob creates the job.
func NewWorkerStatsJob(bus BusMetrics, deadLetters DeadLetterCounter, log *logger.Logger) *WorkerStatsJob {
	return &WorkerStatsJob{
		bus:         bus,
		deadLetters: deadLetters,
		log:         log.With(logger.Component("worker_stats")),
	}
}

func (j *WorkerStatsJob) Name() string { return "worker_stats" }

func (j *WorkerStatsJob) Description() string {
	return "Logs event handling and notification delivery counters"
}

// Run writes one stats line.
func (j *WorkerStatsJob) Run(_ context.Context) error {
	m := j.bus.Metrics()
	if m == nil {
		j.log.Info("worker stats", logger.Int("dead_letters", j.deadLetters.DeadLetterCount()))
		return nil
	}

	s := m.Snapshot()
	j.log.Info("worker stats",
		logger.Int64("events_published", s.TotalPublished),
		logger.Int64("handler_executions", s.TotalHandlerExecs),
		logger.Int64("handler_failures", s.HandlerFailures),
		logger.Float64("handler_success_rate", s.HandlerSuccessRate),
		logger.Duration("avg_handler_duration", s.AverageHandlerDuration),
		logger.Int("dead_letters", j.deadLetters.DeadLetterCount()),
	)
	return nil
}
