package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alem-hub/gradebook/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := New(Config{Logger: logger.Nop(), Tick: 5 * time.Millisecond})
	job := &countingJob{name: "replay"}
	require.NoError(t, s.Register(job, Every(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	after := job.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, job.runs.Load(), "no runs after stop")
}

func TestScheduler_RegisterRejectsDuplicates(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.Register(&countingJob{name: "stats"}, Every(time.Minute)))

	err := s.Register(&countingJob{name: "stats"}, Every(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
}

func TestScheduler_RunNowRecordsResult(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(Config{Now: func() time.Time { return now }})

	failing := &countingJob{name: "replay", err: errors.New("redis down")}
	require.NoError(t, s.Register(failing, Every(time.Minute)))
	require.NoError(t, s.Register(&countingJob{name: "stats"}, Every(time.Minute)))

	result, err := s.RunNow(context.Background(), "replay")
	require.Error(t, err)
	assert.False(t, result.Success())
	assert.True(t, result.Manual)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "replay", jobs[0].Name)
	assert.Equal(t, int64(1), jobs[0].RunCount)
	assert.Equal(t, int64(1), jobs[0].FailCount)
	assert.Equal(t, now.Add(time.Minute), jobs[0].NextRun)
	assert.Equal(t, "@every 1m0s", jobs[1].Schedule)
	assert.Nil(t, jobs[1].LastResult)
}
