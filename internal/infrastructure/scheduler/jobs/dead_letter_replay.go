// Package jobs contains the worker's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
)

// DeadLetterReplayer re-delivers undelivered notifications.
// Implemented by *notification.Dispatcher.
type DeadLetterReplayer interface {
	ReplayDeadLetters(ctx context.Context) (int, error)
}

// DeadLetterReplayJob periodically retries notifications that exhausted
// their delivery attempts.
type DeadLetterReplayJob struct {
	replayer DeadLetterReplayer
}

// NewDeadLetterReplayJob creates the job.
func NewDeadLetterReplayJob(replayer DeadLetterReplayer) *DeadLetterReplayJob {
	return &DeadLetterReplayJob{replayer: replayer}
}

func (j *DeadLetterReplayJob) Name() string { return "dead_letter_replay" }

func (j *DeadLetterReplayJob) Description() string {
	return "Retries notifications that failed on every delivery attempt"
}

// Run replays the queue once.
func (j *DeadLetterReplayJob) Run(ctx context.Context) error {
	if _, err := j.replayer.ReplayDeadLetters(ctx); err != nil {
		return fmt.Errorf("replay dead letters: %w", err)
	}
	return nil
}
