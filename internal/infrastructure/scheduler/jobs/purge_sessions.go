// Package jobs contains the scheduled maintenance jobs.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/aula-hub/gradebook/pkg/logger"
)

// Purger is implemented by session stores that keep expired rows until
// told to drop them.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeSessionsJob deletes expired sessions.
type PurgeSessionsJob struct {
	store   Purger
	timeout time.Duration
	log     *logger.Logger

	// OnPurged receives the number of removed sessions after each run.
	OnPurged func(n int64)
}

func NewPurgeSessionsJob(store Purger, timeout time.Duration, log *logger.Logger) *PurgeSessionsJob {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PurgeSessionsJob{store: store, timeout: timeout, log: log}
}

func (j *PurgeSessionsJob) Name() string { return "purge_sessions" }

func (j *PurgeSessionsJob) Description() string {
	return "deletes sessions whose TTL has elapsed"
}

func (j *PurgeSessionsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	n, err := j.store.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	if n > 0 {
		j.log.Info("expired sessions purged", logger.Int64("count", n))
	}
	if j.OnPurged != nil {
		j.OnPurged(n)
	}
	return nil
}
