package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
)

// QueueEvictor is the queue surface the job drains: remove entries that
// joined before the cutoff and report them.
type QueueEvictor interface {
	EvictBefore(cutoff time.Time) []model.QueueEntry
}

// Job evicts queue entries that sat unmatched past their TTL. Eviction is
// silent on purpose: the entry's owner may long be gone, and a live client
// just joins again.
type Job struct {
	queue    QueueEvictor
	entryTTL time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func New(queue QueueEvictor, entryTTL, interval time.Duration, logger *zap.Logger) *Job {
	if entryTTL <= 0 {
		entryTTL = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		queue:    queue,
		entryTTL: entryTTL,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// RunOnce performs a single eviction pass.
func (j *Job) RunOnce() int {
	if j.queue == nil {
		return 0
	}

	cutoff := j.now().UTC().Add(-j.entryTTL)
	evicted := j.queue.EvictBefore(cutoff)
	if len(evicted) > 0 {
		j.logger.Info("stale queue entries evicted",
			zap.Int("count", len(evicted)),
			zap.Duration("entry_ttl", j.entryTTL),
		)
	}
	return len(evicted)
}

// Run loops on the configured interval until ctx is cancelled.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// WithClock replaces the time source, for tests.
func (j *Job) WithClock(now func() time.Time) *Job {
	if now != nil {
		j.now = now
	}
	return j
}
