package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Relayer re-publishes outbox events whose inline dispatch failed.
type Relayer interface {
	RelayPending(ctx context.Context, limit int) (int, error)
}

// RelayOutbox returns a cron job that drains up to batchSize pending events per run.
func RelayOutbox(relayer Relayer, batchSize int, timeout time.Duration, log *logrus.Entry) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		n, err := relayer.RelayPending(ctx, batchSize)
		if err != nil {
			log.WithError(err).Error("Error relaying outbox events")
			return
		}
		if n > 0 {
			log.WithField("dispatched", n).Info("Relayed pending outbox events")
		}
	})
}

// Schedule registers the relay on c. Overlapping runs are skipped.
func Schedule(c *cron.Cron, spec string, job cron.Job, log *logrus.Entry) (cron.EntryID, error) {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job)
	id, err := c.AddJob(spec, wrapped)
	if err != nil {
		return 0, err
	}
	log.WithField("schedule", spec).Info("Outbox relay scheduled")
	return id, nil
}
