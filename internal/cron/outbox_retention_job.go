package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

const (
	outboxRetentionJobName = "outbox_retention"
	defaultOutboxRetention = 30 * 24 * time.Hour
)

type publishedEventPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRetentionJob deletes delivered outbox events and dead letters older
// than the retention window. Undelivered events are never touched.
type OutboxRetentionJob struct {
	events    publishedEventPruner
	dlq       deadLetterPruner
	retention time.Duration
	now       func() time.Time
}

func NewOutboxRetentionJob(events publishedEventPruner, dlq deadLetterPruner, retention time.Duration) (*OutboxRetentionJob, error) {
	if events == nil {
		return nil, errors.New("outbox repository required")
	}
	if dlq == nil {
		return nil, errors.New("dlq repository required")
	}
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &OutboxRetentionJob{
		events:    events,
		dlq:       dlq,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (j *OutboxRetentionJob) Name() string { return outboxRetentionJobName }

// Run prunes both tables even when one of them fails.
func (j *OutboxRetentionJob) Run(ctx context.Context) (Report, error) {
	cutoff := j.now().Add(-j.retention)
	report := Report{}
	var errs []error

	events, err := j.events.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("prune published events: %w", err))
	} else {
		report["deleted_events"] = int(events)
	}

	dead, err := j.dlq.DeleteBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("prune dead letters: %w", err))
	} else {
		report["deleted_dead_letters"] = int(dead)
	}
	return report, multierr.Combine(errs...)
}
