package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/bookswap/bookswap-backend/pkg/db/dbtest"
	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	"github.com/bookswap/bookswap-backend/pkg/outbox"
)

func TestOutboxRetentionJobPrunesOnlyOldDeliveredRows(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxEvent{}, &models.OutboxDLQ{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	insertEvent := func(published *time.Time) {
		t.Helper()
		require.NoError(t, conn.Create(&models.OutboxEvent{
			EventType:     enums.EventListingStockUpdated,
			AggregateType: enums.AggregateListing,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			PublishedAt:   published,
		}).Error)
	}
	insertEvent(&old)
	insertEvent(&recent)
	insertEvent(nil)

	for _, failedAt := range []time.Time{old, recent} {
		require.NoError(t, conn.Create(&models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventListingStockUpdated,
			AggregateType: enums.AggregateListing,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			FailedAt:      failedAt,
		}).Error)
	}

	job, err := NewOutboxRetentionJob(outbox.NewRepository(conn), outbox.NewDLQRepository(conn), 24*time.Hour)
	require.NoError(t, err)
	job.now = func() time.Time { return now }

	report, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{"deleted_events": 1, "deleted_dead_letters": 1}, report)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&events).Error)
	require.EqualValues(t, 2, events)

	var pending int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("published_at IS NULL").Count(&pending).Error)
	require.EqualValues(t, 1, pending)
}

type failingPruner struct{}

func (failingPruner) DeletePublishedBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func (failingPruner) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(failingPruner{}, failingPruner{}, 0)
	require.NoError(t, err)
	require.Equal(t, defaultOutboxRetention, job.retention)

	report, err := job.Run(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Empty(t, report)
}

type fakeReconciler struct {
	batch   int
	changed int
	err     error
}

func (f *fakeReconciler) ReconcileAll(_ context.Context, batch int) (int, error) {
	f.batch = batch
	return f.changed, f.err
}

func TestCartReconcileJobReportsChangedCarts(t *testing.T) {
	carts := &fakeReconciler{changed: 4}
	job, err := NewCartReconcileJob(carts, 200)
	require.NoError(t, err)
	require.Equal(t, "cart_reconcile", job.Name())

	report, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{"carts_changed": 4}, report)
	require.Equal(t, 200, carts.batch)

	carts.err = errors.New("db down")
	_, err = job.Run(context.Background())
	require.ErrorContains(t, err, "db down")

	_, err = NewCartReconcileJob(nil, 10)
	require.Error(t, err)
}
