package cron

import (
	"context"
	"errors"
	"fmt"
)

const cartReconcileJobName = "cart_reconcile"

type cartReconciler interface {
	ReconcileAll(ctx context.Context, batch int) (int, error)
}

// CartReconcileJob heals every cart against current stock so abandoned carts
// do not keep pointing at sold-out books.
type CartReconcileJob struct {
	carts cartReconciler
	batch int
}

func NewCartReconcileJob(carts cartReconciler, batch int) (*CartReconcileJob, error) {
	if carts == nil {
		return nil, errors.New("cart service required")
	}
	return &CartReconcileJob{carts: carts, batch: batch}, nil
}

func (j *CartReconcileJob) Name() string { return cartReconcileJobName }

func (j *CartReconcileJob) Run(ctx context.Context) (Report, error) {
	changed, err := j.carts.ReconcileAll(ctx, j.batch)
	if err != nil {
		return Report{"carts_changed": changed}, fmt.Errorf("reconcile carts: %w", err)
	}
	return Report{"carts_changed": changed}, nil
}
