package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap-backend/internal/cart"
	"github.com/bookswap/bookswap-backend/pkg/db"
	"github.com/bookswap/bookswap-backend/pkg/db/dbtest"
	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

type stubReconciler struct {
	batch   int
	changed int
	err     error
}

func (s *stubReconciler) ReconcileAll(_ context.Context, batch int) (int, error) {
	s.batch = batch
	return s.changed, s.err
}

func TestNewCartReconcileJobRequiresService(t *testing.T) {
	_, err := NewCartReconcileJob(nil, 10)
	require.Error(t, err)
}

func TestCartReconcileJobPassesBatchAndReports(t *testing.T) {
	carts := &stubReconciler{changed: 3}
	job, err := NewCartReconcileJob(carts, 25)
	require.NoError(t, err)
	require.Equal(t, "cart_reconcile", job.Name())

	report, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 25, carts.batch)
	require.Equal(t, Report{"carts_changed": 3}, report)
}

func TestCartReconcileJobKeepsPartialCountOnError(t *testing.T) {
	boom := errors.New("db gone")
	job, err := NewCartReconcileJob(&stubReconciler{changed: 2, err: boom}, 10)
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "reconcile carts")
	require.Equal(t, Report{"carts_changed": 2}, report)
}

func TestCartReconcileJobDropsSoldOutLines(t *testing.T) {
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	svc, err := cart.NewService(cart.NewRepository(conn), db.FromGorm(conn), logg)
	require.NoError(t, err)

	buyer := models.User{Username: "buyer", Email: "buyer@example.com", PasswordHash: "x", Role: enums.UserRoleUser}
	seller := models.User{Username: "seller", Email: "seller@example.com", PasswordHash: "x", Role: enums.UserRoleUser}
	require.NoError(t, conn.Create(&buyer).Error)
	require.NoError(t, conn.Create(&seller).Error)
	book := models.Listing{
		Title:       "Dune",
		Author:      "Frank Herbert",
		Description: "Paperback, some wear.",
		Condition:   enums.ListingConditionGood,
		Category:    enums.ListingCategoryFiction,
		Price:       decimal.RequireFromString("100"),
		City:        "Delhi",
		Quantity:    2,
		SellerID:    seller.ID,
		SellerPhone: "9999999999",
		SellerEmail: "seller@example.com",
		UPIID:       "seller@upi",
	}
	require.NoError(t, conn.Create(&book).Error)

	ctx := context.Background()
	_, err = svc.AddItem(ctx, buyer.ID, book.ID, 1)
	require.NoError(t, err)
	require.NoError(t, conn.Model(&models.Listing{}).Where("id = ?", book.ID).Update("quantity", 0).Error)

	job, err := NewCartReconcileJob(svc, 1)
	require.NoError(t, err)
	report, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Report{"carts_changed": 1}, report)

	var stored models.Cart
	require.NoError(t, conn.Where("user_id = ?", buyer.ID).First(&stored).Error)
	require.Zero(t, stored.TotalItems)

	report, err = job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Report{"carts_changed": 0}, report)
}
