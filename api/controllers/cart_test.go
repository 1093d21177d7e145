package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookswap/bookswap-backend/internal/cart"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
)

type stubCart struct {
	listingID uuid.UUID
	qty       int
	cleared   bool
	view      *cart.CartView
	err       error
}

func (s *stubCart) result() (*cart.CartView, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.view != nil {
		return s.view, nil
	}
	return &cart.CartView{Items: []cart.ItemView{}, TotalPrice: decimal.Zero}, nil
}

func (s *stubCart) AddItem(ctx context.Context, userID, listingID uuid.UUID, qty int) (*cart.CartView, error) {
	s.listingID, s.qty = listingID, qty
	return s.result()
}

func (s *stubCart) UpdateItem(ctx context.Context, userID, listingID uuid.UUID, qty int) (*cart.CartView, error) {
	s.listingID, s.qty = listingID, qty
	return s.result()
}

func (s *stubCart) RemoveItem(ctx context.Context, userID, listingID uuid.UUID) (*cart.CartView, error) {
	s.listingID = listingID
	return s.result()
}

func (s *stubCart) Clear(ctx context.Context, userID uuid.UUID) error {
	s.cleared = true
	return s.err
}

func (s *stubCart) ReadCart(ctx context.Context, userID uuid.UUID) (*cart.CartView, error) {
	return s.result()
}

func (s *stubCart) ReconcileAll(ctx context.Context, batch int) (int, error) {
	return 0, nil
}

func TestCartAddDefaultsQuantityToOne(t *testing.T) {
	svc := &stubCart{view: &cart.CartView{Items: []cart.ItemView{}, TotalItems: 1}}
	listingID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/cart/add", strings.NewReader(`{"listingId":"`+listingID.String()+`"}`))
	req = asUser(req, uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.qty != 1 || svc.listingID != listingID {
		t.Fatalf("unexpected add call qty=%d listing=%s", svc.qty, svc.listingID)
	}
	env := decodeEnvelope(t, resp)
	if dataString(t, env, "message") != "Item added to cart" {
		t.Fatalf("unexpected message")
	}
	if string(env.Data["totalItems"]) != "1" {
		t.Fatalf("expected totalItems 1, got %s", env.Data["totalItems"])
	}
}

func TestCartAddStockConflictCarriesDetails(t *testing.T) {
	svc := &stubCart{err: pkgerrors.New(pkgerrors.CodeStateConflict, "Only 1 unit(s) available. Cannot add 2 to cart.").
		WithDetails(map[string]any{"availableQuantity": 1})}
	req := httptest.NewRequest(http.MethodPost, "/api/cart/add", strings.NewReader(`{"listingId":"`+uuid.NewString()+`","quantity":2}`))
	req = asUser(req, uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	env := decodeEnvelope(t, resp)
	if env.Error.Code != string(pkgerrors.CodeStateConflict) || env.Error.Details["availableQuantity"] != float64(1) {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestCartAddRejectsBadListingID(t *testing.T) {
	svc := &stubCart{}
	req := httptest.NewRequest(http.MethodPost, "/api/cart/add", strings.NewReader(`{"listingId":"abc"}`))
	req = asUser(req, uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.listingID != uuid.Nil {
		t.Fatalf("service should not be called")
	}
}

func TestCartUpdateRequiresQuantity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/cart/update", strings.NewReader(`{"listingId":"`+uuid.NewString()+`"}`))
	req = asUser(req, uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	CartUpdate(&stubCart{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartUpdatePassesNonPositiveQuantityThrough(t *testing.T) {
	for _, qty := range []string{"0", "-1"} {
		listingID := uuid.New()
		svc := &stubCart{qty: 99}
		body := `{"listingId":"` + listingID.String() + `","quantity":` + qty + `}`
		req := httptest.NewRequest(http.MethodPut, "/api/cart/update", strings.NewReader(body))
		req = asUser(req, uuid.New(), enums.UserRoleUser)
		resp := httptest.NewRecorder()
		CartUpdate(svc, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("quantity %s: expected 200 got %d: %s", qty, resp.Code, resp.Body.String())
		}
		if svc.listingID != listingID || strconv.Itoa(svc.qty) != qty {
			t.Fatalf("quantity %s: service saw %s/%d", qty, svc.listingID, svc.qty)
		}
	}
}

func TestCartRemoveUsesPathParam(t *testing.T) {
	svc := &stubCart{}
	listingID := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/cart/remove/"+listingID.String(), nil), "listingId", listingID.String())
	req = asUser(req, uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	CartRemove(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || svc.listingID != listingID {
		t.Fatalf("expected removal of %s, got code %d listing %s", listingID, resp.Code, svc.listingID)
	}
}

func TestCartClearReturnsEmptyShape(t *testing.T) {
	svc := &stubCart{}
	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/cart/clear", nil), uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	CartClear(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || !svc.cleared {
		t.Fatalf("expected cleared cart, got %d", resp.Code)
	}
	env := decodeEnvelope(t, resp)
	if string(env.Data["items"]) != "[]" || string(env.Data["totalItems"]) != "0" || string(env.Data["totalPrice"]) != "0" {
		t.Fatalf("unexpected clear payload %v", env.Data)
	}
}

func TestCartGetRequiresSession(t *testing.T) {
	resp := httptest.NewRecorder()
	CartGet(&stubCart{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
