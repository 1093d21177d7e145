package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/types"
)

func TestWriteSuccessWrapsData(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", got)
	}
	var body types.Envelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteMessageMergesExtraFields(t *testing.T) {
	w := httptest.NewRecorder()
	WriteMessage(w, http.StatusCreated, "Item added to cart", map[string]any{"totalItems": 2})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", w.Code)
	}
	var body struct {
		Data struct {
			Message    string `json:"message"`
			TotalItems int    `json:"totalItems"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Message != "Item added to cart" || body.Data.TotalItems != 2 {
		t.Fatalf("unexpected payload %+v", body.Data)
	}
}

func TestWriteErrorExposesBusinessDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeStateConflict, "Only 5 unit(s) available. Current cart has 2, cannot add 4 more.").
		WithDetails(map[string]any{"availableQuantity": 5, "currentQuantity": 2})
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if !strings.HasPrefix(body.Error.Message, "Only 5 unit(s) available") {
		t.Fatalf("expected business message, got %q", body.Error.Message)
	}
	details, ok := body.Error.Details.(map[string]any)
	if !ok || details["availableQuantity"] != float64(5) {
		t.Fatalf("expected details in public payload, got %v", body.Error.Details)
	}
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("pq: connection refused"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("expected internal code, got %s", body.Error.Code)
	}
	if strings.Contains(body.Error.Message, "connection refused") {
		t.Fatalf("internal error leaked: %q", body.Error.Message)
	}
}

func TestWriteStreamSetsHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteStream(w, "image/png", 3, strings.NewReader("png"))
	if w.Header().Get("Content-Type") != "image/png" || w.Header().Get("Content-Length") != "3" {
		t.Fatalf("unexpected headers %v", w.Header())
	}
	if w.Body.String() != "png" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}
