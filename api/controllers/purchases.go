package controllers

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/bookswap/bookswap-backend/api/responses"
	"github.com/bookswap/bookswap-backend/api/validators"
	"github.com/bookswap/bookswap-backend/internal/purchases"
	"github.com/bookswap/bookswap-backend/internal/uploads"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

const (
	purchaseFormBytes  = 10 << 20
	purchaseFormMemory = 4 << 20
)

type purchaseForm struct {
	BookTitle     string `form:"bookTitle" validate:"required,max=200"`
	BookAuthor    string `form:"bookAuthor" validate:"required,max=100"`
	Quantity      string `form:"quantityPurchased" validate:"required"`
	BuyerName     string `form:"buyerName" validate:"max=100"`
	BuyerEmail    string `form:"buyerEmail" validate:"omitempty,email"`
	BuyerPhone    string `form:"buyerPhone" validate:"omitempty,phone"`
	AmountPaid    string `form:"amountPaid"`
	PaymentMethod string `form:"paymentMethod" validate:"omitempty,oneof=UPI 'Bank Transfer' Cash Other"`
	Notes         string `form:"notes" validate:"max=500"`
}

func (f purchaseForm) toInput() (purchases.SubmitInput, error) {
	qty, err := strconv.Atoi(f.Quantity)
	if err != nil || qty < 1 || qty > 10 {
		return purchases.SubmitInput{}, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be between 1 and 10").
			WithDetails(map[string]any{"field": "quantityPurchased"})
	}
	input := purchases.SubmitInput{
		BookTitle:     f.BookTitle,
		BookAuthor:    f.BookAuthor,
		Quantity:      qty,
		BuyerName:     f.BuyerName,
		BuyerEmail:    f.BuyerEmail,
		BuyerPhone:    f.BuyerPhone,
		PaymentMethod: enums.PaymentMethod(f.PaymentMethod),
		Notes:         f.Notes,
	}
	if f.AmountPaid != "" {
		amount, err := decimal.NewFromString(f.AmountPaid)
		if err != nil || amount.IsNegative() {
			return purchases.SubmitInput{}, pkgerrors.New(pkgerrors.CodeValidation, "Amount paid must be a non-negative number").
				WithDetails(map[string]any{"field": "amountPaid"})
		}
		input.AmountPaid = &amount
	}
	return input, nil
}

type approveRequest struct {
	ProcessedBy string `json:"processedBy" validate:"max=100"`
}

type rejectRequest struct {
	Reason      string `json:"reason" validate:"max=200"`
	ProcessedBy string `json:"processedBy" validate:"max=100"`
}

// PurchaseSubmit files a buyer's purchase notification. It is public; the
// route is rate limited per client address.
func PurchaseSubmit(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := validators.ParseMultipart(w, r, purchaseFormBytes, purchaseFormMemory); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer validators.CleanupMultipart(r)

		form := purchaseForm{
			BookTitle:     validators.FormValue(r, "bookTitle"),
			BookAuthor:    validators.FormValue(r, "bookAuthor"),
			Quantity:      validators.FormValue(r, "quantityPurchased"),
			BuyerName:     validators.FormValue(r, "buyerName"),
			BuyerEmail:    validators.FormValue(r, "buyerEmail"),
			BuyerPhone:    validators.FormValue(r, "buyerPhone"),
			AmountPaid:    validators.FormValue(r, "amountPaid"),
			PaymentMethod: validators.FormValue(r, "paymentMethod"),
			Notes:         validators.FormValue(r, "notes"),
		}
		if err := validators.ValidateStruct(&form); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := form.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var proof *uploads.File
		headers := validators.FormFiles(r, "transactionProof")
		if len(headers) > 0 {
			opened, err := openUploads(headers[:1])
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			defer opened.Close()
			proof = &opened.files[0]
		}

		result, err := svc.Submit(r.Context(), input, proof)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusCreated, "Purchase notification submitted successfully", map[string]any{"notification": result})
	}
}

func PurchaseList(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := purchases.ListParams{}
		if raw := validators.SanitizeString(r.URL.Query().Get("status"), 16); raw != "" {
			status, err := enums.ParsePurchaseStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Invalid status"))
				return
			}
			params.Status = &status
		}
		var err error
		if params.Page, err = validators.ParseQueryInt(r, "page", 1, 1, 100000); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 100); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func PurchaseGet(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id", "notification id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notification, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"notification": notification})
	}
}

func PurchaseProof(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id", "notification id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body, info, err := svc.OpenProof(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer body.Close()
		responses.WriteStream(w, info.ContentType, info.Size, body)
	}
}

func PurchaseApprove(svc purchases.Service, names userNamer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "notification id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body approveRequest
		if err := decodeOptionalJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Approve(r.Context(), id, actorFor(r, names, caller, body.ProcessedBy))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "Purchase notification approved and inventory updated", map[string]any{
			"notification": result.Notification,
			"listing":      result.Listing,
		})
	}
}

func PurchaseReject(svc purchases.Service, names userNamer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "notification id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body rejectRequest
		if err := decodeOptionalJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reject(r.Context(), id, body.Reason, actorFor(r, names, caller, body.ProcessedBy))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "Purchase notification rejected", map[string]any{"notification": result})
	}
}

func PurchaseDelete(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id", "notification id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "Purchase notification deleted successfully", nil)
	}
}

// actorFor prefers an explicit processedBy and falls back to the admin's
// username.
func actorFor(r *http.Request, names userNamer, caller identity, processedBy string) purchases.Actor {
	name := validators.SanitizeString(processedBy, 100)
	if name == "" {
		name = usernameOf(r, names, caller)
	}
	return purchases.Actor{UserID: caller.UserID, Name: name}
}
