package controllers

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/bookswap/bookswap-backend/api/responses"
	"github.com/bookswap/bookswap-backend/api/validators"
	"github.com/bookswap/bookswap-backend/internal/listings"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

const (
	maxListingImages   = 5
	listingFormMemory  = 8 << 20
	listingFieldsBytes = 1 << 20
)

// listingForm mirrors the multipart listing form.
type listingForm struct {
	Title        string `form:"title" validate:"required,max=200"`
	Author       string `form:"author" validate:"required,max=100"`
	Description  string `form:"description" validate:"required,min=10,max=1000"`
	Condition    string `form:"condition" validate:"required,oneof=new like-new good fair"`
	Category     string `form:"category" validate:"required,oneof=fiction non-fiction academic children comics textbook other"`
	Price        string `form:"price" validate:"required"`
	City         string `form:"city" validate:"required,max=50"`
	ISBN         string `form:"isbn" validate:"max=20"`
	Quantity     string `form:"quantity"`
	ContactPhone string `form:"contactPhone" validate:"required,min=10,phone"`
	ContactEmail string `form:"contactEmail" validate:"required,email"`
	UPIID        string `form:"upiId" validate:"required,max=100"`
}

func (f listingForm) toInput() (listings.CreateInput, error) {
	price, err := decimal.NewFromString(f.Price)
	if err != nil || price.LessThan(decimal.NewFromInt(1)) {
		return listings.CreateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "Price must be a positive number")
	}
	quantity := 0
	if f.Quantity != "" {
		quantity, err = strconv.Atoi(f.Quantity)
		if err != nil {
			return listings.CreateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be a whole number")
		}
	}
	input := listings.CreateInput{
		Title:        f.Title,
		Author:       f.Author,
		Description:  f.Description,
		Condition:    enums.ListingCondition(f.Condition),
		Category:     enums.ListingCategory(f.Category),
		Price:        price,
		City:         f.City,
		Quantity:     quantity,
		ContactPhone: f.ContactPhone,
		ContactEmail: f.ContactEmail,
		UPIID:        f.UPIID,
	}
	if f.ISBN != "" {
		isbn := f.ISBN
		input.ISBN = &isbn
	}
	return input, nil
}

type stockUpdateRequest struct {
	Quantity *int   `json:"quantity" validate:"required"`
	Reason   string `json:"reason" validate:"max=200"`
}

func ListingsList(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := parseListingFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseListingFilters(r *http.Request) (listings.Filters, error) {
	q := r.URL.Query()
	filters := listings.Filters{
		Search: validators.SanitizeString(q.Get("search"), 200),
		Author: validators.SanitizeString(q.Get("author"), 100),
		City:   validators.SanitizeString(q.Get("city"), 50),
	}
	if raw := validators.SanitizeString(q.Get("category"), 32); raw != "" {
		category, err := enums.ParseListingCategory(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "Invalid category")
		}
		filters.Category = category
	}
	if raw := validators.SanitizeString(q.Get("condition"), 32); raw != "" {
		condition, err := enums.ParseListingCondition(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "Invalid condition")
		}
		filters.Condition = condition
	}

	var err error
	if filters.MinPrice, err = validators.ParseQueryDecimal(r, "minPrice"); err != nil {
		return filters, err
	}
	if filters.MaxPrice, err = validators.ParseQueryDecimal(r, "maxPrice"); err != nil {
		return filters, err
	}
	if filters.Page, err = validators.ParseQueryInt(r, "page", 1, 1, 100000); err != nil {
		return filters, err
	}
	if filters.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 50); err != nil {
		return filters, err
	}
	return filters, nil
}

func ListingGet(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id", "listing id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"listing": listing})
	}
}

// ListingCreate accepts the listing form plus up to five images under
// "images".
func ListingCreate(svc listings.Service, maxImageBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		maxBody := int64(maxListingImages)*maxImageBytes + listingFieldsBytes
		if err := validators.ParseMultipart(w, r, maxBody, listingFormMemory); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer validators.CleanupMultipart(r)

		form := listingForm{
			Title:        validators.FormValue(r, "title"),
			Author:       validators.FormValue(r, "author"),
			Description:  validators.FormValue(r, "description"),
			Condition:    validators.FormValue(r, "condition"),
			Category:     validators.FormValue(r, "category"),
			Price:        validators.FormValue(r, "price"),
			City:         validators.FormValue(r, "city"),
			ISBN:         validators.FormValue(r, "isbn"),
			Quantity:     validators.FormValue(r, "quantity"),
			ContactPhone: validators.FormValue(r, "contactPhone"),
			ContactEmail: validators.FormValue(r, "contactEmail"),
			UPIID:        validators.FormValue(r, "upiId"),
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

		headers := validators.FormFiles(r, "images", "images[]")
		if len(headers) > maxListingImages {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "A listing can have at most %d images", maxListingImages))
			return
		}
		opened, err := openUploads(headers)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer opened.Close()

		listing, err := svc.Create(r.Context(), caller.UserID, input, opened.files)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusCreated, "Listing created successfully!", map[string]any{"listing": listing})
	}
}

func ListingDelete(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "listing id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), caller.UserID, caller.Role, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "Listing deleted successfully", nil)
	}
}

// ListingUpdateStock is the admin inventory edit. The acting admin's
// username is recorded as last_updated_by.
func ListingUpdateStock(svc listings.Service, names userNamer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "listing id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body stockUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.UpdateStock(r.Context(), id, listings.StockUpdate{
			Quantity:  *body.Quantity,
			Reason:    body.Reason,
			UpdatedBy: usernameOf(r, names, caller),
			ActorID:   caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "Stock updated successfully", map[string]any{"listing": listing})
	}
}
