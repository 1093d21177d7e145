package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookswap/bookswap-backend/api/responses"
	"github.com/bookswap/bookswap-backend/pkg/logger"
	"github.com/bookswap/bookswap-backend/pkg/storage"
)

type listingImageOpener interface {
	OpenListingImage(ctx context.Context, filename string) (io.ReadCloser, storage.ObjectInfo, error)
}

// UploadServe streams a public listing image.
func UploadServe(images listingImageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, info, err := images.OpenListingImage(r.Context(), chi.URLParam(r, "filename"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer body.Close()
		w.Header().Set("Cache-Control", "public, max-age=86400")
		responses.WriteStream(w, info.ContentType, info.Size, body)
	}
}
