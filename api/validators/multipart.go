package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
)

// ParseMultipart caps the request body and parses the form. Parts beyond
// maxMemory spill to temp files, which CleanupMultipart removes.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes, maxMemory int64) error {
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		return pkgerrors.New(pkgerrors.CodeValidation, "request must be multipart/form-data")
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return pkgerrors.Newf(pkgerrors.CodeTooLarge, "Request too large. Maximum size is %dMB.", maxBytes>>20)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	return nil
}

func CleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

// FormValue returns the trimmed first value of a multipart or urlencoded field.
func FormValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// FormFiles returns the files posted under any of the given field names.
func FormFiles(r *http.Request, keys ...string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	var files []*multipart.FileHeader
	for _, key := range keys {
		files = append(files, r.MultipartForm.File[key]...)
	}
	return files
}
