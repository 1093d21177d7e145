package controllers

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookswap/bookswap-backend/api/middleware"
	"github.com/bookswap/bookswap-backend/api/validators"
	"github.com/bookswap/bookswap-backend/internal/uploads"
	"github.com/bookswap/bookswap-backend/internal/users"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
)

// identity is the authenticated caller as seen by handlers.
type identity struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func currentUser(r *http.Request) (identity, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Authentication required")
	}
	return identity{UserID: id, Role: enums.UserRole(middleware.RoleFromContext(r.Context()))}, nil
}

func uuidParam(r *http.Request, name, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid %s", label).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// openedFiles holds multipart files opened for the duration of a request.
type openedFiles struct {
	files  []uploads.File
	closer []multipart.File
}

func (o *openedFiles) Close() {
	for _, f := range o.closer {
		_ = f.Close()
	}
}

func openUploads(headers []*multipart.FileHeader) (*openedFiles, error) {
	out := &openedFiles{}
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			out.Close()
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read uploaded file")
		}
		out.closer = append(out.closer, f)
		out.files = append(out.files, uploads.File{
			Filename:    h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Body:        f,
		})
	}
	return out, nil
}

type userNamer interface {
	Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

// usernameOf resolves the caller's username for audit fields. A failed
// lookup returns "" and the service applies its default.
func usernameOf(r *http.Request, names userNamer, caller identity) string {
	if names == nil {
		return ""
	}
	user, err := names.Me(r.Context(), caller.UserID)
	if err != nil || user == nil {
		return ""
	}
	return user.Username
}

// decodeOptionalJSON leaves dest untouched when the request has no body.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return validators.DecodeJSONBody(r, dest)
}
