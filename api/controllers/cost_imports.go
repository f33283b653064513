package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/platecost-backend/api/middleware"
	"github.com/angelmondragon/platecost-backend/api/responses"
	"github.com/angelmondragon/platecost-backend/api/validators"
	"github.com/angelmondragon/platecost-backend/internal/costimport"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
)

const (
	uploadFileField     = "file"
	uploadCurrencyField = "currency"
	maxFilenameLength   = 255
)

// uploadForm holds the non-file fields of an upload.
type uploadForm struct {
	Filename string `json:"filename" validate:"required,max=255"`
	Currency string `json:"currency" validate:"required,iso4217"`
}

// CostImportPreview classifies an uploaded CSV without persisting anything.
func CostImportPreview(svc costimport.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cost import service unavailable"))
			return
		}

		file, _, err := openUpload(w, r, maxBytes)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer file.Close()

		preview, err := svc.Preview(ctx, middleware.OrgIDFromContext(ctx), file)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

// CostImportUpload classifies and stores an import awaiting confirmation.
func CostImportUpload(svc costimport.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cost import service unavailable"))
			return
		}

		file, header, err := openUpload(w, r, maxBytes)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer file.Close()

		form := uploadForm{
			Filename: validators.SanitizeString(filepath.Base(header.Filename), maxFilenameLength),
			Currency: strings.ToUpper(strings.TrimSpace(r.FormValue(uploadCurrencyField))),
		}
		if err := validators.ValidateStruct(form); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := costimport.UploadInput{
			Filename: form.Filename,
			Currency: form.Currency,
			Body:     file,
		}

		view, err := svc.Upload(ctx, middleware.OrgIDFromContext(ctx), middleware.ActorIDFromContext(ctx), input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func CostImportGet(svc costimport.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cost import service unavailable"))
			return
		}

		importID, err := validators.ParseUUIDParam(r, "importId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.Get(ctx, middleware.OrgIDFromContext(ctx), importID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CostImportConfirm applies the matched rows. ?force=true skips the
// recent-update check.
func CostImportConfirm(svc costimport.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cost import service unavailable"))
			return
		}

		importID, err := validators.ParseUUIDParam(r, "importId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		force, err := validators.ParseQueryBool(r, "force")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Confirm(ctx, middleware.OrgIDFromContext(ctx), middleware.ActorIDFromContext(ctx), importID, force)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func openUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "file too large").
				WithDetails(map[string]any{"max_bytes": maxBytes})
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	file, header, err := r.FormFile(uploadFileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid upload")
	}
	return file, header, nil
}
