package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"sentiment-dashboard/internal/database"
	"sentiment-dashboard/pkg/types"
)

const maxBodyBytes = 1 << 20

const (
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_FAILED"
	CodeInvalidReference = "INVALID_REFERENCE"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeUpstream         = "UPSTREAM_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Details []string    `json:"details,omitempty"`
	Count   int         `json:"count,omitempty"`
	Meta    *ListMeta   `json:"meta,omitempty"`
}

// ListMeta describes the page a list response covers.
type ListMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Debug("Failed to encode response")
	}
}

func (s *Server) writeData(w http.ResponseWriter, status int, data interface{}) {
	s.writeJSON(w, status, APIResponse{Success: true, Data: data})
}

func (s *Server) writeList(w http.ResponseWriter, data interface{}, count, total int, opts types.ListOptions) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Count:   count,
		Meta:    &ListMeta{Total: total, Limit: opts.Limit, Offset: opts.Offset},
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, APIResponse{Success: false, Error: message, Code: code})
}

// writeStoreError maps store errors onto HTTP responses. Missing and
// hidden entities produce the same 404 body.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *database.ValidationError
	var referenceErr *database.ReferenceError

	switch {
	case errors.Is(err, database.ErrNotFound):
		s.writeError(w, http.StatusNotFound, CodeNotFound, "resource not found")
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, CodeValidation, validationErr.Error())
	case errors.As(err, &referenceErr):
		s.writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Error:   referenceErr.Error(),
			Code:    CodeInvalidReference,
			Details: referenceErr.Missing,
		})
	case errors.Is(err, database.ErrEmailTaken):
		s.writeError(w, http.StatusConflict, CodeConflict, "email already registered")
	default:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
		}).Error("Request failed")
		s.writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and validates it. The first
// failing field is returned as a *database.ValidationError.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &database.ValidationError{Field: "body", Message: "must be valid JSON"}
	}

	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &database.ValidationError{Field: fe.Field(), Message: validationMessage(fe)}
	}
	return &database.ValidationError{Field: "body", Message: err.Error()}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a UUID"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
