// Package httputil holds the JSON request and response plumbing shared by the billing HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/encoding"
)

// MaxBodyBytes caps JSON request bodies
const MaxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// Validate reports field errors by their JSON names
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// WriteJSON writes v as the response body, falling back to a 500 when it cannot be encoded
func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	if err := encoding.WriteJSON(w, status, v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, `{"code":"INTERNAL_ERROR","message":"internal server error"}`, http.StatusInternalServerError)
	}
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	switch {
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.GetErrorCode(err) == domain.ErrorCodeAuthMissing, domain.GetErrorCode(err) == domain.ErrorCodeAuthInvalid:
		return http.StatusUnauthorized
	case domain.GetErrorCode(err) == domain.ErrorCodeAuthInsufficientPerms:
		return http.StatusForbidden
	case domain.GetErrorCode(err) == domain.ErrorCodeProviderError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteError maps err to a status and an ErrorResponse. Cross-account access is
// reported exactly like a missing entity, and internal errors never reach the body.
func WriteError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	status := StatusFor(err)

	resp := ErrorResponse{
		Code:    string(domain.ErrorCodeInternalError),
		Message: "internal server error",
	}

	var derr *domain.DomainError
	switch {
	case status == http.StatusNotFound:
		resp.Code = string(domain.ErrorCodeNotFound)
		resp.Message = "resource not found"
		if errors.As(err, &derr) && derr.Code == domain.ErrorCodeNotFound {
			resp.Message = derr.Message
		}
	case status == http.StatusBadGateway:
		resp.Code = string(domain.ErrorCodeProviderError)
		resp.Message = "payment provider error"
		logger.Error("Payment provider request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	case status < http.StatusInternalServerError && errors.As(err, &derr):
		resp.Code = string(derr.Code)
		resp.Message = derr.Message
		if len(derr.Details) > 0 {
			resp.Details = derr.Details
		}
	default:
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	WriteJSON(w, logger, status, resp)
}

// DecodeJSON decodes a single JSON object into dst and validates it.
// Unknown fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrValidationFailed.WithDetail("body", "request body is required")
		}
		return domain.ErrValidationFailed.WithDetail("body", sanitizeDecodeError(err))
	}
	if decoder.More() {
		return domain.ErrValidationFailed.WithDetail("body", "request body must contain a single JSON object")
	}

	return ValidateStruct(dst)
}

// ValidateStruct runs the validator tags of dst and reports failed fields by JSON name
func ValidateStruct(dst interface{}) error {
	err := Validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return domain.ErrValidationFailed.WithDetail("fields", fields)
}

// PathID returns the named chi URL parameter after checking it is a UUID
func PathID(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", domain.ErrValidationFailed.WithDetail(name, "must be a UUID")
	}
	return id.String(), nil
}

func sanitizeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	case errors.As(err, &maxErr):
		return "request body too large"
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return strings.TrimPrefix(err.Error(), "json: ")
	}
	return "malformed JSON"
}
