package identity

import (
	stderrors "errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorType is the wire-level error classification
type ErrorType string

const (
	ValidationError     ErrorType = "ValidationError"
	DatabaseError       ErrorType = "DatabaseError"
	AuthenticationError ErrorType = "AuthenticationError"
	AuthorizationError  ErrorType = "AuthorizationError"
	NotFoundError       ErrorType = "NotFoundError"
	ServerError         ErrorType = "ServerError"
)

// ErrorDetail is a field-attributed validation failure
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is the error body of the wire envelope
type APIError struct {
	Type     ErrorType      `json:"type"`
	Message  string         `json:"message"`
	Errors   []ErrorDetail  `json:"errors,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ErrorResponse is the wire envelope for failures
type ErrorResponse struct {
	Success   bool     `json:"success"`
	Error     APIError `json:"error"`
	Timestamp string   `json:"timestamp"`
}

// SuccessResponse is the wire envelope for successes
type SuccessResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// JSONSuccess writes the success envelope
func JSONSuccess(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(SuccessResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorTranslator is the single boundary between the typed errors the core
// raises and the wire shape clients see. Internal detail (driver codes, file
// paths, raw messages) stays out of responses unless the process runs in
// development mode.
type ErrorTranslator struct {
	Development bool
	Logger      Logger
}

func NewErrorTranslator(cfg *Config) *ErrorTranslator {
	return &ErrorTranslator{
		Development: cfg.IsDevelopment(),
		Logger:      defLogger{},
	}
}

func (t *ErrorTranslator) WithLogger(l Logger) *ErrorTranslator {
	if l != nil {
		t.Logger = l
	}
	return t
}

// WriteError maps an error to the wire envelope and sends it.
func (t *ErrorTranslator) WriteError(c *fiber.Ctx, err error) error {
	status, apiErr := t.translate(err)

	if status >= fiber.StatusInternalServerError {
		t.Logger.Error("request failed", "status", status, "error", err)
		if t.Development {
			t.Logger.Debug("error detail", "detail", print.MaybePrettyJSON(err))
		}
	}

	return c.Status(status).JSON(ErrorResponse{
		Success:   false,
		Error:     apiErr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (t *ErrorTranslator) translate(err error) (int, APIError) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return fiber.StatusInternalServerError, t.serverError(err)
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusBadRequest, APIError{
			Type:    ValidationError,
			Message: richErr.Message,
			Errors:  fieldErrors(richErr),
		}
	case errors.CategoryConflict:
		return fiber.StatusConflict, APIError{
			Type:    ValidationError,
			Message: richErr.Message,
			Errors:  fieldErrors(richErr),
		}
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized, APIError{
			Type:    AuthenticationError,
			Message: richErr.Message,
		}
	case errors.CategoryAuthz:
		return fiber.StatusForbidden, APIError{
			Type:    AuthorizationError,
			Message: richErr.Message,
		}
	case errors.CategoryNotFound:
		return fiber.StatusNotFound, APIError{
			Type:    NotFoundError,
			Message: richErr.Message,
		}
	case errors.CategoryOperation:
		apiErr := APIError{
			Type:    DatabaseError,
			Message: "Database operation failed",
		}
		if t.Development {
			apiErr.Message = richErr.Message
			apiErr.Metadata = richErr.Metadata
		}
		return fiber.StatusInternalServerError, apiErr
	default:
		return fiber.StatusInternalServerError, t.serverError(richErr)
	}
}

func (t *ErrorTranslator) serverError(err error) APIError {
	apiErr := APIError{
		Type:    ServerError,
		Message: "An unexpected error occurred",
	}

	if t.Development && err != nil {
		apiErr.Metadata = map[string]any{"detail": err.Error()}
	}

	return apiErr
}

// fieldErrors flattens ozzo validation errors and field metadata into the
// wire's field-attributed error list.
func fieldErrors(richErr *errors.Error) []ErrorDetail {
	var details []ErrorDetail

	var vErrs validation.Errors
	if richErr.Source != nil && stderrors.As(richErr.Source, &vErrs) {
		for field, fieldErr := range vErrs {
			details = append(details, ErrorDetail{
				Field:   field,
				Message: fieldErr.Error(),
			})
		}
	}

	if field, ok := richErr.Metadata["field"].(string); ok {
		details = append(details, ErrorDetail{
			Field:   field,
			Message: richErr.Message,
		})
	}

	return details
}
