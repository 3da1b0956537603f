package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/autobuild/internal/api/shared"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/store"
	"github.com/phrazzld/autobuild/internal/task"
)

// MapErrorToStatusCode maps engine errors to HTTP status codes. Anything
// unrecognised is a 500.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	case err == nil:
		return http.StatusInternalServerError

	case errors.Is(err, domain.ErrValidation),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, task.ErrNotRequeueable),
		errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err. Validation
// messages are built from our own sentinels and never carry stored data, so
// they are passed through; everything else gets a fixed message.
func GetSafeErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors

	switch {
	case err == nil:
		return "An unexpected error occurred"

	case errors.As(err, &validationErrs):
		return SanitizeValidationError(validationErrs)

	case errors.Is(err, domain.ErrEmptyDescription):
		return "Description cannot be empty"
	case errors.Is(err, domain.ErrEmptyCode):
		return "Code cannot be empty"
	case errors.Is(err, domain.ErrInvalidPriority):
		return "Invalid priority: expected low, medium or high"
	case errors.Is(err, domain.ErrInvalidType):
		return "Invalid type: expected feature, bugfix, enhancement or refactor"
	case errors.Is(err, domain.ErrInvalidStatus):
		return "Invalid status: expected pending, in_progress, completed or failed"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, task.ErrNotRequeueable):
		return "Only failed tasks can be requeued"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Task is in progress"
	case errors.Is(err, store.ErrVersionConflict):
		return "Task collection was modified concurrently, please retry"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns struct validation failures into a message
// naming the first offending field.
func SanitizeValidationError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation error"
	}
	field := strings.ToLower(errs[0].Field())
	return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(errs[0].Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the mapped status and safe message for err and
// logs err in redacted form. A non-empty message overrides the safe one.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), message, err)
}
