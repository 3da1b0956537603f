package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/autobuild/internal/api/shared"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/store"
	"github.com/phrazzld/autobuild/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedMsg    string
	}{
		{name: "nil error", err: nil, expectedStatus: http.StatusInternalServerError, expectedMsg: "An unexpected error occurred"},
		{name: "empty description", err: domain.ErrEmptyDescription, expectedStatus: http.StatusBadRequest, expectedMsg: "Description cannot be empty"},
		{name: "wrapped invalid type", err: fmt.Errorf("add: %w", domain.ErrInvalidType), expectedStatus: http.StatusBadRequest, expectedMsg: "Invalid type: expected feature, bugfix, enhancement or refactor"},
		{name: "bare validation", err: fmt.Errorf("%w: id has invalid format", domain.ErrValidation), expectedStatus: http.StatusBadRequest, expectedMsg: "Invalid request"},
		{name: "task not found", err: fmt.Errorf("get: %w", store.ErrTaskNotFound), expectedStatus: http.StatusNotFound, expectedMsg: "Task not found"},
		{name: "generic not found", err: store.ErrNotFound, expectedStatus: http.StatusNotFound, expectedMsg: "Not found"},
		{name: "invalid transition", err: domain.ErrInvalidTransition, expectedStatus: http.StatusConflict, expectedMsg: "Task is in progress"},
		{name: "not requeueable", err: task.ErrNotRequeueable, expectedStatus: http.StatusConflict, expectedMsg: "Only failed tasks can be requeued"},
		{
			name:           "version conflict inside store error",
			err:            store.NewStoreError("task", "save", "slot moved", store.ErrVersionConflict),
			expectedStatus: http.StatusConflict,
			expectedMsg:    "Task collection was modified concurrently, please retry",
		},
		{name: "unknown", err: errors.New("dial tcp 10.0.0.5:5432: refused"), expectedStatus: http.StatusInternalServerError, expectedMsg: "An unexpected error occurred"},
		{name: "corrupt data", err: store.ErrCorruptData, expectedStatus: http.StatusInternalServerError, expectedMsg: "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expectedStatus, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.expectedMsg, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := shared.ValidateRequest(&CreateTaskRequest{Description: "x", Priority: "extreme"})
	assert.Equal(t, http.StatusBadRequest, MapErrorToStatusCode(err))
	assert.Equal(t, "Invalid priority: invalid value", GetSafeErrorMessage(err))

	err = shared.ValidateRequest(&AttachCodeRequest{})
	assert.Equal(t, "Invalid code: required field", GetSafeErrorMessage(err))
}

func TestHandleAPIError_DoesNotLeakInternals(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	HandleAPIError(rec, req, errors.New("open /var/lib/autobuild/tasks.json: permission denied"), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "/var/lib")
	assert.Contains(t, rec.Body.String(), "An unexpected error occurred")

	rec = httptest.NewRecorder()
	HandleAPIError(rec, req, domain.ErrValidation, "Invalid task ID")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid task ID")
}
