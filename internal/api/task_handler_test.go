package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/api/shared"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		body         interface{}
		wantStatus   int
		wantPriority string
		wantType     string
		wantError    string
	}{
		{
			name:         "explicit priority and type",
			body:         CreateTaskRequest{Description: "Add dark mode toggle", Type: "enhancement", Priority: "high"},
			wantStatus:   http.StatusCreated,
			wantPriority: "high",
			wantType:     "enhancement",
		},
		{
			name:         "priority derived from description",
			body:         CreateTaskRequest{Description: "urgent: login page"},
			wantStatus:   http.StatusCreated,
			wantPriority: "high",
			wantType:     "feature",
		},
		{
			name:       "missing description",
			body:       CreateTaskRequest{Type: "feature"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid description: required field",
		},
		{
			name:       "blank description",
			body:       CreateTaskRequest{Description: "   "},
			wantStatus: http.StatusBadRequest,
			wantError:  "Description cannot be empty",
		},
		{
			name:       "unknown type",
			body:       CreateTaskRequest{Description: "x", Type: "chore"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid type",
		},
		{
			name:       "unknown priority",
			body:       CreateTaskRequest{Description: "x", Priority: "extreme"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid priority",
		},
		{
			name:       "malformed json",
			body:       `{"description":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request format",
		},
		{
			name:       "unknown field",
			body:       `{"description":"x","owner":"me"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request format",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			api := newTestAPI(t, nil)
			resp := api.do(t, http.MethodPost, "/api/tasks", tc.body)
			require.Equal(t, tc.wantStatus, resp.StatusCode)

			if tc.wantError != "" {
				body := decodeBody[shared.ErrorResponse](t, resp)
				assert.Contains(t, body.Error, tc.wantError)
				assert.Empty(t, api.service.GetTasks())
				return
			}

			body := decodeBody[TaskResponse](t, resp)
			assert.Equal(t, "pending", body.Status)
			assert.Equal(t, tc.wantPriority, body.Priority)
			assert.Equal(t, tc.wantType, body.Type)
			require.Len(t, api.service.GetTasks(), 1)
			assert.Equal(t, body.ID, api.service.GetTasks()[0].ID.String())
		})
	}
}

func TestCreateFromCommand(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)

	resp := api.do(t, http.MethodPost, "/api/commands", CommandRequest{Text: "fix the broken footer"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody[TaskResponse](t, resp)
	assert.Equal(t, "bugfix", body.Type)
	assert.Equal(t, "high", body.Priority)
	assert.Equal(t, "fix the broken footer", body.Description)

	resp = api.do(t, http.MethodPost, "/api/commands", CommandRequest{Text: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTasks(t *testing.T) {
	t.Parallel()

	pending := seedTask("pending one", domain.TaskStatusPending)
	failed := seedTask("failed one", domain.TaskStatusFailed)
	completed := seedTask("completed one", domain.TaskStatusCompleted)
	api := newTestAPI(t, nil, pending, failed, completed)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all in insertion order", query: "", want: []string{"pending one", "failed one", "completed one"}},
		{name: "single status", query: "?status=failed", want: []string{"failed one"}},
		{name: "comma separated", query: "?status=pending,completed", want: []string{"pending one", "completed one"}},
		{name: "repeated", query: "?status=completed&status=failed", want: []string{"failed one", "completed one"}},
		{name: "no matches", query: "?status=in_progress", want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := api.do(t, http.MethodGet, "/api/tasks"+tc.query, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			body := decodeBody[[]TaskResponse](t, resp)
			got := make([]string, 0, len(body))
			for _, task := range body {
				got = append(got, task.Description)
			}
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("invalid status", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/tasks?status=done", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAttachCode(t *testing.T) {
	t.Parallel()

	existing := seedTask("settings page", domain.TaskStatusPending)
	api := newTestAPI(t, nil, existing)
	path := "/api/tasks/" + existing.ID.String() + "/code"

	resp := api.do(t, http.MethodPut, path, AttachCodeRequest{Code: "export const SettingsPage = () => null"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "export const SettingsPage = () => null", decodeBody[TaskResponse](t, resp).Code)

	resp = api.do(t, http.MethodPut, path, AttachCodeRequest{Code: "export const SettingsPage = 2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "export const SettingsPage = 2", api.service.GetTasks()[0].Code)

	resp = api.do(t, http.MethodPut, path, AttachCodeRequest{Code: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeBody[shared.ErrorResponse](t, resp).Error, "Code cannot be empty")

	resp = api.do(t, http.MethodPut, "/api/tasks/"+uuid.NewString()+"/code", AttachCodeRequest{Code: "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Task not found", decodeBody[shared.ErrorResponse](t, resp).Error)

	resp = api.do(t, http.MethodPut, "/api/tasks/not-a-uuid/code", AttachCodeRequest{Code: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid task ID", decodeBody[shared.ErrorResponse](t, resp).Error)
}

func TestRequeueTask(t *testing.T) {
	t.Parallel()

	failed := seedTask("flaky deploy", domain.TaskStatusFailed)
	pending := seedTask("waiting", domain.TaskStatusPending)
	api := newTestAPI(t, nil, failed, pending)

	resp := api.do(t, http.MethodPost, "/api/tasks/"+failed.ID.String()+"/requeue", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody[TaskResponse](t, resp)
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, "flaky deploy", body.Description)
	assert.Equal(t, failed.ID.String(), body.RequeuedFrom)
	assert.NotEqual(t, failed.ID.String(), body.ID)

	tasks := api.service.GetTasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, domain.TaskStatusFailed, tasks[0].Status)

	resp = api.do(t, http.MethodPost, "/api/tasks/"+pending.ID.String()+"/requeue", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Only failed tasks can be requeued", decodeBody[shared.ErrorResponse](t, resp).Error)

	resp = api.do(t, http.MethodPost, "/api/tasks/"+uuid.NewString()+"/requeue", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	done := seedTask("done", domain.TaskStatusCompleted)
	running := seedTask("running", domain.TaskStatusInProgress)
	api := newTestAPI(t, nil, done, running)

	resp := api.do(t, http.MethodDelete, "/api/tasks/"+done.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.do(t, http.MethodDelete, "/api/tasks/"+done.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(t, http.MethodDelete, "/api/tasks/"+running.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Task is in progress", decodeBody[shared.ErrorResponse](t, resp).Error)

	remaining := api.service.GetTasks()
	require.Len(t, remaining, 1)
	assert.Equal(t, running.ID, remaining[0].ID)
}
