package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/api/middleware"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/phrazzld/autobuild/internal/store"
	"github.com/phrazzld/autobuild/internal/task"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	service *task.Service
	hub     *Hub
	server  *httptest.Server
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// newTestAPI serves the /api routes over a service whose slot is seeded
// with the given tasks. The scheduler ticks slowly enough that it never
// promotes anything during a test.
func newTestAPI(t *testing.T, tokens middleware.TokenValidator, seed ...domain.Task) *testAPI {
	t.Helper()

	ctx := context.Background()
	log := newTestLogger()
	slot := store.NewMemorySlot()
	if len(seed) > 0 {
		data, err := json.Marshal(seed)
		require.NoError(t, err)
		_, err = slot.Save(ctx, data, 0)
		require.NoError(t, err)
	}

	bus := events.NewBus(log)
	hub := NewHub(log)
	bus.Subscribe(hub.Observe)

	taskStore := task.NewTaskStore(ctx, slot, bus, log)
	executor := task.ExecutorFunc(func(ctx context.Context, _ domain.Task) (task.Result, error) {
		<-ctx.Done()
		return task.Result{}, ctx.Err()
	})
	scheduler := task.NewScheduler(taskStore, executor, hub, log, task.SchedulerConfig{TickInterval: time.Hour})
	service := task.NewService(taskStore, scheduler, bus, log)

	r := chi.NewRouter()
	RegisterRoutes(r, RouteConfig{Service: service, Hub: hub, Tokens: tokens, Logger: log})
	server := httptest.NewServer(r)

	t.Cleanup(func() {
		_ = service.Stop(context.Background())
		hub.Close()
		server.Close()
	})

	return &testAPI{service: service, hub: hub, server: server}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func seedTask(description string, status domain.TaskStatus) domain.Task {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	t := domain.Task{
		ID:          uuid.Must(uuid.NewV7()),
		Description: description,
		Status:      status,
		Priority:    domain.PriorityMedium,
		Type:        domain.TaskTypeFeature,
		CreatedAt:   created,
	}
	switch status {
	case domain.TaskStatusCompleted:
		completed := created.Add(time.Minute)
		t.CompletedAt = &completed
	case domain.TaskStatusFailed:
		t.Error = "simulated execution failure"
	}
	return t
}
