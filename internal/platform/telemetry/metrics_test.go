package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Notify(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, m.Notify(ctx, events.NewNotice(events.NoticeTaskStarted, id, "started", nil)))
	require.NoError(t, m.Notify(ctx, events.NewNotice(events.NoticeTaskStarted, id, "started", nil)))
	require.NoError(t, m.Notify(ctx, events.NewNotice(events.NoticeTaskFailed, id, "failed", nil)))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.notices.WithLabelValues(string(events.NoticeTaskStarted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notices.WithLabelValues(string(events.NoticeTaskFailed))))
}

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	tasks := []domain.Task{
		{ID: uuid.New(), Status: domain.TaskStatusPending},
		{ID: uuid.New(), Status: domain.TaskStatusPending},
		{ID: uuid.New(), Status: domain.TaskStatusCompleted},
	}

	require.NoError(t, m.Observe(context.Background(), tasks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasks.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.tasks.WithLabelValues("failed")))

	// statuses that empty out are reset
	require.NoError(t, m.Observe(context.Background(), nil))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.tasks.WithLabelValues("pending")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.snapshot))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	require.NoError(t, m.Observe(context.Background(), nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "autobuild_tasks")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "autobuild-test", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}
