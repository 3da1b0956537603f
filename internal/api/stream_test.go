package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, api *testAPI) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/api/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return api.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStream_SnapshotsAndNotices(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)
	conn := dialStream(t, api)

	_, err := api.service.AddTask(context.Background(), "stream me", domain.TaskTypeFeature, nil)
	require.NoError(t, err)

	msg := readMessage(t, conn)
	assert.Equal(t, MessageSnapshot, msg.Type)
	require.Len(t, msg.Tasks, 1)
	assert.Equal(t, "stream me", msg.Tasks[0].Description)
	assert.Equal(t, "pending", msg.Tasks[0].Status)

	require.NoError(t, api.service.Start(context.Background()))

	msg = readMessage(t, conn)
	assert.Equal(t, MessageNotice, msg.Type)
	require.NotNil(t, msg.Notice)
	assert.Equal(t, events.NoticeMonitoringStarted, msg.Notice.Kind)
}

func TestStream_LatestSnapshotOnConnect(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)
	_, err := api.service.AddTask(context.Background(), "before connect", "", nil)
	require.NoError(t, err)

	conn := dialStream(t, api)

	msg := readMessage(t, conn)
	assert.Equal(t, MessageSnapshot, msg.Type)
	require.Len(t, msg.Tasks, 1)
	assert.Equal(t, "before connect", msg.Tasks[0].Description)
}

func TestStream_DisconnectRemovesClient(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)
	conn := dialStream(t, api)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return api.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)
	conn := dialStream(t, api)

	api.hub.Close()
	assert.Equal(t, 0, api.hub.Len())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// new clients are turned away once closed
	url := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/api/stream"
	late, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHub_DropsSlowClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(newTestLogger())
	client := &streamClient{id: uuid.New(), send: make(chan []byte, 1)}
	hub.clients[client.id] = client

	require.NoError(t, hub.Notify(context.Background(), events.NewNotice(events.NoticeTaskStarted, uuid.New(), "one", nil)))
	assert.Equal(t, 1, hub.Len())

	require.NoError(t, hub.Notify(context.Background(), events.NewNotice(events.NoticeTaskStarted, uuid.New(), "two", nil)))
	assert.Equal(t, 0, hub.Len())

	<-client.send
	_, open := <-client.send
	assert.False(t, open)
}

func TestStream_RejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)
	resp := api.do(t, http.MethodGet, "/api/stream", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
