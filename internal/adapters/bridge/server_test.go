package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/bnema/taskwatch/internal/domain"
)

type fakeDispatcher struct {
	mu        sync.Mutex
	envelopes []string
	fn        func(envelope []byte) (any, error)
}

func (d *fakeDispatcher) DispatchEnvelope(ctx context.Context, envelope []byte) (any, error) {
	d.mu.Lock()
	d.envelopes = append(d.envelopes, string(envelope))
	d.mu.Unlock()
	if d.fn == nil {
		return map[string]bool{"success": true}, nil
	}
	return d.fn(envelope)
}

func (d *fakeDispatcher) calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.envelopes...)
}

func newTestServer(t *testing.T, dispatcher *fakeDispatcher) (*httptest.Server, *Hub) {
	t.Helper()
	validator, err := NewValidator()
	require.NoError(t, err)
	hub := NewHub(nil)
	srv := httptest.NewServer(NewServer(dispatcher, validator, hub, ServerOptions{}, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, hub
}

type httpReply struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func postEnvelope(t *testing.T, srv *httptest.Server, envelope string) (int, httpReply) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(envelope))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body httpReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestServerDispatchesValidMessage(t *testing.T) {
	dispatcher := &fakeDispatcher{fn: func([]byte) (any, error) {
		return map[string]any{"is_task_active": true, "task_id": 42}, nil
	}}
	srv, _ := newTestServer(t, dispatcher)

	status, body := postEnvelope(t, srv, `{"type":"get_active_task"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.OK)
	assert.JSONEq(t, `{"is_task_active":true,"task_id":42}`, string(body.Result))
	assert.Equal(t, []string{`{"type":"get_active_task"}`}, dispatcher.calls())
}

func TestServerRejectsInvalidEnvelopeBeforeDispatch(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	srv, _ := newTestServer(t, dispatcher)

	status, body := postEnvelope(t, srv, `{"type":"login","username":"annotator"}`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, body.OK)
	assert.Contains(t, body.Error, "invalid input")
	assert.Empty(t, dispatcher.calls())
}

func TestServerMapsDispatchErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "auth", err: domain.ErrAuthenticationFailed, status: http.StatusUnauthorized},
		{name: "network", err: &domain.NetworkError{Attempts: 3, Err: fmt.Errorf("dial tcp: refused")}, status: http.StatusBadGateway},
		{name: "unknown", err: fmt.Errorf("%w: %q", domain.ErrUnknownCommand, "x"), status: http.StatusBadRequest},
		{name: "other", err: fmt.Errorf("disk full"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeDispatcher{fn: func([]byte) (any, error) { return nil, tt.err }})

			status, body := postEnvelope(t, srv, `{"type":"check_logging_status"}`)

			assert.Equal(t, tt.status, status)
			assert.False(t, body.OK)
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestServerHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDispatcher{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(0), body["shells"])
}

type socketFrame struct {
	ID        json.RawMessage   `json:"id"`
	OK        bool              `json:"ok"`
	Result    json.RawMessage   `json:"result"`
	Error     string            `json:"error"`
	Event     string            `json:"event"`
	Message   string            `json:"message"`
	Indicator *domain.Indicator `json:"indicator"`
}

func TestServerSocketRepliesAndPushesEvents(t *testing.T) {
	dispatcher := &fakeDispatcher{fn: func([]byte) (any, error) {
		return map[string]bool{"log_status": true}, nil
	}}
	srv, hub := newTestServer(t, dispatcher)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "check_logging_status", "id": 7}))
	var frame socketFrame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.True(t, frame.OK)
	assert.JSONEq(t, `7`, string(frame.ID))
	assert.JSONEq(t, `{"log_status":true}`, string(frame.Result))

	require.NoError(t, hub.ShowBanner(ctx, "Connection lost"))
	frame = socketFrame{}
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, EventBanner, frame.Event)
	assert.Equal(t, "Connection lost", frame.Message)
}

func TestServerSocketReportsInvalidFrames(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	srv, hub := newTestServer(t, dispatcher)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "reboot", "id": "r1"}))
	var frame socketFrame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.False(t, frame.OK)
	assert.JSONEq(t, `"r1"`, string(frame.ID))
	assert.Contains(t, frame.Error, "invalid input")
	assert.Empty(t, dispatcher.calls())
}
