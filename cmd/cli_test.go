package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/taskwatch/internal/application"
)

// fakeTaskServer serves the remote endpoints the CLI talks to.
type fakeTaskServer struct {
	mu         sync.Mutex
	activeTask string
	ingested   []string
	loginCode  int
}

func newFakeTaskServer(t *testing.T) (*httptest.Server, *fakeTaskServer) {
	t.Helper()
	fake := &fakeTaskServer{activeTask: "-1", loginCode: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token/", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		code := fake.loginCode
		fake.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if code != http.StatusOK {
			_, _ = io.WriteString(w, `{"detail":"No active account found with the given credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access":"access-1","refresh":"refresh-1"}`)
	})
	mux.HandleFunc("GET /api/active-task/", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		_, _ = io.WriteString(w, fake.activeTask)
	})
	mux.HandleFunc("GET /api/tasks/{id}/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"id":%s,"title":"Label product photos"}`, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/ingest/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fake.mu.Lock()
		fake.ingested = append(fake.ingested, string(body))
		fake.mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, fake
}

func (f *fakeTaskServer) setActiveTask(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeTask = body
}

func (f *fakeTaskServer) ingestedBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ingested...)
}

func TestVersionDoesNotNeedConfig(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".taskwatch"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".taskwatch", "config.toml"), []byte("not = [valid"), 0o644))

	stdout, _, err := executeCLI(t, home, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestStatusWhenLoggedOut(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))

	stdout, _, err := executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "OFF")
	assert.Contains(t, stdout, "logged out")
	assert.Contains(t, stdout, "server: "+srv.URL)
}

func TestLoginThenStatusJSON(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))

	stdout, _, err := executeCLIWithInput(t, home, "hunter2\n", "login", "--username", "annotator", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Logged in as annotator")

	stdout, _, err = executeCLI(t, home, "status", "--json")
	require.NoError(t, err)

	var status application.Status
	require.NoError(t, json.Unmarshal([]byte(stdout), &status))
	assert.True(t, status.LoggedIn)
	assert.Equal(t, "annotator", status.Username)
	assert.Equal(t, application.IndicatorIdle, status.Indicator)
}

func TestLoginRejectedCredentials(t *testing.T) {
	srv, fake := newFakeTaskServer(t)
	fake.loginCode = http.StatusUnauthorized
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))

	_, _, err := executeCLIWithInput(t, home, "wrong\n", "login", "--username", "annotator", "--password-stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")

	stdout, _, err := executeCLI(t, home, "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"logged_in": false`)
}

func TestLoginRequiresPasswordStdin(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))

	_, _, err := executeCLI(t, home, "login", "--username", "annotator")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--password-stdin is required")
}

func TestTaskPollsActiveTask(t *testing.T) {
	srv, fake := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))
	loginFixture(t, home)

	stdout, _, err := executeCLI(t, home, "task")
	require.NoError(t, err)
	assert.Equal(t, "No active task\n", stdout)

	fake.setActiveTask(`{"task_id":42}`)
	stdout, _, err = executeCLI(t, home, "task")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Active task #42")
	assert.Contains(t, stdout, "Label product photos")

	stdout, _, err = executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "#42 (recording)")
}

func TestTaskWhenLoggedOut(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))

	stdout, _, err := executeCLI(t, home, "task")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in\n", stdout)
}

func TestSendQueuesMessageThenFlushDelivers(t *testing.T) {
	srv, fake := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))
	loginFixture(t, home)

	stdout, _, err := executeCLI(t, home, "send", `{"type":"send_message","payload":{"url":"https://tasks.example.com/review/1"}}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, stdout)

	stdout, _, err = executeCLI(t, home, "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"pending_items": 1`)

	stdout, _, err = executeCLI(t, home, "flush", "--quiet")
	require.NoError(t, err)
	assert.Equal(t, "Attempted 1 item(s), 0 remaining\n", stdout)

	bodies := fake.ingestedBodies()
	require.Len(t, bodies, 1)
	var ingest struct {
		Data string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &ingest))
	decoded, err := application.DecodeMessage(ingest.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://tasks.example.com/review/1"}`, string(decoded))
}

func TestSendReadsEnvelopeFromStdin(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))

	stdout, _, err := executeCLIWithInput(t, home, `{"type":"check_logging_status"}`, "send")
	require.NoError(t, err)
	assert.JSONEq(t, `{"log_status":false}`, stdout)
}

func TestSendRejectsInvalidEnvelope(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))

	_, _, err := executeCLI(t, home, "send", `{"type":"reboot"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestFlushWithEmptyOutbox(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))

	stdout, _, err := executeCLI(t, home, "flush")
	require.NoError(t, err)
	assert.Equal(t, "Outbox is empty\n", stdout)
}

func TestSweepRemovesExpiredBlobs(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))
	t.Setenv("TASKWATCH_OUTBOX_TTL", "1ms")

	_, _, err := executeCLI(t, home, "send", `{"type":"send_message","payload":{"url":"https://tasks.example.com"}}`)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	stdout, _, err := executeCLI(t, home, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 expired item(s)\n", stdout)

	stdout, _, err = executeCLI(t, home, "flush")
	require.NoError(t, err)
	assert.Equal(t, "Outbox is empty\n", stdout)
}

func TestLogoutClearsSession(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))
	loginFixture(t, home)

	stdout, _, err := executeCLI(t, home, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out\n", stdout)

	stdout, _, err = executeCLI(t, home, "send", `{"type":"check_logging_status"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"log_status":false}`, stdout)
}

func TestExplicitConfigMustExist(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "--config", filepath.Join(home, "missing.toml"), "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestServeAnswersBridgeMessages(t *testing.T) {
	srv, _ := newFakeTaskServer(t)
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, srv.URL))
	t.Setenv("HOME", home)

	app, err := wireApp(context.Background(), rootOptions{}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.close() })

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := &bytes.Buffer{}
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, app, listener, out) }()

	base := "http://" + listener.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/v1/messages", "application/json", strings.NewReader(`{"type":"check_logging_status"}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true,"result":{"log_status":false}}`, string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"abcdefghijklmnop"}, originPatterns("chrome-extension://abcdefghijklmnop"))
	assert.Nil(t, originPatterns(""))
	assert.Nil(t, originPatterns("not an origin"))
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, "", args...)
}

func executeCLIWithInput(t *testing.T, home, input string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(strings.NewReader(input))
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfigFixture(home, serverURL string) error {
	configDir := filepath.Join(home, ".taskwatch")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	config := fmt.Sprintf(`[server]
base_url = %q

[extension]
origin = "chrome-extension://taskwatch"

[pipeline]
max_retries = 2
retry_delay = "1ms"

[log]
level = "error"
`, serverURL)

	return os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(config), 0o644)
}

func loginFixture(t *testing.T, home string) {
	t.Helper()
	_, _, err := executeCLIWithInput(t, home, "hunter2\n", "login", "--username", "annotator", "--password-stdin")
	require.NoError(t, err)
}
