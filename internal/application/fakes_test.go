package application

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/taskwatch/internal/adapters/kv/memory"
	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

const (
	testServerOrigin    = "https://tasks.example.com"
	testExtensionOrigin = "chrome-extension://taskwatch"
	testHomeURL         = "https://tasks.example.com/home"
)

var errConnectionRefused = errors.New("dial tcp: connection refused")

func mockAnyContext() interface{} {
	return mock.Anything
}

type routeFunc func(req ports.Request) (ports.Response, error)

// scriptedTransport answers requests by path and records them.
type scriptedTransport struct {
	mu       sync.Mutex
	routes   map[string]routeFunc
	requests []ports.Request
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{routes: map[string]routeFunc{}}
}

func (t *scriptedTransport) handle(path string, fn routeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[path] = fn
}

// sequence answers successive requests to path with bodies in order, then
// repeats the last one.
func (t *scriptedTransport) sequence(path string, status int, bodies ...string) {
	var mu sync.Mutex
	next := 0
	t.handle(path, func(ports.Request) (ports.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		body := bodies[next]
		if next < len(bodies)-1 {
			next++
		}
		return jsonResponse(status, body), nil
	})
}

func (t *scriptedTransport) RoundTrip(ctx context.Context, req ports.Request) (ports.Response, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	route, ok := t.routes[req.Path]
	t.mu.Unlock()
	if !ok {
		return ports.Response{Status: http.StatusNotFound, Body: []byte("not found")}, nil
	}
	return route(req)
}

func (t *scriptedTransport) calls(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, req := range t.requests {
		if req.Path == path {
			count++
		}
	}
	return count
}

func (t *scriptedTransport) requestsTo(path string) []ports.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []ports.Request
	for _, req := range t.requests {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func jsonResponse(status int, body string) ports.Response {
	return ports.Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(body),
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	banners []string
	logouts []string
}

func (n *recordingNotifier) ShowBanner(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.banners = append(n.banners, message)
	return nil
}

func (n *recordingNotifier) ForceLogout(_ context.Context, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logouts = append(n.logouts, reason)
	return nil
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.banners), len(n.logouts)
}

type fakeBrowser struct {
	mu     sync.Mutex
	tabs   []domain.Tab
	closed [][]int
	opened []string
	nextID int
}

func (b *fakeBrowser) Tabs(context.Context) ([]domain.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Tab(nil), b.tabs...), nil
}

func (b *fakeBrowser) CloseTabs(_ context.Context, ids []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, append([]int(nil), ids...))
	closing := map[int]bool{}
	for _, id := range ids {
		closing[id] = true
	}
	kept := b.tabs[:0]
	for _, tab := range b.tabs {
		if !closing[tab.ID] {
			kept = append(kept, tab)
		}
	}
	b.tabs = kept
	return nil
}

func (b *fakeBrowser) OpenTab(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.opened = append(b.opened, url)
	b.tabs = append(b.tabs, domain.Tab{ID: 1000 + b.nextID, URL: url})
	return nil
}

func (b *fakeBrowser) ReportTabs(_ context.Context, tabs []domain.Tab) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tabs = append([]domain.Tab(nil), tabs...)
	return nil
}

func (b *fakeBrowser) reconciliations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.closed) + len(b.opened)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type harness struct {
	store     *memory.Store
	transport *scriptedTransport
	notifier  *recordingNotifier
	browser   *fakeBrowser
	state     *BackgroundState
	delays    []time.Duration
	delaysMu  sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:     memory.NewStore(),
		transport: newScriptedTransport(),
		notifier:  &recordingNotifier{},
		browser:   &fakeBrowser{},
	}
	state, err := NewBackgroundState(Options{
		Store:     h.store,
		Transport: h.transport,
		Browser:   h.browser,
		Notifier:  h.notifier,
		Clock:     fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		Pipeline:  PipelineConfig{MaxRetries: 3, RetryDelay: time.Millisecond},
		Reconcile: ReconcileConfig{
			ServerOrigin:    testServerOrigin,
			ExtensionOrigin: testExtensionOrigin,
			HomeURL:         testHomeURL,
		},
	})
	require.NoError(t, err)
	state.Pipeline.sender.wait = func(ctx context.Context, delay time.Duration) error {
		h.delaysMu.Lock()
		h.delays = append(h.delays, delay)
		h.delaysMu.Unlock()
		return ctx.Err()
	}
	h.state = state
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	err := h.state.Sessions.Store().SaveLogin(context.Background(), "annotator", domain.Tokens{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	})
	require.NoError(t, err)
	h.state.Signaler.SetSession(context.Background(), true)
}

func (h *harness) get(t *testing.T, key string) string {
	t.Helper()
	value, err := h.store.Get(context.Background(), key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return ""
	}
	require.NoError(t, err)
	return value
}

func (h *harness) recordedDelays() []time.Duration {
	h.delaysMu.Lock()
	defer h.delaysMu.Unlock()
	return append([]time.Duration(nil), h.delays...)
}
