package bridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bnema/taskwatch/internal/domain"
)

const defaultClientBuffer = 32

const (
	EventBadge       = "badge"
	EventBanner      = "banner"
	EventForceLogout = "force_logout"
	EventCloseTabs   = "close_tabs"
	EventOpenTab     = "open_tab"
)

// Event is pushed to every connected shell.
type Event struct {
	Event     string            `json:"event"`
	Indicator *domain.Indicator `json:"indicator,omitempty"`
	Message   string            `json:"message,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	TabIDs    []int             `json:"tab_ids,omitempty"`
	URL       string            `json:"url,omitempty"`
}

type client struct {
	events chan Event
}

// Hub is the daemon-side view of the shells attached over the bridge. It
// serves as the browser, badge and notifier for the background state.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	tabs    []domain.Tab
	badge   *domain.Indicator
	buffer  int
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		buffer:  defaultClientBuffer,
		logger:  logger,
	}
}

// subscribe registers a shell. The last badge is replayed so a late shell
// shows the current state.
func (h *Hub) subscribe() *client {
	c := &client{events: make(chan Event, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.badge != nil {
		indicator := *h.badge
		c.events <- Event{Event: EventBadge, Indicator: &indicator}
	}
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.events <- event:
		default:
			h.logger.Warn("shell event dropped", "event", event.Event)
		}
	}
}

func (h *Hub) Tabs(ctx context.Context) ([]domain.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Tab(nil), h.tabs...), nil
}

func (h *Hub) CloseTabs(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	h.mu.Lock()
	closing := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		closing[id] = struct{}{}
	}
	kept := h.tabs[:0:0]
	for _, tab := range h.tabs {
		if _, ok := closing[tab.ID]; !ok {
			kept = append(kept, tab)
		}
	}
	h.tabs = kept
	h.mu.Unlock()

	h.broadcast(Event{Event: EventCloseTabs, TabIDs: append([]int(nil), ids...)})
	return nil
}

func (h *Hub) OpenTab(ctx context.Context, url string) error {
	h.broadcast(Event{Event: EventOpenTab, URL: url})
	return nil
}

func (h *Hub) ReportTabs(ctx context.Context, tabs []domain.Tab) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tabs = append([]domain.Tab(nil), tabs...)
	return nil
}

func (h *Hub) SetBadge(ctx context.Context, indicator domain.Indicator) error {
	h.mu.Lock()
	h.badge = &indicator
	h.mu.Unlock()

	h.broadcast(Event{Event: EventBadge, Indicator: &indicator})
	return nil
}

func (h *Hub) ShowBanner(ctx context.Context, message string) error {
	h.broadcast(Event{Event: EventBanner, Message: message})
	return nil
}

func (h *Hub) ForceLogout(ctx context.Context, reason string) error {
	h.logger.Info("session ended by daemon", "reason", reason)
	h.broadcast(Event{Event: EventForceLogout, Reason: reason})
	return nil
}
