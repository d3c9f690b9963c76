package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

const connectionLostBanner = "Connection to the task server was lost. Captured data is queued and will be sent once it is back."

// ConnectivityTracker records the last observed reachability of the task
// server and notifies only on transitions.
type ConnectivityTracker struct {
	mu       sync.Mutex
	state    domain.Connectivity
	signaler *StatusSignaler
	notifier ports.Notifier
	logger   *slog.Logger
}

func NewConnectivityTracker(signaler *StatusSignaler, notifier ports.Notifier, logger *slog.Logger) *ConnectivityTracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ConnectivityTracker{
		state:    domain.ConnectivityConnected,
		signaler: signaler,
		notifier: notifier,
		logger:   logger,
	}
}

func (t *ConnectivityTracker) State() domain.Connectivity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *ConnectivityTracker) Report(ctx context.Context, state domain.Connectivity) {
	t.mu.Lock()
	previous := t.state
	if previous == state {
		t.mu.Unlock()
		return
	}
	t.state = state
	t.mu.Unlock()

	t.logger.Info("connectivity changed", "from", previous, "to", state)
	if t.signaler != nil {
		t.signaler.SetConnectivity(ctx, state)
	}
	if state == domain.ConnectivityDegraded && t.notifier != nil {
		if err := t.notifier.ShowBanner(ctx, connectionLostBanner); err != nil {
			t.logger.Warn("show connectivity banner", "error", err)
		}
	}
}
