package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/taskwatch/internal/domain"
)

// Status is a read-only view of the persisted state, used by the CLI.
type Status struct {
	Username     string              `json:"username,omitempty"`
	LoggedIn     bool                `json:"logged_in"`
	TaskID       domain.TaskID       `json:"task_id"`
	Connectivity domain.Connectivity `json:"connectivity"`
	Indicator    domain.Indicator    `json:"indicator"`
	PendingItems int                 `json:"pending_items"`
	PendingURL   string              `json:"pending_url,omitempty"`
}

// Status reads the store and the in-memory signaler without touching the
// network.
func (s *BackgroundState) Status(ctx context.Context) (Status, error) {
	session, err := s.Sessions.Store().Load(ctx)
	if err != nil {
		return Status{}, err
	}
	taskID, err := s.Tasks.persistedID(ctx)
	if err != nil {
		return Status{}, err
	}
	items, err := s.Outbox.Pending(ctx)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		Username:     session.Username,
		LoggedIn:     session.LoggedIn,
		TaskID:       taskID,
		Connectivity: s.Connectivity.State(),
		PendingItems: len(items),
	}
	status.Indicator = Derive(status.LoggedIn, status.TaskID, status.Connectivity)

	pendingURL, err := s.Store.Get(ctx, domain.KeyPendingURL)
	switch {
	case err == nil:
		status.PendingURL = pendingURL
	case !errors.Is(err, domain.ErrKeyNotFound):
		return Status{}, fmt.Errorf("get pending url: %w", err)
	}
	return status, nil
}
