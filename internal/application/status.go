package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

var (
	IndicatorError         = domain.Indicator{Text: "ERR", Color: "#D93025"}
	IndicatorDegraded      = domain.Indicator{Text: "!", Color: "#F29900"}
	IndicatorLoggedOut     = domain.Indicator{Text: "OFF", Color: "#9AA0A6"}
	IndicatorIndeterminate = domain.Indicator{Text: "?", Color: "#F29900"}
	IndicatorRecording     = domain.Indicator{Text: "REC", Color: "#188038"}
	IndicatorIdle          = domain.Indicator{Text: "ON", Color: "#1A73E8"}
)

// Derive maps session, task and connectivity to the badge. Earlier rows win.
func Derive(loggedIn bool, task domain.TaskID, connectivity domain.Connectivity) domain.Indicator {
	switch {
	case connectivity == domain.ConnectivityError:
		return IndicatorError
	case connectivity == domain.ConnectivityDegraded:
		return IndicatorDegraded
	case !loggedIn:
		return IndicatorLoggedOut
	case task == domain.TaskIndeterminate:
		return IndicatorIndeterminate
	case task.Active():
		return IndicatorRecording
	default:
		return IndicatorIdle
	}
}

type StatusSnapshot struct {
	LoggedIn     bool                `json:"logged_in"`
	TaskID       domain.TaskID       `json:"task_id"`
	Connectivity domain.Connectivity `json:"connectivity"`
	Indicator    domain.Indicator    `json:"indicator"`
}

// StatusSignaler keeps the last known inputs and pushes the badge only when
// the derived indicator changes.
type StatusSignaler struct {
	mu           sync.Mutex
	badge        ports.Badge
	logger       *slog.Logger
	loggedIn     bool
	task         domain.TaskID
	connectivity domain.Connectivity
	shown        *domain.Indicator
}

func NewStatusSignaler(badge ports.Badge, logger *slog.Logger) *StatusSignaler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StatusSignaler{
		badge:        badge,
		logger:       logger,
		task:         domain.NoTask,
		connectivity: domain.ConnectivityConnected,
	}
}

func (s *StatusSignaler) SetSession(ctx context.Context, loggedIn bool) {
	s.update(ctx, func() { s.loggedIn = loggedIn })
}

func (s *StatusSignaler) SetTask(ctx context.Context, task domain.TaskID) {
	s.update(ctx, func() { s.task = task })
}

func (s *StatusSignaler) SetConnectivity(ctx context.Context, connectivity domain.Connectivity) {
	s.update(ctx, func() { s.connectivity = connectivity })
}

// Refresh pushes the current indicator even if it has been shown before.
func (s *StatusSignaler) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = nil
	s.pushLocked(ctx)
}

func (s *StatusSignaler) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusSnapshot{
		LoggedIn:     s.loggedIn,
		TaskID:       s.task,
		Connectivity: s.connectivity,
		Indicator:    Derive(s.loggedIn, s.task, s.connectivity),
	}
}

func (s *StatusSignaler) update(ctx context.Context, mutate func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate()
	s.pushLocked(ctx)
}

func (s *StatusSignaler) pushLocked(ctx context.Context) {
	indicator := Derive(s.loggedIn, s.task, s.connectivity)
	if s.shown != nil && *s.shown == indicator {
		return
	}
	if s.badge != nil {
		if err := s.badge.SetBadge(ctx, indicator); err != nil {
			s.logger.Warn("set badge", "text", indicator.Text, "error", err)
			return
		}
	}
	s.shown = &indicator
}
