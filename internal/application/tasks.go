package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

type transitionObserver func(ctx context.Context, transition domain.Transition)

// TaskStateMachine tracks the server's active task and fires the started and
// finished side effects once per transition.
type TaskStateMachine struct {
	mu         sync.Mutex
	current    domain.TaskState
	store      ports.KeyValueStore
	sessions   *SessionService
	pipeline   *RequestPipeline
	reconciler *Reconciler
	signaler   *StatusSignaler
	endpoints  Endpoints
	observers  []transitionObserver
	logger     *slog.Logger
}

func NewTaskStateMachine(store ports.KeyValueStore, sessions *SessionService, pipeline *RequestPipeline, reconciler *Reconciler, signaler *StatusSignaler, endpoints Endpoints, logger *slog.Logger) *TaskStateMachine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TaskStateMachine{
		current:    domain.TaskStateFor(domain.NoTask),
		store:      store,
		sessions:   sessions,
		pipeline:   pipeline,
		reconciler: reconciler,
		signaler:   signaler,
		endpoints:  endpoints.withDefaults(),
		logger:     logger,
	}
}

// observe registers fn to run after each transition's own side effect.
func (m *TaskStateMachine) observe(fn transitionObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *TaskStateMachine) Current() domain.TaskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Rehydrate loads the last persisted task id without firing any transition.
func (m *TaskStateMachine) Rehydrate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.persistedID(ctx)
	if err != nil {
		return err
	}
	m.current = domain.TaskStateFor(id)
	if m.signaler != nil {
		m.signaler.SetTask(ctx, id)
	}
	return nil
}

// Poll asks the server for the active task and applies the result. A
// *domain.NetworkError yields domain.TaskIndeterminate and a nil error.
func (m *TaskStateMachine) Poll(ctx context.Context) (domain.TaskID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loggedIn, err := m.sessions.Store().LoggedIn(ctx)
	if err != nil {
		return domain.NoTask, fmt.Errorf("read logged in flag: %w", err)
	}
	if !loggedIn {
		return domain.NoTask, m.apply(ctx, domain.NoTask)
	}

	resp, err := m.pipeline.Execute(ctx, Request{Method: http.MethodGet, Path: m.endpoints.ActiveTask})
	switch {
	case err == nil:
	case IsAuthFailure(err):
		if logoutErr := m.sessions.ForceLogout(ctx, "active task request rejected"); logoutErr != nil {
			m.logger.Warn("force logout", "error", logoutErr)
		}
		if applyErr := m.apply(ctx, domain.NoTask); applyErr != nil {
			return domain.NoTask, errors.Join(err, applyErr)
		}
		return domain.NoTask, err
	case domain.IsNetworkError(err):
		m.logger.Warn("active task unreachable", "error", err)
		if m.signaler != nil {
			m.signaler.SetTask(ctx, domain.TaskIndeterminate)
		}
		return domain.TaskIndeterminate, nil
	case domain.IsServerError(err):
		m.logger.Warn("active task request failed", "error", err)
		return domain.NoTask, m.apply(ctx, domain.NoTask)
	default:
		return m.current.ID, err
	}

	id := domain.NoTask
	if !resp.Soft {
		id = parseTaskID(resp.Body)
	}
	if !id.Active() {
		return id, m.apply(ctx, id)
	}

	// The session may have ended while the request was in flight.
	var transition *domain.Transition
	ran, err := m.sessions.whileLoggedIn(ctx, func() error {
		var commitErr error
		transition, commitErr = m.commit(ctx, id)
		return commitErr
	})
	if err != nil {
		return m.current.ID, err
	}
	if !ran {
		m.logger.Info("session ended during poll, task discarded", "task_id", id)
		return domain.NoTask, m.apply(ctx, domain.NoTask)
	}
	if transition == nil {
		return id, nil
	}
	m.fire(ctx, *transition)

	// The prefetch can end the session when its credentials are rejected.
	loggedIn, err = m.sessions.Store().LoggedIn(ctx)
	if err != nil {
		return id, fmt.Errorf("read logged in flag: %w", err)
	}
	if !loggedIn {
		return domain.NoTask, m.apply(ctx, domain.NoTask)
	}
	return id, nil
}

func (m *TaskStateMachine) apply(ctx context.Context, id domain.TaskID) error {
	transition, err := m.commit(ctx, id)
	if err != nil {
		return err
	}
	if transition != nil {
		m.fire(ctx, *transition)
	}
	return nil
}

// commit persists id and returns the transition it causes, if any.
func (m *TaskStateMachine) commit(ctx context.Context, id domain.TaskID) (*domain.Transition, error) {
	previous := m.current
	if err := m.persist(ctx, previous.ID, id); err != nil {
		return nil, err
	}
	m.current = domain.TaskStateFor(id)
	if m.signaler != nil {
		m.signaler.SetTask(ctx, id)
	}

	switch {
	case !previous.ID.Active() && id.Active():
		return &domain.Transition{Kind: domain.TransitionStarted, TaskID: id}, nil
	case previous.ID.Active() && !id.Active():
		return &domain.Transition{Kind: domain.TransitionFinished, TaskID: previous.ID}, nil
	case previous.ID.Active() && id.Active() && previous.ID != id:
		m.logger.Info("active task replaced", "from", previous.ID, "to", id)
	}
	return nil, nil
}

func (m *TaskStateMachine) persist(ctx context.Context, previous, next domain.TaskID) error {
	if err := m.store.Set(ctx, domain.KeyCurrentTaskID, next.String()); err != nil {
		return fmt.Errorf("persist current task: %w", err)
	}
	if !next.Active() || previous != next {
		if err := m.store.Remove(ctx, domain.KeyCurrentTaskInfo); err != nil {
			return fmt.Errorf("remove current task info: %w", err)
		}
	}
	return nil
}

func (m *TaskStateMachine) fire(ctx context.Context, transition domain.Transition) {
	m.logger.Info("task transition", "kind", transition.Kind, "task_id", transition.TaskID)

	switch transition.Kind {
	case domain.TransitionStarted:
		if err := m.prefetch(ctx, transition.TaskID); err != nil {
			m.logger.Warn("prefetch task info", "task_id", transition.TaskID, "error", err)
		}
	case domain.TransitionFinished:
		if m.reconciler != nil {
			if _, err := m.reconciler.Reconcile(ctx); err != nil {
				m.logger.Warn("reconcile tabs", "error", err)
			}
		}
	}

	for _, observer := range m.observers {
		observer(ctx, transition)
	}
}

func (m *TaskStateMachine) prefetch(ctx context.Context, id domain.TaskID) error {
	resp, err := m.pipeline.Execute(ctx, Request{Method: http.MethodGet, Path: m.endpoints.TaskInfoPath(id)})
	if err != nil {
		return err
	}
	if resp.Soft {
		return fmt.Errorf("task info returned status %d", resp.Status)
	}
	ran, err := m.sessions.whileLoggedIn(ctx, func() error {
		if err := m.store.Set(ctx, domain.KeyCurrentTaskInfo, string(resp.Body)); err != nil {
			return fmt.Errorf("store task info: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !ran {
		m.logger.Info("session ended before task info arrived", "task_id", id)
	}
	return nil
}

func (m *TaskStateMachine) persistedID(ctx context.Context) (domain.TaskID, error) {
	raw, err := m.store.Get(ctx, domain.KeyCurrentTaskID)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return domain.NoTask, nil
		}
		return domain.NoTask, fmt.Errorf("get current task: %w", err)
	}
	return parseTaskID([]byte(raw)), nil
}

// TaskInfo returns the cached info of the current task, or nil.
func (m *TaskStateMachine) TaskInfo(ctx context.Context) (json.RawMessage, error) {
	raw, err := m.store.Get(ctx, domain.KeyCurrentTaskInfo)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get current task info: %w", err)
	}
	if !json.Valid([]byte(raw)) {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// parseTaskID accepts a JSON number, a numeric string or an object carrying
// task_id. Anything else, including negatives, is no task.
func parseTaskID(body []byte) domain.TaskID {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return domain.NoTask
	}

	var object struct {
		TaskID json.RawMessage `json:"task_id"`
	}
	if body[0] == '{' {
		if err := json.Unmarshal(body, &object); err != nil || len(object.TaskID) == 0 {
			return domain.NoTask
		}
		body = bytes.TrimSpace(object.TaskID)
	}

	var text string
	if err := json.Unmarshal(body, &text); err == nil {
		body = []byte(strings.TrimSpace(text))
	}

	n, err := strconv.Atoi(string(body))
	if err != nil || n < 0 {
		return domain.NoTask
	}
	return domain.TaskID(n)
}
