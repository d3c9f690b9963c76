package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

type Options struct {
	Store     ports.KeyValueStore
	Transport ports.Transport
	Browser   ports.Browser
	Badge     ports.Badge
	Notifier  ports.Notifier
	Scripts   ports.ScriptHost
	Clock     ports.Clock
	Logger    *slog.Logger

	Endpoints Endpoints
	Pipeline  PipelineConfig
	Reconcile ReconcileConfig
	OutboxTTL time.Duration
}

// BackgroundState is the process-wide set of components. It is built once per
// process and rehydrated from the store with Rehydrate.
type BackgroundState struct {
	Store        ports.KeyValueStore
	Sessions     *SessionService
	Credentials  *CredentialRefreshCoordinator
	Pipeline     *RequestPipeline
	Tasks        *TaskStateMachine
	Outbox       *Outbox
	Signaler     *StatusSignaler
	Connectivity *ConnectivityTracker
	Reconciler   *Reconciler
	Commands     *Dispatcher

	browser   ports.Browser
	scripts   ports.ScriptHost
	endpoints Endpoints
	outboxTTL time.Duration
	logger    *slog.Logger
}

func NewBackgroundState(opts Options) (*BackgroundState, error) {
	if opts.Store == nil {
		return nil, errors.New("background state requires a store")
	}
	if opts.Transport == nil {
		return nil, errors.New("background state requires a transport")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	endpoints := opts.Endpoints.withDefaults()

	status := NewStatusSignaler(opts.Badge, logger.With("component", "status"))
	connectivity := NewConnectivityTracker(status, opts.Notifier, logger.With("component", "connectivity"))
	sessions := NewSessionService(NewSessionStore(opts.Store), opts.Notifier, status, logger.With("component", "session"))
	sender := NewRetryingSender(opts.Transport, connectivity, opts.Pipeline, logger.With("component", "transport"))
	credentials := NewCredentialRefreshCoordinator(sender, sessions, endpoints, logger.With("component", "credentials"))
	pipeline := NewRequestPipeline(sender, sessions, credentials, endpoints, logger.With("component", "pipeline"))
	reconciler := NewReconciler(opts.Browser, opts.Store, opts.Reconcile, logger.With("component", "reconcile"))
	tasks := NewTaskStateMachine(opts.Store, sessions, pipeline, reconciler, status, endpoints, logger.With("component", "tasks"))
	outbox := NewOutbox(opts.Store, sessions.Store(), pipeline, endpoints, opts.Clock, logger.With("component", "outbox"))

	state := &BackgroundState{
		Store:        opts.Store,
		Sessions:     sessions,
		Credentials:  credentials,
		Pipeline:     pipeline,
		Tasks:        tasks,
		Outbox:       outbox,
		Signaler:     status,
		Connectivity: connectivity,
		Reconciler:   reconciler,
		Commands:     NewDispatcher(),
		browser:      opts.Browser,
		scripts:      opts.Scripts,
		endpoints:    endpoints,
		outboxTTL:    opts.OutboxTTL,
		logger:       logger,
	}
	state.registerCommands()
	return state, nil
}

// Rehydrate reads the persisted session and task once and pushes the
// resulting badge.
func (s *BackgroundState) Rehydrate(ctx context.Context) error {
	loggedIn, err := s.Sessions.Store().LoggedIn(ctx)
	if err != nil {
		return err
	}
	s.Signaler.SetSession(ctx, loggedIn)
	if err := s.Tasks.Rehydrate(ctx); err != nil {
		return err
	}
	s.Signaler.Refresh(ctx)
	return nil
}

func (s *BackgroundState) registerCommands() {
	register(s.Commands, CommandCheckLoggingStatus, s.CheckLoggingStatus)
	register(s.Commands, CommandAlterLoggingStatus, s.AlterLoggingStatus)
	register(s.Commands, CommandGetActiveTask, s.GetActiveTask)
	register(s.Commands, CommandSendMessage, s.SendMessage)
	register(s.Commands, CommandGetPopupData, s.GetPopupData)
	register(s.Commands, CommandInjectScript, s.InjectScript)
	register(s.Commands, CommandLogin, s.Login)
	register(s.Commands, CommandReportTabs, s.ReportTabs)
}

func (s *BackgroundState) CheckLoggingStatus(ctx context.Context, _ Empty) (LoggingStatus, error) {
	loggedIn, err := s.Sessions.Store().LoggedIn(ctx)
	if err != nil {
		return LoggingStatus{}, err
	}
	return LoggingStatus{LogStatus: loggedIn}, nil
}

func (s *BackgroundState) AlterLoggingStatus(ctx context.Context, cmd AlterLoggingStatusCommand) (Ack, error) {
	if cmd.LogStatus == nil {
		return Ack{}, fmt.Errorf("%w: log_status is required", domain.ErrInvalidInput)
	}
	if !*cmd.LogStatus {
		if err := s.Sessions.Logout(ctx); err != nil {
			return Ack{}, err
		}
		return Ack{Success: true}, nil
	}

	if err := s.Sessions.Store().SetLoggedIn(ctx, true); err != nil {
		return Ack{}, err
	}
	s.Signaler.SetSession(ctx, true)
	if _, err := s.Reconciler.Reconcile(ctx); err != nil {
		s.logger.Warn("reconcile tabs after login", "error", err)
	}
	return Ack{Success: true}, nil
}

func (s *BackgroundState) GetActiveTask(ctx context.Context, _ Empty) (ActiveTask, error) {
	id, err := s.Tasks.Poll(ctx)
	if err != nil && !IsAuthFailure(err) {
		return ActiveTask{}, err
	}
	return ActiveTask{IsTaskActive: id.Active(), TaskID: id}, nil
}

func (s *BackgroundState) SendMessage(ctx context.Context, cmd SendMessageCommand) (Ack, error) {
	if len(strings.TrimSpace(string(cmd.Payload))) == 0 {
		return Ack{}, fmt.Errorf("%w: payload is required", domain.ErrInvalidInput)
	}
	encoded, err := EncodeMessage(cmd.Payload)
	if err != nil {
		return Ack{}, err
	}
	if _, err := s.Outbox.Enqueue(ctx, encoded, s.outboxTTL); err != nil {
		return Ack{}, err
	}
	if cmd.SendFlag {
		if _, err := s.Outbox.Flush(ctx); err != nil {
			s.logger.Warn("flush after send", "error", err)
		}
	}
	return Ack{Success: true}, nil
}

func (s *BackgroundState) GetPopupData(ctx context.Context, _ Empty) (PopupData, error) {
	id, err := s.Tasks.Poll(ctx)
	if err != nil && !IsAuthFailure(err) {
		return PopupData{}, err
	}
	loggedIn, err := s.Sessions.Store().LoggedIn(ctx)
	if err != nil {
		return PopupData{}, err
	}

	data := PopupData{LogStatus: loggedIn, TaskID: id}
	if id.Active() {
		if data.TaskInfo, err = s.Tasks.TaskInfo(ctx); err != nil {
			return PopupData{}, err
		}
	}
	pendingURL, err := s.Store.Get(ctx, domain.KeyPendingURL)
	switch {
	case err == nil:
		data.PendingURL = &pendingURL
	case !errors.Is(err, domain.ErrKeyNotFound):
		return PopupData{}, fmt.Errorf("get pending url: %w", err)
	}
	return data, nil
}

func (s *BackgroundState) InjectScript(ctx context.Context, cmd InjectScriptCommand) (Ack, error) {
	if strings.TrimSpace(cmd.Script) == "" {
		return Ack{}, fmt.Errorf("%w: script is required", domain.ErrInvalidInput)
	}
	if s.scripts == nil {
		return Ack{}, errors.New("no script host configured")
	}
	if err := s.scripts.InjectScript(ctx, cmd.Script); err != nil {
		return Ack{}, fmt.Errorf("inject script: %w", err)
	}
	return Ack{Success: true}, nil
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (s *BackgroundState) Login(ctx context.Context, cmd LoginCommand) (Ack, error) {
	username := strings.TrimSpace(cmd.Username)
	if username == "" || cmd.Password == "" {
		return Ack{}, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	resp, err := s.Pipeline.Execute(ctx, Request{
		Method: http.MethodPost,
		Path:   s.endpoints.Login,
		Body:   LoginCommand{Username: username, Password: cmd.Password},
	})
	if err != nil {
		return Ack{}, err
	}
	if resp.Soft {
		return Ack{}, fmt.Errorf("%w: login rejected with status %d", domain.ErrAuthenticationFailed, resp.Status)
	}

	var tokens loginResponse
	if err := json.Unmarshal(resp.Body, &tokens); err != nil {
		return Ack{}, fmt.Errorf("decode login response: %w", err)
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return Ack{}, fmt.Errorf("%w: login response is missing tokens", domain.ErrAuthenticationFailed)
	}

	if err := s.Sessions.Store().SaveLogin(ctx, username, domain.Tokens{AccessToken: tokens.Access, RefreshToken: tokens.Refresh}); err != nil {
		return Ack{}, err
	}
	s.Signaler.SetSession(ctx, true)
	s.logger.Info("logged in", "username", username)
	if _, err := s.Reconciler.Reconcile(ctx); err != nil {
		s.logger.Warn("reconcile tabs after login", "error", err)
	}
	return Ack{Success: true}, nil
}

func (s *BackgroundState) ReportTabs(ctx context.Context, cmd ReportTabsCommand) (Ack, error) {
	reporter, ok := s.browser.(ports.TabReporter)
	if !ok {
		return Ack{}, errors.New("browser does not accept tab reports")
	}
	if err := reporter.ReportTabs(ctx, cmd.Tabs); err != nil {
		return Ack{}, err
	}
	return Ack{Success: true}, nil
}
