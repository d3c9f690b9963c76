package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

// SessionStore reads and writes the session keys of the shared store.
type SessionStore struct {
	store ports.KeyValueStore
}

func NewSessionStore(store ports.KeyValueStore) *SessionStore {
	return &SessionStore{store: store}
}

func (s *SessionStore) Load(ctx context.Context) (domain.Session, error) {
	var session domain.Session
	var err error

	if session.Username, err = s.getString(ctx, domain.KeyUsername); err != nil {
		return domain.Session{}, err
	}
	if session.AccessToken, err = s.getString(ctx, domain.KeyAccessToken); err != nil {
		return domain.Session{}, err
	}
	if session.RefreshToken, err = s.getString(ctx, domain.KeyRefreshToken); err != nil {
		return domain.Session{}, err
	}
	if session.LoggedIn, err = s.LoggedIn(ctx); err != nil {
		return domain.Session{}, err
	}

	return session, nil
}

func (s *SessionStore) LoggedIn(ctx context.Context) (bool, error) {
	raw, err := s.getString(ctx, domain.KeyLoggedIn)
	if err != nil || raw == "" {
		return false, err
	}
	loggedIn, parseErr := strconv.ParseBool(raw)
	if parseErr != nil {
		return false, nil
	}
	return loggedIn, nil
}

func (s *SessionStore) SetLoggedIn(ctx context.Context, loggedIn bool) error {
	if err := s.store.Set(ctx, domain.KeyLoggedIn, strconv.FormatBool(loggedIn)); err != nil {
		return fmt.Errorf("set logged in flag: %w", err)
	}
	return nil
}

func (s *SessionStore) AccessToken(ctx context.Context) (string, error) {
	return s.getString(ctx, domain.KeyAccessToken)
}

func (s *SessionStore) RefreshToken(ctx context.Context) (string, error) {
	return s.getString(ctx, domain.KeyRefreshToken)
}

func (s *SessionStore) SetAccessToken(ctx context.Context, token string) error {
	if err := s.store.Set(ctx, domain.KeyAccessToken, token); err != nil {
		return fmt.Errorf("set access token: %w", err)
	}
	return nil
}

// SaveLogin persists a fresh credential pair and marks the session logged in.
func (s *SessionStore) SaveLogin(ctx context.Context, username string, tokens domain.Tokens) error {
	if err := s.store.Set(ctx, domain.KeyUsername, username); err != nil {
		return fmt.Errorf("set username: %w", err)
	}
	if err := s.store.Set(ctx, domain.KeyAccessToken, tokens.AccessToken); err != nil {
		return fmt.Errorf("set access token: %w", err)
	}
	if err := s.store.Set(ctx, domain.KeyRefreshToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return s.SetLoggedIn(ctx, true)
}

func (s *SessionStore) clear(ctx context.Context) error {
	if err := s.store.Remove(ctx, domain.KeyUsername, domain.KeyAccessToken, domain.KeyRefreshToken); err != nil {
		return fmt.Errorf("remove session keys: %w", err)
	}
	if err := s.SetLoggedIn(ctx, false); err != nil {
		return err
	}
	if err := s.store.Set(ctx, domain.KeyCurrentTaskID, domain.NoTask.String()); err != nil {
		return fmt.Errorf("reset current task: %w", err)
	}
	if err := s.store.Remove(ctx, domain.KeyCurrentTaskInfo); err != nil {
		return fmt.Errorf("remove current task info: %w", err)
	}
	return nil
}

func (s *SessionStore) getString(ctx context.Context, key string) (string, error) {
	value, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// SessionService owns logout. Teardown is idempotent: tearing down a session
// that is already cleared changes nothing and notifies no one.
type SessionService struct {
	mu       sync.Mutex
	sessions *SessionStore
	notifier ports.Notifier
	signaler *StatusSignaler
	logger   *slog.Logger
}

func NewSessionService(sessions *SessionStore, notifier ports.Notifier, signaler *StatusSignaler, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SessionService{sessions: sessions, notifier: notifier, signaler: signaler, logger: logger}
}

func (s *SessionService) Store() *SessionStore {
	return s.sessions
}

// Logout clears the session on user request. The host is not told to force a
// logout since it initiated it.
func (s *SessionService) Logout(ctx context.Context) error {
	_, err := s.teardown(ctx)
	return err
}

// ForceLogout clears the session after an authentication failure and tells
// the host to drop its logged-in view.
func (s *SessionService) ForceLogout(ctx context.Context, reason string) error {
	changed, err := s.teardown(ctx)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.logger.Warn("session forcibly logged out", "reason", reason)
	if s.notifier != nil {
		if err := s.notifier.ForceLogout(ctx, reason); err != nil {
			s.logger.Warn("notify forced logout", "error", err)
		}
	}
	return nil
}

// whileLoggedIn runs fn only if the session is still logged in, and keeps any
// teardown from starting until fn returns. fn must not log out. It reports
// whether fn ran.
func (s *SessionService) whileLoggedIn(ctx context.Context, fn func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loggedIn, err := s.sessions.LoggedIn(ctx)
	if err != nil {
		return false, fmt.Errorf("read logged in flag: %w", err)
	}
	if !loggedIn {
		return false, nil
	}
	return true, fn()
}

func (s *SessionService) teardown(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if session.Cleared() {
		return false, nil
	}

	if err := s.sessions.clear(ctx); err != nil {
		return false, err
	}
	if s.signaler != nil {
		s.signaler.SetSession(ctx, false)
		s.signaler.SetTask(ctx, domain.NoTask)
	}
	return true, nil
}
