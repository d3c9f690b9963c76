package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

// refreshFlight is the single in-progress token exchange. Every caller that
// arrives while it is open waits on done and reads the same outcome.
type refreshFlight struct {
	done    chan struct{}
	waiters int
	token   string
	err     error
}

// CredentialRefreshCoordinator exchanges the refresh token for a new access
// token, at most once at a time.
type CredentialRefreshCoordinator struct {
	mu        sync.Mutex
	inflight  *refreshFlight
	sender    *RetryingSender
	sessions  *SessionService
	endpoints Endpoints
	logger    *slog.Logger
}

func NewCredentialRefreshCoordinator(sender *RetryingSender, sessions *SessionService, endpoints Endpoints, logger *slog.Logger) *CredentialRefreshCoordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CredentialRefreshCoordinator{
		sender:    sender,
		sessions:  sessions,
		endpoints: endpoints.withDefaults(),
		logger:    logger,
	}
}

// Refresh returns a fresh access token. A rejected refresh tears the session
// down and returns domain.ErrAuthenticationFailed; an unreachable server
// returns a *domain.NetworkError and keeps the session. Cancelling ctx stops
// the wait but not the shared exchange.
func (c *CredentialRefreshCoordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	flight := c.inflight
	if flight == nil {
		flight = &refreshFlight{done: make(chan struct{})}
		c.inflight = flight
		go c.run(context.WithoutCancel(ctx), flight)
	}
	flight.waiters++
	c.mu.Unlock()

	select {
	case <-flight.done:
		return flight.token, flight.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *CredentialRefreshCoordinator) run(ctx context.Context, flight *refreshFlight) {
	defer func() {
		if recovered := recover(); recovered != nil {
			flight.token = ""
			flight.err = fmt.Errorf("refresh credentials: panic: %v", recovered)
		}
		c.mu.Lock()
		c.inflight = nil
		c.mu.Unlock()
		close(flight.done)
	}()

	flight.token, flight.err = c.exchange(ctx)
}

func (c *CredentialRefreshCoordinator) inflightWaiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return 0
	}
	return c.inflight.waiters
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access      string `json:"access"`
	AccessToken string `json:"access_token"`
}

func (c *CredentialRefreshCoordinator) exchange(ctx context.Context) (string, error) {
	refreshToken, err := c.sessions.Store().RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	if strings.TrimSpace(refreshToken) == "" {
		return "", c.reject(ctx, "no refresh token stored")
	}

	body, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", fmt.Errorf("encode refresh request: %w", err)
	}

	resp, err := c.sender.Send(ctx, ports.Request{Method: http.MethodPost, Path: c.endpoints.Refresh, Body: body})
	if err != nil {
		return "", err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return "", c.reject(ctx, fmt.Sprintf("refresh rejected with status %d", resp.Status))
	}

	var decoded refreshResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", c.reject(ctx, "refresh response is not valid JSON")
	}
	token := decoded.Access
	if token == "" {
		token = decoded.AccessToken
	}
	if token == "" {
		return "", c.reject(ctx, "refresh response has no access token")
	}

	if err := c.sessions.Store().SetAccessToken(ctx, token); err != nil {
		return "", err
	}
	c.logger.Debug("access token refreshed")
	return token, nil
}

func (c *CredentialRefreshCoordinator) reject(ctx context.Context, reason string) error {
	if err := c.sessions.ForceLogout(ctx, reason); err != nil {
		return errors.Join(fmt.Errorf("%w: %s", domain.ErrAuthenticationFailed, reason), err)
	}
	return fmt.Errorf("%w: %s", domain.ErrAuthenticationFailed, reason)
}
