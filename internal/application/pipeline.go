package application

import (
	"bytes"
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

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

type PipelineConfig struct {
	// MaxRetries is the total number of attempts per request.
	MaxRetries int
	// RetryDelay is multiplied by the attempt number before each retry.
	RetryDelay time.Duration
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

type waitFunc func(ctx context.Context, delay time.Duration) error

// RetryingSender retries transport failures with a linearly growing delay and
// reports reachability to the connectivity tracker.
type RetryingSender struct {
	transport    ports.Transport
	connectivity *ConnectivityTracker
	config       PipelineConfig
	wait         waitFunc
	logger       *slog.Logger
}

func NewRetryingSender(transport ports.Transport, connectivity *ConnectivityTracker, config PipelineConfig, logger *slog.Logger) *RetryingSender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RetryingSender{
		transport:    transport,
		connectivity: connectivity,
		config:       config.withDefaults(),
		wait:         waitWithContext,
		logger:       logger,
	}
}

// Send performs req, retrying only when no response was received. A received
// response is returned whatever its status.
func (s *RetryingSender) Send(ctx context.Context, req ports.Request) (ports.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		resp, err := s.transport.RoundTrip(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ports.Response{}, ctxErr
		}
		lastErr = err
		s.logger.Debug("request attempt failed", "method", req.Method, "path", req.Path, "attempt", attempt, "error", err)
		if attempt == s.config.MaxRetries {
			break
		}
		if err := s.wait(ctx, time.Duration(attempt)*s.config.RetryDelay); err != nil {
			return ports.Response{}, err
		}
	}

	s.report(ctx, domain.ConnectivityDegraded)
	return ports.Response{}, &domain.NetworkError{Attempts: s.config.MaxRetries, Err: lastErr}
}

func (s *RetryingSender) report(ctx context.Context, state domain.Connectivity) {
	if s.connectivity != nil {
		s.connectivity.Report(ctx, state)
	}
}

type Request struct {
	Method string
	Path   string
	// Body is encoded as JSON when not nil.
	Body any
}

type Response struct {
	Status int
	Body   json.RawMessage
	// Soft is set for a non-success status that still carried a JSON body.
	Soft bool
}

// tokenRefresher is satisfied by *CredentialRefreshCoordinator.
type tokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RequestPipeline sends authenticated requests to the task server.
type RequestPipeline struct {
	sender    *RetryingSender
	sessions  *SessionService
	refresher tokenRefresher
	endpoints Endpoints
	logger    *slog.Logger
}

func NewRequestPipeline(sender *RetryingSender, sessions *SessionService, refresher tokenRefresher, endpoints Endpoints, logger *slog.Logger) *RequestPipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RequestPipeline{
		sender:    sender,
		sessions:  sessions,
		refresher: refresher,
		endpoints: endpoints.withDefaults(),
		logger:    logger,
	}
}

// Execute sends req with the stored access token. A 401 triggers one
// credential refresh and a single replay; a refresh failure or a second 401
// clears the session and returns domain.ErrAuthenticationFailed.
func (p *RequestPipeline) Execute(ctx context.Context, req Request) (Response, error) {
	outbound, err := p.outbound(req)
	if err != nil {
		return Response{}, err
	}

	authenticated := !p.endpoints.isLogin(req.Path)
	token := ""
	if authenticated {
		token, err = p.sessions.Store().AccessToken(ctx)
		if err != nil {
			return Response{}, err
		}
	}

	resp, err := p.send(ctx, outbound, token)
	if err != nil {
		return Response{}, err
	}

	if authenticated && resp.Status == http.StatusUnauthorized {
		token, err = p.refresher.Refresh(ctx)
		if err != nil {
			return Response{}, err
		}
		resp, err = p.send(ctx, outbound, token)
		if err != nil {
			return Response{}, err
		}
		if resp.Status == http.StatusUnauthorized {
			if logoutErr := p.sessions.ForceLogout(ctx, "request rejected after credential refresh"); logoutErr != nil {
				p.logger.Warn("force logout", "error", logoutErr)
			}
			return Response{}, fmt.Errorf("%w: %s %s rejected after refresh", domain.ErrAuthenticationFailed, req.Method, req.Path)
		}
	}

	return p.classify(ctx, resp)
}

func (p *RequestPipeline) send(ctx context.Context, req ports.Request, token string) (ports.Response, error) {
	resp, err := p.sender.Send(ctx, withToken(req, token))
	if err != nil {
		return ports.Response{}, err
	}
	if err := ctx.Err(); err != nil {
		return ports.Response{}, err
	}
	return resp, nil
}

func (p *RequestPipeline) outbound(req Request) (ports.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	outbound := ports.Request{Method: method, Path: req.Path, Header: http.Header{}}
	if req.Body != nil {
		body, err := json.Marshal(req.Body)
		if err != nil {
			return ports.Request{}, fmt.Errorf("encode request body: %w", err)
		}
		outbound.Body = body
	}
	return outbound, nil
}

func withToken(req ports.Request, token string) ports.Request {
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	} else {
		header.Del("Authorization")
	}
	req.Header = header
	return req
}

func (p *RequestPipeline) classify(ctx context.Context, resp ports.Response) (Response, error) {
	body := bytes.TrimSpace(resp.Body)
	if resp.Status >= 200 && resp.Status <= 299 {
		p.sender.report(ctx, domain.ConnectivityConnected)
		return Response{Status: resp.Status, Body: json.RawMessage(body)}, nil
	}

	if len(body) > 0 && json.Valid(body) {
		p.sender.report(ctx, domain.ConnectivityConnected)
		return Response{Status: resp.Status, Body: json.RawMessage(body), Soft: true}, nil
	}

	p.sender.report(ctx, domain.ConnectivityError)
	return Response{}, &domain.ServerError{Status: resp.Status, Message: summarize(body)}
}

func summarize(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsAuthFailure reports whether err ended the session.
func IsAuthFailure(err error) bool {
	return errors.Is(err, domain.ErrAuthenticationFailed)
}
