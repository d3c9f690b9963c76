package application

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

func TestPipelineRetryCeilingWithIncreasingDelays(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.transport.handle("/api/active-task/", func(ports.Request) (ports.Response, error) {
		return ports.Response{}, errConnectionRefused
	})

	_, err := h.state.Pipeline.Execute(context.Background(), Request{Method: http.MethodGet, Path: "/api/active-task/"})

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 3, netErr.Attempts)
	assert.ErrorIs(t, err, errConnectionRefused)
	assert.Equal(t, 3, h.transport.calls("/api/active-task/"))

	delays := h.recordedDelays()
	require.Len(t, delays, 2)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1])
	}
	assert.Equal(t, domain.ConnectivityDegraded, h.state.Connectivity.State())
}

func TestPipelineShowsOneBannerPerConnectivityLoss(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	failing := true
	h.transport.handle("/api/active-task/", func(ports.Request) (ports.Response, error) {
		if failing {
			return ports.Response{}, errConnectionRefused
		}
		return jsonResponse(http.StatusOK, `7`), nil
	})

	for range 3 {
		_, err := h.state.Pipeline.Execute(context.Background(), Request{Path: "/api/active-task/"})
		require.Error(t, err)
	}
	banners, _ := h.notifier.counts()
	assert.Equal(t, 1, banners)
	assert.Equal(t, IndicatorDegraded, h.state.Signaler.Snapshot().Indicator)

	failing = false
	_, err := h.state.Pipeline.Execute(context.Background(), Request{Path: "/api/active-task/"})
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectivityConnected, h.state.Connectivity.State())
	assert.Equal(t, IndicatorIdle, h.state.Signaler.Snapshot().Indicator)
}

func TestPipelineRefreshesOnceOnUnauthorized(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.transport.handle("/api/token/refresh/", func(ports.Request) (ports.Response, error) {
		return jsonResponse(http.StatusOK, `{"access":"access-2"}`), nil
	})
	h.transport.handle("/api/active-task/", func(req ports.Request) (ports.Response, error) {
		if req.Header.Get("Authorization") != "Bearer access-2" {
			return jsonResponse(http.StatusUnauthorized, `{"detail":"expired"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"task_id": 12}`), nil
	})

	resp, err := h.state.Pipeline.Execute(context.Background(), Request{Path: "/api/active-task/"})

	require.NoError(t, err)
	assert.False(t, resp.Soft)
	assert.JSONEq(t, `{"task_id": 12}`, string(resp.Body))

	requests := h.transport.requestsTo("/api/active-task/")
	require.Len(t, requests, 2)
	assert.Equal(t, "Bearer access-1", requests[0].Header.Get("Authorization"))
	assert.Equal(t, "Bearer access-2", requests[1].Header.Get("Authorization"))
	assert.Equal(t, 1, h.transport.calls("/api/token/refresh/"))
}

func TestPipelineSecondUnauthorizedIsAuthenticationFailure(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.transport.handle("/api/token/refresh/", func(ports.Request) (ports.Response, error) {
		return jsonResponse(http.StatusOK, `{"access":"access-2"}`), nil
	})
	h.transport.handle("/api/active-task/", func(ports.Request) (ports.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"detail":"nope"}`), nil
	})

	_, err := h.state.Pipeline.Execute(context.Background(), Request{Path: "/api/active-task/"})

	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Equal(t, 2, h.transport.calls("/api/active-task/"))
	assert.Equal(t, 1, h.transport.calls("/api/token/refresh/"))
	assert.Equal(t, "false", h.get(t, domain.KeyLoggedIn))
	assert.Empty(t, h.get(t, domain.KeyAccessToken))
}

func TestPipelineRefreshFailureDoesNotRetryRequest(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.transport.handle("/api/token/refresh/", func(ports.Request) (ports.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"detail":"bad refresh"}`), nil
	})
	h.transport.handle("/api/active-task/", func(ports.Request) (ports.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"detail":"expired"}`), nil
	})

	_, err := h.state.Pipeline.Execute(context.Background(), Request{Path: "/api/active-task/"})

	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Equal(t, 1, h.transport.calls("/api/active-task/"))
}

func TestPipelineClassifiesFailures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantSoft     bool
		wantStatus   int
		connectivity domain.Connectivity
	}{
		{name: "json body is soft", status: http.StatusNotFound, body: `{"detail":"no active task"}`, wantSoft: true, connectivity: domain.ConnectivityConnected},
		{name: "html body is server error", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantStatus: http.StatusBadGateway, connectivity: domain.ConnectivityError},
		{name: "empty body is server error", status: http.StatusInternalServerError, body: ``, wantStatus: http.StatusInternalServerError, connectivity: domain.ConnectivityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.login(t)
			h.transport.handle("/api/ingest/", func(ports.Request) (ports.Response, error) {
				return ports.Response{Status: tt.status, Body: []byte(tt.body)}, nil
			})

			resp, err := h.state.Pipeline.Execute(context.Background(), Request{Method: http.MethodPost, Path: "/api/ingest/", Body: map[string]string{"data": "x"}})

			if tt.wantSoft {
				require.NoError(t, err)
				assert.True(t, resp.Soft)
				assert.Equal(t, tt.status, resp.Status)
			} else {
				var serverErr *domain.ServerError
				require.ErrorAs(t, err, &serverErr)
				assert.Equal(t, tt.wantStatus, serverErr.Status)
			}
			assert.Equal(t, tt.connectivity, h.state.Connectivity.State())
		})
	}
}

func TestPipelineLoginEndpointIsUnauthenticated(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.transport.handle("/api/token/", func(req ports.Request) (ports.Response, error) {
		assert.Empty(t, req.Header.Get("Authorization"))
		return jsonResponse(http.StatusUnauthorized, `{"detail":"bad credentials"}`), nil
	})

	resp, err := h.state.Pipeline.Execute(context.Background(), Request{Method: http.MethodPost, Path: "/api/token/", Body: LoginCommand{Username: "a", Password: "b"}})

	require.NoError(t, err)
	assert.True(t, resp.Soft)
	assert.Zero(t, h.transport.calls("/api/token/refresh/"))
}

func TestPipelineCancellationStopsRetries(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	ctx, cancel := context.WithCancel(context.Background())
	h.transport.handle("/api/active-task/", func(ports.Request) (ports.Response, error) {
		cancel()
		return ports.Response{}, errConnectionRefused
	})

	_, err := h.state.Pipeline.Execute(ctx, Request{Path: "/api/active-task/"})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, domain.IsNetworkError(err))
	assert.Equal(t, 1, h.transport.calls("/api/active-task/"))
	assert.Equal(t, domain.ConnectivityConnected, h.state.Connectivity.State())
}

func TestWaitWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitWithContext(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoError(t, waitWithContext(context.Background(), 0))
}
