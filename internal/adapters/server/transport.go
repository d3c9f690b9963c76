package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/taskwatch/internal/ports"
	"github.com/google/uuid"
)

const (
	maxResponseBytes = 1 << 20
	defaultTimeout   = 15 * time.Second
	userAgent        = "taskwatch/agent"
)

// HTTPTransport performs single exchanges against the task server. It never
// retries; that is the pipeline's job.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(baseURL string, httpClient *http.Client) *HTTPTransport {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPTransport{baseURL: baseURL, httpClient: httpClient}
}

// BaseURL is the server root every relative path is resolved against.
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, req ports.Request) (ports.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.endpoint(req.Path), body)
	if err != nil {
		return ports.Response{}, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Correlation-Id", uuid.NewString())
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return ports.Response{}, fmt.Errorf("perform request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ports.Response{}, fmt.Errorf("read response: %w", err)
	}

	return ports.Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   payload,
	}, nil
}

func (t *HTTPTransport) endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return t.baseURL + path
}
