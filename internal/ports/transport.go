package ports

import (
	"context"
	"net/http"
)

type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport performs a single HTTP exchange against the task server. An error
// means no response was received at all.
type Transport interface {
	RoundTrip(ctx context.Context, req Request) (Response, error)
}
