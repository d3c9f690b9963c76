package domain

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound          = errors.New("key not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotLoggedIn          = errors.New("not logged in")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrInvalidInput         = errors.New("invalid input")
)

// NetworkError means no response was received after every retry.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a non-success response whose body was not structured JSON.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

func IsServerError(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}
