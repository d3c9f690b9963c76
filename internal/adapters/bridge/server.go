package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/version"
)

const maxEnvelopeBytes = 1 << 20

// Dispatcher routes a validated command envelope.
type Dispatcher interface {
	DispatchEnvelope(ctx context.Context, envelope []byte) (any, error)
}

type ServerOptions struct {
	// OriginPatterns lists the extension origins allowed to open the socket.
	OriginPatterns []string
}

type Server struct {
	dispatcher Dispatcher
	validator  *Validator
	hub        *Hub
	opts       ServerOptions
	logger     *slog.Logger
}

type reply struct {
	ID     json.RawMessage `json:"id,omitempty"`
	OK     bool            `json:"ok"`
	Result any             `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type envelopeID struct {
	ID json.RawMessage `json:"id"`
}

func NewServer(dispatcher Dispatcher, validator *Validator, hub *Hub, opts ServerOptions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		dispatcher: dispatcher,
		validator:  validator,
		hub:        hub,
		opts:       opts,
		logger:     logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.handleMessage)
	mux.HandleFunc("GET /v1/ws", s.handleSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"version": version.Version,
		"shells":  s.hub.Clients(),
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	envelope, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, reply{Error: err.Error()})
		return
	}

	result := s.dispatch(r.Context(), envelope)
	status := http.StatusOK
	if !result.OK {
		status = statusFor(result.err)
	}
	writeJSON(w, status, result.reply)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "bridge closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	shell := s.hub.subscribe()
	defer s.hub.unsubscribe(shell)
	s.logger.Debug("shell connected", "remote", r.RemoteAddr)

	replies := make(chan reply, defaultClientBuffer)
	go s.writeLoop(ctx, cancel, conn, shell, replies)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				s.logger.Debug("shell disconnected", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		go func() {
			result := s.dispatch(ctx, data)
			select {
			case replies <- result.reply:
			case <-ctx.Done():
			}
		}()
	}
}

// writeLoop is the only writer on conn.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, shell *client, replies <-chan reply) {
	defer cancel()
	for {
		var msg any
		select {
		case <-ctx.Done():
			return
		case event := <-shell.events:
			msg = event
		case r := <-replies:
			msg = r
		}
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			s.logger.Debug("shell write failed", "error", err)
			return
		}
	}
}

type dispatchResult struct {
	reply
	err error
}

func (s *Server) dispatch(ctx context.Context, envelope []byte) dispatchResult {
	var header envelopeID
	_ = json.Unmarshal(envelope, &header)

	if s.validator != nil {
		if err := s.validator.Validate(envelope); err != nil {
			return dispatchResult{reply: reply{ID: header.ID, Error: err.Error()}, err: err}
		}
	}

	result, err := s.dispatcher.DispatchEnvelope(ctx, envelope)
	if err != nil {
		s.logger.Debug("command failed", "error", err)
		return dispatchResult{reply: reply{ID: header.ID, Error: err.Error()}, err: err}
	}
	return dispatchResult{reply: reply{ID: header.ID, OK: true, Result: result}}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthenticationFailed), errors.Is(err, domain.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case domain.IsNetworkError(err), domain.IsServerError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
