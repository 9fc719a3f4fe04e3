package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ActionFunc handles one action. payload is the raw CBOR payload, possibly
// empty. A non-nil result is encoded into the response's data field.
type ActionFunc func(ctx context.Context, payload []byte) (any, error)

const (
	readTimeout    = 10 * time.Second
	writeTimeout   = 5 * time.Second
	maxRequestSize = 1 << 20
)

// Server serves the bridge protocol on a Unix socket.
type Server struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	active sync.WaitGroup
}

// NewSocketServer returns a server at socketPath with no actions
// registered. Add them with Handle before calling Serve.
func NewSocketServer(socketPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
	}
}

// NewServer returns a daemon server at socketPath with h's three actions
// registered.
func NewServer(socketPath string, h Handler, logger *slog.Logger) *Server {
	s := NewSocketServer(socketPath, logger)
	s.Handle(ActionRulesChanged, func(ctx context.Context, payload []byte) (any, error) {
		var msg RulesChanged
		if err := DecodePayload(payload, &msg); err != nil {
			return nil, err
		}
		return nil, h.RulesChanged(ctx, msg)
	})
	s.Handle(ActionTimerState, func(ctx context.Context, payload []byte) (any, error) {
		var msg TimerUpdate
		if err := DecodePayload(payload, &msg); err != nil {
			return nil, err
		}
		return nil, h.TimerState(ctx, msg)
	})
	s.Handle(ActionGetTimerState, func(ctx context.Context, _ []byte) (any, error) {
		info, err := h.GetTimerState(ctx)
		if err != nil || info == nil {
			return nil, err
		}
		return info, nil
	})
	return s
}

// DecodePayload decodes a request payload into v. An empty payload leaves
// v untouched.
func DecodePayload(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := unmarshal(payload, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// Handle registers an action. Panics on a duplicate.
func (s *Server) Handle(action string, fn ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("bridge: duplicate handler for action %q", action))
	}
	s.handlers[action] = fn
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight requests. A stale socket file is removed first; the socket is
// removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("bridge listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.active.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var req Request
	if err := newDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeResponse(conn, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if req.Action == "" {
		s.writeResponse(conn, Response{Error: "missing required field: action"})
		return
	}
	handler, ok := s.handlers[req.Action]
	if !ok {
		s.writeResponse(conn, Response{Error: fmt.Sprintf("unknown action %q", req.Action)})
		return
	}

	result, err := handler(ctx, req.Payload)
	if err != nil {
		s.logger.Debug("action failed", "action", req.Action, "error", err)
		s.writeResponse(conn, Response{Error: err.Error()})
		return
	}
	resp := Response{OK: true}
	if result != nil {
		data, err := marshal(result)
		if err != nil {
			s.writeResponse(conn, Response{Error: fmt.Sprintf("internal: marshaling response: %v", err)})
			return
		}
		resp.Data = data
	}
	s.writeResponse(conn, resp)
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := newEncoder(conn).Encode(resp); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
