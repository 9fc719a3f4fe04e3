package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ErrUnavailable is returned when nothing is listening on the socket.
var ErrUnavailable = errors.New("bridge socket unavailable")

const dialTimeout = 2 * time.Second

// ActionError is a failure reported by the daemon.
type ActionError struct {
	Action  string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Client sends bridge requests, one connection per call.
type Client struct {
	socketPath string
}

// NewClient returns a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends action with payload (nil for none) and decodes the response
// data into result when both are present.
func (c *Client) Call(ctx context.Context, action string, payload, result any) error {
	req := Request{Action: action}
	if payload != nil {
		data, err := marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", action, err)
		}
		req.Payload = data
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(readTimeout))
	}

	if err := newEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("writing %s request: %w", action, err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	var resp Response
	if err := newDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&resp); err != nil {
		return fmt.Errorf("reading %s response: %w", action, err)
	}
	if !resp.OK {
		return &ActionError{Action: action, Message: resp.Error}
	}
	if result != nil && len(resp.Data) > 0 {
		if err := unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("decoding %s response: %w", action, err)
		}
	}
	return nil
}

// RulesChanged sends a rulesChanged message.
func (c *Client) RulesChanged(ctx context.Context, msg RulesChanged) error {
	return c.Call(ctx, ActionRulesChanged, msg, nil)
}

// TimerState sends a timerState message.
func (c *Client) TimerState(ctx context.Context, msg TimerUpdate) error {
	return c.Call(ctx, ActionTimerState, msg, nil)
}

// GetTimerState asks the daemon for the last timer it was told about. It
// returns nil when the daemon knows of no running timer.
func (c *Client) GetTimerState(ctx context.Context) (*TimerInfo, error) {
	var info *TimerInfo
	if err := c.Call(ctx, ActionGetTimerState, nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// Notifier delivers messages to the daemon in order on a background
// goroutine so callers never block on the socket. Messages that cannot be
// delivered are dropped.
type Notifier struct {
	client  *Client
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan func(context.Context) error
	done   chan struct{}
}

// NewNotifier starts a notifier over c. Close it to stop the goroutine.
func NewNotifier(c *Client, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		client:  c,
		logger:  logger,
		timeout: time.Second,
		queue:   make(chan func(context.Context) error, 64),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// RulesChanged queues a rulesChanged message.
func (n *Notifier) RulesChanged(msg RulesChanged) {
	msg.Blocklist = append([]string(nil), msg.Blocklist...)
	n.enqueue(func(ctx context.Context) error { return n.client.RulesChanged(ctx, msg) })
}

// TimerState queues a timerState message.
func (n *Notifier) TimerState(msg TimerUpdate) {
	n.enqueue(func(ctx context.Context) error { return n.client.TimerState(ctx, msg) })
}

func (n *Notifier) enqueue(send func(context.Context) error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- send:
	default:
		n.logger.Debug("bridge queue full, dropping message")
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for send := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		err := send(ctx)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, ErrUnavailable):
			n.logger.Debug("blocking daemon not running", "error", err)
		default:
			n.logger.Warn("bridge message failed", "error", err)
		}
	}
}

// Close stops accepting messages and waits up to wait for queued ones to
// be delivered.
func (n *Notifier) Close(wait time.Duration) {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	select {
	case <-n.done:
	case <-time.After(wait):
	}
}
