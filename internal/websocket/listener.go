package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"savings-client/internal/model"
	"savings-client/internal/pkg/logger"
	"savings-client/pkg/events"

	gorilla "github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

var errNoToken = errors.New("no access token for push channel")

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// CheckTrigger is told to refresh notification state whenever the server
// pushes something.
type CheckTrigger interface {
	CheckNow(ctx context.Context) error
}

type ListenerOption func(*Listener)

// WithBackoff overrides the reconnect delays.
func WithBackoff(base, max time.Duration) ListenerOption {
	return func(l *Listener) {
		l.baseDelay, l.maxDelay = base, max
	}
}

// Listener keeps a push connection to the notification websocket open while
// started, reconnecting with exponential backoff.
type Listener struct {
	url     string
	tokens  TokenSource
	bus     EventPublisher
	trigger CheckTrigger
	logger  logger.ILogger
	dialer  *gorilla.Dialer

	baseDelay time.Duration
	maxDelay  time.Duration

	mu        sync.Mutex
	cancel    context.CancelFunc
	conn      *gorilla.Conn
	connected bool
}

type pushFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewListener(wsURL string, tokens TokenSource, bus EventPublisher, trigger CheckTrigger, log logger.ILogger, opts ...ListenerOption) *Listener {
	l := &Listener{
		url:       wsURL,
		tokens:    tokens,
		bus:       bus,
		trigger:   trigger,
		logger:    log,
		dialer:    &gorilla.Dialer{HandshakeTimeout: 10 * time.Second},
		baseDelay: reconnectBaseDelay,
		maxDelay:  reconnectMaxDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start connects in the background. It is a no-op while already started.
func (l *Listener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.run(ctx)
}

// Stop drops the connection and ends reconnect attempts. It does not wait
// for the background goroutine, so it is safe to call from event handlers.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, conn := l.cancel, l.conn
	l.cancel, l.conn, l.connected = nil, nil, false
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
}

func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Listener) run(ctx context.Context) {
	delay := l.baseDelay
	for {
		established, err := l.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		if established {
			delay = l.baseDelay
		}

		l.logger.Warn("PushListener", "Push channel down", map[string]interface{}{
			"error":    err.Error(),
			"retry_in": delay.String(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, l.maxDelay)
	}
}

// connectAndRead returns once the connection is lost. The bool reports whether
// the handshake succeeded.
func (l *Listener) connectAndRead(ctx context.Context) (bool, error) {
	token, err := l.tokens.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read access token: %w", err)
	}
	if token == "" {
		return false, errNoToken
	}

	u, err := url.Parse(l.url)
	if err != nil {
		return false, fmt.Errorf("invalid push url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := l.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	if ctx.Err() != nil {
		l.mu.Unlock()
		_ = conn.Close()
		return true, ctx.Err()
	}
	l.conn, l.connected = conn, true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		if l.conn == conn {
			l.conn, l.connected = nil, false
		}
		l.mu.Unlock()
		_ = conn.Close()
	}()

	l.logger.Info("PushListener", "Push channel connected", nil)

	conn.SetReadLimit(maxMessageSize * 8)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(gorilla.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, gorilla.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		l.handleFrame(ctx, data)
	}
}

func (l *Listener) handleFrame(ctx context.Context, data []byte) {
	var frame pushFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		l.logger.Warn("PushListener", "Ignoring undecodable frame", map[string]interface{}{"error": err.Error()})
		return
	}
	if frame.Type != "notification" {
		l.logger.Debug("PushListener", "Ignoring frame", map[string]interface{}{"type": frame.Type})
		return
	}

	var n model.Notification
	if err := json.Unmarshal(frame.Data, &n); err != nil {
		l.logger.Warn("PushListener", "Ignoring malformed notification", map[string]interface{}{"error": err.Error()})
		return
	}

	if l.bus != nil {
		err := l.bus.Publish(ctx, events.BaseEvent{
			Type: events.TopicNotificationPushed,
			Data: map[string]interface{}{
				"id":      n.ID,
				"title":   n.Title,
				"message": n.Message,
				"type":    n.Type,
			},
			OccurredAt: time.Now(),
		})
		if err != nil {
			l.logger.Error("PushListener", "Failed to publish pushed notification", map[string]interface{}{"error": err.Error()})
		}
	}

	if l.trigger != nil {
		if err := l.trigger.CheckNow(ctx); err != nil {
			l.logger.Warn("PushListener", "Refresh after push failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
