package service

import (
	"context"
	"sync"

	"savings-client/internal/pkg/logger"
	"savings-client/pkg/events"
)

// Poller is the part of NotificationPoller the observer drives.
type Poller interface {
	StartPolling()
	StopPolling()
	Reset()
}

// PushChannel is an optional server push connection started next to the
// poller, e.g. the websocket listener.
type PushChannel interface {
	Start()
	Stop()
}

type TokenChecker interface {
	HasToken(ctx context.Context) bool
}

type EventSubscriber interface {
	Subscribe(topic string, handler events.Handler) (events.Unsubscribe, error)
}

// AuthObserver ties background notification traffic to the session: it runs
// only while a user is authenticated and a token is stored.
type AuthObserver struct {
	poller Poller
	push   PushChannel
	tokens TokenChecker
	logger logger.ILogger

	mu          sync.Mutex
	unsubscribe events.Unsubscribe
}

// NewAuthObserver subscribes to auth:changed. push may be nil.
func NewAuthObserver(bus EventSubscriber, poller Poller, push PushChannel, tokens TokenChecker, log logger.ILogger) (*AuthObserver, error) {
	o := &AuthObserver{
		poller: poller,
		push:   push,
		tokens: tokens,
		logger: log,
	}

	unsubscribe, err := bus.Subscribe(events.TopicAuthChanged, o.handle)
	if err != nil {
		return nil, err
	}
	o.unsubscribe = unsubscribe
	return o, nil
}

func (o *AuthObserver) handle(ctx context.Context, event events.Event) {
	if events.IsAuthenticated(event) && o.tokens.HasToken(ctx) {
		o.logger.Debug("AuthObserver", "Session authenticated, starting notification traffic", nil)
		o.poller.StartPolling()
		if o.push != nil {
			o.push.Start()
		}
		return
	}

	o.logger.Debug("AuthObserver", "Session ended, stopping notification traffic", nil)
	o.stop()
	// the next user must not see this user's notifications
	o.poller.Reset()
}

// Close detaches from the bus and stops polling.
func (o *AuthObserver) Close() {
	o.mu.Lock()
	unsubscribe := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	o.stop()
}

func (o *AuthObserver) stop() {
	o.poller.StopPolling()
	if o.push != nil {
		o.push.Stop()
	}
}
