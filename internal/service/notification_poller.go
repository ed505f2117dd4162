package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"savings-client/internal/dto"
	"savings-client/internal/model"
	"savings-client/internal/pkg/logger"
	"savings-client/pkg/apiclient"
	"savings-client/pkg/events"
)

const (
	DefaultPollingInterval = 120 * time.Second
	DefaultPageSize        = 20
)

var (
	ErrInvalidInterval = errors.New("polling interval must be positive")

	// ErrCheckDiscarded is returned by a check that overlapped a Reset.
	ErrCheckDiscarded = errors.New("notification check discarded after reset")
)

// NotificationAPI is the subset of the REST client the poller talks to.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, limit, offset int) (*dto.NotificationListResponse, error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
}

// Ticker abstracts time.Ticker so the schedule can be driven by tests.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time   { return t.t.C }
func (t timeTicker) Reset(d time.Duration) { t.t.Reset(d) }
func (t timeTicker) Stop()                 { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type PollerOption func(*NotificationPoller)

func WithTickerFactory(f func(time.Duration) Ticker) PollerOption {
	return func(p *NotificationPoller) { p.newTicker = f }
}

func WithPageSize(n int) PollerOption {
	return func(p *NotificationPoller) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// NotificationPoller keeps one recurring check of the user's notifications.
// It starts Stopped. While Running a single ticker drives the schedule; each
// tick runs in its own goroutine and a failed tick is only recorded.
type NotificationPoller struct {
	api       NotificationAPI
	bus       EventPublisher
	logger    logger.ILogger
	newTicker func(time.Duration) Ticker
	pageSize  int

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu        sync.RWMutex
	interval  time.Duration
	running   bool
	disposed  bool
	ticker    Ticker
	runCancel context.CancelFunc

	lastCheck time.Time
	unread    int64
	items     []model.Notification
	lastErr   error

	// bumped by Reset so checks already in flight drop their results
	generation uint64
}

func NewNotificationPoller(api NotificationAPI, bus EventPublisher, interval time.Duration, log logger.ILogger, opts ...PollerOption) *NotificationPoller {
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	p := &NotificationPoller{
		api:       api,
		bus:       bus,
		logger:    log,
		newTicker: newTimeTicker,
		pageSize:  DefaultPageSize,
		baseCtx:   ctx,
		cancelAll: cancel,
		interval:  interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StartPolling runs one check immediately and then one per interval. It is a
// no-op while already running.
func (p *NotificationPoller) StartPolling() {
	p.mu.Lock()
	if p.running || p.disposed {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(p.baseCtx)
	t := p.newTicker(p.interval)
	p.running, p.ticker, p.runCancel = true, t, cancel
	interval := p.interval
	p.wg.Add(2)
	p.mu.Unlock()

	p.logger.Info("NotificationPoller", "Polling started", map[string]interface{}{"interval": interval.String()})

	go func() {
		defer p.wg.Done()
		p.check(runCtx)
	}()
	go p.loop(runCtx, t)
}

func (p *NotificationPoller) StopPolling() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.ticker.Stop()
	p.runCancel()
	p.running, p.ticker, p.runCancel = false, nil, nil
	p.mu.Unlock()

	p.logger.Info("NotificationPoller", "Polling stopped", nil)
}

// CheckNow fetches notification state once, whether or not polling runs.
func (p *NotificationPoller) CheckNow(ctx context.Context) error {
	return p.check(ctx)
}

// SetPollingInterval changes the period. A running ticker is reset in place so
// the next tick follows the new period.
func (p *NotificationPoller) SetPollingInterval(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidInterval
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
	if p.running {
		p.ticker.Reset(d)
	}
	return nil
}

// ConnectionStatus reports whether polling is running.
func (p *NotificationPoller) ConnectionStatus() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *NotificationPoller) LastCheckTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastCheck
}

func (p *NotificationPoller) PollingInterval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.interval
}

func (p *NotificationPoller) UnreadCount() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unread
}

// Notifications returns a copy of the most recent page.
func (p *NotificationPoller) Notifications() []model.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Notification, len(p.items))
	copy(out, p.items)
	return out
}

// LastError is the error of the most recent check, nil if it succeeded.
func (p *NotificationPoller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *NotificationPoller) State() model.PollState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := model.PollState{
		IsPolling:     p.running,
		Interval:      p.interval,
		LastCheckTime: p.lastCheck,
		UnreadCount:   p.unread,
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

func (p *NotificationPoller) MarkAsRead(ctx context.Context, id string) error {
	if err := p.api.MarkAsRead(ctx, id); err != nil {
		return err
	}
	return p.check(ctx)
}

func (p *NotificationPoller) MarkAllAsRead(ctx context.Context) error {
	if err := p.api.MarkAllAsRead(ctx); err != nil {
		return err
	}
	return p.check(ctx)
}

// Reset forgets the fetched notification state, e.g. after logout. Checks
// still in flight are discarded.
func (p *NotificationPoller) Reset() {
	p.mu.Lock()
	p.generation++
	p.lastCheck = time.Time{}
	p.unread = 0
	p.items = nil
	p.lastErr = nil
	p.mu.Unlock()

	p.logger.Debug("NotificationPoller", "Notification state cleared", nil)
}

// Dispose stops polling and waits for in-flight checks to return. The poller
// cannot be restarted afterwards.
func (p *NotificationPoller) Dispose() {
	p.StopPolling()

	p.mu.Lock()
	p.disposed = true
	p.mu.Unlock()

	p.cancelAll()
	p.wg.Wait()
}

func (p *NotificationPoller) loop(ctx context.Context, t Ticker) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.check(ctx)
			}()
		}
	}
}

func (p *NotificationPoller) check(ctx context.Context) error {
	p.mu.RLock()
	generation := p.generation
	p.mu.RUnlock()

	count, err := p.api.UnreadCount(ctx)
	var list *dto.NotificationListResponse
	if err == nil {
		list, err = p.api.ListNotifications(ctx, p.pageSize, 0)
	}
	if ctx.Err() != nil {
		// stopped or disposed mid-check
		if err == nil {
			err = ctx.Err()
		}
		return err
	}

	p.mu.Lock()
	if p.generation != generation {
		p.mu.Unlock()
		return ErrCheckDiscarded
	}
	p.lastCheck = time.Now()
	if err != nil {
		p.lastErr = err
	} else {
		p.lastErr = nil
		p.unread = count
		p.items = list.Items
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("NotificationPoller", "Notification check failed", map[string]interface{}{
			"error": err.Error(),
			"kind":  string(apiclient.KindOf(err)),
		})
		p.publish(ctx, events.TopicNotificationsError, map[string]interface{}{
			"error": err.Error(),
			"kind":  string(apiclient.KindOf(err)),
		})
		return err
	}

	p.publish(ctx, events.TopicNotificationsUpdated, map[string]interface{}{
		"unread_count":  count,
		"notifications": list.Items,
	})
	return nil
}

func (p *NotificationPoller) publish(ctx context.Context, topic string, data map[string]interface{}) {
	if p.bus == nil {
		return
	}
	err := p.bus.Publish(ctx, events.BaseEvent{Type: topic, Data: data, OccurredAt: time.Now()})
	if err != nil {
		p.logger.Error("NotificationPoller", "Failed to publish notification state", map[string]interface{}{"topic": topic, "error": err.Error()})
	}
}
