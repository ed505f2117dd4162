package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"savings-client/internal/dto"
	"savings-client/internal/model"
	"savings-client/internal/pkg/logger"
	"savings-client/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotificationAPI struct {
	checks   atomic.Int32
	marked   atomic.Int32
	failNext atomic.Bool
	unread   atomic.Int64
}

func (f *fakeNotificationAPI) UnreadCount(ctx context.Context) (int64, error) {
	f.checks.Add(1)
	if f.failNext.CompareAndSwap(true, false) {
		return 0, errors.New("connection refused")
	}
	return f.unread.Load(), nil
}

func (f *fakeNotificationAPI) ListNotifications(ctx context.Context, limit, offset int) (*dto.NotificationListResponse, error) {
	return &dto.NotificationListResponse{
		Items: []model.Notification{{ID: "n1", Title: "Challenge completed", Type: "CHALLENGE_COMPLETED"}},
		Total: 1,
		Page:  1,
		Limit: limit,
	}, nil
}

func (f *fakeNotificationAPI) MarkAsRead(ctx context.Context, id string) error {
	f.marked.Add(1)
	f.unread.Add(-1)
	return nil
}

func (f *fakeNotificationAPI) MarkAllAsRead(ctx context.Context) error {
	f.marked.Add(1)
	f.unread.Store(0)
	return nil
}

// gatedNotificationAPI holds every unread-count request until release closes.
// It ignores ctx so a result can still arrive after a stop.
type gatedNotificationAPI struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedNotificationAPI() *gatedNotificationAPI {
	return &gatedNotificationAPI{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedNotificationAPI) UnreadCount(context.Context) (int64, error) {
	g.entered <- struct{}{}
	<-g.release
	return 5, nil
}

func (g *gatedNotificationAPI) ListNotifications(_ context.Context, limit, _ int) (*dto.NotificationListResponse, error) {
	return &dto.NotificationListResponse{
		Items: []model.Notification{{ID: "n9", Title: "New challenge", Type: "CHALLENGE_JOINED"}},
		Total: 1,
		Page:  1,
		Limit: limit,
	}, nil
}

func (g *gatedNotificationAPI) MarkAsRead(context.Context, string) error { return nil }
func (g *gatedNotificationAPI) MarkAllAsRead(context.Context) error      { return nil }

type fakeTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	period  time.Duration
	resets  []time.Duration
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.period = d
	t.resets = append(t.resets, d)
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *tickerFactory) new(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time), period: d}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) all() []*fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeTicker(nil), f.tickers...)
}

func newTestPoller(t *testing.T, api NotificationAPI, bus EventPublisher) (*NotificationPoller, *tickerFactory) {
	t.Helper()
	factory := &tickerFactory{}
	p := NewNotificationPoller(api, bus, time.Minute, logger.NewNopLogger(), WithTickerFactory(factory.new))
	t.Cleanup(p.Dispose)
	return p, factory
}

func TestStartPollingIsIdempotent(t *testing.T) {
	api := &fakeNotificationAPI{}
	p, factory := newTestPoller(t, api, nil)

	p.StartPolling()
	p.StartPolling()

	require.Len(t, factory.all(), 1)
	require.Eventually(t, func() bool { return api.checks.Load() == 1 }, time.Second, time.Millisecond)

	ticker := factory.all()[0]
	for i := 0; i < 3; i++ {
		ticker.ch <- time.Now()
	}

	assert.Eventually(t, func() bool { return api.checks.Load() == 4 }, time.Second, time.Millisecond)
	assert.True(t, p.ConnectionStatus())
}

func TestStopPollingStopsTicker(t *testing.T) {
	api := &fakeNotificationAPI{}
	p, factory := newTestPoller(t, api, nil)

	p.StopPolling()
	assert.Empty(t, factory.all())

	p.StartPolling()
	p.StopPolling()

	require.Len(t, factory.all(), 1)
	assert.True(t, factory.all()[0].isStopped())
	assert.False(t, p.ConnectionStatus())

	p.StartPolling()
	assert.Len(t, factory.all(), 2)
}

func TestSetPollingIntervalResetsRunningTicker(t *testing.T) {
	api := &fakeNotificationAPI{}
	p, factory := newTestPoller(t, api, nil)

	require.NoError(t, p.SetPollingInterval(45*time.Second))
	assert.Empty(t, factory.all(), "no ticker while stopped")

	p.StartPolling()
	ticker := factory.all()[0]
	assert.Equal(t, 45*time.Second, ticker.period)

	require.NoError(t, p.SetPollingInterval(30*time.Second))

	assert.Len(t, factory.all(), 1, "rescheduling must not create a second ticker")
	assert.Equal(t, []time.Duration{30 * time.Second}, ticker.resets)
	assert.Equal(t, 30*time.Second, p.PollingInterval())
	assert.True(t, p.ConnectionStatus())

	assert.ErrorIs(t, p.SetPollingInterval(0), ErrInvalidInterval)
	assert.Equal(t, 30*time.Second, p.PollingInterval())
}

func TestSetPollingIntervalTakesEffectOnNextTick(t *testing.T) {
	api := &fakeNotificationAPI{}
	p := NewNotificationPoller(api, nil, time.Hour, logger.NewNopLogger())
	defer p.Dispose()

	p.StartPolling()
	require.Eventually(t, func() bool { return api.checks.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, p.SetPollingInterval(20*time.Millisecond))

	assert.Eventually(t, func() bool { return api.checks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestFailedTickKeepsSchedule(t *testing.T) {
	bus := events.NewBus(logger.NewNopLogger())
	defer bus.Close()

	var (
		mu     sync.Mutex
		topics []string
	)
	record := func(_ context.Context, e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		topics = append(topics, e.EventType())
	}
	for _, topic := range []string{events.TopicNotificationsUpdated, events.TopicNotificationsError} {
		unsubscribe, err := bus.Subscribe(topic, record)
		require.NoError(t, err)
		defer unsubscribe()
	}

	api := &fakeNotificationAPI{}
	api.failNext.Store(true)
	api.unread.Store(3)
	p, factory := newTestPoller(t, api, bus)

	p.StartPolling()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(topics) == 1
	}, time.Second, time.Millisecond)
	require.Error(t, p.LastError())
	assert.True(t, p.ConnectionStatus())
	assert.False(t, p.LastCheckTime().IsZero())

	factory.all()[0].ch <- time.Now()

	require.Eventually(t, func() bool { return p.LastError() == nil && p.UnreadCount() == 3 }, time.Second, time.Millisecond)
	assert.Len(t, p.Notifications(), 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{events.TopicNotificationsError, events.TopicNotificationsUpdated}, topics)
}

func TestCheckNowDoesNotChangeRunningState(t *testing.T) {
	api := &fakeNotificationAPI{}
	api.unread.Store(2)
	p, factory := newTestPoller(t, api, nil)

	require.True(t, p.LastCheckTime().IsZero())
	require.NoError(t, p.CheckNow(context.Background()))

	assert.False(t, p.ConnectionStatus())
	assert.Empty(t, factory.all())
	assert.False(t, p.LastCheckTime().IsZero())
	assert.Equal(t, int64(2), p.State().UnreadCount)
}

func TestMarkAsReadRefreshesCount(t *testing.T) {
	api := &fakeNotificationAPI{}
	api.unread.Store(2)
	p, _ := newTestPoller(t, api, nil)

	require.NoError(t, p.MarkAsRead(context.Background(), "n1"))
	assert.Equal(t, int64(1), p.UnreadCount())

	require.NoError(t, p.MarkAllAsRead(context.Background()))
	assert.Equal(t, int64(0), p.UnreadCount())
	assert.Equal(t, int32(2), api.marked.Load())
}

func TestDisposePreventsRestart(t *testing.T) {
	api := &fakeNotificationAPI{}
	factory := &tickerFactory{}
	p := NewNotificationPoller(api, nil, time.Minute, logger.NewNopLogger(), WithTickerFactory(factory.new))

	p.StartPolling()
	p.Dispose()
	p.StartPolling()

	assert.False(t, p.ConnectionStatus())
	assert.Len(t, factory.all(), 1)
}

func TestResetClearsState(t *testing.T) {
	api := &fakeNotificationAPI{}
	api.unread.Store(4)
	api.failNext.Store(true)
	p, _ := newTestPoller(t, api, nil)

	require.Error(t, p.CheckNow(context.Background()))
	require.NoError(t, p.CheckNow(context.Background()))
	require.Equal(t, int64(4), p.UnreadCount())

	p.Reset()

	assert.Zero(t, p.UnreadCount())
	assert.Empty(t, p.Notifications())
	assert.NoError(t, p.LastError())
	assert.True(t, p.LastCheckTime().IsZero())
}

func TestCheckOverlappingResetIsDiscarded(t *testing.T) {
	api := newGatedNotificationAPI()
	p, _ := newTestPoller(t, api, nil)

	errc := make(chan error, 1)
	go func() { errc <- p.CheckNow(context.Background()) }()
	<-api.entered

	p.Reset()
	close(api.release)

	assert.ErrorIs(t, <-errc, ErrCheckDiscarded)
	assert.Zero(t, p.UnreadCount())
	assert.Empty(t, p.Notifications())
	assert.True(t, p.LastCheckTime().IsZero())
}

func TestSuccessfulTickAfterStopIsDropped(t *testing.T) {
	api := newGatedNotificationAPI()
	p, _ := newTestPoller(t, api, nil)

	p.StartPolling()
	<-api.entered
	p.StopPolling()
	close(api.release)

	// Dispose waits for the in-flight check
	p.Dispose()

	assert.Zero(t, p.UnreadCount())
	assert.Empty(t, p.Notifications())
	assert.True(t, p.LastCheckTime().IsZero())
}
