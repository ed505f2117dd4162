package service

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"savings-client/internal/dto"
	"savings-client/internal/pkg/logger"
	"savings-client/pkg/apiclient"
	"savings-client/pkg/events"
	"savings-client/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type switchRecorder struct {
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
	resets  int
}

func (s *switchRecorder) StartPolling() { s.Start() }
func (s *switchRecorder) StopPolling()  { s.Stop() }

func (s *switchRecorder) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.starts++
}

func (s *switchRecorder) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.stops++
}

func (s *switchRecorder) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

func (s *switchRecorder) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

type staticTokens bool

func (s staticTokens) HasToken(context.Context) bool { return bool(s) }

func TestAuthObserverFollowsAuthChanges(t *testing.T) {
	bus := events.NewBus(logger.NewNopLogger())
	defer bus.Close()

	poller, push := &switchRecorder{}, &switchRecorder{}
	o, err := NewAuthObserver(bus, poller, push, staticTokens(true), logger.NewNopLogger())
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, bus.Publish(context.Background(), events.NewAuthChanged(true)))
	assert.True(t, poller.isRunning())
	assert.True(t, push.isRunning())

	require.NoError(t, bus.Publish(context.Background(), events.NewAuthChanged(false)))
	assert.False(t, poller.isRunning())
	assert.False(t, push.isRunning())
	assert.Equal(t, 1, poller.resets)
}

func TestAuthObserverRequiresToken(t *testing.T) {
	bus := events.NewBus(logger.NewNopLogger())
	defer bus.Close()

	poller := &switchRecorder{}
	o, err := NewAuthObserver(bus, poller, nil, staticTokens(false), logger.NewNopLogger())
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, bus.Publish(context.Background(), events.NewAuthChanged(true)))

	assert.False(t, poller.isRunning())
	assert.Equal(t, 0, poller.starts)
}

func TestAuthObserverCloseStopsAndDetaches(t *testing.T) {
	bus := events.NewBus(logger.NewNopLogger())
	defer bus.Close()

	poller := &switchRecorder{}
	o, err := NewAuthObserver(bus, poller, nil, staticTokens(true), logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), events.NewAuthChanged(true)))
	o.Close()
	o.Close()
	assert.False(t, poller.isRunning())

	require.NoError(t, bus.Publish(context.Background(), events.NewAuthChanged(true)))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, poller.isRunning())
}

func TestPollerNeverRunsForLoggedOutSession(t *testing.T) {
	f := newSessionFixture(t)
	srv := httptest.NewServer(f.backend.handler())
	defer srv.Close()

	api := apiclient.New(srv.URL+"/api", f.tokens, 5*time.Second, logger.NewNopLogger())
	m := NewSessionManager(api, f.tokens, f.store, NewQueryCache(AuthCheckStaleTime), f.bus, logger.NewNopLogger())
	defer m.Dispose()

	notifications := &fakeNotificationAPI{}
	factory := &tickerFactory{}
	poller := NewNotificationPoller(notifications, nil, time.Minute, logger.NewNopLogger(), WithTickerFactory(factory.new))
	defer poller.Dispose()

	o, err := NewAuthObserver(f.bus, poller, nil, storage.NewTokenStore(f.store), logger.NewNopLogger())
	require.NoError(t, err)
	defer o.Close()

	m.Initialize(context.Background())
	assert.False(t, poller.ConnectionStatus())

	_, err = m.Login(context.Background(), &dto.LoginRequest{Login: "saver", Password: "hunter22"})
	require.NoError(t, err)
	assert.True(t, poller.ConnectionStatus())

	require.NoError(t, m.Logout(context.Background()))
	assert.False(t, poller.ConnectionStatus())
	require.Len(t, factory.all(), 1)
	assert.True(t, factory.all()[0].isStopped())
}

func TestLogoutClearsNotificationState(t *testing.T) {
	f := newSessionFixture(t)
	srv := httptest.NewServer(f.backend.handler())
	defer srv.Close()

	api := apiclient.New(srv.URL+"/api", f.tokens, 5*time.Second, logger.NewNopLogger())
	m := NewSessionManager(api, f.tokens, f.store, NewQueryCache(AuthCheckStaleTime), f.bus, logger.NewNopLogger())
	defer m.Dispose()

	notifications := &fakeNotificationAPI{}
	notifications.unread.Store(3)
	factory := &tickerFactory{}
	poller := NewNotificationPoller(notifications, nil, time.Minute, logger.NewNopLogger(), WithTickerFactory(factory.new))
	defer poller.Dispose()

	o, err := NewAuthObserver(f.bus, poller, nil, storage.NewTokenStore(f.store), logger.NewNopLogger())
	require.NoError(t, err)
	defer o.Close()

	_, err = m.Login(context.Background(), &dto.LoginRequest{Login: "saver", Password: "hunter22"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return poller.UnreadCount() == 3 && len(poller.Notifications()) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, m.Logout(context.Background()))

	assert.False(t, poller.ConnectionStatus())
	assert.Zero(t, poller.UnreadCount())
	assert.Empty(t, poller.Notifications())
	assert.NoError(t, poller.LastError())
	assert.True(t, poller.LastCheckTime().IsZero())
}
