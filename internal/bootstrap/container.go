package bootstrap

import (
	"context"
	"fmt"
	"io"

	"savings-client/internal/config"
	"savings-client/internal/pkg/logger"
	"savings-client/internal/service"
	"savings-client/internal/websocket"
	"savings-client/pkg/apiclient"
	"savings-client/pkg/events"
	"savings-client/pkg/storage"
)

// Container holds the client-side object graph: one session manager, one
// poller and, when enabled, one push listener, all sharing a single bus.
type Container struct {
	Config  *config.Config
	Logger  logger.ILogger
	Store   storage.KeyValueStore
	Tokens  *storage.TokenStore
	API     *apiclient.Client
	Bus     *events.Bus
	Queries *service.QueryCache
	Session *service.SessionManager
	Poller  *service.NotificationPoller

	// Push is nil when PUSH_ENABLED=false.
	Push *websocket.Listener

	observer *service.AuthObserver
}

func NewContainer(ctx context.Context, cfg *config.Config, log logger.ILogger) (*Container, error) {
	store, err := storage.New(ctx, storage.Options{
		Driver:    cfg.Storage.Driver,
		StateDir:  cfg.Storage.StateDir,
		RedisURL:  cfg.Storage.RedisURL,
		KeyPrefix: cfg.Storage.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	tokens := storage.NewTokenStore(store)
	api := apiclient.New(cfg.Client.APIBaseURL, tokens, cfg.Client.HTTPTimeout, log)
	bus := events.NewBus(log)
	queries := service.NewQueryCache(service.AuthCheckStaleTime)

	session := service.NewSessionManager(api, tokens, store, queries, bus, log)
	poller := service.NewNotificationPoller(api, bus, cfg.Client.PollingInterval, log)

	c := &Container{
		Config:  cfg,
		Logger:  log,
		Store:   store,
		Tokens:  tokens,
		API:     api,
		Bus:     bus,
		Queries: queries,
		Session: session,
		Poller:  poller,
	}

	var push service.PushChannel
	if cfg.Client.PushEnabled {
		c.Push = websocket.NewListener(cfg.Client.WebSocketURL, tokens, bus, poller, log)
		push = c.Push
	}

	observer, err := service.NewAuthObserver(bus, poller, push, tokens, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to attach auth observer: %w", err)
	}
	c.observer = observer

	return c, nil
}

// Close tears everything down in reverse dependency order.
func (c *Container) Close() {
	if c.observer != nil {
		c.observer.Close()
	}
	if c.Push != nil {
		c.Push.Stop()
	}
	c.Poller.Dispose()
	c.Session.Dispose()
	if err := c.Bus.Close(); err != nil {
		c.Logger.Warn("Container", "Failed to close event bus", map[string]interface{}{"error": err.Error()})
	}
	if closer, ok := c.Store.(io.Closer); ok {
		_ = closer.Close()
	}
	_ = c.Logger.Sync()
}
