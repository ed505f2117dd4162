package bootstrap

import (
	"context"

	"savings-client/internal/config"
	"savings-client/internal/controller"
	"savings-client/internal/devapi"
	"savings-client/internal/handler"
	"savings-client/internal/pkg/logger"
	"savings-client/internal/repository/memory"
	"savings-client/internal/websocket"
	pktNats "savings-client/pkg/nats"

	"github.com/redis/go-redis/v9"
)

// DevAPIContainer is the object graph behind cmd/devapi.
type DevAPIContainer struct {
	AuthController      controller.IAuthController
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	AuthService         *devapi.AuthService
	NotificationService *devapi.NotificationService

	logger  logger.ILogger
	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
	cancel  context.CancelFunc
}

// NewDevAPIContainer builds the dev API. NATS and Redis are optional: without
// NATS, events are handled in process; without Redis, the hub serves this
// instance only.
func NewDevAPIContainer(cfg *config.Config, log logger.ILogger) (*DevAPIContainer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &DevAPIContainer{logger: log, cancel: cancel}

	if cfg.DevAPI.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.DevAPI.NatsURL, log)
		if err != nil {
			log.Warn("Container", "Failed to connect NATS publisher", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsPub = pub
		}
		sub, err := pktNats.NewSubscriber(cfg.DevAPI.NatsURL, log)
		if err != nil {
			log.Warn("Container", "Failed to connect NATS subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsSub = sub
		}
	}

	if cfg.DevAPI.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.DevAPI.RedisURL)
		if err != nil {
			log.Warn("Container", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.DevAPI.RedisURL}
		}
		c.rdb = redis.NewClient(opt)
		if err := c.rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Container", "Failed to connect to Redis, push relay disabled", map[string]interface{}{"error": err.Error()})
			_ = c.rdb.Close()
			c.rdb = nil
		}
	}

	c.WebSocketHub = websocket.NewHub(c.rdb, log)
	go c.WebSocketHub.Run(ctx)

	users := memory.NewUserRepository()
	notifications := memory.NewNotificationRepository()

	var sub devapi.EventSubscriber
	if c.natsSub != nil && c.natsPub != nil {
		sub = c.natsSub
	}
	c.NotificationService = devapi.NewNotificationService(notifications, users, sub, c.WebSocketHub, log)

	// Events go through NATS only when this instance also consumes them.
	var publisher devapi.EventPublisher = c.NotificationService
	if sub != nil {
		publisher = c.natsPub
	}

	c.AuthService = devapi.NewAuthService(users, memory.NewRefreshTokenRepository(), publisher, cfg.DevAPI.JWTSecret, log)

	if err := c.NotificationService.SeedTypes(ctx, devapi.DefaultNotificationTypes); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.AuthService.Seed(ctx, devapi.DemoUsers); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.NotificationService.Start(); err != nil {
		c.Close()
		return nil, err
	}

	c.AuthController = controller.NewAuthController(c.AuthService, cfg.DevAPI.JWTSecret)
	c.NotificationHandler = handler.NewNotificationHandler(c.NotificationService, publisher, c.WebSocketHub, cfg.DevAPI.JWTSecret, log)

	return c, nil
}

func (c *DevAPIContainer) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	c.cancel()
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
}
