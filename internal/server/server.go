package server

import (
	"savings-client/internal/bootstrap"
	"savings-client/internal/config"
	"savings-client/internal/pkg/logger"
	"savings-client/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.DevAPIContainer
	logger    logger.ILogger
}

func New(cfg *config.Config, container *bootstrap.DevAPIContainer, log logger.ILogger) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024,
		ErrorHandler:          serverutils.ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.DevAPI.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	if cfg.DevAPI.OtelEnabled {
		app.Use(otelfiber.Middleware())
	}

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
		logger:    log,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.logger.Info("Server", "Dev API is running", map[string]interface{}{"addr": "http://localhost:" + s.cfg.DevAPI.Port})
	return s.app.Listen(":" + s.cfg.DevAPI.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, c *bootstrap.DevAPIContainer) {
	api := app.Group("/api")

	c.AuthController.RegisterRoutes(api)
	c.NotificationHandler.RegisterRoutes(api)
}
