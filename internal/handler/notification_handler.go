package handler

import (
	"errors"
	"time"

	"savings-client/internal/devapi"
	"savings-client/internal/dto"
	"savings-client/internal/entity"
	"savings-client/internal/pkg/logger"
	"savings-client/internal/pkg/serverutils"
	"savings-client/internal/repository/contract"
	internalWS "savings-client/internal/websocket"
	"savings-client/pkg/events"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	service   *devapi.NotificationService
	publisher devapi.EventPublisher
	hub       *internalWS.Hub
	secret    []byte
	validate  *validator.Validate
	logger    logger.ILogger
}

// NewNotificationHandler wires the handler. publisher receives debug and
// broadcast events; it is the NATS publisher or the service itself.
func NewNotificationHandler(service *devapi.NotificationService, publisher devapi.EventPublisher, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		publisher: publisher,
		hub:       hub,
		secret:    []byte(jwtSecret),
		validate:  validator.New(),
		logger:    log,
	}
}

// ServeWs upgrades an authenticated request into a push connection. Browsers
// cannot set headers on websocket requests, so the token may come in the
// query string.
func (h *NotificationHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = serverutils.BearerToken(c)
	}
	if tokenStr == "" {
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Missing token (query 'token' or Authorization header)")
	}

	userID, _, err := serverutils.ParseAccessToken(h.secret, tokenStr)
	if err != nil {
		h.logger.Warn("NotificationHandler", "Invalid token in websocket handshake", map[string]interface{}{"error": err.Error()})
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("NotificationHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID)
		h.logger.Info("NotificationHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
	})(c)
}

func (h *NotificationHandler) GetNotifications(c *fiber.Ctx) error {
	userID, ok := serverutils.UserID(c)
	if !ok {
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, total, err := h.service.GetNotifications(c.UserContext(), userID, limit, offset)
	if err != nil {
		return serverutils.Fail(c, fiber.StatusInternalServerError, err.Error())
	}

	return serverutils.OK(c, "Notifications retrieved", dto.NotificationListResponse{
		Items: items,
		Total: total,
		Page:  offset/limit + 1,
		Limit: limit,
	})
}

func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	userID, ok := serverutils.UserID(c)
	if !ok {
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	count, err := h.service.GetUnreadCount(c.UserContext(), userID)
	if err != nil {
		return serverutils.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return serverutils.OK(c, "Unread count retrieved", dto.UnreadCountResponse{Count: count})
}

func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, ok := serverutils.UserID(c)
	if !ok {
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return serverutils.Fail(c, fiber.StatusBadRequest, "Invalid ID")
	}

	if err := h.service.MarkAsRead(c.UserContext(), userID, id); err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return serverutils.Fail(c, fiber.StatusNotFound, "Notification not found")
		}
		return serverutils.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return serverutils.OK(c, "Notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	userID, ok := serverutils.UserID(c)
	if !ok {
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	if err := h.service.MarkAllAsRead(c.UserContext(), userID); err != nil {
		return serverutils.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return serverutils.OK(c, "All notifications marked as read", nil)
}

// DebugTriggerEvent publishes an arbitrary event. Without user_id in the
// payload the event targets the caller.
func (h *NotificationHandler) DebugTriggerEvent(c *fiber.Ctx) error {
	var req dto.TriggerNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return serverutils.Fail(c, fiber.StatusBadRequest, err.Error())
	}
	if req.Type == "" {
		req.Type = "TEST_EVENT"
	}
	if req.Payload == nil {
		req.Payload = make(map[string]interface{})
	}
	if _, ok := req.Payload["user_id"]; !ok {
		if uid, ok := serverutils.UserID(c); ok {
			req.Payload["user_id"] = uid.String()
		}
	}

	evt := events.BaseEvent{Type: req.Type, Data: req.Payload, OccurredAt: time.Now()}
	if err := h.publisher.Publish(c.UserContext(), evt); err != nil {
		return serverutils.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return serverutils.OK(c, "Event published", fiber.Map{"type": evt.Type, "payload": evt.Data})
}

// Broadcast sends a notification to every user. Admin only.
func (h *NotificationHandler) Broadcast(c *fiber.Ctx) error {
	var req dto.BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return serverutils.Fail(c, fiber.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&req); err != nil {
		return serverutils.Fail(c, fiber.StatusBadRequest, "Title and Message are required")
	}

	evt := events.BaseEvent{
		Type: "SYSTEM_BROADCAST",
		Data: map[string]interface{}{
			"title":   req.Title,
			"message": req.Message,
		},
		OccurredAt: time.Now(),
	}
	if err := h.publisher.Publish(c.UserContext(), evt); err != nil {
		return serverutils.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return serverutils.OK(c, "Broadcast queued", nil)
}

func (h *NotificationHandler) RegisterRoutes(router fiber.Router) {
	jwt := serverutils.NewJwtMiddleware(string(h.secret))

	notif := router.Group("/notifications", jwt)
	notif.Get("/", h.GetNotifications)
	notif.Get("/unread-count", h.GetUnreadCount)
	notif.Patch("/read-all", h.MarkAllAsRead)
	notif.Patch("/:id/read", h.MarkAsRead)
	notif.Post("/broadcast", serverutils.RequireRole(string(entity.UserRoleAdmin)), h.Broadcast)

	debug := router.Group("/debug", jwt)
	debug.Post("/trigger-notification", h.DebugTriggerEvent)

	router.Get("/ws", h.ServeWs)
}
