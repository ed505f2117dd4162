package devapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"savings-client/internal/entity"
	"savings-client/internal/mapper"
	"savings-client/internal/model"
	"savings-client/internal/pkg/logger"
	"savings-client/internal/repository"
	"savings-client/internal/repository/contract"
	"savings-client/pkg/events"
	pktNats "savings-client/pkg/nats"

	"github.com/google/uuid"
)

// NotificationDelivery pushes new notifications to connected clients.
// Implemented by the websocket hub.
type NotificationDelivery interface {
	Send(userID uuid.UUID, notification model.Notification)
}

type EventSubscriber interface {
	Subscribe(subject, durableName string, handler pktNats.EventHandler) error
}

const (
	eventSubject = "events.>"
	durableName  = "notif-service-worker"
)

// DefaultNotificationTypes is the event-to-notification registry the dev API
// starts with.
var DefaultNotificationTypes = []entity.NotificationType{
	{Code: "USER_REGISTERED", DisplayName: "New member", Template: "{full_name} just joined.", TargetType: entity.TargetAdmin, IsActive: true},
	{Code: "CHALLENGE_JOINED", DisplayName: "Challenge joined", Template: "You joined {challenge_name}. Good luck!", TargetType: entity.TargetSelf, IsActive: true},
	{Code: "CHALLENGE_COMPLETED", DisplayName: "Challenge completed", Template: "You completed {challenge_name} and saved {amount}.", TargetType: entity.TargetSelf, IsActive: true},
	{Code: "GOAL_REACHED", DisplayName: "Goal reached", Template: "Your goal {goal_name} is fully funded.", TargetType: entity.TargetSelf, IsActive: true},
	{Code: "STREAK_MILESTONE", DisplayName: "Streak milestone", Template: "{days} days in a row. Keep it up!", TargetType: entity.TargetSelf, IsActive: true},
	{Code: "SYSTEM_BROADCAST", DisplayName: "Announcement", Template: "{message}", TargetType: entity.TargetAll, IsActive: true},
	{Code: "TEST_EVENT", DisplayName: "Test notification", Template: "This is a test notification.", TargetType: entity.TargetSelf, IsActive: true},
}

type NotificationService struct {
	repo       repository.NotificationRepository
	users      contract.UserRepository
	subscriber EventSubscriber
	delivery   NotificationDelivery
	mapper     *mapper.NotificationMapper
	logger     logger.ILogger
	now        func() time.Time
}

// NewNotificationService wires the service. subscriber and delivery may be nil.
func NewNotificationService(repo repository.NotificationRepository, users contract.UserRepository, sub EventSubscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		repo:       repo,
		users:      users,
		subscriber: sub,
		delivery:   delivery,
		mapper:     mapper.NewNotificationMapper(),
		logger:     log,
		now:        time.Now,
	}
}

// SeedTypes registers the notification type registry.
func (s *NotificationService) SeedTypes(ctx context.Context, types []entity.NotificationType) error {
	for i := range types {
		if err := s.repo.SaveNotificationType(ctx, &types[i]); err != nil {
			return err
		}
	}
	return nil
}

// Start begins consuming events.> from NATS. Without a subscriber events
// arrive through Publish only.
func (s *NotificationService) Start() error {
	if s.subscriber == nil {
		s.logger.Info("NotificationService", "No NATS subscriber, events are dispatched in process", nil)
		return nil
	}
	if err := s.subscriber.Subscribe(eventSubject, durableName, s.HandleEvent); err != nil {
		return fmt.Errorf("failed to start notification subscriber: %w", err)
	}
	s.logger.Info("NotificationService", "Notification service started, listening to events.>", nil)
	return nil
}

// Publish dispatches an event in process. It lets the service stand in for
// the NATS publisher.
func (s *NotificationService) Publish(ctx context.Context, event events.Event) error {
	return s.HandleEvent(ctx, event)
}

// HandleEvent turns one domain event into notifications for its recipients.
// Unknown and inactive types are ignored.
func (s *NotificationService) HandleEvent(ctx context.Context, event events.Event) error {
	typeCode := strings.TrimPrefix(event.EventType(), pktNats.SubjectPrefix)

	config, err := s.repo.GetNotificationTypeByCode(ctx, typeCode)
	if err != nil {
		s.logger.Debug("NotificationService", fmt.Sprintf("No notification type for code '%s'", typeCode), nil)
		return nil
	}
	if !config.IsActive {
		s.logger.Info("NotificationService", fmt.Sprintf("Notification type '%s' is inactive", typeCode), nil)
		return nil
	}

	recipients, err := s.resolveRecipients(ctx, config, event)
	if err != nil {
		s.logger.Error("NotificationService", "Error resolving recipients", map[string]interface{}{"type": typeCode, "error": err.Error()})
		return err
	}
	s.logger.Info("NotificationService", "Recipients resolved", map[string]interface{}{"type": typeCode, "target": config.TargetType, "count": len(recipients)})

	title, message := config.DisplayName, render(config.Template, event.Payload())
	if t, ok := event.Payload()["title"].(string); ok && t != "" && config.TargetType == entity.TargetAll {
		title = t
	}

	for _, userID := range recipients {
		if err := s.deliver(ctx, userID, config.Code, title, message); err != nil {
			s.logger.Error("NotificationService", "Error saving notification", map[string]interface{}{"user_id": userID, "error": err.Error()})
		}
	}
	return nil
}

func (s *NotificationService) resolveRecipients(ctx context.Context, config *entity.NotificationType, event events.Event) ([]uuid.UUID, error) {
	switch config.TargetType {
	case entity.TargetSelf:
		uidStr, _ := event.Payload()["user_id"].(string)
		uid, err := uuid.Parse(uidStr)
		if err != nil {
			s.logger.Warn("NotificationService", "Target SELF but no valid user_id in payload", map[string]interface{}{"type": config.Code})
			return nil, nil
		}
		return []uuid.UUID{uid}, nil

	case entity.TargetAdmin, entity.TargetAll:
		users, err := s.users.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		var ids []uuid.UUID
		for _, u := range users {
			if config.TargetType == entity.TargetAdmin && u.Role != entity.UserRoleAdmin {
				continue
			}
			ids = append(ids, u.Id)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("unknown target type %q", config.TargetType)
}

// render fills {key} placeholders from the payload.
func render(template string, payload map[string]interface{}) string {
	msg := template
	for k, v := range payload {
		msg = strings.ReplaceAll(msg, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	return msg
}

func (s *NotificationService) deliver(ctx context.Context, userID uuid.UUID, typeCode, title, message string) error {
	n := &entity.Notification{
		Id:        uuid.New(),
		UserId:    userID,
		Title:     title,
		Message:   message,
		Type:      typeCode,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return err
	}

	if s.delivery != nil {
		s.delivery.Send(userID, s.mapper.ToModel(n))
	}
	return nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Notification, int64, error) {
	items, total, err := s.repo.GetNotificationsByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return s.mapper.ToModels(items), total, nil
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

// MarkAsRead returns contract.ErrNotFound when the notification does not
// belong to userID.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
