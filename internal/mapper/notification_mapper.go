package mapper

import (
	"savings-client/internal/entity"
	"savings-client/internal/model"
)

type NotificationMapper struct{}

func NewNotificationMapper() *NotificationMapper {
	return &NotificationMapper{}
}

func (m *NotificationMapper) ToModel(n *entity.Notification) model.Notification {
	return model.Notification{
		ID:        n.Id.String(),
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func (m *NotificationMapper) ToModels(ns []entity.Notification) []model.Notification {
	out := make([]model.Notification, 0, len(ns))
	for i := range ns {
		out = append(out, m.ToModel(&ns[i]))
	}
	return out
}
