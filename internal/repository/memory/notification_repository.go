package memory

import (
	"context"
	"sync"

	"savings-client/internal/entity"
	"savings-client/internal/repository/contract"

	"github.com/google/uuid"
)

// NotificationRepository keeps each user's notifications newest first.
type NotificationRepository struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID][]entity.Notification
	types  map[string]entity.NotificationType
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		byUser: make(map[uuid.UUID][]entity.Notification),
		types:  make(map[string]entity.NotificationType),
	}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[n.UserId] = append([]entity.Notification{*n}, r.byUser[n.UserId]...)
	return nil
}

func (r *NotificationRepository) GetNotificationsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.byUser[userID]
	total := int64(len(all))
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []entity.Notification{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]entity.Notification, end-offset)
	copy(out, all[offset:end])
	return out, total, nil
}

func (r *NotificationRepository) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, item := range r.byUser[userID] {
		if !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.byUser[userID]
	for i := range items {
		if items[i].Id == notificationID {
			items[i].IsRead = true
			return nil
		}
	}
	return contract.ErrNotFound
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.byUser[userID]
	for i := range items {
		items[i].IsRead = true
	}
	return nil
}

func (r *NotificationRepository) GetNotificationTypeByCode(ctx context.Context, code string) (*entity.NotificationType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[code]
	if !ok {
		return nil, contract.ErrNotFound
	}
	return &t, nil
}

func (r *NotificationRepository) SaveNotificationType(ctx context.Context, t *entity.NotificationType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Code] = *t
	return nil
}
