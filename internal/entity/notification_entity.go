package entity

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Title     string
	Message   string
	Type      string
	IsRead    bool
	CreatedAt time.Time
}

const (
	TargetSelf  = "SELF"
	TargetAdmin = "ADMIN"
	TargetAll   = "ALL"
)

// NotificationType maps an event code to the notification it produces.
// Template placeholders look like {key} and are filled from the event payload.
type NotificationType struct {
	Code        string
	DisplayName string
	Template    string
	TargetType  string
	IsActive    bool
}
