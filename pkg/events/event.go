package events

import "time"

// Topics published on the in-process bus.
const (
	TopicAuthChanged          = "auth:changed"
	TopicUserUpdated          = "user:updated"
	TopicNotificationsUpdated = "notifications:updated"
	TopicNotificationsError   = "notifications:error"
	TopicNotificationPushed   = "notifications:pushed"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "auth:changed").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewAuthChanged builds the event announcing an authentication transition.
func NewAuthChanged(isAuthenticated bool) BaseEvent {
	return BaseEvent{
		Type:       TopicAuthChanged,
		Data:       map[string]interface{}{"is_authenticated": isAuthenticated},
		OccurredAt: time.Now(),
	}
}

// IsAuthenticated reads the auth:changed payload. Missing or malformed
// payloads count as unauthenticated.
func IsAuthenticated(e Event) bool {
	v, _ := e.Payload()["is_authenticated"].(bool)
	return v
}
