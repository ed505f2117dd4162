package model

import "time"

// Notification is server-owned and read-only on the client.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// PollState is the observable state of the notification poller.
// LastCheckTime is zero until the first check completes.
type PollState struct {
	IsPolling     bool          `json:"is_polling"`
	Interval      time.Duration `json:"interval"`
	LastCheckTime time.Time     `json:"last_check_time"`
	UnreadCount   int64         `json:"unread_count"`
	LastError     string        `json:"last_error,omitempty"`
}
