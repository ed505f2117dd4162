package dto

import "savings-client/internal/model"

type NotificationListResponse struct {
	Items []model.Notification `json:"items"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

type BroadcastRequest struct {
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type TriggerNotificationRequest struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}
