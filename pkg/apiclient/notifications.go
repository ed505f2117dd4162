package apiclient

import (
	"context"
	"net/url"
	"strconv"

	"savings-client/internal/dto"
)

func (c *Client) ListNotifications(ctx context.Context, limit, offset int) (*dto.NotificationListResponse, error) {
	var out dto.NotificationListResponse
	err := c.Get(ctx, "/notifications", &out,
		WithQuery("limit", strconv.Itoa(limit)),
		WithQuery("offset", strconv.Itoa(offset)),
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out dto.UnreadCountResponse
	if err := c.Get(ctx, "/notifications/unread-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) MarkAsRead(ctx context.Context, id string) error {
	return c.Patch(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) MarkAllAsRead(ctx context.Context) error {
	return c.Patch(ctx, "/notifications/read-all", nil, nil)
}
