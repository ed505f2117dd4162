package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"savings-client/internal/model"
	"savings-client/pkg/events"
)

var errNotLoggedIn = errors.New("not logged in, run `savings login` first")

func notifications(c *cli.Context) error {
	container, err := getContainer(c)
	if err != nil {
		return err
	}
	defer container.Close()

	if !container.Session.Initialize(c.Context).IsAuthenticated {
		return errNotLoggedIn
	}

	poller := container.Poller
	switch {
	case c.Bool(flagMarkAll):
		err = poller.MarkAllAsRead(c.Context)
	case c.String(flagMarkRead) != "":
		err = poller.MarkAsRead(c.Context, c.String(flagMarkRead))
	default:
		err = poller.CheckNow(c.Context)
	}
	if err != nil {
		return errors.Wrap(err, "error fetching notifications")
	}

	printNotifications(poller.UnreadCount(), poller.Notifications())
	return nil
}

func watch(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := getContainer(c)
	if err != nil {
		return err
	}
	defer container.Close()

	if d := c.Duration(flagInterval); d > 0 {
		if err := container.Poller.SetPollingInterval(d); err != nil {
			return err
		}
	}

	bus := container.Bus
	for topic, handler := range map[string]events.Handler{
		events.TopicNotificationsUpdated: func(_ context.Context, e events.Event) {
			fmt.Printf("%s %v unread\n", stamp(e), e.Payload()["unread_count"])
		},
		events.TopicNotificationsError: func(_ context.Context, e events.Event) {
			color.Red("%s check failed: %v", stamp(e), e.Payload()["error"])
		},
		events.TopicNotificationPushed: func(_ context.Context, e events.Event) {
			color.Cyan("%s %v: %v", stamp(e), e.Payload()["title"], e.Payload()["message"])
		},
		events.TopicAuthChanged: func(_ context.Context, e events.Event) {
			if !events.IsAuthenticated(e) {
				color.Yellow("%s session ended", stamp(e))
				stop()
			}
		},
	} {
		unsubscribe, err := bus.Subscribe(topic, handler)
		if err != nil {
			return err
		}
		defer unsubscribe()
	}

	if !container.Session.Initialize(ctx).IsAuthenticated {
		return errNotLoggedIn
	}

	color.Green("Watching notifications every %s. Press Ctrl+C to stop.", container.Poller.PollingInterval())
	<-ctx.Done()
	return nil
}

func stamp(e events.Event) string {
	return e.Timestamp().Local().Format(time.TimeOnly)
}

func printNotifications(unread int64, items []model.Notification) {
	color.New(color.Bold).Printf("%d unread\n", unread)
	if len(items) == 0 {
		fmt.Println("No notifications found.")
		return
	}
	for _, n := range items {
		marker := " "
		if !n.IsRead {
			marker = color.GreenString("*")
		}
		fmt.Printf("%s %s  %-20s %s\n", marker, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Title, n.Message)
		fmt.Printf("  %s\n", color.HiBlackString(n.ID))
	}
}
