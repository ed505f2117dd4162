package websocket

import (
	"context"
	"encoding/json"

	"savings-client/internal/model"
	"savings-client/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Hub tracks the push connections of every user (one user may have several
// devices) and fans notifications out to them. With Redis configured, sends
// are relayed to the other dev API instances as well.
type Hub struct {
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client
	outbox     chan outbound
	stats      chan chan int
	done       chan struct{}

	rdb        *redis.Client
	instanceID string

	logger logger.ILogger
}

type clusterMessage struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

type outbound struct {
	target uuid.UUID
	data   []byte
}

// NewHub creates a hub. rdb may be nil.
func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbox:     make(chan outbound, 64),
		stats:      make(chan chan int),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run owns the client map until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx, h.outbox)
	}

	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for _, c := range clients {
					close(c.Send)
				}
			}
			h.clients = map[uuid.UUID][]*Client{}
			return

		case client := <-h.register:
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.remove(client)

		case reply := <-h.stats:
			reply <- len(h.clients)

		case msg := <-h.outbox:
			h.sendTo(h.clients[msg.target], msg.data)
		}
	}
}

// Send (NotificationDelivery implementation) pushes to every connection of
// one user.
func (h *Hub) Send(userID uuid.UUID, notification model.Notification) {
	data := encodeFrame(notification)
	h.enqueue(outbound{target: userID, data: data})
	h.relay(userID.String(), data)
}

// ConnectedUsers is the number of users with at least one open connection.
func (h *Hub) ConnectedUsers() int {
	reply := make(chan int, 1)
	select {
	case h.stats <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func encodeFrame(notification model.Notification) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "notification",
		"data": notification,
	})
	return data
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.outbox <- msg:
	case <-h.done:
	}
}

func (h *Hub) relay(target string, data []byte) {
	if h.rdb == nil {
		return
	}
	payload, _ := json.Marshal(clusterMessage{Origin: h.instanceID, TargetUserID: target, Message: data})
	if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Failed to relay push to cluster", map[string]interface{}{"error": err.Error()})
	}
}

// sendTo never blocks the hub: a client whose buffer is full is dropped.
func (h *Hub) sendTo(clients []*Client, data []byte) {
	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"user_id": client.UserID})
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.UserID] = append(clients[:i:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
		h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
	}
}

// subscribeToRedis feeds pushes published by other instances into the local
// delivery queue. Messages this instance published itself are skipped.
func (h *Hub) subscribeToRedis(ctx context.Context, deliver chan<- outbound) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}

			uid, err := uuid.Parse(payload.TargetUserID)
			if err != nil {
				continue
			}
			out := outbound{target: uid, data: payload.Message}

			select {
			case deliver <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Register adds a connection. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
