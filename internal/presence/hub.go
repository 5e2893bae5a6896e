package presence

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/db"
	"github.com/webmatcha/matcha-go/internal/repository"
)

// Client is one active realtime connection. Abstracting it keeps the hub
// testable without real sockets.
type Client interface {
	UserID() uint64
	ConnID() string
	// SendChannel is where the hub queues events for this connection.
	SendChannel() chan<- Event
	// Run starts the connection's read and write pumps.
	Run()
	// Close shuts the connection down. It must leave SendChannel open:
	// the hub can still queue events on a replaced client.
	Close()
}

// MessageSender lets the hub hand inbound chat frames to the messaging
// gate without importing it.
type MessageSender interface {
	Send(ctx context.Context, senderID, receiverID uint64, content string) (*db.Message, error)
}

// Hub maintains the connectionID-to-userID presence map and pushes
// events to connected users. Pushes for users connected elsewhere are
// relayed over the Redis notify channel; every instance runs a listener
// and delivers to its own clients.
type Hub struct {
	appCtx *app.AppContext
	users  *repository.UserRepository

	mu      sync.RWMutex
	clients map[uint64]Client // userID -> connection (latest session wins)
	conns   map[string]uint64 // connID -> userID

	sender MessageSender
}

// NewHub creates a Hub with dependencies from AppContext.
func NewHub(appCtx *app.AppContext) *Hub {
	return &Hub{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		clients: make(map[uint64]Client),
		conns:   make(map[string]uint64),
	}
}

// SetMessageSender wires the messaging gate in after construction.
func (h *Hub) SetMessageSender(s MessageSender) { h.sender = s }

// Register adds a connection, flips the user online and announces the
// status change. A previous connection for the same user is replaced.
func (h *Hub) Register(ctx context.Context, c Client) {
	h.mu.Lock()
	if old, ok := h.clients[c.UserID()]; ok {
		delete(h.conns, old.ConnID())
		old.Close()
	}
	h.clients[c.UserID()] = c
	h.conns[c.ConnID()] = c.UserID()
	h.mu.Unlock()

	if err := h.users.SetOnline(ctx, c.UserID(), true); err != nil {
		h.appCtx.Logger.Warn("failed to set user online", "user", c.UserID(), "err", err)
	}
	if err := h.appCtx.RedisCache.MarkOnline(ctx, c.UserID()); err != nil {
		h.appCtx.Logger.Warn("failed to mark user online in redis", "user", c.UserID(), "err", err)
	}

	h.Broadcast(c.UserID(), Event{Name: EventUserStatus, Payload: map[string]any{
		"user_id": c.UserID(), "is_online": true,
	}})
}

// Unregister drops a connection and, if it was the user's current one,
// flips them offline.
func (h *Hub) Unregister(ctx context.Context, c Client) {
	h.mu.Lock()
	userID, known := h.conns[c.ConnID()]
	if known {
		delete(h.conns, c.ConnID())
		if cur, ok := h.clients[userID]; ok && cur.ConnID() == c.ConnID() {
			delete(h.clients, userID)
		} else {
			known = false // replaced by a newer session, nothing else to do
		}
	}
	h.mu.Unlock()

	if !known {
		return
	}

	if err := h.users.SetOnline(ctx, userID, false); err != nil {
		h.appCtx.Logger.Warn("failed to set user offline", "user", userID, "err", err)
	}
	if err := h.appCtx.RedisCache.MarkOffline(ctx, userID); err != nil {
		h.appCtx.Logger.Warn("failed to mark user offline in redis", "user", userID, "err", err)
	}

	h.Broadcast(userID, Event{Name: EventUserStatus, Payload: map[string]any{
		"user_id": userID, "is_online": false,
	}})
}

// IsOnline reports whether the user has a connection on this instance.
// Cross-instance presence lives in the Redis online set.
func (h *Hub) IsOnline(userID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Push delivers an event to the user: directly when they are connected
// here, otherwise over the notify channel for whichever instance has
// them. Delivery is best-effort, a slow client is dropped rather than
// allowed to block the caller.
func (h *Hub) Push(userID uint64, event string, payload any) {
	ev := Event{UserID: userID, Name: event, Payload: payload}

	h.mu.RLock()
	c, local := h.clients[userID]
	h.mu.RUnlock()

	if local {
		select {
		case c.SendChannel() <- ev:
		default:
			h.appCtx.Logger.Warn("dropping slow realtime client", "user", userID)
			h.Unregister(context.Background(), c)
			c.Close()
		}
		return
	}

	if err := h.appCtx.RedisCache.PublishEvent(context.Background(), ev); err != nil {
		h.appCtx.Logger.Warn("failed to publish realtime event", "user", userID, "err", err)
	}
}

// Broadcast sends an event to every connected client except the origin
// user. Used for online/offline status changes.
func (h *Hub) Broadcast(exceptUserID uint64, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, c := range h.clients {
		if userID == exceptUserID {
			continue
		}
		select {
		case c.SendChannel() <- ev:
		default:
			// slow client, skip; the next push will drop it
		}
	}
}

// Run consumes the Redis notify channel and delivers events addressed to
// users connected on this instance. Blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	sub := h.appCtx.RedisCache.SubscribeEvents(ctx)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.appCtx.Logger.Warn("bad notify payload", "err", err)
				continue
			}

			h.mu.RLock()
			c, local := h.clients[ev.UserID]
			h.mu.RUnlock()
			if !local {
				continue
			}
			select {
			case c.SendChannel() <- ev:
			default:
			}
		}
	}
}

// handleInbound processes a frame read from a client socket.
func (h *Hub) handleInbound(c Client, frame inboundFrame) {
	switch frame.Type {
	case "message":
		if h.sender == nil || frame.ReceiverID == 0 {
			return
		}
		msg, err := h.sender.Send(context.Background(), c.UserID(), frame.ReceiverID, frame.Content)
		if err != nil {
			h.Push(c.UserID(), EventError, map[string]any{"error": err.Error()})
			return
		}
		h.Push(c.UserID(), EventMessage, msg) // echo confirmation to sender
	case "typing":
		if frame.ReceiverID == 0 {
			return
		}
		h.Push(frame.ReceiverID, EventTyping, map[string]any{
			"user_id": c.UserID(), "is_typing": frame.IsTyping,
		})
	}
}
