package presence

// Event is the envelope pushed to realtime clients, and the payload
// relayed between instances over the Redis notify channel.
type Event struct {
	UserID  uint64 `json:"user_id"`
	Name    string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Event names pushed through the hub.
const (
	EventNotification = "notification"
	EventMessage      = "message"
	EventTyping       = "typing"
	EventUserStatus   = "user_status"
	EventMessagesRead = "messages_read"
	EventError        = "error"
)

// inboundFrame is what a connected client may send over the socket.
type inboundFrame struct {
	Type       string `json:"type"` // "message" or "typing"
	ReceiverID uint64 `json:"receiver_id"`
	Content    string `json:"content,omitempty"`
	IsTyping   bool   `json:"is_typing,omitempty"`
}
