package transport

import "encoding/json"

// Event names the message types exchanged over a town subscription socket.
type Event string

// Server -> client events.
const (
	EventNewPlayer             Event = "newPlayer"
	EventPlayerMoved           Event = "playerMoved"
	EventPlayerDisconnect      Event = "playerDisconnect"
	EventTownClosing           Event = "townClosing"
	EventConversationUpdated   Event = "conversationUpdated"
	EventConversationDestroyed Event = "conversationDestroyed"
)

// Client -> server events.
const (
	EventPlayerMovement Event = "playerMovement"
)

// Message is the JSON envelope for outbound socket traffic.
type Message struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload,omitempty"`
}

// inboundMessage defers payload decoding until the event type is known.
type inboundMessage struct {
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload"`
}
