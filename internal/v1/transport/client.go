// Package transport binds authenticated WebSocket connections to a town
// controller's event stream: outbound town events become socket messages,
// inbound movement messages become controller calls, and either side
// disconnecting tears the subscription down exactly once.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/covey-town/townservice/internal/v1/logging"
	"github.com/covey-town/townservice/internal/v1/metrics"
)

// wsConnection is the subset of *websocket.Conn the client needs. The
// abstraction keeps the pumps testable with mock connections.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// Client is one subscribed socket. Outbound messages are queued on a buffered
// channel so a slow consumer never blocks the controller's dispatch; when the
// buffer fills, messages are dropped rather than stalling the town.
type Client struct {
	conn wsConnection
	send chan []byte

	onMessage    func(event Event, payload json.RawMessage)
	onDisconnect func()

	mu     sync.Mutex
	closed bool
}

func newClient(conn wsConnection) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// enqueue queues a marshalled message for delivery, dropping it if the client
// is closed or its buffer is full.
func (c *Client) enqueue(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		logging.Error(context.Background(), "Failed to marshal socket message",
			zap.String("event", string(msg.Event)), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
		logging.Warn(context.Background(), "Client send buffer full, dropping message",
			zap.String("event", string(msg.Event)))
	}
}

// closeSend ends the outbound stream. Queued messages are still flushed by
// writePump before the connection is closed. Safe to call more than once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump processes inbound messages until the connection drops, then runs
// the disconnect callback.
func (c *Client) readPump() {
	defer func() {
		c.onDisconnect()
		c.closeSend()
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Warn(context.Background(), "Failed to unmarshal socket message", zap.Error(err))
			metrics.WebsocketEvents.WithLabelValues("unknown", "error").Inc()
			continue
		}

		c.onMessage(msg.Event, msg.Payload)
	}
}

// writePump delivers queued messages and, when the stream ends, writes a
// close frame.
func (c *Client) writePump() {
	defer c.conn.Close()
	writeWait := 10 * time.Second

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Error(context.Background(), "Error writing socket message", zap.Error(err))
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
