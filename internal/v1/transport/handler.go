package transport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/covey-town/townservice/internal/v1/logging"
	"github.com/covey-town/townservice/internal/v1/metrics"
	"github.com/covey-town/townservice/internal/v1/town"
)

// TownRegistry is the store surface the handler needs. In production it is
// implemented by *town.TownsStore; tests can substitute a fake.
type TownRegistry interface {
	GetControllerForTown(coveyTownID string) *town.TownController
}

// SubscriptionHandler authenticates sockets against the towns store and binds
// accepted ones to their controller's event stream.
type SubscriptionHandler struct {
	store          TownRegistry
	allowedOrigins []string
}

// NewSubscriptionHandler creates a handler serving subscriptions for the
// given store. allowedOrigins restricts browser connections; an empty Origin
// header (non-browser client) is always accepted.
func NewSubscriptionHandler(store TownRegistry, allowedOrigins []string) *SubscriptionHandler {
	return &SubscriptionHandler{store: store, allowedOrigins: allowedOrigins}
}

// ParseAllowedOrigins splits a comma-separated origin list, falling back to
// the defaults when the list is empty.
func ParseAllowedOrigins(raw string, defaults []string) []string {
	if strings.TrimSpace(raw) == "" {
		return defaults
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return defaults
	}
	return origins
}

// ServeWs upgrades an HTTP request to a town subscription. The handshake
// carries coveyTownID and sessionToken as query parameters; an unknown town
// or token is rejected with 401 before the upgrade.
//
// On accept, a bridging listener relays town events to the socket, inbound
// playerMovement messages drive UpdatePlayerLocation, and a disconnect from
// either side removes the listener and destroys the session exactly once.
func (h *SubscriptionHandler) ServeWs(c *gin.Context) {
	coveyTownID := c.Query("coveyTownID")
	sessionToken := c.Query("sessionToken")

	controller := h.store.GetControllerForTown(coveyTownID)
	if controller == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown town"})
		return
	}
	session := controller.SessionForToken(sessionToken)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // Allow non-browser clients (e.g., for testing)
			}
			originURL, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, allowed := range h.allowedOrigins {
				allowedURL, err := url.Parse(allowed)
				if err != nil {
					continue
				}
				if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
					return true
				}
			}
			return false
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(conn)
	listener := newSocketListener(client)

	var teardown sync.Once
	client.onDisconnect = func() {
		teardown.Do(func() {
			controller.RemoveTownListener(listener)
			controller.DestroySession(session)
			logging.Info(c.Request.Context(), "Subscription torn down",
				zap.String("town_id", coveyTownID),
				zap.String("player_id", session.Player().ID))
		})
	}
	client.onMessage = func(event Event, payload json.RawMessage) {
		start := time.Now()
		defer func() {
			metrics.MessageProcessingDuration.WithLabelValues(string(event)).Observe(time.Since(start).Seconds())
		}()

		switch event {
		case EventPlayerMovement:
			var location town.UserLocation
			if err := json.Unmarshal(payload, &location); err != nil {
				logging.Warn(c.Request.Context(), "Malformed playerMovement payload", zap.Error(err))
				metrics.WebsocketEvents.WithLabelValues(string(event), "error").Inc()
				return
			}
			controller.UpdatePlayerLocation(session.Player(), location)
			metrics.WebsocketEvents.WithLabelValues(string(event), "success").Inc()

		default:
			logging.Warn(c.Request.Context(), "Received unknown message event",
				zap.String("event", string(event)))
			metrics.WebsocketEvents.WithLabelValues(string(event), "unknown").Inc()
		}
	}

	controller.AddTownListener(listener)
	metrics.IncConnection()

	logging.Info(c.Request.Context(), "Subscription established",
		zap.String("town_id", coveyTownID),
		zap.String("player_id", session.Player().ID))

	go client.writePump()
	go client.readPump()
}
