// Package town implements the authoritative state of a single multiplayer
// town: its players, sessions, conversation areas, and the listener fan-out
// that drives the realtime protocol.
//
// Concurrency Design:
// Each TownController is its own serialization domain, realised as a
// read-write mutex. Every mutating operation runs to completion, including
// its listener notifications, before the lock is released, so no listener
// ever observes a torn state and all listeners observe events in commit
// order. The only suspension point is the video-token mint inside AddPlayer,
// which happens before the lock is taken: an abandoned mint leaves no trace.
package town

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covey-town/townservice/internal/v1/logging"
	"github.com/covey-town/townservice/internal/v1/metrics"
)

// DefaultCapacity is the maximum occupancy assigned to newly created towns.
const DefaultCapacity = 50

// ErrTownFull is returned by AddPlayer when the town is at capacity.
var ErrTownFull = errors.New("town is at maximum occupancy")

// VideoTokenSource mints a video-chat capability token bound to a
// (townID, identity) pair. Implementations live in internal/v1/video; tests
// substitute fakes.
type VideoTokenSource interface {
	GetTokenForTown(ctx context.Context, coveyTownID string, identity string) (string, error)
}

// TownController owns the live state of one town. All access to players,
// sessions, and areas goes through its lock; collaborators hold the
// controller reference but never its internals.
type TownController struct {
	coveyTownID        string
	townUpdatePassword string
	capacity           int

	mu               sync.RWMutex
	friendlyName     string
	isPubliclyListed bool
	players          []*Player
	sessions         map[string]*PlayerSession
	areas            []*ConversationArea

	listenersMu sync.Mutex
	listeners   []TownListener

	video VideoTokenSource
}

// NewTownController creates a town with a fresh ID and update password.
func NewTownController(friendlyName string, isPubliclyListed bool, video VideoTokenSource) *TownController {
	return &TownController{
		coveyTownID:        uuid.NewString(),
		townUpdatePassword: uuid.NewString(),
		capacity:           DefaultCapacity,
		friendlyName:       friendlyName,
		isPubliclyListed:   isPubliclyListed,
		sessions:           make(map[string]*PlayerSession),
		video:              video,
	}
}

// CoveyTownID returns the town's unique identifier.
func (c *TownController) CoveyTownID() string {
	return c.coveyTownID
}

// TownUpdatePassword returns the password gating town mutation. It is only
// handed out once, in the create-town response.
func (c *TownController) TownUpdatePassword() string {
	return c.townUpdatePassword
}

// Capacity returns the town's maximum occupancy.
func (c *TownController) Capacity() int {
	return c.capacity
}

// FriendlyName returns the town's display name.
func (c *TownController) FriendlyName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.friendlyName
}

// IsPubliclyListed reports whether the town appears in public listings.
func (c *TownController) IsPubliclyListed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isPubliclyListed
}

// Occupancy returns the current number of players in the town.
func (c *TownController) Occupancy() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.players)
}

// Players returns the town's players in join order. The slice is a copy but
// the pointers are live: their fields keep changing under the controller's
// lock, so the result must not be read concurrently with town operations.
// Use PlayerSnapshots for anything that escapes the serialization domain.
func (c *TownController) Players() []*Player {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Player, len(c.players))
	copy(out, c.players)
	return out
}

// PlayerSnapshots returns value copies of the town's players in join order,
// taken atomically under the lock. Safe to marshal after the call returns.
func (c *TownController) PlayerSnapshots() []PlayerView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PlayerView, len(c.players))
	for i, p := range c.players {
		out[i] = PlayerView{ID: p.ID, UserName: p.UserName, Location: p.Location}
	}
	return out
}

// ConversationAreas returns a snapshot of the live areas in creation order.
func (c *TownController) ConversationAreas() []*ConversationArea {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*ConversationArea, len(c.areas))
	copy(out, c.areas)
	return out
}

// SessionForToken returns the session identified by the token, or nil.
func (c *TownController) SessionForToken(token string) *PlayerSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[token]
}

// update applies a password-gated change to the town's listing metadata.
// Called by the store; the password has already been checked.
func (c *TownController) update(friendlyName *string, isPubliclyListed *bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if friendlyName != nil {
		c.friendlyName = *friendlyName
	}
	if isPubliclyListed != nil {
		c.isPubliclyListed = *isPubliclyListed
	}
}

// AddPlayer mints a video token for the player, then atomically registers the
// player and a fresh session and announces the join. The mint is the only
// suspension point: until it resolves, the player is not visible to any
// listener, and a mint failure leaves no partial state.
func (c *TownController) AddPlayer(ctx context.Context, player *Player) (*PlayerSession, error) {
	if c.Occupancy() >= c.capacity {
		return nil, ErrTownFull
	}

	videoToken, err := c.video.GetTokenForTown(ctx, c.coveyTownID, player.ID)
	if err != nil {
		metrics.VideoTokenMints.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("minting video token for town %s: %w", c.coveyTownID, err)
	}
	metrics.VideoTokenMints.WithLabelValues("success").Inc()

	session := newPlayerSession(player, videoToken)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Recheck under the lock: joins racing the mint may have filled the town.
	if len(c.players) >= c.capacity {
		return nil, ErrTownFull
	}

	c.players = append(c.players, player)
	c.sessions[session.sessionToken] = session
	metrics.TownPlayers.WithLabelValues(c.coveyTownID).Set(float64(len(c.players)))

	logging.Info(ctx, "Player joined town",
		zap.String("town_id", c.coveyTownID),
		zap.String("player_id", player.ID),
		zap.String("user_name", player.UserName))

	c.notifyListeners(func(l TownListener) { l.OnPlayerJoined(player) })
	return session, nil
}

// DestroySession removes the session's player from the town. If the player
// occupied a conversation area, the occupant-removal path runs first, which
// may destroy the area. Destroying an already-destroyed session is a no-op.
func (c *TownController) DestroySession(session *PlayerSession) {
	if session == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[session.sessionToken]; !ok {
		return
	}
	delete(c.sessions, session.sessionToken)

	player := session.player
	for i, p := range c.players {
		if p == player {
			c.players = append(c.players[:i], c.players[i+1:]...)
			break
		}
	}
	metrics.TownPlayers.WithLabelValues(c.coveyTownID).Set(float64(len(c.players)))

	if player.activeArea != nil {
		c.removePlayerFromArea(player.activeArea, player)
	}

	logging.Info(context.Background(), "Player disconnected from town",
		zap.String("town_id", c.coveyTownID),
		zap.String("player_id", player.ID))

	c.notifyListeners(func(l TownListener) { l.OnPlayerDisconnected(player) })
}

// UpdatePlayerLocation is the central state machine. The intended area is
// resolved purely from the reported conversation label: a live label wins
// over the coordinates, and an absent or stale label means no area. Area
// transition events fire before the final OnPlayerMoved.
func (c *TownController) UpdatePlayerLocation(player *Player, location UserLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	intended := c.areaByLabel(location.Conversation)
	current := player.activeArea

	if intended != current {
		if current != nil {
			c.removePlayerFromArea(current, player)
		}
		if intended != nil {
			intended.addOccupant(player.ID)
			player.activeArea = intended
			c.notifyListeners(func(l TownListener) { l.OnConversationAreaUpdated(intended) })
			intended.notifyOccupantsChange(intended.Occupants())
		}
	}

	player.Location = location
	c.notifyListeners(func(l TownListener) { l.OnPlayerMoved(player) })
}

// AddConversationArea installs a new area after validating its topic, label
// uniqueness, and non-overlap with every live area. On success, players
// standing strictly inside the box who are not already in an area are
// enrolled, and a single OnConversationAreaUpdated announces the area.
// Rejection returns false with no state change and no events.
func (c *TownController) AddConversationArea(area *ConversationArea) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if area.Topic == "" || area.Topic == NoTopic {
		return false
	}
	for _, existing := range c.areas {
		if existing.Label == area.Label {
			return false
		}
		if existing.BoundingBox.Overlaps(area.BoundingBox) {
			return false
		}
	}

	c.areas = append(c.areas, area)
	for _, p := range c.players {
		if p.activeArea == nil && area.BoundingBox.Contains(p.Location.X, p.Location.Y) {
			area.addOccupant(p.ID)
			p.activeArea = area
		}
	}
	metrics.ConversationAreas.WithLabelValues(c.coveyTownID).Set(float64(len(c.areas)))

	logging.Info(context.Background(), "Conversation area created",
		zap.String("town_id", c.coveyTownID),
		zap.String("label", area.Label),
		zap.Int("occupants", len(area.occupants)))

	c.notifyListeners(func(l TownListener) { l.OnConversationAreaUpdated(area) })
	return true
}

// DisconnectAllPlayers tears the town down: every listener receives
// OnTownDestroyed, each live area's listeners see a destruction signal, and
// the controller's collections are cleared. The store is responsible for
// evicting the controller from its registry.
func (c *TownController) DisconnectAllPlayers() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifyListeners(func(l TownListener) { l.OnTownDestroyed() })

	for _, area := range c.areas {
		area.notifyOccupantsChange(nil)
	}
	for _, p := range c.players {
		p.activeArea = nil
	}
	c.players = nil
	c.sessions = make(map[string]*PlayerSession)
	c.areas = nil

	metrics.TownPlayers.DeleteLabelValues(c.coveyTownID)
	metrics.ConversationAreas.DeleteLabelValues(c.coveyTownID)
}

// AddTownListener registers a listener. Registration is idempotent: a
// listener already present is not added again.
func (c *TownController) AddTownListener(l TownListener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	for _, existing := range c.listeners {
		if existing == l {
			return
		}
	}
	c.listeners = append(c.listeners, l)
}

// RemoveTownListener unregisters a listener, matching by identity. Removing
// a listener that is not registered is a no-op.
func (c *TownController) RemoveTownListener(l TownListener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// areaByLabel resolves a conversation label to a live area. An empty label or
// one naming no live area resolves to nil. Caller must hold the lock.
func (c *TownController) areaByLabel(label string) *ConversationArea {
	if label == "" {
		return nil
	}
	for _, a := range c.areas {
		if a.Label == label {
			return a
		}
	}
	return nil
}

// removePlayerFromArea runs the occupant-removal path: the player leaves the
// area, and the area is destroyed if it just became empty. Caller must hold
// the lock.
func (c *TownController) removePlayerFromArea(area *ConversationArea, player *Player) {
	area.removeOccupant(player.ID)
	player.activeArea = nil

	if area.isEmpty() {
		for i, a := range c.areas {
			if a == area {
				c.areas = append(c.areas[:i], c.areas[i+1:]...)
				break
			}
		}
		metrics.ConversationAreas.WithLabelValues(c.coveyTownID).Set(float64(len(c.areas)))
		c.notifyListeners(func(l TownListener) { l.OnConversationAreaDestroyed(area) })
		area.notifyOccupantsChange(nil)
		return
	}

	c.notifyListeners(func(l TownListener) { l.OnConversationAreaUpdated(area) })
	area.notifyOccupantsChange(area.Occupants())
}

// notifyListeners dispatches to a snapshot of the listener registry, in
// registration order. A listener that panics is logged and skipped so the
// rest still run, and a listener may remove itself during dispatch.
func (c *TownController) notifyListeners(fn func(TownListener)) {
	c.listenersMu.Lock()
	snapshot := make([]TownListener, len(c.listeners))
	copy(snapshot, c.listeners)
	c.listenersMu.Unlock()

	for _, l := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Error(context.Background(), "Town listener panicked",
						zap.String("town_id", c.coveyTownID), zap.Any("panic", r))
				}
			}()
			fn(l)
		}()
	}
}
