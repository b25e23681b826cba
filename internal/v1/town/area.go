package town

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"k8s.io/utils/set"

	"github.com/covey-town/townservice/internal/v1/logging"
)

// AreaListener receives occupant-change notifications from a single
// conversation area, independent of the town-wide listener stream. A nil
// occupant slice signals that the area was destroyed.
type AreaListener interface {
	OnOccupantsChange(newOccupants []string)
}

// ConversationArea is a labelled rectangle inside a town. Players whose
// location falls inside its bounding box (or who name it by label) join its
// occupant list. The occupant list preserves insertion order and never holds
// duplicates.
//
// Occupant mutation happens inside the owning controller's serialization
// domain; the area only guards its own listener registry.
type ConversationArea struct {
	Label       string
	Topic       string
	BoundingBox BoundingBox

	occupants   []string
	occupantSet set.Set[string]

	listenersMu sync.Mutex
	listeners   []AreaListener
}

// NewConversationArea creates an area with an empty occupant list.
func NewConversationArea(label, topic string, box BoundingBox) *ConversationArea {
	return &ConversationArea{
		Label:       label,
		Topic:       topic,
		BoundingBox: box,
		occupants:   []string{},
		occupantSet: set.New[string](),
	}
}

// Occupants returns a copy of the occupant IDs in insertion order.
func (a *ConversationArea) Occupants() []string {
	out := make([]string, len(a.occupants))
	copy(out, a.occupants)
	return out
}

// AddListener registers a listener for occupant changes. Registration is
// idempotent: a listener already present is not added again.
func (a *ConversationArea) AddListener(l AreaListener) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()
	for _, existing := range a.listeners {
		if existing == l {
			return
		}
	}
	a.listeners = append(a.listeners, l)
}

// RemoveListener unregisters a listener, matching by identity.
func (a *ConversationArea) RemoveListener(l AreaListener) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()
	for i, existing := range a.listeners {
		if existing == l {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return
		}
	}
}

// addOccupant appends the player ID, refusing duplicates. Caller must be in
// the controller's serialization domain.
func (a *ConversationArea) addOccupant(playerID string) bool {
	if a.occupantSet.Has(playerID) {
		return false
	}
	a.occupantSet.Insert(playerID)
	a.occupants = append(a.occupants, playerID)
	return true
}

// removeOccupant deletes the player ID, preserving the order of the rest.
// Caller must be in the controller's serialization domain.
func (a *ConversationArea) removeOccupant(playerID string) {
	if !a.occupantSet.Has(playerID) {
		return
	}
	a.occupantSet.Delete(playerID)
	for i, id := range a.occupants {
		if id == playerID {
			a.occupants = append(a.occupants[:i], a.occupants[i+1:]...)
			return
		}
	}
}

func (a *ConversationArea) isEmpty() bool {
	return len(a.occupants) == 0
}

// notifyOccupantsChange dispatches to the area's listeners in registration
// order. A listener that panics is logged and skipped; the rest still run.
func (a *ConversationArea) notifyOccupantsChange(newOccupants []string) {
	a.listenersMu.Lock()
	snapshot := make([]AreaListener, len(a.listeners))
	copy(snapshot, a.listeners)
	a.listenersMu.Unlock()

	for _, l := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Error(context.Background(), "Area listener panicked",
						zap.String("label", a.Label), zap.Any("panic", r))
				}
			}()
			l.OnOccupantsChange(newOccupants)
		}()
	}
}

// MarshalJSON renders the wire shape of a conversation area.
func (a *ConversationArea) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Label         string      `json:"label"`
		Topic         string      `json:"topic"`
		OccupantsByID []string    `json:"occupantsByID"`
		BoundingBox   BoundingBox `json:"boundingBox"`
	}{
		Label:         a.Label,
		Topic:         a.Topic,
		OccupantsByID: a.Occupants(),
		BoundingBox:   a.BoundingBox,
	})
}
