package town

import "github.com/google/uuid"

// Player is a single occupant of a town: an identity, a reported location,
// and at most one active conversation area.
//
// Players are owned by their controller. All mutation happens inside the
// controller's serialization domain; the back-reference to the active area is
// cleared by the controller when the area is destroyed.
type Player struct {
	ID       string       `json:"id"`
	UserName string       `json:"userName"`
	Location UserLocation `json:"location"`

	activeArea *ConversationArea
}

// NewPlayer creates a player with a fresh ID at the default spawn location.
func NewPlayer(userName string) *Player {
	return &Player{
		ID:       uuid.NewString(),
		UserName: userName,
		Location: UserLocation{Rotation: DirectionFront},
	}
}

// PlayerView is a point-in-time copy of a player's public state. Unlike a
// *Player it carries no live references, so it is safe to marshal or retain
// after the controller's lock is released.
type PlayerView struct {
	ID       string       `json:"id"`
	UserName string       `json:"userName"`
	Location UserLocation `json:"location"`
}

// ActiveConversationArea returns the area the player currently occupies, or
// nil when they are not in one. Like Location, the field is written inside
// the owning controller's serialization domain: callers outside a controller
// operation or listener callback race with location updates.
func (p *Player) ActiveConversationArea() *ConversationArea {
	return p.activeArea
}

// IsWithin reports whether the player's location falls strictly inside the
// area's bounding box.
func (p *Player) IsWithin(a *ConversationArea) bool {
	return a.BoundingBox.Contains(p.Location.X, p.Location.Y)
}
