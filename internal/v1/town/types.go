package town

// NoTopic is the sentinel topic for a conversation area that has not been
// activated. Areas carrying it are never installed.
const NoTopic = "(No topic)"

// Direction is the facing of a player's avatar.
type Direction string

const (
	DirectionFront Direction = "front"
	DirectionBack  Direction = "back"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// UserLocation is a player's reported position within a town. Conversation
// optionally names the conversation area the client believes it is in; the
// server trusts the label over the coordinates.
type UserLocation struct {
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Rotation     Direction `json:"rotation"`
	Moving       bool      `json:"moving"`
	Conversation string    `json:"conversationLabel,omitempty"`
}

// BoundingBox is an axis-aligned rectangle. X and Y are the center of the
// rectangle, not a corner. Containment and overlap use the open rectangle:
// boundary points are outside.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point (x, y) lies strictly inside the box.
func (b BoundingBox) Contains(x, y float64) bool {
	return x > b.X-b.Width/2 && x < b.X+b.Width/2 &&
		y > b.Y-b.Height/2 && y < b.Y+b.Height/2
}

// Overlaps reports whether the open rectangles of the two boxes intersect.
// Rectangles that merely share an edge do not overlap.
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	return b.X-b.Width/2 < other.X+other.Width/2 &&
		other.X-other.Width/2 < b.X+b.Width/2 &&
		b.Y-b.Height/2 < other.Y+other.Height/2 &&
		other.Y-other.Height/2 < b.Y+b.Height/2
}
