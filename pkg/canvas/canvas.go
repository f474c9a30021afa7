package canvas

import "time"

// Placement is one accepted pixel write. Records are immutable once appended
// to the history store; PlacedAt is assigned by the pipeline at acceptance
// time and is the sole ordering key.
type Placement struct {
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Color    int       `json:"c"`
	Nickname string    `json:"nickname"`
	PlacedAt time.Time `json:"placed_at"`
}

// Bounds holds the canvas dimensions and the allowed color range.
type Bounds struct {
	Width    int
	Height   int
	MinColor int
	MaxColor int
}

// Contains reports whether a proposed placement is inside the canvas and the
// color palette. It is a pure check; callers drop failing placements silently
// rather than surfacing an error.
func (b Bounds) Contains(x, y, color int) bool {
	return x >= 0 && x < b.Width &&
		y >= 0 && y < b.Height &&
		color >= b.MinColor && color <= b.MaxColor
}
