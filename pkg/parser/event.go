package parser

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/sallich/PixelHub/pkg/canvas"
)

// PlacedEvent is the wire representation of an accepted placement on the
// pixel-placed topic.
type PlacedEvent struct {
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Color    int       `json:"c"`
	Nickname string    `json:"nickname"`
	PlacedAt time.Time `json:"placed_at"`
}

// Encode serializes an accepted placement for publishing.
func Encode(p canvas.Placement) ([]byte, error) {
	return json.Marshal(PlacedEvent{
		X:        p.X,
		Y:        p.Y,
		Color:    p.Color,
		Nickname: p.Nickname,
		PlacedAt: p.PlacedAt,
	})
}

// ParsePlacedEvent deserializes a Kafka message value into a placement.
// Malformed payloads are reported as errors so the broadcaster can skip
// them without touching viewers.
func ParsePlacedEvent(data []byte) (canvas.Placement, error) {
	var event PlacedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return canvas.Placement{}, fmt.Errorf("failed to unmarshal placed event: %w", err)
	}

	if event.Nickname == "" {
		return canvas.Placement{}, fmt.Errorf("missing nickname")
	}
	if event.PlacedAt.IsZero() {
		return canvas.Placement{}, fmt.Errorf("missing placement timestamp")
	}

	return canvas.Placement{
		X:        event.X,
		Y:        event.Y,
		Color:    event.Color,
		Nickname: event.Nickname,
		PlacedAt: event.PlacedAt,
	}, nil
}
