package board

import (
	"fmt"
	"strings"
)

// MaxSlotConnections is the connection capacity of every extension slot.
const MaxSlotConnections = 1

// SlotID identifies an extension slot globally as board + direction.
type SlotID struct {
	Board     BoardID
	Direction Direction
}

// String renders the slot as "board:direction".
func (s SlotID) String() string {
	return string(s.Board) + ":" + string(s.Direction)
}

// ParseSlotID parses the "board:direction" form produced by SlotID.String.
//
// Postcondition: Returns a SlotID with a valid direction or a non-nil error.
func ParseSlotID(s string) (SlotID, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return SlotID{}, fmt.Errorf("slot id %q must have the form board:direction", s)
	}
	dir, err := ParseDirection(s[idx+1:])
	if err != nil {
		return SlotID{}, fmt.Errorf("slot id %q: %w", s, err)
	}
	return SlotID{Board: BoardID(s[:idx]), Direction: dir}, nil
}

// ExtensionSlot is the spawn capacity attached to one edge-midpoint node.
//
// Invariant: CurrentConnections <= MaxConnections.
type ExtensionSlot struct {
	// ID is the globally unique slot identifier.
	ID SlotID
	// Position is the edge cell hosting the slot.
	Position Position
	// ChildOffset is the coarse displacement of a board spawned from this slot.
	ChildOffset Offset
	// MaxConnections is always MaxSlotConnections.
	MaxConnections int
	// CurrentConnections counts links made through this slot.
	CurrentConnections int
}

func newExtensionSlot(id BoardID, d Direction, size int) *ExtensionSlot {
	return &ExtensionSlot{
		ID:             SlotID{Board: id, Direction: d},
		Position:       SlotPosition(d, size),
		ChildOffset:    d.Offset(),
		MaxConnections: MaxSlotConnections,
	}
}

// CanConnect reports whether the slot has spare capacity.
func (s *ExtensionSlot) CanConnect() bool {
	return s.CurrentConnections < s.MaxConnections
}
