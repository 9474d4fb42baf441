package board

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultSize is the side length of a standard board.
const DefaultSize = 7

// BoardID uniquely identifies a board.
type BoardID string

// Kind distinguishes the permanent core board from spawned extension boards.
type Kind string

const (
	// KindCore is the single permanent board at the world origin.
	KindCore Kind = "core"
	// KindExtension is a board spawned from an extension slot.
	KindExtension Kind = "extension"
)

// ParseKind converts a kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCore, KindExtension:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown board kind %q", s)
	}
}

// ErrNotPopulated is returned when node operations run before Populate.
var ErrNotPopulated = errors.New("board not populated")

// Board is a dense size×size grid of nodes with four extension slots.
type Board struct {
	// ID uniquely identifies the board.
	ID BoardID
	// Kind is core or extension.
	Kind Kind
	// Template is the content template the board was built from.
	Template string
	// WorldPosition is the coarse grid cell occupied by the board.
	WorldPosition Coord
	// Size is the side length of the node grid.
	Size int

	nodes map[Position]*Node
	slots map[Direction]*ExtensionSlot
}

// New creates an unpopulated board with its four extension slots declared.
// Nodes are added by Populate.
//
// Precondition: size is odd and >= 3.
// Postcondition: Returns a board with four slots and no nodes.
func New(id BoardID, kind Kind, template string, pos Coord, size int) *Board {
	b := &Board{
		ID:            id,
		Kind:          kind,
		Template:      template,
		WorldPosition: pos,
		Size:          size,
		slots:         make(map[Direction]*ExtensionSlot, len(Directions)),
	}
	for _, d := range Directions {
		b.slots[d] = newExtensionSlot(id, d, size)
	}
	return b
}

// Populate fills every cell from specs, defaulting unspecified edge midpoints
// to Extension and all other unspecified cells to Travel. Every node starts
// Locked. On a core board the Start node is then force-purchased.
//
// Precondition: the board has not been populated.
// Postcondition: Returns nil and a dense node grid, or an error with the board unchanged.
func (b *Board) Populate(specs []NodeSpec) error {
	if b.nodes != nil {
		return fmt.Errorf("board %s already populated", b.ID)
	}
	nodes := make(map[Position]*Node, b.Size*b.Size)
	var starts []Position
	for _, s := range specs {
		if !b.Contains(s.Position) {
			return fmt.Errorf("board %s: node %s outside %dx%d grid", b.ID, s.Position, b.Size, b.Size)
		}
		if _, dup := nodes[s.Position]; dup {
			return fmt.Errorf("board %s: duplicate node at %s", b.ID, s.Position)
		}
		_, isSlot := DirectionAt(s.Position, b.Size)
		if isSlot != (s.Type == NodeExtension) {
			return fmt.Errorf("board %s: node %s of type %q: extension nodes must occupy exactly the edge midpoints", b.ID, s.Position, s.Type)
		}
		if s.Type == NodeStart {
			starts = append(starts, s.Position)
		}
		nodes[s.Position] = &Node{
			Position:    s.Position,
			Type:        s.Type,
			Name:        s.Name,
			Description: s.Description,
			StatBlock:   s.StatBlock,
			Available:   s.Available || s.Type == NodeExtension,
		}
	}

	switch {
	case b.Kind == KindCore && len(starts) != 1:
		return fmt.Errorf("board %s: core board requires exactly one start node, got %d", b.ID, len(starts))
	case b.Kind == KindExtension && len(starts) != 0:
		return fmt.Errorf("board %s: extension board must not contain a start node", b.ID)
	}

	for row := 0; row < b.Size; row++ {
		for col := 0; col < b.Size; col++ {
			p := Position{Col: col, Row: row}
			if _, ok := nodes[p]; ok {
				continue
			}
			t := NodeTravel
			if _, isSlot := DirectionAt(p, b.Size); isSlot {
				t = NodeExtension
			}
			nodes[p] = &Node{Position: p, Type: t, Available: true}
		}
	}

	b.nodes = nodes
	if b.Kind == KindCore {
		b.ForcePurchase(starts[0])
	}
	return nil
}

// Populated reports whether Populate has completed.
func (b *Board) Populated() bool {
	return b.nodes != nil
}

// Contains reports whether p lies inside the board grid.
func (b *Board) Contains(p Position) bool {
	return p.Col >= 0 && p.Row >= 0 && p.Col < b.Size && p.Row < b.Size
}

// Node returns the node at p.
//
// Postcondition: Returns (node, true) if populated and in range, (nil, false) otherwise.
func (b *Board) Node(p Position) (*Node, bool) {
	n, ok := b.nodes[p]
	return n, ok
}

// Nodes returns every node in row-major order, bottom row first.
func (b *Board) Nodes() []*Node {
	out := make([]*Node, 0, len(b.nodes))
	for _, n := range b.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position.Row != out[j].Position.Row {
			return out[i].Position.Row < out[j].Position.Row
		}
		return out[i].Position.Col < out[j].Position.Col
	})
	return out
}

// Slot returns the extension slot for direction d.
func (b *Board) Slot(d Direction) (*ExtensionSlot, bool) {
	s, ok := b.slots[d]
	return s, ok
}

// SlotAt returns the extension slot hosted at p.
func (b *Board) SlotAt(p Position) (*ExtensionSlot, bool) {
	d, ok := DirectionAt(p, b.Size)
	if !ok {
		return nil, false
	}
	return b.Slot(d)
}

// Slots returns the four slots in South, North, West, East order.
func (b *Board) Slots() []*ExtensionSlot {
	out := make([]*ExtensionSlot, 0, len(Directions))
	for _, d := range Directions {
		out = append(out, b.slots[d])
	}
	return out
}

// PurchasedCount returns the number of purchased nodes.
func (b *Board) PurchasedCount() int {
	count := 0
	for _, n := range b.nodes {
		if n.Purchased {
			count++
		}
	}
	return count
}
