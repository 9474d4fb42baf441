// Package extension tracks the extension slots of every board and implements
// the one-shot connection protocol that joins a parent board to a newly
// spawned child board.
package extension

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cory-johannsen/mosaic/internal/game/board"
)

var (
	// ErrSlotAlreadyConnected is returned when a slot is at capacity.
	ErrSlotAlreadyConnected = errors.New("extension slot already connected")
	// ErrSlotNotRegistered is returned when a slot ID is unknown to the registry.
	ErrSlotNotRegistered = errors.New("extension slot not registered")
	// ErrEntryCellNotFound is returned when the child board has no node at the entry cell.
	ErrEntryCellNotFound = errors.New("entry cell not found")
	// ErrNotEdgeMidpoint is returned when resolving an entry cell for a non-slot position.
	ErrNotEdgeMidpoint = errors.New("position is not an edge midpoint")
)

// Link records one completed connection between a parent slot and a child board.
type Link struct {
	// Source is the parent slot the child was spawned from.
	Source board.SlotID
	// Entry is the child slot facing back at the parent.
	Entry board.SlotID
	// Child is the spawned board.
	Child board.BoardID
}

// Registry indexes every extension slot of every registered board.
//
// Invariant: each board is registered at most once; every registered slot
// satisfies CurrentConnections <= MaxConnections.
type Registry struct {
	slots   map[board.SlotID]*board.ExtensionSlot
	byCoord map[board.Coord][]board.SlotID
	coords  map[board.BoardID]board.Coord
	links   map[board.SlotID]Link
	parents map[board.BoardID]Link
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		slots:   make(map[board.SlotID]*board.ExtensionSlot),
		byCoord: make(map[board.Coord][]board.SlotID),
		coords:  make(map[board.BoardID]board.Coord),
		links:   make(map[board.SlotID]Link),
		parents: make(map[board.BoardID]Link),
	}
}

// Register adds the four slots of b. Slots are referenced, not copied; the
// board remains their owner.
//
// Precondition: b must not be nil.
// Postcondition: Returns an error if b is already registered.
func (r *Registry) Register(b *board.Board) error {
	if _, exists := r.coords[b.ID]; exists {
		return fmt.Errorf("extension.Registry: board %s already registered", b.ID)
	}
	ids := make([]board.SlotID, 0, len(board.Directions))
	for _, s := range b.Slots() {
		s.CurrentConnections = 0
		r.slots[s.ID] = s
		ids = append(ids, s.ID)
	}
	r.coords[b.ID] = b.WorldPosition
	r.byCoord[b.WorldPosition] = ids
	return nil
}

// Deregister removes the slots of board id. Links where id is the child are
// dropped; links where id is the parent must be removed first by the caller.
func (r *Registry) Deregister(id board.BoardID) {
	coord, ok := r.coords[id]
	if !ok {
		return
	}
	for _, sid := range r.byCoord[coord] {
		delete(r.slots, sid)
		delete(r.links, sid)
	}
	delete(r.byCoord, coord)
	delete(r.coords, id)
	if link, ok := r.parents[id]; ok {
		delete(r.links, link.Source)
		delete(r.parents, id)
	}
}

// Slot returns the registered slot with the given ID.
func (r *Registry) Slot(id board.SlotID) (*board.ExtensionSlot, bool) {
	s, ok := r.slots[id]
	return s, ok
}

// SlotsAt returns the slots of the board placed at coord.
func (r *Registry) SlotsAt(coord board.Coord) []*board.ExtensionSlot {
	ids := r.byCoord[coord]
	out := make([]*board.ExtensionSlot, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.slots[id])
	}
	return out
}

// Len returns the number of registered slots.
func (r *Registry) Len() int {
	return len(r.slots)
}

// ResolveEntryCell returns the cell on a newly spawned board that receives
// the connection from a source slot at p: the edge midpoint diametrically
// opposite the direction of approach.
//
// Postcondition: Returns the entry position, or ErrNotEdgeMidpoint.
func ResolveEntryCell(p board.Position, size int) (board.Position, error) {
	d, ok := board.DirectionAt(p, size)
	if !ok {
		return board.Position{}, fmt.Errorf("resolving entry cell for %s: %w", p, ErrNotEdgeMidpoint)
	}
	return board.SlotPosition(d.Opposite(), size), nil
}

// Connect joins the parent board src to child through the slot sourceID.
// The source slot's connection count is incremented, the parent's extension
// node is purchased, the child's entry cell is force-purchased, and unlock
// propagation from the entry cell is confined to child. The child's entry
// slot is consumed so it cannot spawn back into the parent.
//
// Precondition: src owns sourceID; child is registered.
// Postcondition: On success returns every node whose state changed. On
// failure no state is mutated.
func (r *Registry) Connect(src *board.Board, sourceID board.SlotID, child *board.Board) ([]board.NodeRef, error) {
	slot, ok := r.slots[sourceID]
	if !ok || sourceID.Board != src.ID {
		return nil, fmt.Errorf("connecting %s: %w", sourceID, ErrSlotNotRegistered)
	}
	if !slot.CanConnect() {
		return nil, fmt.Errorf("connecting %s: %w", sourceID, ErrSlotAlreadyConnected)
	}
	entryPos, err := ResolveEntryCell(slot.Position, child.Size)
	if err != nil {
		return nil, fmt.Errorf("connecting %s: %w", sourceID, err)
	}
	if _, ok := child.Node(entryPos); !ok {
		return nil, fmt.Errorf("connecting %s to board %s at %s: %w", sourceID, child.ID, entryPos, ErrEntryCellNotFound)
	}
	entrySlot, ok := child.SlotAt(entryPos)
	if !ok {
		return nil, fmt.Errorf("connecting %s to board %s: %w", sourceID, child.ID, ErrEntryCellNotFound)
	}
	if err := src.CanPurchase(slot.Position, nil); err != nil {
		return nil, fmt.Errorf("connecting %s: %w", sourceID, err)
	}

	srcChanged, err := src.Purchase(slot.Position, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting %s: %w", sourceID, err)
	}
	slot.CurrentConnections++
	entrySlot.CurrentConnections++

	refs := appendRefs(nil, src.ID, srcChanged)
	refs = appendRefs(refs, child.ID, child.ForcePurchase(entryPos))

	link := Link{Source: sourceID, Entry: entrySlot.ID, Child: child.ID}
	r.links[sourceID] = link
	r.parents[child.ID] = link
	return refs, nil
}

// Disconnect releases the link that spawned child, decrementing the parent
// slot's connection count.
//
// Postcondition: Returns (link, true) if child had a parent link.
func (r *Registry) Disconnect(child board.BoardID) (Link, bool) {
	link, ok := r.parents[child]
	if !ok {
		return Link{}, false
	}
	if s, ok := r.slots[link.Source]; ok && s.CurrentConnections > 0 {
		s.CurrentConnections--
	}
	if s, ok := r.slots[link.Entry]; ok && s.CurrentConnections > 0 {
		s.CurrentConnections--
	}
	delete(r.links, link.Source)
	delete(r.parents, child)
	return link, true
}

// Parent returns the link through which child was spawned.
func (r *Registry) Parent(child board.BoardID) (Link, bool) {
	link, ok := r.parents[child]
	return link, ok
}

// Children returns the boards spawned from slots of id, sorted.
func (r *Registry) Children(id board.BoardID) []board.BoardID {
	var out []board.BoardID
	for src, link := range r.links {
		if src.Board == id {
			out = append(out, link.Child)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Linked reports whether a and b are directly joined by a connection.
func (r *Registry) Linked(a, b board.BoardID) bool {
	if link, ok := r.parents[a]; ok && link.Source.Board == b {
		return true
	}
	if link, ok := r.parents[b]; ok && link.Source.Board == a {
		return true
	}
	return false
}

func appendRefs(refs []board.NodeRef, id board.BoardID, positions []board.Position) []board.NodeRef {
	for _, p := range positions {
		refs = append(refs, board.NodeRef{Board: id, Position: p})
	}
	return refs
}
