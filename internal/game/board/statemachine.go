package board

import (
	"errors"
	"fmt"
)

// ErrPurchasePreconditionFailed is returned when a node cannot be purchased
// in its current state or adjacency.
var ErrPurchasePreconditionFailed = errors.New("purchase precondition failed")

// SeamFunc resolves the node across a board seam when stepping from an edge
// cell p in direction d leaves the board. A nil SeamFunc means no seam
// neighbours are considered.
type SeamFunc func(p Position, d Direction) (*Node, bool)

// Unlock marks the node at p as unlocked. Calling it again is a no-op.
//
// Postcondition: Returns true if the node changed state.
func (b *Board) Unlock(p Position) bool {
	n, ok := b.nodes[p]
	if !ok || n.Unlocked {
		return false
	}
	n.Unlocked = true
	return true
}

// HasPurchasedNeighbor reports whether any orthogonal neighbour of p is purchased.
// Neighbours off the board edge are looked up through seam.
func (b *Board) HasPurchasedNeighbor(p Position, seam SeamFunc) bool {
	for _, d := range Directions {
		q := p.Step(d)
		if b.Contains(q) {
			if n := b.nodes[q]; n != nil && n.Purchased {
				return true
			}
			continue
		}
		if seam == nil {
			continue
		}
		if n, ok := seam(p, d); ok && n.Purchased {
			return true
		}
	}
	return false
}

// CanPurchase checks the purchase precondition for the node at p:
// not purchased, unlocked, available, and either adjacent to a purchased
// node or of type Start or Extension.
//
// Postcondition: Returns nil if the node may be purchased, otherwise an error wrapping ErrPurchasePreconditionFailed.
func (b *Board) CanPurchase(p Position, seam SeamFunc) error {
	if b.nodes == nil {
		return ErrNotPopulated
	}
	n, ok := b.nodes[p]
	if !ok {
		return fmt.Errorf("%w: no node at %s", ErrPurchasePreconditionFailed, p)
	}
	switch {
	case n.Purchased:
		return fmt.Errorf("%w: %s already purchased", ErrPurchasePreconditionFailed, p)
	case !n.Unlocked:
		return fmt.Errorf("%w: %s is locked", ErrPurchasePreconditionFailed, p)
	case !n.Available:
		return fmt.Errorf("%w: %s is unavailable", ErrPurchasePreconditionFailed, p)
	}
	if n.Type == NodeStart || n.Type == NodeExtension {
		return nil
	}
	if !b.HasPurchasedNeighbor(p, seam) {
		return fmt.Errorf("%w: %s has no purchased neighbour", ErrPurchasePreconditionFailed, p)
	}
	return nil
}

// Purchase allocates the node at p and unlocks its non-extension neighbours
// on this board.
//
// Postcondition: On success returns every position whose state changed,
// starting with p. On failure the board is unchanged.
func (b *Board) Purchase(p Position, seam SeamFunc) ([]Position, error) {
	if err := b.CanPurchase(p, seam); err != nil {
		return nil, err
	}
	b.nodes[p].Purchased = true
	return append([]Position{p}, b.UnlockNeighbors(p)...), nil
}

// ForcePurchase marks the node at p purchased, unlocked and available
// regardless of adjacency, then unlocks its neighbours on this board. It is
// used for the core Start node and for the entry cell of a spawned board.
//
// Postcondition: Returns every position whose state changed.
func (b *Board) ForcePurchase(p Position) []Position {
	n, ok := b.nodes[p]
	if !ok {
		return nil
	}
	var changed []Position
	if !n.Purchased || !n.Unlocked || !n.Available {
		n.Purchased, n.Unlocked, n.Available = true, true, true
		changed = append(changed, p)
	}
	return append(changed, b.UnlockNeighbors(p)...)
}

// UnlockNeighbors unlocks the orthogonal neighbours of p that are neither
// Extension nodes nor already purchased. Propagation never leaves this board.
func (b *Board) UnlockNeighbors(p Position) []Position {
	var changed []Position
	for _, d := range Directions {
		q := p.Step(d)
		n, ok := b.nodes[q]
		if !ok || n.Type == NodeExtension || n.Purchased {
			continue
		}
		if b.Unlock(q) {
			changed = append(changed, q)
		}
	}
	return changed
}

// RefreshExtensionUnlocks unlocks every Extension node that has at least one
// purchased orthogonal neighbour.
//
// Postcondition: Returns the positions that became unlocked.
func (b *Board) RefreshExtensionUnlocks(seam SeamFunc) []Position {
	var changed []Position
	for _, s := range b.Slots() {
		n, ok := b.nodes[s.Position]
		if !ok || n.Unlocked {
			continue
		}
		if b.HasPurchasedNeighbor(s.Position, seam) && b.Unlock(s.Position) {
			changed = append(changed, s.Position)
		}
	}
	return changed
}

// ToggleStart returns a purchased Start node to Unlockable. Neighbours keep
// their unlock.
//
// Postcondition: Returns nil if the Start node was purchased and is now
// Unlockable, otherwise an error wrapping ErrPurchasePreconditionFailed.
func (b *Board) ToggleStart(p Position) error {
	n, ok := b.nodes[p]
	if !ok || n.Type != NodeStart || !n.Purchased {
		return fmt.Errorf("%w: %s is not a purchased start node", ErrPurchasePreconditionFailed, p)
	}
	n.Purchased = false
	return nil
}

// Release returns a purchased node to Unlockable without touching its
// neighbours. It is used when the board spawned from an extension slot is
// removed.
//
// Postcondition: Returns true if the node changed state.
func (b *Board) Release(p Position) bool {
	n, ok := b.nodes[p]
	if !ok || !n.Purchased {
		return false
	}
	n.Purchased = false
	return true
}
