package spawn

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mosaic/internal/game/board"
)

// Allocation is one session's handle on the tree. It routes clicks to the
// shared Orchestrator and, when confirm-to-allocate is enabled, owns that
// session's pending allocation set. Sessions never see each other's pending
// nodes.
//
// The pending set is guarded by the Orchestrator's lock.
type Allocation struct {
	o       *Orchestrator
	pending []board.NodeRef
	set     map[board.NodeRef]bool
}

// NewAllocation returns a handle with an empty pending set.
func (o *Orchestrator) NewAllocation() *Allocation {
	return &Allocation{o: o, set: make(map[board.NodeRef]bool)}
}

// ClickNode handles a click on the node at pos of board id.
//
// Postcondition: Never panics for expected conditions; failures are returned
// as OutcomeRejected with Err set.
func (a *Allocation) ClickNode(id board.BoardID, pos board.Position) ClickOutcome {
	o := a.o
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.boards[id]
	if !ok {
		return o.reject(fmt.Errorf("click on board %s: %w", id, ErrMissingSourceContext))
	}
	n, ok := b.Node(pos)
	if !ok {
		return o.reject(fmt.Errorf("click on board %s at %s: %w", id, pos, ErrMissingSourceContext))
	}

	switch {
	case n.Type == board.NodeExtension:
		return o.clickExtension(b, n)
	case n.Type == board.NodeStart && n.Purchased:
		return o.toggleStart(b, n)
	case o.opts.ConfirmAllocation:
		return a.toggle(b, n)
	default:
		return o.purchase(b, n)
	}
}

// eligible reports whether n may join the pending set: the purchase
// precondition holds when this allocation's pending nodes count as purchased.
func (a *Allocation) eligible(b *board.Board, n *board.Node) error {
	switch {
	case n.Purchased:
		return fmt.Errorf("%w: %s already purchased", board.ErrPurchasePreconditionFailed, n.Position)
	case !n.Available:
		return fmt.Errorf("%w: %s is unavailable", board.ErrPurchasePreconditionFailed, n.Position)
	}
	if n.Unlocked && b.CanPurchase(n.Position, a.o.seam(b)) == nil {
		return nil
	}
	for _, d := range board.Directions {
		if a.set[board.NodeRef{Board: b.ID, Position: n.Position.Step(d)}] {
			return nil
		}
	}
	if !n.Unlocked {
		return fmt.Errorf("%w: %s is locked", board.ErrPurchasePreconditionFailed, n.Position)
	}
	return fmt.Errorf("%w: %s has no purchased or pending neighbour", board.ErrPurchasePreconditionFailed, n.Position)
}

func (a *Allocation) toggle(b *board.Board, n *board.Node) ClickOutcome {
	o := a.o
	ref := board.NodeRef{Board: b.ID, Position: n.Position}
	if a.set[ref] {
		a.drop(ref)
		return ClickOutcome{Kind: OutcomeToggled, Node: nodeEvent(b.ID, n), Pending: false}
	}
	if err := a.eligible(b, n); err != nil {
		return o.reject(err)
	}
	if err := o.allow(b, n); err != nil {
		return o.reject(err)
	}
	a.pending = append(a.pending, ref)
	a.set[ref] = true
	return ClickOutcome{Kind: OutcomeToggled, Node: nodeEvent(b.ID, n), Pending: true}
}

func (a *Allocation) drop(ref board.NodeRef) {
	delete(a.set, ref)
	for i, r := range a.pending {
		if r == ref {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			return
		}
	}
}

func (a *Allocation) reset() int {
	n := len(a.pending)
	a.pending = nil
	a.set = make(map[board.NodeRef]bool)
	return n
}

// Confirm purchases the pending allocation set. Nodes are bought in
// adjacency order: each pass buys every pending node whose precondition
// holds, until a pass buys nothing. Nodes still ineligible, including nodes
// whose board was removed, are dropped.
//
// Postcondition: The pending set is empty. Returns the purchased and the
// dropped nodes.
func (a *Allocation) Confirm() (purchased, dropped []board.NodeRef) {
	o := a.o
	o.mu.Lock()
	defer o.mu.Unlock()

	var ev pendingEvents
	var remaining []board.NodeRef
	for _, ref := range a.pending {
		if _, ok := o.boards[ref.Board]; ok {
			remaining = append(remaining, ref)
		} else {
			dropped = append(dropped, ref)
		}
	}
	for progress := true; progress && len(remaining) > 0; {
		progress = false
		var next []board.NodeRef
		for _, ref := range remaining {
			b := o.boards[ref.Board]
			n, ok := b.Node(ref.Position)
			if !ok {
				dropped = append(dropped, ref)
				continue
			}
			if err := o.buy(b, n, &ev); err != nil {
				next = append(next, ref)
				continue
			}
			purchased = append(purchased, ref)
			progress = true
		}
		remaining = next
	}
	dropped = append(dropped, remaining...)
	a.reset()
	o.flush(&ev)

	o.logger.Info("pending allocation confirmed",
		zap.Int("purchased", len(purchased)),
		zap.Int("dropped", len(dropped)),
	)
	return purchased, dropped
}

// Cancel clears the pending allocation set.
//
// Postcondition: Returns the number of nodes discarded.
func (a *Allocation) Cancel() int {
	a.o.mu.Lock()
	defer a.o.mu.Unlock()
	return a.reset()
}

// Pending returns the pending allocation set in click order.
func (a *Allocation) Pending() []board.NodeRef {
	a.o.mu.Lock()
	defer a.o.mu.Unlock()
	out := make([]board.NodeRef, len(a.pending))
	copy(out, a.pending)
	return out
}
