package spawn

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mosaic/internal/game/board"
)

// OutcomeKind classifies the result of a node click.
type OutcomeKind int

const (
	// OutcomeRejected means the click had no effect.
	OutcomeRejected OutcomeKind = iota
	// OutcomeShowSpawnChoices means the click selected a connectable extension slot.
	OutcomeShowSpawnChoices
	// OutcomeToggled means a Start node or a pending allocation was toggled.
	OutcomeToggled
	// OutcomePurchased means the node was purchased.
	OutcomePurchased
)

// String returns the outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRejected:
		return "rejected"
	case OutcomeShowSpawnChoices:
		return "show_spawn_choices"
	case OutcomeToggled:
		return "toggled"
	case OutcomePurchased:
		return "purchased"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// ClickOutcome is the result of ClickNode.
type ClickOutcome struct {
	Kind OutcomeKind
	// Slot is set for OutcomeShowSpawnChoices.
	Slot board.SlotID
	// Choices lists the extension template IDs offered for Slot.
	Choices []string
	// Node is the clicked node after the click, for Toggled and Purchased.
	Node NodeEvent
	// Pending reports whether a Toggled node is now in the pending allocation set.
	Pending bool
	// Err explains a Rejected outcome.
	Err error
}

func (o *Orchestrator) reject(err error) ClickOutcome {
	if errors.Is(err, board.ErrPurchasePreconditionFailed) {
		o.logger.Debug("click had no effect", zap.Error(err))
	} else {
		o.logger.Info("click rejected", zap.Error(err))
	}
	return ClickOutcome{Kind: OutcomeRejected, Err: err}
}

func (o *Orchestrator) clickExtension(b *board.Board, n *board.Node) ClickOutcome {
	slot, ok := b.SlotAt(n.Position)
	if !ok {
		return o.reject(fmt.Errorf("click on board %s at %s: %w", b.ID, n.Position, ErrMissingSourceContext))
	}
	if err := o.checkSpawnSource(b, slot); err != nil {
		return o.reject(err)
	}
	return ClickOutcome{
		Kind:    OutcomeShowSpawnChoices,
		Slot:    slot.ID,
		Choices: o.ExtensionChoices(),
		Node:    nodeEvent(b.ID, n),
	}
}

func (o *Orchestrator) toggleStart(b *board.Board, n *board.Node) ClickOutcome {
	if err := b.ToggleStart(n.Position); err != nil {
		return o.reject(err)
	}
	var ev pendingEvents
	ev.node(b, n.Position)
	o.flush(&ev)
	return ClickOutcome{Kind: OutcomeToggled, Node: nodeEvent(b.ID, n)}
}

// allow applies the purchase gate.
func (o *Orchestrator) allow(b *board.Board, n *board.Node) error {
	if o.gate == nil || o.gate.AllowPurchase(nodeEvent(b.ID, n)) {
		return nil
	}
	return fmt.Errorf("%w: %s on board %s: %w", board.ErrPurchasePreconditionFailed, n.Position, b.ID, ErrScriptVeto)
}

// buy purchases n and sweeps extension unlocks, buffering every change into ev.
func (o *Orchestrator) buy(b *board.Board, n *board.Node, ev *pendingEvents) error {
	seam := o.seam(b)
	if err := b.CanPurchase(n.Position, seam); err != nil {
		return err
	}
	if err := o.allow(b, n); err != nil {
		return err
	}
	changed, err := b.Purchase(n.Position, seam)
	if err != nil {
		return err
	}
	ev.positions(b, changed)
	o.refreshLinked(b, ev)
	return nil
}

func (o *Orchestrator) purchase(b *board.Board, n *board.Node) ClickOutcome {
	var ev pendingEvents
	if err := o.buy(b, n, &ev); err != nil {
		return o.reject(err)
	}
	o.flush(&ev)
	return ClickOutcome{Kind: OutcomePurchased, Node: nodeEvent(b.ID, n)}
}
