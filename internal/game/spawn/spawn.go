package spawn

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mosaic/internal/game/board"
	"github.com/cory-johannsen/mosaic/internal/game/extension"
	"github.com/cory-johannsen/mosaic/internal/game/grid"
	"github.com/cory-johannsen/mosaic/internal/game/taskqueue"
)

// checkSpawnSource verifies that slot on b can spawn a board right now.
func (o *Orchestrator) checkSpawnSource(b *board.Board, slot *board.ExtensionSlot) error {
	if _, ok := o.registry.Slot(slot.ID); !ok {
		return fmt.Errorf("spawning from %s: %w", slot.ID, ErrMissingSourceContext)
	}
	if !slot.CanConnect() {
		return fmt.Errorf("spawning from %s: %w", slot.ID, extension.ErrSlotAlreadyConnected)
	}
	target := b.WorldPosition.Add(slot.ChildOffset)
	if o.grid.Occupied(target) {
		return fmt.Errorf("spawning from %s at %s: %w: %w", slot.ID, target, ErrDuplicateBoardPlacement, grid.ErrCellOccupied)
	}
	if err := b.CanPurchase(slot.Position, nil); err != nil {
		return fmt.Errorf("spawning from %s: %w", slot.ID, err)
	}
	return nil
}

// RequestSpawn spawns a board built from template templateID through the
// extension slot slotID. The request moves through placement, connection and
// readiness as one transaction; a failure at any step leaves no board behind.
//
// Postcondition: Returns the new board's ID, or an error wrapping one of
// ErrMissingSourceContext, extension.ErrSlotAlreadyConnected,
// ErrDuplicateBoardPlacement, ErrUnknownTemplate,
// board.ErrPurchasePreconditionFailed, extension.ErrEntryCellNotFound or
// taskqueue.ErrRetryBudgetExceeded.
func (o *Orchestrator) RequestSpawn(slotID board.SlotID, templateID string) (board.BoardID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id, err := o.spawn(slotID, templateID)
	if err != nil {
		o.logger.Debug("spawn transaction aborted",
			zap.String("slot", slotID.String()),
			zap.String("template", templateID),
			zap.Error(err),
		)
		rej := RejectEvent{Slot: slotID, Template: templateID, Err: err}
		for _, obs := range o.observers {
			obs.SpawnRejected(rej)
		}
		return "", err
	}
	return id, nil
}

func (o *Orchestrator) spawn(slotID board.SlotID, templateID string) (board.BoardID, error) {
	src, ok := o.boards[slotID.Board]
	if !ok {
		return "", fmt.Errorf("spawning from %s: board not found: %w", slotID, ErrMissingSourceContext)
	}
	slot, ok := src.Slot(slotID.Direction)
	if !ok {
		return "", fmt.Errorf("spawning from %s: slot not found: %w", slotID, ErrMissingSourceContext)
	}
	if err := o.checkSpawnSource(src, slot); err != nil {
		return "", err
	}
	tmpl, ok := o.templates.Template(templateID)
	if !ok || tmpl.Kind != board.KindExtension {
		return "", fmt.Errorf("spawning from %s: template %q: %w", slotID, templateID, ErrUnknownTemplate)
	}

	pos := src.WorldPosition.Add(slot.ChildOffset)
	child := board.New(o.newID(), board.KindExtension, tmpl.ID, pos, o.opts.BoardSize)
	if err := o.place(child); err != nil {
		if errors.Is(err, grid.ErrCellOccupied) {
			return "", fmt.Errorf("spawning from %s: %w: %w", slotID, ErrDuplicateBoardPlacement, err)
		}
		return "", fmt.Errorf("spawning from %s: %w", slotID, err)
	}
	o.logger.Debug("spawn placed",
		zap.String("board_id", string(child.ID)),
		zap.String("slot", slotID.String()),
		zap.Int("world_x", pos.X),
		zap.Int("world_y", pos.Y),
	)

	var ev pendingEvents
	ev.boards = append(ev.boards, boardEvent(child))

	q := taskqueue.New(o.opts.RetryBudget, o.logger)
	mid := o.opts.BoardSize / 2
	specs := tmpl.NodeSpecs(board.Position{Col: mid, Row: mid})
	q.Defer("populate "+string(child.ID), func() error {
		return o.populate(child, specs)
	})
	q.Defer("connect "+slotID.String(), func() error {
		if !child.Populated() {
			return fmt.Errorf("board %s not populated: %w", child.ID, taskqueue.ErrYield)
		}
		refs, err := o.registry.Connect(src, slotID, child)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if b, ok := o.boards[ref.Board]; ok {
				ev.node(b, ref.Position)
			}
		}
		o.refreshLinked(child, &ev)
		return nil
	})

	if err := q.Drain(); err != nil {
		o.unplace(child.ID)
		return "", fmt.Errorf("spawning from %s: %w", slotID, err)
	}

	o.flush(&ev)
	o.logger.Debug("spawn ready",
		zap.String("board_id", string(child.ID)),
		zap.String("slot", slotID.String()),
		zap.String("template", tmpl.ID),
		zap.Int("world_x", pos.X),
		zap.Int("world_y", pos.Y),
	)
	return child.ID, nil
}

// RemoveBoard removes an extension board that has no children. Its slots are
// deregistered, its coarse cell is freed, the parent slot regains its
// capacity and the parent Extension node returns to Unlockable.
//
// Postcondition: Returns nil, or an error wrapping grid.ErrBoardNotFound,
// ErrCoreBoardPermanent or ErrBoardHasChildren with nothing changed.
func (o *Orchestrator) RemoveBoard(id board.BoardID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.boards[id]
	if !ok {
		return fmt.Errorf("removing board %s: %w", id, grid.ErrBoardNotFound)
	}
	if b.Kind == board.KindCore {
		return fmt.Errorf("removing board %s: %w", id, ErrCoreBoardPermanent)
	}
	if children := o.registry.Children(id); len(children) > 0 {
		return fmt.Errorf("removing board %s with %d children: %w", id, len(children), ErrBoardHasChildren)
	}

	var ev pendingEvents
	if link, ok := o.registry.Disconnect(id); ok {
		if parent, ok := o.boards[link.Source.Board]; ok {
			if slot, ok := parent.Slot(link.Source.Direction); ok && parent.Release(slot.Position) {
				ev.node(parent, slot.Position)
			}
		}
	}
	o.unplace(id)

	removed := boardEvent(b)
	for _, obs := range o.observers {
		obs.BoardRemoved(removed)
	}
	o.flush(&ev)
	o.logger.Debug("board removal complete",
		zap.String("board_id", string(id)),
		zap.Int("world_x", b.WorldPosition.X),
		zap.Int("world_y", b.WorldPosition.Y),
	)
	return nil
}
