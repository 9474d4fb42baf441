package console

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cory-johannsen/mosaic/internal/game/board"
	"github.com/cory-johannsen/mosaic/internal/game/spawn"
)

type handlerFunc func(c *Console, args []string) error

var handlers = map[string]handlerFunc{
	HandlerClick:     handleClick,
	HandlerSpawn:     handleSpawn,
	HandlerConfirm:   handleConfirm,
	HandlerCancel:    handleCancel,
	HandlerRemove:    handleRemove,
	HandlerShow:      handleShow,
	HandlerBoards:    handleBoards,
	HandlerPurchased: handlePurchased,
	HandlerReload:    handleReload,
	HandlerHelp:      handleHelp,
	HandlerQuit:      handleQuit,
}

// resolveBoard accepts "core", a world coordinate "x,y", an exact board ID,
// or a unique board ID prefix.
func (c *Console) resolveBoard(arg string) (board.BoardID, error) {
	if arg == "core" {
		return c.tree.CoreID(), nil
	}
	if x, y, ok := strings.Cut(arg, ","); ok {
		cx, errX := strconv.Atoi(x)
		cy, errY := strconv.Atoi(y)
		if errX != nil || errY != nil {
			return "", fmt.Errorf("bad coordinate %q", arg)
		}
		id, found := c.tree.BoardAt(board.Coord{X: cx, Y: cy})
		if !found {
			return "", fmt.Errorf("no board at (%d,%d)", cx, cy)
		}
		return id, nil
	}
	if _, ok := c.tree.Board(board.BoardID(arg)); ok {
		return board.BoardID(arg), nil
	}
	var matches []board.BoardID
	for _, b := range c.tree.Boards() {
		if strings.HasPrefix(string(b.ID), arg) {
			matches = append(matches, b.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no board matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("board prefix %q is ambiguous (%d matches)", arg, len(matches))
	}
}

func parseInt(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, s)
	}
	return v, nil
}

func handleClick(c *Console, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: click <board> <col> <row>")
	}
	id, err := c.resolveBoard(args[0])
	if err != nil {
		return err
	}
	col, err := parseInt("col", args[1])
	if err != nil {
		return err
	}
	row, err := parseInt("row", args[2])
	if err != nil {
		return err
	}

	out := c.alloc.ClickNode(id, board.Position{Col: col, Row: row})
	switch out.Kind {
	case spawn.OutcomeRejected:
		if out.Err == nil {
			return errors.New("click rejected")
		}
		return out.Err
	case spawn.OutcomeShowSpawnChoices:
		slot := out.Slot
		c.mu.Lock()
		c.lastSlot = &slot
		c.mu.Unlock()
		if len(out.Choices) == 0 {
			c.printf("slot %s is open but no extension templates are loaded\n", slot)
			return nil
		}
		c.printf("slot %s can spawn: %s\n", slot, strings.Join(out.Choices, ", "))
		c.printf("use: spawn %s <template>  (or spawn <template>)\n", slot)
	case spawn.OutcomeToggled:
		switch {
		case out.Pending:
			c.printf("%s pending\n", out.Node.Ref())
		case out.Node.Type == board.NodeStart:
			c.printf("start %s now %s\n", out.Node.Ref(), out.Node.State)
		default:
			c.printf("%s no longer pending\n", out.Node.Ref())
		}
	case spawn.OutcomePurchased:
		c.printf("purchased %s %s\n", out.Node.Ref(), describe(out.Node))
	}
	return nil
}

func describe(n spawn.NodeEvent) string {
	if n.Name == "" {
		return "[" + string(n.Type) + "]"
	}
	return fmt.Sprintf("[%s %q]", n.Type, n.Name)
}

// handleSpawn accepts "spawn <board>:<direction> <template>" or, after a
// spawn choice click, "spawn <template>".
func handleSpawn(c *Console, args []string) error {
	var slot board.SlotID
	var template string
	switch len(args) {
	case 1:
		c.mu.Lock()
		last := c.lastSlot
		c.mu.Unlock()
		if last == nil {
			return errors.New("no slot selected; click an extension node or use spawn <board>:<direction> <template>")
		}
		slot, template = *last, args[0]
	case 2:
		boardArg, dirArg, ok := strings.Cut(args[0], ":")
		if !ok {
			return fmt.Errorf("slot %q must have the form board:direction", args[0])
		}
		id, err := c.resolveBoard(boardArg)
		if err != nil {
			return err
		}
		dir, err := board.ParseDirection(strings.ToLower(dirArg))
		if err != nil {
			return err
		}
		slot, template = board.SlotID{Board: id, Direction: dir}, args[1]
	default:
		return errors.New("usage: spawn [<board>:<direction>] <template>")
	}

	id, err := c.tree.RequestSpawn(slot, template)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.lastSlot = nil
	c.mu.Unlock()
	b, _ := c.tree.Board(id)
	c.printf("spawned %s board %s at %s\n", template, id, b.WorldPosition)
	return nil
}

func handleConfirm(c *Console, _ []string) error {
	purchased, dropped := c.alloc.Confirm()
	for _, ref := range dropped {
		c.printf("dropped %s: no longer connected\n", ref)
	}
	c.printf("purchased %d node(s)\n", len(purchased))
	return nil
}

func handleCancel(c *Console, _ []string) error {
	c.printf("cancelled %d pending node(s)\n", c.alloc.Cancel())
	return nil
}

func handleRemove(c *Console, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: remove <board>")
	}
	id, err := c.resolveBoard(args[0])
	if err != nil {
		return err
	}
	if err := c.tree.RemoveBoard(id); err != nil {
		return err
	}
	c.printf("removed board %s\n", id)
	return nil
}

func handleShow(c *Console, args []string) error {
	id := c.tree.CoreID()
	if len(args) > 0 {
		var err error
		if id, err = c.resolveBoard(args[0]); err != nil {
			return err
		}
	}
	snap, ok := c.tree.Board(id)
	if !ok {
		return fmt.Errorf("board %s not found", id)
	}
	pending := make(map[board.NodeRef]bool)
	for _, ref := range c.alloc.Pending() {
		pending[ref] = true
	}
	if c.ANSI {
		RenderANSI(c.out, snap, pending)
	} else {
		Render(c.out, snap, pending)
	}
	return nil
}

func handleBoards(c *Console, _ []string) error {
	for _, b := range c.tree.Boards() {
		var open []string
		for _, s := range b.Slots {
			if s.CurrentConnections < s.MaxConnections {
				open = append(open, string(s.ID.Direction))
			}
		}
		c.printf("%-10s %-9s %-12s %-8s purchased=%-3d open=%s\n",
			shortID(b.ID), b.Kind, b.Template, b.WorldPosition, b.Purchased, strings.Join(open, ","))
	}
	return nil
}

// shortID trims long generated IDs for listings.
func shortID(id board.BoardID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

func handlePurchased(c *Console, _ []string) error {
	if c.ledger == nil {
		return errors.New("no ledger attached")
	}
	entries := c.ledger.Purchased()
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "-"
		}
		c.printf("%s%s %-9s %s\n", shortID(e.Ref.Board), e.Ref.Position, e.Type, name)
	}
	totals := c.ledger.Totals()
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.printf("  %s = %g\n", k, totals[k])
	}
	c.printf("%d node(s) purchased\n", len(entries))
	return nil
}

func handleReload(c *Console, _ []string) error {
	if c.Reload == nil {
		return errors.New("reload is not available")
	}
	if err := c.Reload(); err != nil {
		return err
	}
	c.printf("reloaded\n")
	return nil
}

func handleHelp(c *Console, _ []string) error {
	byCategory := c.registry.CommandsByCategory()
	for _, category := range []string{CategoryTree, CategoryView, CategorySystem} {
		c.printf("%s:\n", category)
		for _, cmd := range byCategory[category] {
			name := cmd.Name
			if cmd.Usage != "" {
				name += " " + cmd.Usage
			}
			aliases := ""
			if len(cmd.Aliases) > 0 {
				aliases = " (" + strings.Join(cmd.Aliases, ", ") + ")"
			}
			c.printf("  %-36s %s%s\n", name, cmd.Help, aliases)
		}
	}
	return nil
}

func handleQuit(c *Console, _ []string) error {
	c.printf("bye\n")
	return errQuit
}
