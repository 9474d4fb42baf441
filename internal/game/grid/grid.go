// Package grid provides the coarse world grid in which whole boards are placed.
package grid

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cory-johannsen/mosaic/internal/game/board"
)

// ErrCellOccupied is returned when placing a board on an occupied coarse cell.
var ErrCellOccupied = errors.New("coarse cell occupied")

// ErrBoardNotFound is returned when a board is not registered in the grid.
var ErrBoardNotFound = errors.New("board not found")

// Grid maps coarse coordinates to boards.
//
// Invariant: the mapping is injective; no coordinate holds two boards and no
// board occupies two coordinates. All methods are safe for concurrent use.
type Grid struct {
	mu     sync.RWMutex
	cells  map[board.Coord]board.BoardID
	boards map[board.BoardID]board.Coord
}

// New creates an empty Grid.
func New() *Grid {
	return &Grid{
		cells:  make(map[board.Coord]board.BoardID),
		boards: make(map[board.BoardID]board.Coord),
	}
}

// Place registers id at pos.
//
// Precondition: id must be non-empty.
// Postcondition: Returns nil and id occupies pos, or an error wrapping
// ErrCellOccupied with the grid unchanged.
func (g *Grid) Place(id board.BoardID, pos board.Coord) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if occupant, ok := g.cells[pos]; ok {
		return fmt.Errorf("placing board %s at %s: %w by board %s", id, pos, ErrCellOccupied, occupant)
	}
	if existing, ok := g.boards[id]; ok {
		return fmt.Errorf("board %s already placed at %s", id, existing)
	}
	g.cells[pos] = id
	g.boards[id] = pos
	return nil
}

// Remove frees the cell held by id.
//
// Postcondition: Returns nil and id is no longer placed, or an error wrapping ErrBoardNotFound.
func (g *Grid) Remove(id board.BoardID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.boards[id]
	if !ok {
		return fmt.Errorf("removing board %s: %w", id, ErrBoardNotFound)
	}
	delete(g.cells, pos)
	delete(g.boards, id)
	return nil
}

// At returns the board occupying pos.
//
// Postcondition: Returns (id, true) if occupied, ("", false) otherwise.
func (g *Grid) At(pos board.Coord) (board.BoardID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.cells[pos]
	return id, ok
}

// Occupied reports whether pos holds a board.
func (g *Grid) Occupied(pos board.Coord) bool {
	_, ok := g.At(pos)
	return ok
}

// PositionOf returns the coordinate held by id.
func (g *Grid) PositionOf(id board.BoardID) (board.Coord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pos, ok := g.boards[id]
	return pos, ok
}

// Neighbor returns the board in the coarse cell adjacent to id in direction d.
//
// Postcondition: Returns (neighbour, true) if both id and the adjacent cell are occupied.
func (g *Grid) Neighbor(id board.BoardID, d board.Direction) (board.BoardID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pos, ok := g.boards[id]
	if !ok {
		return "", false
	}
	n, ok := g.cells[pos.Add(d.Offset())]
	return n, ok
}

// Len returns the number of placed boards.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.boards)
}

// Coords returns every occupied coordinate ordered by Y then X.
func (g *Grid) Coords() []board.Coord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]board.Coord, 0, len(g.cells))
	for c := range g.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
