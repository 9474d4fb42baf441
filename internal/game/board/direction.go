// Package board provides the fixed-size node grid that makes up one tile of
// the skill tree mosaic, together with the per-node unlock/purchase state
// machine that operates within a single board.
package board

import "fmt"

// Direction is one of the four orthogonal compass directions.
type Direction string

// The four orthogonal directions. Local rows grow northward, matching the
// world grid where North is +Y.
const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
)

// Directions lists the orthogonal directions in slot order.
var Directions = []Direction{South, North, West, East}

// Offset is a coarse or fine grid displacement.
type Offset struct {
	DX int
	DY int
}

// directionOffsets is the single canonical Direction → Offset table. It is
// used both for fine-grid neighbour steps and for coarse board placement.
var directionOffsets = map[Direction]Offset{
	North: {DX: 0, DY: 1},
	South: {DX: 0, DY: -1},
	East:  {DX: 1, DY: 0},
	West:  {DX: -1, DY: 0},
}

// ParseDirection converts a direction name into a Direction.
//
// Postcondition: Returns a valid Direction or a non-nil error.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}

// Valid reports whether d is one of the four orthogonal directions.
func (d Direction) Valid() bool {
	_, ok := directionOffsets[d]
	return ok
}

// Opposite returns the reverse direction. It is an involution on the four
// valid directions and returns "" for anything else.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		return ""
	}
}

// Offset returns the unit displacement for d, or the zero Offset if d is invalid.
func (d Direction) Offset() Offset {
	return directionOffsets[d]
}

// Position is a fine-grid cell coordinate local to one board.
type Position struct {
	Col int
	Row int
}

// String renders the position as "(col,row)".
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Col, p.Row)
}

// Step returns the neighbouring position one cell in direction d.
func (p Position) Step(d Direction) Position {
	o := d.Offset()
	return Position{Col: p.Col + o.DX, Row: p.Row + o.DY}
}

// Coord is a coarse world-grid coordinate. Each Coord holds at most one board.
type Coord struct {
	X int
	Y int
}

// String renders the coordinate as "(x,y)".
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Add returns c displaced by o.
func (c Coord) Add(o Offset) Coord {
	return Coord{X: c.X + o.DX, Y: c.Y + o.DY}
}

// SlotPosition returns the edge-midpoint cell that hosts the extension slot
// for direction d on a board of the given size.
//
// Precondition: size is odd and >= 3; d is valid.
func SlotPosition(d Direction, size int) Position {
	mid := size / 2
	switch d {
	case South:
		return Position{Col: mid, Row: 0}
	case North:
		return Position{Col: mid, Row: size - 1}
	case West:
		return Position{Col: 0, Row: mid}
	case East:
		return Position{Col: size - 1, Row: mid}
	default:
		return Position{Col: -1, Row: -1}
	}
}

// DirectionAt returns the direction of the extension slot located at p.
//
// Postcondition: Returns (d, true) when p is an edge midpoint, ("", false) otherwise.
func DirectionAt(p Position, size int) (Direction, bool) {
	for _, d := range Directions {
		if SlotPosition(d, size) == p {
			return d, true
		}
	}
	return "", false
}

// AcrossSeam maps an edge cell to the touching cell on the board adjacent in
// direction d. The row (or column) along the seam is preserved.
//
// Precondition: p lies on the edge of the board facing d.
func AcrossSeam(p Position, d Direction, size int) Position {
	switch d {
	case South:
		return Position{Col: p.Col, Row: size - 1}
	case North:
		return Position{Col: p.Col, Row: 0}
	case West:
		return Position{Col: size - 1, Row: p.Row}
	case East:
		return Position{Col: 0, Row: p.Row}
	default:
		return p
	}
}
