package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/cory-johannsen/mosaic/internal/game/board"
	"github.com/cory-johannsen/mosaic/internal/game/spawn"
)

// Legend explains the glyphs drawn by Render.
const Legend = "# purchased  o unlockable  . locked  S/s start  E/e/x extension  p pending"

// Glyph returns the single character drawn for a node.
func Glyph(n spawn.NodeEvent, pending bool) byte {
	if pending {
		return 'p'
	}
	switch n.Type {
	case board.NodeStart:
		if n.State == board.StatePurchased {
			return 'S'
		}
		return 's'
	case board.NodeExtension:
		switch n.State {
		case board.StatePurchased:
			return 'E'
		case board.StateUnlockable:
			return 'e'
		default:
			return 'x'
		}
	}
	switch n.State {
	case board.StatePurchased:
		return '#'
	case board.StateUnlockable:
		return 'o'
	default:
		return '.'
	}
}

// ANSI escape codes used by RenderANSI.
const (
	ansiReset   = "\033[0m"
	ansiBold    = "\033[1m"
	ansiDim     = "\033[2m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
)

// glyphColors maps each glyph to its terminal colour.
var glyphColors = map[byte]string{
	'#': ansiBold + ansiGreen,
	'S': ansiBold + ansiGreen,
	'E': ansiBold + ansiCyan,
	'o': ansiYellow,
	's': ansiYellow,
	'e': ansiCyan,
	'x': ansiDim + ansiCyan,
	'.': ansiDim,
	'p': ansiBold + ansiMagenta,
}

// StripANSI removes all ANSI escape sequences from a string.
//
// Postcondition: Returns text with all \033[...m sequences removed.
func StripANSI(s string) string {
	result := make([]byte, 0, len(s))
	i := 0
	for i < len(s) {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			if j < len(s) {
				i = j + 1
				continue
			}
		}
		result = append(result, s[i])
		i++
	}
	return string(result)
}

// Render draws a board with North at the top. Row and column indices frame
// the grid; slot capacities and the legend follow it.
func Render(w io.Writer, b spawn.BoardSnapshot, pending map[board.NodeRef]bool) {
	render(w, b, pending, false)
}

// RenderANSI is Render with each glyph coloured by its state.
func RenderANSI(w io.Writer, b spawn.BoardSnapshot, pending map[board.NodeRef]bool) {
	render(w, b, pending, true)
}

func render(w io.Writer, b spawn.BoardSnapshot, pending map[board.NodeRef]bool, color bool) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "board %s (%s %s) at %s\n", b.ID, b.Kind, b.Template, b.WorldPosition)

	cells := make(map[board.Position]spawn.NodeEvent, len(b.Nodes))
	for _, n := range b.Nodes {
		cells[n.Position] = n
	}

	sb.WriteString("   ")
	for col := 0; col < b.Size; col++ {
		fmt.Fprintf(&sb, " %d", col%10)
	}
	sb.WriteByte('\n')
	for row := b.Size - 1; row >= 0; row-- {
		fmt.Fprintf(&sb, "%2d ", row)
		for col := 0; col < b.Size; col++ {
			p := board.Position{Col: col, Row: row}
			glyph := byte(' ')
			if n, ok := cells[p]; ok {
				glyph = Glyph(n, pending[board.NodeRef{Board: b.ID, Position: p}])
			}
			sb.WriteByte(' ')
			if c, ok := glyphColors[glyph]; ok && color {
				sb.WriteString(c)
				sb.WriteByte(glyph)
				sb.WriteString(ansiReset)
				continue
			}
			sb.WriteByte(glyph)
		}
		sb.WriteByte('\n')
	}

	for _, s := range b.Slots {
		fmt.Fprintf(&sb, "slot %-5s %d/%d\n", s.ID.Direction, s.CurrentConnections, s.MaxConnections)
	}
	sb.WriteString(Legend)
	sb.WriteByte('\n')
	io.WriteString(w, sb.String())
}
