// Package ledger keeps the running record of purchased nodes across the
// whole mosaic and sums their stat blocks.
package ledger

import (
	"sort"
	"sync"

	"github.com/spf13/cast"

	"github.com/cory-johannsen/mosaic/internal/game/board"
	"github.com/cory-johannsen/mosaic/internal/game/spawn"
)

// Entry is one purchased node.
type Entry struct {
	Ref       board.NodeRef
	Type      board.NodeType
	Name      string
	StatBlock map[string]any
}

// Ledger is a spawn.Observer that tracks which nodes are purchased.
// It is safe for concurrent use.
type Ledger struct {
	spawn.NopObserver

	mu      sync.RWMutex
	entries map[board.NodeRef]Entry
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[board.NodeRef]Entry)}
}

// NodeStateChanged records or forgets the node depending on its new state.
func (l *Ledger) NodeStateChanged(ev spawn.NodeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev.State != board.StatePurchased {
		delete(l.entries, ev.Ref())
		return
	}
	l.entries[ev.Ref()] = Entry{Ref: ev.Ref(), Type: ev.Type, Name: ev.Name, StatBlock: ev.StatBlock}
}

// BoardRemoved forgets every node of the removed board.
func (l *Ledger) BoardRemoved(ev spawn.BoardEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ref := range l.entries {
		if ref.Board == ev.Board {
			delete(l.entries, ref)
		}
	}
}

// Len returns the number of purchased nodes.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Has reports whether ref is purchased.
func (l *Ledger) Has(ref board.NodeRef) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[ref]
	return ok
}

// Purchased returns every purchased node ordered by board, row and column.
func (l *Ledger) Purchased() []Entry {
	l.mu.RLock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Ref, out[j].Ref
		if a.Board != b.Board {
			return a.Board < b.Board
		}
		if a.Position.Row != b.Position.Row {
			return a.Position.Row < b.Position.Row
		}
		return a.Position.Col < b.Position.Col
	})
	return out
}

// Totals sums the numeric stats of every purchased node. Non-numeric stat
// values are ignored.
func (l *Ledger) Totals() map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	totals := make(map[string]float64)
	for _, e := range l.entries {
		for k, v := range e.StatBlock {
			switch v.(type) {
			case string, bool, nil:
				continue
			}
			f, err := cast.ToFloat64E(v)
			if err != nil {
				continue
			}
			totals[k] += f
		}
	}
	return totals
}
