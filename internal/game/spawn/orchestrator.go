// Package spawn coordinates the board mosaic: it owns the world grid, the
// extension registry and every board, and drives node clicks, board spawns
// and board removal as single serialized transactions.
package spawn

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/mosaic/internal/game/board"
	"github.com/cory-johannsen/mosaic/internal/game/content"
	"github.com/cory-johannsen/mosaic/internal/game/extension"
	"github.com/cory-johannsen/mosaic/internal/game/grid"
	"github.com/cory-johannsen/mosaic/internal/game/taskqueue"
)

// DefaultCoreTemplate is the template ID used for the core board when none is configured.
const DefaultCoreTemplate = "core"

// TemplateSource supplies board templates. *content.Library satisfies it.
type TemplateSource interface {
	Template(id string) (*content.Template, bool)
	ExtensionTemplateIDs() []string
}

// PurchaseGate may veto a purchase after its structural precondition holds.
type PurchaseGate interface {
	// AllowPurchase reports whether the node described by ev may be purchased.
	AllowPurchase(ev NodeEvent) bool
}

// Options configures an Orchestrator.
type Options struct {
	// BoardSize is the side length of every board. Zero uses board.DefaultSize.
	BoardSize int
	// Start is the core Start position used when the core template names none.
	// Nil uses the board centre.
	Start *board.Position
	// ConfirmAllocation makes clicks toggle nodes in the clicking
	// Allocation's pending set instead of purchasing them.
	ConfirmAllocation bool
	// RetryBudget bounds how often a deferred connection may yield.
	RetryBudget int
	// CoreTemplate is the template ID of the core board.
	CoreTemplate string
}

// Option customizes an Orchestrator at construction.
type Option func(*Orchestrator)

// WithObserver registers obs for engine events, including those of the core board.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// WithGate installs a purchase gate.
func WithGate(g PurchaseGate) Option {
	return func(o *Orchestrator) { o.gate = g }
}

// PopulateFunc fills a newly placed board from its authoring records. It may
// return an error wrapping taskqueue.ErrYield when the board cannot be
// populated yet; the spawn transaction then runs it again after the rest of
// its deferred work, within the retry budget.
type PopulateFunc func(b *board.Board, specs []board.NodeSpec) error

// WithPopulate replaces the step that populates spawned boards.
func WithPopulate(fn PopulateFunc) Option {
	return func(o *Orchestrator) { o.populate = fn }
}

// WithIDGenerator replaces the board ID generator.
func WithIDGenerator(next func() board.BoardID) Option {
	return func(o *Orchestrator) { o.newID = next }
}

// Orchestrator is the single owner of the mosaic's shared state. All exported
// methods are safe for concurrent use; each runs to completion before the
// next begins.
type Orchestrator struct {
	mu sync.Mutex

	opts      Options
	templates TemplateSource
	logger    *zap.Logger
	observers []Observer
	gate      PurchaseGate
	newID     func() board.BoardID
	populate  PopulateFunc

	grid     *grid.Grid
	registry *extension.Registry
	boards   map[board.BoardID]*board.Board
	coreID   board.BoardID
}

// New creates an Orchestrator and its core board at world position (0,0).
//
// Precondition: templates and logger must be non-nil.
// Postcondition: Returns a ready Orchestrator, or an error if the core
// template is missing or invalid.
func New(opts Options, templates TemplateSource, logger *zap.Logger, options ...Option) (*Orchestrator, error) {
	if opts.BoardSize <= 0 {
		opts.BoardSize = board.DefaultSize
	}
	if opts.BoardSize < 3 || opts.BoardSize%2 == 0 {
		return nil, fmt.Errorf("board size %d must be odd and at least 3", opts.BoardSize)
	}
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = taskqueue.DefaultRetryBudget
	}
	if opts.CoreTemplate == "" {
		opts.CoreTemplate = DefaultCoreTemplate
	}
	o := &Orchestrator{
		opts:      opts,
		templates: templates,
		logger:    logger,
		newID:     func() board.BoardID { return board.BoardID(uuid.New().String()) },
		populate:  (*board.Board).Populate,
		grid:      grid.New(),
		registry:  extension.NewRegistry(),
		boards:    make(map[board.BoardID]*board.Board),
	}
	for _, opt := range options {
		opt(o)
	}

	tmpl, ok := templates.Template(opts.CoreTemplate)
	if !ok || tmpl.Kind != board.KindCore {
		return nil, fmt.Errorf("core template %q: %w", opts.CoreTemplate, ErrUnknownTemplate)
	}
	mid := opts.BoardSize / 2
	start := board.Position{Col: mid, Row: mid}
	if opts.Start != nil {
		start = *opts.Start
	}

	core := board.New(o.newID(), board.KindCore, tmpl.ID, board.Coord{}, opts.BoardSize)
	if err := core.Populate(tmpl.NodeSpecs(start)); err != nil {
		return nil, fmt.Errorf("building core board: %w", err)
	}
	if err := o.place(core); err != nil {
		return nil, fmt.Errorf("placing core board: %w", err)
	}
	o.coreID = core.ID

	var ev pendingEvents
	ev.boards = append(ev.boards, boardEvent(core))
	for _, n := range core.Nodes() {
		if n.Unlocked {
			ev.node(core, n.Position)
		}
	}
	ev.positions(core, core.RefreshExtensionUnlocks(o.seam(core)))
	o.flush(&ev)

	o.logger.Debug("core board ready",
		zap.String("board_id", string(core.ID)),
		zap.String("template", tmpl.ID),
		zap.Int("size", opts.BoardSize),
	)
	return o, nil
}

// place registers b in the grid and the extension registry.
func (o *Orchestrator) place(b *board.Board) error {
	if err := o.grid.Place(b.ID, b.WorldPosition); err != nil {
		return err
	}
	if err := o.registry.Register(b); err != nil {
		_ = o.grid.Remove(b.ID)
		return err
	}
	o.boards[b.ID] = b
	return nil
}

// unplace reverses place.
func (o *Orchestrator) unplace(id board.BoardID) {
	o.registry.Deregister(id)
	_ = o.grid.Remove(id)
	delete(o.boards, id)
}

// seam returns the seam lookup for b: the node across an edge of b, but only
// when the neighbouring board is directly linked to b.
func (o *Orchestrator) seam(b *board.Board) board.SeamFunc {
	return func(p board.Position, d board.Direction) (*board.Node, bool) {
		nid, ok := o.grid.Neighbor(b.ID, d)
		if !ok || !o.registry.Linked(b.ID, nid) {
			return nil, false
		}
		nb, ok := o.boards[nid]
		if !ok || nb.Size != b.Size {
			return nil, false
		}
		return nb.Node(board.AcrossSeam(p, d, b.Size))
	}
}

// refreshLinked re-runs the extension unlock sweep on b and every board linked to it.
func (o *Orchestrator) refreshLinked(b *board.Board, ev *pendingEvents) {
	ev.positions(b, b.RefreshExtensionUnlocks(o.seam(b)))
	for _, d := range board.Directions {
		nid, ok := o.grid.Neighbor(b.ID, d)
		if !ok || !o.registry.Linked(b.ID, nid) {
			continue
		}
		if nb, ok := o.boards[nid]; ok {
			ev.positions(nb, nb.RefreshExtensionUnlocks(o.seam(nb)))
		}
	}
}

// CoreID returns the ID of the core board.
func (o *Orchestrator) CoreID() board.BoardID {
	return o.coreID
}

// BoardAt returns the ID of the board at coord.
func (o *Orchestrator) BoardAt(coord board.Coord) (board.BoardID, bool) {
	return o.grid.At(coord)
}

// Parent returns the link through which id was spawned.
func (o *Orchestrator) Parent(id board.BoardID) (extension.Link, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.registry.Parent(id)
}

// SlotSnapshot is a read-only copy of an extension slot.
type SlotSnapshot struct {
	ID                 board.SlotID
	Position           board.Position
	ChildOffset        board.Offset
	MaxConnections     int
	CurrentConnections int
}

// BoardSnapshot is a read-only copy of a board and its nodes.
type BoardSnapshot struct {
	ID            board.BoardID
	Kind          board.Kind
	Template      string
	WorldPosition board.Coord
	Size          int
	// Purchased is the number of purchased nodes.
	Purchased int
	// Nodes is in row-major order.
	Nodes []NodeEvent
	Slots []SlotSnapshot
}

// Node returns the snapshot of the node at p.
func (s BoardSnapshot) Node(p board.Position) (NodeEvent, bool) {
	for _, n := range s.Nodes {
		if n.Position == p {
			return n, true
		}
	}
	return NodeEvent{}, false
}

// Slot returns the snapshot of the slot facing d.
func (s BoardSnapshot) Slot(d board.Direction) (SlotSnapshot, bool) {
	for _, sl := range s.Slots {
		if sl.ID.Direction == d {
			return sl, true
		}
	}
	return SlotSnapshot{}, false
}

func snapshot(b *board.Board) BoardSnapshot {
	s := BoardSnapshot{
		ID:            b.ID,
		Kind:          b.Kind,
		Template:      b.Template,
		WorldPosition: b.WorldPosition,
		Size:          b.Size,
		Purchased:     b.PurchasedCount(),
	}
	for _, n := range b.Nodes() {
		s.Nodes = append(s.Nodes, nodeEvent(b.ID, n))
	}
	for _, sl := range b.Slots() {
		s.Slots = append(s.Slots, SlotSnapshot{
			ID:                 sl.ID,
			Position:           sl.Position,
			ChildOffset:        sl.ChildOffset,
			MaxConnections:     sl.MaxConnections,
			CurrentConnections: sl.CurrentConnections,
		})
	}
	return s
}

// Board returns a snapshot of board id.
func (o *Orchestrator) Board(id board.BoardID) (BoardSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.boards[id]
	if !ok {
		return BoardSnapshot{}, false
	}
	return snapshot(b), true
}

// Boards returns snapshots of every board ordered by world position.
func (o *Orchestrator) Boards() []BoardSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]BoardSnapshot, 0, len(o.boards))
	for _, coord := range o.grid.Coords() {
		id, _ := o.grid.At(coord)
		if b, ok := o.boards[id]; ok {
			out = append(out, snapshot(b))
		}
	}
	return out
}

// ExtensionChoices returns the template IDs offered for spawning.
func (o *Orchestrator) ExtensionChoices() []string {
	ids := o.templates.ExtensionTemplateIDs()
	sort.Strings(ids)
	return ids
}
