package spawn

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/mosaic/internal/game/board"
	"github.com/cory-johannsen/mosaic/internal/game/content"
	"github.com/cory-johannsen/mosaic/internal/game/extension"
	"github.com/cory-johannsen/mosaic/internal/game/grid"
	"github.com/cory-johannsen/mosaic/internal/game/taskqueue"
)

type recorder struct {
	nodes    []NodeEvent
	spawned  []BoardEvent
	removed  []BoardEvent
	rejected []RejectEvent
}

func (r *recorder) NodeStateChanged(ev NodeEvent) { r.nodes = append(r.nodes, ev) }
func (r *recorder) BoardSpawned(ev BoardEvent)    { r.spawned = append(r.spawned, ev) }
func (r *recorder) BoardRemoved(ev BoardEvent)    { r.removed = append(r.removed, ev) }
func (r *recorder) SpawnRejected(ev RejectEvent)  { r.rejected = append(r.rejected, ev) }

type gateFunc func(NodeEvent) bool

func (f gateFunc) AllowPurchase(ev NodeEvent) bool { return f(ev) }

func testLibrary(t testing.TB) *content.Library {
	lib, err := content.NewLibrary([]*content.Template{
		{ID: "core", Kind: board.KindCore, Name: "Core"},
		{ID: "forge", Kind: board.KindExtension, Name: "Forge", Nodes: []content.Record{
			{Position: board.Position{Col: 3, Row: 3}, Type: board.NodeNotable, Name: "Heart", Available: true},
		}},
		{ID: "broken", Kind: board.KindExtension, Name: "Broken", Nodes: []content.Record{
			{Position: board.Position{Col: 9, Row: 9}, Type: board.NodeSmall, Available: true},
		}},
	})
	require.NoError(t, err)
	return lib
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() board.BoardID {
		n++
		return board.BoardID(fmt.Sprintf("b%d", n))
	})
}

func newTestOrchestrator(t *testing.T, opts Options, options ...Option) (*Orchestrator, *recorder) {
	t.Helper()
	rec := &recorder{}
	options = append([]Option{WithObserver(rec), sequentialIDs()}, options...)
	o, err := New(opts, testLibrary(t), zaptest.NewLogger(t), options...)
	require.NoError(t, err)
	return o, rec
}

func pos(col, row int) board.Position { return board.Position{Col: col, Row: row} }

// buyPath purchases each position in order, failing the test on any rejection.
func buyPath(t *testing.T, o *Orchestrator, id board.BoardID, path ...board.Position) {
	t.Helper()
	for _, p := range path {
		out := o.NewAllocation().ClickNode(id, p)
		require.Equal(t, OutcomePurchased, out.Kind, "buying %s on %s: %v", p, id, out.Err)
	}
}

func mustBoard(t *testing.T, o *Orchestrator, id board.BoardID) BoardSnapshot {
	t.Helper()
	b, ok := o.Board(id)
	require.True(t, ok, "board %s", id)
	return b
}

func mustNode(t *testing.T, b BoardSnapshot, p board.Position) NodeEvent {
	t.Helper()
	n, ok := b.Node(p)
	require.True(t, ok, "node %s", p)
	return n
}

// spawnSouth opens the core South slot and spawns a forge board through it.
func spawnSouth(t *testing.T, o *Orchestrator) board.BoardID {
	t.Helper()
	buyPath(t, o, o.CoreID(), pos(3, 2), pos(3, 1))
	id, err := o.RequestSpawn(board.SlotID{Board: o.CoreID(), Direction: board.South}, "forge")
	require.NoError(t, err)
	return id
}

func TestNew_CoreBoard(t *testing.T) {
	o, rec := newTestOrchestrator(t, Options{})

	core := mustBoard(t, o, o.CoreID())
	assert.Equal(t, board.KindCore, core.Kind)
	assert.Equal(t, board.Coord{}, core.WorldPosition)
	assert.Equal(t, board.DefaultSize, core.Size)
	assert.Len(t, core.Nodes, 49)
	assert.Equal(t, board.StatePurchased, mustNode(t, core, pos(3, 3)).State)
	assert.Equal(t, board.StateUnlockable, mustNode(t, core, pos(3, 4)).State)
	assert.Equal(t, board.StateLocked, mustNode(t, core, pos(3, 0)).State)

	require.Len(t, rec.spawned, 1)
	assert.Equal(t, o.CoreID(), rec.spawned[0].Board)
	assert.Len(t, rec.nodes, 5, "start plus four unlocked neighbours")
}

func TestNew_StartOverride(t *testing.T) {
	start := pos(1, 1)
	o, _ := newTestOrchestrator(t, Options{Start: &start})
	core := mustBoard(t, o, o.CoreID())
	assert.Equal(t, board.NodeStart, mustNode(t, core, start).Type)
	assert.Equal(t, board.StatePurchased, mustNode(t, core, start).State)
}

func TestNew_Errors(t *testing.T) {
	lib := testLibrary(t)
	_, err := New(Options{CoreTemplate: "forge"}, lib, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	_, err = New(Options{CoreTemplate: "missing"}, lib, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	_, err = New(Options{BoardSize: 4}, lib, zap.NewNop())
	assert.Error(t, err)
}

func TestClickNode_Purchase(t *testing.T) {
	o, rec := newTestOrchestrator(t, Options{})
	before := len(rec.nodes)

	out := o.NewAllocation().ClickNode(o.CoreID(), pos(3, 2))
	require.Equal(t, OutcomePurchased, out.Kind)
	assert.Equal(t, board.StatePurchased, out.Node.State)
	assert.Greater(t, len(rec.nodes), before)
	assert.Equal(t, pos(3, 2), rec.nodes[before].Position)

	core := mustBoard(t, o, o.CoreID())
	assert.Equal(t, board.StateUnlockable, mustNode(t, core, pos(3, 1)).State)
	assert.Equal(t, board.StateLocked, mustNode(t, core, pos(3, 0)).State, "extension waits for a purchased neighbour")
}

func TestClickNode_Rejections(t *testing.T) {
	o, rec := newTestOrchestrator(t, Options{})
	before := len(rec.nodes)

	out := o.NewAllocation().ClickNode(o.CoreID(), pos(0, 6))
	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, board.ErrPurchasePreconditionFailed)

	out = o.NewAllocation().ClickNode("nope", pos(3, 3))
	assert.ErrorIs(t, out.Err, ErrMissingSourceContext)

	out = o.NewAllocation().ClickNode(o.CoreID(), pos(7, 7))
	assert.ErrorIs(t, out.Err, ErrMissingSourceContext)

	out = o.NewAllocation().ClickNode(o.CoreID(), pos(3, 0))
	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, board.ErrPurchasePreconditionFailed, "locked extension slot")

	assert.Len(t, rec.nodes, before)
	assert.Empty(t, rec.rejected, "click rejections are not spawn rejections")
}

func TestClickNode_ShowSpawnChoices(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{})
	buyPath(t, o, o.CoreID(), pos(3, 2), pos(3, 1))

	out := o.NewAllocation().ClickNode(o.CoreID(), pos(3, 0))
	require.Equal(t, OutcomeShowSpawnChoices, out.Kind, "%v", out.Err)
	assert.Equal(t, board.SlotID{Board: o.CoreID(), Direction: board.South}, out.Slot)
	assert.Equal(t, []string{"broken", "forge"}, out.Choices)
	assert.Equal(t, board.StateUnlockable, out.Node.State)
}

func TestClickNode_StartToggle(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{})

	out := o.NewAllocation().ClickNode(o.CoreID(), pos(3, 3))
	require.Equal(t, OutcomeToggled, out.Kind)
	assert.Equal(t, board.StateUnlockable, out.Node.State)
	core := mustBoard(t, o, o.CoreID())
	assert.Equal(t, board.StateUnlockable, mustNode(t, core, pos(3, 4)).State, "neighbours keep their unlock")

	out = o.NewAllocation().ClickNode(o.CoreID(), pos(3, 3))
	require.Equal(t, OutcomePurchased, out.Kind)
	assert.Equal(t, board.StatePurchased, out.Node.State)
}

func TestRequestSpawn_SouthPlacement(t *testing.T) {
	o, rec := newTestOrchestrator(t, Options{})
	id := spawnSouth(t, o)

	child := mustBoard(t, o, id)
	assert.Equal(t, board.KindExtension, child.Kind)
	assert.Equal(t, "forge", child.Template)
	assert.Equal(t, board.Coord{X: 0, Y: -1}, child.WorldPosition)
	got, ok := o.BoardAt(board.Coord{X: 0, Y: -1})
	require.True(t, ok)
	assert.Equal(t, id, got)

	entry := mustNode(t, child, pos(3, 6))
	assert.Equal(t, board.NodeExtension, entry.Type)
	assert.Equal(t, board.StatePurchased, entry.State)
	assert.Equal(t, board.StateUnlockable, mustNode(t, child, pos(3, 5)).State)
	assert.Equal(t, board.StateUnlockable, mustNode(t, child, pos(2, 6)).State)
	assert.Equal(t, board.StateLocked, mustNode(t, child, pos(3, 4)).State, "propagation stops one step from the entry")
	assert.Equal(t, "Heart", mustNode(t, child, pos(3, 3)).Name)

	core := mustBoard(t, o, o.CoreID())
	assert.Equal(t, board.StatePurchased, mustNode(t, core, pos(3, 0)).State)
	south, _ := core.Slot(board.South)
	assert.Equal(t, 1, south.CurrentConnections)
	entrySlot, _ := child.Slot(board.North)
	assert.Equal(t, 1, entrySlot.CurrentConnections, "entry slot cannot spawn back")

	link, ok := o.Parent(id)
	require.True(t, ok)
	assert.Equal(t, board.SlotID{Board: o.CoreID(), Direction: board.South}, link.Source)

	require.Len(t, rec.spawned, 2)
	assert.Equal(t, id, rec.spawned[1].Board)
	assert.Equal(t, board.Coord{X: 0, Y: -1}, rec.spawned[1].WorldPosition)
	assert.Empty(t, rec.rejected)
}

func TestRequestSpawn_SlotAlreadyConnected(t *testing.T) {
	o, rec := newTestOrchestrator(t, Options{})
	spawnSouth(t, o)
	boards := len(o.Boards())

	_, err := o.RequestSpawn(board.SlotID{Board: o.CoreID(), Direction: board.South}, "forge")
	assert.ErrorIs(t, err, extension.ErrSlotAlreadyConnected)
	assert.Len(t, o.Boards(), boards)
	require.Len(t, rec.rejected, 1)
	assert.ErrorIs(t, rec.rejected[0].Err, extension.ErrSlotAlreadyConnected)

	out := o.NewAllocation().ClickNode(o.CoreID(), pos(3, 0))
	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, extension.ErrSlotAlreadyConnected)
}

func TestRequestSpawn_EntrySlotCannotSpawnBack(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{})
	id := spawnSouth(t, o)

	out := o.NewAllocation().ClickNode(id, pos(3, 6))
	assert.ErrorIs(t, out.Err, extension.ErrSlotAlreadyConnected)
}

func TestRequestSpawn_RollsBackOnFailure(t *testing.T) {
	o, rec := newTestOrchestrator(t, Options{})
	buyPath(t, o, o.CoreID(), pos(3, 2), pos(3, 1))
	spawnedBefore := len(rec.spawned)
	nodesBefore := len(rec.nodes)
	slot := board.SlotID{Board: o.CoreID(), Direction: board.South}

	_, err := o.RequestSpawn(slot, "broken")
	require.Error(t, err)
	assert.Len(t, o.Boards(), 1)
	_, occupied := o.BoardAt(board.Coord{X: 0, Y: -1})
	assert.False(t, occupied)

	core := mustBoard(t, o, o.CoreID())
	assert.Equal(t, board.StateUnlockable, mustNode(t, core, pos(3, 0)).State)
	south, _ := core.Slot(board.South)
	assert.Zero(t, south.CurrentConnections)

	assert.Len(t, rec.spawned, spawnedBefore)
	assert.Len(t, rec.nodes, nodesBefore)
	require.Len(t, rec.rejected, 1)
	assert.Equal(t, "broken", rec.rejected[0].Template)

	_, err = o.RequestSpawn(slot, "forge")
	assert.NoError(t, err, "a failed spawn leaves the slot usable")
}

func TestRequestSpawn_Errors(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{})
	south := board.SlotID{Board: o.CoreID(), Direction: board.South}

	_, err := o.RequestSpawn(south, "forge")
	assert.ErrorIs(t, err, board.ErrPurchasePreconditionFailed, "source extension still locked")

	buyPath(t, o, o.CoreID(), pos(3, 2), pos(3, 1))
	_, err = o.RequestSpawn(south, "missing")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	_, err = o.RequestSpawn(south, "core")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	_, err = o.RequestSpawn(board.SlotID{Board: "ghost", Direction: board.South}, "forge")
	assert.ErrorIs(t, err, ErrMissingSourceContext)
	_, err = o.RequestSpawn(board.SlotID{Board: o.CoreID(), Direction: "up"}, "forge")
	assert.ErrorIs(t, err, ErrMissingSourceContext)
	assert.Len(t, o.Boards(), 1)
}

func TestRequestSpawn_DuplicatePlacement(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{})
	core := o.CoreID()

	south := spawnSouth(t, o)

	buyPath(t, o, core, pos(4, 3), pos(5, 3))
	east, err := o.RequestSpawn(board.SlotID{Board: core, Direction: board.East}, "forge")
	require.NoError(t, err)
	assert.Equal(t, board.Coord{X: 1, Y: 0}, mustBoard(t, o, east).WorldPosition)

	buyPath(t, o, east, pos(1, 3), pos(2, 3), pos(3, 3), pos(3, 2), pos(3, 1))
	eastSouth, err := o.RequestSpawn(board.SlotID{Board: east, Direction: board.South}, "forge")
	require.NoError(t, err)
	assert.Equal(t, board.Coord{X: 1, Y: -1}, mustBoard(t, o, eastSouth).WorldPosition)

	buyPath(t, o, south, pos(4, 6), pos(5, 6), pos(5, 5), pos(5, 4), pos(5, 3))
	out := o.NewAllocation().ClickNode(south, pos(6, 3))
	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, ErrDuplicateBoardPlacement)
	assert.ErrorIs(t, out.Err, grid.ErrCellOccupied)

	_, err = o.RequestSpawn(board.SlotID{Board: south, Direction: board.East}, "forge")
	assert.ErrorIs(t, err, ErrDuplicateBoardPlacement)
	assert.Len(t, o.Boards(), 4)

	southSnap := mustBoard(t, o, south)
	eastSlot, _ := southSnap.Slot(board.East)
	assert.Zero(t, eastSlot.CurrentConnections)
}

func TestRemoveBoard(t *testing.T) {
	o, rec := newTestOrchestrator(t, Options{})
	core := o.CoreID()

	assert.ErrorIs(t, o.RemoveBoard(core), ErrCoreBoardPermanent)
	assert.ErrorIs(t, o.RemoveBoard("ghost"), grid.ErrBoardNotFound)

	child := spawnSouth(t, o)
	buyPath(t, o, child, pos(3, 5), pos(3, 4), pos(3, 3), pos(3, 2), pos(3, 1))
	grandchild, err := o.RequestSpawn(board.SlotID{Board: child, Direction: board.South}, "forge")
	require.NoError(t, err)
	assert.Equal(t, board.Coord{X: 0, Y: -2}, mustBoard(t, o, grandchild).WorldPosition)

	assert.ErrorIs(t, o.RemoveBoard(child), ErrBoardHasChildren)

	require.NoError(t, o.RemoveBoard(grandchild))
	_, ok := o.Board(grandchild)
	assert.False(t, ok)
	_, occupied := o.BoardAt(board.Coord{X: 0, Y: -2})
	assert.False(t, occupied)
	require.Len(t, rec.removed, 1)
	assert.Equal(t, grandchild, rec.removed[0].Board)

	childSnap := mustBoard(t, o, child)
	assert.Equal(t, board.StateUnlockable, mustNode(t, childSnap, pos(3, 0)).State)
	southSlot, _ := childSnap.Slot(board.South)
	assert.Zero(t, southSlot.CurrentConnections)

	require.NoError(t, o.RemoveBoard(child))
	coreSnap := mustBoard(t, o, core)
	assert.Equal(t, board.StateUnlockable, mustNode(t, coreSnap, pos(3, 0)).State)

	_, err = o.RequestSpawn(board.SlotID{Board: core, Direction: board.South}, "forge")
	assert.NoError(t, err, "slot capacity is restored after removal")
}

func TestConfirmAllocation(t *testing.T) {
	o, rec := newTestOrchestrator(t, Options{ConfirmAllocation: true})
	core := o.CoreID()
	alloc := o.NewAllocation()
	before := len(rec.nodes)

	out := alloc.ClickNode(core, pos(3, 2))
	require.Equal(t, OutcomeToggled, out.Kind)
	assert.True(t, out.Pending)
	assert.Equal(t, board.StateUnlockable, out.Node.State)

	out = alloc.ClickNode(core, pos(3, 1))
	require.Equal(t, OutcomeToggled, out.Kind, "pending neighbour counts as purchased: %v", out.Err)
	assert.True(t, out.Pending)

	out = alloc.ClickNode(core, pos(0, 0))
	assert.Equal(t, OutcomeRejected, out.Kind)

	assert.Len(t, alloc.Pending(), 2)
	assert.Len(t, rec.nodes, before, "pending toggles do not change state")

	purchased, dropped := alloc.Confirm()
	assert.Equal(t, []board.NodeRef{{Board: core, Position: pos(3, 2)}, {Board: core, Position: pos(3, 1)}}, purchased)
	assert.Empty(t, dropped)
	assert.Empty(t, alloc.Pending())

	snap := mustBoard(t, o, core)
	assert.Equal(t, board.StatePurchased, mustNode(t, snap, pos(3, 1)).State)
	assert.Equal(t, board.StateUnlockable, mustNode(t, snap, pos(3, 0)).State)
}

func TestConfirmAllocation_DropsIneligible(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{ConfirmAllocation: true})
	core := o.CoreID()
	alloc := o.NewAllocation()

	require.True(t, alloc.ClickNode(core, pos(3, 2)).Pending)
	require.True(t, alloc.ClickNode(core, pos(3, 1)).Pending)
	out := alloc.ClickNode(core, pos(3, 2))
	require.Equal(t, OutcomeToggled, out.Kind)
	assert.False(t, out.Pending)

	purchased, dropped := alloc.Confirm()
	assert.Empty(t, purchased)
	assert.Equal(t, []board.NodeRef{{Board: core, Position: pos(3, 1)}}, dropped)
}

func TestConfirmAllocation_Cancel(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{ConfirmAllocation: true})
	core := o.CoreID()
	alloc := o.NewAllocation()
	alloc.ClickNode(core, pos(3, 2))
	alloc.ClickNode(core, pos(2, 3))

	assert.Equal(t, 2, alloc.Cancel())
	assert.Empty(t, alloc.Pending())
	snap := mustBoard(t, o, core)
	assert.Equal(t, board.StateUnlockable, mustNode(t, snap, pos(3, 2)).State)
}

func TestPurchaseGate_Veto(t *testing.T) {
	gate := gateFunc(func(ev NodeEvent) bool { return ev.Position != pos(3, 2) })
	o, _ := newTestOrchestrator(t, Options{}, WithGate(gate))

	out := o.NewAllocation().ClickNode(o.CoreID(), pos(3, 2))
	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, ErrScriptVeto)
	assert.ErrorIs(t, out.Err, board.ErrPurchasePreconditionFailed)

	out = o.NewAllocation().ClickNode(o.CoreID(), pos(2, 3))
	assert.Equal(t, OutcomePurchased, out.Kind)
}

func TestOutcomeKind_String(t *testing.T) {
	assert.Equal(t, "show_spawn_choices", OutcomeShowSpawnChoices.String())
	assert.Equal(t, "outcome(9)", OutcomeKind(9).String())
}

func TestConfirmAllocation_SessionsAreIndependent(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{ConfirmAllocation: true})
	core := o.CoreID()
	first := o.NewAllocation()
	second := o.NewAllocation()

	require.True(t, first.ClickNode(core, pos(3, 2)).Pending)
	assert.Empty(t, second.Pending())

	assert.Zero(t, second.Cancel())
	assert.Len(t, first.Pending(), 1)

	out := second.ClickNode(core, pos(3, 1))
	assert.Equal(t, OutcomeRejected, out.Kind, "another session's pending node does not count")

	purchased, _ := second.Confirm()
	assert.Empty(t, purchased)
	purchased, _ = first.Confirm()
	assert.Equal(t, []board.NodeRef{{Board: core, Position: pos(3, 2)}}, purchased)
}

func TestConfirmAllocation_DropsNodesPurchasedElsewhere(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{ConfirmAllocation: true})
	core := o.CoreID()
	first := o.NewAllocation()
	second := o.NewAllocation()

	require.True(t, first.ClickNode(core, pos(3, 2)).Pending)
	require.True(t, second.ClickNode(core, pos(3, 2)).Pending)
	purchased, _ := first.Confirm()
	require.Len(t, purchased, 1)

	purchased, dropped := second.Confirm()
	assert.Empty(t, purchased)
	assert.Equal(t, []board.NodeRef{{Board: core, Position: pos(3, 2)}}, dropped)
}

// yieldingPopulate reports not-ready for extension boards the first n times.
func yieldingPopulate(n int) Option {
	return WithPopulate(func(b *board.Board, specs []board.NodeSpec) error {
		if b.Kind == board.KindExtension && n > 0 {
			n--
			return fmt.Errorf("board %s not ready: %w", b.ID, taskqueue.ErrYield)
		}
		return b.Populate(specs)
	})
}

func TestRequestSpawn_ConnectWaitsForPopulate(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{RetryBudget: 2}, yieldingPopulate(1))

	id := spawnSouth(t, o)
	child := mustBoard(t, o, id)
	assert.Equal(t, board.StatePurchased, mustNode(t, child, pos(3, 6)).State)
	assert.Equal(t, "Heart", mustNode(t, child, pos(3, 3)).Name)
}

func TestRequestSpawn_RetryBudgetExhaustedRollsBack(t *testing.T) {
	o, rec := newTestOrchestrator(t, Options{RetryBudget: 2}, yieldingPopulate(100))
	buyPath(t, o, o.CoreID(), pos(3, 2), pos(3, 1))
	spawnedBefore := len(rec.spawned)

	_, err := o.RequestSpawn(board.SlotID{Board: o.CoreID(), Direction: board.South}, "forge")
	require.Error(t, err)
	assert.ErrorIs(t, err, taskqueue.ErrRetryBudgetExceeded)
	assert.ErrorIs(t, err, taskqueue.ErrYield)

	assert.Len(t, o.Boards(), 1)
	_, occupied := o.BoardAt(board.Coord{X: 0, Y: -1})
	assert.False(t, occupied)
	core := mustBoard(t, o, o.CoreID())
	assert.Equal(t, board.StateUnlockable, mustNode(t, core, pos(3, 0)).State)
	south, _ := core.Slot(board.South)
	assert.Zero(t, south.CurrentConnections)
	assert.Len(t, rec.spawned, spawnedBefore)
	require.Len(t, rec.rejected, 1)
	assert.ErrorIs(t, rec.rejected[0].Err, taskqueue.ErrRetryBudgetExceeded)
}

// checkNodeFlags fails if any node of any board is purchased without being
// unlocked and available.
func checkNodeFlags(rt *rapid.T, o *Orchestrator, step int) {
	for id, b := range o.boards {
		for _, n := range b.Nodes() {
			if n.Purchased && !(n.Unlocked && n.Available) {
				rt.Fatalf("step %d: node %s on %s purchased=%t unlocked=%t available=%t",
					step, n.Position, id, n.Purchased, n.Unlocked, n.Available)
			}
		}
	}
}

func TestProperty_MosaicInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lib, err := content.NewLibrary([]*content.Template{
			{ID: "core", Kind: board.KindCore},
			{ID: "plain", Kind: board.KindExtension},
		})
		if err != nil {
			rt.Fatalf("library: %v", err)
		}
		o, err := New(Options{BoardSize: 5, ConfirmAllocation: rapid.Bool().Draw(rt, "confirm")}, lib, zap.NewNop())
		if err != nil {
			rt.Fatalf("new: %v", err)
		}
		alloc := o.NewAllocation()
		checkNodeFlags(rt, o, 0)

		steps := rapid.IntRange(1, 120).Draw(rt, "steps")
		for i := 1; i <= steps; i++ {
			boards := o.Boards()
			b := boards[rapid.IntRange(0, len(boards)-1).Draw(rt, "board")]
			switch rapid.IntRange(0, 9).Draw(rt, "op") {
			case 0, 1:
				d := board.Directions[rapid.IntRange(0, 3).Draw(rt, "dir")]
				_, _ = o.RequestSpawn(board.SlotID{Board: b.ID, Direction: d}, "plain")
			case 2:
				_ = o.RemoveBoard(b.ID)
			case 3:
				alloc.Confirm()
			default:
				p := pos(rapid.IntRange(0, 4).Draw(rt, "col"), rapid.IntRange(0, 4).Draw(rt, "row"))
				alloc.ClickNode(b.ID, p)
			}
			checkNodeFlags(rt, o, i)
		}

		seen := make(map[board.Coord]board.BoardID)
		for _, b := range o.Boards() {
			if other, dup := seen[b.WorldPosition]; dup {
				rt.Fatalf("boards %s and %s share %s", other, b.ID, b.WorldPosition)
			}
			seen[b.WorldPosition] = b.ID
			for _, s := range b.Slots {
				if s.CurrentConnections < 0 || s.CurrentConnections > s.MaxConnections {
					rt.Fatalf("slot %s has %d connections", s.ID, s.CurrentConnections)
				}
			}
			if b.Kind == board.KindExtension {
				link, ok := o.Parent(b.ID)
				if !ok {
					rt.Fatalf("extension board %s has no parent link", b.ID)
				}
				parent, ok := o.Board(link.Source.Board)
				if !ok {
					rt.Fatalf("parent %s of %s missing", link.Source.Board, b.ID)
				}
				slot, _ := parent.Slot(link.Source.Direction)
				if slot.CurrentConnections != 1 {
					rt.Fatalf("source slot %s not connected", slot.ID)
				}
				if want := parent.WorldPosition.Add(link.Source.Direction.Offset()); want != b.WorldPosition {
					rt.Fatalf("board %s at %s, want %s", b.ID, b.WorldPosition, want)
				}
				entry, _ := b.Node(board.SlotPosition(link.Source.Direction.Opposite(), b.Size))
				if entry.State != board.StatePurchased {
					rt.Fatalf("entry cell of %s is %s", b.ID, entry.State)
				}
			}
		}
	})
}
