package spawn

import "github.com/cory-johannsen/mosaic/internal/game/board"

// NodeEvent describes a node whose lifecycle state changed.
type NodeEvent struct {
	Board     board.BoardID
	Position  board.Position
	Type      board.NodeType
	Name      string
	StatBlock map[string]any
	State     board.NodeState
}

// Ref returns the mosaic-wide reference of the node.
func (e NodeEvent) Ref() board.NodeRef {
	return board.NodeRef{Board: e.Board, Position: e.Position}
}

// BoardEvent describes a board that was spawned or removed.
type BoardEvent struct {
	Board         board.BoardID
	Kind          board.Kind
	Template      string
	WorldPosition board.Coord
}

// RejectEvent describes a spawn request that was refused.
type RejectEvent struct {
	Slot     board.SlotID
	Template string
	Err      error
}

// Observer receives engine events synchronously at the point of mutation.
// Events produced inside a spawn transaction are delivered once the new
// board is ready; a failed spawn delivers only SpawnRejected.
type Observer interface {
	NodeStateChanged(NodeEvent)
	BoardSpawned(BoardEvent)
	BoardRemoved(BoardEvent)
	SpawnRejected(RejectEvent)
}

// NopObserver ignores every event. Embed it to implement a subset of Observer.
type NopObserver struct{}

// NodeStateChanged implements Observer.
func (NopObserver) NodeStateChanged(NodeEvent) {}

// BoardSpawned implements Observer.
func (NopObserver) BoardSpawned(BoardEvent) {}

// BoardRemoved implements Observer.
func (NopObserver) BoardRemoved(BoardEvent) {}

// SpawnRejected implements Observer.
func (NopObserver) SpawnRejected(RejectEvent) {}

// pendingEvents buffers events for delivery after a transaction commits.
type pendingEvents struct {
	nodes  []NodeEvent
	seen   map[board.NodeRef]int
	boards []BoardEvent
}

func (p *pendingEvents) node(b *board.Board, pos board.Position) {
	n, ok := b.Node(pos)
	if !ok {
		return
	}
	ev := nodeEvent(b.ID, n)
	if p.seen == nil {
		p.seen = make(map[board.NodeRef]int)
	}
	if i, dup := p.seen[ev.Ref()]; dup {
		p.nodes[i] = ev
		return
	}
	p.seen[ev.Ref()] = len(p.nodes)
	p.nodes = append(p.nodes, ev)
}

func (p *pendingEvents) positions(b *board.Board, positions []board.Position) {
	for _, pos := range positions {
		p.node(b, pos)
	}
}

func nodeEvent(id board.BoardID, n *board.Node) NodeEvent {
	return NodeEvent{
		Board:     id,
		Position:  n.Position,
		Type:      n.Type,
		Name:      n.Name,
		StatBlock: n.StatBlock,
		State:     n.State(),
	}
}

func boardEvent(b *board.Board) BoardEvent {
	return BoardEvent{
		Board:         b.ID,
		Kind:          b.Kind,
		Template:      b.Template,
		WorldPosition: b.WorldPosition,
	}
}

func (o *Orchestrator) flush(p *pendingEvents) {
	for _, ev := range p.boards {
		for _, obs := range o.observers {
			obs.BoardSpawned(ev)
		}
	}
	for _, ev := range p.nodes {
		for _, obs := range o.observers {
			obs.NodeStateChanged(ev)
		}
	}
}
