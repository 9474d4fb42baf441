package board

import "fmt"

// NodeType classifies a node on a board.
type NodeType string

// Node types. Exactly one Start node exists per core board; Extension nodes
// occupy the four edge midpoints of every board.
const (
	NodeStart     NodeType = "start"
	NodeTravel    NodeType = "travel"
	NodeSmall     NodeType = "small"
	NodeNotable   NodeType = "notable"
	NodeKeystone  NodeType = "keystone"
	NodeExtension NodeType = "extension"
)

// NodeTypes lists every valid node type.
var NodeTypes = []NodeType{NodeStart, NodeTravel, NodeSmall, NodeNotable, NodeKeystone, NodeExtension}

// ParseNodeType converts a type name into a NodeType.
//
// Postcondition: Returns a valid NodeType or a non-nil error.
func ParseNodeType(s string) (NodeType, error) {
	for _, t := range NodeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown node type %q", s)
}

// NodeState is the lifecycle state derived from a node's three flags.
type NodeState int

const (
	// StateLocked means the node is unavailable or not yet unlocked.
	StateLocked NodeState = iota
	// StateUnlockable means the node is unlocked and available but not purchased.
	StateUnlockable
	// StatePurchased means the node has been allocated.
	StatePurchased
)

// String returns the lowercase state name.
func (s NodeState) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlockable:
		return "unlockable"
	case StatePurchased:
		return "purchased"
	default:
		return fmt.Sprintf("NodeState(%d)", int(s))
	}
}

// Node is one cell of a board.
//
// Invariant: Purchased implies Unlocked and Available.
type Node struct {
	// Position is the cell coordinate within the owning board.
	Position Position
	// Type classifies the node.
	Type NodeType
	// Name is the display name supplied by content.
	Name string
	// Description is the display text supplied by content.
	Description string
	// StatBlock is an opaque payload owned by the content collaborator.
	StatBlock map[string]any
	// Available is false for cells disabled by content.
	Available bool
	// Unlocked is true once an orthogonal neighbour has been purchased.
	Unlocked bool
	// Purchased is true once the node has been allocated.
	Purchased bool
}

// State derives the lifecycle state from the node flags.
func (n *Node) State() NodeState {
	switch {
	case n.Purchased:
		return StatePurchased
	case n.Unlocked && n.Available:
		return StateUnlockable
	default:
		return StateLocked
	}
}

// NodeSpec is a content authoring record for one cell.
type NodeSpec struct {
	Position    Position
	Type        NodeType
	Name        string
	Description string
	StatBlock   map[string]any
	Available   bool
}

// NodeRef identifies a node across the whole mosaic.
type NodeRef struct {
	Board    BoardID
	Position Position
}

// String renders the reference as "board(col,row)".
func (r NodeRef) String() string {
	return string(r.Board) + r.Position.String()
}
