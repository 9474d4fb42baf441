// Package content loads board templates: the node authoring records that
// give each board cell its type, display text and stat payload.
package content

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/cory-johannsen/mosaic/internal/game/board"
)

// Template describes the authored content of one kind of board.
type Template struct {
	// ID uniquely identifies the template within a Library.
	ID string
	// Kind is core or extension.
	Kind board.Kind
	// Name is the display name offered in spawn choices.
	Name string
	// Description is optional flavour text.
	Description string
	// Start overrides the configured Start position on a core template.
	Start *board.Position
	// Nodes are the authored cells; unlisted cells use board defaults.
	Nodes []Record
}

// Record is the authoring record for one cell.
type Record struct {
	Position    board.Position
	Type        board.NodeType
	Name        string
	Description string
	Stats       map[string]any
	Available   bool
}

func nodeTypeValues() []interface{} {
	out := make([]interface{}, 0, len(board.NodeTypes))
	for _, t := range board.NodeTypes {
		out = append(out, t)
	}
	return out
}

var nonNegative = validation.By(func(value interface{}) error {
	var p board.Position
	switch v := value.(type) {
	case board.Position:
		p = v
	case *board.Position:
		if v == nil {
			return nil
		}
		p = *v
	}
	if p.Col < 0 || p.Row < 0 {
		return errors.New("must not be negative")
	}
	return nil
})

// Validate checks record invariants that do not depend on board size.
func (r Record) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Position, nonNegative),
		validation.Field(&r.Type, validation.Required, validation.In(nodeTypeValues()...)),
	)
}

// Validate checks template invariants that do not depend on board size.
// Edge-midpoint and range checks run when a board is populated.
//
// Postcondition: Returns nil if valid, or a validation.Errors describing every violation.
func (t *Template) Validate() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.Kind, validation.Required, validation.In(board.KindCore, board.KindExtension)),
		validation.Field(&t.Start,
			validation.When(t.Kind == board.KindExtension, validation.Nil.Error("must not be set on an extension template")),
			nonNegative,
		),
		validation.Field(&t.Nodes, validation.By(t.validateStarts)),
	)
}

func (t *Template) validateStarts(interface{}) error {
	starts := 0
	for _, r := range t.Nodes {
		if r.Type == board.NodeStart {
			starts++
		}
	}
	switch {
	case t.Kind == board.KindExtension && starts > 0:
		return errors.New("extension template must not contain a start node")
	case starts > 1:
		return errors.New("at most one start node is allowed")
	case starts == 1 && t.Start != nil:
		return errors.New("start position given both as a node and as start")
	}
	return nil
}

// NodeSpecs converts the template into board authoring records. A core
// template without a Start record gets one at Start, or at defaultStart when
// Start is unset.
//
// Postcondition: Returns one spec per authored cell plus any implied Start.
func (t *Template) NodeSpecs(defaultStart board.Position) []board.NodeSpec {
	specs := make([]board.NodeSpec, 0, len(t.Nodes)+1)
	hasStart := false
	for _, r := range t.Nodes {
		if r.Type == board.NodeStart {
			hasStart = true
		}
		specs = append(specs, board.NodeSpec{
			Position:    r.Position,
			Type:        r.Type,
			Name:        r.Name,
			Description: r.Description,
			StatBlock:   r.Stats,
			Available:   r.Available,
		})
	}
	if t.Kind == board.KindCore && !hasStart {
		start := defaultStart
		if t.Start != nil {
			start = *t.Start
		}
		specs = append(specs, board.NodeSpec{Position: start, Type: board.NodeStart, Name: "Start", Available: true})
	}
	return specs
}
