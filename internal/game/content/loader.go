package content

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/mosaic/internal/game/board"
)

// yamlTemplateFile is the top-level YAML structure for template files.
type yamlTemplateFile struct {
	Board yamlTemplate `yaml:"board"`
}

// yamlTemplate is the YAML representation of a board template.
type yamlTemplate struct {
	ID          string        `yaml:"id"`
	Kind        string        `yaml:"kind"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Start       *yamlPosition `yaml:"start"`
	Nodes       []yamlNode    `yaml:"nodes"`
}

type yamlPosition struct {
	Col int `yaml:"col"`
	Row int `yaml:"row"`
}

// yamlNode is the YAML representation of one authored cell.
type yamlNode struct {
	Pos         yamlPosition   `yaml:"pos"`
	Type        string         `yaml:"type"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Stats       map[string]any `yaml:"stats"`
	// Available defaults to true when omitted.
	Available *bool `yaml:"available"`
}

// LoadTemplateFromBytes parses and validates a template from YAML bytes.
// Unknown keys are rejected.
//
// Precondition: data must be YAML conforming to the template schema.
// Postcondition: Returns a validated Template or a non-nil error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var file yamlTemplateFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}

	t, err := convertYAMLTemplate(file.Board)
	if err != nil {
		return nil, fmt.Errorf("converting template %q: %w", file.Board.ID, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validating template %q: %w", t.ID, err)
	}
	return t, nil
}

// LoadTemplateFromFile reads and validates a single template YAML file.
//
// Postcondition: Returns a validated Template or a non-nil error.
func LoadTemplateFromFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file %s: %w", path, err)
	}
	return LoadTemplateFromBytes(data)
}

// LoadTemplatesFromDir loads every *.yaml / *.yml file in dir.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all validated templates or the first error encountered.
func LoadTemplatesFromDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading template directory %s: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		t, err := LoadTemplateFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading template from %s: %w", entry.Name(), err)
		}
		templates = append(templates, t)
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("no template files found in %s", dir)
	}
	return templates, nil
}

func isTemplateFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func convertYAMLTemplate(yt yamlTemplate) (*Template, error) {
	kind, err := board.ParseKind(yt.Kind)
	if err != nil {
		return nil, err
	}
	t := &Template{
		ID:          yt.ID,
		Kind:        kind,
		Name:        yt.Name,
		Description: strings.TrimSpace(yt.Description),
		Nodes:       make([]Record, 0, len(yt.Nodes)),
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	if yt.Start != nil {
		t.Start = &board.Position{Col: yt.Start.Col, Row: yt.Start.Row}
	}
	for _, yn := range yt.Nodes {
		nt, err := board.ParseNodeType(yn.Type)
		if err != nil {
			return nil, fmt.Errorf("node at (%d,%d): %w", yn.Pos.Col, yn.Pos.Row, err)
		}
		available := true
		if yn.Available != nil {
			available = *yn.Available
		}
		t.Nodes = append(t.Nodes, Record{
			Position:    board.Position{Col: yn.Pos.Col, Row: yn.Pos.Row},
			Type:        nt,
			Name:        yn.Name,
			Description: strings.TrimSpace(yn.Description),
			Stats:       yn.Stats,
			Available:   available,
		})
	}
	return t, nil
}
