package content

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cory-johannsen/mosaic/internal/game/board"
)

// Library holds the loaded templates keyed by ID. All methods are safe for
// concurrent use; Replace swaps the whole set atomically.
type Library struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewLibrary creates a Library from templates.
//
// Postcondition: Returns a Library or an error on duplicate template IDs.
func NewLibrary(templates []*Template) (*Library, error) {
	l := &Library{}
	if err := l.Replace(templates); err != nil {
		return nil, err
	}
	return l, nil
}

// Replace swaps the library contents for templates.
//
// Postcondition: On error the previous contents are kept.
func (l *Library) Replace(templates []*Template) error {
	m := make(map[string]*Template, len(templates))
	for _, t := range templates {
		if _, exists := m[t.ID]; exists {
			return fmt.Errorf("duplicate template ID: %q", t.ID)
		}
		m[t.ID] = t
	}
	l.mu.Lock()
	l.templates = m
	l.mu.Unlock()
	return nil
}

// Template returns the template with the given ID.
func (l *Library) Template(id string) (*Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[id]
	return t, ok
}

// ExtensionTemplateIDs returns the sorted IDs of every extension template.
// These are the choices offered when an extension slot is clicked.
func (l *Library) ExtensionTemplateIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for id, t := range l.templates {
		if t.Kind == board.KindExtension {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of templates.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.templates)
}
