package persona

import (
	"fmt"
	"os"

	"github.com/lithammer/shortuuid/v4"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

// Entry is one persona in a fixture file, optionally with recollections to seed.
type Entry struct {
	Persona       `yaml:",inline"`
	Recollections []*recollection.Recollection `yaml:"recollections"`
}

// Fixture is the YAML document personas are loaded from.
type Fixture struct {
	Personas []*Entry `yaml:"personas"`
}

// LoadFile reads and validates a fixture file. Personas without an id get a short uuid.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates fixture YAML.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode persona fixture: %w", err)
	}

	seen := make(map[string]bool, len(f.Personas))
	for i, e := range f.Personas {
		if e.ID == "" {
			e.ID = shortuuid.New()
		}
		if err := e.Persona.Validate(); err != nil {
			return nil, fmt.Errorf("persona #%d: %w", i, err)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidPersona, e.ID)
		}
		seen[e.ID] = true
	}
	return &f, nil
}

// Source returns a StaticSource over the fixture's personas.
func (f *Fixture) Source() *StaticSource {
	personas := make([]*Persona, len(f.Personas))
	for i, e := range f.Personas {
		personas[i] = &e.Persona
	}
	return NewStaticSource(personas...)
}

// Entry returns the fixture entry for id.
func (f *Fixture) Entry(id string) (*Entry, bool) {
	for _, e := range f.Personas {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}
