package generators

import (
	"errors"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/registry"
)

// Capability produces string fields from a named registry entry.
type Capability struct {
	Name    string
	produce registry.Capability
}

func newCapability(spec domain.FieldSpec, caps *registry.CapabilityRegistry) (*Capability, error) {
	if spec.Faker == "" {
		return nil, errors.New("string field requires a 'faker' capability name")
	}
	if caps == nil {
		caps = registry.DefaultCapabilityRegistry()
	}
	c, err := caps.Get(spec.Faker)
	if err != nil {
		return nil, err
	}
	return &Capability{Name: spec.Faker, produce: c}, nil
}

func (g *Capability) Generate(*Context) (any, error) {
	return g.produce(), nil
}
