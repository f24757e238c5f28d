package generators

import (
	"errors"
	"fmt"

	"github.com/mmrzaf/mockdata/internal/domain"
)

// PredefinedList picks one of Values, weighted when Weights is set.
type PredefinedList struct {
	Values  []any
	Weights []float64
}

func newPredefinedList(spec domain.FieldSpec) (*PredefinedList, error) {
	if len(spec.Values) == 0 {
		return nil, errors.New("predefined_list requires a non-empty 'values' list")
	}
	g := &PredefinedList{Values: spec.Values}
	if len(spec.Probabilities) == 0 {
		return g, nil
	}
	if len(spec.Probabilities) != len(spec.Values) {
		return nil, fmt.Errorf("'probabilities' has %d entries, 'values' has %d", len(spec.Probabilities), len(spec.Values))
	}
	total := 0.0
	for i, w := range spec.Probabilities {
		if w < 0 {
			return nil, fmt.Errorf("negative probability %g for %v", w, spec.Values[i])
		}
		total += w
	}
	if total == 0 {
		return nil, errors.New("probabilities sum to zero")
	}
	g.Weights = spec.Probabilities
	return g, nil
}

func (g *PredefinedList) Generate(ctx *Context) (any, error) {
	if g.Weights == nil {
		return g.Values[ctx.Rand.Intn(len(g.Values))], nil
	}
	i, err := ctx.Rand.Weighted(g.Weights)
	if err != nil {
		return nil, err
	}
	return g.Values[i], nil
}

// Relationship copies a field of a random record of an already generated domain.
type Relationship struct {
	Domain string
	Field  string
}

func newRelationship(spec domain.FieldSpec) (*Relationship, error) {
	if spec.Relation == nil || spec.Relation.Domain == "" || spec.Relation.Field == "" {
		return nil, errors.New("relationship requires relation.domain and relation.field")
	}
	return &Relationship{Domain: spec.Relation.Domain, Field: spec.Relation.Field}, nil
}

func (g *Relationship) Generate(ctx *Context) (any, error) {
	records := ctx.Reference[g.Domain]
	if len(records) == 0 {
		return nil, &domain.MissingReferenceError{Domain: g.Domain, Field: g.Field}
	}
	rec := records[ctx.Rand.Intn(len(records))]
	v, ok := rec.Get(g.Field)
	if !ok {
		return nil, fmt.Errorf("referenced record of '%s' has no field '%s'", g.Domain, g.Field)
	}
	return v, nil
}
