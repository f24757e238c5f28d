package generators

import (
	"errors"
	"fmt"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/expr"
)

// PrimaryKey draws unique keys from [Start, End] through the allocator the
// coordinator installed for the field.
type PrimaryKey struct {
	Field string
	Start int64
	End   int64
}

func newPrimaryKey(spec domain.FieldSpec) (*PrimaryKey, error) {
	if spec.Range == nil || spec.Range.Start == nil || spec.Range.End == nil {
		return nil, errors.New("primary_key requires range.start and range.end")
	}
	start, ok := toInt64(spec.Range.Start)
	if !ok {
		return nil, fmt.Errorf("range.start must be an integer, got %v", spec.Range.Start)
	}
	end, ok := toInt64(spec.Range.End)
	if !ok {
		return nil, fmt.Errorf("range.end must be an integer, got %v", spec.Range.End)
	}
	if end < start {
		return nil, fmt.Errorf("range.end (%d) is before range.start (%d)", end, start)
	}
	return &PrimaryKey{Field: spec.Name, Start: start, End: end}, nil
}

func (g *PrimaryKey) Generate(ctx *Context) (any, error) {
	alloc, ok := ctx.Keys[g.Field]
	if !ok {
		return nil, fmt.Errorf("no key allocator for '%s'", g.Field)
	}
	return alloc.Allocate(ctx.Rand)
}

type Integer struct {
	Min int64
	Max int64
}

func newInteger(spec domain.FieldSpec) (*Integer, error) {
	lo, hi, err := bounds(spec)
	if err != nil {
		return nil, err
	}
	min, ok := toInt64(lo)
	if !ok {
		return nil, fmt.Errorf("range.min must be an integer, got %v", lo)
	}
	max, ok := toInt64(hi)
	if !ok {
		return nil, fmt.Errorf("range.max must be an integer, got %v", hi)
	}
	if max < min {
		return nil, fmt.Errorf("max (%d) must not be less than min (%d)", max, min)
	}
	return &Integer{Min: min, Max: max}, nil
}

func (g *Integer) Generate(ctx *Context) (any, error) {
	return ctx.Rand.IntRange(g.Min, g.Max), nil
}

// Float draws uniformly in [Min, Max]. Precision < 0 leaves the draw unrounded.
type Float struct {
	Min       float64
	Max       float64
	Precision int
}

func newFloat(spec domain.FieldSpec) (*Float, error) {
	lo, hi, err := bounds(spec)
	if err != nil {
		return nil, err
	}
	min, ok := toFloat64(lo)
	if !ok {
		return nil, fmt.Errorf("range.min must be a number, got %v", lo)
	}
	max, ok := toFloat64(hi)
	if !ok {
		return nil, fmt.Errorf("range.max must be a number, got %v", hi)
	}
	if max < min {
		return nil, fmt.Errorf("max (%g) must not be less than min (%g)", max, min)
	}
	g := &Float{Min: min, Max: max, Precision: -1}
	if spec.Precision != nil {
		if *spec.Precision < 0 {
			return nil, fmt.Errorf("precision must not be negative, got %d", *spec.Precision)
		}
		g.Precision = *spec.Precision
	}
	return g, nil
}

func (g *Float) Generate(ctx *Context) (any, error) {
	v := ctx.Rand.FloatRange(g.Min, g.Max)
	if g.Precision >= 0 {
		v = expr.Round(v, g.Precision)
	}
	return v, nil
}

// bounds accepts min/max, falling back to start/end.
func bounds(spec domain.FieldSpec) (any, any, error) {
	r := spec.Range
	if r == nil {
		return nil, nil, fmt.Errorf("%s requires range.min and range.max", spec.Kind)
	}
	lo, hi := r.Min, r.Max
	if lo == nil {
		lo = r.Start
	}
	if hi == nil {
		hi = r.End
	}
	if lo == nil || hi == nil {
		return nil, nil, fmt.Errorf("%s requires range.min and range.max", spec.Kind)
	}
	return lo, hi, nil
}
