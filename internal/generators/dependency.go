package generators

import (
	"errors"
	"fmt"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/expr"
)

// Dependency maps the current value of another field to an outcome.
type Dependency struct {
	Field    string
	Target   string
	outcomes map[string]outcome
}

// outcome is exactly one of: a fixed value, a list to pick from or a range.
type outcome struct {
	scalar any
	list   []any
	rng    *numRange
}

// defaultRangePrecision rounds float range draws that set no precision.
const defaultRangePrecision = 2

type numRange struct {
	min, max  float64
	integral  bool
	precision int
}

func newDependency(spec domain.FieldSpec) (*Dependency, error) {
	dep := spec.Dependency
	if dep == nil || dep.Field == "" {
		return nil, errors.New("dependency requires dependency.field")
	}
	if len(dep.Values) == 0 {
		return nil, errors.New("dependency requires a non-empty dependency.values mapping")
	}
	g := &Dependency{Field: spec.Name, Target: dep.Field, outcomes: make(map[string]outcome, len(dep.Values))}
	for key, raw := range dep.Values {
		o, err := parseOutcome(raw)
		if err != nil {
			return nil, fmt.Errorf("dependency.values[%s]: %w", key, err)
		}
		g.outcomes[key] = o
	}
	return g, nil
}

func parseOutcome(raw any) (outcome, error) {
	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return outcome{}, errors.New("empty list")
		}
		return outcome{list: v}, nil
	case map[string]any:
		lo, hasMin := v["min"]
		hi, hasMax := v["max"]
		if !hasMin || !hasMax {
			return outcome{}, errors.New("mapping outcome needs min and max")
		}
		min, ok1 := toFloat64(lo)
		max, ok2 := toFloat64(hi)
		if !ok1 || !ok2 {
			return outcome{}, fmt.Errorf("min and max must be numbers, got %v and %v", lo, hi)
		}
		if max < min {
			return outcome{}, fmt.Errorf("max (%v) must not be less than min (%v)", hi, lo)
		}
		r := &numRange{min: min, max: max, precision: defaultRangePrecision}
		if p, ok := v["precision"]; ok {
			n, ok := toInt64(p)
			if !ok || n < 0 {
				return outcome{}, fmt.Errorf("precision must be a non-negative integer, got %v", p)
			}
			r.precision = int(n)
		} else {
			r.integral = isInteger(lo) && isInteger(hi)
		}
		return outcome{rng: r}, nil
	default:
		return outcome{scalar: v}, nil
	}
}

func (g *Dependency) lookup(record *domain.Record) (outcome, error) {
	var v any
	var ok bool
	if record != nil {
		v, ok = record.Get(g.Target)
	}
	if !ok {
		return outcome{}, &domain.UnresolvedDependencyError{Field: g.Field, Target: g.Target, Absent: true}
	}
	o, ok := g.outcomes[fmt.Sprint(v)]
	if !ok {
		return outcome{}, &domain.UnresolvedDependencyError{Field: g.Field, Target: g.Target, Value: v}
	}
	return o, nil
}

func (g *Dependency) Generate(ctx *Context) (any, error) {
	o, err := g.lookup(ctx.Record)
	if err != nil {
		return nil, err
	}
	switch {
	case o.list != nil:
		return o.list[ctx.Rand.Intn(len(o.list))], nil
	case o.rng != nil:
		if o.rng.integral {
			return ctx.Rand.IntRange(int64(o.rng.min), int64(o.rng.max)), nil
		}
		return expr.Round(ctx.Rand.FloatRange(o.rng.min, o.rng.max), o.rng.precision), nil
	default:
		return o.scalar, nil
	}
}

// Options lists every value the field can take for the record's current
// target value. Range outcomes cannot be enumerated.
func (g *Dependency) Options(record *domain.Record) ([]any, error) {
	o, err := g.lookup(record)
	if err != nil {
		return nil, err
	}
	switch {
	case o.list != nil:
		return o.list, nil
	case o.rng != nil:
		return nil, fmt.Errorf("field '%s': range outcome cannot be enumerated", g.Field)
	default:
		return []any{o.scalar}, nil
	}
}
