package generators

import (
	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/expr"
)

// Computed evaluates a formula over the fields already in the record.
type Computed struct {
	Field     string
	Precision int
	program   *expr.Program
}

func newComputed(spec domain.FieldSpec) (*Computed, error) {
	p, err := expr.Compile(spec.Formula)
	if err != nil {
		return nil, err
	}
	g := &Computed{Field: spec.Name, Precision: -1, program: p}
	if spec.Precision != nil && *spec.Precision >= 0 {
		g.Precision = *spec.Precision
	}
	return g, nil
}

func (g *Computed) Generate(ctx *Context) (any, error) {
	scope := expr.Scope{Rand: ctx.Rand, Now: ctx.Now}
	if ctx.Record != nil {
		scope.Env = ctx.Record
	}
	v, err := g.program.Eval(scope)
	if err != nil {
		return nil, &domain.ComputedFieldError{Field: g.Field, Formula: g.program.String(), Err: err}
	}
	if f, ok := v.(float64); ok && g.Precision >= 0 {
		v = expr.Round(f, g.Precision)
	}
	return expr.Render(v), nil
}
