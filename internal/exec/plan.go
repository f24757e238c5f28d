package exec

import (
	"errors"
	"fmt"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/generators"
	"github.com/mmrzaf/mockdata/internal/resolver"
)

// Plan is a domain compiled for generation: fields in resolved order, each
// with its generator. A plan is read-only and shared by all workers.
type Plan struct {
	Schema     *domain.DomainSchema
	Fields     []domain.FieldSpec
	Generators []generators.Generator
	// FieldErrors holds parameter problems that fail every record at the
	// named field.
	FieldErrors map[string]error
}

// Compile resolves field order and compiles generators. Only ordering
// problems are returned as errors.
func Compile(schema *domain.DomainSchema, env generators.Env) (*Plan, error) {
	order, err := resolver.Resolve(schema.Fields)
	if err != nil {
		var cycle *domain.CircularDependencyError
		if errors.As(err, &cycle) {
			cycle.Scope = fmt.Sprintf("domain '%s'", schema.Name)
		}
		return nil, err
	}

	p := &Plan{
		Schema:      schema,
		Fields:      order,
		Generators:  make([]generators.Generator, len(order)),
		FieldErrors: map[string]error{},
	}
	for i, spec := range order {
		gen, err := generators.New(spec, env)
		if err != nil {
			p.FieldErrors[spec.Name] = err
			gen = generators.Failing(spec, err)
		}
		p.Generators[i] = gen
	}
	return p, nil
}

func (p *Plan) Name() string { return p.Schema.Name }

// PrimaryKeys returns the compiled primary-key generators.
func (p *Plan) PrimaryKeys() []*generators.PrimaryKey {
	var out []*generators.PrimaryKey
	for _, g := range p.Generators {
		if pk, ok := g.(*generators.PrimaryKey); ok {
			out = append(out, pk)
		}
	}
	return out
}

func (p *Plan) generator(name string) (generators.Generator, bool) {
	for i, f := range p.Fields {
		if f.Name == name {
			return p.Generators[i], true
		}
	}
	return nil, false
}

// Build produces one record. The first field that fails or yields nil
// discards the whole record.
func (p *Plan) Build(ctx *generators.Context) (domain.Record, error) {
	rec := domain.NewRecord(len(p.Fields))
	return rec, p.fill(ctx, &rec, nil)
}

// fill sets every field of the plan on rec in resolved order, taking the
// value from fixed when present.
func (p *Plan) fill(ctx *generators.Context, rec *domain.Record, fixed map[string]any) error {
	ctx.Domain = p.Schema.Name
	ctx.Record = rec
	for i, spec := range p.Fields {
		if v, ok := fixed[spec.Name]; ok {
			rec.Set(spec.Name, v)
			continue
		}
		v, err := p.Generators[i].Generate(ctx)
		if err == nil && v == nil {
			err = domain.ErrNilValue
		}
		if err != nil {
			return &domain.DiscardedRecordError{Domain: p.Schema.Name, Field: spec.Name, Err: err}
		}
		rec.Set(spec.Name, v)
	}
	return nil
}

// Table derives column types from the field kinds, using sample for the
// kinds whose type depends on data.
func (p *Plan) Table(sample *domain.Record) domain.Table {
	t := domain.Table{Name: p.Schema.Name, Columns: make([]domain.Column, 0, len(p.Schema.Fields))}
	for _, spec := range p.Schema.Fields {
		col := domain.Column{Name: spec.Name, Type: domain.ColumnTypeText}
		switch spec.Kind {
		case domain.KindPrimaryKey:
			col.Type = domain.ColumnTypeInt
			col.PrimaryKey = true
		case domain.KindInteger:
			col.Type = domain.ColumnTypeInt
		case domain.KindFloat:
			col.Type = domain.ColumnTypeFloat
		case domain.KindString, domain.KindDateTime:
		default:
			if sample != nil {
				if v, ok := sample.Get(spec.Name); ok {
					col.Type = columnType(v)
				}
			}
		}
		t.Columns = append(t.Columns, col)
	}
	return t
}

func columnType(v any) domain.ColumnType {
	switch v.(type) {
	case int, int32, int64, uint64:
		return domain.ColumnTypeInt
	case float32, float64:
		return domain.ColumnTypeFloat
	case bool:
		return domain.ColumnTypeBool
	default:
		return domain.ColumnTypeText
	}
}
