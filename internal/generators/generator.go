// Package generators turns field specs into value generators.
//
// Every field kind compiles once into its own parameter struct; records then
// call Generate on the compiled value for every field they need.
package generators

import (
	"fmt"
	"time"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/keys"
	"github.com/mmrzaf/mockdata/internal/logging"
	"github.com/mmrzaf/mockdata/internal/randsrc"
	"github.com/mmrzaf/mockdata/internal/registry"
)

type Generator interface {
	Generate(ctx *Context) (any, error)
}

// Context is what a generator sees while one record is built.
type Context struct {
	Domain    string
	Record    *domain.Record
	Rand      randsrc.Source
	Keys      map[string]keys.Allocator
	Reference domain.ReferenceData
	Logger    *logging.Logger
	Now       time.Time
}

// Env holds what compilation needs besides the field spec.
type Env struct {
	Capabilities *registry.CapabilityRegistry
	Now          time.Time
}

// New compiles spec. A non-nil error means the parameters are unusable; the
// caller decides whether that is fatal or should fail each record through
// Failing.
func New(spec domain.FieldSpec, env Env) (Generator, error) {
	if env.Now.IsZero() {
		env.Now = time.Now()
	}
	switch spec.Kind {
	case domain.KindPrimaryKey:
		return newPrimaryKey(spec)
	case domain.KindString:
		return newCapability(spec, env.Capabilities)
	case domain.KindInteger:
		return newInteger(spec)
	case domain.KindFloat:
		return newFloat(spec)
	case domain.KindDateTime:
		return newDateTime(spec, env.Now)
	case domain.KindPredefinedList:
		return newPredefinedList(spec)
	case domain.KindRelationship:
		return newRelationship(spec)
	case domain.KindDependency:
		return newDependency(spec)
	case domain.KindComputed:
		return newComputed(spec)
	default:
		return &Unsupported{Field: spec.Name, Kind: spec.Kind}, nil
	}
}

// Failing returns a generator that reports err for every record.
func Failing(spec domain.FieldSpec, err error) Generator {
	if spec.Kind == domain.KindComputed {
		err = &domain.ComputedFieldError{Field: spec.Name, Formula: spec.Formula, Err: err}
	}
	return failing{err: fmt.Errorf("field '%s': %w", spec.Name, err)}
}

type failing struct{ err error }

func (f failing) Generate(*Context) (any, error) { return nil, f.err }

// Unsupported yields nil for kinds this version does not know.
type Unsupported struct {
	Field string
	Kind  domain.FieldKind
}

func (g *Unsupported) Generate(ctx *Context) (any, error) {
	if ctx.Logger != nil {
		ctx.Logger.Warnw("field.unsupported_kind", map[string]any{
			"domain": ctx.Domain,
			"field":  g.Field,
			"kind":   string(g.Kind),
		})
	}
	return nil, nil
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint64:
		return int64(val), true
	case float64:
		if val != float64(int64(val)) {
			return 0, false
		}
		return int64(val), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

// isInteger reports whether v was written as an integer literal.
func isInteger(v any) bool {
	switch v.(type) {
	case int, int32, int64, uint64:
		return true
	default:
		return false
	}
}
