// Package resolver orders the fields of a domain so that every field is
// generated after the fields it reads.
package resolver

import (
	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/expr"
)

// Prerequisites returns the fields of the same domain that spec reads.
// Formula identifiers that are not field names (helpers such as
// random.randint take no part) are ignored, as are unparsable formulas.
func Prerequisites(spec domain.FieldSpec, names map[string]struct{}) []string {
	switch spec.Kind {
	case domain.KindDependency:
		if spec.Dependency != nil && spec.Dependency.Field != "" {
			return []string{spec.Dependency.Field}
		}
	case domain.KindComputed:
		p, err := expr.Compile(spec.Formula)
		if err != nil {
			return nil
		}
		var out []string
		for _, ref := range p.Refs() {
			if _, ok := names[ref]; ok {
				out = append(out, ref)
			}
		}
		return out
	}
	return nil
}

// Resolve returns fields reordered so that prerequisites come first. Each
// pass takes every ready field in declaration order; a pass that takes
// nothing means the remaining fields form a cycle.
func Resolve(fields []domain.FieldSpec) ([]domain.FieldSpec, error) {
	names := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		names[f.Name] = struct{}{}
	}

	deps := make([][]string, len(fields))
	for i, f := range fields {
		if f.Kind == domain.KindDependency && f.Dependency != nil {
			if _, ok := names[f.Dependency.Field]; !ok {
				return nil, &domain.MissingDependencyError{Field: f.Name, Target: f.Dependency.Field}
			}
		}
		deps[i] = Prerequisites(f, names)
	}

	resolved := make(map[string]struct{}, len(fields))
	order := make([]domain.FieldSpec, 0, len(fields))
	pending := make([]int, len(fields))
	for i := range fields {
		pending[i] = i
	}

	for len(pending) > 0 {
		var next []int
		progressed := false
		for _, i := range pending {
			if ready(deps[i], resolved) {
				order = append(order, fields[i])
				resolved[fields[i].Name] = struct{}{}
				progressed = true
			} else {
				next = append(next, i)
			}
		}
		if !progressed {
			unresolved := make([]string, 0, len(next))
			for _, i := range next {
				unresolved = append(unresolved, fields[i].Name)
			}
			return nil, &domain.CircularDependencyError{Scope: "fields", Unresolved: unresolved}
		}
		pending = next
	}
	return order, nil
}

func ready(deps []string, resolved map[string]struct{}) bool {
	for _, d := range deps {
		if _, ok := resolved[d]; !ok {
			return false
		}
	}
	return true
}
