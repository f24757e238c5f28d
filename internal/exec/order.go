package exec

import (
	"github.com/mmrzaf/mockdata/internal/domain"
)

// OrderDomains places every domain after the domains its relationship fields
// read from. Ties keep declaration order. References to domains that are not
// in the schema are left to fail at generation time.
func OrderDomains(domains []domain.DomainSchema) ([]*domain.DomainSchema, error) {
	index := make(map[string]int, len(domains))
	for i, d := range domains {
		index[d.Name] = i
	}

	deps := make([][]string, len(domains))
	for i, d := range domains {
		for _, f := range d.Fields {
			if f.Kind != domain.KindRelationship || f.Relation == nil {
				continue
			}
			if _, ok := index[f.Relation.Domain]; ok {
				deps[i] = append(deps[i], f.Relation.Domain)
			}
		}
	}

	done := make(map[string]bool, len(domains))
	order := make([]*domain.DomainSchema, 0, len(domains))
	pending := make([]int, len(domains))
	for i := range domains {
		pending[i] = i
	}
	for len(pending) > 0 {
		var next []int
		for _, i := range pending {
			if allDone(deps[i], done) {
				order = append(order, &domains[i])
				done[domains[i].Name] = true
			} else {
				next = append(next, i)
			}
		}
		if len(next) == len(pending) {
			names := make([]string, len(next))
			for j, i := range next {
				names[j] = domains[i].Name
			}
			return nil, &domain.CircularDependencyError{Scope: "domains", Unresolved: names}
		}
		pending = next
	}
	return order, nil
}

func allDone(deps []string, done map[string]bool) bool {
	for _, d := range deps {
		if !done[d] {
			return false
		}
	}
	return true
}
