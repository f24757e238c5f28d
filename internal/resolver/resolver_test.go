package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/mockdata/internal/domain"
)

func names(fields []domain.FieldSpec) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func dep(name, target string) domain.FieldSpec {
	return domain.FieldSpec{Name: name, Kind: domain.KindDependency, Dependency: &domain.Dependency{Field: target, Values: map[string]any{"x": "y"}}}
}

func TestResolveMovesDependentsAfterTargets(t *testing.T) {
	fields := []domain.FieldSpec{
		dep("subcategory", "category"),
		{Name: "id", Kind: domain.KindPrimaryKey},
		{Name: "category", Kind: domain.KindPredefinedList},
		{Name: "name", Kind: domain.KindString},
	}
	got, err := Resolve(fields)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "category", "name", "subcategory"}, names(got))
}

func TestResolveKeepsDeclarationOrderWithoutDependencies(t *testing.T) {
	fields := []domain.FieldSpec{
		{Name: "c", Kind: domain.KindString},
		{Name: "a", Kind: domain.KindInteger},
		{Name: "b", Kind: domain.KindFloat},
	}
	got, err := Resolve(fields)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, names(got))
}

func TestResolveOrdersComputedFieldsAfterTheirInputs(t *testing.T) {
	fields := []domain.FieldSpec{
		{Name: "total", Kind: domain.KindComputed, Formula: "round(price * quantity, 2)"},
		{Name: "price", Kind: domain.KindFloat},
		{Name: "discounted", Kind: domain.KindComputed, Formula: "total * 0.9 + random.uniform(0, 1)"},
		{Name: "quantity", Kind: domain.KindInteger},
	}
	got, err := Resolve(fields)
	require.NoError(t, err)
	require.Equal(t, []string{"price", "quantity", "total", "discounted"}, names(got))
}

func TestResolveDetectsCycles(t *testing.T) {
	fields := []domain.FieldSpec{
		{Name: "id", Kind: domain.KindPrimaryKey},
		dep("a", "b"),
		dep("b", "a"),
	}
	_, err := Resolve(fields)
	var cycle *domain.CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	require.ElementsMatch(t, []string{"a", "b"}, cycle.Unresolved)
	require.True(t, domain.IsConfigError(err))
}

func TestResolveDetectsSelfReference(t *testing.T) {
	_, err := Resolve([]domain.FieldSpec{dep("a", "a")})
	var cycle *domain.CircularDependencyError
	require.ErrorAs(t, err, &cycle)
}

func TestResolveReportsMissingTarget(t *testing.T) {
	_, err := Resolve([]domain.FieldSpec{dep("subcategory", "category")})
	var missing *domain.MissingDependencyError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "category", missing.Target)
	require.True(t, domain.IsConfigError(err))
}

func TestResolveEmpty(t *testing.T) {
	got, err := Resolve(nil)
	require.NoError(t, err)
	require.Empty(t, got)
}
