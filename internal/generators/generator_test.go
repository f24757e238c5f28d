package generators

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/keys"
	"github.com/mmrzaf/mockdata/internal/randsrc"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func compile(t *testing.T, spec domain.FieldSpec) Generator {
	t.Helper()
	g, err := New(spec, Env{Now: fixedNow})
	require.NoError(t, err)
	return g
}

func newCtx(rec *domain.Record) *Context {
	if rec == nil {
		r := domain.NewRecord(4)
		rec = &r
	}
	return &Context{Domain: "test", Record: rec, Rand: randsrc.New(7), Now: fixedNow}
}

func intPtr(v int) *int { return &v }

func TestPredefinedListWeightsConverge(t *testing.T) {
	g := compile(t, domain.FieldSpec{
		Name:          "tier",
		Kind:          domain.KindPredefinedList,
		Values:        []any{"bronze", "silver", "gold"},
		Probabilities: []float64{0.1, 0.7, 0.2},
	})
	ctx := newCtx(nil)

	const n = 10000
	counts := map[any]int{}
	for i := 0; i < n; i++ {
		v, err := g.Generate(ctx)
		require.NoError(t, err)
		counts[v]++
	}
	require.InDelta(t, 0.1, float64(counts["bronze"])/n, 0.05)
	require.InDelta(t, 0.7, float64(counts["silver"])/n, 0.05)
	require.InDelta(t, 0.2, float64(counts["gold"])/n, 0.05)
}

func TestPredefinedListUniformWithoutWeights(t *testing.T) {
	g := compile(t, domain.FieldSpec{Name: "c", Kind: domain.KindPredefinedList, Values: []any{"a", "b", "c"}})
	ctx := newCtx(nil)
	seen := map[any]bool{}
	for i := 0; i < 300; i++ {
		v, err := g.Generate(ctx)
		require.NoError(t, err)
		seen[v] = true
	}
	require.Len(t, seen, 3)
}

func TestInvalidParametersAreRejected(t *testing.T) {
	cases := map[string]domain.FieldSpec{
		"empty values":     {Name: "x", Kind: domain.KindPredefinedList},
		"length mismatch":  {Name: "x", Kind: domain.KindPredefinedList, Values: []any{"a", "b"}, Probabilities: []float64{1}},
		"negative weight":  {Name: "x", Kind: domain.KindPredefinedList, Values: []any{"a", "b"}, Probabilities: []float64{-1, 2}},
		"zero weights":     {Name: "x", Kind: domain.KindPredefinedList, Values: []any{"a"}, Probabilities: []float64{0}},
		"integer no range": {Name: "x", Kind: domain.KindInteger},
		"integer reversed": {Name: "x", Kind: domain.KindInteger, Range: &domain.Range{Min: 10, Max: 1}},
		"unknown faker":    {Name: "x", Kind: domain.KindString, Faker: "moon_phase_of_birth"},
		"missing faker":    {Name: "x", Kind: domain.KindString},
		"bad datetime":     {Name: "x", Kind: domain.KindDateTime, Range: &domain.Range{Start: "yesterday-ish", End: "now"}},
		"bad format":       {Name: "x", Kind: domain.KindDateTime, Range: &domain.Range{Start: "2024-01-01", End: "now"}, Format: "epoch"},
		"pk reversed":      {Name: "id", Kind: domain.KindPrimaryKey, Range: &domain.Range{Start: 10, End: 1}},
		"no relation":      {Name: "x", Kind: domain.KindRelationship},
		"no dependency":    {Name: "x", Kind: domain.KindDependency},
		"bad formula":      {Name: "x", Kind: domain.KindComputed, Formula: "price *"},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(spec, Env{Now: fixedNow})
			require.Error(t, err)
		})
	}
}

func TestIntegerAndFloatBounds(t *testing.T) {
	ig := compile(t, domain.FieldSpec{Name: "age", Kind: domain.KindInteger, Range: &domain.Range{Min: 18, Max: 20}})
	fg := compile(t, domain.FieldSpec{Name: "price", Kind: domain.KindFloat, Range: &domain.Range{Min: 1, Max: 2.5}, Precision: intPtr(2)})
	ctx := newCtx(nil)

	seen := map[int64]bool{}
	for i := 0; i < 500; i++ {
		v, err := ig.Generate(ctx)
		require.NoError(t, err)
		n := v.(int64)
		require.GreaterOrEqual(t, n, int64(18))
		require.LessOrEqual(t, n, int64(20))
		seen[n] = true

		f, err := fg.Generate(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, f.(float64), 1.0)
		require.LessOrEqual(t, f.(float64), 2.5)
		require.InDelta(t, f.(float64), float64(int64(f.(float64)*100+0.5))/100, 1e-9)
	}
	require.Len(t, seen, 3, "both ends of an integer range are reachable")
}

func TestDateTimeFormats(t *testing.T) {
	dg := compile(t, domain.FieldSpec{
		Name: "d", Kind: domain.KindDateTime, Format: "date",
		Range: &domain.Range{Start: "2024-01-01", End: "2024-01-31"},
	})
	tg := compile(t, domain.FieldSpec{
		Name: "ts", Kind: domain.KindDateTime,
		Range: &domain.Range{Start: "-30d", End: "now"},
	})
	ctx := newCtx(nil)

	for i := 0; i < 100; i++ {
		v, err := dg.Generate(ctx)
		require.NoError(t, err)
		d, err := time.Parse("2006-01-02", v.(string))
		require.NoError(t, err)
		require.False(t, d.Before(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
		require.False(t, d.After(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))

		v, err = tg.Generate(ctx)
		require.NoError(t, err)
		ts, err := time.Parse("2006-01-02T15:04:05", v.(string))
		require.NoError(t, err)
		require.False(t, ts.After(fixedNow))
		require.False(t, ts.Before(fixedNow.AddDate(0, 0, -30)))
	}
}

func TestPrimaryKeyUsesAllocator(t *testing.T) {
	g := compile(t, domain.FieldSpec{Name: "id", Kind: domain.KindPrimaryKey, Range: &domain.Range{Start: 1, End: 3}})
	ctx := newCtx(nil)
	ctx.Keys = map[string]keys.Allocator{"id": keys.NewShared("id", 1, 3, nil)}

	seen := map[any]bool{}
	for i := 0; i < 3; i++ {
		v, err := g.Generate(ctx)
		require.NoError(t, err)
		seen[v] = true
	}
	require.Len(t, seen, 3)

	_, err := g.Generate(ctx)
	var exhausted *domain.KeyRangeExhaustedError
	require.ErrorAs(t, err, &exhausted)

	ctx.Keys = nil
	_, err = g.Generate(ctx)
	require.Error(t, err)
}

func TestRelationship(t *testing.T) {
	g := compile(t, domain.FieldSpec{Name: "customer_id", Kind: domain.KindRelationship, Relation: &domain.Relation{Domain: "customer", Field: "id"}})
	ctx := newCtx(nil)

	_, err := g.Generate(ctx)
	var missing *domain.MissingReferenceError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "customer", missing.Domain)

	ids := map[any]bool{int64(11): true, int64(12): true, int64(13): true}
	ctx.Reference = domain.ReferenceData{"customer": {}}
	for id := range ids {
		r := domain.NewRecord(1)
		r.Set("id", id)
		ctx.Reference["customer"] = append(ctx.Reference["customer"], r)
	}
	for i := 0; i < 50; i++ {
		v, err := g.Generate(ctx)
		require.NoError(t, err)
		require.True(t, ids[v], "value %v was not drawn from the referenced domain", v)
	}
}

func TestDependencyOutcomes(t *testing.T) {
	g := compile(t, domain.FieldSpec{
		Name: "subcategory",
		Kind: domain.KindDependency,
		Dependency: &domain.Dependency{Field: "category", Values: map[string]any{
			"Books":  []any{"Fiction", "History"},
			"Gift":   "Card",
			"Toys":   map[string]any{"min": 1, "max": 3},
			"Garden": map[string]any{"min": 1, "max": 2, "precision": 1},
			"Tools":  map[string]any{"min": 1.5, "max": 9.5},
			"1":      "numeric key",
		}},
	})

	run := func(category any) (any, error) {
		r := domain.NewRecord(2)
		r.Set("category", category)
		return g.Generate(newCtx(&r))
	}

	v, err := run("Books")
	require.NoError(t, err)
	require.Contains(t, []any{"Fiction", "History"}, v)

	v, err = run("Gift")
	require.NoError(t, err)
	require.Equal(t, "Card", v)

	v, err = run("Toys")
	require.NoError(t, err)
	require.IsType(t, int64(0), v)
	require.GreaterOrEqual(t, v.(int64), int64(1))
	require.LessOrEqual(t, v.(int64), int64(3))

	v, err = run("Garden")
	require.NoError(t, err)
	require.IsType(t, 0.0, v)

	for i := 0; i < 50; i++ {
		v, err = run("Tools")
		require.NoError(t, err)
		f := v.(float64)
		require.InDelta(t, f, math.Round(f*100)/100, 1e-9)
		require.GreaterOrEqual(t, f, 1.5)
		require.LessOrEqual(t, f, 9.5)
	}

	v, err = run(int64(1))
	require.NoError(t, err)
	require.Equal(t, "numeric key", v)

	_, err = run("Music")
	var unresolved *domain.UnresolvedDependencyError
	require.ErrorAs(t, err, &unresolved)
	require.False(t, unresolved.Absent)
	require.Equal(t, "Music", unresolved.Value)

	_, err = g.Generate(newCtx(nil))
	require.ErrorAs(t, err, &unresolved)
	require.True(t, unresolved.Absent)
}

func TestDependencyOptions(t *testing.T) {
	g, err := newDependency(domain.FieldSpec{
		Name: "sub",
		Kind: domain.KindDependency,
		Dependency: &domain.Dependency{Field: "cat", Values: map[string]any{
			"A": []any{"a1", "a2"},
			"B": "b1",
			"C": map[string]any{"min": 1, "max": 2},
		}},
	})
	require.NoError(t, err)

	r := domain.NewRecord(1)
	r.Set("cat", "A")
	opts, err := g.Options(&r)
	require.NoError(t, err)
	require.Equal(t, []any{"a1", "a2"}, opts)

	r.Set("cat", "B")
	opts, err = g.Options(&r)
	require.NoError(t, err)
	require.Equal(t, []any{"b1"}, opts)

	r.Set("cat", "C")
	_, err = g.Options(&r)
	require.Error(t, err)
}

func TestComputed(t *testing.T) {
	g := compile(t, domain.FieldSpec{Name: "total", Kind: domain.KindComputed, Formula: "price * quantity", Precision: intPtr(1)})

	r := domain.NewRecord(2)
	r.Set("price", 2.25)
	r.Set("quantity", int64(3))
	v, err := g.Generate(newCtx(&r))
	require.NoError(t, err)
	require.Equal(t, 6.8, v)

	_, err = g.Generate(newCtx(nil))
	var computed *domain.ComputedFieldError
	require.ErrorAs(t, err, &computed)
	require.Equal(t, "total", computed.Field)

	dg := compile(t, domain.FieldSpec{Name: "due", Kind: domain.KindComputed, Formula: "add_days(today(), 7)"})
	v, err = dg.Generate(newCtx(nil))
	require.NoError(t, err)
	require.Equal(t, "2024-03-22", v)
}

func TestFailingWrapsComputedErrors(t *testing.T) {
	spec := domain.FieldSpec{Name: "x", Kind: domain.KindComputed, Formula: "1 +"}
	_, err := New(spec, Env{})
	require.Error(t, err)

	_, err = Failing(spec, err).Generate(newCtx(nil))
	var computed *domain.ComputedFieldError
	require.ErrorAs(t, err, &computed)

	base := errors.New("boom")
	_, err = Failing(domain.FieldSpec{Name: "y", Kind: domain.KindInteger}, base).Generate(newCtx(nil))
	require.ErrorIs(t, err, base)
}

func TestUnsupportedKindYieldsNil(t *testing.T) {
	g := compile(t, domain.FieldSpec{Name: "blob", Kind: "binary"})
	v, err := g.Generate(newCtx(nil))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestStringCapability(t *testing.T) {
	g := compile(t, domain.FieldSpec{Name: "email", Kind: domain.KindString, Faker: "email"})
	v, err := g.Generate(newCtx(nil))
	require.NoError(t, err)
	require.Contains(t, v.(string), "@")
}
