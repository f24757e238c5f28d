package exec

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/generators"
	"github.com/mmrzaf/mockdata/internal/registry"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func compilePlan(t *testing.T, d domain.DomainSchema) *Plan {
	t.Helper()
	p, err := Compile(&d, generators.Env{Capabilities: registry.DefaultCapabilityRegistry(), Now: testNow})
	require.NoError(t, err)
	return p
}

func pk(name string, start, end int64) domain.FieldSpec {
	return domain.FieldSpec{Name: name, Kind: domain.KindPrimaryKey, Range: &domain.Range{Start: start, End: end}}
}

func productDomain(start, end int64) domain.DomainSchema {
	return domain.DomainSchema{
		Name:               "product",
		UniqueCombinations: true,
		Fields: []domain.FieldSpec{
			pk("product_id", start, end),
			{Name: "subcategory_name", Kind: domain.KindDependency, Dependency: &domain.Dependency{
				Field: "category_name",
				Values: map[string]any{
					"Books": []any{"Fiction", "History"},
					"Toys":  []any{"Puzzles", "Dolls", "Blocks"},
				},
			}},
			{Name: "category_name", Kind: domain.KindPredefinedList, Values: []any{"Books", "Toys"}},
			{Name: "product_color", Kind: domain.KindPredefinedList, Values: []any{"red", "blue"}},
			{Name: "price", Kind: domain.KindFloat, Range: &domain.Range{Min: 1, Max: 100}, Precision: intPtr(2)},
		},
	}
}

func intPtr(v int) *int { return &v }

func TestBatchSize(t *testing.T) {
	require.Equal(t, 1, BatchSize(5, 0))
	require.Equal(t, 10, BatchSize(100, 0))
	require.Equal(t, 1000, BatchSize(50000, 0))
	require.Equal(t, 7, BatchSize(50000, 7))
	require.Equal(t, []int{3, 3, 1}, quotas(7, 3))
}

func TestGenerateZeroRecords(t *testing.T) {
	plan := compilePlan(t, domain.DomainSchema{Name: "empty", Fields: []domain.FieldSpec{pk("id", 1, 10)}})
	res, err := (&Coordinator{}).Generate(context.Background(), plan, 0, nil)
	require.NoError(t, err)
	require.Empty(t, res.Records)
}

func TestConcurrentPrimaryKeysAreUnique(t *testing.T) {
	for _, shared := range []bool{false, true} {
		plan := compilePlan(t, domain.DomainSchema{Name: "customer", Fields: []domain.FieldSpec{
			pk("id", 1, 5000),
			{Name: "age", Kind: domain.KindInteger, Range: &domain.Range{Min: 18, Max: 90}},
		}})
		c := &Coordinator{Workers: 8, BatchSize: 100, Seed: 3, SharedKeys: shared, Now: testNow}

		res, err := c.Generate(context.Background(), plan, 5000, nil)
		require.NoError(t, err)
		require.Len(t, res.Records, 5000)

		seen := make(map[int64]bool, 5000)
		for _, r := range res.Records {
			v, _ := r.Get("id")
			id := v.(int64)
			require.False(t, seen[id], "key %d allocated twice (shared=%v)", id, shared)
			require.GreaterOrEqual(t, id, int64(1))
			require.LessOrEqual(t, id, int64(5000))
			seen[id] = true
		}
	}
}

func TestKeyRangeTooSmallFailsUpfront(t *testing.T) {
	plan := compilePlan(t, domain.DomainSchema{Name: "customer", Fields: []domain.FieldSpec{pk("id", 1, 10)}})
	_, err := (&Coordinator{}).Generate(context.Background(), plan, 11, nil)

	var exhausted *domain.KeyRangeExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 11, exhausted.Requested)
}

func TestUnresolvedDependencyDiscardsRecords(t *testing.T) {
	plan := compilePlan(t, domain.DomainSchema{Name: "product", Fields: []domain.FieldSpec{
		pk("id", 1, 1000),
		{Name: "subcategory", Kind: domain.KindDependency, Dependency: &domain.Dependency{
			Field:  "category",
			Values: map[string]any{"Books": []any{"Fiction"}},
		}},
		{Name: "category", Kind: domain.KindPredefinedList, Values: []any{"Books", "Music"}},
	}})

	var mu sync.Mutex
	var last Progress
	calls := 0
	c := &Coordinator{Workers: 4, Seed: 11, OnProgress: func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		last = p
	}}
	res, err := c.Generate(context.Background(), plan, 200, nil)
	require.NoError(t, err)

	require.NotZero(t, res.Discarded)
	require.Equal(t, 200, len(res.Records)+res.Discarded, "discarded records are not replaced")
	for _, r := range res.Records {
		cat, _ := r.Get("category")
		sub, _ := r.Get("subcategory")
		require.Equal(t, "Books", cat)
		require.Equal(t, "Fiction", sub)
		require.Equal(t, []string{"id", "category", "subcategory"}, r.Keys())
	}
	require.Equal(t, 10, calls)
	require.Equal(t, len(res.Records), last.Generated)
	require.Equal(t, res.Discarded, last.Discarded)
}

func TestUnsupportedKindDiscardsEveryRecord(t *testing.T) {
	plan := compilePlan(t, domain.DomainSchema{Name: "blob", Fields: []domain.FieldSpec{
		pk("id", 1, 100),
		{Name: "payload", Kind: "binary"},
	}})
	res, err := (&Coordinator{Workers: 2}).Generate(context.Background(), plan, 20, nil)
	require.NoError(t, err)
	require.Empty(t, res.Records)
	require.Equal(t, 20, res.Discarded)
}

func TestSameSeedSameRecords(t *testing.T) {
	d := domain.DomainSchema{Name: "customer", Fields: []domain.FieldSpec{
		pk("id", 1, 100000),
		{Name: "tier", Kind: domain.KindPredefinedList, Values: []any{"a", "b", "c"}},
		{Name: "score", Kind: domain.KindFloat, Range: &domain.Range{Min: 0, Max: 1}},
	}}
	run := func() []byte {
		c := &Coordinator{Workers: 4, Seed: 99, Now: testNow}
		res, err := c.Generate(context.Background(), compilePlan(t, d), 500, nil)
		require.NoError(t, err)
		out, err := json.Marshal(res.Records)
		require.NoError(t, err)
		return out
	}
	require.JSONEq(t, string(run()), string(run()))
}

func TestGenerateStopsOnCancel(t *testing.T) {
	plan := compilePlan(t, domain.DomainSchema{Name: "customer", Fields: []domain.FieldSpec{pk("id", 1, 1000)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Coordinator{}).Generate(ctx, plan, 100, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEnumerateCoversEveryCombination(t *testing.T) {
	plan := compilePlan(t, productDomain(100, 200))
	res, err := (&Coordinator{Seed: 1, Now: testNow}).Enumerate(context.Background(), plan, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 10)

	combos := map[string]bool{}
	for i, r := range res.Records {
		id, _ := r.Get("product_id")
		require.Equal(t, int64(100+i), id)

		cat, _ := r.Get("category_name")
		sub, _ := r.Get("subcategory_name")
		color, _ := r.Get("product_color")
		key := cat.(string) + "/" + sub.(string) + "/" + color.(string)
		require.False(t, combos[key], "duplicate combination %s", key)
		combos[key] = true

		_, ok := r.Get("price")
		require.True(t, ok)
	}
	require.True(t, combos["Toys/Blocks/blue"])
	require.True(t, combos["Books/Fiction/red"])
}

func TestEnumerateRequiresAnchors(t *testing.T) {
	d := productDomain(1, 100)
	d.Fields = d.Fields[:3]
	plan := compilePlan(t, d)

	_, err := (&Coordinator{}).Enumerate(context.Background(), plan, nil)
	var missing *domain.MissingRequiredFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"product_color"}, missing.Fields)
	require.True(t, domain.IsConfigError(err))
}

func TestEnumerateCustomAnchors(t *testing.T) {
	d := domain.DomainSchema{
		Name:               "course",
		UniqueCombinations: true,
		Combinations:       &domain.Combinations{Category: "dept", Subcategory: "level", Axes: []string{"term", "mode"}},
		Fields: []domain.FieldSpec{
			pk("id", 1, 100),
			{Name: "dept", Kind: domain.KindPredefinedList, Values: []any{"math"}},
			{Name: "level", Kind: domain.KindDependency, Dependency: &domain.Dependency{Field: "dept", Values: map[string]any{"math": "intro"}}},
			{Name: "term", Kind: domain.KindPredefinedList, Values: []any{"fall", "spring"}},
			{Name: "mode", Kind: domain.KindPredefinedList, Values: []any{"online", "onsite", "hybrid"}},
		},
	}
	res, err := (&Coordinator{}).Enumerate(context.Background(), compilePlan(t, d), nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 6)
}

func TestEnumerateExceedingKeyRange(t *testing.T) {
	plan := compilePlan(t, productDomain(1, 5))
	_, err := (&Coordinator{}).Enumerate(context.Background(), plan, nil)
	var exhausted *domain.KeyRangeExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 10, exhausted.Requested)
}

func TestOrderDomains(t *testing.T) {
	rel := func(name, target string) domain.FieldSpec {
		return domain.FieldSpec{Name: name, Kind: domain.KindRelationship, Relation: &domain.Relation{Domain: target, Field: "id"}}
	}
	domains := []domain.DomainSchema{
		{Name: "order", Fields: []domain.FieldSpec{rel("customer_id", "customer"), rel("product_id", "product")}},
		{Name: "customer"},
		{Name: "product"},
	}
	got, err := OrderDomains(domains)
	require.NoError(t, err)
	names := []string{}
	for _, d := range got {
		names = append(names, d.Name)
	}
	require.Equal(t, []string{"customer", "product", "order"}, names)

	domains[1].Fields = []domain.FieldSpec{rel("last_order", "order")}
	_, err = OrderDomains(domains)
	var cycle *domain.CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	require.Equal(t, []string{"order", "customer"}, cycle.Unresolved)
}

type memorySink struct {
	mu        sync.Mutex
	tables    map[string]*domain.Table
	rows      map[string][]map[string]any
	committed []string
}

func newMemorySink() *memorySink {
	return &memorySink{tables: map[string]*domain.Table{}, rows: map[string][]map[string]any{}}
}

func (s *memorySink) Connect() error { return nil }
func (s *memorySink) Close() error   { return nil }

func (s *memorySink) CreateTableIfNotExists(t *domain.Table) error {
	s.tables[t.Name] = t
	return nil
}

func (s *memorySink) TruncateTable(name string) error {
	delete(s.rows, name)
	return nil
}

func (s *memorySink) InsertBatch(name string, columns []string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		m := make(map[string]any, len(columns))
		for i, c := range columns {
			m[c] = row[i]
		}
		s.rows[name] = append(s.rows[name], m)
	}
	return nil
}

func (s *memorySink) Commit(name string) error {
	s.committed = append(s.committed, name)
	return nil
}

func TestExecuteRelationships(t *testing.T) {
	schema := &domain.Schema{Domains: []domain.DomainSchema{
		{Name: "order", Fields: []domain.FieldSpec{
			pk("order_id", 1, 10000),
			{Name: "customer_id", Kind: domain.KindRelationship, Relation: &domain.Relation{Domain: "customer", Field: "customer_id"}},
			{Name: "quantity", Kind: domain.KindInteger, Range: &domain.Range{Min: 1, Max: 5}},
			{Name: "unit_price", Kind: domain.KindFloat, Range: &domain.Range{Min: 1, Max: 20}, Precision: intPtr(2)},
			{Name: "total", Kind: domain.KindComputed, Formula: "round(quantity * unit_price, 2)"},
		}},
		{Name: "customer", Fields: []domain.FieldSpec{
			pk("customer_id", 1, 500),
			{Name: "email", Kind: domain.KindString, Faker: "email"},
			{Name: "signup", Kind: domain.KindDateTime, Format: "date", Range: &domain.Range{Start: "2023-01-01", End: "2023-12-31"}},
		}},
	}}
	sink := newMemorySink()
	ex := NewExecutor(registry.DefaultCapabilityRegistry(), nil, nil)

	stats, err := ex.Execute(context.Background(), schema, sink, Options{Seed: 5, RecordCount: 120, Workers: 4, Now: testNow})
	require.NoError(t, err)
	require.Equal(t, 2, stats.DomainsGenerated)
	require.Equal(t, int64(240), stats.TotalRecords)
	require.Equal(t, []string{"customer", "order"}, sink.committed)

	customers := map[any]bool{}
	for _, c := range sink.rows["customer"] {
		customers[c["customer_id"]] = true
	}
	require.Len(t, customers, 120)
	for _, o := range sink.rows["order"] {
		require.True(t, customers[o["customer_id"]], "order references unknown customer %v", o["customer_id"])
		require.NotNil(t, o["total"])
	}

	table := sink.tables["order"]
	require.Equal(t, domain.ColumnTypeInt, table.Columns[0].Type)
	require.True(t, table.Columns[0].PrimaryKey)
	require.Equal(t, domain.ColumnTypeFloat, table.Columns[4].Type)
}

func TestExecuteRejectsBrokenSchemaBeforeGenerating(t *testing.T) {
	schema := &domain.Schema{Domains: []domain.DomainSchema{
		{Name: "customer", Fields: []domain.FieldSpec{pk("id", 1, 10)}},
		{Name: "product", Fields: []domain.FieldSpec{
			{Name: "a", Kind: domain.KindDependency, Dependency: &domain.Dependency{Field: "b", Values: map[string]any{"x": 1}}},
			{Name: "b", Kind: domain.KindDependency, Dependency: &domain.Dependency{Field: "a", Values: map[string]any{"x": 1}}},
		}},
	}}
	sink := newMemorySink()
	_, err := NewExecutor(nil, nil, nil).Execute(context.Background(), schema, sink, Options{RecordCount: 5})
	require.True(t, domain.IsConfigError(err))
	require.Empty(t, sink.committed)
}

func TestExecuteStopsAtFailedDomain(t *testing.T) {
	schema := &domain.Schema{Domains: []domain.DomainSchema{
		{Name: "first", Fields: []domain.FieldSpec{pk("id", 1, 100)}},
		{Name: "tiny", Fields: []domain.FieldSpec{pk("id", 1, 3)}},
		{Name: "other", Fields: []domain.FieldSpec{pk("id", 1, 100)}},
	}}
	sink := newMemorySink()
	stats, err := NewExecutor(nil, nil, nil).Execute(context.Background(), schema, sink, Options{RecordCount: 10})

	var exhausted *domain.KeyRangeExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Contains(t, err.Error(), "domain 'tiny'")
	require.Equal(t, 1, stats.DomainsGenerated)
	require.Len(t, stats.DomainStats, 2)
	require.Equal(t, []string{"first"}, sink.committed)
}
