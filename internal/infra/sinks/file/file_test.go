package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/mockdata/internal/domain"
)

func writeDomain(t *testing.T, s *Sink) {
	t.Helper()
	require.NoError(t, s.Connect())
	require.NoError(t, s.CreateTableIfNotExists(&domain.Table{Name: "customer"}))
	cols := []string{"id", "name", "score", "since"}
	require.NoError(t, s.InsertBatch("customer", cols, [][]any{
		{int64(1), "Ada, Countess", 9.5, "2024-01-31"},
	}))
	require.NoError(t, s.InsertBatch("customer", cols, [][]any{
		{int64(2), "Grace", int64(7), "2023-12-01"},
	}))
	require.NoError(t, s.Commit("customer"))
}

func TestJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, domain.FormatJSON)
	require.NoError(t, err)
	writeDomain(t, s)

	data, err := os.ReadFile(filepath.Join(dir, "customer_mock_data.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), "\n    {\n        \"id\": 1,")

	var records []domain.Record
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	require.Equal(t, []string{"id", "name", "score", "since"}, records[0].Keys())

	id, _ := records[0].Get("id")
	score, _ := records[0].Get("score")
	name, _ := records[0].Get("name")
	require.Equal(t, int64(1), id)
	require.Equal(t, 9.5, score)
	require.Equal(t, "Ada, Countess", name)
}

func TestJSONRoundTripKeepsIntegralFloats(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, domain.FormatJSON)
	require.NoError(t, err)
	require.NoError(t, s.Connect())
	require.NoError(t, s.CreateTableIfNotExists(&domain.Table{Name: "orders"}))
	require.NoError(t, s.InsertBatch("orders", []string{"id", "price"}, [][]any{{int64(3), 12.0}}))
	require.NoError(t, s.Commit("orders"))

	data, err := os.ReadFile(s.Path("orders"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"price": 12.0`)

	var records []domain.Record
	require.NoError(t, json.Unmarshal(data, &records))
	id, _ := records[0].Get("id")
	price, _ := records[0].Get("price")
	require.Equal(t, int64(3), id)
	require.Equal(t, 12.0, price)
}

func TestCSVHeaderAndQuoting(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, domain.FormatCSV)
	require.NoError(t, err)
	writeDomain(t, s)

	data, err := os.ReadFile(s.Path("customer"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"id,name,score,since",
		`1,"Ada, Countess",9.5,2024-01-31`,
		"2,Grace,7,2023-12-01",
	}, lines)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are renamed away")
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := New(t.TempDir(), "xml")
	var unsupported *domain.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	require.True(t, domain.IsConfigError(err))
}
