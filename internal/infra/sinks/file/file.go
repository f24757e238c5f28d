// Package file writes each domain to <dir>/<domain>_mock_data.<json|csv>.
package file

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mmrzaf/mockdata/internal/domain"
)

type table struct {
	columns []string
	rows    [][]any
}

// Sink buffers a domain's rows until Commit and then replaces the output
// file atomically.
type Sink struct {
	dir    string
	format string

	mu     sync.Mutex
	tables map[string]*table
}

func New(dir, format string) (*Sink, error) {
	if format != domain.FormatJSON && format != domain.FormatCSV {
		return nil, &domain.UnsupportedFormatError{Format: format}
	}
	if dir == "" {
		dir = "."
	}
	return &Sink{dir: dir, format: format, tables: map[string]*table{}}, nil
}

// Path returns the file a domain is written to.
func (s *Sink) Path(name string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_mock_data.%s", name, s.format))
}

func (s *Sink) Connect() error {
	return os.MkdirAll(s.dir, 0o755)
}

func (s *Sink) Close() error { return nil }

func (s *Sink) CreateTableIfNotExists(t *domain.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Name] = &table{columns: t.ColumnNames()}
	return nil
}

// TruncateTable drops rows buffered so far; the file itself is always
// replaced on Commit.
func (s *Sink) TruncateTable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		t.rows = nil
	}
	return nil
}

func (s *Sink) InsertBatch(name string, columns []string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		t = &table{}
		s.tables[name] = t
	}
	t.columns = columns
	t.rows = append(t.rows, rows...)
	return nil
}

func (s *Sink) Commit(name string) error {
	s.mu.Lock()
	t, ok := s.tables[name]
	delete(s.tables, name)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	var (
		data []byte
		err  error
	)
	switch s.format {
	case domain.FormatJSON:
		data, err = encodeJSON(t)
	default:
		data, err = encodeCSV(t)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return writeAtomic(s.Path(name), data)
}

func encodeJSON(t *table) ([]byte, error) {
	records := make([]domain.Record, len(t.rows))
	for i, row := range t.rows {
		rec := domain.NewRecord(len(t.columns))
		for j, col := range t.columns {
			rec.Set(col, row[j])
		}
		records[i] = rec
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCSV(t *table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.columns); err != nil {
		return nil, err
	}
	line := make([]string, len(t.columns))
	for _, row := range t.rows {
		for j := range t.columns {
			line[j] = cell(row[j])
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
