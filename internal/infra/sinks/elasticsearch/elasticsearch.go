package elasticsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmrzaf/mockdata/internal/domain"
)

// Sink bulk-indexes each domain into an index named after it.
type Sink struct {
	baseURL string
	client  *http.Client
}

func New(dsn string) *Sink {
	return &Sink{baseURL: normalizeURL(dsn)}
}

func (s *Sink) Connect() error {
	s.client = &http.Client{Timeout: 15 * time.Second}
	resp, err := s.client.Get(s.baseURL + "/")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("ping", resp)
	}
	return nil
}

func (s *Sink) Close() error { return nil }

// CreateTableIfNotExists creates the index with a mapping derived from the
// column types.
func (s *Sink) CreateTableIfNotExists(table *domain.Table) error {
	props := make(map[string]any, len(table.Columns))
	for _, col := range table.Columns {
		props[col.Name] = map[string]string{"type": fieldType(col.Type)}
	}
	body, err := json.Marshal(map[string]any{"mappings": map[string]any{"properties": props}})
	if err != nil {
		return err
	}

	resp, err := s.do(http.MethodPut, "/"+toIndexName(table.Name), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	msg, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(msg), "resource_already_exists_exception") {
		return nil
	}
	return fmt.Errorf("elasticsearch create index failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func fieldType(t domain.ColumnType) string {
	switch t {
	case domain.ColumnTypeInt:
		return "long"
	case domain.ColumnTypeFloat:
		return "double"
	case domain.ColumnTypeBool:
		return "boolean"
	default:
		return "keyword"
	}
}

func (s *Sink) TruncateTable(name string) error {
	resp, err := s.do(http.MethodPost, "/"+toIndexName(name)+"/_delete_by_query", "application/json",
		strings.NewReader(`{"query":{"match_all":{}}}`))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("truncate", resp)
	}
	return nil
}

func (s *Sink) InsertBatch(name string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	index := toIndexName(name)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(map[string]any{"index": map[string]string{"_index": index}}); err != nil {
			return err
		}
		doc := make(map[string]any, len(columns))
		for i, col := range columns {
			doc[col] = row[i]
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}

	resp, err := s.do(http.MethodPost, "/_bulk", "application/x-ndjson", &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("elasticsearch bulk insert failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var bulk struct {
		Errors bool `json:"errors"`
	}
	_ = json.Unmarshal(body, &bulk)
	if bulk.Errors {
		return fmt.Errorf("elasticsearch bulk insert returned errors")
	}
	return nil
}

// Commit refreshes the index so the documents are searchable right away.
func (s *Sink) Commit(name string) error {
	resp, err := s.do(http.MethodPost, "/"+toIndexName(name)+"/_refresh", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("refresh", resp)
	}
	return nil
}

func (s *Sink) do(method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return s.client.Do(req)
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("elasticsearch %s failed: status=%d body=%s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}

func normalizeURL(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "http://localhost:9200"
	}
	if strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") {
		return strings.TrimRight(dsn, "/")
	}
	return "http://" + strings.TrimRight(dsn, "/")
}

func toIndexName(name string) string {
	return url.PathEscape(strings.ToLower(strings.TrimSpace(name)))
}
