package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/mmrzaf/mockdata/internal/domain"
)

// maxParams stays under the protocol limit of 65535 bind parameters.
const maxParams = 65000

// Sink writes each domain into a table of a PostgreSQL schema.
type Sink struct {
	dsn    string
	schema string
	db     *sql.DB
}

func New(dsn, schema string) *Sink {
	if schema == "" {
		schema = "public"
	}
	return &Sink{dsn: dsn, schema: schema}
}

func (s *Sink) Connect() error {
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Sink) qualified(name string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(name)
}

func (s *Sink) CreateTableIfNotExists(table *domain.Table) error {
	_, err := s.db.Exec(CreateTableSQL(s.schema, table))
	return err
}

// CreateTableSQL renders the DDL for table inside schema.
func CreateTableSQL(schema string, table *domain.Table) string {
	defs := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		def := pq.QuoteIdentifier(col.Name) + " " + columnType(col.Type)
		if col.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s)",
		pq.QuoteIdentifier(schema), pq.QuoteIdentifier(table.Name), strings.Join(defs, ", "))
}

func columnType(t domain.ColumnType) string {
	switch t {
	case domain.ColumnTypeInt:
		return "BIGINT"
	case domain.ColumnTypeFloat:
		return "DOUBLE PRECISION"
	case domain.ColumnTypeBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (s *Sink) TruncateTable(name string) error {
	_, err := s.db.Exec("TRUNCATE TABLE " + s.qualified(name))
	return err
}

func (s *Sink) InsertBatch(name string, columns []string, rows [][]any) error {
	if len(rows) == 0 || len(columns) == 0 {
		return nil
	}
	perStmt := maxParams / len(columns)
	for start := 0; start < len(rows); start += perStmt {
		end := min(start+perStmt, len(rows))
		query, args := InsertSQL(s.qualified(name), columns, rows[start:end])
		if _, err := s.db.Exec(query, args...); err != nil {
			return err
		}
	}
	return nil
}

// InsertSQL renders one multi-row INSERT with numbered placeholders.
func InsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}

	values := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		ph := make([]string, len(columns))
		for j := range columns {
			ph[j] = fmt.Sprintf("$%d", i*len(columns)+j+1)
			v := row[j]
			switch v.(type) {
			case []any, map[string]any:
				v = fmt.Sprint(v)
			}
			args = append(args, v)
		}
		values[i] = "(" + strings.Join(ph, ", ") + ")"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(quoted, ", "), strings.Join(values, ", ")), args
}

func (s *Sink) Commit(string) error { return nil }
