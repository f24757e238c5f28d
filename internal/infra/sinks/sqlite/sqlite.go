package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mmrzaf/mockdata/internal/domain"
)

// Sink writes each domain into a table of a SQLite database file.
type Sink struct {
	path string
	db   *sql.DB
}

func New(path string) *Sink {
	return &Sink{path: path}
}

func (s *Sink) Connect() error {
	db, err := sql.Open("sqlite3", s.path)
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

func (s *Sink) CreateTableIfNotExists(table *domain.Table) error {
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table.Name).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	defs := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		def := fmt.Sprintf("%s %s", quote(col.Name), columnType(col.Type))
		if col.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs[i] = def
	}
	_, err = s.db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", quote(table.Name), strings.Join(defs, ", ")))
	return err
}

func columnType(t domain.ColumnType) string {
	switch t {
	case domain.ColumnTypeInt, domain.ColumnTypeBool:
		return "INTEGER"
	case domain.ColumnTypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (s *Sink) TruncateTable(name string) error {
	_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", quote(name)))
	return err
}

func (s *Sink) InsertBatch(name string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
		placeholders[i] = "?"
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(name), strings.Join(quoted, ", "), strings.Join(placeholders, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(row))
		for i, val := range row {
			args[i] = sqlValue(val)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Sink) Commit(string) error { return nil }

func sqlValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case []any, map[string]any:
		return fmt.Sprint(val)
	default:
		return val
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
