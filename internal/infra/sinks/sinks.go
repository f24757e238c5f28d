// Package sinks builds the output collaborator for a run.
package sinks

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/exec"
	"github.com/mmrzaf/mockdata/internal/infra/sinks/elasticsearch"
	"github.com/mmrzaf/mockdata/internal/infra/sinks/file"
	"github.com/mmrzaf/mockdata/internal/infra/sinks/postgres"
	"github.com/mmrzaf/mockdata/internal/infra/sinks/sqlite"
)

// Formats lists every supported output format.
var Formats = []string{
	domain.FormatJSON,
	domain.FormatCSV,
	domain.FormatSQLite,
	domain.FormatPostgres,
	domain.FormatElasticsearch,
}

type Options struct {
	Format    string
	OutputDir string
	DSN       string
	// Schema is the PostgreSQL schema; defaults to public.
	Schema string
}

// New returns the sink for opts.Format. Unknown formats fail with
// *domain.UnsupportedFormatError before anything is generated.
func New(opts Options) (exec.Sink, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	switch format {
	case domain.FormatJSON, domain.FormatCSV:
		s, err := file.New(opts.OutputDir, format)
		if err != nil {
			return nil, err
		}
		return s, nil
	case domain.FormatSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dir := opts.OutputDir
			if dir == "" {
				dir = "."
			}
			dsn = filepath.Join(dir, "mock_data.db")
		}
		return sqlite.New(dsn), nil
	case domain.FormatPostgres:
		if opts.DSN == "" {
			return nil, errors.New("postgres output requires a dsn")
		}
		return postgres.New(opts.DSN, opts.Schema), nil
	case domain.FormatElasticsearch:
		return elasticsearch.New(opts.DSN), nil
	default:
		return nil, &domain.UnsupportedFormatError{Format: opts.Format}
	}
}
