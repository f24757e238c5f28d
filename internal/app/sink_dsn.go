package app

import (
	"net/url"
	"strings"

	"github.com/mmrzaf/mockdata/internal/domain"
)

// withDatabase points dsn at another database. Only PostgreSQL DSNs name a
// database; other formats are returned unchanged.
func withDatabase(format, dsn, database string) string {
	if format != domain.FormatPostgres {
		return dsn
	}
	return withPostgresDatabase(dsn, database)
}

func withPostgresDatabase(dsn, database string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return dsn
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		u.Path = "/" + database
		return u.String()
	}
	parts := strings.Fields(dsn)
	found := false
	for i := range parts {
		if strings.HasPrefix(strings.ToLower(parts[i]), "dbname=") {
			parts[i] = "dbname=" + database
			found = true
			break
		}
	}
	if !found {
		parts = append(parts, "dbname="+database)
	}
	return strings.Join(parts, " ")
}
