package sinks

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mmrzaf/mockdata/internal/domain"
)

const masked = "****"

var keywordSecret = regexp.MustCompile(`(?i)\b(password|pwd|pass)=('[^']*'|\S+)`)

// Location describes where the sink writes, with credentials masked, for
// logs and run history.
func (o Options) Location() string {
	switch o.Format {
	case domain.FormatJSON, domain.FormatCSV:
		return o.OutputDir
	case domain.FormatSQLite:
		// mattn DSNs carry auth settings in the query string
		path, _, _ := strings.Cut(strings.TrimSpace(o.DSN), "?")
		return path
	case domain.FormatPostgres:
		return maskPostgres(strings.TrimSpace(o.DSN))
	case domain.FormatElasticsearch:
		return maskURL(strings.TrimSpace(o.DSN))
	default:
		if o.DSN == "" {
			return ""
		}
		return masked
	}
}

func maskPostgres(dsn string) string {
	if strings.Contains(dsn, "://") {
		return maskURL(dsn)
	}
	return keywordSecret.ReplaceAllString(dsn, "${1}="+masked)
}

func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return masked
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), masked)
	}
	q := u.Query()
	for k := range q {
		switch strings.ToLower(k) {
		case "password", "pwd", "pass":
			q.Set(k, masked)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
