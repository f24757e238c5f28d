package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/exec"
	"github.com/mmrzaf/mockdata/internal/generators"
	"github.com/mmrzaf/mockdata/internal/registry"
)

type Validator struct {
	capabilities *registry.CapabilityRegistry
}

func NewValidator(capabilities *registry.CapabilityRegistry) *Validator {
	if capabilities == nil {
		capabilities = registry.DefaultCapabilityRegistry()
	}
	return &Validator{capabilities: capabilities}
}

// identifier validation: domain and field names become table and column names.
var (
	identRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reservedWords = map[string]struct{}{
		"add": {}, "all": {}, "alter": {}, "and": {}, "any": {}, "as": {},
		"asc": {}, "between": {}, "by": {}, "case": {}, "check": {},
		"column": {}, "constraint": {}, "create": {}, "cross": {}, "current_date": {},
		"current_time": {}, "current_timestamp": {}, "database": {}, "default": {}, "delete": {},
		"desc": {}, "distinct": {}, "do": {}, "drop": {}, "else": {},
		"end": {}, "except": {}, "exists": {}, "false": {}, "for": {},
		"foreign": {}, "from": {}, "full": {}, "grant": {}, "group": {},
		"having": {}, "in": {}, "index": {}, "inner": {}, "insert": {},
		"intersect": {}, "into": {}, "is": {}, "join": {}, "key": {},
		"left": {}, "like": {}, "limit": {}, "natural": {}, "not": {},
		"null": {}, "offset": {}, "on": {}, "or": {}, "order": {},
		"outer": {}, "primary": {}, "references": {}, "returning": {}, "revoke": {},
		"right": {}, "schema": {}, "select": {}, "set": {}, "table": {},
		"then": {}, "to": {}, "true": {}, "truncate": {}, "union": {},
		"unique": {}, "update": {}, "user": {}, "using": {}, "values": {},
		"view": {}, "when": {}, "where": {}, "with": {},
	}
)

// IsValidIdentifier accepts plain identifiers that need no quoting in SQL.
func IsValidIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if !identRe.MatchString(s) {
		return false
	}
	_, reserved := reservedWords[strings.ToLower(s)]
	return !reserved
}

func isReserved(s string) bool {
	_, ok := reservedWords[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func IsValidMode(mode string) bool {
	switch mode {
	case domain.TableModeCreate, domain.TableModeTruncate, domain.TableModeAppend:
		return true
	default:
		return false
	}
}

func IsValidFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case domain.FormatJSON, domain.FormatCSV, domain.FormatSQLite,
		domain.FormatPostgres, domain.FormatElasticsearch:
		return true
	default:
		return false
	}
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding. Domain and Field are empty for schema-wide issues.
type Issue struct {
	Severity Severity `json:"severity"`
	Domain   string   `json:"domain,omitempty"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	var where []string
	if i.Domain != "" {
		where = append(where, "domain '"+i.Domain+"'")
	}
	if i.Field != "" {
		where = append(where, "field '"+i.Field+"'")
	}
	if len(where) == 0 {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Severity, strings.Join(where, ", "), i.Message)
}

type Report struct {
	Issues []Issue `json:"issues"`
}

func (r *Report) add(sev Severity, domainName, field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Domain: domainName, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) Errors() []Issue   { return r.filter(SeverityError) }
func (r *Report) Warnings() []Issue { return r.filter(SeverityWarning) }

func (r *Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// Err joins every error-level issue, or returns nil when there is none.
func (r *Report) Err() error {
	var errs []error
	for _, i := range r.Errors() {
		errs = append(errs, errors.New(i.String()))
	}
	return errors.Join(errs...)
}

// ValidateSchema checks a schema without generating anything. Warnings
// describe problems that only discard records at run time.
func (v *Validator) ValidateSchema(schema *domain.Schema) *Report {
	r := &Report{}
	if schema == nil || len(schema.Domains) == 0 {
		r.add(SeverityError, "", "", "schema must declare at least one domain")
		return r
	}
	v.validateSettings(r, &schema.Settings)

	domains := make(map[string]*domain.DomainSchema, len(schema.Domains))
	for i := range schema.Domains {
		d := &schema.Domains[i]
		switch {
		case strings.TrimSpace(d.Name) == "":
			r.add(SeverityError, "", "", "domain #%d has no name", i+1)
			continue
		case !identRe.MatchString(d.Name):
			r.add(SeverityError, d.Name, "", "invalid domain identifier")
		case isReserved(d.Name):
			r.add(SeverityWarning, d.Name, "", "domain name is an SQL keyword and will be quoted")
		}
		if _, dup := domains[d.Name]; dup {
			r.add(SeverityError, d.Name, "", "duplicate domain name")
			continue
		}
		domains[d.Name] = d
	}

	for i := range schema.Domains {
		d := &schema.Domains[i]
		if d.Name == "" {
			continue
		}
		v.validateDomain(r, d, domains, schema.Settings.RecordCount)
	}

	if _, err := exec.OrderDomains(schema.Domains); err != nil {
		r.add(SeverityError, "", "", "%v", err)
	}
	return r
}

func (v *Validator) validateSettings(r *Report, s *domain.Settings) {
	if s.RecordCount < 0 {
		r.add(SeverityError, "", "", "record_count must be >= 0, got %d", s.RecordCount)
	}
	if s.OutputFormat != "" && !IsValidFormat(s.OutputFormat) {
		r.add(SeverityError, "", "", "%v", &domain.UnsupportedFormatError{Format: s.OutputFormat})
	}
	if s.TableMode != "" && !IsValidMode(s.TableMode) {
		r.add(SeverityError, "", "", "invalid table_mode: %s", s.TableMode)
	}
	if s.Workers < 0 {
		r.add(SeverityError, "", "", "workers must be >= 0, got %d", s.Workers)
	}
	if s.BatchSize < 0 || s.BatchSize > exec.MaxBatchSize {
		r.add(SeverityError, "", "", "batch_size must be between 0 and %d, got %d", exec.MaxBatchSize, s.BatchSize)
	}
}

func (v *Validator) validateDomain(r *Report, d *domain.DomainSchema, domains map[string]*domain.DomainSchema, count int) {
	if len(d.Fields) == 0 {
		r.add(SeverityError, d.Name, "", "domain must declare at least one field")
		return
	}

	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		switch {
		case strings.TrimSpace(f.Name) == "":
			r.add(SeverityError, d.Name, "", "field without a name")
			continue
		case !identRe.MatchString(f.Name):
			r.add(SeverityError, d.Name, f.Name, "invalid field identifier")
		case isReserved(f.Name):
			r.add(SeverityWarning, d.Name, f.Name, "field name is an SQL keyword and will be quoted")
		}
		if seen[f.Name] {
			r.add(SeverityError, d.Name, f.Name, "duplicate field name")
		}
		seen[f.Name] = true

		if !f.Kind.Known() {
			r.add(SeverityWarning, d.Name, f.Name, "unsupported field type '%s'; every record will be discarded", f.Kind)
		}
		if f.Kind == domain.KindRelationship && f.Relation != nil {
			target, ok := domains[f.Relation.Domain]
			switch {
			case !ok:
				r.add(SeverityError, d.Name, f.Name, "referenced domain '%s' not found", f.Relation.Domain)
			case f.Relation.Field != "":
				if _, ok := target.Field(f.Relation.Field); !ok {
					r.add(SeverityError, d.Name, f.Name, "referenced field '%s.%s' not found", f.Relation.Domain, f.Relation.Field)
				}
			}
		}
	}

	plan, err := exec.Compile(d, generators.Env{Capabilities: v.capabilities, Now: time.Now()})
	if err != nil {
		r.add(SeverityError, d.Name, "", "%v", err)
		return
	}
	for _, f := range plan.Fields {
		if err := plan.FieldErrors[f.Name]; err != nil {
			r.add(SeverityError, d.Name, f.Name, "%v", err)
		}
	}

	if d.UniqueCombinations {
		if err := plan.CheckAnchors(); err != nil {
			r.add(SeverityError, d.Name, "", "%v", err)
		}
		return
	}
	for _, pk := range plan.PrimaryKeys() {
		if size := pk.End - pk.Start + 1; int64(count) > size {
			r.add(SeverityError, d.Name, pk.Field, "%v", &domain.KeyRangeExhaustedError{Field: pk.Field, Start: pk.Start, End: pk.End, Requested: count})
		}
	}
}
