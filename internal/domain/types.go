package domain

import (
	"encoding/json"
	"time"
)

// Document is the top-level layout of a schema file.
type Document struct {
	Generator Schema `json:"mock_data_generator" yaml:"mock_data_generator"`
}

type Schema struct {
	ID       string         `json:"id,omitempty" yaml:"id,omitempty"`
	Settings Settings       `json:"settings" yaml:"settings"`
	Domains  []DomainSchema `json:"domains" yaml:"domains"`
}

type Settings struct {
	RecordCount  int    `json:"record_count" yaml:"record_count"`
	OutputFormat string `json:"output_format" yaml:"output_format"`
	OutputDir    string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	DSN          string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	TableMode    string `json:"table_mode,omitempty" yaml:"table_mode,omitempty"`
	Seed         *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	Workers      int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	BatchSize    int    `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
}

type DomainSchema struct {
	Name               string        `json:"name" yaml:"name"`
	UniqueCombinations bool          `json:"unique_combinations,omitempty" yaml:"unique_combinations,omitempty"`
	Combinations       *Combinations `json:"combinations,omitempty" yaml:"combinations,omitempty"`
	Fields             []FieldSpec   `json:"fields" yaml:"fields"`
}

// Combinations names the anchor fields used when a domain is enumerated
// instead of sampled.
type Combinations struct {
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Axes        []string `json:"axes,omitempty" yaml:"axes,omitempty"`
}

const (
	DefaultCategoryField    = "category_name"
	DefaultSubcategoryField = "subcategory_name"
	DefaultAxisField        = "product_color"
)

func (d *DomainSchema) Anchors() Combinations {
	c := Combinations{
		Category:    DefaultCategoryField,
		Subcategory: DefaultSubcategoryField,
		Axes:        []string{DefaultAxisField},
	}
	if d.Combinations == nil {
		return c
	}
	if d.Combinations.Category != "" {
		c.Category = d.Combinations.Category
	}
	if d.Combinations.Subcategory != "" {
		c.Subcategory = d.Combinations.Subcategory
	}
	if len(d.Combinations.Axes) > 0 {
		c.Axes = d.Combinations.Axes
	}
	return c
}

func (d *DomainSchema) Field(name string) (*FieldSpec, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

type FieldKind string

const (
	KindPrimaryKey     FieldKind = "primary_key"
	KindString         FieldKind = "string"
	KindInteger        FieldKind = "integer"
	KindFloat          FieldKind = "float"
	KindDateTime       FieldKind = "datetime"
	KindPredefinedList FieldKind = "predefined_list"
	KindRelationship   FieldKind = "relationship"
	KindDependency     FieldKind = "dependency"
	KindComputed       FieldKind = "computed"
)

func (k FieldKind) Known() bool {
	switch k {
	case KindPrimaryKey, KindString, KindInteger, KindFloat, KindDateTime,
		KindPredefinedList, KindRelationship, KindDependency, KindComputed:
		return true
	default:
		return false
	}
}

type FieldSpec struct {
	Name          string      `json:"name" yaml:"name"`
	Kind          FieldKind   `json:"type" yaml:"type"`
	Range         *Range      `json:"range,omitempty" yaml:"range,omitempty"`
	Faker         string      `json:"faker,omitempty" yaml:"faker,omitempty"`
	Values        []any       `json:"values,omitempty" yaml:"values,omitempty"`
	Probabilities []float64   `json:"probabilities,omitempty" yaml:"probabilities,omitempty"`
	Relation      *Relation   `json:"relation,omitempty" yaml:"relation,omitempty"`
	Dependency    *Dependency `json:"dependency,omitempty" yaml:"dependency,omitempty"`
	Formula       string      `json:"formula,omitempty" yaml:"formula,omitempty"`
	Precision     *int        `json:"precision,omitempty" yaml:"precision,omitempty"`
	Format        string      `json:"format,omitempty" yaml:"format,omitempty"`
}

// Range holds either start/end (keys, datetimes) or min/max (numbers).
type Range struct {
	Start any `json:"start,omitempty" yaml:"start,omitempty"`
	End   any `json:"end,omitempty" yaml:"end,omitempty"`
	Min   any `json:"min,omitempty" yaml:"min,omitempty"`
	Max   any `json:"max,omitempty" yaml:"max,omitempty"`
}

type Relation struct {
	Domain string `json:"domain" yaml:"domain"`
	Field  string `json:"field" yaml:"field"`
}

// Dependency maps the value of another field of the same record to an
// outcome: a scalar, a list to pick from or a {min, max} range.
type Dependency struct {
	Field  string         `json:"field" yaml:"field"`
	Values map[string]any `json:"values" yaml:"values"`
}

// ReferenceData holds the records of every domain generated so far.
type ReferenceData map[string][]Record

type Run struct {
	ID           string          `json:"id"`
	SchemaID     string          `json:"schema_id"`
	SchemaHash   string          `json:"schema_hash"`
	OutputFormat string          `json:"output_format"`
	Seed         int64           `json:"seed"`
	Status       RunStatus       `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Stats        json.RawMessage `json:"stats,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

type RunStats struct {
	DomainsGenerated int              `json:"domains_generated"`
	TotalRecords     int64            `json:"total_records"`
	DurationSeconds  float64          `json:"duration_seconds"`
	DomainStats      []DomainRunStats `json:"domain_stats"`
}

type DomainRunStats struct {
	Domain          string  `json:"domain"`
	Requested       int     `json:"requested"`
	Generated       int     `json:"generated"`
	Discarded       int     `json:"discarded"`
	Enumerated      bool    `json:"enumerated,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

const (
	FormatJSON          = "json"
	FormatCSV           = "csv"
	FormatSQLite        = "sqlite"
	FormatPostgres      = "postgres"
	FormatElasticsearch = "elasticsearch"
)

const (
	TableModeCreate   = "create"
	TableModeTruncate = "truncate"
	TableModeAppend   = "append"
)

type ColumnType string

const (
	ColumnTypeInt   ColumnType = "int"
	ColumnTypeFloat ColumnType = "float"
	ColumnTypeBool  ColumnType = "bool"
	ColumnTypeText  ColumnType = "text"
)

// Table describes how a domain lands in a database or index.
type Table struct {
	Name    string
	Columns []Column
}

type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
