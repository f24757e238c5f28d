package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mmrzaf/mockdata/internal/domain"
)

// HashSchema fingerprints the domains of a schema. Settings and the ID are
// left out so that the same data model hashes the same across files.
func HashSchema(schema *domain.Schema) (string, error) {
	data, err := json.Marshal(schema.Domains)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

type runConfigHashPayload struct {
	SchemaHash   string `json:"schema_hash"`
	OutputFormat string `json:"output_format"`
	TableMode    string `json:"table_mode,omitempty"`
	RecordCount  int    `json:"record_count"`
	Seed         int64  `json:"seed"`
}

// HashRunConfig fingerprints everything that determines a run's output.
func HashRunConfig(schema *domain.Schema, format, tableMode string, recordCount int, seed int64) (string, error) {
	sh, err := HashSchema(schema)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(runConfigHashPayload{
		SchemaHash:   sh,
		OutputFormat: format,
		TableMode:    tableMode,
		RecordCount:  recordCount,
		Seed:         seed,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
