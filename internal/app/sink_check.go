package app

import (
	"fmt"
	"time"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/exec"
	"github.com/mmrzaf/mockdata/internal/infra/sinks"
)

type SinkCapabilities struct {
	CanCreate   bool `json:"can_create"`
	CanInsert   bool `json:"can_insert"`
	CanTruncate bool `json:"can_truncate"`
}

// SinkCheck is the outcome of connecting to an output and probing it.
type SinkCheck struct {
	Format       string           `json:"format"`
	Location     string           `json:"location,omitempty"`
	OK           bool             `json:"ok"`
	Error        string           `json:"error,omitempty"`
	LatencyMS    int64            `json:"latency_ms"`
	CheckedAt    time.Time        `json:"checked_at"`
	Capabilities SinkCapabilities `json:"capabilities"`
}

// CheckSink connects to the output described by opts and, when probe is
// set, creates an empty scratch table, inserts one row and truncates it.
func CheckSink(opts sinks.Options, probe bool) (*SinkCheck, error) {
	check := &SinkCheck{
		Format:    opts.Format,
		Location:  opts.Location(),
		CheckedAt: time.Now().UTC(),
	}

	sink, err := sinks.New(opts)
	if err != nil {
		check.Error = err.Error()
		return check, err
	}

	start := time.Now()
	err = sink.Connect()
	check.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		check.Error = err.Error()
		return check, err
	}
	defer sink.Close()

	check.OK = true
	if probe {
		check.Capabilities = probeCapabilities(sink)
	}
	return check, nil
}

func probeCapabilities(sink exec.Sink) SinkCapabilities {
	table := &domain.Table{
		Name:    fmt.Sprintf("mockdata_check_%d", time.Now().UnixNano()),
		Columns: []domain.Column{{Name: "id", Type: domain.ColumnTypeInt, PrimaryKey: true}},
	}

	var caps SinkCapabilities
	if err := sink.CreateTableIfNotExists(table); err != nil {
		return caps
	}
	caps.CanCreate = true

	if err := sink.InsertBatch(table.Name, []string{"id"}, [][]any{{int64(1)}}); err != nil {
		return caps
	}
	caps.CanInsert = true

	if err := sink.TruncateTable(table.Name); err != nil {
		return caps
	}
	caps.CanTruncate = true
	return caps
}
