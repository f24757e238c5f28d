package app

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/exec"
	"github.com/mmrzaf/mockdata/internal/hashing"
	"github.com/mmrzaf/mockdata/internal/infra/repos/runs"
	"github.com/mmrzaf/mockdata/internal/infra/repos/schemas"
	"github.com/mmrzaf/mockdata/internal/infra/sinks"
	"github.com/mmrzaf/mockdata/internal/logging"
	"github.com/mmrzaf/mockdata/internal/metrics"
	"github.com/mmrzaf/mockdata/internal/registry"
	"github.com/mmrzaf/mockdata/internal/validation"
)

const defaultFormat = domain.FormatJSON

// RunRequest names a schema and the overrides applied on top of its
// settings. Exactly one of SchemaID, SchemaPath and Schema must be set.
type RunRequest struct {
	SchemaID   string
	SchemaPath string
	Schema     *domain.Schema

	RecordCount *int
	Format      string
	Seed        *int64
	OutputDir   string
	DSN         string
	// Database replaces the database named in a PostgreSQL DSN.
	Database   string
	PGSchema   string
	TableMode  string
	Workers    int
	BatchSize  int
	SharedKeys bool

	OnProgress func(exec.Progress)
}

// Resolved is a request merged with schema settings and defaults.
type Resolved struct {
	Schema      *domain.Schema
	RecordCount int
	Seed        int64
	TableMode   string
	Workers     int
	BatchSize   int
	Sink        sinks.Options
}

type RunService struct {
	schemaRepo schemas.Repository
	runRepo    runs.Repository
	validator  *validation.Validator
	executor   *exec.Executor
	logger     *logging.Logger
	outputDir  string
}

// NewRunService wires the run pipeline. runRepo may be nil, in which case
// no run history is kept.
func NewRunService(
	schemaRepo schemas.Repository,
	runRepo runs.Repository,
	capabilities *registry.CapabilityRegistry,
	logger *logging.Logger,
	m *metrics.Metrics,
	outputDir string,
) *RunService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RunService{
		schemaRepo: schemaRepo,
		runRepo:    runRepo,
		validator:  validation.NewValidator(capabilities),
		executor:   exec.NewExecutor(capabilities, logger, m),
		logger:     logger.WithComponent("run"),
		outputDir:  outputDir,
	}
}

func (s *RunService) LoadSchema(req *RunRequest) (*domain.Schema, error) {
	set := 0
	for _, ok := range []bool{req.SchemaID != "", req.SchemaPath != "", req.Schema != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of schema id, schema path or inline schema must be provided")
	}

	switch {
	case req.Schema != nil:
		return req.Schema, nil
	case req.SchemaPath != "":
		return schemas.Load(req.SchemaPath)
	default:
		if s.schemaRepo == nil {
			return nil, errors.New("no schema repository configured")
		}
		return s.schemaRepo.Get(req.SchemaID)
	}
}

// Resolve applies the request overrides. Flags win over schema settings,
// which win over defaults.
func (s *RunService) Resolve(req *RunRequest) (*Resolved, error) {
	schema, err := s.LoadSchema(req)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	st := schema.Settings

	r := &Resolved{
		Schema:      schema,
		RecordCount: st.RecordCount,
		TableMode:   firstNonEmpty(req.TableMode, st.TableMode, domain.TableModeCreate),
		Workers:     st.Workers,
		BatchSize:   st.BatchSize,
		Sink: sinks.Options{
			Format:    firstNonEmpty(req.Format, st.OutputFormat, defaultFormat),
			OutputDir: firstNonEmpty(req.OutputDir, st.OutputDir, s.outputDir),
			DSN:       firstNonEmpty(req.DSN, st.DSN),
			Schema:    req.PGSchema,
		},
	}
	if req.RecordCount != nil {
		r.RecordCount = *req.RecordCount
	}
	if r.RecordCount < 0 {
		return nil, fmt.Errorf("record count must be >= 0, got %d", r.RecordCount)
	}
	if req.Workers > 0 {
		r.Workers = req.Workers
	}
	if req.BatchSize > 0 {
		r.BatchSize = req.BatchSize
	}
	if !validation.IsValidMode(r.TableMode) {
		return nil, fmt.Errorf("invalid table mode: %s", r.TableMode)
	}
	if req.Database != "" {
		r.Sink.DSN = withDatabase(r.Sink.Format, r.Sink.DSN, req.Database)
	}

	switch {
	case req.Seed != nil:
		r.Seed = *req.Seed
	case st.Seed != nil:
		r.Seed = *st.Seed
	default:
		r.Seed = generateSeed()
	}
	return r, nil
}

func (s *RunService) Validate(req *RunRequest) (*validation.Report, error) {
	schema, err := s.LoadSchema(req)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return s.validator.ValidateSchema(schema), nil
}

type pending struct {
	req  *RunRequest
	res  *Resolved
	sink exec.Sink
	run  *domain.Run
}

// begin resolves the request, builds the sink and records the run. Nothing
// is generated yet.
func (s *RunService) begin(req *RunRequest) (*pending, error) {
	res, err := s.Resolve(req)
	if err != nil {
		return nil, err
	}

	for _, issue := range s.validator.ValidateSchema(res.Schema).Issues {
		s.logger.Warnw("schema.issue", map[string]any{
			"severity": issue.Severity,
			"domain":   issue.Domain,
			"field":    issue.Field,
			"message":  issue.Message,
		})
	}

	sink, err := sinks.New(res.Sink)
	if err != nil {
		return nil, err
	}

	hash, err := hashing.HashSchema(res.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to hash schema: %w", err)
	}

	run := &domain.Run{
		SchemaID:     res.Schema.ID,
		SchemaHash:   hash,
		OutputFormat: res.Sink.Format,
		Seed:         res.Seed,
		Status:       domain.RunStatusRunning,
		StartedAt:    time.Now(),
	}
	if s.runRepo != nil {
		if err := s.runRepo.Create(run); err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}
	return &pending{req: req, res: res, sink: sink, run: run}, nil
}

func (s *RunService) execute(ctx context.Context, p *pending) (*domain.RunStats, error) {
	s.logger.Infow("run.started", map[string]any{
		"run_id":       p.run.ID,
		"schema":       p.res.Schema.ID,
		"format":       p.res.Sink.Format,
		"location":     p.res.Sink.Location(),
		"record_count": p.res.RecordCount,
		"seed":         p.res.Seed,
	})

	stats, err := s.executor.Execute(ctx, p.res.Schema, p.sink, exec.Options{
		Seed:        p.res.Seed,
		RecordCount: p.res.RecordCount,
		TableMode:   p.res.TableMode,
		Workers:     p.res.Workers,
		BatchSize:   p.res.BatchSize,
		SharedKeys:  p.req.SharedKeys,
		OnProgress:  p.req.OnProgress,
	})
	s.finish(p.run, stats, err)
	return stats, err
}

// Run generates the schema synchronously. The returned run is recorded in
// the history even when generation fails part way.
func (s *RunService) Run(ctx context.Context, req *RunRequest) (*domain.Run, *domain.RunStats, error) {
	p, err := s.begin(req)
	if err != nil {
		return nil, nil, err
	}
	stats, err := s.execute(ctx, p)
	return p.run, stats, err
}

// Start records the run and generates it in the background. The returned
// run is a snapshot; poll GetRun for the outcome.
func (s *RunService) Start(ctx context.Context, req *RunRequest) (*domain.Run, error) {
	p, err := s.begin(req)
	if err != nil {
		return nil, err
	}
	snapshot := *p.run
	go func() { _, _ = s.execute(ctx, p) }()
	return &snapshot, nil
}

func (s *RunService) finish(run *domain.Run, stats *domain.RunStats, runErr error) {
	now := time.Now()
	run.CompletedAt = &now
	if stats != nil {
		stats.DurationSeconds = now.Sub(run.StartedAt).Seconds()
		if b, err := json.Marshal(stats); err == nil {
			run.Stats = b
		}
	}

	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
		s.logger.Errorw("run.failed", map[string]any{"run_id": run.ID, "error": runErr})
	} else {
		run.Status = domain.RunStatusSuccess
		s.logger.Infow("run.completed", map[string]any{
			"run_id":        run.ID,
			"domains":       stats.DomainsGenerated,
			"total_records": stats.TotalRecords,
			"duration_s":    stats.DurationSeconds,
		})
	}

	if s.runRepo != nil {
		if err := s.runRepo.Update(run); err != nil {
			s.logger.Error("Failed to update run %s: %v", run.ID, err)
		}
	}
}

func (s *RunService) GetRun(id string) (*domain.Run, error) {
	if s.runRepo == nil {
		return nil, runs.ErrNotFound
	}
	return s.runRepo.Get(id)
}

func (s *RunService) ListRuns(limit int, status string) ([]*domain.Run, error) {
	if s.runRepo == nil {
		return []*domain.Run{}, nil
	}
	return s.runRepo.List(limit, status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func generateSeed() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}
