package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/generators"
	"github.com/mmrzaf/mockdata/internal/logging"
	"github.com/mmrzaf/mockdata/internal/metrics"
	"github.com/mmrzaf/mockdata/internal/registry"
)

// Sink receives the records of each domain once the domain is complete.
type Sink interface {
	Connect() error
	Close() error
	CreateTableIfNotExists(table *domain.Table) error
	TruncateTable(name string) error
	InsertBatch(name string, columns []string, rows [][]any) error
	// Commit is called after the last batch of a domain.
	Commit(name string) error
}

const insertBatchSize = 1000

type Options struct {
	Seed        int64
	RecordCount int
	TableMode   string
	Workers     int
	BatchSize   int
	SharedKeys  bool
	Now         time.Time
	OnProgress  func(Progress)
}

type Executor struct {
	capabilities *registry.CapabilityRegistry
	logger       *logging.Logger
	metrics      *metrics.Metrics
}

func NewExecutor(capabilities *registry.CapabilityRegistry, logger *logging.Logger, m *metrics.Metrics) *Executor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{capabilities: capabilities, logger: logger.WithComponent("executor"), metrics: m}
}

// Prepare orders the domains and compiles every plan. It fails on
// configuration errors so that nothing is generated from a broken schema.
func (e *Executor) Prepare(schema *domain.Schema, now time.Time) ([]*Plan, error) {
	ordered, err := OrderDomains(schema.Domains)
	if err != nil {
		return nil, err
	}
	env := generators.Env{Capabilities: e.capabilities, Now: now}
	plans := make([]*Plan, 0, len(ordered))
	for _, d := range ordered {
		plan, err := Compile(d, env)
		if err != nil {
			return nil, err
		}
		if d.UniqueCombinations {
			if _, err := plan.anchors(); err != nil {
				return nil, err
			}
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Execute generates every domain in dependency order and hands each one to
// sink. A domain that cannot be generated at all stops the run: domains
// after it are neither generated nor written, and the stats so far are
// returned with the error.
func (e *Executor) Execute(ctx context.Context, schema *domain.Schema, sink Sink, opts Options) (*domain.RunStats, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	plans, err := e.Prepare(schema, opts.Now)
	if err != nil {
		return nil, err
	}

	if err := sink.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to sink: %w", err)
	}
	defer sink.Close()

	runStart := time.Now()
	ref := domain.ReferenceData{}
	stats := &domain.RunStats{DomainStats: make([]domain.DomainRunStats, 0, len(plans))}

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ds, records, err := e.generateDomain(ctx, plan, ref, opts)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			e.logger.Errorw("domain.failed", map[string]any{"domain": plan.Name(), "error": err})
			stats.DomainStats = append(stats.DomainStats, ds)
			stats.DurationSeconds = time.Since(runStart).Seconds()
			return stats, fmt.Errorf("domain '%s': %w", plan.Name(), err)
		}
		ref[plan.Name()] = records

		if err := e.write(plan, records, sink, opts.TableMode); err != nil {
			return stats, fmt.Errorf("failed to write domain '%s': %w", plan.Name(), err)
		}
		stats.DomainStats = append(stats.DomainStats, ds)
		stats.TotalRecords += int64(ds.Generated)
		stats.DomainsGenerated++
	}
	stats.DurationSeconds = time.Since(runStart).Seconds()
	return stats, nil
}

func (e *Executor) generateDomain(ctx context.Context, plan *Plan, ref domain.ReferenceData, opts Options) (domain.DomainRunStats, []domain.Record, error) {
	start := time.Now()
	ds := domain.DomainRunStats{Domain: plan.Name(), Requested: opts.RecordCount}

	c := &Coordinator{
		Workers:    opts.Workers,
		BatchSize:  opts.BatchSize,
		Seed:       opts.Seed,
		SharedKeys: opts.SharedKeys,
		Now:        opts.Now,
		Logger:     e.logger.With(map[string]any{"domain": plan.Name()}),
		Metrics:    e.metrics,
		OnProgress: opts.OnProgress,
	}

	var (
		res *Result
		err error
	)
	if plan.Schema.UniqueCombinations {
		ds.Enumerated = true
		res, err = c.Enumerate(ctx, plan, ref)
	} else {
		res, err = c.Generate(ctx, plan, opts.RecordCount, ref)
	}
	ds.DurationSeconds = time.Since(start).Seconds()
	e.metrics.DomainDone(plan.Name(), time.Since(start))
	if err != nil {
		return ds, nil, err
	}
	ds.Generated = len(res.Records)
	ds.Discarded = res.Discarded
	if ds.Enumerated {
		ds.Requested = len(res.Records) + res.Discarded
	}
	return ds, res.Records, nil
}

func (e *Executor) write(plan *Plan, records []domain.Record, sink Sink, mode string) error {
	if len(records) == 0 {
		e.logger.Errorw("domain.empty", map[string]any{"domain": plan.Name()})
		return nil
	}
	table := plan.Table(&records[0])

	if mode == "" {
		mode = domain.TableModeCreate
	}
	switch mode {
	case domain.TableModeCreate:
		if err := sink.CreateTableIfNotExists(&table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	case domain.TableModeTruncate:
		if err := sink.CreateTableIfNotExists(&table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
		if err := sink.TruncateTable(table.Name); err != nil {
			return fmt.Errorf("failed to truncate table: %w", err)
		}
	case domain.TableModeAppend:
	default:
		return fmt.Errorf("unknown table mode: %s", mode)
	}

	columns := records[0].Keys()
	batch := make([][]any, 0, insertBatchSize)
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i], _ = rec.Get(col)
		}
		batch = append(batch, row)
		if len(batch) >= insertBatchSize {
			if err := sink.InsertBatch(table.Name, columns, batch); err != nil {
				return fmt.Errorf("failed to insert batch: %w", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := sink.InsertBatch(table.Name, columns, batch); err != nil {
			return fmt.Errorf("failed to insert final batch: %w", err)
		}
	}
	if err := sink.Commit(table.Name); err != nil {
		return err
	}
	e.logger.Infow("domain.completed", map[string]any{
		"domain":  plan.Name(),
		"records": len(records),
	})
	return nil
}
