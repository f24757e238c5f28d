package exec

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/generators"
	"github.com/mmrzaf/mockdata/internal/keys"
	"github.com/mmrzaf/mockdata/internal/logging"
	"github.com/mmrzaf/mockdata/internal/metrics"
	"github.com/mmrzaf/mockdata/internal/randsrc"
)

const MaxBatchSize = 1000

// Progress is reported after every finished batch.
type Progress struct {
	Domain    string
	Batch     int
	Batches   int
	Requested int
	Generated int
	Discarded int
}

// Coordinator generates the records of one domain in concurrent batches.
type Coordinator struct {
	Workers   int
	BatchSize int
	Seed      int64
	// SharedKeys forces one locked key set for all batches instead of
	// disjoint per-batch ranges.
	SharedKeys bool
	Now        time.Time
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
	OnProgress func(Progress)
}

type Result struct {
	Records   []domain.Record
	Discarded int
}

// BatchSize returns configured when positive, else count/10 capped at
// MaxBatchSize, never less than one.
func BatchSize(count, configured int) int {
	if configured > 0 {
		return configured
	}
	size := count / 10
	if size > MaxBatchSize {
		size = MaxBatchSize
	}
	if size < 1 {
		size = 1
	}
	return size
}

func quotas(count, size int) []int {
	out := make([]int, 0, (count+size-1)/size)
	for left := count; left > 0; left -= size {
		out = append(out, min(size, left))
	}
	return out
}

// Generate builds up to count records of plan. Records that fail are
// discarded and not replaced, so the result may hold fewer than count.
func (c *Coordinator) Generate(ctx context.Context, plan *Plan, count int, ref domain.ReferenceData) (*Result, error) {
	if count <= 0 {
		return &Result{}, nil
	}
	logger := c.logger()
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}

	parts := quotas(count, BatchSize(count, c.BatchSize))
	allocs, err := c.allocators(plan, count, parts)
	if err != nil {
		return nil, err
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	batches := make([][]domain.Record, len(parts))
	var (
		mu        sync.Mutex
		generated int
		discarded int
	)
	for i, quota := range parts {
		g.Go(func() error {
			recs, dropped, err := c.runBatch(gctx, plan, i, quota, allocs[i], ref, now)
			if err != nil {
				return err
			}
			batches[i] = recs
			c.Metrics.BatchDone(plan.Name(), len(recs), dropped)

			mu.Lock()
			defer mu.Unlock()
			generated += len(recs)
			discarded += dropped
			if c.OnProgress != nil {
				c.OnProgress(Progress{
					Domain:    plan.Name(),
					Batch:     i,
					Batches:   len(parts),
					Requested: count,
					Generated: generated,
					Discarded: discarded,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Records: make([]domain.Record, 0, generated), Discarded: discarded}
	for _, b := range batches {
		res.Records = append(res.Records, b...)
	}

	fields := map[string]any{
		"domain":    plan.Name(),
		"requested": count,
		"generated": len(res.Records),
		"discarded": discarded,
	}
	if len(res.Records) < count {
		logger.Warnw("generation.shortfall", fields)
	} else {
		logger.Infow("generation.completed", fields)
	}
	return res, nil
}

// allocators returns the key allocators of every batch, disjoint ranges
// when the key range allows it and one shared set otherwise.
func (c *Coordinator) allocators(plan *Plan, count int, parts []int) ([]map[string]keys.Allocator, error) {
	out := make([]map[string]keys.Allocator, len(parts))
	for i := range out {
		out[i] = map[string]keys.Allocator{}
	}
	obs := keys.Observer(c.Metrics.KeyCollisions)
	for _, pk := range plan.PrimaryKeys() {
		if err := keys.CheckCapacity(pk.Field, pk.Start, pk.End, count); err != nil {
			return nil, err
		}
		if !c.SharedKeys {
			if split, ok := keys.Partition(pk.Field, pk.Start, pk.End, parts, obs); ok {
				for i := range out {
					out[i][pk.Field] = split[i]
				}
				continue
			}
		}
		shared := keys.NewShared(pk.Field, pk.Start, pk.End, obs)
		for i := range out {
			out[i][pk.Field] = shared
		}
	}
	return out, nil
}

func (c *Coordinator) runBatch(ctx context.Context, plan *Plan, index, quota int, allocs map[string]keys.Allocator, ref domain.ReferenceData, now time.Time) ([]domain.Record, int, error) {
	logger := c.logger()
	gc := &generators.Context{
		Rand:      randsrc.New(c.Seed + int64(index)),
		Keys:      allocs,
		Reference: ref,
		Logger:    logger,
		Now:       now,
	}

	records := make([]domain.Record, 0, quota)
	dropped := 0
	for n := 0; n < quota; n++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		rec, err := plan.Build(gc)
		if err != nil {
			dropped++
			logDiscard(logger, err)
			continue
		}
		records = append(records, rec)
	}
	return records, dropped, nil
}

func (c *Coordinator) logger() *logging.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}

func logDiscard(logger *logging.Logger, err error) {
	fields := map[string]any{"reason": err.Error()}
	if d, ok := err.(*domain.DiscardedRecordError); ok {
		fields["domain"] = d.Domain
		fields["field"] = d.Field
		if d.Err != nil {
			fields["reason"] = d.Err.Error()
		}
	}
	logger.Errorw("record.discarded", fields)
}
