package exec

import (
	"context"
	"time"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/generators"
	"github.com/mmrzaf/mockdata/internal/keys"
	"github.com/mmrzaf/mockdata/internal/randsrc"
)

type anchors struct {
	key         *generators.PrimaryKey
	category    string
	categories  *generators.PredefinedList
	subcategory string
	subs        *generators.Dependency
	axes        []string
	axisValues  [][]any
}

func (p *Plan) anchors() (*anchors, error) {
	names := p.Schema.Anchors()
	a := &anchors{category: names.Category, subcategory: names.Subcategory}
	var missing []string

	if pks := p.PrimaryKeys(); len(pks) > 0 {
		a.key = pks[0]
	} else {
		missing = append(missing, "primary_key")
	}

	if g, ok := p.generator(names.Category); ok {
		a.categories, _ = g.(*generators.PredefinedList)
	}
	if a.categories == nil {
		missing = append(missing, names.Category)
	}

	if g, ok := p.generator(names.Subcategory); ok {
		if d, ok := g.(*generators.Dependency); ok && d.Target == names.Category {
			a.subs = d
		}
	}
	if a.subs == nil {
		missing = append(missing, names.Subcategory)
	}

	for _, axis := range names.Axes {
		g, _ := p.generator(axis)
		list, ok := g.(*generators.PredefinedList)
		if !ok {
			missing = append(missing, axis)
			continue
		}
		a.axes = append(a.axes, axis)
		a.axisValues = append(a.axisValues, list.Values)
	}

	if len(missing) > 0 {
		return nil, &domain.MissingRequiredFieldError{Domain: p.Name(), Fields: missing}
	}
	return a, nil
}

// CheckAnchors reports whether the plan carries every field that
// enumeration needs.
func (p *Plan) CheckAnchors() error {
	_, err := p.anchors()
	return err
}

// combinations lists every (category, subcategory, axes...) tuple as the
// fixed values of one record, in declaration order.
func (a *anchors) combinations() ([]map[string]any, error) {
	var out []map[string]any
	for _, cat := range a.categories.Values {
		probe := domain.NewRecord(1)
		probe.Set(a.category, cat)
		subs, err := a.subs.Options(&probe)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			base := map[string]any{a.category: cat, a.subcategory: sub}
			out = append(out, a.expand(base, 0)...)
		}
	}
	return out, nil
}

func (a *anchors) expand(base map[string]any, axis int) []map[string]any {
	if axis == len(a.axes) {
		return []map[string]any{base}
	}
	var out []map[string]any
	for _, v := range a.axisValues[axis] {
		next := make(map[string]any, len(base)+1)
		for k, bv := range base {
			next[k] = bv
		}
		next[a.axes[axis]] = v
		out = append(out, a.expand(next, axis+1)...)
	}
	return out
}

// Enumerate produces exactly one record per anchor combination instead of
// sampling. Keys count up from the start of the key range.
func (c *Coordinator) Enumerate(ctx context.Context, plan *Plan, ref domain.ReferenceData) (*Result, error) {
	logger := c.logger()
	a, err := plan.anchors()
	if err != nil {
		return nil, err
	}
	combos, err := a.combinations()
	if err != nil {
		return nil, err
	}
	pk := a.key
	if err := keys.CheckCapacity(pk.Field, pk.Start, pk.End, len(combos)); err != nil {
		return nil, err
	}

	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	// Other primary keys, if any, still draw from their own ranges.
	allocs := map[string]keys.Allocator{}
	for _, other := range plan.PrimaryKeys() {
		if other != pk {
			allocs[other.Field] = keys.NewLocal(other.Field, other.Start, other.End, keys.Observer(c.Metrics.KeyCollisions))
		}
	}
	gc := &generators.Context{
		Rand:      randsrc.New(c.Seed),
		Keys:      allocs,
		Reference: ref,
		Logger:    logger,
		Now:       now,
	}

	res := &Result{Records: make([]domain.Record, 0, len(combos))}
	for i, fixed := range combos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fixed[pk.Field] = pk.Start + int64(i)
		rec := domain.NewRecord(len(plan.Fields))
		if err := plan.fill(gc, &rec, fixed); err != nil {
			res.Discarded++
			logDiscard(logger, err)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	c.Metrics.BatchDone(plan.Name(), len(res.Records), res.Discarded)
	logger.Infow("generation.enumerated", map[string]any{
		"domain":       plan.Name(),
		"combinations": len(combos),
		"generated":    len(res.Records),
		"discarded":    res.Discarded,
	})
	return res, nil
}
