package generators

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/timeutil"
)

// DateTime draws a uniform instant, at second resolution, in [Start, End].
type DateTime struct {
	Start    time.Time
	End      time.Time
	DateOnly bool
}

func newDateTime(spec domain.FieldSpec, now time.Time) (*DateTime, error) {
	if spec.Range == nil || spec.Range.Start == nil || spec.Range.End == nil {
		return nil, errors.New("datetime requires range.start and range.end")
	}
	start, err := instant(spec.Range.Start, now)
	if err != nil {
		return nil, fmt.Errorf("range.start: %w", err)
	}
	end, err := instant(spec.Range.End, now)
	if err != nil {
		return nil, fmt.Errorf("range.end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("range.end (%s) is before range.start (%s)", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	g := &DateTime{Start: start, End: end}
	switch spec.Format {
	case "", "datetime":
	case "date":
		g.DateOnly = true
	default:
		return nil, fmt.Errorf("unknown datetime format %q (want date or datetime)", spec.Format)
	}
	return g, nil
}

func instant(v any, now time.Time) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return timeutil.ParseInstant(t, now)
	default:
		return time.Time{}, fmt.Errorf("expected a date string, got %v", v)
	}
}

func (g *DateTime) Generate(ctx *Context) (any, error) {
	sec := ctx.Rand.IntRange(g.Start.Unix(), g.End.Unix())
	return timeutil.Render(time.Unix(sec, 0).In(g.Start.Location()), g.DateOnly), nil
}
