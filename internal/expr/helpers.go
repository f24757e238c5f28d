package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mmrzaf/mockdata/internal/randsrc"
	"github.com/mmrzaf/mockdata/internal/timeutil"
)

type helper struct {
	// arity is the exact argument count, or -(minimum) for variadic helpers.
	arity int
	fn    func(ev *evaluator, args []any) (any, error)
}

var helpers map[string]helper

func init() {
	helpers = map[string]helper{
		"round":  {-1, roundHelper},
		"abs":    {1, absHelper},
		"min":    {-1, func(_ *evaluator, a []any) (any, error) { return extreme(a, -1) }},
		"max":    {-1, func(_ *evaluator, a []any) (any, error) { return extreme(a, 1) }},
		"int":    {1, intHelper},
		"float":  {1, floatHelper},
		"str":    {1, func(_ *evaluator, a []any) (any, error) { return stringify(a[0]), nil }},
		"upper":  {1, func(_ *evaluator, a []any) (any, error) { return strings.ToUpper(stringify(a[0])), nil }},
		"lower":  {1, func(_ *evaluator, a []any) (any, error) { return strings.ToLower(stringify(a[0])), nil }},
		"len":    {1, func(_ *evaluator, a []any) (any, error) { return int64(len([]rune(stringify(a[0])))), nil }},
		"concat": {-1, concatHelper},

		"now":          {0, func(ev *evaluator, _ []any) (any, error) { return ev.scope.Now, nil }},
		"datetime.now": {0, func(ev *evaluator, _ []any) (any, error) { return ev.scope.Now, nil }},
		"today":        {0, func(ev *evaluator, _ []any) (any, error) { return truncateDay(ev.scope.Now), nil }},
		"date":         {1, dateHelper},
		"datetime":     {1, datetimeHelper},
		"add_days":     {2, func(ev *evaluator, a []any) (any, error) { return shift(ev, a, 24*time.Hour) }},
		"add_hours":    {2, func(ev *evaluator, a []any) (any, error) { return shift(ev, a, time.Hour) }},
		"days_between": {2, daysBetween},
		"year":         {1, func(ev *evaluator, a []any) (any, error) { return part(ev, a[0], func(t time.Time) int { return t.Year() }) }},
		"month":        {1, func(ev *evaluator, a []any) (any, error) { return part(ev, a[0], func(t time.Time) int { return int(t.Month()) }) }},
		"day":          {1, func(ev *evaluator, a []any) (any, error) { return part(ev, a[0], func(t time.Time) int { return t.Day() }) }},

		"random.randint": {2, randint},
		"random.uniform": {2, uniform},
		"random.random":  {0, func(ev *evaluator, _ []any) (any, error) { return ev.rand().FloatRange(0, 1), nil }},
		"random.choice":  {-1, func(ev *evaluator, a []any) (any, error) { return a[ev.rand().Intn(len(a))], nil }},
	}
}

// Helpers lists the callable helper names.
func Helpers() []string {
	out := make([]string, 0, len(helpers)+1)
	for name := range helpers {
		out = append(out, name)
	}
	return append(out, "if")
}

func (ev *evaluator) rand() randsrc.Source {
	return ev.scope.Rand
}

func roundHelper(_ *evaluator, a []any) (any, error) {
	if len(a) > 2 {
		return nil, fmt.Errorf("expected 1 or 2 arguments, got %d", len(a))
	}
	x, ok := asFloat(a[0])
	if !ok {
		return nil, fmt.Errorf("cannot round %T", a[0])
	}
	if len(a) == 1 {
		return int64(math.RoundToEven(x)), nil
	}
	n, ok := a[1].(int64)
	if !ok {
		return nil, fmt.Errorf("digits must be an integer, got %T", a[1])
	}
	return Round(x, int(n)), nil
}

// Round rounds x to the given number of decimal places.
func Round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}

func absHelper(_ *evaluator, a []any) (any, error) {
	switch n := a[0].(type) {
	case int64:
		if n < 0 {
			return -n, nil
		}
		return n, nil
	case float64:
		return math.Abs(n), nil
	}
	return nil, fmt.Errorf("cannot take abs of %T", a[0])
}

func extreme(a []any, sign int) (any, error) {
	best := a[0]
	bf, ok := asFloat(best)
	if !ok {
		return nil, fmt.Errorf("not a number: %T", best)
	}
	for _, v := range a[1:] {
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("not a number: %T", v)
		}
		if (sign < 0 && f < bf) || (sign > 0 && f > bf) {
			best, bf = v, f
		}
	}
	return best, nil
}

func intHelper(_ *evaluator, a []any) (any, error) {
	switch v := a[0].(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	return nil, fmt.Errorf("cannot convert %T to int", a[0])
}

func floatHelper(_ *evaluator, a []any) (any, error) {
	if f, ok := asFloat(a[0]); ok {
		return f, nil
	}
	if s, ok := a[0].(string); ok {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return nil, fmt.Errorf("cannot convert %T to float", a[0])
}

func concatHelper(_ *evaluator, a []any) (any, error) {
	var b strings.Builder
	for _, v := range a {
		b.WriteString(stringify(v))
	}
	return b.String(), nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return Render(x).(string)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func toTime(ev *evaluator, v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		return timeutil.ParseInstant(x, ev.scope.Now)
	}
	return time.Time{}, fmt.Errorf("not a time: %T", v)
}

func dateHelper(ev *evaluator, a []any) (any, error) {
	t, err := toTime(ev, a[0])
	if err != nil {
		return nil, err
	}
	return truncateDay(t), nil
}

func datetimeHelper(ev *evaluator, a []any) (any, error) {
	return toTime(ev, a[0])
}

func shift(ev *evaluator, a []any, unit time.Duration) (any, error) {
	t, err := toTime(ev, a[0])
	if err != nil {
		return nil, err
	}
	n, ok := asFloat(a[1])
	if !ok {
		return nil, fmt.Errorf("offset must be a number, got %T", a[1])
	}
	return t.Add(time.Duration(n * float64(unit))), nil
}

func daysBetween(ev *evaluator, a []any) (any, error) {
	from, err := toTime(ev, a[0])
	if err != nil {
		return nil, err
	}
	to, err := toTime(ev, a[1])
	if err != nil {
		return nil, err
	}
	return int64(to.Sub(from) / (24 * time.Hour)), nil
}

func part(ev *evaluator, v any, fn func(time.Time) int) (any, error) {
	t, err := toTime(ev, v)
	if err != nil {
		return nil, err
	}
	return int64(fn(t)), nil
}

func randint(ev *evaluator, a []any) (any, error) {
	lo, okLo := a[0].(int64)
	hi, okHi := a[1].(int64)
	if !okLo || !okHi {
		return nil, errors.New("bounds must be integers")
	}
	if hi < lo {
		return nil, fmt.Errorf("empty range [%d, %d]", lo, hi)
	}
	return ev.rand().IntRange(lo, hi), nil
}

func uniform(ev *evaluator, a []any) (any, error) {
	lo, okLo := asFloat(a[0])
	hi, okHi := asFloat(a[1])
	if !okLo || !okHi {
		return nil, errors.New("bounds must be numbers")
	}
	return ev.rand().FloatRange(lo, hi), nil
}

// Render converts an evaluation result into a value that can be stored in a
// record: times become ISO strings, midnight times render as dates.
func Render(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	dateOnly := t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
	return timeutil.Render(t, dateOnly)
}
