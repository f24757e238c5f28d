package expr

import (
	"fmt"
	"math"
	"time"
)

type evaluator struct {
	scope Scope
}

func (ev *evaluator) expression(e *Expression) (any, error) {
	return ev.or(e.Or)
}

func (ev *evaluator) or(e *OrExpr) (any, error) {
	left, err := ev.and(e.Left)
	if err != nil || len(e.Right) == 0 {
		return left, err
	}
	if truthy(left) {
		return true, nil
	}
	for _, r := range e.Right {
		v, err := ev.and(r)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func (ev *evaluator) and(e *AndExpr) (any, error) {
	left, err := ev.not(e.Left)
	if err != nil || len(e.Right) == 0 {
		return left, err
	}
	if !truthy(left) {
		return false, nil
	}
	for _, r := range e.Right {
		v, err := ev.not(r)
		if err != nil {
			return nil, err
		}
		if !truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func (ev *evaluator) not(e *NotExpr) (any, error) {
	if e.Negated == nil {
		return ev.cmp(e.Cmp)
	}
	v, err := ev.not(e.Negated)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

func (ev *evaluator) cmp(e *CmpExpr) (any, error) {
	left, err := ev.sum(e.Left)
	if err != nil || e.Right == nil {
		return left, err
	}
	right, err := ev.sum(e.Right)
	if err != nil {
		return nil, err
	}
	return compare(e.Op, left, right)
}

func (ev *evaluator) sum(e *SumExpr) (any, error) {
	acc, err := ev.product(e.Left)
	if err != nil {
		return nil, err
	}
	for _, t := range e.Rest {
		v, err := ev.product(t.Operand)
		if err != nil {
			return nil, err
		}
		if acc, err = arith(t.Op, acc, v); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (ev *evaluator) product(e *ProductExpr) (any, error) {
	acc, err := ev.unary(e.Left)
	if err != nil {
		return nil, err
	}
	for _, t := range e.Rest {
		v, err := ev.unary(t.Operand)
		if err != nil {
			return nil, err
		}
		if acc, err = arith(t.Op, acc, v); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (ev *evaluator) unary(e *Unary) (any, error) {
	v, err := ev.primary(e.Operand)
	if err != nil {
		return nil, err
	}
	if e.Op == "" {
		return v, nil
	}
	switch n := v.(type) {
	case int64:
		return -n, nil
	case float64:
		return -n, nil
	}
	return nil, fmt.Errorf("cannot negate %T", v)
}

func (ev *evaluator) primary(p *Primary) (any, error) {
	switch {
	case p.Float != nil:
		return *p.Float, nil
	case p.Int != nil:
		return *p.Int, nil
	case p.String != nil:
		return *p.String, nil
	case p.Bool != nil:
		return *p.Bool == "true", nil
	case p.Call != nil:
		return ev.call(p.Call)
	case p.Ident != nil:
		if ev.scope.Env != nil {
			if v, ok := ev.scope.Env.Get(*p.Ident); ok {
				return normalize(v), nil
			}
		}
		return nil, &UnknownFieldError{Name: *p.Ident}
	case p.Sub != nil:
		return ev.expression(p.Sub)
	}
	return nil, fmt.Errorf("empty expression")
}

func (ev *evaluator) call(c *Call) (any, error) {
	if c.Name == "if" {
		if len(c.Args) != 3 {
			return nil, fmt.Errorf("if: expected 3 arguments, got %d", len(c.Args))
		}
		cond, err := ev.expression(c.Args[0])
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return ev.expression(c.Args[1])
		}
		return ev.expression(c.Args[2])
	}

	h, ok := helpers[c.Name]
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", c.Name)
	}
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		v, err := ev.expression(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if h.arity >= 0 && len(args) != h.arity {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", c.Name, h.arity, len(args))
	}
	if h.arity < 0 && len(args) < -h.arity {
		return nil, fmt.Errorf("%s: expected at least %d arguments, got %d", c.Name, -h.arity, len(args))
	}
	v, err := h.fn(ev, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	return v, nil
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case int64:
		return b != 0
	case float64:
		return b != 0
	case string:
		return b != ""
	default:
		return true
	}
}

func asFloat(v any) (float64, bool) {
	switch n := normalize(v).(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func arith(op string, a, b any) (any, error) {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok && op == "+" {
			return sa + sb, nil
		}
		return nil, fmt.Errorf("unsupported operand types for %s: %T and %T", op, a, b)
	}

	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	if aInt && bInt && op != "/" {
		switch op {
		case "+":
			return ia + ib, nil
		case "-":
			return ia - ib, nil
		case "*":
			return ia * ib, nil
		case "%":
			if ib == 0 {
				return nil, ErrDivisionByZero
			}
			// Floor modulo so the sign follows the divisor.
			m := ia % ib
			if m != 0 && (m < 0) != (ib < 0) {
				m += ib
			}
			return m, nil
		}
	}

	fa, okA := asFloat(a)
	fb, okB := asFloat(b)
	if !okA || !okB {
		return nil, fmt.Errorf("unsupported operand types for %s: %T and %T", op, a, b)
	}
	switch op {
	case "+":
		return fa + fb, nil
	case "-":
		return fa - fb, nil
	case "*":
		return fa * fb, nil
	case "/":
		if fb == 0 {
			return nil, ErrDivisionByZero
		}
		return fa / fb, nil
	case "%":
		if fb == 0 {
			return nil, ErrDivisionByZero
		}
		m := math.Mod(fa, fb)
		if m != 0 && (m < 0) != (fb < 0) {
			m += fb
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

func compare(op string, a, b any) (any, error) {
	var c int
	switch {
	case a == nil || b == nil:
		if op != "==" && op != "!=" {
			return nil, fmt.Errorf("cannot order nil")
		}
		eq := a == nil && b == nil
		return eq == (op == "=="), nil
	default:
		if fa, ok := asFloat(a); ok {
			fb, ok := asFloat(b)
			if !ok {
				return nil, fmt.Errorf("cannot compare %T with %T", a, b)
			}
			c = cmp3(fa < fb, fa > fb)
			break
		}
		switch x := a.(type) {
		case string:
			y, ok := b.(string)
			if !ok {
				return nil, fmt.Errorf("cannot compare %T with %T", a, b)
			}
			c = cmp3(x < y, x > y)
		case time.Time:
			y, ok := b.(time.Time)
			if !ok {
				return nil, fmt.Errorf("cannot compare %T with %T", a, b)
			}
			c = cmp3(x.Before(y), x.After(y))
		case bool:
			y, ok := b.(bool)
			if !ok || (op != "==" && op != "!=") {
				return nil, fmt.Errorf("cannot compare %T with %T using %s", a, b, op)
			}
			return (x == y) == (op == "=="), nil
		default:
			return nil, fmt.Errorf("cannot compare %T", a)
		}
	}

	switch op {
	case "==":
		return c == 0, nil
	case "!=":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, fmt.Errorf("unknown comparison %s", op)
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
