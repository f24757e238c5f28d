// Package expr evaluates the formulas of computed fields.
//
// The language is deliberately small: arithmetic, comparisons, boolean
// operators, references to fields of the record being built and a fixed set
// of helper functions. Nothing outside the allow-list can be called.
package expr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmrzaf/mockdata/internal/randsrc"
)

// Env resolves field references.
type Env interface {
	Get(name string) (any, bool)
}

// Scope is what a formula can see while it is evaluated.
type Scope struct {
	Env  Env
	Rand randsrc.Source
	Now  time.Time
}

type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("missing field %s", e.Name)
}

var ErrDivisionByZero = errors.New("division by zero")

type Program struct {
	src string
	ast *Expression
}

// Compile parses src and checks every call against the helper allow-list.
func Compile(src string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("empty formula")
	}
	ast, err := formulaParser.ParseString("", src)
	if err != nil {
		return nil, err
	}
	p := &Program{src: src, ast: ast}

	var unknown []string
	walk(ast, func(prim *Primary) {
		if prim.Call != nil {
			if _, ok := helpers[prim.Call.Name]; !ok && prim.Call.Name != "if" {
				unknown = append(unknown, prim.Call.Name)
			}
		}
	})
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown function: %s", strings.Join(unknown, ", "))
	}
	return p, nil
}

func (p *Program) String() string { return p.src }

// Refs returns the distinct identifiers the formula reads, sorted.
func (p *Program) Refs() []string {
	seen := map[string]struct{}{}
	walk(p.ast, func(prim *Primary) {
		if prim.Ident != nil {
			seen[*prim.Ident] = struct{}{}
		}
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p *Program) Eval(scope Scope) (any, error) {
	if scope.Now.IsZero() {
		scope.Now = time.Now()
	}
	if scope.Rand == nil {
		scope.Rand = randsrc.New(scope.Now.UnixNano())
	}
	ev := &evaluator{scope: scope}
	return ev.expression(p.ast)
}

func walk(e *Expression, fn func(*Primary)) {
	if e == nil || e.Or == nil {
		return
	}
	for _, and := range append([]*AndExpr{e.Or.Left}, e.Or.Right...) {
		for _, not := range append([]*NotExpr{and.Left}, and.Right...) {
			for not.Negated != nil {
				not = not.Negated
			}
			cmp := not.Cmp
			for _, sum := range []*SumExpr{cmp.Left, cmp.Right} {
				if sum == nil {
					continue
				}
				products := []*ProductExpr{sum.Left}
				for _, t := range sum.Rest {
					products = append(products, t.Operand)
				}
				for _, prod := range products {
					unaries := []*Unary{prod.Left}
					for _, t := range prod.Rest {
						unaries = append(unaries, t.Operand)
					}
					for _, u := range unaries {
						walkPrimary(u.Operand, fn)
					}
				}
			}
		}
	}
}

func walkPrimary(prim *Primary, fn func(*Primary)) {
	fn(prim)
	if prim.Sub != nil {
		walk(prim.Sub, fn)
	}
	if prim.Call != nil {
		for _, a := range prim.Call.Args {
			walk(a, fn)
		}
	}
}
