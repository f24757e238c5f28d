package expr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

type Expression struct {
	Or *OrExpr `parser:"@@"`
}

type OrExpr struct {
	Left  *AndExpr   `parser:"@@"`
	Right []*AndExpr `parser:"( ( 'or' | '||' ) @@ )*"`
}

type AndExpr struct {
	Left  *NotExpr   `parser:"@@"`
	Right []*NotExpr `parser:"( ( 'and' | '&&' ) @@ )*"`
}

// NotExpr binds looser than comparisons: not a == b is not (a == b).
type NotExpr struct {
	Negated *NotExpr `parser:"  ( 'not' | '!' ) @@"`
	Cmp     *CmpExpr `parser:"| @@"`
}

type CmpExpr struct {
	Left  *SumExpr `parser:"@@"`
	Op    string   `parser:"( @( '==' | '!=' | '<=' | '>=' | '<' | '>' )"`
	Right *SumExpr `parser:"  @@ )?"`
}

type SumExpr struct {
	Left *ProductExpr `parser:"@@"`
	Rest []*SumTail   `parser:"@@*"`
}

type SumTail struct {
	Op      string       `parser:"@( '+' | '-' )"`
	Operand *ProductExpr `parser:"@@"`
}

type ProductExpr struct {
	Left *Unary         `parser:"@@"`
	Rest []*ProductTail `parser:"@@*"`
}

type ProductTail struct {
	Op      string `parser:"@( '*' | '/' | '%' )"`
	Operand *Unary `parser:"@@"`
}

type Unary struct {
	Op      string   `parser:"@'-'?"`
	Operand *Primary `parser:"@@"`
}

type Primary struct {
	Float  *float64    `parser:"  @Float"`
	Int    *int64      `parser:"| @Int"`
	String *string     `parser:"| @String"`
	Bool   *string     `parser:"| @( 'true' | 'false' )"`
	Call   *Call       `parser:"| @@"`
	Ident  *string     `parser:"| @Ident"`
	Sub    *Expression `parser:"| '(' @@ ')'"`
}

type Call struct {
	Name string        `parser:"@Ident '('"`
	Args []*Expression `parser:"( @@ ( ',' @@ )* )? ')'"`
}

var formulaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Float", Pattern: `\d+\.\d*|\.\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "String", Pattern: `"(\\"|[^"])*"|'(\\'|[^'])*'`},
	{Name: "Op", Pattern: `==|!=|<=|>=|&&|\|\||[-+*/%<>(),!]`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)*`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var formulaParser = participle.MustBuild[Expression](
	participle.Lexer(formulaLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)
