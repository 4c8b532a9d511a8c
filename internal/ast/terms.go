package ast

import (
	"strconv"
	"strings"
)

// Term is the tree form of an expression. Terms are immutable once built:
// definitions, persisted call state and run outputs all share them freely.
type Term interface {
	termNode()
	String() string
}

// Erased is the binder name for a value that is never used.
const Erased = "~"

type Var struct {
	Name string
}

type Num struct {
	Value uint64
}

// Ctr is a constructor with ordered fields: {Name a b}
type Ctr struct {
	Name string
	Args []Term
}

// Fun is a function application by name: (Name a b)
type Fun struct {
	Name string
	Args []Term
}

type Op2 struct {
	Op    Oper
	Left  Term
	Right Term
}

// Dup binds two names to lazily duplicated copies of Expr within Body.
type Dup struct {
	Nam0 string
	Nam1 string
	Expr Term
	Body Term
}

type Lam struct {
	Name string
	Body Term
}

type App struct {
	Func Term
	Argm Term
}

// Ref is a function reference literal: 'Name'
type Ref struct {
	Name string
}

// Sup is a superposition. It never comes out of the parser; it only appears
// when a normal form still carries an unresolved duplication scope.
type Sup struct {
	Label uint64
	Left  Term
	Right Term
}

func (*Var) termNode() {}
func (*Num) termNode() {}
func (*Ctr) termNode() {}
func (*Fun) termNode() {}
func (*Op2) termNode() {}
func (*Dup) termNode() {}
func (*Lam) termNode() {}
func (*App) termNode() {}
func (*Ref) termNode() {}
func (*Sup) termNode() {}

func (t *Var) String() string { return t.Name }
func (t *Num) String() string { return "#" + strconv.FormatUint(t.Value, 10) }
func (t *Ref) String() string { return "'" + t.Name + "'" }

func (t *Ctr) String() string { return "{" + headed(t.Name, t.Args) + "}" }
func (t *Fun) String() string { return "(" + headed(t.Name, t.Args) + ")" }

func (t *Op2) String() string {
	return "(" + t.Op.String() + " " + t.Left.String() + " " + t.Right.String() + ")"
}

func (t *Dup) String() string {
	return "dup " + t.Nam0 + " " + t.Nam1 + " = " + t.Expr.String() + "; " + t.Body.String()
}

func (t *Lam) String() string { return "@" + t.Name + " " + t.Body.String() }
func (t *App) String() string { return "(!" + t.Func.String() + " " + t.Argm.String() + ")" }

func (t *Sup) String() string {
	return "&" + strconv.FormatUint(t.Label, 10) + "{" + t.Left.String() + " " + t.Right.String() + "}"
}

func headed(name string, args []Term) string {
	var sb strings.Builder
	sb.WriteString(name)
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(a.String())
	}
	return sb.String()
}

// Oper is a binary numeric operator.
type Oper uint8

const (
	ADD Oper = iota
	SUB
	MUL
	DIV
	MOD
	AND
	OR
	XOR
	SHL
	SHR
	LTN
	LTE
	EQL
	GTE
	GTN
	NEQ
)

var operSymbols = [...]string{
	ADD: "+", SUB: "-", MUL: "*", DIV: "/", MOD: "%",
	AND: "&", OR: "|", XOR: "^", SHL: "<<", SHR: ">>",
	LTN: "<", LTE: "<=", EQL: "==", GTE: ">=", GTN: ">", NEQ: "!=",
}

func (o Oper) String() string {
	if int(o) < len(operSymbols) {
		return operSymbols[o]
	}
	return "?"
}

// LookupOper maps an operator symbol to its Oper.
func LookupOper(sym string) (Oper, bool) {
	for i, s := range operSymbols {
		if s == sym {
			return Oper(i), true
		}
	}
	return 0, false
}

// Apply computes o on two numbers. Division and modulo by zero yield 0 and
// shifts by 64 or more yield 0.
func (o Oper) Apply(a, b uint64) uint64 {
	switch o {
	case ADD:
		return a + b
	case SUB:
		return a - b
	case MUL:
		return a * b
	case DIV:
		if b == 0 {
			return 0
		}
		return a / b
	case MOD:
		if b == 0 {
			return 0
		}
		return a % b
	case AND:
		return a & b
	case OR:
		return a | b
	case XOR:
		return a ^ b
	case SHL:
		return a << b
	case SHR:
		return a >> b
	case LTN:
		return boolNum(a < b)
	case LTE:
		return boolNum(a <= b)
	case EQL:
		return boolNum(a == b)
	case GTE:
		return boolNum(a >= b)
	case GTN:
		return boolNum(a > b)
	case NEQ:
		return boolNum(a != b)
	}
	return 0
}

func boolNum(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
