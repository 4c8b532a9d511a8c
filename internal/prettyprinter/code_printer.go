package prettyprinter

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/config"
)

// --- Code Printer (Output looks like source code) ---

// CodePrinter renders statements and terms back to source that the parser
// accepts. IO constructors are printed with the `!action` sugar.
type CodePrinter struct {
	buf       bytes.Buffer
	indent    int
	lineWidth int // max line width (0 = unlimited)
	column    int // current column position
}

func NewCodePrinter() *CodePrinter {
	return &CodePrinter{indent: 0, lineWidth: 100, column: 0}
}

func NewCodePrinterWithWidth(width int) *CodePrinter {
	return &CodePrinter{indent: 0, lineWidth: width, column: 0}
}

func (p *CodePrinter) SetLineWidth(width int) {
	p.lineWidth = width
}

func (p *CodePrinter) String() string {
	return p.buf.String()
}

func (p *CodePrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("  ")
	}
	p.column = p.indent * 2
}

func (p *CodePrinter) write(s string) {
	p.buf.WriteString(s)
	if idx := strings.LastIndex(s, "\n"); idx != -1 {
		p.column = len(s) - idx - 1
	} else {
		p.column += len(s)
	}
}

func (p *CodePrinter) writeln() {
	p.buf.WriteString("\n")
	p.column = 0
}

// fits reports whether s can still go on the current line.
func (p *CodePrinter) fits(s string) bool {
	return p.lineWidth == 0 || p.column+len(s) <= p.lineWidth
}

// Program prints every statement of a program, separated by blank lines.
func (p *CodePrinter) Program(n *ast.Program) {
	for i, stmt := range n.Statements {
		if i > 0 {
			p.writeln()
		}
		p.Statement(stmt)
		p.writeln()
	}
}

func (p *CodePrinter) Statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.RegStatement:
		p.write("reg " + s.Name + " { " + s.Owner.String() + " }")
	case *ast.CtrStatement:
		p.write("ctr {" + s.Name)
		for _, f := range s.Fields {
			p.write(" " + f)
		}
		p.write("}")
	case *ast.FunStatement:
		p.printFun(s)
	case *ast.RunStatement:
		p.write("run {")
		p.indent++
		p.writeln()
		p.writeIndent()
		p.block(s.Body)
		p.indent--
		p.writeln()
		p.writeIndent()
		p.write("}")
	default:
		p.write("<???>")
	}
	if sig := stmt.Signature(); sig != nil {
		p.write(" sign { " + sig.String() + " }")
	}
}

func (p *CodePrinter) printFun(s *ast.FunStatement) {
	p.write("fun (" + s.Name)
	for _, a := range s.Args {
		p.write(" " + a)
	}
	p.write(") {")
	p.indent++
	for _, rule := range s.Rules {
		p.writeln()
		p.writeIndent()
		p.write("(" + rule.Name)
		for _, pat := range rule.Patterns {
			p.write(" ")
			p.term(pat)
		}
		p.write(") =")
		if body := Term(rule.Body); p.fits(" " + body) {
			p.write(" " + body)
			continue
		}
		p.indent++
		p.writeln()
		p.writeIndent()
		p.block(rule.Body)
		p.indent--
	}
	p.indent--
	if len(s.Rules) > 0 {
		p.writeln()
		p.writeIndent()
	}
	p.write("}")
	if s.Init != nil {
		p.write(" with { ")
		p.term(s.Init)
		p.write(" }")
	}
}

// block prints a chain of actions and dups one step per line.
func (p *CodePrinter) block(t ast.Term) {
	for {
		switch n := t.(type) {
		case *ast.Dup:
			p.write("dup " + n.Nam0 + " " + n.Nam1 + " = ")
			p.term(n.Expr)
			p.write(";")
			t = n.Body
		case *ast.Ctr:
			rest, ok := p.action(n)
			if !ok {
				p.term(t)
				return
			}
			if rest == nil {
				return
			}
			t = rest
		default:
			p.term(t)
			return
		}
		p.writeln()
		p.writeIndent()
	}
}

// action prints the head of an IO action and returns its continuation, or
// nil for the final !done and !fail. It reports false when n is not an
// action in the sugared shape.
func (p *CodePrinter) action(n *ast.Ctr) (ast.Term, bool) {
	cont := func(i int) (*ast.Lam, bool) {
		if len(n.Args) != i+1 {
			return nil, false
		}
		lam, ok := n.Args[i].(*ast.Lam)
		return lam, ok
	}
	switch n.Name {
	case config.IODone, config.IOFail:
		if len(n.Args) != 1 {
			return nil, false
		}
		word := "!done "
		if n.Name == config.IOFail {
			word = "!fail "
		}
		p.write(word)
		p.term(n.Args[0])
		return nil, true

	case config.IOTake, config.IOLoad, config.IOTick:
		lam, ok := cont(0)
		if !ok {
			return nil, false
		}
		word := map[string]string{config.IOTake: "!take ", config.IOLoad: "!load ", config.IOTick: "!tick "}[n.Name]
		p.write(word + lam.Name)
		return lam.Body, true

	case config.IOSave:
		lam, ok := cont(1)
		if !ok || lam.Name != ast.Erased {
			return nil, false
		}
		p.write("!save ")
		p.term(n.Args[0])
		return lam.Body, true

	case config.IOCall:
		lam, ok := cont(2)
		if !ok {
			return nil, false
		}
		tuple, ok := n.Args[1].(*ast.Ctr)
		if !ok || tuple.Name != config.TupleName(len(tuple.Args)) {
			return nil, false
		}
		p.write("!call " + lam.Name + " ")
		p.term(n.Args[0])
		p.write(" [")
		for i, a := range tuple.Args {
			if i > 0 {
				p.write(" ")
			}
			p.term(a)
		}
		p.write("]")
		return lam.Body, true
	}
	return nil, false
}

// term prints t on the current line.
func (p *CodePrinter) term(t ast.Term) {
	switch n := t.(type) {
	case nil:
		p.write("<???>")
	case *ast.Var:
		p.write(n.Name)
	case *ast.Num:
		p.write("#" + strconv.FormatUint(n.Value, 10))
	case *ast.Ref:
		p.write("'" + n.Name + "'")
	case *ast.Ctr:
		if rest, ok := p.action(n); ok {
			if rest != nil {
				p.write("; ")
				p.term(rest)
			}
			return
		}
		p.write("{" + n.Name)
		p.args(n.Args)
		p.write("}")
	case *ast.Fun:
		p.write("(" + n.Name)
		p.args(n.Args)
		p.write(")")
	case *ast.Op2:
		p.write("(" + n.Op.String() + " ")
		p.term(n.Left)
		p.write(" ")
		p.term(n.Right)
		p.write(")")
	case *ast.Dup:
		p.write("dup " + n.Nam0 + " " + n.Nam1 + " = ")
		p.term(n.Expr)
		p.write("; ")
		p.term(n.Body)
	case *ast.Lam:
		p.write("@" + n.Name + " ")
		p.term(n.Body)
	case *ast.App:
		p.write("(!")
		p.term(n.Func)
		p.write(" ")
		p.term(n.Argm)
		p.write(")")
	case *ast.Sup:
		p.write("&" + strconv.FormatUint(n.Label, 10) + "{")
		p.term(n.Left)
		p.write(" ")
		p.term(n.Right)
		p.write("}")
	default:
		p.write(t.String())
	}
}

func (p *CodePrinter) args(args []ast.Term) {
	for _, a := range args {
		p.write(" ")
		p.term(a)
	}
}

// Term renders t on one line.
func Term(t ast.Term) string {
	p := NewCodePrinterWithWidth(0)
	p.term(t)
	return p.String()
}

// Statement renders one statement, signature included.
func Statement(stmt ast.Statement) string {
	p := NewCodePrinter()
	p.Statement(stmt)
	return p.String()
}

// Program renders a whole program.
func Program(n *ast.Program) string {
	p := NewCodePrinter()
	p.Program(n)
	return p.String()
}
