package encoding

import (
	"errors"
	"fmt"

	"github.com/funvibe/funledger/internal/ast"
	"google.golang.org/protobuf/encoding/protowire"
)

// Term is a message with exactly one of these fields set.
const (
	termVar protowire.Number = 1  // string name
	termNum protowire.Number = 2  // varint value
	termCtr protowire.Number = 3  // Call
	termFun protowire.Number = 4  // Call
	termOp2 protowire.Number = 5  // {1: op, 2: left, 3: right}
	termDup protowire.Number = 6  // {1: nam0, 2: nam1, 3: expr, 4: body}
	termLam protowire.Number = 7  // {1: name, 2: body}
	termApp protowire.Number = 8  // {1: func, 2: argm}
	termRef protowire.Number = 9  // string name
	termSup protowire.Number = 10 // {1: label, 2: left, 3: right}
)

// Call is {1: name, 2: repeated args}.

// AppendTerm appends the canonical encoding of t.
func AppendTerm(b []byte, t ast.Term) []byte {
	switch t := t.(type) {
	case *ast.Var:
		return AppendString(b, termVar, t.Name)
	case *ast.Num:
		return AppendVarint(b, termNum, t.Value)
	case *ast.Ref:
		return AppendString(b, termRef, t.Name)
	case *ast.Ctr:
		return AppendMessage(b, termCtr, func(b []byte) []byte { return appendCall(b, t.Name, t.Args) })
	case *ast.Fun:
		return AppendMessage(b, termFun, func(b []byte) []byte { return appendCall(b, t.Name, t.Args) })
	case *ast.Op2:
		return AppendMessage(b, termOp2, func(b []byte) []byte {
			b = AppendVarint(b, 1, uint64(t.Op))
			b = appendChild(b, 2, t.Left)
			return appendChild(b, 3, t.Right)
		})
	case *ast.Dup:
		return AppendMessage(b, termDup, func(b []byte) []byte {
			b = AppendString(b, 1, t.Nam0)
			b = AppendString(b, 2, t.Nam1)
			b = appendChild(b, 3, t.Expr)
			return appendChild(b, 4, t.Body)
		})
	case *ast.Lam:
		return AppendMessage(b, termLam, func(b []byte) []byte {
			b = AppendString(b, 1, t.Name)
			return appendChild(b, 2, t.Body)
		})
	case *ast.App:
		return AppendMessage(b, termApp, func(b []byte) []byte {
			b = appendChild(b, 1, t.Func)
			return appendChild(b, 2, t.Argm)
		})
	case *ast.Sup:
		return AppendMessage(b, termSup, func(b []byte) []byte {
			b = AppendVarint(b, 1, t.Label)
			b = appendChild(b, 2, t.Left)
			return appendChild(b, 3, t.Right)
		})
	}
	panic(fmt.Sprintf("encoding: unknown term %T", t))
}

// EncodeTerm returns the canonical encoding of t.
func EncodeTerm(t ast.Term) []byte { return AppendTerm(nil, t) }

func appendCall(b []byte, name string, args []ast.Term) []byte {
	b = AppendString(b, 1, name)
	for _, a := range args {
		b = appendChild(b, 2, a)
	}
	return b
}

func appendChild(b []byte, num protowire.Number, t ast.Term) []byte {
	return AppendMessage(b, num, func(b []byte) []byte { return AppendTerm(b, t) })
}

// DecodeTerm parses a term written by AppendTerm. The decoder keeps its own
// stack of open nodes, so any term that could be encoded decodes back
// regardless of how deeply it nests.
func DecodeTerm(b []byte) (ast.Term, error) {
	var stack []*openNode
	next := b
	for {
		t, node, err := openTerm(next)
		if err != nil {
			return nil, err
		}
		if node != nil {
			if len(node.kids) > 0 {
				stack = append(stack, node)
				next = node.kids[0]
				continue
			}
			t = node.build()
		}
		for {
			if len(stack) == 0 {
				return t, nil
			}
			top := stack[len(stack)-1]
			top.terms = append(top.terms, t)
			if len(top.terms) < len(top.kids) {
				next = top.kids[len(top.terms)]
				break
			}
			stack = stack[:len(stack)-1]
			t = top.build()
		}
	}
}

// openNode is a decoded node header whose children are still encoded.
type openNode struct {
	kind  protowire.Number
	name  string // constructor, function or binder name; first dup output
	name1 string // second dup output
	value uint64 // operator or label
	kids  [][]byte
	terms []ast.Term
}

func (n *openNode) build() ast.Term {
	switch n.kind {
	case termCtr:
		return &ast.Ctr{Name: n.name, Args: n.terms}
	case termFun:
		return &ast.Fun{Name: n.name, Args: n.terms}
	case termOp2:
		return &ast.Op2{Op: ast.Oper(n.value), Left: n.terms[0], Right: n.terms[1]}
	case termSup:
		return &ast.Sup{Label: n.value, Left: n.terms[0], Right: n.terms[1]}
	case termApp:
		return &ast.App{Func: n.terms[0], Argm: n.terms[1]}
	case termLam:
		return &ast.Lam{Name: n.name, Body: n.terms[0]}
	case termDup:
		return &ast.Dup{Nam0: n.name, Nam1: n.name1, Expr: n.terms[0], Body: n.terms[1]}
	}
	panic(fmt.Sprintf("encoding: cannot build term field %d", n.kind))
}

// openTerm reads one term message. Leaves come back as terms, everything
// else as an openNode whose children the caller decodes.
func openTerm(b []byte) (ast.Term, *openNode, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return nil, nil, err
	}
	if len(fields) != 1 {
		return nil, nil, fmt.Errorf("term has %d fields, expected 1", len(fields))
	}
	f := fields[0]
	n := &openNode{kind: f.Num}
	switch f.Num {
	case termVar:
		return &ast.Var{Name: string(f.Bytes)}, nil, expect(f, protowire.BytesType)
	case termNum:
		return &ast.Num{Value: f.Varint}, nil, expect(f, protowire.VarintType)
	case termRef:
		return &ast.Ref{Name: string(f.Bytes)}, nil, expect(f, protowire.BytesType)
	case termCtr, termFun:
		n.name, n.kids, err = readCall(f.Bytes)
	case termOp2, termSup:
		n.value, n.kids, err = readNode(f.Bytes, 2)
	case termApp:
		n.kids, err = readChildren(f.Bytes, 1, 2)
	case termLam:
		inner, err := ReadFields(f.Bytes)
		if err != nil {
			return nil, nil, err
		}
		if len(inner) != 2 || inner[0].Num != 1 || inner[1].Num != 2 {
			return nil, nil, errors.New("malformed lambda")
		}
		n.name, n.kids = string(inner[0].Bytes), [][]byte{inner[1].Bytes}
	case termDup:
		inner, err := ReadFields(f.Bytes)
		if err != nil {
			return nil, nil, err
		}
		if len(inner) != 4 || inner[0].Num != 1 || inner[1].Num != 2 || inner[2].Num != 3 || inner[3].Num != 4 {
			return nil, nil, errors.New("malformed dup")
		}
		n.name, n.name1 = string(inner[0].Bytes), string(inner[1].Bytes)
		n.kids = [][]byte{inner[2].Bytes, inner[3].Bytes}
	default:
		return nil, nil, fmt.Errorf("unknown term field %d", f.Num)
	}
	if err != nil {
		return nil, nil, err
	}
	n.terms = make([]ast.Term, 0, len(n.kids))
	return nil, n, nil
}

// readCall reads {1: name, 2: repeated args}.
func readCall(b []byte) (string, [][]byte, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return "", nil, err
	}
	if len(fields) == 0 || fields[0].Num != 1 {
		return "", nil, errors.New("call without a name")
	}
	args := make([][]byte, 0, len(fields)-1)
	for _, f := range fields[1:] {
		if f.Num != 2 {
			return "", nil, fmt.Errorf("unexpected call field %d", f.Num)
		}
		args = append(args, f.Bytes)
	}
	return string(fields[0].Bytes), args, nil
}

// readNode reads {1: varint, 2..n+1: terms}.
func readNode(b []byte, n int) (uint64, [][]byte, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return 0, nil, err
	}
	if len(fields) != n+1 || fields[0].Num != 1 || fields[0].Type != protowire.VarintType {
		return 0, nil, errors.New("malformed node")
	}
	kids, err := childFields(fields[1:], 2)
	return fields[0].Varint, kids, err
}

func readChildren(b []byte, first protowire.Number, n int) ([][]byte, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return nil, err
	}
	if len(fields) != n {
		return nil, errors.New("malformed node")
	}
	return childFields(fields, first)
}

func childFields(fields []Field, first protowire.Number) ([][]byte, error) {
	out := make([][]byte, len(fields))
	for i, f := range fields {
		if f.Num != first+protowire.Number(i) {
			return nil, fmt.Errorf("unexpected field %d", f.Num)
		}
		out[i] = f.Bytes
	}
	return out, nil
}
