package vm

import "fmt"

// Tag identifies what a cell points to.
type Tag uint8

const (
	DP0 Tag = iota // first output of a dup node
	DP1            // second output of a dup node
	VAR            // occurrence of a lambda variable
	ARG            // back-reference from a binder to its occurrence
	ERA            // erased value
	LAM
	APP
	SUP
	CTR
	FUN
	OP2
	NUM
)

var tagNames = [...]string{"DP0", "DP1", "VAR", "ARG", "ERA", "LAM", "APP", "SUP", "CTR", "FUN", "OP2", "NUM"}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Ptr is one heap cell. Val is a node location, except for NUM where it is
// the number itself. Ext is the dup label for DP0, DP1 and SUP, the symbol
// id for CTR and FUN, and the operator for OP2.
//
// Node layouts:
//
//	LAM [var, body]
//	APP [func, argm]
//	SUP [left, right]
//	DUP [dp0, dp1, expr]
//	OP2 [left, right]
//	CTR, FUN [args...]
type Ptr struct {
	Tag Tag
	Ari uint32
	Ext uint64
	Val uint64
}

func Var(lam uint64) Ptr                 { return Ptr{Tag: VAR, Val: lam} }
func Dp0(label, dup uint64) Ptr          { return Ptr{Tag: DP0, Ext: label, Val: dup} }
func Dp1(label, dup uint64) Ptr          { return Ptr{Tag: DP1, Ext: label, Val: dup} }
func Arg(loc uint64) Ptr                 { return Ptr{Tag: ARG, Val: loc} }
func Era() Ptr                           { return Ptr{Tag: ERA} }
func Lam(loc uint64) Ptr                 { return Ptr{Tag: LAM, Val: loc} }
func App(loc uint64) Ptr                 { return Ptr{Tag: APP, Val: loc} }
func Sup(label, loc uint64) Ptr          { return Ptr{Tag: SUP, Ext: label, Val: loc} }
func Op2(op, loc uint64) Ptr             { return Ptr{Tag: OP2, Ext: op, Val: loc} }
func Num(n uint64) Ptr                   { return Ptr{Tag: NUM, Val: n} }
func Ctr(ari uint32, id, loc uint64) Ptr { return Ptr{Tag: CTR, Ari: ari, Ext: id, Val: loc} }
func Fun(ari uint32, id, loc uint64) Ptr { return Ptr{Tag: FUN, Ari: ari, Ext: id, Val: loc} }

// size is the number of cells of the node p points to.
func (p Ptr) size() uint64 {
	switch p.Tag {
	case LAM, APP, SUP, OP2:
		return 2
	case DP0, DP1:
		return 3
	case CTR, FUN:
		return uint64(p.Ari)
	}
	return 0
}

// withNode returns p pointing at loc instead, keeping tag, arity and ext.
func (p Ptr) withNode(loc uint64) Ptr {
	p.Val = loc
	return p
}

func (p Ptr) String() string {
	switch p.Tag {
	case NUM:
		return fmt.Sprintf("NUM:%d", p.Val)
	case CTR, FUN:
		return fmt.Sprintf("%s:%d/%d@%d", p.Tag, p.Ext, p.Ari, p.Val)
	case DP0, DP1, SUP, OP2:
		return fmt.Sprintf("%s:%d@%d", p.Tag, p.Ext, p.Val)
	}
	return fmt.Sprintf("%s@%d", p.Tag, p.Val)
}
