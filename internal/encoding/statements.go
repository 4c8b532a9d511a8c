package encoding

import (
	"errors"
	"fmt"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/crypto"
	"google.golang.org/protobuf/encoding/protowire"
)

// Statement is a message with one of the statement fields set and, when
// signed, the signature.
const (
	stmtReg protowire.Number = 1  // {1: name, 2: owner}
	stmtCtr protowire.Number = 2  // {1: name, 2: repeated field}
	stmtFun protowire.Number = 3  // {1: name, 2: repeated arg, 3: repeated Rule, 4: init}
	stmtRun protowire.Number = 4  // {1: body}
	stmtSig protowire.Number = 15 // 65 bytes
)

// Rule is {1: repeated pattern, 2: body}. The rule head is the function name.

// AppendStatement appends the canonical encoding of s. The signature is
// included only when signed is set.
func AppendStatement(b []byte, s ast.Statement, signed bool) []byte {
	switch s := s.(type) {
	case *ast.RegStatement:
		b = AppendMessage(b, stmtReg, func(b []byte) []byte {
			b = AppendString(b, 1, s.Name)
			return AppendBytes(b, 2, s.Owner[:])
		})
	case *ast.CtrStatement:
		b = AppendMessage(b, stmtCtr, func(b []byte) []byte {
			b = AppendString(b, 1, s.Name)
			for _, f := range s.Fields {
				b = AppendString(b, 2, f)
			}
			return b
		})
	case *ast.FunStatement:
		b = AppendMessage(b, stmtFun, func(b []byte) []byte {
			b = AppendString(b, 1, s.Name)
			for _, a := range s.Args {
				b = AppendString(b, 2, a)
			}
			for _, r := range s.Rules {
				b = AppendMessage(b, 3, func(b []byte) []byte {
					for _, p := range r.Patterns {
						b = appendChild(b, 1, p)
					}
					return appendChild(b, 2, r.Body)
				})
			}
			if s.Init != nil {
				b = appendChild(b, 4, s.Init)
			}
			return b
		})
	case *ast.RunStatement:
		b = AppendMessage(b, stmtRun, func(b []byte) []byte { return appendChild(b, 1, s.Body) })
	default:
		panic(fmt.Sprintf("encoding: unknown statement %T", s))
	}
	if sig := s.Signature(); signed && sig != nil {
		b = AppendBytes(b, stmtSig, sig[:])
	}
	return b
}

// EncodeStatement returns the canonical encoding of s with its signature.
func EncodeStatement(s ast.Statement) []byte { return AppendStatement(nil, s, true) }

// SigningHash is the digest a statement's signature covers: keccak256 of
// the unsigned encoding.
func SigningHash(s ast.Statement) crypto.Hash {
	return crypto.Keccak256(AppendStatement(nil, s, false))
}

// DecodeStatement parses a statement written by AppendStatement.
func DecodeStatement(b []byte) (ast.Statement, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || len(fields) > 2 {
		return nil, fmt.Errorf("statement has %d fields", len(fields))
	}
	var stmt ast.Statement
	body := fields[0]
	if err := expect(body, protowire.BytesType); err != nil {
		return nil, err
	}
	switch body.Num {
	case stmtReg:
		stmt, err = decodeReg(body.Bytes)
	case stmtCtr:
		stmt, err = decodeCtr(body.Bytes)
	case stmtFun:
		stmt, err = decodeFun(body.Bytes)
	case stmtRun:
		stmt, err = decodeRun(body.Bytes)
	default:
		return nil, fmt.Errorf("unknown statement field %d", body.Num)
	}
	if err != nil {
		return nil, err
	}
	if len(fields) == 2 {
		f := fields[1]
		if f.Num != stmtSig || len(f.Bytes) != crypto.SignatureSize {
			return nil, errors.New("malformed signature field")
		}
		var sig crypto.Signature
		copy(sig[:], f.Bytes)
		stmt.SetSignature(&sig)
	}
	return stmt, nil
}

func decodeReg(b []byte) (ast.Statement, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return nil, err
	}
	if len(fields) != 2 || fields[0].Num != 1 || fields[1].Num != 2 || len(fields[1].Bytes) != crypto.SubjectSize {
		return nil, errors.New("malformed reg statement")
	}
	s := &ast.RegStatement{Name: string(fields[0].Bytes)}
	copy(s.Owner[:], fields[1].Bytes)
	return s, nil
}

func decodeCtr(b []byte) (ast.Statement, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields[0].Num != 1 {
		return nil, errors.New("malformed ctr statement")
	}
	s := &ast.CtrStatement{Name: string(fields[0].Bytes), Fields: []string{}}
	for _, f := range fields[1:] {
		if f.Num != 2 {
			return nil, fmt.Errorf("unexpected ctr field %d", f.Num)
		}
		s.Fields = append(s.Fields, string(f.Bytes))
	}
	return s, nil
}

func decodeFun(b []byte) (ast.Statement, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields[0].Num != 1 {
		return nil, errors.New("malformed fun statement")
	}
	s := &ast.FunStatement{Name: string(fields[0].Bytes), Args: []string{}}
	last := protowire.Number(1)
	for _, f := range fields[1:] {
		if f.Num < last || f.Num > 4 || (f.Num == 4 && last == 4) {
			return nil, fmt.Errorf("unexpected fun field %d", f.Num)
		}
		last = f.Num
		switch f.Num {
		case 2:
			s.Args = append(s.Args, string(f.Bytes))
		case 3:
			rule, err := decodeRule(s.Name, f.Bytes)
			if err != nil {
				return nil, err
			}
			s.Rules = append(s.Rules, rule)
		case 4:
			if s.Init, err = DecodeTerm(f.Bytes); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func decodeRule(name string, b []byte) (*ast.Rule, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields[len(fields)-1].Num != 2 {
		return nil, errors.New("rule without a body")
	}
	r := &ast.Rule{Name: name, Patterns: []ast.Term{}}
	for _, f := range fields[:len(fields)-1] {
		if f.Num != 1 {
			return nil, fmt.Errorf("unexpected rule field %d", f.Num)
		}
		p, err := DecodeTerm(f.Bytes)
		if err != nil {
			return nil, err
		}
		r.Patterns = append(r.Patterns, p)
	}
	if r.Body, err = DecodeTerm(fields[len(fields)-1].Bytes); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeRun(b []byte) (ast.Statement, error) {
	fields, err := ReadFields(b)
	if err != nil {
		return nil, err
	}
	if len(fields) != 1 || fields[0].Num != 1 {
		return nil, errors.New("malformed run statement")
	}
	body, err := DecodeTerm(fields[0].Bytes)
	if err != nil {
		return nil, err
	}
	return &ast.RunStatement{Body: body}, nil
}
