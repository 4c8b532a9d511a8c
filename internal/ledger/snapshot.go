package ledger

import (
	"fmt"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/callstate"
	"github.com/funvibe/funledger/internal/crypto"
	"github.com/funvibe/funledger/internal/encoding"
	"github.com/funvibe/funledger/internal/namespace"
	"github.com/funvibe/funledger/internal/registry"
	"google.golang.org/protobuf/encoding/protowire"
)

// Snapshot fields. Symbols are written in id order and exclude the
// built-ins; names and slots are sorted.
const (
	snapHeight protowire.Number = 1
	snapLabels protowire.Number = 2
	snapRoot   protowire.Number = 3
	snapSymbol protowire.Number = 4 // {1: name, 2: kind, 3: repeated field, 4: repeated Rule, 5: init}
	snapName   protowire.Number = 5 // {1: name, 2: owner}
	snapSlot   protowire.Number = 6 // {1: name, 2: term}
)

var genesisSymbols = registry.Genesis().Len()

func appendTermField(b []byte, num protowire.Number, t ast.Term) []byte {
	return encoding.AppendMessage(b, num, func(b []byte) []byte { return encoding.AppendTerm(b, t) })
}

// Encode returns the canonical encoding of s.
func (s *State) Encode() []byte {
	var b []byte
	b = encoding.AppendVarint(b, snapHeight, s.Height)
	b = encoding.AppendVarint(b, snapLabels, s.Labels)
	root := s.Names.Root()
	b = encoding.AppendBytes(b, snapRoot, root[:])
	s.Registry.Each(func(sym *registry.Symbol) {
		if sym.ID < genesisSymbols {
			return
		}
		b = encoding.AppendMessage(b, snapSymbol, func(b []byte) []byte { return appendSymbol(b, sym) })
	})
	for _, name := range s.Names.Names() {
		owner, _ := s.Names.Owner(name)
		b = encoding.AppendMessage(b, snapName, func(b []byte) []byte {
			b = encoding.AppendString(b, 1, name)
			return encoding.AppendBytes(b, 2, owner[:])
		})
	}
	for _, name := range s.Calls.Names() {
		t, _ := s.Calls.Get(name)
		b = encoding.AppendMessage(b, snapSlot, func(b []byte) []byte {
			b = encoding.AppendString(b, 1, name)
			return appendTermField(b, 2, t)
		})
	}
	return b
}

func appendSymbol(b []byte, sym *registry.Symbol) []byte {
	b = encoding.AppendString(b, 1, sym.Name)
	b = encoding.AppendVarint(b, 2, uint64(sym.Kind))
	for _, f := range sym.Fields {
		b = encoding.AppendString(b, 3, f)
	}
	if sym.Func == nil {
		return b
	}
	for _, rule := range sym.Func.Rules {
		b = encoding.AppendMessage(b, 4, func(b []byte) []byte {
			for _, p := range rule.Patterns {
				b = appendTermField(b, 1, p)
			}
			return appendTermField(b, 2, rule.Body)
		})
	}
	if sym.Func.Init != nil {
		b = appendTermField(b, 5, sym.Func.Init)
	}
	return b
}

// DecodeState restores a state written by Encode.
func DecodeState(b []byte) (*State, error) {
	fields, err := encoding.ReadFields(b)
	if err != nil {
		return nil, err
	}
	s := &State{Registry: registry.Genesis(), Calls: callstate.NewStore()}
	for _, f := range fields {
		switch f.Num {
		case snapHeight:
			s.Height = f.Varint
		case snapLabels:
			s.Labels = f.Varint
		case snapRoot:
			if len(f.Bytes) != crypto.SubjectSize {
				return nil, fmt.Errorf("snapshot: root authority has %d bytes", len(f.Bytes))
			}
			var root crypto.Subject
			copy(root[:], f.Bytes)
			s.Names = namespace.New(root)
		case snapSymbol:
			sym, err := decodeSymbol(f.Bytes, s.Registry.Len())
			if err != nil {
				return nil, err
			}
			if s.Registry, err = s.Registry.Restore(sym); err != nil {
				return nil, fmt.Errorf("snapshot: %w", err)
			}
		case snapName:
			if s.Names == nil {
				return nil, fmt.Errorf("snapshot: name before root authority")
			}
			inner, err := encoding.ReadFields(f.Bytes)
			if err != nil {
				return nil, err
			}
			if len(inner) != 2 || len(inner[1].Bytes) != crypto.SubjectSize {
				return nil, fmt.Errorf("snapshot: malformed name entry")
			}
			var owner crypto.Subject
			copy(owner[:], inner[1].Bytes)
			s.Names = s.Names.Restore(string(inner[0].Bytes), owner)
		case snapSlot:
			inner, err := encoding.ReadFields(f.Bytes)
			if err != nil {
				return nil, err
			}
			if len(inner) != 2 {
				return nil, fmt.Errorf("snapshot: malformed slot entry")
			}
			t, err := encoding.DecodeTerm(inner[1].Bytes)
			if err != nil {
				return nil, fmt.Errorf("snapshot: slot %s: %w", inner[0].Bytes, err)
			}
			s.Calls = s.Calls.Init(string(inner[0].Bytes), t)
		default:
			return nil, fmt.Errorf("snapshot: unknown field %d", f.Num)
		}
	}
	if s.Names == nil {
		return nil, fmt.Errorf("snapshot: missing root authority")
	}
	return s, nil
}

func decodeSymbol(b []byte, id uint64) (*registry.Symbol, error) {
	fields, err := encoding.ReadFields(b)
	if err != nil {
		return nil, err
	}
	sym := &registry.Symbol{ID: id}
	var rules []*registry.Rule
	var init ast.Term
	for _, f := range fields {
		switch f.Num {
		case 1:
			sym.Name = string(f.Bytes)
		case 2:
			sym.Kind = registry.Kind(f.Varint)
		case 3:
			sym.Fields = append(sym.Fields, string(f.Bytes))
		case 4:
			rule, err := decodeRule(f.Bytes)
			if err != nil {
				return nil, fmt.Errorf("snapshot: %s: %w", sym.Name, err)
			}
			rules = append(rules, rule)
		case 5:
			if init, err = encoding.DecodeTerm(f.Bytes); err != nil {
				return nil, fmt.Errorf("snapshot: %s: %w", sym.Name, err)
			}
		default:
			return nil, fmt.Errorf("snapshot: unknown symbol field %d", f.Num)
		}
	}
	switch sym.Kind {
	case registry.KindConstructor:
	case registry.KindFunction:
		sym.Func = registry.NewFunction(sym.Arity(), rules, init)
	default:
		return nil, fmt.Errorf("snapshot: %s has unknown kind %d", sym.Name, sym.Kind)
	}
	return sym, nil
}

func decodeRule(b []byte) (*registry.Rule, error) {
	fields, err := encoding.ReadFields(b)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields[len(fields)-1].Num != 2 {
		return nil, fmt.Errorf("rule without a body")
	}
	var patterns []ast.Term
	for _, f := range fields[:len(fields)-1] {
		p, err := encoding.DecodeTerm(f.Bytes)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	body, err := encoding.DecodeTerm(fields[len(fields)-1].Bytes)
	if err != nil {
		return nil, err
	}
	return registry.NewRule(patterns, body), nil
}
