package vm

import (
	"errors"
	"testing"

	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/parser"
)

// FuzzNormal reduces arbitrary well-formed terms against the test prelude.
// Every outcome must be a classified error or a value, and two runs must
// agree on both the outcome and the mana spent.
func FuzzNormal(f *testing.F) {
	f.Add("(Sum (Gen #4))")
	f.Add("dup a b = @x x; (!a b)")
	f.Add("(Fst {Pair {Leaf #3} #4})")
	f.Add("(Loop #1)")
	f.Add("(/ #1 #0)")
	f.Add("@f @x (!f (!f x))")

	reg := compile(f, prelude)
	f.Fuzz(func(t *testing.T, src string) {
		if len(src) > 512 {
			return
		}
		tm, err := parser.ParseTermString(src)
		if err != nil || reg.Check(tm) != nil {
			return
		}
		run := func() (string, uint64) {
			rt := New(reg, nil, Options{Mana: 2000, HeapLimit: 1 << 14})
			out, err := rt.Normal(tm)
			if err != nil {
				var e *diagnostics.Error
				if !errors.As(err, &e) {
					t.Fatalf("unclassified error: %v", err)
				}
				return "error " + e.Kind.String(), rt.Used()
			}
			return out.String(), rt.Used()
		}
		out1, used1 := run()
		out2, used2 := run()
		if out1 != out2 || used1 != used2 {
			t.Fatalf("runs disagree: %s (%d) vs %s (%d)", out1, used1, out2, used2)
		}
	})
}
