package ledger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/crypto"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/encoding"
	"github.com/funvibe/funledger/internal/parser"
)

const counter = `
ctr {Inc}
ctr {Get}
fun (Counter action) {
  (Counter {Inc}) = !take x; !save (+ x #1); !done #0
  (Counter {Get}) = !load x; !done x
} with { #0 }
`

var testOptions = Options{Mana: 100000, HeapLimit: 1 << 20}

func key(t *testing.T, b byte) *secp256k1.PrivateKey {
	t.Helper()
	k, err := crypto.ParseKey(strings.Repeat(string("0123456789abcdef"[b%16])+"1", 32))
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func subject(k *secp256k1.PrivateKey) crypto.Subject {
	return crypto.SubjectOf(k.PubKey())
}

func parse(t *testing.T, src string) []ast.Statement {
	t.Helper()
	program, err := parser.Parse("test.fl", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return program.Statements
}

// signed parses src and signs every statement with k.
func signed(t *testing.T, k *secp256k1.PrivateKey, src string) []ast.Statement {
	t.Helper()
	stmts := parse(t, src)
	for _, s := range stmts {
		sig := crypto.Sign(k, encoding.SigningHash(s))
		s.SetSignature(&sig)
	}
	return stmts
}

func apply(p *Processor, height uint64, stmts ...ast.Statement) []Result {
	return p.ApplyBlock(height, PrepareAll(stmts))
}

func expectCommitted(t *testing.T, results []Result) {
	t.Helper()
	for _, r := range results {
		if r.Status != Committed {
			t.Fatalf("statement %d (%s) rejected: %v", r.Index, r.Kind, r.Err)
		}
	}
}

func expectRejected(t *testing.T, r Result, kind diagnostics.Kind) {
	t.Helper()
	if r.Status != Rejected || r.Err == nil || r.Err.Kind != kind {
		t.Fatalf("statement %d: expected %s, got status %s err %v", r.Index, kind, r.Status, r.Err)
	}
}

func TestCounter(t *testing.T) {
	p := NewProcessor(Genesis(crypto.Root), testOptions)
	expectCommitted(t, apply(p, 1, parse(t, counter)...))

	inc := parse(t, "run { !call r 'Counter' [{Inc}] !done r }")[0]
	results := apply(p, 2, inc, inc, inc)
	expectCommitted(t, results)

	results = apply(p, 3, parse(t, "run { !call r 'Counter' [{Get}] !done r }")...)
	expectCommitted(t, results)
	if got := results[0].Output.String(); got != "#3" {
		t.Errorf("expected #3, got %s", got)
	}
	if results[0].ManaUsed == 0 {
		t.Error("expected the run to spend mana")
	}

	results = apply(p, 4, parse(t, `run {
  !call a 'Counter' [{Inc}]
  !call b 'Counter' [{Inc}]
  !call c 'Counter' [{Inc}]
  !call r 'Counter' [{Get}]
  !done r
}`)...)
	expectCommitted(t, results)
	if got := results[0].Output.String(); got != "#6" {
		t.Errorf("expected #6, got %s", got)
	}
}

func TestAuthorizationHierarchy(t *testing.T) {
	alice, bob, carol := key(t, 1), key(t, 2), key(t, 3)
	p := NewProcessor(Genesis(crypto.Root), testOptions)

	reg := func(name string, owner *secp256k1.PrivateKey) string {
		return "reg " + name + " { " + subject(owner).String() + " }"
	}

	expectCommitted(t, apply(p, 1, parse(t, reg("Foo", alice))...))

	res := apply(p, 2, signed(t, carol, reg("Foo.Bar", bob))...)
	expectRejected(t, res[0], diagnostics.Unauthorized)

	expectCommitted(t, apply(p, 3, signed(t, alice, reg("Foo.Bar", bob))...))

	res = apply(p, 4, signed(t, alice, reg("Foo.Bar.cats", carol))...)
	expectRejected(t, res[0], diagnostics.Unauthorized)
	expectCommitted(t, apply(p, 5, signed(t, bob, reg("Foo.Bar.cats", carol))...))

	// top-level names belong to the root authority
	res = apply(p, 6, signed(t, alice, reg("Baz", alice))...)
	expectRejected(t, res[0], diagnostics.Unauthorized)

	// declarations follow the longest registered prefix
	res = apply(p, 7, signed(t, alice, "ctr {Foo.Bar.Pair a b}")...)
	expectRejected(t, res[0], diagnostics.Unauthorized)
	expectCommitted(t, apply(p, 8, signed(t, bob, "ctr {Foo.Bar.Pair a b}")...))
	expectCommitted(t, apply(p, 9, signed(t, alice, "ctr {Foo.Nil}")...))
	res = apply(p, 10, parse(t, "ctr {Foo.Cons h t}")...)
	expectRejected(t, res[0], diagnostics.Unauthorized)

	if owner, _ := p.State().Names.Owner("Foo.Bar.cats"); owner != subject(carol) {
		t.Errorf("Foo.Bar.cats owned by %s", owner)
	}
}

func TestRegistrationCollision(t *testing.T) {
	alice, bob := key(t, 1), key(t, 2)
	p := NewProcessor(Genesis(crypto.Root), testOptions)
	first := parse(t, "reg Foo { "+subject(alice).String()+" }")
	second := parse(t, "reg Foo { "+subject(bob).String()+" }")
	res := apply(p, 1, first[0], second[0])
	if res[0].Status != Committed {
		t.Fatalf("first registration rejected: %v", res[0].Err)
	}
	expectRejected(t, res[1], diagnostics.AlreadyRegistered)
	if owner, _ := p.State().Names.Owner("Foo"); owner != subject(alice) {
		t.Errorf("Foo changed owner to %s", owner)
	}

	res = apply(p, 2, parse(t, "ctr {Pair a b}\nctr {Pair x y}\nfun (Pair x) { (Pair x) = x }")...)
	if res[0].Status != Committed {
		t.Fatal(res[0].Err)
	}
	expectRejected(t, res[1], diagnostics.AlreadyDeclared)
	expectRejected(t, res[2], diagnostics.AlreadyDeclared)
}

func TestCallStateExclusivity(t *testing.T) {
	p := NewProcessor(Genesis(crypto.Root), testOptions)
	expectCommitted(t, apply(p, 1, parse(t, counter+`
fun (Box action) {
  (Box {Inc}) = !take x; !take y; !done x
  (Box {Get}) = !save #1; !done #0
  (Box #0) = !take x; !load y; !done y
  (Box #1) = !take x; !done x
  (Box #2) = !load x; !load y; !done {T2 x y}
} with { #7 }
fun (Plain x) {
  (Plain x) = !take y; !done y
}
`)...))

	tests := []struct {
		input string
		kind  diagnostics.Kind
	}{
		{"run { !call r 'Box' [{Inc}] !done r }", diagnostics.AlreadyTaken},
		{"run { !call r 'Box' [{Get}] !done r }", diagnostics.NotTaken},
		{"run { !call r 'Box' [#0] !done r }", diagnostics.AlreadyTaken},
		{"run { !call r 'Plain' [#0] !done r }", diagnostics.UndefinedReference},
		{"run { !take x !done x }", diagnostics.UndefinedReference},
		{"run { !call r 'Nope' [] !done r }", diagnostics.UndefinedReference},
	}
	p.ApplyBlock(2, nil)
	for _, tt := range tests {
		before := p.State().Digest()
		res := apply(p, 2, parse(t, tt.input)...)
		expectRejected(t, res[0], tt.kind)
		if p.State().Digest() != before {
			t.Errorf("%s: rejected statement changed the state", tt.input)
		}
	}

	// a take without a save keeps the old value
	res := apply(p, 2, parse(t, "run { !call r 'Box' [#1] !done r }")...)
	expectCommitted(t, res)
	if got := res[0].Output.String(); got != "#7" {
		t.Errorf("got %s", got)
	}

	// repeated loads do not mutate anything
	before := p.State().Digest()
	for i := 0; i < 3; i++ {
		res := apply(p, 2, parse(t, "run { !call r 'Box' [#2] !done r }")...)
		expectCommitted(t, res)
		if got := res[0].Output.String(); got != "{T2 #7 #7}" {
			t.Errorf("load %d returned %s", i, got)
		}
	}
	if p.State().Digest() != before {
		t.Error("loads changed the state")
	}
}

func TestStateActionsRequireOwner(t *testing.T) {
	alice, bob := key(t, 1), key(t, 2)
	p := NewProcessor(Genesis(crypto.Root), testOptions)
	expectCommitted(t, apply(p, 1, parse(t, "reg Foo { "+subject(alice).String()+" }")...))
	expectCommitted(t, apply(p, 2, signed(t, alice, `
ctr {Foo.Inc}
ctr {Foo.Get}
fun (Foo.Counter action) {
  (Foo.Counter {Foo.Inc}) = !take x; !save (+ x #1); !done #0
  (Foo.Counter {Foo.Get}) = !load x; !done x
} with { #0 }
`)...))

	res := apply(p, 3, signed(t, bob, "run { !call r 'Foo.Counter' [{Foo.Inc}] !done r }")...)
	expectRejected(t, res[0], diagnostics.Unauthorized)

	res = apply(p, 4, signed(t, bob, "run { !call r 'Foo.Counter' [{Foo.Get}] !done r }")...)
	expectCommitted(t, res)

	res = apply(p, 5, signed(t, alice, "run { !call r 'Foo.Counter' [{Foo.Inc}] !call s 'Foo.Counter' [{Foo.Get}] !done s }")...)
	expectCommitted(t, res)
	if got := res[0].Output.String(); got != "#1" {
		t.Errorf("expected #1, got %s", got)
	}
	if res[0].Subject != subject(alice) {
		t.Errorf("wrong subject %s", res[0].Subject)
	}
}

func TestBadSignature(t *testing.T) {
	p := NewProcessor(Genesis(crypto.Root), testOptions)
	stmt := parse(t, "run { !done #1 }")[0]
	var sig crypto.Signature
	stmt.SetSignature(&sig)
	res := apply(p, 1, stmt)
	expectRejected(t, res[0], diagnostics.SignatureInvalid)
}

func TestBudgetExhaustionIsAtomic(t *testing.T) {
	s := Genesis(crypto.Root)
	p := NewProcessor(s, Options{Mana: 5000, HeapLimit: 1 << 16})
	expectCommitted(t, apply(p, 1, parse(t, counter+"fun (Loop x) { (Loop x) = (Loop x) }")...))
	s = p.State()
	before := s.Encode()

	stmt := parse(t, "run { !call r 'Counter' [{Inc}] dup a b = #1; !done (Loop a) }")[0]
	after, res := s.Apply(Prepare(stmt), p.opts)
	expectRejected(t, res, diagnostics.ResourceExceeded)
	if after != s || !bytes.Equal(after.Encode(), before) {
		t.Error("exhausted statement changed the state")
	}
	if res.ManaUsed <= 5000 {
		t.Errorf("expected the whole budget to be spent, used %d", res.ManaUsed)
	}

	ok := parse(t, "run { !call r 'Counter' [{Get}] !done r }")[0]
	_, res = s.Apply(Prepare(ok), p.opts)
	if res.Status != Committed || res.Output.String() != "#0" {
		t.Errorf("counter moved: %v %v", res.Output, res.Err)
	}
}

func TestDeterminism(t *testing.T) {
	src := counter + `
ctr {Leaf value}
ctr {Branch left right}
fun (Sum tree) {
  (Sum {Leaf x}) = x
  (Sum {Branch a b}) = (+ (Sum a) (Sum b))
}
fun (Gen depth) {
  (Gen #0) = {Leaf #1}
  (Gen n) = dup a b = (Gen (- n #1)); {Branch a b}
}
fun (Tree n) {
  (Tree n) = !tick h; !done (Sum (Gen n))
}
run { !call r 'Counter' [{Inc}] !done (Sum (Gen #3)) }
run { !call r 'Tree' [#4] !done r }
run { !fail #1 }
`
	var digests []crypto.Hash
	var outputs []string
	for i := 0; i < 2; i++ {
		p := NewProcessor(Genesis(crypto.Root), testOptions)
		results := apply(p, 1, parse(t, src)...)
		var out strings.Builder
		for _, r := range results {
			out.WriteString(r.Status.String())
			if r.Output != nil {
				out.WriteString(" " + r.Output.String())
			}
			if r.Err != nil {
				out.WriteString(" " + r.Err.Error())
			}
			out.WriteString("\n")
		}
		digests = append(digests, p.State().Digest())
		outputs = append(outputs, out.String())
	}
	if digests[0] != digests[1] || outputs[0] != outputs[1] {
		t.Fatalf("runs differ:\n%s\n%s", outputs[0], outputs[1])
	}
	if !strings.Contains(outputs[0], "committed #8") || !strings.Contains(outputs[0], "committed #16") {
		t.Errorf("unexpected outputs:\n%s", outputs[0])
	}
	if !strings.Contains(outputs[0], "rejected ActionFailed") {
		t.Errorf("expected !fail to reject:\n%s", outputs[0])
	}
}

func TestSnapshotRestore(t *testing.T) {
	alice := key(t, 1)
	p := NewProcessor(Genesis(crypto.Root), testOptions)
	expectCommitted(t, apply(p, 1, parse(t, "reg Foo { "+subject(alice).String()+" }\n"+counter)...))
	expectCommitted(t, apply(p, 2, parse(t, "run { !call r 'Counter' [{Inc}] dup a b = #1; !done {T2 a b} }")...))

	enc := p.State().Encode()
	restored, err := DecodeState(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored.Encode(), enc) {
		t.Fatal("snapshot is not stable")
	}
	if restored.Labels != p.State().Labels || restored.Height != 2 {
		t.Errorf("counters lost: labels %d height %d", restored.Labels, restored.Height)
	}

	get := parse(t, "run { !call r 'Counter' [{Inc}] !call s 'Counter' [{Get}] !done s }")[0]
	a := NewProcessor(restored, testOptions).ApplyBlock(3, PrepareAll([]ast.Statement{get}))
	b := p.ApplyBlock(3, PrepareAll([]ast.Statement{get}))
	if a[0].Status != Committed || a[0].Output.String() != "#2" || a[0].Output.String() != b[0].Output.String() {
		t.Errorf("restored state diverged: %v / %v", a[0].Output, b[0].Output)
	}

	if _, err := DecodeState(enc[:len(enc)-1]); err == nil {
		t.Error("expected truncated snapshot to fail")
	}
}

func TestSelfReferentialRunIsRejected(t *testing.T) {
	p := NewProcessor(Genesis(crypto.Root), Options{Mana: 100, HeapLimit: 1 << 16})
	expectCommitted(t, apply(p, 1, parse(t, "fun (Two) { (Two) = @f @x dup f0 f1 = f; (!f0 (!f1 x)) }")...))
	s := p.State()
	before := s.Encode()

	stmt := parse(t, "run { dup a b = (Two); !done (!a b) }")[0]
	after, res := s.Apply(Prepare(stmt), p.opts)
	expectRejected(t, res, diagnostics.ResourceExceeded)
	if after != s || !bytes.Equal(after.Encode(), before) {
		t.Error("rejected run changed the state")
	}
}

const list = `
ctr {Nil}
ctr {Cons head tail}
ctr {Length}
fun (Build n) {
  (Build #0) = {Nil}
  (Build n) = dup a b = n; {Cons a (Build (- b #1))}
}
fun (Len l) {
  (Len {Nil}) = #0
  (Len {Cons ~ t}) = (+ #1 (Len t))
}
fun (List action) {
  (List {Length}) = !load l; !done (Len l)
} with { (Build #5000) }
`

func TestDeepSlotSurvivesSnapshot(t *testing.T) {
	p := NewProcessor(Genesis(crypto.Root), testOptions)
	expectCommitted(t, apply(p, 1, parse(t, list)...))

	enc := p.State().Encode()
	restored, err := DecodeState(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored.Encode(), enc) {
		t.Fatal("snapshot is not stable")
	}

	length := parse(t, "run { !call n 'List' [{Length}] !done n }")
	res := NewProcessor(restored, testOptions).ApplyBlock(2, PrepareAll(length))
	if res[0].Status != Committed || res[0].Output.String() != "#5000" {
		t.Errorf("expected #5000, got %v %v", res[0].Output, res[0].Err)
	}
}
