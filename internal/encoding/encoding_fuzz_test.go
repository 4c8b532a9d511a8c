package encoding

import (
	"bytes"
	"testing"

	"github.com/funvibe/funledger/internal/parser"
)

// FuzzDecodeStatement feeds arbitrary bytes to the decoder. Anything it
// accepts must survive a further encode and decode unchanged.
func FuzzDecodeStatement(f *testing.F) {
	program, err := parser.Parse("seed.fl", source)
	if err != nil {
		f.Fatal(err)
	}
	for _, stmt := range program.Statements {
		f.Add(EncodeStatement(stmt))
	}
	f.Add([]byte{})
	f.Add([]byte{0xff, 0xff})

	f.Fuzz(func(t *testing.T, data []byte) {
		stmt, err := DecodeStatement(data)
		if err != nil {
			return
		}
		enc := EncodeStatement(stmt)
		back, err := DecodeStatement(enc)
		if err != nil {
			t.Fatalf("re-encoded statement does not decode: %v", err)
		}
		if again := EncodeStatement(back); !bytes.Equal(again, enc) {
			t.Fatalf("encoding is not stable\n in: %x\nout: %x", enc, again)
		}
	})
}
