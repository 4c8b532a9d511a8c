package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestSignAndRecover(t *testing.T) {
	key, err := ParseKey(strings.Repeat("42", 32))
	if err != nil {
		t.Fatal(err)
	}
	hash := Keccak256([]byte("run { !done #1 }"))
	sig := Sign(key, hash)

	got, err := Recover(sig, hash)
	if err != nil {
		t.Fatal(err)
	}
	if got != SubjectOf(key.PubKey()) {
		t.Errorf("recovered %s, expected %s", got, SubjectOf(key.PubKey()))
	}
	if got.IsRoot() {
		t.Error("a key must not map to the root subject")
	}

	other, err := Recover(sig, Keccak256([]byte("run { !done #2 }")))
	if err == nil && other == got {
		t.Error("signature recovered the same subject for a different message")
	}
}

func TestRecoverRejectsGarbage(t *testing.T) {
	var sig Signature
	if _, err := Recover(sig, Keccak256(nil)); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

func TestKeccak256(t *testing.T) {
	// keccak256 of the empty string, not sha3-256
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got := Keccak256().String(); got != want {
		t.Errorf("got %s", got)
	}
}

func TestParseHex(t *testing.T) {
	s, err := ParseSubject("0x" + strings.Repeat("ab", SubjectSize))
	if err != nil || s[0] != 0xab {
		t.Errorf("ParseSubject: %v %s", err, s)
	}
	if _, err := ParseSubject("abcd"); err == nil {
		t.Error("expected a length error")
	}
	if _, err := ParseSignature(strings.Repeat("zz", SignatureSize)); err == nil {
		t.Error("expected a hex error")
	}
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseKey(KeyHex(key))
	if err != nil || SubjectOf(back.PubKey()) != SubjectOf(key.PubKey()) {
		t.Errorf("key hex round trip failed: %v", err)
	}
}
