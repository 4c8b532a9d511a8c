// Package crypto recovers statement signers.
//
// Signatures are compact recoverable secp256k1 signatures over the keccak256
// digest of a statement's canonical encoding. The signer's Subject is the
// first 120 bits of its 20-byte address, where the address is the tail of
// keccak256 over the uncompressed public key.
package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

const (
	SubjectSize   = 15
	SignatureSize = 65
	HashSize      = 32
)

// Subject identifies a statement signer. The zero Subject is the subject of
// unsigned statements and, by default, the root authority.
type Subject [SubjectSize]byte

// Root is the distinguished root authority.
var Root Subject

func (s Subject) String() string { return hex.EncodeToString(s[:]) }

func (s Subject) IsRoot() bool { return s == Root }

// Signature is a 65 byte compact signature: recovery code followed by r and s.
type Signature [SignatureSize]byte

func (s Signature) String() string { return hex.EncodeToString(s[:]) }

type Hash [HashSize]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

var ErrBadSignature = errors.New("signature does not recover a public key")

// Keccak256 hashes the concatenation of data with legacy keccak256.
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// SubjectOf derives the subject of a public key.
func SubjectOf(pub *secp256k1.PublicKey) Subject {
	raw := pub.SerializeUncompressed()
	digest := Keccak256(raw[1:])
	var s Subject
	copy(s[:], digest[12:12+SubjectSize])
	return s
}

// Recover returns the subject that produced sig over hash.
func Recover(sig Signature, hash Hash) (Subject, error) {
	pub, _, err := ecdsa.RecoverCompact(sig[:], hash[:])
	if err != nil {
		return Subject{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return SubjectOf(pub), nil
}

// Sign produces a compact signature over hash.
func Sign(key *secp256k1.PrivateKey, hash Hash) Signature {
	var sig Signature
	copy(sig[:], ecdsa.SignCompact(key, hash[:], false))
	return sig
}

func GenerateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// ParseKey decodes a 32 byte hex private key.
func ParseKey(s string) (*secp256k1.PrivateKey, error) {
	raw, err := decodeHex(s, secp256k1.PrivKeyBytesLen)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}

func KeyHex(key *secp256k1.PrivateKey) string {
	return hex.EncodeToString(key.Serialize())
}

func ParseSubject(s string) (Subject, error) {
	var out Subject
	raw, err := decodeHex(s, SubjectSize)
	if err != nil {
		return out, fmt.Errorf("subject: %w", err)
	}
	copy(out[:], raw)
	return out, nil
}

func ParseSignature(s string) (Signature, error) {
	var out Signature
	raw, err := decodeHex(s, SignatureSize)
	if err != nil {
		return out, fmt.Errorf("signature: %w", err)
	}
	copy(out[:], raw)
	return out, nil
}

func decodeHex(s string, size int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(raw))
	}
	return raw, nil
}
