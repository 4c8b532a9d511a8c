package diagnostics

import (
	"errors"
	"fmt"
)

// Kind classifies why a statement was rejected. The set is part of the
// observable ledger output, so values must never be renumbered.
type Kind uint8

const (
	KindNone Kind = iota
	SignatureInvalid
	Unauthorized
	AlreadyRegistered
	AlreadyDeclared
	UndefinedReference
	StuckTerm
	AlreadyTaken
	NotTaken
	ResourceExceeded
	Malformed
	ActionFailed
)

var kindNames = [...]string{
	KindNone:           "None",
	SignatureInvalid:   "SignatureInvalid",
	Unauthorized:       "Unauthorized",
	AlreadyRegistered:  "AlreadyRegistered",
	AlreadyDeclared:    "AlreadyDeclared",
	UndefinedReference: "UndefinedReference",
	StuckTerm:          "StuckTerm",
	AlreadyTaken:       "AlreadyTaken",
	NotTaken:           "NotTaken",
	ResourceExceeded:   "ResourceExceeded",
	Malformed:          "Malformed",
	ActionFailed:       "ActionFailed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return KindNone, false
}

// Error is a statement-local execution failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Is makes errors.Is match any *Error of the same Kind, so the sentinels
// below can be used without comparing messages.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of err, or KindNone when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

var (
	ErrSignatureInvalid   = &Error{Kind: SignatureInvalid}
	ErrUnauthorized       = &Error{Kind: Unauthorized}
	ErrAlreadyRegistered  = &Error{Kind: AlreadyRegistered}
	ErrAlreadyDeclared    = &Error{Kind: AlreadyDeclared}
	ErrUndefinedReference = &Error{Kind: UndefinedReference}
	ErrStuckTerm          = &Error{Kind: StuckTerm}
	ErrAlreadyTaken       = &Error{Kind: AlreadyTaken}
	ErrNotTaken           = &Error{Kind: NotTaken}
	ErrResourceExceeded   = &Error{Kind: ResourceExceeded}
	ErrMalformed          = &Error{Kind: Malformed}
	ErrActionFailed       = &Error{Kind: ActionFailed}
)

// Wrapf prefixes the message of err with context, keeping its Kind.
func Wrapf(err error, format string, args ...interface{}) error {
	var e *Error
	if !errors.As(err, &e) {
		return fmt.Errorf(format+": %w", append(args, err)...)
	}
	return &Error{Kind: e.Kind, Message: fmt.Sprintf(format, args...) + ": " + e.Message}
}
