package ast

import (
	"fmt"
	"strings"

	"github.com/funvibe/funledger/internal/config"
)

// ValidName checks a dotted definition or namespace name such as Foo.Bar.cats.
func ValidName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if len(name) > config.MaxNameLength {
		return fmt.Errorf("name %q longer than %d bytes", name, config.MaxNameLength)
	}
	if c := name[0]; c < 'A' || c > 'Z' {
		return fmt.Errorf("name %q must start with an uppercase letter", name)
	}
	segments := strings.Split(name, ".")
	if len(segments) > config.MaxNameSegments {
		return fmt.Errorf("name %q has more than %d segments", name, config.MaxNameSegments)
	}
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("name %q has an empty segment", name)
		}
		for i := 0; i < len(seg); i++ {
			if !isNameChar(seg[i]) {
				return fmt.Errorf("name %q contains invalid character %q", name, seg[i])
			}
		}
	}
	return nil
}

// ValidVar checks a variable or binder name. Dots are reserved for
// generated names.
func ValidVar(name string) error {
	if name == Erased {
		return nil
	}
	if name == "" {
		return fmt.Errorf("empty variable")
	}
	if c := name[0]; c >= 'A' && c <= 'Z' {
		return fmt.Errorf("variable %q must not start with an uppercase letter", name)
	}
	for i := 0; i < len(name); i++ {
		if !isNameChar(name[i]) {
			return fmt.Errorf("variable %q contains invalid character %q", name, name[i])
		}
	}
	return nil
}

func isNameChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Parent returns the name without its last segment, or "" for a root-level name.
func Parent(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}
