package dal

import (
	"fmt"
	"strings"
)

// Identifier is a table or column name that is safe to embed in SQL text.
// The zero value is invalid; the only constructors are SanitizeIdentifier and
// MustIdentifier, so any Identifier in circulation has passed the allow-list.
type Identifier struct {
	name string
}

// SanitizeIdentifier strips every character outside [A-Za-z0-9_] and prefixes
// a leading digit with an underscore. It fails if nothing is left.
func SanitizeIdentifier(raw string) (Identifier, error) {
	var b strings.Builder
	b.Grow(len(raw) + 1)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	s := b.String()
	if s == "" {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return Identifier{name: s}, nil
}

// MustIdentifier is SanitizeIdentifier for compile-time constants. It panics
// if raw is not already a valid identifier.
func MustIdentifier(raw string) Identifier {
	id, err := SanitizeIdentifier(raw)
	if err != nil || id.name != raw {
		panic(fmt.Sprintf("dal: %q is not a valid identifier", raw))
	}
	return id
}

// String returns the bare identifier.
func (i Identifier) String() string { return i.name }

// IsZero reports whether i was never constructed.
func (i Identifier) IsZero() bool { return i.name == "" }

// quote renders the identifier for the given sqlx driver name.
func (i Identifier) quote(driver string) string {
	if driver == "mysql" {
		return "`" + i.name + "`"
	}
	return `"` + i.name + `"`
}
