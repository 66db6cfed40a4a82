package gdtf

import (
	"fmt"
	"strings"
)

// Name is a GDTF Name: a UTF-8 string with a restricted alphabet. Per DIN
// SPEC 15800:2022-02 Annex C, the disallowed Unicode code points are:
//
//	U+0000..=U+001F (control)
//	U+0021 (!)  U+0024 ($)  U+0026 (&)  U+002C (,)  U+002E (.)  U+003F (?)
//	U+005B..=U+005E ([\]^)
//	U+007B..=U+007F ({|}~ and DEL)
//
// Disallowed code points are replaced by '□' (U+25A1) rather than rejected,
// so every GDTF string can always be turned into a Name.
type Name string

func isInvalidNameRune(r rune) bool {
	switch {
	case r >= 0x00 && r <= 0x1f:
		return true
	case r == '!' || r == '$' || r == '&' || r == ',' || r == '.' || r == '?':
		return true
	case r >= 0x5b && r <= 0x5e:
		return true
	case r >= 0x7b && r <= 0x7f:
		return true
	default:
		return false
	}
}

// sanitizeName replaces every disallowed code point in s with '□', returning
// the sanitized Name and the set of invalid characters found, in the order
// they appear. invalid is empty when s was already valid.
func sanitizeName(s string) (name Name, invalid string) {
	var out, bad strings.Builder
	for _, r := range s {
		if isInvalidNameRune(r) {
			bad.WriteRune(r)
			out.WriteRune('□')
			continue
		}
		out.WriteRune(r)
	}
	return Name(out.String()), bad.String()
}

// NewName validates s as a GDTF Name. If s contains disallowed characters it
// returns the sanitized Name (invalid characters replaced by '□') alongside
// a non-nil error describing which characters were replaced; callers that
// want the always-valid form without explicit error handling use ValidName.
func NewName(s string) (Name, error) {
	name, invalid := sanitizeName(s)
	if invalid == "" {
		return name, nil
	}
	return name, &NameError{Fixed: name, InvalidChars: invalid}
}

// ValidName sanitizes s into a Name, replacing any disallowed characters
// with '□' and discarding the error. Use NewName when the invalid characters
// need to be reported as a Problem.
func ValidName(s string) Name {
	name, _ := sanitizeName(s)
	return name
}

// DefaultName builds the synthesized default name GDTF uses for an element
// that is missing its Name attribute: the XML tag name followed by the
// 1-based position of the node among its siblings.
func DefaultName(tag string, xmlNodeIndexInParent int) (Name, error) {
	return NewName(fmt.Sprintf("%s %d", tag, xmlNodeIndexInParent+1))
}

// ValidDefaultName is the always-valid form of DefaultName.
func ValidDefaultName(tag string, xmlNodeIndexInParent int) Name {
	return ValidName(fmt.Sprintf("%s %d", tag, xmlNodeIndexInParent+1))
}

func (n Name) String() string { return string(n) }

// NameError reports that a string was not a valid Name as-is: Fixed holds
// the sanitized replacement and InvalidChars holds every disallowed
// character encountered, in order (with repeats).
type NameError struct {
	Fixed        Name
	InvalidChars string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("invalid GDTF Name due to chars %q; replaced with '□'", e.InvalidChars)
}
