package gdtf

import (
	"fmt"
	"strconv"
)

// Break is a 1-based DMX break identifier. Zero is never valid.
type Break uint16

// DefaultBreak is the implicit break used when a geometry or channel does
// not specify one.
const DefaultBreak Break = 1

// NewBreak validates value as a Break; value must be > 0.
func NewBreak(value uint16) (Break, error) {
	if value == 0 {
		return 0, fmt.Errorf("DMX breaks of value 0 are not allowed")
	}
	return Break(value), nil
}

// ParseBreak parses a Break from its decimal string representation.
func ParseBreak(s string) (Break, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("could not parse as valid integer: %w", err)
	}
	return NewBreak(uint16(v))
}

func (b Break) String() string { return strconv.FormatUint(uint64(b), 10) }
