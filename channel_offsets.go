package gdtf

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelOffsets holds the DMX address offsets of a channel, most- to
// least-significant byte. Values range from 1 to 512 (external, 1-based);
// an empty slice marks a virtual channel with no DMX address of its own.
// A channel has at most 4 bytes, and no offset value may repeat.
type ChannelOffsets []uint16

// OffsetError reports why a ChannelOffsets value was rejected.
type OffsetError struct {
	msg string
}

func (e *OffsetError) Error() string { return e.msg }

func offsetErrorf(format string, args ...any) *OffsetError {
	return &OffsetError{msg: fmt.Sprintf(format, args...)}
}

// NewChannelOffsets validates values as a ChannelOffsets.
func NewChannelOffsets(values []uint16) (ChannelOffsets, error) {
	if len(values) > 4 {
		return nil, offsetErrorf("channels cannot have more than 4 bytes, this is a limitation of the implementation")
	}
	for i, v := range values {
		if v < 1 || v > 512 {
			return nil, offsetErrorf("DMX address offsets must be between 1 and 512 (or 0 and 511 internally)")
		}
		for j, u := range values {
			if v == u && i != j {
				return nil, offsetErrorf("duplicate channel offsets %d", v)
			}
		}
	}
	return ChannelOffsets(values), nil
}

// ParseChannelOffsets parses a comma-separated "Offset" attribute value.
// "None" and "" both mean no offsets (a virtual channel); GDTF 1.2
// disallows the empty string but some builder-authored files emit it
// anyway, so both are accepted.
func ParseChannelOffsets(s string) (ChannelOffsets, error) {
	if s == "None" || s == "" {
		return NewChannelOffsets(nil)
	}

	parts := strings.Split(s, ",")
	out := make([]uint16, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return nil, offsetErrorf("invalid Offset Format")
		}
		out = append(out, uint16(v))
	}
	return NewChannelOffsets(out)
}

// AddAll returns a copy of c with value added to every offset.
func (c ChannelOffsets) AddAll(value uint16) (ChannelOffsets, error) {
	out := make([]uint16, len(c))
	for i, v := range c {
		out[i] = v + value
	}
	return NewChannelOffsets(out)
}
