package gdtf

import (
	"fmt"
	"strconv"
	"strings"
)

// DmxAddress is a DMX start address, stored internally as a 0-based offset
// into an unbounded universe space so that universe and per-universe
// address can be combined into one ordering.
//
// External (GDTF) values are 1-based. The zero value is the smallest valid
// address, "1" / "1.1".
//
//	1    (internal 0)    <=> "1.1"
//	512  (internal 511)  <=> "1.512"
//	513  (internal 512)  <=> "2.1"
//	1024 (internal 1023) <=> "2.512"
//
// up to the largest representable address, universe 8,388,608 address 511
// (internal math.MaxUint32 - 1; internal math.MaxUint32 itself is refused,
// matching the original parser's reserved sentinel).
type DmxAddress struct {
	internal uint32
}

// Get returns the external, 1-based absolute DMX address.
func (a DmxAddress) Get() uint32 { return a.internal + 1 }

func (a DmxAddress) String() string { return strconv.FormatUint(uint64(a.Get()), 10) }

// DmxAddressFromAbsolute builds a DmxAddress from an external 1-based
// absolute address. value must be between 1 and 2^32-1.
func DmxAddressFromAbsolute(value int64) (DmxAddress, error) {
	if value < 1 {
		return DmxAddress{}, fmt.Errorf("absolute DMXAddress value %d is smaller than 1", value)
	}
	if value > int64(^uint32(0)) {
		return DmxAddress{}, fmt.Errorf("absolute DMXAddress value %d is bigger than 2^32-1 = 4294967295", value)
	}
	return DmxAddress{internal: uint32(value) - 1}, nil
}

// ParseDmxAddress parses a DMXAddress attribute value, which is either an
// absolute address ("513") or a "universe.address" pair ("2.1").
func ParseDmxAddress(s string) (DmxAddress, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) == 1 {
		v, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return DmxAddress{}, fmt.Errorf("parsing error: %w", err)
		}
		return DmxAddressFromAbsolute(v)
	}

	universeStr, addressStr := parts[0], parts[1]
	universe, err := strconv.ParseUint(universeStr, 10, 32)
	if err != nil {
		return DmxAddress{}, fmt.Errorf("parsing error: %w", err)
	}
	if universe < 1 || universe > 8388608 {
		return DmxAddress{}, fmt.Errorf("invalid universe value %d, only 1 to 8,388,608 is supported", universe)
	}
	u := uint32(universe) - 1

	address, err := strconv.ParseUint(addressStr, 10, 32)
	if err != nil {
		return DmxAddress{}, fmt.Errorf("parsing error: %w", err)
	}
	if address < 1 || address > 512 {
		return DmxAddress{}, fmt.Errorf("invalid DMX address %d, only 1 to 512 is valid", address)
	}
	a := uint32(address) - 1

	internal := (u << 9) + a
	if internal == ^uint32(0) {
		return DmxAddress{}, fmt.Errorf("absolute DMXAddress value %d is bigger than 2^32-2 = 4294967294", internal)
	}
	return DmxAddress{internal: internal}, nil
}
