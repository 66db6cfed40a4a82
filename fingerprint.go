package gdtf

import (
	"encoding/binary"
	"sort"

	"github.com/zeebo/xxh3"
)

// ArchiveEntry is the name/CRC32 pair fingerprinting reduces each ZIP member
// to. It deliberately carries nothing else: member order and modification
// timestamps must not affect the fingerprint.
type ArchiveEntry struct {
	Name  string
	CRC32 uint32
}

// Digest is a 128-bit content fingerprint of a GDTF archive's members,
// stable across re-downloads and re-zipping of the same content regardless
// of member order or timestamps. It is not a cryptographic digest: it exists
// to let callers deduplicate archives cheaply, not to authenticate them.
type Digest [16]byte

// Fingerprint computes the Digest of an archive given its member entries. It
// sorts entries by name before hashing so the result does not depend on the
// order ZIP members were written in.
func Fingerprint(entries []ArchiveEntry) Digest {
	sorted := make([]ArchiveEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf []byte
	var crc [4]byte
	for _, e := range sorted {
		buf = append(buf, e.Name...)
		binary.BigEndian.PutUint32(crc[:], e.CRC32)
		buf = append(buf, crc[:]...)
	}

	h := xxh3.Hash128(buf)
	return Digest(h.Bytes())
}

func (f Digest) String() string {
	const hex = "0123456789abcdef"
	out := make([]byte, 32)
	for i, b := range f {
		out[2*i] = hex[b>>4]
		out[2*i+1] = hex[b&0xf]
	}
	return string(out)
}
