package gdtf

import (
	"archive/zip"
	"bytes"
	"io"
)

const descriptionXmlMember = "description.xml"

// Archive is an opened GDTF ZIP container: description.xml plus whatever
// fixture resources (thumbnails, 3D models) ride alongside it.
type Archive struct {
	zr *zip.Reader
}

// OpenArchive wraps zip.NewReader over r, whose total size is size bytes.
func OpenArchive(r io.ReaderAt, size int64) (*Archive, *FatalError) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fatalBadArchive("not a valid ZIP archive", err)
	}
	return &Archive{zr: zr}, nil
}

// DescriptionXML returns the contents of the archive's description.xml
// member. The member name is case-sensitive, per the GDTF standard.
func (a *Archive) DescriptionXML() ([]byte, *FatalError) {
	f, err := a.zr.Open(descriptionXmlMember)
	if err != nil {
		return nil, fatalMissing(descriptionXmlMember, "GDTF archive")
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, fatalBadArchive("could not read description.xml", err)
	}
	return buf.Bytes(), nil
}

// Entries returns one ArchiveEntry per ZIP member, in the order the
// directory lists them. Fingerprint sorts these itself, so callers needn't
// sort before passing them along.
func (a *Archive) Entries() []ArchiveEntry {
	entries := make([]ArchiveEntry, len(a.zr.File))
	for i, f := range a.zr.File {
		entries[i] = ArchiveEntry{Name: f.Name, CRC32: f.CRC32}
	}
	return entries
}

// Fingerprint computes the archive's content Digest over its member entries.
func (a *Archive) Fingerprint() Digest {
	return Fingerprint(a.Entries())
}

// ParseArchive reads a GDTF archive (a ZIP file containing description.xml
// plus fixture resources such as thumbnails and 3D models) from r, whose
// total size is size bytes, and validates its description.xml.
func ParseArchive(r io.ReaderAt, size int64) (*Model, ProblemLog, *FatalError) {
	archive, fatal := OpenArchive(r, size)
	if fatal != nil {
		return nil, nil, fatal
	}

	description, fatal := archive.DescriptionXML()
	if fatal != nil {
		return nil, nil, fatal
	}

	return ParseDescription(description)
}

// ParseArchiveBytes is a convenience wrapper around ParseArchive for an
// archive already fully loaded into memory.
func ParseArchiveBytes(archive []byte) (*Model, ProblemLog, *FatalError) {
	return ParseArchive(bytes.NewReader(archive), int64(len(archive)))
}
