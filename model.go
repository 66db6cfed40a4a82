package gdtf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/agentflare-ai/go-xmldom"
	"github.com/google/uuid"
)

// Model is a fully resolved GDTF fixture description: every geometry and DMX
// mode it names has been linked and deduplicated against the rest of the
// document. A Model is always returned alongside its ProblemLog, even when
// that log is non-empty — only conditions severe enough to make the
// document unparseable at all (see FatalError) withhold a Model entirely.
type Model struct {
	DataVersion     DataVersion
	FixtureTypeID   uuid.UUID
	RefFT           *uuid.UUID
	CanHaveChildren bool

	Name         Name
	ShortName    string
	LongName     string
	Manufacturer string
	Description  string

	Geometries *GeometryWorld
	DmxModes   []*DmxMode
}

// MarshalGDTF would write m back out as a GDTF archive. Serialization is a
// collaborator this package does not own; the stub exists so the interface
// is complete rather than silently absent.
func (m *Model) MarshalGDTF(w io.Writer) error {
	return fmt.Errorf("gdtf: marshaling a Model back to an archive: %w", errors.ErrUnsupported)
}

func parseYesNo(s string, def bool) (bool, bool) {
	switch s {
	case "Yes":
		return true, true
	case "No":
		return false, true
	default:
		return def, false
	}
}

// ParseDescription parses the raw text of a GDTF description.xml member.
// Only malformed XML, a missing GDTF root element, or a GDTF root without a
// FixtureType child is fatal; everything else is recorded as a Problem and
// recovered from.
func ParseDescription(description []byte) (*Model, ProblemLog, *FatalError) {
	doc, err := xmldom.Decode(bytes.NewReader(description))
	if err != nil {
		return nil, nil, fatalInvalidXML(err)
	}

	root := doc.DocumentElement()
	if root == nil || tagName(root) != "GDTF" {
		tag := ""
		if root != nil {
			tag = tagName(root)
		}
		return nil, nil, fatalMissingRoot(tag)
	}

	fixtureType, problem := requireChild(root, "FixtureType")
	if problem != nil {
		return nil, nil, fatalMissing("FixtureType", "GDTF root element")
	}

	problems := &ProblemLog{}
	m := &Model{}

	if v, ok := attr(root, "DataVersion"); ok {
		dv, err := ParseDataVersion(v)
		if err != nil {
			At(InvalidAttribute{Attr: "DataVersion", Tag: "GDTF", Content: v, ExpectedType: "DataVersion", Cause: err}, elementPosition(root)).
				HandledBy("using 1.2", problems)
			dv = DataVersion1_2
		}
		m.DataVersion = dv
	} else {
		At(NoDataVersion{}, elementPosition(root)).HandledBy("using 1.2", problems)
		m.DataVersion = DataVersion1_2
	}

	m.Name = ValidName(optionalAttr(fixtureType, "Name", ""))
	m.ShortName = optionalAttr(fixtureType, "ShortName", "")
	m.LongName = optionalAttr(fixtureType, "LongName", "")
	m.Manufacturer = optionalAttr(fixtureType, "Manufacturer", "")
	m.Description = optionalAttr(fixtureType, "Description", "")

	if v, problem := requireAttr(fixtureType, "FixtureTypeID"); problem == nil {
		id, err := uuid.Parse(v)
		if err != nil {
			At(InvalidAttribute{Attr: "FixtureTypeID", Tag: "FixtureType", Content: v, ExpectedType: "UUID", Cause: err}, elementPosition(fixtureType)).
				HandledBy("using nil UUID", problems)
		} else {
			m.FixtureTypeID = id
		}
	} else {
		problem.HandledBy("using nil UUID", problems)
	}

	if v, ok := attr(fixtureType, "RefFT"); ok && v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			At(InvalidAttribute{Attr: "RefFT", Tag: "FixtureType", Content: v, ExpectedType: "UUID", Cause: err}, elementPosition(fixtureType)).
				HandledBy("leaving unset", problems)
		} else {
			m.RefFT = &id
		}
	}

	if v, ok := attr(fixtureType, "CanHaveChildren"); ok {
		parsed, valid := parseYesNo(v, true)
		if !valid {
			At(InvalidAttribute{Attr: "CanHaveChildren", Tag: "FixtureType", Content: v, ExpectedType: "YesNoEnum", Cause: nil}, elementPosition(fixtureType)).
				HandledBy("using Yes", problems)
		}
		m.CanHaveChildren = parsed
	} else {
		m.CanHaveChildren = true
	}

	geometries, geomProblems := ParseGeometries(fixtureType)
	*problems = append(*problems, geomProblems...)
	m.Geometries = geometries

	modes, modeProblems := ParseDmxModes(fixtureType, geometries)
	*problems = append(*problems, modeProblems...)
	m.DmxModes = modes

	return m, *problems, nil
}
