package gdtf

import (
	"fmt"
	"strconv"

	"github.com/agentflare-ai/go-xmldom"
)

// plainGeometryTags are the GDTF geometry element names that behave as
// plain containers: they may hold further geometries as children and never
// carry an implicit DMX offset of their own.
var plainGeometryTags = map[string]bool{
	"Geometry":          true,
	"Axis":              true,
	"FilterBeam":        true,
	"FilterColor":       true,
	"FilterGobo":        true,
	"FilterShaper":      true,
	"Beam":              true,
	"Laser":             true,
	"WiringObject":      true,
	"Inventory":         true,
	"Structure":         true,
	"Support":           true,
	"Magnet":            true,
	"Display":           true,
	"MediaServerLayer":  true,
	"MediaServerCamera": true,
	"MediaServerMaster": true,
}

const geometryReferenceTag = "GeometryReference"

// deferredReference is a GeometryReference node whose target geometry has
// not been resolved yet: it is queued until the full tree has a chance to
// be built, so that forward references to geometries appearing later in
// document order still resolve.
type deferredReference struct {
	elem           xmldom.Element
	referencingIdx GeometryIndex
	referencedName Name
}

// pendingDuplicate is a geometry node whose Name collided with one already
// in the world. It is queued for deduplication once the rest of the tree
// (and any earlier-queued duplicates) have been resolved.
type pendingDuplicate struct {
	name      Name
	node      xmldom.Element
	parent    *GeometryIndex
	topLevel  *GeometryIndex
	duplicate GeometryIndex // the pre-existing node this one collided with
}

type geometriesParser struct {
	world                     *GeometryWorld
	problems                  *ProblemLog
	references                []deferredReference
	duplicates                []pendingDuplicate
	renamedTopLevelGeometries map[GeometryIndex]bool
}

// ParseGeometries resolves the Geometries subtree of a FixtureType element
// into a GeometryWorld, recording every recoverable inconsistency to the
// returned ProblemLog. The Geometries node itself is optional: if absent,
// an empty GeometryWorld is returned and the absence is logged.
func ParseGeometries(fixtureType xmldom.Element) (*GeometryWorld, ProblemLog) {
	p := &geometriesParser{
		world:                     NewGeometryWorld(),
		problems:                  &ProblemLog{},
		renamedTopLevelGeometries: make(map[GeometryIndex]bool),
	}

	geometries, problem := requireChild(fixtureType, "Geometries")
	if problem != nil {
		problem.HandledBy("leaving geometries empty", p.problems)
		return p.world, *p.problems
	}

	for i, child := range children(geometries) {
		idx, ok := p.parseGeometry(child, i, nil, nil)
		if !ok {
			continue
		}
		if p.world.IsReference(idx) {
			name, _ := p.world.Name(idx)
			At(UnexpectedTopLevelGeometryReference{Name: name}, elementPosition(child)).
				HandledBy("keeping node anyway", p.problems)
		}
	}

	// References and renames interact: a rename may reintroduce a
	// reference node, and resolving a reference never creates new nodes,
	// so references are drained first each round to keep deduplicated
	// names from colliding with names defined later in the document.
	for len(p.references) > 0 || len(p.duplicates) > 0 {
		p.parseReferences()
		p.parseDuplicates()
	}

	return p.world, *p.problems
}

func (p *geometriesParser) resolveGeometryName(elem xmldom.Element, indexInParent int) Name {
	if v, ok := attr(elem, "Name"); ok {
		return ValidName(v)
	}
	return ValidDefaultName(tagName(elem), indexInParent)
}

func (p *geometriesParser) parseGeometry(elem xmldom.Element, indexInParent int, parent, topLevel *GeometryIndex) (GeometryIndex, bool) {
	name := p.resolveGeometryName(elem, indexInParent)
	existing, taken := p.world.Index(name)
	if taken {
		p.duplicates = append(p.duplicates, pendingDuplicate{
			name:      name,
			node:      elem,
			parent:    parent,
			topLevel:  topLevel,
			duplicate: existing,
		})
		return 0, false
	}
	return p.addNamedGeometry(elem, name, parent, topLevel)
}

func (p *geometriesParser) addToWorld(node geometryNode, parent *GeometryIndex) (GeometryIndex, error) {
	if parent == nil {
		return p.world.AddTopLevel(node)
	}
	return p.world.AddChild(node, *parent)
}

// addNamedGeometry adds elem to the world under name, dispatching on its
// XML tag: plain geometry tags become container nodes and recurse into
// their children, GeometryReference is parsed and queued for deferred
// resolution, and anything else is reported and ignored.
func (p *geometriesParser) addNamedGeometry(elem xmldom.Element, name Name, parent, topLevel *GeometryIndex) (GeometryIndex, bool) {
	tag := tagName(elem)

	switch {
	case plainGeometryTags[tag]:
		idx, err := p.addToWorld(geometryNode{name: name, kind: geometryKindPlain}, parent)
		if err != nil {
			At(Unexpected{Description: err.Error()}, elementPosition(elem)).HandledBy("ignoring node", p.problems)
			return 0, false
		}
		childTopLevel := topLevel
		if parent == nil {
			ownIdx := idx
			childTopLevel = &ownIdx
		}
		p.addChildren(elem, idx, childTopLevel)
		return idx, true

	case tag == geometryReferenceTag:
		offsets := p.parseReferenceOffsets(elem, name)
		referencedStr, missing := requireAttr(elem, "Geometry")
		if missing != nil {
			missing.HandledBy("not parsing node", p.problems)
			return 0, false
		}
		referencedName := ValidName(referencedStr)
		idx, err := p.addToWorld(geometryNode{name: name, kind: geometryKindReference, offsets: offsets}, parent)
		if err != nil {
			At(Unexpected{Description: err.Error()}, elementPosition(elem)).HandledBy("ignoring node", p.problems)
			return 0, false
		}
		p.references = append(p.references, deferredReference{
			elem:           elem,
			referencingIdx: idx,
			referencedName: referencedName,
		})
		return idx, true

	default:
		At(UnexpectedXmlNode{Tag: tag}, elementPosition(elem)).HandledBy("ignoring node", p.problems)
		return 0, false
	}
}

func (p *geometriesParser) addChildren(parentElem xmldom.Element, parentIdx GeometryIndex, topLevel *GeometryIndex) {
	for i, child := range children(parentElem) {
		p.parseGeometry(child, i, &parentIdx, topLevel)
	}
}

func parseBreakAttrs(elem xmldom.Element) (Break, uint16, error) {
	brk, err := ParseBreak(optionalAttr(elem, "DMXBreak", "1"))
	if err != nil {
		return 0, 0, err
	}
	off, err := strconv.ParseUint(optionalAttr(elem, "DMXOffset", "1"), 10, 16)
	if err != nil {
		return 0, 0, err
	}
	return brk, uint16(off), nil
}

// parseReferenceOffsets reads the Break children of a GeometryReference.
// They are walked in reverse document order: the last Break in the
// document becomes the Overwrite slot (used when a channel in this
// reference declares Break="Overwrite"), and the rest populate the normal
// per-break offset map; because the walk is reversed, the earliest Break in
// document order wins ties. The Overwrite break is always also reflected in
// the normal map unless one of the other Breaks already claimed its break.
func (p *geometriesParser) parseReferenceOffsets(elem xmldom.Element, ownName Name) ReferenceOffsets {
	breaks := childrenByTag(elem, "Break")
	offsets := newReferenceOffsets()
	var overwrite *BreakOffset

	for i := len(breaks) - 1; i >= 0; i-- {
		b := breaks[i]
		brk, off, err := parseBreakAttrs(b)
		last := i == len(breaks)-1

		if err != nil {
			action := "ignoring node"
			if last {
				action = "ignoring node and setting overwrite to None"
			}
			At(InvalidAttribute{Attr: "DMXBreak", Tag: "Break", Content: "", ExpectedType: "break offset", Cause: err}, elementPosition(b)).
				HandledBy(action, p.problems)
			continue
		}

		if last {
			overwrite = &BreakOffset{Break: brk, Offset: off}
			continue
		}

		if _, exists := offsets.Normal[brk]; exists {
			At(DuplicateDmxBreak{DuplicateBreak: brk, GeometryReference: ownName}, elementPosition(b)).
				HandledBy("overwriting previous value", p.problems)
		}
		offsets.Normal[brk] = off
	}

	if overwrite != nil {
		if _, exists := offsets.Normal[overwrite.Break]; !exists {
			offsets.Normal[overwrite.Break] = overwrite.Offset
		}
	}
	offsets.Overwrite = overwrite
	return offsets
}

func (p *geometriesParser) parseReferences() {
	pending := p.references
	p.references = nil
	for _, ref := range pending {
		target, ok := p.world.Index(ref.referencedName)
		if !ok {
			At(UnknownGeometry{Name: ref.referencedName}, elementPosition(ref.elem)).
				HandledBy("not adding reference", p.problems)
			continue
		}
		if err := p.world.AddTemplateRelationship(target, ref.referencingIdx); err != nil {
			At(InvalidGeometryReference{Cause: err}, elementPosition(ref.elem)).
				HandledBy("not adding reference", p.problems)
		}
	}
}

func (p *geometriesParser) parseDuplicates() {
	for len(p.duplicates) > 0 {
		dup := p.duplicates[0]
		p.duplicates = p.duplicates[1:]
		p.resolveDuplicate(dup)
	}
}

func (p *geometriesParser) resolveDuplicate(dup pendingDuplicate) {
	nameToIncrement, handled := p.tryRenameWithTopLevelName(dup)
	if handled {
		return
	}
	p.tryRenameByIncrementingCounter(dup, nameToIncrement)
}

// tryRenameWithTopLevelName proposes "<name> (in <top-level name>)" for a
// duplicate declared inside a different top-level geometry than the one it
// collides with. It only applies to nested geometries whose enclosing
// top-level hasn't itself been produced by a rename. On success it returns
// ("", true); on failure it returns the name that should be fed into the
// incrementing-counter fallback instead of the original name.
func (p *geometriesParser) tryRenameWithTopLevelName(dup pendingDuplicate) (Name, bool) {
	if dup.topLevel == nil {
		return dup.name, false
	}
	if p.renamedTopLevelGeometries[*dup.topLevel] {
		return dup.name, false
	}
	if p.world.TopLevelIndex(dup.duplicate) == *dup.topLevel {
		return dup.name, false
	}

	topLevelName, _ := p.world.Name(*dup.topLevel)
	suggested := Name(fmt.Sprintf("%s (in %s)", dup.name, topLevelName))
	if _, taken := p.world.Index(suggested); taken {
		return suggested, false
	}

	p.handleRenamedGeometry(dup, suggested)
	p.world.recordRename(topLevelName, dup.name, suggested)
	return "", true
}

func (p *geometriesParser) tryRenameByIncrementingCounter(dup pendingDuplicate, nameToIncrement Name) {
	for n := 1; n <= 10000; n++ {
		candidate := Name(fmt.Sprintf("%s (duplicate %d)", nameToIncrement, n))
		if _, taken := p.world.Index(candidate); taken {
			continue
		}
		p.handleRenamedGeometry(dup, candidate)
		return
	}
	At(DuplicateGeometryName{Name: dup.name}, elementPosition(dup.node)).
		HandledBy("deduplication failed, ignoring node", p.problems)
}

func (p *geometriesParser) handleRenamedGeometry(dup pendingDuplicate, suggested Name) GeometryIndex {
	idx, ok := p.addNamedGeometry(dup.node, suggested, dup.parent, dup.topLevel)
	if ok && dup.parent == nil {
		p.renamedTopLevelGeometries[idx] = true
	}

	action := fmt.Sprintf("renamed to %q", suggested)
	if !ok {
		action = fmt.Sprintf("renamed to %q but still ignoring node due to some other error", suggested)
	}
	At(DuplicateGeometryName{Name: dup.name}, elementPosition(dup.node)).HandledBy(action, p.problems)
	return idx
}
