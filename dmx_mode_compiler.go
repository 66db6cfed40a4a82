package gdtf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

type channelBreakKind int

const (
	channelBreakValue channelBreakKind = iota
	channelBreakOverwrite
)

type channelBreak struct {
	kind channelBreakKind
	brk  Break
}

func defaultChannelBreak() channelBreak {
	return channelBreak{kind: channelBreakValue, brk: DefaultBreak}
}

// templateChannels remembers, per template channel name, the mapping from
// subfixture name to the name of the channel instantiated for it — needed
// to resolve a ModeMaster attribute that targets a template channel.
type templateChannels map[Name]map[Name]Name

type deferredModeMaster struct {
	chfNode     xmldom.Element
	channelName Name
	chfName     Name
	chfIdx      ChannelFunctionIndex
	subfixture  *Name
}

type dmxModesParser struct {
	world    *GeometryWorld
	problems *ProblemLog
}

// ParseDmxModes resolves the DMXModes subtree of a FixtureType element
// against an already-resolved GeometryWorld.
func ParseDmxModes(fixtureType xmldom.Element, world *GeometryWorld) ([]*DmxMode, ProblemLog) {
	p := &dmxModesParser{world: world, problems: &ProblemLog{}}
	var modes []*DmxMode

	modesElem, problem := requireChild(fixtureType, "DMXModes")
	if problem != nil {
		problem.HandledBy("leaving DMX modes empty", p.problems)
		return modes, *p.problems
	}

	for i, modeElem := range childrenByTag(modesElem, "DMXMode") {
		mode, err := p.parseDmxMode(modeElem, i)
		if err != nil {
			err.HandledBy("ignoring DMX Mode", p.problems)
			continue
		}
		modes = append(modes, mode)
	}
	return modes, *p.problems
}

func (p *dmxModesParser) resolveModeName(elem xmldom.Element, i int) Name {
	if v, ok := attr(elem, "Name"); ok {
		return ValidName(v)
	}
	return ValidDefaultName(tagName(elem), i)
}

// resolveGeometryByName asks the rename lookup what name was actually
// installed, within scope (the top-level geometry the reference was
// declared under), for a geometry originally declared as name — DMX-mode
// geometry references are written against the original, pre-dedup name, not
// whatever deduplication ultimately renamed the node to, and a bare name
// index lookup would silently find an unrelated, identically-named node
// from a different branch instead. Only when the rename lookup has nothing
// for this scope does a direct name lookup apply.
func (p *dmxModesParser) resolveGeometryByName(name, scope Name) (GeometryIndex, bool) {
	if renamed := p.world.DeduplicatedName(scope, name); renamed != name {
		if idx, ok := p.world.Index(renamed); ok {
			return idx, true
		}
	}
	return p.world.Index(name)
}

func (p *dmxModesParser) parseDmxMode(modeElem xmldom.Element, i int) (*DmxMode, *ProblemAt) {
	modeName := p.resolveModeName(modeElem, i)
	description := optionalAttr(modeElem, "Description", "")

	geometryAttr, problem := requireAttr(modeElem, "Geometry")
	if problem != nil {
		return nil, problem
	}
	geometryName := ValidName(geometryAttr)
	geometryIdx, ok := p.resolveGeometryByName(geometryName, geometryName)
	if !ok {
		return nil, At(UnknownGeometry{Name: geometryName}, elementPosition(modeElem))
	}
	if !p.world.IsTopLevel(geometryIdx) {
		return nil, At(NonTopLevelDmxModeGeometry{Geometry: geometryName, Mode: modeName}, elementPosition(modeElem))
	}

	mode := newDmxMode(modeName, description, geometryIdx)

	channelsElem, problem := requireChild(modeElem, "DMXChannels")
	if problem != nil {
		problem.HandledBy("leaving DMX mode empty", p.problems)
		return mode, nil
	}
	p.parseDmxChannels(channelsElem, mode)
	return mode, nil
}

func (p *dmxModesParser) parseDmxChannels(channelsElem xmldom.Element, mode *DmxMode) {
	var modeMasterQueue []deferredModeMaster
	tmplChannels := make(templateChannels)

	for _, channelElem := range childrenByTag(channelsElem, "DMXChannel") {
		if err := p.parseDmxChannel(channelElem, mode, &modeMasterQueue, tmplChannels); err != nil {
			err.HandledBy("ignoring channel", p.problems)
		}
	}

	for _, dmm := range modeMasterQueue {
		if err := p.handleModeMaster(dmm, tmplChannels, mode); err != nil {
			err.HandledBy("ignoring mode master", p.problems)
		}
	}
}

type chfWithNode struct {
	chf  ChannelFunction
	node xmldom.Element
}

func (p *dmxModesParser) parseChannelBreak(channelElem xmldom.Element) channelBreak {
	v, ok := attr(channelElem, "DMXBreak")
	if !ok {
		return defaultChannelBreak()
	}
	if v == "Overwrite" {
		return channelBreak{kind: channelBreakOverwrite}
	}
	brk, err := ParseBreak(v)
	if err != nil {
		At(InvalidAttribute{Attr: "DMXBreak", Tag: "DMXChannel", Content: v, ExpectedType: "Break", Cause: err}, elementPosition(channelElem)).
			HandledBy("using default", p.problems)
		return defaultChannelBreak()
	}
	return channelBreak{kind: channelBreakValue, brk: brk}
}

// parseDmxChannel parses one DMXChannel element. A channel whose geometry is
// a template adds zero or more Channels to mode.Subfixtures (one per
// GeometryReference instantiating the template) and records the
// name-instance mapping in tmplChannels; any other channel is appended
// directly to mode.Channels.
func (p *dmxModesParser) parseDmxChannel(channelElem xmldom.Element, mode *DmxMode, queue *[]deferredModeMaster, tmplChannels templateChannels) *ProblemAt {
	modeTopLevelName, _ := p.world.Name(mode.Geometry)

	geometryIdx := mode.Geometry
	if geometryAttr, problem := requireAttr(channelElem, "Geometry"); problem == nil {
		geomName := ValidName(geometryAttr)
		if idx, ok := p.resolveGeometryByName(geomName, modeTopLevelName); ok {
			geometryIdx = idx
		} else {
			At(UnknownGeometry{Name: geomName}, elementPosition(channelElem)).
				HandledBy("using mode geometry", p.problems)
		}
	} else {
		problem.HandledBy("using mode geometry", p.problems)
	}

	geometryName, ok := p.world.Name(geometryIdx)
	if !ok {
		return At(Unexpected{Description: "channel geometry index invalid"}, elementPosition(channelElem))
	}

	var firstLogicAttr Name
	if logicalChannel, problem := requireChild(channelElem, "LogicalChannel"); problem == nil {
		if v, p2 := requireAttr(logicalChannel, "Attribute"); p2 == nil {
			firstLogicAttr = ValidName(v)
		} else {
			p2.HandledBy("using empty", p.problems)
		}
	} else {
		problem.HandledBy("using empty", p.problems)
	}

	name := ValidName(fmt.Sprintf("%s_%s", geometryName, firstLogicAttr))

	dmxBreak := p.parseChannelBreak(channelElem)

	offsetAttr := optionalAttr(channelElem, "Offset", "None")
	offsets, err := ParseChannelOffsets(offsetAttr)
	if err != nil {
		At(InvalidAttribute{Attr: "Offset", Tag: "DMXChannel", Content: offsetAttr, ExpectedType: "ChannelOffsets", Cause: err}, elementPosition(channelElem)).
			HandledBy("using None", p.problems)
		offsets = nil
	}

	var channelBytes uint8
	switch {
	case len(offsets) == 0:
		channelBytes = 4 // maximum resolution for a virtual channel
	case len(offsets) > 4:
		At(UnsupportedByteCount{N: len(offsets)}, elementPosition(channelElem)).
			HandledBy("using only 4 most significant bytes", p.problems)
		offsets = offsets[:4]
		channelBytes = 4
	default:
		channelBytes = uint8(len(offsets))
	}
	maxDmxValue := BytesMaxValue(channelBytes)

	chfs := []chfWithNode{{
		chf: ChannelFunction{
			Name: name, Geometry: geometryIdx,
			Attribute: "NoFeature", OriginalAttribute: "RawDMX",
			DmxFrom: 0, DmxTo: maxDmxValue,
			PhysFrom: 0, PhysTo: 1,
			Default: 0,
		},
		node: channelElem,
	}}

	for _, logicalChannel := range childrenByTag(channelElem, "LogicalChannel") {
		chfNodes := childrenByTag(logicalChannel, "ChannelFunction")
		for i, chfNode := range chfNodes {
			var nextNode xmldom.Element
			if i+1 < len(chfNodes) {
				nextNode = chfNodes[i+1]
			}
			chf := p.parseChannelFunction(chfNode, i, channelBytes, nextNode, maxDmxValue, geometryIdx)
			chfs = append(chfs, chfWithNode{chf: chf, node: chfNode})
		}
	}

	defaultValue := p.resolveInitialFunction(channelElem, name, mode.Name, chfs)

	if !p.world.IsTemplate(geometryIdx) {
		actualBreak := DefaultBreak
		switch dmxBreak.kind {
		case channelBreakOverwrite:
			At(InvalidBreakOverwrite{Channel: string(name), Mode: string(mode.Name)}, elementPosition(channelElem)).
				HandledBy("using break 1", p.problems)
		default:
			actualBreak = dmxBreak.brk
		}

		ids := p.addChannelFunctions(chfs, nil, name, mode, queue)
		mode.Channels = append(mode.Channels, Channel{
			Name: name, DmxBreak: actualBreak, Offsets: offsets,
			ChannelFunctions: ids, Bytes: channelBytes, Default: defaultValue,
		})
		return nil
	}

	instances := make(map[Name]Name)
	for _, refIdx := range p.world.References(geometryIdx) {
		refOffsets, ok := p.world.ReferenceOffsets(refIdx)
		if !ok {
			At(Unexpected{Description: "template pointed to geometry that was not a reference"}, elementPosition(channelElem)).
				HandledBy("skipping", p.problems)
			continue
		}
		refName, _ := p.world.Name(refIdx)

		var actualBreak Break
		var offsetOffset uint16
		switch dmxBreak.kind {
		case channelBreakOverwrite:
			if refOffsets.Overwrite == nil {
				At(MissingBreakInReference{Break: "Overwrite", Channel: string(name), Mode: string(mode.Name)}, elementPosition(channelElem)).
					HandledBy("skipping", p.problems)
				continue
			}
			actualBreak, offsetOffset = refOffsets.Overwrite.Break, refOffsets.Overwrite.Offset
		default:
			off, has := refOffsets.Normal[dmxBreak.brk]
			if !has {
				At(MissingBreakInReference{Break: dmxBreak.brk.String(), Channel: string(name), Mode: string(mode.Name)}, elementPosition(channelElem)).
					HandledBy("skipping", p.problems)
				continue
			}
			actualBreak, offsetOffset = dmxBreak.brk, off
		}

		retargeted := make([]chfWithNode, len(chfs))
		for i, c := range chfs {
			cc := c.chf
			cc.Geometry = refIdx // does not account for multi-level GeometryReference chains
			retargeted[i] = chfWithNode{chf: cc, node: c.node}
		}

		subName := refName
		ids := p.addChannelFunctions(retargeted, &subName, name, mode, queue)

		instantiatedOffsets, err := offsets.AddAll(offsetOffset - 1)
		if err != nil {
			At(Unexpected{Description: err.Error()}, elementPosition(channelElem)).HandledBy("skipping", p.problems)
			continue
		}

		dmxChannel := Channel{
			Name:             ValidName(fmt.Sprintf("%s_%s", refName, firstLogicAttr)),
			DmxBreak:         actualBreak,
			Offsets:          instantiatedOffsets,
			ChannelFunctions: ids,
			Bytes:            channelBytes,
			Default:          defaultValue,
		}

		sf := p.findOrCreateSubfixture(mode, refIdx, refName)
		if existing, exists := instances[sf.Name]; exists {
			return At(Unexpected{Description: fmt.Sprintf("added subfixture %s multiple times", existing)}, elementPosition(channelElem))
		}
		instances[sf.Name] = dmxChannel.Name
		sf.Channels = append(sf.Channels, dmxChannel)
	}
	if _, exists := tmplChannels[name]; exists {
		return At(Unexpected{Description: fmt.Sprintf("template channel name %q encountered multiple times", name)}, elementPosition(channelElem))
	}
	tmplChannels[name] = instances
	return nil
}

func (p *dmxModesParser) findOrCreateSubfixture(mode *DmxMode, refIdx GeometryIndex, refName Name) *Subfixture {
	for _, sf := range mode.Subfixtures {
		if sf.Geometry == refIdx {
			return sf
		}
	}
	sf := &Subfixture{Name: refName, Geometry: refIdx}
	mode.Subfixtures = append(mode.Subfixtures, sf)
	return sf
}

// resolveInitialFunction resolves a DMXChannel's InitialFunction attribute
// ("Channel.LogicalChannel.ChannelFunction") to the default value of the
// named channel function. On a missing or malformed attribute it falls back
// to the second channel function's default (the first real one, after the
// synthetic raw function) or, if there is none, the raw function's.
func (p *dmxModesParser) resolveInitialFunction(channelElem xmldom.Element, channelName, modeName Name, chfs []chfWithNode) uint32 {
	if v, ok := attr(channelElem, "InitialFunction"); ok {
		parts := strings.Split(v, ".")
		if len(parts) == 3 && Name(parts[0]) == channelName {
			for _, c := range chfs {
				if string(c.chf.Name) == parts[2] {
					return c.chf.Default
				}
			}
		} else {
			At(InvalidInitialFunction{Content: v, Channel: string(channelName), Mode: string(modeName)}, elementPosition(channelElem)).
				HandledBy("using default", p.problems)
		}
	}
	if len(chfs) > 1 {
		return chfs[1].chf.Default
	}
	return chfs[0].chf.Default
}

func (p *dmxModesParser) addChannelFunctions(chfs []chfWithNode, subfixture *Name, channelName Name, mode *DmxMode, queue *[]deferredModeMaster) []ChannelFunctionIndex {
	ids := make([]ChannelFunctionIndex, 0, len(chfs))
	for i, c := range chfs {
		idx := mode.ChannelFunctions.AddNode(c.chf)
		ids = append(ids, idx)
		if i == 0 {
			continue // the synthetic raw channel function never has a ModeMaster
		}
		if _, has := attr(c.node, "ModeMaster"); has {
			*queue = append(*queue, deferredModeMaster{
				chfNode: c.node, channelName: channelName, chfName: c.chf.Name,
				chfIdx: idx, subfixture: subfixture,
			})
		}
	}
	return ids
}

func parseFloatAttr(elem xmldom.Element, name string, def float64, problems *ProblemLog) float64 {
	v, ok := attr(elem, name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		At(InvalidAttribute{Attr: name, Tag: tagName(elem), Content: v, ExpectedType: "float", Cause: err}, elementPosition(elem)).
			HandledBy(fmt.Sprintf("using default %v", def), problems)
		return def
	}
	return f
}

// parse_channel_function's original never actually fails (every attribute
// falls back to a default on error), so this mirrors that and returns a
// value directly rather than an error.
func (p *dmxModesParser) parseChannelFunction(chfNode xmldom.Element, indexInParent int, channelBytes uint8, nextChf xmldom.Element, maxDmxValue uint32, geometryIdx GeometryIndex) ChannelFunction {
	chfAttr := optionalAttr(chfNode, "Attribute", "NoFeature")
	originalAttr := optionalAttr(chfNode, "OriginalAttribute", "")

	var chfName Name
	if v, ok := attr(chfNode, "Name"); ok {
		chfName = ValidName(v)
	} else {
		chfName = ValidName(fmt.Sprintf("%s %d", chfAttr, indexInParent+1))
	}

	dmxFrom := uint32(0)
	if v, ok := attr(chfNode, "DMXFrom"); ok {
		parsed, err := ParseDMX(v, channelBytes)
		if err != nil {
			At(InvalidAttribute{Attr: "DMXFrom", Tag: "ChannelFunction", Content: v, ExpectedType: "DMXValue", Cause: err}, elementPosition(chfNode)).
				HandledBy("using default 0", p.problems)
		} else {
			dmxFrom = parsed
		}
	}

	// The convention of using the next ChannelFunction's DMXFrom for this
	// one's DMXTo is not official GDTF, but matches what GDTF Builder emits.
	dmxTo := maxDmxValue
	if nextChf != nil {
		next := optionalAttr(nextChf, "DMXFrom", "0/1")
		parsed, err := ParseDMX(next, channelBytes)
		if err != nil {
			At(InvalidAttribute{Attr: "DMXFrom", Tag: "ChannelFunction", Content: next, ExpectedType: "DMXValue", Cause: err}, elementPosition(chfNode)).
				HandledBy("using maximum channel value for DMXTo of previous channel function", p.problems)
		} else if dmxFrom < parsed {
			dmxTo = parsed - 1
		}
	}

	defaultVal := uint32(0)
	if v, ok := attr(chfNode, "Default"); ok {
		parsed, err := ParseDMX(v, channelBytes)
		if err != nil {
			At(InvalidAttribute{Attr: "Default", Tag: "ChannelFunction", Content: v, ExpectedType: "DMXValue", Cause: err}, elementPosition(chfNode)).
				HandledBy("using default 0", p.problems)
		} else {
			defaultVal = parsed
		}
	}

	physFrom := parseFloatAttr(chfNode, "PhysicalFrom", 0, p.problems)
	physTo := parseFloatAttr(chfNode, "PhysicalTo", 1, p.problems)

	return ChannelFunction{
		Name: chfName, Geometry: geometryIdx,
		Attribute: chfAttr, OriginalAttribute: originalAttr,
		DmxFrom: dmxFrom, DmxTo: dmxTo,
		PhysFrom: physFrom, PhysTo: physTo,
		Default: defaultVal,
	}
}

func (p *dmxModesParser) handleModeMaster(d deferredModeMaster, tmplChannels templateChannels, mode *DmxMode) *ProblemAt {
	modeMaster, ok := attr(d.chfNode, "ModeMaster")
	if !ok {
		return At(Unexpected{Description: "mode master expected"}, elementPosition(d.chfNode))
	}

	masterPath := strings.Split(modeMaster, ".")
	masterChannelName := ValidName(masterPath[0])

	var dependencyChannel *Channel
	if subfixtureMap, isTemplate := tmplChannels[masterChannelName]; isTemplate {
		if d.subfixture == nil {
			return At(AmbiguousModeMaster{Master: string(masterChannelName), Channel: string(d.channelName), Mode: string(mode.Name)}, elementPosition(d.chfNode))
		}
		instantiatedName, ok := subfixtureMap[*d.subfixture]
		if !ok {
			return At(AmbiguousModeMaster{Master: string(masterChannelName), Channel: string(d.channelName), Mode: string(mode.Name)}, elementPosition(d.chfNode))
		}
		for _, sf := range mode.Subfixtures {
			if sf.Name != *d.subfixture {
				continue
			}
			for i := range sf.Channels {
				if sf.Channels[i].Name == instantiatedName {
					dependencyChannel = &sf.Channels[i]
					break
				}
			}
		}
		if dependencyChannel == nil {
			return At(Unexpected{Description: "subfixtures not present"}, elementPosition(d.chfNode))
		}
	} else {
		for i := range mode.Channels {
			if mode.Channels[i].Name == masterChannelName {
				dependencyChannel = &mode.Channels[i]
				break
			}
		}
		if dependencyChannel == nil {
			return At(UnknownChannel{Name: string(masterChannelName), Mode: string(mode.Name)}, elementPosition(d.chfNode))
		}
	}

	var master ChannelFunction
	var masterIndex ChannelFunctionIndex
	switch {
	case len(masterPath) > 1:
		if len(masterPath) < 3 {
			return At(InvalidAttribute{
				Attr: "ModeMaster", Tag: "ChannelFunction", Content: modeMaster, ExpectedType: "Node",
				Cause: fmt.Errorf("mode master attribute must contain either zero or two period separators"),
			}, elementPosition(d.chfNode))
		}
		dependencyChfName := masterPath[2]
		found := false
		for _, idx := range dependencyChannel.ChannelFunctions {
			chf, ok := mode.ChannelFunctions.NodeWeight(idx)
			if !ok {
				return At(Unexpected{Description: "invalid channel function index"}, elementPosition(d.chfNode))
			}
			if string(chf.Name) == dependencyChfName {
				master, masterIndex, found = chf, idx, true
				break
			}
		}
		if !found {
			return At(UnknownChannelFunction{Name: dependencyChfName, Mode: string(mode.Name)}, elementPosition(d.chfNode))
		}
	default:
		if len(dependencyChannel.ChannelFunctions) == 0 {
			return At(Unexpected{Description: "no raw dmx channel function"}, elementPosition(d.chfNode))
		}
		masterIndex = dependencyChannel.ChannelFunctions[0]
		chf, ok := mode.ChannelFunctions.NodeWeight(masterIndex)
		if !ok {
			return At(Unexpected{Description: "invalid channel function index"}, elementPosition(d.chfNode))
		}
		master = chf
	}

	modeFromStr, okFrom := attr(d.chfNode, "ModeFrom")
	modeToStr, okTo := attr(d.chfNode, "ModeTo")
	if !okFrom || !okTo {
		return At(MissingModeFromOrTo{Chf: string(d.chfName)}, elementPosition(d.chfNode))
	}

	modeFrom, err := ParseDMX(modeFromStr, dependencyChannel.Bytes)
	if err != nil {
		At(InvalidAttribute{Attr: "ModeFrom", Tag: "ChannelFunction", Content: modeFromStr, ExpectedType: "DMXValue", Cause: err}, elementPosition(d.chfNode)).
			HandledBy("using default 0", p.problems)
		modeFrom = 0
	}
	modeTo, err := ParseDMX(modeToStr, dependencyChannel.Bytes)
	if err != nil {
		At(InvalidAttribute{Attr: "ModeTo", Tag: "ChannelFunction", Content: modeToStr, ExpectedType: "DMXValue", Cause: err}, elementPosition(d.chfNode)).
			HandledBy("using default 0", p.problems)
		modeTo = 0
	}

	clippedFrom := modeFrom
	if master.DmxFrom > clippedFrom {
		clippedFrom = master.DmxFrom
	}
	clippedTo := modeTo
	if master.DmxTo < clippedTo {
		clippedTo = master.DmxTo
	}

	if clippedTo < clippedFrom {
		return At(UnreachableChannelFunction{Name: string(d.chfName), Mode: string(mode.Name), From: modeFrom, To: modeTo}, elementPosition(d.chfNode))
	}

	if _, err := mode.ChannelFunctions.AddEdge(masterIndex, d.chfIdx, ModeMaster{From: clippedFrom, To: clippedTo}); err != nil {
		return At(Unexpected{Description: err.Error()}, elementPosition(d.chfNode))
	}
	return nil
}
