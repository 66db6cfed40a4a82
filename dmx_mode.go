package gdtf

import "github.com/gdtf-go/gdtf/internal/graph"

// ChannelFunctionIndex identifies a node in a DmxMode's channel-function
// DAG.
type ChannelFunctionIndex = graph.NodeIndex

// DmxMode is one compiled DMXMode of a fixture: a flat list of non-template
// channels, the subfixtures holding one Channel per instance of each
// template channel, plus the channel-function dependency DAG shared across
// all of them.
type DmxMode struct {
	Name        Name
	Description string
	Geometry    GeometryIndex // always top-level

	Channels    []Channel    // non-template channels, in document order
	Subfixtures []*Subfixture // one per GeometryReference instantiating a template channel's geometry

	// ChannelFunctions edges run from a dependency channel function to the
	// channel function it gates: an edge's ModeMaster weight is the DMX
	// range of the dependency within which the dependent is active.
	ChannelFunctions *graph.Graph[ChannelFunction, ModeMaster]
}

func newDmxMode(name Name, description string, geometry GeometryIndex) *DmxMode {
	return &DmxMode{
		Name:             name,
		Description:      description,
		Geometry:         geometry,
		ChannelFunctions: graph.New[ChannelFunction, ModeMaster](),
	}
}

// Channel is a single DMX channel of a mode: either declared directly, or
// instantiated from a template channel for one subfixture.
type Channel struct {
	Name     Name
	DmxBreak Break
	// Bytes is between 1 and 4; a virtual channel with no DMX address of
	// its own uses the maximum, 4, for resolution purposes.
	Bytes uint8
	// Offsets is empty for a virtual channel.
	Offsets ChannelOffsets
	// ChannelFunctions indexes into the owning DmxMode's ChannelFunctions
	// graph. The first entry is always the synthetic raw DMX channel
	// function spanning the whole channel.
	ChannelFunctions []ChannelFunctionIndex
	Default          uint32
}

// Subfixture groups the channels instantiated, for one GeometryReference,
// from every template channel of its template geometry.
type Subfixture struct {
	Name     Name
	Channels []Channel
	Geometry GeometryIndex // the GeometryReference this subfixture instantiates
}

// ChannelFunction is one ChannelFunction of a LogicalChannel, or the
// synthetic raw-DMX function implicitly covering a whole channel.
type ChannelFunction struct {
	Name              Name
	Geometry          GeometryIndex
	Attribute         string
	OriginalAttribute string
	DmxFrom, DmxTo    uint32
	PhysFrom, PhysTo  float64
	Default           uint32
}

// ModeMaster is a channel-function DAG edge: the dependent channel function
// only applies while its dependency's raw DMX value lies within [From, To].
type ModeMaster struct {
	From, To uint32
}
