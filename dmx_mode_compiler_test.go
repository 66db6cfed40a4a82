package gdtf

import "testing"

func TestParseDmxModesSimpleChannel(t *testing.T) {
	root := parseFixtureType(t, `<FixtureType>
		<Geometries>
			<Geometry Name="Base"/>
		</Geometries>
		<DMXModes>
			<DMXMode Name="Mode1" Geometry="Base">
				<DMXChannels>
					<DMXChannel Geometry="Base" Offset="1">
						<LogicalChannel Attribute="Dim">
							<ChannelFunction Name="Dim" Attribute="Dim" DMXFrom="0/1" Default="0/1"/>
						</LogicalChannel>
					</DMXChannel>
				</DMXChannels>
			</DMXMode>
		</DMXModes>
	</FixtureType>`)

	world, problems := ParseGeometries(root)
	if len(problems) != 0 {
		t.Fatalf("unexpected geometry problems: %v", problems)
	}
	modes, problems := ParseDmxModes(root, world)
	if len(problems) != 0 {
		t.Fatalf("unexpected mode problems: %v", problems)
	}
	if len(modes) != 1 {
		t.Fatalf("got %d modes, want 1", len(modes))
	}
	mode := modes[0]
	if len(mode.Channels) != 1 {
		t.Fatalf("got %d channels, want 1", len(mode.Channels))
	}
	ch := mode.Channels[0]
	if ch.Name != "Base_Dim" {
		t.Errorf("channel name = %q, want %q", ch.Name, "Base_Dim")
	}
	if ch.Bytes != 1 {
		t.Errorf("channel bytes = %d, want 1", ch.Bytes)
	}
	if len(ch.ChannelFunctions) != 2 {
		t.Fatalf("got %d channel functions, want 2 (raw + Dim)", len(ch.ChannelFunctions))
	}
	raw, ok := mode.ChannelFunctions.NodeWeight(ch.ChannelFunctions[0])
	if !ok || raw.OriginalAttribute != "RawDMX" {
		t.Errorf("first channel function should be the synthetic raw DMX function, got %+v", raw)
	}
}

func TestParseDmxModesModeMasterOnRawChannelAddsEdge(t *testing.T) {
	root := parseFixtureType(t, `<FixtureType>
		<Geometries>
			<Geometry Name="Base"/>
		</Geometries>
		<DMXModes>
			<DMXMode Name="Mode1" Geometry="Base">
				<DMXChannels>
					<DMXChannel Geometry="Base" Offset="1">
						<LogicalChannel Attribute="Shutter">
							<ChannelFunction Name="Open" Attribute="Shutter" DMXFrom="0/1"/>
							<ChannelFunction Name="Strobe" Attribute="Shutter" DMXFrom="128/1"
								ModeMaster="Base_Shutter" ModeFrom="128/1" ModeTo="255/1"/>
						</LogicalChannel>
					</DMXChannel>
				</DMXChannels>
			</DMXMode>
		</DMXModes>
	</FixtureType>`)

	world, problems := ParseGeometries(root)
	if len(problems) != 0 {
		t.Fatalf("unexpected geometry problems: %v", problems)
	}
	modes, problems := ParseDmxModes(root, world)
	if len(problems) != 0 {
		t.Fatalf("unexpected mode problems: %v", problems)
	}

	mode := modes[0]
	if mode.ChannelFunctions.NodeCount() != 3 {
		t.Fatalf("got %d channel functions, want 3 (raw, Open, Strobe)", mode.ChannelFunctions.NodeCount())
	}

	ch := mode.Channels[0]
	rawIdx := ch.ChannelFunctions[0]
	strobeIdx := ch.ChannelFunctions[2]

	outEdges := mode.ChannelFunctions.OutEdges(rawIdx)
	if len(outEdges) != 1 {
		t.Fatalf("raw channel function has %d outgoing edges, want 1", len(outEdges))
	}
	from, to, ok := mode.ChannelFunctions.EdgeEndpoints(outEdges[0])
	if !ok || from != rawIdx || to != strobeIdx {
		t.Errorf("edge endpoints = (%v, %v), want (%v, %v)", from, to, rawIdx, strobeIdx)
	}
	weight, ok := mode.ChannelFunctions.EdgeWeight(outEdges[0])
	if !ok || weight.From != 128 || weight.To != 255 {
		t.Errorf("edge weight = %+v, want {From:128 To:255}", weight)
	}
}

func TestParseDmxModesModeMasterUnreachableReported(t *testing.T) {
	// Open's DMXTo is implicitly clipped to 127 by Strobe's DMXFrom of 128;
	// a ModeFrom of 200 then falls entirely outside Open's own range.
	root := parseFixtureType(t, `<FixtureType>
		<Geometries>
			<Geometry Name="Base"/>
		</Geometries>
		<DMXModes>
			<DMXMode Name="Mode1" Geometry="Base">
				<DMXChannels>
					<DMXChannel Geometry="Base" Offset="1">
						<LogicalChannel Attribute="Shutter">
							<ChannelFunction Name="Open" Attribute="Shutter" DMXFrom="0/1"/>
							<ChannelFunction Name="Strobe" Attribute="Shutter" DMXFrom="128/1"
								ModeMaster="Base_Shutter.LogicalChannel.Open" ModeFrom="200/1" ModeTo="255/1"/>
						</LogicalChannel>
					</DMXChannel>
				</DMXChannels>
			</DMXMode>
		</DMXModes>
	</FixtureType>`)

	world, problems := ParseGeometries(root)
	if len(problems) != 0 {
		t.Fatalf("unexpected geometry problems: %v", problems)
	}
	_, problems = ParseDmxModes(root, world)

	found := false
	for _, p := range problems {
		if p.Problem().problemKind() == "UnreachableChannelFunction" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected UnreachableChannelFunction problem, got %v", problems)
	}
}

func TestParseDmxModesTemplateGeometryProducesSubfixtures(t *testing.T) {
	root := parseFixtureType(t, `<FixtureType>
		<Geometries>
			<Geometry Name="Beam"/>
			<Geometry Name="Holder">
				<GeometryReference Name="Ref1" Geometry="Beam">
					<Break DMXBreak="1" DMXOffset="1"/>
				</GeometryReference>
				<GeometryReference Name="Ref2" Geometry="Beam">
					<Break DMXBreak="1" DMXOffset="2"/>
				</GeometryReference>
			</Geometry>
		</Geometries>
		<DMXModes>
			<DMXMode Name="Mode1" Geometry="Holder">
				<DMXChannels>
					<DMXChannel Geometry="Beam" Offset="1" DMXBreak="1">
						<LogicalChannel Attribute="Dim">
							<ChannelFunction Name="Dim" Attribute="Dim" DMXFrom="0/1" Default="0/1"/>
						</LogicalChannel>
					</DMXChannel>
				</DMXChannels>
			</DMXMode>
		</DMXModes>
	</FixtureType>`)

	world, problems := ParseGeometries(root)
	if len(problems) != 0 {
		t.Fatalf("unexpected geometry problems: %v", problems)
	}
	modes, problems := ParseDmxModes(root, world)
	if len(problems) != 0 {
		t.Fatalf("unexpected mode problems: %v", problems)
	}

	mode := modes[0]
	if len(mode.Channels) != 0 {
		t.Errorf("got %d non-template channels, want 0", len(mode.Channels))
	}
	if len(mode.Subfixtures) != 2 {
		t.Fatalf("got %d subfixtures, want 2", len(mode.Subfixtures))
	}
	if mode.ChannelFunctions.NodeCount() != 4 {
		t.Errorf("got %d channel functions, want 4 (raw+Dim per subfixture)", mode.ChannelFunctions.NodeCount())
	}
	for _, sf := range mode.Subfixtures {
		if len(sf.Channels) != 1 {
			t.Errorf("subfixture %q has %d channels, want 1", sf.Name, len(sf.Channels))
		}
	}
}

func TestParseDmxModesChannelGeometryTranslatedThroughRenameLookup(t *testing.T) {
	// Both branches declare a "Lens" geometry; deduplication renames the
	// second one to "Lens (in OtherHead)" (mirroring
	// TestParseGeometriesDuplicateNamesDeduplicated). The DMXChannel below
	// is declared under the OtherHead mode using the original, pre-dedup
	// name "Lens" — the compiler must consult the rename lookup to find it,
	// not just the flat name index.
	root := parseFixtureType(t, `<FixtureType>
		<Geometries>
			<Geometry Name="Head">
				<Geometry Name="Lens"/>
			</Geometry>
			<Geometry Name="OtherHead">
				<Geometry Name="Lens"/>
			</Geometry>
		</Geometries>
		<DMXModes>
			<DMXMode Name="Mode1" Geometry="OtherHead">
				<DMXChannels>
					<DMXChannel Geometry="Lens" Offset="1">
						<LogicalChannel Attribute="Dim">
							<ChannelFunction Name="Dim" Attribute="Dim" DMXFrom="0/1" Default="0/1"/>
						</LogicalChannel>
					</DMXChannel>
				</DMXChannels>
			</DMXMode>
		</DMXModes>
	</FixtureType>`)

	world, problems := ParseGeometries(root)
	foundDuplicate := false
	for _, p := range problems {
		if p.Problem().problemKind() == "DuplicateGeometryName" {
			foundDuplicate = true
		}
	}
	if !foundDuplicate {
		t.Fatalf("expected DuplicateGeometryName problem, got %v", problems)
	}
	renamedLens, ok := world.Index("Lens (in OtherHead)")
	if !ok {
		t.Fatalf("expected renamed geometry %q to exist", "Lens (in OtherHead)")
	}

	modes, problems := ParseDmxModes(root, world)
	if len(problems) != 0 {
		t.Fatalf("unexpected mode problems: %v", problems)
	}
	if len(modes) != 1 {
		t.Fatalf("got %d modes, want 1", len(modes))
	}

	mode := modes[0]
	if len(mode.Channels) != 1 {
		t.Fatalf("got %d channels, want 1", len(mode.Channels))
	}
	ch := mode.Channels[0]
	if ch.Name != "Lens (in OtherHead)_Dim" {
		t.Errorf("channel name = %q, want %q (resolved through the rename lookup)", ch.Name, "Lens (in OtherHead)_Dim")
	}

	raw, ok := mode.ChannelFunctions.NodeWeight(ch.ChannelFunctions[0])
	if !ok || raw.Geometry != renamedLens {
		t.Errorf("channel function geometry = %v, want the renamed Lens index %v", raw.Geometry, renamedLens)
	}
}

func TestParseDmxModesRejectsNonTopLevelGeometry(t *testing.T) {
	root := parseFixtureType(t, `<FixtureType>
		<Geometries>
			<Geometry Name="Base">
				<Geometry Name="Nested"/>
			</Geometry>
		</Geometries>
		<DMXModes>
			<DMXMode Name="Mode1" Geometry="Nested">
				<DMXChannels/>
			</DMXMode>
		</DMXModes>
	</FixtureType>`)

	world, problems := ParseGeometries(root)
	if len(problems) != 0 {
		t.Fatalf("unexpected geometry problems: %v", problems)
	}
	modes, problems := ParseDmxModes(root, world)
	if len(modes) != 0 {
		t.Errorf("expected mode to be dropped entirely, got %d modes", len(modes))
	}

	found := false
	for _, p := range problems {
		if p.Problem().problemKind() == "NonTopLevelDmxModeGeometry" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected NonTopLevelDmxModeGeometry problem, got %v", problems)
	}
}
