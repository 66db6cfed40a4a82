package gdtf

import "fmt"

// Position is a 1-based line/column into the source XML document, or the
// zero value (0, 0) when no position information is available (e.g. for a
// synthesized default name). Sourced from xmldom's Element/Attr Position().
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Problem is a recoverable inconsistency found while parsing a GDTF
// document. Every kind in spec.md §4.1 has a concrete type implementing
// this interface below.
type Problem interface {
	error
	problemKind() string
}

// ProblemAt pairs a Problem with the source location of the offending XML
// node or attribute. It must be consumed by calling HandledBy, which is the
// only way to turn it into a permanent, ordered log entry; nothing else in
// this package can construct a HandledProblem.
type ProblemAt struct {
	problem Problem
	pos     Position
}

// At attaches a source position to a Problem.
func At(p Problem, pos Position) *ProblemAt {
	return &ProblemAt{problem: p, pos: pos}
}

func (p *ProblemAt) Error() string {
	return fmt.Sprintf("%s: %s", p.pos, p.problem.Error())
}

// Problem returns the underlying Problem.
func (p *ProblemAt) Problem() Problem { return p.problem }

// Position returns the source location of the problem.
func (p *ProblemAt) Position() Position { return p.pos }

// HandledProblem is a ProblemAt plus the recovery action actually taken. It
// is the only thing ever appended to a ProblemLog.
type HandledProblem struct {
	ProblemAt
	Action string
}

func (h HandledProblem) Error() string {
	return fmt.Sprintf("%s; %s", h.ProblemAt.Error(), h.Action)
}

// ProblemLog is the ordered, append-only log of every recoverable
// inconsistency encountered during a parse. Order is encounter order;
// duplicate problems from the same root cause are expected and not
// deduplicated (spec.md §7).
type ProblemLog []HandledProblem

// HandledBy is the sole combinator that consumes a ProblemAt: it appends a
// HandledProblem recording the recovery action to log. Callers decide the
// action at the point where the recovery actually happens (spec.md §4.1);
// this method never decides on their behalf.
func (p *ProblemAt) HandledBy(action string, log *ProblemLog) {
	*log = append(*log, HandledProblem{ProblemAt: *p, Action: action})
}

// OrDefault consumes an optional ProblemAt (p == nil means "no problem"):
// if p is non-nil it is handled with action and def is returned instead of
// v; otherwise v is returned unchanged. This is the standard shape for
// "parse this attribute, or fall back to a default and record why".
func OrDefault[T any](v T, p *ProblemAt, def T, action string, log *ProblemLog) T {
	if p != nil {
		p.HandledBy(action, log)
		return def
	}
	return v
}

// --- concrete Problem kinds (spec.md §4.1, exhaustive) ----------------------

type NoDataVersion struct{}

func (NoDataVersion) problemKind() string { return "NoDataVersion" }
func (NoDataVersion) Error() string       { return "no DataVersion attribute found on GDTF root element" }

type InvalidAttribute struct {
	Attr, Tag, Content, ExpectedType string
	Cause                            error
}

func (InvalidAttribute) problemKind() string { return "InvalidAttribute" }
func (p InvalidAttribute) Error() string {
	return fmt.Sprintf("invalid attribute %s on %s: content %q is not a valid %s: %v",
		p.Attr, p.Tag, p.Content, p.ExpectedType, p.Cause)
}

type XmlAttributeMissing struct {
	Attr, Tag string
}

func (XmlAttributeMissing) problemKind() string { return "XmlAttributeMissing" }
func (p XmlAttributeMissing) Error() string {
	return fmt.Sprintf("required attribute %s missing on %s", p.Attr, p.Tag)
}

type XmlNodeMissing struct {
	Parent, Missing string
}

func (XmlNodeMissing) problemKind() string { return "XmlNodeMissing" }
func (p XmlNodeMissing) Error() string {
	return fmt.Sprintf("required child node %s missing on %s", p.Missing, p.Parent)
}

type UnexpectedXmlNode struct {
	Tag string
}

func (UnexpectedXmlNode) problemKind() string { return "UnexpectedXmlNode" }
func (p UnexpectedXmlNode) Error() string     { return fmt.Sprintf("unexpected XML node %s", p.Tag) }

type UnknownGeometry struct {
	Name Name
}

func (UnknownGeometry) problemKind() string { return "UnknownGeometry" }
func (p UnknownGeometry) Error() string     { return fmt.Sprintf("unknown geometry %q", p.Name) }

type DuplicateGeometryName struct {
	Name Name
}

func (DuplicateGeometryName) problemKind() string { return "DuplicateGeometryName" }
func (p DuplicateGeometryName) Error() string {
	return fmt.Sprintf("duplicate geometry name %q", p.Name)
}

type InvalidGeometryReference struct {
	Cause error
}

func (InvalidGeometryReference) problemKind() string { return "InvalidGeometryReference" }
func (p InvalidGeometryReference) Error() string {
	return fmt.Sprintf("invalid geometry reference: %v", p.Cause)
}

type UnexpectedTopLevelGeometryReference struct {
	Name Name
}

func (UnexpectedTopLevelGeometryReference) problemKind() string {
	return "UnexpectedTopLevelGeometryReference"
}
func (p UnexpectedTopLevelGeometryReference) Error() string {
	return fmt.Sprintf("top-level GeometryReference %q is useless", p.Name)
}

type NonTopLevelDmxModeGeometry struct {
	Geometry, Mode Name
}

func (NonTopLevelDmxModeGeometry) problemKind() string { return "NonTopLevelDmxModeGeometry" }
func (p NonTopLevelDmxModeGeometry) Error() string {
	return fmt.Sprintf("DMX mode %q geometry %q is not top-level", p.Mode, p.Geometry)
}

type MissingBreakOffset struct{}

func (MissingBreakOffset) problemKind() string { return "MissingBreakOffset" }
func (MissingBreakOffset) Error() string       { return "missing break offset" }

type MissingBreakInReference struct {
	Break, Channel, Mode string
}

func (MissingBreakInReference) problemKind() string { return "MissingBreakInReference" }
func (p MissingBreakInReference) Error() string {
	return fmt.Sprintf("break %s missing in reference offsets for channel %s in mode %s", p.Break, p.Channel, p.Mode)
}

type InvalidBreakOverwrite struct {
	Channel, Mode string
}

func (InvalidBreakOverwrite) problemKind() string { return "InvalidBreakOverwrite" }
func (p InvalidBreakOverwrite) Error() string {
	return fmt.Sprintf("channel %s in mode %s has Break=Overwrite outside a template", p.Channel, p.Mode)
}

type DuplicateDmxBreak struct {
	DuplicateBreak    Break
	GeometryReference Name
}

func (DuplicateDmxBreak) problemKind() string { return "DuplicateDmxBreak" }
func (p DuplicateDmxBreak) Error() string {
	return fmt.Sprintf("duplicate DMX break %d in reference %q", p.DuplicateBreak, p.GeometryReference)
}

type UnsupportedByteCount struct {
	N int
}

func (UnsupportedByteCount) problemKind() string { return "UnsupportedByteCount" }
func (p UnsupportedByteCount) Error() string {
	return fmt.Sprintf("unsupported byte count %d, maximum is 4", p.N)
}

type InvalidInitialFunction struct {
	Content, Channel, Mode string
}

func (InvalidInitialFunction) problemKind() string { return "InvalidInitialFunction" }
func (p InvalidInitialFunction) Error() string {
	return fmt.Sprintf("invalid InitialFunction %q for channel %s in mode %s", p.Content, p.Channel, p.Mode)
}

type UnknownChannel struct {
	Name, Mode string
}

func (UnknownChannel) problemKind() string { return "UnknownChannel" }
func (p UnknownChannel) Error() string {
	return fmt.Sprintf("unknown channel %s in mode %s", p.Name, p.Mode)
}

type UnknownChannelFunction struct {
	Name, Mode string
}

func (UnknownChannelFunction) problemKind() string { return "UnknownChannelFunction" }
func (p UnknownChannelFunction) Error() string {
	return fmt.Sprintf("unknown channel function %s in mode %s", p.Name, p.Mode)
}

type MissingModeFromOrTo struct {
	Chf string
}

func (MissingModeFromOrTo) problemKind() string { return "MissingModeFromOrTo" }
func (p MissingModeFromOrTo) Error() string {
	return fmt.Sprintf("channel function %s is missing ModeFrom or ModeTo", p.Chf)
}

type UnreachableChannelFunction struct {
	Name, Mode   string
	From, To     uint32
}

func (UnreachableChannelFunction) problemKind() string { return "UnreachableChannelFunction" }
func (p UnreachableChannelFunction) Error() string {
	return fmt.Sprintf("channel function %s in mode %s unreachable: mode range [%d, %d] does not overlap the mode master's DMX range", p.Name, p.Mode, p.From, p.To)
}

type AmbiguousModeMaster struct {
	Master, Channel, Mode string
}

func (AmbiguousModeMaster) problemKind() string { return "AmbiguousModeMaster" }
func (p AmbiguousModeMaster) Error() string {
	return fmt.Sprintf("ambiguous mode master %s for channel %s in mode %s", p.Master, p.Channel, p.Mode)
}

type Unexpected struct {
	Description string
}

func (Unexpected) problemKind() string { return "Unexpected" }
func (p Unexpected) Error() string {
	return fmt.Sprintf("unexpected condition, this is a bug: %s", p.Description)
}
