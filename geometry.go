package gdtf

import (
	"fmt"

	"github.com/gdtf-go/gdtf/internal/graph"
)

// GeometryIndex identifies a node in a GeometryWorld.
type GeometryIndex = graph.NodeIndex

type geometryKind int

const (
	geometryKindPlain geometryKind = iota
	geometryKindReference
)

// BreakOffset pairs a DMX break with the offset applied to channels
// instantiated through it.
type BreakOffset struct {
	Break  Break
	Offset uint16
}

// ReferenceOffsets holds the DMX offset bookkeeping carried by a
// GeometryReference: one offset per break it participates in, and an
// optional overwrite slot used when a channel's own Break attribute is
// "Overwrite".
type ReferenceOffsets struct {
	Normal    map[Break]uint16
	Overwrite *BreakOffset
}

func newReferenceOffsets() ReferenceOffsets {
	return ReferenceOffsets{Normal: make(map[Break]uint16)}
}

type geometryNode struct {
	name    Name
	kind    geometryKind
	offsets ReferenceOffsets // only meaningful when kind == geometryKindReference
}

type renameKey struct {
	topLevel Name
	original Name
}

// GeometryWorld is the validated container for a fixture's geometry tree:
// a parent/child tree of uniquely-named nodes, a separate template relation
// (top-level plain geometry -> each GeometryReference instantiating it),
// and a rename lookup recording how deduplication renamed a geometry
// relative to the top-level ancestor it was declared under.
type GeometryWorld struct {
	tree      *graph.Graph[geometryNode, struct{}]
	templates *graph.Graph[struct{}, struct{}]
	names     map[Name]GeometryIndex
	renames   map[renameKey]Name
}

// NewGeometryWorld returns an empty GeometryWorld.
func NewGeometryWorld() *GeometryWorld {
	return &GeometryWorld{
		tree:      graph.New[geometryNode, struct{}](),
		templates: graph.New[struct{}, struct{}](),
		names:     make(map[Name]GeometryIndex),
		renames:   make(map[renameKey]Name),
	}
}

var errNameTaken = fmt.Errorf("geometry name already taken")

func (w *GeometryWorld) addNode(node geometryNode, parent *GeometryIndex) (GeometryIndex, error) {
	if _, taken := w.names[node.name]; taken {
		return 0, errNameTaken
	}
	idx := w.tree.AddNode(node)
	templateIdx := w.templates.AddNode(struct{}{})
	if idx != templateIdx {
		return 0, fmt.Errorf("gdtf: geometry world node index desync, this is a bug")
	}
	if parent != nil {
		if _, err := w.tree.AddEdge(*parent, idx, struct{}{}); err != nil {
			return 0, err
		}
	}
	w.names[node.name] = idx
	return idx, nil
}

// AddTopLevel inserts a top-level geometry node. It fails if the name is
// already taken.
func (w *GeometryWorld) AddTopLevel(node geometryNode) (GeometryIndex, error) {
	return w.addNode(node, nil)
}

// AddChild inserts geometry node as a child of parent. It fails if the name
// is already taken or parent does not exist.
func (w *GeometryWorld) AddChild(node geometryNode, parent GeometryIndex) (GeometryIndex, error) {
	if _, ok := w.tree.NodeWeight(parent); !ok {
		return 0, graph.ErrInvalidIndex
	}
	return w.addNode(node, &parent)
}

// Index returns the index of the geometry named name.
func (w *GeometryWorld) Index(name Name) (GeometryIndex, bool) {
	idx, ok := w.names[name]
	return idx, ok
}

func (w *GeometryWorld) node(idx GeometryIndex) (geometryNode, bool) {
	return w.tree.NodeWeight(idx)
}

// Name returns the name of the geometry at idx.
func (w *GeometryWorld) Name(idx GeometryIndex) (Name, bool) {
	n, ok := w.node(idx)
	if !ok {
		return "", false
	}
	return n.name, true
}

// IsReference reports whether the geometry at idx is a GeometryReference.
func (w *GeometryWorld) IsReference(idx GeometryIndex) bool {
	n, ok := w.node(idx)
	return ok && n.kind == geometryKindReference
}

// ReferenceOffsets returns the offsets carried by a GeometryReference node.
func (w *GeometryWorld) ReferenceOffsets(idx GeometryIndex) (ReferenceOffsets, bool) {
	n, ok := w.node(idx)
	if !ok || n.kind != geometryKindReference {
		return ReferenceOffsets{}, false
	}
	return n.offsets, true
}

// Parent returns the parent of idx, or false if idx is top-level or
// unknown.
func (w *GeometryWorld) Parent(idx GeometryIndex) (GeometryIndex, bool) {
	in := w.tree.InEdges(idx)
	if len(in) == 0 {
		return 0, false
	}
	from, _, ok := w.tree.EdgeEndpoints(in[0])
	return from, ok
}

// IsTopLevel reports whether idx has no parent. Unknown indices are
// considered top-level, matching the original parser's convention.
func (w *GeometryWorld) IsTopLevel(idx GeometryIndex) bool {
	_, ok := w.Parent(idx)
	return !ok
}

// Children returns the direct children of idx, in insertion order.
func (w *GeometryWorld) Children(idx GeometryIndex) []GeometryIndex {
	return w.tree.Successors(idx)
}

// TopLevelIndex walks up the tree from idx to its top-level ancestor. If
// idx is already top-level (or unknown), idx itself is returned.
func (w *GeometryWorld) TopLevelIndex(idx GeometryIndex) GeometryIndex {
	cur := idx
	for {
		parent, ok := w.Parent(cur)
		if !ok {
			return cur
		}
		cur = parent
	}
}

// AddTemplateRelationship links reference as an instantiation of the
// top-level plain geometry template. It rejects self-references and
// references whose target is not a top-level plain geometry.
func (w *GeometryWorld) AddTemplateRelationship(template, reference GeometryIndex) error {
	if template == reference {
		return fmt.Errorf("a geometry cannot reference itself")
	}
	targetNode, ok := w.node(template)
	if !ok {
		return graph.ErrInvalidIndex
	}
	if targetNode.kind != geometryKindPlain {
		return fmt.Errorf("referenced geometry %q is not a plain geometry", targetNode.name)
	}
	if !w.IsTopLevel(template) {
		return fmt.Errorf("referenced geometry %q is not top-level", targetNode.name)
	}
	_, err := w.templates.AddEdge(template, reference, struct{}{})
	return err
}

// TemplateOf returns the template geometry that reference instantiates, if
// any.
func (w *GeometryWorld) TemplateOf(reference GeometryIndex) (GeometryIndex, bool) {
	in := w.templates.InEdges(reference)
	if len(in) == 0 {
		return 0, false
	}
	from, _, ok := w.templates.EdgeEndpoints(in[0])
	return from, ok
}

// IsTemplate reports whether idx has at least one GeometryReference
// instantiating it.
func (w *GeometryWorld) IsTemplate(idx GeometryIndex) bool {
	return len(w.templates.OutEdges(idx)) > 0
}

// References returns every GeometryReference node instantiating the
// template at idx, in the order the template relationships were added.
func (w *GeometryWorld) References(idx GeometryIndex) []GeometryIndex {
	return w.templates.Successors(idx)
}

// DeduplicatedName looks up the rename lookup produced during geometry
// resolution: given the top-level geometry a DMX mode channel is declared
// under and the original (pre-dedup) geometry name, returns the name that
// geometry actually ended up with. If no rename happened, geometry is
// returned unchanged.
func (w *GeometryWorld) DeduplicatedName(topLevel, geometry Name) Name {
	if renamed, ok := w.renames[renameKey{topLevel: topLevel, original: geometry}]; ok {
		return renamed
	}
	return geometry
}

func (w *GeometryWorld) recordRename(topLevel, original, renamed Name) {
	w.renames[renameKey{topLevel: topLevel, original: original}] = renamed
}

// RenameCount returns the number of entries in the rename lookup. Exposed
// mainly for tests.
func (w *GeometryWorld) RenameCount() int {
	return len(w.renames)
}

// NodeCount returns the total number of geometry nodes in the world.
func (w *GeometryWorld) NodeCount() int {
	return w.tree.NodeCount()
}
