package gdtf

import "testing"

func TestGeometryWorldAddTopLevelAndChild(t *testing.T) {
	w := NewGeometryWorld()

	base, err := w.AddTopLevel(geometryNode{name: "Base", kind: geometryKindPlain})
	if err != nil {
		t.Fatalf("AddTopLevel: %v", err)
	}
	head, err := w.AddChild(geometryNode{name: "Head", kind: geometryKindPlain}, base)
	if err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	if !w.IsTopLevel(base) {
		t.Errorf("Base should be top-level")
	}
	if w.IsTopLevel(head) {
		t.Errorf("Head should not be top-level")
	}
	parent, ok := w.Parent(head)
	if !ok || parent != base {
		t.Errorf("Parent(Head) = (%v, %v), want (%v, true)", parent, ok, base)
	}
	if got := w.TopLevelIndex(head); got != base {
		t.Errorf("TopLevelIndex(Head) = %v, want %v", got, base)
	}
	children := w.Children(base)
	if len(children) != 1 || children[0] != head {
		t.Errorf("Children(Base) = %v, want [%v]", children, head)
	}
}

func TestGeometryWorldDuplicateNameRejected(t *testing.T) {
	w := NewGeometryWorld()
	if _, err := w.AddTopLevel(geometryNode{name: "Base", kind: geometryKindPlain}); err != nil {
		t.Fatalf("AddTopLevel: %v", err)
	}
	if _, err := w.AddTopLevel(geometryNode{name: "Base", kind: geometryKindPlain}); err == nil {
		t.Errorf("expected error adding duplicate top-level name")
	}
}

func TestGeometryWorldAddChildUnknownParent(t *testing.T) {
	w := NewGeometryWorld()
	if _, err := w.AddChild(geometryNode{name: "Head", kind: geometryKindPlain}, 42); err == nil {
		t.Errorf("expected error adding child to unknown parent")
	}
}

func TestGeometryWorldTemplateRelationship(t *testing.T) {
	w := NewGeometryWorld()
	beam, _ := w.AddTopLevel(geometryNode{name: "Beam", kind: geometryKindPlain})
	other, _ := w.AddTopLevel(geometryNode{name: "Other", kind: geometryKindPlain})
	ref1, _ := w.AddTopLevel(geometryNode{name: "Ref1", kind: geometryKindReference})
	ref2, _ := w.AddTopLevel(geometryNode{name: "Ref2", kind: geometryKindReference})

	if err := w.AddTemplateRelationship(beam, ref1); err != nil {
		t.Fatalf("AddTemplateRelationship: %v", err)
	}
	if err := w.AddTemplateRelationship(beam, ref2); err != nil {
		t.Fatalf("AddTemplateRelationship: %v", err)
	}

	if !w.IsTemplate(beam) {
		t.Errorf("Beam should be a template")
	}
	if w.IsTemplate(other) {
		t.Errorf("Other should not be a template")
	}
	refs := w.References(beam)
	if len(refs) != 2 || refs[0] != ref1 || refs[1] != ref2 {
		t.Errorf("References(Beam) = %v, want [%v %v]", refs, ref1, ref2)
	}
	tmpl, ok := w.TemplateOf(ref1)
	if !ok || tmpl != beam {
		t.Errorf("TemplateOf(Ref1) = (%v, %v), want (%v, true)", tmpl, ok, beam)
	}
}

func TestGeometryWorldTemplateRelationshipRejectsSelfAndNonTopLevel(t *testing.T) {
	w := NewGeometryWorld()
	base, _ := w.AddTopLevel(geometryNode{name: "Base", kind: geometryKindPlain})
	child, _ := w.AddChild(geometryNode{name: "Child", kind: geometryKindPlain}, base)
	ref, _ := w.AddTopLevel(geometryNode{name: "Ref", kind: geometryKindReference})

	if err := w.AddTemplateRelationship(base, base); err == nil {
		t.Errorf("expected error on self-reference")
	}
	if err := w.AddTemplateRelationship(child, ref); err == nil {
		t.Errorf("expected error referencing a non-top-level geometry")
	}
}

func TestGeometryWorldDeduplicatedName(t *testing.T) {
	w := NewGeometryWorld()
	if got := w.DeduplicatedName("Head", "Lens"); got != "Lens" {
		t.Errorf("DeduplicatedName with no rename = %q, want %q", got, "Lens")
	}
	w.recordRename("Head", "Lens", "Lens (in Head)")
	if got := w.DeduplicatedName("Head", "Lens"); got != "Lens (in Head)" {
		t.Errorf("DeduplicatedName = %q, want %q", got, "Lens (in Head)")
	}
	if got := w.DeduplicatedName("OtherHead", "Lens"); got != "Lens" {
		t.Errorf("DeduplicatedName under different top-level = %q, want %q", got, "Lens")
	}
}
