package gdtf

import (
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// elementPosition reads the source position of elem.
func elementPosition(elem xmldom.Element) Position {
	line, col, _ := elem.Position()
	return Position{Line: line, Column: col}
}

// attrPosition reads the source position of attribute name on elem, falling
// back to elem's own position if the attribute node cannot be found (it is
// still reported, just without pinpoint accuracy).
func attrPosition(elem xmldom.Element, name string) Position {
	if attr := elem.GetAttributeNode(xmldom.DOMString(name)); attr != nil {
		line, col, _ := attr.Position()
		return Position{Line: line, Column: col}
	}
	return elementPosition(elem)
}

// attr returns the value of attribute name on elem and whether it was
// present at all (an empty but present attribute returns ("", true)).
func attr(elem xmldom.Element, name string) (string, bool) {
	node := elem.GetAttributeNode(xmldom.DOMString(name))
	if node == nil {
		return "", false
	}
	return string(elem.GetAttribute(xmldom.DOMString(name))), true
}

// requireAttr reads a required attribute, returning an XmlAttributeMissing
// Problem at the element's position when it is absent.
func requireAttr(elem xmldom.Element, name string) (string, *ProblemAt) {
	v, ok := attr(elem, name)
	if !ok {
		return "", At(XmlAttributeMissing{Attr: name, Tag: string(elem.LocalName())}, elementPosition(elem))
	}
	return v, nil
}

// optionalAttr reads an attribute, returning def when absent.
func optionalAttr(elem xmldom.Element, name, def string) string {
	v, ok := attr(elem, name)
	if !ok {
		return def
	}
	return v
}

// textContent returns the trimmed text content of elem.
func textContent(elem xmldom.Element) string {
	return strings.TrimSpace(string(elem.TextContent()))
}

// children returns the direct element children of elem, in document order.
func children(elem xmldom.Element) []xmldom.Element {
	list := elem.Children()
	out := make([]xmldom.Element, 0, list.Length())
	for i := uint(0); i < list.Length(); i++ {
		if c := list.Item(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// childrenByTag returns the direct element children of elem whose local
// name is tag, in document order.
func childrenByTag(elem xmldom.Element, tag string) []xmldom.Element {
	all := children(elem)
	out := make([]xmldom.Element, 0, len(all))
	for _, c := range all {
		if string(c.LocalName()) == tag {
			out = append(out, c)
		}
	}
	return out
}

// requireChild returns the first direct child of elem named tag, or an
// XmlNodeMissing Problem at elem's position if there is none.
func requireChild(elem xmldom.Element, tag string) (xmldom.Element, *ProblemAt) {
	found := childrenByTag(elem, tag)
	if len(found) == 0 {
		return nil, At(XmlNodeMissing{Parent: string(elem.LocalName()), Missing: tag}, elementPosition(elem))
	}
	return found[0], nil
}

// tagName is a small readability wrapper around elem.LocalName().
func tagName(elem xmldom.Element) string {
	return string(elem.LocalName())
}
