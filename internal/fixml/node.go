package fixml

import "encoding/xml"

// node is a generic XML element used by the inbound parsers. The terminal's
// documents nest freely (positions can appear at any depth under a
// statement), so parsing into a tree and walking it is simpler than one
// rigid struct per document shape.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []node     `xml:",any"`
}

// attr returns the named attribute value and whether it was present.
func (n *node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}

	return "", false
}

// attrOr returns the named attribute value or def when absent.
func (n *node) attrOr(name, def string) string {
	if v, ok := n.attr(name); ok {
		return v
	}

	return def
}

// child returns the first direct child with the given element name, or nil.
func (n *node) child(name string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}

	return nil
}

// children returns all direct children with the given element name.
func (n *node) children(name string) []*node {
	var out []*node

	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			out = append(out, &n.Nodes[i])
		}
	}

	return out
}

// findAll returns all descendants with the given element name, depth-first.
func (n *node) findAll(name string) []*node {
	var out []*node

	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			out = append(out, &n.Nodes[i])
		}

		out = append(out, n.Nodes[i].findAll(name)...)
	}

	return out
}
