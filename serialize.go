package xmltree

import (
	"sort"
	"strings"
)

// WriteOptions controls ToXML output.
type WriteOptions struct {
	// Indent is the per-level indent string. Empty disables
	// pretty-printing and produces a single line.
	Indent string
	// SelfClose renders empty elements as <a/> instead of <a></a>.
	SelfClose bool
	// Declaration prepends an <?xml ...?> declaration.
	Declaration bool
}

// xmlEscaper covers text and attribute content alike: & < > " '.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

// ToXML serializes the node and its subtree. It never fails for a tree
// built through the mutation API.
func (n *Node) ToXML(opts WriteOptions) string {
	var b strings.Builder
	if opts.Declaration {
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
		if opts.Indent != "" {
			b.WriteByte('\n')
		}
	}
	n.write(&b, 0, opts)
	return b.String()
}

func (n *Node) write(b *strings.Builder, level int, opts WriteOptions) {
	pretty := opts.Indent != ""
	if pretty && level > 0 {
		b.WriteByte('\n')
	}
	if pretty {
		b.WriteString(strings.Repeat(opts.Indent, level))
	}
	b.WriteByte('<')
	b.WriteString(n.QualifiedName())

	// xmlns declarations come before ordinary attributes, default first.
	if len(n.Namespaces) > 0 {
		prefixes := make([]string, 0, len(n.Namespaces))
		for p := range n.Namespaces {
			prefixes = append(prefixes, p)
		}
		sort.Strings(prefixes)
		for _, p := range prefixes {
			if p == "" {
				b.WriteString(` xmlns="`)
			} else {
				b.WriteString(" xmlns:")
				b.WriteString(p)
				b.WriteString(`="`)
			}
			b.WriteString(xmlEscaper.Replace(n.Namespaces[p]))
			b.WriteByte('"')
		}
	}
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(xmlEscaper.Replace(a.Value))
		b.WriteByte('"')
	}

	if n.Text == "" && len(n.Children) == 0 {
		if opts.SelfClose {
			b.WriteString("/>")
			return
		}
		b.WriteString("></")
		b.WriteString(n.QualifiedName())
		b.WriteByte('>')
		return
	}

	b.WriteByte('>')
	if n.Text != "" {
		b.WriteString(xmlEscaper.Replace(n.Text))
	}
	for _, c := range n.Children {
		c.write(b, level+1, opts)
	}
	if pretty && len(n.Children) > 0 {
		b.WriteByte('\n')
		b.WriteString(strings.Repeat(opts.Indent, level))
	}
	b.WriteString("</")
	b.WriteString(n.QualifiedName())
	b.WriteByte('>')
}
