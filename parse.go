package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoRoot is returned by Parse for input without a root element.
var ErrNoRoot = errors.New("xmltree: document has no root element")

// xmlNamespaceURI is the namespace the reserved "xml" prefix is bound
// to; encoding/xml reports xml:lang and friends under this URI.
const xmlNamespaceURI = "http://www.w3.org/XML/1998/namespace"

// Parse builds a tree from XML text and returns its root element.
//
// The production tokenizer lives outside this package; this loader exists
// so serialized output can be read back (round-tripping) and so tests can
// build fixtures from literals. Malformed-XML diagnostics are delegated
// to encoding/xml.
func Parse(text string) (*Node, error) {
	return ParseBytes([]byte(text))
}

// ParseBytes is Parse for a byte slice.
func ParseBytes(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		root  *Node
		stack []*Node
		// One prefix scope per open element: URI -> declared prefix,
		// for recovering prefixes that encoding/xml resolves away.
		scopes []map[string]string
	)
	lookupPrefix := func(uri string) (string, bool) {
		for i := len(scopes) - 1; i >= 0; i-- {
			if p, ok := scopes[i][uri]; ok {
				return p, true
			}
		}
		return "", false
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmltree: parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{}
			sc := map[string]string{}
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns":
					n.SetNamespaceDeclaration(a.Name.Local, a.Value)
					sc[a.Value] = a.Name.Local
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					n.SetNamespaceDeclaration("", a.Value)
					sc[a.Value] = ""
				}
			}
			scopes = append(scopes, sc)

			n.Name = t.Name.Local
			if t.Name.Space != "" {
				n.NamespaceURI = t.Name.Space
				if t.Name.Space == xmlNamespaceURI {
					n.Prefix = "xml"
				} else if p, ok := lookupPrefix(t.Name.Space); ok {
					n.Prefix = p
				} else if !strings.ContainsAny(t.Name.Space, ":/") {
					// Unresolvable prefix is passed through verbatim.
					n.Prefix = t.Name.Space
				}
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				key := a.Name.Local
				switch {
				case a.Name.Space == "":
				case a.Name.Space == "xml", a.Name.Space == xmlNamespaceURI:
					key = "xml:" + key
				default:
					if p, ok := lookupPrefix(a.Name.Space); ok && p != "" {
						key = p + ":" + key
					} else if !strings.ContainsAny(a.Name.Space, ":/") {
						key = a.Name.Space + ":" + key
					}
				}
				n.SetAttribute(key, a.Value)
			}

			if len(stack) == 0 {
				if root == nil {
					root = n
				}
			} else {
				parent := stack[len(stack)-1]
				n.Parent = parent
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
				scopes = scopes[:len(scopes)-1]
			}

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			if s := strings.TrimSpace(string(t)); s != "" {
				top := stack[len(stack)-1]
				top.Text += s
			}
		}
	}

	if root == nil {
		return nil, ErrNoRoot
	}
	root.refresh()
	return root, nil
}
