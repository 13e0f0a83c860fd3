package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// Node is a generic XML element. Vendor schemas drift often enough that
// decoding into fixed structs would turn every renamed wrapper into a
// silent empty feed, so parsers walk this tree instead.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
}

// ParseXML decodes a document into a Node tree. Declared non-UTF-8 encodings
// (ISO-8859-1, Windows-1252, ...) are transcoded.
func ParseXML(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	// Strict, but HTML named entities such as &nbsp; are accepted
	dec.Entity = xml.HTMLEntity

	var (
		root  *Node
		stack []*Node
		text  []*strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements: %s and %s", root.Name, n.Name)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			text = append(text, &strings.Builder{})

		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element %s", t.Name.Local)
			}
			n := stack[len(stack)-1]
			n.Text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}

	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed element %s", stack[len(stack)-1].Name)
	}
	return root, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Child returns the first direct child with the given name (case-insensitive)
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given name
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	return out
}

// ChildWithPrefix returns the first direct child whose name starts with
// prefix (case-insensitive)
func (n *Node) ChildWithPrefix(prefix string) *Node {
	if n == nil {
		return nil
	}
	p := strings.ToLower(prefix)
	for _, c := range n.Children {
		if strings.HasPrefix(strings.ToLower(c.Name), p) {
			return c
		}
	}
	return nil
}

// Find walks a slash separated path of child names
func (n *Node) Find(path string) *Node {
	cur := n
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		cur = cur.Child(part)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Value returns the trimmed text at path, or "" when absent
func (n *Node) Value(path string) string {
	if found := n.Find(path); found != nil {
		return found.Text
	}
	return ""
}

// FirstValue returns the first non-empty value among alternative paths
func (n *Node) FirstValue(paths ...string) string {
	for _, p := range paths {
		if v := n.Value(p); v != "" {
			return v
		}
	}
	return ""
}

// Map flattens the element into a JSON-friendly map for raw payload storage.
// Repeated child names become arrays and attributes are prefixed with "@".
func (n *Node) Map() map[string]any {
	out := make(map[string]any, len(n.Children)+len(n.Attrs))
	for k, v := range n.Attrs {
		out["@"+k] = v
	}
	for _, c := range n.Children {
		var val any = c.Text
		if len(c.Children) > 0 || len(c.Attrs) > 0 {
			m := c.Map()
			if c.Text != "" {
				m["#text"] = c.Text
			}
			val = m
		}
		if existing, ok := out[c.Name]; ok {
			if arr, isArr := existing.([]any); isArr {
				out[c.Name] = append(arr, val)
			} else {
				out[c.Name] = []any{existing, val}
			}
			continue
		}
		out[c.Name] = val
	}
	return out
}
