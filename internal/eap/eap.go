// Package eap decodes exported .eap application files (the instrument
// software's XML export) into the generic document tree the builder
// consumes. The decoding rule mirrors the export format: an element whose
// content is plain text becomes a field on its parent; an element with
// element children becomes a child node. A handful of legacy tag names are
// renamed to the neutral schema the builder expects.
package eap

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/maestro-ngs/maestro/internal/document"
)

// fieldAliases maps legacy export tag names onto the neutral schema.
var fieldAliases = map[string]string{
	"ExportedApplicationVersion": "Version",
	"ExportedApplicationBuild":   "Build",
	"MethodDesignation":          "Name",
	"ProgramID":                  "ID",
	"ApplicationName":            "Name",
}

// skippedNodes are export sections that carry no protocol semantics and are
// dropped during decoding.
var skippedNodes = map[string]bool{
	"GlobalVariablesPool": true,
	"LocalVariablesPool":  true,
	"Parameters":          true,
	"VariablesPool":       true,
}

// LoadFile reads and decodes one .eap file.
func LoadFile(path string) (*document.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// Decode reads an XML export and returns the document tree.
func Decode(r io.Reader) (*document.Node, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("document has no root element")
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		root, err := decodeElement(dec, start)
		if err != nil {
			return nil, err
		}
		normalize(root)
		return root, nil
	}
}

// rawElement is the intermediate form of one XML element before it is
// classified as a field or a child node.
type rawElement struct {
	name     string
	text     string
	children []*rawElement
}

func decodeElement(dec *xml.Decoder, start xml.StartElement) (*document.Node, error) {
	raw, err := readElement(dec, start)
	if err != nil {
		return nil, err
	}
	return toNode(raw), nil
}

func readElement(dec *xml.Decoder, start xml.StartElement) (*rawElement, error) {
	el := &rawElement{name: start.Name.Local}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed XML inside <%s>: %w", el.name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := readElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.children = append(el.children, child)
		case xml.CharData:
			el.text += string(t)
		case xml.EndElement:
			return el, nil
		}
	}
}

// toNode converts the raw tree: text-only children become fields, the rest
// become child nodes.
func toNode(raw *rawElement) *document.Node {
	node := document.New(raw.name)
	for _, c := range raw.children {
		if skippedNodes[c.name] {
			continue
		}
		if len(c.children) == 0 {
			name := c.name
			if alias, ok := fieldAliases[name]; ok {
				name = alias
			}
			node.Set(name, cty.StringVal(strings.TrimSpace(c.text)))
			continue
		}
		node.Add(toNode(c))
	}
	return node
}

// normalize reshapes export-format quirks in place: numbered method elements
// become uniform Method nodes and counting fields are dropped.
func normalize(node *document.Node) {
	for field := range node.Fields {
		// "MethodsCount", "InstructionsCount" and friends; a bare "Count"
		// is a real field (loop iterations) and stays.
		if field != "Count" && strings.HasSuffix(field, "Count") {
			delete(node.Fields, field)
		}
	}
	for _, c := range node.Children {
		if node.Name == "Methods" && strings.HasPrefix(c.Name, "Method") {
			c.Name = "Method"
		}
		normalize(c)
	}
}
