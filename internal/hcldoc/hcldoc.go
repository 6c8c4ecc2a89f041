// Package hcldoc loads protocol definitions written in HCL and translates
// them into the same document tree the .eap decoder produces, so the builder
// never needs to know which on-disk format an application came from. HCL
// files reference methods and labware by name; this loader derives stable
// UUIDs from those names so the document carries the identifiers the export
// schema requires.
package hcldoc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/maestro-ngs/maestro/internal/ctxlog"
	"github.com/maestro-ngs/maestro/internal/document"
)

// fileRoot decodes the single top-level block of a protocol file.
type fileRoot struct {
	Applications []*hclApplication `hcl:"application,block"`
}

type hclApplication struct {
	Name    string        `hcl:"name,label"`
	Version string        `hcl:"version"`
	Build   *int          `hcl:"build"`
	Startup *string       `hcl:"startup"`
	Labware []*hclLabware `hcl:"labware,block"`
	Deck    *hclDeck      `hcl:"deck,block"`
	Methods []*hclMethod  `hcl:"method,block"`
}

type hclLabware struct {
	Type          string   `hcl:"type,label"`
	Name          string   `hcl:"name,label"`
	Rows          *int     `hcl:"rows"`
	Cols          *int     `hcl:"cols"`
	WellCapacity  *float64 `hcl:"well_capacity"`
	InitialVolume *float64 `hcl:"initial_volume"`
	Capacity      *float64 `hcl:"capacity"`
}

type hclDeck struct {
	Positions []*hclPosition `hcl:"position,block"`
}

type hclPosition struct {
	Name    string  `hcl:"name,label"`
	Labware *string `hcl:"labware"`
}

type hclMethod struct {
	Name  string     `hcl:"name,label"`
	Steps []*hclStep `hcl:"step,block"`
}

type hclStep struct {
	Kind   string     `hcl:"kind,label"`
	Nested []*hclStep `hcl:"step,block"`
	Remain hcl.Body   `hcl:",remain"`
}

// stepKinds maps HCL step labels onto document node names.
var stepKinds = map[string]string{
	"aspirate":   "Aspirate",
	"dispense":   "Dispense",
	"mix":        "Mix",
	"tip_pickup": "TipPickup",
	"tip_eject":  "TipEject",
	"plate_move": "PlateMove",
	"wash":       "Wash",
	"incubate":   "Incubate",
	"shake":      "Shake",
	"pause":      "Pause",
	"call":       "MethodCall",
	"loop":       "Loop",
	"comment":    "Comment",
}

// stepFields maps HCL step attribute names onto document field names.
var stepFields = map[string]string{
	"position": "Position",
	"well":     "Well",
	"volume":   "Volume",
	"all":      "All",
	"cycles":   "Cycles",
	"from":     "From",
	"to":       "To",
	"seconds":  "Seconds",
	"celsius":  "Celsius",
	"rpm":      "RPM",
	"message":  "Message",
	"method":   "Method",
	"count":    "Count",
	"text":     "Text",
}

// labwareKinds maps HCL labware type labels onto export schema type names.
var labwareKinds = map[string]string{
	"plate":     "Plate",
	"tipbox":    "TipBox",
	"reservoir": "ReagentReservoir",
}

// Loader reads protocol files written in HCL.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL protocol loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// LoadFile parses one protocol file into a document tree.
func (l *Loader) LoadFile(ctx context.Context, path string) (*document.Node, error) {
	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}
	return l.translate(ctx, file, path)
}

// Parse decodes in-memory HCL source, mainly for tests.
func (l *Loader) Parse(ctx context.Context, src []byte, filename string) (*document.Node, error) {
	file, diags := l.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}
	return l.translate(ctx, file, filename)
}

func (l *Loader) translate(ctx context.Context, file *hcl.File, name string) (*document.Node, error) {
	logger := ctxlog.FromContext(ctx)

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", name, diags)
	}
	if len(root.Applications) != 1 {
		return nil, fmt.Errorf("%s: expected exactly one application block, found %d", name, len(root.Applications))
	}
	app := root.Applications[0]
	logger.Debug("HCL protocol parsed.", "application", app.Name, "methods", len(app.Methods))

	doc := document.New("ExportedApplication").
		Set("Version", cty.StringVal(app.Version))
	if app.Build != nil {
		doc.Set("Build", cty.NumberIntVal(int64(*app.Build)))
	}

	appNode := document.New("Application").Set("Name", cty.StringVal(app.Name))
	doc.Add(appNode)

	if app.Startup != nil {
		appNode.Set("StartupMethod", cty.StringVal(methodID(*app.Startup).String()))
	}

	library := document.New("LabwareLibrary")
	for _, lw := range app.Labware {
		node, err := translateLabware(lw)
		if err != nil {
			return nil, err
		}
		library.Add(node)
	}
	appNode.Add(library)

	deck := document.New("DeckLayout")
	if app.Deck != nil {
		for _, pos := range app.Deck.Positions {
			node := document.New("Position").Set("Name", cty.StringVal(pos.Name))
			if pos.Labware != nil {
				node.Set("Labware", cty.StringVal(labwareID(*pos.Labware).String()))
			}
			deck.Add(node)
		}
	}
	appNode.Add(deck)

	methods := document.New("Methods")
	for _, m := range app.Methods {
		node := document.New("Method").
			Set("Name", cty.StringVal(m.Name)).
			Set("ID", cty.StringVal(methodID(m.Name).String()))
		for _, s := range m.Steps {
			stepNode, err := translateStep(s, m.Name)
			if err != nil {
				return nil, err
			}
			node.Add(stepNode)
		}
		methods.Add(node)
	}
	appNode.Add(methods)

	return doc, nil
}

func translateLabware(lw *hclLabware) (*document.Node, error) {
	kind, ok := labwareKinds[lw.Type]
	if !ok {
		return nil, fmt.Errorf("labware %q: unknown type %q", lw.Name, lw.Type)
	}
	node := document.New("Labware").
		Set("Type", cty.StringVal(kind)).
		Set("ID", cty.StringVal(labwareID(lw.Name).String())).
		Set("Name", cty.StringVal(lw.Name))
	if lw.Rows != nil {
		node.Set("Rows", cty.NumberIntVal(int64(*lw.Rows)))
	}
	if lw.Cols != nil {
		node.Set("Columns", cty.NumberIntVal(int64(*lw.Cols)))
	}
	if lw.WellCapacity != nil {
		node.Set("WellCapacity", cty.NumberFloatVal(*lw.WellCapacity))
	}
	if lw.InitialVolume != nil {
		node.Set("InitialVolume", cty.NumberFloatVal(*lw.InitialVolume))
	}
	if lw.Capacity != nil {
		node.Set("Capacity", cty.NumberFloatVal(*lw.Capacity))
	}
	return node, nil
}

func translateStep(s *hclStep, method string) (*document.Node, error) {
	kind, ok := stepKinds[s.Kind]
	if !ok {
		return nil, fmt.Errorf("method %q: unknown step kind %q", method, s.Kind)
	}
	node := document.New(kind)

	attrs, diags := s.Remain.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("method %q: step %q: %w", method, s.Kind, diags)
	}
	for attrName, attr := range attrs {
		field, ok := stepFields[attrName]
		if !ok {
			return nil, fmt.Errorf("method %q: step %q: unknown attribute %q", method, s.Kind, attrName)
		}
		// Step arguments are plain literals; there is no evaluation context.
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("method %q: step %q: attribute %q: %w", method, s.Kind, attrName, diags)
		}
		node.Set(field, v)
	}

	for _, nested := range s.Nested {
		child, err := translateStep(nested, method)
		if err != nil {
			return nil, err
		}
		node.Add(child)
	}
	return node, nil
}

// idNamespace scopes the derived identifiers so they cannot collide with
// UUIDs from a genuine instrument export.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://maestro-ngs.dev/protocol"))

func methodID(name string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("method/"+name))
}

func labwareID(name string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("labware/"+name))
}
