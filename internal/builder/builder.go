// Package builder translates a decoded structured document into a validated
// model.Application. It is the only consumer of the raw document; everything
// downstream operates on the typed model. Building fails fast on the first
// structural error and never exposes a partially valid Application.
package builder

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/maestro-ngs/maestro/internal/ctxlog"
	"github.com/maestro-ngs/maestro/internal/document"
	"github.com/maestro-ngs/maestro/internal/model"
)

// Document node and field names of the export schema.
const (
	nodeRoot     = "ExportedApplication"
	nodeApp      = "Application"
	nodeLibrary  = "LabwareLibrary"
	nodeLabware  = "Labware"
	nodeDeck     = "DeckLayout"
	nodePosition = "Position"
	nodeMethods  = "Methods"
	nodeMethod   = "Method"

	fieldVersion = "Version"
	fieldBuild   = "Build"
	fieldName    = "Name"
	fieldStartup = "StartupMethod"
	fieldType    = "Type"
	fieldID      = "ID"
	fieldLabware = "Labware"
)

// supportedMajor is the export schema major version this builder understands.
const supportedMajor = 6

// Build translates a document into an Application, or reports the first
// structural error it hits.
func Build(ctx context.Context, doc *document.Node) (*model.Application, error) {
	logger := ctxlog.FromContext(ctx)

	if doc == nil || doc.Name != nodeRoot {
		return nil, buildErr(MissingField, "document root must be %s", nodeRoot)
	}

	version, err := buildVersion(doc)
	if err != nil {
		return nil, err
	}
	logger.Debug("Document version accepted.", "version", version)

	appNode, ok := doc.FirstChild(nodeApp)
	if !ok {
		return nil, buildErr(MissingField, "document has no %s section", nodeApp)
	}
	name, err := appNode.StringOr(fieldName, "")
	if err != nil {
		return nil, wrapField(err, MalformedStep)
	}

	labware, err := buildLibrary(appNode)
	if err != nil {
		return nil, err
	}
	logger.Debug("Labware library built.", "count", len(labware))

	deck, err := buildDeck(appNode, labware)
	if err != nil {
		return nil, err
	}

	methods, err := buildMethods(appNode)
	if err != nil {
		return nil, err
	}
	logger.Debug("Methods built.", "count", len(methods))

	startup, err := resolveStartup(appNode, methods)
	if err != nil {
		return nil, err
	}

	if err := validateReferences(methods, deck); err != nil {
		return nil, err
	}
	if err := detectCallCycles(methods); err != nil {
		return nil, err
	}

	lwList := make([]model.Labware, 0, len(labware))
	for _, lw := range labware {
		lwList = append(lwList, lw)
	}
	app, err := model.NewApplication(model.Config{
		Name:    name,
		Version: version,
		Startup: startup,
		Methods: methods,
		Labware: lwList,
		Deck:    deck,
	})
	if err != nil {
		// Everything NewApplication checks was already validated above.
		return nil, &Error{Kind: UnresolvedReference, Detail: "application consistency", Err: err}
	}
	logger.Debug("Application built.", "name", name, "methods", len(methods))
	return app, nil
}

func buildVersion(doc *document.Node) (model.Version, error) {
	raw, err := doc.String(fieldVersion)
	if err != nil {
		return model.Version{}, wrapField(err, MalformedStep)
	}
	build, err := doc.IntOr(fieldBuild, 0)
	if err != nil {
		return model.Version{}, wrapField(err, MalformedStep)
	}
	version, err := model.ParseVersion(raw, build)
	if err != nil {
		return model.Version{}, &Error{Kind: UnsupportedVersion, Detail: "unreadable version", Err: err}
	}
	if version.Major != supportedMajor {
		return model.Version{}, buildErr(UnsupportedVersion, "schema version %s is not supported", raw)
	}
	return version, nil
}

func buildLibrary(appNode *document.Node) (map[uuid.UUID]model.Labware, error) {
	out := map[uuid.UUID]model.Labware{}
	lib, ok := appNode.FirstChild(nodeLibrary)
	if !ok {
		return out, nil
	}
	for _, n := range lib.ChildrenNamed(nodeLabware) {
		lw, err := buildLabware(n)
		if err != nil {
			return nil, err
		}
		if _, dup := out[lw.ID()]; dup {
			return nil, buildErr(MalformedLabware, "duplicate labware id %s", lw.ID())
		}
		out[lw.ID()] = lw
	}
	return out, nil
}

func buildDeck(appNode *document.Node, labware map[uuid.UUID]model.Labware) (map[string]uuid.UUID, error) {
	deck := map[string]uuid.UUID{}
	deckNode, ok := appNode.FirstChild(nodeDeck)
	if !ok {
		return deck, nil
	}
	for _, n := range deckNode.ChildrenNamed(nodePosition) {
		pos, err := n.String(fieldName)
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		if _, dup := deck[pos]; dup {
			return nil, buildErr(UnresolvedReference, "deck position %s declared twice", pos)
		}
		id := uuid.Nil
		if n.Has(fieldLabware) {
			id, err = n.UUID(fieldLabware)
			if err != nil {
				return nil, wrapField(err, MalformedStep)
			}
			if _, ok := labware[id]; !ok {
				return nil, buildErr(UnresolvedReference, "position %s references labware %s not in library", pos, id)
			}
		}
		deck[pos] = id
	}
	return deck, nil
}

func buildMethods(appNode *document.Node) ([]*model.Method, error) {
	methodsNode, ok := appNode.FirstChild(nodeMethods)
	if !ok {
		return nil, nil
	}
	var methods []*model.Method
	seen := map[string]bool{}
	for _, n := range methodsNode.ChildrenNamed(nodeMethod) {
		name, err := n.String(fieldName)
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		if seen[name] {
			return nil, buildErr(UnresolvedReference, "method %q declared twice", name)
		}
		seen[name] = true
		id, err := n.UUID(fieldID)
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		steps, err := buildSteps(n.Children, name)
		if err != nil {
			return nil, err
		}
		methods = append(methods, model.NewMethod(id, name, steps))
	}
	return methods, nil
}

func resolveStartup(appNode *document.Node, methods []*model.Method) (string, error) {
	if !appNode.Has(fieldStartup) {
		return "", nil
	}
	id, err := appNode.UUID(fieldStartup)
	if err != nil {
		return "", wrapField(err, MalformedStep)
	}
	for _, m := range methods {
		if m.ID() == id {
			return m.Name(), nil
		}
	}
	return "", buildErr(UnresolvedReference, "startup method %s not in method table", id)
}

// wrapField converts a document field error into a build error: an absent
// field is MissingField, anything else takes the supplied kind.
func wrapField(err error, shapeKind ErrorKind) *Error {
	var fieldErr *document.FieldError
	if errors.As(err, &fieldErr) && fieldErr.Missing {
		return &Error{Kind: MissingField, Detail: "required field absent", Err: err}
	}
	return &Error{Kind: shapeKind, Detail: "bad field value", Err: err}
}
