package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Version is the export format version carried by the document, split into
// the dotted version number and the integer build counter.
type Version struct {
	Major int
	Minor int
	Build int
}

// ParseVersion parses a dotted "major.minor" version string.
func ParseVersion(s string, build int) (Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("version %q: expected major.minor", s)
	}
	maj, err := strconv.Atoi(major)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", s, err)
	}
	min, err := strconv.Atoi(minor)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", s, err)
	}
	return Version{Major: maj, Minor: min, Build: build}, nil
}

// String renders the version the way the instrument software displays it.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d (build %d)", v.Major, v.Minor, v.Build)
}

// Method is a named, ordered routine of steps.
type Method struct {
	id    uuid.UUID
	name  string
	steps []Step
}

// NewMethod constructs a method from its identity and ordered steps.
func NewMethod(id uuid.UUID, name string, steps []Step) *Method {
	return &Method{id: id, name: name, steps: append([]Step(nil), steps...)}
}

// ID returns the method's stable identifier from the export file.
func (m *Method) ID() uuid.UUID { return m.id }

// Name returns the method's designation.
func (m *Method) Name() string { return m.name }

// Steps returns the method's steps in execution order. The returned slice is
// a copy; callers cannot alter the method.
func (m *Method) Steps() []Step { return append([]Step(nil), m.steps...) }

// Len returns the number of steps in the method.
func (m *Method) Len() int { return len(m.steps) }

// Position is one deck slot and the labware occupying it at protocol start.
// Labware is nil for a declared-but-empty position.
type Position struct {
	Name    string
	Labware Labware
}

// Config collects everything the builder assembles before an Application is
// sealed. NewApplication checks referential integrity and then copies all of
// it into unexported state.
type Config struct {
	Name    string
	Version Version
	Startup string // entry method name
	Methods []*Method
	Labware []Labware
	// Deck maps position name to occupying labware ID; uuid.Nil marks a
	// declared empty position.
	Deck map[string]uuid.UUID
}

// Application is the full in-memory protocol loaded from an exported file.
// It is immutable once constructed.
type Application struct {
	name    string
	version Version
	startup string

	methods      []*Method
	methodByName map[string]*Method

	labware     map[uuid.UUID]Labware
	labwareList []Labware

	deck      map[string]uuid.UUID
	positions []string // sorted
}

// NewApplication validates and seals a Config. Every labware reference in
// the deck map must resolve, method names must be unique, and the startup
// method must exist.
func NewApplication(cfg Config) (*Application, error) {
	app := &Application{
		name:         cfg.Name,
		version:      cfg.Version,
		startup:      cfg.Startup,
		methodByName: make(map[string]*Method, len(cfg.Methods)),
		labware:      make(map[uuid.UUID]Labware, len(cfg.Labware)),
		deck:         make(map[string]uuid.UUID, len(cfg.Deck)),
	}
	for _, lw := range cfg.Labware {
		if _, dup := app.labware[lw.ID()]; dup {
			return nil, fmt.Errorf("duplicate labware id %s", lw.ID())
		}
		app.labware[lw.ID()] = lw
		app.labwareList = append(app.labwareList, lw)
	}
	sort.Slice(app.labwareList, func(i, j int) bool {
		return app.labwareList[i].Name() < app.labwareList[j].Name()
	})

	for _, m := range cfg.Methods {
		if _, dup := app.methodByName[m.Name()]; dup {
			return nil, fmt.Errorf("duplicate method name %q", m.Name())
		}
		app.methods = append(app.methods, m)
		app.methodByName[m.Name()] = m
	}
	if _, ok := app.methodByName[cfg.Startup]; cfg.Startup != "" && !ok {
		return nil, fmt.Errorf("startup method %q not in method table", cfg.Startup)
	}

	for pos, id := range cfg.Deck {
		if id != uuid.Nil {
			if _, ok := app.labware[id]; !ok {
				return nil, fmt.Errorf("position %s references unknown labware %s", pos, id)
			}
		}
		app.deck[pos] = id
		app.positions = append(app.positions, pos)
	}
	sort.Strings(app.positions)

	return app, nil
}

// Name returns the application's display name.
func (a *Application) Name() string { return a.name }

// Version returns the export format version the file declared.
func (a *Application) Version() Version { return a.version }

// StartupMethod returns the name of the default entry method, or "" if the
// file did not declare one.
func (a *Application) StartupMethod() string { return a.startup }

// Methods returns all methods in file order.
func (a *Application) Methods() []*Method {
	return append([]*Method(nil), a.methods...)
}

// MethodByName resolves a method name through the application's method table.
func (a *Application) MethodByName(name string) (*Method, error) {
	m, ok := a.methodByName[name]
	if !ok {
		return nil, &Error{Kind: UnknownMethod, Key: name}
	}
	return m, nil
}

// LabwareByID looks up labware from the library by identifier.
func (a *Application) LabwareByID(id uuid.UUID) (Labware, error) {
	lw, ok := a.labware[id]
	if !ok {
		return nil, &Error{Kind: UnknownLabware, Key: id.String()}
	}
	return lw, nil
}

// Labware returns the labware library sorted by name.
func (a *Application) Labware() []Labware {
	return append([]Labware(nil), a.labwareList...)
}

// HasPosition reports whether the deck layout declares the position.
func (a *Application) HasPosition(pos string) bool {
	_, ok := a.deck[pos]
	return ok
}

// LabwareAt returns the labware occupying a deck position at protocol start.
// A declared empty position yields (nil, nil); an undeclared position yields
// an UnknownPosition error.
func (a *Application) LabwareAt(pos string) (Labware, error) {
	id, ok := a.deck[pos]
	if !ok {
		return nil, &Error{Kind: UnknownPosition, Key: pos}
	}
	if id == uuid.Nil {
		return nil, nil
	}
	return a.labware[id], nil
}

// Positions returns the deck layout as a sorted list of positions.
func (a *Application) Positions() []Position {
	out := make([]Position, 0, len(a.positions))
	for _, name := range a.positions {
		var lw Labware
		if id := a.deck[name]; id != uuid.Nil {
			lw = a.labware[id]
		}
		out = append(out, Position{Name: name, Labware: lw})
	}
	return out
}
