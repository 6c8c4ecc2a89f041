package builder

import (
	"sort"

	"github.com/google/uuid"

	"github.com/maestro-ngs/maestro/internal/model"
)

// validateReferences checks that every deck position and method name a step
// mentions resolves against the document's own declarations.
func validateReferences(methods []*model.Method, deck map[string]uuid.UUID) error {
	names := make(map[string]bool, len(methods))
	for _, m := range methods {
		names[m.Name()] = true
	}

	var check func(method string, steps []model.Step) error
	check = func(method string, steps []model.Step) error {
		for _, s := range steps {
			for _, pos := range stepPositions(s) {
				if _, ok := deck[pos]; !ok {
					return buildErr(UnresolvedReference, "method %q: step %s references undeclared deck position %q", method, s.Kind(), pos)
				}
			}
			switch st := s.(type) {
			case model.MethodCall:
				if !names[st.Method] {
					return buildErr(UnresolvedReference, "method %q calls unknown method %q", method, st.Method)
				}
			case model.Loop:
				if err := check(method, st.Body); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, m := range methods {
		if err := check(m.Name(), m.Steps()); err != nil {
			return err
		}
	}
	return nil
}

// stepPositions lists every deck position a step addresses.
func stepPositions(s model.Step) []string {
	switch st := s.(type) {
	case model.Aspirate:
		return []string{st.Position}
	case model.Dispense:
		return []string{st.Position}
	case model.Mix:
		return []string{st.Position}
	case model.TipPickup:
		return []string{st.Position}
	case model.TipEject:
		return []string{st.Position}
	case model.PlateMove:
		return []string{st.From, st.To}
	case model.Wash:
		return []string{st.Position}
	case model.Incubate:
		return []string{st.Position}
	case model.Shake:
		return []string{st.Position}
	default:
		return nil
	}
}

// detectCallCycles walks the method call graph depth-first with
// recursion-stack coloring. Revisiting a method that is still on the stack
// means the call graph can recurse without bound, which the instrument
// forbids.
func detectCallCycles(methods []*model.Method) error {
	callees := make(map[string][]string, len(methods))
	for _, m := range methods {
		callees[m.Name()] = collectCalls(m.Steps())
	}

	permanent := map[string]bool{}
	onStack := map[string]bool{}

	var visit func(name string) error
	visit = func(name string) error {
		if permanent[name] {
			return nil
		}
		if onStack[name] {
			return buildErr(CyclicMethodCall, "method %q participates in a call cycle", name)
		}
		onStack[name] = true
		for _, callee := range callees[name] {
			if err := visit(callee); err != nil {
				return err
			}
		}
		delete(onStack, name)
		permanent[name] = true
		return nil
	}

	// Visit in sorted order so the reported cycle member is deterministic.
	names := make([]string, 0, len(callees))
	for name := range callees {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// collectCalls gathers method call targets, descending into loop bodies.
func collectCalls(steps []model.Step) []string {
	var out []string
	for _, s := range steps {
		switch st := s.(type) {
		case model.MethodCall:
			out = append(out, st.Method)
		case model.Loop:
			out = append(out, collectCalls(st.Body)...)
		}
	}
	return out
}
