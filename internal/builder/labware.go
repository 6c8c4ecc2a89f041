package builder

import (
	"github.com/maestro-ngs/maestro/internal/document"
	"github.com/maestro-ngs/maestro/internal/model"
)

func buildLabware(n *document.Node) (model.Labware, error) {
	kind, err := n.String(fieldType)
	if err != nil {
		return nil, wrapField(err, MalformedLabware)
	}
	id, err := n.UUID(fieldID)
	if err != nil {
		return nil, wrapField(err, MalformedLabware)
	}
	name, err := n.String(fieldName)
	if err != nil {
		return nil, wrapField(err, MalformedLabware)
	}

	switch model.LabwareKind(kind) {
	case model.KindPlate:
		rows, cols, err := geometry(n)
		if err != nil {
			return nil, err
		}
		capacity, err := n.Float("WellCapacity")
		if err != nil {
			return nil, wrapField(err, MalformedLabware)
		}
		initial, err := n.FloatOr("InitialVolume", 0)
		if err != nil {
			return nil, wrapField(err, MalformedLabware)
		}
		if err := checkVolumes(name, capacity, initial); err != nil {
			return nil, err
		}
		return model.Plate{LabwareID: id, Label: name, Rows: rows, Cols: cols, Capacity: capacity, Initial: initial}, nil

	case model.KindTipBox:
		rows, cols, err := geometry(n)
		if err != nil {
			return nil, err
		}
		return model.TipBox{LabwareID: id, Label: name, Rows: rows, Cols: cols}, nil

	case model.KindReservoir:
		capacity, err := n.Float("Capacity")
		if err != nil {
			return nil, wrapField(err, MalformedLabware)
		}
		initial, err := n.FloatOr("InitialVolume", 0)
		if err != nil {
			return nil, wrapField(err, MalformedLabware)
		}
		if err := checkVolumes(name, capacity, initial); err != nil {
			return nil, err
		}
		return model.Reservoir{LabwareID: id, Label: name, Capacity: capacity, Initial: initial}, nil

	default:
		return nil, buildErr(MalformedLabware, "labware %q has unknown type %q", name, kind)
	}
}

func geometry(n *document.Node) (rows, cols int, err error) {
	rows, err = n.Int("Rows")
	if err != nil {
		return 0, 0, wrapField(err, MalformedLabware)
	}
	cols, err = n.Int("Columns")
	if err != nil {
		return 0, 0, wrapField(err, MalformedLabware)
	}
	if rows < 1 || cols < 1 {
		return 0, 0, buildErr(MalformedLabware, "geometry %dx%d is impossible", rows, cols)
	}
	return rows, cols, nil
}

func checkVolumes(name string, capacity, initial float64) error {
	if capacity <= 0 {
		return buildErr(MalformedLabware, "labware %q has non-positive capacity %g", name, capacity)
	}
	if initial < 0 || initial > capacity {
		return buildErr(MalformedLabware, "labware %q initial volume %g outside [0, %g]", name, initial, capacity)
	}
	return nil
}
