package builder

import (
	"time"

	"github.com/maestro-ngs/maestro/internal/document"
	"github.com/maestro-ngs/maestro/internal/model"
)

// maxLoopCount bounds declared loop iteration counts so a malformed document
// cannot make a simulation effectively unbounded.
const maxLoopCount = 10000

// buildSteps translates an ordered list of step nodes. method is only used
// for error messages.
func buildSteps(nodes []*document.Node, method string) ([]model.Step, error) {
	var steps []model.Step
	for _, n := range nodes {
		step, err := buildStep(n, method)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildStep(n *document.Node, method string) (model.Step, error) {
	switch model.StepKind(n.Name) {
	case model.StepAspirate:
		pos, well, err := position(n)
		if err != nil {
			return nil, err
		}
		volume, err := volume(n, "Volume")
		if err != nil {
			return nil, err
		}
		return model.Aspirate{Position: pos, Well: well, Volume: volume}, nil

	case model.StepDispense:
		pos, well, err := position(n)
		if err != nil {
			return nil, err
		}
		all, err := n.Bool("All")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		var vol float64
		if !all {
			vol, err = volume(n, "Volume")
			if err != nil {
				return nil, err
			}
		}
		return model.Dispense{Position: pos, Well: well, Volume: vol, All: all}, nil

	case model.StepMix:
		pos, well, err := position(n)
		if err != nil {
			return nil, err
		}
		vol, err := volume(n, "Volume")
		if err != nil {
			return nil, err
		}
		cycles, err := n.IntOr("Cycles", 3)
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		if cycles < 1 {
			return nil, buildErr(MalformedStep, "method %q: Mix cycles must be positive, got %d", method, cycles)
		}
		return model.Mix{Position: pos, Well: well, Volume: vol, Cycles: cycles}, nil

	case model.StepTipPickup:
		pos, err := n.String("Position")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		return model.TipPickup{Position: pos}, nil

	case model.StepTipEject:
		pos, err := n.String("Position")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		return model.TipEject{Position: pos}, nil

	case model.StepPlateMove:
		from, err := n.String("From")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		to, err := n.String("To")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		return model.PlateMove{From: from, To: to}, nil

	case model.StepWash:
		pos, err := n.String("Position")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		d, err := duration(n, method)
		if err != nil {
			return nil, err
		}
		return model.Wash{Position: pos, Duration: d}, nil

	case model.StepIncubate:
		pos, err := n.String("Position")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		d, err := duration(n, method)
		if err != nil {
			return nil, err
		}
		celsius, err := n.FloatOr("Celsius", 25)
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		return model.Incubate{Position: pos, Duration: d, Celsius: celsius}, nil

	case model.StepShake:
		pos, err := n.String("Position")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		d, err := duration(n, method)
		if err != nil {
			return nil, err
		}
		rpm, err := n.IntOr("RPM", 0)
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		return model.Shake{Position: pos, Duration: d, RPM: rpm}, nil

	case model.StepPause:
		d, err := duration(n, method)
		if err != nil {
			return nil, err
		}
		msg, err := n.StringOr("Message", "")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		return model.Pause{Duration: d, Message: msg}, nil

	case model.StepMethodCall:
		target, err := n.String("Method")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		return model.MethodCall{Method: target}, nil

	case model.StepLoop:
		count, err := n.Int("Count")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		if count < 0 || count > maxLoopCount {
			return nil, buildErr(MalformedStep, "method %q: Loop count %d outside [0, %d]", method, count, maxLoopCount)
		}
		body, err := buildSteps(n.Children, method)
		if err != nil {
			return nil, err
		}
		return model.Loop{Count: count, Body: body}, nil

	case model.StepComment:
		text, err := n.StringOr("Text", "")
		if err != nil {
			return nil, wrapField(err, MalformedStep)
		}
		return model.Comment{Text: text}, nil

	default:
		return nil, buildErr(MalformedStep, "method %q: unknown step kind %q", method, n.Name)
	}
}

// position reads the Position field plus the optional Well label, validating
// the label's shape. Well bounds against actual labware geometry are a
// runtime concern since plates move during a protocol.
func position(n *document.Node) (pos, well string, err error) {
	pos, err = n.String("Position")
	if err != nil {
		return "", "", wrapField(err, MalformedStep)
	}
	well, err = n.StringOr("Well", "A1")
	if err != nil {
		return "", "", wrapField(err, MalformedStep)
	}
	if _, _, werr := model.ParseWell(well); werr != nil {
		return "", "", &Error{Kind: MalformedStep, Detail: "bad well label", Err: werr}
	}
	return pos, well, nil
}

func volume(n *document.Node, field string) (float64, error) {
	v, err := n.Float(field)
	if err != nil {
		return 0, wrapField(err, MalformedStep)
	}
	if v <= 0 {
		return 0, buildErr(MalformedStep, "%s must be positive, got %g", field, v)
	}
	return v, nil
}

func duration(n *document.Node, method string) (time.Duration, error) {
	secs, err := n.Float("Seconds")
	if err != nil {
		return 0, wrapField(err, MalformedStep)
	}
	if secs < 0 {
		return 0, buildErr(MalformedStep, "method %q: duration must not be negative", method)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
