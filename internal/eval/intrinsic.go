package eval

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"quill/internal/source"
	"quill/internal/symbols"
)

// canonicalIntrinsic strips the QIR-style mangling some libraries use for
// intrinsic names: a `__quantum__qis__` prefix and a `__body`, `__adj` or
// `__ctl` suffix.
func canonicalIntrinsic(name string) string {
	name = strings.TrimPrefix(name, "__quantum__qis__")
	for _, suffix := range []string{"__body", "__adj", "__ctl"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

// intrinsic dispatches a `body intrinsic;` callable to the backend.
func (ev *Evaluator) intrinsic(it *symbols.Item, arg Value, adjoint bool, ctls []Qubit, span source.Span) (Value, *control) {
	name := canonicalIntrinsic(it.Name)

	switch name {
	case "X", "Y", "Z", "H", "S", "T":
		q, c := ev.argQubit(arg, span)
		if c != nil {
			return Value{}, c
		}
		return ev.gate(name, adjoint, ctls, q, span)

	case "CNOT":
		qs, c := ev.argQubits(arg, 2, span)
		if c != nil {
			return Value{}, c
		}
		return ev.gate("X", adjoint, append(ctls, qs[0]), qs[1], span)

	case "CCNOT":
		qs, c := ev.argQubits(arg, 3, span)
		if c != nil {
			return Value{}, c
		}
		return ev.gate("X", adjoint, append(ctls, qs[0], qs[1]), qs[2], span)

	case "SWAP":
		qs, c := ev.argQubits(arg, 2, span)
		if c != nil {
			return Value{}, c
		}
		if c := ev.checkUnique(ctls, qs, span); c != nil {
			return Value{}, c
		}
		ev.backend.Swap(ctls, qs[0], qs[1])
		return UnitVal(), nil

	case "Rx", "Ry", "Rz":
		theta, q, c := ev.argRotation(arg, span)
		if c != nil {
			return Value{}, c
		}
		if adjoint {
			theta = -theta
		}
		if c := ev.checkUnique(ctls, []Qubit{q}, span); c != nil {
			return Value{}, c
		}
		switch name {
		case "Rx":
			ev.backend.RX(ctls, theta, q)
		case "Ry":
			ev.backend.RY(ctls, theta, q)
		case "Rz":
			ev.backend.RZ(ctls, theta, q)
		}
		return UnitVal(), nil

	case "Rxx", "Ryy", "Rzz":
		theta, qs, c := ev.argRotation2(arg, span)
		if c != nil {
			return Value{}, c
		}
		if adjoint {
			theta = -theta
		}
		if c := ev.checkUnique(ctls, qs, span); c != nil {
			return Value{}, c
		}
		switch name {
		case "Rxx":
			ev.backend.RXX(ctls, theta, qs[0], qs[1])
		case "Ryy":
			ev.backend.RYY(ctls, theta, qs[0], qs[1])
		case "Rzz":
			ev.backend.RZZ(ctls, theta, qs[0], qs[1])
		}
		return UnitVal(), nil

	case "M", "MResetZ":
		if len(ctls) > 0 {
			return Value{}, ev.fail(ErrUnsupported, span, "measurement cannot be controlled")
		}
		q, c := ev.argQubit(arg, span)
		if c != nil {
			return Value{}, c
		}
		if name == "M" {
			return ResultVal(ev.backend.M(q)), nil
		}
		return ResultVal(ev.backend.MResetZ(q)), nil

	case "Reset":
		q, c := ev.argQubit(arg, span)
		if c != nil {
			return Value{}, c
		}
		ev.backend.Reset(q)
		return UnitVal(), nil

	case "Length":
		if arg.Kind != VKArray {
			return Value{}, ev.fail(ErrUnsupported, span,
				"Length expects an array, got "+arg.Kind.String())
		}
		return IntVal(int64(len(arg.Arr.Items))), nil

	case "Message":
		if arg.Kind != VKString {
			return Value{}, ev.fail(ErrUnsupported, span,
				"Message expects a String, got "+arg.Kind.String())
		}
		if err := ev.recv.Message(arg.Str); err != nil {
			return Value{}, ev.fail(ErrOutputFail, span, err.Error())
		}
		return UnitVal(), nil

	case "DumpMachine":
		entries, n := ev.backend.CaptureQuantumState()
		if err := ev.recv.State(entries, n); err != nil {
			return Value{}, ev.fail(ErrOutputFail, span, err.Error())
		}
		return UnitVal(), nil

	case "DumpRegister":
		if arg.Kind != VKArray {
			return Value{}, ev.fail(ErrUnsupported, span,
				"DumpRegister expects a Qubit[], got "+arg.Kind.String())
		}
		qs := make([]Qubit, len(arg.Arr.Items))
		for i, item := range arg.Arr.Items {
			if item.Kind != VKQubit {
				return Value{}, ev.fail(ErrUnsupported, span,
					"DumpRegister expects a Qubit[]")
			}
			qs[i] = item.Qubit
		}
		entries, ok := ev.backend.CaptureSubState(qs)
		if !ok {
			return Value{}, ev.fail(ErrQubitsNotSeparable, span,
				"the given qubits are entangled with the rest of the register")
		}
		if err := ev.recv.State(entries, len(qs)); err != nil {
			return Value{}, ev.fail(ErrOutputFail, span, err.Error())
		}
		return UnitVal(), nil

	case "DrawRandomInt":
		if arg.Kind != VKTuple || len(arg.Tuple) != 2 ||
			arg.Tuple[0].Kind != VKInt || arg.Tuple[1].Kind != VKInt {
			return Value{}, ev.fail(ErrUnsupported, span, "DrawRandomInt expects (Int, Int)")
		}
		lo, hi := arg.Tuple[0].Int, arg.Tuple[1].Int
		if lo > hi {
			return Value{}, ev.fail(ErrIntrinsicFail, span,
				fmt.Sprintf("empty range for DrawRandomInt: %d > %d", lo, hi))
		}
		return IntVal(lo + ev.rng.Int63n(hi-lo+1)), nil

	case "DrawRandomDouble":
		if arg.Kind != VKTuple || len(arg.Tuple) != 2 ||
			arg.Tuple[0].Kind != VKDouble || arg.Tuple[1].Kind != VKDouble {
			return Value{}, ev.fail(ErrUnsupported, span, "DrawRandomDouble expects (Double, Double)")
		}
		lo, hi := arg.Tuple[0].Double, arg.Tuple[1].Double
		if lo > hi {
			return Value{}, ev.fail(ErrIntrinsicFail, span,
				fmt.Sprintf("empty range for DrawRandomDouble: %v > %v", lo, hi))
		}
		return DoubleVal(lo + ev.rng.Float64()*(hi-lo)), nil

	case "DrawRandomBool":
		if arg.Kind != VKDouble {
			return Value{}, ev.fail(ErrUnsupported, span, "DrawRandomBool expects a Double")
		}
		return BoolVal(ev.rng.Float64() < arg.Double), nil

	case "Sqrt", "Log", "Sin", "Cos", "Tan", "Sinh", "Cosh", "Tanh",
		"ArcSin", "ArcCos", "ArcTan", "ExpD", "Log10":
		if arg.Kind != VKDouble {
			return Value{}, ev.fail(ErrUnsupported, span,
				name+" expects a Double, got "+arg.Kind.String())
		}
		return DoubleVal(mathUnary(name, arg.Double)), nil

	case "ArcTan2":
		if arg.Kind != VKTuple || len(arg.Tuple) != 2 ||
			arg.Tuple[0].Kind != VKDouble || arg.Tuple[1].Kind != VKDouble {
			return Value{}, ev.fail(ErrUnsupported, span, "ArcTan2 expects (Double, Double)")
		}
		return DoubleVal(math.Atan2(arg.Tuple[0].Double, arg.Tuple[1].Double)), nil

	case "Truncate", "Ceiling", "Floor":
		if arg.Kind != VKDouble {
			return Value{}, ev.fail(ErrUnsupported, span,
				name+" expects a Double, got "+arg.Kind.String())
		}
		d := arg.Double
		switch name {
		case "Ceiling":
			d = math.Ceil(d)
		case "Floor":
			d = math.Floor(d)
		default:
			d = math.Trunc(d)
		}
		if math.IsNaN(d) || d < math.MinInt64 || d > math.MaxInt64 {
			return Value{}, ev.fail(ErrIntrinsicFail, span,
				fmt.Sprintf("cannot convert %s to an Int", displayDouble(arg.Double)))
		}
		return IntVal(int64(d)), nil

	case "IntAsDouble":
		if arg.Kind != VKInt {
			return Value{}, ev.fail(ErrUnsupported, span,
				"IntAsDouble expects an Int, got "+arg.Kind.String())
		}
		return DoubleVal(float64(arg.Int)), nil

	case "IntAsBigInt":
		if arg.Kind != VKInt {
			return Value{}, ev.fail(ErrUnsupported, span,
				"IntAsBigInt expects an Int, got "+arg.Kind.String())
		}
		return BigVal(big.NewInt(arg.Int)), nil
	}

	result, handled, err := ev.backend.CustomIntrinsic(name, arg)
	if err != nil {
		return Value{}, ev.fail(ErrIntrinsicFail, span, err.Error())
	}
	if handled {
		return result, nil
	}
	return Value{}, ev.fail(ErrUnknownIntrinsic, span,
		fmt.Sprintf("`%s` is not a known intrinsic", it.Name))
}

// gate dispatches a named single-qubit gate, routing S/T adjoints to their
// dagger entry points.
func (ev *Evaluator) gate(name string, adjoint bool, ctls []Qubit, q Qubit, span source.Span) (Value, *control) {
	if c := ev.checkUnique(ctls, []Qubit{q}, span); c != nil {
		return Value{}, c
	}
	switch name {
	case "X":
		ev.backend.X(ctls, q)
	case "Y":
		ev.backend.Y(ctls, q)
	case "Z":
		ev.backend.Z(ctls, q)
	case "H":
		ev.backend.H(ctls, q)
	case "S":
		if adjoint {
			ev.backend.SAdj(ctls, q)
		} else {
			ev.backend.S(ctls, q)
		}
	case "T":
		if adjoint {
			ev.backend.TAdj(ctls, q)
		} else {
			ev.backend.T(ctls, q)
		}
	}
	return UnitVal(), nil
}

// checkUnique rejects a gate application whose control and target qubits
// overlap.
func (ev *Evaluator) checkUnique(ctls, targets []Qubit, span source.Span) *control {
	seen := make(map[Qubit]struct{}, len(ctls)+len(targets))
	for _, q := range ctls {
		if _, dup := seen[q]; dup {
			return ev.fail(ErrQubitUniqueness, span,
				fmt.Sprintf("Qubit%d is used more than once in a gate application", q))
		}
		seen[q] = struct{}{}
	}
	for _, q := range targets {
		if _, dup := seen[q]; dup {
			return ev.fail(ErrQubitUniqueness, span,
				fmt.Sprintf("Qubit%d is used more than once in a gate application", q))
		}
		seen[q] = struct{}{}
	}
	return nil
}

func (ev *Evaluator) argQubit(arg Value, span source.Span) (Qubit, *control) {
	if arg.Kind != VKQubit {
		return 0, ev.fail(ErrUnsupported, span,
			"intrinsic expects a Qubit, got "+arg.Kind.String())
	}
	return arg.Qubit, nil
}

func (ev *Evaluator) argQubits(arg Value, n int, span source.Span) ([]Qubit, *control) {
	if arg.Kind != VKTuple || len(arg.Tuple) != n {
		return nil, ev.fail(ErrUnsupported, span,
			fmt.Sprintf("intrinsic expects %d qubits", n))
	}
	qs := make([]Qubit, n)
	for i, item := range arg.Tuple {
		if item.Kind != VKQubit {
			return nil, ev.fail(ErrUnsupported, span,
				"intrinsic expects a Qubit, got "+item.Kind.String())
		}
		qs[i] = item.Qubit
	}
	return qs, nil
}

// argRotation unpacks a (Double, Qubit) rotation argument, rejecting
// non-finite angles.
func (ev *Evaluator) argRotation(arg Value, span source.Span) (float64, Qubit, *control) {
	if arg.Kind != VKTuple || len(arg.Tuple) != 2 ||
		arg.Tuple[0].Kind != VKDouble || arg.Tuple[1].Kind != VKQubit {
		return 0, 0, ev.fail(ErrUnsupported, span, "rotation expects (Double, Qubit)")
	}
	theta := arg.Tuple[0].Double
	if math.IsNaN(theta) || math.IsInf(theta, 0) {
		return 0, 0, ev.fail(ErrInvalidRotationAngle, span,
			"rotation angle must be finite, got "+displayDouble(theta))
	}
	return theta, arg.Tuple[1].Qubit, nil
}

func (ev *Evaluator) argRotation2(arg Value, span source.Span) (float64, []Qubit, *control) {
	if arg.Kind != VKTuple || len(arg.Tuple) != 3 ||
		arg.Tuple[0].Kind != VKDouble ||
		arg.Tuple[1].Kind != VKQubit || arg.Tuple[2].Kind != VKQubit {
		return 0, nil, ev.fail(ErrUnsupported, span, "rotation expects (Double, Qubit, Qubit)")
	}
	theta := arg.Tuple[0].Double
	if math.IsNaN(theta) || math.IsInf(theta, 0) {
		return 0, nil, ev.fail(ErrInvalidRotationAngle, span,
			"rotation angle must be finite, got "+displayDouble(theta))
	}
	return theta, []Qubit{arg.Tuple[1].Qubit, arg.Tuple[2].Qubit}, nil
}

func mathUnary(name string, x float64) float64 {
	switch name {
	case "Sqrt":
		return math.Sqrt(x)
	case "Log":
		return math.Log(x)
	case "Log10":
		return math.Log10(x)
	case "ExpD":
		return math.Exp(x)
	case "Sin":
		return math.Sin(x)
	case "Cos":
		return math.Cos(x)
	case "Tan":
		return math.Tan(x)
	case "Sinh":
		return math.Sinh(x)
	case "Cosh":
		return math.Cosh(x)
	case "Tanh":
		return math.Tanh(x)
	case "ArcSin":
		return math.Asin(x)
	case "ArcCos":
		return math.Acos(x)
	case "ArcTan":
		return math.Atan(x)
	}
	return math.NaN()
}
