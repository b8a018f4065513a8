package rca

// ComputeKind classifies a value. The zero value is classical: statically
// known, no feature requirements. A dynamic value depends on a quantum
// measurement outcome at runtime.
type ComputeKind struct {
	Dynamic  bool
	Features RuntimeFeatureFlags
}

// Classical reports whether the value is fully statically known.
func (k ComputeKind) Classical() bool {
	return !k.Dynamic && k.Features == 0
}

// Join combines two kinds. Composition is monotonic: dynamism and features
// only ever accumulate.
func (k ComputeKind) Join(other ComputeKind) ComputeKind {
	return ComputeKind{
		Dynamic:  k.Dynamic || other.Dynamic,
		Features: k.Features | other.Features,
	}
}

// ApplicationsGeneratorSet summarizes one callable for call-site
// composition: the properties the callable exhibits regardless of its
// arguments, plus the additional properties activated per parameter when
// the argument bound to that parameter is dynamic.
type ApplicationsGeneratorSet struct {
	// Inherent holds the properties of calling with all-static arguments.
	Inherent ComputeKind
	// ParamApps has one entry per top-level parameter. Entry i applies when
	// the argument for parameter i is dynamic: Dynamic means the result
	// becomes dynamic, Features are the extra flags the call then requires.
	ParamApps []ComputeKind
	// Cyclic marks participation in a call-graph cycle.
	Cyclic bool
}

// Apply composes the set with concrete argument kinds, yielding the kind of
// the call result. Arguments beyond the parameter list still contribute
// their own features.
func (s *ApplicationsGeneratorSet) Apply(args []ComputeKind) ComputeKind {
	out := s.Inherent
	for i, arg := range args {
		if !arg.Dynamic {
			continue
		}
		out.Features |= arg.Features
		if i < len(s.ParamApps) {
			out = out.Join(s.ParamApps[i])
		} else {
			out.Dynamic = true
		}
	}
	return out
}
