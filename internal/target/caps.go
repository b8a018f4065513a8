// Package target describes the capability surface of an execution target.
//
// A capability flag names one class of runtime behavior a target may or may
// not support. The global table uses these flags to drop @Config-gated items,
// and capability validation compares a program's aggregate requirements
// against the selected profile.
package target

import (
	"fmt"
	"strings"
)

// CapabilityFlags is a bit set of target capabilities.
type CapabilityFlags uint32

const (
	// ForwardBranching allows classically-controlled gates on measurement
	// outcomes (if on a dynamic condition, no loops).
	ForwardBranching CapabilityFlags = 1 << iota
	// IntegerComputations allows classical integer arithmetic on dynamic
	// values.
	IntegerComputations
	// FloatingPointComputations allows classical floating-point arithmetic
	// on dynamic values.
	FloatingPointComputations
	// BackwardsBranching allows loops whose trip count depends on a dynamic
	// value.
	BackwardsBranching
	// HigherLevelConstructs allows dynamic aggregates, closures over dynamic
	// values, and cyclic calls with dynamic arguments.
	HigherLevelConstructs
	// QubitReset allows mid-circuit qubit reset and reuse.
	QubitReset
)

const allCapabilities = ForwardBranching | IntegerComputations |
	FloatingPointComputations | BackwardsBranching | HigherLevelConstructs |
	QubitReset

// Profiles, from most restrictive to least.
const (
	// Base supports only static circuits: no branching on outcomes.
	Base CapabilityFlags = 0
	// AdaptiveRI supports forward branching, dynamic integers, and reset.
	AdaptiveRI = ForwardBranching | IntegerComputations | QubitReset
	// AdaptiveRIF extends AdaptiveRI with dynamic floating point.
	AdaptiveRIF = AdaptiveRI | FloatingPointComputations
	// Unrestricted supports everything; the simulator target.
	Unrestricted = allCapabilities
)

// ParseProfile maps a profile name from the manifest or the command line to
// its capability set.
func ParseProfile(name string) (CapabilityFlags, error) {
	switch strings.ToLower(name) {
	case "", "unrestricted":
		return Unrestricted, nil
	case "base":
		return Base, nil
	case "adaptive_ri", "adaptiveri":
		return AdaptiveRI, nil
	case "adaptive_rif", "adaptiverif":
		return AdaptiveRIF, nil
	}
	return 0, fmt.Errorf("unknown target profile %q", name)
}

// ParseCapability maps a single capability name, as spelled inside a
// @Config(...) attribute, to its flag. Profile names are accepted too.
func ParseCapability(name string) (CapabilityFlags, bool) {
	switch name {
	case "ForwardBranching":
		return ForwardBranching, true
	case "IntegerComputations":
		return IntegerComputations, true
	case "FloatingPointComputations":
		return FloatingPointComputations, true
	case "BackwardsBranching":
		return BackwardsBranching, true
	case "HigherLevelConstructs":
		return HigherLevelConstructs, true
	case "QubitReset":
		return QubitReset, true
	case "Base":
		return Base, true
	case "Adaptive":
		return AdaptiveRI, true
	case "Unrestricted":
		return Unrestricted, true
	}
	return 0, false
}

// Satisfies reports whether this capability set covers every flag in
// required.
func (f CapabilityFlags) Satisfies(required CapabilityFlags) bool {
	return required&^f == 0
}

func (f CapabilityFlags) String() string {
	if f == 0 {
		return "Base"
	}
	if f == Unrestricted {
		return "Unrestricted"
	}
	var names []string
	for _, e := range []struct {
		flag CapabilityFlags
		name string
	}{
		{ForwardBranching, "ForwardBranching"},
		{IntegerComputations, "IntegerComputations"},
		{FloatingPointComputations, "FloatingPointComputations"},
		{BackwardsBranching, "BackwardsBranching"},
		{HigherLevelConstructs, "HigherLevelConstructs"},
		{QubitReset, "QubitReset"},
	} {
		if f&e.flag != 0 {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, "+")
}
