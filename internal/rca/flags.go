// Package rca implements runtime capability analysis: a whole-program,
// bottom-up classification of every expression and callable as classical
// (value known without hardware execution) or dynamic (value depends on a
// measurement outcome), together with the runtime features dynamism
// requires of the target.
//
// The analysis produces data only; capability mismatches are reported by
// the driver after comparing the aggregate requirements against the
// selected target profile.
package rca

import (
	"strings"

	"quill/internal/target"
)

// RuntimeFeatureFlags is the bit set of features a target must support to
// run an analyzed computation.
type RuntimeFeatureFlags uint32

const (
	UseOfDynamicBool RuntimeFeatureFlags = 1 << iota
	UseOfDynamicInt
	UseOfDynamicDouble
	UseOfDynamicBigInt
	UseOfDynamicString
	UseOfDynamicPauli
	UseOfDynamicRange
	UseOfDynamicQubit
	UseOfDynamicallySizedArray
	UseOfDynamicTuple
	CallToCyclicFunctionWithDynamicArg
	CallToCyclicOperation
	CallToDynamicCallee
	ForwardingOfDynamicValue
	LoopWithDynamicCondition
	ReturnWithinDynamicScope
	MeasurementWithinDynamicScope
)

var featureNames = []struct {
	flag RuntimeFeatureFlags
	name string
}{
	{UseOfDynamicBool, "UseOfDynamicBool"},
	{UseOfDynamicInt, "UseOfDynamicInt"},
	{UseOfDynamicDouble, "UseOfDynamicDouble"},
	{UseOfDynamicBigInt, "UseOfDynamicBigInt"},
	{UseOfDynamicString, "UseOfDynamicString"},
	{UseOfDynamicPauli, "UseOfDynamicPauli"},
	{UseOfDynamicRange, "UseOfDynamicRange"},
	{UseOfDynamicQubit, "UseOfDynamicQubit"},
	{UseOfDynamicallySizedArray, "UseOfDynamicallySizedArray"},
	{UseOfDynamicTuple, "UseOfDynamicTuple"},
	{CallToCyclicFunctionWithDynamicArg, "CallToCyclicFunctionWithDynamicArg"},
	{CallToCyclicOperation, "CallToCyclicOperation"},
	{CallToDynamicCallee, "CallToDynamicCallee"},
	{ForwardingOfDynamicValue, "ForwardingOfDynamicValue"},
	{LoopWithDynamicCondition, "LoopWithDynamicCondition"},
	{ReturnWithinDynamicScope, "ReturnWithinDynamicScope"},
	{MeasurementWithinDynamicScope, "MeasurementWithinDynamicScope"},
}

func (f RuntimeFeatureFlags) String() string {
	if f == 0 {
		return "None"
	}
	var names []string
	for _, e := range featureNames {
		if f&e.flag != 0 {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, " | ")
}

// RequiredCapabilities maps a feature set to the target capabilities needed
// to support it.
func (f RuntimeFeatureFlags) RequiredCapabilities() target.CapabilityFlags {
	var caps target.CapabilityFlags
	if f&UseOfDynamicBool != 0 {
		caps |= target.ForwardBranching
	}
	if f&(UseOfDynamicInt|UseOfDynamicBigInt) != 0 {
		caps |= target.IntegerComputations
	}
	if f&UseOfDynamicDouble != 0 {
		caps |= target.FloatingPointComputations
	}
	if f&(LoopWithDynamicCondition|ReturnWithinDynamicScope) != 0 {
		caps |= target.BackwardsBranching
	}
	if f&(UseOfDynamicString|UseOfDynamicPauli|UseOfDynamicRange|
		UseOfDynamicQubit|UseOfDynamicallySizedArray|UseOfDynamicTuple|
		CallToCyclicFunctionWithDynamicArg|CallToCyclicOperation|
		CallToDynamicCallee|ForwardingOfDynamicValue) != 0 {
		caps |= target.HigherLevelConstructs
	}
	if f&MeasurementWithinDynamicScope != 0 {
		caps |= target.ForwardBranching | target.QubitReset
	}
	return caps
}
