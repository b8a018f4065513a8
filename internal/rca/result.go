package rca

import (
	"quill/internal/source"
	"quill/internal/symbols"
	"quill/internal/target"
)

// Result holds the computed generator sets for one analyzed program.
type Result struct {
	table *symbols.GlobalTable
	sets  map[symbols.ItemID]*ApplicationsGeneratorSet
}

// Set returns the generator set for a callable. Newtypes and unknown ids
// yield the empty (classical) set.
func (r *Result) Set(id symbols.ItemID) *ApplicationsGeneratorSet {
	if set, ok := r.sets[id]; ok {
		return set
	}
	return &ApplicationsGeneratorSet{}
}

// Aggregate unions the inherent feature requirements of every callable.
func (r *Result) Aggregate() RuntimeFeatureFlags {
	var out RuntimeFeatureFlags
	for _, set := range r.sets {
		out |= set.Inherent.Features
	}
	return out
}

// Violation is one callable whose inherent feature requirements exceed a
// target's capabilities.
type Violation struct {
	Item     symbols.ItemID
	Name     string
	Features RuntimeFeatureFlags
	Missing  target.CapabilityFlags
	Span     source.Span
}

// Validate checks every callable's inherent requirements against the
// target capabilities. Parameter-conditional requirements are not flagged
// here: they only apply at call sites that pass dynamic arguments, and
// those calls surface through the caller's inherent set.
func (r *Result) Validate(caps target.CapabilityFlags) []Violation {
	var out []Violation
	r.table.Items(func(it *symbols.Item) bool {
		set, ok := r.sets[it.ID]
		if !ok {
			return true
		}
		required := set.Inherent.Features.RequiredCapabilities()
		if caps.Satisfies(required) {
			return true
		}
		out = append(out, Violation{
			Item:     it.ID,
			Name:     r.table.QualifiedName(it.ID),
			Features: set.Inherent.Features,
			Missing:  required &^ caps,
			Span:     it.NameSpan,
		})
		return true
	})
	return out
}
