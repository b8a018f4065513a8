package target

import "testing"

func TestParseProfile(t *testing.T) {
	for _, tc := range []struct {
		name string
		want CapabilityFlags
	}{
		{"", Unrestricted},
		{"unrestricted", Unrestricted},
		{"base", Base},
		{"adaptive_ri", AdaptiveRI},
		{"AdaptiveRI", AdaptiveRI},
		{"adaptive_rif", AdaptiveRIF},
	} {
		got, err := ParseProfile(tc.name)
		if err != nil {
			t.Fatalf("ParseProfile(%q): %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("ParseProfile(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
	if _, err := ParseProfile("quantum_supremacy"); err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
}

func TestSatisfies(t *testing.T) {
	if !Unrestricted.Satisfies(AdaptiveRIF) {
		t.Fatal("unrestricted must cover every profile")
	}
	if Base.Satisfies(ForwardBranching) {
		t.Fatal("base must not allow forward branching")
	}
	if !AdaptiveRI.Satisfies(ForwardBranching | QubitReset) {
		t.Fatal("adaptive_ri covers branching and reset")
	}
	if AdaptiveRI.Satisfies(FloatingPointComputations) {
		t.Fatal("adaptive_ri must not allow dynamic floats")
	}
}

func TestCapabilityString(t *testing.T) {
	if got := Base.String(); got != "Base" {
		t.Fatalf("Base.String() = %q", got)
	}
	if got := Unrestricted.String(); got != "Unrestricted" {
		t.Fatalf("Unrestricted.String() = %q", got)
	}
	if got := (ForwardBranching | QubitReset).String(); got != "ForwardBranching+QubitReset" {
		t.Fatalf("combined String() = %q", got)
	}
}
