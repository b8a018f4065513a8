// Package sim provides a sparse state-vector simulator implementing the
// evaluator's Backend interface. Amplitudes are kept in a map keyed by
// basis state, so circuits touching few superposition branches stay cheap
// regardless of qubit count (up to 64 qubits).
package sim

import (
	"math"
	"math/cmplx"
	"math/rand"
	"sort"

	"quill/internal/eval"
)

// epsilon is the amplitude magnitude below which a basis state is pruned.
const epsilon = 1e-12

// SparseSim is a sparse state-vector simulator. It is exclusively owned by
// one evaluator and not safe for concurrent use.
type SparseSim struct {
	amps map[uint64]complex128
	free []eval.Qubit
	next eval.Qubit
	live map[eval.Qubit]bool
	rng  *rand.Rand
}

// New creates a simulator in the |0...0> state with its own generator.
// Share the evaluator's generator via SetRand for end-to-end determinism
// under one seed.
func New() *SparseSim {
	return &SparseSim{
		amps: map[uint64]complex128{0: 1},
		live: make(map[eval.Qubit]bool),
		rng:  rand.New(rand.NewSource(1)), //nolint:gosec // simulation, not crypto
	}
}

// SetRand replaces the generator used for measurement outcomes.
func (s *SparseSim) SetRand(rng *rand.Rand) { s.rng = rng }

func (s *SparseSim) QubitAllocate() eval.Qubit {
	if n := len(s.free); n > 0 {
		q := s.free[n-1]
		s.free = s.free[:n-1]
		s.live[q] = true
		return q
	}
	q := s.next
	s.next++
	s.live[q] = true
	return q
}

// QubitRelease resets the qubit to |0> and returns its index to the pool.
// The evaluator performs the not-zero check before a checked release; here
// the reset keeps the state consistent on error unwinding too.
func (s *SparseSim) QubitRelease(q eval.Qubit) {
	s.Reset(q)
	delete(s.live, q)
	s.free = append(s.free, q)
}

func (s *SparseSim) QubitIsZero(q eval.Qubit) bool {
	return s.prob(q) < epsilon
}

// prob is the probability of measuring One on q.
func (s *SparseSim) prob(q eval.Qubit) float64 {
	bit := uint64(1) << q
	p := 0.0
	for basis, amp := range s.amps {
		if basis&bit != 0 {
			p += real(amp)*real(amp) + imag(amp)*imag(amp)
		}
	}
	return p
}

func ctlMask(ctls []eval.Qubit) uint64 {
	var mask uint64
	for _, c := range ctls {
		mask |= 1 << c
	}
	return mask
}

// apply1 applies the 2x2 unitary [[a,b],[c,d]] to qubit q on every basis
// state whose control bits are all set.
func (s *SparseSim) apply1(ctls []eval.Qubit, q eval.Qubit, a, b, c, d complex128) {
	mask := ctlMask(ctls)
	bit := uint64(1) << q
	next := make(map[uint64]complex128, len(s.amps))
	for basis, amp := range s.amps {
		if basis&mask != mask {
			next[basis] += amp
			continue
		}
		if basis&bit == 0 {
			next[basis] += a * amp
			next[basis|bit] += c * amp
		} else {
			next[basis&^bit] += b * amp
			next[basis] += d * amp
		}
	}
	s.amps = prune(next)
}

func prune(amps map[uint64]complex128) map[uint64]complex128 {
	for basis, amp := range amps {
		if cmplx.Abs(amp) < epsilon {
			delete(amps, basis)
		}
	}
	return amps
}

func (s *SparseSim) X(ctls []eval.Qubit, q eval.Qubit) { s.apply1(ctls, q, 0, 1, 1, 0) }
func (s *SparseSim) Y(ctls []eval.Qubit, q eval.Qubit) {
	s.apply1(ctls, q, 0, complex(0, -1), complex(0, 1), 0)
}
func (s *SparseSim) Z(ctls []eval.Qubit, q eval.Qubit) { s.apply1(ctls, q, 1, 0, 0, -1) }

func (s *SparseSim) H(ctls []eval.Qubit, q eval.Qubit) {
	h := complex(1/math.Sqrt2, 0)
	s.apply1(ctls, q, h, h, h, -h)
}

func (s *SparseSim) S(ctls []eval.Qubit, q eval.Qubit) {
	s.apply1(ctls, q, 1, 0, 0, complex(0, 1))
}

func (s *SparseSim) SAdj(ctls []eval.Qubit, q eval.Qubit) {
	s.apply1(ctls, q, 1, 0, 0, complex(0, -1))
}

func (s *SparseSim) T(ctls []eval.Qubit, q eval.Qubit) {
	s.apply1(ctls, q, 1, 0, 0, cmplx.Exp(complex(0, math.Pi/4)))
}

func (s *SparseSim) TAdj(ctls []eval.Qubit, q eval.Qubit) {
	s.apply1(ctls, q, 1, 0, 0, cmplx.Exp(complex(0, -math.Pi/4)))
}

func (s *SparseSim) RX(ctls []eval.Qubit, theta float64, q eval.Qubit) {
	cos := complex(math.Cos(theta/2), 0)
	isin := complex(0, -math.Sin(theta/2))
	s.apply1(ctls, q, cos, isin, isin, cos)
}

func (s *SparseSim) RY(ctls []eval.Qubit, theta float64, q eval.Qubit) {
	cos := complex(math.Cos(theta/2), 0)
	sin := complex(math.Sin(theta/2), 0)
	s.apply1(ctls, q, cos, -sin, sin, cos)
}

func (s *SparseSim) RZ(ctls []eval.Qubit, theta float64, q eval.Qubit) {
	s.apply1(ctls, q, cmplx.Exp(complex(0, -theta/2)), 0, 0, cmplx.Exp(complex(0, theta/2)))
}

// RXX is exp(-i theta/2 X@X): cos(theta/2) I - i sin(theta/2) X@X.
func (s *SparseSim) RXX(ctls []eval.Qubit, theta float64, q0, q1 eval.Qubit) {
	s.applyPairMix(ctls, q0, q1, theta, func(basis, pair uint64) complex128 { return 1 })
}

// RYY differs from RXX only in the sign picked up when the two bits agree:
// Y@Y|00> = -|11>, Y@Y|01> = |10>.
func (s *SparseSim) RYY(ctls []eval.Qubit, theta float64, q0, q1 eval.Qubit) {
	s.applyPairMix(ctls, q0, q1, theta, func(basis, pair uint64) complex128 {
		b0 := basis&(pair&-pair) != 0
		b1 := basis&(pair&(pair-1)) != 0
		if b0 == b1 {
			return -1
		}
		return 1
	})
}

// applyPairMix applies cos(theta/2) I - i sin(theta/2) P where P flips
// both pair bits with a basis-dependent sign.
func (s *SparseSim) applyPairMix(ctls []eval.Qubit, q0, q1 eval.Qubit, theta float64, sign func(basis, pair uint64) complex128) {
	mask := ctlMask(ctls)
	pair := uint64(1)<<q0 | uint64(1)<<q1
	cos := complex(math.Cos(theta/2), 0)
	isin := complex(0, -math.Sin(theta/2))
	next := make(map[uint64]complex128, len(s.amps))
	for basis, amp := range s.amps {
		if basis&mask != mask {
			next[basis] += amp
			continue
		}
		next[basis] += cos * amp
		next[basis^pair] += isin * sign(basis, pair) * amp
	}
	s.amps = prune(next)
}

// RZZ is diagonal: phase exp(-i theta/2) when the bits agree,
// exp(+i theta/2) when they differ.
func (s *SparseSim) RZZ(ctls []eval.Qubit, theta float64, q0, q1 eval.Qubit) {
	mask := ctlMask(ctls)
	b0 := uint64(1) << q0
	b1 := uint64(1) << q1
	same := cmplx.Exp(complex(0, -theta/2))
	diff := cmplx.Exp(complex(0, theta/2))
	for basis, amp := range s.amps {
		if basis&mask != mask {
			continue
		}
		if (basis&b0 != 0) == (basis&b1 != 0) {
			s.amps[basis] = amp * same
		} else {
			s.amps[basis] = amp * diff
		}
	}
}

func (s *SparseSim) Swap(ctls []eval.Qubit, q0, q1 eval.Qubit) {
	mask := ctlMask(ctls)
	b0 := uint64(1) << q0
	b1 := uint64(1) << q1
	next := make(map[uint64]complex128, len(s.amps))
	for basis, amp := range s.amps {
		if basis&mask != mask || (basis&b0 != 0) == (basis&b1 != 0) {
			next[basis] += amp
			continue
		}
		next[basis^(b0|b1)] += amp
	}
	s.amps = next
}

// M measures q in the Z basis and collapses the state.
func (s *SparseSim) M(q eval.Qubit) bool {
	p1 := s.prob(q)
	one := s.rng.Float64() < p1
	s.project(q, one)
	return one
}

func (s *SparseSim) MResetZ(q eval.Qubit) bool {
	one := s.M(q)
	if one {
		s.X(nil, q)
	}
	return one
}

func (s *SparseSim) Reset(q eval.Qubit) {
	if s.prob(q) < epsilon {
		return
	}
	if s.M(q) {
		s.X(nil, q)
	}
}

// project collapses q to the given outcome and renormalizes.
func (s *SparseSim) project(q eval.Qubit, one bool) {
	bit := uint64(1) << q
	norm := 0.0
	for basis, amp := range s.amps {
		if (basis&bit != 0) != one {
			delete(s.amps, basis)
			continue
		}
		norm += real(amp)*real(amp) + imag(amp)*imag(amp)
	}
	if norm == 0 {
		// measuring an impossible outcome cannot happen with a fair draw;
		// recover to |0...0> rather than divide by zero
		s.amps = map[uint64]complex128{0: 1}
		return
	}
	scale := complex(1/math.Sqrt(norm), 0)
	for basis, amp := range s.amps {
		s.amps[basis] = amp * scale
	}
}

// CaptureQuantumState returns every basis state with a non-negligible
// amplitude, ordered by basis, and the number of live qubits.
func (s *SparseSim) CaptureQuantumState() ([]eval.StateEntry, int) {
	entries := make([]eval.StateEntry, 0, len(s.amps))
	for basis, amp := range s.amps {
		entries = append(entries, eval.StateEntry{Basis: basis, Amp: amp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Basis < entries[j].Basis })
	return entries, len(s.live)
}

// CaptureSubState projects the state of the given qubits. It fails when
// they are entangled with the rest of the register.
func (s *SparseSim) CaptureSubState(qs []eval.Qubit) ([]eval.StateEntry, bool) {
	subFor := func(basis uint64) uint64 {
		var sub uint64
		for i, q := range qs {
			if basis&(1<<q) != 0 {
				sub |= 1 << i
			}
		}
		return sub
	}
	restFor := func(basis uint64) uint64 {
		rest := basis
		for _, q := range qs {
			rest &^= 1 << q
		}
		return rest
	}

	// group amplitudes as columns indexed by the rest of the register; a
	// product state has every column proportional to every other
	cols := make(map[uint64]map[uint64]complex128)
	for basis, amp := range s.amps {
		rest := restFor(basis)
		col, ok := cols[rest]
		if !ok {
			col = make(map[uint64]complex128)
			cols[rest] = col
		}
		col[subFor(basis)] = amp
	}

	var ref map[uint64]complex128
	var refNorm float64
	for _, col := range cols {
		n := 0.0
		for _, amp := range col {
			n += real(amp)*real(amp) + imag(amp)*imag(amp)
		}
		if ref == nil || n > refNorm {
			ref, refNorm = col, n
		}
	}
	if ref == nil {
		return nil, false
	}
	// the state factorizes iff every column is a scalar multiple of the
	// reference column
	var refSub uint64
	refMax := 0.0
	for sub, amp := range ref {
		if a := cmplx.Abs(amp); a > refMax {
			refSub, refMax = sub, a
		}
	}
	for _, col := range cols {
		lambda := col[refSub] / ref[refSub]
		for sub, amp := range ref {
			if cmplx.Abs(col[sub]-lambda*amp) > 1e-9 {
				return nil, false
			}
		}
		for sub, amp := range col {
			if _, known := ref[sub]; !known && cmplx.Abs(amp) > 1e-9 {
				return nil, false
			}
		}
	}

	scale := complex(1/math.Sqrt(refNorm), 0)
	entries := make([]eval.StateEntry, 0, len(ref))
	for sub, amp := range ref {
		a := amp * scale
		if cmplx.Abs(a) < epsilon {
			continue
		}
		entries = append(entries, eval.StateEntry{Basis: sub, Amp: a})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Basis < entries[j].Basis })
	return entries, true
}

// CustomIntrinsic recognizes no extra intrinsics; extension backends embed
// SparseSim and override.
func (s *SparseSim) CustomIntrinsic(name string, arg eval.Value) (eval.Value, bool, error) {
	return eval.Value{}, false, nil
}
