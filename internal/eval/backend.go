package eval

// StateEntry is one basis state with a non-zero amplitude in a captured
// quantum state.
type StateEntry struct {
	Basis uint64
	Amp   complex128
}

// Backend is the quantum-state capability the evaluator drives. Every gate
// takes an explicit control list so distributed (Controlled) application
// needs no decomposition; an empty list is the plain gate. The backend is
// exclusively owned by one evaluator and never accessed concurrently.
type Backend interface {
	QubitAllocate() Qubit
	QubitRelease(q Qubit)
	QubitIsZero(q Qubit) bool

	H(ctls []Qubit, q Qubit)
	X(ctls []Qubit, q Qubit)
	Y(ctls []Qubit, q Qubit)
	Z(ctls []Qubit, q Qubit)
	S(ctls []Qubit, q Qubit)
	SAdj(ctls []Qubit, q Qubit)
	T(ctls []Qubit, q Qubit)
	TAdj(ctls []Qubit, q Qubit)
	RX(ctls []Qubit, theta float64, q Qubit)
	RY(ctls []Qubit, theta float64, q Qubit)
	RZ(ctls []Qubit, theta float64, q Qubit)
	RXX(ctls []Qubit, theta float64, q0, q1 Qubit)
	RYY(ctls []Qubit, theta float64, q0, q1 Qubit)
	RZZ(ctls []Qubit, theta float64, q0, q1 Qubit)
	Swap(ctls []Qubit, q0, q1 Qubit)

	// M measures in the Z basis; MResetZ additionally resets to |0>.
	M(q Qubit) bool
	MResetZ(q Qubit) bool
	Reset(q Qubit)

	// CaptureQuantumState returns the full state and the number of live
	// qubits, for diagnostics.
	CaptureQuantumState() ([]StateEntry, int)
	// CaptureSubState projects the state of the given qubits. ok is false
	// when they are entangled with the rest of the register.
	CaptureSubState(qs []Qubit) (entries []StateEntry, ok bool)

	// CustomIntrinsic is the extensibility hook for intrinsic names the
	// evaluator does not recognize. handled=false falls through to
	// UnknownIntrinsic; a non-nil error becomes IntrinsicFail.
	CustomIntrinsic(name string, arg Value) (result Value, handled bool, err error)
}

// Receiver consumes program output. A non-nil error from either method is
// an unrecoverable output failure (closed pipe) and surfaces as OutputFail.
type Receiver interface {
	Message(msg string) error
	State(entries []StateEntry, qubitCount int) error
}
