package eval

import (
	"quill/internal/ast"
	"quill/internal/source"
)

// qalloc tracks one qubit allocated by a use/borrow statement, released
// when its owning scope exits. span points at the allocating initializer
// for release-check diagnostics.
type qalloc struct {
	q        Qubit
	borrowed bool
	span     source.Span
}

// envScope is one lexical frame of runtime bindings. Bindings are keyed by
// the node id of the declaring pattern name, matching the resolver's
// ResLocal bindings, so lookup needs no name comparison.
type envScope struct {
	vars   map[ast.NodeID]*Value
	qubits []qalloc
}

// Env is the environment of one callable activation: a stack of scopes.
// Closures never read through an Env of an enclosing activation; captures
// are copied at closure creation.
type Env struct {
	scopes []*envScope
}

func newEnv() *Env {
	return &Env{scopes: []*envScope{{vars: make(map[ast.NodeID]*Value)}}}
}

func (e *Env) push() {
	e.scopes = append(e.scopes, &envScope{vars: make(map[ast.NodeID]*Value)})
}

// top returns the innermost scope.
func (e *Env) top() *envScope {
	return e.scopes[len(e.scopes)-1]
}

// bind introduces a fresh mutable slot in the innermost scope.
func (e *Env) bind(node ast.NodeID, v Value) {
	val := v
	e.top().vars[node] = &val
}

// slot finds the binding slot for a declaring node, innermost scope first.
func (e *Env) slot(node ast.NodeID) (*Value, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if p, ok := e.scopes[i].vars[node]; ok {
			return p, true
		}
	}
	return nil, false
}

// trackQubit records a qubit for release when the innermost scope exits.
func (e *Env) trackQubit(q Qubit, borrowed bool, span source.Span) {
	top := e.top()
	top.qubits = append(top.qubits, qalloc{q: q, borrowed: borrowed, span: span})
}
