package eval

import (
	"fmt"
	"math/rand"
	"strings"

	"quill/internal/ast"
	"quill/internal/source"
	"quill/internal/symbols"
)

// control is non-local flow out of an expression: a return unwinding to
// the enclosing callable, or an error unwinding to the EvalEntry /
// EvalFragment caller. nil means normal completion.
type control struct {
	ret bool
	val Value
	err *Error
}

// frame is one call-stack entry, kept for trace rendering.
type frame struct {
	functor string
	name    string
	file    source.FileID
}

// Evaluator executes resolved programs against a Backend. One evaluator
// owns its backend and RNG exclusively; evaluation is single-threaded and
// runs to completion or first error on the calling goroutine.
type Evaluator struct {
	table   *symbols.GlobalTable
	names   symbols.Names
	fset    *source.FileSet
	backend Backend
	recv    Receiver
	rng     *rand.Rand

	frames []frame
	env    *Env
	// global persists bindings across interactive fragments.
	global *Env
	// ctls are ambient control qubits while a distributed (Controlled)
	// specialization body runs.
	ctls []Qubit
}

// New creates an evaluator. The seed fixes every random intrinsic outcome,
// including simulated measurements when the backend draws from the same
// generator.
func New(table *symbols.GlobalTable, names symbols.Names, fset *source.FileSet, backend Backend, recv Receiver, seed int64) *Evaluator {
	return &Evaluator{
		table:   table,
		names:   names,
		fset:    fset,
		backend: backend,
		recv:    recv,
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // reproducibility, not crypto
		global:  newEnv(),
	}
}

// Rand exposes the evaluator's seeded generator so a simulator backend can
// share it for measurement outcomes.
func (ev *Evaluator) Rand() *rand.Rand { return ev.rng }

// EvalEntry invokes an entry-point callable and returns its result.
func (ev *Evaluator) EvalEntry(id symbols.ItemID) (Value, *Error) {
	it := ev.table.Item(id)
	if it.Kind != symbols.ItemCallable {
		return Value{}, &Error{Kind: ErrUnsupported, Message: "entry point is not a callable"}
	}
	callee := Value{Kind: VKGlobal, Item: id}
	v, c := ev.invoke(callee, UnitVal(), it.NameSpan)
	if c != nil && c.err != nil {
		return Value{}, c.err
	}
	if c != nil && c.ret {
		v = c.val
	}
	return v, nil
}

// EvalFragment executes one interactive fragment's top-level statements in
// the persistent fragment environment and returns the value of the final
// expression statement, unit if the fragment ends in a declaration or a
// semicolon.
func (ev *Evaluator) EvalFragment(pkg *ast.Package) (Value, *Error) {
	ev.env = ev.global
	ev.frames = ev.frames[:0]
	out := UnitVal()
	for _, stmt := range pkg.Entry {
		v, c := ev.stmt(stmt)
		if c != nil {
			if c.err != nil {
				return Value{}, c.err
			}
			return c.val, nil
		}
		out = v
	}
	return out, nil
}

// fail builds an error carrying the current stack, innermost frame first.
func (ev *Evaluator) fail(kind ErrKind, span source.Span, msg string) *control {
	e := &Error{Kind: kind, Message: msg}
	if f := ev.fset.Get(span.File); f != nil {
		e.Span = source.PackageSpan{Package: f.Package, Span: span}
	}
	e.Frames = make([]TraceFrame, 0, len(ev.frames))
	for i := len(ev.frames) - 1; i >= 0; i-- {
		fr := ev.frames[i]
		e.Frames = append(e.Frames, TraceFrame{Functor: fr.functor, Name: fr.name, File: fr.file})
	}
	return &control{err: e}
}

// block evaluates a statement block in a fresh scope. The block's value is
// its trailing expression statement when that statement has no semicolon.
func (ev *Evaluator) block(b *ast.Block) (Value, *control) {
	ev.env.push()
	out := UnitVal()
	var c *control
	for i, stmt := range b.Stmts {
		var v Value
		v, c = ev.stmt(stmt)
		if c != nil {
			break
		}
		if i == len(b.Stmts)-1 {
			if es, ok := stmt.(*ast.ExprStmt); ok && !es.Semi {
				out = v
			}
		}
	}
	if rc := ev.leaveScope(c != nil && c.err != nil); rc != nil && c == nil {
		c = rc
	}
	if c != nil {
		return Value{}, c
	}
	return out, nil
}

// leaveScope pops the innermost scope, releasing its qubits in reverse
// allocation order. On a normal exit every non-borrowed qubit must measure
// zero before release; while unwinding an error the check is skipped so
// the original failure propagates.
func (ev *Evaluator) leaveScope(unwinding bool) *control {
	top := ev.env.top()
	var c *control
	for i := len(top.qubits) - 1; i >= 0; i-- {
		qa := top.qubits[i]
		if !unwinding && !qa.borrowed && c == nil && !ev.backend.QubitIsZero(qa.q) {
			c = ev.fail(ErrReleasedQubitNotZero, qa.span,
				fmt.Sprintf("Qubit%d released while not in |0> state", qa.q))
		}
		ev.backend.QubitRelease(qa.q)
	}
	ev.env.scopes = ev.env.scopes[:len(ev.env.scopes)-1]
	return c
}

func (ev *Evaluator) stmt(s ast.Stmt) (Value, *control) {
	switch st := s.(type) {
	case *ast.ExprStmt:
		return ev.expr(st.Expr)

	case *ast.LetStmt:
		v, c := ev.expr(st.Value)
		if c != nil {
			return Value{}, c
		}
		ev.bindPattern(st.Pat, v)
		return UnitVal(), nil

	case *ast.QubitStmt:
		if st.Block != nil {
			ev.env.push()
			v, c := ev.qubitInit(st.Init, st.Borrow, st.Pos())
			if c == nil {
				ev.bindPattern(st.Pat, v)
				_, c = ev.stmts(st.Block.Stmts)
			}
			if rc := ev.leaveScope(c != nil && c.err != nil); rc != nil && c == nil {
				c = rc
			}
			if c != nil {
				return Value{}, c
			}
			return UnitVal(), nil
		}
		v, c := ev.qubitInit(st.Init, st.Borrow, st.Pos())
		if c != nil {
			return Value{}, c
		}
		ev.bindPattern(st.Pat, v)
		return UnitVal(), nil
	}
	return UnitVal(), nil
}

// stmts runs a statement list in the current scope, returning the trailing
// expression value like block.
func (ev *Evaluator) stmts(list []ast.Stmt) (Value, *control) {
	out := UnitVal()
	for i, stmt := range list {
		v, c := ev.stmt(stmt)
		if c != nil {
			return Value{}, c
		}
		if i == len(list)-1 {
			if es, ok := stmt.(*ast.ExprStmt); ok && !es.Semi {
				out = v
			}
		}
	}
	return out, nil
}

func (ev *Evaluator) qubitInit(init ast.QubitInit, borrow bool, span source.Span) (Value, *control) {
	switch q := init.(type) {
	case *ast.SingleQubit:
		qb := ev.backend.QubitAllocate()
		ev.env.trackQubit(qb, borrow, q.Pos())
		return QubitVal(qb), nil
	case *ast.QubitArray:
		nv, c := ev.expr(q.Len)
		if c != nil {
			return Value{}, c
		}
		if nv.Kind != VKInt || nv.Int < 0 {
			return Value{}, ev.fail(ErrArrayTooLarge, q.Pos(),
				fmt.Sprintf("cannot allocate a register of size %s", nv.Display()))
		}
		items := make([]Value, nv.Int)
		for i := range items {
			qb := ev.backend.QubitAllocate()
			ev.env.trackQubit(qb, borrow, q.Pos())
			items[i] = QubitVal(qb)
		}
		return ArrayVal(items), nil
	case *ast.QubitTuple:
		items := make([]Value, 0, len(q.Items))
		for _, item := range q.Items {
			v, c := ev.qubitInit(item, borrow, span)
			if c != nil {
				return Value{}, c
			}
			items = append(items, v)
		}
		return TupleVal(items), nil
	}
	return UnitVal(), nil
}

// bindPattern destructures a value into fresh slots in the current scope.
func (ev *Evaluator) bindPattern(pat *ast.Pat, v Value) {
	switch pat.Kind {
	case ast.PatBind:
		ev.env.bind(pat.Name.NodeID(), v)
	case ast.PatTuple:
		if v.Kind == VKTuple && len(v.Tuple) == len(pat.Items) {
			for i, item := range pat.Items {
				ev.bindPattern(item, v.Tuple[i])
			}
			return
		}
		if len(pat.Items) == 1 {
			ev.bindPattern(pat.Items[0], v)
		}
	case ast.PatDiscard, ast.PatElided:
	}
}

func (ev *Evaluator) expr(e ast.Expr) (Value, *control) {
	switch x := e.(type) {
	case *ast.LitExpr:
		return litValue(x), nil

	case *ast.InterpExpr:
		var sb strings.Builder
		for _, part := range x.Parts {
			if part.Expr == nil {
				sb.WriteString(part.Lit)
				continue
			}
			v, c := ev.expr(part.Expr)
			if c != nil {
				return Value{}, c
			}
			sb.WriteString(v.Display())
		}
		return StringVal(sb.String()), nil

	case *ast.ArrayExpr:
		items := make([]Value, 0, len(x.Items))
		for _, item := range x.Items {
			v, c := ev.expr(item)
			if c != nil {
				return Value{}, c
			}
			items = append(items, v)
		}
		return ArrayVal(items), nil

	case *ast.ArrayRepeatExpr:
		v, c := ev.expr(x.Value)
		if c != nil {
			return Value{}, c
		}
		size, c := ev.expr(x.Size)
		if c != nil {
			return Value{}, c
		}
		if size.Kind != VKInt || size.Int < 0 || size.Int > 1<<32 {
			return Value{}, ev.fail(ErrArrayTooLarge, x.Pos(),
				fmt.Sprintf("cannot create an array of size %s", size.Display()))
		}
		items := make([]Value, size.Int)
		for i := range items {
			items[i] = v
		}
		return ArrayVal(items), nil

	case *ast.TupleExpr:
		items := make([]Value, 0, len(x.Items))
		for _, item := range x.Items {
			v, c := ev.expr(item)
			if c != nil {
				return Value{}, c
			}
			items = append(items, v)
		}
		return TupleVal(items), nil

	case *ast.RangeExpr:
		return ev.rangeExpr(x)

	case *ast.PathExpr:
		return ev.pathValue(x)

	case *ast.CallExpr:
		callee, c := ev.expr(x.Callee)
		if c != nil {
			return Value{}, c
		}
		arg, c := ev.expr(x.Arg)
		if c != nil {
			return Value{}, c
		}
		return ev.invoke(callee, arg, x.Pos())

	case *ast.IndexExpr:
		arr, c := ev.expr(x.Array)
		if c != nil {
			return Value{}, c
		}
		idx, c := ev.expr(x.Index)
		if c != nil {
			return Value{}, c
		}
		return ev.index(arr, idx, x.Pos())

	case *ast.BinExpr:
		return ev.binExpr(x)

	case *ast.UnExpr:
		return ev.unExpr(x)

	case *ast.TernExpr:
		cond, c := ev.expr(x.Cond)
		if c != nil {
			return Value{}, c
		}
		if cond.Kind != VKBool {
			return Value{}, ev.fail(ErrUnsupported, x.Cond.Pos(),
				"condition must be a Bool, got "+cond.Kind.String())
		}
		if cond.Bool {
			return ev.expr(x.Then)
		}
		return ev.expr(x.Else)

	case *ast.LambdaExpr:
		return Value{Kind: VKClosure, Cl: &Closure{
			Lambda:   x,
			Captured: ev.captureLocals(),
		}}, nil

	case *ast.FunctorExpr:
		v, c := ev.expr(x.Operand)
		if c != nil {
			return Value{}, c
		}
		switch v.Kind {
		case VKGlobal:
			if x.Functor == ast.FunctorAdj {
				v.App.Adjoint = !v.App.Adjoint
			} else {
				v.App.Controlled++
			}
			return v, nil
		case VKClosure:
			cl := *v.Cl
			if x.Functor == ast.FunctorAdj {
				cl.App.Adjoint = !cl.App.Adjoint
			} else {
				cl.App.Controlled++
			}
			return Value{Kind: VKClosure, Cl: &cl}, nil
		}
		return Value{}, ev.fail(ErrUnsupported, x.Pos(),
			"functor applied to a non-callable "+v.Kind.String())

	case *ast.IfExpr:
		cond, c := ev.expr(x.Cond)
		if c != nil {
			return Value{}, c
		}
		if cond.Kind != VKBool {
			return Value{}, ev.fail(ErrUnsupported, x.Cond.Pos(),
				"condition must be a Bool, got "+cond.Kind.String())
		}
		if cond.Bool {
			return ev.block(x.Then)
		}
		if x.Else != nil {
			return ev.expr(x.Else)
		}
		return UnitVal(), nil

	case *ast.ForExpr:
		return ev.forExpr(x)

	case *ast.WhileExpr:
		for {
			cond, c := ev.expr(x.Cond)
			if c != nil {
				return Value{}, c
			}
			if cond.Kind != VKBool {
				return Value{}, ev.fail(ErrUnsupported, x.Cond.Pos(),
					"condition must be a Bool, got "+cond.Kind.String())
			}
			if !cond.Bool {
				return UnitVal(), nil
			}
			if _, c := ev.block(x.Body); c != nil {
				return Value{}, c
			}
		}

	case *ast.ReturnExpr:
		v := UnitVal()
		if x.Value != nil {
			var c *control
			v, c = ev.expr(x.Value)
			if c != nil {
				return Value{}, c
			}
		}
		return Value{}, &control{ret: true, val: v}

	case *ast.FailExpr:
		msg, c := ev.expr(x.Msg)
		if c != nil {
			return Value{}, c
		}
		return Value{}, ev.fail(ErrUserFail, x.Pos(), msg.Display())

	case *ast.ConjExpr:
		return ev.conjugate(x)

	case *ast.BlockExpr:
		return ev.block(x.Block)

	case *ast.UpdateExpr:
		rec, c := ev.expr(x.Record)
		if c != nil {
			return Value{}, c
		}
		idx, c := ev.expr(x.Index)
		if c != nil {
			return Value{}, c
		}
		v, c := ev.expr(x.Value)
		if c != nil {
			return Value{}, c
		}
		return ev.update(rec, idx, v, x.Pos())

	case *ast.AssignExpr:
		v, c := ev.expr(x.RHS)
		if c != nil {
			return Value{}, c
		}
		if c := ev.assign(x.LHS, v); c != nil {
			return Value{}, c
		}
		return UnitVal(), nil

	case *ast.AssignOpExpr:
		old, c := ev.expr(x.LHS)
		if c != nil {
			return Value{}, c
		}
		rhs, c := ev.expr(x.RHS)
		if c != nil {
			return Value{}, c
		}
		v, c := ev.binOp(x.Op, old, rhs, x.Pos())
		if c != nil {
			return Value{}, c
		}
		if c := ev.assign(x.LHS, v); c != nil {
			return Value{}, c
		}
		return UnitVal(), nil

	case *ast.AssignUpdateExpr:
		rec, c := ev.expr(x.Record)
		if c != nil {
			return Value{}, c
		}
		idx, c := ev.expr(x.Index)
		if c != nil {
			return Value{}, c
		}
		v, c := ev.expr(x.Value)
		if c != nil {
			return Value{}, c
		}
		updated, c := ev.update(rec, idx, v, x.Pos())
		if c != nil {
			return Value{}, c
		}
		if c := ev.assign(x.Record, updated); c != nil {
			return Value{}, c
		}
		return UnitVal(), nil
	}
	return Value{}, ev.fail(ErrUnsupported, e.Pos(), "unsupported expression")
}

func litValue(x *ast.LitExpr) Value {
	switch x.Kind {
	case ast.LitInt:
		return IntVal(x.Int)
	case ast.LitBigInt:
		return BigVal(x.Big)
	case ast.LitDouble:
		return DoubleVal(x.Double)
	case ast.LitBool:
		return BoolVal(x.Bool)
	case ast.LitString:
		return StringVal(x.Str)
	case ast.LitResult:
		return ResultVal(x.Bool)
	case ast.LitPauli:
		return PauliVal(x.Pauli)
	}
	return UnitVal()
}

func (ev *Evaluator) rangeExpr(x *ast.RangeExpr) (Value, *control) {
	r := RangeVal{Step: 1}
	part := func(e ast.Expr) (int64, bool, *control) {
		if e == nil {
			return 0, false, nil
		}
		v, c := ev.expr(e)
		if c != nil {
			return 0, false, c
		}
		if v.Kind != VKInt {
			return 0, false, ev.fail(ErrUnsupported, e.Pos(),
				"range bound must be an Int, got "+v.Kind.String())
		}
		return v.Int, true, nil
	}
	var c *control
	if r.Start, r.HasStart, c = part(x.Start); c != nil {
		return Value{}, c
	}
	if x.Step != nil {
		step, _, c := part(x.Step)
		if c != nil {
			return Value{}, c
		}
		if step == 0 {
			return Value{}, ev.fail(ErrRangeStepZero, x.Step.Pos(), "range step cannot be zero")
		}
		r.Step = step
	}
	if r.End, r.HasEnd, c = part(x.End); c != nil {
		return Value{}, c
	}
	return Value{Kind: VKRange, Rng: r}, nil
}

func (ev *Evaluator) pathValue(x *ast.PathExpr) (Value, *control) {
	res := ev.names[x.Path.NodeID()]
	switch res.Kind {
	case symbols.ResLocal:
		if slot, ok := ev.env.slot(res.Local); ok {
			return *slot, nil
		}
		return Value{}, ev.fail(ErrUnsupported, x.Pos(),
			fmt.Sprintf("`%s` is not bound in this activation", x.Path.String()))
	case symbols.ResItem:
		return Value{Kind: VKGlobal, Item: res.Item}, nil
	}
	return Value{}, ev.fail(ErrUnsupported, x.Pos(),
		fmt.Sprintf("`%s` did not resolve to a value", x.Path.String()))
}

func (ev *Evaluator) forExpr(x *ast.ForExpr) (Value, *control) {
	iter, c := ev.expr(x.Iter)
	if c != nil {
		return Value{}, c
	}
	runBody := func(v Value) *control {
		ev.env.push()
		ev.bindPattern(x.Pat, v)
		_, c := ev.stmts(x.Body.Stmts)
		if rc := ev.leaveScope(c != nil && c.err != nil); rc != nil && c == nil {
			c = rc
		}
		return c
	}
	switch iter.Kind {
	case VKArray:
		for _, item := range iter.Arr.Items {
			if c := runBody(item); c != nil {
				return Value{}, c
			}
		}
	case VKRange:
		if !iter.Rng.HasStart || !iter.Rng.HasEnd {
			return Value{}, ev.fail(ErrUnsupported, x.Iter.Pos(),
				"cannot iterate an open-ended range")
		}
		for i := iter.Rng.Start; inRange(i, iter.Rng); i += iter.Rng.Step {
			if c := runBody(IntVal(i)); c != nil {
				return Value{}, c
			}
		}
	default:
		return Value{}, ev.fail(ErrUnsupported, x.Iter.Pos(),
			"cannot iterate a "+iter.Kind.String())
	}
	return UnitVal(), nil
}

// inRange reports whether i is still inside the (inclusive) range.
func inRange(i int64, r RangeVal) bool {
	if r.Step > 0 {
		return i <= r.End
	}
	return i >= r.End
}

// index evaluates arr[idx]: integer indexing with bounds checks, or range
// slicing with direction-dependent open-bound defaults.
func (ev *Evaluator) index(arr, idx Value, span source.Span) (Value, *control) {
	if arr.Kind != VKArray {
		return Value{}, ev.fail(ErrUnsupported, span, "cannot index a "+arr.Kind.String())
	}
	items := arr.Arr.Items
	switch idx.Kind {
	case VKInt:
		if idx.Int < 0 || idx.Int >= int64(len(items)) {
			return Value{}, ev.fail(ErrIndexOutOfRange, span,
				fmt.Sprintf("index %d out of range for array of length %d", idx.Int, len(items)))
		}
		return items[idx.Int], nil
	case VKRange:
		r := idx.Rng
		// open bounds default by step direction: ascending [0, len-1],
		// descending [len-1, 0]
		if !r.HasStart {
			if r.Step > 0 {
				r.Start = 0
			} else {
				r.Start = int64(len(items)) - 1
			}
		}
		if !r.HasEnd {
			if r.Step > 0 {
				r.End = int64(len(items)) - 1
			} else {
				r.End = 0
			}
		}
		var out []Value
		for i := r.Start; inRange(i, r); i += r.Step {
			if i < 0 || i >= int64(len(items)) {
				return Value{}, ev.fail(ErrIndexOutOfRange, span,
					fmt.Sprintf("index %d out of range for array of length %d", i, len(items)))
			}
			out = append(out, items[i])
		}
		return ArrayVal(out), nil
	}
	return Value{}, ev.fail(ErrUnsupported, span,
		"array index must be an Int or a Range, got "+idx.Kind.String())
}

// update implements the copy-update `record w/ index <- value`: the
// original array is never mutated.
func (ev *Evaluator) update(rec, idx, v Value, span source.Span) (Value, *control) {
	if rec.Kind != VKArray {
		return Value{}, ev.fail(ErrUnsupported, span, "cannot update a "+rec.Kind.String())
	}
	if idx.Kind != VKInt {
		return Value{}, ev.fail(ErrUnsupported, span,
			"update index must be an Int, got "+idx.Kind.String())
	}
	items := rec.Arr.Items
	if idx.Int < 0 || idx.Int >= int64(len(items)) {
		return Value{}, ev.fail(ErrIndexOutOfRange, span,
			fmt.Sprintf("index %d out of range for array of length %d", idx.Int, len(items)))
	}
	cloned := cloneItems(items)
	cloned[idx.Int] = v
	return ArrayVal(cloned), nil
}

// assign writes through to an existing binding slot; tuple targets
// destructure.
func (ev *Evaluator) assign(lhs ast.Expr, v Value) *control {
	switch t := lhs.(type) {
	case *ast.PathExpr:
		res := ev.names[t.Path.NodeID()]
		if res.Kind != symbols.ResLocal {
			return ev.fail(ErrUnsupported, t.Pos(), "cannot assign to "+t.Path.String())
		}
		slot, ok := ev.env.slot(res.Local)
		if !ok {
			return ev.fail(ErrUnsupported, t.Pos(),
				fmt.Sprintf("`%s` is not bound in this activation", t.Path.String()))
		}
		*slot = v
		return nil
	case *ast.TupleExpr:
		if v.Kind != VKTuple || len(v.Tuple) != len(t.Items) {
			return ev.fail(ErrUnsupported, t.Pos(), "tuple assignment shape mismatch")
		}
		for i, item := range t.Items {
			if c := ev.assign(item, v.Tuple[i]); c != nil {
				return c
			}
		}
		return nil
	}
	return ev.fail(ErrUnsupported, lhs.Pos(), "invalid assignment target")
}

// captureLocals snapshots every visible binding for closure capture.
// Values are copied; later mutation of the source binding is invisible to
// the closure.
func (ev *Evaluator) captureLocals() map[ast.NodeID]Value {
	out := make(map[ast.NodeID]Value)
	if ev.env == nil {
		return out
	}
	for _, sc := range ev.env.scopes {
		for node, slot := range sc.vars {
			out[node] = *slot
		}
	}
	return out
}
