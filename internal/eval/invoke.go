package eval

import (
	"fmt"

	"quill/internal/ast"
	"quill/internal/source"
	"quill/internal/symbols"
)

// invoke applies a callable value to an argument. Functor state on the
// value is resolved here: Controlled layers are peeled off the argument
// tuple, Adjoint selects or synthesizes the inverse specialization.
func (ev *Evaluator) invoke(callee, arg Value, span source.Span) (Value, *control) {
	switch callee.Kind {
	case VKGlobal:
		it := ev.table.Item(callee.Item)
		if it == nil {
			return Value{}, ev.fail(ErrUnsupported, span, "call to an unknown item")
		}
		if it.Kind == symbols.ItemNewtype {
			// newtype constructors are transparent at runtime
			return arg, nil
		}
		return ev.invokeCallable(it, callee.App, arg, span)
	case VKClosure:
		return ev.invokeClosure(callee.Cl, arg, span)
	}
	return Value{}, ev.fail(ErrUnsupported, span, "cannot call a "+callee.Kind.String())
}

// peelControls unwraps one (controls, inner) pair per Controlled layer,
// returning the collected control qubits and the innermost argument.
func (ev *Evaluator) peelControls(layers int, arg Value, span source.Span) ([]Qubit, Value, *control) {
	var ctls []Qubit
	for i := 0; i < layers; i++ {
		if arg.Kind != VKTuple || len(arg.Tuple) != 2 {
			return nil, Value{}, ev.fail(ErrUnsupported, span,
				"Controlled application expects a (controls, argument) pair")
		}
		reg := arg.Tuple[0]
		if reg.Kind != VKArray {
			return nil, Value{}, ev.fail(ErrUnsupported, span,
				"control register must be a Qubit[], got "+reg.Kind.String())
		}
		for _, item := range reg.Arr.Items {
			if item.Kind != VKQubit {
				return nil, Value{}, ev.fail(ErrUnsupported, span,
					"control register must contain only qubits")
			}
			ctls = append(ctls, item.Qubit)
		}
		arg = arg.Tuple[1]
	}
	return ctls, arg, nil
}

func (ev *Evaluator) invokeCallable(it *symbols.Item, app FunctorApp, arg Value, span source.Span) (Value, *control) {
	decl := it.Callable
	explicit, arg, c := ev.peelControls(app.Controlled, arg, span)
	if c != nil {
		return Value{}, c
	}
	// ambient controls from an enclosing distributed specialization
	// compose with the explicit register; functions are classical and
	// never pick them up
	combined := explicit
	if decl != nil && decl.Kind == ast.CallableOperation {
		combined = make([]Qubit, 0, len(ev.ctls)+len(explicit))
		combined = append(combined, ev.ctls...)
		combined = append(combined, explicit...)
	}

	prefix := FunctorApp{Adjoint: app.Adjoint, Controlled: len(combined)}.Prefix()
	ev.frames = append(ev.frames, frame{
		functor: prefix,
		name:    ev.table.QualifiedName(it.ID),
		file:    it.NameSpan.File,
	})
	defer func() { ev.frames = ev.frames[:len(ev.frames)-1] }()

	if it.Intrinsic {
		return ev.intrinsic(it, arg, app.Adjoint, combined, span)
	}

	prevEnv, prevCtls := ev.env, ev.ctls
	ev.env = newEnv()
	ev.ctls = nil
	defer func() { ev.env, ev.ctls = prevEnv, prevCtls }()

	v, c := ev.dispatch(it, decl, app.Adjoint, combined, arg, span)
	if c != nil {
		if c.ret {
			return c.val, nil
		}
		return Value{}, c
	}
	return v, nil
}

// dispatch selects and runs the specialization matching the functor
// application. The environment has already been swapped to a fresh
// activation with no ambient controls.
func (ev *Evaluator) dispatch(it *symbols.Item, decl *ast.CallableDecl, adjoint bool, ctls []Qubit, arg Value, span source.Span) (Value, *control) {
	body := findSpec(decl, ast.SpecBody)
	if body == nil || body.Block == nil {
		return Value{}, ev.fail(ErrUnsupported, span,
			fmt.Sprintf("`%s` has no executable body", ev.table.QualifiedName(it.ID)))
	}

	switch {
	case !adjoint && len(ctls) == 0:
		ev.bindPattern(decl.Params, arg)
		return ev.block(body.Block)

	case adjoint && len(ctls) == 0:
		return ev.runAdjoint(it, decl, body, arg, span)

	case !adjoint:
		return ev.runControlled(it, decl, body, ctls, arg, span)

	default:
		return ev.runControlledAdjoint(it, decl, body, ctls, arg, span)
	}
}

func findSpec(decl *ast.CallableDecl, kind ast.SpecKind) *ast.SpecDecl {
	for _, spec := range decl.Specs {
		if spec.Kind == kind {
			return spec
		}
	}
	return nil
}

// bindSpecParams binds a specialization's own input pattern; an elided
// pattern (`adjoint ... { }` or `...` in a controlled tuple) falls back to
// the declaration parameters.
func (ev *Evaluator) bindSpecParams(input *ast.Pat, decl *ast.CallableDecl, arg Value) {
	if input == nil || input.Kind == ast.PatElided {
		ev.bindPattern(decl.Params, arg)
		return
	}
	ev.bindPattern(input, arg)
}

// bindCtlParams binds a controlled specialization's (register, inner)
// input pattern.
func (ev *Evaluator) bindCtlParams(input *ast.Pat, decl *ast.CallableDecl, ctls []Qubit, arg Value) {
	if input == nil || input.Kind != ast.PatTuple || len(input.Items) != 2 {
		ev.bindPattern(decl.Params, arg)
		return
	}
	reg := make([]Value, len(ctls))
	for i, q := range ctls {
		reg[i] = QubitVal(q)
	}
	ev.bindPattern(input.Items[0], ArrayVal(reg))
	ev.bindSpecParams(input.Items[1], decl, arg)
}

func (ev *Evaluator) runAdjoint(it *symbols.Item, decl *ast.CallableDecl, body *ast.SpecDecl, arg Value, span source.Span) (Value, *control) {
	if adj := findSpec(decl, ast.SpecAdj); adj != nil {
		switch adj.Gen {
		case ast.GenManual:
			ev.bindSpecParams(adj.Input, decl, arg)
			return ev.block(adj.Block)
		case ast.GenSelf:
			ev.bindPattern(decl.Params, arg)
			return ev.block(body.Block)
		default: // GenInvert, GenAuto
			ev.bindPattern(decl.Params, arg)
			return ev.invertBlock(body.Block)
		}
	}
	if decl.Functors&ast.FunctorSetAdj == 0 {
		return Value{}, ev.fail(ErrUnsupported, span,
			fmt.Sprintf("`%s` does not support the Adjoint functor", ev.table.QualifiedName(it.ID)))
	}
	ev.bindPattern(decl.Params, arg)
	return ev.invertBlock(body.Block)
}

func (ev *Evaluator) runControlled(it *symbols.Item, decl *ast.CallableDecl, body *ast.SpecDecl, ctls []Qubit, arg Value, span source.Span) (Value, *control) {
	if ctl := findSpec(decl, ast.SpecCtl); ctl != nil && ctl.Gen == ast.GenManual {
		ev.bindCtlParams(ctl.Input, decl, ctls, arg)
		return ev.block(ctl.Block)
	}
	if findSpec(decl, ast.SpecCtl) == nil && decl.Functors&ast.FunctorSetCtl == 0 {
		return Value{}, ev.fail(ErrUnsupported, span,
			fmt.Sprintf("`%s` does not support the Controlled functor", ev.table.QualifiedName(it.ID)))
	}
	// distribute: the body runs with the register as ambient controls,
	// picked up by every operation call inside
	ev.ctls = ctls
	ev.bindPattern(decl.Params, arg)
	v, c := ev.block(body.Block)
	ev.ctls = nil
	return v, c
}

func (ev *Evaluator) runControlledAdjoint(it *symbols.Item, decl *ast.CallableDecl, body *ast.SpecDecl, ctls []Qubit, arg Value, span source.Span) (Value, *control) {
	if ca := findSpec(decl, ast.SpecCtlAdj); ca != nil {
		switch ca.Gen {
		case ast.GenManual:
			ev.bindCtlParams(ca.Input, decl, ctls, arg)
			return ev.block(ca.Block)
		case ast.GenSelf:
			return ev.runControlled(it, decl, body, ctls, arg, span)
		}
	}
	if decl.Functors&ast.FunctorSetAdj == 0 || (findSpec(decl, ast.SpecCtl) == nil && decl.Functors&ast.FunctorSetCtl == 0) {
		return Value{}, ev.fail(ErrUnsupported, span,
			fmt.Sprintf("`%s` does not support the Controlled Adjoint functor", ev.table.QualifiedName(it.ID)))
	}
	if ctl := findSpec(decl, ast.SpecCtl); ctl != nil && ctl.Gen == ast.GenManual {
		ev.bindCtlParams(ctl.Input, decl, ctls, arg)
		return ev.invertBlock(ctl.Block)
	}
	if adj := findSpec(decl, ast.SpecAdj); adj != nil && adj.Gen == ast.GenManual {
		ev.ctls = ctls
		ev.bindSpecParams(adj.Input, decl, arg)
		v, c := ev.block(adj.Block)
		ev.ctls = nil
		return v, c
	}
	ev.ctls = ctls
	ev.bindPattern(decl.Params, arg)
	v, c := ev.invertBlock(body.Block)
	ev.ctls = nil
	return v, c
}

func (ev *Evaluator) invokeClosure(cl *Closure, arg Value, span source.Span) (Value, *control) {
	if cl.App.Adjoint {
		return Value{}, ev.fail(ErrUnsupported, span, "a lambda has no Adjoint specialization")
	}
	explicit, arg, c := ev.peelControls(cl.App.Controlled, arg, span)
	if c != nil {
		return Value{}, c
	}
	combined := explicit
	if cl.Lambda.Kind == ast.CallableOperation {
		combined = make([]Qubit, 0, len(ev.ctls)+len(explicit))
		combined = append(combined, ev.ctls...)
		combined = append(combined, explicit...)
	}

	ev.frames = append(ev.frames, frame{name: "<lambda>", file: span.File})
	prevEnv, prevCtls := ev.env, ev.ctls
	ev.env = newEnv()
	ev.ctls = combined
	for node, v := range cl.Captured {
		ev.env.bind(node, v)
	}
	ev.env.push()
	ev.bindPattern(cl.Lambda.Params, arg)
	v, cc := ev.expr(cl.Lambda.Body)
	ev.env, ev.ctls = prevEnv, prevCtls
	ev.frames = ev.frames[:len(ev.frames)-1]
	if cc != nil {
		if cc.ret {
			return cc.val, nil
		}
		return Value{}, cc
	}
	return v, nil
}

// conjugate runs `within W apply A`: W, then A, then the adjoint of W. The
// undo runs even when A fails; an error raised by the undo supersedes A's.
func (ev *Evaluator) conjugate(x *ast.ConjExpr) (Value, *control) {
	return ev.conjugateWith(x, false)
}

// conjugateWith runs the conjugate, inverting the apply block when
// invertApply is set: the adjoint of W;A;W† is W;A†;W†.
func (ev *Evaluator) conjugateWith(x *ast.ConjExpr, invertApply bool) (Value, *control) {
	if _, c := ev.block(x.Within); c != nil {
		return Value{}, c
	}
	var v Value
	var applyC *control
	if invertApply {
		v, applyC = ev.invertBlock(x.Apply)
	} else {
		v, applyC = ev.block(x.Apply)
	}
	if _, undoC := ev.invertBlock(x.Within); undoC != nil && undoC.err != nil {
		return Value{}, undoC
	}
	if applyC != nil {
		return Value{}, applyC
	}
	return v, nil
}

// invertBlock executes the adjoint of a block: classical statements run
// forward first in source order so every binding the quantum statements
// read exists, then the quantum statements run in reverse with their
// operations inverted.
func (ev *Evaluator) invertBlock(b *ast.Block) (Value, *control) {
	ev.env.push()
	c := ev.invertStmts(b.Stmts)
	if rc := ev.leaveScope(c != nil && c.err != nil); rc != nil && c == nil {
		c = rc
	}
	if c != nil {
		return Value{}, c
	}
	return UnitVal(), nil
}

func (ev *Evaluator) invertStmts(stmts []ast.Stmt) *control {
	var quantum []ast.Stmt
	for _, s := range stmts {
		if ev.isClassicalStmt(s) {
			if _, c := ev.stmt(s); c != nil {
				return c
			}
			continue
		}
		quantum = append(quantum, s)
	}
	for i := len(quantum) - 1; i >= 0; i-- {
		if c := ev.invertStmt(quantum[i]); c != nil {
			return c
		}
	}
	return nil
}

// isClassicalStmt reports whether a statement has no quantum effect and
// therefore keeps its forward order and position under inversion.
func (ev *Evaluator) isClassicalStmt(s ast.Stmt) bool {
	switch st := s.(type) {
	case *ast.LetStmt:
		return true
	case *ast.ExprStmt:
		return ev.isClassicalExpr(st.Expr)
	}
	return false
}

func (ev *Evaluator) isClassicalExpr(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.CallExpr:
		callee := x.Callee
		for {
			if f, ok := callee.(*ast.FunctorExpr); ok {
				callee = f.Operand
				continue
			}
			break
		}
		if p, ok := callee.(*ast.PathExpr); ok {
			res := ev.names[p.Path.NodeID()]
			if res.Kind == symbols.ResItem {
				it := ev.table.Item(res.Item)
				if it != nil && it.Kind == symbols.ItemCallable {
					return it.Callable.Kind == ast.CallableFunction
				}
				return it != nil && it.Kind == symbols.ItemNewtype
			}
		}
		return false
	case *ast.AssignExpr, *ast.AssignOpExpr, *ast.AssignUpdateExpr:
		return true
	case *ast.ForExpr, *ast.WhileExpr, *ast.IfExpr, *ast.ConjExpr,
		*ast.BlockExpr, *ast.ReturnExpr, *ast.FailExpr:
		return false
	}
	// plain value expressions have no effect either way
	return true
}

func (ev *Evaluator) invertStmt(s ast.Stmt) *control {
	switch st := s.(type) {
	case *ast.ExprStmt:
		return ev.invertExpr(st.Expr)
	case *ast.QubitStmt:
		if st.Block == nil {
			return ev.fail(ErrUnsupported, st.Pos(),
				"a scope-wide qubit allocation cannot be inverted")
		}
		// allocation and release are self-inverse; only the block body
		// reverses
		ev.env.push()
		v, c := ev.qubitInit(st.Init, st.Borrow, st.Pos())
		if c == nil {
			ev.bindPattern(st.Pat, v)
			c = ev.invertStmts(st.Block.Stmts)
		}
		if rc := ev.leaveScope(c != nil && c.err != nil); rc != nil && c == nil {
			c = rc
		}
		return c
	}
	return ev.fail(ErrUnsupported, s.Pos(), "statement cannot be inverted")
}

func (ev *Evaluator) invertExpr(e ast.Expr) *control {
	switch x := e.(type) {
	case *ast.CallExpr:
		callee, c := ev.expr(x.Callee)
		if c != nil {
			return c
		}
		arg, c := ev.expr(x.Arg)
		if c != nil {
			return c
		}
		switch callee.Kind {
		case VKGlobal:
			callee.App.Adjoint = !callee.App.Adjoint
		case VKClosure:
			cl := *callee.Cl
			cl.App.Adjoint = !cl.App.Adjoint
			callee = Value{Kind: VKClosure, Cl: &cl}
		}
		_, c = ev.invoke(callee, arg, x.Pos())
		return c

	case *ast.ForExpr:
		iter, c := ev.expr(x.Iter)
		if c != nil {
			return c
		}
		runBody := func(v Value) *control {
			ev.env.push()
			ev.bindPattern(x.Pat, v)
			c := ev.invertStmts(x.Body.Stmts)
			if rc := ev.leaveScope(c != nil && c.err != nil); rc != nil && c == nil {
				c = rc
			}
			return c
		}
		switch iter.Kind {
		case VKArray:
			for i := len(iter.Arr.Items) - 1; i >= 0; i-- {
				if c := runBody(iter.Arr.Items[i]); c != nil {
					return c
				}
			}
			return nil
		case VKRange:
			if !iter.Rng.HasStart || !iter.Rng.HasEnd {
				return ev.fail(ErrUnsupported, x.Iter.Pos(),
					"cannot iterate an open-ended range")
			}
			var vals []int64
			for i := iter.Rng.Start; inRange(i, iter.Rng); i += iter.Rng.Step {
				vals = append(vals, i)
			}
			for i := len(vals) - 1; i >= 0; i-- {
				if c := runBody(IntVal(vals[i])); c != nil {
					return c
				}
			}
			return nil
		}
		return ev.fail(ErrUnsupported, x.Iter.Pos(), "cannot iterate a "+iter.Kind.String())

	case *ast.IfExpr:
		cond, c := ev.expr(x.Cond)
		if c != nil {
			return c
		}
		if cond.Kind != VKBool {
			return ev.fail(ErrUnsupported, x.Cond.Pos(),
				"condition must be a Bool, got "+cond.Kind.String())
		}
		if cond.Bool {
			_, c := ev.invertBlock(x.Then)
			return c
		}
		if x.Else != nil {
			return ev.invertExpr(x.Else)
		}
		return nil

	case *ast.ConjExpr:
		_, c := ev.conjugateWith(x, true)
		return c

	case *ast.BlockExpr:
		_, c := ev.invertBlock(x.Block)
		return c
	}
	return ev.fail(ErrUnsupported, e.Pos(), "expression cannot be inverted")
}
