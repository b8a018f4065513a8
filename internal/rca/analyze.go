package rca

import (
	"quill/internal/ast"
	"quill/internal/symbols"
)

type visitState uint8

const (
	stateWhite visitState = iota
	stateGray
	stateBlack
)

// Analyzer computes an ApplicationsGeneratorSet for every callable in the
// global table. Callables are processed in call-graph order via recursive
// descent with gray markers: a call into a callable currently being
// analyzed is a cycle, answered with a conservative propagate-everything
// approximation and recorded so call sites apply the cyclic-call flags.
// One pass, no fixpoint iteration; self-reference only ever adds dynamism.
type Analyzer struct {
	table *symbols.GlobalTable
	names symbols.Names

	sets   map[symbols.ItemID]*ApplicationsGeneratorSet
	state  map[symbols.ItemID]visitState
	stack  []symbols.ItemID
	cyclic map[symbols.ItemID]bool

	cur *callableState
}

// callableState is the per-callable accumulator while its body is walked.
type callableState struct {
	// feats are features the callable requires regardless of arguments;
	// condFeats[i] are features activated when parameter i is dynamic.
	feats     RuntimeFeatureFlags
	condFeats []RuntimeFeatureFlags

	// locals maps a binding's declaring node to the properties of the bound
	// value. Node ids are globally unique, so shadowing needs no scoping.
	locals map[ast.NodeID]props

	// result joins every return value and body tail value.
	result props

	// ctx is the dynamism of the enclosing control flow: non-zero inside a
	// branch or loop whose condition is dynamic or parameter-dependent.
	ctx props
}

// props are the analysis properties of one expression value: whether it is
// dynamic now, which parameters it transitively depends on, and a type
// guess for flag selection. Features are not carried here; they accumulate
// in the callableState the moment a dynamic value is produced.
type props struct {
	dyn    bool
	params uint64
	ty     tyInfo
}

func (p props) join(other props) props {
	out := p
	out.dyn = p.dyn || other.dyn
	out.params = p.params | other.params
	if out.ty.k == tyOther {
		out.ty = other.ty
	}
	return out
}

// Analyze runs capability analysis over every callable registered in the
// table, using the resolver's bindings.
func Analyze(table *symbols.GlobalTable, names symbols.Names) *Result {
	a := &Analyzer{
		table:  table,
		names:  names,
		sets:   make(map[symbols.ItemID]*ApplicationsGeneratorSet),
		state:  make(map[symbols.ItemID]visitState),
		cyclic: make(map[symbols.ItemID]bool),
	}
	table.Items(func(it *symbols.Item) bool {
		if it.Kind == symbols.ItemCallable {
			a.analyzeItem(it.ID)
		}
		return true
	})
	return &Result{table: table, sets: a.sets}
}

func (a *Analyzer) analyzeItem(id symbols.ItemID) *ApplicationsGeneratorSet {
	switch a.state[id] {
	case stateBlack:
		return a.sets[id]
	case stateGray:
		// everyone on the stack from the re-entered callable up is in the
		// cycle
		for i := len(a.stack) - 1; i >= 0; i-- {
			a.cyclic[a.stack[i]] = true
			if a.stack[i] == id {
				break
			}
		}
		return a.approxSet(id)
	}

	a.state[id] = stateGray
	a.stack = append(a.stack, id)

	it := a.table.Item(id)
	set := a.computeSet(it)

	a.stack = a.stack[:len(a.stack)-1]
	a.state[id] = stateBlack

	if a.cyclic[id] {
		set.Cyclic = true
		a.bakeCyclic(set, it.Callable.Kind)
	}
	a.sets[id] = set
	return set
}

// approxSet is the conservative answer for a call into a callable still
// being analyzed: inherently classical, but every parameter propagates
// dynamism, plus the cyclic-call flags.
func (a *Analyzer) approxSet(id symbols.ItemID) *ApplicationsGeneratorSet {
	decl := a.table.Item(id).Callable
	set := &ApplicationsGeneratorSet{
		ParamApps: make([]ComputeKind, paramCount(decl)),
		Cyclic:    true,
	}
	for i := range set.ParamApps {
		set.ParamApps[i].Dynamic = true
	}
	a.bakeCyclic(set, decl.Kind)
	return set
}

// bakeCyclic folds the cyclic-call flags into the set so call sites get
// them through plain composition: calling a cyclic operation requires
// support unconditionally, calling a cyclic function only matters when its
// argument is dynamic (a static recursion fully unrolls).
func (a *Analyzer) bakeCyclic(set *ApplicationsGeneratorSet, kind ast.CallableKind) {
	if kind == ast.CallableOperation {
		set.Inherent.Features |= CallToCyclicOperation
		return
	}
	for i := range set.ParamApps {
		set.ParamApps[i].Features |= CallToCyclicFunctionWithDynamicArg
	}
}

func (a *Analyzer) computeSet(it *symbols.Item) *ApplicationsGeneratorSet {
	decl := it.Callable
	n := paramCount(decl)

	// intrinsics and simulatable intrinsics are primitive gates: the body
	// (if any) is not descended into, only the signature counts. An output
	// mentioning Result is a measurement and seeds all dynamism.
	if it.Intrinsic || it.SimulatableIntrinsic {
		set := &ApplicationsGeneratorSet{ParamApps: make([]ComputeKind, n)}
		set.Inherent.Dynamic = a.containsResult(decl.Output)
		if decl.Kind == ast.CallableFunction {
			// intrinsic functions (Length, DrawRandomInt, ...) compute their
			// result from their arguments
			for i := range set.ParamApps {
				set.ParamApps[i].Dynamic = true
			}
		}
		return set
	}

	prev := a.cur
	a.cur = &callableState{
		condFeats: make([]RuntimeFeatureFlags, n),
		locals:    make(map[ast.NodeID]props),
	}
	a.bindParams(decl.Params)

	for _, spec := range decl.Specs {
		if spec.Gen != ast.GenManual || spec.Block == nil {
			continue
		}
		if spec.Input != nil {
			// controlled specializations bind the control register; it is a
			// plain qubit array, statically known
			a.bindSpecInput(spec.Input)
		}
		tail := a.block(spec.Block)
		if spec.Kind == ast.SpecBody {
			a.cur.result = a.cur.result.join(tail)
		}
	}

	cur := a.cur
	a.cur = prev

	set := &ApplicationsGeneratorSet{
		Inherent:  ComputeKind{Dynamic: cur.result.dyn, Features: cur.feats},
		ParamApps: make([]ComputeKind, n),
	}
	for i := 0; i < n; i++ {
		set.ParamApps[i] = ComputeKind{
			Dynamic:  cur.result.params&paramBit(i) != 0,
			Features: cur.condFeats[i],
		}
	}
	return set
}

// paramCount is the number of top-level parameter slots.
func paramCount(decl *ast.CallableDecl) int {
	if decl.Params == nil {
		return 0
	}
	if decl.Params.Kind == ast.PatTuple {
		return len(decl.Params.Items)
	}
	return 1
}

// paramBit clamps high parameter indexes into the top bit; precision is
// lost past 64 parameters, soundness is not.
func paramBit(i int) uint64 {
	if i > 63 {
		i = 63
	}
	return 1 << uint(i)
}

// bindParams assigns each binding in the parameter pattern the dependence
// mask of its top-level slot.
func (a *Analyzer) bindParams(params *ast.Pat) {
	if params == nil {
		return
	}
	if params.Kind == ast.PatTuple {
		for i, item := range params.Items {
			a.bindParamLeaf(item, paramBit(i))
		}
		return
	}
	a.bindParamLeaf(params, paramBit(0))
}

func (a *Analyzer) bindParamLeaf(pat *ast.Pat, mask uint64) {
	switch pat.Kind {
	case ast.PatBind:
		a.cur.locals[pat.Name.NodeID()] = props{params: mask, ty: a.tyOf(pat.Ty)}
	case ast.PatTuple:
		for _, item := range pat.Items {
			a.bindParamLeaf(item, mask)
		}
	}
}

func (a *Analyzer) bindSpecInput(pat *ast.Pat) {
	switch pat.Kind {
	case ast.PatBind:
		a.cur.locals[pat.Name.NodeID()] = props{ty: tyInfo{k: tyArray, elem: tyQubit}}
	case ast.PatTuple:
		for _, item := range pat.Items {
			a.bindSpecInput(item)
		}
	}
}

// addFeat records the per-type feature for producing a value of type t out
// of inputs with the given dynamism: unconditionally when the inputs are
// dynamic now, per-parameter when they are parameter-dependent.
func (a *Analyzer) addFeat(from props, t tyInfo) {
	flag := dynFlag(t)
	if flag == 0 {
		return
	}
	if from.dyn {
		a.cur.feats |= flag
	}
	a.addCond(from.params, flag)
}

func (a *Analyzer) addCond(mask uint64, flags RuntimeFeatureFlags) {
	if mask == 0 || flags == 0 {
		return
	}
	for i := range a.cur.condFeats {
		if mask&paramBit(i) != 0 {
			a.cur.condFeats[i] |= flags
		}
	}
}

// block analyzes a statement block and returns the properties of its tail
// expression, or static unit when the block ends in a semicolon.
func (a *Analyzer) block(b *ast.Block) props {
	out := props{ty: tyInfo{k: tyUnit}}
	for i, stmt := range b.Stmts {
		p := a.stmt(stmt)
		if i == len(b.Stmts)-1 {
			if es, ok := stmt.(*ast.ExprStmt); ok && !es.Semi {
				out = p
			}
		}
	}
	return out
}

func (a *Analyzer) stmt(stmt ast.Stmt) props {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		return a.expr(s.Expr)
	case *ast.LetStmt:
		v := a.expr(s.Value)
		a.bindPat(s.Pat, v)
	case *ast.QubitStmt:
		a.qubitInit(s.Init)
		a.bindQubitPat(s.Pat, s.Init)
		if s.Block != nil {
			a.block(s.Block)
		}
	}
	return props{ty: tyInfo{k: tyUnit}}
}

func (a *Analyzer) qubitInit(init ast.QubitInit) {
	switch q := init.(type) {
	case *ast.QubitArray:
		size := a.expr(q.Len)
		// allocating a register whose size is a measurement outcome
		a.addFeat(size, tyInfo{k: tyArray, elem: tyQubit})
	case *ast.QubitTuple:
		for _, item := range q.Items {
			a.qubitInit(item)
		}
	}
}

func (a *Analyzer) bindQubitPat(pat *ast.Pat, init ast.QubitInit) {
	switch pat.Kind {
	case ast.PatBind:
		t := tyInfo{k: tyQubit}
		if _, ok := init.(*ast.QubitArray); ok {
			t = tyInfo{k: tyArray, elem: tyQubit}
		}
		a.cur.locals[pat.Name.NodeID()] = props{ty: t}
	case ast.PatTuple:
		tuple, _ := init.(*ast.QubitTuple)
		for i, item := range pat.Items {
			var sub ast.QubitInit
			if tuple != nil && i < len(tuple.Items) {
				sub = tuple.Items[i]
			}
			a.bindQubitPat(item, sub)
		}
	}
}

func (a *Analyzer) bindPat(pat *ast.Pat, v props) {
	switch pat.Kind {
	case ast.PatBind:
		bound := v
		if pat.Ty != nil {
			bound.ty = a.tyOf(pat.Ty)
		}
		a.cur.locals[pat.Name.NodeID()] = bound
	case ast.PatTuple:
		elem := v
		elem.ty = tyInfo{k: tyOther}
		for _, item := range pat.Items {
			a.bindPat(item, elem)
		}
	}
}

// withCtx runs fn with the dynamism of cond folded into the control-flow
// context.
func (a *Analyzer) withCtx(cond props, fn func()) {
	saved := a.cur.ctx
	a.cur.ctx.dyn = saved.dyn || cond.dyn
	a.cur.ctx.params = saved.params | cond.params
	fn()
	a.cur.ctx = saved
}

func (a *Analyzer) expr(expr ast.Expr) props {
	switch e := expr.(type) {
	case *ast.LitExpr:
		return props{ty: litTy(e.Kind)}

	case *ast.InterpExpr:
		var in props
		for _, part := range e.Parts {
			if part.Expr != nil {
				in = in.join(a.expr(part.Expr))
			}
		}
		out := props{dyn: in.dyn, params: in.params, ty: tyInfo{k: tyString}}
		a.addFeat(out, out.ty)
		return out

	case *ast.ArrayExpr:
		var in props
		var elem tyKind
		for _, item := range e.Items {
			p := a.expr(item)
			in = in.join(p)
			if elem == tyOther {
				elem = p.ty.k
			}
		}
		return props{dyn: in.dyn, params: in.params, ty: tyInfo{k: tyArray, elem: elem}}

	case *ast.ArrayRepeatExpr:
		v := a.expr(e.Value)
		size := a.expr(e.Size)
		t := tyInfo{k: tyArray, elem: v.ty.k}
		a.addFeat(size, t)
		return props{dyn: v.dyn || size.dyn, params: v.params | size.params, ty: t}

	case *ast.TupleExpr:
		var in props
		for _, item := range e.Items {
			in = in.join(a.expr(item))
		}
		t := tyInfo{k: tyTuple}
		if len(e.Items) == 0 {
			t = tyInfo{k: tyUnit}
		}
		return props{dyn: in.dyn, params: in.params, ty: t}

	case *ast.RangeExpr:
		var in props
		for _, part := range []ast.Expr{e.Start, e.Step, e.End} {
			if part != nil {
				in = in.join(a.expr(part))
			}
		}
		out := props{dyn: in.dyn, params: in.params, ty: tyInfo{k: tyRange}}
		a.addFeat(out, out.ty)
		return out

	case *ast.PathExpr:
		return a.pathProps(e)

	case *ast.CallExpr:
		return a.call(e)

	case *ast.IndexExpr:
		arr := a.expr(e.Array)
		idx := a.expr(e.Index)
		t := tyInfo{k: arr.ty.elem}
		a.addFeat(idx, t)
		return props{dyn: arr.dyn || idx.dyn, params: arr.params | idx.params, ty: t}

	case *ast.BinExpr:
		l := a.expr(e.LHS)
		r := a.expr(e.RHS)
		in := l.join(r)
		t := binTy(e.Op, l.ty, r.ty)
		out := props{dyn: in.dyn, params: in.params, ty: t}
		a.addFeat(out, t)
		return out

	case *ast.UnExpr:
		v := a.expr(e.Operand)
		t := v.ty
		if e.Op == ast.UnNotL {
			t = tyInfo{k: tyBool}
		}
		out := props{dyn: v.dyn, params: v.params, ty: t}
		a.addFeat(out, t)
		return out

	case *ast.TernExpr:
		cond := a.expr(e.Cond)
		var thenP, elseP props
		a.withCtx(cond, func() {
			thenP = a.expr(e.Then)
			elseP = a.expr(e.Else)
		})
		t := thenP.ty
		if t.k == tyOther {
			t = elseP.ty
		}
		out := props{
			dyn:    cond.dyn || thenP.dyn || elseP.dyn,
			params: cond.params | thenP.params | elseP.params,
			ty:     t,
		}
		// a dynamic condition taints the chosen value even when both arms
		// are static
		a.addFeat(props{dyn: cond.dyn, params: cond.params}, t)
		return out

	case *ast.LambdaExpr:
		// the body is analyzed in place: a closure's requirements are
		// attributed to the defining callable, which over-approximates a
		// closure that is never invoked
		for _, leaf := range bindLeaves(e.Params) {
			a.cur.locals[leaf.Name.NodeID()] = props{ty: a.tyOf(leaf.Ty)}
		}
		body := a.expr(e.Body)
		return props{dyn: body.dyn, params: body.params, ty: tyInfo{k: tyCallable}}

	case *ast.FunctorExpr:
		v := a.expr(e.Operand)
		return props{dyn: v.dyn, params: v.params, ty: tyInfo{k: tyCallable}}

	case *ast.IfExpr:
		cond := a.expr(e.Cond)
		var thenP, elseP props
		a.withCtx(cond, func() {
			thenP = a.block(e.Then)
			if e.Else != nil {
				elseP = a.expr(e.Else)
			}
		})
		t := thenP.ty
		out := props{
			dyn:    cond.dyn || thenP.dyn || elseP.dyn,
			params: cond.params | thenP.params | elseP.params,
			ty:     t,
		}
		a.addFeat(props{dyn: cond.dyn, params: cond.params}, t)
		return out

	case *ast.ForExpr:
		iter := a.expr(e.Iter)
		if iter.dyn {
			a.cur.feats |= LoopWithDynamicCondition
		}
		a.addCond(iter.params, LoopWithDynamicCondition)
		elem := props{dyn: iter.dyn, params: iter.params, ty: tyInfo{k: iter.ty.elem}}
		a.withCtx(iter, func() {
			// two passes so a binding mutated late in the body taints early
			// reads of the next iteration
			for pass := 0; pass < 2; pass++ {
				a.bindPat(e.Pat, elem)
				a.block(e.Body)
			}
		})
		return props{ty: tyInfo{k: tyUnit}}

	case *ast.WhileExpr:
		for pass := 0; pass < 2; pass++ {
			cond := a.expr(e.Cond)
			if cond.dyn {
				a.cur.feats |= LoopWithDynamicCondition
			}
			a.addCond(cond.params, LoopWithDynamicCondition)
			a.withCtx(cond, func() {
				a.block(e.Body)
			})
		}
		return props{ty: tyInfo{k: tyUnit}}

	case *ast.ReturnExpr:
		v := props{ty: tyInfo{k: tyUnit}}
		if e.Value != nil {
			v = a.expr(e.Value)
		}
		ctx := a.cur.ctx
		if ctx.dyn {
			// which return executes depends on a measurement, so the
			// callable's result does too
			a.cur.feats |= ReturnWithinDynamicScope
			v.dyn = true
		}
		if ctx.params != 0 {
			a.addCond(ctx.params, ReturnWithinDynamicScope)
			v.params |= ctx.params
		}
		a.cur.result = a.cur.result.join(v)
		return props{ty: tyInfo{k: tyUnit}}

	case *ast.FailExpr:
		a.expr(e.Msg)
		return props{ty: tyInfo{k: tyUnit}}

	case *ast.ConjExpr:
		a.block(e.Within)
		a.block(e.Apply)
		return props{ty: tyInfo{k: tyUnit}}

	case *ast.BlockExpr:
		return a.block(e.Block)

	case *ast.UpdateExpr:
		rec := a.expr(e.Record)
		idx := a.expr(e.Index)
		val := a.expr(e.Value)
		out := props{
			dyn:    rec.dyn || idx.dyn || val.dyn,
			params: rec.params | idx.params | val.params,
			ty:     rec.ty,
		}
		a.addFeat(props{dyn: idx.dyn, params: idx.params}, rec.ty)
		return out

	case *ast.AssignExpr:
		v := a.expr(e.RHS)
		a.assign(e.LHS, v)
		return props{ty: tyInfo{k: tyUnit}}

	case *ast.AssignOpExpr:
		v := a.expr(e.RHS)
		old := a.expr(e.LHS)
		a.assign(e.LHS, old.join(v))
		return props{ty: tyInfo{k: tyUnit}}

	case *ast.AssignUpdateExpr:
		rec := a.expr(e.Record)
		idx := a.expr(e.Index)
		val := a.expr(e.Value)
		a.addFeat(props{dyn: idx.dyn, params: idx.params}, rec.ty)
		a.assign(e.Record, rec.join(idx).join(val))
		return props{ty: tyInfo{k: tyUnit}}
	}
	return props{ty: tyInfo{k: tyOther}}
}

// assign joins the new value into the target binding. An assignment inside
// a dynamically-entered branch makes the binding dynamic: whether it
// happened depends on a measurement.
func (a *Analyzer) assign(lhs ast.Expr, v props) {
	path, ok := lhs.(*ast.PathExpr)
	if !ok {
		return
	}
	res := a.names[path.Path.NodeID()]
	if res.Kind != symbols.ResLocal {
		return
	}
	ctx := a.cur.ctx
	v.dyn = v.dyn || ctx.dyn
	v.params |= ctx.params
	old := a.cur.locals[res.Local]
	merged := old.join(v)
	if merged.dyn != old.dyn || merged.params != old.params {
		a.addFeat(props{dyn: merged.dyn, params: merged.params}, merged.ty)
	}
	a.cur.locals[res.Local] = merged
}

func (a *Analyzer) pathProps(e *ast.PathExpr) props {
	res := a.names[e.Path.NodeID()]
	switch res.Kind {
	case symbols.ResLocal:
		if p, ok := a.cur.locals[res.Local]; ok {
			return p
		}
		return props{ty: tyInfo{k: tyOther}}
	case symbols.ResItem:
		return props{ty: tyInfo{k: tyCallable}}
	}
	return props{ty: tyInfo{k: tyOther}}
}

// call composes a call site with the callee's generator set. Functor
// applications are peeled off the callee first; each Controlled prepends a
// control-register argument.
func (a *Analyzer) call(e *ast.CallExpr) props {
	callee := e.Callee
	controlled := 0
	for {
		f, ok := callee.(*ast.FunctorExpr)
		if !ok {
			break
		}
		if f.Functor == ast.FunctorCtl {
			controlled++
		}
		callee = f.Operand
	}

	arg := e.Arg
	for i := 0; i < controlled; i++ {
		tuple, ok := arg.(*ast.TupleExpr)
		if !ok || len(tuple.Items) != 2 {
			break
		}
		a.expr(tuple.Items[0])
		arg = tuple.Items[1]
	}

	path, ok := callee.(*ast.PathExpr)
	if !ok {
		return a.dynamicCall(callee, arg)
	}
	res := a.names[path.Path.NodeID()]
	if res.Kind != symbols.ResItem {
		return a.dynamicCall(callee, arg)
	}
	it := a.table.Item(res.Item)
	if it.Kind != symbols.ItemCallable {
		// newtype constructor: wraps its argument
		v := a.expr(arg)
		return props{dyn: v.dyn, params: v.params, ty: tyInfo{k: tyOther}}
	}

	saved := a.cur
	set := a.analyzeItem(res.Item)
	a.cur = saved

	args := a.callArgs(arg, len(set.ParamApps))

	out := props{dyn: set.Inherent.Dynamic, ty: a.tyOf(it.Callable.Output)}
	a.cur.feats |= set.Inherent.Features
	if set.Inherent.Dynamic {
		// a measurement taken inside dynamically-entered control flow
		if a.cur.ctx.dyn {
			a.cur.feats |= MeasurementWithinDynamicScope
		}
		a.addCond(a.cur.ctx.params, MeasurementWithinDynamicScope)
	}

	for i, argp := range args {
		var pa ComputeKind
		if i < len(set.ParamApps) {
			pa = set.ParamApps[i]
		} else {
			pa = ComputeKind{Dynamic: true}
		}
		if argp.dyn {
			a.cur.feats |= pa.Features
			if pa.Dynamic {
				out.dyn = true
			}
		}
		if argp.params != 0 {
			a.addCond(argp.params, pa.Features)
			if pa.Dynamic {
				out.params |= argp.params
			}
		}
	}
	return out
}

// callArgs analyzes the argument expression slot-wise: a literal tuple of
// matching arity maps element-wise onto parameters, anything else feeds
// every parameter.
func (a *Analyzer) callArgs(arg ast.Expr, n int) []props {
	if tuple, ok := arg.(*ast.TupleExpr); ok && len(tuple.Items) == n {
		out := make([]props, n)
		for i, item := range tuple.Items {
			out[i] = a.expr(item)
		}
		return out
	}
	p := a.expr(arg)
	if n == 0 {
		n = 1
	}
	out := make([]props, n)
	for i := range out {
		out[i] = p
	}
	return out
}

// dynamicCall handles a callee that is not a direct item reference: a
// lambda binding, a callable passed as a parameter, or a computed
// expression. The callee's own set is unknown here, so everything
// propagates.
func (a *Analyzer) dynamicCall(callee, arg ast.Expr) props {
	c := a.expr(callee)
	v := a.expr(arg)
	if c.dyn {
		a.cur.feats |= CallToDynamicCallee
	}
	a.addCond(c.params, CallToDynamicCallee)
	return props{
		dyn:    c.dyn || v.dyn,
		params: c.params | v.params,
		ty:     tyInfo{k: tyOther},
	}
}

// bindLeaves collects the binding leaves of a pattern.
func bindLeaves(pat *ast.Pat) []*ast.Pat {
	if pat == nil {
		return nil
	}
	switch pat.Kind {
	case ast.PatBind:
		return []*ast.Pat{pat}
	case ast.PatTuple:
		var out []*ast.Pat
		for _, item := range pat.Items {
			out = append(out, bindLeaves(item)...)
		}
		return out
	}
	return nil
}
