package symbols

import (
	"fmt"

	"quill/internal/ast"
	"quill/internal/diag"
)

func (r *Resolver) resolveCallable(decl *ast.CallableDecl) {
	r.resolveType(decl.Output)

	// a callable body gets a fresh scope: it sees enclosing items and
	// opens, never the locals of an enclosing entry sequence
	r.push(scopeCallable)
	r.bindPattern(decl.Params, make(map[string]ast.NodeID))

	for _, spec := range decl.Specs {
		if spec.Gen != ast.GenManual {
			continue
		}
		r.push(scopeBlock)
		if spec.Input != nil {
			r.bindPattern(spec.Input, make(map[string]ast.NodeID))
		}
		if spec.Block != nil {
			for _, stmt := range spec.Block.Stmts {
				r.resolveStmt(stmt)
			}
		}
		r.pop()
	}
	r.pop()
}

// bindPattern introduces the pattern's names into the current scope. Names
// bound simultaneously in one pattern must be pairwise distinct; a repeat is
// reported at the second occurrence. seen spans one whole pattern across
// nested tuples.
func (r *Resolver) bindPattern(pat *ast.Pat, seen map[string]ast.NodeID) {
	switch pat.Kind {
	case ast.PatBind:
		name := pat.Name.Name
		if name == "" {
			break
		}
		if _, dup := seen[name]; dup {
			diag.ReportError(r.reporter, diag.ResDuplicateBinding, pat.Name.Pos(),
				fmt.Sprintf("duplicate binding `%s` in pattern", name)).
				Emit()
			break
		}
		seen[name] = pat.Name.NodeID()
		s := r.scopes[len(r.scopes)-1]
		// shadowing an outer scope's binding is ordinary and silent
		s.locals[name] = localBinding{node: pat.Name.NodeID(), span: pat.Name.Pos()}
		r.bind(pat.Name.NodeID(), Res{Kind: ResLocal, Local: pat.Name.NodeID()})
	case ast.PatTuple:
		for _, item := range pat.Items {
			r.bindPattern(item, seen)
		}
	case ast.PatDiscard, ast.PatElided:
	}
	if pat.Ty != nil {
		r.resolveType(pat.Ty)
	}
}

func (r *Resolver) resolveStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		r.resolveExpr(s.Expr)
	case *ast.LetStmt:
		r.resolveExpr(s.Value)
		r.bindPattern(s.Pat, make(map[string]ast.NodeID))
	case *ast.QubitStmt:
		r.resolveQubitInit(s.Init)
		if s.Block != nil {
			r.push(scopeBlock)
			r.bindPattern(s.Pat, make(map[string]ast.NodeID))
			for _, inner := range s.Block.Stmts {
				r.resolveStmt(inner)
			}
			r.pop()
		} else {
			r.bindPattern(s.Pat, make(map[string]ast.NodeID))
		}
	}
}

func (r *Resolver) resolveQubitInit(init ast.QubitInit) {
	switch q := init.(type) {
	case *ast.SingleQubit:
	case *ast.QubitArray:
		r.resolveExpr(q.Len)
	case *ast.QubitTuple:
		for _, item := range q.Items {
			r.resolveQubitInit(item)
		}
	}
}

func (r *Resolver) resolveBlock(block *ast.Block) {
	r.push(scopeBlock)
	for _, stmt := range block.Stmts {
		r.resolveStmt(stmt)
	}
	r.pop()
}

func (r *Resolver) resolveExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.LitExpr:
	case *ast.InterpExpr:
		for _, part := range e.Parts {
			if part.Expr != nil {
				r.resolveExpr(part.Expr)
			}
		}
	case *ast.ArrayExpr:
		for _, item := range e.Items {
			r.resolveExpr(item)
		}
	case *ast.ArrayRepeatExpr:
		r.resolveExpr(e.Value)
		r.resolveExpr(e.Size)
	case *ast.TupleExpr:
		for _, item := range e.Items {
			r.resolveExpr(item)
		}
	case *ast.RangeExpr:
		if e.Start != nil {
			r.resolveExpr(e.Start)
		}
		if e.Step != nil {
			r.resolveExpr(e.Step)
		}
		if e.End != nil {
			r.resolveExpr(e.End)
		}
	case *ast.PathExpr:
		r.resolveTermPath(e.Path)
	case *ast.CallExpr:
		r.resolveExpr(e.Callee)
		r.resolveExpr(e.Arg)
	case *ast.IndexExpr:
		r.resolveExpr(e.Array)
		r.resolveExpr(e.Index)
	case *ast.BinExpr:
		r.resolveExpr(e.LHS)
		r.resolveExpr(e.RHS)
	case *ast.UnExpr:
		r.resolveExpr(e.Operand)
	case *ast.TernExpr:
		r.resolveExpr(e.Cond)
		r.resolveExpr(e.Then)
		r.resolveExpr(e.Else)
	case *ast.LambdaExpr:
		// a lambda sees enclosing locals; free variables are captured by
		// value when the closure is created
		r.push(scopeLambda)
		r.bindPattern(e.Params, make(map[string]ast.NodeID))
		r.resolveExpr(e.Body)
		r.pop()
	case *ast.FunctorExpr:
		r.resolveExpr(e.Operand)
	case *ast.IfExpr:
		r.resolveExpr(e.Cond)
		r.resolveBlock(e.Then)
		if e.Else != nil {
			r.resolveExpr(e.Else)
		}
	case *ast.ForExpr:
		r.resolveExpr(e.Iter)
		r.push(scopeBlock)
		r.bindPattern(e.Pat, make(map[string]ast.NodeID))
		for _, stmt := range e.Body.Stmts {
			r.resolveStmt(stmt)
		}
		r.pop()
	case *ast.WhileExpr:
		r.resolveExpr(e.Cond)
		r.resolveBlock(e.Body)
	case *ast.ReturnExpr:
		if e.Value != nil {
			r.resolveExpr(e.Value)
		}
	case *ast.FailExpr:
		r.resolveExpr(e.Msg)
	case *ast.ConjExpr:
		r.resolveBlock(e.Within)
		r.resolveBlock(e.Apply)
	case *ast.BlockExpr:
		r.resolveBlock(e.Block)
	case *ast.UpdateExpr:
		r.resolveExpr(e.Record)
		r.resolveExpr(e.Index)
		r.resolveExpr(e.Value)
	case *ast.AssignExpr:
		r.resolveExpr(e.LHS)
		r.resolveExpr(e.RHS)
	case *ast.AssignOpExpr:
		r.resolveExpr(e.LHS)
		r.resolveExpr(e.RHS)
	case *ast.AssignUpdateExpr:
		r.resolveExpr(e.Record)
		r.resolveExpr(e.Index)
		r.resolveExpr(e.Value)
	}
}

func (r *Resolver) resolveType(ty ast.Ty) {
	switch t := ty.(type) {
	case *ast.PathTy:
		r.resolveTypePath(t.Path)
	case *ast.TupleTy:
		if len(t.Items) == 0 {
			r.bind(t.NodeID(), Res{Kind: ResUnit})
			return
		}
		for _, item := range t.Items {
			r.resolveType(item)
		}
	case *ast.ArrayTy:
		r.resolveType(t.Elem)
	case *ast.ArrowTy:
		r.resolveType(t.Input)
		r.resolveType(t.Output)
	case *ast.HoleTy:
	case nil:
	}
}
