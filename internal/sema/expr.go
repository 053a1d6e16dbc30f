package sema

import (
	"strings"

	"github.com/gosuda/qbc/internal/ast"
	"github.com/gosuda/qbc/internal/symbols"
	"github.com/gosuda/qbc/internal/types"
)

// analyzeExpr resolves names, annotates every node with a Type, and rewrites
// a call-shaped VarRef (one with Indices) into an FnCall when the name
// denotes a procedure or built-in rather than an array.
func (a *analyzer) analyzeExpr(e ast.Expr) (ast.Expr, error) {
	switch v := e.(type) {
	case ast.Literal:
		return v, nil
	case ast.VarRef:
		return a.analyzeVarRef(v)
	case ast.FnCall:
		return a.analyzeFnCall(v)
	case ast.BinaryOp:
		return a.analyzeBinaryOp(v)
	case ast.UnaryOp:
		return a.analyzeUnaryOp(v)
	default:
		return nil, errAt(e.Loc(), "unsupported expression node %T", e)
	}
}

func (a *analyzer) analyzeVarRef(v ast.VarRef) (ast.Expr, error) {
	upper := strings.ToUpper(v.Name)

	if len(v.Indices) > 0 {
		if proc, ok := a.procs[upper]; ok && proc.IsFunction {
			return a.buildCall(v.Name, v.Indices, v.Loc(), proc)
		}
		if sig, ok := builtins[upper]; ok {
			return a.buildBuiltinCall(v.Name, v.Indices, v.Loc(), sig)
		}
		sym, ok := a.scope.Lookup(v.Name)
		if !ok || !sym.Type.IsArray() {
			return nil, errAt(v.Loc(), "%q is not an array, function, or known built-in", v.Name)
		}
		if len(v.Indices) != len(sym.Type.Dims) {
			return nil, errAt(v.Loc(), "%s expects %d index(es), got %d", v.Name, len(sym.Type.Dims), len(v.Indices))
		}
		idx := make([]ast.Expr, len(v.Indices))
		for i, e := range v.Indices {
			resolved, err := a.analyzeExpr(e)
			if err != nil {
				return nil, err
			}
			if !exprType(resolved).IsNumeric() {
				return nil, errAt(resolved.Loc(), "array index must be numeric")
			}
			idx[i] = resolved
		}
		v.Indices = idx
		v.Type = types.Elementary(sym.Type.Element)
		v.VarType = sym.Type
		v.Scope = a.scopeOf(sym)
		return v, nil
	}

	// A bare name with no parenthesised args is ambiguous between a
	// variable reference and a nullary call -- parsePrimary produces the
	// same Indices == nil shape for both "Foo" and "Foo()". Per spec
	// §4.3 item 3, an existing variable/param/local always wins; only on a
	// lookup miss do we consult a.procs/builtins and rewrite into a
	// zero-argument FnCall.
	if _, ok := a.scope.Lookup(v.Name); !ok {
		if proc, ok := a.procs[upper]; ok && proc.IsFunction {
			return a.buildCall(v.Name, nil, v.Loc(), proc)
		}
		if sig, ok := builtins[upper]; ok {
			return a.buildBuiltinCall(v.Name, nil, v.Loc(), sig)
		}
	}

	sym, err := a.lookupOrDeclare(v.Name, v.Loc())
	if err != nil {
		return nil, err
	}
	if sym.Type.IsArray() {
		return nil, errAt(v.Loc(), "%s is an array and must be indexed", v.Name)
	}
	v.Type = sym.Type
	v.VarType = sym.Type
	v.Scope = a.scopeOf(sym)
	return v, nil
}

// scopeOf reports where a resolved symbol's storage lives, relative to the
// analyzer's current walking position (module level or inside a proc body).
func (a *analyzer) scopeOf(sym *symbols.Symbol) ast.VarRefScope {
	if a.scope == a.globals {
		return ast.ScopeGlobal
	}
	if _, ok := a.scope.LookupLocal(sym.Name); ok {
		if sym.Kind == symbols.Arg {
			return ast.ScopeParam
		}
		return ast.ScopeProcLocal
	}
	return ast.ScopeGlobal
}

func (a *analyzer) buildCall(name string, rawArgs []ast.Expr, loc ast.Loc, proc *ast.FnProc) (ast.Expr, error) {
	if len(rawArgs) != len(proc.Params) {
		return nil, errAt(loc, "%s expects %d argument(s), got %d", name, len(proc.Params), len(rawArgs))
	}
	args := make([]ast.Expr, len(rawArgs))
	for i, raw := range rawArgs {
		resolved, err := a.analyzeExpr(raw)
		if err != nil {
			return nil, err
		}
		want := proc.Params[i].Type
		if proc.Params[i].HasType && !types.AreMatchingElementary(want, exprType(resolved)) {
			return nil, errAt(resolved.Loc(), "argument %d to %s: cannot pass %s where %s is expected", i+1, name, exprType(resolved), want)
		}
		args[i] = resolved
	}
	return ast.FnCall{Base: ast.WithLoc(loc), Name: name, Args: args, Type: proc.ReturnType}, nil
}

func (a *analyzer) buildBuiltinCall(name string, rawArgs []ast.Expr, loc ast.Loc, sig builtinSig) (ast.Expr, error) {
	if len(rawArgs) < sig.MinArgs || len(rawArgs) > sig.MaxArgs {
		return nil, errAt(loc, "%s expects between %d and %d argument(s), got %d", name, sig.MinArgs, sig.MaxArgs, len(rawArgs))
	}
	args := make([]ast.Expr, len(rawArgs))
	for i, raw := range rawArgs {
		resolved, err := a.analyzeExpr(raw)
		if err != nil {
			return nil, err
		}
		args[i] = resolved
	}
	return ast.FnCall{Base: ast.WithLoc(loc), Name: strings.ToUpper(name), Args: args, Type: types.Elementary(sig.Return)}, nil
}

// analyzeFnCall handles the FnCall nodes the parser itself produces directly
// (LBOUND/UBOUND, which are keywords rather than identifiers).
func (a *analyzer) analyzeFnCall(v ast.FnCall) (ast.Expr, error) {
	upper := strings.ToUpper(v.Name)
	sig, ok := builtins[upper]
	if !ok {
		return nil, errAt(v.Loc(), "unknown function %s", v.Name)
	}
	if upper == "LBOUND" || upper == "UBOUND" {
		return a.buildBoundCall(v)
	}
	return a.buildBuiltinCall(v.Name, v.Args, v.Loc(), sig)
}

// buildBoundCall resolves LBOUND/UBOUND specially: their first argument
// names an array by its bare identifier rather than an indexed element, so
// it must not go through analyzeVarRef's ordinary scalar-or-indexed path,
// which rejects a bare array reference outright.
func (a *analyzer) buildBoundCall(v ast.FnCall) (ast.Expr, error) {
	if len(v.Args) < 1 || len(v.Args) > 2 {
		return nil, errAt(v.Loc(), "%s expects 1 or 2 argument(s), got %d", v.Name, len(v.Args))
	}
	ref, ok := v.Args[0].(ast.VarRef)
	if !ok || len(ref.Indices) > 0 {
		return nil, errAt(v.Args[0].Loc(), "%s requires a plain array name", v.Name)
	}
	sym, ok := a.scope.Lookup(ref.Name)
	if !ok || !sym.Type.IsArray() {
		return nil, errAt(ref.Loc(), "%s requires an array, got %q", v.Name, ref.Name)
	}
	ref.Type = sym.Type
	ref.VarType = sym.Type
	ref.Scope = a.scopeOf(sym)
	args := []ast.Expr{ref}
	if len(v.Args) == 2 {
		dim, err := a.analyzeExpr(v.Args[1])
		if err != nil {
			return nil, err
		}
		if !exprType(dim).IsNumeric() {
			return nil, errAt(dim.Loc(), "%s dimension argument must be numeric", v.Name)
		}
		args = append(args, dim)
	}
	return ast.FnCall{Base: ast.WithLoc(v.Loc()), Name: strings.ToUpper(v.Name), Args: args, Type: types.Elementary(types.Integer)}, nil
}

func (a *analyzer) analyzeBinaryOp(v ast.BinaryOp) (ast.Expr, error) {
	left, err := a.analyzeExpr(v.Left)
	if err != nil {
		return nil, err
	}
	right, err := a.analyzeExpr(v.Right)
	if err != nil {
		return nil, err
	}
	lt, rt := exprType(left), exprType(right)
	v.Left, v.Right = left, right

	switch v.Op {
	case "=", "<>", "<", "<=", ">", ">=":
		if !types.AreMatchingElementary(lt, rt) {
			return nil, errAt(v.Loc(), "cannot compare %s with %s", lt, rt)
		}
		v.Type = types.Elementary(types.Integer)
	case "+":
		if lt.IsString() && rt.IsString() {
			v.Type = types.Elementary(types.String)
		} else if lt.IsNumeric() && rt.IsNumeric() {
			v.Type = types.Elementary(types.Coerce(lt.Kind, rt.Kind))
		} else {
			return nil, errAt(v.Loc(), "cannot add %s and %s", lt, rt)
		}
	case "-", "*", "\\", "MOD", "^":
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return nil, errAt(v.Loc(), "operator %s requires numeric operands, got %s and %s", v.Op, lt, rt)
		}
		v.Type = types.Elementary(types.Coerce(lt.Kind, rt.Kind))
	case "/":
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return nil, errAt(v.Loc(), "operator %s requires numeric operands, got %s and %s", v.Op, lt, rt)
		}
		// Single is a floor on / 's result: INTEGER/INTEGER still widens to
		// SINGLE rather than truncating, per spec.
		result := types.Coerce(lt.Kind, rt.Kind)
		if result == types.Integer || result == types.Long {
			result = types.Single
		}
		v.Type = types.Elementary(result)
	case "AND", "OR":
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return nil, errAt(v.Loc(), "operator %s requires numeric operands, got %s and %s", v.Op, lt, rt)
		}
		v.Type = types.Elementary(types.Integer)
	default:
		return nil, errAt(v.Loc(), "unknown operator %s", v.Op)
	}
	return v, nil
}

func (a *analyzer) analyzeUnaryOp(v ast.UnaryOp) (ast.Expr, error) {
	right, err := a.analyzeExpr(v.Right)
	if err != nil {
		return nil, err
	}
	v.Right = right
	rt := exprType(right)

	switch v.Op {
	case ast.Neg:
		if !rt.IsNumeric() {
			return nil, errAt(v.Loc(), "unary minus requires a numeric operand, got %s", rt)
		}
		v.Type = rt
	case ast.Not:
		if !rt.IsNumeric() {
			return nil, errAt(v.Loc(), "NOT requires a numeric operand, got %s", rt)
		}
		v.Type = types.Elementary(types.Integer)
	case ast.Parens:
		v.Type = rt
	}
	return v, nil
}
