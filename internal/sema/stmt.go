package sema

import (
	"github.com/gosuda/qbc/internal/ast"
	"github.com/gosuda/qbc/internal/types"
)

// analyzeStmt resolves and type-checks one statement, returning the
// (possibly rewritten) statement in its place.
func (a *analyzer) analyzeStmt(stmt ast.Stmt) (ast.Stmt, error) {
	switch s := stmt.(type) {
	case ast.Label, ast.Goto, ast.Gosub, ast.Return, ast.ExitLoop, ast.ExitFor, ast.End, ast.Restore:
		return stmt, nil
	case ast.Assign:
		return a.analyzeAssign(s)
	case ast.If:
		return a.analyzeIf(s)
	case ast.CondLoop:
		return a.analyzeCondLoop(s)
	case ast.UncondLoop:
		return a.analyzeBlock(s)
	case ast.For:
		return a.analyzeFor(s)
	case ast.Next:
		return stmt, nil
	case ast.Print:
		return a.analyzePrint(s)
	case ast.Input:
		return a.analyzeInput(s)
	case ast.DimDecl:
		return a.analyzeDim(s)
	case ast.ConstDecl:
		return a.analyzeConstStmt(s)
	case ast.Data:
		return stmt, nil
	case ast.Read:
		return a.analyzeRead(s)
	case ast.Swap:
		return a.analyzeSwap(s)
	default:
		return nil, errAt(stmt.Loc(), "unsupported statement node %T", stmt)
	}
}

func (a *analyzer) analyzeStmts(stmts []ast.Stmt) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, len(stmts))
	for i, s := range stmts {
		resolved, err := a.analyzeStmt(s)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

func (a *analyzer) analyzeAssign(s ast.Assign) (ast.Stmt, error) {
	target, err := a.analyzeExpr(s.Target)
	if err != nil {
		return nil, err
	}
	value, err := a.analyzeExpr(s.Value)
	if err != nil {
		return nil, err
	}
	tt, vt := exprType(target), exprType(value)
	if !types.AreMatchingElementary(tt, vt) {
		return nil, errAt(s.Loc(), "cannot assign %s to %s", vt, tt)
	}
	s.Target, s.Value = target, value
	return s, nil
}

func (a *analyzer) analyzeIf(s ast.If) (ast.Stmt, error) {
	for i, arm := range s.Arms {
		cond, err := a.analyzeExpr(arm.Cond)
		if err != nil {
			return nil, err
		}
		if !exprType(cond).IsNumeric() {
			return nil, errAt(cond.Loc(), "IF condition must be numeric, got %s", exprType(cond))
		}
		body, err := a.analyzeStmts(arm.Stmts)
		if err != nil {
			return nil, err
		}
		s.Arms[i] = ast.IfArm{Cond: cond, Stmts: body}
	}
	if s.ElseStmts != nil {
		body, err := a.analyzeStmts(s.ElseStmts)
		if err != nil {
			return nil, err
		}
		s.ElseStmts = body
	}
	return s, nil
}

func (a *analyzer) analyzeCondLoop(s ast.CondLoop) (ast.Stmt, error) {
	cond, err := a.analyzeExpr(s.Cond)
	if err != nil {
		return nil, err
	}
	if !exprType(cond).IsNumeric() {
		return nil, errAt(cond.Loc(), "loop condition must be numeric, got %s", exprType(cond))
	}
	s.Cond = cond
	body, err := a.analyzeStmts(s.Stmts)
	if err != nil {
		return nil, err
	}
	s.Stmts = body
	return s, nil
}

func (a *analyzer) analyzeBlock(s ast.UncondLoop) (ast.Stmt, error) {
	body, err := a.analyzeStmts(s.Stmts)
	if err != nil {
		return nil, err
	}
	s.Stmts = body
	return s, nil
}

func (a *analyzer) analyzeFor(s ast.For) (ast.Stmt, error) {
	counter, err := a.analyzeExpr(s.Counter)
	if err != nil {
		return nil, err
	}
	_, ok := counter.(ast.VarRef)
	if !ok || !exprType(counter).IsNumeric() {
		return nil, errAt(s.Loc(), "FOR counter must be a numeric variable")
	}
	// s.NextName (if any) is left unvalidated here -- matching it against the
	// counter name is internal/codegen's job, in genFor, since a mismatch is
	// a CodegenError, not a SemanticError.
	start, err := a.analyzeExpr(s.Start)
	if err != nil {
		return nil, err
	}
	end, err := a.analyzeExpr(s.End)
	if err != nil {
		return nil, err
	}
	if !exprType(start).IsNumeric() || !exprType(end).IsNumeric() {
		return nil, errAt(s.Loc(), "FOR bounds must be numeric")
	}
	s.Counter, s.Start, s.End = counter, start, end
	if s.Step != nil {
		step, err := a.analyzeExpr(s.Step)
		if err != nil {
			return nil, err
		}
		if !exprType(step).IsNumeric() {
			return nil, errAt(s.Loc(), "FOR STEP must be numeric")
		}
		s.Step = step
	}
	body, err := a.analyzeStmts(s.Stmts)
	if err != nil {
		return nil, err
	}
	s.Stmts = body
	return s, nil
}

func (a *analyzer) analyzePrint(s ast.Print) (ast.Stmt, error) {
	for i, item := range s.Args {
		if item.Kind != ast.PrintValue {
			continue
		}
		resolved, err := a.analyzeExpr(item.Expr)
		if err != nil {
			return nil, err
		}
		s.Args[i].Expr = resolved
	}
	return s, nil
}

func (a *analyzer) analyzeInput(s ast.Input) (ast.Stmt, error) {
	targets := make([]ast.Expr, len(s.Targets))
	for i, t := range s.Targets {
		resolved, err := a.analyzeExpr(t)
		if err != nil {
			return nil, err
		}
		if _, ok := resolved.(ast.VarRef); !ok {
			return nil, errAt(t.Loc(), "INPUT target must be a variable")
		}
		targets[i] = resolved
	}
	s.Targets = targets
	return s, nil
}

func (a *analyzer) analyzeDim(s ast.DimDecl) (ast.Stmt, error) {
	for i, dim := range s.Dims {
		if dim.Lower != nil {
			lower, err := a.analyzeExpr(dim.Lower)
			if err != nil {
				return nil, err
			}
			if !exprType(lower).IsNumeric() {
				return nil, errAt(lower.Loc(), "array bound must be numeric")
			}
			s.Dims[i].Lower = lower
		}
		upper, err := a.analyzeExpr(dim.Upper)
		if err != nil {
			return nil, err
		}
		if !exprType(upper).IsNumeric() {
			return nil, errAt(upper.Loc(), "array bound must be numeric")
		}
		s.Dims[i].Upper = upper
	}
	if _, ok := a.scope.LookupLocal(s.Name); !ok {
		if err := a.defineDim(s, a.scope); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (a *analyzer) analyzeConstStmt(s ast.ConstDecl) (ast.Stmt, error) {
	if _, ok := a.scope.LookupLocal(s.Name); !ok {
		if err := a.defineConst(s, a.scope); err != nil {
			return nil, err
		}
	}
	value, err := a.analyzeExpr(s.Value)
	if err != nil {
		return nil, err
	}
	s.Value = value
	return s, nil
}

func (a *analyzer) analyzeRead(s ast.Read) (ast.Stmt, error) {
	targets := make([]ast.Expr, len(s.Targets))
	for i, t := range s.Targets {
		resolved, err := a.analyzeExpr(t)
		if err != nil {
			return nil, err
		}
		if _, ok := resolved.(ast.VarRef); !ok {
			return nil, errAt(t.Loc(), "READ target must be a variable")
		}
		targets[i] = resolved
	}
	s.Targets = targets
	return s, nil
}

func (a *analyzer) analyzeSwap(s ast.Swap) (ast.Stmt, error) {
	a1, err := a.analyzeExpr(s.A)
	if err != nil {
		return nil, err
	}
	b1, err := a.analyzeExpr(s.B)
	if err != nil {
		return nil, err
	}
	if _, ok := a1.(ast.VarRef); !ok {
		return nil, errAt(s.A.Loc(), "SWAP operand must be a variable")
	}
	if _, ok := b1.(ast.VarRef); !ok {
		return nil, errAt(s.B.Loc(), "SWAP operand must be a variable")
	}
	if !types.AreMatchingElementary(exprType(a1), exprType(b1)) {
		return nil, errAt(s.Loc(), "SWAP operands must be the same kind of value")
	}
	s.A, s.B = a1, b1
	return s, nil
}
