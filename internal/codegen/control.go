package codegen

import (
	"strings"

	"github.com/gosuda/qbc/internal/ast"
	"github.com/gosuda/qbc/internal/types"
)

// genStmt lowers one statement, appending its flattened form to g.out.
func (g *generator) genStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case ast.Label:
		g.emit(CompiledStmt{Kind: KindLabel, Loc: s.Loc(), Label: s.Name})
		return nil
	case ast.Assign:
		g.emit(CompiledStmt{Kind: KindAssign, Loc: s.Loc(), Assign: &s})
		return nil
	case ast.Goto:
		g.emit(CompiledStmt{Kind: KindJump, Loc: s.Loc(), Label: s.Label})
		return nil
	case ast.Gosub:
		g.emit(CompiledStmt{Kind: KindGosub, Loc: s.Loc(), Label: s.DestLabel})
		return nil
	case ast.Return:
		g.emit(CompiledStmt{Kind: KindReturn, Loc: s.Loc(), ReturnLabel: s.DestLabel})
		return nil
	case ast.End:
		g.emit(CompiledStmt{Kind: KindEnd, Loc: s.Loc()})
		return nil
	case ast.Print:
		g.emit(CompiledStmt{Kind: KindPrint, Loc: s.Loc(), Print: &s})
		return nil
	case ast.Input:
		g.emit(CompiledStmt{Kind: KindInput, Loc: s.Loc(), Input: &s})
		return nil
	case ast.DimDecl:
		g.emit(CompiledStmt{Kind: KindDim, Loc: s.Loc(), Dim: &s})
		return nil
	case ast.ConstDecl:
		g.emit(CompiledStmt{Kind: KindConst, Loc: s.Loc(), Const: &s})
		return nil
	case ast.Data:
		return nil // folded into the module's DataPool by the parser
	case ast.Read:
		g.emit(CompiledStmt{Kind: KindRead, Loc: s.Loc(), Read: &s})
		return nil
	case ast.Restore:
		g.emit(CompiledStmt{Kind: KindRestore, Loc: s.Loc(), Restore: &s})
		return nil
	case ast.Swap:
		g.emit(CompiledStmt{Kind: KindSwap, Loc: s.Loc(), Swap: &s})
		return nil
	case ast.If:
		return g.genIf(s)
	case ast.CondLoop:
		return g.genCondLoop(s)
	case ast.UncondLoop:
		return g.genUncondLoop(s)
	case ast.For:
		return g.genFor(s)
	case ast.Next:
		return errAt(s.Loc(), "NEXT without a matching FOR")
	case ast.ExitFor:
		return g.genExit(s.Loc(), loopFor, "EXIT FOR outside a FOR loop")
	case ast.ExitLoop:
		return g.genExit(s.Loc(), loopDo, "EXIT DO outside a DO loop")
	default:
		return errAt(stmt.Loc(), "codegen: unsupported statement node %T", stmt)
	}
}

func (g *generator) genBlock(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

// genExit jumps to the end label of the nearest enclosing loop of the
// given kind, searching outward past loops of the other kind -- EXIT FOR
// inside a DO loop that is itself inside a FOR loop still targets that
// FOR, skipping the DO.
func (g *generator) genExit(loc ast.Loc, want loopKind, errMsg string) error {
	for i := len(g.loopStack) - 1; i >= 0; i-- {
		if g.loopStack[i].kind == want {
			g.emit(CompiledStmt{Kind: KindJump, Loc: loc, Label: g.loopStack[i].endLabel})
			return nil
		}
	}
	return errAt(loc, "%s", errMsg)
}

// genIf lowers:
//
//	IF c1 THEN a1 ELSEIF c2 THEN a2 ELSE a3 END IF
//
// into:
//
//	JumpIfFalse c1, L1; a1; Jump Lend
//	L1: JumpIfFalse c2, L2; a2; Jump Lend
//	L2: a3
//	Lend:
func (g *generator) genIf(s ast.If) error {
	end := g.newLabel()
	for _, arm := range s.Arms {
		next := g.newLabel()
		g.emit(CompiledStmt{Kind: KindJumpIfFalse, Loc: arm.Cond.Loc(), Cond: arm.Cond, Label: next})
		if err := g.genBlock(arm.Stmts); err != nil {
			return err
		}
		g.emit(CompiledStmt{Kind: KindJump, Loc: s.Loc(), Label: end})
		g.emit(CompiledStmt{Kind: KindLabel, Loc: s.Loc(), Label: next})
	}
	if err := g.genBlock(s.ElseStmts); err != nil {
		return err
	}
	g.emit(CompiledStmt{Kind: KindLabel, Loc: s.Loc(), Label: end})
	return nil
}

// genCondLoop lowers both DO WHILE/UNTIL ... LOOP (test before the body)
// and DO ... LOOP WHILE/UNTIL (test after the body). Negated (UNTIL)
// flips the sense of the test in place, by comparing Cond with zero rather
// than inverting the jump, so the same lowering shape serves both. (A
// bitwise NOT would leave a nonzero condition other than -1 truthy.)
func (g *generator) genCondLoop(s ast.CondLoop) error {
	top := g.newLabel()
	end := g.newLabel()
	g.loopStack = append(g.loopStack, loopFrame{kind: loopDo, endLabel: end})
	defer func() { g.loopStack = g.loopStack[:len(g.loopStack)-1] }()

	cond := s.Cond
	if s.Negated {
		zero := ast.Literal{Base: ast.WithLoc(s.Cond.Loc()), Num: 0, Type: types.Elementary(types.Single)}
		cond = ast.BinaryOp{Base: ast.WithLoc(s.Cond.Loc()), Op: "=", Left: cond, Right: zero, Type: types.Elementary(types.Integer)}
	}

	g.emit(CompiledStmt{Kind: KindLabel, Loc: s.Loc(), Label: top})
	if s.Structure == ast.CondBeforeStmts {
		g.emit(CompiledStmt{Kind: KindJumpIfFalse, Loc: s.Cond.Loc(), Cond: cond, Label: end})
		if err := g.genBlock(s.Stmts); err != nil {
			return err
		}
		g.emit(CompiledStmt{Kind: KindJump, Loc: s.Loc(), Label: top})
	} else {
		if err := g.genBlock(s.Stmts); err != nil {
			return err
		}
		g.emit(CompiledStmt{Kind: KindJumpIfFalse, Loc: s.Cond.Loc(), Cond: cond, Label: end})
		g.emit(CompiledStmt{Kind: KindJump, Loc: s.Loc(), Label: top})
	}
	g.emit(CompiledStmt{Kind: KindLabel, Loc: s.Loc(), Label: end})
	return nil
}

// genUncondLoop lowers a bare DO ... LOOP, which only terminates via an
// EXIT DO somewhere in its body (the parser rejects any WHILE/UNTIL on
// either end from reaching this node).
func (g *generator) genUncondLoop(s ast.UncondLoop) error {
	top := g.newLabel()
	end := g.newLabel()
	g.loopStack = append(g.loopStack, loopFrame{kind: loopDo, endLabel: end})
	defer func() { g.loopStack = g.loopStack[:len(g.loopStack)-1] }()

	g.emit(CompiledStmt{Kind: KindLabel, Loc: s.Loc(), Label: top})
	if err := g.genBlock(s.Stmts); err != nil {
		return err
	}
	g.emit(CompiledStmt{Kind: KindJump, Loc: s.Loc(), Label: top})
	g.emit(CompiledStmt{Kind: KindLabel, Loc: s.Loc(), Label: end})
	return nil
}

// genFor lowers FOR counter = start TO end STEP step ... NEXT into an
// init, a direction-aware test, the body, and an increment, wired as a
// while-loop. The test is built to work whether step's sign is known at
// compile time or only at runtime:
//
//	(step >= 0 AND counter <= end) OR (step < 0 AND counter >= end)
//
// which is just as cheap to evaluate as a sign check and needs no special
// runtime support beyond ordinary relational/boolean operators.
func (g *generator) genFor(s ast.For) error {
	if s.NextName != "" {
		ref, ok := s.Counter.(ast.VarRef)
		if !ok || !strings.EqualFold(s.NextName, ref.Name) {
			return errAt(s.Loc(), "NEXT %s does not match FOR counter", s.NextName)
		}
	}
	counterType := exprType(s.Counter)
	step := s.Step
	if step == nil {
		step = ast.Literal{Base: ast.WithLoc(s.Loc()), Num: 1, Type: types.Elementary(types.Single)}
	}

	top := g.newLabel()
	end := g.newLabel()

	g.emit(CompiledStmt{
		Kind: KindAssign, Loc: s.Loc(),
		Assign: &ast.Assign{Base: ast.WithLoc(s.Loc()), Target: s.Counter, Value: s.Start},
	})

	g.loopStack = append(g.loopStack, loopFrame{kind: loopFor, endLabel: end})
	defer func() { g.loopStack = g.loopStack[:len(g.loopStack)-1] }()

	g.emit(CompiledStmt{Kind: KindLabel, Loc: s.Loc(), Label: top})

	zero := ast.Literal{Base: ast.WithLoc(s.Loc()), Num: 0, Type: types.Elementary(types.Single)}
	intT := types.Elementary(types.Integer)
	stepNonNeg := ast.BinaryOp{Base: ast.WithLoc(s.Loc()), Op: ">=", Left: step, Right: zero, Type: intT}
	stepNeg := ast.BinaryOp{Base: ast.WithLoc(s.Loc()), Op: "<", Left: step, Right: zero, Type: intT}
	risingOK := ast.BinaryOp{Base: ast.WithLoc(s.Loc()), Op: "<=", Left: s.Counter, Right: s.End, Type: intT}
	fallingOK := ast.BinaryOp{Base: ast.WithLoc(s.Loc()), Op: ">=", Left: s.Counter, Right: s.End, Type: intT}
	rising := ast.BinaryOp{Base: ast.WithLoc(s.Loc()), Op: "AND", Left: stepNonNeg, Right: risingOK, Type: intT}
	falling := ast.BinaryOp{Base: ast.WithLoc(s.Loc()), Op: "AND", Left: stepNeg, Right: fallingOK, Type: intT}
	test := ast.BinaryOp{Base: ast.WithLoc(s.Loc()), Op: "OR", Left: rising, Right: falling, Type: intT}

	g.emit(CompiledStmt{Kind: KindJumpIfFalse, Loc: s.Loc(), Cond: test, Label: end})

	if err := g.genBlock(s.Stmts); err != nil {
		return err
	}

	incremented := ast.BinaryOp{Base: ast.WithLoc(s.Loc()), Op: "+", Left: s.Counter, Right: step, Type: counterType}
	g.emit(CompiledStmt{
		Kind: KindAssign, Loc: s.Loc(),
		Assign: &ast.Assign{Base: ast.WithLoc(s.Loc()), Target: s.Counter, Value: incremented},
	})
	g.emit(CompiledStmt{Kind: KindJump, Loc: s.Loc(), Label: top})
	g.emit(CompiledStmt{Kind: KindLabel, Loc: s.Loc(), Label: end})
	return nil
}

func exprType(e ast.Expr) types.Type {
	switch v := e.(type) {
	case ast.Literal:
		return v.Type
	case ast.VarRef:
		return v.Type
	case ast.FnCall:
		return v.Type
	case ast.BinaryOp:
		return v.Type
	case ast.UnaryOp:
		return v.Type
	default:
		return types.Type{}
	}
}
