package parser

import (
	"testing"

	"github.com/gosuda/qbc/internal/ast"
	"github.com/gosuda/qbc/internal/lexer"
)

func parse(t *testing.T, src string) *ast.Module {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	mod, err := Parse(toks)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return mod
}

func TestParseAssign(t *testing.T) {
	mod := parse(t, "x = 1 + 2\n")
	if len(mod.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(mod.Stmts))
	}
	assign, ok := mod.Stmts[0].(ast.Assign)
	if !ok {
		t.Fatalf("expected Assign, got %T", mod.Stmts[0])
	}
	if _, ok := assign.Value.(ast.BinaryOp); !ok {
		t.Fatalf("expected BinaryOp value, got %T", assign.Value)
	}
}

func TestParseSingleLineIf(t *testing.T) {
	mod := parse(t, "IF x > 0 THEN y = 1 ELSE y = 2\n")
	ifStmt, ok := mod.Stmts[0].(ast.If)
	if !ok {
		t.Fatalf("expected If, got %T", mod.Stmts[0])
	}
	if len(ifStmt.Arms) != 1 || len(ifStmt.Arms[0].Stmts) != 1 {
		t.Fatalf("expected 1 arm with 1 statement, got %+v", ifStmt.Arms)
	}
	if len(ifStmt.ElseStmts) != 1 {
		t.Fatalf("expected 1 else statement, got %d", len(ifStmt.ElseStmts))
	}
}

func TestParseBlockIfElseIf(t *testing.T) {
	src := `IF a = 1 THEN
  x = 1
ELSEIF a = 2 THEN
  x = 2
ELSE
  x = 3
END IF
`
	mod := parse(t, src)
	ifStmt, ok := mod.Stmts[0].(ast.If)
	if !ok {
		t.Fatalf("expected If, got %T", mod.Stmts[0])
	}
	if len(ifStmt.Arms) != 2 {
		t.Fatalf("expected 2 arms, got %d", len(ifStmt.Arms))
	}
	if len(ifStmt.ElseStmts) != 1 {
		t.Fatalf("expected else branch, got %d stmts", len(ifStmt.ElseStmts))
	}
}

func TestParseDoLoopWhile(t *testing.T) {
	mod := parse(t, "DO WHILE x < 10\n  x = x + 1\nLOOP\n")
	loop, ok := mod.Stmts[0].(ast.CondLoop)
	if !ok {
		t.Fatalf("expected CondLoop, got %T", mod.Stmts[0])
	}
	if loop.Structure != ast.CondBeforeStmts || loop.Negated {
		t.Fatalf("unexpected loop shape: %+v", loop)
	}
}

func TestParseDoLoopUntilTrailing(t *testing.T) {
	mod := parse(t, "DO\n  x = x + 1\nLOOP UNTIL x >= 10\n")
	loop, ok := mod.Stmts[0].(ast.CondLoop)
	if !ok {
		t.Fatalf("expected CondLoop, got %T", mod.Stmts[0])
	}
	if loop.Structure != ast.CondAfterStmts || !loop.Negated {
		t.Fatalf("unexpected loop shape: %+v", loop)
	}
}

func TestParseForNext(t *testing.T) {
	mod := parse(t, "FOR i = 1 TO 10 STEP 2\n  PRINT i\nNEXT i\n")
	forStmt, ok := mod.Stmts[0].(ast.For)
	if !ok {
		t.Fatalf("expected For, got %T", mod.Stmts[0])
	}
	if forStmt.Step == nil {
		t.Fatal("expected STEP expression")
	}
	if forStmt.NextName != "i" {
		t.Fatalf("expected NextName 'i', got %q", forStmt.NextName)
	}
}

func TestParseNestedForSharedNext(t *testing.T) {
	mod := parse(t, "FOR i = 1 TO 3\nFOR j = 1 TO 3\nPRINT i\nNEXT j, i\n")
	outer, ok := mod.Stmts[0].(ast.For)
	if !ok {
		t.Fatalf("expected outer For, got %T", mod.Stmts[0])
	}
	if outer.NextName != "i" {
		t.Fatalf("expected outer NextName 'i', got %q", outer.NextName)
	}
	inner, ok := outer.Stmts[0].(ast.For)
	if !ok {
		t.Fatalf("expected inner For, got %T", outer.Stmts[0])
	}
	if inner.NextName != "j" {
		t.Fatalf("expected inner NextName 'j', got %q", inner.NextName)
	}
}

func TestParseGotoGosubReturn(t *testing.T) {
	mod := parse(t, "GOTO done\nGOSUB sub1\nRETURN\ndone:\n")
	if _, ok := mod.Stmts[0].(ast.Goto); !ok {
		t.Fatalf("expected Goto, got %T", mod.Stmts[0])
	}
	if _, ok := mod.Stmts[1].(ast.Gosub); !ok {
		t.Fatalf("expected Gosub, got %T", mod.Stmts[1])
	}
	if _, ok := mod.Stmts[2].(ast.Return); !ok {
		t.Fatalf("expected Return, got %T", mod.Stmts[2])
	}
	if lbl, ok := mod.Stmts[3].(ast.Label); !ok || lbl.Name != "done" {
		t.Fatalf("expected Label 'done', got %+v", mod.Stmts[3])
	}
}

func TestParsePrintPunctuation(t *testing.T) {
	mod := parse(t, `PRINT "x="; x, y`)
	p, ok := mod.Stmts[0].(ast.Print)
	if !ok {
		t.Fatalf("expected Print, got %T", mod.Stmts[0])
	}
	if len(p.Args) != 5 {
		t.Fatalf("expected 5 print items, got %d: %+v", len(p.Args), p.Args)
	}
	if p.Args[1].Kind != ast.PrintSemicolon || p.Args[3].Kind != ast.PrintComma {
		t.Fatalf("unexpected punctuation placement: %+v", p.Args)
	}
}

func TestParseInputWithPrompt(t *testing.T) {
	mod := parse(t, `INPUT "Enter name: ", n$`)
	in, ok := mod.Stmts[0].(ast.Input)
	if !ok {
		t.Fatalf("expected Input, got %T", mod.Stmts[0])
	}
	if in.Prompt != "Enter name: " {
		t.Fatalf("expected prompt captured, got %q", in.Prompt)
	}
	if len(in.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(in.Targets))
	}
}

func TestParseDimArrayWithType(t *testing.T) {
	mod := parse(t, "DIM scores(1 TO 10) AS INTEGER\n")
	dim, ok := mod.Stmts[0].(ast.DimDecl)
	if !ok {
		t.Fatalf("expected DimDecl, got %T", mod.Stmts[0])
	}
	if len(dim.Dims) != 1 || dim.Dims[0].Lower == nil {
		t.Fatalf("expected explicit lower bound, got %+v", dim.Dims)
	}
	if !dim.HasType {
		t.Fatal("expected HasType true for explicit AS clause")
	}
}

func TestParseDataReadRestore(t *testing.T) {
	mod := parse(t, "DATA 1, 2, \"three\"\nREAD a, b, c$\nRESTORE\n")
	if len(mod.DataPool) != 3 {
		t.Fatalf("expected 3 pooled literals, got %d", len(mod.DataPool))
	}
	if _, ok := mod.Stmts[0].(ast.Read); !ok {
		t.Fatalf("expected Read, got %T", mod.Stmts[0])
	}
	if _, ok := mod.Stmts[1].(ast.Restore); !ok {
		t.Fatalf("expected Restore, got %T", mod.Stmts[1])
	}
}

func TestParseDataNegativeLiteral(t *testing.T) {
	// DATA's literals are parsed directly from tokens rather than through
	// the expression grammar, so a leading SUB must still be handled here
	// now that the lexer never absorbs a sign into NUMBER_LIT itself.
	mod := parse(t, "DATA -5, 3\n")
	if len(mod.DataPool) != 2 {
		t.Fatalf("expected 2 pooled literals, got %d", len(mod.DataPool))
	}
	if mod.DataPool[0].Num != -5 {
		t.Fatalf("expected first literal -5, got %v", mod.DataPool[0].Num)
	}
}

func TestParseSwap(t *testing.T) {
	mod := parse(t, "SWAP a, b\n")
	swap, ok := mod.Stmts[0].(ast.Swap)
	if !ok {
		t.Fatalf("expected Swap, got %T", mod.Stmts[0])
	}
	if _, ok := swap.A.(ast.VarRef); !ok {
		t.Fatal("expected VarRef operands")
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	// "2 + 3 * 4" should parse as 2 + (3 * 4).
	mod := parse(t, "x = 2 + 3 * 4\n")
	assign := mod.Stmts[0].(ast.Assign)
	top, ok := assign.Value.(ast.BinaryOp)
	if !ok || top.Op != "+" {
		t.Fatalf("expected top-level +, got %+v", assign.Value)
	}
	right, ok := top.Right.(ast.BinaryOp)
	if !ok || right.Op != "*" {
		t.Fatalf("expected right operand to be *, got %+v", top.Right)
	}
}

func TestParseUnaryMinusVsExponent(t *testing.T) {
	// "-2 ^ 2" should parse as -(2 ^ 2).
	mod := parse(t, "x = -2 ^ 2\n")
	assign := mod.Stmts[0].(ast.Assign)
	neg, ok := assign.Value.(ast.UnaryOp)
	if !ok || neg.Op != ast.Neg {
		t.Fatalf("expected top-level unary minus, got %+v", assign.Value)
	}
	if _, ok := neg.Right.(ast.BinaryOp); !ok {
		t.Fatalf("expected ^ as the negated operand, got %+v", neg.Right)
	}
}

func TestParseFunctionDecl(t *testing.T) {
	mod := parse(t, "FUNCTION Add(a AS INTEGER, b AS INTEGER) AS INTEGER\n  Add = a + b\nEND FUNCTION\n")
	if len(mod.Procs) != 1 {
		t.Fatalf("expected 1 proc, got %d", len(mod.Procs))
	}
	proc := mod.Procs[0]
	if proc.Name != "Add" || len(proc.Params) != 2 {
		t.Fatalf("unexpected proc shape: %+v", proc)
	}
}

func TestParseUnexpectedTokenError(t *testing.T) {
	toks, err := lexer.Tokenize("x = * 2\n")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(toks); err == nil {
		t.Fatal("expected a parse error for a missing left operand")
	}
}
