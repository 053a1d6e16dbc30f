package eruntime

import (
	"bytes"
	"testing"

	"github.com/gosuda/qbc/internal/codegen"
	"github.com/gosuda/qbc/internal/lexer"
	"github.com/gosuda/qbc/internal/parser"
	"github.com/gosuda/qbc/internal/sema"
)

func compileModule(t *testing.T, src string) *codegen.CompiledModule {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	mod, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	analyzed, err := sema.Analyze(mod)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	cm, err := codegen.Generate(analyzed.Module)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return cm
}

func runModule(t *testing.T, src string, in InputProvider) string {
	t.Helper()
	cm := compileModule(t, src)
	var buf bytes.Buffer
	ex := NewExecutor(cm, &buf, in)
	if err := ex.Run(); err != nil {
		t.Fatalf("Run(%q): %v", src, err)
	}
	return buf.String()
}

func TestPrintArithmetic(t *testing.T) {
	out := runModule(t, "PRINT 1 + 2\n", nil)
	if out != " 3 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestIfElseBranches(t *testing.T) {
	out := runModule(t, "x = 5\nIF x > 10 THEN\n  PRINT 1\nELSE\n  PRINT 2\nEND IF\n", nil)
	if out != " 2 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestForLoopSum(t *testing.T) {
	out := runModule(t, "s = 0\nFOR i = 1 TO 5\n  s = s + i\nNEXT i\nPRINT s\n", nil)
	if out != " 15 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestForLoopNegativeStep(t *testing.T) {
	out := runModule(t, "FOR i = 3 TO 1 STEP -1\n  PRINT i\nNEXT i\n", nil)
	if out != " 3 \n 2 \n 1 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDoWhileLoop(t *testing.T) {
	out := runModule(t, "x = 0\nDO WHILE x < 3\n  x = x + 1\nLOOP\nPRINT x\n", nil)
	if out != " 3 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExitForStopsLoopEarly(t *testing.T) {
	out := runModule(t, "FOR i = 1 TO 10\n  IF i = 3 THEN EXIT FOR\n  PRINT i\nNEXT i\nPRINT 99\n", nil)
	if out != " 1 \n 2 \n 99 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestGotoLabel(t *testing.T) {
	out := runModule(t, "x = 0\ntop:\nx = x + 1\nIF x < 3 THEN GOTO top\nPRINT x\n", nil)
	if out != " 3 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestGosubReturn(t *testing.T) {
	out := runModule(t, "GOSUB addone\nGOSUB addone\nPRINT x\nEND\naddone:\nx = x + 1\nRETURN\n", nil)
	if out != " 2 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFunctionCallReturnsValue(t *testing.T) {
	src := "y = Square(4)\nPRINT y\nEND\nFUNCTION Square(n AS INTEGER) AS INTEGER\n  Square = n * n\nEND FUNCTION\n"
	out := runModule(t, src, nil)
	if out != " 16 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestNullaryFunctionCallExecutes(t *testing.T) {
	src := "PRINT Answer\nEND\nFUNCTION Answer() AS INTEGER\n  Answer = 42\nEND FUNCTION\n"
	out := runModule(t, src, nil)
	if out != " 42 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestArrayDeclareAssignIndex(t *testing.T) {
	src := "DIM a(1 TO 3) AS INTEGER\na(2) = 7\nPRINT a(2)\n"
	out := runModule(t, src, nil)
	if out != " 7 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLBoundUBound(t *testing.T) {
	src := "DIM a(2 TO 5) AS INTEGER\nPRINT LBOUND(a)\nPRINT UBOUND(a)\n"
	out := runModule(t, src, nil)
	if out != " 2 \n 5 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestReadDataRestore(t *testing.T) {
	src := "DATA 1, 2, 3\nREAD a, b\nPRINT a\nPRINT b\nRESTORE\nREAD c\nPRINT c\n"
	out := runModule(t, src, nil)
	if out != " 1 \n 2 \n 1 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestSwapValues(t *testing.T) {
	src := "a = 1\nb = 2\nSWAP a, b\nPRINT a\nPRINT b\n"
	out := runModule(t, src, nil)
	if out != " 2 \n 1 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestStringConcatAndBuiltins(t *testing.T) {
	src := `s$ = "Hello" + " " + "World"
PRINT s$
PRINT LEN(s$)
PRINT LEFT$(s$, 5)
`
	out := runModule(t, src, nil)
	want := "Hello World\n 11 \nHello\n"
	if out != want {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestInputAssignsNumericValue(t *testing.T) {
	out := runModule(t, "INPUT n\nPRINT n * 2\n", QueuedInput("21"))
	if out != "?  42 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestInputRedoFromStartOnBadNumeric(t *testing.T) {
	out := runModule(t, "INPUT n\nPRINT n\n", QueuedInput("abc", "5"))
	if out != "? Redo from start\n?  5 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestBitwiseAndOr(t *testing.T) {
	out := runModule(t, "PRINT 6 AND 3\nPRINT 6 OR 1\n", nil)
	if out != " 2 \n 7 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDivisionOfIntegersYieldsFractionalSingle(t *testing.T) {
	out := runModule(t, "x% = 5\ny% = 2\nPRINT x% / y%\n", nil)
	if out != " 2.5 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestIntegerDivisionAndMod(t *testing.T) {
	out := runModule(t, "PRINT 7 \\ 2\nPRINT 7 MOD 2\n", nil)
	if out != " 3 \n 1 \n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRequestStopEndsRunWithError(t *testing.T) {
	cm := compileModule(t, "top:\nx = x + 1\nGOTO top\n")
	var buf bytes.Buffer
	ex := NewExecutor(cm, &buf, nil)
	ex.RequestStop()
	if err := ex.Run(); err != ErrStopped {
		t.Fatalf("Run() = %v, want ErrStopped", err)
	}
}
