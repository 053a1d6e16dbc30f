package eruntime

import (
	"bytes"
	"testing"

	"github.com/gosuda/qbc/internal/codegen"
	"github.com/gosuda/qbc/internal/lexer"
	"github.com/gosuda/qbc/internal/parser"
	"github.com/gosuda/qbc/internal/sema"
)

func mustCompile(t *testing.T, src string) *codegen.CompiledModule {
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

func TestStepperStepsOneInstructionAtATime(t *testing.T) {
	cm := mustCompile(t, "s = 0\nFOR i = 1 TO 3\n  s = s + i\nNEXT i\nPRINT s\n")
	var buf bytes.Buffer
	ex := NewExecutor(cm, &buf, nil)
	st := NewStepper(ex)

	steps := 0
	for !st.Finished() {
		if !st.Step() {
			break
		}
		steps++
		if steps > 1000 {
			t.Fatal("stepper did not terminate")
		}
	}
	if err := st.Err(); err != nil {
		t.Fatalf("Stepper ended with error: %v", err)
	}
	if buf.String() != " 6 \n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
	if steps == 0 {
		t.Fatal("expected at least one step")
	}
}

func TestStepperPeekMatchesNextInstruction(t *testing.T) {
	cm := mustCompile(t, "x = 1\nPRINT x\n")
	var buf bytes.Buffer
	ex := NewExecutor(cm, &buf, nil)
	st := NewStepper(ex)

	stmt, ok := st.Peek()
	if !ok {
		t.Fatal("expected a first instruction")
	}
	if stmt.Kind != codegen.KindAssign {
		t.Fatalf("first instruction kind = %v, want KindAssign", stmt.Kind)
	}
	if !st.Step() {
		t.Fatalf("Step() returned false early: %v", st.Err())
	}
	stmt, ok = st.Peek()
	if !ok {
		t.Fatal("expected a second instruction")
	}
	if stmt.Kind != codegen.KindPrint {
		t.Fatalf("second instruction kind = %v, want KindPrint", stmt.Kind)
	}
}

func TestStepperGlobalsReflectsAssignments(t *testing.T) {
	cm := mustCompile(t, "x = 42\n")
	var buf bytes.Buffer
	ex := NewExecutor(cm, &buf, nil)
	st := NewStepper(ex)
	for !st.Finished() {
		if !st.Step() {
			break
		}
	}
	globals := st.Globals()
	v, ok := globals["X"]
	if !ok {
		t.Fatal("expected global X to be set")
	}
	if v.Int64() != 42 {
		t.Fatalf("X = %v, want 42", v.Int64())
	}
}

func TestStepperReportsRuntimeError(t *testing.T) {
	cm := mustCompile(t, "PRINT 1 / 0\n")
	var buf bytes.Buffer
	ex := NewExecutor(cm, &buf, nil)
	st := NewStepper(ex)
	for !st.Finished() {
		if !st.Step() {
			break
		}
	}
	if st.Err() == nil {
		t.Fatal("expected a division-by-zero runtime error")
	}
}
