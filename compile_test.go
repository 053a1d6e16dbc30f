package qbc_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gosuda/qbc"
)

func TestCompileAndRunBasicFlow(t *testing.T) {
	src := `a = 10
FUNCTION hello(x AS INTEGER) AS INTEGER
  hello = x + 1
END FUNCTION
IF hello(a) = 11 THEN
  PRINT "ok"
ELSE
  PRINT "ng"
END IF
`
	var buf bytes.Buffer
	if err := qbc.Run(src, qbc.Options{SourceFile: "main.bas"}, &buf, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := buf.String(); got != "ok\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestCompileReportsLexError(t *testing.T) {
	_, err := qbc.Compile("a = @\n", qbc.Options{})
	if err == nil {
		t.Fatal("expected a lex error, got nil")
	}
}

func TestCompileReportsParseError(t *testing.T) {
	_, err := qbc.Compile("IF a = 1 THEN\nPRINT a\n", qbc.Options{})
	if err == nil {
		t.Fatal("expected a parse error for an unterminated IF, got nil")
	}
}

func TestCompileReportsSemanticError(t *testing.T) {
	_, err := qbc.Compile("PRINT undefinedFn(1)\n", qbc.Options{})
	if err == nil {
		t.Fatal("expected a semantic error for an unknown function, got nil")
	}
}

func TestCompileRecordsSourceFile(t *testing.T) {
	cm, err := qbc.Compile("PRINT 1\n", qbc.Options{SourceFile: "demo.bas"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if cm.SourceFile != "demo.bas" {
		t.Fatalf("SourceFile = %q, want %q", cm.SourceFile, "demo.bas")
	}
}

func TestCompiledModuleCodeIsJSON(t *testing.T) {
	cm, err := qbc.Compile("PRINT 1\n", qbc.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	code, err := cm.Code()
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(code), "{") {
		t.Fatalf("Code() does not look like JSON: %q", code)
	}
}
