package lexer

import (
	"testing"

	"github.com/gosuda/qbc/internal/token"
)

func kinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func assertKinds(t *testing.T, src string, want ...token.Kind) {
	t.Helper()
	want = append(want, token.EOF)
	got := kinds(t, src)
	if len(got) != len(want) {
		t.Fatalf("Tokenize(%q) = %v, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize(%q)[%d] = %v, want %v (full: %v)", src, i, got[i], want[i], got)
		}
	}
}

func TestKeywordFolding(t *testing.T) {
	assertKinds(t, "PRINT", token.PRINT)
	assertKinds(t, "print", token.PRINT)
	assertKinds(t, "PrInT", token.PRINT)
	assertKinds(t, "printer", token.IDENTIFIER)
}

func TestIdentifierSigils(t *testing.T) {
	toks, err := Tokenize("A$")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != token.IDENTIFIER || toks[0].Lit != "A$" {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestNewlineFromWhitespace(t *testing.T) {
	assertKinds(t, "A\nB", token.IDENTIFIER, token.NEWLINE, token.IDENTIFIER)
	assertKinds(t, "A  B", token.IDENTIFIER, token.IDENTIFIER)
}

func TestCommentsElided(t *testing.T) {
	assertKinds(t, "A ' comment\nB", token.IDENTIFIER, token.NEWLINE, token.IDENTIFIER)
}

func TestComparisonOperatorOrdering(t *testing.T) {
	assertKinds(t, "<>", token.NE)
	assertKinds(t, "<=", token.LTE)
	assertKinds(t, ">=", token.GTE)
	assertKinds(t, "<", token.LT)
	assertKinds(t, ">", token.GT)
}

func TestSubAndAddAreAlwaysStandaloneTokens(t *testing.T) {
	// No intervening space: "+"/"-" must still lex as their own ADD/SUB
	// token, never absorbed into the following numeric literal -- the
	// parser's unary-minus handling is what gives a negative literal its
	// sign.
	assertKinds(t, "1+1", token.NUMBER_LIT, token.ADD, token.NUMBER_LIT)
	assertKinds(t, "5-3", token.NUMBER_LIT, token.SUB, token.NUMBER_LIT)
	assertKinds(t, "a-5", token.IDENTIFIER, token.SUB, token.NUMBER_LIT)
	assertKinds(t, "a - 5", token.IDENTIFIER, token.SUB, token.NUMBER_LIT)
}

func TestStringLiteral(t *testing.T) {
	toks, err := Tokenize(`"hello world"`)
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != token.STRING_LIT || toks[0].Lit != "hello world" {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestUnterminatedString(t *testing.T) {
	_, err := Tokenize(`"hello`)
	if err == nil {
		t.Fatal("expected LexError for unterminated string")
	}
}

func TestUnexpectedCharacter(t *testing.T) {
	_, err := Tokenize("@")
	if err == nil {
		t.Fatal("expected LexError for unrecognised input")
	}
	var lexErr *Error
	if e, ok := err.(*Error); !ok {
		t.Fatalf("expected *lexer.Error, got %T", err)
	} else {
		lexErr = e
	}
	if lexErr.Line != 1 || lexErr.Col != 1 {
		t.Fatalf("unexpected position: %+v", lexErr)
	}
}

func TestPositionsTracked(t *testing.T) {
	toks, err := Tokenize("AB\nCD")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Line != 1 || toks[0].Col != 1 {
		t.Fatalf("first token position = %d,%d", toks[0].Line, toks[0].Col)
	}
	// toks[1] is NEWLINE, toks[2] is CD on line 2.
	if toks[2].Line != 2 || toks[2].Col != 1 {
		t.Fatalf("CD position = %d,%d", toks[2].Line, toks[2].Col)
	}
}

func TestLexIdempotentRoundTrip(t *testing.T) {
	// Re-lexing the literal text of each non-NEWLINE/EOF token must
	// reproduce the same single token (lexer round-trip invariant).
	src := `FOR i = 1 TO 10 STEP 2 : PRINT i$ ; "str" <> 3.5`
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range toks {
		if tok.Kind == token.NEWLINE || tok.Kind == token.EOF {
			continue
		}
		lit := tok.Lit
		if tok.Kind == token.STRING_LIT {
			lit = `"` + lit + `"`
		}
		again, err := Tokenize(lit)
		if err != nil {
			t.Fatalf("re-lexing %q: %v", lit, err)
		}
		if len(again) < 1 || again[0].Kind != tok.Kind {
			t.Fatalf("re-lexing %q produced %v, want first kind %v", lit, again, tok.Kind)
		}
	}
}
