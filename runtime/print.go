package eruntime

import (
	"strings"

	"github.com/gosuda/qbc/internal/ast"
)

// printZoneWidth is QBasic's column width for the comma separator in a
// PRINT list: it tabs to the next multiple of 14 rather than inserting a
// fixed run of spaces.
const printZoneWidth = 14

// Printer tracks the output column across PRINT statements, so a comma's
// tab target is correct even when the previous PRINT ended mid-line with
// a trailing semicolon.
type Printer struct {
	col int
}

// NewPrinter returns a Printer positioned at the start of a line.
func NewPrinter() *Printer { return &Printer{} }

// Newline resets the column tracker; callers write the actual newline
// byte themselves once Render reports it wasn't suppressed.
func (p *Printer) Newline() { p.col = 0 }

// Render formats one PRINT statement's argument list, evaluating each
// PrintValue item with eval. It returns the text to emit and whether the
// statement's trailing separator (comma or semicolon) suppresses the
// newline that would otherwise follow.
func (p *Printer) Render(items []ast.PrintItem, eval func(ast.Expr) (Value, error)) (string, bool, error) {
	var sb strings.Builder
	suppress := false
	for _, item := range items {
		switch item.Kind {
		case ast.PrintComma:
			pad := printZoneWidth - (p.col % printZoneWidth)
			sb.WriteString(strings.Repeat(" ", pad))
			p.col += pad
			suppress = true
		case ast.PrintSemicolon:
			suppress = true
		case ast.PrintValue:
			v, err := eval(item.Expr)
			if err != nil {
				return "", false, err
			}
			text := formatPrintValue(v)
			sb.WriteString(text)
			p.col += len(text)
			suppress = false
		}
	}
	return sb.String(), suppress, nil
}

// formatPrintValue applies QBasic's PRINT number formatting: a numeric
// value is followed by a trailing space, and a non-negative one is
// preceded by a space standing in for the sign a negative number would
// show instead of "-". Strings print exactly as held.
func formatPrintValue(v Value) string {
	if v.Kind() == StringKind {
		return v.String()
	}
	text := v.String()
	if !strings.HasPrefix(text, "-") {
		text = " " + text
	}
	return text + " "
}
