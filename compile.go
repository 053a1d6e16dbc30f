// Package qbc compiles QBasic source into a flattened, executable module.
// Compile chains the lexer, parser, semantic analyzer and code generator
// the same way erago's parser.ParseProgram/eruntime.New pipeline turned an
// ERA/Emuera script into a runnable VM.
package qbc

import (
	"fmt"
	"io"

	"github.com/gosuda/qbc/internal/codegen"
	"github.com/gosuda/qbc/internal/lexer"
	"github.com/gosuda/qbc/internal/parser"
	"github.com/gosuda/qbc/internal/sema"
	eruntime "github.com/gosuda/qbc/runtime"
)

// Options configures a single Compile call.
type Options struct {
	// SourceFile names the input source; Compile records it on the compiled
	// module (no error message includes it) and never reads this path itself,
	// the caller already supplied the source text.
	SourceFile string
}

// Compile runs source through the lexer, parser, semantic analyzer and
// code generator in sequence, stopping at the first stage that fails.
func Compile(source string, opts Options) (*codegen.CompiledModule, error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, fmt.Errorf("qbc: %w", err)
	}
	mod, err := parser.Parse(toks)
	if err != nil {
		return nil, fmt.Errorf("qbc: %w", err)
	}
	analyzed, err := sema.Analyze(mod)
	if err != nil {
		return nil, fmt.Errorf("qbc: %w", err)
	}
	cm, err := codegen.Generate(analyzed.Module)
	if err != nil {
		return nil, fmt.Errorf("qbc: %w", err)
	}
	cm.SourceFile = opts.SourceFile
	return cm, nil
}

// Run compiles source and immediately executes it against out/in, the
// one-call convenience erago's own Compile(files) (*VM, error) offered
// before a caller needed to drive the VM by hand.
func Run(source string, opts Options, out io.Writer, in eruntime.InputProvider) error {
	cm, err := Compile(source, opts)
	if err != nil {
		return err
	}
	return eruntime.NewExecutor(cm, out, in).Run()
}
