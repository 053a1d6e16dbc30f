// Command qbc compiles a QBasic source file and either writes the
// compiled module's textual form or steps it in an interactive debugger.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gosuda/qbc"
	"github.com/gosuda/qbc/internal/codegen"
	eruntime "github.com/gosuda/qbc/runtime"
)

func main() {
	in := flag.String("in", "", "source file path (default: stdin)")
	out := flag.String("out", "-", "output path for the compiled module, or - for stdout")
	sourcefile := flag.String("sourcefile", "", "name recorded on the compiled module (default: -in, or \"stdin\")")
	bundle := flag.Bool("bundle", false, "prepend a runtime shebang and built-in manifest to the compiled output")
	debug := flag.Bool("debug", false, "launch the interactive step debugger instead of compiling to a file")
	run := flag.Bool("run", false, "execute the compiled module directly instead of writing it out")
	copyOut := flag.Bool("copy", false, "copy the compiled module's textual form to the clipboard")
	flag.Parse()

	source, name, err := readSource(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qbc: %v\n", err)
		os.Exit(1)
	}
	if *sourcefile != "" {
		name = *sourcefile
	}

	cm, err := qbc.Compile(source, qbc.Options{SourceFile: name})
	if err != nil {
		fmt.Fprintf(os.Stderr, "qbc: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *debug:
		p := tea.NewProgram(newDebugModel(cm), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "qbc: debugger: %v\n", err)
			os.Exit(1)
		}
	case *run:
		if err := eruntime.NewExecutor(cm, os.Stdout, eruntime.LineReader(os.Stdin)).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "qbc: %v\n", err)
			os.Exit(1)
		}
	default:
		if err := emit(cm, *out, *bundle, *copyOut); err != nil {
			fmt.Fprintf(os.Stderr, "qbc: %v\n", err)
			os.Exit(1)
		}
	}
}

// readSource loads the source text from path, or from stdin when path is
// empty, returning a default name (its base name, or "stdin") alongside.
func readSource(path string) (source, name string, err error) {
	if path == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), "stdin", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), filepath.Base(path), nil
}

// emit writes the compiled module's textual form to outPath (or stdout),
// optionally prepending a bundle header, and optionally copying the same
// text to the clipboard.
func emit(cm *codegen.CompiledModule, outPath string, bundle, copyOut bool) error {
	code, err := cm.Code()
	if err != nil {
		return err
	}
	text := code
	if bundle {
		text = bundleHeader(cm) + code
	}
	if copyOut {
		if err := clipboard.WriteAll(text); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}
	}
	if outPath == "-" || outPath == "" {
		_, err := fmt.Fprintln(os.Stdout, text)
		return err
	}
	return os.WriteFile(outPath, []byte(text+"\n"), 0o644)
}

// bundleHeader prepends a shebang and a comment line listing the runtime's
// built-in function names, so a bundled module is self-describing about
// which names its FnCall nodes may resolve against.
func bundleHeader(cm *codegen.CompiledModule) string {
	names := eruntime.BuiltinNames()
	return fmt.Sprintf("#!/usr/bin/env qbc -run\n// qbc bundle: %s, %d builtin(s): %v\n",
		cm.SourceFile, len(names), names)
}
