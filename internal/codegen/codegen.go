// Package codegen lowers an analyzed AST into a flat list of labeled
// instructions: every nested control structure (IF, DO/LOOP, FOR/NEXT)
// becomes a run of CompiledStmts joined by jumps, the way a single
// top-to-bottom interpreter pass can execute it without re-entering the
// AST's tree shape on every step.
package codegen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosuda/qbc/internal/ast"
	"github.com/gosuda/qbc/internal/types"
)

// Error is a CodegenError: a structural problem the lowering pass catches
// that the parser and analyzer could not -- an unmatched NEXT, an EXIT
// outside its loop kind, or a GOTO/GOSUB/RETURN to an undeclared label.
type Error struct {
	Line    int
	Col     int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("CodegenError: %s at line %d, col %d", e.Message, e.Line, e.Col)
}

func errAt(loc ast.Loc, format string, args ...interface{}) error {
	return &Error{Line: loc.Line, Col: loc.Col, Message: fmt.Sprintf(format, args...)}
}

// Kind tags one CompiledStmt's role in the flattened instruction stream.
type Kind int

const (
	KindLabel Kind = iota
	KindAssign
	KindJump
	KindJumpIfFalse
	KindGosub
	KindReturn
	KindEnd
	KindPrint
	KindInput
	KindDim
	KindConst
	KindRead
	KindRestore
	KindSwap
)

// CompiledStmt is one instruction in the flattened stream. Only the fields
// relevant to Kind are populated; expression evaluation itself is left to
// the runtime, which walks whatever ast.Expr trees survived analysis.
type CompiledStmt struct {
	Kind Kind
	Loc  ast.Loc

	Label string // KindLabel: this instruction's own name. Jump/JumpIfFalse/Gosub: the target.
	Cond  ast.Expr

	Assign  *ast.Assign
	Print   *ast.Print
	Input   *ast.Input
	Dim     *ast.DimDecl
	Const   *ast.ConstDecl
	Read    *ast.Read
	Restore *ast.Restore
	Swap    *ast.Swap

	// ReturnLabel overrides the popped call-stack address for a RETURN that
	// names an explicit destination label (RETURN <label>); empty for a
	// plain RETURN.
	ReturnLabel string
}

// CompiledProc is a FUNCTION/SUB's own flattened instruction stream. Labels
// are scoped per procedure: a GOTO inside a SUB cannot reach a label in the
// main module or a different SUB.
type CompiledProc struct {
	Name       string
	IsFunction bool
	Params     []ast.Param
	ReturnType types.Type
	Stmts      []CompiledStmt
	Labels     map[string]int
}

// CompiledModule is the flattened form of an entire ast.Module, ready for
// the runtime executor to step through.
type CompiledModule struct {
	Stmts  []CompiledStmt
	Labels map[string]int // uppercase user label name -> index of its KindLabel entry

	Procs map[string]*CompiledProc

	DataPool   []ast.Literal
	DataLabels map[string]int

	SourceMap []SourceMapEntry

	// SourceFile names the input this module was compiled from, for the
	// CLI's -bundle header and step debugger's header. Compile() sets it from
	// its Options; it plays no role in execution.
	SourceFile string `json:"sourceFile,omitempty"`
}

// Code renders the compiled instruction stream as indented JSON, the
// textual form cmd/qbc writes to -out and copies to the clipboard under
// -copy. It is a display format, not a serialisation qbc itself reads
// back in.
func (cm *CompiledModule) Code() (string, error) {
	b, err := json.MarshalIndent(cm, "", "  ")
	if err != nil {
		return "", fmt.Errorf("CodegenError: marshalling compiled module: %w", err)
	}
	return string(b), nil
}

type loopKind int

const (
	loopFor loopKind = iota
	loopDo
)

type loopFrame struct {
	kind     loopKind
	endLabel string
}

type generator struct {
	labelSeq  int
	loopStack []loopFrame
	out       []CompiledStmt
}

func (g *generator) newLabel() string {
	g.labelSeq++
	return fmt.Sprintf("$L%d", g.labelSeq)
}

func (g *generator) emit(stmt CompiledStmt) {
	g.out = append(g.out, stmt)
}

// Generate lowers a fully analyzed module into its flattened executable
// form. mod must already have passed internal/sema's Analyze.
func Generate(mod *ast.Module) (*CompiledModule, error) {
	topStmts, topLabels, err := generateBlock(mod.Stmts)
	if err != nil {
		return nil, err
	}

	procs := make(map[string]*CompiledProc, len(mod.Procs))
	for _, proc := range mod.Procs {
		stmts, labels, err := generateBlock(proc.Stmts)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", proc.Name, err)
		}
		key := strings.ToUpper(proc.Name)
		if _, exists := procs[key]; exists {
			return nil, fmt.Errorf("CodegenError: procedure %q compiled more than once", proc.Name)
		}
		procs[key] = &CompiledProc{
			Name:       proc.Name,
			IsFunction: proc.IsFunction,
			Params:     proc.Params,
			ReturnType: proc.ReturnType,
			Stmts:      stmts,
			Labels:     labels,
		}
	}

	dataLabels := make(map[string]int, len(mod.DataLabels))
	for name, idx := range mod.DataLabels {
		dataLabels[strings.ToUpper(name)] = idx
	}

	cm := &CompiledModule{
		Stmts:      topStmts,
		Labels:     topLabels,
		Procs:      procs,
		DataPool:   mod.DataPool,
		DataLabels: dataLabels,
	}
	cm.SourceMap = buildSourceMap(cm)
	return cm, nil
}

// generateBlock lowers one statement sequence (a module body or a proc
// body) into its own flat instruction stream plus a label index scoped to
// that stream.
func generateBlock(stmts []ast.Stmt) ([]CompiledStmt, map[string]int, error) {
	g := &generator{}
	for _, stmt := range stmts {
		if err := g.genStmt(stmt); err != nil {
			return nil, nil, err
		}
	}
	if len(g.loopStack) > 0 {
		return nil, nil, fmt.Errorf("CodegenError: unclosed loop at end of block")
	}

	labels := map[string]int{}
	for i, s := range g.out {
		if s.Kind == KindLabel {
			labels[strings.ToUpper(s.Label)] = i
		}
	}
	if err := validateTargets(g.out, labels); err != nil {
		return nil, nil, err
	}
	return g.out, labels, nil
}

// validateTargets checks every GOTO/GOSUB/RETURN-with-label target against
// the label index built from this same block, catching references to a
// label that was never declared.
func validateTargets(stmts []CompiledStmt, labels map[string]int) error {
	for _, s := range stmts {
		switch s.Kind {
		case KindJump, KindGosub:
			if !strings.HasPrefix(s.Label, "$") {
				if _, ok := labels[strings.ToUpper(s.Label)]; !ok {
					return &Error{Line: s.Loc.Line, Col: s.Loc.Col, Message: fmt.Sprintf("undefined label %q", s.Label)}
				}
			}
		case KindReturn:
			if s.ReturnLabel != "" {
				if _, ok := labels[strings.ToUpper(s.ReturnLabel)]; !ok {
					return &Error{Line: s.Loc.Line, Col: s.Loc.Col, Message: fmt.Sprintf("undefined label %q", s.ReturnLabel)}
				}
			}
		}
	}
	return nil
}
