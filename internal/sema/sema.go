// Package sema performs a single top-down semantic analysis pass over a
// parsed module: it resolves every variable reference to a symbol, assigns
// a Type to every expression, rewrites call-shaped VarRefs into FnCalls
// where the name denotes a procedure or built-in, and checks every
// statement against the elementary-type coercion rules.
package sema

import (
	"fmt"
	"strings"

	"github.com/gosuda/qbc/internal/ast"
	"github.com/gosuda/qbc/internal/symbols"
	"github.com/gosuda/qbc/internal/types"
)

// Error is a SemanticError: a type or resolution failure at a source
// position. Analyze stops at the first one, mirroring the lexer and parser.
type Error struct {
	Line    int
	Col     int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("SemanticError: %s at line %d, col %d", e.Message, e.Line, e.Col)
}

func errAt(loc ast.Loc, format string, args ...interface{}) error {
	return &Error{Line: loc.Line, Col: loc.Col, Message: fmt.Sprintf(format, args...)}
}

// Analyzed is the result of a successful analysis: the module with its
// expressions annotated, plus the symbol tables the analysis built. Codegen
// reads only Module.
type Analyzed struct {
	Module  *ast.Module
	Globals *symbols.Table
	// Locals holds one table per analyzed FnProc, indexed in Module.Procs
	// order.
	Locals []*symbols.Table
}

type analyzer struct {
	globals *symbols.Table
	// scope is the table currently in effect: globals at module level, or
	// a proc's local table while walking that proc's body.
	scope *symbols.Table
	// procs indexes declared FUNCTION/SUB signatures by uppercase name, for
	// call resolution.
	procs map[string]*ast.FnProc
}

// Analyze runs the single semantic pass described in the package comment.
func Analyze(mod *ast.Module) (*Analyzed, error) {
	a := &analyzer{
		globals: symbols.NewTable(nil, symbols.Global),
		procs:   map[string]*ast.FnProc{},
	}
	a.scope = a.globals

	for _, proc := range mod.Procs {
		key := strings.ToUpper(proc.Name)
		if _, exists := a.procs[key]; exists {
			return nil, fmt.Errorf("SemanticError: procedure %q declared more than once", proc.Name)
		}
		a.procs[key] = proc
	}

	// Pre-declare DIM/CONST globals before walking executable statements,
	// so a forward reference to a later-declared global still resolves;
	// QBasic hoists declarations to the top of their scope.
	if err := a.hoistDecls(mod.Stmts, a.globals); err != nil {
		return nil, err
	}

	for i, stmt := range mod.Stmts {
		resolved, err := a.analyzeStmt(stmt)
		if err != nil {
			return nil, err
		}
		mod.Stmts[i] = resolved
	}

	locals := make([]*symbols.Table, len(mod.Procs))
	for i, proc := range mod.Procs {
		tbl := symbols.NewTable(a.globals, symbols.Local)
		for _, param := range proc.Params {
			pt := param.Type
			if !param.HasType {
				pt = types.Elementary(types.Single)
			}
			if err := tbl.Define(symbols.Symbol{Name: param.Name, Kind: symbols.Arg, Type: pt}); err != nil {
				return nil, fmt.Errorf("SemanticError: in %s: %w", proc.Name, err)
			}
		}
		if proc.IsFunction {
			// The function name doubles as the variable its body assigns
			// to produce the return value, per QBasic's FUNCTION semantics.
			tbl.Define(symbols.Symbol{Name: proc.Name, Kind: symbols.Var, Type: proc.ReturnType})
		}

		prevScope := a.scope
		a.scope = tbl
		if err := a.hoistDecls(proc.Stmts, tbl); err != nil {
			return nil, err
		}
		for i, stmt := range proc.Stmts {
			resolved, err := a.analyzeStmt(stmt)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", proc.Name, err)
			}
			proc.Stmts[i] = resolved
		}
		a.scope = prevScope
		locals[i] = tbl
	}

	return &Analyzed{Module: mod, Globals: a.globals, Locals: locals}, nil
}

// hoistDecls defines every DIM/CONST appearing in stmts (not recursing into
// nested blocks' own DIMs beyond the ones they directly contain) into tbl
// before the walking pass runs.
func (a *analyzer) hoistDecls(stmts []ast.Stmt, tbl *symbols.Table) error {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case ast.DimDecl:
			if err := a.defineDim(s, tbl); err != nil {
				return err
			}
		case ast.ConstDecl:
			if err := a.defineConst(s, tbl); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *analyzer) defineDim(d ast.DimDecl, tbl *symbols.Table) error {
	elem := d.ElemType
	if !d.HasType {
		if k, ok := types.SigilKind(lastByte(d.Name)); ok {
			elem = k
		} else {
			elem = types.Single
		}
	}
	var typ types.Type
	if len(d.Dims) > 0 {
		dims := make([]types.Dim, len(d.Dims))
		for i := range d.Dims {
			// Bounds are expressions that may reference constants; the
			// runtime resolves their values when the DIM runs. Sema records a placeholder
			// dim shape here only to mark this symbol as an array.
			dims[i] = types.Dim{Lower: 0, Upper: 0}
		}
		typ = types.ArrayOf(elem, dims)
	} else {
		typ = types.Elementary(elem)
	}
	if err := tbl.Define(symbols.Symbol{Name: d.Name, Kind: symbols.Var, Type: typ}); err != nil {
		return errAt(d.Loc(), "%s", err.Error())
	}
	return nil
}

func (a *analyzer) defineConst(c ast.ConstDecl, tbl *symbols.Table) error {
	val, err := a.analyzeExpr(c.Value)
	if err != nil {
		return err
	}
	if err := tbl.Define(symbols.Symbol{Name: c.Name, Kind: symbols.Const, Type: exprType(val)}); err != nil {
		return errAt(c.Loc(), "%s", err.Error())
	}
	return nil
}

func lastByte(s string) byte {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// lookupOrDeclare resolves name against the current scope, implicitly
// declaring it as a Single-typed (or sigil-typed) variable on first use --
// QBasic does not require DIM for scalars.
func (a *analyzer) lookupOrDeclare(name string, loc ast.Loc) (*symbols.Symbol, error) {
	if sym, ok := a.scope.Lookup(name); ok {
		return sym, nil
	}
	kind := types.Single
	if k, ok := types.SigilKind(lastByte(name)); ok {
		kind = k
	}
	sym := symbols.Symbol{Name: name, Kind: symbols.Var, Type: types.Elementary(kind)}
	if err := a.scope.Define(sym); err != nil {
		return nil, errAt(loc, "%s", err.Error())
	}
	resolved, _ := a.scope.Lookup(name)
	return resolved, nil
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
