// Package ast defines the closed set of statement and expression node
// variants produced by the parser and annotated by the semantic analyzer.
package ast

import "github.com/gosuda/qbc/internal/types"

// Loc is a source position. Every AST node carries one.
type Loc struct {
	Line int
	Col  int
}

// Stmt is the sealed interface implemented by every statement variant.
type Stmt interface {
	stmtNode()
	Loc() Loc
}

// Expr is the sealed interface implemented by every expression variant.
type Expr interface {
	exprNode()
	Loc() Loc
}

type Base struct{ L Loc }

func (b Base) Loc() Loc { return b.L }

// --- Statements ---

type Label struct {
	Base
	Name string
}

func (Label) stmtNode() {}

type Assign struct {
	Base
	Target Expr // VarRef, possibly indexed
	Value  Expr
}

func (Assign) stmtNode() {}

type Goto struct {
	Base
	Label string
}

func (Goto) stmtNode() {}

type IfArm struct {
	Cond  Expr
	Stmts []Stmt
}

type If struct {
	Base
	Arms      []IfArm
	ElseStmts []Stmt
}

func (If) stmtNode() {}

// LoopStructure distinguishes DO WHILE/UNTIL <cond> : LOOP (condition
// before the body) from DO : LOOP WHILE/UNTIL <cond> (condition after).
type LoopStructure int

const (
	CondBeforeStmts LoopStructure = iota
	CondAfterStmts
)

type CondLoop struct {
	Base
	Structure LoopStructure
	Negated   bool // true for UNTIL, false for WHILE
	Cond      Expr
	Stmts     []Stmt
}

func (CondLoop) stmtNode() {}

type UncondLoop struct {
	Base
	Stmts []Stmt
}

func (UncondLoop) stmtNode() {}

type ExitLoop struct{ Base }

func (ExitLoop) stmtNode() {}

type For struct {
	Base
	Counter Expr // VarRef
	Start   Expr
	End     Expr
	Step    Expr // nil if STEP omitted
	Stmts   []Stmt

	// NextName is the counter name written after this loop's closing NEXT,
	// if any; the code generator checks it against Counter's name when
	// present, before lowering the loop. Empty for a bare "NEXT".
	NextName string
}

func (For) stmtNode() {}

type Next struct {
	Base
	Counters []string // textual form of each named counter; empty means bare NEXT
}

func (Next) stmtNode() {}

type ExitFor struct{ Base }

func (ExitFor) stmtNode() {}

type Gosub struct {
	Base
	DestLabel string
}

func (Gosub) stmtNode() {}

type Return struct {
	Base
	DestLabel string // empty means plain RETURN
}

func (Return) stmtNode() {}

type End struct{ Base }

func (End) stmtNode() {}

// PrintItemKind tags one element of a PRINT argument list.
type PrintItemKind int

const (
	PrintComma PrintItemKind = iota
	PrintSemicolon
	PrintValue
)

type PrintItem struct {
	Kind PrintItemKind
	Expr Expr // valid when Kind == PrintValue
}

type Print struct {
	Base
	Args []PrintItem
}

func (Print) stmtNode() {}

type Input struct {
	Base
	Prompt  string
	Targets []Expr
}

func (Input) stmtNode() {}

// Data is a DATA statement: a pool of literals consumed by READ.
type Data struct {
	Base
	Values []Expr // Literal nodes
}

func (Data) stmtNode() {}

// Read assigns the next values from the module-wide DATA pool to targets.
type Read struct {
	Base
	Targets []Expr
}

func (Read) stmtNode() {}

// Restore resets the DATA cursor, optionally to just before a given label.
type Restore struct {
	Base
	Label string // empty means restore to the start
}

func (Restore) stmtNode() {}

// Swap exchanges the values held by two storage locations.
type Swap struct {
	Base
	A Expr
	B Expr
}

func (Swap) stmtNode() {}

// DimDecl declares a scalar or array variable. ElemType is the declared
// elementary type, taken from an AS clause or else from the name's sigil
// (zero value when neither was written, leaving the analyzer to apply the
// default); Dims is non-empty for array declarations.
type DimDecl struct {
	Base
	Name     string
	ElemType types.Kind
	HasType  bool // true when an AS <type> clause or a sigil set ElemType
	Dims     []DimBound
}

// DimBound is one dimension of an array declaration as written in source;
// Lower defaults to 0 when the single-bound form "DIM a(10)" is used.
type DimBound struct {
	Lower Expr
	Upper Expr
}

func (DimDecl) stmtNode() {}

// ConstDecl declares a named compile-time constant.
type ConstDecl struct {
	Base
	Name  string
	Value Expr
}

func (ConstDecl) stmtNode() {}

// --- Expressions ---

// Literal holds either a string or a numeric literal, as lexed.
type Literal struct {
	Base
	IsString bool
	Str      string
	Num      float64
	Type     types.Type
}

func (Literal) exprNode() {}

// VarRefScope tags where a resolved VarRef's storage lives.
type VarRefScope int

const (
	ScopeUnresolved VarRefScope = iota
	ScopeParam
	ScopeProcLocal
	ScopeModuleLocal
	ScopeGlobal
)

// VarRef is a (possibly indexed) variable reference. Name/Indices are set
// by the parser; Type, VarType and Scope are set by the semantic analyzer.
type VarRef struct {
	Base
	Name    string
	Indices []Expr // non-nil/non-empty for array element access

	Type    types.Type
	VarType types.Type // the symbol's declared type (equals Type for scalars)
	Scope   VarRefScope
}

func (VarRef) exprNode() {}

// FnCall is a call to a declared FUNCTION or a built-in. The analyzer
// rewrites a VarRef that turns out to name a nullary FUNCTION into one of
// these in place.
type FnCall struct {
	Base
	Name string
	Args []Expr

	Type types.Type
}

func (FnCall) exprNode() {}

type BinaryOp struct {
	Base
	Op    string
	Left  Expr
	Right Expr

	Type types.Type
}

func (BinaryOp) exprNode() {}

type UnaryKind int

const (
	Neg UnaryKind = iota
	Not
	Parens
)

type UnaryOp struct {
	Base
	Op    UnaryKind
	Right Expr

	Type types.Type
}

func (UnaryOp) exprNode() {}

// NewLoc is a convenience constructor used throughout the parser.
func NewLoc(line, col int) Loc { return Loc{Line: line, Col: col} }

// WithLoc wraps base for node constructors.
func WithLoc(l Loc) Base { return Base{L: l} }

// --- Module / FnProc ---

type Param struct {
	Name string
	Type types.Type
	// HasType is true when Type came from an explicit AS clause or a
	// sigil; false means "no annotation was written", leaving the
	// analyzer to apply the default (Single).
	HasType bool
}

type FnProc struct {
	Name       string
	IsFunction bool // false for a SUB, which has no return value
	Params     []Param
	ReturnType types.Type
	Stmts      []Stmt
}

// Module is the whole parsed program: top-level statements plus any
// FUNCTION/SUB procedures. The symbol tables that back name resolution live
// in internal/symbols and are produced and owned by internal/sema, not
// embedded here, so this package stays independent of that one.
type Module struct {
	Procs []*FnProc
	Stmts []Stmt

	// DataPool is the flattened, module-order list of DATA literal values,
	// consumed by READ and reset by RESTORE.
	DataPool []Literal
	// DataLabels maps a label name to the DataPool index RESTORE <label>
	// should resume from.
	DataLabels map[string]int
}
