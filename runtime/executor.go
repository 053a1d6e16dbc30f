package eruntime

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"

	"github.com/gosuda/qbc/internal/ast"
	"github.com/gosuda/qbc/internal/codegen"
	"github.com/gosuda/qbc/internal/types"
)

// RuntimeError reports a failure raised while stepping the compiled
// instruction stream, tagged with the source location of the instruction
// that caused it.
type RuntimeError struct {
	Line    int
	Col     int
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("RuntimeError: %s at line %d, col %d", e.Message, e.Line, e.Col)
}

func errAt(loc ast.Loc, format string, args ...interface{}) error {
	return &RuntimeError{Line: loc.Line, Col: loc.Col, Message: fmt.Sprintf(format, args...)}
}

// ErrProgramEnded is the sentinel runStream returns on an END statement, at
// any call depth; Run unwraps it back into a clean nil result.
var ErrProgramEnded = errors.New("program ended")

// scope bundles one execution context's scalar and array storage: the
// module's globals, or one call's parameter/local bindings.
type scope struct {
	locals map[string]Value
	arrays map[string]*ArrayVar
}

func newScope() *scope {
	return &scope{locals: map[string]Value{}, arrays: map[string]*ArrayVar{}}
}

// Executor steps a codegen.CompiledModule to completion, evaluating the
// ast.Expr trees codegen left attached to each CompiledStmt against whatever
// scope is active at that point in the flattened stream.
type Executor struct {
	mod     *codegen.CompiledModule
	globals *scope
	printer *Printer
	out     io.Writer
	in      InputProvider
	dataPos int

	stopRequested atomic.Bool
}

// ErrStopped is returned by Run when a host calls RequestStop while the
// executor is running. It is reported as an error, unlike ErrProgramEnded,
// since cancellation is not a normal program termination.
var ErrStopped = errors.New("execution stopped")

// RequestStop asks the executor to terminate at the next instruction
// boundary without corrupting scope state. Safe to call concurrently with
// Run, the way a host's "stop requested" flag is checked cooperatively
// between statements rather than preempting mid-statement.
func (ex *Executor) RequestStop() {
	ex.stopRequested.Store(true)
}

// NewExecutor builds an Executor ready to run mod, writing PRINT output to
// out and reading INPUT lines from in.
func NewExecutor(mod *codegen.CompiledModule, out io.Writer, in InputProvider) *Executor {
	return &Executor{
		mod:     mod,
		globals: newScope(),
		printer: NewPrinter(),
		out:     out,
		in:      in,
	}
}

// Run executes the module's top-level statement stream from its first
// instruction. An END statement anywhere (including inside a called
// FUNCTION) terminates the whole run without being reported as an error.
func (ex *Executor) Run() error {
	err := ex.runStream(ex.mod.Stmts, ex.mod.Labels, ex.globals)
	if errors.Is(err, ErrProgramEnded) {
		return nil
	}
	return err
}

// runStream steps one flattened instruction stream (the module's top level,
// or a single procedure's own body) to completion. GOSUB/RETURN addresses
// are kept on a stack local to this call, since labels -- and therefore
// GOSUB targets -- never cross a procedure boundary.
func (ex *Executor) runStream(stmts []codegen.CompiledStmt, labels map[string]int, sc *scope) error {
	var gosubStack []int
	pc := 0
	for pc < len(stmts) {
		next, err := ex.step(stmts, labels, sc, pc, &gosubStack)
		if err != nil {
			return err
		}
		pc = next
	}
	return nil
}

// step executes exactly the one instruction at pc and returns the index to
// resume at. It is runStream's whole dispatch loop body, factored out so a
// caller (the CLI step debugger) can drive the same top-level stream one
// instruction at a time instead of to completion; a GOSUB is a single jump,
// while a FUNCTION call inside an expression runs its whole body within the
// one step that evaluates it.
func (ex *Executor) step(stmts []codegen.CompiledStmt, labels map[string]int, sc *scope, pc int, gosubStack *[]int) (int, error) {
	if ex.stopRequested.Load() {
		return pc, ErrStopped
	}
	s := stmts[pc]
	switch s.Kind {
	case codegen.KindLabel:
		return pc + 1, nil
	case codegen.KindAssign:
		if err := ex.execAssign(s.Assign, sc); err != nil {
			return 0, err
		}
		return pc + 1, nil
	case codegen.KindJump:
		idx, ok := labels[strings.ToUpper(s.Label)]
		if !ok {
			return 0, errAt(s.Loc, "undefined label %q", s.Label)
		}
		return idx, nil
	case codegen.KindJumpIfFalse:
		v, err := ex.evalExpr(s.Cond, sc)
		if err != nil {
			return 0, err
		}
		if v.Truthy() {
			return pc + 1, nil
		}
		idx, ok := labels[strings.ToUpper(s.Label)]
		if !ok {
			return 0, errAt(s.Loc, "undefined label %q", s.Label)
		}
		return idx, nil
	case codegen.KindGosub:
		idx, ok := labels[strings.ToUpper(s.Label)]
		if !ok {
			return 0, errAt(s.Loc, "undefined label %q", s.Label)
		}
		*gosubStack = append(*gosubStack, pc+1)
		return idx, nil
	case codegen.KindReturn:
		if len(*gosubStack) == 0 {
			return 0, errAt(s.Loc, "RETURN without GOSUB")
		}
		popped := (*gosubStack)[len(*gosubStack)-1]
		*gosubStack = (*gosubStack)[:len(*gosubStack)-1]
		if s.ReturnLabel != "" {
			idx, ok := labels[strings.ToUpper(s.ReturnLabel)]
			if !ok {
				return 0, errAt(s.Loc, "undefined label %q", s.ReturnLabel)
			}
			return idx, nil
		}
		return popped, nil
	case codegen.KindEnd:
		return pc, ErrProgramEnded
	case codegen.KindPrint:
		if err := ex.execPrint(s.Print, sc); err != nil {
			return 0, err
		}
		return pc + 1, nil
	case codegen.KindInput:
		if err := ex.execInput(s.Input, sc); err != nil {
			return 0, err
		}
		return pc + 1, nil
	case codegen.KindDim:
		if err := ex.execDim(s.Dim, sc); err != nil {
			return 0, err
		}
		return pc + 1, nil
	case codegen.KindConst:
		v, err := ex.evalExpr(s.Const.Value, sc)
		if err != nil {
			return 0, err
		}
		sc.locals[strings.ToUpper(s.Const.Name)] = v
		return pc + 1, nil
	case codegen.KindRead:
		if err := ex.execRead(s.Read, sc); err != nil {
			return 0, err
		}
		return pc + 1, nil
	case codegen.KindRestore:
		if err := ex.execRestore(s.Restore); err != nil {
			return 0, err
		}
		return pc + 1, nil
	case codegen.KindSwap:
		if err := ex.execSwap(s.Swap, sc); err != nil {
			return 0, err
		}
		return pc + 1, nil
	default:
		return 0, errAt(s.Loc, "executor: unhandled instruction kind %d", s.Kind)
	}
}

func (ex *Executor) execAssign(s *ast.Assign, sc *scope) error {
	val, err := ex.evalExpr(s.Value, sc)
	if err != nil {
		return err
	}
	ref, ok := s.Target.(ast.VarRef)
	if !ok {
		return errAt(s.Loc(), "executor: assignment target is not a variable")
	}
	return ex.writeTarget(ref, sc, val)
}

func (ex *Executor) execPrint(s *ast.Print, sc *scope) error {
	text, suppress, err := ex.printer.Render(s.Args, func(e ast.Expr) (Value, error) {
		return ex.evalExpr(e, sc)
	})
	if err != nil {
		return err
	}
	fmt.Fprint(ex.out, text)
	if !suppress {
		fmt.Fprintln(ex.out)
		ex.printer.Newline()
	}
	return nil
}

// execInput runs one INPUT statement's "Redo from start" retry loop: a
// malformed numeric field re-prompts and re-reads every field on the line,
// rather than defaulting the bad field to zero.
func (ex *Executor) execInput(s *ast.Input, sc *scope) error {
	for {
		fmt.Fprint(ex.out, s.Prompt+"? ")
		line, err := ex.in()
		if err != nil {
			return err
		}
		fields := splitInputFields(line, len(s.Targets))
		values := make([]Value, len(s.Targets))
		redo := false
		for i, t := range s.Targets {
			ref := t.(ast.VarRef)
			if ref.Type.IsString() {
				values[i] = Str(fields[i])
				continue
			}
			f, err := parseNumericField(fields[i])
			if err != nil {
				fmt.Fprintln(ex.out, err.Error())
				redo = true
				break
			}
			values[i] = coerceToElem(ref.Type.Kind, Double(f))
		}
		if redo {
			continue
		}
		for i, t := range s.Targets {
			if err := ex.writeTarget(t.(ast.VarRef), sc, values[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

func (ex *Executor) execDim(d *ast.DimDecl, sc *scope) error {
	key := strings.ToUpper(d.Name)
	if len(d.Dims) == 0 {
		if _, ok := sc.locals[key]; !ok {
			sc.locals[key] = ex.defaultValue(types.Elementary(inferElemKind(d)))
		}
		return nil
	}
	elem := inferElemKind(d)
	dims := make([]types.Dim, len(d.Dims))
	for i, db := range d.Dims {
		var lower int64
		if db.Lower != nil {
			lv, err := ex.evalExpr(db.Lower, sc)
			if err != nil {
				return err
			}
			lower = lv.Int64()
		}
		uv, err := ex.evalExpr(db.Upper, sc)
		if err != nil {
			return err
		}
		dims[i] = types.Dim{Lower: lower, Upper: uv.Int64()}
	}
	sc.arrays[key] = newArrayVar(elem, dims)
	return nil
}

func (ex *Executor) execRead(s *ast.Read, sc *scope) error {
	for _, t := range s.Targets {
		if ex.dataPos >= len(ex.mod.DataPool) {
			return errAt(s.Loc(), "out of DATA")
		}
		lit := ex.mod.DataPool[ex.dataPos]
		ex.dataPos++
		var val Value
		if lit.IsString {
			val = Str(lit.Str)
		} else {
			val = wrapNumeric(lit.Type, lit.Num)
		}
		if err := ex.writeTarget(t.(ast.VarRef), sc, val); err != nil {
			return err
		}
	}
	return nil
}

func (ex *Executor) execRestore(s *ast.Restore) error {
	if s.Label == "" {
		ex.dataPos = 0
		return nil
	}
	idx, ok := ex.mod.DataLabels[strings.ToUpper(s.Label)]
	if !ok {
		return errAt(s.Loc(), "RESTORE: undefined label %q", s.Label)
	}
	ex.dataPos = idx
	return nil
}

func (ex *Executor) execSwap(s *ast.Swap, sc *scope) error {
	aRef := s.A.(ast.VarRef)
	bRef := s.B.(ast.VarRef)
	aVal, err := ex.evalExpr(aRef, sc)
	if err != nil {
		return err
	}
	bVal, err := ex.evalExpr(bRef, sc)
	if err != nil {
		return err
	}
	if err := ex.writeTarget(aRef, sc, bVal); err != nil {
		return err
	}
	return ex.writeTarget(bRef, sc, aVal)
}

// evalExpr evaluates an analyzed expression tree against sc (the scope in
// effect at this point in the current stream: globals at module level, or
// one call's own parameter/local bindings inside a procedure).
func (ex *Executor) evalExpr(e ast.Expr, sc *scope) (Value, error) {
	switch v := e.(type) {
	case ast.Literal:
		if v.IsString {
			return Str(v.Str), nil
		}
		return wrapNumeric(v.Type, v.Num), nil
	case ast.VarRef:
		return ex.evalVarRef(v, sc)
	case ast.FnCall:
		return ex.evalCall(v, sc)
	case ast.BinaryOp:
		return ex.evalBinary(v, sc)
	case ast.UnaryOp:
		return ex.evalUnary(v, sc)
	default:
		return Value{}, errAt(e.Loc(), "executor: unsupported expression node %T", e)
	}
}

func (ex *Executor) evalVarRef(v ast.VarRef, sc *scope) (Value, error) {
	if len(v.Indices) > 0 {
		arr, err := ex.resolveArray(v, sc)
		if err != nil {
			return Value{}, err
		}
		idx, err := ex.evalIndices(v.Indices, sc)
		if err != nil {
			return Value{}, err
		}
		val, err := arr.Get(idx)
		if err != nil {
			return Value{}, errAt(v.Loc(), "%s", err.Error())
		}
		return val, nil
	}
	env := ex.scopeFor(v.Scope, sc)
	if val, ok := env.locals[strings.ToUpper(v.Name)]; ok {
		return val, nil
	}
	return ex.defaultValue(v.Type), nil
}

func (ex *Executor) evalCall(v ast.FnCall, sc *scope) (Value, error) {
	upper := strings.ToUpper(v.Name)
	if upper == "LBOUND" || upper == "UBOUND" {
		return ex.evalBound(upper, v, sc)
	}
	if proc, ok := ex.mod.Procs[upper]; ok && proc.IsFunction {
		return ex.callProc(proc, v.Args, sc)
	}
	fn, ok := LookupBuiltin(v.Name, MatchStrict)
	if !ok {
		return Value{}, errAt(v.Loc(), "executor: unknown function %s", v.Name)
	}
	args := make([]Value, len(v.Args))
	for i, a := range v.Args {
		val, err := ex.evalExpr(a, sc)
		if err != nil {
			return Value{}, err
		}
		args[i] = val
	}
	result, err := fn(args)
	if err != nil {
		return Value{}, errAt(v.Loc(), "%s", err.Error())
	}
	return result, nil
}

// evalBound answers LBOUND/UBOUND directly off the resolved array's Dims,
// bypassing the plain-Value builtin registry: these two take a bare array
// name as their first argument, not a value.
func (ex *Executor) evalBound(which string, v ast.FnCall, sc *scope) (Value, error) {
	ref := v.Args[0].(ast.VarRef)
	arr, err := ex.resolveArray(ref, sc)
	if err != nil {
		return Value{}, err
	}
	dimIdx := 0
	if len(v.Args) == 2 {
		n, err := ex.evalExpr(v.Args[1], sc)
		if err != nil {
			return Value{}, err
		}
		dimIdx = int(n.Int64()) - 1
	}
	if dimIdx < 0 || dimIdx >= len(arr.Dims) {
		return Value{}, errAt(v.Loc(), "%s: dimension %d out of range", which, dimIdx+1)
	}
	if which == "LBOUND" {
		return Integer(arr.Dims[dimIdx].Lower), nil
	}
	return Integer(arr.Dims[dimIdx].Upper), nil
}

// callProc invokes a FUNCTION in a fresh scope with its parameters bound by
// value. SUB calls never reach here: nothing in the AST represents a CALL
// statement, so a SUB can only ever be declared, never invoked.
func (ex *Executor) callProc(proc *codegen.CompiledProc, argExprs []ast.Expr, callerScope *scope) (Value, error) {
	newSc := newScope()
	for i, param := range proc.Params {
		val, err := ex.evalExpr(argExprs[i], callerScope)
		if err != nil {
			return Value{}, err
		}
		pt := param.Type
		if !param.HasType {
			pt = types.Elementary(types.Single)
		}
		newSc.locals[strings.ToUpper(param.Name)] = coerceToElem(pt.Kind, val)
	}
	if err := ex.runStream(proc.Stmts, proc.Labels, newSc); err != nil {
		return Value{}, err
	}
	if proc.IsFunction {
		return newSc.locals[strings.ToUpper(proc.Name)], nil
	}
	return Value{}, nil
}

func (ex *Executor) evalBinary(v ast.BinaryOp, sc *scope) (Value, error) {
	left, err := ex.evalExpr(v.Left, sc)
	if err != nil {
		return Value{}, err
	}
	right, err := ex.evalExpr(v.Right, sc)
	if err != nil {
		return Value{}, err
	}

	switch v.Op {
	case "=", "<>", "<", "<=", ">", ">=":
		return evalCompare(v.Op, left, right, v.Loc())
	case "+":
		if left.Kind() == StringKind || right.Kind() == StringKind {
			return Str(left.String() + right.String()), nil
		}
		return wrapNumeric(v.Type, left.Float64()+right.Float64()), nil
	case "-":
		return wrapNumeric(v.Type, left.Float64()-right.Float64()), nil
	case "*":
		return wrapNumeric(v.Type, left.Float64()*right.Float64()), nil
	case "/":
		if right.Float64() == 0 {
			return Value{}, errAt(v.Loc(), "division by zero")
		}
		return wrapNumeric(v.Type, left.Float64()/right.Float64()), nil
	case "\\":
		r := right.Int64()
		if r == 0 {
			return Value{}, errAt(v.Loc(), "division by zero")
		}
		return wrapNumeric(v.Type, float64(left.Int64()/r)), nil
	case "MOD":
		r := right.Int64()
		if r == 0 {
			return Value{}, errAt(v.Loc(), "division by zero")
		}
		return wrapNumeric(v.Type, float64(left.Int64()%r)), nil
	case "^":
		return wrapNumeric(v.Type, math.Pow(left.Float64(), right.Float64())), nil
	case "AND":
		// QBasic's AND/OR operate on the two's-complement bit pattern, the
		// same representation that makes its boolean TRUE equal -1.
		return wrapNumeric(v.Type, float64(left.Int64()&right.Int64())), nil
	case "OR":
		return wrapNumeric(v.Type, float64(left.Int64()|right.Int64())), nil
	default:
		return Value{}, errAt(v.Loc(), "executor: unknown operator %s", v.Op)
	}
}

// evalCompare yields QBasic's boolean convention directly: -1 for true, 0
// for false, so the result composes with AND/OR and JumpIfFalse's Truthy
// check without any separate boolean domain.
func evalCompare(op string, l, r Value, loc ast.Loc) (Value, error) {
	var cmp int
	if l.Kind() == StringKind || r.Kind() == StringKind {
		cmp = strings.Compare(l.String(), r.String())
	} else {
		lf, rf := l.Float64(), r.Float64()
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	}
	var ok bool
	switch op {
	case "=":
		ok = cmp == 0
	case "<>":
		ok = cmp != 0
	case "<":
		ok = cmp < 0
	case "<=":
		ok = cmp <= 0
	case ">":
		ok = cmp > 0
	case ">=":
		ok = cmp >= 0
	default:
		return Value{}, errAt(loc, "executor: unknown comparison operator %s", op)
	}
	if ok {
		return Integer(-1), nil
	}
	return Integer(0), nil
}

func (ex *Executor) evalUnary(v ast.UnaryOp, sc *scope) (Value, error) {
	right, err := ex.evalExpr(v.Right, sc)
	if err != nil {
		return Value{}, err
	}
	switch v.Op {
	case ast.Neg:
		return wrapNumeric(v.Type, -right.Float64()), nil
	case ast.Not:
		return wrapNumeric(v.Type, float64(^right.Int64())), nil
	case ast.Parens:
		return right, nil
	default:
		return Value{}, errAt(v.Loc(), "executor: unknown unary operator")
	}
}

func (ex *Executor) evalIndices(exprs []ast.Expr, sc *scope) ([]int64, error) {
	out := make([]int64, len(exprs))
	for i, e := range exprs {
		v, err := ex.evalExpr(e, sc)
		if err != nil {
			return nil, err
		}
		out[i] = v.Int64()
	}
	return out, nil
}

func (ex *Executor) resolveArray(ref ast.VarRef, sc *scope) (*ArrayVar, error) {
	env := ex.scopeFor(ref.Scope, sc)
	arr, ok := env.arrays[strings.ToUpper(ref.Name)]
	if !ok {
		return nil, errAt(ref.Loc(), "array %s is not dimensioned", ref.Name)
	}
	return arr, nil
}

func (ex *Executor) writeTarget(ref ast.VarRef, sc *scope, v Value) error {
	coerced := coerceToElem(ref.Type.Kind, v)
	if len(ref.Indices) > 0 {
		arr, err := ex.resolveArray(ref, sc)
		if err != nil {
			return err
		}
		idx, err := ex.evalIndices(ref.Indices, sc)
		if err != nil {
			return err
		}
		if err := arr.Set(idx, coerced); err != nil {
			return errAt(ref.Loc(), "%s", err.Error())
		}
		return nil
	}
	env := ex.scopeFor(ref.Scope, sc)
	env.locals[strings.ToUpper(ref.Name)] = coerced
	return nil
}

// scopeFor reports which scope a resolved VarRef's storage actually lives
// in: globals for ScopeGlobal/ScopeModuleLocal, or the caller-supplied
// active scope (module top level, or the current call's own bindings) for
// everything else.
func (ex *Executor) scopeFor(s ast.VarRefScope, sc *scope) *scope {
	if s == ast.ScopeGlobal || s == ast.ScopeModuleLocal {
		return ex.globals
	}
	return sc
}

func (ex *Executor) defaultValue(t types.Type) Value {
	switch t.Kind {
	case types.String:
		return Str("")
	case types.Long:
		return Long(0)
	case types.Single:
		return Single(0)
	case types.Double:
		return Double(0)
	default:
		return Integer(0)
	}
}

// wrapNumeric builds a Value of exactly t's elementary kind from a computed
// float64 result, the way every arithmetic/relational operator's static
// Type (set by internal/sema) says its result should be stored.
func wrapNumeric(t types.Type, f float64) Value {
	switch t.Kind {
	case types.Integer:
		return Integer(int64(f))
	case types.Long:
		return Long(int64(f))
	case types.Double:
		return Double(f)
	default:
		return Single(f)
	}
}

func inferElemKind(d *ast.DimDecl) types.Kind {
	if d.HasType {
		return d.ElemType
	}
	if k, ok := types.SigilKind(lastByte(d.Name)); ok {
		return k
	}
	return types.Single
}

func lastByte(s string) byte {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}
