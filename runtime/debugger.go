package eruntime

import (
	"errors"

	"github.com/gosuda/qbc/internal/codegen"
)

// Stepper drives an Executor's top-level stream one instruction at a time,
// for cmd/qbc's interactive debugger. A GOSUB target still runs as a
// single jump like ordinary execution; a FUNCTION call reached through an
// expression still runs its whole body in one step, the same simplification
// Run() already makes for procedure calls.
type Stepper struct {
	ex         *Executor
	pc         int
	gosubStack []int
	finished   bool
	err        error
}

// NewStepper returns a Stepper positioned at ex's module's first top-level
// instruction.
func NewStepper(ex *Executor) *Stepper {
	return &Stepper{ex: ex}
}

// Finished reports whether the stream has stopped, either by reaching an
// END statement, running off the end of the stream, or hitting an error.
func (d *Stepper) Finished() bool { return d.finished }

// Err returns the error that stopped the run, or nil for a clean finish
// (including one reached via an explicit END statement).
func (d *Stepper) Err() error { return d.err }

// PC returns the index of the instruction Step will execute next.
func (d *Stepper) PC() int { return d.pc }

// Peek returns the instruction about to execute, and whether one exists.
func (d *Stepper) Peek() (codegen.CompiledStmt, bool) {
	if d.finished || d.pc >= len(d.ex.mod.Stmts) {
		return codegen.CompiledStmt{}, false
	}
	return d.ex.mod.Stmts[d.pc], true
}

// Step executes exactly one instruction and reports whether the stream is
// still running afterward.
func (d *Stepper) Step() bool {
	if d.finished {
		return false
	}
	if d.pc >= len(d.ex.mod.Stmts) {
		d.finished = true
		return false
	}
	next, err := d.ex.step(d.ex.mod.Stmts, d.ex.mod.Labels, d.ex.globals, d.pc, &d.gosubStack)
	if err != nil {
		d.finished = true
		if !errors.Is(err, ErrProgramEnded) {
			d.err = err
		}
		return false
	}
	d.pc = next
	return true
}

// Globals returns a snapshot of the module's global scalar variables,
// keyed by their upper-cased name, for the debugger's variable pane.
func (d *Stepper) Globals() map[string]Value {
	snap := make(map[string]Value, len(d.ex.globals.locals))
	for k, v := range d.ex.globals.locals {
		snap[k] = v
	}
	return snap
}
