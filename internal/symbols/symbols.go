// Package symbols implements the insertion-ordered, case-insensitive symbol
// table used by the semantic analyzer to resolve
// variable, constant and procedure names.
package symbols

import (
	"fmt"
	"strings"

	"github.com/gosuda/qbc/internal/types"
)

// Kind distinguishes what a Symbol denotes.
type Kind int

const (
	Var Kind = iota
	Arg
	Const
)

func (k Kind) String() string {
	switch k {
	case Var:
		return "var"
	case Arg:
		return "arg"
	case Const:
		return "const"
	default:
		return "unknown"
	}
}

// Scope tags where a Symbol's storage lives.
type Scope int

const (
	Local Scope = iota
	Global
)

func (s Scope) String() string {
	if s == Global {
		return "global"
	}
	return "local"
}

// Symbol is one entry in a Table.
type Symbol struct {
	Name  string // original-case spelling, as first declared
	Kind  Kind
	Type  types.Type
	Scope Scope
}

// Table is a flat, insertion-ordered, case-insensitive symbol table. QBasic
// identifiers are case-insensitive, so lookups fold to lowercase, but the
// original spelling is preserved on the Symbol for diagnostics.
type Table struct {
	outer *Table
	scope Scope
	order []string // lowercase keys, insertion order
	byKey map[string]*Symbol
}

// NewTable creates an empty table. outer may be nil for the outermost
// (module-global) table; a non-nil outer makes this a nested scope whose
// Lookup falls through to outer on miss.
func NewTable(outer *Table, scope Scope) *Table {
	return &Table{
		outer: outer,
		scope: scope,
		byKey: make(map[string]*Symbol),
	}
}

func key(name string) string { return strings.ToLower(name) }

// Define adds a symbol to this table only. It fails if a symbol with the
// same case-insensitive name already exists at this level.
func (t *Table) Define(sym Symbol) error {
	k := key(sym.Name)
	if _, exists := t.byKey[k]; exists {
		return fmt.Errorf("symbol %q already declared in this scope", sym.Name)
	}
	sym.Scope = t.scope
	cp := sym
	t.byKey[k] = &cp
	t.order = append(t.order, k)
	return nil
}

// Lookup searches this table, then each outer table in turn.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	for s := t; s != nil; s = s.outer {
		if sym, ok := s.byKey[key(name)]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupLocal checks only this table, ignoring outer scopes.
func (t *Table) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := t.byKey[key(name)]
	return sym, ok
}

// Symbols returns every symbol defined directly in this table, in the order
// they were defined.
func (t *Table) Symbols() []*Symbol {
	out := make([]*Symbol, len(t.order))
	for i, k := range t.order {
		out[i] = t.byKey[k]
	}
	return out
}

// Scope reports which scope kind this table represents.
func (t *Table) Scope() Scope { return t.scope }
