package sema

import "github.com/gosuda/qbc/internal/types"

// builtinSig is the type-checking signature the analyzer uses to validate a
// call to one of the built-in functions the runtime provides. It records
// only arity and return type; argument types are not checked, here or at
// run time, so e.g. a string passed where a number is expected is converted
// by the built-in itself.
type builtinSig struct {
	MinArgs int
	MaxArgs int
	Return  types.Kind
}

// builtins is the closed set of built-ins the runtime evaluates: its
// function registry plus LBOUND/UBOUND, which the executor handles itself.
// Keyed by uppercase name.
var builtins = map[string]builtinSig{
	"CHR$":   {1, 1, types.String},
	"INSTR":  {2, 3, types.Integer},
	"LCASE$": {1, 1, types.String},
	"UCASE$": {1, 1, types.String},
	"LEFT$":  {2, 2, types.String},
	"RIGHT$": {2, 2, types.String},
	"MID$":   {2, 3, types.String},
	"LEN":    {1, 1, types.Integer},
	"STR$":   {1, 1, types.String},
	"VAL":    {1, 1, types.Double},
	"LBOUND": {1, 2, types.Integer},
	"UBOUND": {1, 2, types.Integer},
}
