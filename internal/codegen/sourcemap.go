package codegen

// SourceMapEntry ties one position in the flattened instruction stream
// back to the source line/column it was lowered from, so the CLI's
// step debugger and any runtime error can report a source position
// instead of an opaque instruction index.
type SourceMapEntry struct {
	OutputIndex int `json:"outputIndex"`
	Line        int `json:"line"`
	Col         int `json:"col"`
}

// buildSourceMap walks the module's flattened top-level stream and
// records one entry per instruction. Procedure bodies carry their own
// positions on each CompiledStmt already; the map only needs to cover
// what the debugger steps through by flat index, which is the top-level
// stream (proc bodies are entered by call, addressed by their own index
// space).
func buildSourceMap(cm *CompiledModule) []SourceMapEntry {
	entries := make([]SourceMapEntry, len(cm.Stmts))
	for i, s := range cm.Stmts {
		entries[i] = SourceMapEntry{OutputIndex: i, Line: s.Loc.Line, Col: s.Loc.Col}
	}
	return entries
}
