// Package parser turns a token stream into an internal/ast.Module via
// recursive descent for statements and precedence climbing for expressions.
package parser

import (
	"fmt"
	"strconv"

	"github.com/gosuda/qbc/internal/ast"
	"github.com/gosuda/qbc/internal/token"
	"github.com/gosuda/qbc/internal/types"
)

// Error is a ParseError: an unexpected token at a source position.
type Error struct {
	Line    int
	Col     int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ParseError: %s at line %d, col %d", e.Message, e.Line, e.Col)
}

type parser struct {
	toks []token.Token
	pos  int

	// pendingNext holds counter names from a single "NEXT i, j" statement
	// that closes more than one enclosing FOR at once; each FOR pops one
	// name off the front as it closes.
	pendingNext []string
}

// Parse consumes a full token stream (as produced by internal/lexer) and
// returns the parsed module.
func Parse(toks []token.Token) (*ast.Module, error) {
	p := &parser{toks: toks}
	mod := &ast.Module{DataLabels: map[string]int{}}

	p.skipSeparators()
	for !p.atEOF() {
		if p.cur().Kind == token.FUNCTION || p.cur().Kind == token.SUB_KW {
			proc, err := p.parseProc()
			if err != nil {
				return nil, err
			}
			mod.Procs = append(mod.Procs, proc)
		} else {
			stmt, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			if data, ok := stmt.(ast.Data); ok {
				mod.DataPool = append(mod.DataPool, literalsOf(data)...)
			} else if lbl, ok := stmt.(ast.Label); ok {
				mod.DataLabels[lbl.Name] = len(mod.DataPool)
				mod.Stmts = append(mod.Stmts, stmt)
			} else {
				mod.Stmts = append(mod.Stmts, stmt)
			}
		}
		p.skipSeparators()
	}
	return mod, nil
}

func literalsOf(d ast.Data) []ast.Literal {
	out := make([]ast.Literal, 0, len(d.Values))
	for _, v := range d.Values {
		if lit, ok := v.(ast.Literal); ok {
			out = append(out, lit)
		}
	}
	return out
}

// --- token stream helpers ---

func (p *parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos+n]
}

func (p *parser) atEOF() bool { return p.cur().Kind == token.EOF }

func (p *parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) loc() ast.Loc {
	t := p.cur()
	return ast.Loc{Line: t.Line, Col: t.Col}
}

func (p *parser) errHere(format string, args ...interface{}) error {
	t := p.cur()
	return &Error{Line: t.Line, Col: t.Col, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, p.errHere("expected %s, got %s %q", k, p.cur().Kind, p.cur().Lit)
	}
	return p.advance(), nil
}

// skipSeparators consumes any run of NEWLINE/COLON tokens.
func (p *parser) skipSeparators() {
	for p.cur().Kind == token.NEWLINE || p.cur().Kind == token.COLON {
		p.advance()
	}
}

// atStmtEnd reports whether the current token ends a statement (COLON,
// NEWLINE or EOF) without consuming it.
func (p *parser) atStmtEnd() bool {
	switch p.cur().Kind {
	case token.COLON, token.NEWLINE, token.EOF:
		return true
	default:
		return false
	}
}

// --- statement sequences ---

// parseStmts parses statements, skipping separators between them, until
// stop reports true (checked before each statement, without consuming).
func (p *parser) parseStmts(stop func() bool) ([]ast.Stmt, error) {
	var out []ast.Stmt
	p.skipSeparators()
	for !p.atEOF() && !stop() {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		p.skipSeparators()
	}
	return out, nil
}

// parseSingleLineStmts parses statements separated only by COLON, stopping
// (without consuming) at NEWLINE, EOF, or any of stop. Used for the
// single-line IF form, whose body never spans more than one physical line.
func (p *parser) parseSingleLineStmts(stop ...token.Kind) ([]ast.Stmt, error) {
	var out []ast.Stmt
	for p.cur().Kind == token.COLON {
		p.advance()
	}
	for {
		switch p.cur().Kind {
		case token.NEWLINE, token.EOF:
			return out, nil
		}
		for _, k := range stop {
			if p.cur().Kind == k {
				return out, nil
			}
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		for p.cur().Kind == token.COLON {
			p.advance()
		}
	}
}

func (p *parser) isEndOf(kinds ...token.Kind) bool {
	if p.cur().Kind != token.END {
		return false
	}
	next := p.peekAt(1).Kind
	for _, k := range kinds {
		if next == k {
			return true
		}
	}
	return false
}

// --- top-level statement dispatch ---

func (p *parser) parseStmt() (ast.Stmt, error) {
	loc := p.loc()
	switch p.cur().Kind {
	case token.IDENTIFIER:
		if p.peekAt(1).Kind == token.COLON {
			follow := p.peekAt(2).Kind
			if follow == token.NEWLINE || follow == token.EOF {
				name := p.advance().Lit
				p.advance() // COLON
				return ast.Label{Base: ast.WithLoc(loc), Name: name}, nil
			}
		}
		return p.parseAssign(loc)
	case token.LET:
		p.advance()
		return p.parseAssign(p.loc())
	case token.GOTO:
		p.advance()
		name, err := p.expect(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		return ast.Goto{Base: ast.WithLoc(loc), Label: name.Lit}, nil
	case token.GOSUB:
		p.advance()
		name, err := p.expect(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		return ast.Gosub{Base: ast.WithLoc(loc), DestLabel: name.Lit}, nil
	case token.RETURN:
		p.advance()
		dest := ""
		if p.cur().Kind == token.IDENTIFIER {
			dest = p.advance().Lit
		}
		return ast.Return{Base: ast.WithLoc(loc), DestLabel: dest}, nil
	case token.EXIT:
		p.advance()
		switch p.cur().Kind {
		case token.FOR:
			p.advance()
			return ast.ExitFor{Base: ast.WithLoc(loc)}, nil
		case token.DO:
			p.advance()
			return ast.ExitLoop{Base: ast.WithLoc(loc)}, nil
		default:
			return nil, p.errHere("expected FOR or DO after EXIT")
		}
	case token.END:
		p.advance()
		return ast.End{Base: ast.WithLoc(loc)}, nil
	case token.IF:
		return p.parseIf(loc)
	case token.DO:
		return p.parseDo(loc)
	case token.FOR:
		return p.parseFor(loc)
	case token.NEXT:
		return p.parseNext(loc)
	case token.PRINT:
		return p.parsePrint(loc)
	case token.INPUT:
		return p.parseInput(loc)
	case token.DIM:
		return p.parseDim(loc)
	case token.CONST:
		return p.parseConst(loc)
	case token.DATA:
		return p.parseData(loc)
	case token.READ:
		return p.parseRead(loc)
	case token.RESTORE:
		p.advance()
		label := ""
		if p.cur().Kind == token.IDENTIFIER {
			label = p.advance().Lit
		}
		return ast.Restore{Base: ast.WithLoc(loc), Label: label}, nil
	case token.SWAP:
		return p.parseSwap(loc)
	default:
		return nil, p.errHere("unexpected token %s %q", p.cur().Kind, p.cur().Lit)
	}
}

func (p *parser) parseAssign(loc ast.Loc) (ast.Stmt, error) {
	target, err := p.parseLValue()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EQ); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ast.Assign{Base: ast.WithLoc(loc), Target: target, Value: value}, nil
}

func (p *parser) parseLValue() (ast.Expr, error) {
	loc := p.loc()
	name, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	ref := ast.VarRef{Base: ast.WithLoc(loc), Name: name.Lit}
	if p.cur().Kind == token.LPAREN {
		idx, err := p.parseParenArgs()
		if err != nil {
			return nil, err
		}
		ref.Indices = idx
	}
	return ref, nil
}

// --- IF ---

func (p *parser) parseIf(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // IF
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.THEN); err != nil {
		return nil, err
	}

	// Single-line form: IF cond THEN <stmt> [: <stmt> ...] [ELSE <stmt> ...],
	// entirely on one physical line; the line's NEWLINE ends the whole IF
	// rather than separating statements, so it must not be consumed here.
	if p.cur().Kind != token.NEWLINE && p.cur().Kind != token.EOF {
		stmts, err := p.parseSingleLineStmts(token.ELSE, token.ELSEIF)
		if err != nil {
			return nil, err
		}
		node := ast.If{Base: ast.WithLoc(loc), Arms: []ast.IfArm{{Cond: cond, Stmts: stmts}}}
		if p.cur().Kind == token.ELSE {
			p.advance()
			elseStmts, err := p.parseSingleLineStmts()
			if err != nil {
				return nil, err
			}
			node.ElseStmts = elseStmts
		}
		return node, nil
	}

	node := ast.If{Base: ast.WithLoc(loc)}
	stmts, err := p.parseStmts(func() bool {
		return p.cur().Kind == token.ELSEIF || p.cur().Kind == token.ELSE || p.isEndOf(token.IF)
	})
	if err != nil {
		return nil, err
	}
	node.Arms = append(node.Arms, ast.IfArm{Cond: cond, Stmts: stmts})

	for p.cur().Kind == token.ELSEIF {
		p.advance()
		c, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.THEN); err != nil {
			return nil, err
		}
		body, err := p.parseStmts(func() bool {
			return p.cur().Kind == token.ELSEIF || p.cur().Kind == token.ELSE || p.isEndOf(token.IF)
		})
		if err != nil {
			return nil, err
		}
		node.Arms = append(node.Arms, ast.IfArm{Cond: c, Stmts: body})
	}

	if p.cur().Kind == token.ELSE {
		p.advance()
		body, err := p.parseStmts(func() bool { return p.isEndOf(token.IF) })
		if err != nil {
			return nil, err
		}
		node.ElseStmts = body
	}

	if !p.isEndOf(token.IF) {
		return nil, p.errHere("expected END IF")
	}
	p.advance() // END
	p.advance() // IF
	return node, nil
}

// --- DO / LOOP ---

func (p *parser) parseDo(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // DO

	if p.cur().Kind == token.WHILE || p.cur().Kind == token.UNTIL {
		negated := p.cur().Kind == token.UNTIL
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body, err := p.parseStmts(func() bool { return p.cur().Kind == token.LOOP })
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LOOP); err != nil {
			return nil, err
		}
		return ast.CondLoop{Base: ast.WithLoc(loc), Structure: ast.CondBeforeStmts, Negated: negated, Cond: cond, Stmts: body}, nil
	}

	body, err := p.parseStmts(func() bool { return p.cur().Kind == token.LOOP })
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LOOP); err != nil {
		return nil, err
	}
	if p.cur().Kind == token.WHILE || p.cur().Kind == token.UNTIL {
		negated := p.cur().Kind == token.UNTIL
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.CondLoop{Base: ast.WithLoc(loc), Structure: ast.CondAfterStmts, Negated: negated, Cond: cond, Stmts: body}, nil
	}
	return ast.UncondLoop{Base: ast.WithLoc(loc), Stmts: body}, nil
}

// --- FOR / NEXT ---

func (p *parser) parseFor(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // FOR
	counter, err := p.parseLValue()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EQ); err != nil {
		return nil, err
	}
	start, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TO); err != nil {
		return nil, err
	}
	end, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var step ast.Expr
	if p.cur().Kind == token.STEP {
		p.advance()
		step, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	stop := func() bool { return p.cur().Kind == token.NEXT || len(p.pendingNext) > 0 }
	body, err := p.parseStmts(stop)
	if err != nil {
		return nil, err
	}
	// A single "NEXT i, j" can close several nested FORs at once; the
	// innermost FOR consumes the NEXT token and the whole counter list,
	// then each enclosing FOR pops one name off the front as it closes.
	if len(p.pendingNext) == 0 {
		if _, err := p.expect(token.NEXT); err != nil {
			return nil, err
		}
		for p.cur().Kind == token.IDENTIFIER {
			p.pendingNext = append(p.pendingNext, p.advance().Lit)
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}
	nextName := ""
	if len(p.pendingNext) > 0 {
		nextName = p.pendingNext[0]
		p.pendingNext = p.pendingNext[1:]
	}
	return ast.For{Base: ast.WithLoc(loc), Counter: counter, Start: start, End: end, Step: step, Stmts: body, NextName: nextName}, nil
}

func (p *parser) parseNext(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // NEXT
	var names []string
	for p.cur().Kind == token.IDENTIFIER {
		names = append(names, p.advance().Lit)
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return ast.Next{Base: ast.WithLoc(loc), Counters: names}, nil
}

// --- PRINT / INPUT ---

func (p *parser) parsePrint(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // PRINT
	node := ast.Print{Base: ast.WithLoc(loc)}
	for !p.atStmtEnd() {
		switch p.cur().Kind {
		case token.COMMA:
			p.advance()
			node.Args = append(node.Args, ast.PrintItem{Kind: ast.PrintComma})
		case token.SEMICOLON:
			p.advance()
			node.Args = append(node.Args, ast.PrintItem{Kind: ast.PrintSemicolon})
		default:
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			node.Args = append(node.Args, ast.PrintItem{Kind: ast.PrintValue, Expr: e})
		}
	}
	return node, nil
}

func (p *parser) parseInput(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // INPUT
	node := ast.Input{Base: ast.WithLoc(loc)}
	if p.cur().Kind == token.STRING_LIT {
		node.Prompt = p.advance().Lit
		if p.cur().Kind == token.SEMICOLON || p.cur().Kind == token.COMMA {
			p.advance()
		}
	}
	for {
		lv, err := p.parseLValue()
		if err != nil {
			return nil, err
		}
		node.Targets = append(node.Targets, lv)
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return node, nil
}

// --- DIM / CONST / DATA / READ / SWAP ---

func (p *parser) parseDim(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // DIM
	name, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	node := ast.DimDecl{Base: ast.WithLoc(loc), Name: name.Lit}

	if p.cur().Kind == token.LPAREN {
		p.advance()
		for {
			first, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			bound := ast.DimBound{Upper: first}
			if p.cur().Kind == token.TO {
				p.advance()
				upper, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				bound.Lower = first
				bound.Upper = upper
			}
			node.Dims = append(node.Dims, bound)
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
	}

	if p.cur().Kind == token.AS {
		p.advance()
		kind, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		node.ElemType = kind
		node.HasType = true
	} else if k, ok := types.SigilKind(lastByte(name.Lit)); ok {
		node.ElemType = k
		node.HasType = true
	}
	return node, nil
}

func lastByte(s string) byte {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func (p *parser) parseTypeName() (types.Kind, error) {
	switch p.cur().Kind {
	case token.INTEGER:
		p.advance()
		return types.Integer, nil
	case token.LONG:
		p.advance()
		return types.Long, nil
	case token.SINGLE:
		p.advance()
		return types.Single, nil
	case token.DOUBLE:
		p.advance()
		return types.Double, nil
	case token.STRING:
		p.advance()
		return types.String, nil
	default:
		return 0, p.errHere("expected a type name")
	}
}

func (p *parser) parseConst(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // CONST
	name, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EQ); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ast.ConstDecl{Base: ast.WithLoc(loc), Name: name.Lit, Value: value}, nil
}

func (p *parser) parseData(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // DATA
	node := ast.Data{Base: ast.WithLoc(loc)}
	for {
		e, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		node.Values = append(node.Values, e)
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return node, nil
}

func (p *parser) parseLiteral() (ast.Expr, error) {
	loc := p.loc()
	sign := 1.0
	if p.cur().Kind == token.SUB {
		p.advance()
		sign = -1
	} else if p.cur().Kind == token.ADD {
		p.advance()
	}
	switch p.cur().Kind {
	case token.STRING_LIT:
		if sign < 0 {
			return nil, p.errHere("expected a literal in DATA statement")
		}
		lit := p.advance().Lit
		return ast.Literal{Base: ast.WithLoc(loc), IsString: true, Str: lit, Type: types.Elementary(types.String)}, nil
	case token.NUMBER_LIT:
		lit := p.advance().Lit
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, p.errHere("invalid numeric literal %q", lit)
		}
		return ast.Literal{Base: ast.WithLoc(loc), Num: sign * v, Type: types.Elementary(types.Single)}, nil
	default:
		return nil, p.errHere("expected a literal in DATA statement")
	}
}

func (p *parser) parseRead(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // READ
	node := ast.Read{Base: ast.WithLoc(loc)}
	for {
		lv, err := p.parseLValue()
		if err != nil {
			return nil, err
		}
		node.Targets = append(node.Targets, lv)
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return node, nil
}

func (p *parser) parseSwap(loc ast.Loc) (ast.Stmt, error) {
	p.advance() // SWAP
	a, err := p.parseLValue()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	b, err := p.parseLValue()
	if err != nil {
		return nil, err
	}
	return ast.Swap{Base: ast.WithLoc(loc), A: a, B: b}, nil
}

// --- FUNCTION / SUB procedures ---

func (p *parser) parseProc() (*ast.FnProc, error) {
	isFunction := p.cur().Kind == token.FUNCTION
	p.advance() // FUNCTION or SUB
	name, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	proc := &ast.FnProc{Name: name.Lit, IsFunction: isFunction}

	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	for p.cur().Kind != token.RPAREN {
		pname, err := p.expect(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: pname.Lit}
		if p.cur().Kind == token.AS {
			p.advance()
			k, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			param.Type = types.Elementary(k)
			param.HasType = true
		} else if k, ok := types.SigilKind(lastByte(pname.Lit)); ok {
			param.Type = types.Elementary(k)
			param.HasType = true
		}
		proc.Params = append(proc.Params, param)
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	if isFunction {
		if p.cur().Kind == token.AS {
			p.advance()
			k, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			proc.ReturnType = types.Elementary(k)
		} else if k, ok := types.SigilKind(lastByte(name.Lit)); ok {
			proc.ReturnType = types.Elementary(k)
		} else {
			proc.ReturnType = types.Elementary(types.Single)
		}
	}

	endKinds := []token.Kind{token.SUB_KW}
	if isFunction {
		endKinds = []token.Kind{token.FUNCTION}
	}
	body, err := p.parseStmts(func() bool { return p.isEndOf(endKinds...) })
	if err != nil {
		return nil, err
	}
	proc.Stmts = body
	if !p.isEndOf(endKinds...) {
		return nil, p.errHere("expected END FUNCTION or END SUB")
	}
	p.advance() // END
	p.advance() // FUNCTION or SUB
	return proc, nil
}
