package parser

import (
	"strconv"

	"github.com/gosuda/qbc/internal/ast"
	"github.com/gosuda/qbc/internal/token"
	"github.com/gosuda/qbc/internal/types"
)

// parseExpr is the entry point. Precedence climbs from loosest to tightest:
// OR, AND, NOT, relational, +-, */ , \ (integer division), MOD, unary -, ^,
// primary.
func (p *parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.OR {
		loc := p.loc()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Base: ast.WithLoc(loc), Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.AND {
		loc := p.loc()
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Base: ast.WithLoc(loc), Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (ast.Expr, error) {
	if p.cur().Kind == token.NOT {
		loc := p.loc()
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return ast.UnaryOp{Base: ast.WithLoc(loc), Op: ast.Not, Right: operand}, nil
	}
	return p.parseRelational()
}

func (p *parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for isRelOp(p.cur().Kind) {
		loc := p.loc()
		op := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Base: ast.WithLoc(loc), Op: relOpLit(op.Kind), Left: left, Right: right}
	}
	return left, nil
}

func isRelOp(k token.Kind) bool {
	switch k {
	case token.EQ, token.NE, token.LT, token.LTE, token.GT, token.GTE:
		return true
	default:
		return false
	}
}

func relOpLit(k token.Kind) string {
	switch k {
	case token.EQ:
		return "="
	case token.NE:
		return "<>"
	case token.LT:
		return "<"
	case token.LTE:
		return "<="
	case token.GT:
		return ">"
	case token.GTE:
		return ">="
	default:
		return "?"
	}
}

func (p *parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.ADD || p.cur().Kind == token.SUB {
		loc := p.loc()
		op := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lit := "+"
		if op.Kind == token.SUB {
			lit = "-"
		}
		left = ast.BinaryOp{Base: ast.WithLoc(loc), Op: lit, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseIntDiv()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.MUL || p.cur().Kind == token.DIV {
		loc := p.loc()
		op := p.advance()
		right, err := p.parseIntDiv()
		if err != nil {
			return nil, err
		}
		lit := "*"
		if op.Kind == token.DIV {
			lit = "/"
		}
		left = ast.BinaryOp{Base: ast.WithLoc(loc), Op: lit, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseIntDiv() (ast.Expr, error) {
	left, err := p.parseMod()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.INTDIV {
		loc := p.loc()
		p.advance()
		right, err := p.parseMod()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Base: ast.WithLoc(loc), Op: "\\", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMod() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.MOD {
		loc := p.loc()
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Base: ast.WithLoc(loc), Op: "MOD", Left: left, Right: right}
	}
	return left, nil
}

// parseUnary handles a leading minus. Exponentiation binds tighter than
// unary minus (-2^2 == -(2^2)), so the operand is parsed by parseExponent,
// which in turn recurses into parseUnary on its right-hand side to let a
// negative exponent chain correctly (2^-2).
func (p *parser) parseUnary() (ast.Expr, error) {
	if p.cur().Kind == token.SUB {
		loc := p.loc()
		p.advance()
		operand, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		return ast.UnaryOp{Base: ast.WithLoc(loc), Op: ast.Neg, Right: operand}, nil
	}
	if p.cur().Kind == token.ADD {
		p.advance()
		return p.parseExponent()
	}
	return p.parseExponent()
}

func (p *parser) parseExponent() (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == token.EXP {
		loc := p.loc()
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Base: ast.WithLoc(loc), Op: "^", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	loc := p.loc()
	switch p.cur().Kind {
	case token.NUMBER_LIT:
		lit := p.advance().Lit
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, p.errHere("invalid numeric literal %q", lit)
		}
		return ast.Literal{Base: ast.WithLoc(loc), Num: v, Type: types.Elementary(types.Single)}, nil
	case token.STRING_LIT:
		lit := p.advance().Lit
		return ast.Literal{Base: ast.WithLoc(loc), IsString: true, Str: lit, Type: types.Elementary(types.String)}, nil
	case token.LPAREN:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return ast.UnaryOp{Base: ast.WithLoc(loc), Op: ast.Parens, Right: inner}, nil
	case token.LBOUND, token.UBOUND:
		name := p.advance().Lit
		args, err := p.parseParenArgs()
		if err != nil {
			return nil, err
		}
		return ast.FnCall{Base: ast.WithLoc(loc), Name: name, Args: args}, nil
	case token.IDENTIFIER:
		name := p.advance().Lit
		if p.cur().Kind == token.LPAREN {
			args, err := p.parseParenArgs()
			if err != nil {
				return nil, err
			}
			return ast.VarRef{Base: ast.WithLoc(loc), Name: name, Indices: args}, nil
		}
		return ast.VarRef{Base: ast.WithLoc(loc), Name: name}, nil
	default:
		return nil, p.errHere("unexpected token %s %q in expression", p.cur().Kind, p.cur().Lit)
	}
}

// parseParenArgs parses a parenthesised, comma-separated argument/index
// list: "(" [expr ("," expr)*] ")".
func (p *parser) parseParenArgs() ([]ast.Expr, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if p.cur().Kind != token.RPAREN {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}
