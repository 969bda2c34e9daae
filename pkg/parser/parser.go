// Package parser builds pkg/ast trees from ppppl surface syntax, by
// recursive descent with precedence climbing over pkg/lexer tokens.
package parser

import (
	"fmt"
	"math/big"

	"github.com/pppplang/ppppl/pkg/ast"
	"github.com/pppplang/ppppl/pkg/lexer"
	"github.com/pppplang/ppppl/pkg/value"
)

// Parser consumes a Lexer one token of lookahead at a time.
type Parser struct {
	l    *lexer.Lexer
	tok  lexer.Token
	prev lexer.Token
}

// New returns a Parser over src.
func New(src string) *Parser {
	p := &Parser{l: lexer.New(src)}
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.prev = p.tok
	p.tok = p.l.Next()
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("parse error at offset %d: %s", p.tok.Offset, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if p.tok.Type != tt {
		return lexer.Token{}, p.errorf("expected %s, got %s", tt, p.tok.Type)
	}
	tok := p.tok
	p.advance()
	return tok, nil
}

// ParseModule parses a full program: zero or more block declarations.
func ParseModule(src string) (ast.Module, error) {
	p := New(src)
	var blocks []ast.Block
	for p.tok.Type != lexer.EOF {
		b, err := p.parseBlock()
		if err != nil {
			return ast.Module{}, err
		}
		blocks = append(blocks, b)
	}
	return ast.Module{Blocks: blocks}, nil
}

// ParseExp parses a single standalone expression, consuming the whole input.
func ParseExp(src string) (ast.Exp, error) {
	p := New(src)
	e, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != lexer.EOF {
		return nil, p.errorf("unexpected trailing token %s", p.tok.Type)
	}
	return e, nil
}

// ParseAssignment parses a single "lval = expr" string, consuming the whole
// input, for the CLI's write subcommand.
func ParseAssignment(src string) (ast.LVal, ast.Exp, error) {
	p := New(src)
	lval, err := p.parseLVal()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(lexer.ASSIGN); err != nil {
		return nil, nil, err
	}
	rhs, err := p.parseExp()
	if err != nil {
		return nil, nil, err
	}
	if p.tok.Type != lexer.EOF {
		return nil, nil, p.errorf("unexpected trailing token %s", p.tok.Type)
	}
	return lval, rhs, nil
}

func (p *Parser) parseBlock() (ast.Block, error) {
	start := p.tok.Offset
	if _, err := p.expect(lexer.BLOCK); err != nil {
		return ast.Block{}, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return ast.Block{}, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return ast.Block{}, err
	}
	var params []ast.Param
	for p.tok.Type != lexer.RPAREN {
		if len(params) > 0 {
			if _, err := p.expect(lexer.COMMA); err != nil {
				return ast.Block{}, err
			}
		}
		pname, err := p.expect(lexer.IDENT)
		if err != nil {
			return ast.Block{}, err
		}
		if _, err := p.expect(lexer.IN); err != nil {
			return ast.Block{}, err
		}
		domain, err := p.parseExp()
		if err != nil {
			return ast.Block{}, err
		}
		params = append(params, ast.Param{Name: pname.Lit, Exp: domain})
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return ast.Block{}, err
	}
	var guards []ast.Exp
	for p.tok.Type == lexer.WHEN {
		p.advance()
		g, err := p.parseExp()
		if err != nil {
			return ast.Block{}, err
		}
		guards = append(guards, g)
		for p.tok.Type == lexer.COMMA {
			p.advance()
			g, err := p.parseExp()
			if err != nil {
				return ast.Block{}, err
			}
			guards = append(guards, g)
		}
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return ast.Block{}, err
	}
	var assigns []ast.Assignment
	for p.tok.Type != lexer.RBRACE {
		lv, err := p.parseLVal()
		if err != nil {
			return ast.Block{}, err
		}
		if _, err := p.expect(lexer.ASSIGN); err != nil {
			return ast.Block{}, err
		}
		rhs, err := p.parseExp()
		if err != nil {
			return ast.Block{}, err
		}
		if _, err := p.expect(lexer.SEMI); err != nil {
			return ast.Block{}, err
		}
		assigns = append(assigns, ast.Assignment{LVal: lv, Exp: rhs})
	}
	end, err := p.expect(lexer.RBRACE)
	if err != nil {
		return ast.Block{}, err
	}
	return ast.Block{
		Pos:         ast.Pos{Start: start, End: end.Offset},
		Name:        name.Lit,
		Parameters:  params,
		Guards:      guards,
		Assignments: assigns,
	}, nil
}

func (p *Parser) parseLVal() (ast.LVal, error) {
	var lv ast.LVal
	start := p.tok.Offset
	switch p.tok.Type {
	case lexer.ROOT:
		p.advance()
		lv = ast.LRoot{Pos: ast.Pos{Start: start, End: p.prev.Offset}}
	case lexer.IDENT:
		name := p.tok.Lit
		p.advance()
		lv = ast.LName{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Name: name}
	default:
		return nil, p.errorf("expected an l-value, got %s", p.tok.Type)
	}
	for p.tok.Type == lexer.LBRACKET {
		p.advance()
		key, err := p.parseExp()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(lexer.RBRACKET)
		if err != nil {
			return nil, err
		}
		lv = ast.LIndex{Pos: ast.Pos{Start: start, End: end.Offset}, Of: lv, Key: key}
	}
	return lv, nil
}

func (p *Parser) parseExp() (ast.Exp, error) {
	return p.parseTernary()
}

func (p *Parser) parseTernary() (ast.Exp, error) {
	start := p.tok.Offset
	then, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != lexer.IF {
		return then, nil
	}
	p.advance()
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.ELSE); err != nil {
		return nil, err
	}
	els, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	return ast.Ternary{
		Pos:  ast.Pos{Start: start, End: p.prev.Offset},
		Op:   ast.IF,
		Cond: cond, Then: then, Else: els,
	}, nil
}

func (p *Parser) parseOr() (ast.Exp, error) {
	return p.parseLeftAssoc(p.parseAnd, map[lexer.TokenType]ast.BinaryOp{lexer.OR: ast.OR})
}

func (p *Parser) parseAnd() (ast.Exp, error) {
	return p.parseLeftAssoc(p.parseEq, map[lexer.TokenType]ast.BinaryOp{lexer.AND: ast.AND})
}

func (p *Parser) parseEq() (ast.Exp, error) {
	return p.parseLeftAssoc(p.parseCmp, map[lexer.TokenType]ast.BinaryOp{
		lexer.EQ: ast.EQ, lexer.NE: ast.NE,
	})
}

func (p *Parser) parseCmp() (ast.Exp, error) {
	return p.parseLeftAssoc(p.parseAdditive, map[lexer.TokenType]ast.BinaryOp{
		lexer.LT: ast.LT, lexer.LE: ast.LE, lexer.GT: ast.GT, lexer.GE: ast.GE,
	})
}

func (p *Parser) parseAdditive() (ast.Exp, error) {
	return p.parseLeftAssoc(p.parseMult, map[lexer.TokenType]ast.BinaryOp{
		lexer.PLUS: ast.PLUS, lexer.MINUS: ast.MINUS, lexer.CONCAT: ast.CONCAT,
	})
}

func (p *Parser) parseMult() (ast.Exp, error) {
	return p.parseLeftAssoc(p.parseUnary, map[lexer.TokenType]ast.BinaryOp{
		lexer.STAR: ast.TIMES, lexer.SLASH: ast.DIVIDE, lexer.PERCENT: ast.MOD,
	})
}

func (p *Parser) parseLeftAssoc(next func() (ast.Exp, error), ops map[lexer.TokenType]ast.BinaryOp) (ast.Exp, error) {
	start := p.tok.Offset
	x, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ops[p.tok.Type]
		if !ok {
			return x, nil
		}
		p.advance()
		y, err := next()
		if err != nil {
			return nil, err
		}
		x = ast.Binary{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Op: op, X: x, Y: y}
	}
}

func (p *Parser) parseUnary() (ast.Exp, error) {
	start := p.tok.Offset
	switch p.tok.Type {
	case lexer.NOT:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Op: ast.NOT, X: x}, nil
	case lexer.MINUS:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Op: ast.NEGATE, X: x}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (ast.Exp, error) {
	start := p.tok.Offset
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.Type {
		case lexer.LBRACKET:
			p.advance()
			key, err := p.parseExp()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBRACKET); err != nil {
				return nil, err
			}
			x = ast.Binary{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Op: ast.INDEX, X: x, Y: key}
		case lexer.IN:
			p.advance()
			rhs, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			x = ast.Binary{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Op: ast.IN, X: x, Y: rhs}
		default:
			return x, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Exp, error) {
	start := p.tok.Offset
	switch p.tok.Type {
	case lexer.INT:
		lit := p.tok.Lit
		p.advance()
		n, ok := new(big.Int).SetString(lit, 10)
		if !ok {
			return nil, p.errorf("invalid integer literal %q", lit)
		}
		return ast.Literal{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Val: value.IntVal(n)}, nil
	case lexer.TRUE:
		p.advance()
		return ast.Literal{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Val: value.BoolVal(true)}, nil
	case lexer.FALSE:
		p.advance()
		return ast.Literal{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Val: value.BoolVal(false)}, nil
	case lexer.STRING:
		lit := p.tok.Lit
		p.advance()
		return ast.Literal{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Val: value.BlobString(lit)}, nil
	case lexer.ROOT:
		p.advance()
		return ast.Root{Pos: ast.Pos{Start: start, End: p.prev.Offset}}, nil
	case lexer.IDENT:
		name := p.tok.Lit
		p.advance()
		return ast.Name{Pos: ast.Pos{Start: start, End: p.prev.Offset}, Name: name}, nil
	case lexer.LPAREN:
		p.advance()
		e, err := p.parseExp()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, p.errorf("unexpected token %s in expression", p.tok.Type)
	}
}
