package parser

import (
	"tenor/internal/ast"
	"tenor/internal/lexer"
)

func (p *Parser) parseLiteral() (ast.RawLiteral, error) {
	tok := p.peek()
	switch {
	case p.isWord("true"):
		p.advance()
		return ast.RawLiteral{Kind: ast.LitBool, Bool: true}, nil
	case p.isWord("false"):
		p.advance()
		return ast.RawLiteral{Kind: ast.LitBool, Bool: false}, nil
	case tok.Kind == lexer.TokInt:
		p.advance()
		n, err := parseI64(tok.Text)
		if err != nil {
			return ast.RawLiteral{}, p.errf("malformed integer literal %q", tok.Text)
		}
		return ast.RawLiteral{Kind: ast.LitInt, Int: n}, nil
	case tok.Kind == lexer.TokDecimal:
		p.advance()
		return ast.RawLiteral{Kind: ast.LitFloat, Float: tok.Text}, nil
	case tok.Kind == lexer.TokString:
		p.advance()
		return ast.RawLiteral{Kind: ast.LitStr, Str: tok.Text}, nil
	case p.isWord("Money"):
		p.advance()
		if err := p.expectLBrace(); err != nil {
			return ast.RawLiteral{}, err
		}
		var amount, currency string
		for p.peek().Kind != lexer.TokRBrace {
			key, err := p.takeWord()
			if err != nil {
				return ast.RawLiteral{}, err
			}
			if err := p.expectColon(); err != nil {
				return ast.RawLiteral{}, err
			}
			switch key {
			case "amount":
				if amount, err = p.takeStr(); err != nil {
					return ast.RawLiteral{}, err
				}
			case "currency":
				if currency, err = p.takeStr(); err != nil {
					return ast.RawLiteral{}, err
				}
			default:
				return ast.RawLiteral{}, p.errf("unknown Money key %q", key)
			}
			p.skipComma()
		}
		if err := p.expectRBrace(); err != nil {
			return ast.RawLiteral{}, err
		}
		return ast.RawLiteral{Kind: ast.LitMoney, Amount: amount, Currency: currency}, nil
	default:
		return ast.RawLiteral{}, p.errf("expected literal value, got %q", tok.Text)
	}
}

// parseExpr is the expression entry point: precedence or < and < not <
// comparison < multiplication, low to high.
func (p *Parser) parseExpr() (*ast.RawExpr, error) {
	return p.parseOrExpr()
}

func (p *Parser) parseOrExpr() (*ast.RawExpr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.isWord("or") {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.RawExpr{Kind: ast.ExprOr, LHS: left, RHS: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (*ast.RawExpr, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for p.isWord("and") {
		p.advance()
		right, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.RawExpr{Kind: ast.ExprAnd, LHS: left, RHS: right}
	}
	return left, nil
}

func (p *Parser) parseUnaryExpr() (*ast.RawExpr, error) {
	if p.isWord("not") {
		p.advance()
		e, err := p.parseAtomExpr()
		if err != nil {
			return nil, err
		}
		return &ast.RawExpr{Kind: ast.ExprNot, Operand: e}, nil
	}
	return p.parseAtomExpr()
}

func (p *Parser) parseAtomExpr() (*ast.RawExpr, error) {
	if p.isWord("forall") {
		return p.parseQuantifier(ast.ExprForall)
	}
	if p.isWord("exists") {
		return p.parseQuantifier(ast.ExprExists)
	}
	if p.isWord("verdict_present") {
		line := p.curLine()
		p.advance()
		if err := p.expectLParen(); err != nil {
			return nil, err
		}
		id, err := p.takeWord()
		if err != nil {
			return nil, err
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		return &ast.RawExpr{Kind: ast.ExprVerdictPresent, VerdictID: id, Line: line}, nil
	}
	if p.peek().Kind == lexer.TokLParen {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		return e, nil
	}

	line := p.curLine()
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return &ast.RawExpr{Kind: ast.ExprCompare, Op: op, Left: left, Right: right, Line: line}, nil
}

func (p *Parser) parseQuantifier(kind ast.ExprKind) (*ast.RawExpr, error) {
	line := p.curLine()
	p.advance()
	v, err := p.takeWord()
	if err != nil {
		return nil, err
	}
	if !p.isWord("in") {
		return nil, p.err("expected 'in' (or '∈') after quantifier variable")
	}
	p.advance()
	domain, err := p.takeWord()
	if err != nil {
		return nil, err
	}
	if err := p.expectKind(lexer.TokDot, "'.'"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.RawExpr{Kind: kind, Var: v, Domain: domain, Body: body, Line: line}, nil
}

func (p *Parser) parseCompareOp() (string, error) {
	tok := p.peek()
	var op string
	switch tok.Kind {
	case lexer.TokEq:
		op = "="
	case lexer.TokNotEq:
		op = "!="
	case lexer.TokLt:
		op = "<"
	case lexer.TokLtEq:
		op = "<="
	case lexer.TokGt:
		op = ">"
	case lexer.TokGtEq:
		op = ">="
	default:
		return "", p.errf("expected comparison operator, got %q", tok.Text)
	}
	p.advance()
	return op, nil
}

func (p *Parser) parseBaseTerm() (*ast.RawTerm, error) {
	tok := p.peek()
	switch {
	case p.isWord("true"):
		p.advance()
		return &ast.RawTerm{Kind: ast.TermLiteral, Literal: &ast.RawLiteral{Kind: ast.LitBool, Bool: true}}, nil
	case p.isWord("false"):
		p.advance()
		return &ast.RawTerm{Kind: ast.TermLiteral, Literal: &ast.RawLiteral{Kind: ast.LitBool, Bool: false}}, nil
	case tok.Kind == lexer.TokInt:
		p.advance()
		n, err := parseI64(tok.Text)
		if err != nil {
			return nil, p.errf("malformed integer literal %q", tok.Text)
		}
		return &ast.RawTerm{Kind: ast.TermLiteral, Literal: &ast.RawLiteral{Kind: ast.LitInt, Int: n}}, nil
	case tok.Kind == lexer.TokDecimal:
		p.advance()
		return &ast.RawTerm{Kind: ast.TermLiteral, Literal: &ast.RawLiteral{Kind: ast.LitFloat, Float: tok.Text}}, nil
	case tok.Kind == lexer.TokString:
		p.advance()
		return &ast.RawTerm{Kind: ast.TermLiteral, Literal: &ast.RawLiteral{Kind: ast.LitStr, Str: tok.Text}}, nil
	case p.isWord("Money"):
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &ast.RawTerm{Kind: ast.TermLiteral, Literal: &lit}, nil
	case tok.Kind == lexer.TokIdent || tok.Kind == lexer.TokKeyword:
		name := tok.Text
		p.advance()
		if p.peek().Kind == lexer.TokDot {
			p.advance()
			field, err := p.takeWord()
			if err != nil {
				return nil, err
			}
			return &ast.RawTerm{Kind: ast.TermFieldRef, FieldVar: name, FieldName: field}, nil
		}
		return &ast.RawTerm{Kind: ast.TermFactRef, FactID: name}, nil
	default:
		return nil, p.errf("expected term, got %q", tok.Text)
	}
}

func (p *Parser) parseTerm() (*ast.RawTerm, error) {
	left, err := p.parseBaseTerm()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == lexer.TokStar {
		p.advance()
		right, err := p.parseBaseTerm()
		if err != nil {
			return nil, err
		}
		return &ast.RawTerm{Kind: ast.TermMul, MulLeft: left, MulRight: right}, nil
	}
	return left, nil
}
