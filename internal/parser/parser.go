// Package parser implements a hand-written recursive-descent parser
// producing the raw AST (internal/ast) from a Tenor token stream.
//
// Surface grammar for top-level constructs is a uniform
// `keyword name { field: value, ... }` block form, matching the
// key:value style already used inside compound type literals
// (Money{...}, Duration(...), List(...)) and consistent with every
// construct's field list in the data model. Precedence for expressions
// (or < and < not < comparison < multiplication) and the literal/type
// parameter grammars are ported directly from the upstream parser's
// expression and type sub-parsers.
package parser

import (
	"fmt"
	"strconv"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
	"tenor/internal/lexer"
)

// Parser holds parse state for a single file's token stream.
type Parser struct {
	file string
	toks []lexer.Token
	pos  int
}

// ParseFile tokenizes and parses a complete Tenor source file into its
// flat list of top-level constructs, in declaration order.
func ParseFile(file, src string) ([]ast.RawConstruct, error) {
	toks, err := lexer.Tokenize(file, src)
	if err != nil {
		return nil, err
	}
	p := &Parser{file: file, toks: toks}
	var out []ast.RawConstruct
	for p.peek().Kind != lexer.TokEOF {
		c, err := p.parseConstruct()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *Parser) peek() lexer.Token {
	return p.toks[p.pos]
}

func (p *Parser) peekAt(offset int) lexer.Token {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

func (p *Parser) advance() lexer.Token {
	tok := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) curLine() uint32 {
	return p.peek().Line
}

// isWord reports whether the current token is an identifier or keyword
// with exactly this text, without consuming it.
func (p *Parser) isWord(s string) bool {
	tok := p.peek()
	return (tok.Kind == lexer.TokIdent || tok.Kind == lexer.TokKeyword) && tok.Text == s
}

func (p *Parser) err(message string) error {
	return elaborate.Parse(p.file, p.curLine(), message)
}

func (p *Parser) errf(format string, args ...any) error {
	return p.err(fmt.Sprintf(format, args...))
}

func (p *Parser) takeWord() (string, error) {
	tok := p.peek()
	if tok.Kind != lexer.TokIdent && tok.Kind != lexer.TokKeyword {
		return "", p.errf("expected identifier, got %q", tok.Text)
	}
	p.advance()
	return tok.Text, nil
}

func (p *Parser) takeStr() (string, error) {
	tok := p.peek()
	if tok.Kind != lexer.TokString {
		return "", p.errf("expected string literal, got %q", tok.Text)
	}
	p.advance()
	return tok.Text, nil
}

func (p *Parser) takeInt() (int64, error) {
	tok := p.peek()
	if tok.Kind != lexer.TokInt {
		return 0, p.errf("expected integer literal, got %q", tok.Text)
	}
	p.advance()
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if err != nil {
		return 0, p.errf("integer literal out of range: %q", tok.Text)
	}
	return n, nil
}

func (p *Parser) expectKind(kind lexer.TokenKind, desc string) error {
	if p.peek().Kind != kind {
		return p.errf("expected %s, got %q", desc, p.peek().Text)
	}
	p.advance()
	return nil
}

func (p *Parser) expectColon() error    { return p.expectKind(lexer.TokColon, "':'") }
func (p *Parser) expectComma() error    { return p.expectKind(lexer.TokComma, "','") }
func (p *Parser) expectLBrace() error   { return p.expectKind(lexer.TokLBrace, "'{'") }
func (p *Parser) expectRBrace() error   { return p.expectKind(lexer.TokRBrace, "'}'") }
func (p *Parser) expectLParen() error   { return p.expectKind(lexer.TokLParen, "'('") }
func (p *Parser) expectRParen() error   { return p.expectKind(lexer.TokRParen, "')'") }
func (p *Parser) expectLBracket() error { return p.expectKind(lexer.TokLBracket, "'['") }
func (p *Parser) expectRBracket() error { return p.expectKind(lexer.TokRBracket, "']'") }

// skipComma consumes a trailing comma if present; used after parsing one
// element of a comma-separated sequence.
func (p *Parser) skipComma() {
	if p.peek().Kind == lexer.TokComma {
		p.advance()
	}
}

func (p *Parser) parseStringArray() ([]string, error) {
	if err := p.expectLBracket(); err != nil {
		return nil, err
	}
	var values []string
	for p.peek().Kind != lexer.TokRBracket {
		s, err := p.takeStr()
		if err != nil {
			return nil, err
		}
		values = append(values, s)
		p.skipComma()
	}
	return values, p.expectRBracket()
}

func (p *Parser) parseConstruct() (ast.RawConstruct, error) {
	line := p.curLine()
	switch {
	case p.isWord("import"):
		return p.parseImport(line)
	case p.isWord("type"):
		return p.parseTypeDecl(line)
	case p.isWord("fact"):
		return p.parseFact(line)
	case p.isWord("entity"):
		return p.parseEntity(line)
	case p.isWord("rule"):
		return p.parseRule(line)
	case p.isWord("operation"):
		return p.parseOperation(line)
	case p.isWord("persona"):
		return p.parsePersona(line)
	case p.isWord("flow"):
		return p.parseFlow(line)
	case p.isWord("system"):
		return p.parseSystem(line)
	case p.isWord("source"):
		return p.parseSource(line)
	default:
		return ast.RawConstruct{}, p.errf("expected a top-level construct keyword, got %q", p.peek().Text)
	}
}
