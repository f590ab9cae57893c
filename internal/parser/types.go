package parser

import (
	"math"

	"tenor/internal/ast"
	"tenor/internal/lexer"
)

// parseType parses a semantic type reference: one of the built-in base
// types with its parenthesized parameters, or a bare name that resolves
// to a user TypeDecl in Pass 3/4.
func (p *Parser) parseType() (ast.RawType, error) {
	name, err := p.takeWord()
	if err != nil {
		return ast.RawType{}, err
	}
	switch name {
	case "Bool":
		return ast.RawType{Kind: ast.TypeBool}, nil
	case "Date":
		return ast.RawType{Kind: ast.TypeDate}, nil
	case "DateTime":
		return ast.RawType{Kind: ast.TypeDateTime}, nil
	case "Int":
		if p.peek().Kind == lexer.TokLParen {
			p.advance()
			min, max, err := p.parseIntParams()
			if err != nil {
				return ast.RawType{}, err
			}
			if err := p.expectRParen(); err != nil {
				return ast.RawType{}, err
			}
			return ast.RawType{Kind: ast.TypeInt, Min: min, Max: max}, nil
		}
		return ast.RawType{Kind: ast.TypeInt, Min: math.MinInt64, Max: math.MaxInt64}, nil
	case "Decimal":
		if err := p.expectLParen(); err != nil {
			return ast.RawType{}, err
		}
		precision, err := p.parseNamedOrPositionalU32("precision")
		if err != nil {
			return ast.RawType{}, err
		}
		p.skipComma()
		scale, err := p.parseNamedOrPositionalU32("scale")
		if err != nil {
			return ast.RawType{}, err
		}
		if err := p.expectRParen(); err != nil {
			return ast.RawType{}, err
		}
		return ast.RawType{Kind: ast.TypeDecimal, Precision: precision, Scale: scale}, nil
	case "Text":
		if p.peek().Kind == lexer.TokLParen {
			p.advance()
			maxLen, err := p.parseNamedOrPositionalU32("max_length")
			if err != nil {
				return ast.RawType{}, err
			}
			if err := p.expectRParen(); err != nil {
				return ast.RawType{}, err
			}
			return ast.RawType{Kind: ast.TypeText, MaxLength: maxLen}, nil
		}
		return ast.RawType{Kind: ast.TypeText, MaxLength: 0}, nil
	case "Money":
		if err := p.expectLParen(); err != nil {
			return ast.RawType{}, err
		}
		if p.isWord("currency") {
			p.advance()
			if err := p.expectColon(); err != nil {
				return ast.RawType{}, err
			}
		}
		currency, err := p.takeStr()
		if err != nil {
			return ast.RawType{}, err
		}
		if err := p.expectRParen(); err != nil {
			return ast.RawType{}, err
		}
		return ast.RawType{Kind: ast.TypeMoney, Currency: currency}, nil
	case "Duration":
		if err := p.expectLParen(); err != nil {
			return ast.RawType{}, err
		}
		unit := ""
		var min int64
		max := int64(math.MaxInt64)
		for p.peek().Kind != lexer.TokRParen {
			key, err := p.takeWord()
			if err != nil {
				return ast.RawType{}, err
			}
			if err := p.expectColon(); err != nil {
				return ast.RawType{}, err
			}
			switch key {
			case "unit":
				if unit, err = p.takeStr(); err != nil {
					return ast.RawType{}, err
				}
			case "min":
				if min, err = p.takeInt(); err != nil {
					return ast.RawType{}, err
				}
			case "max":
				if max, err = p.takeInt(); err != nil {
					return ast.RawType{}, err
				}
			default:
				return ast.RawType{}, p.errf("unknown Duration param %q", key)
			}
			p.skipComma()
		}
		if err := p.expectRParen(); err != nil {
			return ast.RawType{}, err
		}
		return ast.RawType{Kind: ast.TypeDuration, Unit: unit, Min: min, Max: max}, nil
	case "Enum":
		if err := p.expectLParen(); err != nil {
			return ast.RawType{}, err
		}
		if p.isWord("values") {
			p.advance()
			if err := p.expectColon(); err != nil {
				return ast.RawType{}, err
			}
		}
		values, err := p.parseStringArray()
		if err != nil {
			return ast.RawType{}, err
		}
		if err := p.expectRParen(); err != nil {
			return ast.RawType{}, err
		}
		return ast.RawType{Kind: ast.TypeEnum, Values: values}, nil
	case "List":
		if err := p.expectLParen(); err != nil {
			return ast.RawType{}, err
		}
		var elementType *ast.RawType
		var max uint32
		for p.peek().Kind != lexer.TokRParen {
			key, err := p.takeWord()
			if err != nil {
				return ast.RawType{}, err
			}
			if err := p.expectColon(); err != nil {
				return ast.RawType{}, err
			}
			switch key {
			case "element_type":
				et, err := p.parseType()
				if err != nil {
					return ast.RawType{}, err
				}
				elementType = &et
			case "max":
				n, err := p.takeInt()
				if err != nil {
					return ast.RawType{}, err
				}
				max = uint32(n)
			default:
				return ast.RawType{}, p.errf("unknown List param %q", key)
			}
			p.skipComma()
		}
		if err := p.expectRParen(); err != nil {
			return ast.RawType{}, err
		}
		if elementType == nil {
			return ast.RawType{}, p.err("List missing element_type")
		}
		return ast.RawType{Kind: ast.TypeList, ElementType: elementType, Max: max}, nil
	case "Record":
		if err := p.expectLParen(); err != nil {
			return ast.RawType{}, err
		}
		if p.isWord("fields") {
			p.advance()
			if err := p.expectColon(); err != nil {
				return ast.RawType{}, err
			}
		}
		fields, err := p.parseRecordFields()
		if err != nil {
			return ast.RawType{}, err
		}
		if err := p.expectRParen(); err != nil {
			return ast.RawType{}, err
		}
		return ast.RawType{Kind: ast.TypeRecord, Fields: fields}, nil
	default:
		return ast.RawType{Kind: ast.TypeRef, RefName: name}, nil
	}
}

func (p *Parser) parseNamedOrPositionalU32(key string) (uint32, error) {
	if p.isWord(key) {
		p.advance()
		if err := p.expectColon(); err != nil {
			return 0, err
		}
	}
	n, err := p.takeInt()
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func (p *Parser) parseIntParams() (int64, int64, error) {
	if p.isWord("min") {
		p.advance()
		if err := p.expectColon(); err != nil {
			return 0, 0, err
		}
	}
	min, err := p.takeInt()
	if err != nil {
		return 0, 0, err
	}
	p.skipComma()
	if p.isWord("max") {
		p.advance()
		if err := p.expectColon(); err != nil {
			return 0, 0, err
		}
	}
	max, err := p.takeInt()
	if err != nil {
		return 0, 0, err
	}
	return min, max, nil
}

func (p *Parser) parseRecordFields() (map[string]ast.RawType, error) {
	fields := make(map[string]ast.RawType)
	if err := p.expectLBrace(); err != nil {
		return nil, err
	}
	for p.peek().Kind != lexer.TokRBrace {
		name, err := p.takeWord()
		if err != nil {
			return nil, err
		}
		if err := p.expectColon(); err != nil {
			return nil, err
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields[name] = t
		p.skipComma()
	}
	return fields, p.expectRBrace()
}
