package parser

import (
	"strings"

	"tenor/internal/ast"
	"tenor/internal/lexer"
)

func (p *Parser) prov(line uint32) ast.Provenance {
	return ast.Provenance{File: p.file, Line: line}
}

func (p *Parser) parseIdentArray() ([]string, error) {
	if err := p.expectLBracket(); err != nil {
		return nil, err
	}
	var out []string
	for p.peek().Kind != lexer.TokRBracket {
		w, err := p.takeWord()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
		p.skipComma()
	}
	return out, p.expectRBracket()
}

// parseDottedWord reads a dotted identifier sequence such as
// "x_internal.billing", used by Source protocol tags.
func (p *Parser) parseDottedWord() (string, error) {
	first, err := p.takeWord()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(first)
	for p.peek().Kind == lexer.TokDot {
		p.advance()
		seg, err := p.takeWord()
		if err != nil {
			return "", err
		}
		sb.WriteByte('.')
		sb.WriteString(seg)
	}
	return sb.String(), nil
}

func (p *Parser) parseImport(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'import'
	path, err := p.takeStr()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{Kind: ast.KindImport, ImportPath: path, Prov: p.prov(line)}, nil
}

func (p *Parser) parseTypeDecl(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'type'
	id, err := p.takeWord()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	fields, err := p.parseRecordFields()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{Kind: ast.KindTypeDecl, ID: id, Fields: fields, Prov: p.prov(line)}, nil
}

func (p *Parser) parseFact(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'fact'
	id, err := p.takeWord()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	var factType ast.RawType
	var sourceRef string
	var def *ast.RawLiteral
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawConstruct{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawConstruct{}, err
		}
		switch key {
		case "type":
			if factType, err = p.parseType(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "source":
			if sourceRef, err = p.takeWord(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "default":
			lit, err := p.parseLiteral()
			if err != nil {
				return ast.RawConstruct{}, err
			}
			def = &lit
		default:
			return ast.RawConstruct{}, p.errf("unknown Fact field %q", key)
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{
		Kind: ast.KindFact, ID: id, FactType: factType, SourceRef: sourceRef,
		Default: def, Prov: p.prov(line),
	}, nil
}

func (p *Parser) parseEntity(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'entity'
	id, err := p.takeWord()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	var states []string
	var initial string
	var initialLine uint32
	var transitions []ast.Transition
	var parent *string
	var parentLine *uint32
	for p.peek().Kind != lexer.TokRBrace {
		keyLine := p.curLine()
		key, err := p.takeWord()
		if err != nil {
			return ast.RawConstruct{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawConstruct{}, err
		}
		switch key {
		case "states":
			if states, err = p.parseStringArray(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "initial":
			initialLine = keyLine
			if initial, err = p.takeStr(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "transitions":
			if err := p.expectLBracket(); err != nil {
				return ast.RawConstruct{}, err
			}
			for p.peek().Kind != lexer.TokRBracket {
				tline := p.curLine()
				if err := p.expectLParen(); err != nil {
					return ast.RawConstruct{}, err
				}
				from, err := p.takeStr()
				if err != nil {
					return ast.RawConstruct{}, err
				}
				if err := p.expectComma(); err != nil {
					return ast.RawConstruct{}, err
				}
				to, err := p.takeStr()
				if err != nil {
					return ast.RawConstruct{}, err
				}
				if err := p.expectRParen(); err != nil {
					return ast.RawConstruct{}, err
				}
				transitions = append(transitions, ast.Transition{From: from, To: to, Line: tline})
				p.skipComma()
			}
			if err := p.expectRBracket(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "parent":
			pl := keyLine
			pid, err := p.takeWord()
			if err != nil {
				return ast.RawConstruct{}, err
			}
			parent = &pid
			parentLine = &pl
		default:
			return ast.RawConstruct{}, p.errf("unknown Entity field %q", key)
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{
		Kind: ast.KindEntity, ID: id, States: states, Initial: initial,
		InitialLine: initialLine, Transitions: transitions, Parent: parent,
		ParentLine: parentLine, Prov: p.prov(line),
	}, nil
}

func (p *Parser) parseRule(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'rule'
	id, err := p.takeWord()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	var stratum int64
	var stratumLine uint32
	var when *ast.RawExpr
	var verdictType string
	var payloadType ast.RawType
	var payloadValue *ast.RawTerm
	var produceLine uint32
	for p.peek().Kind != lexer.TokRBrace {
		keyLine := p.curLine()
		key, err := p.takeWord()
		if err != nil {
			return ast.RawConstruct{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawConstruct{}, err
		}
		switch key {
		case "stratum":
			stratumLine = keyLine
			if stratum, err = p.takeInt(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "when":
			if when, err = p.parseExpr(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "produce":
			produceLine = keyLine
			if verdictType, err = p.takeWord(); err != nil {
				return ast.RawConstruct{}, err
			}
			if err := p.expectLParen(); err != nil {
				return ast.RawConstruct{}, err
			}
			for p.peek().Kind != lexer.TokRParen {
				pkey, err := p.takeWord()
				if err != nil {
					return ast.RawConstruct{}, err
				}
				if err := p.expectColon(); err != nil {
					return ast.RawConstruct{}, err
				}
				switch pkey {
				case "payload_type":
					if payloadType, err = p.parseType(); err != nil {
						return ast.RawConstruct{}, err
					}
				case "payload":
					if payloadValue, err = p.parseTerm(); err != nil {
						return ast.RawConstruct{}, err
					}
				default:
					return ast.RawConstruct{}, p.errf("unknown produce param %q", pkey)
				}
				p.skipComma()
			}
			if err := p.expectRParen(); err != nil {
				return ast.RawConstruct{}, err
			}
		default:
			return ast.RawConstruct{}, p.errf("unknown Rule field %q", key)
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{
		Kind: ast.KindRule, ID: id, Stratum: stratum, StratumLine: stratumLine,
		When: when, VerdictType: verdictType, PayloadType: payloadType,
		PayloadValue: payloadValue, ProduceLine: produceLine, Prov: p.prov(line),
	}, nil
}

func (p *Parser) parseOperation(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'operation'
	id, err := p.takeWord()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	var allowedPersonas []string
	var allowedPersonasLine uint32
	var precondition *ast.RawExpr
	var effects []ast.Effect
	var errorContract []string
	var outcomes []string
	for p.peek().Kind != lexer.TokRBrace {
		keyLine := p.curLine()
		key, err := p.takeWord()
		if err != nil {
			return ast.RawConstruct{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawConstruct{}, err
		}
		switch key {
		case "allowed_personas":
			allowedPersonasLine = keyLine
			if allowedPersonas, err = p.parseStringArray(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "precondition":
			if precondition, err = p.parseExpr(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "effects":
			if effects, err = p.parseEffects(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "error_contract":
			if errorContract, err = p.parseStringArray(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "outcomes":
			if outcomes, err = p.parseStringArray(); err != nil {
				return ast.RawConstruct{}, err
			}
		default:
			return ast.RawConstruct{}, p.errf("unknown Operation field %q", key)
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{
		Kind: ast.KindOperation, ID: id, AllowedPersonas: allowedPersonas,
		AllowedPersonasLine: allowedPersonasLine, Precondition: precondition,
		Effects: effects, ErrorContract: errorContract, Outcomes: outcomes,
		Prov: p.prov(line),
	}, nil
}

func (p *Parser) parseEffects() ([]ast.Effect, error) {
	if err := p.expectLBracket(); err != nil {
		return nil, err
	}
	var effects []ast.Effect
	for p.peek().Kind != lexer.TokRBracket {
		eline := p.curLine()
		if err := p.expectLParen(); err != nil {
			return nil, err
		}
		entity, err := p.takeWord()
		if err != nil {
			return nil, err
		}
		if err := p.expectComma(); err != nil {
			return nil, err
		}
		from, err := p.takeStr()
		if err != nil {
			return nil, err
		}
		if err := p.expectComma(); err != nil {
			return nil, err
		}
		to, err := p.takeStr()
		if err != nil {
			return nil, err
		}
		var label *string
		if p.peek().Kind == lexer.TokComma {
			p.advance()
			if p.peek().Kind != lexer.TokRParen {
				l, err := p.takeStr()
				if err != nil {
					return nil, err
				}
				label = &l
			}
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		effects = append(effects, ast.Effect{Entity: entity, From: from, To: to, OutcomeLabel: label, Line: eline})
		p.skipComma()
	}
	return effects, p.expectRBracket()
}

func (p *Parser) parsePersona(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'persona'
	id, err := p.takeWord()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{Kind: ast.KindPersona, ID: id, Prov: p.prov(line)}, nil
}

func (p *Parser) parseFlow(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'flow'
	id, err := p.takeWord()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	var snapshot string
	var entry string
	var entryLine uint32
	var steps map[string]ast.RawStep
	for p.peek().Kind != lexer.TokRBrace {
		keyLine := p.curLine()
		key, err := p.takeWord()
		if err != nil {
			return ast.RawConstruct{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawConstruct{}, err
		}
		switch key {
		case "snapshot":
			if snapshot, err = p.takeStr(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "entry":
			entryLine = keyLine
			if entry, err = p.takeStr(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "steps":
			if steps, err = p.parseStepsMap(); err != nil {
				return ast.RawConstruct{}, err
			}
		default:
			return ast.RawConstruct{}, p.errf("unknown Flow field %q", key)
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{
		Kind: ast.KindFlow, ID: id, Snapshot: snapshot, Entry: entry,
		EntryLine: entryLine, Steps: steps, Prov: p.prov(line),
	}, nil
}

func (p *Parser) parseSystem(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'system'
	id, err := p.takeWord()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	var members []ast.SystemMember
	var sharedPersonas []ast.SharedPersona
	var sharedEntities []ast.SharedEntity
	var triggers []ast.RawTrigger
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawConstruct{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawConstruct{}, err
		}
		switch key {
		case "members":
			if err := p.expectLBracket(); err != nil {
				return ast.RawConstruct{}, err
			}
			for p.peek().Kind != lexer.TokRBracket {
				if err := p.expectLParen(); err != nil {
					return ast.RawConstruct{}, err
				}
				mid, err := p.takeWord()
				if err != nil {
					return ast.RawConstruct{}, err
				}
				if err := p.expectComma(); err != nil {
					return ast.RawConstruct{}, err
				}
				path, err := p.takeStr()
				if err != nil {
					return ast.RawConstruct{}, err
				}
				if err := p.expectRParen(); err != nil {
					return ast.RawConstruct{}, err
				}
				members = append(members, ast.SystemMember{ID: mid, Path: path})
				p.skipComma()
			}
			if err := p.expectRBracket(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "shared_personas":
			if sharedPersonas, err = p.parseSharedPersonas(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "shared_entities":
			if sharedEntities, err = p.parseSharedEntities(); err != nil {
				return ast.RawConstruct{}, err
			}
		case "triggers":
			if err := p.expectLBracket(); err != nil {
				return ast.RawConstruct{}, err
			}
			for p.peek().Kind != lexer.TokRBracket {
				tr, err := p.parseTrigger()
				if err != nil {
					return ast.RawConstruct{}, err
				}
				triggers = append(triggers, tr)
				p.skipComma()
			}
			if err := p.expectRBracket(); err != nil {
				return ast.RawConstruct{}, err
			}
		default:
			return ast.RawConstruct{}, p.errf("unknown System field %q", key)
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{
		Kind: ast.KindSystem, ID: id, Members: members,
		SharedPersonas: sharedPersonas, SharedEntities: sharedEntities,
		Triggers: triggers, Prov: p.prov(line),
	}, nil
}

func (p *Parser) parseSharedPersonas() ([]ast.SharedPersona, error) {
	if err := p.expectLBracket(); err != nil {
		return nil, err
	}
	var out []ast.SharedPersona
	for p.peek().Kind != lexer.TokRBracket {
		if err := p.expectLParen(); err != nil {
			return nil, err
		}
		pid, err := p.takeWord()
		if err != nil {
			return nil, err
		}
		if err := p.expectComma(); err != nil {
			return nil, err
		}
		members, err := p.parseIdentArray()
		if err != nil {
			return nil, err
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		out = append(out, ast.SharedPersona{PersonaID: pid, Members: members})
		p.skipComma()
	}
	return out, p.expectRBracket()
}

func (p *Parser) parseSharedEntities() ([]ast.SharedEntity, error) {
	if err := p.expectLBracket(); err != nil {
		return nil, err
	}
	var out []ast.SharedEntity
	for p.peek().Kind != lexer.TokRBracket {
		if err := p.expectLParen(); err != nil {
			return nil, err
		}
		eid, err := p.takeWord()
		if err != nil {
			return nil, err
		}
		if err := p.expectComma(); err != nil {
			return nil, err
		}
		members, err := p.parseIdentArray()
		if err != nil {
			return nil, err
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		out = append(out, ast.SharedEntity{EntityID: eid, Members: members})
		p.skipComma()
	}
	return out, p.expectRBracket()
}

func (p *Parser) parseTrigger() (ast.RawTrigger, error) {
	if !p.isWord("trigger") {
		return ast.RawTrigger{}, p.errf("expected 'trigger', got %q", p.peek().Text)
	}
	p.advance()
	if err := p.expectLBrace(); err != nil {
		return ast.RawTrigger{}, err
	}
	var tr ast.RawTrigger
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawTrigger{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawTrigger{}, err
		}
		switch key {
		case "source_contract":
			tr.SourceContract, err = p.takeWord()
		case "source_flow":
			tr.SourceFlow, err = p.takeStr()
		case "on":
			tr.On, err = p.takeStr()
		case "target_contract":
			tr.TargetContract, err = p.takeWord()
		case "target_flow":
			tr.TargetFlow, err = p.takeStr()
		case "persona":
			tr.Persona, err = p.takeWord()
		default:
			return ast.RawTrigger{}, p.errf("unknown trigger field %q", key)
		}
		if err != nil {
			return ast.RawTrigger{}, err
		}
		p.skipComma()
	}
	return tr, p.expectRBrace()
}

func (p *Parser) parseSource(line uint32) (ast.RawConstruct, error) {
	p.advance() // 'source'
	id, err := p.takeWord()
	if err != nil {
		return ast.RawConstruct{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	var protocol string
	fields := make(map[string]string)
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawConstruct{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawConstruct{}, err
		}
		if key == "protocol" {
			if protocol, err = p.parseDottedWord(); err != nil {
				return ast.RawConstruct{}, err
			}
		} else {
			val, err := p.takeStr()
			if err != nil {
				return ast.RawConstruct{}, err
			}
			fields[key] = val
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawConstruct{}, err
	}
	return ast.RawConstruct{
		Kind: ast.KindSource, ID: id, Protocol: protocol, SourceFields: fields,
		Prov: p.prov(line),
	}, nil
}
