package parser

import (
	"tenor/internal/ast"
	"tenor/internal/lexer"
)

// parseStepsMap parses a `steps: { step_id: <step>, ... }` block shared by
// Flow and ParallelStep branches.
func (p *Parser) parseStepsMap() (map[string]ast.RawStep, error) {
	if err := p.expectLBrace(); err != nil {
		return nil, err
	}
	steps := make(map[string]ast.RawStep)
	for p.peek().Kind != lexer.TokRBrace {
		line := p.curLine()
		id, err := p.takeWord()
		if err != nil {
			return nil, err
		}
		if err := p.expectColon(); err != nil {
			return nil, err
		}
		step, err := p.parseStep(line)
		if err != nil {
			return nil, err
		}
		steps[id] = step
		p.skipComma()
	}
	return steps, p.expectRBrace()
}

func (p *Parser) parseStep(line uint32) (ast.RawStep, error) {
	switch {
	case p.isWord("operation"):
		return p.parseOperationStep(line)
	case p.isWord("branch"):
		return p.parseBranchStep(line)
	case p.isWord("handoff"):
		return p.parseHandoffStep(line)
	case p.isWord("subflow"):
		return p.parseSubFlowStep(line)
	case p.isWord("parallel"):
		return p.parseParallelStep(line)
	default:
		return ast.RawStep{}, p.errf("expected step kind (operation/branch/handoff/subflow/parallel), got %q", p.peek().Text)
	}
}

func (p *Parser) parseOperationStep(line uint32) (ast.RawStep, error) {
	p.advance() // 'operation'
	if err := p.expectLParen(); err != nil {
		return ast.RawStep{}, err
	}
	var op, persona string
	for p.peek().Kind != lexer.TokRParen {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawStep{}, err
		}
		switch key {
		case "op":
			op, err = p.takeWord()
		case "persona":
			persona, err = p.takeWord()
		default:
			return ast.RawStep{}, p.errf("unknown operation step param %q", key)
		}
		if err != nil {
			return ast.RawStep{}, err
		}
		p.skipComma()
	}
	if err := p.expectRParen(); err != nil {
		return ast.RawStep{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawStep{}, err
	}
	outcomes := make(map[string]ast.RawStepTarget)
	var onFailure *ast.RawFailureHandler
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawStep{}, err
		}
		switch key {
		case "outcomes":
			if err := p.expectLBrace(); err != nil {
				return ast.RawStep{}, err
			}
			for p.peek().Kind != lexer.TokRBrace {
				label, err := p.takeWord()
				if err != nil {
					return ast.RawStep{}, err
				}
				if err := p.expectColon(); err != nil {
					return ast.RawStep{}, err
				}
				target, err := p.parseStepTarget()
				if err != nil {
					return ast.RawStep{}, err
				}
				outcomes[label] = *target
				p.skipComma()
			}
			if err := p.expectRBrace(); err != nil {
				return ast.RawStep{}, err
			}
		case "on_failure":
			fh, err := p.parseFailureHandler()
			if err != nil {
				return ast.RawStep{}, err
			}
			onFailure = fh
		default:
			return ast.RawStep{}, p.errf("unknown operation step field %q", key)
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawStep{}, err
	}
	return ast.RawStep{Kind: ast.StepOperation, Op: op, Persona: persona, Outcomes: outcomes, OnFailure: onFailure, Line: line}, nil
}

func (p *Parser) parseBranchStep(line uint32) (ast.RawStep, error) {
	p.advance() // 'branch'
	if err := p.expectLParen(); err != nil {
		return ast.RawStep{}, err
	}
	var persona string
	var condition *ast.RawExpr
	for p.peek().Kind != lexer.TokRParen {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawStep{}, err
		}
		switch key {
		case "condition":
			condition, err = p.parseExpr()
		case "persona":
			persona, err = p.takeWord()
		default:
			return ast.RawStep{}, p.errf("unknown branch step param %q", key)
		}
		if err != nil {
			return ast.RawStep{}, err
		}
		p.skipComma()
	}
	if err := p.expectRParen(); err != nil {
		return ast.RawStep{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawStep{}, err
	}
	var ifTrue, ifFalse *ast.RawStepTarget
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawStep{}, err
		}
		switch key {
		case "if_true":
			ifTrue, err = p.parseStepTarget()
		case "if_false":
			ifFalse, err = p.parseStepTarget()
		default:
			return ast.RawStep{}, p.errf("unknown branch step field %q", key)
		}
		if err != nil {
			return ast.RawStep{}, err
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawStep{}, err
	}
	return ast.RawStep{Kind: ast.StepBranch, Condition: condition, Persona: persona, IfTrue: ifTrue, IfFalse: ifFalse, Line: line}, nil
}

func (p *Parser) parseHandoffStep(line uint32) (ast.RawStep, error) {
	p.advance() // 'handoff'
	if err := p.expectLParen(); err != nil {
		return ast.RawStep{}, err
	}
	var from, to string
	for p.peek().Kind != lexer.TokRParen {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawStep{}, err
		}
		switch key {
		case "from":
			from, err = p.takeWord()
		case "to":
			to, err = p.takeWord()
		default:
			return ast.RawStep{}, p.errf("unknown handoff step param %q", key)
		}
		if err != nil {
			return ast.RawStep{}, err
		}
		p.skipComma()
	}
	if err := p.expectRParen(); err != nil {
		return ast.RawStep{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawStep{}, err
	}
	var next string
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawStep{}, err
		}
		switch key {
		case "next":
			next, err = p.takeWord()
		default:
			return ast.RawStep{}, p.errf("unknown handoff step field %q", key)
		}
		if err != nil {
			return ast.RawStep{}, err
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawStep{}, err
	}
	return ast.RawStep{Kind: ast.StepHandoff, FromPersona: from, ToPersona: to, Next: next, Line: line}, nil
}

func (p *Parser) parseSubFlowStep(line uint32) (ast.RawStep, error) {
	p.advance() // 'subflow'
	if err := p.expectLParen(); err != nil {
		return ast.RawStep{}, err
	}
	var flow, persona string
	var flowLine uint32
	for p.peek().Kind != lexer.TokRParen {
		keyLine := p.curLine()
		key, err := p.takeWord()
		if err != nil {
			return ast.RawStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawStep{}, err
		}
		switch key {
		case "flow":
			flowLine = keyLine
			flow, err = p.takeWord()
		case "persona":
			persona, err = p.takeWord()
		default:
			return ast.RawStep{}, p.errf("unknown subflow step param %q", key)
		}
		if err != nil {
			return ast.RawStep{}, err
		}
		p.skipComma()
	}
	if err := p.expectRParen(); err != nil {
		return ast.RawStep{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawStep{}, err
	}
	var onSuccess *ast.RawStepTarget
	var onFailure *ast.RawFailureHandler
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawStep{}, err
		}
		switch key {
		case "on_success":
			onSuccess, err = p.parseStepTarget()
		case "on_failure":
			onFailure, err = p.parseFailureHandler()
		default:
			return ast.RawStep{}, p.errf("unknown subflow step field %q", key)
		}
		if err != nil {
			return ast.RawStep{}, err
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawStep{}, err
	}
	if onFailure == nil {
		return ast.RawStep{}, p.err("subflow step requires on_failure")
	}
	return ast.RawStep{Kind: ast.StepSubFlow, Flow: flow, FlowLine: flowLine, Persona: persona, OnSuccess: onSuccess, OnFailure: onFailure, Line: line}, nil
}

func (p *Parser) parseParallelStep(line uint32) (ast.RawStep, error) {
	p.advance() // 'parallel'
	if err := p.expectLBrace(); err != nil {
		return ast.RawStep{}, err
	}
	var branches []ast.RawBranch
	var branchesLine uint32
	var join ast.RawJoinPolicy
	for p.peek().Kind != lexer.TokRBrace {
		keyLine := p.curLine()
		key, err := p.takeWord()
		if err != nil {
			return ast.RawStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawStep{}, err
		}
		switch key {
		case "branches":
			branchesLine = keyLine
			if err := p.expectLBracket(); err != nil {
				return ast.RawStep{}, err
			}
			for p.peek().Kind != lexer.TokRBracket {
				b, err := p.parseBranch()
				if err != nil {
					return ast.RawStep{}, err
				}
				branches = append(branches, b)
				p.skipComma()
			}
			if err := p.expectRBracket(); err != nil {
				return ast.RawStep{}, err
			}
		case "join":
			if join, err = p.parseJoinPolicy(); err != nil {
				return ast.RawStep{}, err
			}
		default:
			return ast.RawStep{}, p.errf("unknown parallel step field %q", key)
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawStep{}, err
	}
	return ast.RawStep{Kind: ast.StepParallel, Branches: branches, BranchesLine: branchesLine, Join: join, Line: line}, nil
}

func (p *Parser) parseBranch() (ast.RawBranch, error) {
	if !p.isWord("branch") {
		return ast.RawBranch{}, p.errf("expected 'branch', got %q", p.peek().Text)
	}
	p.advance()
	if err := p.expectLParen(); err != nil {
		return ast.RawBranch{}, err
	}
	var id, entry string
	for p.peek().Kind != lexer.TokRParen {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawBranch{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawBranch{}, err
		}
		switch key {
		case "id":
			id, err = p.takeStr()
		case "entry":
			entry, err = p.takeStr()
		default:
			return ast.RawBranch{}, p.errf("unknown branch param %q", key)
		}
		if err != nil {
			return ast.RawBranch{}, err
		}
		p.skipComma()
	}
	if err := p.expectRParen(); err != nil {
		return ast.RawBranch{}, err
	}
	if err := p.expectLBrace(); err != nil {
		return ast.RawBranch{}, err
	}
	var steps map[string]ast.RawStep
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawBranch{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawBranch{}, err
		}
		if key != "steps" {
			return ast.RawBranch{}, p.errf("unknown branch field %q", key)
		}
		if steps, err = p.parseStepsMap(); err != nil {
			return ast.RawBranch{}, err
		}
		p.skipComma()
	}
	if err := p.expectRBrace(); err != nil {
		return ast.RawBranch{}, err
	}
	return ast.RawBranch{ID: id, Entry: entry, Steps: steps}, nil
}

func (p *Parser) parseJoinPolicy() (ast.RawJoinPolicy, error) {
	if err := p.expectLBrace(); err != nil {
		return ast.RawJoinPolicy{}, err
	}
	var jp ast.RawJoinPolicy
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawJoinPolicy{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawJoinPolicy{}, err
		}
		switch key {
		case "on_all_success":
			jp.OnAllSuccess, err = p.parseStepTarget()
		case "on_any_failure":
			jp.OnAnyFailure, err = p.parseFailureHandler()
		case "on_all_complete":
			jp.OnAllComplete, err = p.parseStepTarget()
		default:
			return ast.RawJoinPolicy{}, p.errf("unknown join policy field %q", key)
		}
		if err != nil {
			return ast.RawJoinPolicy{}, err
		}
		p.skipComma()
	}
	return jp, p.expectRBrace()
}

func (p *Parser) parseStepTarget() (*ast.RawStepTarget, error) {
	if p.isWord("terminal") {
		p.advance()
		if err := p.expectLParen(); err != nil {
			return nil, err
		}
		outcome, err := p.takeStr()
		if err != nil {
			return nil, err
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		return &ast.RawStepTarget{Kind: ast.TargetTerminal, Outcome: outcome}, nil
	}
	line := p.curLine()
	id, err := p.takeWord()
	if err != nil {
		return nil, err
	}
	return &ast.RawStepTarget{Kind: ast.TargetStepRef, StepID: id, Line: line}, nil
}

func (p *Parser) parseFailureHandler() (*ast.RawFailureHandler, error) {
	switch {
	case p.isWord("terminate"):
		p.advance()
		if err := p.expectLParen(); err != nil {
			return nil, err
		}
		outcome, err := p.takeStr()
		if err != nil {
			return nil, err
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		return &ast.RawFailureHandler{Kind: ast.FailureTerminate, Outcome: outcome}, nil
	case p.isWord("compensate"):
		p.advance()
		if err := p.expectLBrace(); err != nil {
			return nil, err
		}
		var steps []ast.RawCompStep
		var then string
		for p.peek().Kind != lexer.TokRBrace {
			key, err := p.takeWord()
			if err != nil {
				return nil, err
			}
			if err := p.expectColon(); err != nil {
				return nil, err
			}
			switch key {
			case "steps":
				if err := p.expectLBracket(); err != nil {
					return nil, err
				}
				for p.peek().Kind != lexer.TokRBracket {
					cs, err := p.parseCompStep()
					if err != nil {
						return nil, err
					}
					steps = append(steps, cs)
					p.skipComma()
				}
				if err := p.expectRBracket(); err != nil {
					return nil, err
				}
			case "then":
				then, err = p.takeWord()
				if err != nil {
					return nil, err
				}
			default:
				return nil, p.errf("unknown compensate field %q", key)
			}
			p.skipComma()
		}
		if err := p.expectRBrace(); err != nil {
			return nil, err
		}
		return &ast.RawFailureHandler{Kind: ast.FailureCompensate, CompSteps: steps, Then: then}, nil
	case p.isWord("escalate"):
		p.advance()
		if err := p.expectLParen(); err != nil {
			return nil, err
		}
		var toPersona, next string
		for p.peek().Kind != lexer.TokRParen {
			key, err := p.takeWord()
			if err != nil {
				return nil, err
			}
			if err := p.expectColon(); err != nil {
				return nil, err
			}
			switch key {
			case "to_persona":
				toPersona, err = p.takeWord()
			case "next":
				next, err = p.takeWord()
			default:
				return nil, p.errf("unknown escalate param %q", key)
			}
			if err != nil {
				return nil, err
			}
			p.skipComma()
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		return &ast.RawFailureHandler{Kind: ast.FailureEscalate, ToPersona: toPersona, Next: next}, nil
	default:
		return nil, p.errf("expected failure handler (terminate/compensate/escalate), got %q", p.peek().Text)
	}
}

func (p *Parser) parseCompStep() (ast.RawCompStep, error) {
	if err := p.expectLBrace(); err != nil {
		return ast.RawCompStep{}, err
	}
	var cs ast.RawCompStep
	for p.peek().Kind != lexer.TokRBrace {
		key, err := p.takeWord()
		if err != nil {
			return ast.RawCompStep{}, err
		}
		if err := p.expectColon(); err != nil {
			return ast.RawCompStep{}, err
		}
		switch key {
		case "op":
			cs.Op, err = p.takeWord()
		case "persona":
			cs.Persona, err = p.takeWord()
		case "on_failure":
			cs.OnFailure, err = p.takeWord()
		default:
			return ast.RawCompStep{}, p.errf("unknown compensation step field %q", key)
		}
		if err != nil {
			return ast.RawCompStep{}, err
		}
		p.skipComma()
	}
	return cs, p.expectRBrace()
}
