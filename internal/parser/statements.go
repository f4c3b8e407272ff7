package parser

import (
	"github.com/Chubek/Moonix/internal/ast"
	"github.com/Chubek/Moonix/internal/diagnostics"
	"github.com/Chubek/Moonix/internal/token"
)

// parseStatement dispatches on the leading token. The current token is
// the first token of the statement; on return the current token is the
// first token after it.
func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.DO:
		return p.parseDoStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.REPEAT:
		return p.parseRepeatStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.FUNCTION:
		return p.parseFunctionStatement()
	case token.LOCAL:
		return p.parseLocalStatement()
	case token.DOUBLECOLON:
		return p.parseLabelStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseDoStatement() ast.Statement {
	stmt := &ast.DoStatement{Token: p.curToken}
	p.nextToken()
	stmt.Body = p.parseBlock()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.END) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected end to close do block")
		return nil
	}
	p.nextToken()
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	p.nextToken()
	stmt.Condition = p.parseExpression()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.DO) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected do after while condition")
		return nil
	}
	p.nextToken()
	stmt.Body = p.parseBlock()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.END) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected end to close while")
		return nil
	}
	p.nextToken()
	return stmt
}

func (p *Parser) parseRepeatStatement() ast.Statement {
	stmt := &ast.RepeatStatement{Token: p.curToken}
	p.nextToken()
	stmt.Body = p.parseBlock()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.UNTIL) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected until to close repeat")
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression()
	if p.failed {
		return nil
	}
	return stmt
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}

	for {
		p.nextToken() // past if/elseif
		cond := p.parseExpression()
		if p.failed {
			return nil
		}
		if !p.curTokenIs(token.THEN) {
			p.errorf(diagnostics.ErrP002, p.curToken, "expected then after condition")
			return nil
		}
		p.nextToken()
		body := p.parseBlock()
		if p.failed {
			return nil
		}
		stmt.CondBlocks = append(stmt.CondBlocks, ast.CondBlock{Condition: cond, Body: body})

		if p.curTokenIs(token.ELSEIF) {
			continue
		}
		break
	}

	if p.curTokenIs(token.ELSE) {
		p.nextToken()
		stmt.ElseBlock = p.parseBlock()
		if p.failed {
			return nil
		}
	}
	if !p.curTokenIs(token.END) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected end to close if")
		return nil
	}
	p.nextToken()
	return stmt
}

// parseForStatement disambiguates numeric and generic for by lookahead
// after the first induction name.
func (p *Parser) parseForStatement() ast.Statement {
	forTok := p.curToken
	if !p.expectPeek(token.NAME) {
		return nil
	}
	first := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)}

	if p.peekTokenIs(token.ASSIGN) {
		return p.parseNumericFor(forTok, first)
	}
	return p.parseGenericFor(forTok, first)
}

func (p *Parser) parseNumericFor(forTok token.Token, name *ast.Identifier) ast.Statement {
	stmt := &ast.NumericFor{Token: forTok, Name: name}
	p.nextToken() // =
	p.nextToken()
	stmt.Start = p.parseExpression()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.COMMA) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected , after for start value")
		return nil
	}
	p.nextToken()
	stmt.Stop = p.parseExpression()
	if p.failed {
		return nil
	}
	if p.curTokenIs(token.COMMA) {
		p.nextToken()
		stmt.Step = p.parseExpression()
		if p.failed {
			return nil
		}
	}
	if !p.curTokenIs(token.DO) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected do in for statement")
		return nil
	}
	p.nextToken()
	stmt.Body = p.parseBlock()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.END) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected end to close for")
		return nil
	}
	p.nextToken()
	return stmt
}

func (p *Parser) parseGenericFor(forTok token.Token, first *ast.Identifier) ast.Statement {
	stmt := &ast.GenericFor{Token: forTok, Names: []*ast.Identifier{first}}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek(token.NAME) {
			return nil
		}
		stmt.Names = append(stmt.Names, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)})
	}
	if !p.expectPeek(token.IN) {
		return nil
	}
	p.nextToken()
	stmt.Exprs = p.parseExpressionList()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.DO) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected do in for statement")
		return nil
	}
	p.nextToken()
	stmt.Body = p.parseBlock()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.END) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected end to close for")
		return nil
	}
	p.nextToken()
	return stmt
}

// parseFunctionStatement parses function a.b.c end and function a.b:m end.
func (p *Parser) parseFunctionStatement() ast.Statement {
	stmt := &ast.FunctionStatement{Token: p.curToken}
	if !p.expectPeek(token.NAME) {
		return nil
	}
	name := &ast.FunctionName{
		Token: p.curToken,
		Base:  &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)},
	}
	for p.peekTokenIs(token.DOT) {
		p.nextToken()
		if !p.expectPeek(token.NAME) {
			return nil
		}
		name.Path = append(name.Path, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)})
	}
	if p.peekTokenIs(token.COLON) {
		p.nextToken()
		if !p.expectPeek(token.NAME) {
			return nil
		}
		name.Method = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)}
	}
	stmt.Name = name

	p.nextToken()
	fn := p.parseFunctionBody(stmt.Token, name.Method != nil)
	if p.failed {
		return nil
	}
	stmt.Fn = fn
	return stmt
}

func (p *Parser) parseLocalStatement() ast.Statement {
	localTok := p.curToken

	if p.peekTokenIs(token.FUNCTION) {
		p.nextToken()
		if !p.expectPeek(token.NAME) {
			return nil
		}
		name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)}
		p.nextToken()
		fn := p.parseFunctionBody(localTok, false)
		if p.failed {
			return nil
		}
		return &ast.LocalFunction{Token: localTok, Name: name, Fn: fn}
	}

	stmt := &ast.LocalStatement{Token: localTok}
	if !p.expectPeek(token.NAME) {
		return nil
	}
	stmt.Names = append(stmt.Names, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)})
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek(token.NAME) {
			return nil
		}
		stmt.Names = append(stmt.Names, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)})
	}
	if p.peekTokenIs(token.ASSIGN) {
		p.nextToken()
		p.nextToken()
		stmt.Values = p.parseExpressionList()
		if p.failed {
			return nil
		}
	} else {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	p.nextToken()
	if isBlockEnd(p.curToken.Type) || p.curTokenIs(token.SEMICOLON) {
		return stmt
	}
	stmt.Values = p.parseExpressionList()
	if p.failed {
		return nil
	}
	return stmt
}

func (p *Parser) parseGotoStatement() ast.Statement {
	stmt := &ast.GotoStatement{Token: p.curToken}
	if !p.expectPeek(token.NAME) {
		return nil
	}
	stmt.Label = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)}
	p.nextToken()
	return stmt
}

func (p *Parser) parseLabelStatement() ast.Statement {
	stmt := &ast.LabelStatement{Token: p.curToken}
	if !p.expectPeek(token.NAME) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)}
	if !p.expectPeek(token.DOUBLECOLON) {
		return nil
	}
	p.nextToken()
	return stmt
}

// parseExpressionStatement handles assignments and bare calls, the two
// statement forms that begin with a prefix expression.
func (p *Parser) parseExpressionStatement() ast.Statement {
	startTok := p.curToken
	expr := p.parseSuffixedExpression()
	if p.failed {
		return nil
	}

	if p.curTokenIs(token.ASSIGN) || p.curTokenIs(token.COMMA) {
		return p.parseAssignStatement(startTok, expr)
	}

	switch expr.(type) {
	case *ast.Call, *ast.MethodCall:
		return &ast.CallStatement{Token: startTok, Call: expr}
	}
	p.errorf(diagnostics.ErrP004, startTok, "expression cannot be used as a statement")
	return nil
}

func (p *Parser) parseAssignStatement(startTok token.Token, first ast.Expression) ast.Statement {
	stmt := &ast.Assign{Targets: []ast.Expression{first}}

	for p.curTokenIs(token.COMMA) {
		p.nextToken()
		target := p.parseSuffixedExpression()
		if p.failed {
			return nil
		}
		stmt.Targets = append(stmt.Targets, target)
	}
	if !p.curTokenIs(token.ASSIGN) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected = in assignment")
		return nil
	}
	stmt.Token = p.curToken

	for _, target := range stmt.Targets {
		switch target.(type) {
		case *ast.Identifier, *ast.Index, *ast.Field:
		default:
			p.errorf(diagnostics.ErrP005, target.GetToken(), "cannot assign to this expression")
			return nil
		}
	}

	p.nextToken()
	stmt.Values = p.parseExpressionList()
	if p.failed {
		return nil
	}
	return stmt
}
