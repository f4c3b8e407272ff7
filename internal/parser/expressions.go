package parser

import (
	"github.com/Chubek/Moonix/internal/ast"
	"github.com/Chubek/Moonix/internal/diagnostics"
	"github.com/Chubek/Moonix/internal/token"
)

// Expression parsing climbs precedence levels, lowest first:
// or, and, comparison, .. (right), + -, * / %, unary, ^ (right), primary.
// Every parse function leaves curToken on the first token after the
// expression it consumed.

func (p *Parser) parseExpression() ast.Expression {
	return p.parseOr()
}

func (p *Parser) parseExpressionList() []ast.Expression {
	exprs := []ast.Expression{p.parseExpression()}
	if p.failed {
		return nil
	}
	for p.curTokenIs(token.COMMA) {
		p.nextToken()
		expr := p.parseExpression()
		if p.failed {
			return nil
		}
		exprs = append(exprs, expr)
	}
	return exprs
}

func (p *Parser) parseOr() ast.Expression {
	left := p.parseAnd()
	for !p.failed && p.curTokenIs(token.OR) {
		opTok := p.curToken
		p.nextToken()
		right := p.parseAnd()
		if p.failed {
			return nil
		}
		left = &ast.Binary{Token: opTok, Operator: "or", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expression {
	left := p.parseComparison()
	for !p.failed && p.curTokenIs(token.AND) {
		opTok := p.curToken
		p.nextToken()
		right := p.parseComparison()
		if p.failed {
			return nil
		}
		left = &ast.Binary{Token: opTok, Operator: "and", Left: left, Right: right}
	}
	return left
}

func isComparisonOp(tt token.TokenType) bool {
	switch tt {
	case token.LT, token.LTE, token.GT, token.GTE, token.EQ, token.NOT_EQ:
		return true
	}
	return false
}

func (p *Parser) parseComparison() ast.Expression {
	left := p.parseConcat()
	for !p.failed && isComparisonOp(p.curToken.Type) {
		opTok := p.curToken
		p.nextToken()
		right := p.parseConcat()
		if p.failed {
			return nil
		}
		left = &ast.Binary{Token: opTok, Operator: opTok.Lexeme, Left: left, Right: right}
	}
	return left
}

// parseConcat right-associates by recursing into the same level for the
// right-hand side.
func (p *Parser) parseConcat() ast.Expression {
	left := p.parseAdditive()
	if p.failed {
		return nil
	}
	if p.curTokenIs(token.CONCAT) {
		opTok := p.curToken
		p.nextToken()
		right := p.parseConcat()
		if p.failed {
			return nil
		}
		return &ast.Binary{Token: opTok, Operator: "..", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for !p.failed && (p.curTokenIs(token.PLUS) || p.curTokenIs(token.MINUS)) {
		opTok := p.curToken
		p.nextToken()
		right := p.parseMultiplicative()
		if p.failed {
			return nil
		}
		left = &ast.Binary{Token: opTok, Operator: opTok.Lexeme, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parseUnary()
	for !p.failed && (p.curTokenIs(token.ASTERISK) || p.curTokenIs(token.SLASH) || p.curTokenIs(token.PERCENT)) {
		opTok := p.curToken
		p.nextToken()
		right := p.parseUnary()
		if p.failed {
			return nil
		}
		left = &ast.Binary{Token: opTok, Operator: opTok.Lexeme, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	switch p.curToken.Type {
	case token.MINUS, token.NOT, token.HASH:
		opTok := p.curToken
		p.nextToken()
		operand := p.parseUnary()
		if p.failed {
			return nil
		}
		return &ast.Unary{Token: opTok, Operator: opTok.Lexeme, Operand: operand}
	}
	return p.parsePower()
}

// parsePower binds tighter than unary on the left but admits unary on
// the right, so -a^b is -(a^b) and a^-b is legal. Right-associative.
func (p *Parser) parsePower() ast.Expression {
	base := p.parsePrimary()
	if p.failed {
		return nil
	}
	if p.curTokenIs(token.CARET) {
		opTok := p.curToken
		p.nextToken()
		right := p.parseUnary()
		if p.failed {
			return nil
		}
		return &ast.Binary{Token: opTok, Operator: "^", Left: base, Right: right}
	}
	return base
}

func (p *Parser) parsePrimary() ast.Expression {
	switch p.curToken.Type {
	case token.NIL:
		expr := &ast.NilLiteral{Token: p.curToken}
		p.nextToken()
		return expr
	case token.TRUE, token.FALSE:
		expr := &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
		p.nextToken()
		return expr
	case token.NUMBER:
		expr := &ast.NumberLiteral{Token: p.curToken, Value: p.curToken.Literal.(float64)}
		p.nextToken()
		return expr
	case token.STRING:
		expr := &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal.(string)}
		p.nextToken()
		return expr
	case token.ELLIPSIS:
		expr := &ast.Varargs{Token: p.curToken}
		p.nextToken()
		return expr
	case token.FUNCTION:
		fnTok := p.curToken
		p.nextToken()
		return p.parseFunctionBody(fnTok, false)
	case token.LBRACE:
		return p.parseTableConstructor()
	case token.NAME, token.LPAREN:
		return p.parseSuffixedExpression()
	}
	p.errorf(diagnostics.ErrP003, p.curToken, "unexpected %s in expression", p.curToken.Type)
	return nil
}

// newlineBeforeCur reports whether a line break preceded curToken.
func (p *Parser) newlineBeforeCur() bool {
	idx := p.pos - 2 // index of curToken in p.tokens
	if idx >= 0 && idx < len(p.nlBefore) {
		return p.nlBefore[idx]
	}
	return false
}

// parseSuffixedExpression parses a prefix expression: a Name or
// parenthesised expression followed by index, field, call and method
// suffixes, applied left to right. Call arguments never attach across a
// line break.
func (p *Parser) parseSuffixedExpression() ast.Expression {
	var expr ast.Expression

	switch p.curToken.Type {
	case token.NAME:
		expr = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)}
		p.nextToken()
	case token.LPAREN:
		parenTok := p.curToken
		p.nextToken()
		inner := p.parseExpression()
		if p.failed {
			return nil
		}
		if !p.curTokenIs(token.RPAREN) {
			p.errorf(diagnostics.ErrP002, p.curToken, "expected ) to close expression")
			return nil
		}
		p.nextToken()
		expr = &ast.Paren{Token: parenTok, Inner: inner}
	default:
		p.errorf(diagnostics.ErrP003, p.curToken, "unexpected %s in expression", p.curToken.Type)
		return nil
	}

	for !p.failed {
		switch p.curToken.Type {
		case token.DOT:
			dotTok := p.curToken
			p.nextToken()
			if !p.curTokenIs(token.NAME) {
				p.errorf(diagnostics.ErrP002, p.curToken, "expected name after .")
				return nil
			}
			name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)}
			p.nextToken()
			expr = &ast.Field{Token: dotTok, Object: expr, Name: name}
		case token.LBRACKET:
			brTok := p.curToken
			p.nextToken()
			key := p.parseExpression()
			if p.failed {
				return nil
			}
			if !p.curTokenIs(token.RBRACKET) {
				p.errorf(diagnostics.ErrP002, p.curToken, "expected ] to close index")
				return nil
			}
			p.nextToken()
			expr = &ast.Index{Token: brTok, Object: expr, Key: key}
		case token.COLON:
			colonTok := p.curToken
			p.nextToken()
			if !p.curTokenIs(token.NAME) {
				p.errorf(diagnostics.ErrP002, p.curToken, "expected method name after :")
				return nil
			}
			method := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)}
			p.nextToken()
			args, ok := p.parseCallArgs()
			if !ok {
				return nil
			}
			expr = &ast.MethodCall{Token: colonTok, Receiver: expr, Method: method, Args: args}
		case token.LPAREN, token.LBRACE, token.STRING:
			if p.newlineBeforeCur() {
				return expr
			}
			callTok := p.curToken
			args, ok := p.parseCallArgs()
			if !ok {
				return nil
			}
			expr = &ast.Call{Token: callTok, Callee: expr, Args: args}
		default:
			return expr
		}
	}
	return nil
}

// parseCallArgs parses one of the three argument forms: ( explist? ),
// a table constructor, or a single string literal.
func (p *Parser) parseCallArgs() ([]ast.Expression, bool) {
	switch p.curToken.Type {
	case token.LPAREN:
		p.nextToken()
		var args []ast.Expression
		if !p.curTokenIs(token.RPAREN) {
			args = p.parseExpressionList()
			if p.failed {
				return nil, false
			}
		}
		if !p.curTokenIs(token.RPAREN) {
			p.errorf(diagnostics.ErrP002, p.curToken, "expected ) to close call")
			return nil, false
		}
		p.nextToken()
		return args, true
	case token.LBRACE:
		tbl := p.parseTableConstructor()
		if p.failed {
			return nil, false
		}
		return []ast.Expression{tbl}, true
	case token.STRING:
		s := &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal.(string)}
		p.nextToken()
		return []ast.Expression{s}, true
	}
	p.errorf(diagnostics.ErrP002, p.curToken, "expected call arguments")
	return nil, false
}

func (p *Parser) parseTableConstructor() ast.Expression {
	tbl := &ast.TableConstructor{Token: p.curToken}
	p.nextToken() // {

	for !p.curTokenIs(token.RBRACE) && !p.failed {
		var field ast.TableField
		switch {
		case p.curTokenIs(token.LBRACKET):
			p.nextToken()
			key := p.parseExpression()
			if p.failed {
				return nil
			}
			if !p.curTokenIs(token.RBRACKET) {
				p.errorf(diagnostics.ErrP002, p.curToken, "expected ] in table key")
				return nil
			}
			p.nextToken()
			if !p.curTokenIs(token.ASSIGN) {
				p.errorf(diagnostics.ErrP002, p.curToken, "expected = after table key")
				return nil
			}
			p.nextToken()
			value := p.parseExpression()
			if p.failed {
				return nil
			}
			field = ast.TableField{Kind: ast.FieldBracketed, Key: key, Value: value}
		case p.curTokenIs(token.NAME) && p.peekTokenIs(token.ASSIGN):
			name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)}
			p.nextToken() // to =
			p.nextToken()
			value := p.parseExpression()
			if p.failed {
				return nil
			}
			field = ast.TableField{Kind: ast.FieldNamed, Name: name, Value: value}
		default:
			value := p.parseExpression()
			if p.failed {
				return nil
			}
			field = ast.TableField{Kind: ast.FieldPositional, Value: value}
		}
		tbl.Fields = append(tbl.Fields, field)

		if p.curTokenIs(token.COMMA) || p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
		} else if !p.curTokenIs(token.RBRACE) {
			p.errorf(diagnostics.ErrP002, p.curToken, "expected , or } in table constructor")
			return nil
		}
	}
	if p.failed {
		return nil
	}
	p.nextToken() // }
	return tbl
}

// parseFunctionBody parses (params) block end. curToken must be the
// opening parenthesis. Method definitions get an implicit self first
// parameter.
func (p *Parser) parseFunctionBody(fnTok token.Token, isMethod bool) *ast.FunctionLiteral {
	fn := &ast.FunctionLiteral{Token: fnTok}
	if isMethod {
		fn.Params = append(fn.Params, &ast.Identifier{Token: fnTok, Value: "self"})
	}

	if !p.curTokenIs(token.LPAREN) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected ( in function definition")
		return nil
	}
	p.nextToken()

	for !p.curTokenIs(token.RPAREN) && !p.failed {
		switch p.curToken.Type {
		case token.NAME:
			fn.Params = append(fn.Params, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal.(string)})
			p.nextToken()
		case token.ELLIPSIS:
			fn.IsVariadic = true
			p.nextToken()
			if !p.curTokenIs(token.RPAREN) {
				p.errorf(diagnostics.ErrP002, p.curToken, "... must be the last parameter")
				return nil
			}
			continue
		default:
			p.errorf(diagnostics.ErrP002, p.curToken, "expected parameter name")
			return nil
		}
		if p.curTokenIs(token.COMMA) {
			p.nextToken()
			if p.curTokenIs(token.RPAREN) {
				p.errorf(diagnostics.ErrP002, p.curToken, "expected parameter after ,")
				return nil
			}
		}
	}
	if p.failed {
		return nil
	}
	p.nextToken() // )

	fn.Body = p.parseBlock()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.END) {
		p.errorf(diagnostics.ErrP002, p.curToken, "expected end to close function")
		return nil
	}
	p.nextToken()
	return fn
}
