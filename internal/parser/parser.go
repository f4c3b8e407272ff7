// Package parser builds the AST from a token stream by recursive descent.
// The parser fails fast: the first grammar violation aborts the parse.
package parser

import (
	"github.com/Chubek/Moonix/internal/ast"
	"github.com/Chubek/Moonix/internal/diagnostics"
	"github.com/Chubek/Moonix/internal/pipeline"
	"github.com/Chubek/Moonix/internal/token"
)

type Parser struct {
	tokens   []token.Token // newline-free stream
	nlBefore []bool        // true when a newline preceded tokens[i]
	pos      int

	curToken  token.Token
	peekToken token.Token

	ctx    *pipeline.PipelineContext
	failed bool
}

// New builds a parser over toks. Newline tokens are folded into
// "newline before" flags: the grammar itself is newline-insensitive,
// but call arguments never attach across a line break.
func New(toks []token.Token, ctx *pipeline.PipelineContext) *Parser {
	p := &Parser{ctx: ctx}
	nl := false
	for _, tok := range toks {
		if tok.Type == token.NEWLINE {
			nl = true
			continue
		}
		p.tokens = append(p.tokens, tok)
		p.nlBefore = append(p.nlBefore, nl)
		nl = false
	}
	// Prime curToken and peekToken.
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	if p.pos < len(p.tokens) {
		p.peekToken = p.tokens[p.pos]
		p.pos++
	} else {
		p.peekToken = token.Token{Type: token.EOF, Line: p.curToken.Line, Column: p.curToken.Column}
	}
}

func (p *Parser) curTokenIs(tt token.TokenType) bool  { return p.curToken.Type == tt }
func (p *Parser) peekTokenIs(tt token.TokenType) bool { return p.peekToken.Type == tt }

// expectPeek advances when the next token matches, otherwise records an
// error and poisons the parse.
func (p *Parser) expectPeek(tt token.TokenType) bool {
	if p.peekTokenIs(tt) {
		p.nextToken()
		return true
	}
	p.errorf(diagnostics.ErrP002, p.peekToken, "expected %s, got %s", tt, p.peekToken.Type)
	return false
}

func (p *Parser) errorf(code diagnostics.ErrorCode, tok token.Token, format string, args ...interface{}) {
	if p.failed {
		return
	}
	p.failed = true
	p.ctx.Errors = append(p.ctx.Errors, diagnostics.NewError(code, tok, format, args...))
}

// ParseChunk parses a whole source file.
func (p *Parser) ParseChunk() *ast.Chunk {
	block := p.parseBlock()
	if p.failed {
		return nil
	}
	if !p.curTokenIs(token.EOF) {
		p.errorf(diagnostics.ErrP001, p.curToken, "unexpected %s after block", p.curToken.Type)
		return nil
	}
	return &ast.Chunk{Block: block}
}

// isBlockEnd reports whether tt terminates a block. The caller consumes
// the terminator.
func isBlockEnd(tt token.TokenType) bool {
	switch tt {
	case token.END, token.ELSE, token.ELSEIF, token.UNTIL, token.EOF:
		return true
	}
	return false
}

// parseBlock parses statements until a block terminator. A last
// statement (return, break, goto) ends the block body; only semicolons
// may follow it before the terminator.
func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Token: p.curToken}

	for !isBlockEnd(p.curToken.Type) && !p.failed {
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}
		last := p.parseLastStatement()
		if p.failed {
			return nil
		}
		if last != nil {
			block.Last = last
			for p.curTokenIs(token.SEMICOLON) {
				p.nextToken()
			}
			if !isBlockEnd(p.curToken.Type) {
				p.errorf(diagnostics.ErrP004, p.curToken, "statement after %s", block.Last.TokenLiteral())
			}
			break
		}
		stmt := p.parseStatement()
		if p.failed {
			return nil
		}
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
	}
	if p.failed {
		return nil
	}
	return block
}

// parseLastStatement handles the block-terminating statements, or
// returns nil when the current token starts an ordinary statement.
func (p *Parser) parseLastStatement() ast.Statement {
	switch p.curToken.Type {
	case token.RETURN:
		return p.parseReturnStatement()
	case token.BREAK:
		stmt := &ast.BreakStatement{Token: p.curToken}
		p.nextToken()
		return stmt
	case token.GOTO:
		return p.parseGotoStatement()
	}
	return nil
}
