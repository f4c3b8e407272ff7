// Package ast defines the syntax tree produced by the parser.
package ast

import (
	"github.com/Chubek/Moonix/internal/token"
)

// TokenProvider is an interface for any AST node that can provide its
// primary token. This is useful for error reporting.
type TokenProvider interface {
	GetToken() token.Token
}

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
	GetToken() token.Token
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
	GetToken() token.Token
}

// Block is an ordered sequence of statements with an optional terminating
// last statement (return, break or goto). When Last is non-nil it is the
// final statement of the block.
type Block struct {
	Token      token.Token
	Statements []Statement
	Last       Statement // *ReturnStatement, *BreakStatement or *GotoStatement
}

func (b *Block) statementNode() {}
func (b *Block) TokenLiteral() string {
	if len(b.Statements) > 0 {
		return b.Statements[0].TokenLiteral()
	}
	if b.Last != nil {
		return b.Last.TokenLiteral()
	}
	return ""
}
func (b *Block) GetToken() token.Token {
	if b == nil {
		return token.Token{}
	}
	return b.Token
}

// Chunk is the root node of every parse: the top-level block plus the
// source file path it came from.
type Chunk struct {
	File  string
	Block *Block
}

func (c *Chunk) TokenLiteral() string {
	if c.Block != nil {
		return c.Block.TokenLiteral()
	}
	return ""
}

// Identifier represents a name, e.g. a variable reference.
type Identifier struct {
	Token token.Token // the token.NAME token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token {
	if i == nil {
		return token.Token{}
	}
	return i.Token
}

// NilLiteral represents the nil literal.
type NilLiteral struct {
	Token token.Token
}

func (n *NilLiteral) expressionNode()      {}
func (n *NilLiteral) TokenLiteral() string { return n.Token.Lexeme }
func (n *NilLiteral) GetToken() token.Token {
	if n == nil {
		return token.Token{}
	}
	return n.Token
}

// BooleanLiteral represents true/false.
type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (b *BooleanLiteral) expressionNode()      {}
func (b *BooleanLiteral) TokenLiteral() string { return b.Token.Lexeme }
func (b *BooleanLiteral) GetToken() token.Token {
	if b == nil {
		return token.Token{}
	}
	return b.Token
}

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	Token token.Token
	Value float64
}

func (n *NumberLiteral) expressionNode()      {}
func (n *NumberLiteral) TokenLiteral() string { return n.Token.Lexeme }
func (n *NumberLiteral) GetToken() token.Token {
	if n == nil {
		return token.Token{}
	}
	return n.Token
}

// StringLiteral represents a string literal.
type StringLiteral struct {
	Token token.Token
	Value string
}

func (s *StringLiteral) expressionNode()      {}
func (s *StringLiteral) TokenLiteral() string { return s.Token.Lexeme }
func (s *StringLiteral) GetToken() token.Token {
	if s == nil {
		return token.Token{}
	}
	return s.Token
}

// Varargs represents the ... expression.
type Varargs struct {
	Token token.Token
}

func (v *Varargs) expressionNode()      {}
func (v *Varargs) TokenLiteral() string { return v.Token.Lexeme }
func (v *Varargs) GetToken() token.Token {
	if v == nil {
		return token.Token{}
	}
	return v.Token
}
