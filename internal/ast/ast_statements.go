package ast

import (
	"github.com/Chubek/Moonix/internal/token"
)

// Assign represents target-list = value-list. Targets are prefix
// expressions (Identifier, Index or Field); the compiler rejects anything
// else as an lvalue.
type Assign struct {
	Token   token.Token // the = token
	Targets []Expression
	Values  []Expression
}

func (a *Assign) statementNode()       {}
func (a *Assign) TokenLiteral() string { return a.Token.Lexeme }
func (a *Assign) GetToken() token.Token {
	if a == nil {
		return token.Token{}
	}
	return a.Token
}

// CallStatement is a function or method call in statement position.
type CallStatement struct {
	Token token.Token
	Call  Expression // *Call or *MethodCall
}

func (c *CallStatement) statementNode()       {}
func (c *CallStatement) TokenLiteral() string { return c.Token.Lexeme }
func (c *CallStatement) GetToken() token.Token {
	if c == nil {
		return token.Token{}
	}
	return c.Token
}

// DoStatement represents do ... end.
type DoStatement struct {
	Token token.Token
	Body  *Block
}

func (d *DoStatement) statementNode()       {}
func (d *DoStatement) TokenLiteral() string { return d.Token.Lexeme }
func (d *DoStatement) GetToken() token.Token {
	if d == nil {
		return token.Token{}
	}
	return d.Token
}

// WhileStatement represents while cond do body end.
type WhileStatement struct {
	Token     token.Token
	Condition Expression
	Body      *Block
}

func (w *WhileStatement) statementNode()       {}
func (w *WhileStatement) TokenLiteral() string { return w.Token.Lexeme }
func (w *WhileStatement) GetToken() token.Token {
	if w == nil {
		return token.Token{}
	}
	return w.Token
}

// RepeatStatement represents repeat body until cond. The condition is
// evaluated in the scope of the body's locals.
type RepeatStatement struct {
	Token     token.Token
	Body      *Block
	Condition Expression
}

func (r *RepeatStatement) statementNode()       {}
func (r *RepeatStatement) TokenLiteral() string { return r.Token.Lexeme }
func (r *RepeatStatement) GetToken() token.Token {
	if r == nil {
		return token.Token{}
	}
	return r.Token
}

// CondBlock pairs a condition with the block it guards.
type CondBlock struct {
	Condition Expression
	Body      *Block
}

// IfStatement represents if/elseif/else chains. CondBlocks always has at
// least one entry (the if arm); ElseBlock may be nil.
type IfStatement struct {
	Token      token.Token
	CondBlocks []CondBlock
	ElseBlock  *Block
}

func (i *IfStatement) statementNode()       {}
func (i *IfStatement) TokenLiteral() string { return i.Token.Lexeme }
func (i *IfStatement) GetToken() token.Token {
	if i == nil {
		return token.Token{}
	}
	return i.Token
}

// NumericFor represents for name = start, stop [, step] do body end.
type NumericFor struct {
	Token token.Token
	Name  *Identifier
	Start Expression
	Stop  Expression
	Step  Expression // nil means 1
	Body  *Block
}

func (n *NumericFor) statementNode()       {}
func (n *NumericFor) TokenLiteral() string { return n.Token.Lexeme }
func (n *NumericFor) GetToken() token.Token {
	if n == nil {
		return token.Token{}
	}
	return n.Token
}

// GenericFor represents for names in explist do body end.
type GenericFor struct {
	Token token.Token
	Names []*Identifier
	Exprs []Expression
	Body  *Block
}

func (g *GenericFor) statementNode()       {}
func (g *GenericFor) TokenLiteral() string { return g.Token.Lexeme }
func (g *GenericFor) GetToken() token.Token {
	if g == nil {
		return token.Token{}
	}
	return g.Token
}

// FunctionName is the a.b.c or a.b:m target of a function statement.
type FunctionName struct {
	Token    token.Token
	Base     *Identifier
	Path     []*Identifier // dotted segments after the base
	Method   *Identifier   // non-nil for a.b:m
}

// FunctionStatement represents function name body end.
type FunctionStatement struct {
	Token token.Token
	Name  *FunctionName
	Fn    *FunctionLiteral
}

func (f *FunctionStatement) statementNode()       {}
func (f *FunctionStatement) TokenLiteral() string { return f.Token.Lexeme }
func (f *FunctionStatement) GetToken() token.Token {
	if f == nil {
		return token.Token{}
	}
	return f.Token
}

// LocalFunction represents local function name body end. The name is in
// scope inside the body, so recursive references resolve to the local.
type LocalFunction struct {
	Token token.Token
	Name  *Identifier
	Fn    *FunctionLiteral
}

func (l *LocalFunction) statementNode()       {}
func (l *LocalFunction) TokenLiteral() string { return l.Token.Lexeme }
func (l *LocalFunction) GetToken() token.Token {
	if l == nil {
		return token.Token{}
	}
	return l.Token
}

// LocalStatement represents local names [= values].
type LocalStatement struct {
	Token  token.Token
	Names  []*Identifier
	Values []Expression
}

func (l *LocalStatement) statementNode()       {}
func (l *LocalStatement) TokenLiteral() string { return l.Token.Lexeme }
func (l *LocalStatement) GetToken() token.Token {
	if l == nil {
		return token.Token{}
	}
	return l.Token
}

// ReturnStatement terminates a block. Values may be empty.
type ReturnStatement struct {
	Token  token.Token
	Values []Expression
}

func (r *ReturnStatement) statementNode()       {}
func (r *ReturnStatement) TokenLiteral() string { return r.Token.Lexeme }
func (r *ReturnStatement) GetToken() token.Token {
	if r == nil {
		return token.Token{}
	}
	return r.Token
}

// BreakStatement terminates the innermost loop.
type BreakStatement struct {
	Token token.Token
}

func (b *BreakStatement) statementNode()       {}
func (b *BreakStatement) TokenLiteral() string { return b.Token.Lexeme }
func (b *BreakStatement) GetToken() token.Token {
	if b == nil {
		return token.Token{}
	}
	return b.Token
}

// GotoStatement transfers control to a label in the same function.
type GotoStatement struct {
	Token token.Token
	Label *Identifier
}

func (g *GotoStatement) statementNode()       {}
func (g *GotoStatement) TokenLiteral() string { return g.Token.Lexeme }
func (g *GotoStatement) GetToken() token.Token {
	if g == nil {
		return token.Token{}
	}
	return g.Token
}

// LabelStatement represents ::name::.
type LabelStatement struct {
	Token token.Token
	Name  *Identifier
}

func (l *LabelStatement) statementNode()       {}
func (l *LabelStatement) TokenLiteral() string { return l.Token.Lexeme }
func (l *LabelStatement) GetToken() token.Token {
	if l == nil {
		return token.Token{}
	}
	return l.Token
}
