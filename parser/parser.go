// This file is part of lisp-compiler - https://github.com/wieceslaw/lisp-compiler
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parser turns a token stream into an ast.Root by recursive
// descent over the surface grammar's parenthesized forms.
package parser

import (
	"text/scanner"

	"github.com/pkg/errors"

	"github.com/wieceslaw/lisp-compiler/ast"
	"github.com/wieceslaw/lisp-compiler/lexer"
)

// Error is a single parse failure, carrying the offending position. Like
// the lexer, the parser aborts at the first error instead of collecting
// several — the recursive-descent structure does not recover cleanly
// enough from a malformed form to keep parsing past it.
type Error struct {
	Pos scanner.Position
	Msg string
}

func (e *Error) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

type parser struct {
	tokens []lexer.Token
	pos    int
}

// Parse tokenizes and parses src into a program root.
func Parse(filename, src string) (*ast.Root, error) {
	tokens, err := lexer.Tokenize(filename, src)
	if err != nil {
		return nil, errors.Wrap(err, "lexing")
	}
	return ParseTokens(tokens)
}

// ParseTokens parses an already-tokenized source into a program root.
func ParseTokens(tokens []lexer.Token) (*ast.Root, error) {
	p := &parser{tokens: tokens}
	pos := p.peek().Pos
	var body []ast.Node
	for p.peek().Type != lexer.EOF {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		body = append(body, expr)
	}
	return &ast.Root{Position: pos, Body: body}, nil
}

func (p *parser) peek() lexer.Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(pos scanner.Position, format string, args ...interface{}) error {
	return &Error{Pos: pos, Msg: errors.Errorf(format, args...).Error()}
}

func (p *parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.errorf(tok.Pos, "expected %v, got %v %q", tt, tok.Type, tok.Text)
	}
	return p.advance(), nil
}

// parseExpression parses one top-level expression: an atom or a
// parenthesized form.
func (p *parser) parseExpression() (ast.Node, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.OpenBracket:
		return p.parseBracketed()
	case lexer.NumberLiteral:
		p.advance()
		return &ast.NumberLiteral{Position: tok.Pos, Value: tok.Int}, nil
	case lexer.StringLiteral:
		p.advance()
		return &ast.StringLiteral{Position: tok.Pos, Value: tok.Text}, nil
	case lexer.CharacterLiteral:
		p.advance()
		return &ast.CharacterLiteral{Position: tok.Pos, Value: rune(tok.Int)}, nil
	case lexer.Ident:
		p.advance()
		return &ast.VariableValue{Position: tok.Pos, Name: tok.Text}, nil
	default:
		return nil, p.errorf(tok.Pos, "unexpected token %v %q", tok.Type, tok.Text)
	}
}

// parseBody parses expressions until the next CloseBracket (exclusive),
// without consuming the bracket.
func (p *parser) parseBody() ([]ast.Node, error) {
	var body []ast.Node
	for p.peek().Type != lexer.CloseBracket {
		if p.peek().Type == lexer.EOF {
			return nil, p.errorf(p.peek().Pos, "unexpected end of input, expected )")
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		body = append(body, expr)
	}
	return body, nil
}

func (p *parser) parseBracketed() (ast.Node, error) {
	open := p.peek()
	p.advance()

	head := p.peek()
	var node ast.Node
	var err error
	switch head.Type {
	case lexer.KeyDefun:
		node, err = p.parseFunctionDef(open.Pos)
	case lexer.KeyIf:
		node, err = p.parseCondition(open.Pos)
	case lexer.KeyLoop:
		node, err = p.parseLoop(open.Pos)
	case lexer.KeySetq:
		node, err = p.parseAssignment(open.Pos)
	case lexer.KeyAlloc:
		node, err = p.parseAllocation(open.Pos)
	case lexer.KeyGet:
		node, err = p.parseNullary(open.Pos)
	case lexer.Not, lexer.KeyLoad, lexer.KeyPut:
		node, err = p.parseUnary(open.Pos)
	case lexer.Plus, lexer.Sub, lexer.Equals, lexer.Less, lexer.Greater, lexer.And, lexer.Or, lexer.KeyStore:
		node, err = p.parseBinary(open.Pos)
	case lexer.Ident:
		node, err = p.parseFunctionCall(open.Pos)
	case lexer.CloseBracket:
		node, err = &ast.Empty{Position: open.Pos}, nil
	default:
		return nil, p.errorf(head.Pos, "unexpected token %v %q after (", head.Type, head.Text)
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.CloseBracket); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) parseFunctionDef(pos scanner.Position) (ast.Node, error) {
	p.advance() // defun
	name, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.OpenBracket); err != nil {
		return nil, err
	}
	var params []string
	for p.peek().Type != lexer.CloseBracket {
		ptok, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		params = append(params, ptok.Text)
	}
	if _, err := p.expect(lexer.CloseBracket); err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDef{Position: pos, Name: name.Text, Params: params, Body: body}, nil
}

func (p *parser) parseCondition(pos scanner.Position) (ast.Node, error) {
	p.advance() // if
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	var els ast.Node = &ast.Empty{Position: p.peek().Pos}
	if p.peek().Type != lexer.CloseBracket {
		els, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Condition{Position: pos, Test: test, Then: then, Else: els}, nil
}

func (p *parser) parseLoop(pos scanner.Position) (ast.Node, error) {
	p.advance() // loop
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ast.Loop{Position: pos, Condition: cond, Body: body}, nil
}

func (p *parser) parseAssignment(pos scanner.Position) (ast.Node, error) {
	p.advance() // setq
	name, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.VariableAssignment{Position: pos, Name: name.Text, Value: value}, nil
}

func (p *parser) parseAllocation(pos scanner.Position) (ast.Node, error) {
	p.advance() // alloc
	size, err := p.expect(lexer.NumberLiteral)
	if err != nil {
		return nil, err
	}
	return &ast.Allocation{Position: pos, Size: size.Int}, nil
}

func (p *parser) parseNullary(pos scanner.Position) (ast.Node, error) {
	p.advance() // get
	return &ast.NullaryOp{Position: pos, Op: ast.OpGet}, nil
}

var unaryOps = map[lexer.TokenType]ast.UnaryOperator{
	lexer.Not:     ast.OpNot,
	lexer.KeyLoad: ast.OpLoad,
	lexer.KeyPut:  ast.OpPut,
}

func (p *parser) parseUnary(pos scanner.Position) (ast.Node, error) {
	op := unaryOps[p.peek().Type]
	p.advance()
	operand, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryOp{Position: pos, Op: op, Operand: operand}, nil
}

var binaryOps = map[lexer.TokenType]ast.BinaryOperator{
	lexer.Plus:     ast.OpPlus,
	lexer.Sub:      ast.OpMinus,
	lexer.Equals:   ast.OpEquals,
	lexer.Less:     ast.OpLess,
	lexer.Greater:  ast.OpGreater,
	lexer.And:      ast.OpAnd,
	lexer.Or:       ast.OpOr,
	lexer.KeyStore: ast.OpStore,
}

func (p *parser) parseBinary(pos scanner.Position) (ast.Node, error) {
	op := binaryOps[p.peek().Type]
	p.advance()
	left, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	right, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryOp{Position: pos, Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseFunctionCall(pos scanner.Position) (ast.Node, error) {
	name := p.advance()
	var args []ast.Node
	for p.peek().Type != lexer.CloseBracket {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &ast.FunctionCall{Position: pos, Name: name.Text, Args: args}, nil
}
