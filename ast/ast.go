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

// Package ast defines the expression tree produced by the parser and
// consumed by the compiler, along with the rewrite-in-place traversal the
// compiler uses to extract function definitions out of the tree.
package ast

import "text/scanner"

// Node is any expression in the tree. Every construct in the surface
// language yields a value, so there is a single Node interface rather than
// a statement/expression split.
type Node interface {
	Pos() scanner.Position
	// Children returns this node's immediate children, for read-only
	// traversal.
	Children() []Node
	// Apply rewrites this node's own immediate children in place by
	// calling f on each of them. It does not recurse; Traverse does.
	Apply(f func(Node) Node)
}

// Traverse applies f to every node in the tree rooted at n: n's children
// are rewritten by n.Apply(f) first, then Traverse recurses into the
// (possibly new) children. Where f replaced a child, the replaced subtree
// is traversed as well, so nodes nested inside it (a FunctionDef inside
// another FunctionDef's body, say) are still visited.
func Traverse(n Node, f func(Node) Node) {
	before := append([]Node(nil), n.Children()...)
	n.Apply(f)
	for i, c := range n.Children() {
		Traverse(c, f)
		if i < len(before) && before[i] != c {
			Traverse(before[i], f)
		}
	}
}

// Root is the top-level program: a sequence of expressions evaluated in
// order, interspersed with any FunctionDef forms (removed by the compiler's
// function-extraction step before code generation).
type Root struct {
	Position scanner.Position
	Body     []Node
}

func (n *Root) Pos() scanner.Position { return n.Position }
func (n *Root) Children() []Node      { return n.Body }
func (n *Root) Apply(f func(Node) Node) {
	for i, c := range n.Body {
		n.Body[i] = f(c)
	}
}

// FunctionDef is a (defun name (params...) body...) form. The compiler
// replaces every FunctionDef it finds in the tree with a NumberLiteral(0)
// placeholder once it has recorded the definition, so FunctionDef never
// reaches emission itself.
type FunctionDef struct {
	Position scanner.Position
	Name     string
	Params   []string
	Body     []Node
}

func (n *FunctionDef) Pos() scanner.Position { return n.Position }
func (n *FunctionDef) Children() []Node      { return n.Body }
func (n *FunctionDef) Apply(f func(Node) Node) {
	for i, c := range n.Body {
		n.Body[i] = f(c)
	}
}

// FunctionCall is a (name args...) form where name is not a reserved word.
type FunctionCall struct {
	Position scanner.Position
	Name     string
	Args     []Node
}

func (n *FunctionCall) Pos() scanner.Position { return n.Position }
func (n *FunctionCall) Children() []Node      { return n.Args }
func (n *FunctionCall) Apply(f func(Node) Node) {
	for i, c := range n.Args {
		n.Args[i] = f(c)
	}
}

// NumberLiteral is an integer constant.
type NumberLiteral struct {
	Position scanner.Position
	Value    int
}

func (n *NumberLiteral) Pos() scanner.Position   { return n.Position }
func (n *NumberLiteral) Children() []Node        { return nil }
func (n *NumberLiteral) Apply(f func(Node) Node) {}

// StringLiteral is a double-quoted string constant, laid out in the data
// segment as a length word followed by one word per byte.
type StringLiteral struct {
	Position scanner.Position
	Value    string
}

func (n *StringLiteral) Pos() scanner.Position   { return n.Position }
func (n *StringLiteral) Children() []Node        { return nil }
func (n *StringLiteral) Apply(f func(Node) Node) {}

// CharacterLiteral is a single-quoted character constant.
type CharacterLiteral struct {
	Position scanner.Position
	Value    rune
}

func (n *CharacterLiteral) Pos() scanner.Position   { return n.Position }
func (n *CharacterLiteral) Children() []Node        { return nil }
func (n *CharacterLiteral) Apply(f func(Node) Node) {}

// VariableValue reads a variable's current value by name.
type VariableValue struct {
	Position scanner.Position
	Name     string
}

func (n *VariableValue) Pos() scanner.Position   { return n.Position }
func (n *VariableValue) Children() []Node        { return nil }
func (n *VariableValue) Apply(f func(Node) Node) {}

// VariableAssignment is a (setq name value) form; its value is the
// assigned expression, and the form itself evaluates to that value.
type VariableAssignment struct {
	Position scanner.Position
	Name     string
	Value    Node
}

func (n *VariableAssignment) Pos() scanner.Position { return n.Position }
func (n *VariableAssignment) Children() []Node      { return []Node{n.Value} }
func (n *VariableAssignment) Apply(f func(Node) Node) {
	n.Value = f(n.Value)
}

// BinaryOperator is the closed set of two-operand operators.
type BinaryOperator int

const (
	OpPlus BinaryOperator = iota
	OpMinus
	OpEquals
	OpLess
	OpGreater
	OpAnd
	OpOr
	OpStore
)

// BinaryOp is a (op left right) form.
type BinaryOp struct {
	Position scanner.Position
	Op       BinaryOperator
	Left     Node
	Right    Node
}

func (n *BinaryOp) Pos() scanner.Position { return n.Position }
func (n *BinaryOp) Children() []Node      { return []Node{n.Left, n.Right} }
func (n *BinaryOp) Apply(f func(Node) Node) {
	n.Left = f(n.Left)
	n.Right = f(n.Right)
}

// UnaryOperator is the closed set of one-operand operators.
type UnaryOperator int

const (
	OpNot UnaryOperator = iota
	OpLoad
	OpPut
)

// UnaryOp is a (op operand) form.
type UnaryOp struct {
	Position scanner.Position
	Op       UnaryOperator
	Operand  Node
}

func (n *UnaryOp) Pos() scanner.Position { return n.Position }
func (n *UnaryOp) Children() []Node      { return []Node{n.Operand} }
func (n *UnaryOp) Apply(f func(Node) Node) {
	n.Operand = f(n.Operand)
}

// NullaryOperator is the closed set of zero-operand operators.
type NullaryOperator int

const (
	OpGet NullaryOperator = iota
)

// NullaryOp is a (op) form, i.e. (get).
type NullaryOp struct {
	Position scanner.Position
	Op       NullaryOperator
}

func (n *NullaryOp) Pos() scanner.Position   { return n.Position }
func (n *NullaryOp) Children() []Node        { return nil }
func (n *NullaryOp) Apply(f func(Node) Node) {}

// Loop is a (loop condition body...) form: condition is tested, and the
// body runs only while it is non-zero. Its value is 0.
type Loop struct {
	Position  scanner.Position
	Condition Node
	Body      []Node
}

func (n *Loop) Pos() scanner.Position { return n.Position }
func (n *Loop) Children() []Node {
	children := make([]Node, 0, len(n.Body)+1)
	children = append(children, n.Body...)
	children = append(children, n.Condition)
	return children
}

// Apply rewrites Body before Condition, mirroring the order the original
// Python LoopExpression.apply uses.
func (n *Loop) Apply(f func(Node) Node) {
	for i, c := range n.Body {
		n.Body[i] = f(c)
	}
	n.Condition = f(n.Condition)
}

// Condition is an (if test then else) form.
type Condition struct {
	Position scanner.Position
	Test     Node
	Then     Node
	Else     Node
}

func (n *Condition) Pos() scanner.Position { return n.Position }
func (n *Condition) Children() []Node      { return []Node{n.Test, n.Then, n.Else} }
func (n *Condition) Apply(f func(Node) Node) {
	n.Test = f(n.Test)
	n.Then = f(n.Then)
	n.Else = f(n.Else)
}

// Allocation is an (alloc size) form, reserving size words in the data
// segment and evaluating to the base address.
type Allocation struct {
	Position scanner.Position
	Size     int
}

func (n *Allocation) Pos() scanner.Position   { return n.Position }
func (n *Allocation) Children() []Node        { return nil }
func (n *Allocation) Apply(f func(Node) Node) {}

// Empty is the value of an empty body or an omitted else-branch; it
// evaluates to 0 and compiles as the number literal 0.
type Empty struct {
	Position scanner.Position
}

func (n *Empty) Pos() scanner.Position   { return n.Position }
func (n *Empty) Children() []Node        { return nil }
func (n *Empty) Apply(f func(Node) Node) {}
