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

package ast

import "testing"

// extractFunctions mirrors the compiler's Step A: walk the tree, collect
// every FunctionDef by name, and replace each with NumberLiteral(0).
func extractFunctions(root *Root) map[string]*FunctionDef {
	defs := make(map[string]*FunctionDef)
	Traverse(root, func(n Node) Node {
		if def, ok := n.(*FunctionDef); ok {
			defs[def.Name] = def
			return &NumberLiteral{Position: def.Position, Value: 0}
		}
		return n
	})
	return defs
}

func TestTraverseExtractsNestedFunctionDefs(t *testing.T) {
	inner := &FunctionDef{Name: "inner", Body: []Node{&NumberLiteral{Value: 1}}}
	outer := &FunctionDef{Name: "outer", Body: []Node{inner}}
	root := &Root{Body: []Node{outer, &NumberLiteral{Value: 2}}}

	defs := extractFunctions(root)

	if len(defs) != 2 {
		t.Fatalf("expected 2 defs, got %d", len(defs))
	}
	if _, ok := defs["inner"]; !ok {
		t.Errorf("expected inner to be extracted")
	}
	if _, ok := defs["outer"]; !ok {
		t.Errorf("expected outer to be extracted")
	}
	if len(root.Body) != 2 {
		t.Fatalf("expected root body length unchanged, got %d", len(root.Body))
	}
	if _, ok := root.Body[0].(*NumberLiteral); !ok {
		t.Errorf("expected outer replaced by NumberLiteral in root body, got %T", root.Body[0])
	}
}

func TestLoopApplyRewritesBodyBeforeCondition(t *testing.T) {
	var order []string
	body := &NumberLiteral{Value: 1}
	cond := &NumberLiteral{Value: 0}
	loop := &Loop{Body: []Node{body}, Condition: cond}

	loop.Apply(func(n Node) Node {
		if n == body {
			order = append(order, "body")
		}
		if n == cond {
			order = append(order, "condition")
		}
		return n
	})

	if len(order) != 2 || order[0] != "body" || order[1] != "condition" {
		t.Errorf("expected body rewritten before condition, got %v", order)
	}
}

func TestLoopChildrenIncludesConditionLast(t *testing.T) {
	body1 := &NumberLiteral{Value: 1}
	body2 := &NumberLiteral{Value: 2}
	cond := &NumberLiteral{Value: 0}
	loop := &Loop{Body: []Node{body1, body2}, Condition: cond}

	children := loop.Children()
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	if children[2] != Node(cond) {
		t.Errorf("expected condition last, got %v", children[2])
	}
}

func TestConditionChildrenOrder(t *testing.T) {
	test := &NumberLiteral{Value: 1}
	then := &NumberLiteral{Value: 2}
	els := &NumberLiteral{Value: 3}
	c := &Condition{Test: test, Then: then, Else: els}

	children := c.Children()
	if len(children) != 3 || children[0] != Node(test) || children[1] != Node(then) || children[2] != Node(els) {
		t.Errorf("unexpected children order: %v", children)
	}
}

func TestFunctionCallApplyRewritesArgs(t *testing.T) {
	call := &FunctionCall{Name: "f", Args: []Node{&NumberLiteral{Value: 1}, &NumberLiteral{Value: 2}}}
	Traverse(call, func(n Node) Node {
		if lit, ok := n.(*NumberLiteral); ok {
			return &NumberLiteral{Value: lit.Value * 10}
		}
		return n
	})
	if call.Args[0].(*NumberLiteral).Value != 10 || call.Args[1].(*NumberLiteral).Value != 20 {
		t.Errorf("expected args rewritten, got %v", call.Args)
	}
}

func TestEmptyHasNoChildren(t *testing.T) {
	var n Node = &Empty{}
	if n.Children() != nil {
		t.Errorf("expected no children for Empty")
	}
	n.Apply(func(n Node) Node { t.Fatalf("Apply should not call f"); return n })
}
