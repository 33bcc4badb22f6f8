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

// Package compiler lowers an ast.Root into a linked pair of instruction and
// data images for the isa package's machine.
//
// Compilation proceeds in five steps: function extraction, reachability
// filtering, variable resolution, emission, and linking — see Compile.
package compiler

import (
	"text/scanner"

	"github.com/pkg/errors"

	"github.com/wieceslaw/lisp-compiler/ast"
	"github.com/wieceslaw/lisp-compiler/isa"
)

// ScopeError reports a variable used before assignment in its scope, a
// duplicate function definition, or a call to an unknown function.
type ScopeError struct {
	Pos scanner.Position
	Msg string
}

func (e *ScopeError) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

// LinkError reports a CALL whose symbolic target has no matching
// function definition.
type LinkError struct {
	Symbol string
}

func (e *LinkError) Error() string {
	return "unresolved call target: " + e.Symbol
}

// Output is the linked pair of images produced by Compile.
type Output struct {
	Code []isa.Instruction
	Data []isa.Word
}

// funcScope holds the frame layout for the function currently being emitted.
type funcScope struct {
	def    *ast.FunctionDef
	params map[string]int // name -> offset from FP
	locals map[string]int // name -> offset from FP
}

type compiler struct {
	data  *DataSegment
	text  *TextSegment
	defs  map[string]*ast.FunctionDef
	order []string // extraction order, for deterministic emission

	rootVars map[string]int // name -> absolute data address

	funcEntry map[string]int // name -> instruction index of entry NOP
	cur       *funcScope     // nil while emitting the root
}

// Compile lowers root into a linked program, given fixed data and
// instruction memory capacities.
func Compile(root *ast.Root, dataCapacity, textCapacity int) (*Output, error) {
	c := &compiler{
		data:      NewDataSegment(dataCapacity),
		text:      NewTextSegment(textCapacity),
		funcEntry: make(map[string]int),
	}

	defs, order, err := extractFunctions(root)
	if err != nil {
		return nil, err
	}
	c.defs = defs
	c.order = order

	reachable := reachableFunctions(root, defs)

	rootVars, err := collectAssignedNames(root)
	if err != nil {
		return nil, err
	}
	c.rootVars = make(map[string]int, len(rootVars))
	for _, name := range rootVars {
		addr, err := c.data.PutWord(0)
		if err != nil {
			return nil, err
		}
		c.rootVars[name] = addr
	}

	if err := c.emitRoot(root); err != nil {
		return nil, err
	}
	for _, name := range order {
		if !reachable[name] {
			continue
		}
		if err := c.emitFunction(c.defs[name]); err != nil {
			return nil, err
		}
	}

	if err := c.link(); err != nil {
		return nil, err
	}

	return &Output{Code: c.text.Instructions(), Data: c.data.Layout()}, nil
}

// extractFunctions implements Step A: every FunctionDef is removed from
// the tree (replaced by NumberLiteral(0)) and recorded by name.
func extractFunctions(root *ast.Root) (map[string]*ast.FunctionDef, []string, error) {
	defs := make(map[string]*ast.FunctionDef)
	var order []string
	var dupErr error
	ast.Traverse(root, func(n ast.Node) ast.Node {
		def, ok := n.(*ast.FunctionDef)
		if !ok {
			return n
		}
		if _, exists := defs[def.Name]; exists && dupErr == nil {
			dupErr = &ScopeError{Pos: def.Pos(), Msg: "duplicate function definition: " + def.Name}
		}
		defs[def.Name] = def
		order = append(order, def.Name)
		return &ast.NumberLiteral{Position: def.Position, Value: 0}
	})
	if dupErr != nil {
		return nil, nil, dupErr
	}
	return defs, order, nil
}

// collectCalls returns every FunctionCall name appearing anywhere under n.
func collectCalls(n ast.Node) []string {
	var names []string
	ast.Traverse(n, func(n ast.Node) ast.Node {
		if call, ok := n.(*ast.FunctionCall); ok {
			names = append(names, call.Name)
		}
		return n
	})
	return names
}

// reachableFunctions implements Step B: the transitive closure of callees
// starting from calls appearing in root.
func reachableFunctions(root *ast.Root, defs map[string]*ast.FunctionDef) map[string]bool {
	reached := make(map[string]bool)
	queue := collectCalls(root)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if reached[name] {
			continue
		}
		def, ok := defs[name]
		if !ok {
			continue // unknown function: reported later, at the call site
		}
		reached[name] = true
		queue = append(queue, collectCalls(def)...)
	}
	return reached
}

// collectAssignedNames implements the root half of Step C: the set of
// names assigned anywhere under n, in first-occurrence order.
func collectAssignedNames(n ast.Node) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	ast.Traverse(n, func(n ast.Node) ast.Node {
		if a, ok := n.(*ast.VariableAssignment); ok {
			if !seen[a.Name] {
				seen[a.Name] = true
				names = append(names, a.Name)
			}
		}
		return n
	})
	return names, nil
}

// functionScope implements the function half of Step C: parameters get
// fixed positive offsets from the call convention; locals are the
// assigned names not already a parameter, placed immediately below the
// saved frame pointer so they never alias it.
func functionScope(def *ast.FunctionDef) (*funcScope, error) {
	params := make(map[string]int, len(def.Params))
	n := len(def.Params)
	for i, name := range def.Params {
		params[name] = 2 + n - (i + 1)
	}

	assigned, err := collectAssignedNames(&ast.Root{Body: def.Body})
	if err != nil {
		return nil, err
	}
	locals := make(map[string]int)
	k := 0
	for _, name := range assigned {
		if _, isParam := params[name]; isParam {
			continue
		}
		locals[name] = -(k + 1)
		k++
	}
	return &funcScope{def: def, params: params, locals: locals}, nil
}

func (c *compiler) localCount() int {
	if c.cur == nil {
		return 0
	}
	return len(c.cur.locals)
}

// resolveVariable looks up name in the current scope (function locals and
// parameters, falling back to root globals), returning the address to use
// for LD/ST.
func (c *compiler) resolveVariable(pos scanner.Position, name string) (isa.Address, error) {
	if c.cur != nil {
		if off, ok := c.cur.params[name]; ok {
			return isa.RelativeAddr(isa.FramePointer, off), nil
		}
		if off, ok := c.cur.locals[name]; ok {
			return isa.RelativeAddr(isa.FramePointer, off), nil
		}
	}
	if addr, ok := c.rootVars[name]; ok {
		return isa.AbsoluteAddr(addr), nil
	}
	return isa.Address{}, &ScopeError{Pos: pos, Msg: "variable used before assignment: " + name}
}

func (c *compiler) emitRoot(root *ast.Root) error {
	if _, err := c.text.WriteNop(); err != nil {
		return err
	}
	for _, expr := range root.Body {
		if err := c.compileExpr(expr); err != nil {
			return err
		}
		if _, err := c.text.WritePop(); err != nil {
			return err
		}
	}
	_, err := c.text.Write(isa.Instruction{Op: isa.OpHalt})
	return err
}

func (c *compiler) emitFunction(def *ast.FunctionDef) error {
	scope, err := functionScope(def)
	if err != nil {
		return err
	}
	c.cur = scope

	idx, err := c.text.WriteNop()
	if err != nil {
		return err
	}
	c.funcEntry[def.Name] = idx

	for i := 0; i < len(scope.locals); i++ {
		if _, err := c.text.WritePush(); err != nil {
			return err
		}
	}

	if len(def.Body) == 0 {
		if _, err := c.text.WritePush(); err != nil {
			return err
		}
	} else {
		for i, expr := range def.Body {
			if err := c.compileExpr(expr); err != nil {
				return err
			}
			if i != len(def.Body)-1 {
				if _, err := c.text.WritePop(); err != nil {
					return err
				}
			}
		}
	}

	if err := c.text.WriteStackLoad(0); err != nil {
		return err
	}
	for i := 0; i < len(scope.locals)+1; i++ {
		if _, err := c.text.WritePop(); err != nil {
			return err
		}
	}
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpRet}); err != nil {
		return err
	}

	c.cur = nil
	return nil
}

// link implements Step E: every CALL's symbolic target is resolved to the
// instruction index of the callee's entry NOP.
func (c *compiler) link() error {
	for i, ins := range c.text.instructions {
		if !ins.Unresolved() {
			continue
		}
		entry, ok := c.funcEntry[ins.Symbol]
		if !ok {
			return &LinkError{Symbol: ins.Symbol}
		}
		c.text.Patch(i, isa.ControlFlowAddr(entry))
	}
	return nil
}

func sp(offset int) isa.Address { return isa.RelativeAddr(isa.StackPointer, offset) }

// compileExpr implements Step D's per-expression dispatch.
func (c *compiler) compileExpr(n ast.Node) error {
	switch e := n.(type) {
	case *ast.Empty:
		// An empty form still has to satisfy invariant 1 (every compiled
		// expression nets exactly one stack word); it stands for "no
		// value", which compiles as the neutral 0, same as a missing
		// else branch.
		return c.compileNumberLiteral(&ast.NumberLiteral{Position: e.Position, Value: 0})
	case *ast.NumberLiteral:
		return c.compileNumberLiteral(e)
	case *ast.StringLiteral:
		return c.compileStringLiteral(e)
	case *ast.CharacterLiteral:
		return c.compileNumberLiteral(&ast.NumberLiteral{Position: e.Position, Value: int(e.Value)})
	case *ast.VariableValue:
		return c.compileVariableValue(e)
	case *ast.VariableAssignment:
		return c.compileAssignment(e)
	case *ast.Allocation:
		return c.compileAllocation(e)
	case *ast.FunctionCall:
		return c.compileFunctionCall(e)
	case *ast.BinaryOp:
		return c.compileBinaryOp(e)
	case *ast.UnaryOp:
		return c.compileUnaryOp(e)
	case *ast.NullaryOp:
		return c.compileNullaryOp(e)
	case *ast.Loop:
		return c.compileLoop(e)
	case *ast.Condition:
		return c.compileCondition(e)
	default:
		return errors.Errorf("%v: unhandled expression type %T", n.Pos(), n)
	}
}

func (c *compiler) compileNumberLiteral(e *ast.NumberLiteral) error {
	addr, err := c.data.PutWord(isa.Word(e.Value))
	if err != nil {
		return err
	}
	a := isa.AbsoluteAddr(addr)
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpLd, Addr: &a}); err != nil {
		return err
	}
	return c.text.WriteAccumulatorPush()
}

func (c *compiler) compileStringLiteral(e *ast.StringLiteral) error {
	lenAddr, err := c.data.PutString(e.Value)
	if err != nil {
		return err
	}
	indirAddr, err := c.data.PutWord(isa.Word(lenAddr))
	if err != nil {
		return err
	}
	a := isa.AbsoluteAddr(indirAddr)
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpLd, Addr: &a}); err != nil {
		return err
	}
	return c.text.WriteAccumulatorPush()
}

func (c *compiler) compileVariableValue(e *ast.VariableValue) error {
	addr, err := c.resolveVariable(e.Position, e.Name)
	if err != nil {
		return err
	}
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpLd, Addr: &addr}); err != nil {
		return err
	}
	return c.text.WriteAccumulatorPush()
}

func (c *compiler) compileAssignment(e *ast.VariableAssignment) error {
	if err := c.compileExpr(e.Value); err != nil {
		return err
	}
	if err := c.text.WriteStackLoad(0); err != nil {
		return err
	}
	addr, err := c.resolveVariable(e.Position, e.Name)
	if err != nil {
		return err
	}
	_, err = c.text.Write(isa.Instruction{Op: isa.OpSt, Addr: &addr})
	return err
}

func (c *compiler) compileAllocation(e *ast.Allocation) error {
	bufAddr, err := c.data.Allocate(e.Size)
	if err != nil {
		return err
	}
	indirAddr, err := c.data.PutWord(isa.Word(bufAddr))
	if err != nil {
		return err
	}
	if _, err := c.text.WritePush(); err != nil {
		return err
	}
	a := isa.AbsoluteAddr(indirAddr)
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpLd, Addr: &a}); err != nil {
		return err
	}
	top := sp(0)
	_, err = c.text.Write(isa.Instruction{Op: isa.OpSt, Addr: &top})
	return err
}

func (c *compiler) compileFunctionCall(e *ast.FunctionCall) error {
	if _, defined := c.defs[e.Name]; !defined {
		return &ScopeError{Pos: e.Position, Msg: "call to unknown function: " + e.Name}
	}
	for _, arg := range e.Args {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpCall, Symbol: e.Name}); err != nil {
		return err
	}
	for range e.Args {
		if _, err := c.text.WritePop(); err != nil {
			return err
		}
	}
	return c.text.WriteAccumulatorPush()
}

// compileBinaryArgs compiles left then right, leaving left at sp+1 and
// right at sp (top); the shared shape for every binary operator.
func (c *compiler) compileBinaryArgs(left, right ast.Node) error {
	if err := c.compileExpr(left); err != nil {
		return err
	}
	if err := c.compileExpr(right); err != nil {
		return err
	}
	return c.text.WriteStackLoad(1)
}

func (c *compiler) finishBinary() error {
	top := sp(1)
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpSt, Addr: &top}); err != nil {
		return err
	}
	_, err := c.text.WritePop()
	return err
}

var arithmeticOps = map[ast.BinaryOperator]isa.Opcode{
	ast.OpPlus:  isa.OpAdd,
	ast.OpMinus: isa.OpSub,
	ast.OpAnd:   isa.OpAnd,
	ast.OpOr:    isa.OpOr,
}

func (c *compiler) compileBinaryOp(e *ast.BinaryOp) error {
	if e.Op == ast.OpStore {
		return c.compileStore(e)
	}
	if err := c.compileBinaryArgs(e.Left, e.Right); err != nil {
		return err
	}
	operand := sp(0)
	switch e.Op {
	case ast.OpPlus, ast.OpMinus, ast.OpAnd, ast.OpOr:
		op := arithmeticOps[e.Op]
		if _, err := c.text.Write(isa.Instruction{Op: op, Addr: &operand}); err != nil {
			return err
		}
	case ast.OpEquals, ast.OpLess, ast.OpGreater:
		if _, err := c.text.Write(isa.Instruction{Op: isa.OpSub, Addr: &operand}); err != nil {
			return err
		}
		predicate := isa.OpIsZero
		switch e.Op {
		case ast.OpLess:
			predicate = isa.OpIsNeg
		case ast.OpGreater:
			predicate = isa.OpIsPos
		}
		if _, err := c.text.Write(isa.Instruction{Op: predicate}); err != nil {
			return err
		}
	default:
		return errors.Errorf("%v: unhandled binary operator", e.Position)
	}
	return c.finishBinary()
}

func (c *compiler) compileStore(e *ast.BinaryOp) error {
	if err := c.compileExpr(e.Left); err != nil { // address
		return err
	}
	if err := c.compileExpr(e.Right); err != nil { // value
		return err
	}
	if err := c.text.WriteStackLoad(0); err != nil { // AC = value
		return err
	}
	target := isa.RelativeIndirectAddr(isa.StackPointer, 1)
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpSt, Addr: &target}); err != nil {
		return err
	}
	slot := sp(1)
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpSt, Addr: &slot}); err != nil {
		return err
	}
	_, err := c.text.WritePop()
	return err
}

func (c *compiler) compileUnaryOp(e *ast.UnaryOp) error {
	if err := c.compileExpr(e.Operand); err != nil {
		return err
	}
	operand := sp(0)
	switch e.Op {
	case ast.OpNot:
		if _, err := c.text.Write(isa.Instruction{Op: isa.OpNot, Addr: &operand}); err != nil {
			return err
		}
	case ast.OpPut:
		if _, err := c.text.Write(isa.Instruction{Op: isa.OpPut, Addr: &operand}); err != nil {
			return err
		}
	case ast.OpLoad:
		indirect := isa.RelativeIndirectAddr(isa.StackPointer, 0)
		if _, err := c.text.Write(isa.Instruction{Op: isa.OpLd, Addr: &indirect}); err != nil {
			return err
		}
	default:
		return errors.Errorf("%v: unhandled unary operator", e.Position)
	}
	slot := sp(0)
	_, err := c.text.Write(isa.Instruction{Op: isa.OpSt, Addr: &slot})
	return err
}

func (c *compiler) compileNullaryOp(e *ast.NullaryOp) error {
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpGet}); err != nil {
		return err
	}
	return c.text.WriteAccumulatorPush()
}

// compileLoop emits: NOP (top); condition; JZ exit; POP (discard condition
// value); body expressions each followed by POP; JMP top; NOP (bottom),
// which the JZ targets. The JZ exit skips the POP, so the condition's final
// value — always 0, since JZ only exits on 0 — stays on the stack and in
// the accumulator as the loop's result. The loop construct therefore nets
// +1 with a constant 0 regardless of how many times the body ran,
// including a zero-iteration loop.
func (c *compiler) compileLoop(e *ast.Loop) error {
	top, err := c.text.WriteNop()
	if err != nil {
		return err
	}
	if err := c.compileExpr(e.Condition); err != nil {
		return err
	}
	if err := c.text.WriteStackLoad(0); err != nil {
		return err
	}
	exitJump, err := c.text.Write(isa.Instruction{Op: isa.OpJz})
	if err != nil {
		return err
	}
	if _, err := c.text.WritePop(); err != nil {
		return err
	}
	for _, expr := range e.Body {
		if err := c.compileExpr(expr); err != nil {
			return err
		}
		if _, err := c.text.WritePop(); err != nil {
			return err
		}
	}
	backAddr := isa.ControlFlowAddr(top)
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpJmp, Addr: &backAddr}); err != nil {
		return err
	}
	bottom, err := c.text.WriteNop()
	if err != nil {
		return err
	}
	c.text.Patch(exitJump, isa.ControlFlowAddr(bottom))
	return nil
}

// compileCondition emits: test; JZ false; true branch; JMP merge; NOP
// (false label); false branch; merge cleanup (ST into the test's old slot,
// POP), which both branches reach — the true branch via its JMP, the false
// branch by falling through. Collapsing the test's stale slot and the
// branch's own result slot into one is what keeps the conditional's net
// stack effect at +1 regardless of which branch ran.
func (c *compiler) compileCondition(e *ast.Condition) error {
	if err := c.compileExpr(e.Test); err != nil {
		return err
	}
	if err := c.text.WriteStackLoad(0); err != nil {
		return err
	}
	falseJump, err := c.text.Write(isa.Instruction{Op: isa.OpJz})
	if err != nil {
		return err
	}
	if err := c.compileExpr(e.Then); err != nil {
		return err
	}
	endJump, err := c.text.Write(isa.Instruction{Op: isa.OpJmp})
	if err != nil {
		return err
	}
	falseLabel, err := c.text.WriteNop()
	if err != nil {
		return err
	}
	c.text.Patch(falseJump, isa.ControlFlowAddr(falseLabel))
	if err := c.compileExpr(e.Else); err != nil {
		return err
	}
	merge := c.text.Len()
	c.text.Patch(endJump, isa.ControlFlowAddr(merge))
	slot := sp(1)
	if _, err := c.text.Write(isa.Instruction{Op: isa.OpSt, Addr: &slot}); err != nil {
		return err
	}
	_, err = c.text.WritePop()
	return err
}
