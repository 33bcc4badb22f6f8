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

// Package isa defines the closed enumerations of the target machine: opcodes,
// addressing modes and registers, plus the linear instruction representation
// the compiler emits and the machine executes.
package isa

import "fmt"

// Word is a single machine cell: a two's-complement 32-bit integer.
// Go's own int32 arithmetic already wraps modulo 2^32, so arithmetic on
// Word never needs an explicit mask.
type Word int32

// Opcode is the closed set of instructions the machine understands.
type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpAnd
	OpOr
	OpNot
	OpLd
	OpSt
	OpPut
	OpGet
	OpPush
	OpPop
	OpJmp
	OpJz
	OpCall
	OpRet
	OpIsPos
	OpIsNeg
	OpIsZero
	OpNop
	OpHalt
)

var opcodeNames = [...]string{
	OpAdd: "add", OpSub: "sub", OpAnd: "and", OpOr: "or", OpNot: "not",
	OpLd: "ld", OpSt: "st", OpPut: "put", OpGet: "get",
	OpPush: "push", OpPop: "pop", OpJmp: "jmp", OpJz: "jz",
	OpCall: "call", OpRet: "ret",
	OpIsPos: "is_pos", OpIsNeg: "is_neg", OpIsZero: "is_zero",
	OpNop: "nop", OpHalt: "halt",
}

var opcodeIndex map[string]Opcode

func init() {
	opcodeIndex = make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		opcodeIndex[name] = Opcode(op)
	}
}

func (o Opcode) String() string {
	if int(o) < 0 || int(o) >= len(opcodeNames) {
		return fmt.Sprintf("opcode(%d)", int(o))
	}
	return opcodeNames[o]
}

// ParseOpcode looks up an opcode by its textual name, as read from a code file.
func ParseOpcode(s string) (Opcode, bool) {
	op, ok := opcodeIndex[s]
	return op, ok
}

// IsAddressBearing reports whether instructions of this opcode must carry an
// address operand. NOT and PUT carry one despite the summary grouping in the
// specification's prose, because both read their operand through the
// operand-fetch phase (see the emission table and PUT's execute
// microprogram) — see DESIGN.md.
func (o Opcode) IsAddressBearing() bool {
	switch o {
	case OpAdd, OpSub, OpAnd, OpOr, OpNot, OpLd, OpSt, OpPut, OpJmp, OpJz, OpCall:
		return true
	default:
		return false
	}
}

// IsMemoryReading reports whether the operand-fetch phase reads data memory
// into the data register for this opcode.
func (o Opcode) IsMemoryReading() bool {
	switch o {
	case OpAdd, OpSub, OpAnd, OpOr, OpNot, OpLd, OpPut:
		return true
	default:
		return false
	}
}

// IsControlFlow reports whether this opcode's address operand names a code
// address rather than a data address.
func (o Opcode) IsControlFlow() bool {
	switch o {
	case OpJmp, OpJz, OpCall:
		return true
	default:
		return false
	}
}

// AddressingMode is the closed set of ways an instruction's operand resolves
// to an effective address.
type AddressingMode int

const (
	Absolute AddressingMode = iota
	Relative
	RelativeIndirect
	ControlFlow
)

var addressingModeNames = [...]string{
	Absolute: "absolute", Relative: "relative",
	RelativeIndirect: "relative-indirect", ControlFlow: "control-flow",
}

var addressingModeIndex map[string]AddressingMode

func init() {
	addressingModeIndex = make(map[string]AddressingMode, len(addressingModeNames))
	for m, name := range addressingModeNames {
		addressingModeIndex[name] = AddressingMode(m)
	}
}

func (m AddressingMode) String() string {
	if int(m) < 0 || int(m) >= len(addressingModeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return addressingModeNames[m]
}

// ParseAddressingMode looks up an addressing mode by its textual name.
func ParseAddressingMode(s string) (AddressingMode, bool) {
	m, ok := addressingModeIndex[s]
	return m, ok
}

// Register is the closed set of registers an addressing mode may be relative to.
type Register int

const (
	StackPointer Register = iota
	FramePointer
)

var registerNames = [...]string{StackPointer: "sp", FramePointer: "fp"}

var registerIndex map[string]Register

func init() {
	registerIndex = make(map[string]Register, len(registerNames))
	for r, name := range registerNames {
		registerIndex[name] = Register(r)
	}
}

func (r Register) String() string {
	if int(r) < 0 || int(r) >= len(registerNames) {
		return fmt.Sprintf("register(%d)", int(r))
	}
	return registerNames[r]
}

// ParseRegister looks up a register by its textual name.
func ParseRegister(s string) (Register, bool) {
	r, ok := registerIndex[s]
	return r, ok
}

// Address is an instruction's operand. Value holds the absolute or
// control-flow target; Offset and Reg hold the relative/relative-indirect
// operand. Which fields are meaningful is determined by Mode.
type Address struct {
	Mode   AddressingMode
	Value  int
	Offset int
	Reg    Register
}

// AbsoluteAddr builds an Absolute address operand.
func AbsoluteAddr(value int) Address { return Address{Mode: Absolute, Value: value} }

// ControlFlowAddr builds a ControlFlow address operand.
func ControlFlowAddr(value int) Address { return Address{Mode: ControlFlow, Value: value} }

// RelativeAddr builds a Relative address operand.
func RelativeAddr(reg Register, offset int) Address {
	return Address{Mode: Relative, Reg: reg, Offset: offset}
}

// RelativeIndirectAddr builds a Relative-indirect address operand.
func RelativeIndirectAddr(reg Register, offset int) Address {
	return Address{Mode: RelativeIndirect, Reg: reg, Offset: offset}
}

// Instruction is one record of the linked instruction image: an opcode, an
// optional resolved address, and (only for a CALL not yet linked) the
// symbolic name of its target. Symbol is the "Unresolved(name)" case and
// Addr the "Resolved(address)" case of a CALL's target; the linker
// exhausts every Symbol into an Addr.
type Instruction struct {
	Op     Opcode
	Addr   *Address
	Symbol string
	Debug  string
}

// Unresolved reports whether this is a CALL instruction whose target has not
// yet been rewritten to a control-flow address by the linker.
func (ins Instruction) Unresolved() bool {
	return ins.Op == OpCall && ins.Addr == nil
}

// Format renders one instruction for diagnostics (error messages, debug
// annotations); it is not part of the code file format.
func Format(ins Instruction) string {
	if ins.Addr == nil {
		if ins.Symbol != "" {
			return fmt.Sprintf("%s <%s>", ins.Op, ins.Symbol)
		}
		return ins.Op.String()
	}
	a := ins.Addr
	switch a.Mode {
	case Absolute, ControlFlow:
		return fmt.Sprintf("%s %s(%d)", ins.Op, a.Mode, a.Value)
	default:
		return fmt.Sprintf("%s %s(%s%+d)", ins.Op, a.Mode, a.Reg, a.Offset)
	}
}
