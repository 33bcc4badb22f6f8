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

package machine

import (
	"github.com/pkg/errors"

	"github.com/wieceslaw/lisp-compiler/isa"
)

// ControlUnit drives a DataPath through the four-phase microcoded cycle
// (instruction fetch, address fetch, operand fetch, execute) for each
// instruction of a linked code image.
type ControlUnit struct {
	dp   *DataPath
	code []isa.Instruction

	Ticks int
}

// NewControlUnit binds a control unit to a data path and a linked code image.
func NewControlUnit(dp *DataPath, code []isa.Instruction) *ControlUnit {
	return &ControlUnit{dp: dp, code: code}
}

// Halted is returned by Step once a HALT instruction has retired.
var Halted = errors.New("machine halted")

// Step executes exactly one instruction at IP, advancing IP (for anything
// but a taken jump/call/ret, which set it themselves) and returns the
// number of ticks the instruction consumed.
func (cu *ControlUnit) Step() (int, error) {
	ip := int(cu.dp.IP)
	if ip < 0 || ip >= len(cu.code) {
		return 0, &RuntimeError{IP: ip, Msg: "instruction pointer out of range"}
	}
	ins := cu.code[ip]
	ticks := 1 // instruction fetch

	if ins.Op == isa.OpHalt {
		cu.Ticks += ticks
		return ticks, Halted
	}

	if ins.Op == isa.OpCall {
		at, err := cu.addressFetch(ip, ins) // loads the target into DR
		if err != nil {
			return 0, err
		}
		ticks += at
		t, err := cu.execCall()
		cu.Ticks += ticks + t
		return ticks + t, err
	}
	if ins.Op == isa.OpRet {
		t, err := cu.execRet()
		cu.Ticks += ticks + t
		return ticks + t, err
	}

	var operandReady bool
	if ins.Op.IsAddressBearing() {
		at, err := cu.addressFetch(ip, ins)
		if err != nil {
			return 0, err
		}
		ticks += at
		if ins.Op.IsMemoryReading() {
			if err := cu.dp.ReadSignal(SelMemory); err != nil {
				return 0, &RuntimeError{IP: ip, Msg: err.Error()}
			}
			ticks++
			operandReady = true
		}
	}

	et, err := cu.execute(ip, ins, operandReady)
	if err != nil {
		return 0, err
	}
	ticks += et

	if !jumped(ins.Op) {
		cu.dp.IP++
	}
	cu.Ticks += ticks
	return ticks, nil
}

func jumped(op isa.Opcode) bool {
	return op == isa.OpJmp || op == isa.OpJz || op == isa.OpCall || op == isa.OpRet
}

// addressFetch computes the effective address for an address-bearing
// instruction and loads it into AR. RelativeIndirect costs one extra tick
// for the indirection read; ControlFlow loads the target into DR instead
// of AR, since it is never dereferenced as a data address.
func (cu *ControlUnit) addressFetch(ip int, ins isa.Instruction) (int, error) {
	if ins.Addr == nil {
		return 0, &RuntimeError{IP: ip, Msg: "missing address operand for " + ins.Op.String()}
	}
	a := ins.Addr
	switch a.Mode {
	case isa.Absolute:
		cu.dp.AR = isa.Word(a.Value)
		return 1, nil
	case isa.ControlFlow:
		cu.dp.DR = isa.Word(a.Value)
		return 1, nil
	case isa.Relative:
		base := cu.regValue(a.Reg)
		cu.dp.AR = base + isa.Word(a.Offset)
		return 1, nil
	case isa.RelativeIndirect:
		base := cu.regValue(a.Reg)
		cu.dp.AR = base + isa.Word(a.Offset)
		if err := cu.dp.ReadSignal(SelMemory); err != nil {
			return 0, &RuntimeError{IP: ip, Msg: err.Error()}
		}
		cu.dp.AR = cu.dp.DR
		return 2, nil
	default:
		return 0, &RuntimeError{IP: ip, Msg: "unknown addressing mode"}
	}
}

func (cu *ControlUnit) regValue(r isa.Register) isa.Word {
	switch r {
	case isa.StackPointer:
		return cu.dp.SP
	case isa.FramePointer:
		return cu.dp.FP
	default:
		return 0
	}
}

// execute dispatches the opcode's ALU/memory/control operation. operandReady
// reports whether the operand-fetch phase already populated DR from memory.
func (cu *ControlUnit) execute(ip int, ins isa.Instruction, operandReady bool) (int, error) {
	dp := cu.dp
	switch ins.Op {
	case isa.OpAdd:
		dp.AluSignal(SelAC, SelDR, AluAdd, false, false, false, OutAC, 0)
		return 1, nil
	case isa.OpSub:
		dp.AluSignal(SelAC, SelDR, AluAdd, false, true, true, OutAC, 0)
		return 1, nil
	case isa.OpAnd:
		dp.AluSignal(SelAC, SelDR, AluAnd, false, false, false, OutAC, 0)
		return 1, nil
	case isa.OpOr:
		dp.AluSignal(SelAC, SelDR, AluOr, false, false, false, OutAC, 0)
		return 1, nil
	case isa.OpNot:
		dp.AluSignal(SelDR, SelZero, AluIsZero, false, false, false, OutAC, 0)
		return 1, nil
	case isa.OpLd:
		dp.AC = dp.DR
		return 1, nil
	case isa.OpSt:
		dp.DR = dp.AC
		if err := dp.WriteSignal(SelMemory); err != nil {
			return 0, &RuntimeError{IP: ip, Msg: err.Error()}
		}
		return 1, nil
	case isa.OpPut:
		// The operand-fetch phase already loaded the fetched byte into DR;
		// route it through the accumulator before writing it back out, so
		// the accumulator (and, after the compiler's trailing ST, the
		// stack slot PUT was given) is left holding the same value PUT
		// was handed — PUT does not transform its operand.
		dp.AC = dp.DR
		dp.DR = dp.AC
		if err := dp.WriteSignal(SelOutputPort); err != nil {
			return 0, &RuntimeError{IP: ip, Msg: err.Error()}
		}
		return 1, nil
	case isa.OpGet:
		if err := dp.ReadSignal(SelInputPort); err != nil {
			return 0, &RuntimeError{IP: ip, Msg: err.Error()}
		}
		dp.AC = dp.DR
		return 1, nil
	case isa.OpPush:
		dp.AluSignal(SelSP, SelInsOp, AluAdd, false, true, true, OutSP, 1)
		return 1, nil
	case isa.OpPop:
		dp.AluSignal(SelSP, SelInsOp, AluAdd, false, false, false, OutSP, 1)
		return 1, nil
	case isa.OpJmp:
		dp.IP = dp.DR
		return 1, nil
	case isa.OpJz:
		if dp.AC == 0 {
			dp.IP = dp.DR
		} else {
			dp.IP++
		}
		return 1, nil
	case isa.OpIsPos:
		dp.AluSignal(SelAC, SelZero, AluIsPos, false, false, false, OutAC, 0)
		return 1, nil
	case isa.OpIsNeg:
		dp.AluSignal(SelAC, SelZero, AluIsNeg, false, false, false, OutAC, 0)
		return 1, nil
	case isa.OpIsZero:
		dp.AluSignal(SelAC, SelZero, AluIsZero, false, false, false, OutAC, 0)
		return 1, nil
	case isa.OpNop:
		return 1, nil
	default:
		return 0, &RuntimeError{IP: ip, Msg: "unsupported opcode " + ins.Op.String()}
	}
}

// execCall runs the eleven-tick CALL microprogram once addressFetch has
// already loaded the call target into DR: (1) buffer register latches the
// target; (2-5) push the return address; (6-9) push the caller's frame
// pointer; (10) the new frame pointer becomes the post-push stack pointer;
// (11) the jump itself, reading the target back out of the buffer
// register. The return address is the instruction after CALL: Step leaves
// IP unadvanced for any jumping opcode, so it is stamped here as IP+1
// rather than IP, standing in for an instruction-fetch phase that would
// otherwise have advanced it already.
func (cu *ControlUnit) execCall() (int, error) {
	dp := cu.dp
	ticks := 0

	dp.BR = dp.DR
	ticks++

	dp.AluSignal(SelSP, SelInsOp, AluAdd, false, true, true, OutSP, 1)
	ticks++
	dp.AR = dp.SP
	ticks++
	dp.DR = dp.IP + 1
	ticks++
	if err := dp.WriteSignal(SelMemory); err != nil {
		return 0, &RuntimeError{IP: int(dp.IP), Msg: err.Error()}
	}
	ticks++

	dp.AluSignal(SelSP, SelInsOp, AluAdd, false, true, true, OutSP, 1)
	ticks++
	dp.AR = dp.SP
	ticks++
	dp.DR = dp.FP
	ticks++
	if err := dp.WriteSignal(SelMemory); err != nil {
		return 0, &RuntimeError{IP: int(dp.IP), Msg: err.Error()}
	}
	ticks++

	dp.FP = dp.SP
	ticks++

	dp.IP = dp.BR
	ticks++

	return ticks, nil
}

// execRet runs the eight-tick RET microprogram: (1-4) pop the frame
// pointer off the top of the stack; (5-8) pop the return address from the
// cell below it. Each group is address-register-set, read signal,
// register write, stack-pointer increment, in that order.
func (cu *ControlUnit) execRet() (int, error) {
	dp := cu.dp
	ticks := 0

	// pop frame pointer: CALL's second push left it at the current top of
	// stack, so it comes off first.
	dp.AR = dp.SP
	ticks++
	if err := dp.ReadSignal(SelMemory); err != nil {
		return 0, &RuntimeError{IP: int(dp.IP), Msg: err.Error()}
	}
	ticks++
	dp.FP = dp.DR
	ticks++
	dp.AluSignal(SelSP, SelInsOp, AluAdd, false, false, false, OutSP, 1)
	ticks++

	// pop return address: CALL's first push, one cell further down.
	dp.AR = dp.SP
	ticks++
	if err := dp.ReadSignal(SelMemory); err != nil {
		return 0, &RuntimeError{IP: int(dp.IP), Msg: err.Error()}
	}
	ticks++
	dp.IP = dp.DR
	ticks++
	dp.AluSignal(SelSP, SelInsOp, AluAdd, false, false, false, OutSP, 1)
	ticks++

	return ticks, nil
}
