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

package isa

import "testing"

func TestOpcodeRoundTrip(t *testing.T) {
	for op := OpAdd; op <= OpHalt; op++ {
		name := op.String()
		got, ok := ParseOpcode(name)
		if !ok {
			t.Fatalf("ParseOpcode(%q): not found", name)
		}
		if got != op {
			t.Errorf("ParseOpcode(%q) = %v, want %v", name, got, op)
		}
	}
}

func TestParseOpcodeUnknown(t *testing.T) {
	if _, ok := ParseOpcode("frobnicate"); ok {
		t.Errorf("ParseOpcode(frobnicate): expected not found")
	}
}

func TestAddressingModeRoundTrip(t *testing.T) {
	for m := Absolute; m <= ControlFlow; m++ {
		name := m.String()
		got, ok := ParseAddressingMode(name)
		if !ok || got != m {
			t.Errorf("ParseAddressingMode(%q) = %v, %v; want %v, true", name, got, ok, m)
		}
	}
}

func TestRegisterRoundTrip(t *testing.T) {
	for r := StackPointer; r <= FramePointer; r++ {
		name := r.String()
		got, ok := ParseRegister(name)
		if !ok || got != r {
			t.Errorf("ParseRegister(%q) = %v, %v; want %v, true", name, got, ok, r)
		}
	}
}

func TestAddressBearingClassification(t *testing.T) {
	bearing := []Opcode{OpAdd, OpSub, OpAnd, OpOr, OpNot, OpLd, OpSt, OpPut, OpJmp, OpJz, OpCall}
	for _, op := range bearing {
		if !op.IsAddressBearing() {
			t.Errorf("%v: expected address-bearing", op)
		}
	}
	notBearing := []Opcode{OpGet, OpPush, OpPop, OpRet, OpIsPos, OpIsNeg, OpIsZero, OpNop, OpHalt}
	for _, op := range notBearing {
		if op.IsAddressBearing() {
			t.Errorf("%v: expected not address-bearing", op)
		}
	}
}

func TestMemoryReadingClassification(t *testing.T) {
	reading := []Opcode{OpAdd, OpSub, OpAnd, OpOr, OpNot, OpLd, OpPut}
	for _, op := range reading {
		if !op.IsMemoryReading() {
			t.Errorf("%v: expected memory-reading", op)
		}
	}
	if OpSt.IsMemoryReading() {
		t.Errorf("ST: expected not memory-reading (it only writes)")
	}
}

func TestWordWrapsModulo32(t *testing.T) {
	var w Word = 2147483647
	w++
	if w != -2147483648 {
		t.Errorf("2147483647+1 = %d, want -2147483648", w)
	}
}

func TestInstructionUnresolved(t *testing.T) {
	ins := Instruction{Op: OpCall, Symbol: "foo"}
	if !ins.Unresolved() {
		t.Errorf("expected unresolved CALL")
	}
	addr := ControlFlowAddr(10)
	ins.Addr = &addr
	if ins.Unresolved() {
		t.Errorf("expected resolved CALL after linking")
	}
}
