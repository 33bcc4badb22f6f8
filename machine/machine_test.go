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
	"testing"

	"github.com/pkg/errors"

	"github.com/wieceslaw/lisp-compiler/isa"
)

// run executes code against a fresh data image and fails the test if it
// does not halt cleanly.
func run(t *testing.T, code []isa.Instruction, data []isa.Word) *Machine {
	t.Helper()
	m := New(code, data, DataSize(64))
	if _, err := m.Run(); err != nil {
		t.Fatalf("%+v", errors.Errorf("run failed: %v", err))
	}
	return m
}

func addr(a isa.Address) *isa.Address { return &a }

func checkAC(t *testing.T, m *Machine, want isa.Word) {
	t.Helper()
	if m.dp.AC != want {
		t.Errorf("AC = %d, want %d", m.dp.AC, want)
	}
}

func checkData(t *testing.T, m *Machine, at int, want isa.Word) {
	t.Helper()
	if got := m.dp.data[at]; got != want {
		t.Errorf("data[%d] = %d, want %d", at, got, want)
	}
}

func TestAddLoadsAndAdds(t *testing.T) {
	// data[0]=10, data[1]=32; LD data[0] into AC, ADD data[1], HALT.
	code := []isa.Instruction{
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(0))},
		{Op: isa.OpAdd, Addr: addr(isa.AbsoluteAddr(1))},
		{Op: isa.OpHalt},
	}
	m := run(t, code, []isa.Word{10, 32})
	checkAC(t, m, 42)
}

func TestSubIsAddWithInvertAndIncrement(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(0))},
		{Op: isa.OpSub, Addr: addr(isa.AbsoluteAddr(1))},
		{Op: isa.OpHalt},
	}
	m := run(t, code, []isa.Word{10, 3})
	checkAC(t, m, 7)
}

func TestNotIsLogicalNegationOfDataRegister(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpNot, Addr: addr(isa.AbsoluteAddr(0))},
		{Op: isa.OpHalt},
	}
	m := run(t, code, []isa.Word{0})
	checkAC(t, m, 1)
}

func TestStWritesAccumulatorToMemory(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(0))},
		{Op: isa.OpSt, Addr: addr(isa.AbsoluteAddr(1))},
		{Op: isa.OpHalt},
	}
	m := run(t, code, []isa.Word{7, 0})
	checkData(t, m, 1, 7)
}

func TestPushPopAdjustStackPointer(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpPush},
		{Op: isa.OpPush},
		{Op: isa.OpPop},
		{Op: isa.OpHalt},
	}
	m := New(code, nil, DataSize(64))
	startSP := m.dp.SP
	if _, err := m.Run(); err != nil {
		t.Fatalf("%+v", err)
	}
	if m.dp.SP != startSP-1 {
		t.Errorf("SP = %d, want %d", m.dp.SP, startSP-1)
	}
}

func TestJzTakenWhenAccumulatorIsZero(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(0))},
		{Op: isa.OpJz, Addr: addr(isa.ControlFlowAddr(4))},
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(1))},
		{Op: isa.OpHalt},
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(2))},
		{Op: isa.OpHalt},
	}
	m := run(t, code, []isa.Word{0, 11, 22})
	checkAC(t, m, 22)
}

func TestJzNotTakenWhenAccumulatorNonzero(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(0))},
		{Op: isa.OpJz, Addr: addr(isa.ControlFlowAddr(4))},
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(1))},
		{Op: isa.OpHalt},
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(2))},
		{Op: isa.OpHalt},
	}
	m := run(t, code, []isa.Word{5, 11, 22})
	checkAC(t, m, 11)
}

func TestIsZeroIsNegIsPosPredicates(t *testing.T) {
	for _, tc := range []struct {
		op   isa.Opcode
		in   isa.Word
		want isa.Word
	}{
		{isa.OpIsZero, 0, 1},
		{isa.OpIsZero, 5, 0},
		{isa.OpIsNeg, -3, 1},
		{isa.OpIsNeg, 3, 0},
		{isa.OpIsPos, 3, 1},
		{isa.OpIsPos, -3, 0},
	} {
		code := []isa.Instruction{
			{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(0))},
			{Op: tc.op},
			{Op: isa.OpHalt},
		}
		m := run(t, code, []isa.Word{tc.in})
		checkAC(t, m, tc.want)
	}
}

// TestCallRetRoundTrip exercises a CALL into a trivial function body that
// immediately RETs, checking that the frame pointer and stack pointer are
// restored and execution resumes just after the CALL.
func TestCallRetRoundTrip(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpCall, Addr: addr(isa.ControlFlowAddr(2))}, // 0
		{Op: isa.OpHalt},                                     // 1: resumed here
		{Op: isa.OpRet},                                      // 2: function body
	}
	m := New(code, nil, DataSize(64))
	startSP := m.dp.SP
	startFP := m.dp.FP
	if _, err := m.Run(); err != nil {
		t.Fatalf("%+v", err)
	}
	if m.dp.SP != startSP {
		t.Errorf("SP = %d, want %d (restored)", m.dp.SP, startSP)
	}
	if m.dp.FP != startFP {
		t.Errorf("FP = %d, want %d (restored)", m.dp.FP, startFP)
	}
}

func TestPutWritesOutputPort(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpLd, Addr: addr(isa.AbsoluteAddr(0))},
		{Op: isa.OpPut, Addr: addr(isa.AbsoluteAddr(0))},
		{Op: isa.OpHalt},
	}
	m := run(t, code, []isa.Word{65})
	if string(m.dp.Output()) != "A" {
		t.Errorf("output = %q, want %q", m.dp.Output(), "A")
	}
}

func TestGetReadsInputPortThenZeroAtEOF(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpGet},
		{Op: isa.OpSt, Addr: addr(isa.AbsoluteAddr(0))},
		{Op: isa.OpGet},
		{Op: isa.OpHalt},
	}
	m := New(code, nil, DataSize(64), Input([]byte("Z")))
	if _, err := m.Run(); err != nil {
		t.Fatalf("%+v", err)
	}
	checkData(t, m, 0, isa.Word('Z'))
	checkAC(t, m, 0)
}

func TestTickLimitStopsRunaway(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpNop},
		{Op: isa.OpJmp, Addr: addr(isa.ControlFlowAddr(0))},
	}
	m := New(code, nil, DataSize(64), TickLimit(50))
	_, err := m.Run()
	if err == nil {
		t.Fatal("expected tick limit error, got nil")
	}
}

func TestStatsReportsTicksAndInstructions(t *testing.T) {
	code := []isa.Instruction{
		{Op: isa.OpNop},
		{Op: isa.OpHalt},
	}
	m := New(code, nil, DataSize(64), Stats(true))
	res, err := m.Run()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if res.Instructions != 2 {
		t.Errorf("Instructions = %d, want 2", res.Instructions)
	}
	if res.Ticks == 0 {
		t.Errorf("Ticks = 0, want > 0")
	}
}
