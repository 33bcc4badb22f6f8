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

// AluInSelector chooses an ALU input.
type AluInSelector int

const (
	SelZero AluInSelector = iota
	SelAC
	SelFP
	SelBR
	SelSP
	SelIP
	SelDR
	SelAR
	SelInsOp // the insOperand value passed to AluSignal; accepted on either input
)

// AluOutSelector chooses the register an ALU result is written to.
type AluOutSelector int

const (
	OutAC AluOutSelector = iota
	OutFP
	OutBR
	OutSP
	OutIP
	OutDR
	OutAR
)

// AluOp is the closed set of ALU operations.
type AluOp int

const (
	AluAdd AluOp = iota
	AluAnd
	AluOr
	AluIsNeg
	AluIsPos
	AluIsZero
)

// DataSelector chooses between data memory and an I/O port for a read or
// write signal.
type DataSelector int

const (
	SelMemory DataSelector = iota
	SelInputPort
	SelOutputPort
)

// RuntimeError reports an invalid memory access, a byte-range violation, or
// an exhausted tick budget, tagged with the instruction pointer at the time
// of failure.
type RuntimeError struct {
	IP  int
	Msg string
}

func (e *RuntimeError) Error() string {
	return errors.Errorf("runtime error at ip=%d: %s", e.IP, e.Msg).Error()
}

// DataPath is the register file, memory, and ALU of the machine. It has no
// notion of instructions; ControlUnit drives it one microstep at a time.
type DataPath struct {
	AC isa.Word // accumulator
	FP isa.Word // frame pointer
	BR isa.Word // buffer register
	SP isa.Word // stack pointer
	IP isa.Word // instruction pointer
	DR isa.Word // data register
	AR isa.Word // address register

	data  []isa.Word
	input []byte
	inPos int

	output []byte
}

// NewDataPath allocates a data memory of the given size and seeds the
// input buffer. The stack pointer starts at the last data cell.
func NewDataPath(dataSize int, input []byte) *DataPath {
	return &DataPath{
		SP:    isa.Word(dataSize - 1),
		data:  make([]isa.Word, dataSize),
		input: input,
	}
}

// LoadData installs the program's initial data image, starting at address 0.
func (d *DataPath) LoadData(words []isa.Word) {
	copy(d.data, words)
}

// Output returns the bytes written so far via PUT.
func (d *DataPath) Output() []byte {
	return d.output
}

func (d *DataPath) selectIn(sel AluInSelector, insOperand isa.Word) isa.Word {
	switch sel {
	case SelZero:
		return 0
	case SelAC:
		return d.AC
	case SelFP:
		return d.FP
	case SelBR:
		return d.BR
	case SelSP:
		return d.SP
	case SelIP:
		return d.IP
	case SelDR:
		return d.DR
	case SelAR:
		return d.AR
	case SelInsOp:
		return insOperand
	default:
		return 0
	}
}

func (d *DataPath) writeOut(sel AluOutSelector, v isa.Word) {
	switch sel {
	case OutAC:
		d.AC = v
	case OutFP:
		d.FP = v
	case OutBR:
		d.BR = v
	case OutSP:
		d.SP = v
	case OutIP:
		d.IP = v
	case OutDR:
		d.DR = v
	case OutAR:
		d.AR = v
	}
}

// AluSignal drives one ALU computation: select inputs, apply invert
// modifiers before the operation and increment after, and write the
// result to the chosen output register. Wrap-around is Word's native
// int32 overflow — no separate masking is performed.
func (d *DataPath) AluSignal(left, right AluInSelector, op AluOp, invertLeft, invertRight, increment bool, out AluOutSelector, insOperand isa.Word) {
	l := d.selectIn(left, insOperand)
	r := d.selectIn(right, insOperand)
	if invertLeft {
		l = ^l
	}
	if invertRight {
		r = ^r
	}
	var result isa.Word
	switch op {
	case AluAdd:
		result = l + r
	case AluAnd:
		result = l & r
	case AluOr:
		result = l | r
	case AluIsNeg:
		result = boolWord(l < 0)
	case AluIsPos:
		result = boolWord(l > 0)
	case AluIsZero:
		result = boolWord(l == 0)
	}
	if increment {
		result++
	}
	d.writeOut(out, result)
}

func boolWord(b bool) isa.Word {
	if b {
		return 1
	}
	return 0
}

// ReadSignal reads one word according to sel: SelMemory reads data[AR]
// into DR, SelInputPort reads one byte from the input buffer into DR
// (0 once exhausted, the GET end-of-file sentinel).
func (d *DataPath) ReadSignal(sel DataSelector) error {
	switch sel {
	case SelMemory:
		if int(d.AR) < 0 || int(d.AR) >= len(d.data) {
			return errors.Errorf("data address %d out of range [0,%d)", d.AR, len(d.data))
		}
		d.DR = d.data[d.AR]
		return nil
	case SelInputPort:
		if d.inPos >= len(d.input) {
			d.DR = 0
			return nil
		}
		d.DR = isa.Word(d.input[d.inPos])
		d.inPos++
		return nil
	default:
		return errors.Errorf("read signal not valid for selector %d", sel)
	}
}

// WriteSignal writes DR according to sel: SelMemory writes data[AR],
// SelOutputPort appends DR truncated to a signed byte (an out-of-range
// value is a runtime failure).
func (d *DataPath) WriteSignal(sel DataSelector) error {
	switch sel {
	case SelMemory:
		if int(d.AR) < 0 || int(d.AR) >= len(d.data) {
			return errors.Errorf("data address %d out of range [0,%d)", d.AR, len(d.data))
		}
		d.data[d.AR] = d.DR
		return nil
	case SelOutputPort:
		if d.DR < -128 || d.DR > 127 {
			return errors.Errorf("PUT value %d out of signed-byte range", d.DR)
		}
		d.output = append(d.output, byte(int8(d.DR)))
		return nil
	default:
		return errors.Errorf("write signal not valid for selector %d", sel)
	}
}
