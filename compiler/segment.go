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

package compiler

import (
	"github.com/wieceslaw/lisp-compiler/isa"
)

// CapacityError reports a data or instruction segment overflow at compile time.
type CapacityError struct {
	Segment  string
	Capacity int
}

func (e *CapacityError) Error() string {
	return e.Segment + " segment exceeds capacity of " + itoa(e.Capacity) + " words"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// DataSegment is a bump-allocated word array backing literal, string, and
// buffer storage for the program being compiled.
type DataSegment struct {
	words    []isa.Word
	capacity int
}

// NewDataSegment creates an empty data segment with a fixed capacity.
func NewDataSegment(capacity int) *DataSegment {
	return &DataSegment{capacity: capacity}
}

func (d *DataSegment) reserve(n int) (int, error) {
	addr := len(d.words)
	if addr+n > d.capacity {
		return 0, &CapacityError{Segment: "data", Capacity: d.capacity}
	}
	for i := 0; i < n; i++ {
		d.words = append(d.words, 0)
	}
	return addr, nil
}

// PutWord appends one word and returns its address.
func (d *DataSegment) PutWord(v isa.Word) (int, error) {
	addr, err := d.reserve(1)
	if err != nil {
		return 0, err
	}
	d.words[addr] = v
	return addr, nil
}

// PutString lays out s as a length-prefixed word array (one word per byte)
// and returns the address of the length word.
func (d *DataSegment) PutString(s string) (int, error) {
	addr, err := d.reserve(1 + len(s))
	if err != nil {
		return 0, err
	}
	d.words[addr] = isa.Word(len(s))
	for i := 0; i < len(s); i++ {
		d.words[addr+1+i] = isa.Word(s[i])
	}
	return addr, nil
}

// Allocate reserves n words of zeroed buffer space and returns its base address.
func (d *DataSegment) Allocate(n int) (int, error) {
	return d.reserve(n)
}

// Layout returns the final data image.
func (d *DataSegment) Layout() []isa.Word {
	return d.words
}

// TextSegment is the growing instruction image being emitted.
type TextSegment struct {
	instructions []isa.Instruction
	capacity     int
}

// NewTextSegment creates an empty text segment with a fixed capacity.
func NewTextSegment(capacity int) *TextSegment {
	return &TextSegment{capacity: capacity}
}

// Write appends one instruction and returns its index.
func (t *TextSegment) Write(ins isa.Instruction) (int, error) {
	if len(t.instructions) >= t.capacity {
		return 0, &CapacityError{Segment: "instruction", Capacity: t.capacity}
	}
	idx := len(t.instructions)
	t.instructions = append(t.instructions, ins)
	return idx, nil
}

// WritePush emits a PUSH.
func (t *TextSegment) WritePush() (int, error) {
	return t.Write(isa.Instruction{Op: isa.OpPush})
}

// WritePop emits a POP.
func (t *TextSegment) WritePop() (int, error) {
	return t.Write(isa.Instruction{Op: isa.OpPop})
}

// WriteNop emits a NOP, used for loop/condition labels and function entry points.
func (t *TextSegment) WriteNop() (int, error) {
	return t.Write(isa.Instruction{Op: isa.OpNop})
}

// WriteAccumulatorPush emits the PUSH+ST idiom that stores the current
// accumulator value onto a freshly reserved stack slot.
func (t *TextSegment) WriteAccumulatorPush() error {
	if _, err := t.WritePush(); err != nil {
		return err
	}
	addr := isa.RelativeAddr(isa.StackPointer, 0)
	_, err := t.Write(isa.Instruction{Op: isa.OpSt, Addr: &addr})
	return err
}

// WriteStackLoad emits an LD from a stack-pointer-relative offset into the accumulator.
func (t *TextSegment) WriteStackLoad(offset int) error {
	addr := isa.RelativeAddr(isa.StackPointer, offset)
	_, err := t.Write(isa.Instruction{Op: isa.OpLd, Addr: &addr})
	return err
}

// Patch overwrites the address operand of the instruction at idx, used to
// back-patch forward jump targets once the target address is known.
func (t *TextSegment) Patch(idx int, addr isa.Address) {
	t.instructions[idx].Addr = &addr
}

// Len reports the current instruction count (the address of the next write).
func (t *TextSegment) Len() int {
	return len(t.instructions)
}

// Instructions returns the final instruction image.
func (t *TextSegment) Instructions() []isa.Instruction {
	return t.instructions
}
