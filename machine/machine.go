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

// Package machine implements the accumulator-based virtual machine that
// executes a linked code image: a register-and-memory DataPath driven by a
// microcoded ControlUnit, wrapped in a Machine façade configured with
// functional options.
package machine

import (
	"github.com/pkg/errors"

	"github.com/wieceslaw/lisp-compiler/isa"
)

const defaultTickLimit = 100_000_000

// Machine wires a DataPath and ControlUnit together and runs a program to
// completion or failure.
type Machine struct {
	dp *DataPath
	cu *ControlUnit

	tickLimit int
	stats     bool
}

// Option configures a Machine at construction time.
type Option func(*Machine)

// DataSize sets the data memory size. Without it, the data memory is the
// data image's length plus 4096 words.
func DataSize(words int) Option {
	return func(m *Machine) { m.dp = NewDataPath(words, m.dp.input) }
}

// Input seeds the machine's input port with bytes consumed in order by GET.
func Input(b []byte) Option {
	return func(m *Machine) { m.dp.input = b }
}

// TickLimit bounds the number of ticks Run will execute before failing with
// a RuntimeError, guarding against a non-terminating program.
func TickLimit(n int) Option {
	return func(m *Machine) { m.tickLimit = n }
}

// Stats enables tick and instruction counting in the RunResult.
func Stats(enabled bool) Option {
	return func(m *Machine) { m.stats = enabled }
}

// RunResult reports the outcome of a completed run.
type RunResult struct {
	Output         []byte
	Ticks          int
	Instructions   int
	AccumulatorEnd isa.Word
}

// New builds a Machine for the given linked code and initial data image.
func New(code []isa.Instruction, data []isa.Word, opts ...Option) *Machine {
	m := &Machine{
		dp:        NewDataPath(len(data)+4096, nil),
		tickLimit: defaultTickLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.dp.LoadData(data)
	m.cu = NewControlUnit(m.dp, code)
	return m
}

// Run drives the control unit until HALT retires or the tick limit is hit.
// Any panic escaping DataPath/ControlUnit code (an index-out-of-range bug,
// say) is recovered and reported as a RuntimeError rather than crashing the
// host process, matching the failure contract the cmd/execute CLI expects.
func (m *Machine) Run() (result *RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{IP: int(m.dp.IP), Msg: errors.Errorf("panic: %v", r).Error()}
		}
	}()

	instructions := 0
	for {
		if m.cu.Ticks >= m.tickLimit {
			return nil, &RuntimeError{IP: int(m.dp.IP), Msg: "tick limit exceeded"}
		}
		_, err := m.cu.Step()
		instructions++
		if errors.Is(err, Halted) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	res := &RunResult{
		Output:         m.dp.Output(),
		AccumulatorEnd: m.dp.AC,
	}
	if m.stats {
		res.Ticks = m.cu.Ticks
		res.Instructions = instructions
	}
	return res, nil
}
