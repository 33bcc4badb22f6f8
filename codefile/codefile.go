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

// Package codefile reads and writes the linked program image (code plus
// data) as a textual JSON document, so a translate/execute split can run as
// two separate processes.
package codefile

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/wieceslaw/lisp-compiler/isa"
)

// LoadError reports a code file entry that does not name a known opcode,
// addressing mode, or register.
type LoadError struct {
	Index int
	Msg   string
}

func (e *LoadError) Error() string {
	return errors.Errorf("code file entry %d: %s", e.Index, e.Msg).Error()
}

// CodeInstruction is the JSON-friendly projection of isa.Instruction. Index
// is the instruction's position in Program.Code; it is not itself encoded,
// but Encode and Read set it from the entry's position.
type CodeInstruction struct {
	Index  int    `json:"-"`
	Op     string `json:"op"`
	Mode   string `json:"mode,omitempty"`
	Reg    string `json:"reg,omitempty"`
	Value  int    `json:"value,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// Program is the code file's top-level shape: the linked instruction image
// and the initial data image.
type Program struct {
	Code []CodeInstruction `json:"code"`
	Data []int32           `json:"data"`
}

// Encode projects a linked instruction image and a data image into their
// JSON-friendly form.
func Encode(code []isa.Instruction, data []isa.Word) *Program {
	p := &Program{
		Code: make([]CodeInstruction, len(code)),
		Data: make([]int32, len(data)),
	}
	for i, ins := range code {
		ci := CodeInstruction{Index: i, Op: ins.Op.String(), Symbol: ins.Symbol}
		if ins.Addr != nil {
			ci.Mode = ins.Addr.Mode.String()
			ci.Value = ins.Addr.Value
			ci.Offset = ins.Addr.Offset
			if ins.Addr.Mode == isa.Relative || ins.Addr.Mode == isa.RelativeIndirect {
				ci.Reg = ins.Addr.Reg.String()
			}
		}
		p.Code[i] = ci
	}
	for i, w := range data {
		p.Data[i] = int32(w)
	}
	return p
}

// Decode rebuilds a linked instruction image and a data image from a
// Program, failing with a LoadError at the first entry naming an unknown
// opcode, addressing mode, or register.
func Decode(p *Program) ([]isa.Instruction, []isa.Word, error) {
	code := make([]isa.Instruction, len(p.Code))
	for i, ci := range p.Code {
		op, ok := isa.ParseOpcode(ci.Op)
		if !ok {
			return nil, nil, &LoadError{Index: i, Msg: "unknown opcode " + ci.Op}
		}
		ins := isa.Instruction{Op: op, Symbol: ci.Symbol}
		if ci.Mode != "" {
			mode, ok := isa.ParseAddressingMode(ci.Mode)
			if !ok {
				return nil, nil, &LoadError{Index: i, Msg: "unknown addressing mode " + ci.Mode}
			}
			a := isa.Address{Mode: mode, Value: ci.Value, Offset: ci.Offset}
			if mode == isa.Relative || mode == isa.RelativeIndirect {
				reg, ok := isa.ParseRegister(ci.Reg)
				if !ok {
					return nil, nil, &LoadError{Index: i, Msg: "unknown register " + ci.Reg}
				}
				a.Reg = reg
			}
			ins.Addr = &a
		}
		code[i] = ins
	}
	data := make([]isa.Word, len(p.Data))
	for i, w := range p.Data {
		data[i] = isa.Word(w)
	}
	return code, data, nil
}

// Write serializes a Program as indented JSON.
func Write(w io.Writer, p *Program) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(p), "codefile: write")
}

// Read deserializes a Program from JSON.
func Read(r io.Reader) (*Program, error) {
	var p Program
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(err, "codefile: read")
	}
	for i := range p.Code {
		p.Code[i].Index = i
	}
	return &p, nil
}

// Save encodes a linked program and writes it to fileName.
func Save(fileName string, code []isa.Instruction, data []isa.Word) error {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "codefile: save")
	}
	defer f.Close()
	return Write(f, Encode(code, data))
}

// Load reads a program from fileName and decodes it into a linked
// instruction image and a data image.
func Load(fileName string) ([]isa.Instruction, []isa.Word, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, nil, errors.Wrap(err, "codefile: load")
	}
	defer f.Close()
	p, err := Read(f)
	if err != nil {
		return nil, nil, err
	}
	return Decode(p)
}
