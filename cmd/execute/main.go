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

// Command execute loads a linked code file and runs it to completion.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/wieceslaw/lisp-compiler/codefile"
	"github.com/wieceslaw/lisp-compiler/internal/clisize"
	"github.com/wieceslaw/lisp-compiler/internal/errio"
	"github.com/wieceslaw/lisp-compiler/machine"
)

var debug bool

func atExit(err error) {
	if err == nil {
		return
	}
	if debug {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	os.Exit(1)
}

func main() {
	var err error
	defer func() { atExit(err) }()

	dataSize := clisize.Words(1024)
	flag.Var(&dataSize, "data-size", "data memory size in words")
	textSize := clisize.Words(2048)
	flag.Var(&textSize, "text-size", "expected instruction count, checked against the loaded code file")
	tickLimit := flag.Int("tick-limit", 100_000_000, "maximum ticks before aborting a runaway program")
	stats := flag.Bool("stats", false, "print instruction/tick statistics to stderr")
	flag.BoolVar(&debug, "debug", false, "print full error causes")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		err = errors.New("usage: execute [flags] <code-file> <input-file>")
		return
	}

	code, data, err := codefile.Load(args[0])
	if err != nil {
		return
	}
	if len(code) > int(textSize) {
		err = errors.Errorf("code file holds %d instructions, exceeding -text-size %d", len(code), int(textSize))
		return
	}

	input, err := os.ReadFile(args[1])
	if err != nil {
		err = errors.Wrapf(err, "reading %s", args[1])
		return
	}

	m := machine.New(code, data,
		machine.DataSize(int(dataSize)),
		machine.Input(input),
		machine.TickLimit(*tickLimit),
		machine.Stats(*stats),
	)

	var result *machine.RunResult
	result, err = m.Run()
	if err != nil {
		return
	}

	ew := errio.NewErrWriter(os.Stdout)
	ew.Write(result.Output)
	if ew.Err != nil {
		err = errors.Wrap(ew.Err, "writing output")
		return
	}

	if *stats {
		sw := errio.NewErrWriter(os.Stderr)
		sw.WriteString("executed ")
		sw.WriteString(fmt.Sprintf("%d", result.Instructions))
		sw.WriteString(" instructions in ")
		sw.WriteString(fmt.Sprintf("%d", result.Ticks))
		sw.WriteString(" ticks\n")
		if sw.Err != nil {
			err = errors.Wrap(sw.Err, "writing stats")
			return
		}
	}
}
