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

// Command translate compiles a source file into a linked code file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/wieceslaw/lisp-compiler/codefile"
	"github.com/wieceslaw/lisp-compiler/compiler"
	"github.com/wieceslaw/lisp-compiler/internal/clisize"
	"github.com/wieceslaw/lisp-compiler/parser"
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
	textSize := clisize.Words(2048)
	flag.Var(&dataSize, "data-size", "data segment capacity in words")
	flag.Var(&textSize, "text-size", "instruction segment capacity")
	flag.BoolVar(&debug, "debug", false, "print full error causes")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		err = errors.New("usage: translate [flags] <source-file> <code-file>")
		return
	}
	srcName, outName := args[0], args[1]

	src, err := os.ReadFile(srcName)
	if err != nil {
		err = errors.Wrapf(err, "reading %s", srcName)
		return
	}

	root, err := parser.Parse(srcName, string(src))
	if err != nil {
		return
	}

	out, err := compiler.Compile(root, int(dataSize), int(textSize))
	if err != nil {
		return
	}

	err = codefile.Save(outName, out.Code, out.Data)
}
