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

// Package integration runs complete source programs through the parser,
// compiler, and machine end to end and checks their observable output,
// mirroring the golden-file style of the original implementation's own
// top-to-bottom test harness.
package integration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wieceslaw/lisp-compiler/codefile"
	"github.com/wieceslaw/lisp-compiler/compiler"
	"github.com/wieceslaw/lisp-compiler/machine"
	"github.com/wieceslaw/lisp-compiler/parser"
)

func compileSource(t *testing.T, src string) *compiler.Output {
	t.Helper()
	root, err := parser.Parse("t.lsp", src)
	require.NoError(t, err)
	out, err := compiler.Compile(root, 4096, 8192)
	require.NoError(t, err)
	return out
}

func runSource(t *testing.T, src string, input []byte) *machine.RunResult {
	t.Helper()
	out := compileSource(t, src)
	m := machine.New(out.Code, out.Data, machine.Input(input), machine.Stats(true))
	res, err := m.Run()
	require.NoError(t, err)
	return res
}

func TestEchoScenario(t *testing.T) {
	src := `(setq c (get)) (loop (not (= 0 c)) (put c) (setq c (get)))`
	res := runSource(t, src, []byte("Hi\n"))
	assert.Equal(t, "Hi\n", string(res.Output))
}

func TestHelloScenario(t *testing.T) {
	src := `(defun print-str (a) (setq n (load a)) (setq i 0) (loop (< i n) (put (load (+ a (+ i 1)))) (setq i (+ i 1)))) (print-str "Hi")`
	res := runSource(t, src, nil)
	assert.Equal(t, "Hi", string(res.Output))
}

func TestConditionalScenario(t *testing.T) {
	src := `(put (if (= 1 1) 42 7))`
	res := runSource(t, src, nil)
	require.Len(t, res.Output, 1)
	assert.Equal(t, byte(42), res.Output[0])
}

func TestStoreLoadScenario(t *testing.T) {
	src := `(setq b (alloc 4)) (store b 65) (put (load b))`
	res := runSource(t, src, nil)
	require.Len(t, res.Output, 1)
	assert.Equal(t, byte('A'), res.Output[0])
}

// TestFizzBuzzSumScenario computes the sum of multiples of 3 or 5 below
// 1000 using a hand-rolled mod via repeated subtraction, since the surface
// language has no modulo primitive. The root's final expression is a bare
// variable read, which the compiler leaves in the accumulator even though
// emitRoot's trailing POP discards it from the stack (see compiler.go),
// so the result is observed through RunResult.AccumulatorEnd.
func TestFizzBuzzSumScenario(t *testing.T) {
	src := `
(defun mod (a b)
  (setq r a)
  (loop (not (< r b)) (setq r (- r b)))
  r)
(setq sum 0)
(setq i 0)
(loop (< i 1000)
  (if (or (= (mod i 3) 0) (= (mod i 5) 0))
      (setq sum (+ sum i))
      0)
  (setq i (+ i 1)))
sum
`
	res := runSource(t, src, nil)
	assert.EqualValues(t, 233168, res.AccumulatorEnd)
}

func TestCapacityErrorScenarioProducesNoOutput(t *testing.T) {
	src := ""
	for i := 0; i < 10000; i++ {
		src += "(setq v" + itoa(i) + " " + itoa(i) + ") "
	}
	root, err := parser.Parse("t.lsp", src)
	require.NoError(t, err)

	_, err = compiler.Compile(root, 1024, 1<<20)
	require.Error(t, err)

	var capErr *compiler.CapacityError
	require.ErrorAs(t, err, &capErr)

	outPath := t.TempDir() + "/would-be-output.json"
	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr), "no output file should exist when compilation fails")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestMalformedLexerInputsAreRejected(t *testing.T) {
	_, err := parser.Parse("t.lsp", "(put $)")
	require.Error(t, err)

	_, err = parser.Parse("t.lsp", `(put "unterminated)`)
	require.Error(t, err)
}

func TestMalformedParserFormsAreRejected(t *testing.T) {
	for _, src := range []string{
		"(defun)",
		"(defun 1 (a) 1)",
		"(if)",
		"(loop)",
		"(alloc)",
		"(+ 1)",
		"(not)",
		"(get 1)",
	} {
		_, err := parser.Parse("t.lsp", src)
		require.Error(t, err, "expected parse error for %q", src)
	}
}

func TestDataFileRoundTripPreservesProgram(t *testing.T) {
	out := compileSource(t, "(+ 1 2)")
	p := codefile.Encode(out.Code, out.Data)
	code, data, err := codefile.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, out.Code, code)
	assert.Equal(t, out.Data, data)
}
