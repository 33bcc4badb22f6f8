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

// Package clisize provides a validating flag.Value for the translate/execute
// commands' memory-size flags, rejecting non-positive or unreasonably large
// word counts before they ever reach a make([]isa.Word, n) allocation.
package clisize

import (
	"strconv"

	"github.com/pkg/errors"
)

// maxWords bounds a single -data-size/-text-size flag. It is well above any
// program this toolchain is expected to compile, and exists only to turn a
// typo'd extra digit into a flag-parsing error instead of a multi-gigabyte
// allocation.
const maxWords = 1 << 24

// Words is a flag.Value holding a validated positive word count.
type Words int

// String implements flag.Value.
func (w *Words) String() string { return strconv.Itoa(int(*w)) }

// Set implements flag.Value, rejecting anything outside [1, maxWords].
func (w *Words) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.Wrap(err, "integer conversion failed")
	}
	if n < 1 || n > maxWords {
		return errors.Errorf("%d words out of range [1,%d]", n, maxWords)
	}
	*w = Words(n)
	return nil
}

// Get implements flag.Getter.
func (w *Words) Get() interface{} { return int(*w) }
