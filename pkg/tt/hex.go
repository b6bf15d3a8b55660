// Copyright 2026 The gVisor Authors.
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

package tt

import (
	"fmt"
	"strings"
)

// FormatHex formats v as "0x"-prefixed hex zero-padded to widthBits, with
// nibbles grouped in fours from the right and separated by underscores:
//
//	FormatHex(0x12345678, 64) == "0x0000_0000_1234_5678"
//
// The leftmost group is shorter when widthBits is not a multiple of 16.
// Values wider than widthBits are printed in full.
func FormatHex(v uint64, widthBits int) string {
	nibbles := (widthBits + 3) / 4
	if nibbles < 1 {
		nibbles = 1
	}
	digits := fmt.Sprintf("%0*x", nibbles, v)

	var b strings.Builder
	b.Grow(2 + len(digits) + len(digits)/4)
	b.WriteString("0x")
	lead := len(digits) % 4
	if lead == 0 {
		lead = 4
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 4 {
		b.WriteByte('_')
		b.WriteString(digits[i : i+4])
	}
	return b.String()
}

// addr formats a 64-bit address.
func addr(v uint64) string {
	return FormatHex(v, 64)
}
