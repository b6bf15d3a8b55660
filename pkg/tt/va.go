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
	"ttinfo.dev/ttinfo/pkg/bits"
)

// LevelShift returns the position of the lowest virtual address bit indexed
// by a table at level: 39, 30, 21 and 12 for levels 0 to 3.
func LevelShift(level int) int {
	return PageShift + BitsPerLevel*(MaxLevel-level)
}

// BlockSize returns the size of the region mapped by one entry at level.
func BlockSize(level int) uint64 {
	return uint64(1) << LevelShift(level)
}

// TableVA returns the first virtual address covered by the level table that
// translates va.
func TableVA(va uint64, level int) uint64 {
	return bits.ClearBelow64(va, LevelShift(level)+BitsPerLevel)
}

// EntryVA returns the virtual address prefix for index in a level table
// reached with the given inherited prefix.
//
// Bits [LevelShift(level)+8:0] of prefix are cleared and index is placed at
// LevelShift(level). Bits above the table's span are inherited unchanged.
func EntryVA(prefix uint64, level, index int) uint64 {
	return TableVA(prefix, level) | uint64(index)<<LevelShift(level)
}

// IndexOf returns the level table index that translates va.
func IndexOf(va uint64, level int) int {
	return int(bits.Field64(va, LevelShift(level)+BitsPerLevel-1, LevelShift(level)))
}
