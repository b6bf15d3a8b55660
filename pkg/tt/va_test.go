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
	"testing"
)

func TestLevelShift(t *testing.T) {
	for level, want := range []int{39, 30, 21, 12} {
		if got := LevelShift(level); got != want {
			t.Errorf("LevelShift(%d) = %d, want %d", level, got, want)
		}
	}
	if got, want := BlockSize(2), uint64(2<<20); got != want {
		t.Errorf("BlockSize(2) = %#x, want %#x", got, want)
	}
}

func TestEntryVARoundTrip(t *testing.T) {
	for _, idx := range [][Levels]int{
		{0, 0, 0, 0},
		{1, 2, 3, 4},
		{511, 511, 511, 511},
		{256, 0, 511, 7},
	} {
		va := uint64(0)
		for level := 0; level < Levels; level++ {
			va = EntryVA(va, level, idx[level])
		}
		want := uint64(idx[0])<<39 | uint64(idx[1])<<30 | uint64(idx[2])<<21 | uint64(idx[3])<<12
		if va != want {
			t.Errorf("EntryVA chain for %v = %#x, want %#x", idx, va, want)
		}
		for level := 0; level < Levels; level++ {
			if got := IndexOf(va, level); got != idx[level] {
				t.Errorf("IndexOf(%#x, %d) = %d, want %d", va, level, got, idx[level])
			}
		}
	}
}

func TestEntryVAKeepsUpperBits(t *testing.T) {
	upper := ^uint64(0)
	if got, want := TableVA(upper, 0), uint64(0xffff_0000_0000_0000); got != want {
		t.Errorf("TableVA(all ones, 0) = %#x, want %#x", got, want)
	}
	if got, want := EntryVA(upper, 0, 1), uint64(0xffff_0080_0000_0000); got != want {
		t.Errorf("EntryVA(all ones, 0, 1) = %#x, want %#x", got, want)
	}
	// A stale index at the table's own level is replaced.
	if got, want := EntryVA(0x0000_0040_0000_0000, 1, 2), uint64(0x0000_0000_8000_0000); got != want {
		t.Errorf("EntryVA = %#x, want %#x", got, want)
	}
}
