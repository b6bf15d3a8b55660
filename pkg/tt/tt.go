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

// Package tt decodes and renders VMSAv8-64 translation tables.
//
// Only the 4KiB translation granule with 48-bit virtual addresses is
// supported: four levels (0 to 3) of 512-entry tables, each level resolving
// nine bits of the virtual address above a 12-bit page offset.
//
// A walk reads memory through a memory.Reader and produces a Node tree
// (Walk); the tree is then formatted independently (Render). Neither pass
// modifies target memory.
package tt

import (
	"errors"
	"fmt"
	"strings"

	"ttinfo.dev/ttinfo/pkg/memory"
)

// Translation granule geometry.
const (
	// PageShift is the binary log of the granule (4KiB).
	PageShift = 12

	// PageSize is the granule size.
	PageSize = 1 << PageShift

	// BitsPerLevel is the number of virtual address bits resolved per level.
	BitsPerLevel = 9

	// EntriesPerTable is the number of descriptors in one table.
	EntriesPerTable = 1 << BitsPerLevel

	// DescriptorSize is the size of one descriptor in bytes.
	DescriptorSize = 8

	// TableSize is the size of one table in bytes.
	TableSize = EntriesPerTable * DescriptorSize

	// Levels is the number of translation levels.
	Levels = 4

	// MaxLevel is the last (page) level.
	MaxLevel = Levels - 1

	// VABits is the virtual address width covered by a level 0 table.
	VABits = PageShift + BitsPerLevel*Levels

	// OutputAddressHigh is the most significant output address bit.
	OutputAddressHigh = 47
)

// ErrInvalidArgument is returned for malformed input at the command surface,
// such as a level outside [0, MaxLevel]. Nothing is read or rendered.
var ErrInvalidArgument = errors.New("invalid argument")

func checkLevel(level int) error {
	if level < 0 || level > MaxLevel {
		return fmt.Errorf("%w: level %d not in [0, %d]", ErrInvalidArgument, level, MaxLevel)
	}
	return nil
}

// Dump walks the table at base and renders it.
func Dump(r memory.Reader, base uint64, level int, startVA uint64, wopts WalkOptions, ropts RenderOptions) (string, error) {
	n, err := Walk(r, base, level, startVA, wopts)
	if err != nil {
		return "", err
	}
	return strings.Join(Render(n, ropts), "\n"), nil
}

// RenderTranslationTable walks the table at base, starting at the given level
// with a zero virtual address prefix, and returns the rendered tree.
func RenderTranslationTable(r memory.Reader, base uint64, level int) (string, error) {
	return Dump(r, base, level, 0, WalkOptions{}, RenderOptions{})
}
