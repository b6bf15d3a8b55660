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

// Package bits includes bit-level helpers for decoding 64-bit hardware
// descriptors.
package bits

// IsOn64 returns true if *all* bits set in 'bits' are set in 'mask'.
func IsOn64(mask, bits uint64) bool {
	return mask&bits == bits
}

// Mask64 returns a uint64 with all of the given bits set.
func Mask64(is ...int) uint64 {
	ret := uint64(0)
	for _, i := range is {
		ret |= MaskOf64(i)
	}
	return ret
}

// MaskOf64 is like Mask64, but sets only a single bit (more efficiently).
func MaskOf64(i int) uint64 {
	return uint64(1) << uint64(i)
}

// Bit64 reports whether bit i of v is set.
func Bit64(v uint64, i int) bool {
	return v&MaskOf64(i) != 0
}

// FieldMask64 returns a mask covering bits [hi:lo], inclusive.
//
// Precondition: 0 <= lo <= hi <= 63.
func FieldMask64(hi, lo int) uint64 {
	if lo < 0 || hi > 63 || lo > hi {
		panic("invalid bit field")
	}
	width := uint64(hi - lo + 1)
	if width == 64 {
		return ^uint64(0)
	}
	return ((uint64(1) << width) - 1) << uint64(lo)
}

// FieldUnshifted64 returns bits [hi:lo] of v in place, with every other bit
// cleared. This is how output addresses are extracted from descriptors.
func FieldUnshifted64(v uint64, hi, lo int) uint64 {
	return v & FieldMask64(hi, lo)
}

// Field64 returns bits [hi:lo] of v shifted down to bit 0.
func Field64(v uint64, hi, lo int) uint64 {
	return FieldUnshifted64(v, hi, lo) >> uint64(lo)
}

// ClearBelow64 clears bits [n-1:0] of v.
func ClearBelow64(v uint64, n int) uint64 {
	if n <= 0 {
		return v
	}
	if n >= 64 {
		return 0
	}
	return v &^ ((uint64(1) << uint64(n)) - 1)
}
