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

package memory

import (
	"fmt"
)

// Region is a contiguous run of target memory starting at Base.
type Region struct {
	// Base is the physical address of Data[0].
	Base uint64

	// Data is the memory contents. It is never modified.
	Data []byte
}

// NewRegion returns a region holding data at base.
func NewRegion(base uint64, data []byte) *Region {
	return &Region{Base: base, Data: data}
}

// Size returns the length of the region in bytes.
func (r *Region) Size() uint64 {
	return uint64(len(r.Data))
}

// End returns the first address past the region.
func (r *Region) End() uint64 {
	return r.Base + r.Size()
}

// Contains returns true if [addr, addr+length) lies within the region.
func (r *Region) Contains(addr, length uint64) bool {
	e, ok := end(addr, length)
	return ok && addr >= r.Base && e <= r.End()
}

// Overlaps returns true if [base, base+size) shares any byte with the region.
func (r *Region) Overlaps(base, size uint64) bool {
	return base < r.End() && r.Base < base+size
}

// String implements fmt.Stringer.
func (r *Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Base, r.End())
}

// ReadMemory implements Reader.ReadMemory.
func (r *Region) ReadMemory(addr, length uint64) ([]byte, error) {
	if !r.Contains(addr, length) {
		return nil, &ReadError{Addr: addr, Length: length, Err: ErrUnmapped}
	}
	off := addr - r.Base
	buf := make([]byte, length)
	copy(buf, r.Data[off:off+length])
	return buf, nil
}
