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
	"sync"

	"github.com/google/btree"
)

// btreeDegree is the B-tree degree used for region lookup.
const btreeDegree = 8

// Map is a sparse physical address space built from non-overlapping regions.
// Reads may span adjacent regions.
//
// Map is safe for concurrent use; several walks may read from it at once.
type Map struct {
	mu sync.RWMutex

	// regions is ordered by Base.
	//
	// +checklocks:mu
	regions *btree.BTreeG[*Region]
}

func regionLess(a, b *Region) bool {
	return a.Base < b.Base
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{regions: btree.NewG(btreeDegree, regionLess)}
}

// Add inserts r. It fails with ErrConflict if r overlaps an existing region.
func (m *Map) Add(r *Region) error {
	if r.Size() == 0 {
		return fmt.Errorf("empty region at %#x", r.Base)
	}
	if _, ok := end(r.Base, r.Size()); !ok {
		return fmt.Errorf("region at %#x with size %#x wraps the address space", r.Base, r.Size())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.floorLocked(r.Base); prev != nil && prev.Overlaps(r.Base, r.Size()) {
		return fmt.Errorf("%w: %v and %v", ErrConflict, r, prev)
	}
	var conflict *Region
	m.regions.AscendGreaterOrEqual(&Region{Base: r.Base}, func(next *Region) bool {
		if next.Overlaps(r.Base, r.Size()) {
			conflict = next
		}
		return false
	})
	if conflict != nil {
		return fmt.Errorf("%w: %v and %v", ErrConflict, r, conflict)
	}
	m.regions.ReplaceOrInsert(r)
	return nil
}

// floorLocked returns the region with the greatest Base <= addr, or nil.
//
// +checklocksread:m.mu
func (m *Map) floorLocked(addr uint64) *Region {
	var found *Region
	m.regions.DescendLessOrEqual(&Region{Base: addr}, func(r *Region) bool {
		found = r
		return false
	})
	return found
}

// Len returns the number of regions.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.regions.Len()
}

// Regions returns all regions in address order.
func (m *Map) Regions() []*Region {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs := make([]*Region, 0, m.regions.Len())
	m.regions.Ascend(func(r *Region) bool {
		rs = append(rs, r)
		return true
	})
	return rs
}

// ReadMemory implements Reader.ReadMemory.
func (m *Map) ReadMemory(addr, length uint64) ([]byte, error) {
	if _, ok := end(addr, length); !ok {
		return nil, &ReadError{Addr: addr, Length: length, Err: ErrUnmapped}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	buf := make([]byte, 0, length)
	cur := addr
	for uint64(len(buf)) < length {
		r := m.floorLocked(cur)
		if r == nil || cur >= r.End() {
			return nil, &ReadError{Addr: addr, Length: length, Err: fmt.Errorf("%w: %#x", ErrUnmapped, cur)}
		}
		n := min(r.End()-cur, length-uint64(len(buf)))
		off := cur - r.Base
		buf = append(buf, r.Data[off:off+n]...)
		cur += n
	}
	return buf, nil
}
