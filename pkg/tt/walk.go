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
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"ttinfo.dev/ttinfo/pkg/log"
	"ttinfo.dev/ttinfo/pkg/memory"
)

// Node is one node of a walk result. It is one of *TableNode, *LeafNode,
// *DuplicateNode, *ReadFailureNode or *DecodeErrorNode; consumers switch on
// the concrete type and treat any other type as a bug.
type Node interface {
	// VirtualAddress returns the first virtual address translated through
	// the node.
	VirtualAddress() uint64

	// isNode restricts implementations to this package.
	isNode()
}

// TableNode is a table that was read and expanded.
type TableNode struct {
	// Address is the physical address of the table.
	Address uint64

	// Level is the table's translation level.
	Level int

	// VA is the first virtual address the table covers.
	VA uint64

	// Descriptor is the table descriptor that led here, or nil for the
	// root of the walk.
	Descriptor *Descriptor

	// Entries are the table's entries in index order.
	Entries []Entry
}

// Entry is one table entry, or a run of coalesced invalid entries, and the
// node it leads to.
type Entry struct {
	// First and Last are the inclusive index range. They are equal unless
	// invalid entries were coalesced.
	First, Last int

	// VA is the first virtual address translated through index First.
	VA uint64

	// Node is the decoded entry.
	Node Node
}

// Count returns the number of table indices covered by e.
func (e Entry) Count() int {
	return e.Last - e.First + 1
}

// LeafNode is an Invalid, Block or Page descriptor.
type LeafNode struct {
	Descriptor Descriptor
	VA         uint64
}

// DuplicateNode is a table descriptor whose target was already expanded
// earlier in the same walk. It is not read again.
type DuplicateNode struct {
	// Address is the physical address of the already visited table.
	Address uint64

	// Level is the level the table would have been read at.
	Level int

	VA uint64
}

// ReadFailureNode is a table that could not be read.
type ReadFailureNode struct {
	Address uint64
	Level   int
	VA      uint64
	Err     error
}

// DecodeErrorNode is a descriptor with an encoding the walker cannot decode,
// such as a block at level 0 or 3.
type DecodeErrorNode struct {
	Raw   uint64
	Level int
	VA    uint64
	Err   error
}

// VirtualAddress implements Node.VirtualAddress.
func (n *TableNode) VirtualAddress() uint64 { return n.VA }

// VirtualAddress implements Node.VirtualAddress.
func (n *LeafNode) VirtualAddress() uint64 { return n.VA }

// VirtualAddress implements Node.VirtualAddress.
func (n *DuplicateNode) VirtualAddress() uint64 { return n.VA }

// VirtualAddress implements Node.VirtualAddress.
func (n *ReadFailureNode) VirtualAddress() uint64 { return n.VA }

// VirtualAddress implements Node.VirtualAddress.
func (n *DecodeErrorNode) VirtualAddress() uint64 { return n.VA }

func (*TableNode) isNode()       {}
func (*LeafNode) isNode()        {}
func (*DuplicateNode) isNode()   {}
func (*ReadFailureNode) isNode() {}
func (*DecodeErrorNode) isNode() {}

// InvalidMode controls how invalid entries appear in a walk result.
type InvalidMode int

const (
	// InvalidCoalesce merges each run of adjacent invalid entries into one
	// Entry spanning the run.
	InvalidCoalesce InvalidMode = iota

	// InvalidEach keeps one Entry per invalid index.
	InvalidEach

	// InvalidHide drops invalid entries.
	InvalidHide
)

var invalidModeNames = map[InvalidMode]string{
	InvalidCoalesce: "coalesce",
	InvalidEach:     "each",
	InvalidHide:     "hide",
}

// String implements flag.Value.String.
func (m InvalidMode) String() string {
	if s, ok := invalidModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("InvalidMode(%d)", int(m))
}

// Set implements flag.Value.Set.
func (m *InvalidMode) Set(s string) error {
	for mode, name := range invalidModeNames {
		if name == s {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("%w: invalid entry mode %q, must be one of: coalesce, each, hide", ErrInvalidArgument, s)
}

// Get implements flag.Getter.Get.
func (m *InvalidMode) Get() any {
	return *m
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *InvalidMode) UnmarshalText(b []byte) error {
	return m.Set(strings.TrimSpace(string(b)))
}

// WalkOptions configures a walk.
type WalkOptions struct {
	// Invalid selects how invalid entries are reported.
	Invalid InvalidMode
}

// WalkStats counts what a walk found.
type WalkStats struct {
	Tables       int
	Duplicates   int
	ReadFailures int
	DecodeErrors int
	Invalid      int
	Blocks       int
	Pages        int
}

// String implements fmt.Stringer.
func (s WalkStats) String() string {
	return fmt.Sprintf("tables=%d dups=%d unreadable=%d bad=%d invalid=%d blocks=%d pages=%d",
		s.Tables, s.Duplicates, s.ReadFailures, s.DecodeErrors, s.Invalid, s.Blocks, s.Pages)
}

// Walker walks translation tables.
//
// A Walker is not safe for concurrent use. Independent walks (for example of
// TTBR0 and TTBR1) should each use their own Walker.
type Walker struct {
	r    memory.Reader
	opts WalkOptions

	// visited holds the base address of every table expanded in the
	// current walk.
	visited map[uint64]struct{}

	// failed caches read errors by table address, so a bad table
	// referenced many times is read and reported once.
	failed map[uint64]error

	stats WalkStats
	warn  *log.RateLimitedLogger
}

// NewWalker returns a Walker reading through r.
func NewWalker(r memory.Reader, opts WalkOptions) *Walker {
	return &Walker{
		r:    r,
		opts: opts,
		warn: log.BasicRateLimitedLogger(time.Second),
	}
}

// Walk walks the level table at base. startVA provides the virtual address
// bits above those the table resolves, e.g. all zeros for TTBR0 and all ones
// for TTBR1.
//
// Read and decode failures are reported in place as nodes. The only error
// returned is ErrInvalidArgument for a level outside [0, MaxLevel].
func (w *Walker) Walk(base uint64, level int, startVA uint64) (Node, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	w.visited = make(map[uint64]struct{})
	w.failed = make(map[uint64]error)
	w.stats = WalkStats{}
	log.Debugf("Walking level %d table at %s, VA %s", level, addr(base), addr(startVA))
	return w.walkTable(base, level, TableVA(startVA, level), nil), nil
}

// Stats returns counts from the last Walk.
func (w *Walker) Stats() WalkStats {
	return w.stats
}

// Walk walks the level table at base with a new Walker. See Walker.Walk.
func Walk(r memory.Reader, base uint64, level int, startVA uint64, opts WalkOptions) (Node, error) {
	return NewWalker(r, opts).Walk(base, level, startVA)
}

// walkTable reads and expands one table. va has bits below the table's span
// cleared.
func (w *Walker) walkTable(base uint64, level int, va uint64, d *Descriptor) Node {
	if _, ok := w.visited[base]; ok {
		w.stats.Duplicates++
		return &DuplicateNode{Address: base, Level: level, VA: va}
	}
	if err, ok := w.failed[base]; ok {
		w.stats.ReadFailures++
		return &ReadFailureNode{Address: base, Level: level, VA: va, Err: err}
	}

	buf, err := w.r.ReadMemory(base, TableSize)
	if err == nil && len(buf) != TableSize {
		err = fmt.Errorf("short read of %d bytes", len(buf))
	}
	if err != nil {
		w.failed[base] = err
		w.stats.ReadFailures++
		w.warn.Warningf("Failed to read level %d table at %s: %v", level, addr(base), err)
		return &ReadFailureNode{Address: base, Level: level, VA: va, Err: err}
	}
	w.visited[base] = struct{}{}
	w.stats.Tables++

	t := &TableNode{Address: base, Level: level, VA: va, Descriptor: d}
	var run *Entry // pending run of coalesced invalid entries
	flush := func() {
		if run != nil {
			t.Entries = append(t.Entries, *run)
			run = nil
		}
	}
	for i := 0; i < EntriesPerTable; i++ {
		raw := binary.LittleEndian.Uint64(buf[i*DescriptorSize:])
		eva := EntryVA(va, level, i)
		desc, err := Decode(raw, level)
		if err != nil {
			flush()
			w.stats.DecodeErrors++
			t.Entries = append(t.Entries, Entry{First: i, Last: i, VA: eva, Node: &DecodeErrorNode{Raw: raw, Level: level, VA: eva, Err: err}})
			continue
		}

		switch desc.Kind {
		case Invalid:
			w.stats.Invalid++
			switch w.opts.Invalid {
			case InvalidHide:
				continue
			case InvalidCoalesce:
				if run != nil {
					run.Last = i
					continue
				}
				run = &Entry{First: i, Last: i, VA: eva, Node: &LeafNode{Descriptor: desc, VA: eva}}
			case InvalidEach:
				t.Entries = append(t.Entries, Entry{First: i, Last: i, VA: eva, Node: &LeafNode{Descriptor: desc, VA: eva}})
			default:
				panic(fmt.Sprintf("unknown invalid mode %v", w.opts.Invalid))
			}
		case Table:
			flush()
			child := w.walkTable(desc.Address, level+1, eva, &desc)
			t.Entries = append(t.Entries, Entry{First: i, Last: i, VA: eva, Node: child})
		case Block, Page:
			flush()
			if desc.Kind == Block {
				w.stats.Blocks++
			} else {
				w.stats.Pages++
			}
			t.Entries = append(t.Entries, Entry{First: i, Last: i, VA: eva, Node: &LeafNode{Descriptor: desc, VA: eva}})
		default:
			panic(fmt.Sprintf("unknown descriptor kind %v", desc.Kind))
		}
	}
	flush()
	return t
}
