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

// Tree connectors.
const (
	branch     = "├─"
	lastBranch = "└─"
	pipe       = "│"
)

// RenderOptions configures Render.
type RenderOptions struct {
	// Verbose appends decoded attributes to block and page lines and
	// hierarchical controls to table headings.
	Verbose bool
}

// Render formats the tree rooted at n, one string per line. Each line starts
// with the first virtual address the line's node translates, followed by two
// spaces and the tree text.
func Render(n Node, opts RenderOptions) []string {
	vas, texts := renderNode(n, 1, opts)
	if len(vas) != len(texts) {
		panic(fmt.Sprintf("rendered %d addresses for %d lines", len(vas), len(texts)))
	}
	lines := make([]string, len(texts))
	for i, text := range texts {
		lines[i] = addr(vas[i]) + "  " + text
	}
	return lines
}

// renderNode returns the VA column and tree text of n. count is the number of
// table indices n stands for, which is greater than one only for coalesced
// invalid entries.
func renderNode(n Node, count int, opts RenderOptions) ([]uint64, []string) {
	switch n := n.(type) {
	case *TableNode:
		return renderTable(n, opts)
	case *LeafNode:
		return []uint64{n.VA}, []string{leafText(n.Descriptor, count, opts)}
	case *DuplicateNode:
		return []uint64{n.VA}, []string{fmt.Sprintf("dup %s level %d (already shown)", addr(n.Address), n.Level)}
	case *ReadFailureNode:
		return []uint64{n.VA}, []string{fmt.Sprintf("unreadable %s level %d: %v", addr(n.Address), n.Level, n.Err)}
	case *DecodeErrorNode:
		return []uint64{n.VA}, []string{fmt.Sprintf("bad %s level %d: %v", addr(n.Raw), n.Level, n.Err)}
	default:
		panic(fmt.Sprintf("unknown node type %T", n))
	}
}

func leafText(d Descriptor, count int, opts RenderOptions) string {
	if d.Kind == Invalid && count > 1 {
		return fmt.Sprintf("invalid ×%d", count)
	}
	return Describe(d, opts.Verbose)
}

func renderTable(t *TableNode, opts RenderOptions) ([]uint64, []string) {
	heading := fmt.Sprintf("table %s level %d", addr(t.Address), t.Level)
	if opts.Verbose && t.Descriptor != nil {
		heading += " " + t.Descriptor.TableControls().String()
	}
	vas := []uint64{t.VA}
	texts := []string{heading}

	labels := make([]string, len(t.Entries))
	width := 0
	for i, e := range t.Entries {
		labels[i] = indexLabel(e)
		width = max(width, len(labels[i]))
	}

	for i, e := range t.Entries {
		connector, cont := branch, pipe+" "
		if i == len(t.Entries)-1 {
			connector, cont = lastBranch, "  "
		}
		// Continuation lines start the child's text in the same column as
		// its first line.
		indent := cont + strings.Repeat(" ", width+1)

		cvas, ctexts := renderNode(e.Node, e.Count(), opts)
		for j, text := range ctexts {
			if j == 0 {
				texts = append(texts, fmt.Sprintf("%s%-*s %s", connector, width, labels[i], text))
			} else {
				texts = append(texts, indent+text)
			}
		}
		vas = append(vas, cvas...)
	}
	return vas, texts
}

// indexLabel returns "[iii]" or "[iii-jjj]" for e.
func indexLabel(e Entry) string {
	if e.First == e.Last {
		return fmt.Sprintf("[%03d]", e.First)
	}
	return fmt.Sprintf("[%03d-%03d]", e.First, e.Last)
}

// Legend returns a key to the tags used by Render.
func Legend() []string {
	return []string{
		"table <addr> level <n>         next level table at <addr>",
		"block <oa> AF=<0|1>            1GiB (level 1) or 2MiB (level 2) mapping and its access flag",
		"page <oa>                      4KiB mapping (level 3)",
		"invalid, invalid ×N            unmapped entry, or N adjacent unmapped entries",
		"dup <addr> level <n>           table already shown earlier in the walk, not expanded again",
		"unreadable <addr> level <n>    table memory could not be read",
		"bad <raw> level <n>            descriptor encoding not valid at this level",
		"[iii], [iii-jjj]               table index, or range of coalesced indices",
		"attr ap sh ns ng cont pxn uxn  block and page attributes (-v)",
		"aptable pxntable xntable nstable  table controls (-v)",
	}
}
