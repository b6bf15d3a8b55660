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
	"errors"
	"fmt"
	"strings"

	"ttinfo.dev/ttinfo/pkg/bits"
)

// Descriptor bits.
const (
	validBit = 0
	typeBit  = 1

	// Lower attributes of block and page descriptors.
	attrIndxLo = 2
	attrIndxHi = 4
	nsBit      = 5
	apLo       = 6
	apHi       = 7
	shLo       = 8
	shHi       = 9
	afBit      = 10
	ngBit      = 11

	// Upper attributes of block and page descriptors.
	contiguousBit = 52
	pxnBit        = 53
	uxnBit        = 54

	// Hierarchical controls of table descriptors.
	pxnTableBit = 59
	xnTableBit  = 60
	apTableLo   = 61
	apTableHi   = 62
	nsTableBit  = 63
)

// ErrUnsupportedBlockLevel is returned when a block descriptor appears at a
// level that has no block size with a 4KiB granule (level 0 or level 3).
var ErrUnsupportedBlockLevel = errors.New("block descriptor at unsupported level")

// Kind classifies a descriptor.
type Kind int

// Descriptor kinds.
const (
	// Invalid descriptors have bit 0 clear and map nothing.
	Invalid Kind = iota

	// Block descriptors map a 1GiB (level 1) or 2MiB (level 2) region.
	Block

	// Table descriptors point at the next level table.
	Table

	// Page descriptors map a 4KiB page at level 3.
	Page
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case Block:
		return "block"
	case Table:
		return "table"
	case Page:
		return "page"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Descriptor is one decoded translation table entry.
type Descriptor struct {
	// Kind is the descriptor kind.
	Kind Kind

	// Level is the translation level the descriptor was read at.
	Level int

	// Raw is the descriptor value.
	Raw uint64

	// Address is the output address for Block and Page descriptors, or the
	// next level table address for Table descriptors. Bits below the
	// block, page or table alignment are zero. It is zero for Invalid.
	Address uint64

	// AccessFlag is the AF bit. It is only set for Block descriptors.
	AccessFlag bool
}

// Decode classifies raw, read at the given level.
//
// Bit 0 clear is Invalid regardless of other bits. Otherwise bit 1 clear is a
// block, which only exists at levels 1 and 2; at level 0 or 3 Decode returns
// ErrUnsupportedBlockLevel. Bit 1 set is a Page at level 3 and a Table
// elsewhere.
func Decode(raw uint64, level int) (Descriptor, error) {
	if err := checkLevel(level); err != nil {
		return Descriptor{}, err
	}
	d := Descriptor{Level: level, Raw: raw}
	if !bits.Bit64(raw, validBit) {
		d.Kind = Invalid
		return d, nil
	}
	if bits.IsOn64(raw, bits.Mask64(validBit, typeBit)) {
		if level == MaxLevel {
			d.Kind = Page
		} else {
			d.Kind = Table
		}
		d.Address = bits.FieldUnshifted64(raw, OutputAddressHigh, PageShift)
		return d, nil
	}
	// Callers report raw and level alongside the error.
	if level != 1 && level != 2 {
		return Descriptor{}, ErrUnsupportedBlockLevel
	}
	d.Kind = Block
	d.Address = bits.FieldUnshifted64(raw, OutputAddressHigh, LevelShift(level))
	d.AccessFlag = bits.Bit64(raw, afBit)
	return d, nil
}

// DecodeBytes decodes an 8-byte little-endian descriptor.
func DecodeBytes(b []byte, level int) (Descriptor, error) {
	if len(b) != DescriptorSize {
		return Descriptor{}, fmt.Errorf("%w: descriptor is %d bytes, want %d", ErrInvalidArgument, len(b), DescriptorSize)
	}
	return Decode(binary.LittleEndian.Uint64(b), level)
}

// Size returns the size of the region mapped by a Block or Page descriptor,
// and zero for other kinds.
func (d Descriptor) Size() uint64 {
	switch d.Kind {
	case Block, Page:
		return BlockSize(d.Level)
	case Invalid, Table:
		return 0
	default:
		panic(fmt.Sprintf("unknown descriptor kind %v", d.Kind))
	}
}

// Attributes are the memory attributes of a block or page descriptor.
type Attributes struct {
	// AttrIndx selects a MAIR_ELx attribute field.
	AttrIndx uint8

	// NS is the non-secure bit.
	NS bool

	// AP is AP[2:1], the data access permissions.
	AP uint8

	// SH is the shareability field.
	SH uint8

	// AF is the access flag.
	AF bool

	// NG is the not-global bit.
	NG bool

	// Contiguous is the contiguous hint.
	Contiguous bool

	// PXN is privileged execute-never.
	PXN bool

	// UXN is unprivileged execute-never (XN at EL2/EL3).
	UXN bool
}

// Attributes decodes the lower and upper attributes of d. The result is
// meaningful only for Block and Page descriptors.
func (d Descriptor) Attributes() Attributes {
	return Attributes{
		AttrIndx:   uint8(bits.Field64(d.Raw, attrIndxHi, attrIndxLo)),
		NS:         bits.Bit64(d.Raw, nsBit),
		AP:         uint8(bits.Field64(d.Raw, apHi, apLo)),
		SH:         uint8(bits.Field64(d.Raw, shHi, shLo)),
		AF:         bits.Bit64(d.Raw, afBit),
		NG:         bits.Bit64(d.Raw, ngBit),
		Contiguous: bits.Bit64(d.Raw, contiguousBit),
		PXN:        bits.Bit64(d.Raw, pxnBit),
		UXN:        bits.Bit64(d.Raw, uxnBit),
	}
}

var apNames = [4]string{"rw-el1", "rw", "ro-el1", "ro"}

var shNames = [4]string{"non", "reserved", "outer", "inner"}

// String implements fmt.Stringer.
func (a Attributes) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "attr=%d ap=%s sh=%s", a.AttrIndx, apNames[a.AP&3], shNames[a.SH&3])
	for _, f := range []struct {
		set  bool
		name string
	}{
		{a.NS, "ns"},
		{a.NG, "ng"},
		{a.Contiguous, "cont"},
		{a.PXN, "pxn"},
		{a.UXN, "uxn"},
	} {
		if f.set {
			b.WriteByte(' ')
			b.WriteString(f.name)
		}
	}
	return b.String()
}

// TableControls are the hierarchical attribute controls of a table
// descriptor, which restrict every mapping below it.
type TableControls struct {
	PXNTable bool
	XNTable  bool
	APTable  uint8
	NSTable  bool
}

// TableControls decodes the hierarchical controls of d. The result is
// meaningful only for Table descriptors.
func (d Descriptor) TableControls() TableControls {
	return TableControls{
		PXNTable: bits.Bit64(d.Raw, pxnTableBit),
		XNTable:  bits.Bit64(d.Raw, xnTableBit),
		APTable:  uint8(bits.Field64(d.Raw, apTableHi, apTableLo)),
		NSTable:  bits.Bit64(d.Raw, nsTableBit),
	}
}

// String implements fmt.Stringer.
func (c TableControls) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "aptable=%d", c.APTable)
	if c.PXNTable {
		b.WriteString(" pxntable")
	}
	if c.XNTable {
		b.WriteString(" xntable")
	}
	if c.NSTable {
		b.WriteString(" nstable")
	}
	return b.String()
}

// Describe returns a one-line description of d using the same tags as the
// tree renderer. When verbose is set, attributes or table controls are
// appended.
func Describe(d Descriptor, verbose bool) string {
	var s string
	switch d.Kind {
	case Invalid:
		return "invalid"
	case Block:
		s = fmt.Sprintf("block %s AF=%d", addr(d.Address), boolBit(d.AccessFlag))
		if verbose {
			s += " " + d.Attributes().String()
		}
	case Page:
		s = fmt.Sprintf("page %s", addr(d.Address))
		if verbose {
			s += " " + d.Attributes().String()
		}
	case Table:
		s = fmt.Sprintf("table %s level %d", addr(d.Address), d.Level+1)
		if verbose {
			s += " " + d.TableControls().String()
		}
	default:
		panic(fmt.Sprintf("unknown descriptor kind %v", d.Kind))
	}
	return s
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}
