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

// Package memory provides read-only views of a target machine's physical
// memory, as consumed by the translation table walker.
package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmapped is returned when no backing memory exists for an address.
	ErrUnmapped = errors.New("address not backed by any memory region")

	// ErrConflict is returned when a region overlaps one already present.
	ErrConflict = errors.New("memory region overlaps an existing region")
)

// Reader reads target memory.
//
// ReadMemory must return exactly length bytes on success. Any failure
// (unmapped memory, an I/O error, a disconnected target) is returned as an
// error and the returned slice is nil.
type Reader interface {
	ReadMemory(addr, length uint64) ([]byte, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(addr, length uint64) ([]byte, error)

// ReadMemory implements Reader.ReadMemory.
func (f ReaderFunc) ReadMemory(addr, length uint64) ([]byte, error) {
	return f(addr, length)
}

// ReadError describes a failed read.
type ReadError struct {
	Addr   uint64
	Length uint64
	Err    error
}

// Error implements error.Error.
func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %d bytes at %#x: %v", e.Length, e.Addr, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// end returns addr+length, or ok=false if the range wraps.
func end(addr, length uint64) (uint64, bool) {
	e := addr + length
	return e, e >= addr
}
