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

//go:build linux
// +build linux

package memory

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a memory image file mapped read-only into this process, such as a
// raw physical memory dump taken with QEMU's pmemsave.
type File struct {
	*Region

	// Path is the image file name.
	Path string
}

// MapFile maps the image at path so that its first byte appears at physical
// address base. The caller must Close the returned File once no walk uses it.
func MapFile(path string, base uint64) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening memory image: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat memory image %q: %w", path, err)
	}
	size := fi.Size()
	if size == 0 {
		return nil, fmt.Errorf("memory image %q is empty", path)
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("memory image %q is too large to map: %d bytes", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mapping memory image %q: %w", path, err)
	}
	return &File{Region: NewRegion(base, data), Path: path}, nil
}

// Close unmaps the image. The File must not be read afterwards.
func (f *File) Close() error {
	if f.Data == nil {
		return nil
	}
	err := unix.Munmap(f.Data)
	f.Data = nil
	return err
}
