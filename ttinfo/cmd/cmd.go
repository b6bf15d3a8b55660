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

// Package cmd holds implementations of the ttinfo commands.
package cmd

import (
	"fmt"

	"ttinfo.dev/ttinfo/pkg/cleanup"
	"ttinfo.dev/ttinfo/pkg/log"
	"ttinfo.dev/ttinfo/pkg/memory"
	"ttinfo.dev/ttinfo/ttinfo/config"
)

// target is the physical memory of the machine being inspected.
type target struct {
	mem   *memory.Map
	files []*memory.File
	unmap func()
}

// openTarget maps every image into a single memory map. Images must not
// overlap.
func openTarget(images config.Images) (*target, error) {
	t := &target{mem: memory.NewMap()}
	cu := cleanup.Make(func() { t.files = nil })
	defer cu.Clean()

	for _, img := range images {
		f, err := memory.MapFile(img.Path, uint64(img.Base))
		if err != nil {
			return nil, err
		}
		cu.Add(func() { unmapFile(f) })
		t.files = append(t.files, f)
		if err := t.mem.Add(f.Region); err != nil {
			return nil, fmt.Errorf("image %v: %w", img, err)
		}
		log.Debugf("Mapped image %q at %v", f.Path, f.Region)
	}
	t.unmap = cu.Release()
	return t, nil
}

func unmapFile(f *memory.File) {
	if err := f.Close(); err != nil {
		log.Warningf("Failed to unmap image %q: %v", f.Path, err)
	}
}

// Close unmaps all images. It is safe to call more than once.
func (t *target) Close() {
	if t.unmap != nil {
		t.unmap()
		t.unmap = nil
	}
}
