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

// Package cleanup runs deferred cleanup work only on failure paths.
package cleanup

// Cleanup holds functions to run if a multi-step setup fails part way:
//
//	cu := cleanup.Make(func() { f.Close() })
//	defer cu.Clean() // Closes f on any early return.
//	...
//	cu.Add(func() { g.Close() })
//	...
//	cu.Release() // Setup succeeded, keep f and g open.
//	return f, g
type Cleanup struct {
	cleaners []func()
}

// Make returns a Cleanup that runs f.
func Make(f func()) Cleanup {
	return Cleanup{cleaners: []func(){f}}
}

// Add adds f. Functions run in the reverse order they were added.
func (c *Cleanup) Add(f func()) {
	c.cleaners = append(c.cleaners, f)
}

// Clean runs all functions, last added first, and forgets them.
func (c *Cleanup) Clean() {
	run(c.cleaners)
	c.cleaners = nil
}

// Release disarms c, so that later calls to Clean do nothing. The returned
// function runs what c would have run.
func (c *Cleanup) Release() func() {
	cleaners := c.cleaners
	c.cleaners = nil
	return func() { run(cleaners) }
}

func run(cleaners []func()) {
	for i := len(cleaners) - 1; i >= 0; i-- {
		cleaners[i]()
	}
}
