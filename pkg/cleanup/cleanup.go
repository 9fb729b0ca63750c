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

// Package cleanup provides utilities to release partially built state when a
// constructor fails half way.
package cleanup

// Cleanup holds release functions that run in reverse order of registration
// unless Release is called first.
//
// Typical use:
//
//	fd, err := open()
//	if err != nil {
//		return err
//	}
//	cu := cleanup.Make(func() { unix.Close(fd) })
//	defer cu.Clean()
//
//	if err := configure(fd); err != nil {
//		return err // fd is closed.
//	}
//	cu.Release() // fd now belongs to the caller.
type Cleanup struct {
	cleaners []func()
}

// Make creates a Cleanup holding f.
func Make(f func()) Cleanup {
	return Cleanup{cleaners: []func(){f}}
}

// Add registers f to run before every previously added function.
func (c *Cleanup) Add(f func()) {
	c.cleaners = append(c.cleaners, f)
}

// Clean runs the registered functions, newest first, unless they were
// released.
func (c *Cleanup) Clean() {
	for i := len(c.cleaners) - 1; i >= 0; i-- {
		c.cleaners[i]()
	}
	c.cleaners = nil
}

// Release drops ownership of the registered functions and returns a single
// function that runs them, newest first.
func (c *Cleanup) Release() func() {
	old := c.cleaners
	c.cleaners = nil
	return func() {
		for i := len(old) - 1; i >= 0; i-- {
			old[i]()
		}
	}
}
