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

// Package gate provides a usage Gate that keeps descriptors alive while
// other goroutines use them.
package gate

import (
	"sync/atomic"
)

// closedBit is set in the user count once the gate is closed; the low 31
// bits carry the number of users inside.
const closedBit = 0x80000000

// Gate lets any number of goroutines enter while it is open. Close stops new
// entries and blocks until everyone inside has left, so the closer may then
// release whatever the users were touching.
//
// Users:
//
//	if !g.Enter() {
//		// Already closed; the descriptor may be gone.
//		return
//	}
//	defer g.Leave()
//	unix.Write(fd, b)
//
// Closer:
//
//	g.Close()
//	unix.Close(fd)
//
// The zero value is an open gate.
type Gate struct {
	users atomic.Uint32
	done  chan struct{}
}

// Enter tries to enter the gate. On success the caller must call Leave.
// Enter never blocks.
func (g *Gate) Enter() bool {
	if g == nil {
		return false
	}
	for {
		v := g.users.Load()
		if v&closedBit != 0 {
			return false
		}
		if g.users.CompareAndSwap(v, v+1) {
			return true
		}
	}
}

// Leave leaves the gate after a successful Enter. The last user out of a
// closed gate wakes the closer.
func (g *Gate) Leave() {
	for {
		v := g.users.Load()
		if v&^closedBit == 0 {
			panic("leaving a gate with zero usage count")
		}
		if g.users.CompareAndSwap(v, v-1) {
			if v == closedBit+1 {
				close(g.done)
			}
			return
		}
	}
}

// Close closes the gate and waits for every user inside to leave.
//
// Only one goroutine may call Close, and only once.
func (g *Gate) Close() {
	for {
		v := g.users.Load()
		if v&^closedBit != 0 && g.done == nil {
			g.done = make(chan struct{})
		}
		if g.users.CompareAndSwap(v, v|closedBit) {
			if v&^closedBit != 0 {
				<-g.done
			}
			return
		}
	}
}

// Closed reports whether Close has been called.
func (g *Gate) Closed() bool {
	return g.users.Load()&closedBit != 0
}
