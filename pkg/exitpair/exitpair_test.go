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

package exitpair

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestNotifyDrain(t *testing.T) {
	p, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer p.Close()

	if pending, err := p.Pending(); err != nil || pending {
		t.Fatalf("Pending() on a fresh pair = %t, %v; want false, nil", pending, err)
	}

	for i := 0; i < 3; i++ {
		if err := p.Notify(); err != nil {
			t.Fatalf("Notify() failed: %v", err)
		}
	}

	// The wakeup is level triggered: checking does not consume it.
	for i := 0; i < 2; i++ {
		if pending, err := p.Pending(); err != nil || !pending {
			t.Fatalf("Pending() after Notify = %t, %v; want true, nil", pending, err)
		}
	}

	n, err := p.Drain()
	if err != nil {
		t.Fatalf("Drain() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Drain() = %d bytes, want 3", n)
	}
	if pending, err := p.Pending(); err != nil || pending {
		t.Fatalf("Pending() after Drain = %t, %v; want false, nil", pending, err)
	}
}

func TestDrainEmpty(t *testing.T) {
	p, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer p.Close()

	if n, err := p.Drain(); err != nil || n != 0 {
		t.Fatalf("Drain() on empty pair = %d, %v; want 0, nil", n, err)
	}
}

func TestNotifyNeverBlocks(t *testing.T) {
	p, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer p.Close()

	// Fill the socket buffer well past capacity. Every Notify must return
	// promptly and without error.
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 1<<16; i++ {
			if err := p.Notify(); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Notify() failed: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatalf("Notify() blocked on a full buffer")
	}
}

func TestPollWakeup(t *testing.T) {
	p, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer p.Close()

	errCh := make(chan error, 1)
	go func() {
		fds := []unix.PollFd{{Fd: int32(p.ReadFD()), Events: unix.POLLIN}}
		for {
			_, err := unix.Poll(fds, -1)
			if err == unix.EINTR {
				continue
			}
			errCh <- err
			return
		}
	}()

	select {
	case err := <-errCh:
		t.Fatalf("poll returned without a call to Notify(): %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	if err := p.Notify(); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("poll did not return after Notify()")
	}
}

func TestFDs(t *testing.T) {
	p, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer p.Close()

	fds := p.FDs()
	if fds[WriteEnd] < 0 || fds[ReadEnd] < 0 || fds[WriteEnd] == fds[ReadEnd] {
		t.Fatalf("FDs() = %v, want two distinct valid descriptors", fds)
	}
	if fds[ReadEnd] != p.ReadFD() {
		t.Errorf("ReadFD() = %d, want %d", p.ReadFD(), fds[ReadEnd])
	}
}
