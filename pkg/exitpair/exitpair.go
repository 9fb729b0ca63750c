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

// Package exitpair provides a cross-goroutine wakeup built on a connected
// socket pair.
//
// One end is written by any goroutine that wants to interrupt a poll(2); the
// other end is placed in the poll set next to the descriptor being waited on.
// A wakeup stays readable until it is drained, so a Notify that lands while
// the waiter is between polls is observed by the next poll.
package exitpair

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	// WriteEnd is the index of the end written by Notify.
	WriteEnd = 0

	// ReadEnd is the index of the end that is polled and drained.
	ReadEnd = 1
)

// Pair represents a connected AF_UNIX socket pair used as a wakeup.
type Pair struct {
	fds [2]int
}

// Create returns an initialized Pair. Both ends are non-blocking and
// close-on-exec.
func Create() (Pair, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return Pair{fds: [2]int{-1, -1}}, fmt.Errorf("failed to create exit socket pair: %w", err)
	}
	return Pair{fds: fds}, nil
}

// Close closes both ends, after which the Pair should not be used.
func (p Pair) Close() error {
	var firstErr error
	for _, fd := range p.fds {
		if fd < 0 {
			continue
		}
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Notify makes the read end readable. It never blocks: if the socket buffer
// is full a wakeup is already pending and Notify returns nil.
func (p Pair) Notify() error {
	b := [1]byte{1}
	for {
		_, err := unix.Write(p.fds[WriteEnd], b[:])
		switch err {
		case nil, unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return err
		}
	}
}

// Drain consumes every pending wakeup and reports how many bytes were read.
func (p Pair) Drain() (int, error) {
	var (
		buf   [64]byte
		total int
	)
	for {
		n, err := unix.Read(p.fds[ReadEnd], buf[:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return total, nil
		case err != nil:
			return total, err
		case n == 0:
			// Write end closed; nothing more will arrive.
			return total, nil
		}
		total += n
	}
}

// Pending reports whether a wakeup is waiting to be drained, without
// consuming it.
func (p Pair) Pending() (bool, error) {
	fds := []unix.PollFd{{Fd: int32(p.fds[ReadEnd]), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
	}
}

// FDs returns both descriptors, write end first. Use with care, as this
// breaks the Pair abstraction.
func (p Pair) FDs() [2]int {
	return p.fds
}

// ReadFD returns the descriptor to place in a poll set.
func (p Pair) ReadFD() int {
	return p.fds[ReadEnd]
}
