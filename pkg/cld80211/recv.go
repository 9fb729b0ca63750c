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

package cld80211

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/sys/unix"
)

// Result is the outcome of a Recv that did not fail.
type Result int

const (
	// Failed is returned alongside every Recv error.
	Failed Result = iota

	// Delivered means the handler accepted a message: exactly one in single
	// message mode, or the one that returned ErrStop in multi mode.
	Delivered

	// Cancelled means the receive was interrupted by Exit or Stop, or that
	// the Context is terminating.
	Cancelled

	// TimedOut means nothing arrived within the timeout.
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Failed:
		return "failed"
	case Delivered:
		return "delivered"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// stateFn is one state of the receive loop. It returns the next state, or
// nil once rs.result or rs.err is final.
type stateFn func(rs *recvState) stateFn

// exitDrainLimit bounds the datagrams delivered after an exit signal is seen,
// so that a steady stream cannot hold off cancellation.
const exitDrainLimit = 64

type recvState struct {
	c       *Context
	h       Handler
	multi   bool
	timeout time.Duration

	// fds is the poll set: the socket, then the exit read end.
	fds [2]unix.PollFd

	// exitSeen is set once the exit signal was observed. From then on only
	// datagrams already readable are delivered, at most drainBudget more.
	exitSeen    bool
	drainBudget int

	result Result
	err    error
}

func (rs *recvState) fail(err error) stateFn {
	rs.result = Failed
	rs.err = err
	return nil
}

func (rs *recvState) finish(r Result) stateFn {
	rs.result = r
	return nil
}

// pollTimeout converts what is left of d to poll(2) milliseconds, rounding
// up so that a short timeout does not become a non-blocking poll. poll takes
// a C int, so longer waits are clamped.
func pollTimeout(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// polling waits for the socket or the exit signal.
func polling(rs *recvState) stateFn {
	if rs.c.terminating.Load() {
		return cancelled
	}

	var deadline time.Time
	if rs.timeout > 0 {
		deadline = time.Now().Add(rs.timeout)
	}
	for {
		ms := -1
		switch {
		case rs.timeout == 0:
			ms = 0
		case rs.timeout > 0:
			ms = pollTimeout(time.Until(deadline))
		}

		rs.fds[0].Revents = 0
		rs.fds[1].Revents = 0
		n, err := unix.Poll(rs.fds[:], ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return rs.fail(fmt.Errorf("polling socket: %w", err))
		}
		if n == 0 {
			return rs.finish(TimedOut)
		}
		break
	}

	sock, exit := rs.fds[0].Revents, rs.fds[1].Revents
	if sock&unix.POLLNVAL != 0 || exit&unix.POLLNVAL != 0 {
		return rs.fail(fmt.Errorf("polling socket: %w", unix.EBADF))
	}
	const ready = unix.POLLIN | unix.POLLERR | unix.POLLHUP
	if exit&ready != 0 && !rs.exitSeen {
		rs.exitSeen = true
		rs.drainBudget = exitDrainLimit
	}
	// Data already queued is delivered before a pending cancellation. The
	// exit end stays readable until drained, so each later poll returns at
	// once and the first one finding the socket empty cancels.
	if sock&ready != 0 {
		if !rs.exitSeen {
			return receiving
		}
		if rs.drainBudget > 0 {
			rs.drainBudget--
			return receiving
		}
	}
	if rs.exitSeen {
		return cancelled
	}
	// Spurious wakeup.
	return polling
}

// receiving reads one batch from the readable socket.
func receiving(rs *recvState) stateFn {
	msgs, err := rs.c.t.Receive()
	if err != nil {
		return rs.fail(fmt.Errorf("receiving: %w", err))
	}
	v, err := dispatch(rs.h, msgs, rs.c.family.ID, false, 0)
	if err != nil {
		return rs.fail(err)
	}
	if v.stop || (v.delivered > 0 && !rs.multi) {
		return rs.finish(Delivered)
	}
	return polling
}

// cancelled acknowledges the exit signal.
func cancelled(rs *recvState) stateFn {
	if _, err := rs.c.exit.Drain(); err != nil {
		return rs.fail(fmt.Errorf("draining exit signal: %w", err))
	}
	return rs.finish(Cancelled)
}

// Recv waits for family messages on the socket and passes them to h; a nil h
// accepts every message.
//
// A negative timeout waits forever and zero polls once without blocking. A
// positive timeout bounds each wait for the next datagram and is rounded up
// to milliseconds.
//
// In single message mode (multi false) Recv returns Delivered once h accepts
// a message. In multi mode it keeps receiving until cancelled, until h
// returns ErrStop, or until a wait times out. Messages already queued on the
// socket are delivered before a pending Exit is honoured, up to a bound that
// keeps a steady stream from delaying cancellation indefinitely.
//
// Recv returns Cancelled without waiting after Stop(true). Transport and
// handler errors are returned with the Failed result and are never retried.
// So is an error reply read from the socket, such as the kernel rejecting a
// message given to Send.
// Recv fails with ErrBusy while another receive is running.
func (c *Context) Recv(timeout time.Duration, multi bool, h Handler) (Result, error) {
	if c.terminating.Load() {
		return Cancelled, nil
	}
	if err := c.acquire(); err != nil {
		return Failed, err
	}
	defer c.release()

	rs := &recvState{
		c:       c,
		h:       h,
		multi:   multi,
		timeout: timeout,
		fds: [2]unix.PollFd{
			{Fd: int32(c.fd), Events: unix.POLLIN},
			{Fd: int32(c.exit.ReadFD()), Events: unix.POLLIN},
		},
	}
	for state := polling; state != nil; {
		state = state(rs)
	}
	return rs.result, rs.err
}

// RecvMsg performs one receive directly on t and passes the messages of
// family to h. A zero family passes every message that is not a netlink
// control message.
//
// RecvMsg cannot be cancelled and ignores any Context state, including Stop.
// It is meant for callers that poll t themselves.
func RecvMsg(t Transport, family uint16, h Handler) error {
	msgs, err := t.Receive()
	if err != nil {
		return fmt.Errorf("receiving: %w", err)
	}
	_, err = dispatch(h, msgs, family, false, 0)
	return err
}

// Exit interrupts a Recv blocked on c, from any goroutine. If no Recv is
// waiting the signal stays pending and cancels the next one. Exit never
// blocks and is a no-op after Close.
func (c *Context) Exit() error {
	if !c.gate.Enter() {
		return nil
	}
	defer c.gate.Leave()

	if err := c.exit.Notify(); err != nil {
		return fmt.Errorf("signalling exit: %w", err)
	}
	return nil
}

// Stop interrupts a Recv like Exit. With terminating set, every later Recv
// returns Cancelled without waiting; this cannot be undone. A graceful Stop
// leaves c usable.
func (c *Context) Stop(terminating bool) error {
	if terminating {
		c.terminating.Store(true)
	}
	return c.Exit()
}
