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
	"os"
	"syscall"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// Transport is the generic netlink socket a Context drives. The connection
// returned by Dial satisfies it; tests and callers that own their socket may
// provide their own.
//
// Receive returns the messages of the next datagram. A multi-part reply is
// drained and returned together, up to and including its NLMSG_DONE.
// NLMSG_ERROR messages are returned as messages whatever their code, so that
// an error reply can be matched to the request it answers.
type Transport interface {
	Send(m netlink.Message) (netlink.Message, error)
	Receive() ([]netlink.Message, error)
	JoinGroup(group uint32) error
	LeaveGroup(group uint32) error
	GetFamily(name string) (genetlink.Family, error)
	SyscallConn() (syscall.RawConn, error)
	Close() error
}

// readBufferSetter is implemented by transports whose receive buffer can be
// resized.
type readBufferSetter interface {
	SetReadBuffer(bytes int) error
}

// conn is the Transport returned by dialTransport. Messages go through the
// plain netlink connection so the header port id stays under our control;
// family lookups go through the generic netlink wrapper of the same socket.
type conn struct {
	*netlink.Conn
	genl *genetlink.Conn
}

var _ Transport = (*conn)(nil)

// GetFamily implements Transport.GetFamily.
func (c *conn) GetFamily(name string) (genetlink.Family, error) {
	return c.genl.GetFamily(name)
}

// Receive implements Transport.Receive. netlink.Conn.Receive turns every
// error reply into an error before its sequence number can be checked, so
// conn reads the socket itself.
func (c *conn) Receive() ([]netlink.Message, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return nil, err
	}
	var res []netlink.Message
	for {
		msgs, err := receiveDatagram(rc)
		if err != nil {
			return nil, &netlink.OpError{Op: "receive", Err: err}
		}
		res = append(res, msgs...)

		var more bool
		for _, m := range msgs {
			if m.Header.Flags&netlink.Multi != 0 {
				more = m.Header.Type != netlink.Done
			}
		}
		if !more {
			return res, nil
		}
	}
}

// receiveDatagram reads and parses one datagram from rc, waiting until one
// is available.
func receiveDatagram(rc syscall.RawConn) ([]netlink.Message, error) {
	b := make([]byte, os.Getpagesize())
	var (
		n    int
		rerr error
	)
	err := rc.Read(func(fd uintptr) bool {
		for {
			// MSG_TRUNC makes the peek report the full datagram length.
			n, _, rerr = unix.Recvfrom(int(fd), b, unix.MSG_PEEK|unix.MSG_TRUNC)
			if rerr == unix.EINTR {
				continue
			}
			if rerr != nil || n <= len(b) {
				break
			}
			b = make([]byte, n)
		}
		for rerr == nil {
			n, _, rerr = unix.Recvfrom(int(fd), b, 0)
			if rerr != unix.EINTR {
				break
			}
			rerr = nil
		}
		return rerr != unix.EAGAIN
	})
	if err != nil {
		return nil, err
	}
	if rerr != nil {
		return nil, rerr
	}
	return parseMessages(b[:n])
}

// parseMessages splits a datagram into netlink messages.
func parseMessages(b []byte) ([]netlink.Message, error) {
	raw, err := syscall.ParseNetlinkMessage(b)
	if err != nil {
		return nil, err
	}
	msgs := make([]netlink.Message, 0, len(raw))
	for _, r := range raw {
		msgs = append(msgs, netlink.Message{
			Header: netlink.Header{
				Length:   r.Header.Len,
				Type:     netlink.HeaderType(r.Header.Type),
				Flags:    netlink.HeaderFlags(r.Header.Flags),
				Sequence: r.Header.Seq,
				PID:      r.Header.Pid,
			},
			Data: r.Data,
		})
	}
	return msgs, nil
}

// dialTransport opens a NETLINK_GENERIC socket according to o.
func dialTransport(o *options) (*conn, error) {
	cfg := &netlink.Config{}
	if o.netnsPath != "" {
		ns, err := netns.GetFromPath(o.netnsPath)
		if err != nil {
			return nil, fmt.Errorf("opening network namespace %q: %w", o.netnsPath, err)
		}
		// The socket keeps its namespace once created.
		defer ns.Close()
		cfg.NetNS = int(ns)
	}

	nc, err := netlink.Dial(genetlink.Protocol, cfg)
	if err != nil {
		return nil, fmt.Errorf("dialing generic netlink: %w", err)
	}

	if o.strict {
		// Best effort: older kernels reject these, and nothing depends on
		// them beyond better error reporting.
		for _, opt := range []netlink.ConnOption{
			netlink.ExtendedAcknowledge,
			netlink.GetStrictCheck,
		} {
			_ = nc.SetOption(opt, true)
		}
	}

	return &conn{Conn: nc, genl: genetlink.NewConn(nc)}, nil
}

// socketFD returns the descriptor behind t. The descriptor stays valid until
// t is closed.
func socketFD(t Transport) (int, error) {
	rc, err := t.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("getting raw socket: %w", err)
	}
	fd := -1
	if err := rc.Control(func(s uintptr) {
		fd = int(s)
	}); err != nil {
		return -1, fmt.Errorf("Control() error: %w", err)
	}
	return fd, nil
}
