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
	"sync/atomic"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
)

// Message is an outbound family request built by Alloc.
//
// Send and SendRecv consume a Message whether or not they succeed. A consumed
// Message cannot be sent again: a second send returns ErrMessageSent without
// touching the socket. A Message that is never sent needs no release.
type Message struct {
	// Command is the generic netlink command.
	Command uint8

	// PID is the destination port id written to the netlink header. Zero
	// addresses the kernel.
	PID uint32

	// data is the encoded attribute block.
	data []byte

	sent atomic.Bool
}

// Alloc builds a Message for cmd carrying attrs nested under AttrVendorData.
// attrs may be nil. On error no Message is returned.
func (c *Context) Alloc(cmd uint8, attrs Attrs, pid uint32) (*Message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	b, err := attrs.encode()
	if err != nil {
		return nil, err
	}
	return &Message{
		Command: cmd,
		PID:     pid,
		data:    b,
	}, nil
}

// consume marks m sent. It fails if m was already sent.
func (m *Message) consume() error {
	if !m.sent.CompareAndSwap(false, true) {
		return ErrMessageSent
	}
	return nil
}

// Sent reports whether m was handed to Send or SendRecv.
func (m *Message) Sent() bool {
	return m.sent.Load()
}

// netlinkMessage wraps m for the family.
func (c *Context) netlinkMessage(m *Message, flags netlink.HeaderFlags) (netlink.Message, error) {
	gm := genetlink.Message{
		Header: genetlink.Header{
			Command: m.Command,
			Version: c.family.Version,
		},
		Data: m.data,
	}
	b, err := gm.MarshalBinary()
	if err != nil {
		return netlink.Message{}, fmt.Errorf("marshalling command %d: %w", m.Command, err)
	}
	return netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(c.family.ID),
			Flags: flags,
			PID:   m.PID,
		},
		Data: b,
	}, nil
}

// Send transmits m without waiting for a reply. m is consumed even on
// failure. Transport errors are wrapped, so errno values such as
// unix.ENOBUFS remain reachable with errors.Is.
func (c *Context) Send(m *Message) error {
	if err := m.consume(); err != nil {
		return err
	}
	if !c.gate.Enter() {
		return ErrClosed
	}
	defer c.gate.Leave()

	nm, err := c.netlinkMessage(m, netlink.Request)
	if err != nil {
		return err
	}
	if _, err := c.t.Send(nm); err != nil {
		return fmt.Errorf("sending command %d: %w", m.Command, err)
	}
	return nil
}

// SendRecv transmits m with an acknowledgement request and blocks until the
// kernel completes the exchange. m is consumed even on failure.
//
// Replies carrying the request's sequence number are passed to h; a nil h
// accepts them all. Anything else read from the socket meanwhile, such as
// multicast events, is discarded. The exchange completes on the
// acknowledgement, at the end of a multi-part reply, or when h returns
// ErrStop. A kernel error reply is returned as a *netlink.OpError wrapping
// the errno. SendRecv has no timeout of its own.
//
// SendRecv is a receive: it fails with ErrBusy while Recv or another
// SendRecv is running.
func (c *Context) SendRecv(m *Message, h Handler) error {
	if err := m.consume(); err != nil {
		return err
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	nm, err := c.netlinkMessage(m, netlink.Request|netlink.Acknowledge)
	if err != nil {
		return err
	}
	req, err := c.t.Send(nm)
	if err != nil {
		return fmt.Errorf("sending command %d: %w", m.Command, err)
	}

	for {
		msgs, err := c.t.Receive()
		if err != nil {
			return fmt.Errorf("receiving reply to command %d: %w", m.Command, err)
		}
		v, err := dispatch(h, msgs, c.family.ID, true, req.Header.Sequence)
		if err != nil {
			return err
		}
		if v.stop || v.acked || v.multi {
			return nil
		}
	}
}
