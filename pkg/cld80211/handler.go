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
	"errors"
	"fmt"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

var (
	// ErrSkip may be returned by a Handler to pass over a message. A
	// skipped message does not count as a delivery.
	ErrSkip = errors.New("cld80211: skip message")

	// ErrStop may be returned by a Handler to end the current receive
	// successfully after this message.
	ErrStop = errors.New("cld80211: stop receiving")
)

// Handler consumes inbound family messages.
//
// HandleMessage receives the decoded generic netlink message and the netlink
// message carrying it, for access to the header. Returning nil or ErrSkip
// continues, ErrStop ends the receive without error, and any other error
// aborts the receive and is returned to its caller.
type Handler interface {
	HandleMessage(gm genetlink.Message, nm netlink.Message) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(gm genetlink.Message, nm netlink.Message) error

// HandleMessage implements Handler.HandleMessage.
func (f HandlerFunc) HandleMessage(gm genetlink.Message, nm netlink.Message) error {
	return f(gm, nm)
}

// verdict is the outcome of dispatching one batch of messages.
type verdict struct {
	// delivered counts messages the handler accepted.
	delivered int

	// stop is set when the handler returned ErrStop.
	stop bool

	// multi is set when the batch was a multi-part reply, which the
	// transport only returns once its terminating NLMSG_DONE was read.
	multi bool

	// acked is set when the batch held an acknowledgement or NLMSG_DONE.
	acked bool
}

// isFamilyMessage reports whether nm carries a family message. A zero family
// accepts every message that is not a netlink control message.
func isFamilyMessage(nm netlink.Message, family uint16) bool {
	if family != 0 {
		return nm.Header.Type == netlink.HeaderType(family)
	}
	switch nm.Header.Type {
	case netlink.Noop, netlink.Error, netlink.Done, netlink.Overrun:
		return false
	}
	return true
}

// replyError returns the error carried by an NLMSG_ERROR or NLMSG_DONE, or
// nil for an acknowledgement.
func replyError(nm netlink.Message) error {
	if len(nm.Data) < 4 {
		if nm.Header.Type == netlink.Done {
			return nil
		}
		return &netlink.OpError{Op: "receive", Err: unix.EBADMSG}
	}
	if code := nlenc.Int32(nm.Data[:4]); code != 0 {
		return &netlink.OpError{Op: "receive", Err: unix.Errno(-code)}
	}
	return nil
}

// dispatch hands every family message in msgs to h. When match is true only
// messages carrying sequence number seq are considered, so error replies to
// other requests are ignored; otherwise any error reply is returned.
func dispatch(h Handler, msgs []netlink.Message, family uint16, match bool, seq uint32) (verdict, error) {
	var v verdict
	for _, nm := range msgs {
		if match && nm.Header.Sequence != seq {
			continue
		}
		if nm.Header.Flags&netlink.Multi != 0 {
			v.multi = true
		}

		switch nm.Header.Type {
		case netlink.Error, netlink.Done:
			if err := replyError(nm); err != nil {
				return v, err
			}
			v.acked = true
			continue
		}
		if !isFamilyMessage(nm, family) {
			continue
		}

		var gm genetlink.Message
		if err := gm.UnmarshalBinary(nm.Data); err != nil {
			return v, fmt.Errorf("malformed generic netlink message: %w", err)
		}
		if h == nil {
			v.delivered++
			continue
		}
		switch err := h.HandleMessage(gm, nm); {
		case err == nil:
			v.delivered++
		case errors.Is(err, ErrSkip):
		case errors.Is(err, ErrStop):
			v.delivered++
			v.stop = true
			return v, nil
		default:
			return v, err
		}
	}
	return v, nil
}
