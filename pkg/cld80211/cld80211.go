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

// Package cld80211 exchanges vendor messages with a kernel driver over the
// cld80211 generic netlink family.
//
// A Context owns one generic netlink socket bound to the family, plus an exit
// socketpair used to interrupt a blocking Recv from another goroutine. At most
// one goroutine may receive on a Context at a time; Recv, SendRecv and Close
// enforce this and return ErrBusy to the loser. Exit and Stop may be called
// from any goroutine at any time, including after Close.
//
// Typical use:
//
//	c, err := cld80211.Dial()
//	...
//	defer c.Close()
//	if err := c.AddMcastGroup("host_event"); err != nil {
//		...
//	}
//	res, err := c.Recv(-1, false, handler)
package cld80211

import (
	"fmt"
	"sync/atomic"

	"github.com/cld80211/cld80211/pkg/cleanup"
	"github.com/cld80211/cld80211/pkg/exitpair"
	"github.com/cld80211/cld80211/pkg/gate"
	"github.com/cld80211/cld80211/pkg/log"
	"github.com/mdlayher/genetlink"
)

// FamilyName is the generic netlink family registered by the driver.
const FamilyName = "cld80211"

type options struct {
	family     string
	strict     bool
	netnsPath  string
	readBuffer int
}

// Option configures Dial and New.
type Option func(*options)

// WithFamily binds the Context to the named family instead of FamilyName.
func WithFamily(name string) Option {
	return func(o *options) {
		o.family = name
	}
}

// WithStrict enables extended acknowledgements and strict attribute checking
// on the dialed socket, when the kernel supports them. It has no effect on
// New.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithNetNS dials the socket inside the network namespace at path, for
// example /var/run/netns/foo or /proc/<pid>/ns/net. It has no effect on New.
func WithNetNS(path string) Option {
	return func(o *options) {
		o.netnsPath = path
	}
}

// WithReadBuffer sets the socket receive buffer size in bytes. Bursts of
// multicast events overrun the default buffer with ENOBUFS.
func WithReadBuffer(bytes int) Option {
	return func(o *options) {
		o.readBuffer = bytes
	}
}

func makeOptions(opts []Option) *options {
	o := &options{family: FamilyName}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Context is a generic netlink socket bound to one family.
//
// A Context must not be copied after first use.
type Context struct {
	t      Transport
	family genetlink.Family
	fd     int
	exit   exitpair.Pair

	// gate is held by Exit, Stop and the group operations while they use a
	// descriptor. Close closes it before releasing the descriptors.
	gate gate.Gate

	// active is set while a goroutine is receiving, and permanently once
	// the Context is closed.
	active atomic.Bool
	closed atomic.Bool

	// terminating is set by Stop(true) and never cleared.
	terminating atomic.Bool
}

// Dial opens a generic netlink socket and binds a Context to the family. The
// returned error wraps ErrInit; when the family is not registered it also
// matches os.ErrNotExist.
func Dial(opts ...Option) (*Context, error) {
	o := makeOptions(opts)
	c, err := dialTransport(o)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	return newContext(c, o)
}

// New binds a Context to the family over t. New takes ownership of t: it is
// closed by Close, or before New returns if New fails.
func New(t Transport, opts ...Option) (*Context, error) {
	return newContext(t, makeOptions(opts))
}

func newContext(t Transport, o *options) (*Context, error) {
	cu := cleanup.Make(func() { t.Close() })
	defer cu.Clean()

	family, err := t.GetFamily(o.family)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving family %q: %w", ErrInit, o.family, err)
	}

	fd, err := socketFD(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	if o.readBuffer > 0 {
		rb, ok := t.(readBufferSetter)
		if !ok {
			return nil, fmt.Errorf("%w: transport %T cannot resize its receive buffer", ErrInit, t)
		}
		if err := rb.SetReadBuffer(o.readBuffer); err != nil {
			return nil, fmt.Errorf("%w: setting receive buffer to %d: %w", ErrInit, o.readBuffer, err)
		}
	}

	exit, err := exitpair.Create()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	cu.Add(func() { exit.Close() })

	c := &Context{
		t:      t,
		family: family,
		fd:     fd,
		exit:   exit,
	}
	cu.Release()

	if log.IsLogging(log.Debug) {
		log.Debugf("cld80211: bound family %q id %d version %d, %d groups, socket fd %d, exit fds %v",
			family.Name, family.ID, family.Version, len(family.Groups), fd, exit.FDs())
	}
	return c, nil
}

// Close releases the socket and the exit pair.
//
// Close fails with ErrBusy, releasing nothing, while a Recv or SendRecv is in
// progress: stop the receiver and wait for it to return first. A second Close
// returns ErrClosed.
func (c *Context) Close() error {
	if err := c.acquire(); err != nil {
		return err
	}
	// The receiver flag is never released, so every later receive fails.
	c.closed.Store(true)

	// Wait for in-flight Exit and Stop calls before their descriptor goes.
	c.gate.Close()

	var firstErr error
	if err := c.exit.Close(); err != nil {
		firstErr = err
	}
	if err := c.t.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing transport: %w", err)
	}
	log.Debugf("cld80211: context for family %q closed", c.family.Name)
	return firstErr
}

// acquire claims the single receiver slot.
func (c *Context) acquire() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.active.CompareAndSwap(false, true) {
		if c.closed.Load() {
			return ErrClosed
		}
		return ErrBusy
	}
	return nil
}

func (c *Context) release() {
	c.active.Store(false)
}

// Transport returns the underlying socket. Receiving on it directly bypasses
// the single receiver guard.
func (c *Context) Transport() Transport {
	return c.t
}

// FD returns the socket descriptor, for use in an external poll set. It is
// valid until Close.
func (c *Context) FD() int {
	return c.fd
}

// ExitPair returns the exit descriptors: the write end at index 0, the read
// end polled by Recv at index 1. They are valid until Close.
func (c *Context) ExitPair() [2]int {
	return c.exit.FDs()
}

// Family returns the family resolved when the Context was created.
func (c *Context) Family() genetlink.Family {
	return c.family
}

// Groups returns the multicast groups registered by the family.
func (c *Context) Groups() []genetlink.MulticastGroup {
	return append([]genetlink.MulticastGroup(nil), c.family.Groups...)
}

// Terminating reports whether Stop(true) was called.
func (c *Context) Terminating() bool {
	return c.terminating.Load()
}
