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
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

const (
	testFamilyID = 0x1d
	testHostID   = 7
	testDiagID   = 8
)

var testFamily = genetlink.Family{
	ID:      testFamilyID,
	Version: 1,
	Name:    FamilyName,
	Groups: []genetlink.MulticastGroup{
		{ID: testHostID, Name: "host_event"},
		{ID: testDiagID, Name: "diag_event"},
	},
}

// fakeTransport is a Transport whose socket is one end of a SOCK_SEQPACKET
// pair. The test plays the driver on the other end, so poll readiness on the
// Context's descriptor is real.
type fakeTransport struct {
	local *os.File
	peer  int

	family    genetlink.Family
	familyErr error

	mu      sync.Mutex
	seq     uint32
	sent    []netlink.Message
	sendErr error
	joinErr error
	joined  map[uint32]bool
	closed  bool

	// reply, if set, returns the datagrams the driver answers a request
	// with.
	reply func(req netlink.Message) [][]byte
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport(t *testing.T) *fakeTransport {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("Socketpair() failed: %v", err)
	}
	ft := &fakeTransport{
		local:  os.NewFile(uintptr(fds[0]), "fake-netlink"),
		peer:   fds[1],
		family: testFamily,
		joined: make(map[uint32]bool),
	}
	t.Cleanup(func() { ft.Close() })
	return ft
}

// newTestContext returns a Context over a fake transport.
func newTestContext(t *testing.T) (*Context, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport(t)
	c, err := New(ft)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, ft
}

// emit writes one datagram from the driver side.
func (ft *fakeTransport) emit(t *testing.T, b []byte) {
	t.Helper()
	if _, err := unix.Write(ft.peer, b); err != nil {
		t.Fatalf("emit failed: %v", err)
	}
}

// hangup closes the driver side.
func (ft *fakeTransport) hangup() {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.peer >= 0 {
		unix.Close(ft.peer)
		ft.peer = -1
	}
}

func (ft *fakeTransport) Send(m netlink.Message) (netlink.Message, error) {
	ft.mu.Lock()
	if ft.sendErr != nil {
		err := ft.sendErr
		ft.mu.Unlock()
		return netlink.Message{}, err
	}
	ft.seq++
	if m.Header.Sequence == 0 {
		m.Header.Sequence = ft.seq
	}
	ft.sent = append(ft.sent, m)
	reply, peer := ft.reply, ft.peer
	ft.mu.Unlock()

	if reply != nil {
		for _, b := range reply(m) {
			if _, err := unix.Write(peer, b); err != nil {
				return netlink.Message{}, err
			}
		}
	}
	return m, nil
}

// readMessages reads one datagram. It fails on a hangup, like a netlink
// socket whose peer went away.
func (ft *fakeTransport) readMessages() ([]netlink.Message, error) {
	rc, err := ft.local.SyscallConn()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 1<<16)
	var (
		n    int
		rerr error
	)
	if err := rc.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), buf)
		return rerr != unix.EAGAIN
	}); err != nil {
		return nil, err
	}
	if rerr != nil {
		return nil, rerr
	}
	if n == 0 {
		return nil, unix.ECONNRESET
	}

	return parseMessages(buf[:n])
}

// Receive drains a multi-part reply up to its NLMSG_DONE, as conn does.
// Error replies are returned as messages.
func (ft *fakeTransport) Receive() ([]netlink.Message, error) {
	msgs, err := ft.readMessages()
	if err != nil {
		return nil, err
	}
	for len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		if last.Header.Flags&netlink.Multi == 0 || last.Header.Type == netlink.Done {
			break
		}
		more, err := ft.readMessages()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, more...)
	}
	return msgs, nil
}

func (ft *fakeTransport) JoinGroup(group uint32) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.joinErr != nil {
		return ft.joinErr
	}
	ft.joined[group] = true
	return nil
}

func (ft *fakeTransport) LeaveGroup(group uint32) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	delete(ft.joined, group)
	return nil
}

func (ft *fakeTransport) GetFamily(name string) (genetlink.Family, error) {
	if ft.familyErr != nil {
		return genetlink.Family{}, ft.familyErr
	}
	if name != ft.family.Name {
		return genetlink.Family{}, &netlink.OpError{Op: "receive", Err: unix.ENOENT}
	}
	return ft.family, nil
}

func (ft *fakeTransport) SyscallConn() (syscall.RawConn, error) {
	return ft.local.SyscallConn()
}

func (ft *fakeTransport) Close() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.closed {
		return nil
	}
	ft.closed = true
	if ft.peer >= 0 {
		unix.Close(ft.peer)
		ft.peer = -1
	}
	return ft.local.Close()
}

func (ft *fakeTransport) isClosed() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.closed
}

func (ft *fakeTransport) sentMessages() []netlink.Message {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]netlink.Message(nil), ft.sent...)
}

func (ft *fakeTransport) joinedGroups() map[uint32]bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	m := make(map[uint32]bool, len(ft.joined))
	for k, v := range ft.joined {
		m[k] = v
	}
	return m
}

// nlmsg encodes one netlink message.
func nlmsg(typ netlink.HeaderType, flags netlink.HeaderFlags, seq uint32, data []byte) []byte {
	l := unix.NLMSG_HDRLEN + len(data)
	b := make([]byte, (l+unix.NLMSG_ALIGNTO-1) & ^(unix.NLMSG_ALIGNTO-1))
	binary.NativeEndian.PutUint32(b[0:4], uint32(l))
	binary.NativeEndian.PutUint16(b[4:6], uint16(typ))
	binary.NativeEndian.PutUint16(b[6:8], uint16(flags))
	binary.NativeEndian.PutUint32(b[8:12], seq)
	copy(b[unix.NLMSG_HDRLEN:], data)
	return b
}

// familyMsg encodes a family message for cmd whose vendor data holds as.
func familyMsg(t *testing.T, flags netlink.HeaderFlags, seq uint32, cmd uint8, as Attrs) []byte {
	t.Helper()
	data, err := as.encode()
	if err != nil {
		t.Fatalf("encode() failed: %v", err)
	}
	gm := genetlink.Message{
		Header: genetlink.Header{Command: cmd, Version: testFamily.Version},
		Data:   data,
	}
	b, err := gm.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() failed: %v", err)
	}
	return nlmsg(testFamilyID, flags, seq, b)
}

// dataMsg is a family message carrying payload as AttrData.
func dataMsg(t *testing.T, seq uint32, payload string) []byte {
	return familyMsg(t, 0, seq, 1, Attrs{AttrData: []byte(payload)})
}

// ackMsg is an NLMSG_ERROR for seq with the given errno, zero for an ACK.
func ackMsg(seq uint32, errno unix.Errno) []byte {
	data := make([]byte, 4+unix.NLMSG_HDRLEN)
	binary.NativeEndian.PutUint32(data[0:4], uint32(-int32(errno)))
	return nlmsg(netlink.Error, 0, seq, data)
}

// concat joins datagram payloads into one datagram.
func concat(bs ...[]byte) []byte {
	var out []byte
	for _, b := range bs {
		out = append(out, b...)
	}
	return out
}

// recorder is a Handler collecting the AttrData payload of each message.
type recorder struct {
	mu  sync.Mutex
	got []string
	err error
}

func (r *recorder) HandleMessage(gm genetlink.Message, _ netlink.Message) error {
	as, err := ParseVendorData(gm)
	if err != nil {
		return fmt.Errorf("ParseVendorData() failed: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, string(as[AttrData]))
	return r.err
}

func (r *recorder) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

var errHandler = errors.New("handler failure")
