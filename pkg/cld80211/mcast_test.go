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
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
)

func TestMcastGroups(t *testing.T) {
	c, ft := newTestContext(t)

	if err := c.AddMcastGroup("nosuchgroup"); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("AddMcastGroup() = %v, want %v", err, ErrUnknownGroup)
	}
	if err := c.RemoveMcastGroup("nosuchgroup"); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("RemoveMcastGroup() = %v, want %v", err, ErrUnknownGroup)
	}
	if got := ft.joinedGroups(); len(got) != 0 {
		t.Errorf("unknown group left memberships %v", got)
	}

	for _, name := range []string{"host_event", "diag_event"} {
		if err := c.AddMcastGroup(name); err != nil {
			t.Fatalf("AddMcastGroup(%q) failed: %v", name, err)
		}
	}
	if diff := cmp.Diff(map[uint32]bool{testHostID: true, testDiagID: true}, ft.joinedGroups()); diff != "" {
		t.Errorf("joined groups mismatch (-want +got):\n%s", diff)
	}

	if err := c.RemoveMcastGroup("diag_event"); err != nil {
		t.Fatalf("RemoveMcastGroup() failed: %v", err)
	}
	if diff := cmp.Diff(map[uint32]bool{testHostID: true}, ft.joinedGroups()); diff != "" {
		t.Errorf("joined groups mismatch (-want +got):\n%s", diff)
	}
}

func TestMcastGroupsTransportError(t *testing.T) {
	c, ft := newTestContext(t)
	ft.joinErr = unix.EPERM

	if err := c.AddMcastGroup("host_event"); !errors.Is(err, unix.EPERM) {
		t.Errorf("AddMcastGroup() = %v, want %v", err, unix.EPERM)
	}
	ft.joinErr = nil
	if err := c.AddMcastGroup("host_event"); err != nil {
		t.Errorf("AddMcastGroup() after failure = %v", err)
	}
}
