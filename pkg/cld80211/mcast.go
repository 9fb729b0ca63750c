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

	"github.com/cld80211/cld80211/pkg/log"
)

// groupID resolves a multicast group name against the family.
func (c *Context) groupID(name string) (uint32, error) {
	for _, g := range c.family.Groups {
		if g.Name == name {
			return g.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q in family %q", ErrUnknownGroup, name, c.family.Name)
}

// AddMcastGroup joins the family's multicast group name, so its events are
// delivered to Recv.
//
// Joining a group twice is left to the kernel, which treats it as a no-op.
func (c *Context) AddMcastGroup(name string) error {
	id, err := c.groupID(name)
	if err != nil {
		return err
	}
	if !c.gate.Enter() {
		return ErrClosed
	}
	defer c.gate.Leave()

	if err := c.t.JoinGroup(id); err != nil {
		return fmt.Errorf("joining group %q (%d): %w", name, id, err)
	}
	log.Debugf("cld80211: joined group %q (%d)", name, id)
	return nil
}

// RemoveMcastGroup leaves the family's multicast group name.
//
// Leaving a group that was never joined is left to the kernel, which treats
// it as a no-op.
func (c *Context) RemoveMcastGroup(name string) error {
	id, err := c.groupID(name)
	if err != nil {
		return err
	}
	if !c.gate.Enter() {
		return ErrClosed
	}
	defer c.gate.Leave()

	if err := c.t.LeaveGroup(id); err != nil {
		return fmt.Errorf("leaving group %q (%d): %w", name, id, err)
	}
	log.Debugf("cld80211: left group %q (%d)", name, id)
	return nil
}
