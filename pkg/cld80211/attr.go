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
	"sort"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
)

// Attr is a cld80211 attribute id. The values cross the kernel boundary and
// must never be renumbered.
type Attr uint16

// Attribute ids. Everything but AttrVendorData is only meaningful nested
// inside AttrVendorData.
const (
	// AttrVendorData is the container for all other attributes.
	AttrVendorData Attr = 1

	// AttrData carries driver or application data.
	AttrData Attr = 2

	// AttrMetaData describes AttrData so the driver can peek at a request
	// without decoding all of it.
	AttrMetaData Attr = 3

	// AttrCmd carries the vendor sub-command.
	AttrCmd Attr = 4

	// AttrCmdTagData is a nested attribute holding the sub-attributes of
	// the vendor sub-command.
	AttrCmdTagData Attr = 5

	attrMax = AttrCmdTagData
)

func (a Attr) String() string {
	switch a {
	case AttrVendorData:
		return "VENDOR_DATA"
	case AttrData:
		return "DATA"
	case AttrMetaData:
		return "META_DATA"
	case AttrCmd:
		return "CMD"
	case AttrCmdTagData:
		return "CMD_TAG_DATA"
	default:
		return fmt.Sprintf("Attr(%d)", uint16(a))
	}
}

// Attrs holds the raw payload of each attribute nested under
// AttrVendorData. Payloads are opaque to this package.
type Attrs map[Attr][]byte

// SetBytes stores b under a.
func (as Attrs) SetBytes(a Attr, b []byte) {
	as[a] = b
}

// SetUint32 stores v in native byte order under a.
func (as Attrs) SetUint32(a Attr, v uint32) {
	as[a] = nlenc.Uint32Bytes(v)
}

// SetNested stores the attributes built by fn under a.
func (as Attrs) SetNested(a Attr, fn func(ae *netlink.AttributeEncoder) error) error {
	ae := netlink.NewAttributeEncoder()
	if err := fn(ae); err != nil {
		return err
	}
	b, err := ae.Encode()
	if err != nil {
		return err
	}
	as[a] = b
	return nil
}

// Uint32 returns the native byte order value stored under a.
func (as Attrs) Uint32(a Attr) (uint32, bool) {
	b, ok := as[a]
	if !ok || len(b) != 4 {
		return 0, false
	}
	return nlenc.Uint32(b), true
}

// Nested returns a decoder over the nested attributes stored under a.
func (as Attrs) Nested(a Attr) (*netlink.AttributeDecoder, error) {
	b, ok := as[a]
	if !ok {
		return nil, fmt.Errorf("%w: %v not present", ErrInvalidAttr, a)
	}
	return netlink.NewAttributeDecoder(b)
}

func (as Attrs) validate() error {
	for a := range as {
		if a <= AttrVendorData || a > attrMax {
			return fmt.Errorf("%w: %v cannot be nested in %v", ErrInvalidAttr, a, AttrVendorData)
		}
	}
	return nil
}

// encode returns the generic netlink payload: a single AttrVendorData with
// every attribute nested in ascending id order. The nest is present even
// when the set is empty, as drivers look for it.
func (as Attrs) encode() ([]byte, error) {
	if err := as.validate(); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(as))
	for a := range as {
		ids = append(ids, int(a))
	}
	sort.Ints(ids)

	ae := netlink.NewAttributeEncoder()
	ae.Nested(uint16(AttrVendorData), func(nae *netlink.AttributeEncoder) error {
		for _, id := range ids {
			nae.Bytes(uint16(id), as[Attr(id)])
		}
		return nil
	})
	return ae.Encode()
}

// ParseVendorData returns the attributes nested under AttrVendorData in m.
// A message without vendor data yields an empty set.
func ParseVendorData(m genetlink.Message) (Attrs, error) {
	ad, err := netlink.NewAttributeDecoder(m.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding attributes: %w", err)
	}

	as := make(Attrs)
	for ad.Next() {
		if Attr(ad.Type()) != AttrVendorData {
			continue
		}
		ad.Nested(func(nad *netlink.AttributeDecoder) error {
			for nad.Next() {
				as[Attr(nad.Type())] = nad.Bytes()
			}
			return nil
		})
	}
	if err := ad.Err(); err != nil {
		return nil, fmt.Errorf("decoding vendor data: %w", err)
	}
	return as, nil
}
