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

package cmd

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cld80211/cld80211/pkg/cld80211"
	"github.com/google/subcommands"
	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
)

// Send implements subcommands.Command for the "send" command.
type Send struct {
	cmd    uint
	vendor int64
	data   string
	meta   string
	pid    uint
	wait   bool
}

// Name implements subcommands.Command.Name.
func (*Send) Name() string {
	return "send"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Send) Synopsis() string {
	return "send one vendor command to the driver"
}

// Usage implements subcommands.Command.Usage.
func (*Send) Usage() string {
	return `send -cmd <n> [-vendor-cmd <n>] [-data <hex>] [-meta <hex>] [-pid <n>] [-wait]

With -wait, the replies are printed and the command fails if the driver
rejects the request.

OPTIONS:
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Send) SetFlags(f *flag.FlagSet) {
	f.UintVar(&s.cmd, "cmd", 0, "generic netlink command")
	f.Int64Var(&s.vendor, "vendor-cmd", -1, "vendor sub-command carried in the CMD attribute, omitted if negative")
	f.StringVar(&s.data, "data", "", "hex payload of the DATA attribute")
	f.StringVar(&s.meta, "meta", "", "hex payload of the META_DATA attribute")
	f.UintVar(&s.pid, "pid", 0, "destination port id, 0 for the kernel")
	f.BoolVar(&s.wait, "wait", false, "wait for the acknowledgement and print replies")
}

func (s *Send) attrs() (cld80211.Attrs, error) {
	as := make(cld80211.Attrs)
	if s.vendor >= 0 {
		as.SetUint32(cld80211.AttrCmd, uint32(s.vendor))
	}
	for _, a := range []struct {
		attr cld80211.Attr
		hex  string
	}{
		{cld80211.AttrData, s.data},
		{cld80211.AttrMetaData, s.meta},
	} {
		if a.hex == "" {
			continue
		}
		b, err := hex.DecodeString(a.hex)
		if err != nil {
			return nil, fmt.Errorf("invalid %v payload: %w", a.attr, err)
		}
		as.SetBytes(a.attr, b)
	}
	return as, nil
}

// Execute implements subcommands.Command.Execute.
func (s *Send) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 || s.cmd > 0xff {
		f.Usage()
		return subcommands.ExitUsageError
	}
	as, err := s.attrs()
	if err != nil {
		return fatalf("%v", err)
	}

	c, err := config(args).Dial(ctx)
	if err != nil {
		return fatalf("opening family: %v", err)
	}
	defer c.Close()

	if err := s.send(c, as, os.Stdout); err != nil {
		return fatalf("command %d: %v", s.cmd, err)
	}
	return subcommands.ExitSuccess
}

func (s *Send) send(c *cld80211.Context, as cld80211.Attrs, w io.Writer) error {
	m, err := c.Alloc(uint8(s.cmd), as, uint32(s.pid))
	if err != nil {
		return err
	}
	if !s.wait {
		return c.Send(m)
	}
	return c.SendRecv(m, cld80211.HandlerFunc(func(gm genetlink.Message, nm netlink.Message) error {
		reply, err := cld80211.ParseVendorData(gm)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "reply seq=%d cmd=%d %s\n", nm.Header.Sequence, gm.Header.Command, formatAttrs(reply))
		return err
	}))
}
