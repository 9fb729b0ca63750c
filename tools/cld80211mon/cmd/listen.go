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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cld80211/cld80211/pkg/cld80211"
	"github.com/cld80211/cld80211/pkg/log"
	"github.com/google/subcommands"
	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Listen implements subcommands.Command for the "listen" command.
type Listen struct {
	groups  string
	count   int
	timeout time.Duration
}

// Name implements subcommands.Command.Name.
func (*Listen) Name() string {
	return "listen"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Listen) Synopsis() string {
	return "join multicast groups and print driver events"
}

// Usage implements subcommands.Command.Usage.
func (*Listen) Usage() string {
	return `listen -groups <name>[,<name>...] [-count <n>] [-timeout <duration>]

Prints one line per event until interrupted, until -count events were seen,
or until no event arrives for -timeout.

OPTIONS:
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *Listen) SetFlags(f *flag.FlagSet) {
	f.StringVar(&l.groups, "groups", "", "comma separated multicast groups to join; all groups if empty")
	f.IntVar(&l.count, "count", 0, "exit after this many events, 0 for no limit")
	f.DurationVar(&l.timeout, "timeout", -1, "exit when no event arrives for this long, negative to wait forever")
}

// Execute implements subcommands.Command.Execute.
func (l *Listen) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	c, err := config(args).Dial(ctx)
	if err != nil {
		return fatalf("opening family: %v", err)
	}
	defer c.Close()

	if err := l.join(c); err != nil {
		return fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, unix.SIGINT, unix.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Interrupted, or the receiver is done.
		<-gctx.Done()
		return c.Stop(true)
	})
	g.Go(func() error {
		defer cancel()
		return l.receive(c, os.Stdout)
	})
	if err := g.Wait(); err != nil {
		return fatalf("listening: %v", err)
	}
	return subcommands.ExitSuccess
}

func (l *Listen) join(c *cld80211.Context) error {
	var names []string
	if l.groups == "" {
		for _, g := range c.Groups() {
			names = append(names, g.Name)
		}
	} else {
		names = strings.Split(l.groups, ",")
	}
	if len(names) == 0 {
		return fmt.Errorf("family %q has no multicast groups", c.Family().Name)
	}
	for _, name := range names {
		if err := c.AddMcastGroup(strings.TrimSpace(name)); err != nil {
			return err
		}
		log.Infof("Joined group %q", name)
	}
	return nil
}

// receive prints events until c is stopped, the count is reached or a wait
// times out.
func (l *Listen) receive(c *cld80211.Context, w io.Writer) error {
	// Overruns come in bursts; report them at most once a second.
	overruns := log.BasicRateLimitedLogger(time.Second)
	p := &printer{w: w, limit: l.count}
	for {
		res, err := c.Recv(l.timeout, true, p)
		switch {
		case errors.Is(err, unix.ENOBUFS):
			// The kernel dropped events; the socket remains usable.
			overruns.Warningf("Receive buffer overrun, events were lost (%d printed so far)", p.n)
			continue
		case err != nil:
			return err
		}
		log.Debugf("Receive ended: %v after %d events", res, p.n)
		return nil
	}
}

// printer is a cld80211.Handler writing one line per event.
type printer struct {
	w     io.Writer
	limit int
	n     int
}

// HandleMessage implements cld80211.Handler.HandleMessage.
func (p *printer) HandleMessage(gm genetlink.Message, nm netlink.Message) error {
	as, err := cld80211.ParseVendorData(gm)
	if err != nil {
		log.Warningf("Skipping malformed event: %v", err)
		return cld80211.ErrSkip
	}
	p.n++
	if _, err := fmt.Fprintf(p.w, "%s seq=%d cmd=%d %s\n",
		time.Now().Format(time.RFC3339Nano), nm.Header.Sequence, gm.Header.Command, formatAttrs(as)); err != nil {
		return err
	}
	if p.limit > 0 && p.n >= p.limit {
		return cld80211.ErrStop
	}
	return nil
}
