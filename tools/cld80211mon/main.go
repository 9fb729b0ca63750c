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

// Binary cld80211mon inspects a cld80211 driver from userspace: it lists the
// family's multicast groups, prints driver events and sends vendor commands.
// It is a debugging aid for driver and daemon developers.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cld80211/cld80211/pkg/cld80211"
	"github.com/cld80211/cld80211/pkg/log"
	"github.com/cld80211/cld80211/tools/cld80211mon/cmd"
	"github.com/google/subcommands"
)

var (
	debug     = flag.Bool("debug", false, "enable debug logging.")
	logFormat = flag.String("log-format", "text", "log format: text (default) or json.")
	logFile   = flag.String("log", "", "file path where logs are written, %PID% is replaced by the process id. Logs go to stderr if empty.")

	family      = flag.String("family", cld80211.FamilyName, "generic netlink family to bind to.")
	netns       = flag.String("netns", "", "path of the network namespace to open the socket in.")
	strict      = flag.Bool("strict", false, "request extended acknowledgements and strict attribute checks.")
	readBuffer  = flag.Int("read-buffer", 0, "socket receive buffer size in bytes, 0 for the kernel default.")
	dialTimeout = flag.Duration("dial-timeout", 0, "keep retrying while the family is not registered, for up to this long.")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(cmd.Groups), "")
	subcommands.Register(new(cmd.Listen), "")
	subcommands.Register(new(cmd.Send), "")

	flag.Parse()

	if err := setupLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}

	conf := &cmd.Config{
		Family:      *family,
		NetNS:       *netns,
		Strict:      *strict,
		ReadBuffer:  *readBuffer,
		DialTimeout: *dialTimeout,
	}
	log.Debugf("Args: %v", os.Args)
	os.Exit(int(subcommands.Execute(context.Background(), conf)))
}

func setupLogging() error {
	if *debug {
		log.SetLevel(log.Debug)
	}
	var out io.Writer = os.Stderr
	if *logFile != "" {
		f, err := log.OpenFile(*logFile)
		if err != nil {
			return err
		}
		out = f
	}
	e, err := newEmitter(*logFormat, out)
	if err != nil {
		return err
	}
	log.SetTarget(e)
	return nil
}

func newEmitter(format string, w io.Writer) (log.Emitter, error) {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: w}}, nil
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: w}}, nil
	}
	return nil, fmt.Errorf("invalid log format %q, must be 'text' or 'json'", format)
}
