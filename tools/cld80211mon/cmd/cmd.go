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

// Package cmd holds the cld80211mon subcommands.
package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/cld80211/cld80211/pkg/cld80211"
	"github.com/cld80211/cld80211/pkg/log"
	"github.com/google/subcommands"
)

// Config is passed to every subcommand as its first argument.
type Config struct {
	Family      string
	NetNS       string
	Strict      bool
	ReadBuffer  int
	DialTimeout time.Duration
}

func (c *Config) options() []cld80211.Option {
	opts := []cld80211.Option{cld80211.WithFamily(c.Family)}
	if c.NetNS != "" {
		opts = append(opts, cld80211.WithNetNS(c.NetNS))
	}
	if c.Strict {
		opts = append(opts, cld80211.WithStrict())
	}
	if c.ReadBuffer > 0 {
		opts = append(opts, cld80211.WithReadBuffer(c.ReadBuffer))
	}
	return opts
}

// Dial opens a Context. While the family is not registered, which is the
// case until the driver module is loaded, it retries for up to DialTimeout.
func (c *Config) Dial(ctx context.Context) (*cld80211.Context, error) {
	var cc *cld80211.Context
	op := func() error {
		var err error
		cc, err = cld80211.Dial(c.options()...)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return backoff.Permanent(err)
		}
		log.Debugf("Family %q not registered yet: %v", c.Family, err)
		return err
	}
	if c.DialTimeout <= 0 {
		if err := op(); err != nil {
			var perr *backoff.PermanentError
			if errors.As(err, &perr) {
				err = perr.Err
			}
			return nil, err
		}
		return cc, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = c.DialTimeout
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return cc, nil
}

func config(args []any) *Config {
	return args[0].(*Config)
}

// fatalf prints an error for the user and returns the failure status.
func fatalf(format string, v ...any) subcommands.ExitStatus {
	log.Warningf(format, v...)
	fmt.Fprintf(os.Stderr, format+"\n", v...)
	return subcommands.ExitFailure
}

// formatAttrs renders vendor data attributes in id order.
func formatAttrs(as cld80211.Attrs) string {
	ids := make([]int, 0, len(as))
	for a := range as {
		ids = append(ids, int(a))
	}
	sort.Ints(ids)

	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(' ')
		}
		a := cld80211.Attr(id)
		fmt.Fprintf(&sb, "%v=%s", a, hex.EncodeToString(as[a]))
	}
	return sb.String()
}
