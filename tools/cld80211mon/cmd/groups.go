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
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
)

// Groups implements subcommands.Command for the "groups" command.
type Groups struct{}

// Name implements subcommands.Command.Name.
func (*Groups) Name() string {
	return "groups"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Groups) Synopsis() string {
	return "print the family id and its multicast groups"
}

// Usage implements subcommands.Command.Usage.
func (*Groups) Usage() string {
	return "groups\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Groups) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Groups) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	c, err := config(args).Dial(ctx)
	if err != nil {
		return fatalf("opening family: %v", err)
	}
	defer c.Close()

	fam := c.Family()
	fmt.Printf("family %q id %d version %d\n", fam.Name, fam.ID, fam.Version)
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "GROUP\tID\n")
	for _, g := range c.Groups() {
		fmt.Fprintf(w, "%s\t%d\n", g.Name, g.ID)
	}
	if err := w.Flush(); err != nil {
		return fatalf("writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
