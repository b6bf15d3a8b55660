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
	"strconv"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"ttinfo.dev/ttinfo/pkg/log"
	"ttinfo.dev/ttinfo/pkg/memory"
	"ttinfo.dev/ttinfo/pkg/tt"
	"ttinfo.dev/ttinfo/ttinfo/cmd/util"
	"ttinfo.dev/ttinfo/ttinfo/config"
)

// Dump implements subcommands.Command for the "dump" command.
type Dump struct {
	images  config.Images
	upper   bool
	invalid tt.InvalidMode
	verbose bool
	legend  bool
}

// Name implements subcommands.Command.Name.
func (*Dump) Name() string {
	return "dump"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Dump) Synopsis() string {
	return "print a translation table tree"
}

// Usage implements subcommands.Command.Usage.
func (*Dump) Usage() string {
	return `dump [flags] [address [level]] - print the translation tables rooted at address.

With no address, the tables configured with -ttbr0 and -ttbr1 are printed.
With one argument the table is read at level 0.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Dump) SetFlags(f *flag.FlagSet) {
	f.Var(&d.images, "image", "memory image as path@base, may be repeated. Added to images from the configuration file.")
	f.BoolVar(&d.upper, "upper", false, "the table translates the upper VA range (TTBR1), so VA bits above the walk are all ones.")
	f.Var(&d.invalid, "invalid", "how invalid entries are shown: coalesce (default), each, or hide.")
	f.BoolVar(&d.verbose, "v", false, "show descriptor attributes and table controls.")
	f.BoolVar(&d.legend, "legend", false, "print a key to the tags used in the output.")
}

// Execute implements subcommands.Command.Execute.
func (d *Dump) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() > 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	roots, err := d.roots(conf, f.Args())
	if err != nil {
		util.Errorf("%v", err)
		f.Usage()
		return subcommands.ExitUsageError
	}
	if len(roots) == 0 {
		util.Errorf("no translation table: pass an address, or set -ttbr0 or -ttbr1")
		f.Usage()
		return subcommands.ExitUsageError
	}

	// Flags given to dump win over the configuration.
	wopts := tt.WalkOptions{Invalid: conf.Invalid}
	ropts := tt.RenderOptions{Verbose: conf.Verbose || d.verbose}
	f.Visit(func(fl *flag.Flag) {
		if fl.Name == "invalid" {
			wopts.Invalid = d.invalid
		}
	})

	images := append(append(config.Images(nil), conf.Images...), d.images...)
	t, err := openTarget(images)
	if err != nil {
		util.Fatalf("opening memory images: %v", err)
	}
	defer t.Close()

	if d.legend {
		for _, line := range tt.Legend() {
			fmt.Fprintln(util.Output, line)
		}
		fmt.Fprintln(util.Output)
	}
	if err := dumpRoots(ctx, util.Output, t.mem, roots, wopts, ropts); err != nil {
		if isUsage(err) {
			util.Errorf("%v", err)
			return subcommands.ExitUsageError
		}
		return util.Errorf("dump failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// root is one table to dump.
type root struct {
	// name is empty for a table given on the command line.
	name    string
	base    uint64
	level   int
	startVA uint64
}

// roots returns the tables named by args, or the configured ones when args
// is empty.
func (d *Dump) roots(conf *config.Config, args []string) ([]root, error) {
	if len(args) == 0 {
		var roots []root
		for _, r := range conf.Roots() {
			roots = append(roots, root{
				name:    r.Name,
				base:    r.Address,
				level:   conf.Level,
				startVA: startVA(r.Upper || d.upper),
			})
		}
		return roots, nil
	}

	base, err := config.ParseAddress(args[0])
	if err != nil {
		return nil, err
	}
	level := 0
	if len(args) > 1 {
		level, err = strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: level %q: %v", tt.ErrInvalidArgument, args[1], err)
		}
		if level < 0 || level > tt.MaxLevel {
			return nil, fmt.Errorf("%w: level %d not in [0, %d]", tt.ErrInvalidArgument, level, tt.MaxLevel)
		}
	}
	return []root{{base: uint64(base), level: level, startVA: startVA(d.upper)}}, nil
}

func startVA(upper bool) uint64 {
	if upper {
		return ^uint64(0)
	}
	return 0
}

// dumpRoots walks every root concurrently and writes the rendered trees to w
// in order.
func dumpRoots(ctx context.Context, w io.Writer, r memory.Reader, roots []root, wopts tt.WalkOptions, ropts tt.RenderOptions) error {
	results := make([][]string, len(roots))
	g, ctx := errgroup.WithContext(ctx)
	for i, rt := range roots {
		i, rt := i, rt
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			walker := tt.NewWalker(r, wopts)
			n, err := walker.Walk(rt.base, rt.level, rt.startVA)
			if err != nil {
				return fmt.Errorf("table at %#x: %w", rt.base, err)
			}
			log.Debugf("Walked table at %#x level %d: %v", rt.base, rt.level, walker.Stats())
			results[i] = tt.Render(n, ropts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, lines := range results {
		if roots[i].name != "" {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s:\n", roots[i].name)
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

// isUsage reports whether err is caused by bad command input.
func isUsage(err error) bool {
	return errors.Is(err, tt.ErrInvalidArgument)
}
