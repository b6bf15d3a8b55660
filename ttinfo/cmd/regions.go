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
	"io"

	"github.com/google/subcommands"
	"ttinfo.dev/ttinfo/pkg/tt"
	"ttinfo.dev/ttinfo/ttinfo/cmd/util"
	"ttinfo.dev/ttinfo/ttinfo/config"
)

// Regions implements subcommands.Command for the "regions" command.
type Regions struct {
	images config.Images
}

// Name implements subcommands.Command.Name.
func (*Regions) Name() string {
	return "regions"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Regions) Synopsis() string {
	return "list the memory images backing physical memory"
}

// Usage implements subcommands.Command.Usage.
func (*Regions) Usage() string {
	return `regions [flags] - list the configured memory images in address order.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Regions) SetFlags(f *flag.FlagSet) {
	f.Var(&r.images, "image", "memory image as path@base, may be repeated.")
}

// Execute implements subcommands.Command.Execute.
func (r *Regions) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	images := append(append(config.Images(nil), conf.Images...), r.images...)
	if len(images) == 0 {
		util.Infof("no memory images configured, use -image path@base")
		return subcommands.ExitSuccess
	}
	t, err := openTarget(images)
	if err != nil {
		util.Fatalf("opening memory images: %v", err)
	}
	defer t.Close()

	listRegions(util.Output, t)
	return subcommands.ExitSuccess
}

func listRegions(w io.Writer, t *target) {
	paths := make(map[uint64]string)
	for _, f := range t.files {
		paths[f.Base] = f.Path
	}
	for _, r := range t.mem.Regions() {
		fmt.Fprintf(w, "%s-%s  %10d  %s\n", tt.FormatHex(r.Base, 64), tt.FormatHex(r.End()-1, 64), r.Size(), paths[r.Base])
	}
}
