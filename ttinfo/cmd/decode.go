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

// Decode implements subcommands.Command for the "decode" command.
type Decode struct {
	level int
}

// Name implements subcommands.Command.Name.
func (*Decode) Name() string {
	return "decode"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Decode) Synopsis() string {
	return "decode raw translation table descriptors"
}

// Usage implements subcommands.Command.Usage.
func (*Decode) Usage() string {
	return `decode [-level n] <descriptor>... - print the kind, address and attributes of each descriptor.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Decode) SetFlags(f *flag.FlagSet) {
	f.IntVar(&d.level, "level", 0, "translation level the descriptors were read at. Defaults to the global -level.")
}

// Execute implements subcommands.Command.Execute.
func (d *Decode) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	level := conf.Level
	f.Visit(func(fl *flag.Flag) {
		if fl.Name == "level" {
			level = d.level
		}
	})
	if level < 0 || level > tt.MaxLevel {
		util.Errorf("level %d not in [0, %d]", level, tt.MaxLevel)
		return subcommands.ExitUsageError
	}

	var raws []uint64
	for _, arg := range f.Args() {
		v, err := config.ParseAddress(arg)
		if err != nil {
			util.Errorf("%v", err)
			return subcommands.ExitUsageError
		}
		raws = append(raws, uint64(v))
	}
	if !decode(util.Output, raws, level) {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// decode writes one line per descriptor and reports whether all of them
// decoded.
func decode(w io.Writer, raws []uint64, level int) bool {
	ok := true
	for _, raw := range raws {
		d, err := tt.Decode(raw, level)
		if err != nil {
			fmt.Fprintf(w, "%s  level %d  bad: %v\n", tt.FormatHex(raw, 64), level, err)
			ok = false
			continue
		}
		fmt.Fprintf(w, "%s  level %d  %s\n", tt.FormatHex(raw, 64), level, tt.Describe(d, true))
	}
	return ok
}
