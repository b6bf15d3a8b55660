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
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"
	"ttinfo.dev/ttinfo/pkg/memory"
	"ttinfo.dev/ttinfo/pkg/tt"
	"ttinfo.dev/ttinfo/ttinfo/cmd/util"
	"ttinfo.dev/ttinfo/ttinfo/config"
)

const imageBase = 0x4000_0000

// writeImage writes a two table image: a level 0 table at imageBase whose
// entry 0 points at a level 1 table at imageBase+0x1000, which maps a 1GiB
// block at entry 1.
func writeImage(t *testing.T) config.Image {
	t.Helper()
	b := make([]byte, 2*tt.TableSize)
	binary.LittleEndian.PutUint64(b[0:], imageBase+0x1000|0b11)
	binary.LittleEndian.PutUint64(b[tt.TableSize+8:], 0x8000_0401)
	path := filepath.Join(t.TempDir(), "ram.bin")
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return config.Image{Path: path, Base: imageBase}
}

func execute(t *testing.T, c subcommands.Command, conf *config.Config, args ...string) (subcommands.ExitStatus, string) {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	f.SetOutput(&bytes.Buffer{})
	c.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("parsing %v: %v", args, err)
	}

	var out bytes.Buffer
	saved := util.Output
	util.Output = &out
	defer func() { util.Output = saved }()

	status := c.Execute(context.Background(), f, conf)
	return status, out.String()
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func TestDump(t *testing.T) {
	img := writeImage(t)
	conf := &config.Config{DebugLogFormat: "text"}

	status, out := execute(t, new(Dump), conf, "-image", img.String(), "0x4000_0000")
	if status != subcommands.ExitSuccess {
		t.Fatalf("dump returned %v", status)
	}
	want := lines(
		"0x0000_0000_0000_0000  table 0x0000_0000_4000_0000 level 0",
		"0x0000_0000_0000_0000  ├─[000]     table 0x0000_0000_4000_1000 level 1",
		"0x0000_0000_0000_0000  │           ├─[000]     invalid",
		"0x0000_0000_4000_0000  │           ├─[001]     block 0x0000_0000_8000_0000 AF=1",
		"0x0000_0000_8000_0000  │           └─[002-511] invalid ×510",
		"0x0000_0080_0000_0000  └─[001-511] invalid ×511",
	)
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("dump output mismatch (-want +got):\n%s", diff)
	}
}

func TestDumpConfiguredRoots(t *testing.T) {
	conf := &config.Config{
		DebugLogFormat: "text",
		TTBR0:          config.Root{Address: imageBase, Valid: true},
		TTBR1:          config.Root{Address: imageBase + 0x1000, Valid: true},
		Invalid:        tt.InvalidEach,
		Images:         config.Images{writeImage(t)},
	}

	// -invalid on the command line wins over the configuration.
	status, out := execute(t, new(Dump), conf, "-invalid", "hide")
	if status != subcommands.ExitSuccess {
		t.Fatalf("dump returned %v", status)
	}
	want := lines(
		"ttbr0:",
		"0x0000_0000_0000_0000  table 0x0000_0000_4000_0000 level 0",
		"0x0000_0000_0000_0000  └─[000] table 0x0000_0000_4000_1000 level 1",
		"0x0000_0000_4000_0000          └─[001] block 0x0000_0000_8000_0000 AF=1",
		"",
		"ttbr1:",
		"0xffff_0000_0000_0000  table 0x0000_0000_4000_1000 level 0",
		"0xffff_0080_0000_0000  └─[001] bad 0x0000_0000_8000_0401 level 0: block descriptor at unsupported level",
	)
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("dump output mismatch (-want +got):\n%s", diff)
	}
}

func TestDumpUnreadable(t *testing.T) {
	conf := &config.Config{Images: config.Images{writeImage(t)}}
	status, out := execute(t, new(Dump), conf, "0x1000", "2")
	if status != subcommands.ExitSuccess {
		t.Fatalf("dump returned %v", status)
	}
	if !strings.HasPrefix(out, "0x0000_0000_0000_0000  unreadable 0x0000_0000_0000_1000 level 2: ") {
		t.Errorf("dump output = %q, want an unreadable root", out)
	}
}

func TestDumpLegend(t *testing.T) {
	conf := &config.Config{Images: config.Images{writeImage(t)}}
	status, out := execute(t, new(Dump), conf, "-legend", "0x4000_1000", "1")
	if status != subcommands.ExitSuccess {
		t.Fatalf("dump returned %v", status)
	}
	if want := strings.Join(tt.Legend(), "\n") + "\n\n"; !strings.HasPrefix(out, want) {
		t.Errorf("dump output does not start with the legend:\n%s", out)
	}
}

func TestDumpUsage(t *testing.T) {
	conf := &config.Config{}
	for _, args := range [][]string{
		{"0x1000", "0", "extra"},
		{"0x1000", "4"},
		{"0x1000", "one"},
		{"nowhere"},
		{},
	} {
		if status, _ := execute(t, new(Dump), conf, args...); status != subcommands.ExitUsageError {
			t.Errorf("dump %v returned %v, want %v", args, status, subcommands.ExitUsageError)
		}
	}
}

func TestDumpRoots(t *testing.T) {
	d := &Dump{upper: true}
	got, err := d.roots(&config.Config{}, []string{"0b1_0000_0000_0000", "3"})
	if err != nil {
		t.Fatalf("roots failed: %v", err)
	}
	want := []root{{base: 0x1000, level: 3, startVA: ^uint64(0)}}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(root{})); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}
	if _, err := d.roots(&config.Config{}, []string{"0x1000", "-1"}); !errors.Is(err, tt.ErrInvalidArgument) {
		t.Errorf("roots(level -1) = %v, want %v", err, tt.ErrInvalidArgument)
	}
}

func TestDumpRootsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := dumpRoots(ctx, &out, memory.NewMap(), []root{{base: 0x1000}}, tt.WalkOptions{}, tt.RenderOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("dumpRoots = %v, want %v", err, context.Canceled)
	}
	if out.Len() != 0 {
		t.Errorf("dumpRoots wrote %q after cancellation", out.String())
	}
}

func TestDecode(t *testing.T) {
	var out bytes.Buffer
	if !decode(&out, []uint64{0x4000_0401, 0, 0x4123_4003}, 1) {
		t.Errorf("decode failed, want success")
	}
	want := lines(
		"0x0000_0000_4000_0401  level 1  block 0x0000_0000_4000_0000 AF=1 attr=0 ap=rw-el1 sh=non",
		"0x0000_0000_0000_0000  level 1  invalid",
		"0x0000_0000_4123_4003  level 1  table 0x0000_0000_4123_4000 level 2 aptable=0",
	)
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("decode output mismatch (-want +got):\n%s", diff)
	}

	out.Reset()
	if decode(&out, []uint64{0x4000_0401}, 3) {
		t.Errorf("decode of a level 3 block succeeded")
	}
	want = lines("0x0000_0000_4000_0401  level 3  bad: block descriptor at unsupported level")
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("decode output mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeCommand(t *testing.T) {
	conf := &config.Config{Level: 1}
	for _, tc := range []struct {
		args   []string
		status subcommands.ExitStatus
		out    string
	}{
		{
			args:   []string{"0x4000_0401"},
			status: subcommands.ExitSuccess,
			out:    "0x0000_0000_4000_0401  level 1  block 0x0000_0000_4000_0000 AF=1 attr=0 ap=rw-el1 sh=non\n",
		},
		{
			args:   []string{"-level", "2", "0x0020_0401"},
			status: subcommands.ExitSuccess,
			out:    "0x0000_0000_0020_0401  level 2  block 0x0000_0000_0020_0000 AF=1 attr=0 ap=rw-el1 sh=non\n",
		},
		{
			args:   []string{"-level", "0", "0x4000_0401"},
			status: subcommands.ExitFailure,
			out:    "0x0000_0000_4000_0401  level 0  bad: block descriptor at unsupported level\n",
		},
		{args: []string{}, status: subcommands.ExitUsageError},
		{args: []string{"-level", "4", "0"}, status: subcommands.ExitUsageError},
		{args: []string{"-level", "-1", "0x403"}, status: subcommands.ExitUsageError},
		{args: []string{"-level", "-7", "0x403"}, status: subcommands.ExitUsageError},
		{args: []string{"0xzz"}, status: subcommands.ExitUsageError},
	} {
		status, out := execute(t, new(Decode), conf, tc.args...)
		if status != tc.status {
			t.Errorf("decode %v returned %v, want %v", tc.args, status, tc.status)
		}
		if out != tc.out {
			t.Errorf("decode %v output = %q, want %q", tc.args, out, tc.out)
		}
	}
}

func TestRegions(t *testing.T) {
	ram := writeImage(t)
	rom := config.Image{Path: filepath.Join(t.TempDir(), "rom.bin"), Base: 0}
	if err := os.WriteFile(rom.Path, make([]byte, tt.PageSize), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	conf := &config.Config{Images: config.Images{ram}}
	status, out := execute(t, new(Regions), conf, "-image", rom.String())
	if status != subcommands.ExitSuccess {
		t.Fatalf("regions returned %v", status)
	}
	want := lines(
		fmt.Sprintf("0x0000_0000_0000_0000-0x0000_0000_0000_0fff  %10d  %s", 4096, rom.Path),
		fmt.Sprintf("0x0000_0000_4000_0000-0x0000_0000_4000_1fff  %10d  %s", 8192, ram.Path),
	)
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("regions output mismatch (-want +got):\n%s", diff)
	}
}

func TestRegionsNoImages(t *testing.T) {
	status, out := execute(t, new(Regions), &config.Config{})
	if status != subcommands.ExitSuccess {
		t.Fatalf("regions returned %v", status)
	}
	if want := "no memory images configured, use -image path@base\n"; out != want {
		t.Errorf("regions output = %q, want %q", out, want)
	}
}

func TestOpenTargetConflict(t *testing.T) {
	img := writeImage(t)
	if _, err := openTarget(config.Images{img, img}); !errors.Is(err, memory.ErrConflict) {
		t.Errorf("openTarget(overlapping) = %v, want %v", err, memory.ErrConflict)
	}
	missing := config.Image{Path: filepath.Join(t.TempDir(), "missing.bin"), Base: 0}
	if _, err := openTarget(config.Images{img, missing}); err == nil {
		t.Errorf("openTarget(missing image) succeeded")
	}
}

func TestOpenTargetClose(t *testing.T) {
	img := writeImage(t)
	rom := config.Image{Path: filepath.Join(t.TempDir(), "rom.bin"), Base: 0}
	if err := os.WriteFile(rom.Path, make([]byte, 4096), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	tgt, err := openTarget(config.Images{img, rom})
	if err != nil {
		t.Fatalf("openTarget failed: %v", err)
	}
	files := tgt.files
	if len(files) != 2 {
		t.Fatalf("openTarget mapped %d files, want 2", len(files))
	}
	tgt.Close()
	for _, f := range files {
		if f.Data != nil {
			t.Errorf("image %q still mapped after Close", f.Path)
		}
	}
	if tgt.files != nil {
		t.Errorf("files = %v after Close, want nil", tgt.files)
	}
	tgt.Close()
}
