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

package log

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	want := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("Writer lines mismatch (-want +got):\n%s", diff)
	}
}

func TestWriterAppendsNewline(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("no newline")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}
	if diff := cmp.Diff([]string{"no newline", "\n"}, tw.lines); diff != "" {
		t.Errorf("Writer lines mismatch (-want +got):\n%s", diff)
	}
}

func TestBasicLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: &buf}}

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warningf("warning %d", 3)
	if got, want := buf.String(), "info 2\nwarning 3\n"; got != want {
		t.Errorf("output at Info got %q, want %q", got, want)
	}

	buf.Reset()
	l.SetLevel(Debug)
	l.Debugf("debug %d", 4)
	if got, want := buf.String(), "debug 4\n"; got != want {
		t.Errorf("output at Debug got %q, want %q", got, want)
	}

	if !l.IsLogging(Warning) || !l.IsLogging(Debug) {
		t.Errorf("IsLogging at Debug level should accept every level")
	}
}

func TestMultiEmitter(t *testing.T) {
	var a, b bytes.Buffer
	m := MultiEmitter{&Writer{Next: &a}, &Writer{Next: &b}}
	m.Emit(0, Info, time.Now(), "hello %s", "world")
	for i, buf := range []*bytes.Buffer{&a, &b} {
		if got, want := buf.String(), "hello world\n"; got != want {
			t.Errorf("emitter %d got %q, want %q", i, got, want)
		}
	}
}

func TestGoogleEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := GoogleEmitter{&Writer{Next: &buf}}
	ts := time.Date(2026, time.March, 7, 13, 4, 5, 6000, time.UTC)
	e.Emit(0, Warning, ts, "table at %#x", 0x1000)

	got := buf.String()
	if !strings.HasPrefix(got, "W0307 13:04:05.000006 ") {
		t.Errorf("header got %q", got)
	}
	if !strings.Contains(got, "log_test.go:") {
		t.Errorf("caller missing from %q", got)
	}
	if !strings.HasSuffix(got, "] table at 0x1000\n") {
		t.Errorf("message got %q", got)
	}
}

func TestPatternOpts(t *testing.T) {
	opts := PatternOpts{
		Command: "dump",
		Start:   time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC),
	}
	for _, tc := range []struct {
		pattern string
		want    string
	}{
		{"/tmp/x.log", "/tmp/x.log"},
		{"/tmp/%COMMAND%.log", "/tmp/dump.log"},
		{"/tmp/logs/", "/tmp/logs/ttinfo.log.20260102-030405.000000.dump"},
	} {
		if got := opts.Build(tc.pattern); got != tc.want {
			t.Errorf("Build(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenFile(filepath.Join(dir, "sub", "%COMMAND%.log"), os.O_WRONLY|os.O_CREATE, PatternOpts{Command: "decode"})
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer f.Close()
	if got, want := f.Name(), filepath.Join(dir, "sub", "decode.log"); got != want {
		t.Errorf("OpenFile name got %q, want %q", got, want)
	}

	f, err = OpenFile("", os.O_WRONLY, PatternOpts{})
	if err != nil || f != nil {
		t.Errorf("OpenFile with empty pattern got (%v, %v), want (nil, nil)", f, err)
	}
}

func TestRateLimitedLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewRateLimitedLogger(&BasicLogger{Level: Info, Emitter: &Writer{Next: &buf}}, time.Minute)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		l.Warningf("table %d unreadable", i)
	}
	if got := l.Suppressed(); got != 3 {
		t.Errorf("Suppressed() = %d, want 3", got)
	}
	now = now.Add(2 * time.Minute)
	l.Warningf("table %d unreadable", 4)

	want := "table 0 unreadable\ntable 4 unreadable (3 similar warnings suppressed)\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("rate limited output mismatch (-want +got):\n%s", diff)
	}
	if got := l.Suppressed(); got != 0 {
		t.Errorf("Suppressed() after logging = %d, want 0", got)
	}
}
