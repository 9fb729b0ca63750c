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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"
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
		t.Fatalf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestLevels(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warningf("warning %d", 3)
	if !l.IsLogging(Info) || l.IsLogging(Debug) {
		t.Errorf("IsLogging mismatch at level %v", l.Level)
	}

	l.SetLevel(Debug)
	l.Debugf("debug %d", 4)

	want := []string{"info 2", "\n", "warning 3", "\n", "debug 4", "\n"}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Fatalf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestGoogleEmitter(t *testing.T) {
	tw := &testWriter{}
	g := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2026, time.March, 7, 9, 8, 7, 123456000, time.UTC)
	g.Emit(0, Warning, ts, "joined group %q", "host_logs")

	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(tw.lines), tw.lines)
	}
	line := tw.lines[0]
	if !strings.HasPrefix(line, "W0307 09:08:07.123456 ") {
		t.Errorf("line %q has the wrong header", line)
	}
	if !strings.Contains(line, " log_test.go:") {
		t.Errorf("line %q does not name the caller", line)
	}
	if !strings.HasSuffix(line, `] joined group "host_logs"`+"\n") {
		t.Errorf("line %q has the wrong message", line)
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	base := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}
	rl := RateLimitedLogger(base, time.Hour)

	for i := 0; i < 10; i++ {
		rl.Infof("event %d", i)
	}
	// Debug is below the base level and does not count as suppressed.
	rl.Debugf("hidden")
	want := []string{"event 0", "\n"}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Fatalf("unexpected lines (-want +got):\n%s", diff)
	}

	rl.(*rateLimitedLogger).limit.SetLimit(rate.Inf)
	rl.Warningf("event %d", 10)
	want = append(want, "event 10 (9 similar messages suppressed)", "\n")
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenFile(filepath.Join(dir, "sub", "mon.%PID%.log"))
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer f.Close()

	want := filepath.Join(dir, "sub", "mon."+strconv.Itoa(os.Getpid())+".log")
	if f.Name() != want {
		t.Errorf("OpenFile name = %q, want %q", f.Name(), want)
	}

	if f, err := OpenFile(""); f != nil || err != nil {
		t.Errorf("OpenFile(\"\") = %v, %v; want nil, nil", f, err)
	}
}
