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
	"runtime"
	"strconv"
	"strings"
	"time"
)

// GoogleEmitter writes lines in the format of github.com/golang/glog:
//
//	Lmmdd hh:mm:ss.uuuuuu pid file:line] msg
//
// where L is the level initial and pid is right aligned in seven columns.
type GoogleEmitter struct {
	// Emitter receives the formatted line.
	Emitter
}

// pidField is the pre-rendered, space padded process id.
var pidField = fmt.Sprintf("%7d", os.Getpid())

// appendPadded appends v as a zero padded decimal of width digits.
func appendPadded(b []byte, v, width int) []byte {
	var tmp [20]byte
	d := strconv.AppendInt(tmp[:0], int64(v), 10)
	for i := len(d); i < width; i++ {
		b = append(b, '0')
	}
	return append(b, d...)
}

// header returns the glog prefix of a line emitted at level by the frame
// depth+1 levels up.
func header(depth int, level Level, ts time.Time) []byte {
	b := make([]byte, 0, 64)
	switch level {
	case Debug:
		b = append(b, 'D')
	case Info:
		b = append(b, 'I')
	default:
		b = append(b, 'W')
	}

	_, month, day := ts.Date()
	hour, minute, second := ts.Clock()
	b = appendPadded(b, int(month), 2)
	b = appendPadded(b, day, 2)
	b = append(b, ' ')
	b = appendPadded(b, hour, 2)
	b = append(b, ':')
	b = appendPadded(b, minute, 2)
	b = append(b, ':')
	b = appendPadded(b, second, 2)
	b = append(b, '.')
	b = appendPadded(b, ts.Nanosecond()/1000, 6)
	b = append(b, ' ')
	b = append(b, pidField...)
	b = append(b, ' ')

	file, line := "???", 0
	if _, f, l, ok := runtime.Caller(depth + 1); ok {
		file, line = f[strings.LastIndexByte(f, '/')+1:], l
	}
	b = append(b, file...)
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(line), 10)
	return append(b, "] "...)
}

// Emit implements Emitter.Emit.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	// File names may hold '%'; only the caller's format is expanded.
	h := strings.ReplaceAll(string(header(depth+1, level, timestamp)), "%", "%%")
	g.Emitter.Emit(depth+1, level, timestamp, h+format+"\n", args...)
}
