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
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// jsonLog is one line of JSONEmitter output.
type jsonLog struct {
	Time   time.Time `json:"time"`
	Level  Level     `json:"level"`
	Caller string    `json:"caller,omitempty"`
	Msg    string    `json:"msg"`
}

// MarshalJSON implements json.Marshaler.MarshalJSON.
func (l Level) MarshalJSON() ([]byte, error) {
	switch l {
	case Warning, Info, Debug:
		return []byte(strconv.Quote(strings.ToLower(l.String()))), nil
	default:
		return nil, fmt.Errorf("unknown level %v", l)
	}
}

// UnmarshalJSON implements json.Unmarshaler.UnmarshalJSON. Levels are accepted
// by name, in any case, or by number.
func (l *Level) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.ToLower(unq)
	}
	switch s {
	case "0", "warning":
		*l = Warning
	case "1", "info":
		*l = Info
	case "2", "debug":
		*l = Debug
	default:
		return fmt.Errorf("unknown level %q", string(b))
	}
	return nil
}

// JSONEmitter writes one JSON object per line.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	j := jsonLog{
		Time:  timestamp,
		Level: level,
		Msg:   fmt.Sprintf(format, v...),
	}
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
			file = file[slash+1:]
		}
		j.Caller = file + ":" + strconv.Itoa(line)
	}
	b, err := json.Marshal(j)
	if err != nil {
		// Only an invalid level gets here.
		b = []byte(fmt.Sprintf(`{"level":"warning","msg":%q}`, "unencodable log message: "+err.Error()))
	}
	e.Writer.Write(append(b, '\n'))
}
