package dialect

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/stealthrocket/crashreport/internal/frame"
)

var (
	jsNamedFrameRe     = regexp.MustCompile(`^\s*at\s+(.+)\s+\(([^:]+):(\d+):(\d+)\)\s*$`)
	jsAnonymousFrameRe = regexp.MustCompile(`^\s*at\s+([^:]+):(\d+):(\d+)\s*$`)
	jsHeaderRe         = regexp.MustCompile(`^(\S+): (.*)$`)
)

// ParseJS parses a JavaScript stack trace: a header `Error: message` line,
// then `    at func (file:line:column)` or anonymous `    at
// file:line:column` frame lines.
func ParseJS(text []byte) (*frame.JSStacktrace, error) {
	st := &frame.JSStacktrace{Thread_: &frame.Thread{Dialect: frame.DialectJS}}

	for _, line := range strings.Split(string(text), "\n") {
		if m := jsNamedFrameRe.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[3])
			col, _ := strconv.Atoi(m[4])
			st.Thread_.Frames = append(st.Thread_.Frames, &frame.JSFrame{
				Function: m[1], File: m[2], Line: ln, Column: col,
			})
			continue
		}
		if m := jsAnonymousFrameRe.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			st.Thread_.Frames = append(st.Thread_.Frames, &frame.JSFrame{
				File: m[1], Line: ln, Column: col,
			})
			continue
		}
		if st.ExceptionName == "" {
			if m := jsHeaderRe.FindStringSubmatch(line); m != nil && !strings.HasPrefix(strings.TrimSpace(line), "at ") {
				st.ExceptionName = m[1]
			}
		}
	}
	return st, nil
}

type jsFrameJSON struct {
	Function string `json:"function_name,omitempty"`
	File     string `json:"file_name"`
	Line     int    `json:"line_number"`
	Column   int    `json:"column_number"`
}

type jsStacktraceJSON struct {
	Frames        []jsFrameJSON `json:"frames"`
	ExceptionName string        `json:"exception_name,omitempty"`
}

// MarshalJSJSON serializes a JSStacktrace.
func MarshalJSJSON(s *frame.JSStacktrace) ([]byte, error) {
	out := jsStacktraceJSON{ExceptionName: s.ExceptionName}
	for _, fr := range s.Thread_.Frames {
		j := fr.(*frame.JSFrame)
		out.Frames = append(out.Frames, jsFrameJSON{
			Function: j.Function, File: j.File, Line: j.Line, Column: j.Column,
		})
	}
	return json.Marshal(out)
}

// ParseJSJSON deserializes the wire form produced by MarshalJSJSON.
func ParseJSJSON(data []byte) (*frame.JSStacktrace, error) {
	var in jsStacktraceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	st := &frame.JSStacktrace{Thread_: &frame.Thread{Dialect: frame.DialectJS}, ExceptionName: in.ExceptionName}
	for _, jf := range in.Frames {
		st.Thread_.Frames = append(st.Thread_.Frames, &frame.JSFrame{
			Function: jf.Function, File: jf.File, Line: jf.Line, Column: jf.Column,
		})
	}
	return st, nil
}

// ShortTextJS renders the exception name with the crashing location.
func ShortTextJS(s *frame.JSStacktrace) string {
	if len(s.Thread_.Frames) == 0 {
		return s.ExceptionName
	}
	return s.ExceptionName + " at " + s.Thread_.Frames[0].String()
}
