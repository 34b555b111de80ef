package dialect

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/stealthrocket/crashreport/internal/frame"
)

// rubyFrameRe captures path:line:in `[rescue in ][block [(N levels) ]in
// ][<]funcname[>]'
var rubyFrameRe = regexp.MustCompile("^(.+):(\\d+):in `(.*)'$")

// ParseRuby parses a single Ruby backtrace frame line.
func ParseRuby(line string) (*frame.RubyFrame, error) {
	m := rubyFrameRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return nil, nil
	}
	lineNo, _ := strconv.Atoi(m[2])
	f := &frame.RubyFrame{File: m[1], Line: lineNo}

	funcPart := m[3]

	for strings.HasPrefix(funcPart, "rescue in ") {
		f.RescueLevel++
		funcPart = strings.TrimPrefix(funcPart, "rescue in ")
	}

	if strings.HasPrefix(funcPart, "block ") {
		rest := strings.TrimPrefix(funcPart, "block ")
		if strings.HasPrefix(rest, "(") {
			if end := strings.Index(rest, " levels) in "); end >= 0 {
				n, _ := strconv.Atoi(strings.TrimPrefix(rest[:end], "("))
				f.BlockLevel = n
				funcPart = rest[end+len(" levels) in "):]
			}
		} else if strings.HasPrefix(rest, "in ") {
			f.BlockLevel = 1
			funcPart = strings.TrimPrefix(rest, "in ")
		}
	}

	if strings.HasPrefix(funcPart, "<") && strings.HasSuffix(funcPart, ">") {
		f.SpecialFunction = true
		funcPart = strings.TrimSuffix(strings.TrimPrefix(funcPart, "<"), ">")
	}

	f.Function = funcPart
	return f, nil
}

// ParseRubyBacktrace parses a full Ruby backtrace (one frame per line) plus
// a trailing `ExceptionClass: message` line.
func ParseRubyBacktrace(text []byte) (*frame.RubyStacktrace, error) {
	st := &frame.RubyStacktrace{Thread_: &frame.Thread{Dialect: frame.DialectRuby}}
	for _, line := range strings.Split(string(text), "\n") {
		if line == "" {
			continue
		}
		f, err := ParseRuby(line)
		if err != nil {
			return nil, err
		}
		if f != nil {
			st.Thread_.Frames = append(st.Thread_.Frames, f)
			continue
		}
		if st.ExceptionName == "" {
			if idx := strings.Index(line, ":"); idx >= 0 {
				st.ExceptionName = line[:idx]
			}
		}
	}
	return st, nil
}

type rubyFrameJSON struct {
	File            string `json:"file_name"`
	Line            int    `json:"line_number"`
	Function        string `json:"function_name"`
	SpecialFunction bool   `json:"special_function,omitempty"`
	BlockLevel      int    `json:"block_level,omitempty"`
	RescueLevel     int    `json:"rescue_level,omitempty"`
}

type rubyStacktraceJSON struct {
	Frames        []rubyFrameJSON `json:"frames"`
	ExceptionName string          `json:"exception_name,omitempty"`
}

// MarshalRubyJSON serializes a RubyStacktrace.
func MarshalRubyJSON(s *frame.RubyStacktrace) ([]byte, error) {
	out := rubyStacktraceJSON{ExceptionName: s.ExceptionName}
	for _, fr := range s.Thread_.Frames {
		r := fr.(*frame.RubyFrame)
		out.Frames = append(out.Frames, rubyFrameJSON{
			File:            r.File,
			Line:            r.Line,
			Function:        r.Function,
			SpecialFunction: r.SpecialFunction,
			BlockLevel:      r.BlockLevel,
			RescueLevel:     r.RescueLevel,
		})
	}
	return json.Marshal(out)
}

// ParseRubyJSON deserializes the wire form produced by MarshalRubyJSON.
func ParseRubyJSON(data []byte) (*frame.RubyStacktrace, error) {
	var in rubyStacktraceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	st := &frame.RubyStacktrace{Thread_: &frame.Thread{Dialect: frame.DialectRuby}, ExceptionName: in.ExceptionName}
	for _, jf := range in.Frames {
		st.Thread_.Frames = append(st.Thread_.Frames, &frame.RubyFrame{
			File:            jf.File,
			Line:            jf.Line,
			Function:        jf.Function,
			SpecialFunction: jf.SpecialFunction,
			BlockLevel:      jf.BlockLevel,
			RescueLevel:     jf.RescueLevel,
		})
	}
	return st, nil
}

// ShortTextRuby renders the exception name with the crashing location.
func ShortTextRuby(s *frame.RubyStacktrace) string {
	if len(s.Thread_.Frames) == 0 {
		return s.ExceptionName
	}
	return s.ExceptionName + " at " + s.Thread_.Frames[0].String()
}
