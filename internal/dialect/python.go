package dialect

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/stealthrocket/crashreport/internal/frame"
)

var (
	pythonFrameRe     = regexp.MustCompile(`^\s*File "([^"]+)", line (\d+), in (\S+)\s*$`)
	pythonExceptionRe = regexp.MustCompile(`^(\S+): (.*)$`)
	pythonPreamble    = "Traceback (most recent call last):"
)

// ParsePython parses a Python traceback: a skipped preamble up to the
// literal "Traceback (most recent call last):" line, frame lines of the
// form `  File "<path>", line <dec>, in <funcname>` optionally followed by
// an indented source line, and a final `<ExceptionName>: <message>` line.
func ParsePython(text []byte) (*frame.PythonStacktrace, error) {
	lines := strings.Split(string(text), "\n")

	i := 0
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == pythonPreamble {
			i++
			break
		}
	}

	st := &frame.PythonStacktrace{Thread_: &frame.Thread{Dialect: frame.DialectPython}}

	for ; i < len(lines); i++ {
		line := lines[i]
		if m := pythonFrameRe.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			f := &frame.PythonFrame{
				File:     m[1],
				Line:     lineNo,
				Function: m[3],
				IsModule: m[3] == "<module>",
			}
			if i+1 < len(lines) {
				next := lines[i+1]
				if len(next) > 0 && (next[0] == ' ' || next[0] == '\t') && !pythonFrameRe.MatchString(next) {
					f.SourceText = strings.TrimSpace(next)
					f.HasSource = true
					i++
				}
			}
			st.Thread_.Frames = append(st.Thread_.Frames, f)
			continue
		}

		if m := pythonExceptionRe.FindStringSubmatch(line); m != nil {
			st.ExceptionName = m[1]
		}
	}

	if n := len(st.Thread_.Frames); n > 0 {
		last := st.Thread_.Frames[n-1].(*frame.PythonFrame)
		st.File = last.File
		st.Line = last.Line
	}

	return st, nil
}

type pythonFrameJSON struct {
	File       string `json:"file_name"`
	Line       int    `json:"line_number"`
	Function   string `json:"function_name"`
	IsModule   bool   `json:"is_module,omitempty"`
	SourceText string `json:"line_contents,omitempty"`
}

type pythonStacktraceJSON struct {
	Frames        []pythonFrameJSON `json:"frames"`
	ExceptionName string            `json:"exception_name,omitempty"`
	File          string            `json:"file_name,omitempty"`
	Line          int               `json:"line_number,omitempty"`
}

// MarshalPythonJSON serializes a PythonStacktrace.
func MarshalPythonJSON(s *frame.PythonStacktrace) ([]byte, error) {
	out := pythonStacktraceJSON{ExceptionName: s.ExceptionName, File: s.File, Line: s.Line}
	for _, fr := range s.Thread_.Frames {
		p := fr.(*frame.PythonFrame)
		out.Frames = append(out.Frames, pythonFrameJSON{
			File:       p.File,
			Line:       p.Line,
			Function:   p.Function,
			IsModule:   p.IsModule,
			SourceText: p.SourceText,
		})
	}
	return json.Marshal(out)
}

// ParsePythonJSON deserializes the wire form produced by MarshalPythonJSON.
func ParsePythonJSON(data []byte) (*frame.PythonStacktrace, error) {
	var in pythonStacktraceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	st := &frame.PythonStacktrace{
		Thread_:       &frame.Thread{Dialect: frame.DialectPython},
		ExceptionName: in.ExceptionName,
		File:          in.File,
		Line:          in.Line,
	}
	for _, jf := range in.Frames {
		st.Thread_.Frames = append(st.Thread_.Frames, &frame.PythonFrame{
			File:       jf.File,
			Line:       jf.Line,
			Function:   jf.Function,
			IsModule:   jf.IsModule,
			SourceText: jf.SourceText,
			HasSource:  jf.SourceText != "",
		})
	}
	return st, nil
}

// ShortTextPython renders the exception name with the crashing location.
func ShortTextPython(s *frame.PythonStacktrace) string {
	if len(s.Thread_.Frames) == 0 {
		return s.ExceptionName
	}
	last := s.Thread_.Frames[len(s.Thread_.Frames)-1].(*frame.PythonFrame)
	return s.ExceptionName + " in " + last.Function + " at " + last.File
}
