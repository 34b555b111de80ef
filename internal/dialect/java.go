package dialect

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/stealthrocket/crashreport/internal/frame"
)

var (
	javaHeaderRe = regexp.MustCompile(`^Exception in thread "([^"]*)" (\S+): (.*)$`)
	javaCausedRe = regexp.MustCompile(`^Caused by:\s*(\S+):?\s*(.*)$`)
	javaFrameRe  = regexp.MustCompile(`^\s*at\s+(\S+)\((.*)\)\s*$`)
	javaFileLine = regexp.MustCompile(`^([^:]+):(\d+)$`)
)

// ParseJava parses a Java exception trace: the header line naming the
// thread and exception, `\tat class.method(File.java:123)` frame lines
// (also matching `(Native Method)` and `(Unknown Source)` variants, with an
// optional `~[classpath]` suffix), and any chained `Caused by:` blocks.
func ParseJava(text []byte) (*frame.JavaStacktrace, error) {
	lines := strings.Split(string(text), "\n")

	var blocks [][]string
	var headers []string
	cur := -1
	for _, line := range lines {
		if javaHeaderRe.MatchString(line) || javaCausedRe.MatchString(line) {
			blocks = append(blocks, nil)
			headers = append(headers, line)
			cur++
			continue
		}
		if cur >= 0 {
			blocks[cur] = append(blocks[cur], line)
		}
	}

	if len(blocks) == 0 {
		return nil, nil
	}

	var chain []*frame.JavaStacktrace
	for i, header := range headers {
		st := &frame.JavaStacktrace{Thread_: &frame.Thread{Dialect: frame.DialectJava}}
		if m := javaHeaderRe.FindStringSubmatch(header); m != nil {
			st.ThreadName = m[1]
			st.ExceptionClass = m[2]
			st.Message = m[3]
		} else if m := javaCausedRe.FindStringSubmatch(header); m != nil {
			st.ExceptionClass = m[1]
			st.Message = m[2]
		}
		for _, line := range blocks[i] {
			if m := javaFrameRe.FindStringSubmatch(line); m != nil {
				f := parseJavaFrame(m[1], m[2])
				st.Thread_.Frames = append(st.Thread_.Frames, f)
			}
		}
		chain = append(chain, st)
	}

	for i := 0; i < len(chain)-1; i++ {
		chain[i].CausedBy = chain[i+1]
	}
	return chain[0], nil
}

func parseJavaFrame(classMethod, paren string) *frame.JavaFrame {
	f := &frame.JavaFrame{ClassMethod: classMethod}
	switch {
	case paren == "Native Method":
		f.Native = true
	case paren == "Unknown Source":
	default:
		body := paren
		if idx := strings.Index(body, "~["); idx >= 0 {
			f.ClassPath = strings.TrimSuffix(body[idx+2:], "]")
			f.HasClassPath = true
			body = strings.TrimSpace(body[:idx])
		}
		if m := javaFileLine.FindStringSubmatch(body); m != nil {
			f.File = m[1]
			if n, err := strconv.Atoi(m[2]); err == nil {
				f.Line = n
				f.HasLine = true
			}
		} else {
			f.File = body
		}
	}
	return f
}

type javaFrameJSON struct {
	ClassMethod string `json:"class_method"`
	File        string `json:"file_name,omitempty"`
	Line        int    `json:"line_number,omitempty"`
	ClassPath   string `json:"class_path,omitempty"`
	Native      bool   `json:"native,omitempty"`
}

type javaStacktraceJSON struct {
	ThreadName     string          `json:"thread_name,omitempty"`
	ExceptionClass string          `json:"exception_class"`
	Message        string          `json:"message,omitempty"`
	Frames         []javaFrameJSON `json:"frames"`
	CausedBy       *javaStacktraceJSON `json:"caused_by,omitempty"`
}

// MarshalJavaJSON serializes a JavaStacktrace, including its caused-by
// chain.
func MarshalJavaJSON(s *frame.JavaStacktrace) ([]byte, error) {
	return json.Marshal(marshalJavaJSON(s))
}

func marshalJavaJSON(s *frame.JavaStacktrace) *javaStacktraceJSON {
	if s == nil {
		return nil
	}
	out := &javaStacktraceJSON{
		ThreadName:     s.ThreadName,
		ExceptionClass: s.ExceptionClass,
		Message:        s.Message,
		CausedBy:       marshalJavaJSON(s.CausedBy),
	}
	for _, fr := range s.Thread_.Frames {
		j := fr.(*frame.JavaFrame)
		out.Frames = append(out.Frames, javaFrameJSON{
			ClassMethod: j.ClassMethod,
			File:        j.File,
			Line:        j.Line,
			ClassPath:   j.ClassPath,
			Native:      j.Native,
		})
	}
	return out
}

// ParseJavaJSON deserializes the wire form produced by MarshalJavaJSON.
func ParseJavaJSON(data []byte) (*frame.JavaStacktrace, error) {
	var in javaStacktraceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return unmarshalJavaJSON(&in), nil
}

func unmarshalJavaJSON(in *javaStacktraceJSON) *frame.JavaStacktrace {
	if in == nil {
		return nil
	}
	st := &frame.JavaStacktrace{
		ThreadName:     in.ThreadName,
		ExceptionClass: in.ExceptionClass,
		Message:        in.Message,
		Thread_:        &frame.Thread{Dialect: frame.DialectJava},
		CausedBy:       unmarshalJavaJSON(in.CausedBy),
	}
	for _, jf := range in.Frames {
		st.Thread_.Frames = append(st.Thread_.Frames, &frame.JavaFrame{
			ClassMethod:  jf.ClassMethod,
			File:         jf.File,
			Line:         jf.Line,
			HasLine:      jf.Line != 0,
			ClassPath:    jf.ClassPath,
			HasClassPath: jf.ClassPath != "",
			Native:       jf.Native,
		})
	}
	return st
}

// ShortTextJava renders the exception class and message.
func ShortTextJava(s *frame.JavaStacktrace) string {
	return s.ExceptionClass + ": " + s.Message
}
