package dialect

import (
	"encoding/json"

	"github.com/stealthrocket/crashreport/internal/frame"
)

type gdbFrameJSON struct {
	Index        int              `json:"frame_number"`
	Address      *string          `json:"address,omitempty"`
	Function     string           `json:"function_name"`
	FunctionType string           `json:"function_type,omitempty"`
	Library      string           `json:"library_name,omitempty"`
	File         string           `json:"file_name,omitempty"`
	Line         int              `json:"line_number,omitempty"`
	Args         []nameValueJSON  `json:"arguments,omitempty"`
	Locals       []nameValueJSON  `json:"locals,omitempty"`
}

type nameValueJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gdbThreadJSON struct {
	Frames []gdbFrameJSON `json:"frames"`
	Crash  bool           `json:"crash_thread,omitempty"`
}

type gdbStacktraceJSON struct {
	Threads []gdbThreadJSON `json:"threads"`
}

// MarshalGDBJSON serializes a GDBStacktrace in the dialect's canonical key
// order, round-tripping byte-for-byte with ParseGDBJSON.
func MarshalGDBJSON(s *frame.GDBStacktrace) ([]byte, error) {
	out := gdbStacktraceJSON{}
	for _, t := range s.Threads_ {
		jt := gdbThreadJSON{Crash: t == s.Crash}
		for _, fr := range t.Frames {
			g := fr.(*frame.GDBFrame)
			jf := gdbFrameJSON{
				Index:        g.Index,
				Function:     g.Function,
				FunctionType: g.FunctionType,
				Library:      g.Library,
				File:         g.SourceFile,
				Line:         g.SourceLine,
			}
			if g.HasAddress {
				addr := hexString(g.Address)
				jf.Address = &addr
			}
			for _, a := range g.Args {
				jf.Args = append(jf.Args, nameValueJSON{a.Name, a.Value})
			}
			for _, l := range g.Locals {
				jf.Locals = append(jf.Locals, nameValueJSON{l.Name, l.Value})
			}
			jt.Frames = append(jt.Frames, jf)
		}
		out.Threads = append(out.Threads, jt)
	}
	return json.Marshal(out)
}

// ParseGDBJSON deserializes the wire form produced by MarshalGDBJSON.
func ParseGDBJSON(data []byte) (*frame.GDBStacktrace, error) {
	var in gdbStacktraceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	st := &frame.GDBStacktrace{}
	for _, jt := range in.Threads {
		t := &frame.Thread{Dialect: frame.DialectGDB}
		for _, jf := range jt.Frames {
			g := &frame.GDBFrame{
				Index:        jf.Index,
				Function:     jf.Function,
				FunctionType: jf.FunctionType,
				Library:      jf.Library,
				SourceFile:   jf.File,
				SourceLine:   jf.Line,
			}
			if jf.Address != nil {
				addr, err := parseHexString(*jf.Address)
				if err != nil {
					return nil, err
				}
				g.Address = addr
				g.HasAddress = true
			}
			for _, a := range jf.Args {
				g.Args = append(g.Args, frame.NameValue{Name: a.Name, Value: a.Value})
			}
			for _, l := range jf.Locals {
				g.Locals = append(g.Locals, frame.NameValue{Name: l.Name, Value: l.Value})
			}
			t.Frames = append(t.Frames, g)
		}
		st.Threads_ = append(st.Threads_, t)
		if jt.Crash {
			st.Crash = t
		}
	}
	return st, nil
}
