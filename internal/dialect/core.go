package dialect

import (
	"encoding/json"

	"github.com/stealthrocket/crashreport/internal/cerrors"
	"github.com/stealthrocket/crashreport/internal/frame"
)

type coreFrameJSON struct {
	Address           uint64 `json:"address"`
	BuildID           string `json:"build_id,omitempty"`
	BuildIDOffset     uint64 `json:"build_id_offset,omitempty"`
	FunctionName      string `json:"function_name,omitempty"`
	FileName          string `json:"file_name,omitempty"`
	Fingerprint       string `json:"fingerprint,omitempty"`
	FingerprintHashed bool   `json:"fingerprint_hashed,omitempty"`
}

type coreThreadJSON struct {
	Frames      []coreFrameJSON `json:"frames"`
	CrashThread bool            `json:"crash_thread,omitempty"`
}

type coreStacktraceJSON struct {
	Signal     uint16           `json:"signal"`
	Executable string           `json:"executable"`
	Stacktrace []coreThreadJSON `json:"stacktrace"`
}

// MarshalCoreJSON serializes a CoreStacktrace per §6's Core-stacktrace JSON
// schema.
func MarshalCoreJSON(s *frame.CoreStacktrace) ([]byte, error) {
	out := coreStacktraceJSON{Signal: s.Signal, Executable: s.Executable}
	for _, t := range s.Threads_ {
		jt := coreThreadJSON{CrashThread: t == s.Crash}
		for _, fr := range t.Frames {
			c := fr.(*frame.CoreFrame)
			jf := coreFrameJSON{
				Address:           c.Address,
				FunctionName:      c.Function,
				FileName:          c.FileName,
				Fingerprint:       c.Fingerprint,
				FingerprintHashed: c.FingerprintHashed,
			}
			if c.HasBuildID {
				jf.BuildID = c.BuildID
				jf.BuildIDOffset = c.BuildIDOffset
			}
			jt.Frames = append(jt.Frames, jf)
		}
		out.Stacktrace = append(out.Stacktrace, jt)
	}
	return json.Marshal(out)
}

// ParseCoreJSON parses the Core-stacktrace JSON schema of §6.
func ParseCoreJSON(data []byte) (*frame.CoreStacktrace, error) {
	var in coreStacktraceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	st := &frame.CoreStacktrace{Signal: in.Signal, Executable: in.Executable}
	for _, jt := range in.Stacktrace {
		t := &frame.Thread{Dialect: frame.DialectCore}
		for _, jf := range jt.Frames {
			c := &frame.CoreFrame{
				Address:           jf.Address,
				Function:          jf.FunctionName,
				HasFunction:       jf.FunctionName != "",
				FileName:          jf.FileName,
				HasFileName:       jf.FileName != "",
				Fingerprint:       jf.Fingerprint,
				FingerprintHashed: jf.FingerprintHashed,
			}
			if jf.BuildID != "" {
				if err := validateBuildID(jf.BuildID); err != nil {
					return nil, err
				}
				c.BuildID = jf.BuildID
				c.HasBuildID = true
				c.BuildIDOffset = jf.BuildIDOffset
			}
			t.Frames = append(t.Frames, c)
		}
		st.Threads_ = append(st.Threads_, t)
		if jt.CrashThread {
			st.Crash = t
		}
	}
	st.OnlyCrashThread = len(st.Threads_) == 1
	return st, nil
}

// validateBuildID enforces invariant 3: lowercase hex of even length.
func validateBuildID(id string) error {
	if len(id)%2 != 0 {
		return &cerrors.InvalidBuildIDError{BuildID: id}
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return &cerrors.InvalidBuildIDError{BuildID: id}
		}
	}
	return nil
}

// ShortTextCore renders a short summary of the crash thread's top frame.
func ShortTextCore(s *frame.CoreStacktrace) string {
	t := s.CrashThread()
	if t == nil || len(t.Frames) == 0 {
		return "(no frames)"
	}
	return t.Frames[0].String()
}
