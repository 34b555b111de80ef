// Package report assembles the top-level Report envelope: version,
// reporter identity, operating system, affected package set and exactly
// one dialect-specific stacktrace, serialized to the v2 ureport wire
// format of §4.J/§6.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/stealthrocket/crashreport/internal/dialect"
	"github.com/stealthrocket/crashreport/internal/frame"
	"github.com/stealthrocket/crashreport/internal/osinfo"
	"github.com/stealthrocket/crashreport/internal/rpm"
)

// Type is the report-type enum of the wire format's "type" key.
type Type string

const (
	TypeCore       Type = "core"
	TypePython     Type = "python"
	TypeKerneloops Type = "kerneloops"
	TypeJava       Type = "java"
	TypeRuby       Type = "ruby"
	TypeJavaScript Type = "javascript"
)

// typeOf maps a stacktrace's dialect to the wire-format report type. Both
// DialectGDB and DialectCore crashes are native-process crashes and share
// the "core" type, distinguished only by which stacktrace key carries the
// payload (stacktrace vs core_backtrace).
func typeOf(d frame.Dialect) Type {
	switch d {
	case frame.DialectGDB, frame.DialectCore:
		return TypeCore
	case frame.DialectPython:
		return TypePython
	case frame.DialectKoops:
		return TypeKerneloops
	case frame.DialectJava:
		return TypeJava
	case frame.DialectRuby:
		return TypeRuby
	case frame.DialectJS:
		return TypeJavaScript
	default:
		return ""
	}
}

// New builds a skeletal report carrying st, with Version and Type filled
// in from st's dialect.
func New(st frame.Stacktrace) *Report {
	r := &Report{Version: 2, Stacktrace: st}
	if st != nil {
		r.Type = typeOf(st.Dialect())
	}
	return r
}

// AuthEntry is one insertion-ordered auth-token key/value pair.
type AuthEntry struct {
	Key   string
	Value string
}

// Reporter names the tool that produced the report.
type Reporter struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Report is the top-level envelope wrapping one crash: its stacktrace (in
// exactly one dialect), the operating system it was observed on, and the
// package set. UserRoot, UserLocal, Component and Serial are carried on
// the Go value for callers that need them but are not part of the wire
// envelope's enumerated key list (see DESIGN.md).
type Report struct {
	Version         uint32
	Reporter        Reporter
	Reason          string
	OS              osinfo.OS
	Architecture    string
	Packages        []rpm.Package
	RelatedPackages []rpm.Package
	Type            Type
	Stacktrace      frame.Stacktrace
	AuthEntries     []AuthEntry

	UserRoot  bool
	UserLocal bool
	Component string
	Serial    uint32
}

// marshalStacktrace dispatches to the dialect-specific JSON marshaler and
// returns the wire key the resulting bytes belong under.
func marshalStacktrace(s frame.Stacktrace) (key string, data []byte, err error) {
	switch st := s.(type) {
	case *frame.GDBStacktrace:
		data, err = dialect.MarshalGDBJSON(st)
		key = "stacktrace"
	case *frame.CoreStacktrace:
		data, err = dialect.MarshalCoreJSON(st)
		key = "core_backtrace"
	case *frame.PythonStacktrace:
		data, err = dialect.MarshalPythonJSON(st)
		key = "python"
	case *frame.KoopsStacktrace:
		data, err = dialect.MarshalKoopsJSON(st)
		key = "koops"
	case *frame.JavaStacktrace:
		data, err = dialect.MarshalJavaJSON(st)
		key = "java"
	case *frame.RubyStacktrace:
		data, err = dialect.MarshalRubyJSON(st)
		key = "ruby"
	case *frame.JSStacktrace:
		data, err = dialect.MarshalJSJSON(st)
		key = "javascript"
	default:
		return "", nil, fmt.Errorf("report: unsupported stacktrace type %T", s)
	}
	return key, data, err
}

// MarshalJSON serializes the report with top-level keys in the exact
// order of §4.J: ureport_version, reporter, reason, os, architecture,
// packages, related_packages, type, and exactly one dialect-specific
// stacktrace key, followed by an optional auth_entries.
func (r *Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, v interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprintf(&buf, "%q:", key)
		buf.Write(data)
		return nil
	}

	if err := write("ureport_version", r.Version); err != nil {
		return nil, err
	}
	if err := write("reporter", r.Reporter); err != nil {
		return nil, err
	}
	if err := write("reason", r.Reason); err != nil {
		return nil, err
	}
	if err := write("os", r.OS); err != nil {
		return nil, err
	}
	if err := write("architecture", r.Architecture); err != nil {
		return nil, err
	}
	if err := write("packages", nonNilPackages(r.Packages)); err != nil {
		return nil, err
	}
	if err := write("related_packages", nonNilPackages(r.RelatedPackages)); err != nil {
		return nil, err
	}
	if err := write("type", r.Type); err != nil {
		return nil, err
	}

	if r.Stacktrace != nil {
		key, data, err := marshalStacktrace(r.Stacktrace)
		if err != nil {
			return nil, err
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:", key)
		buf.Write(data)
	}

	if len(r.AuthEntries) > 0 {
		if err := write("auth_entries", authEntriesJSON(r.AuthEntries)); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func nonNilPackages(p []rpm.Package) []rpm.Package {
	if p == nil {
		return []rpm.Package{}
	}
	return p
}

type authEntryJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func authEntriesJSON(entries []AuthEntry) []authEntryJSON {
	out := make([]authEntryJSON, len(entries))
	for i, e := range entries {
		out[i] = authEntryJSON{Key: e.Key, Value: e.Value}
	}
	return out
}

// wireReport mirrors the JSON shape of Report for Unmarshal, accepting
// both the canonical report_* keys and the legacy ureport_* keys.
type wireReport struct {
	ReportVersion  *uint32 `json:"report_version"`
	UreportVersion *uint32 `json:"ureport_version"`

	Reporter        Reporter        `json:"reporter"`
	Reason          string          `json:"reason"`
	OS              osinfo.OS       `json:"os"`
	Architecture    string          `json:"architecture"`
	Packages        []rpm.Package   `json:"packages"`
	RelatedPackages []rpm.Package   `json:"related_packages"`
	Type            Type            `json:"type"`
	AuthEntries     []authEntryJSON `json:"auth_entries"`

	Stacktrace    json.RawMessage `json:"stacktrace"`
	CoreBacktrace json.RawMessage `json:"core_backtrace"`
	Python        json.RawMessage `json:"python"`
	Koops         json.RawMessage `json:"koops"`
	Java          json.RawMessage `json:"java"`
	Ruby          json.RawMessage `json:"ruby"`
	JavaScript    json.RawMessage `json:"javascript"`
}

// UnmarshalJSON accepts both report_* and legacy ureport_* keys, populating
// exactly the dialect-specific stacktrace field that was present.
func (r *Report) UnmarshalJSON(data []byte) error {
	var w wireReport
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch {
	case w.UreportVersion != nil:
		r.Version = *w.UreportVersion
	case w.ReportVersion != nil:
		r.Version = *w.ReportVersion
	}

	r.Reporter = w.Reporter
	r.Reason = w.Reason
	r.OS = w.OS
	r.Architecture = w.Architecture
	r.Packages = w.Packages
	r.RelatedPackages = w.RelatedPackages
	r.Type = w.Type

	for _, e := range w.AuthEntries {
		r.AuthEntries = append(r.AuthEntries, AuthEntry{Key: e.Key, Value: e.Value})
	}

	switch {
	case len(w.Stacktrace) > 0:
		st, err := dialect.ParseGDBJSON(w.Stacktrace)
		if err != nil {
			return err
		}
		r.Stacktrace = st
	case len(w.CoreBacktrace) > 0:
		st, err := dialect.ParseCoreJSON(w.CoreBacktrace)
		if err != nil {
			return err
		}
		r.Stacktrace = st
	case len(w.Python) > 0:
		st, err := dialect.ParsePythonJSON(w.Python)
		if err != nil {
			return err
		}
		r.Stacktrace = st
	case len(w.Koops) > 0:
		st, err := dialect.ParseKoopsJSON(w.Koops)
		if err != nil {
			return err
		}
		r.Stacktrace = st
	case len(w.Java) > 0:
		st, err := dialect.ParseJavaJSON(w.Java)
		if err != nil {
			return err
		}
		r.Stacktrace = st
	case len(w.Ruby) > 0:
		st, err := dialect.ParseRubyJSON(w.Ruby)
		if err != nil {
			return err
		}
		r.Stacktrace = st
	case len(w.JavaScript) > 0:
		st, err := dialect.ParseJSJSON(w.JavaScript)
		if err != nil {
			return err
		}
		r.Stacktrace = st
	}

	return nil
}
