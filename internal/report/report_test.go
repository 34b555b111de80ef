package report

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/stealthrocket/crashreport/internal/frame"
	"github.com/stealthrocket/crashreport/internal/osinfo"
	"github.com/stealthrocket/crashreport/internal/rpm"
)

func sampleReport() *Report {
	st := &frame.CoreStacktrace{
		Signal:     11,
		Executable: "/usr/bin/crashy",
		Threads_: []*frame.Thread{
			{
				Dialect: frame.DialectCore,
				Frames: []frame.Frame{
					&frame.CoreFrame{Address: 0x4010a0, Function: "crashy", HasFunction: true},
				},
			},
		},
	}
	r := New(st)
	r.Reporter = Reporter{Name: "crashreport-tool", Version: "1.0"}
	r.Reason = "crashy killed by SIGSEGV"
	r.OS = osinfo.OS{Name: "fedora", Version: "39", Architecture: "x86_64"}
	r.Architecture = "x86_64"
	r.Packages = []rpm.Package{
		{Name: "crashy", Version: "1.0", Release: "1", Arch: "x86_64", Role: rpm.RoleAffected},
	}
	return r
}

func TestReportMarshalJSONKeyOrder(t *testing.T) {
	r := sampleReport()
	data, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("produced invalid JSON: %v", err)
	}

	order := extractKeyOrder(t, data)
	want := []string{"ureport_version", "reporter", "reason", "os", "architecture",
		"packages", "related_packages", "type", "core_backtrace"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("key order = %v, want %v", order, want)
	}
}

func extractKeyOrder(t *testing.T, data []byte) []string {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		t.Fatalf("expected object start, got %v, %v", tok, err)
	}
	var keys []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			t.Fatalf("unexpected token error: %v", err)
		}
		keys = append(keys, kt.(string))
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			t.Fatalf("unexpected value decode error: %v", err)
		}
	}
	return keys
}

func TestReportRoundTrip(t *testing.T) {
	r := sampleReport()
	data, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got Report
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Type != TypeCore {
		t.Errorf("Type = %q, want %q", got.Type, TypeCore)
	}
	if got.OS.Name != "fedora" {
		t.Errorf("OS.Name = %q, want fedora", got.OS.Name)
	}
	if len(got.Packages) != 1 || got.Packages[0].Role != rpm.RoleAffected {
		t.Fatalf("Packages = %+v, want one affected package", got.Packages)
	}
	st, ok := got.Stacktrace.(*frame.CoreStacktrace)
	if !ok {
		t.Fatalf("Stacktrace type = %T, want *frame.CoreStacktrace", got.Stacktrace)
	}
	if st.Signal != 11 || st.Executable != "/usr/bin/crashy" {
		t.Errorf("unexpected core stacktrace: %+v", st)
	}

	data2, err := got.MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error re-marshaling: %v", err)
	}
	if string(data2) != string(data) {
		t.Errorf("round trip not byte-identical:\nfirst:  %s\nsecond: %s", data, data2)
	}
}

func TestReportAcceptsReportVersionKey(t *testing.T) {
	legacy := []byte(`{"report_version":2,"reporter":{"name":"x","version":"1"},"reason":"","os":{"name":"fedora"},"architecture":"x86_64","packages":[],"related_packages":[],"type":"core"}`)
	var r Report
	if err := r.UnmarshalJSON(legacy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Version != 2 {
		t.Errorf("Version = %d, want 2", r.Version)
	}
}

func TestReportSkeletalHasNoStacktraceKey(t *testing.T) {
	r := &Report{Version: 2, Type: TypeCore}
	data, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"stacktrace", "core_backtrace", "python", "koops", "java", "ruby", "javascript"} {
		if strings.Contains(string(data), `"`+key+`"`) {
			t.Errorf("skeletal report unexpectedly carries key %q", key)
		}
	}
}
