package dialect

import (
	"bytes"
	"testing"

	"github.com/stealthrocket/crashreport/internal/frame"
)

func TestParseKoopsFrameLine(t *testing.T) {
	st, err := ParseKoops([]byte("[65470.100000] [<ffffffff81234567>] ? do_sys_poll+0x45/0x120 [kernel]\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Thread_.Frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(st.Thread_.Frames))
	}
	f := st.Thread_.Frames[0].(*frame.KoopsFrame)
	if f.Address != 0xffffffff81234567 {
		t.Errorf("address = 0x%x, want 0xffffffff81234567", f.Address)
	}
	if f.Reliable {
		t.Errorf("reliable = true, want false (? marker present)")
	}
	if f.Function != "do_sys_poll" {
		t.Errorf("function = %q, want do_sys_poll", f.Function)
	}
	if f.FunctionOffset != 0x45 {
		t.Errorf("offset = 0x%x, want 0x45", f.FunctionOffset)
	}
	if f.FunctionLength != 0x120 {
		t.Errorf("length = 0x%x, want 0x120", f.FunctionLength)
	}
	if f.Module != "kernel" {
		t.Errorf("module = %q, want kernel", f.Module)
	}
}

func TestParseRubyFrame(t *testing.T) {
	line := "/usr/share/ruby/vendor_ruby/will_crash.rb:13:in `rescue in block (2 levels) in func'"
	f, err := ParseRuby(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f == nil {
		t.Fatalf("expected a frame, got nil")
	}
	if f.File != "/usr/share/ruby/vendor_ruby/will_crash.rb" {
		t.Errorf("file = %q", f.File)
	}
	if f.Line != 13 {
		t.Errorf("line = %d, want 13", f.Line)
	}
	if f.Function != "func" {
		t.Errorf("function = %q, want func", f.Function)
	}
	if f.BlockLevel != 2 {
		t.Errorf("block_level = %d, want 2", f.BlockLevel)
	}
	if f.RescueLevel != 1 {
		t.Errorf("rescue_level = %d, want 1", f.RescueLevel)
	}
	if f.SpecialFunction {
		t.Errorf("special_function = true, want false")
	}
}

func TestParseRubySpecialFunction(t *testing.T) {
	f, err := ParseRuby("foo.rb:1:in `<main>'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.SpecialFunction {
		t.Errorf("expected special_function=true for <main>")
	}
	if f.Function != "main" {
		t.Errorf("function = %q, want main", f.Function)
	}
}

func TestGDBFrameRoundTrip(t *testing.T) {
	src := `Thread 1 (Current thread):
#0  0x00007f0000000000 in crashy (x=1) at crashy.c:10
#1  0x00007f0000000010 in main () at main.c:20
`
	st, err := ParseGDB([]byte(src))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(st.Threads_) != 1 || len(st.Threads_[0].Frames) != 2 {
		t.Fatalf("unexpected shape: %+v", st)
	}
	f0 := st.Threads_[0].Frames[0].(*frame.GDBFrame)
	if f0.Function != "crashy" || f0.SourceFile != "crashy.c" || f0.SourceLine != 10 {
		t.Errorf("unexpected frame 0: %+v", f0)
	}

	data, err := MarshalGDBJSON(st)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	back, err := ParseGDBJSON(data)
	if err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !st.Threads_[0].Equal(back.Threads_[0]) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", st.Threads_[0], back.Threads_[0])
	}
}

func TestCoreJSONRoundTrip(t *testing.T) {
	st := &frame.CoreStacktrace{
		Signal:     11,
		Executable: "/usr/bin/crashy",
		Threads_: []*frame.Thread{
			{Dialect: frame.DialectCore, Frames: []frame.Frame{
				&frame.CoreFrame{Address: 0x1000, BuildID: "deadbeef", HasBuildID: true, BuildIDOffset: 0x10, Function: "main", HasFunction: true},
			}},
		},
	}
	st.Crash = st.Threads_[0]

	data, err := MarshalCoreJSON(st)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	back, err := ParseCoreJSON(data)
	if err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if back.Signal != 11 || back.Executable != "/usr/bin/crashy" {
		t.Errorf("unexpected stacktrace: %+v", back)
	}
	if !st.Threads_[0].Equal(back.Threads_[0]) {
		t.Errorf("round trip mismatch")
	}
}

func TestCoreJSONRejectsOddLengthBuildID(t *testing.T) {
	data := []byte(`{"signal":11,"executable":"/bin/x","stacktrace":[{"frames":[{"address":1,"build_id":"abc"}]}]}`)
	if _, err := ParseCoreJSON(data); err == nil {
		t.Fatalf("expected an error for odd-length build-id")
	}
}

// TestCoreJSONParsesNumericAddressFixture parses a fixture shaped like a
// real ABRT/satyr core backtrace, whose "address" and "build_id_offset"
// are decimal JSON numbers (sr_core_frame_to_json emits them with
// PRIu64), not hex strings.
func TestCoreJSONParsesNumericAddressFixture(t *testing.T) {
	data := []byte(`{
		"signal": 11,
		"executable": "/usr/bin/crashy",
		"stacktrace": [
			{
				"crash_thread": true,
				"frames": [
					{
						"address": 4198560,
						"build_id": "deadbeef",
						"build_id_offset": 160,
						"function_name": "crashy"
					}
				]
			}
		]
	}`)
	st, err := ParseCoreJSON(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Threads_) != 1 || len(st.Threads_[0].Frames) != 1 {
		t.Fatalf("unexpected stacktrace shape: %+v", st)
	}
	f := st.Threads_[0].Frames[0].(*frame.CoreFrame)
	if f.Address != 4198560 {
		t.Errorf("Address = %d, want 4198560", f.Address)
	}
	if f.BuildIDOffset != 160 {
		t.Errorf("BuildIDOffset = %d, want 160", f.BuildIDOffset)
	}

	out, err := MarshalCoreJSON(st)
	if err != nil {
		t.Fatalf("remarshal error: %v", err)
	}
	if !bytes.Contains(out, []byte(`"address":4198560`)) {
		t.Errorf("re-emitted JSON does not carry a numeric address: %s", out)
	}
	if !bytes.Contains(out, []byte(`"build_id_offset":160`)) {
		t.Errorf("re-emitted JSON does not carry a numeric build_id_offset: %s", out)
	}
}

func TestJavaCausedByParse(t *testing.T) {
	src := `Exception in thread "main" java.lang.RuntimeException: boom
	at com.example.A.a(A.java:10)
Caused by: java.lang.NullPointerException
	at com.example.B.b(B.java:20)
`
	st, err := ParseJava([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ExceptionClass != "java.lang.RuntimeException" {
		t.Errorf("exception class = %q", st.ExceptionClass)
	}
	if st.CausedBy == nil || st.CausedBy.ExceptionClass != "java.lang.NullPointerException" {
		t.Fatalf("expected a caused-by chain")
	}
}

func TestJSAnonymousFrame(t *testing.T) {
	st, err := ParseJS([]byte("TypeError: x is not a function\n    at /app/index.js:5:3\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Thread_.Frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(st.Thread_.Frames))
	}
	f := st.Thread_.Frames[0].(*frame.JSFrame)
	if f.Function != "" || f.File != "/app/index.js" || f.Line != 5 || f.Column != 3 {
		t.Errorf("unexpected frame: %+v", f)
	}
}
