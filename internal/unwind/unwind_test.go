package unwind

import (
	"fmt"
	"testing"

	"github.com/stealthrocket/crashreport/internal/cerrors"
)

type fakeELF struct {
	isCore  bool
	newer   bool
	segments []Segment
	buildID string
	signal  uint16
}

func (f *fakeELF) IsCore(path string) (bool, error)            { return f.isCore, nil }
func (f *fakeELF) NewerThanCore(core, exe string) (bool, error) { return f.newer, nil }
func (f *fakeELF) ExecSegments(path string) ([]Segment, error) { return f.segments, nil }
func (f *fakeELF) BuildID(path string) (string, error)         { return f.buildID, nil }
func (f *fakeELF) CrashSignal(path string) (uint16, error)     { return f.signal, nil }

type fakeLibrary struct {
	cursors []Cursor
	ips     map[int][]uint64 // threadID -> remaining IPs, consumed front to back
	fail    map[int]bool     // threadID -> step fails after first IP
}

func (l *fakeLibrary) NumThreads(core, exe string) (int, error) { return len(l.cursors), nil }
func (l *fakeLibrary) Cursors(core, exe string) ([]Cursor, error) { return l.cursors, nil }

func (l *fakeLibrary) IP(cur Cursor) (uint64, error) {
	ips := l.ips[cur.ThreadID]
	if len(ips) == 0 {
		return 0, nil
	}
	return ips[0], nil
}

func (l *fakeLibrary) Step(cur Cursor) (bool, error) {
	if l.fail[cur.ThreadID] {
		return false, fmt.Errorf("fake step failure")
	}
	ips := l.ips[cur.ThreadID]
	if len(ips) <= 1 {
		l.ips[cur.ThreadID] = nil
		return false, nil
	}
	l.ips[cur.ThreadID] = ips[1:]
	return true, nil
}

func (l *fakeLibrary) Resolve(ip uint64) (FunctionInfo, bool) {
	return FunctionInfo{Name: fmt.Sprintf("fn_%x", ip)}, true
}

func TestDriverRunAssemblesThreads(t *testing.T) {
	elf := &fakeELF{
		isCore:   true,
		segments: []Segment{{Vaddr: 0x1000, MemSize: 0x1000}},
		buildID:  "deadbeef",
		signal:   11,
	}
	lib := &fakeLibrary{
		cursors: []Cursor{{ThreadID: 0}, {ThreadID: 1}},
		ips: map[int][]uint64{
			0: {0x1010, 0x1020},
			1: {0x1030},
		},
	}

	d := &Driver{ELF: elf, Library: lib}
	st, err := d.Run("core", "exe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Signal != 11 || len(st.Threads_) != 2 {
		t.Fatalf("unexpected result: %+v", st)
	}
	if len(st.Threads_[0].Frames) != 2 || len(st.Threads_[1].Frames) != 1 {
		t.Fatalf("unexpected frame counts: %d, %d", len(st.Threads_[0].Frames), len(st.Threads_[1].Frames))
	}
	f0 := st.Threads_[0].Frames[0]
	if f0.FunctionName() != "fn_1010" {
		t.Errorf("unexpected function name: %q", f0.FunctionName())
	}
}

func TestDriverRunSucceedsIfAnyThreadHasFrames(t *testing.T) {
	elf := &fakeELF{isCore: true, signal: 6}
	lib := &fakeLibrary{
		cursors: []Cursor{{ThreadID: 0}, {ThreadID: 1}},
		ips: map[int][]uint64{
			0: nil,
			1: {0x2000},
		},
	}
	d := &Driver{ELF: elf, Library: lib}
	st, err := d.Run("core", "exe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Threads_[1].Frames) != 1 {
		t.Fatalf("expected thread 1 to have one frame")
	}
}

func TestDriverRunFailsWhenNoThreadHasFrames(t *testing.T) {
	elf := &fakeELF{isCore: true}
	lib := &fakeLibrary{cursors: []Cursor{{ThreadID: 0}}, ips: map[int][]uint64{0: nil}}
	d := &Driver{ELF: elf, Library: lib}
	if _, err := d.Run("core", "exe"); err == nil {
		t.Fatalf("expected an error when no thread produces any frame")
	}
}

func TestDriverRunRejectsNonCore(t *testing.T) {
	elf := &fakeELF{isCore: false}
	d := &Driver{ELF: elf, Library: &fakeLibrary{}}
	if _, err := d.Run("core", "exe"); err == nil {
		t.Fatalf("expected an error for a non-ET_CORE file")
	}
}

func TestDriverRunRecordsWarningsWhenDebugParserSet(t *testing.T) {
	elf := &fakeELF{isCore: true}
	lib := &fakeLibrary{
		cursors: []Cursor{{ThreadID: 0}},
		ips:     map[int][]uint64{0: {0x3000}},
		fail:    map[int]bool{0: true},
	}
	d := &Driver{ELF: elf, Library: lib, DebugParser: true}
	st, err := d.Run("core", "exe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(d.Warnings))
	}
	if _, ok := d.Warnings[0].(*cerrors.UnwindError); !ok {
		t.Errorf("expected a *cerrors.UnwindError, got %T", d.Warnings[0])
	}
	if len(st.Threads_[0].Frames) != 1 {
		t.Errorf("expected the one successfully read frame to survive")
	}
}
