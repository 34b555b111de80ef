// Package unwind drives native coredump unwinding: it validates the
// coredump and executable, enumerates the executable segments loaded at
// crash time, and turns whatever an injected unwind library collaborator
// reports into a frame.CoreStacktrace.
package unwind

import (
	"fmt"

	"github.com/stealthrocket/crashreport/internal/cerrors"
	"github.com/stealthrocket/crashreport/internal/frame"
)

// Segment is one executable PT_LOAD mapping recovered from the coredump,
// tied back to the backing file that was mapped at that address range.
type Segment struct {
	Offset   uint64
	Vaddr    uint64
	FileSize uint64
	MemSize  uint64
	FileName string
	BuildID  string
}

func (s Segment) contains(ip uint64) bool {
	return ip >= s.Vaddr && ip < s.Vaddr+s.MemSize
}

// ELF abstracts the coredump and executable inspection steps of §4.G over
// stdlib debug/elf: core header validation, PT_LOAD/PF_X enumeration, and
// NT_GNU_BUILD_ID / NT_PRSTATUS note reading.
type ELF interface {
	// IsCore reports whether path's ELF header has type ET_CORE.
	IsCore(path string) (bool, error)
	// NewerThanCore reports whether exe's mtime is after core's mtime.
	NewerThanCore(core, exe string) (bool, error)
	// ExecSegments returns the PF_X PT_LOAD segments of the executable at
	// path, without vaddr/filename resolution (Segment.Vaddr/FileSize are
	// populated; FileName/BuildID are filled in by the caller).
	ExecSegments(path string) ([]Segment, error)
	// BuildID reads the NT_GNU_BUILD_ID note of the ELF file at path.
	BuildID(path string) (string, error)
	// CrashSignal reads the faulting signal number from the coredump's
	// NT_PRSTATUS note.
	CrashSignal(corePath string) (uint16, error)
}

// Cursor steps backward through one thread's call stack.
type Cursor struct {
	ThreadID int
}

// FunctionInfo is what the unwind library's symbol resolver reports about
// the procedure containing an instruction pointer, when available.
type FunctionInfo struct {
	Name        string
	InitialLoc  uint64
	Length      uint64
	HasLocation bool
}

// UnwindLibrary abstracts the external unwind library collaborator named
// out of scope by the crash engine proper: everything that actually walks
// stack frames inside a coredump. This package never implements it; a
// binding layer does, and injects it into Driver.
type UnwindLibrary interface {
	// NumThreads returns the number of threads with recoverable call
	// stacks in the coredump, or 0 if only the faulting thread's stack is
	// available.
	NumThreads(core, exe string) (int, error)
	// Cursors returns one cursor per thread to unwind: every thread if
	// NumThreads > 0, otherwise a single cursor for the faulting thread.
	Cursors(core, exe string) ([]Cursor, error)
	// Step advances cur to the caller's frame. ok is false once unwinding
	// reaches the end of the stack; err reports a step failure.
	Step(cur Cursor) (ok bool, err error)
	// IP returns cur's current instruction pointer.
	IP(cur Cursor) (uint64, error)
	// Resolve looks up procedure information for ip, when the library's
	// own symbol table (as opposed to the ELF/DWARF fallback) has it.
	Resolve(ip uint64) (FunctionInfo, bool)
}

// Driver orchestrates coredump unwinding per §4.G, with its ELF inspection
// and actual stack-walking delegated to injected collaborators.
type Driver struct {
	ELF     ELF
	Library UnwindLibrary

	// DebugParser records each per-thread unwind error as a warning in
	// Warnings. A failed step ends that thread's unwinding whether or not
	// it is set, and never aborts the whole run; without it the error is
	// dropped.
	DebugParser bool

	// Warnings receives non-fatal per-thread unwind errors when
	// DebugParser is set. Run does not read this field; callers inspect
	// it afterward.
	Warnings []error
}

// Run implements steps 1-5 of the unwinder driver contract: validates the
// coredump and executable, enumerates executable segments, asks the
// injected unwind library for one cursor per thread, steps each to
// exhaustion, and assembles a frame.CoreStacktrace. The operation succeeds
// as long as at least one thread produced at least one frame.
func (d *Driver) Run(core, exe string) (*frame.CoreStacktrace, error) {
	isCore, err := d.ELF.IsCore(core)
	if err != nil {
		return nil, fmt.Errorf("unwind: reading core header: %w", err)
	}
	if !isCore {
		return nil, fmt.Errorf("unwind: %s is not an ET_CORE file", core)
	}

	newer, err := d.ELF.NewerThanCore(core, exe)
	if err != nil {
		return nil, fmt.Errorf("unwind: comparing mtimes: %w", err)
	}
	if newer {
		return nil, &cerrors.BinaryNewerThanCoreError{Executable: exe, Core: core}
	}

	segments, err := d.ELF.ExecSegments(exe)
	if err != nil {
		return nil, fmt.Errorf("unwind: enumerating executable segments: %w", err)
	}
	buildID, err := d.ELF.BuildID(exe)
	if err != nil {
		return nil, fmt.Errorf("unwind: reading build-id: %w", err)
	}
	for i := range segments {
		segments[i].FileName = exe
		segments[i].BuildID = buildID
	}

	signal, err := d.ELF.CrashSignal(core)
	if err != nil {
		return nil, fmt.Errorf("unwind: reading crash signal: %w", err)
	}

	cursors, err := d.Library.Cursors(core, exe)
	if err != nil {
		return nil, fmt.Errorf("unwind: obtaining thread cursors: %w", err)
	}

	st := &frame.CoreStacktrace{Signal: signal, Executable: exe, OnlyCrashThread: len(cursors) <= 1}
	for _, cur := range cursors {
		t, frameCount := d.unwindThread(cur, segments)
		st.Threads_ = append(st.Threads_, t)
		if st.Crash == nil && frameCount > 0 {
			st.Crash = t
		}
	}

	if !anyThreadHasFrames(st.Threads_) {
		return nil, fmt.Errorf("unwind: no thread produced any frame")
	}
	return st, nil
}

func anyThreadHasFrames(threads []*frame.Thread) bool {
	for _, t := range threads {
		if len(t.Frames) > 0 {
			return true
		}
	}
	return false
}

// unwindThread steps cur until it runs out of stack, IP hits zero, or a
// step fails, resolving each instruction pointer against segments and the
// library's own symbol table.
func (d *Driver) unwindThread(cur Cursor, segments []Segment) (*frame.Thread, int) {
	t := &frame.Thread{Dialect: frame.DialectCore}
	step := 0
	for {
		ip, err := d.Library.IP(cur)
		if err != nil || ip == 0 {
			break
		}

		f := &frame.CoreFrame{Address: ip}
		if seg, ok := findSegment(segments, ip); ok {
			f.BuildID = seg.BuildID
			f.HasBuildID = seg.BuildID != ""
			f.BuildIDOffset = ip - seg.Vaddr
			f.FileName = seg.FileName
			f.HasFileName = true
		}
		if info, ok := d.Library.Resolve(ip); ok {
			f.Function = info.Name
			f.HasFunction = info.Name != ""
		}
		t.Frames = append(t.Frames, f)

		ok, err := d.Library.Step(cur)
		if err != nil {
			if d.DebugParser {
				d.Warnings = append(d.Warnings, &cerrors.UnwindError{ThreadID: cur.ThreadID, StepIndex: step, Detail: err.Error()})
				break
			}
			break
		}
		if !ok {
			break
		}
		step++
	}
	return t, len(t.Frames)
}

func findSegment(segments []Segment, ip uint64) (Segment, bool) {
	for _, s := range segments {
		if s.contains(ip) {
			return s, true
		}
	}
	return Segment{}, false
}
