package frame

import "fmt"

// CoreFrame is a single frame of a native (ELF coredump) stacktrace. Address
// is always known; everything else is filled in as far as symbolication
// succeeded.
type CoreFrame struct {
	Address           uint64
	BuildID           string
	HasBuildID        bool
	BuildIDOffset     uint64
	Function          string
	HasFunction       bool
	FileName          string
	HasFileName       bool
	Fingerprint       string
	FingerprintHashed bool
}

func (f *CoreFrame) Dialect() Dialect { return DialectCore }

func (f *CoreFrame) FunctionName() string {
	if f.HasFunction {
		return f.Function
	}
	return "??"
}

func (f *CoreFrame) Equal(other Frame) bool {
	o, ok := other.(*CoreFrame)
	if !ok {
		return false
	}
	return f.Address == o.Address &&
		f.BuildID == o.BuildID &&
		f.HasBuildID == o.HasBuildID &&
		f.BuildIDOffset == o.BuildIDOffset &&
		f.Function == o.Function &&
		f.HasFunction == o.HasFunction &&
		f.FileName == o.FileName &&
		f.HasFileName == o.HasFileName
}

func (f *CoreFrame) Clone() Frame {
	c := *f
	return &c
}

func (f *CoreFrame) String() string {
	if f.HasBuildID {
		return fmt.Sprintf("0x%x in %s (%s+0x%x)", f.Address, f.FunctionName(), f.BuildID, f.BuildIDOffset)
	}
	return fmt.Sprintf("0x%x in %s", f.Address, f.FunctionName())
}

// CoreStacktrace is the top-level object for a native coredump-derived
// stacktrace: the signal that killed the process, the executable path, and
// one or more threads.
type CoreStacktrace struct {
	Signal          uint16
	Executable      string
	Threads_        []*Thread
	Crash           *Thread
	OnlyCrashThread bool
}

func (s *CoreStacktrace) Dialect() Dialect     { return DialectCore }
func (s *CoreStacktrace) Threads() []*Thread   { return s.Threads_ }
func (s *CoreStacktrace) CrashThread() *Thread { return s.Crash }

func (s *CoreStacktrace) Clone() Stacktrace {
	c := &CoreStacktrace{
		Signal:          s.Signal,
		Executable:      s.Executable,
		OnlyCrashThread: s.OnlyCrashThread,
	}
	for _, t := range s.Threads_ {
		ct := t.Clone()
		c.Threads_ = append(c.Threads_, ct)
		if t == s.Crash {
			c.Crash = ct
		}
	}
	return c
}
