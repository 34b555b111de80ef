package frame

import "fmt"

// GDBFrame is a single `#N 0xADDR in func (args) at file:line` entry from a
// textual GDB backtrace.
type GDBFrame struct {
	Index        int
	Address      uint64
	HasAddress   bool
	Function     string
	FunctionType string
	Library      string
	SourceFile   string
	SourceLine   int
	Args         []NameValue
	Locals       []NameValue
}

// NameValue is a name=value pair, used for both GDB frame arguments and
// local variables. Bracketed/structured values are preserved opaquely in
// Value.
type NameValue struct {
	Name  string
	Value string
}

func (f *GDBFrame) Dialect() Dialect     { return DialectGDB }
func (f *GDBFrame) FunctionName() string { return f.Function }
func (f *GDBFrame) String() string {
	if f.HasAddress {
		return fmt.Sprintf("#%d 0x%016x in %s", f.Index, f.Address, f.Function)
	}
	return fmt.Sprintf("#%d ?? in %s", f.Index, f.Function)
}

func (f *GDBFrame) Equal(other Frame) bool {
	o, ok := other.(*GDBFrame)
	if !ok {
		return false
	}
	return f.Function == o.Function &&
		f.Address == o.Address &&
		f.HasAddress == o.HasAddress &&
		f.Library == o.Library &&
		f.SourceFile == o.SourceFile &&
		f.SourceLine == o.SourceLine
}

func (f *GDBFrame) Clone() Frame {
	c := *f
	c.Args = append([]NameValue(nil), f.Args...)
	c.Locals = append([]NameValue(nil), f.Locals...)
	return &c
}

// SharedLibStatus is the result of looking up an address in a GDB shared
// library map.
type SharedLibStatus int

const (
	SymsOK SharedLibStatus = iota
	SymsNotFound
	SymsWrong
)

// SharedLib is one line of a GDB "info sharedlibrary" style map:
// 0xFROM 0xTO Yes|No (*|) /path.
type SharedLib struct {
	From       uint64
	To         uint64
	SymsLoaded bool
	Path       string
}

// SharedLibMap supports address-range symbol-status lookups over a list of
// SharedLib entries collected alongside a GDB backtrace.
type SharedLibMap struct {
	Libs []SharedLib
}

// Lookup classifies an address against the shared library map: SymsOK if it
// falls in a range whose symbols loaded, SymsWrong if it falls in a range
// whose symbols did not load, SymsNotFound if no range contains it.
func (m *SharedLibMap) Lookup(addr uint64) SharedLibStatus {
	for _, lib := range m.Libs {
		if addr >= lib.From && addr < lib.To {
			if lib.SymsLoaded {
				return SymsOK
			}
			return SymsWrong
		}
	}
	return SymsNotFound
}

// GDBStacktrace is the top-level object produced by parsing a textual GDB
// backtrace: an ordered list of threads plus the shared library map.
type GDBStacktrace struct {
	Threads_     []*Thread
	Crash        *Thread
	SharedLibs   SharedLibMap
}

func (s *GDBStacktrace) Dialect() Dialect     { return DialectGDB }
func (s *GDBStacktrace) Threads() []*Thread   { return s.Threads_ }
func (s *GDBStacktrace) CrashThread() *Thread { return s.Crash }

func (s *GDBStacktrace) Clone() Stacktrace {
	c := &GDBStacktrace{SharedLibs: SharedLibMap{Libs: append([]SharedLib(nil), s.SharedLibs.Libs...)}}
	for _, t := range s.Threads_ {
		ct := t.Clone()
		c.Threads_ = append(c.Threads_, ct)
		if t == s.Crash {
			c.Crash = ct
		}
	}
	return c
}
