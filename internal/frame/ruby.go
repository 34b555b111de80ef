package frame

import "fmt"

// RubyFrame is one `path:line:in '[rescue in ][block (N levels) in ]func'`
// entry of a Ruby backtrace.
type RubyFrame struct {
	File            string
	Line            int
	Function        string
	SpecialFunction bool
	BlockLevel      int
	RescueLevel     int
}

func (f *RubyFrame) Dialect() Dialect     { return DialectRuby }
func (f *RubyFrame) FunctionName() string { return f.Function }

func (f *RubyFrame) Equal(other Frame) bool {
	o, ok := other.(*RubyFrame)
	if !ok {
		return false
	}
	return f.File == o.File && f.Line == o.Line && f.Function == o.Function &&
		f.SpecialFunction == o.SpecialFunction && f.BlockLevel == o.BlockLevel && f.RescueLevel == o.RescueLevel
}

func (f *RubyFrame) Clone() Frame {
	c := *f
	return &c
}

func (f *RubyFrame) String() string {
	return fmt.Sprintf("%s:%d:in `%s'", f.File, f.Line, f.Function)
}

// RubyStacktrace wraps the single thread of a Ruby backtrace and the
// exception name that raised it.
type RubyStacktrace struct {
	Thread_       *Thread
	ExceptionName string
}

func (s *RubyStacktrace) Dialect() Dialect     { return DialectRuby }
func (s *RubyStacktrace) Threads() []*Thread   { return []*Thread{s.Thread_} }
func (s *RubyStacktrace) CrashThread() *Thread { return s.Thread_ }

func (s *RubyStacktrace) Clone() Stacktrace {
	return &RubyStacktrace{Thread_: s.Thread_.Clone(), ExceptionName: s.ExceptionName}
}
