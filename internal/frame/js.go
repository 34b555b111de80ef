package frame

import "fmt"

// JSFrame is one `at func (file:line:column)` or anonymous
// `at file:line:column` entry of a JavaScript stack trace.
type JSFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

func (f *JSFrame) Dialect() Dialect     { return DialectJS }
func (f *JSFrame) FunctionName() string { return f.Function }

func (f *JSFrame) Equal(other Frame) bool {
	o, ok := other.(*JSFrame)
	if !ok {
		return false
	}
	return f.Function == o.Function && f.File == o.File && f.Line == o.Line && f.Column == o.Column
}

func (f *JSFrame) Clone() Frame {
	c := *f
	return &c
}

func (f *JSFrame) String() string {
	if f.Function == "" {
		return fmt.Sprintf("at %s:%d:%d", f.File, f.Line, f.Column)
	}
	return fmt.Sprintf("at %s (%s:%d:%d)", f.Function, f.File, f.Line, f.Column)
}

// JSStacktrace wraps the single thread of a JavaScript stack trace and the
// exception name/message that headed it.
type JSStacktrace struct {
	Thread_       *Thread
	ExceptionName string
}

func (s *JSStacktrace) Dialect() Dialect     { return DialectJS }
func (s *JSStacktrace) Threads() []*Thread   { return []*Thread{s.Thread_} }
func (s *JSStacktrace) CrashThread() *Thread { return s.Thread_ }

func (s *JSStacktrace) Clone() Stacktrace {
	return &JSStacktrace{Thread_: s.Thread_.Clone(), ExceptionName: s.ExceptionName}
}
