package frame

import "fmt"

// PythonFrame is one `File "...", line N, in func` entry of a Python
// traceback, with an optional following source line.
type PythonFrame struct {
	File        string
	Line        int
	Function    string
	IsModule    bool
	SourceText  string
	HasSource   bool
}

func (f *PythonFrame) Dialect() Dialect     { return DialectPython }
func (f *PythonFrame) FunctionName() string { return f.Function }

func (f *PythonFrame) Equal(other Frame) bool {
	o, ok := other.(*PythonFrame)
	if !ok {
		return false
	}
	return f.File == o.File && f.Line == o.Line && f.Function == o.Function && f.IsModule == o.IsModule
}

func (f *PythonFrame) Clone() Frame {
	c := *f
	return &c
}

func (f *PythonFrame) String() string {
	return fmt.Sprintf("%s:%d in %s", f.File, f.Line, f.Function)
}

// PythonStacktrace wraps a single Python thread plus the exception name
// that terminated the traceback. File/Line are promoted from the last
// (crashing) frame per the dialect's parse rule.
type PythonStacktrace struct {
	Thread_       *Thread
	ExceptionName string
	File          string
	Line          int
}

func (s *PythonStacktrace) Dialect() Dialect     { return DialectPython }
func (s *PythonStacktrace) Threads() []*Thread   { return []*Thread{s.Thread_} }
func (s *PythonStacktrace) CrashThread() *Thread { return s.Thread_ }

func (s *PythonStacktrace) Clone() Stacktrace {
	return &PythonStacktrace{Thread_: s.Thread_.Clone(), ExceptionName: s.ExceptionName, File: s.File, Line: s.Line}
}
