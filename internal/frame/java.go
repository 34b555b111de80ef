package frame

import "fmt"

// JavaFrame is one `\tat class.method(File.java:123)` entry of a Java
// stack trace.
type JavaFrame struct {
	ClassMethod string
	File        string
	Line        int
	HasLine     bool
	ClassPath   string
	HasClassPath bool
	Native      bool
}

func (f *JavaFrame) Dialect() Dialect     { return DialectJava }
func (f *JavaFrame) FunctionName() string { return f.ClassMethod }

func (f *JavaFrame) Equal(other Frame) bool {
	o, ok := other.(*JavaFrame)
	if !ok {
		return false
	}
	return f.ClassMethod == o.ClassMethod && f.File == o.File && f.Line == o.Line &&
		f.HasLine == o.HasLine && f.Native == o.Native
}

func (f *JavaFrame) Clone() Frame {
	c := *f
	return &c
}

func (f *JavaFrame) String() string {
	if f.Native {
		return fmt.Sprintf("%s(Native Method)", f.ClassMethod)
	}
	if f.HasLine {
		return fmt.Sprintf("%s(%s:%d)", f.ClassMethod, f.File, f.Line)
	}
	return fmt.Sprintf("%s(%s)", f.ClassMethod, f.File)
}

// JavaStacktrace is a chain of threads linked by CausedBy, one per
// `Caused by:` block in the original exception trace, plus the
// exception class/message that headed the outermost one.
type JavaStacktrace struct {
	ExceptionClass string
	Message        string
	ThreadName     string
	Thread_        *Thread
	CausedBy       *JavaStacktrace
}

func (s *JavaStacktrace) Dialect() Dialect { return DialectJava }

func (s *JavaStacktrace) Threads() []*Thread {
	var out []*Thread
	for cur := s; cur != nil; cur = cur.CausedBy {
		out = append(out, cur.Thread_)
	}
	return out
}

func (s *JavaStacktrace) CrashThread() *Thread { return s.Thread_ }

func (s *JavaStacktrace) Clone() Stacktrace {
	c := &JavaStacktrace{
		ExceptionClass: s.ExceptionClass,
		Message:        s.Message,
		ThreadName:     s.ThreadName,
		Thread_:        s.Thread_.Clone(),
	}
	if s.CausedBy != nil {
		c.CausedBy = s.CausedBy.Clone().(*JavaStacktrace)
	}
	return c
}
