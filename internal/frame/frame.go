// Package frame implements the polymorphic frame/thread/stacktrace model
// shared by every crash dialect. Generic code dispatches on the Dialect tag
// rather than through a virtual base class: each dialect is a concrete Go
// struct implementing the small Frame interface.
package frame

// Dialect tags which crash format a Frame, Thread or Stacktrace belongs to.
type Dialect int

const (
	DialectGDB Dialect = iota
	DialectCore
	DialectPython
	DialectKoops
	DialectJava
	DialectRuby
	DialectJS
)

func (d Dialect) String() string {
	switch d {
	case DialectGDB:
		return "gdb"
	case DialectCore:
		return "core"
	case DialectPython:
		return "python"
	case DialectKoops:
		return "koops"
	case DialectJava:
		return "java"
	case DialectRuby:
		return "ruby"
	case DialectJS:
		return "javascript"
	default:
		return "unknown"
	}
}

// Frame is implemented by every per-dialect frame type. Generic operations
// (the normalizer, the distance metrics, the report emitter) go through this
// interface; dialect-specific code works with the concrete struct.
type Frame interface {
	Dialect() Dialect
	// FunctionName returns the best available name for the function this
	// frame is executing. When none is known it returns a placeholder:
	// "??" for Core frames, and whatever the parser stored ("??" or "")
	// for the other dialects.
	FunctionName() string
	// Equal reports whether two frames of the same dialect are identical.
	// Frames of different dialects are never equal.
	Equal(Frame) bool
	// Clone returns a deep, independent copy of the frame.
	Clone() Frame
	// String renders a short, single-line human form of the frame.
	String() string
}

// Thread is an ordered sequence of frames, topmost (innermost) first. Next
// is an optional link to a sibling thread. The parsers in this module do not
// set it: GDB and Core stacktraces keep their threads in their own slice,
// and Java chains its threads through JavaStacktrace.CausedBy.
type Thread struct {
	Dialect Dialect
	Frames  []Frame
	Next    *Thread
}

// Clone returns a deep copy of the thread, including its sibling chain.
func (t *Thread) Clone() *Thread {
	if t == nil {
		return nil
	}
	frames := make([]Frame, len(t.Frames))
	for i, f := range t.Frames {
		frames[i] = f.Clone()
	}
	return &Thread{
		Dialect: t.Dialect,
		Frames:  frames,
		Next:    t.Next.Clone(),
	}
}

// Equal compares two threads frame by frame; sibling chains are not
// considered (callers compare whole stacktraces for that).
func (t *Thread) Equal(other *Thread) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Dialect != other.Dialect || len(t.Frames) != len(other.Frames) {
		return false
	}
	for i := range t.Frames {
		if !t.Frames[i].Equal(other.Frames[i]) {
			return false
		}
	}
	return true
}

// FunctionNames returns the ordered list of function names for the thread's
// frames, topmost first, used pervasively by the distance metrics.
func (t *Thread) FunctionNames() []string {
	names := make([]string, len(t.Frames))
	for i, f := range t.Frames {
		names[i] = f.FunctionName()
	}
	return names
}

// Stacktrace is implemented by every dialect's top-level stacktrace type. It
// exposes the thread list uniformly; single-threaded dialects return a
// one-element slice wrapping their sole thread.
type Stacktrace interface {
	Dialect() Dialect
	Threads() []*Thread
	// CrashThread returns the thread responsible for the crash, or nil if
	// the dialect doesn't distinguish one (single-threaded dialects
	// always return their one thread).
	CrashThread() *Thread
	Clone() Stacktrace
}
