package frame

import "fmt"

// KoopsFrame is one `[<ADDR>] ?| func+0xOFF/0xLEN [module]` line of a kernel
// oops, plus the optional "from" caller tuple the oops printer sometimes
// includes.
type KoopsFrame struct {
	Address        uint64
	Reliable       bool
	Function       string
	FunctionOffset uint64
	FunctionLength uint64
	Module         string

	HasFrom            bool
	FromAddress        uint64
	FromReliable       bool
	FromFunction       string
	FromFunctionOffset uint64
	FromFunctionLength uint64
	FromModule         string
}

func (f *KoopsFrame) Dialect() Dialect     { return DialectKoops }
func (f *KoopsFrame) FunctionName() string { return f.Function }

func (f *KoopsFrame) Equal(other Frame) bool {
	o, ok := other.(*KoopsFrame)
	if !ok {
		return false
	}
	return f.Address == o.Address &&
		f.Function == o.Function &&
		f.FunctionOffset == o.FunctionOffset &&
		f.FunctionLength == o.FunctionLength &&
		f.Module == o.Module &&
		f.Reliable == o.Reliable
}

func (f *KoopsFrame) Clone() Frame {
	c := *f
	return &c
}

func (f *KoopsFrame) String() string {
	marker := ""
	if !f.Reliable {
		marker = "? "
	}
	return fmt.Sprintf("[<%016x>] %s%s+0x%x/0x%x [%s]", f.Address, marker, f.Function, f.FunctionOffset, f.FunctionLength, f.Module)
}

// TaintFlags records the one-letter codes of a kernel "Tainted:" line.
type TaintFlags struct {
	Proprietary       bool
	OutOfTree         bool
	ForcedLoad        bool
	ForcedRemoval     bool
	Unsigned          bool
	MachineCheck      bool
	BadPage           bool
	UserspaceTaint    bool
	DiedRecently      bool
	ACPIOverridden    bool
	Warning           bool
	Staging           bool
	FirmwareWorkaround bool
	OOTModule         bool
	UnsignedModule    bool
	SoftLockup        bool
}

// KoopsStacktrace wraps the single thread of frames parsed from a kernel
// oops, along with the kernel version, taint flags and loaded module list.
type KoopsStacktrace struct {
	Thread_       *Thread
	KernelVersion string
	Taint         TaintFlags
	Modules       []string
}

func (s *KoopsStacktrace) Dialect() Dialect     { return DialectKoops }
func (s *KoopsStacktrace) Threads() []*Thread   { return []*Thread{s.Thread_} }
func (s *KoopsStacktrace) CrashThread() *Thread { return s.Thread_ }

func (s *KoopsStacktrace) Clone() Stacktrace {
	return &KoopsStacktrace{
		Thread_:       s.Thread_.Clone(),
		KernelVersion: s.KernelVersion,
		Taint:         s.Taint,
		Modules:       append([]string(nil), s.Modules...),
	}
}
