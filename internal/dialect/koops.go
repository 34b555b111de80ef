package dialect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stealthrocket/crashreport/internal/frame"
)

var (
	koopsTimestampRe = regexp.MustCompile(`^\[\s*\d+\.\d+\s*\]\s*`)
	koopsFrameRe     = regexp.MustCompile(`^\[<([0-9a-fA-F]+)>\]\s*(\?)?\s*([^+]+)\+0x([0-9a-fA-F]+)/0x([0-9a-fA-F]+)(?:\s*\[([^\]]+)\])?`)
	koopsFromRe      = regexp.MustCompile(`from\s*\[<([0-9a-fA-F]+)>\]\s*\(([^+]+)\+0x([0-9a-fA-F]+)/0x([0-9a-fA-F]+)\)`)
	koopsTaintRe     = regexp.MustCompile(`Tainted:\s*([A-Za-z ]+)`)
	koopsModulesRe   = regexp.MustCompile(`Modules linked in:\s*(.*)`)
	koopsVersionRe   = regexp.MustCompile(`Linux version (\S+)`)
)

// taintLetters maps the one-letter codes of a "Tainted:" line to the
// TaintFlags field they set. 'O' and 'E' each appear twice.
var taintLetters = []struct {
	letter byte
	set    func(*frame.TaintFlags)
}{
	{'P', func(t *frame.TaintFlags) { t.Proprietary = true }},
	{'O', func(t *frame.TaintFlags) { t.OutOfTree = true }},
	{'F', func(t *frame.TaintFlags) { t.ForcedLoad = true }},
	{'R', func(t *frame.TaintFlags) { t.ForcedRemoval = true }},
	{'E', func(t *frame.TaintFlags) { t.Unsigned = true }},
	{'M', func(t *frame.TaintFlags) { t.MachineCheck = true }},
	{'B', func(t *frame.TaintFlags) { t.BadPage = true }},
	{'U', func(t *frame.TaintFlags) { t.UserspaceTaint = true }},
	{'D', func(t *frame.TaintFlags) { t.DiedRecently = true }},
	{'A', func(t *frame.TaintFlags) { t.ACPIOverridden = true }},
	{'W', func(t *frame.TaintFlags) { t.Warning = true }},
	{'C', func(t *frame.TaintFlags) { t.Staging = true }},
	{'I', func(t *frame.TaintFlags) { t.FirmwareWorkaround = true }},
	{'O', func(t *frame.TaintFlags) { t.OOTModule = true }},
	{'E', func(t *frame.TaintFlags) { t.UnsignedModule = true }},
	{'L', func(t *frame.TaintFlags) { t.SoftLockup = true }},
}

// ParseKoops parses a kernel oops: an optional leading `[ TIMESTAMP ]`
// stamp on each frame line, `[<ADDR>] ?| func+0xOFF/0xLEN [module]` frame
// lines with an optional "from" caller tuple, a `Tainted:` line, a
// `Modules linked in:` line and a kernel version line.
func ParseKoops(text []byte) (*frame.KoopsStacktrace, error) {
	st := &frame.KoopsStacktrace{Thread_: &frame.Thread{Dialect: frame.DialectKoops}}

	for _, raw := range strings.Split(string(text), "\n") {
		line := koopsTimestampRe.ReplaceAllString(raw, "")
		line = strings.TrimRight(line, "\r")

		if m := koopsFrameRe.FindStringSubmatch(line); m != nil {
			addr, _ := strconv.ParseUint(m[1], 16, 64)
			off, _ := strconv.ParseUint(m[4], 16, 64)
			length, _ := strconv.ParseUint(m[5], 16, 64)
			f := &frame.KoopsFrame{
				Address:        addr,
				Reliable:       m[2] == "",
				Function:       strings.TrimSpace(m[3]),
				FunctionOffset: off,
				FunctionLength: length,
				Module:         m[6],
			}
			if fm := koopsFromRe.FindStringSubmatch(line); fm != nil {
				fAddr, _ := strconv.ParseUint(fm[1], 16, 64)
				fOff, _ := strconv.ParseUint(fm[3], 16, 64)
				fLen, _ := strconv.ParseUint(fm[4], 16, 64)
				f.HasFrom = true
				f.FromAddress = fAddr
				f.FromReliable = true
				f.FromFunction = strings.TrimSpace(fm[2])
				f.FromFunctionOffset = fOff
				f.FromFunctionLength = fLen
			}
			st.Thread_.Frames = append(st.Thread_.Frames, f)
			continue
		}

		if m := koopsTaintRe.FindStringSubmatch(line); m != nil {
			parseTaint(&st.Taint, m[1])
			continue
		}

		if m := koopsModulesRe.FindStringSubmatch(line); m != nil {
			st.Modules = strings.Fields(m[1])
			continue
		}

		if m := koopsVersionRe.FindStringSubmatch(line); m != nil {
			st.KernelVersion = m[1]
			continue
		}
	}

	return st, nil
}

// parseTaint sets every TaintFlags field whose letter appears anywhere in
// the taint string. Spaces and letters without an entry (such as 'G') are
// ignored.
func parseTaint(t *frame.TaintFlags, s string) {
	for i := 0; i < len(s); i++ {
		for _, tl := range taintLetters {
			if s[i] == tl.letter {
				tl.set(t)
			}
		}
	}
}

// ShortTextKoops renders a short summary of the oops's top frame.
func ShortTextKoops(s *frame.KoopsStacktrace) string {
	if len(s.Thread_.Frames) == 0 {
		return "(no frames)"
	}
	return s.Thread_.Frames[0].String()
}
