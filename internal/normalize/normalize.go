// Package normalize implements the dialect-aware frame filtering and
// renaming pass that collapses incidental variation between two
// occurrences of the same crash: exit-path trimming, glibc arch-suffix
// unification, recursion collapse, and path anonymization.
package normalize

import (
	"regexp"
	"strings"

	"github.com/stealthrocket/crashreport/internal/frame"
)

// exitFrameFunctions is scanned top-down; the lowest (deepest) match wins
// and everything above it, including itself, is discarded.
var exitFrameFunctions = map[string]bool{
	"__run_exit_handlers": true,
	"raise":               true,
	"__GI_raise":          true,
	"exit":                true,
	"abort":               true,
	"__GI_abort":          true,
	"__chk_fail":          true,
	"__stack_chk_fail":    true,
	"do_exit":             true,
	"kill":                true,
}

// prefixRules pairs a qualifying prefix match with the literal prefix
// actually stripped: GLib/GTK/GDK's "IA__" wrapper prefix is only stripped
// when it is followed by "gdk", "g_" or "gtk" (matching the whole first
// field), but only the leading "IA__" itself is removed.
type prefixRule struct{ match, strip string }

var prefixRules = []prefixRule{
	{"IA__gdk", "IA__"},
	{"IA__g_", "IA__"},
	{"IA__gtk", "IA__"},
	{"__GI_", "__GI_"},
}

// archSuffixes maps an arch-specific glibc symbol suffix to the canonical
// function name it should unify to, when applied to one of archUnifyBase.
var archSuffixes = []string{"_sse2", "_sse2_bsf", "_ssse3", "_ssse3_rep", "_ssse3_back", "_sse42", "_ia32"}

var archUnifyBase = map[string]bool{
	"memchr": true, "memcmp": true, "memcpy": true, "memmove": true, "memset": true,
	"rawmemchr": true, "strcasecmp": true, "strcasecmp_l": true, "strcat": true,
	"strchr": true, "strchrnul": true, "strcmp": true, "strcpy": true, "strcspn": true,
	"strlen": true, "strncmp": true, "strncpy": true, "strpbrk": true, "strrchr": true,
	"strspn": true, "strstr": true, "strtok": true,
}

// alwaysRemovable maps a removable function name to the file/library
// substrings that must qualify it, matching sr_gdb_frame_is_removable's
// file check; a nil/empty list means the name is removable regardless of
// its source file or library (as spec.md leaves `_start` and `main`
// unqualified).
var alwaysRemovable = map[string][]string{
	"_start":            nil,
	"__libc_start_main": {"libc"},
	"clone":             {"clone.S", "libc"},
	"start_thread":      {"pthread_create.c", "libpthread"},
	"main":              nil,
}

func isAlwaysRemovable(name, file, lib string) bool {
	quals, ok := alwaysRemovable[name]
	if !ok {
		return false
	}
	if len(quals) == 0 {
		return true
	}
	for _, q := range quals {
		if strings.Contains(file, q) || strings.Contains(lib, q) {
			return true
		}
	}
	return false
}

// removableWithAbove are internal allocator, buffer-overflow check, and
// glib helpers; when matched the frame and everything above it (closer to
// the crash) is discarded.
var removableWithAbove = map[string]bool{
	"__assert_fail":            true,
	"__assert_fail_base":       true,
	"__chk_fail":                true,
	"__longjmp_chk":             true,
	"__malloc_assert":           true,
	"__strcat_chk":              true,
	"__strcpy_chk":              true,
	"__strncpy_chk":             true,
	"__vsnprintf_chk":           true,
	"___vsnprintf_chk":          true,
	"__snprintf_chk":            true,
	"___snprintf_chk":           true,
	"__vasprintf_chk":           true,
	"__vsprintf_chk":            true,
	"___sprintf_chk":            true,
	"__fwprintf_chk":            true,
	"__asprintf_chk":            true,
	"___printf_chk":             true,
	"___fprintf_chk":            true,
	"__vswprintf_chk":           true,
	"malloc_consolidate":        true,
	"malloc_printerr":           true,
	"_int_malloc":               true,
	"_int_free":                 true,
	"_int_realloc":              true,
	"_int_memalign":             true,
	"__libc_free":               true,
	"__libc_malloc":             true,
	"__libc_memalign":           true,
	"__libc_realloc":            true,
	"__posix_memalign":          true,
	"__libc_calloc":             true,
	"__libc_fatal":              true,
	"g_log":                     true,
	"g_logv":                    true,
	"g_assertion_message":       true,
	"g_assertion_message_expr":  true,
	"g_closure_invoke":          true,
	"g_signal_emit_valist":      true,
	"g_signal_emit":             true,
}

// mallocHelpers are the removableWithAbove entries that are glibc allocator
// internals; they only qualify when the frame's source file is malloc.c.
var mallocHelpers = map[string]bool{
	"malloc_consolidate": true, "malloc_printerr": true, "_int_malloc": true,
	"_int_free": true, "_int_realloc": true, "_int_memalign": true,
	"__libc_free": true, "__libc_malloc": true, "__libc_memalign": true,
	"__libc_realloc": true, "__posix_memalign": true, "__libc_calloc": true,
}

var homePathRe = regexp.MustCompile(`^/home/[^/]+`)

// Normalize rewrites t in place per the dialect-dispatched rules of
// the normalizer, and also returns it for convenient chaining.
func Normalize(t *frame.Thread) *frame.Thread {
	if t == nil {
		return nil
	}
	switch t.Dialect {
	case frame.DialectGDB:
		normalizeNative(t, true)
	case frame.DialectCore:
		normalizeNative(t, false)
	default:
		// Other dialects carry no glibc/exit-path noise to filter.
	}
	collapseRecursion(t)
	return t
}

// functionNameOf returns a frame's function name and whether it is actually
// known (as opposed to the "??" placeholder the Frame interface renders for
// unresolved frames).
func functionNameOf(f frame.Frame) (name string, ok bool) {
	name = f.FunctionName()
	return name, name != "??" && name != ""
}

func fileNameOf(f frame.Frame) string {
	switch v := f.(type) {
	case *frame.GDBFrame:
		return v.SourceFile
	case *frame.CoreFrame:
		return v.FileName
	}
	return ""
}

func libraryNameOf(f frame.Frame) string {
	if v, ok := f.(*frame.GDBFrame); ok {
		return v.Library
	}
	return ""
}

func setFunctionName(f frame.Frame, name string) {
	switch v := f.(type) {
	case *frame.GDBFrame:
		v.Function = name
	case *frame.CoreFrame:
		v.Function = name
		v.HasFunction = true
	}
}

// normalizeNative runs the exit-frame trim, prefix strip, arch unify,
// always-removable/removable-with-above filtering and null-deref cleanup
// shared by GDB and Core threads. hasLibraryField indicates whether the
// dialect can carry a library name (only GDB can).
func normalizeNative(t *frame.Thread, hasLibraryField bool) {
	trimAtExitFrame(t)
	for _, f := range t.Frames {
		name, ok := functionNameOf(f)
		if !ok {
			continue
		}
		for _, r := range prefixRules {
			if strings.HasPrefix(name, r.match) {
				name = strings.TrimPrefix(name, r.strip)
				break
			}
		}
		setFunctionName(f, name)
	}
	for _, f := range t.Frames {
		name, ok := functionNameOf(f)
		if !ok {
			continue
		}
		file := fileNameOf(f)
		lib := libraryNameOf(f)
		if unified, did := unifyArchSuffix(name, file, lib); did {
			setFunctionName(f, unified)
		}
	}

	removeAlwaysAndWithAbove(t)
	trimNullDerefFrames(t)
	if hasLibraryField {
		// GDB has no file-path anonymization target; Core does.
	}
	anonymizeCorePaths(t)
}

// trimAtExitFrame finds the lowest (deepest) exit-path frame and discards
// it along with everything above it.
func trimAtExitFrame(t *frame.Thread) {
	cut := -1
	for i, f := range t.Frames {
		name, ok := functionNameOf(f)
		if !ok {
			continue
		}
		if exitFrameFunctions[name] {
			cut = i // keep overwriting: last match is the deepest
		}
	}
	if cut >= 0 {
		t.Frames = t.Frames[cut+1:]
	}
}

// unifyArchSuffix matches an arch-specialized glibc symbol name exactly,
// then sanity-checks the source file or library against any of a handful of
// loosely related substrings (matching any one suffices).
func unifyArchSuffix(name, file, lib string) (string, bool) {
	for base := range archUnifyBase {
		for _, suffix := range archSuffixes {
			if name != "__"+base+suffix {
				continue
			}
			if strings.Contains(file, base) ||
				strings.Contains(file, "/sysdeps/") ||
				strings.Contains(file, "libc.so") ||
				strings.Contains(lib, "libc.so") {
				return base, true
			}
		}
	}
	return "", false
}

func removeAlwaysAndWithAbove(t *frame.Thread) {
	cut := -1
	var kept []frame.Frame
	for i, f := range t.Frames {
		name, ok := functionNameOf(f)
		if ok && removableWithAbove[name] && (!mallocHelpers[name] || strings.Contains(fileNameOf(f), "malloc.c")) {
			cut = i
		}
	}
	start := 0
	if cut >= 0 {
		start = cut + 1
	}
	for i := start; i < len(t.Frames); i++ {
		name, ok := functionNameOf(t.Frames[i])
		if ok && isAlwaysRemovable(name, fileNameOf(t.Frames[i]), libraryNameOf(t.Frames[i])) {
			continue
		}
		kept = append(kept, t.Frames[i])
	}
	t.Frames = kept
}

func trimNullDerefFrames(t *frame.Thread) {
	isNullUnknown := func(f frame.Frame) bool {
		_, known := functionNameOf(f)
		if known {
			return false
		}
		switch v := f.(type) {
		case *frame.GDBFrame:
			return !v.HasAddress
		case *frame.CoreFrame:
			return v.Address == 0
		}
		return false
	}
	if len(t.Frames) > 0 && isNullUnknown(t.Frames[0]) {
		t.Frames = t.Frames[1:]
	}
	if n := len(t.Frames); n > 0 && isNullUnknown(t.Frames[n-1]) {
		t.Frames = t.Frames[:n-1]
	}
}

func anonymizeCorePaths(t *frame.Thread) {
	for _, f := range t.Frames {
		c, ok := f.(*frame.CoreFrame)
		if !ok || !c.HasFileName {
			continue
		}
		c.FileName = homePathRe.ReplaceAllLiteralString(c.FileName, "/home/$USER")
	}
}

// collapseRecursion drops the deeper of two adjacent frames with identical,
// non-"??" function names, repeating to a fixed point.
func collapseRecursion(t *frame.Thread) {
	for {
		changed := false
		var kept []frame.Frame
		for i, f := range t.Frames {
			if i > 0 {
				prevName, prevOK := functionNameOf(kept[len(kept)-1])
				curName, curOK := functionNameOf(f)
				if prevOK && curOK && prevName == curName && prevName != "??" && prevName != "" {
					changed = true
					continue
				}
			}
			kept = append(kept, f)
		}
		t.Frames = kept
		if !changed {
			break
		}
	}
}

// PairUnknowns implements comparison-time paired-"??" renaming: any "??"
// frame that sits between two frames whose function names match the
// corresponding frames of the other thread is renamed to a synthetic
// `__unknown_function_<k>` consistent across both threads.
func PairUnknowns(a, b *frame.Thread) {
	n := len(a.Frames)
	if len(b.Frames) != n {
		return
	}
	k := 0
	for i := 0; i < n; i++ {
		an, aok := functionNameOf(a.Frames[i])
		bn, bok := functionNameOf(b.Frames[i])
		aUnknown := !aok || an == "??"
		bUnknown := !bok || bn == "??"
		if !aUnknown || !bUnknown {
			continue
		}
		if !frameHasNeighborMatch(a.Frames, b.Frames, i) {
			continue
		}
		synthetic := syntheticUnknownName(k)
		k++
		setFunctionName(a.Frames[i], synthetic)
		setFunctionName(b.Frames[i], synthetic)
	}
}

func frameHasNeighborMatch(a, b []frame.Frame, i int) bool {
	matches := func(j int) bool {
		if j < 0 || j >= len(a) {
			return false
		}
		an, aok := functionNameOf(a[j])
		bn, bok := functionNameOf(b[j])
		return aok && bok && an == bn && an != "??"
	}
	return matches(i-1) && matches(i+1)
}

func syntheticUnknownName(k int) string {
	return "__unknown_function_" + itoa(k)
}

func itoa(k int) string {
	if k == 0 {
		return "0"
	}
	var digits []byte
	for k > 0 {
		digits = append([]byte{byte('0' + k%10)}, digits...)
		k /= 10
	}
	return string(digits)
}
