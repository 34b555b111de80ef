package normalize

import (
	"testing"

	"github.com/stealthrocket/crashreport/internal/frame"
)

func gdbFrame(fn string) *frame.GDBFrame {
	return &frame.GDBFrame{Function: fn, HasAddress: true, Address: 0x1000}
}

// gdbLibcFrame builds a frame for one of the qualified always-removable
// names (__libc_start_main, clone, start_thread), attributing it to libc
// so the file/library qualifier in alwaysRemovable is satisfied.
func gdbLibcFrame(fn string) *frame.GDBFrame {
	return &frame.GDBFrame{Function: fn, HasAddress: true, Address: 0x1000, Library: "/lib/x86_64-linux-gnu/libc.so.6"}
}

func TestNormalizeRemovesStartupFrames(t *testing.T) {
	th := &frame.Thread{Dialect: frame.DialectGDB, Frames: []frame.Frame{
		gdbFrame("crashy"),
		gdbFrame("main"),
		gdbLibcFrame("__libc_start_main"),
		gdbFrame("_start"),
	}}
	out := Normalize(th)
	if len(out.Frames) != 1 || out.Frames[0].FunctionName() != "crashy" {
		t.Fatalf("expected only crashy to remain, got %v", out.FunctionNames())
	}
}

func TestNormalizeKeepsUnqualifiedRemovableNames(t *testing.T) {
	th := &frame.Thread{Dialect: frame.DialectGDB, Frames: []frame.Frame{
		gdbFrame("crashy"),
		gdbFrame("clone"),
	}}
	out := Normalize(th)
	if len(out.Frames) != 2 || out.Frames[1].FunctionName() != "clone" {
		t.Fatalf("expected a user-defined clone() outside libc to survive, got %v", out.FunctionNames())
	}
}

func TestNormalizeRemovesWithAbove(t *testing.T) {
	th := &frame.Thread{Dialect: frame.DialectGDB, Frames: []frame.Frame{
		gdbFrame("__assert_fail"),
		gdbFrame("g_log"),
		gdbFrame("g_logv"),
		gdbFrame("crashy"),
	}}
	out := Normalize(th)
	if len(out.Frames) != 1 || out.Frames[0].FunctionName() != "crashy" {
		t.Fatalf("expected crashy to be the sole remaining frame, got %v", out.FunctionNames())
	}
}

func TestNormalizeStripsPrefixes(t *testing.T) {
	th := &frame.Thread{Dialect: frame.DialectGDB, Frames: []frame.Frame{
		gdbFrame("IA__gtk_widget_show"),
		gdbFrame("__GI___libc_malloc"),
	}}
	out := Normalize(th)
	if out.Frames[0].FunctionName() != "gtk_widget_show" {
		t.Errorf("got %q, want gtk_widget_show", out.Frames[0].FunctionName())
	}
	if out.Frames[1].FunctionName() != "__libc_malloc" {
		t.Errorf("got %q, want __libc_malloc", out.Frames[1].FunctionName())
	}
}

func TestNormalizeArchSuffixUnification(t *testing.T) {
	f := &frame.GDBFrame{
		Function:   "__memcpy_ssse3_back",
		SourceFile: "../sysdeps/x86_64/multiarch/memcpy-ssse3-back.S",
		Library:    "/lib/x86_64-linux-gnu/libc.so.6",
		HasAddress: true,
	}
	th := &frame.Thread{Dialect: frame.DialectGDB, Frames: []frame.Frame{f}}
	out := Normalize(th)
	if out.Frames[0].FunctionName() != "memcpy" {
		t.Errorf("got %q, want memcpy", out.Frames[0].FunctionName())
	}
}

func TestNormalizeCollapsesRecursion(t *testing.T) {
	th := &frame.Thread{Dialect: frame.DialectGDB, Frames: []frame.Frame{
		gdbFrame("recurse"),
		gdbFrame("recurse"),
		gdbFrame("recurse"),
		gdbFrame("caller"),
	}}
	out := Normalize(th)
	names := out.FunctionNames()
	if len(names) != 2 || names[0] != "recurse" || names[1] != "caller" {
		t.Fatalf("expected recursion collapsed to one frame, got %v", names)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	th := &frame.Thread{Dialect: frame.DialectGDB, Frames: []frame.Frame{
		gdbFrame("IA__gtk_widget_show"),
		gdbFrame("crashy"),
		gdbFrame("main"),
		gdbLibcFrame("__libc_start_main"),
		gdbFrame("_start"),
	}}
	once := Normalize(th.Clone())
	twice := Normalize(once.Clone())
	if !once.Equal(twice) {
		t.Fatalf("normalize not idempotent:\nonce:  %v\ntwice: %v", once.FunctionNames(), twice.FunctionNames())
	}
}

func TestNormalizeAnonymizesCorePaths(t *testing.T) {
	th := &frame.Thread{Dialect: frame.DialectCore, Frames: []frame.Frame{
		&frame.CoreFrame{Address: 0x1, Function: "crashy", HasFunction: true, FileName: "/home/alice/proj/crashy.c", HasFileName: true},
	}}
	out := Normalize(th)
	got := out.Frames[0].(*frame.CoreFrame).FileName
	if got != "/home/$USER/proj/crashy.c" {
		t.Errorf("got %q", got)
	}
}

func TestPairUnknownsRenamesMatchedGaps(t *testing.T) {
	a := &frame.Thread{Dialect: frame.DialectGDB, Frames: []frame.Frame{
		gdbFrame("crashy"),
		&frame.GDBFrame{Function: "??"},
		gdbFrame("main"),
	}}
	b := &frame.Thread{Dialect: frame.DialectGDB, Frames: []frame.Frame{
		gdbFrame("crashy"),
		&frame.GDBFrame{Function: "??"},
		gdbFrame("main"),
	}}
	PairUnknowns(a, b)
	an := a.Frames[1].FunctionName()
	bn := b.Frames[1].FunctionName()
	if an != bn || an == "??" {
		t.Fatalf("expected matched synthetic names, got a=%q b=%q", an, bn)
	}
}
