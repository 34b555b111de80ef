package symtab

import (
	"strings"
	"testing"
)

const exampleUnstrip = `0x400000+0x1000 deadbeef01234567@0x400000 /usr/bin/crashy crashy
0x401000+0x2000 cafebabe89abcdef@0x401000 /lib/libfoo.so.1 libfoo
`

func TestParseUnstripAndLookup(t *testing.T) {
	table, err := ParseUnstrip(strings.NewReader(exampleUnstrip))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e, ok := table.Lookup(0x400500)
	if !ok {
		t.Fatalf("expected a lookup hit at 0x400500")
	}
	if e.BuildID != "deadbeef01234567" || e.ModName != "crashy" {
		t.Errorf("unexpected entry: %+v", e)
	}

	e2, ok := table.Lookup(0x402000)
	if !ok || e2.ModName != "libfoo" {
		t.Errorf("expected libfoo entry, got %+v ok=%v", e2, ok)
	}

	if _, ok := table.Lookup(0x500000); ok {
		t.Errorf("expected no entry to cover an address past all ranges")
	}
}

func TestParseUnstripDashIsUnknown(t *testing.T) {
	table, err := ParseUnstrip(strings.NewReader("0x1000+0x10 deadbeef@0x1000 - -\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, ok := table.Lookup(0x1005)
	if !ok {
		t.Fatalf("expected a lookup hit")
	}
	if e.FileName != "" || e.ModName != "" {
		t.Errorf("expected dash fields to map to empty strings, got %+v", e)
	}
}

func TestParseUnstripRejectsMalformedLine(t *testing.T) {
	if _, err := ParseUnstrip(strings.NewReader("not enough fields\n")); err == nil {
		t.Fatalf("expected an error for a malformed line")
	}
}
