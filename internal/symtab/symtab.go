// Package symtab resolves native code addresses to build-ids, file names
// and module names via an eu-unstrip-style range table, with a DWARF-backed
// fallback for entries the table leaves coarse.
package symtab

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Entry is one eu-unstrip-style mapping row: the address range [Start,
// Start+Length) belongs to the module named ModName, loaded from FileName,
// identified by BuildID.
type Entry struct {
	Start    uint64
	Length   uint64
	BuildID  string
	FileName string
	ModName  string
}

func (e Entry) contains(addr uint64) bool {
	return addr >= e.Start && addr < e.Start+e.Length
}

// Table is a sorted collection of Entry ranges supporting address lookup.
type Table struct {
	entries []Entry
}

// ParseUnstrip parses the whitespace-separated `eu-unstrip -n` line format:
//
//	START+LENGTH BUILDID@BASE FILENAME MODNAME
//
// BUILDID is a lowercase hex string; FILENAME and MODNAME may be "-" when
// unknown.
func ParseUnstrip(r io.Reader) (*Table, error) {
	t := &Table{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("symtab: line %d: expected 4 fields, got %d", lineNo, len(fields))
		}
		start, length, err := parseRange(fields[0])
		if err != nil {
			return nil, fmt.Errorf("symtab: line %d: %w", lineNo, err)
		}
		buildID := fields[1]
		if at := strings.IndexByte(buildID, '@'); at >= 0 {
			buildID = buildID[:at]
		}
		e := Entry{
			Start:    start,
			Length:   length,
			BuildID:  buildID,
			FileName: unknownDash(fields[2]),
			ModName:  unknownDash(fields[3]),
		}
		t.entries = append(t.entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].Start < t.entries[j].Start })
	return t, nil
}

func unknownDash(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func parseRange(s string) (start, length uint64, err error) {
	plus := strings.IndexByte(s, '+')
	if plus < 0 {
		return 0, 0, fmt.Errorf("malformed range %q", s)
	}
	start, err = strconv.ParseUint(strings.TrimPrefix(s[:plus], "0x"), 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed range start %q: %w", s, err)
	}
	length, err = strconv.ParseUint(strings.TrimPrefix(s[plus+1:], "0x"), 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed range length %q: %w", s, err)
	}
	return start, length, nil
}

// Lookup returns the entry containing addr, if any.
func (t *Table) Lookup(addr uint64) (Entry, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Start+t.entries[i].Length > addr })
	if i < len(t.entries) && t.entries[i].contains(addr) {
		return t.entries[i], true
	}
	return Entry{}, false
}
