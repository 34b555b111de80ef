package symtab

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
)

// Location is a resolved source position, optionally one frame of an
// inlining chain (HumanName/StableName innermost first).
type Location struct {
	File       string
	Line       int64
	Column     int64
	Inlined    bool
	HumanName  string
	StableName string
}

type pcRange = [2]uint64

type subprogram struct {
	Entry     *dwarf.Entry
	CU        *dwarf.Entry
	Inlines   []*dwarf.Entry
	Namespace string
}

type subprogramRange struct {
	Range      pcRange
	Subprogram *subprogram
}

// DwarfResolver resolves a native code address to source location and
// function name information using an ELF binary's DWARF debug sections,
// used as a fallback when the unstrip table's range entries lack a file or
// line.
type DwarfResolver struct {
	d           *dwarf.Data
	r           *dwarf.Reader
	subprograms []subprogramRange

	onceSourceOffsetNotFound sync.Once
}

// NewDwarfResolver opens the DWARF sections of the ELF file at path and
// indexes its subprograms for lookup.
func NewDwarfResolver(path string) (*DwarfResolver, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symtab: open %s: %w", path, err)
	}
	defer f.Close()

	d, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("symtab: %s: no usable DWARF data: %w", path, err)
	}

	resolver := &DwarfResolver{d: d, r: d.Reader()}
	resolver.index()
	return resolver, nil
}

func (d *DwarfResolver) index() {
	for {
		ent, err := d.r.Next()
		if err != nil || ent == nil {
			break
		}
		if ent.Tag == dwarf.TagCompileUnit {
			d.indexCompileUnit(ent, "")
		} else {
			d.r.SkipChildren()
		}
	}
}

func (d *DwarfResolver) indexCompileUnit(cu *dwarf.Entry, ns string) {
	d.indexAny(cu, ns, cu)
}

func (d *DwarfResolver) indexAny(cu *dwarf.Entry, ns string, e *dwarf.Entry) {
	for e.Children {
		ent, err := d.r.Next()
		if err != nil || ent == nil {
			return
		}
		switch ent.Tag {
		case 0:
			return
		case dwarf.TagSubprogram:
			d.indexSubprogram(cu, ns, ent)
		case dwarf.TagNamespace:
			d.indexNamespace(cu, ns, ent)
		default:
			d.indexAny(cu, ns, ent)
		}
	}
}

func (d *DwarfResolver) indexNamespace(cu *dwarf.Entry, ns string, e *dwarf.Entry) {
	if name, ok := e.Val(dwarf.AttrName).(string); ok {
		ns += name + "::"
	}
	d.indexCompileUnit(cu, ns)
}

func (d *DwarfResolver) indexSubprogram(cu *dwarf.Entry, ns string, e *dwarf.Entry) {
	var inlines []*dwarf.Entry
	for e.Children {
		ent, err := d.r.Next()
		if err != nil || ent == nil || ent.Tag == 0 {
			break
		}
		if ent.Tag != dwarf.TagInlinedSubroutine {
			d.r.SkipChildren()
			continue
		}
		inlines = append(inlines, ent)
		d.r.SkipChildren()
	}

	ranges, err := d.d.Ranges(e)
	if err != nil {
		log.Printf("symtab: failed to read DWARF ranges: %s", err)
		return
	}

	spgm := &subprogram{Entry: e, CU: cu, Inlines: inlines, Namespace: ns}
	for _, r := range ranges {
		d.subprograms = append(d.subprograms, subprogramRange{Range: r, Subprogram: spgm})
	}
}

// Resolve looks up the DWARF source location and function name chain for a
// native code address, innermost inlined frame first.
func (d *DwarfResolver) Resolve(addr uint64) []Location {
	var spgm *subprogram
	for _, sr := range d.subprograms {
		if sr.Range[0] <= addr && addr < sr.Range[1] {
			spgm = sr.Subprogram
			break
		}
	}
	if spgm == nil {
		d.onceSourceOffsetNotFound.Do(func() {
			log.Printf("symtab: no DWARF subprogram range covers address 0x%x (silencing further misses)", addr)
		})
		return nil
	}

	lr, err := d.d.LineReader(spgm.CU)
	if err != nil || lr == nil {
		log.Printf("symtab: failed to read DWARF line table: %s", err)
		return nil
	}

	type lineEntry struct {
		pos     dwarf.LineReaderPos
		address uint64
	}
	var lines []lineEntry
	var le dwarf.LineEntry
	for {
		pos := lr.Tell()
		err = lr.Next(&le)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("symtab: failed to iterate DWARF lines: %s", err)
			break
		}
		lines = append(lines, lineEntry{pos: pos, address: le.Address})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].address < lines[j].address })

	i := sort.Search(len(lines), func(i int) bool { return lines[i].address >= addr })
	if i == len(lines) {
		return nil
	}
	l := lines[i]
	if l.address != addr {
		if i == 0 {
			return nil
		}
		l = lines[i-1]
	}

	lr.Seek(l.pos)
	if err := lr.Next(&le); err != nil {
		return nil
	}

	human, stable := d.namesForSubprogram(spgm.Entry, spgm)
	locs := make([]Location, 0, 1+len(spgm.Inlines))
	locs = append(locs, Location{
		File:       le.File.Name,
		Line:       int64(le.Line),
		Column:     int64(le.Column),
		Inlined:    len(spgm.Inlines) > 0,
		HumanName:  human,
		StableName: stable,
	})

	if len(spgm.Inlines) > 0 {
		files := lr.Files()
		for i := len(spgm.Inlines) - 1; i >= 0; i-- {
			f := spgm.Inlines[i]
			fileIdx, ok := f.Val(dwarf.AttrCallFile).(int64)
			if !ok || fileIdx >= int64(len(files)) {
				break
			}
			file := files[fileIdx]
			line, _ := f.Val(dwarf.AttrCallLine).(int64)
			col, _ := f.Val(dwarf.AttrCallColumn).(int64)
			human, stable := d.namesForSubprogram(f, nil)
			locs = append(locs, Location{
				File:       file.Name,
				Line:       line,
				Column:     col,
				Inlined:    i != 0,
				HumanName:  human,
				StableName: stable,
			})
		}
	}

	return locs
}

// namesForSubprogram returns a human-readable, namespace-qualified name and
// the most ABI-stable name (linkage name, falling back to the same
// namespace-qualified one) for e, walking up the abstract-origin chain for
// inlined subroutines.
func (d *DwarfResolver) namesForSubprogram(e *dwarf.Entry, spgm *subprogram) (human, stable string) {
	var err error
	r := d.d.Reader()
	for {
		ao, ok := e.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset)
		if !ok {
			break
		}
		r.Seek(ao)
		e, err = r.Next()
		if err != nil {
			break
		}
	}

	if spgm == nil {
		for _, s := range d.subprograms {
			if s.Subprogram.Entry.Offset == e.Offset {
				spgm = s.Subprogram
				break
			}
		}
	}

	var ns string
	if spgm != nil {
		ns = spgm.Namespace
	}

	name, _ := e.Val(dwarf.AttrName).(string)
	name = ns + name
	stableName, ok := e.Val(dwarf.AttrLinkageName).(string)
	if !ok {
		stableName = name
	}
	return name, stableName
}
