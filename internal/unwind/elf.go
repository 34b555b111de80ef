package unwind

import (
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
)

// StdELF implements ELF using the standard library's debug/elf package.
type StdELF struct{}

func (StdELF) IsCore(path string) (bool, error) {
	f, err := elf.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return f.Type == elf.ET_CORE, nil
}

func (StdELF) NewerThanCore(core, exe string) (bool, error) {
	coreInfo, err := os.Stat(core)
	if err != nil {
		return false, err
	}
	exeInfo, err := os.Stat(exe)
	if err != nil {
		return false, err
	}
	return exeInfo.ModTime().After(coreInfo.ModTime()), nil
}

func (StdELF) ExecSegments(path string) ([]Segment, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var segments []Segment
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Flags&elf.PF_X == 0 {
			continue
		}
		segments = append(segments, Segment{
			Offset:   prog.Off,
			Vaddr:    prog.Vaddr,
			FileSize: prog.Filesz,
			MemSize:  prog.Memsz,
		})
	}
	return segments, nil
}

func (StdELF) BuildID(path string) (string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_NOTE {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}
		if id, ok := findGNUBuildIDNote(data); ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("unwind: %s: no NT_GNU_BUILD_ID note found", path)
}

// findGNUBuildIDNote scans an ELF note section's raw bytes for an
// NT_GNU_BUILD_ID note (type 3, owner "GNU\x00") and returns its payload as
// lowercase hex.
func findGNUBuildIDNote(data []byte) (string, bool) {
	const noteGNUBuildID = 3
	for len(data) >= 12 {
		nameSz := binary.LittleEndian.Uint32(data[0:4])
		descSz := binary.LittleEndian.Uint32(data[4:8])
		noteType := binary.LittleEndian.Uint32(data[8:12])
		off := 12
		nameEnd := off + align4(int(nameSz))
		descEnd := nameEnd + align4(int(descSz))
		if descEnd > len(data) || nameEnd > len(data) {
			break
		}
		name := data[off:nameEnd]
		desc := data[nameEnd:descEnd]
		if noteType == noteGNUBuildID && len(name) >= 3 && string(name[:3]) == "GNU" {
			return hex.EncodeToString(desc[:descSz]), true
		}
		data = data[descEnd:]
	}
	return "", false
}

func align4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// CrashSignal reads the faulting signal number from the coredump's
// NT_PRSTATUS note. The prstatus payload begins with a kernel siginfo
// excerpt whose first word is the signal number on Linux/x86-64.
func (StdELF) CrashSignal(corePath string) (uint16, error) {
	f, err := elf.Open(corePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	const noteTypePRStatus = 1
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_NOTE {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			continue
		}
		if sig, ok := findPRStatusSignal(data, noteTypePRStatus); ok {
			return sig, nil
		}
	}
	return 0, fmt.Errorf("unwind: %s: no NT_PRSTATUS note found", corePath)
}

func findPRStatusSignal(data []byte, wantType uint32) (uint16, bool) {
	for len(data) >= 12 {
		nameSz := binary.LittleEndian.Uint32(data[0:4])
		descSz := binary.LittleEndian.Uint32(data[4:8])
		noteType := binary.LittleEndian.Uint32(data[8:12])
		off := 12
		nameEnd := off + align4(int(nameSz))
		descEnd := nameEnd + align4(int(descSz))
		if descEnd > len(data) || nameEnd > len(data) {
			break
		}
		desc := data[nameEnd:descEnd]
		if noteType == wantType && len(desc) >= 12 {
			// struct elf_prstatus: si_signo is the first of three
			// leading 32-bit fields (pr_info.si_signo).
			return uint16(binary.LittleEndian.Uint32(desc[0:4])), true
		}
		data = data[descEnd:]
	}
	return 0, false
}
