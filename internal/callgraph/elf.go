package callgraph

import (
	"debug/elf"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// ELFDisassembler implements Disassembler over one opened ELF executable's
// section data, decoding in 64-bit mode.
type ELFDisassembler struct {
	f *elf.File
}

// NewELFDisassembler opens path and wraps it for disassembly.
func NewELFDisassembler(path string) (*ELFDisassembler, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("callgraph: open %s: %w", path, err)
	}
	return &ELFDisassembler{f: f}, nil
}

// Close releases the underlying ELF file.
func (d *ELFDisassembler) Close() error { return d.f.Close() }

// CodeAt returns the raw bytes covering [addr, addr+length) from whichever
// loaded section contains that address.
func (d *ELFDisassembler) CodeAt(addr, length uint64) ([]byte, error) {
	for _, sec := range d.f.Sections {
		if sec.Addr == 0 || addr < sec.Addr || addr+length > sec.Addr+sec.Size {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("callgraph: read section %s: %w", sec.Name, err)
		}
		off := addr - sec.Addr
		return data[off : off+length], nil
	}
	return nil, fmt.Errorf("callgraph: no section covers address 0x%x length 0x%x", addr, length)
}

// Decode decodes one 64-bit x86 instruction from the front of code.
func (d *ELFDisassembler) Decode(code []byte, pc uint64) (x86asm.Inst, error) {
	return x86asm.Decode(code, 64)
}
