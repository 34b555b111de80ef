// Package callgraph builds a static call graph from an ELF binary's
// disassembled functions and derives a short, architecture-stable
// fingerprint string for each one.
package callgraph

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// FDE describes one function's code range as recovered from .eh_frame: the
// load bias of the binary it belongs to, and the function's start address
// and byte length.
type FDE struct {
	ExecBase     uint64
	StartAddress uint64
	Length       uint64
}

// PLTEntry is one resolved Procedure Linkage Table stub: the address a
// direct call lands on, and the external symbol name it resolves to.
type PLTEntry struct {
	Address uint64
	Symbol  string
}

// Disassembler decodes x86 instructions and fetches the raw code bytes
// backing a function, wrapping golang.org/x/arch/x86/x86asm.Decode.
type Disassembler interface {
	// CodeAt returns the function body bytes for [addr, addr+length).
	CodeAt(addr, length uint64) ([]byte, error)
	// Decode decodes one instruction from the front of code, which begins
	// at program counter pc.
	Decode(code []byte, pc uint64) (x86asm.Inst, error)
}

// Graph is a static call graph over one ELF binary's functions, plus enough
// retained code to compute fingerprints on demand.
type Graph struct {
	dis      Disassembler
	callees  map[uint64][]uint64
	code     map[uint64][]byte
	length   map[uint64]uint64
	pltNames map[uint64]string
}

// BuildGraph decodes every FDE's instructions, collecting direct CALL
// targets into a callee adjacency map keyed by function start address.
func BuildGraph(fdes []FDE, plt []PLTEntry, code Disassembler) *Graph {
	g := &Graph{
		dis:      code,
		callees:  make(map[uint64][]uint64, len(fdes)),
		code:     make(map[uint64][]byte, len(fdes)),
		length:   make(map[uint64]uint64, len(fdes)),
		pltNames: make(map[uint64]string, len(plt)),
	}
	for _, p := range plt {
		g.pltNames[p.Address] = p.Symbol
	}
	for _, fde := range fdes {
		body, err := code.CodeAt(fde.StartAddress, fde.Length)
		if err != nil {
			continue
		}
		g.code[fde.StartAddress] = body
		g.length[fde.StartAddress] = fde.Length
		g.callees[fde.StartAddress] = decodeCallees(body, fde.StartAddress, code)
	}
	return g
}

// decodeCallees walks code instruction by instruction, collecting the
// sorted unique set of absolute targets of direct CALL instructions with a
// single relative-displacement operand.
func decodeCallees(code []byte, base uint64, dis Disassembler) []uint64 {
	seen := map[uint64]bool{}
	pc := base
	for off := 0; off < len(code); {
		inst, err := dis.Decode(code[off:], pc)
		if err != nil || inst.Len == 0 {
			break
		}
		if isCall(inst) {
			if target, ok := relTarget(inst, pc); ok {
				seen[target] = true
			}
		}
		off += inst.Len
		pc += uint64(inst.Len)
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func mnemonic(inst x86asm.Inst) string {
	return strings.ToUpper(inst.Op.String())
}

func isCall(inst x86asm.Inst) bool {
	switch mnemonic(inst) {
	case "CALL", "CALLB", "CALLW", "CALLL", "CALLQ":
		return true
	}
	return false
}

func isJump(inst x86asm.Inst) bool {
	return strings.HasPrefix(mnemonic(inst), "J")
}

func relTarget(inst x86asm.Inst, pc uint64) (uint64, bool) {
	if len(inst.Args) == 0 || inst.Args[0] == nil {
		return 0, false
	}
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return pc + uint64(inst.Len) + uint64(int64(rel)), true
}

// Fingerprint summarizes the function at addr's control-flow and libcall
// profile per the boolean-probe / libcalls / calltree algorithm: a sequence
// of `key:value` fragments joined by spaces.
func (g *Graph) Fingerprint(addr uint64) string {
	code, ok := g.code[addr]
	if !ok {
		return ""
	}

	var jEql, jSgn, jUsn, andOr, shift, hasCycle bool
	length := g.length[addr]
	pc := addr
	for off := 0; off < len(code); {
		inst, err := g.dis.Decode(code[off:], pc)
		if err != nil || inst.Len == 0 {
			break
		}
		op := mnemonic(inst)
		switch op {
		case "JE", "JNE", "JZ", "JNZ":
			jEql = true
		case "JL", "JLE", "JG", "JGE":
			jSgn = true
		case "JB", "JBE", "JA", "JAE":
			jUsn = true
		case "AND", "OR":
			andOr = true
		case "SHL", "SHR", "SAL", "SAR", "ROL", "ROR":
			shift = true
		}
		if isJump(inst) {
			if target, ok := relTarget(inst, pc); ok {
				if target >= addr && target < addr+length {
					hasCycle = true
				}
			}
		}
		off += inst.Len
		pc += uint64(inst.Len)
	}

	frags := []string{
		boolFrag("j_eql", jEql),
		boolFrag("j_sgn", jSgn),
		boolFrag("j_usn", jUsn),
		boolFrag("and_or", andOr),
		boolFrag("shift", shift),
		boolFrag("has_cycle", hasCycle),
		"libcalls:" + g.pltSetFragment(g.directLibcalls(addr)),
		"calltree:" + g.pltSetFragment(g.leafLibcalls(addr, 6)),
	}
	return strings.Join(frags, " ")
}

func boolFrag(key string, v bool) string {
	if v {
		return key + ":1"
	}
	return key + ":0"
}

func (g *Graph) directLibcalls(addr uint64) map[string]bool {
	out := map[string]bool{}
	for _, callee := range g.callees[addr] {
		if name, ok := g.pltNames[callee]; ok {
			out[name] = true
		}
	}
	return out
}

// leafLibcalls follows the call graph up to depth levels deep, retaining
// only callees that resolve to a PLT symbol (a "leaf" in the sense that the
// call graph does not extend into the external library).
func (g *Graph) leafLibcalls(addr uint64, depth int) map[string]bool {
	out := map[string]bool{}
	visited := map[uint64]bool{addr: true}
	frontier := []uint64{addr}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []uint64
		for _, f := range frontier {
			for _, callee := range g.callees[f] {
				if name, ok := g.pltNames[callee]; ok {
					out[name] = true
					continue
				}
				if !visited[callee] {
					visited[callee] = true
					next = append(next, callee)
				}
			}
		}
		frontier = next
	}
	return out
}

func (g *Graph) pltSetFragment(set map[string]bool) string {
	if len(set) == 0 {
		return "-"
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// HashFingerprint returns the SHA-1 hex digest of a fingerprint string, for
// callers that want to replace a long fingerprint with a fixed-size tag and
// set fingerprint_hashed accordingly.
func HashFingerprint(fp string) string {
	sum := sha1.Sum([]byte(fp))
	return hex.EncodeToString(sum[:])
}
