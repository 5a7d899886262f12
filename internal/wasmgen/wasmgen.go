// Package wasmgen lowers internal/ir.Module to a binary WebAssembly
// module: the format described in the WebAssembly core spec's Binary
// Format appendix. Section layout (type/import/function/memory/global/
// export/code) and the LEB128-and-sections shape of the encoder are
// grounded on other_examples' lhaig-intent wasmbe.go reference encoder,
// the closest thing in the retrieval pack to a hand-written wasm
// emitter; this package generalizes that shape from one fixed program
// to an arbitrary lowered ir.Module.
//
// print is not a wasm instruction, so PrintI/PrintF lower to calls on
// two synthetic host imports, "env"."print_i32" and "env"."print_f64",
// always imported ahead of whatever the Wabbit source itself imports.
// ^size (MemGrow) is defined in spec.md as growing memory by size bytes
// and evaluating to the new size in bytes, but wasm's memory.grow works
// in 64KiB pages; this back end rounds the requested byte count up to a
// whole number of pages (the interpreter and LLVM back ends stay exact,
// since neither is bound by wasm's page granularity).
package wasmgen

import (
	"encoding/binary"
	"math"

	"wabbitc/internal/ir"
	"wabbitc/internal/types"
)

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secCode     = 10
)

const (
	valI32 = 0x7F
	valF64 = 0x7C
)

const pageSize = 65536

func valtype(t types.Type) byte {
	if t == types.Float {
		return valF64
	}
	return valI32
}

// funcSig is one (params, result) pair, used both for synthetic print
// imports and for every Wabbit-level function and import.
type funcSig struct {
	params []types.Type
	ret    types.Type
}

// Encode lowers mod to a complete binary wasm module.
func Encode(mod *ir.Module) []byte {
	e := &encoder{mod: mod}
	e.layout()
	return e.emit()
}

type encoder struct {
	mod *ir.Module

	// Function index space: synthetic print imports, then the Wabbit
	// program's own imports, then its defined functions, in that order.
	funcIndex map[string]uint32
	sigs      []funcSig // type index space, 1:1 with the import+function order above
	numImports int
}

func (e *encoder) layout() {
	e.funcIndex = make(map[string]uint32)

	add := func(name string, sig funcSig) {
		e.funcIndex[name] = uint32(len(e.sigs))
		e.sigs = append(e.sigs, sig)
	}

	add("print_i32", funcSig{params: []types.Type{types.Int}, ret: types.Void})
	add("print_f64", funcSig{params: []types.Type{types.Float}, ret: types.Void})
	for _, imp := range e.mod.Imports {
		add(imp.Name, funcSig{params: imp.Params, ret: imp.Ret})
	}
	e.numImports = len(e.sigs)

	for _, fn := range e.mod.Funcs {
		add(fn.Name, funcSig{params: fn.Params, ret: fn.Ret})
	}
}

func (e *encoder) emit() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(secType, e.typeSection())...)
	out = append(out, section(secImport, e.importSection())...)
	out = append(out, section(secFunction, e.functionSection())...)
	out = append(out, section(secMemory, e.memorySection())...)
	out = append(out, section(secGlobal, e.globalSection())...)
	out = append(out, section(secExport, e.exportSection())...)
	out = append(out, section(secCode, e.codeSection())...)
	return out
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint64(len(content)))...)
	return append(out, content...)
}

func encodeSig(sig funcSig) []byte {
	out := []byte{0x60}
	out = append(out, vecLen(len(sig.params))...)
	for _, p := range sig.params {
		out = append(out, valtype(p))
	}
	if sig.ret == types.Void {
		out = append(out, vecLen(0)...)
	} else {
		out = append(out, vecLen(1)...)
		out = append(out, valtype(sig.ret))
	}
	return out
}

func (e *encoder) typeSection() []byte {
	out := vecLen(len(e.sigs))
	for _, sig := range e.sigs {
		out = append(out, encodeSig(sig)...)
	}
	return out
}

func (e *encoder) importSection() []byte {
	out := vecLen(e.numImports)
	out = append(out, strBytes("env")...)
	out = append(out, strBytes("print_i32")...)
	out = append(out, 0x00)
	out = append(out, uleb128(uint64(e.funcIndex["print_i32"]))...)

	out = append(out, strBytes("env")...)
	out = append(out, strBytes("print_f64")...)
	out = append(out, 0x00)
	out = append(out, uleb128(uint64(e.funcIndex["print_f64"]))...)

	for _, imp := range e.mod.Imports {
		out = append(out, strBytes("env")...)
		out = append(out, strBytes(imp.Name)...)
		out = append(out, 0x00)
		out = append(out, uleb128(uint64(e.funcIndex[imp.Name]))...)
	}
	return out
}

func (e *encoder) functionSection() []byte {
	out := vecLen(len(e.mod.Funcs))
	for i := range e.mod.Funcs {
		typeIdx := uint32(e.numImports + i)
		out = append(out, uleb128(uint64(typeIdx))...)
	}
	return out
}

func (e *encoder) memorySection() []byte {
	out := vecLen(1)
	out = append(out, 0x00) // flags: min only
	out = append(out, uleb128(1)...)
	return out
}

func (e *encoder) globalSection() []byte {
	out := vecLen(len(e.mod.Globals))
	for _, g := range e.mod.Globals {
		out = append(out, valtype(g.Typ))
		if g.Mutable {
			out = append(out, 0x01)
		} else {
			out = append(out, 0x00)
		}
		out = append(out, e.instrs(g.Init)...)
		out = append(out, 0x0B)
	}
	return out
}

func (e *encoder) exportSection() []byte {
	out := vecLen(2)
	out = append(out, strBytes("main")...)
	out = append(out, 0x00)
	out = append(out, uleb128(uint64(e.funcIndex["main"]))...)
	out = append(out, strBytes("memory")...)
	out = append(out, 0x02)
	out = append(out, uleb128(0)...)
	return out
}

func (e *encoder) codeSection() []byte {
	out := vecLen(len(e.mod.Funcs))
	for _, fn := range e.mod.Funcs {
		out = append(out, e.codeEntry(fn)...)
	}
	return out
}

func (e *encoder) codeEntry(fn *ir.Function) []byte {
	var locals []byte
	locals = append(locals, localDecls(fn.Locals)...)
	body := e.instrs(fn.Code)
	body = append(body, 0x0B)
	entry := append(locals, body...)
	out := uleb128(uint64(len(entry)))
	return append(out, entry...)
}

// localDecls groups consecutive same-typed locals into runs, the way
// wasm's local declaration vector expects.
func localDecls(locals []types.Type) []byte {
	type run struct {
		t     types.Type
		count int
	}
	var runs []run
	for _, t := range locals {
		if len(runs) > 0 && runs[len(runs)-1].t == t {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{t: t, count: 1})
	}
	out := vecLen(len(runs))
	for _, r := range runs {
		out = append(out, uleb128(uint64(r.count))...)
		out = append(out, valtype(r.t))
	}
	return out
}

// instrs translates a flat IR instruction stream (including nested
// If/Else/EndIf and Loop/CBreak/EndLoop markers) into wasm bytecode.
// Because wasm's structured control mirrors the IR's own markers
// almost exactly, this is a straight recursive-descent walk rather than
// the jump-table scheme internal/interp needs for its flat execution
// loop.
func (e *encoder) instrs(code []ir.Instr) []byte {
	var out []byte
	i := 0
	for i < len(code) {
		n := e.instr(code, i, &out)
		i += n
	}
	return out
}

// instr encodes code[i] (and, for If/Loop, everything up to and
// including its matching EndIf/EndLoop) into out, returning how many
// elements of code it consumed.
func (e *encoder) instr(code []ir.Instr, i int, out *[]byte) int {
	instr := code[i]
	switch instr.Op {
	case ir.ConstI:
		*out = append(*out, 0x41)
		*out = append(*out, sleb128(instr.Int)...)
		return 1
	case ir.ConstF:
		*out = append(*out, 0x44)
		*out = append(*out, f64bytes(instr.Float)...)
		return 1

	case ir.AddI:
		*out = append(*out, 0x6A)
		return 1
	case ir.SubI:
		*out = append(*out, 0x6B)
		return 1
	case ir.MulI:
		*out = append(*out, 0x6C)
		return 1
	case ir.DivI:
		*out = append(*out, 0x6D)
		return 1
	case ir.AddF:
		*out = append(*out, 0xA0)
		return 1
	case ir.SubF:
		*out = append(*out, 0xA1)
		return 1
	case ir.MulF:
		*out = append(*out, 0xA2)
		return 1
	case ir.DivF:
		*out = append(*out, 0xA3)
		return 1

	case ir.LtI:
		*out = append(*out, 0x48)
		return 1
	case ir.LeI:
		*out = append(*out, 0x4C)
		return 1
	case ir.GtI:
		*out = append(*out, 0x4A)
		return 1
	case ir.GeI:
		*out = append(*out, 0x4E)
		return 1
	case ir.EqI:
		*out = append(*out, 0x46)
		return 1
	case ir.NeI:
		*out = append(*out, 0x47)
		return 1

	case ir.LtF:
		*out = append(*out, 0x63)
		return 1
	case ir.LeF:
		*out = append(*out, 0x65)
		return 1
	case ir.GtF:
		*out = append(*out, 0x64)
		return 1
	case ir.GeF:
		*out = append(*out, 0x66)
		return 1
	case ir.EqF:
		*out = append(*out, 0x61)
		return 1
	case ir.NeF:
		*out = append(*out, 0x62)
		return 1

	case ir.AndI:
		*out = append(*out, 0x71)
		return 1
	case ir.OrI:
		*out = append(*out, 0x72)
		return 1
	case ir.NotI:
		*out = append(*out, 0x45)
		return 1

	case ir.NegI:
		*out = append(*out, 0x41)
		*out = append(*out, sleb128(-1)...)
		*out = append(*out, 0x6C)
		return 1
	case ir.NegF:
		*out = append(*out, 0x9A)
		return 1

	case ir.LocalGetI, ir.LocalGetF:
		*out = append(*out, 0x20)
		*out = append(*out, uleb128(uint64(instr.Int))...)
		return 1
	case ir.LocalSetI, ir.LocalSetF:
		*out = append(*out, 0x21)
		*out = append(*out, uleb128(uint64(instr.Int))...)
		return 1
	case ir.GlobalGetI, ir.GlobalGetF:
		*out = append(*out, 0x23)
		*out = append(*out, uleb128(uint64(instr.Int))...)
		return 1
	case ir.GlobalSetI, ir.GlobalSetF:
		*out = append(*out, 0x24)
		*out = append(*out, uleb128(uint64(instr.Int))...)
		return 1

	case ir.PeekI:
		*out = append(*out, 0x28, 0x02, 0x00) // i32.load align=2 offset=0
		return 1
	case ir.PokeI:
		*out = append(*out, 0x36, 0x02, 0x00) // i32.store align=2 offset=0
		return 1
	case ir.GrowI:
		*out = append(*out, growSequence()...)
		return 1

	case ir.PrintI:
		*out = append(*out, 0x10)
		*out = append(*out, uleb128(uint64(e.funcIndex["print_i32"]))...)
		return 1
	case ir.PrintF:
		*out = append(*out, 0x10)
		*out = append(*out, uleb128(uint64(e.funcIndex["print_f64"]))...)
		return 1

	case ir.Call:
		*out = append(*out, 0x10)
		*out = append(*out, uleb128(uint64(e.funcIndex[instr.Name]))...)
		return 1
	case ir.Ret:
		*out = append(*out, 0x0F)
		return 1
	case ir.Drop:
		*out = append(*out, 0x1A)
		return 1

	case ir.If:
		return e.ifBlock(code, i, out)
	case ir.Loop:
		return e.loopBlock(code, i, out)
	}
	return 1
}

// ifBlock encodes code[i:] starting at an If marker through its
// matching EndIf, returning the number of IR instructions consumed.
func (e *encoder) ifBlock(code []ir.Instr, i int, out *[]byte) int {
	*out = append(*out, 0x04, 0x40) // if, blocktype void
	j := i + 1
	for code[j].Op != ir.Else && code[j].Op != ir.EndIf {
		j += e.instr(code, j, out)
	}
	if code[j].Op == ir.Else {
		*out = append(*out, 0x05) // else
		j++
		for code[j].Op != ir.EndIf {
			j += e.instr(code, j, out)
		}
	}
	*out = append(*out, 0x0B) // end
	return j + 1 - i
}

// loopBlock encodes code[i:] starting at a Loop marker through its
// matching EndLoop. The IR's CBreak ("exit the loop iff the most
// recently pushed condition is false") is inverted here into an eqz
// test feeding br_if, since wasm only branches on true.
func (e *encoder) loopBlock(code []ir.Instr, i int, out *[]byte) int {
	*out = append(*out, 0x02, 0x40) // block (the $exit target), blocktype void
	*out = append(*out, 0x03, 0x40) // loop (the $continue target), blocktype void
	j := i + 1
	for code[j].Op != ir.CBreak {
		j += e.instr(code, j, out)
	}
	j++ // skip the CBreak marker; its condition expr is already encoded
	*out = append(*out, 0x45)       // i32.eqz: invert "condition true" to "condition false"
	*out = append(*out, 0x0D, 0x01) // br_if 1: branch to the enclosing block ($exit)
	for code[j].Op != ir.EndLoop {
		j += e.instr(code, j, out)
	}
	*out = append(*out, 0x0C, 0x00) // br 0: branch back to loop start ($continue)
	*out = append(*out, 0x0B)       // end loop
	*out = append(*out, 0x0B)       // end block
	return j + 1 - i
}

// growSequence lowers ^size (byte-granular) to wasm's page-granular
// memory.grow, rounding the request up to a whole page and leaving the
// new total memory size, in bytes, on the stack.
func growSequence() []byte {
	var out []byte
	out = append(out, 0x41)
	out = append(out, sleb128(pageSize-1)...)
	out = append(out, 0x6A)        // i32.add
	out = append(out, 0x41)
	out = append(out, sleb128(pageSize)...)
	out = append(out, 0x6E)        // i32.div_u
	out = append(out, 0x40, 0x00)  // memory.grow 0
	out = append(out, 0x1A)        // drop (old page count)
	out = append(out, 0x3F, 0x00)  // memory.size 0
	out = append(out, 0x41)
	out = append(out, sleb128(pageSize)...)
	out = append(out, 0x6C) // i32.mul
	return out
}

func f64bytes(f float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(f))
	return b
}
