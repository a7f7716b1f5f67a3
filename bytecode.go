// bytecode.go - instruction set and operand encoding for the VN VM
//
// License: GPLv3 or later

package main

// ------------------------------------------------------------------------------
// Operand kinds
// ------------------------------------------------------------------------------
//
// REGINT/REGSTR operands are a single byte, an index into the thread's
// integer/string register file. LITINT is a little-endian uint32 (treated
// as signed where comparisons demand it). LITSTR is UTF-8 bytes terminated
// by a single NUL.
type OperandKind int

const (
	REGINT OperandKind = iota
	REGSTR
	LITINT
	LITSTR
)

const (
	MaxRegisters = 8
	MaxBanks     = 32
)

// Opcodes, one byte each. Distinct operand-kind sequences for the same
// mnemonic (cmp, set, attr, concat, wait) are distinct opcodes; the
// assembler picks between them by matching token shapes.
const (
	OpReset     byte = 0x00
	OpLoadSpr   byte = 0x01
	OpUnloadSpr byte = 0x02
	OpFork      byte = 0x03
	OpRet       byte = 0x04
	OpCall      byte = 0x05
	OpPushS     byte = 0x06
	OpPopS      byte = 0x07
	OpPushI     byte = 0x08
	OpPopI      byte = 0x09
	OpWaitMs    byte = 0x0A
	OpWaitHook  byte = 0x0B
	OpFire      byte = 0x0C
	OpSay       byte = 0x0D
	OpSetSL     byte = 0x0E // set rs, litstr
	OpSetIL     byte = 0x0F // set ri, litint
	OpSetSS     byte = 0x10 // set rs1, rs2
	OpSetII     byte = 0x11 // set ri1, ri2
	OpShow      byte = 0x12
	OpLayer     byte = 0x13
	OpAttrI     byte = 0x14 // attr "name", ri
	OpAttrS     byte = 0x15 // attr "name", rs
	OpOpenBank  byte = 0x16
	OpAdd       byte = 0x17
	OpSub       byte = 0x18
	OpConcatL   byte = 0x19 // concat rs, litstr
	OpConcatR   byte = 0x1A // concat rs1, rs2
	OpCmpIL     byte = 0x1B // cmp ri, litint
	OpCmpII     byte = 0x1C // cmp ri1, ri2
	OpJl        byte = 0x1D
	OpJe        byte = 0x1E
	OpJg        byte = 0x1F
	OpJmp       byte = 0x20
)

// InstrSpec describes an opcode's mnemonic (as it appears in assembly) and
// its fixed operand-kind sequence. The dispatcher's decode table and the
// MnemonicTable below are both built from this slice, so
// there is exactly one place the instruction set is defined for the runtime
// half of the module (the assembler and disassembler commands keep their own
// copy — see DESIGN.md).
type InstrSpec struct {
	Opcode   byte
	Mnemonic string
	Operands []OperandKind
}

// OpcodeTable is indexed by opcode byte; nil entries are unassigned and the
// dispatcher faults on them as an unknown opcode.
var OpcodeTable = buildOpcodeTable()

// MnemonicTable maps an assembly mnemonic to its candidate encodings, in
// declaration order below. The assembler command builds the same mapping
// from its own copy of the table, tries each candidate in order and commits
// to the first whose operand tokens all type-check.
var MnemonicTable = buildMnemonicTable()

func instrSpecs() []InstrSpec {
	return []InstrSpec{
		{OpReset, "reset", nil},
		{OpLoadSpr, "loadspr", []OperandKind{REGSTR, REGINT}},
		{OpUnloadSpr, "unloadspr", []OperandKind{REGINT}},
		{OpFork, "fork", []OperandKind{LITINT}},
		{OpRet, "ret", nil},
		{OpCall, "call", []OperandKind{LITINT}},
		{OpPushS, "pushs", []OperandKind{REGSTR}},
		{OpPopS, "pops", []OperandKind{REGSTR}},
		{OpPushI, "pushi", []OperandKind{REGINT}},
		{OpPopI, "popi", []OperandKind{REGINT}},
		{OpWaitMs, "wait", []OperandKind{REGINT}},
		{OpWaitHook, "wait", []OperandKind{LITSTR}},
		{OpFire, "fire", []OperandKind{LITSTR}},
		{OpSay, "say", []OperandKind{REGINT, REGSTR}},
		{OpSetSL, "set", []OperandKind{REGSTR, LITSTR}},
		{OpSetIL, "set", []OperandKind{REGINT, LITINT}},
		{OpSetSS, "set", []OperandKind{REGSTR, REGSTR}},
		{OpSetII, "set", []OperandKind{REGINT, REGINT}},
		{OpShow, "show", []OperandKind{REGINT, REGINT}},
		{OpLayer, "layer", []OperandKind{REGINT, REGINT}},
		{OpAttrI, "attr", []OperandKind{LITSTR, REGINT}},
		{OpAttrS, "attr", []OperandKind{LITSTR, REGSTR}},
		{OpOpenBank, "openbank", []OperandKind{REGINT}},
		{OpAdd, "add", []OperandKind{REGINT, REGINT}},
		{OpSub, "sub", []OperandKind{REGINT, REGINT}},
		{OpConcatL, "concat", []OperandKind{REGSTR, LITSTR}},
		{OpConcatR, "concat", []OperandKind{REGSTR, REGSTR}},
		{OpCmpIL, "cmp", []OperandKind{REGINT, LITINT}},
		{OpCmpII, "cmp", []OperandKind{REGINT, REGINT}},
		{OpJl, "jl", []OperandKind{LITINT}},
		{OpJe, "je", []OperandKind{LITINT}},
		{OpJg, "jg", []OperandKind{LITINT}},
		{OpJmp, "jmp", []OperandKind{LITINT}},
	}
}

func buildOpcodeTable() [256]*InstrSpec {
	var table [256]*InstrSpec
	for _, spec := range instrSpecs() {
		spec := spec
		table[spec.Opcode] = &spec
	}
	return table
}

func buildMnemonicTable() map[string][]*InstrSpec {
	table := make(map[string][]*InstrSpec)
	for _, spec := range instrSpecs() {
		spec := spec
		table[spec.Mnemonic] = append(table[spec.Mnemonic], &spec)
	}
	return table
}

// Program is the assembled, immutable byte array the dispatcher executes.
// Offset 0 is the entry point.
type Program []byte
