// disasm.go - mechanical disassembler for the visual novel VM's bytecode
//
// Keeps its own copy of the instruction table rather than importing the
// root package: this tool, the root interpreter, and the assembler are
// three independent programs that happen to agree on the wire format.
//
// License: GPLv3 or later

package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type operandKind int

const (
	regInt operandKind = iota
	regStr
	litInt
	litStr
)

type instrSpec struct {
	mnemonic string
	operands []operandKind
}

// opcodeTable is indexed by opcode byte; a nil entry is an unassigned
// opcode and disassembles as a raw .byte directive.
var opcodeTable = buildOpcodeTable()

func buildOpcodeTable() [256]*instrSpec {
	raw := map[byte]instrSpec{
		0x00: {"reset", nil},
		0x01: {"loadspr", []operandKind{regStr, regInt}},
		0x02: {"unloadspr", []operandKind{regInt}},
		0x03: {"fork", []operandKind{litInt}},
		0x04: {"ret", nil},
		0x05: {"call", []operandKind{litInt}},
		0x06: {"pushs", []operandKind{regStr}},
		0x07: {"pops", []operandKind{regStr}},
		0x08: {"pushi", []operandKind{regInt}},
		0x09: {"popi", []operandKind{regInt}},
		0x0A: {"wait", []operandKind{regInt}},
		0x0B: {"wait", []operandKind{litStr}},
		0x0C: {"fire", []operandKind{litStr}},
		0x0D: {"say", []operandKind{regInt, regStr}},
		0x0E: {"set", []operandKind{regStr, litStr}},
		0x0F: {"set", []operandKind{regInt, litInt}},
		0x10: {"set", []operandKind{regStr, regStr}},
		0x11: {"set", []operandKind{regInt, regInt}},
		0x12: {"show", []operandKind{regInt, regInt}},
		0x13: {"layer", []operandKind{regInt, regInt}},
		0x14: {"attr", []operandKind{litStr, regInt}},
		0x15: {"attr", []operandKind{litStr, regStr}},
		0x16: {"openbank", []operandKind{regInt}},
		0x17: {"add", []operandKind{regInt, regInt}},
		0x18: {"sub", []operandKind{regInt, regInt}},
		0x19: {"concat", []operandKind{regStr, litStr}},
		0x1A: {"concat", []operandKind{regStr, regStr}},
		0x1B: {"cmp", []operandKind{regInt, litInt}},
		0x1C: {"cmp", []operandKind{regInt, regInt}},
		0x1D: {"jl", []operandKind{litInt}},
		0x1E: {"je", []operandKind{litInt}},
		0x1F: {"jg", []operandKind{litInt}},
		0x20: {"jmp", []operandKind{litInt}},
	}
	var table [256]*instrSpec
	for op, spec := range raw {
		spec := spec
		table[op] = &spec
	}
	return table
}

// Disassemble renders prog as one mnemonic per line, each prefixed with its
// byte offset so jump/call/fork targets can be cross-referenced by eye.
func Disassemble(prog []byte) (string, error) {
	var b strings.Builder
	pc := 0
	for pc < len(prog) {
		start := pc
		opcode := prog[pc]
		pc++

		spec := opcodeTable[opcode]
		if spec == nil {
			fmt.Fprintf(&b, "%08d: .byte 0x%02x\n", start, opcode)
			continue
		}

		args, err := decodeOperands(prog, &pc, spec.operands)
		if err != nil {
			return "", fmt.Errorf("offset %d: %w", start, err)
		}

		if len(args) == 0 {
			fmt.Fprintf(&b, "%08d: %s\n", start, spec.mnemonic)
		} else {
			fmt.Fprintf(&b, "%08d: %s %s\n", start, spec.mnemonic, strings.Join(args, " "))
		}
	}
	return b.String(), nil
}

func decodeOperands(prog []byte, pc *int, kinds []operandKind) ([]string, error) {
	var out []string
	for _, kind := range kinds {
		switch kind {
		case regInt:
			idx, err := readByte(prog, pc)
			if err != nil {
				return nil, err
			}
			out = append(out, fmt.Sprintf("i%d", idx))
		case regStr:
			idx, err := readByte(prog, pc)
			if err != nil {
				return nil, err
			}
			out = append(out, fmt.Sprintf("s%d", idx))
		case litInt:
			v, err := readLitInt(prog, pc)
			if err != nil {
				return nil, err
			}
			out = append(out, strconv.Itoa(int(v)))
		case litStr:
			s, err := readLitStr(prog, pc)
			if err != nil {
				return nil, err
			}
			out = append(out, strconv.Quote(s))
		}
	}
	return out, nil
}

func readByte(prog []byte, pc *int) (byte, error) {
	if *pc >= len(prog) {
		return 0, fmt.Errorf("truncated operand")
	}
	b := prog[*pc]
	*pc++
	return b, nil
}

func readLitInt(prog []byte, pc *int) (int32, error) {
	if *pc+4 > len(prog) {
		return 0, fmt.Errorf("truncated litint")
	}
	v := binary.LittleEndian.Uint32(prog[*pc : *pc+4])
	*pc += 4
	return int32(v), nil
}

func readLitStr(prog []byte, pc *int) (string, error) {
	start := *pc
	for *pc < len(prog) && prog[*pc] != 0 {
		*pc++
	}
	if *pc >= len(prog) {
		return "", fmt.Errorf("unterminated litstr")
	}
	s := string(prog[start:*pc])
	*pc++
	return s, nil
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: vndis PROGRAM.bin\n")
		os.Exit(1)
	}
	prog, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "vndis: %v\n", err)
		os.Exit(1)
	}
	text, err := Disassemble(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vndis: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(text)
}
